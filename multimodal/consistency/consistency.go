// Package consistency keeps a mapping valid while the point cloud and views it refers to are
// transformed: points merged by subsampling and panoramic frames rolled around their seam.
package consistency

import (
	"github.com/pkg/errors"

	"github.com/qianjinfighter/DeepViewAgg/multimodal/mapping"
	"github.com/qianjinfighter/DeepViewAgg/pointcloud"
)

// ErrIdentifierIntegrity means a mapping references a point that is not in the cloud. It
// always indicates a missed reconciliation.
var ErrIdentifierIntegrity = errors.New("mapping references points missing from the point cloud")

// Resolve follows the merge table from id to the point that represents it in cloud. ok is
// false when the point was dropped without a surviving representative.
func Resolve(cloud pointcloud.PointCloud, merges map[int64]int64, id int64) (int64, bool) {
	for hops := 0; hops <= len(merges); hops++ {
		if pointcloud.Contains(cloud, id) {
			return id, true
		}
		next, ok := merges[id]
		if !ok {
			return 0, false
		}
		id = next
	}
	// the merge table has a cycle
	return 0, false
}

// Reconcile returns a mapping valid for cloud. Entries of surviving points are kept, entries
// of merged points are moved to their representative and entries of removed points are
// dropped. When several entries end up on the same (point, image, pixel) the last one in entry
// order wins, the same policy the voxel grid applies to the points themselves.
func Reconcile(m *mapping.Mapping, cloud pointcloud.PointCloud, merges map[int64]int64) (*mapping.Mapping, error) {
	slots := make(map[mapping.Key]int)
	entries := make([]mapping.Entry, 0, m.Len())
	for i := 0; i < m.Len(); i++ {
		e := m.At(i)
		id, ok := Resolve(cloud, merges, e.PointID)
		if !ok {
			continue
		}
		e.PointID = id
		if slot, dup := slots[e.Key()]; dup {
			entries[slot] = e
			continue
		}
		slots[e.Key()] = len(entries)
		entries = append(entries, e)
	}
	return m.WithEntries(entries)
}

// Verify returns an ErrIdentifierIntegrity error naming the first mapped point absent from cloud.
func Verify(m *mapping.Mapping, cloud pointcloud.PointCloud) error {
	var stale []int64
	for _, id := range m.PointIDs() {
		if !pointcloud.Contains(cloud, id) {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		return errors.Wrapf(ErrIdentifierIntegrity, "%d stale points, first is %d", len(stale), stale[0])
	}
	return nil
}

// ComposeMerges returns the merge table equivalent to applying older and then newer.
func ComposeMerges(older, newer map[int64]int64) map[int64]int64 {
	out := make(map[int64]int64, len(older)+len(newer))
	for from, to := range newer {
		out[from] = to
	}
	for from, to := range older {
		if next, ok := newer[to]; ok {
			to = next
		}
		out[from] = to
	}
	return out
}
