package pointcloud

import (
	"math"

	"github.com/pkg/errors"
)

// VoxelCoords stores Voxel coordinates in VoxelGrid axes.
type VoxelCoords struct {
	I, J, K int64
}

// GetVoxelCoordinates computes the voxel coordinates of a point in a grid of the given size
// anchored at ptMin.
func GetVoxelCoordinates(p Point, ptMin Point, voxelSize float64) VoxelCoords {
	rel := p.Position.Sub(ptMin.Position)
	return VoxelCoords{
		I: int64(math.Floor(rel.X / voxelSize)),
		J: int64(math.Floor(rel.Y / voxelSize)),
		K: int64(math.Floor(rel.Z / voxelSize)),
	}
}

// GridSample subsamples the cloud to at most one point per voxel of the given size. Within a
// voxel the last point in cloud order wins and keeps its identifier, position and features.
// The returned merge table maps every dropped identifier to the identifier of the point that
// now represents its voxel. Output order follows the order in which voxels are first seen.
func GridSample(cloud PointCloud, voxelSize float64) (PointCloud, map[int64]int64, error) {
	if voxelSize <= 0 {
		return nil, nil, errors.Errorf("voxel size must be positive, got %f", voxelSize)
	}
	if cloud.Size() == 0 {
		return newWithPrealloc(0), map[int64]int64{}, nil
	}
	// anchor the grid at the origin so that voxelization is independent of the cloud's extent
	var origin Point

	order := make([]VoxelCoords, 0)
	members := make(map[VoxelCoords][]int64)
	winner := make(map[VoxelCoords]int)
	cloud.Iterate(0, 0, func(i int, p Point) bool {
		key := GetVoxelCoordinates(p, origin, voxelSize)
		if _, seen := winner[key]; !seen {
			order = append(order, key)
		}
		winner[key] = i
		members[key] = append(members[key], p.ID)
		return true
	})

	out := newWithPrealloc(len(order))
	merges := make(map[int64]int64)
	for _, key := range order {
		survivor := cloud.At(winner[key])
		if err := out.add(survivor); err != nil {
			return nil, nil, err
		}
		for _, id := range members[key] {
			if id != survivor.ID {
				merges[id] = survivor.ID
			}
		}
	}
	return out, merges, nil
}

// Filter returns a new cloud holding the points for which keep returns true.
func Filter(cloud PointCloud, keep func(p Point) bool) PointCloud {
	out := newWithPrealloc(cloud.Size())
	cloud.Iterate(0, 0, func(_ int, p Point) bool {
		if keep(p) {
			// identifiers are unique in the source cloud
			//nolint:errcheck
			out.add(p)
		}
		return true
	})
	return out
}
