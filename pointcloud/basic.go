package pointcloud

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// basicPointCloud is the basic implementation of the PointCloud interface backed by
// a flat slice of points and an identifier index.
type basicPointCloud struct {
	points []Point
	index  map[int64]int
	meta   MetaData
}

// New returns a cloud holding the given points in order. Identifiers must be unique.
func New(points ...Point) (PointCloud, error) {
	cloud := newWithPrealloc(len(points))
	for _, p := range points {
		if err := cloud.add(p); err != nil {
			return nil, err
		}
	}
	return cloud, nil
}

// NewFromPositions returns a cloud whose i-th point has identifier i.
func NewFromPositions(positions []r3.Vector) PointCloud {
	cloud := newWithPrealloc(len(positions))
	for i, pos := range positions {
		// identifiers are unique by construction
		//nolint:errcheck
		cloud.add(Point{ID: int64(i), Position: pos})
	}
	return cloud
}

func newWithPrealloc(size int) *basicPointCloud {
	return &basicPointCloud{
		points: make([]Point, 0, size),
		index:  make(map[int64]int, size),
		meta:   NewMetaData(),
	}
}

func (cloud *basicPointCloud) add(p Point) error {
	if _, exists := cloud.index[p.ID]; exists {
		return errors.Errorf("duplicate point identifier %d", p.ID)
	}
	cloud.index[p.ID] = len(cloud.points)
	cloud.points = append(cloud.points, p)
	cloud.meta.Merge(p)
	return nil
}

func (cloud *basicPointCloud) Size() int {
	return len(cloud.points)
}

func (cloud *basicPointCloud) MetaData() MetaData {
	return cloud.meta
}

func (cloud *basicPointCloud) At(i int) Point {
	return cloud.points[i]
}

func (cloud *basicPointCloud) Lookup(id int64) (Point, bool) {
	i, ok := cloud.index[id]
	if !ok {
		return Point{}, false
	}
	return cloud.points[i], true
}

func (cloud *basicPointCloud) IndexOf(id int64) (int, bool) {
	i, ok := cloud.index[id]
	return i, ok
}

func (cloud *basicPointCloud) Iterate(numBatches, myBatch int, fn func(i int, p Point) bool) {
	from, to := 0, len(cloud.points)
	if numBatches > 0 {
		batchSize := (len(cloud.points) + numBatches - 1) / numBatches
		from = myBatch * batchSize
		to = from + batchSize
		if to > len(cloud.points) {
			to = len(cloud.points)
		}
	}
	for i := from; i < to; i++ {
		if !fn(i, cloud.points[i]) {
			return
		}
	}
}
