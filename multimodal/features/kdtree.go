package features

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// viewPoint is a point seen by a view, indexed by its position in the view's point list.
type viewPoint struct {
	idx int
	pos r3.Vector
}

// Compare implements kdtree.Comparable.
func (p viewPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(viewPoint)
	switch d {
	case 0:
		return p.pos.X - q.pos.X
	case 1:
		return p.pos.Y - q.pos.Y
	case 2:
		return p.pos.Z - q.pos.Z
	default:
		panic("illegal dimension")
	}
}

// Dims implements kdtree.Comparable.
func (p viewPoint) Dims() int { return 3 }

// Distance returns the squared euclidean distance.
func (p viewPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(viewPoint)
	d := p.pos.Sub(q.pos)
	return d.Dot(d)
}

// viewPoints satisfies kdtree.Interface.
type viewPoints []viewPoint

func (p viewPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p viewPoints) Len() int                              { return len(p) }
func (p viewPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

func (p viewPoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(plane{viewPoints: p, Dim: d}, kdtree.MedianOfMedians(plane{viewPoints: p, Dim: d}))
}

// plane implements kdtree.SortSlicer along one dimension.
type plane struct {
	viewPoints
	kdtree.Dim
}

func (p plane) Less(i, j int) bool {
	return p.viewPoints[i].Compare(p.viewPoints[j], p.Dim) < 0
}

func (p plane) Swap(i, j int) {
	p.viewPoints[i], p.viewPoints[j] = p.viewPoints[j], p.viewPoints[i]
}

func (p plane) Slice(start, end int) kdtree.SortSlicer {
	return plane{viewPoints: p.viewPoints[start:end], Dim: p.Dim}
}
