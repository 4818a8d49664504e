// Package pointcloud defines an ordered point cloud whose points carry stable identifiers.
//
// Identifiers survive subsampling so that any structure keyed by them (such as an image
// mapping) can be reconciled after the cloud changes.
package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
)

// Point is a single point of a cloud.
type Point struct {
	ID       int64
	Position r3.Vector
	Features []float64
}

// MetaData is data about what's stored in the point cloud.
type MetaData struct {
	HasFeatures bool

	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64
}

// NewMetaData returns an empty MetaData whose bounds are ready to be merged into.
func NewMetaData() MetaData {
	return MetaData{
		MinX: math.MaxFloat64,
		MinY: math.MaxFloat64,
		MinZ: math.MaxFloat64,
		MaxX: -math.MaxFloat64,
		MaxY: -math.MaxFloat64,
		MaxZ: -math.MaxFloat64,
	}
}

// Merge updates the metadata to account for a new point.
func (meta *MetaData) Merge(p Point) {
	if len(p.Features) > 0 {
		meta.HasFeatures = true
	}
	v := p.Position
	meta.MaxX = math.Max(meta.MaxX, v.X)
	meta.MaxY = math.Max(meta.MaxY, v.Y)
	meta.MaxZ = math.Max(meta.MaxZ, v.Z)
	meta.MinX = math.Min(meta.MinX, v.X)
	meta.MinY = math.Min(meta.MinY, v.Y)
	meta.MinZ = math.Min(meta.MinZ, v.Z)
}

// Min returns the lower corner of the bounding box.
func (meta MetaData) Min() r3.Vector {
	return r3.Vector{X: meta.MinX, Y: meta.MinY, Z: meta.MinZ}
}

// Max returns the upper corner of the bounding box.
func (meta MetaData) Max() r3.Vector {
	return r3.Vector{X: meta.MaxX, Y: meta.MaxY, Z: meta.MaxZ}
}

// PointCloud is an ordered, read-only container of points. Operations that change the set of
// points return a new cloud.
type PointCloud interface {
	// Size returns the number of points in the cloud.
	Size() int

	// MetaData returns meta data
	MetaData() MetaData

	// At returns the i-th point in cloud order.
	At(i int) Point

	// Lookup returns the point carrying the given identifier.
	Lookup(id int64) (Point, bool)

	// IndexOf returns the position in cloud order of the given identifier.
	IndexOf(id int64) (int, bool)

	// Iterate iterates over all points in the cloud and calls the given
	// function for each point. If the supplied function returns false,
	// iteration will stop after the function returns.
	// numBatches lets you divide up he work. 0 means don't divide
	// myBatch is used iff numBatches > 0 and is which batch you want
	Iterate(numBatches, myBatch int, fn func(i int, p Point) bool)
}

// Contains returns whether the cloud holds a point with the given identifier.
func Contains(cloud PointCloud, id int64) bool {
	_, ok := cloud.IndexOf(id)
	return ok
}

// IDs returns the identifiers of the cloud in order.
func IDs(cloud PointCloud) []int64 {
	ids := make([]int64, 0, cloud.Size())
	cloud.Iterate(0, 0, func(_ int, p Point) bool {
		ids = append(ids, p.ID)
		return true
	})
	return ids
}
