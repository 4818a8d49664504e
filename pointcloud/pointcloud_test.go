package pointcloud

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestNewRejectsDuplicateIDs(t *testing.T) {
	_, err := New(Point{ID: 1}, Point{ID: 2}, Point{ID: 1})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "duplicate")

	cloud, err := New(Point{ID: 7, Position: r3.Vector{X: 1}}, Point{ID: 3, Position: r3.Vector{Y: -2}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud.Size(), test.ShouldEqual, 2)
	test.That(t, IDs(cloud), test.ShouldResemble, []int64{7, 3})
	test.That(t, Contains(cloud, 3), test.ShouldBeTrue)
	test.That(t, Contains(cloud, 4), test.ShouldBeFalse)

	p, ok := cloud.Lookup(3)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, p.Position, test.ShouldResemble, r3.Vector{Y: -2})

	meta := cloud.MetaData()
	test.That(t, meta.MinY, test.ShouldEqual, -2.)
	test.That(t, meta.MaxX, test.ShouldEqual, 1.)
	test.That(t, meta.HasFeatures, test.ShouldBeFalse)
}

func TestIterateBatches(t *testing.T) {
	cloud := NewFromPositions(make([]r3.Vector, 10))
	seen := 0
	for b := 0; b < 3; b++ {
		cloud.Iterate(3, b, func(i int, p Point) bool {
			test.That(t, p.ID, test.ShouldEqual, int64(i))
			seen++
			return true
		})
	}
	test.That(t, seen, test.ShouldEqual, 10)

	count := 0
	cloud.Iterate(0, 0, func(int, Point) bool {
		count++
		return count < 4
	})
	test.That(t, count, test.ShouldEqual, 4)
}

func TestGridSampleLastWins(t *testing.T) {
	cloud, err := New(
		Point{ID: 10, Position: r3.Vector{X: 0.1, Y: 0.1, Z: 0.1}},
		Point{ID: 11, Position: r3.Vector{X: 1.5, Y: 0.1, Z: 0.1}},
		Point{ID: 12, Position: r3.Vector{X: 0.4, Y: 0.9, Z: 0.2}, Features: []float64{1}},
		Point{ID: 13, Position: r3.Vector{X: -0.2, Y: 0.1, Z: 0.1}},
	)
	test.That(t, err, test.ShouldBeNil)

	sampled, merges, err := GridSample(cloud, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, IDs(sampled), test.ShouldResemble, []int64{12, 11, 13})
	test.That(t, merges, test.ShouldResemble, map[int64]int64{10: 12})

	survivor, ok := sampled.Lookup(12)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, survivor.Features, test.ShouldResemble, []float64{1})
	test.That(t, sampled.MetaData().HasFeatures, test.ShouldBeTrue)

	// every dropped identifier points at a surviving one
	for from, to := range merges {
		test.That(t, Contains(sampled, from), test.ShouldBeFalse)
		test.That(t, Contains(sampled, to), test.ShouldBeTrue)
	}

	_, _, err = GridSample(cloud, 0)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestGridSampleEmpty(t *testing.T) {
	empty, err := New()
	test.That(t, err, test.ShouldBeNil)
	sampled, merges, err := GridSample(empty, 0.5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sampled.Size(), test.ShouldEqual, 0)
	test.That(t, merges, test.ShouldBeEmpty)
}

func TestFilter(t *testing.T) {
	cloud := NewFromPositions([]r3.Vector{{X: 1}, {X: 2}, {X: 3}})
	kept := Filter(cloud, func(p Point) bool { return p.Position.X != 2 })
	test.That(t, IDs(kept), test.ShouldResemble, []int64{0, 2})
	idx, ok := kept.IndexOf(2)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, idx, test.ShouldEqual, 1)
}
