package consistency

import (
	"errors"
	"image"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/qianjinfighter/DeepViewAgg/multimodal/mapping"
	"github.com/qianjinfighter/DeepViewAgg/pointcloud"
)

func TestReconcileAfterGridSampling(t *testing.T) {
	cloud, err := pointcloud.New(
		pointcloud.Point{ID: 1, Position: r3.Vector{X: 0.1}},
		pointcloud.Point{ID: 2, Position: r3.Vector{X: 0.2}},
		pointcloud.Point{ID: 3, Position: r3.Vector{X: 1.5}},
		pointcloud.Point{ID: 4, Position: r3.Vector{X: 2.5}},
	)
	test.That(t, err, test.ShouldBeNil)
	m, err := mapping.New("", 2, []mapping.Entry{
		{PointID: 1, Image: 0, Pixel: image.Pt(4, 4), Depth: 1},
		{PointID: 2, Image: 0, Pixel: image.Pt(4, 4), Depth: 2},
		{PointID: 1, Image: 1, Pixel: image.Pt(0, 0), Depth: 1},
		{PointID: 3, Image: 1, Pixel: image.Pt(1, 1), Depth: 3},
		{PointID: 4, Image: 1, Pixel: image.Pt(2, 2), Depth: 4},
	})
	test.That(t, err, test.ShouldBeNil)

	sampled, merges, err := pointcloud.GridSample(cloud, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, merges, test.ShouldResemble, map[int64]int64{1: 2})

	err = Verify(m, sampled)
	test.That(t, errors.Is(err, ErrIdentifierIntegrity), test.ShouldBeTrue)

	// point 4 is removed by some other filter
	filtered := pointcloud.Filter(sampled, func(p pointcloud.Point) bool { return p.ID != 4 })

	out, err := Reconcile(m, filtered, merges)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, Verify(out, filtered), test.ShouldBeNil)
	test.That(t, out.PointIDs(), test.ShouldResemble, []int64{2, 3})

	merged := out.ForImage(0)
	test.That(t, len(merged), test.ShouldEqual, 1)
	test.That(t, merged[0].PointID, test.ShouldEqual, int64(2))
	test.That(t, merged[0].Depth, test.ShouldEqual, 2.)

	moved := out.ForPoint(2)
	test.That(t, len(moved), test.ShouldEqual, 2)
	test.That(t, moved[1].Image, test.ShouldEqual, 1)

	// the input mapping is untouched
	test.That(t, m.Len(), test.ShouldEqual, 5)
	test.That(t, m.HasPoint(1), test.ShouldBeTrue)
}

func TestReconcileLastWins(t *testing.T) {
	cloud, err := pointcloud.New(pointcloud.Point{ID: 9})
	test.That(t, err, test.ShouldBeNil)
	m, err := mapping.New("", 1, []mapping.Entry{
		{PointID: 9, Image: 0, Pixel: image.Pt(1, 1), Weight: 0.3},
		{PointID: 7, Image: 0, Pixel: image.Pt(1, 1), Weight: 0.9},
		{PointID: 8, Image: 0, Pixel: image.Pt(1, 1), Weight: 0.1},
	})
	test.That(t, err, test.ShouldBeNil)
	out, err := Reconcile(m, cloud, map[int64]int64{7: 9, 8: 9})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Len(), test.ShouldEqual, 1)
	test.That(t, out.At(0).Weight, test.ShouldEqual, 0.1)
}

func TestResolve(t *testing.T) {
	cloud, err := pointcloud.New(pointcloud.Point{ID: 3})
	test.That(t, err, test.ShouldBeNil)

	id, ok := Resolve(cloud, map[int64]int64{1: 2, 2: 3}, 1)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, id, test.ShouldEqual, int64(3))

	_, ok = Resolve(cloud, map[int64]int64{1: 2, 2: 1}, 1)
	test.That(t, ok, test.ShouldBeFalse)
	_, ok = Resolve(cloud, nil, 5)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestComposeMerges(t *testing.T) {
	composed := ComposeMerges(map[int64]int64{1: 2, 5: 6}, map[int64]int64{2: 3})
	test.That(t, composed, test.ShouldResemble, map[int64]int64{1: 3, 2: 3, 5: 6})
}
