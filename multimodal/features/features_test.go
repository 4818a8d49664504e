package features

import (
	"context"
	"image"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/qianjinfighter/DeepViewAgg/logging"
	"github.com/qianjinfighter/DeepViewAgg/multimodal/mapping"
	"github.com/qianjinfighter/DeepViewAgg/pointcloud"
)

func lineCloud(t *testing.T) pointcloud.PointCloud {
	t.Helper()
	cloud, err := pointcloud.New(
		pointcloud.Point{ID: 1, Position: r3.Vector{X: 0, Z: 2}},
		pointcloud.Point{ID: 2, Position: r3.Vector{X: 0.1, Z: 2}},
		pointcloud.Point{ID: 3, Position: r3.Vector{X: 0.3, Z: 2}},
		pointcloud.Point{ID: 4, Position: r3.Vector{X: 5, Z: 9}},
	)
	test.That(t, err, test.ShouldBeNil)
	return cloud
}

func TestDensity(t *testing.T) {
	m, err := mapping.New("", 2, []mapping.Entry{
		{PointID: 1, Image: 0, Pixel: image.Pt(0, 0), Radius: 1, Weight: 1, Depth: 2},
		{PointID: 2, Image: 0, Pixel: image.Pt(10, 0), Radius: 1, Weight: 1, Depth: 2},
		{PointID: 2, Image: 0, Pixel: image.Pt(11, 0), Radius: 1, Weight: 0.5, Depth: 2},
		{PointID: 3, Image: 0, Pixel: image.Pt(30, 0), Radius: 1, Weight: 1, Depth: 2},
		{PointID: 4, Image: 1, Pixel: image.Pt(3, 3), Radius: 1, Weight: 1, Depth: 9},
	})
	test.That(t, err, test.ShouldBeNil)

	est, err := NewEstimator(Config{K: 1}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	out, err := est.Annotate(context.Background(), lineCloud(t), m)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, out.Len(), test.ShouldEqual, m.Len())
	for i := 0; i < m.Len(); i++ {
		test.That(t, out.At(i).Key(), test.ShouldResemble, m.At(i).Key())
		test.That(t, out.At(i).Weight, test.ShouldEqual, m.At(i).Weight)
	}
	test.That(t, out.ForPoint(1)[0].Density, test.ShouldAlmostEqual, 10, 1e-3)
	test.That(t, out.ForPoint(3)[0].Density, test.ShouldAlmostEqual, 5, 1e-3)
	for _, e := range out.ForPoint(2) {
		test.That(t, e.Density, test.ShouldAlmostEqual, 10, 1e-3)
	}
	// a point alone in its view has no neighbourhood
	test.That(t, out.ForPoint(4)[0].Density, test.ShouldEqual, 0.)
	test.That(t, out.ForPoint(4)[0].Occlusion, test.ShouldEqual, 0.)

	// the input is not annotated in place
	test.That(t, m.At(0).Density, test.ShouldEqual, 0.)
}

func TestOcclusion(t *testing.T) {
	cloud, err := pointcloud.New(
		pointcloud.Point{ID: 1, Position: r3.Vector{Z: 2}},
		pointcloud.Point{ID: 2, Position: r3.Vector{X: 0.1, Z: 2}},
		pointcloud.Point{ID: 3, Position: r3.Vector{X: 0.1, Y: 0.1, Z: 2}},
	)
	test.That(t, err, test.ShouldBeNil)
	m, err := mapping.New("", 1, []mapping.Entry{
		{PointID: 1, Image: 0, Pixel: image.Pt(5, 5), Radius: 2, Weight: 1, Depth: 2},
		// projects next to point 1 but much further away
		{PointID: 2, Image: 0, Pixel: image.Pt(5, 6), Radius: 2, Weight: 1, Depth: 4},
		{PointID: 3, Image: 0, Pixel: image.Pt(40, 40), Radius: 2, Weight: 1, Depth: 2},
	})
	test.That(t, err, test.ShouldBeNil)

	est, err := NewEstimator(Config{}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	out, err := est.Annotate(context.Background(), cloud, m)
	test.That(t, err, test.ShouldBeNil)
	// K is capped to the two other points of the view
	test.That(t, out.ForPoint(1)[0].Occlusion, test.ShouldAlmostEqual, 0.5)
	test.That(t, out.ForPoint(2)[0].Occlusion, test.ShouldAlmostEqual, 0.5)
	test.That(t, out.ForPoint(3)[0].Occlusion, test.ShouldEqual, 0.)

	wide, err := NewEstimator(Config{OcclusionPixelRadius: 100, DepthTolerance: 1}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	out, err = wide.Annotate(context.Background(), cloud, m)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.ForPoint(3)[0].Occlusion, test.ShouldAlmostEqual, 0.5)
}

func TestMissingPoint(t *testing.T) {
	m, err := mapping.New("", 1, []mapping.Entry{{PointID: 42, Image: 0, Weight: 1}})
	test.That(t, err, test.ShouldBeNil)
	est, err := NewEstimator(Config{}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	_, err = est.Annotate(context.Background(), lineCloud(t), m)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewEstimator(Config{K: -1}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}
