package nonstatic

import (
	"context"
	"image"
	"image/color"
	"testing"

	"go.viam.com/test"

	"github.com/qianjinfighter/DeepViewAgg/logging"
	"github.com/qianjinfighter/DeepViewAgg/multimodal"
	"github.com/qianjinfighter/DeepViewAgg/rimage"
)

func uniformImage(w, h int, level uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = level
	}
	return img
}

func streetViews() []*multimodal.View {
	views := make([]*multimodal.View, 5)
	for i := range views {
		views[i] = &multimodal.View{ID: i, Name: string(rune('a' + i)), Pixels: uniformImage(8, 4, 100)}
	}
	// a passing car in the third frame
	views[2].Pixels.(*image.Gray).SetGray(3, 1, color.Gray{Y: 200})
	return views
}

func TestFlagsTransientPixels(t *testing.T) {
	logger := logging.NewTestLogger(t)
	est, err := NewEstimator(Config{}, logger)
	test.That(t, err, test.ShouldBeNil)

	views := streetViews()
	out, err := est.Apply(context.Background(), views)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(out), test.ShouldEqual, len(views))

	test.That(t, out[2].Mask.Valid(3, 1), test.ShouldBeFalse)
	test.That(t, out[2].Mask.CountValid(), test.ShouldEqual, 8*4-1)
	for _, i := range []int{0, 1, 3, 4} {
		test.That(t, out[i].Mask.CountValid(), test.ShouldEqual, 8*4)
	}

	// inputs are untouched
	for _, v := range views {
		test.That(t, v.Mask, test.ShouldBeNil)
	}
	test.That(t, views[2].Pixels.(*image.Gray).GrayAt(3, 1).Y, test.ShouldEqual, uint8(200))
}

func TestSmallDeviationsStayValid(t *testing.T) {
	est, err := NewEstimator(Config{}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	views := streetViews()
	views[4].Pixels.(*image.Gray).SetGray(0, 0, color.Gray{Y: 105})
	out, err := est.Apply(context.Background(), views)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out[4].Mask.Valid(0, 0), test.ShouldBeTrue)
}

func TestMaskStatic(t *testing.T) {
	est, err := NewEstimator(Config{MaskStatic: true}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	out, err := est.Apply(context.Background(), streetViews())
	test.That(t, err, test.ShouldBeNil)
	// only the pixel that changed in some frame is not static, and it is valid outside the car frame
	test.That(t, out[0].Mask.CountValid(), test.ShouldEqual, 1)
	test.That(t, out[0].Mask.Valid(3, 1), test.ShouldBeTrue)
	test.That(t, out[2].Mask.CountValid(), test.ShouldEqual, 0)
}

func TestCombinesWithExistingMask(t *testing.T) {
	est, err := NewEstimator(Config{NSample: 3}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	views := streetViews()
	views[1].Mask = rimage.NewMask(8, 4, true)
	views[1].Mask.Set(7, 3, false)

	out, err := est.Apply(context.Background(), views)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out[1].Mask.Valid(7, 3), test.ShouldBeFalse)
	test.That(t, out[1].Mask.CountValid(), test.ShouldEqual, 8*4-1)

	views[1].Mask = rimage.NewMask(2, 2, true)
	_, err = est.Apply(context.Background(), views)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPassThrough(t *testing.T) {
	est, err := NewEstimator(Config{}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	lone := &multimodal.View{Name: "lone", Pixels: uniformImage(3, 3, 10)}
	blank := &multimodal.View{Name: "geometry only"}
	out, err := est.Apply(context.Background(), []*multimodal.View{lone, blank})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out[0], test.ShouldEqual, lone)
	test.That(t, out[1], test.ShouldEqual, blank)
}

func TestReferences(t *testing.T) {
	members := []int{0, 1, 2, 3, 4, 5, 6, 7, 8}
	test.That(t, references(members, 3), test.ShouldResemble, []int{0, 4, 8})
	test.That(t, references(members, 20), test.ShouldResemble, members)
	test.That(t, references(members, 1), test.ShouldResemble, []int{0})

	_, err := NewEstimator(Config{NSample: -1}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSampleStatistics(t *testing.T) {
	median, mad, constant, err := sampleStatistics([]float64{10, 10, 40})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, median, test.ShouldEqual, 10.)
	test.That(t, mad, test.ShouldEqual, 0.)
	test.That(t, constant, test.ShouldBeFalse)

	_, _, constant, err = sampleStatistics([]float64{7, 7})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, constant, test.ShouldBeTrue)

	_, _, _, err = sampleStatistics(nil)
	test.That(t, err, test.ShouldNotBeNil)
}
