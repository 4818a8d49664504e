package multimodal

import (
	"image"
	"image/color"
	"testing"

	"go.viam.com/test"

	"github.com/qianjinfighter/DeepViewAgg/pointcloud"
	"github.com/qianjinfighter/DeepViewAgg/rimage"
	"github.com/qianjinfighter/DeepViewAgg/rimage/transform"
	"github.com/qianjinfighter/DeepViewAgg/spatialmath"
)

func panorama(t *testing.T) *View {
	t.Helper()
	camera, err := transform.NewCamera(&transform.Intrinsics{
		Width: 36, Height: 18, Projection: transform.Equirectangular,
	}, spatialmath.NewZeroPose())
	test.That(t, err, test.ShouldBeNil)
	view, err := NewView(3, "pano", nil, camera)
	test.That(t, err, test.ShouldBeNil)
	return view
}

func TestNewView(t *testing.T) {
	view := panorama(t)
	test.That(t, view.Crop, test.ShouldResemble, image.Rect(0, 0, 36, 18))
	test.That(t, view.Size(), test.ShouldResemble, image.Pt(36, 18))
	test.That(t, view.Valid(35, 17), test.ShouldBeTrue)
	test.That(t, view.Valid(36, 0), test.ShouldBeFalse)

	_, err := NewView(0, "bad", nil, &transform.Camera{Intrinsics: &transform.Intrinsics{}})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestFrameToView(t *testing.T) {
	view := panorama(t)
	view.Roll = 10
	view.Crop = image.Rect(4, 2, 20, 12)
	test.That(t, view.Size(), test.ShouldResemble, image.Pt(16, 10))

	p, ok := view.FrameToView(image.Pt(30, 5))
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, p, test.ShouldResemble, image.Pt(0, 3))
	test.That(t, view.ViewToFrame(p), test.ShouldResemble, image.Pt(30, 5))

	_, ok = view.FrameToView(image.Pt(0, 5))
	test.That(t, ok, test.ShouldBeTrue)
	_, ok = view.FrameToView(image.Pt(20, 5))
	test.That(t, ok, test.ShouldBeFalse)
	_, ok = view.FrameToView(image.Pt(30, 1))
	test.That(t, ok, test.ShouldBeFalse)

	for x := 4; x < 20; x++ {
		for y := 2; y < 12; y++ {
			q := view.ViewToFrame(image.Pt(x-4, y-2))
			back, ok := view.FrameToView(q)
			test.That(t, ok, test.ShouldBeTrue)
			test.That(t, back, test.ShouldResemble, image.Pt(x-4, y-2))
		}
	}
}

func TestClone(t *testing.T) {
	view := panorama(t)
	view.Mask = rimage.NewMask(36, 18, true)
	clone := view.Clone()
	clone.Mask.Set(1, 1, false)
	clone.Roll = 5
	test.That(t, view.Mask.Valid(1, 1), test.ShouldBeTrue)
	test.That(t, view.Roll, test.ShouldEqual, 0)
	test.That(t, clone.Camera, test.ShouldEqual, view.Camera)

	cloud := pointcloud.NewFromPositions(nil)
	sample := NewSample(cloud, []*View{view})
	other := NewSample(cloud, nil)
	test.That(t, sample.ID, test.ShouldNotEqual, other.ID)

	copied := sample.Clone()
	copied.Views[0] = clone
	copied.Unmapped = append(copied.Unmapped, 7)
	test.That(t, sample.Views[0], test.ShouldEqual, view)
	test.That(t, sample.Unmapped, test.ShouldBeEmpty)
	test.That(t, copied.ID, test.ShouldEqual, sample.ID)
}

func TestRescaled(t *testing.T) {
	view := panorama(t)
	pixels := image.NewGray(image.Rect(0, 0, 36, 18))
	for i := range pixels.Pix {
		pixels.Pix[i] = 128
	}
	pixels.SetGray(0, 0, color.Gray{Y: 0})
	view.Pixels = pixels
	view.Mask = rimage.NewMask(36, 18, true)
	view.Mask.Set(0, 0, false)

	same, err := view.Rescaled(36, 18)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, same, test.ShouldEqual, view)

	small, err := view.Rescaled(18, 9)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, small.Size(), test.ShouldResemble, image.Pt(18, 9))
	test.That(t, small.FrameSize(), test.ShouldResemble, image.Pt(18, 9))
	test.That(t, small.Pixels.Bounds().Size(), test.ShouldResemble, image.Pt(18, 9))
	test.That(t, small.Mask.Width(), test.ShouldEqual, 18)
	test.That(t, small.Mask.Valid(0, 0), test.ShouldBeFalse)
	test.That(t, small.Mask.Valid(17, 8), test.ShouldBeTrue)
	test.That(t, view.FrameSize(), test.ShouldResemble, image.Pt(36, 18))

	view.Roll = 2
	_, err = view.Rescaled(18, 9)
	test.That(t, err, test.ShouldNotBeNil)
}
