package rimage

import (
	"image"
	"image/color"
	"testing"

	"go.viam.com/test"
)

func TestMaskBasics(t *testing.T) {
	var nilMask *Mask
	test.That(t, nilMask.Valid(5, 5), test.ShouldBeTrue)

	m := NewMask(4, 3, true)
	test.That(t, m.CountValid(), test.ShouldEqual, 12)
	m.Set(1, 2, false)
	m.Set(10, 10, false)
	test.That(t, m.Valid(1, 2), test.ShouldBeFalse)
	test.That(t, m.Valid(-1, 0), test.ShouldBeFalse)
	test.That(t, m.CountValid(), test.ShouldEqual, 11)

	other := NewMask(4, 3, true)
	other.Set(0, 0, false)
	both, err := m.And(other)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, both.CountValid(), test.ShouldEqual, 10)
	test.That(t, m.CountValid(), test.ShouldEqual, 11)

	_, err = m.And(NewMask(2, 2, true))
	test.That(t, err, test.ShouldNotBeNil)

	same, err := nilMask.And(m)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, same.CountValid(), test.ShouldEqual, 11)
}

func TestMaskCropAndRoll(t *testing.T) {
	m := NewMask(5, 2, true)
	m.Set(4, 0, false)

	rolled := m.Roll(2)
	test.That(t, rolled.Valid(1, 0), test.ShouldBeFalse)
	test.That(t, rolled.Valid(4, 0), test.ShouldBeTrue)
	test.That(t, rolled.Roll(-2).Valid(4, 0), test.ShouldBeFalse)

	cropped := m.Crop(image.Rect(3, 0, 7, 1))
	test.That(t, cropped.Width(), test.ShouldEqual, 4)
	test.That(t, cropped.Height(), test.ShouldEqual, 1)
	test.That(t, cropped.Valid(0, 0), test.ShouldBeTrue)
	test.That(t, cropped.Valid(1, 0), test.ShouldBeFalse)
	// outside the source frame
	test.That(t, cropped.Valid(3, 0), test.ShouldBeFalse)
}

func TestImageRollAndCrop(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 1))
	for x := 0; x < 4; x++ {
		img.Set(x, 0, color.NRGBA{uint8(x * 10), 0, 0, 255})
	}
	rolled := RollHorizontal(img, 1)
	r, _, _, _ := rolled.At(0, 0).RGBA()
	test.That(t, r>>8, test.ShouldEqual, uint32(30))
	r, _, _, _ = rolled.At(1, 0).RGBA()
	test.That(t, r>>8, test.ShouldEqual, uint32(0))

	cropped := Crop(img, image.Rect(2, 0, 4, 1))
	test.That(t, cropped.Bounds(), test.ShouldResemble, image.Rect(0, 0, 2, 1))
	r, _, _, _ = cropped.At(0, 0).RGBA()
	test.That(t, r>>8, test.ShouldEqual, uint32(20))

	gray := GrayLevels(img)
	test.That(t, len(gray), test.ShouldEqual, 4)
	test.That(t, gray[0], test.ShouldEqual, 0.)
}

func TestMaskResize(t *testing.T) {
	m := NewMask(2, 2, true)
	m.Set(1, 0, false)
	big := m.Resize(4, 4)
	test.That(t, big.CountValid(), test.ShouldEqual, 12)
	test.That(t, big.Valid(3, 1), test.ShouldBeFalse)
	test.That(t, big.Valid(1, 1), test.ShouldBeTrue)
	test.That(t, big.Resize(2, 2).Valid(1, 0), test.ShouldBeFalse)

	var nilMask *Mask
	test.That(t, nilMask.Resize(3, 3), test.ShouldBeNil)
}
