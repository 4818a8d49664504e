// Package rimage holds pixel-level helpers for the views being mapped: validity masks,
// cropping and panoramic rolling.
package rimage

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/qianjinfighter/DeepViewAgg/utils"
)

// Crop returns the part of img inside r, translated so that r.Min becomes (0,0).
func Crop(img image.Image, r image.Rectangle) image.Image {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	return imaging.Crop(img, r.Add(b.Min))
}

// RollHorizontal returns a copy of img whose columns are shifted right by dx, wrapping around
// the width. This is the pixel counterpart of rolling a panoramic frame.
func RollHorizontal(img image.Image, dx int) image.Image {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 {
		return imaging.Clone(img)
	}
	dx = utils.PositiveMod(dx, w)
	if dx == 0 {
		return imaging.Clone(img)
	}
	dst := imaging.New(w, h, color.NRGBA{})
	right := imaging.Crop(img, image.Rect(b.Min.X+w-dx, b.Min.Y, b.Max.X, b.Max.Y))
	left := imaging.Crop(img, image.Rect(b.Min.X, b.Min.Y, b.Min.X+w-dx, b.Max.Y))
	dst = imaging.Paste(dst, right, image.Pt(0, 0))
	dst = imaging.Paste(dst, left, image.Pt(dx, 0))
	return dst
}

// GrayLevels returns the grey intensity of every pixel in row-major order, in [0, 255].
func GrayLevels(img image.Image) []float64 {
	gray := imaging.Grayscale(img)
	b := gray.Bounds()
	out := make([]float64, 0, b.Dx()*b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out = append(out, float64(gray.Pix[y*gray.Stride+x*4]))
		}
	}
	return out
}

// Resize returns img resampled to width x height.
func Resize(img image.Image, width, height int) image.Image {
	if img == nil {
		return nil
	}
	if b := img.Bounds(); b.Dx() == width && b.Dy() == height {
		return img
	}
	return imaging.Resize(img, width, height, imaging.Lanczos)
}
