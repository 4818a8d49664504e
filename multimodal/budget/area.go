// Package budget picks, per sample, a small set of cropped views that still observe every
// point often enough. It filters out views that map too few pixels, groups the rest under
// shared crops and greedily spends a credit on the views that add the most coverage.
package budget

import (
	"image"
	"math"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/qianjinfighter/DeepViewAgg/multimodal"
	"github.com/qianjinfighter/DeepViewAgg/multimodal/mapping"
	"github.com/qianjinfighter/DeepViewAgg/utils"
)

// AreaFilter drops views that map too few distinct pixels to be worth their memory.
type AreaFilter struct {
	// MinRatio is the smallest usable fraction of the view's pixels.
	MinRatio float64 `json:"min_ratio,omitempty"`
	// MinPixels is the smallest usable number of pixels.
	MinPixels int `json:"min_pixels,omitempty"`
	// Box, as [x0, y0, x1, y1], restricts the pixels that count.
	Box []int `json:"box,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (f *AreaFilter) Validate(path string) error {
	var errs error
	if f.MinRatio < 0 || f.MinRatio > 1 {
		errs = multierr.Append(errs, errors.Errorf("min_ratio must be within [0, 1], got %f", f.MinRatio))
	}
	if f.MinPixels < 0 {
		errs = multierr.Append(errs, errors.Errorf("min_pixels must not be negative, got %d", f.MinPixels))
	}
	if f.Box != nil {
		if len(f.Box) != 4 {
			errs = multierr.Append(errs, errors.Errorf("box must be [x0, y0, x1, y1], got %v", f.Box))
		} else if f.box().Empty() {
			errs = multierr.Append(errs, errors.Errorf("box %v is empty", f.Box))
		}
	}
	if errs != nil {
		return utils.NewConfigValidationError(path, errs)
	}
	return nil
}

func (f *AreaFilter) box() image.Rectangle {
	if len(f.Box) != 4 {
		return image.Rectangle{}
	}
	return image.Rect(f.Box[0], f.Box[1], f.Box[2], f.Box[3])
}

// Usefulness returns the number of distinct valid pixels the view maps, counting only those
// inside Box when it is set.
func (f *AreaFilter) Usefulness(view *multimodal.View, m *mapping.Mapping, img int) int {
	box, useBox := f.box(), len(f.Box) == 4
	n := 0
	for px := range m.Pixels(img) {
		if useBox && !px.In(box) {
			continue
		}
		if view.Valid(px.X, px.Y) {
			n++
		}
	}
	return n
}

// Threshold returns the smallest usefulness a view of the given size must reach.
func (f *AreaFilter) Threshold(size image.Point) int {
	byRatio := int(math.Ceil(f.MinRatio * float64(size.X*size.Y)))
	return max(f.MinPixels, byRatio, 1)
}

// Select returns the indices of the views that are useful enough, in order.
func (f *AreaFilter) Select(views []*multimodal.View, m *mapping.Mapping) []int {
	var keep []int
	for i, v := range views {
		if f.Usefulness(v, m, i) >= f.Threshold(v.Size()) {
			keep = append(keep, i)
		}
	}
	return keep
}
