package consistency

import (
	"math"

	"github.com/pkg/errors"

	"github.com/qianjinfighter/DeepViewAgg/multimodal"
	"github.com/qianjinfighter/DeepViewAgg/multimodal/mapping"
	"github.com/qianjinfighter/DeepViewAgg/rimage"
	"github.com/qianjinfighter/DeepViewAgg/rimage/transform"
	"github.com/qianjinfighter/DeepViewAgg/utils"
)

// ErrNotPanoramic means a roll was requested on a view that does not wrap around.
var ErrNotPanoramic = errors.New("view is not a full panorama")

func checkRollable(view *multimodal.View) error {
	if err := view.Camera.CheckValid(); err != nil {
		return err
	}
	if view.Camera.Intrinsics.Model() != transform.Equirectangular {
		return errors.Wrapf(ErrNotPanoramic, "view %q uses a %s projection", view.Name, view.Camera.Intrinsics.Model())
	}
	// vertical crops keep the horizontal wrap
	if view.Crop.Min.X != 0 || view.Crop.Dx() != view.FrameSize().X {
		return errors.Wrapf(ErrNotPanoramic, "view %q is cropped to %v", view.Name, view.Crop)
	}
	return nil
}

// Rollable returns whether the view wraps horizontally and can be rolled.
func Rollable(view *multimodal.View) bool {
	return checkRollable(view) == nil
}

// CenterRollOffset returns the roll that moves the circular mean of the columns mapped in the
// image img of m to the middle of the view. Views without entries need no roll.
func CenterRollOffset(view *multimodal.View, m *mapping.Mapping, img int) (int, error) {
	if err := checkRollable(view); err != nil {
		return 0, err
	}
	width := view.Size().X
	var sin, cos float64
	for _, e := range m.ForImage(img) {
		theta := 2 * math.Pi * (float64(e.Pixel.X) + 0.5) / float64(width)
		sin += math.Sin(theta)
		cos += math.Cos(theta)
	}
	if sin == 0 && cos == 0 {
		return 0, nil
	}
	mean := math.Atan2(sin, cos)
	if mean < 0 {
		mean += 2 * math.Pi
	}
	meanCol := mean/(2*math.Pi)*float64(width) - 0.5
	return utils.PositiveMod(int(math.Round(float64(width)/2-meanCol)), width), nil
}

// CenterRoll shifts the pixels, mask and mapped columns of the image img by offset columns to
// the right, wrapping around the view width. The returned view records the accumulated roll.
func CenterRoll(view *multimodal.View, m *mapping.Mapping, img, offset int) (*multimodal.View, *mapping.Mapping, error) {
	if err := checkRollable(view); err != nil {
		return nil, nil, err
	}
	if img < 0 || img >= m.NumImages() {
		return nil, nil, errors.Errorf("cannot roll image %d of %d", img, m.NumImages())
	}
	width := view.Size().X
	offset = utils.PositiveMod(offset, width)

	out := view.Clone()
	out.Roll = utils.PositiveMod(view.Roll+offset, width)
	if offset == 0 {
		return out, m, nil
	}
	out.Pixels = rimage.RollHorizontal(view.Pixels, offset)
	out.Mask = view.Mask.Roll(offset)

	rolled, err := m.Map(func(e mapping.Entry) mapping.Entry {
		if e.Image == img {
			e.Pixel.X = utils.PositiveMod(e.Pixel.X+offset, width)
		}
		return e
	})
	if err != nil {
		return nil, nil, err
	}
	return out, rolled, nil
}

// Unroll undoes every roll applied to the view.
func Unroll(view *multimodal.View, m *mapping.Mapping, img int) (*multimodal.View, *mapping.Mapping, error) {
	return CenterRoll(view, m, img, -view.Roll)
}
