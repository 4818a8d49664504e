package budget

import (
	"image"
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/qianjinfighter/DeepViewAgg/multimodal"
	"github.com/qianjinfighter/DeepViewAgg/multimodal/mapping"
	"github.com/qianjinfighter/DeepViewAgg/rimage"
	"github.com/qianjinfighter/DeepViewAgg/utils"
)

// Grouper assigns views to groups sharing one crop so that the summed cropped area stays small.
type Grouper struct {
	Padding int `json:"padding,omitempty"`
	MinSize int `json:"min_size,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (g *Grouper) Validate(path string) error {
	var errs error
	if g.Padding < 0 {
		errs = multierr.Append(errs, errors.Errorf("padding must not be negative, got %d", g.Padding))
	}
	if g.MinSize < 0 {
		errs = multierr.Append(errs, errors.Errorf("min_size must not be negative, got %d", g.MinSize))
	}
	if errs != nil {
		return utils.NewConfigValidationError(path, errs)
	}
	return nil
}

// grow widens [lo, hi) symmetrically to at least size, then slides it back inside [0, limit).
// The result is clipped to [0, limit) when limit is smaller than size.
func grow(lo, hi, size, limit int) (int, int) {
	if deficit := size - (hi - lo); deficit > 0 {
		lo -= deficit / 2
		hi += deficit - deficit/2
	}
	if lo < 0 {
		hi -= lo
		lo = 0
	}
	if hi > limit {
		lo -= hi - limit
		hi = limit
	}
	return max(lo, 0), hi
}

// CropFor returns the crop of a view: the bounding box of its mapped pixels, padded, grown to
// the minimum size and kept inside the view.
func (g *Grouper) CropFor(view *multimodal.View, m *mapping.Mapping, img int) (image.Rectangle, bool) {
	bounds, ok := m.PixelBounds(img)
	if !ok {
		return image.Rectangle{}, false
	}
	size := view.Size()
	r := bounds.Inset(-g.Padding).Intersect(image.Rectangle{Max: size})
	r.Min.X, r.Max.X = grow(r.Min.X, r.Max.X, g.MinSize, size.X)
	r.Min.Y, r.Max.Y = grow(r.Min.Y, r.Max.Y, g.MinSize, size.Y)
	return r, true
}

func area(r image.Rectangle) int {
	return r.Dx() * r.Dy()
}

// Group partitions the views that have mapped pixels. Views are visited from the largest crop
// down and join the first group of the same view size whose shared crop does not cost more
// than keeping the view apart. The result only depends on its input.
func (g *Grouper) Group(views []*multimodal.View, m *mapping.Mapping) []multimodal.ImageGroup {
	type ownCrop struct {
		idx  int
		crop image.Rectangle
	}
	var crops []ownCrop
	for i, v := range views {
		if crop, ok := g.CropFor(v, m, i); ok {
			crops = append(crops, ownCrop{idx: i, crop: crop})
		}
	}
	sort.SliceStable(crops, func(a, b int) bool {
		return area(crops[a].crop) > area(crops[b].crop)
	})

	var groups []multimodal.ImageGroup
	for _, c := range crops {
		size := views[c.idx].Size()
		joined := false
		for gi := range groups {
			group := &groups[gi]
			if views[group.Members[0]].Size() != size {
				continue
			}
			n := len(group.Members)
			union := group.Crop.Union(c.crop)
			if (n+1)*area(union) <= n*area(group.Crop)+area(c.crop) {
				group.Members = append(group.Members, c.idx)
				group.Crop = union
				joined = true
				break
			}
		}
		if !joined {
			groups = append(groups, multimodal.ImageGroup{Members: []int{c.idx}, Crop: c.crop})
		}
	}
	for gi := range groups {
		sort.Ints(groups[gi].Members)
	}
	return groups
}

// ApplyGroups crops the pixels, masks and mapped pixels of every grouped view to its group's
// crop. Views outside any group are returned unchanged.
func ApplyGroups(
	views []*multimodal.View,
	m *mapping.Mapping,
	groups []multimodal.ImageGroup,
) ([]*multimodal.View, *mapping.Mapping, error) {
	out := make([]*multimodal.View, len(views))
	copy(out, views)
	offsets := make(map[int]image.Point)
	for _, group := range groups {
		for _, idx := range group.Members {
			if idx < 0 || idx >= len(views) {
				return nil, nil, errors.Errorf("group references view %d of %d", idx, len(views))
			}
			if _, dup := offsets[idx]; dup {
				return nil, nil, errors.Errorf("view %d belongs to more than one group", idx)
			}
			view := views[idx]
			cropped := view.Clone()
			cropped.Pixels = rimage.Crop(view.Pixels, group.Crop)
			cropped.Mask = view.Mask.Crop(group.Crop)
			cropped.Crop = group.Crop.Add(view.Crop.Min)
			out[idx] = cropped
			offsets[idx] = group.Crop.Min
		}
	}
	var outside error
	cropped, err := m.Map(func(e mapping.Entry) mapping.Entry {
		if offset, ok := offsets[e.Image]; ok {
			e.Pixel = e.Pixel.Sub(offset)
			if !e.Pixel.In(out[e.Image].Bounds()) {
				outside = errors.Errorf("point %d maps outside the crop of view %d", e.PointID, e.Image)
			}
		}
		return e
	})
	if err != nil {
		return nil, nil, err
	}
	if outside != nil {
		return nil, nil, outside
	}
	return out, cropped, nil
}
