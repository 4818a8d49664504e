package rimage

import (
	"image"

	"github.com/pkg/errors"

	"github.com/qianjinfighter/DeepViewAgg/utils"
)

// Mask is a per-pixel validity grid. True means the pixel may be used for mapping.
// A nil *Mask is treated as fully valid by every read method.
type Mask struct {
	width, height int
	valid         []bool
}

// NewMask returns a width x height mask with every pixel set to fill.
func NewMask(width, height int, fill bool) *Mask {
	m := &Mask{width: width, height: height, valid: make([]bool, width*height)}
	if fill {
		for i := range m.valid {
			m.valid[i] = true
		}
	}
	return m
}

// Width returns the width of the mask.
func (m *Mask) Width() int {
	return m.width
}

// Height returns the height of the mask.
func (m *Mask) Height() int {
	return m.height
}

// Bounds returns the rectangle covered by the mask.
func (m *Mask) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.width, m.height)
}

// Valid returns whether the pixel is usable. Out-of-range pixels are never valid.
func (m *Mask) Valid(x, y int) bool {
	if m == nil {
		return true
	}
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		return false
	}
	return m.valid[y*m.width+x]
}

// Set marks the pixel. Out-of-range pixels are ignored.
func (m *Mask) Set(x, y int, valid bool) {
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		return
	}
	m.valid[y*m.width+x] = valid
}

// CountValid returns the number of valid pixels.
func (m *Mask) CountValid() int {
	n := 0
	for _, v := range m.valid {
		if v {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the mask.
func (m *Mask) Clone() *Mask {
	if m == nil {
		return nil
	}
	out := &Mask{width: m.width, height: m.height, valid: make([]bool, len(m.valid))}
	copy(out.valid, m.valid)
	return out
}

// And returns a new mask valid where both masks are valid. A nil operand acts as all-valid.
func (m *Mask) And(other *Mask) (*Mask, error) {
	switch {
	case m == nil:
		return other.Clone(), nil
	case other == nil:
		return m.Clone(), nil
	case m.width != other.width || m.height != other.height:
		return nil, errors.Errorf("mask dimensions don't match (%d,%d) != (%d,%d)",
			m.width, m.height, other.width, other.height)
	}
	out := m.Clone()
	for i, v := range other.valid {
		out.valid[i] = out.valid[i] && v
	}
	return out, nil
}

// Crop returns a new mask covering r, with r.Min becoming (0,0). Parts of r outside the mask
// are invalid.
func (m *Mask) Crop(r image.Rectangle) *Mask {
	if m == nil {
		return nil
	}
	out := NewMask(r.Dx(), r.Dy(), false)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			out.Set(x-r.Min.X, y-r.Min.Y, m.Valid(x, y))
		}
	}
	return out
}

// Roll returns a new mask whose columns are shifted right by dx, wrapping around the width.
func (m *Mask) Roll(dx int) *Mask {
	if m == nil {
		return nil
	}
	out := NewMask(m.width, m.height, false)
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			out.valid[y*m.width+utils.PositiveMod(x+dx, m.width)] = m.valid[y*m.width+x]
		}
	}
	return out
}

// Resize returns the mask resampled to width x height with nearest neighbour sampling.
func (m *Mask) Resize(width, height int) *Mask {
	if m == nil {
		return nil
	}
	if m.width == width && m.height == height {
		return m.Clone()
	}
	out := NewMask(width, height, false)
	for y := 0; y < height; y++ {
		sy := y * m.height / height
		for x := 0; x < width; x++ {
			sx := x * m.width / width
			out.valid[y*width+x] = m.valid[sy*m.width+sx]
		}
	}
	return out
}
