package budget

import (
	"math"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/qianjinfighter/DeepViewAgg/multimodal"
	"github.com/qianjinfighter/DeepViewAgg/multimodal/mapping"
	"github.com/qianjinfighter/DeepViewAgg/utils"
)

// CreditUnit is what a credit counts.
type CreditUnit string

const (
	// Images counts retained views.
	Images CreditUnit = "images"
	// Pixels counts retained (cropped) pixels, in multiples of a full reference frame.
	Pixels CreditUnit = "pixels"
)

// DefaultKCoverage is the number of observations each point should keep.
const DefaultKCoverage = 2

// Credit bounds how much of a sample's imagery may be kept.
type Credit struct {
	N    float64    `json:"n_img"`
	Unit CreditUnit `json:"unit,omitempty"`
	// ReferenceArea is the pixel area of one full frame in pixel mode. Zero uses the largest
	// frame among the views.
	ReferenceArea int `json:"reference_area,omitempty"`
}

// Selector greedily spends a credit on the views that add the most missing coverage.
type Selector struct {
	Credit    Credit `json:"credit"`
	KCoverage int    `json:"k_coverage,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (s *Selector) Validate(path string) error {
	var errs error
	if s.Credit.N < 0 {
		errs = multierr.Append(errs, errors.Errorf("n_img must not be negative, got %f", s.Credit.N))
	}
	switch s.Credit.Unit {
	case "", Images, Pixels:
	default:
		errs = multierr.Append(errs, errors.Errorf("unknown credit unit %q", s.Credit.Unit))
	}
	if s.Credit.ReferenceArea < 0 {
		errs = multierr.Append(errs, errors.Errorf("reference_area must not be negative, got %d", s.Credit.ReferenceArea))
	}
	if s.KCoverage < 0 {
		errs = multierr.Append(errs, errors.Errorf("k_coverage must not be negative, got %d", s.KCoverage))
	}
	if errs != nil {
		return utils.NewConfigValidationError(path, errs)
	}
	return nil
}

func (s *Selector) k() int {
	if s.KCoverage == 0 {
		return DefaultKCoverage
	}
	return s.KCoverage
}

// budget returns the credit in the unit views are charged in, and the cost of each view.
func (s *Selector) budget(views []*multimodal.View) (float64, []float64) {
	costs := make([]float64, len(views))
	if s.Credit.Unit != Pixels {
		for i := range costs {
			costs[i] = 1
		}
		return math.Floor(s.Credit.N), costs
	}
	ref := s.Credit.ReferenceArea
	for i, v := range views {
		size := v.Size()
		costs[i] = float64(size.X * size.Y)
		if s.Credit.ReferenceArea == 0 {
			frame := v.FrameSize()
			ref = max(ref, frame.X*frame.Y)
		}
	}
	return s.Credit.N * float64(ref), costs
}

// Select returns, in selection order, the views to keep. Each step picks the view covering the
// most points still seen fewer than KCoverage times, preferring views with more distinct
// mapped pixels and then lower indices. Selection stops when the credit cannot pay for the
// best view or no view adds coverage. This is the usual greedy approximation of set cover.
func (s *Selector) Select(views []*multimodal.View, m *mapping.Mapping) []int {
	if len(views) == 0 {
		return nil
	}
	k := s.k()
	credit, costs := s.budget(views)
	pixelCounts := m.PixelCounts()
	points := make([][]int64, len(views))
	for i := range views {
		points[i] = m.ImagePoints(i)
	}

	coverage := make(map[int64]int)
	selected := make([]bool, len(views))
	var order []int
	spent := 0.0
	for {
		best, bestGain := -1, 0
		for i := range views {
			if selected[i] {
				continue
			}
			gain := 0
			for _, id := range points[i] {
				if coverage[id] < k {
					gain++
				}
			}
			if gain == 0 {
				continue
			}
			if best == -1 || gain > bestGain || (gain == bestGain && pixelCounts[i] > pixelCounts[best]) {
				best, bestGain = i, gain
			}
		}
		if best == -1 || spent+costs[best] > credit {
			return order
		}
		selected[best] = true
		spent += costs[best]
		order = append(order, best)
		for _, id := range points[best] {
			coverage[id]++
		}
	}
}
