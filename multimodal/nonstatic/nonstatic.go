// Package nonstatic flags image pixels that show transient content, such as moving vehicles or
// pedestrians, so that they are not used as mapping targets.
//
// Views of the same frame size are compared pixel by pixel against a few reference views. A
// pixel whose grey level strays from the per-pixel median by more than a robust threshold is
// marked invalid in the view's mask.
package nonstatic

import (
	"context"
	"image"
	"math"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/qianjinfighter/DeepViewAgg/logging"
	"github.com/qianjinfighter/DeepViewAgg/multimodal"
	"github.com/qianjinfighter/DeepViewAgg/rimage"
	"github.com/qianjinfighter/DeepViewAgg/utils"
)

const (
	// DefaultNSample is the number of reference views per frame size.
	DefaultNSample = 5
	// DefaultThreshold is the robust z-score above which a pixel is non-static.
	DefaultThreshold = 3.0
	// DefaultMinDeviation is the smallest grey level deviation ever flagged.
	DefaultMinDeviation = 8.0

	// madToSigma scales a median absolute deviation to a normal standard deviation.
	madToSigma = 1.4826
)

// Config describes how non-static pixels are detected.
type Config struct {
	NSample      int     `json:"n_sample,omitempty"`
	Threshold    float64 `json:"threshold,omitempty"`
	MinDeviation float64 `json:"min_deviation,omitempty"`
	// MaskStatic also invalidates pixels that never change across the references, such as
	// a car hood, a watermark or black borders.
	MaskStatic bool `json:"mask_static,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.NSample < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("n_sample must be positive, got %d", cfg.NSample))
	}
	if cfg.Threshold < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("threshold must be positive, got %f", cfg.Threshold))
	}
	if cfg.MinDeviation < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("min_deviation must be positive, got %f", cfg.MinDeviation))
	}
	return nil
}

// Estimator computes non-static masks.
type Estimator struct {
	cfg    Config
	logger logging.Logger
}

// NewEstimator returns an estimator with defaults filled in.
func NewEstimator(cfg Config, logger logging.Logger) (*Estimator, error) {
	if err := cfg.Validate("non_static_mask"); err != nil {
		return nil, err
	}
	if cfg.NSample == 0 {
		cfg.NSample = DefaultNSample
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.MinDeviation == 0 {
		cfg.MinDeviation = DefaultMinDeviation
	}
	return &Estimator{cfg: cfg, logger: logger}, nil
}

// Apply returns new views whose masks additionally exclude non-static pixels. Views without
// pixels and frame sizes seen fewer than twice are passed through unchanged.
func (est *Estimator) Apply(ctx context.Context, views []*multimodal.View) ([]*multimodal.View, error) {
	out := make([]*multimodal.View, len(views))
	copy(out, views)

	groups := make(map[image.Point][]int)
	var order []image.Point
	for i, v := range views {
		if v.Pixels == nil {
			continue
		}
		size := v.Pixels.Bounds().Size()
		if _, ok := groups[size]; !ok {
			order = append(order, size)
		}
		groups[size] = append(groups[size], i)
	}

	for _, size := range order {
		members := groups[size]
		if len(members) < 2 {
			est.logger.Debugw("skipping non-static mask for lone frame size", "size", size, "views", len(members))
			continue
		}
		if err := est.applyGroup(ctx, size, views, members, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// references picks n evenly spaced members, always including the first and last.
func references(members []int, n int) []int {
	if n >= len(members) {
		return members
	}
	if n <= 1 {
		return members[:1]
	}
	refs := make([]int, n)
	for j := 0; j < n; j++ {
		refs[j] = members[j*(len(members)-1)/(n-1)]
	}
	return refs
}

// sampleStatistics returns the median and median absolute deviation of the reference gray
// levels of one pixel, and whether every reference saw the same level.
func sampleStatistics(samples stats.Float64Data) (median, mad float64, constant bool, err error) {
	if median, err = stats.Median(samples); err != nil {
		return 0, 0, false, err
	}
	if mad, err = stats.MedianAbsoluteDeviation(samples); err != nil {
		return 0, 0, false, err
	}
	minV, err := stats.Min(samples)
	if err != nil {
		return 0, 0, false, err
	}
	maxV, err := stats.Max(samples)
	if err != nil {
		return 0, 0, false, err
	}
	return median, mad, minV == maxV, nil
}

func (est *Estimator) applyGroup(
	ctx context.Context,
	size image.Point,
	views []*multimodal.View,
	members []int,
	out []*multimodal.View,
) error {
	gray := make(map[int][]float64, len(members))
	for _, i := range members {
		gray[i] = rimage.GrayLevels(views[i].Pixels)
	}
	refs := references(members, est.cfg.NSample)

	numPixels := size.X * size.Y
	medians := make([]float64, numPixels)
	tolerances := make([]float64, numPixels)
	static := make([]bool, numPixels)
	groupErrs := make([]error, utils.ParallelFactor)
	err := utils.GroupWorkParallel(
		ctx,
		numPixels,
		nil,
		func(groupNum, groupSize, from, to int) (utils.MemberWorkFunc, utils.GroupWorkDoneFunc) {
			samples := make(stats.Float64Data, len(refs))
			return func(memberNum, px int) {
				if groupErrs[groupNum] != nil {
					return
				}
				for j, ref := range refs {
					samples[j] = gray[ref][px]
				}
				median, mad, constant, err := sampleStatistics(samples)
				if err != nil {
					groupErrs[groupNum] = err
					return
				}
				medians[px] = median
				tolerances[px] = math.Max(est.cfg.Threshold*madToSigma*mad, est.cfg.MinDeviation)
				static[px] = constant
			}, nil
		},
	)
	if err != nil {
		return err
	}
	if err := multierr.Combine(groupErrs...); err != nil {
		return errors.Wrap(err, "cannot compute reference statistics")
	}

	g, _ := errgroup.WithContext(ctx)
	for _, i := range members {
		g.Go(func() error {
			view := views[i]
			computed := rimage.NewMask(size.X, size.Y, true)
			levels := gray[i]
			flagged := 0
			for px, level := range levels {
				dynamic := math.Abs(level-medians[px]) > tolerances[px]
				if dynamic || (est.cfg.MaskStatic && static[px]) {
					computed.Set(px%size.X, px/size.X, false)
					flagged++
				}
			}
			combined, err := view.Mask.And(computed)
			if err != nil {
				return errors.Wrapf(err, "cannot combine masks of view %q", view.Name)
			}
			updated := view.Clone()
			updated.Mask = combined
			out[i] = updated
			est.logger.Debugw("non-static mask computed", "view", view.Name, "flagged", flagged, "valid", combined.CountValid())
			return nil
		})
	}
	return g.Wait()
}
