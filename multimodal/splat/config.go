package splat

import (
	"math"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/qianjinfighter/DeepViewAgg/multimodal/mapping"
	"github.com/qianjinfighter/DeepViewAgg/utils"
)

// Defaults used when a field is left at its zero value.
const (
	DefaultRMin           = 0.05
	DefaultRMax           = 8.0
	DefaultGrowthK        = 0.2
	DefaultGrowthR        = 10.0
	DefaultProjUpscale    = 1.0
	DefaultDepthTolerance = 0.05
)

// Config describes how points are splatted into views.
type Config struct {
	MappingKey string `json:"mapping_key,omitempty"`
	// RMin and RMax bound the splat radius in frame pixels.
	RMin float64 `json:"r_min,omitempty"`
	RMax float64 `json:"r_max,omitempty"`
	// GrowthK is the steepness of the radius curve and GrowthR the depth at which it saturates.
	GrowthK float64 `json:"growth_k,omitempty"`
	GrowthR float64 `json:"growth_r,omitempty"`
	// Exact selects distance weighted disks over uniform squares.
	Exact bool `json:"exact,omitempty"`
	// ProjUpscale rasterizes on a grid this many times finer than the frame.
	ProjUpscale    float64 `json:"proj_upscale,omitempty"`
	DepthTolerance float64 `json:"depth_tolerance,omitempty"`
	// MaxDepth ignores points further away, 0 means no limit.
	MaxDepth float64 `json:"max_depth,omitempty"`
	// Resolution is the [width, height] every view is resampled to before mapping.
	Resolution []int `json:"resolution,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	var errs error
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			errs = multierr.Append(errs, errors.Errorf(format, args...))
		}
	}
	check(cfg.RMin >= 0, "r_min must not be negative, got %f", cfg.RMin)
	check(cfg.RMax >= 0, "r_max must not be negative, got %f", cfg.RMax)
	check(cfg.RMax == 0 || cfg.RMax >= cfg.RMin, "r_max (%f) must not be smaller than r_min (%f)", cfg.RMax, cfg.RMin)
	check(cfg.GrowthK >= 0, "growth_k must not be negative, got %f", cfg.GrowthK)
	check(cfg.GrowthR >= 0, "growth_r must not be negative, got %f", cfg.GrowthR)
	check(cfg.ProjUpscale == 0 || cfg.ProjUpscale >= 1, "proj_upscale must be at least 1, got %f", cfg.ProjUpscale)
	check(cfg.DepthTolerance >= 0, "depth_tolerance must not be negative, got %f", cfg.DepthTolerance)
	check(cfg.MaxDepth >= 0, "max_depth must not be negative, got %f", cfg.MaxDepth)
	if cfg.Resolution != nil {
		check(len(cfg.Resolution) == 2, "resolution must be [width, height], got %v", cfg.Resolution)
		for _, v := range cfg.Resolution {
			check(v > 0, "resolution must be positive, got %v", cfg.Resolution)
		}
	}
	if errs != nil {
		return utils.NewConfigValidationError(path, errs)
	}
	return nil
}

func (cfg Config) withDefaults() Config {
	if cfg.MappingKey == "" {
		cfg.MappingKey = mapping.DefaultKey
	}
	if cfg.RMax == 0 {
		cfg.RMax = math.Max(DefaultRMax, cfg.RMin)
	}
	if cfg.RMin == 0 {
		cfg.RMin = math.Min(DefaultRMin, cfg.RMax)
	}
	if cfg.GrowthK == 0 {
		cfg.GrowthK = DefaultGrowthK
	}
	if cfg.GrowthR == 0 {
		cfg.GrowthR = DefaultGrowthR
	}
	if cfg.ProjUpscale == 0 {
		cfg.ProjUpscale = DefaultProjUpscale
	}
	if cfg.DepthTolerance == 0 {
		cfg.DepthTolerance = DefaultDepthTolerance
	}
	return cfg
}

// CorrectionFactor is the factor applying to the saturating curve 1-e^{-k*d} so that it
// reaches 1 at GrowthR: 1/(1-e^{-GrowthK*GrowthR}). The defaults (0.2, 10) give about 1.16.
func (cfg Config) CorrectionFactor() float64 {
	return 1 / (1 - math.Exp(-cfg.GrowthK*cfg.GrowthR))
}

// Radius returns the splat radius, in frame pixels, of a point seen at the given depth. It
// grows from RMin at the camera along a corrected saturating exponential and reaches RMax at
// GrowthR, staying there for every further depth.
func (cfg Config) Radius(depth float64) float64 {
	if depth <= 0 {
		return cfg.RMin
	}
	if depth >= cfg.GrowthR {
		return cfg.RMax
	}
	growth := (1 - math.Exp(-cfg.GrowthK*depth)) * cfg.CorrectionFactor()
	return cfg.RMin + (cfg.RMax-cfg.RMin)*math.Min(growth, 1)
}
