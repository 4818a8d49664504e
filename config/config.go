// Package config defines the configuration of the mapping preprocessing pipelines and how it
// is read and validated.
package config

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/qianjinfighter/DeepViewAgg/utils"
)

// Branch names one of the pipelines described by a config.
type Branch string

// The pipelines of a config.
const (
	BranchPre   Branch = "pre"
	BranchTrain Branch = "train"
	BranchVal   Branch = "val"
	BranchTest  Branch = "test"
)

// Branches lists every branch in the order samples flow through them.
var Branches = []Branch{BranchPre, BranchTrain, BranchVal, BranchTest}

// Key returns the configuration key holding the branch's stages.
func (b Branch) Key() string {
	if b == BranchPre {
		return "pre_transform"
	}
	return string(b) + "_transforms"
}

// Transformation is one named stage of a pipeline with its parameters.
type Transformation struct {
	Type       string             `json:"type"`
	Attributes utils.AttributeMap `json:"attributes,omitempty"`
}

// Validate ensures all parts of the transformation are valid.
func (t *Transformation) Validate(path string) error {
	if t.Type == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "type")
	}
	return nil
}

// ImageModality configures how points are mapped into images.
type ImageModality struct {
	MappingKey       string  `json:"mapping_key,omitempty"`
	ProjUpscale      float64 `json:"proj_upscale,omitempty"`
	RMax             float64 `json:"r_max,omitempty"`
	RMin             float64 `json:"r_min,omitempty"`
	GrowthK          float64 `json:"growth_k,omitempty"`
	GrowthR          float64 `json:"growth_r,omitempty"`
	TrainPixelCredit float64 `json:"train_pixel_credit,omitempty"`
	TestPixelCredit  float64 `json:"test_pixel_credit,omitempty"`
	KCoverage        int     `json:"k_coverage,omitempty"`
}

// Validate ensures all parts of the modality are valid.
func (im *ImageModality) Validate(path string) error {
	var errs error
	if im.ProjUpscale != 0 && im.ProjUpscale < 1 {
		errs = multierr.Append(errs, errors.Errorf("proj_upscale must be at least 1, got %f", im.ProjUpscale))
	}
	if im.RMin < 0 || im.RMax < 0 {
		errs = multierr.Append(errs, errors.Errorf("splat radii must not be negative, got [%f, %f]", im.RMin, im.RMax))
	}
	if im.RMax != 0 && im.RMax < im.RMin {
		errs = multierr.Append(errs, errors.Errorf("r_max (%f) must not be smaller than r_min (%f)", im.RMax, im.RMin))
	}
	if im.GrowthK < 0 || im.GrowthR < 0 {
		errs = multierr.Append(errs, errors.New("growth_k and growth_r must not be negative"))
	}
	if im.TrainPixelCredit < 0 || im.TestPixelCredit < 0 {
		errs = multierr.Append(errs, errors.New("pixel credits must not be negative"))
	}
	if im.KCoverage < 0 {
		errs = multierr.Append(errs, errors.Errorf("k_coverage must not be negative, got %d", im.KCoverage))
	}
	if errs != nil {
		return utils.NewConfigValidationError(path, errs)
	}
	return nil
}

// Modalities holds the per-modality settings.
type Modalities struct {
	Image *ImageModality `json:"image,omitempty"`
}

// Config describes the preprocessing of a multimodal dataset.
type Config struct {
	ConfigFilePath string `json:"-"`

	Resolution3D     float64 `json:"resolution_3d,omitempty"`
	Resolution2D     []int   `json:"resolution_2d,omitempty"`
	Padding2D        int     `json:"padding_2d,omitempty"`
	MinSize2D        int     `json:"min_size_2d,omitempty"`
	ExactSplatting2D bool    `json:"exact_splatting_2d,omitempty"`

	Modalities Modalities `json:"modalities"`

	PreTransform    []Transformation `json:"pre_transform,omitempty"`
	TrainTransforms []Transformation `json:"train_transforms,omitempty"`
	TestTransforms  []Transformation `json:"test_transforms,omitempty"`
	// ValTransforms falls back to TestTransforms when absent.
	ValTransforms []Transformation `json:"val_transforms,omitempty"`
}

// Image returns the image modality, or an empty one when unset.
func (c *Config) Image() ImageModality {
	if c.Modalities.Image == nil {
		return ImageModality{}
	}
	return *c.Modalities.Image
}

// Transforms returns the stages of a branch.
func (c *Config) Transforms(branch Branch) ([]Transformation, error) {
	switch branch {
	case BranchPre:
		return c.PreTransform, nil
	case BranchTrain:
		return c.TrainTransforms, nil
	case BranchVal:
		if c.ValTransforms == nil {
			return c.TestTransforms, nil
		}
		return c.ValTransforms, nil
	case BranchTest:
		return c.TestTransforms, nil
	default:
		return nil, errors.Errorf("unknown branch %q", branch)
	}
}

// PixelCredit returns the credit configured for a branch. Pre-processing has no credit.
func (c *Config) PixelCredit(branch Branch) float64 {
	switch branch {
	case BranchTrain:
		return c.Image().TrainPixelCredit
	case BranchVal, BranchTest:
		return c.Image().TestPixelCredit
	default:
		return 0
	}
}

// Validate returns every problem found in the config.
func (c *Config) Validate() error {
	var errs error
	if c.Resolution3D < 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError("resolution_3d",
			errors.Errorf("must not be negative, got %f", c.Resolution3D)))
	}
	if c.Resolution2D != nil && (len(c.Resolution2D) != 2 || c.Resolution2D[0] <= 0 || c.Resolution2D[1] <= 0) {
		errs = multierr.Append(errs, utils.NewConfigValidationError("resolution_2d",
			errors.Errorf("must be a positive [width, height], got %v", c.Resolution2D)))
	}
	if c.Padding2D < 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError("padding_2d",
			errors.Errorf("must not be negative, got %d", c.Padding2D)))
	}
	if c.MinSize2D < 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError("min_size_2d",
			errors.Errorf("must not be negative, got %d", c.MinSize2D)))
	}
	if c.Modalities.Image != nil {
		errs = multierr.Append(errs, c.Modalities.Image.Validate("modalities.image"))
	}
	for _, branch := range Branches {
		// every listed branch is known
		//nolint:errcheck
		transforms, _ := c.Transforms(branch)
		for i := range transforms {
			errs = multierr.Append(errs, transforms[i].Validate(fmt.Sprintf("%s[%d]", branch.Key(), i)))
		}
	}
	return errs
}
