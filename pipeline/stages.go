package pipeline

import (
	"context"

	"github.com/pkg/errors"

	"github.com/qianjinfighter/DeepViewAgg/multimodal"
	"github.com/qianjinfighter/DeepViewAgg/multimodal/budget"
	"github.com/qianjinfighter/DeepViewAgg/multimodal/consistency"
	"github.com/qianjinfighter/DeepViewAgg/multimodal/features"
	"github.com/qianjinfighter/DeepViewAgg/multimodal/nonstatic"
	"github.com/qianjinfighter/DeepViewAgg/multimodal/splat"
	"github.com/qianjinfighter/DeepViewAgg/pointcloud"
	"github.com/qianjinfighter/DeepViewAgg/utils"
)

// Names of the built-in stages.
const (
	GridSampling3D             = "grid_sampling_3d"
	NonStaticMask              = "non_static_mask"
	MapImages                  = "map_images"
	MappingFeatures            = "mapping_features"
	CenterRoll                 = "center_roll"
	PickImagesFromMappingArea  = "pick_images_from_mapping_area"
	CropImageGroups            = "crop_image_groups"
	PickImagesFromMemoryCredit = "pick_images_from_memory_credit"
	BudgetImages               = "budget_images"
	VerifyMapping              = "verify_mapping"
)

func init() {
	RegisterStage(GridSampling3D, StageRegistration{
		Constructor: newGridSampling,
		Description: "subsample the point cloud on a voxel grid and reconcile the mapping",
		Attributes:  &gridSamplingAttrs{},
	})
	RegisterStage(NonStaticMask, StageRegistration{
		Constructor: newNonStaticMask,
		Description: "mask image pixels showing transient content",
		Attributes:  &nonstatic.Config{},
	})
	RegisterStage(MapImages, StageRegistration{
		Constructor: newMapImages,
		Description: "splat points into views to build the mapping",
		Attributes:  &splat.Config{},
	})
	RegisterStage(MappingFeatures, StageRegistration{
		Constructor: newMappingFeatures,
		Description: "annotate mapping entries with density and occlusion",
		Attributes:  &features.Config{},
	})
	RegisterStage(CenterRoll, StageRegistration{
		Constructor: newCenterRoll,
		Description: "roll full-width panoramic views so their mapped region is centered",
	})
	RegisterStage(PickImagesFromMappingArea, StageRegistration{
		Constructor: newAreaFilter,
		Description: "drop views mapping too few pixels",
		Attributes:  &budget.AreaFilter{},
	})
	RegisterStage(CropImageGroups, StageRegistration{
		Constructor: newCropImageGroups,
		Description: "group views under shared crops and crop them",
		Attributes:  &budget.Grouper{},
	})
	RegisterStage(PickImagesFromMemoryCredit, StageRegistration{
		Constructor: newCreditSelection,
		Description: "greedily keep the views adding the most coverage within the credit",
		Attributes:  &creditAttrs{},
	})
	RegisterStage(BudgetImages, StageRegistration{
		Constructor: newBudgetImages,
		Description: "filter, crop and select views in one stage",
		Attributes:  &budget.Config{},
	})
	RegisterStage(VerifyMapping, StageRegistration{
		Constructor: newVerifyMapping,
		Description: "fail when the mapping references points missing from the cloud",
	})
}

type stageFunc struct {
	name  string
	apply func(ctx context.Context, sample *multimodal.Sample) (*multimodal.Sample, error)
}

func (s *stageFunc) Name() string {
	return s.name
}

func (s *stageFunc) Apply(ctx context.Context, sample *multimodal.Sample) (*multimodal.Sample, error) {
	return s.apply(ctx, sample)
}

func requireMapping(sample *multimodal.Sample) error {
	if sample.Mapping == nil {
		return errors.Errorf("sample has no mapping, add %s earlier in the pipeline", MapImages)
	}
	return nil
}

func noAttributes(name string, attributes utils.AttributeMap) error {
	if len(attributes) > 0 {
		return errors.Errorf("%s takes no attributes, got %v", name, attributes)
	}
	return nil
}

type gridSamplingAttrs struct {
	Size float64 `json:"size,omitempty"`
}

func newGridSampling(sc StageContext, attributes utils.AttributeMap) (Stage, error) {
	attrs, err := utils.TransformAttributeMap[*gridSamplingAttrs](attributes)
	if err != nil {
		return nil, err
	}
	size := attrs.Size
	if size == 0 {
		size = sc.Config.Resolution3D
	}
	if size <= 0 {
		return nil, errors.Errorf("%s needs a positive size or resolution_3d", GridSampling3D)
	}
	return &stageFunc{name: GridSampling3D, apply: func(ctx context.Context, sample *multimodal.Sample) (*multimodal.Sample, error) {
		cloud, merges, err := pointcloud.GridSample(sample.Cloud, size)
		if err != nil {
			return nil, err
		}
		out := sample.Clone()
		out.Cloud = cloud
		out.Merges = consistency.ComposeMerges(sample.Merges, merges)
		if sample.Mapping != nil {
			if out.Mapping, err = consistency.Reconcile(sample.Mapping, cloud, merges); err != nil {
				return nil, err
			}
		}
		sc.Logger.CDebugw(ctx, "grid sampled", "before", sample.Cloud.Size(), "after", cloud.Size(), "size", size)
		return out, nil
	}}, nil
}

func newNonStaticMask(sc StageContext, attributes utils.AttributeMap) (Stage, error) {
	cfg, err := utils.TransformAttributeMap[*nonstatic.Config](attributes)
	if err != nil {
		return nil, err
	}
	est, err := nonstatic.NewEstimator(*cfg, sc.Logger)
	if err != nil {
		return nil, err
	}
	return &stageFunc{name: NonStaticMask, apply: func(ctx context.Context, sample *multimodal.Sample) (*multimodal.Sample, error) {
		views, err := est.Apply(ctx, sample.Views)
		if err != nil {
			return nil, err
		}
		out := sample.Clone()
		out.Views = views
		return out, nil
	}}, nil
}

// splatConfig overlays the stage attributes on the modality settings of the config.
func splatConfig(sc StageContext, attributes utils.AttributeMap) (splat.Config, error) {
	cfg, err := utils.TransformAttributeMap[*splat.Config](attributes)
	if err != nil {
		return splat.Config{}, err
	}
	image := sc.Config.Image()
	if cfg.MappingKey == "" {
		cfg.MappingKey = image.MappingKey
	}
	if cfg.RMin == 0 {
		cfg.RMin = image.RMin
	}
	if cfg.RMax == 0 {
		cfg.RMax = image.RMax
	}
	if cfg.GrowthK == 0 {
		cfg.GrowthK = image.GrowthK
	}
	if cfg.GrowthR == 0 {
		cfg.GrowthR = image.GrowthR
	}
	if cfg.ProjUpscale == 0 {
		cfg.ProjUpscale = image.ProjUpscale
	}
	if !attributes.Has("exact") {
		cfg.Exact = sc.Config.ExactSplatting2D
	}
	if cfg.Resolution == nil {
		cfg.Resolution = sc.Config.Resolution2D
	}
	return *cfg, nil
}

func newMapImages(sc StageContext, attributes utils.AttributeMap) (Stage, error) {
	cfg, err := splatConfig(sc, attributes)
	if err != nil {
		return nil, err
	}
	mapper, err := splat.NewMapper(cfg, sc.Logger)
	if err != nil {
		return nil, err
	}
	return &stageFunc{name: MapImages, apply: func(ctx context.Context, sample *multimodal.Sample) (*multimodal.Sample, error) {
		views, m, err := mapper.Map(ctx, sample.Cloud, sample.Views)
		if err != nil {
			return nil, err
		}
		out := sample.Clone()
		out.Views = views
		out.Mapping = m
		out.Merges = nil
		out.Groups = nil
		out.Unmapped = budget.Unmapped(sample.Cloud, m)
		return out, nil
	}}, nil
}

func newMappingFeatures(sc StageContext, attributes utils.AttributeMap) (Stage, error) {
	cfg, err := utils.TransformAttributeMap[*features.Config](attributes)
	if err != nil {
		return nil, err
	}
	est, err := features.NewEstimator(*cfg, sc.Logger)
	if err != nil {
		return nil, err
	}
	return &stageFunc{name: MappingFeatures, apply: func(ctx context.Context, sample *multimodal.Sample) (*multimodal.Sample, error) {
		if err := requireMapping(sample); err != nil {
			return nil, err
		}
		m, err := est.Annotate(ctx, sample.Cloud, sample.Mapping)
		if err != nil {
			return nil, err
		}
		out := sample.Clone()
		out.Mapping = m
		return out, nil
	}}, nil
}

func newCenterRoll(sc StageContext, attributes utils.AttributeMap) (Stage, error) {
	if err := noAttributes(CenterRoll, attributes); err != nil {
		return nil, err
	}
	return &stageFunc{name: CenterRoll, apply: func(ctx context.Context, sample *multimodal.Sample) (*multimodal.Sample, error) {
		if err := requireMapping(sample); err != nil {
			return nil, err
		}
		out := sample.Clone()
		for i, view := range sample.Views {
			if !consistency.Rollable(view) {
				continue
			}
			offset, err := consistency.CenterRollOffset(view, out.Mapping, i)
			if err != nil {
				return nil, err
			}
			if out.Views[i], out.Mapping, err = consistency.CenterRoll(view, out.Mapping, i, offset); err != nil {
				return nil, err
			}
			sc.Logger.CDebugw(ctx, "rolled panorama", "view", view.Name, "offset", offset)
		}
		return out, nil
	}}, nil
}

// subsetSample keeps the listed views of a sample.
func subsetSample(sample *multimodal.Sample, keep []int) (*multimodal.Sample, error) {
	views, m, groups, err := budget.Subset(sample.Views, sample.Mapping, sample.Groups, keep)
	if err != nil {
		return nil, err
	}
	out := sample.Clone()
	out.Views = views
	out.Mapping = m
	out.Groups = groups
	out.Unmapped = budget.Unmapped(sample.Cloud, m)
	return out, nil
}

func newAreaFilter(sc StageContext, attributes utils.AttributeMap) (Stage, error) {
	f, err := utils.TransformAttributeMap[*budget.AreaFilter](attributes)
	if err != nil {
		return nil, err
	}
	if err := f.Validate(PickImagesFromMappingArea); err != nil {
		return nil, err
	}
	return &stageFunc{name: PickImagesFromMappingArea, apply: func(ctx context.Context, sample *multimodal.Sample) (*multimodal.Sample, error) {
		if err := requireMapping(sample); err != nil {
			return nil, err
		}
		keep := f.Select(sample.Views, sample.Mapping)
		sc.Logger.CDebugw(ctx, "filtered views by mapped area", "before", len(sample.Views), "after", len(keep))
		return subsetSample(sample, keep)
	}}, nil
}

func grouper(sc StageContext, attributes utils.AttributeMap) (*budget.Grouper, error) {
	g, err := utils.TransformAttributeMap[*budget.Grouper](attributes)
	if err != nil {
		return nil, err
	}
	if !attributes.Has("padding") {
		g.Padding = sc.Config.Padding2D
	}
	if !attributes.Has("min_size") {
		g.MinSize = sc.Config.MinSize2D
	}
	return g, g.Validate(CropImageGroups)
}

func newCropImageGroups(sc StageContext, attributes utils.AttributeMap) (Stage, error) {
	g, err := grouper(sc, attributes)
	if err != nil {
		return nil, err
	}
	return &stageFunc{name: CropImageGroups, apply: func(ctx context.Context, sample *multimodal.Sample) (*multimodal.Sample, error) {
		if err := requireMapping(sample); err != nil {
			return nil, err
		}
		groups := g.Group(sample.Views, sample.Mapping)
		views, m, err := budget.ApplyGroups(sample.Views, sample.Mapping, groups)
		if err != nil {
			return nil, err
		}
		out := sample.Clone()
		out.Views = views
		out.Mapping = m
		out.Groups = groups
		sc.Logger.CDebugw(ctx, "cropped views", "views", len(views), "groups", len(groups))
		return out, nil
	}}, nil
}

type creditAttrs struct {
	NImg          float64           `json:"n_img,omitempty"`
	Unit          budget.CreditUnit `json:"unit,omitempty"`
	ReferenceArea int               `json:"reference_area,omitempty"`
	KCoverage     int               `json:"k_coverage,omitempty"`
}

// selector builds the credit selector of a branch. Without n_img the branch's pixel credit
// is spent in full frames of resolution_2d.
func selector(sc StageContext, attrs *creditAttrs, attributes utils.AttributeMap) (*budget.Selector, error) {
	s := &budget.Selector{
		Credit: budget.Credit{
			N:             attrs.NImg,
			Unit:          attrs.Unit,
			ReferenceArea: attrs.ReferenceArea,
		},
		KCoverage: attrs.KCoverage,
	}
	if !attributes.Has("n_img") {
		s.Credit.N = sc.Config.PixelCredit(sc.Branch)
		if s.Credit.Unit == "" {
			s.Credit.Unit = budget.Pixels
		}
		if s.Credit.N == 0 {
			return nil, errors.Errorf("%s needs n_img or a %s pixel credit", PickImagesFromMemoryCredit, sc.Branch)
		}
	}
	if s.KCoverage == 0 {
		s.KCoverage = sc.Config.Image().KCoverage
	}
	if res := sc.Config.Resolution2D; s.Credit.ReferenceArea == 0 && len(res) == 2 {
		s.Credit.ReferenceArea = res[0] * res[1]
	}
	if err := s.Validate(PickImagesFromMemoryCredit); err != nil {
		return nil, err
	}
	return s, nil
}

func newCreditSelection(sc StageContext, attributes utils.AttributeMap) (Stage, error) {
	attrs, err := utils.TransformAttributeMap[*creditAttrs](attributes)
	if err != nil {
		return nil, err
	}
	s, err := selector(sc, attrs, attributes)
	if err != nil {
		return nil, err
	}
	return &stageFunc{name: PickImagesFromMemoryCredit, apply: func(ctx context.Context, sample *multimodal.Sample) (*multimodal.Sample, error) {
		if err := requireMapping(sample); err != nil {
			return nil, err
		}
		keep := s.Select(sample.Views, sample.Mapping)
		out, err := subsetSample(sample, keep)
		if err != nil {
			return nil, err
		}
		sc.Logger.CDebugw(ctx, "selected views within credit",
			"credit", s.Credit.N, "unit", s.Credit.Unit, "selected", len(keep), "unmapped", len(out.Unmapped))
		return out, nil
	}}, nil
}

func newBudgetImages(sc StageContext, attributes utils.AttributeMap) (Stage, error) {
	cfg, err := utils.TransformAttributeMap[*budget.Config](attributes)
	if err != nil {
		return nil, err
	}
	if !attributes.Has("group") {
		cfg.Group = budget.Grouper{Padding: sc.Config.Padding2D, MinSize: sc.Config.MinSize2D}
	}
	if !attributes.Has("select") {
		s, err := selector(sc, &creditAttrs{}, nil)
		if err != nil {
			return nil, err
		}
		cfg.Select = *s
	}
	eng, err := budget.NewEngine(*cfg, sc.Logger)
	if err != nil {
		return nil, err
	}
	return &stageFunc{name: BudgetImages, apply: func(ctx context.Context, sample *multimodal.Sample) (*multimodal.Sample, error) {
		if err := requireMapping(sample); err != nil {
			return nil, err
		}
		res, err := eng.Run(ctx, sample.Cloud, sample.Views, sample.Mapping)
		if err != nil {
			return nil, err
		}
		out := sample.Clone()
		out.Views = res.Views
		out.Mapping = res.Mapping
		out.Groups = res.Groups
		out.Unmapped = res.Unmapped
		return out, nil
	}}, nil
}

func newVerifyMapping(sc StageContext, attributes utils.AttributeMap) (Stage, error) {
	if err := noAttributes(VerifyMapping, attributes); err != nil {
		return nil, err
	}
	return &stageFunc{name: VerifyMapping, apply: func(ctx context.Context, sample *multimodal.Sample) (*multimodal.Sample, error) {
		if err := requireMapping(sample); err != nil {
			return nil, err
		}
		if err := consistency.Verify(sample.Mapping, sample.Cloud); err != nil {
			return nil, err
		}
		return sample, nil
	}}, nil
}

