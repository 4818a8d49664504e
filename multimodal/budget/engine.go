package budget

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/qianjinfighter/DeepViewAgg/logging"
	"github.com/qianjinfighter/DeepViewAgg/multimodal"
	"github.com/qianjinfighter/DeepViewAgg/multimodal/mapping"
	"github.com/qianjinfighter/DeepViewAgg/pointcloud"
)

// Config chains the three budgeting steps.
type Config struct {
	Area   AreaFilter `json:"area"`
	Group  Grouper    `json:"group"`
	Select Selector   `json:"select"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	return multierr.Combine(
		cfg.Area.Validate(path+".area"),
		cfg.Group.Validate(path+".group"),
		cfg.Select.Validate(path+".select"),
	)
}

// Result is the retained imagery of a sample.
type Result struct {
	Views   []*multimodal.View
	Mapping *mapping.Mapping
	Groups  []multimodal.ImageGroup
	// Coverage is the number of retained views observing each mapped point.
	Coverage map[int64]int
	// Unmapped lists, in cloud order, the points no retained view observes.
	Unmapped []int64
}

// Engine filters, groups and selects views.
type Engine struct {
	cfg    Config
	logger logging.Logger
}

// NewEngine returns a validated engine.
func NewEngine(cfg Config, logger logging.Logger) (*Engine, error) {
	if err := cfg.Validate("budget"); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, logger: logger}, nil
}

// Run reduces the views of a sample to a cropped subset within the credit.
func (eng *Engine) Run(
	ctx context.Context,
	cloud pointcloud.PointCloud,
	views []*multimodal.View,
	m *mapping.Mapping,
) (*Result, error) {
	if len(views) != m.NumImages() {
		return nil, errors.Errorf("mapping spans %d images but there are %d views", m.NumImages(), len(views))
	}
	keep := eng.cfg.Area.Select(views, m)
	views, m, _, err := Subset(views, m, nil, keep)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	groups := eng.cfg.Group.Group(views, m)
	views, m, err = ApplyGroups(views, m, groups)
	if err != nil {
		return nil, err
	}

	chosen := eng.cfg.Select.Select(views, m)
	views, m, groups, err = Subset(views, m, groups, chosen)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Views:    views,
		Mapping:  m,
		Groups:   groups,
		Coverage: m.Coverage(),
		Unmapped: Unmapped(cloud, m),
	}
	eng.logger.CDebugw(ctx, "budgeted views",
		"useful", len(keep),
		"groups", len(groups),
		"selected", len(views),
		"unmapped", len(res.Unmapped),
	)
	return res, nil
}

// Subset keeps the listed views, in list order, and renumbers the mapping and groups to match.
// Groups left without members are dropped.
func Subset(
	views []*multimodal.View,
	m *mapping.Mapping,
	groups []multimodal.ImageGroup,
	keep []int,
) ([]*multimodal.View, *mapping.Mapping, []multimodal.ImageGroup, error) {
	selected, err := m.SelectImages(keep)
	if err != nil {
		return nil, nil, nil, err
	}
	renumber := make(map[int]int, len(keep))
	out := make([]*multimodal.View, len(keep))
	for i, idx := range keep {
		out[i] = views[idx]
		renumber[idx] = i
	}
	var outGroups []multimodal.ImageGroup
	for _, group := range groups {
		var members []int
		for _, idx := range group.Members {
			if i, ok := renumber[idx]; ok {
				members = append(members, i)
			}
		}
		if len(members) == 0 {
			continue
		}
		sort.Ints(members)
		outGroups = append(outGroups, multimodal.ImageGroup{Members: members, Crop: group.Crop})
	}
	return out, selected, outGroups, nil
}

// Unmapped returns, in cloud order, the points without any entry in m.
func Unmapped(cloud pointcloud.PointCloud, m *mapping.Mapping) []int64 {
	var out []int64
	cloud.Iterate(0, 0, func(_ int, p pointcloud.Point) bool {
		if !m.HasPoint(p.ID) {
			out = append(out, p.ID)
		}
		return true
	})
	return out
}
