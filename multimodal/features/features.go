// Package features annotates mapping entries with statistics of their neighbourhood in the
// view that produced them: how densely the surface around a point is sampled and how likely
// the point is to be confused with a surface at another depth.
package features

import (
	"context"
	"image"
	"math"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/qianjinfighter/DeepViewAgg/logging"
	"github.com/qianjinfighter/DeepViewAgg/multimodal/mapping"
	"github.com/qianjinfighter/DeepViewAgg/pointcloud"
	"github.com/qianjinfighter/DeepViewAgg/utils"
)

const (
	// DefaultK is the number of neighbours considered per point.
	DefaultK = 50
	// DefaultDepthTolerance is the depth gap above which a close neighbour counts as occluding.
	DefaultDepthTolerance = 0.05

	densityEpsilon = 1e-6
)

// Config describes the neighbourhood used for features.
type Config struct {
	K int `json:"k,omitempty"`
	// OcclusionPixelRadius is how close, in pixels, two projections must be to compete. Zero
	// uses the splat radius of each entry.
	OcclusionPixelRadius float64 `json:"occlusion_pixel_radius,omitempty"`
	DepthTolerance       float64 `json:"depth_tolerance,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	var errs error
	if cfg.K < 0 {
		errs = multierr.Append(errs, errors.Errorf("k must not be negative, got %d", cfg.K))
	}
	if cfg.OcclusionPixelRadius < 0 {
		errs = multierr.Append(errs, errors.Errorf("occlusion_pixel_radius must not be negative, got %f", cfg.OcclusionPixelRadius))
	}
	if cfg.DepthTolerance < 0 {
		errs = multierr.Append(errs, errors.Errorf("depth_tolerance must not be negative, got %f", cfg.DepthTolerance))
	}
	if errs != nil {
		return utils.NewConfigValidationError(path, errs)
	}
	return nil
}

// Estimator computes density and occlusion features.
type Estimator struct {
	cfg    Config
	logger logging.Logger
}

// NewEstimator returns an estimator with defaults filled in.
func NewEstimator(cfg Config, logger logging.Logger) (*Estimator, error) {
	if err := cfg.Validate("mapping_features"); err != nil {
		return nil, err
	}
	if cfg.K == 0 {
		cfg.K = DefaultK
	}
	if cfg.DepthTolerance == 0 {
		cfg.DepthTolerance = DefaultDepthTolerance
	}
	return &Estimator{cfg: cfg, logger: logger}, nil
}

// pointView is what a view knows about one of its points: the pixel, depth and splat radius
// of its strongest entry.
type pointView struct {
	id     int64
	pixel  image.Point
	depth  float64
	radius float64
	weight float64
}

type pointFeatures struct {
	density   float64
	occlusion float64
}

// Annotate returns a mapping with the same entries as m whose Density and Occlusion fields
// are computed from the K nearest points seen by the same view.
func (est *Estimator) Annotate(ctx context.Context, cloud pointcloud.PointCloud, m *mapping.Mapping) (*mapping.Mapping, error) {
	perImage := make([]map[int64]pointFeatures, m.NumImages())
	work := make([]utils.SimpleFunc, m.NumImages())
	for img := range work {
		work[img] = func(ctx context.Context) error {
			feats, err := est.annotateView(ctx, cloud, m.ForImage(img))
			if err != nil {
				return errors.Wrapf(err, "image %d", img)
			}
			perImage[img] = feats
			return nil
		}
	}
	if err := utils.RunInParallel(ctx, work); err != nil {
		return nil, err
	}
	return m.Map(func(e mapping.Entry) mapping.Entry {
		f := perImage[e.Image][e.PointID]
		e.Density = f.density
		e.Occlusion = f.occlusion
		return e
	})
}

func (est *Estimator) annotateView(
	ctx context.Context,
	cloud pointcloud.PointCloud,
	entries []mapping.Entry,
) (map[int64]pointFeatures, error) {
	index := make(map[int64]int)
	var seen []pointView
	for _, e := range entries {
		if i, ok := index[e.PointID]; ok {
			if e.Weight > seen[i].weight {
				seen[i] = pointView{id: e.PointID, pixel: e.Pixel, depth: e.Depth, radius: e.Radius, weight: e.Weight}
			}
			continue
		}
		index[e.PointID] = len(seen)
		seen = append(seen, pointView{id: e.PointID, pixel: e.Pixel, depth: e.Depth, radius: e.Radius, weight: e.Weight})
	}

	pts := make(viewPoints, len(seen))
	for i, pv := range seen {
		p, ok := cloud.Lookup(pv.id)
		if !ok {
			return nil, errors.Errorf("mapped point %d is not in the point cloud", pv.id)
		}
		pts[i] = viewPoint{idx: i, pos: p.Position}
	}

	k := est.cfg.K
	if k > len(pts)-1 {
		k = len(pts) - 1
	}
	out := make([]pointFeatures, len(pts))
	if k > 0 {
		queries := append(viewPoints(nil), pts...)
		tree := kdtree.New(pts, false)
		err := utils.GroupWorkParallel(
			ctx,
			len(queries),
			nil,
			func(groupNum, groupSize, from, to int) (utils.MemberWorkFunc, utils.GroupWorkDoneFunc) {
				return func(memberNum, workNum int) {
					out[workNum] = est.neighbourhood(tree, queries[workNum], seen, k)
				}, nil
			},
		)
		if err != nil {
			return nil, err
		}
	}

	result := make(map[int64]pointFeatures, len(seen))
	for i, pv := range seen {
		result[pv.id] = out[i]
	}
	return result, nil
}

func (est *Estimator) neighbourhood(tree *kdtree.Tree, q viewPoint, seen []pointView, k int) pointFeatures {
	keeper := kdtree.NewNKeeper(k + 1)
	tree.NearestSet(keeper, q)

	self := seen[q.idx]
	radius := est.cfg.OcclusionPixelRadius
	if radius == 0 {
		radius = self.radius
	}

	var (
		count     int
		distSum   float64
		occluding int
	)
	for _, cd := range keeper.Heap {
		if cd.Comparable == nil {
			continue
		}
		n := cd.Comparable.(viewPoint)
		if n.idx == q.idx || count == k {
			continue
		}
		count++
		distSum += math.Sqrt(cd.Dist)

		other := seen[n.idx]
		pixelDist := math.Hypot(float64(other.pixel.X-self.pixel.X), float64(other.pixel.Y-self.pixel.Y))
		if pixelDist <= radius && math.Abs(other.depth-self.depth) > est.cfg.DepthTolerance {
			occluding++
		}
	}
	if count == 0 {
		return pointFeatures{}
	}
	return pointFeatures{
		density:   1 / (distSum/float64(count) + densityEpsilon),
		occlusion: float64(occluding) / float64(count),
	}
}
