// Package splat computes which pixels of which views observe each point of a cloud.
//
// Every point is projected into every view and rasterized as a small footprint whose radius
// grows with depth. A per-pixel depth buffer keeps only the closest surfaces, so a pixel is
// never claimed by both a foreground point and a point hidden behind it.
package splat

import (
	"context"
	"image"
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/qianjinfighter/DeepViewAgg/logging"
	"github.com/qianjinfighter/DeepViewAgg/multimodal"
	"github.com/qianjinfighter/DeepViewAgg/multimodal/mapping"
	"github.com/qianjinfighter/DeepViewAgg/pointcloud"
	"github.com/qianjinfighter/DeepViewAgg/rimage/transform"
	"github.com/qianjinfighter/DeepViewAgg/utils"
)

// Mapper builds mappings by splatting points into views.
type Mapper struct {
	cfg    Config
	logger logging.Logger
}

// NewMapper returns a mapper with defaults filled in.
func NewMapper(cfg Config, logger logging.Logger) (*Mapper, error) {
	if err := cfg.Validate("map_images"); err != nil {
		return nil, err
	}
	return &Mapper{cfg: cfg.withDefaults(), logger: logger}, nil
}

// Config returns the effective configuration.
func (mp *Mapper) Config() Config {
	return mp.cfg
}

// candidate is one upscaled grid cell covered by a point's footprint.
type candidate struct {
	point  int
	cell   int
	pixel  image.Point
	weight float64
	depth  float64
	radius float64
}

// Map returns the views, resampled to the configured resolution, and the mapping between the
// cloud and those views. A view without valid calibration fails the whole call.
func (mp *Mapper) Map(
	ctx context.Context,
	cloud pointcloud.PointCloud,
	views []*multimodal.View,
) ([]*multimodal.View, *mapping.Mapping, error) {
	out := make([]*multimodal.View, len(views))
	for i, v := range views {
		if err := v.Camera.CheckValid(); err != nil {
			return nil, nil, errors.Wrapf(err, "view %d (%q)", i, v.Name)
		}
		out[i] = v
		if len(mp.cfg.Resolution) == 2 {
			rescaled, err := v.Rescaled(mp.cfg.Resolution[0], mp.cfg.Resolution[1])
			if err != nil {
				return nil, nil, err
			}
			out[i] = rescaled
		}
	}

	positions := make([]r3.Vector, cloud.Size())
	ids := make([]int64, cloud.Size())
	cloud.Iterate(0, 0, func(i int, p pointcloud.Point) bool {
		positions[i] = p.Position
		ids[i] = p.ID
		return true
	})

	perView := make([][]mapping.Entry, len(out))
	g, gctx := errgroup.WithContext(ctx)
	for i, v := range out {
		g.Go(func() error {
			entries, err := mp.mapView(gctx, i, v, positions, ids)
			if err != nil {
				return errors.Wrapf(err, "view %d (%q)", i, v.Name)
			}
			perView[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var all []mapping.Entry
	for _, entries := range perView {
		all = append(all, entries...)
	}
	m, err := mapping.New(mp.cfg.MappingKey, len(out), all)
	if err != nil {
		return nil, nil, err
	}
	mp.logger.Debugw("mapped points into views", "points", cloud.Size(), "views", len(out), "entries", m.Len())
	return out, m, nil
}

func (mp *Mapper) mapView(
	ctx context.Context,
	viewIdx int,
	view *multimodal.View,
	positions []r3.Vector,
	ids []int64,
) ([]mapping.Entry, error) {
	camera := view.Camera
	frame := view.FrameSize()
	scale := mp.cfg.ProjUpscale
	gridW := int(math.Round(float64(frame.X) * scale))
	gridH := int(math.Round(float64(frame.Y) * scale))
	panoramic := camera.Intrinsics.Model() == transform.Equirectangular

	// cellPixel maps an upscaled cell to the view pixel it collapses into.
	cellPixel := func(x, y int) (image.Point, bool) {
		fp := image.Pt(
			utils.ClampInt(int(float64(x)/scale), 0, frame.X-1),
			utils.ClampInt(int(float64(y)/scale), 0, frame.Y-1),
		)
		vp, ok := view.FrameToView(fp)
		if !ok || !view.Valid(vp.X, vp.Y) {
			return image.Point{}, false
		}
		return vp, true
	}

	zbuf := make([]float64, gridW*gridH)
	for i := range zbuf {
		zbuf[i] = math.Inf(1)
	}
	var candidates []candidate
	for i, pos := range positions {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		px, depth, status := camera.Project(pos)
		if status != transform.Visible {
			continue
		}
		if mp.cfg.MaxDepth > 0 && depth > mp.cfg.MaxDepth {
			continue
		}
		if vp, ok := view.FrameToView(transform.PixelOf(px)); !ok || !view.Valid(vp.X, vp.Y) {
			continue
		}

		radius := mp.cfg.Radius(depth)
		gridRadius := radius * scale
		cx := utils.ClampInt(int(math.Floor(px.X*scale)), 0, gridW-1)
		cy := utils.ClampInt(int(math.Floor(px.Y*scale)), 0, gridH-1)
		reach := int(math.Floor(gridRadius))
		if !mp.cfg.Exact {
			reach = int(math.Max(math.Ceil(gridRadius)-1, 0))
		}

		for dy := -reach; dy <= reach; dy++ {
			y := cy + dy
			if y < 0 || y >= gridH {
				continue
			}
			for dx := -reach; dx <= reach; dx++ {
				weight := 1.0
				if mp.cfg.Exact {
					dist := math.Hypot(float64(dx), float64(dy))
					if dist > gridRadius {
						continue
					}
					weight = 1 - dist/(gridRadius+0.5)
				}
				x := cx + dx
				if x < 0 || x >= gridW {
					if !panoramic {
						continue
					}
					x = utils.PositiveMod(x, gridW)
				}
				vp, ok := cellPixel(x, y)
				if !ok {
					continue
				}
				cell := y*gridW + x
				candidates = append(candidates, candidate{
					point:  i,
					cell:   cell,
					pixel:  vp,
					weight: weight,
					depth:  depth,
					radius: radius,
				})
				if depth < zbuf[cell] {
					zbuf[cell] = depth
				}
			}
		}
	}

	type entryKey struct {
		point int
		pixel image.Point
	}
	// Cells are depth tested first, then the survivors of every frame pixel are tested again
	// against the nearest survivor of that pixel, since several cells collapse into one pixel.
	visible := candidates[:0]
	pixelMin := make(map[image.Point]float64)
	occluded := 0
	for _, c := range candidates {
		if c.depth > zbuf[c.cell]+mp.cfg.DepthTolerance {
			occluded++
			continue
		}
		visible = append(visible, c)
		if z, ok := pixelMin[c.pixel]; !ok || c.depth < z {
			pixelMin[c.pixel] = c.depth
		}
	}

	kept := make(map[entryKey]int)
	var entries []mapping.Entry
	var pointOrder []int
	for _, c := range visible {
		if c.depth > pixelMin[c.pixel]+mp.cfg.DepthTolerance {
			occluded++
			continue
		}
		key := entryKey{point: c.point, pixel: c.pixel}
		if idx, ok := kept[key]; ok {
			if c.weight > entries[idx].Weight {
				entries[idx].Weight = c.weight
			}
			continue
		}
		kept[key] = len(entries)
		entries = append(entries, mapping.Entry{
			PointID: ids[c.point],
			Image:   viewIdx,
			Pixel:   c.pixel,
			Radius:  c.radius,
			Weight:  c.weight,
			Exact:   mp.cfg.Exact,
			Depth:   c.depth,
		})
		pointOrder = append(pointOrder, c.point)
	}

	order := make([]int, len(entries))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ea, eb := entries[order[a]], entries[order[b]]
		if pa, pb := pointOrder[order[a]], pointOrder[order[b]]; pa != pb {
			return pa < pb
		}
		if ea.Pixel.Y != eb.Pixel.Y {
			return ea.Pixel.Y < eb.Pixel.Y
		}
		return ea.Pixel.X < eb.Pixel.X
	})
	sorted := make([]mapping.Entry, len(entries))
	for i, idx := range order {
		sorted[i] = entries[idx]
	}
	mp.logger.Debugw("splatted view", "view", view.Name, "candidates", len(candidates), "occluded", occluded, "entries", len(sorted))
	return sorted, nil
}
