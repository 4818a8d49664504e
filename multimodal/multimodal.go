// Package multimodal holds the per-sample structures shared by the 3D/2D mapping stages: the
// views of a sample, their cameras and validity masks, the point cloud they observe and the
// mapping between the two.
package multimodal

import (
	"image"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/qianjinfighter/DeepViewAgg/multimodal/mapping"
	"github.com/qianjinfighter/DeepViewAgg/pointcloud"
	"github.com/qianjinfighter/DeepViewAgg/rimage"
	"github.com/qianjinfighter/DeepViewAgg/rimage/transform"
	"github.com/qianjinfighter/DeepViewAgg/utils"
)

// View is one camera image of a sample. Pixels are optional; geometry-only views can still be
// mapped. Crop is the region of the original frame the view represents and Roll the
// accumulated horizontal roll applied to a panoramic frame.
type View struct {
	ID     int
	Name   string
	Pixels image.Image
	Camera *transform.Camera
	Mask   *rimage.Mask
	Crop   image.Rectangle
	Roll   int
}

// NewView returns a view whose crop covers the whole camera frame.
func NewView(id int, name string, pixels image.Image, camera *transform.Camera) (*View, error) {
	if err := camera.CheckValid(); err != nil {
		return nil, err
	}
	return &View{
		ID:     id,
		Name:   name,
		Pixels: pixels,
		Camera: camera,
		Crop:   camera.Bounds(),
	}, nil
}

// Clone returns a shallow copy of the view. Pixels and camera are shared since every stage
// replaces rather than edits them; the mask is copied.
func (v *View) Clone() *View {
	out := *v
	out.Mask = v.Mask.Clone()
	return &out
}

// Size returns the width and height of the view in pixels.
func (v *View) Size() image.Point {
	if v.Crop.Empty() {
		return v.Camera.Bounds().Size()
	}
	return v.Crop.Size()
}

// FrameSize returns the size of the full camera frame the view was taken from.
func (v *View) FrameSize() image.Point {
	return v.Camera.Bounds().Size()
}

// Bounds returns the pixel grid of the view in its own coordinates.
func (v *View) Bounds() image.Rectangle {
	return image.Rectangle{Max: v.Size()}
}

// Valid returns whether a pixel of the view is usable for mapping.
func (v *View) Valid(x, y int) bool {
	if !image.Pt(x, y).In(v.Bounds()) {
		return false
	}
	return v.Mask.Valid(x, y)
}

// FrameToView converts a pixel of the camera frame to the view's own pixel grid, accounting
// for roll and crop. ok is false when the pixel is not part of the view.
func (v *View) FrameToView(p image.Point) (image.Point, bool) {
	if v.Roll != 0 {
		p.X = utils.PositiveMod(p.X+v.Roll, v.FrameSize().X)
	}
	p = p.Sub(v.Crop.Min)
	return p, p.In(v.Bounds())
}

// ViewToFrame is the inverse of FrameToView.
func (v *View) ViewToFrame(p image.Point) image.Point {
	p = p.Add(v.Crop.Min)
	if v.Roll != 0 {
		p.X = utils.PositiveMod(p.X-v.Roll, v.FrameSize().X)
	}
	return p
}

// Rescaled returns the view sampled at width x height. Only full, unrolled frames can be
// rescaled.
func (v *View) Rescaled(width, height int) (*View, error) {
	size := v.FrameSize()
	if size.X == width && size.Y == height {
		return v, nil
	}
	if v.Roll != 0 || v.Crop != v.Camera.Bounds() {
		return nil, errors.Errorf("cannot rescale view %q after it was cropped or rolled", v.Name)
	}
	camera, err := v.Camera.Rescaled(width, height)
	if err != nil {
		return nil, errors.Wrapf(err, "view %q", v.Name)
	}
	out := v.Clone()
	out.Camera = camera
	out.Crop = camera.Bounds()
	out.Pixels = rimage.Resize(v.Pixels, width, height)
	out.Mask = v.Mask.Resize(width, height)
	return out, nil
}

// ImageGroup is a set of views sharing a crop region of a common frame size.
type ImageGroup struct {
	Members []int
	Crop    image.Rectangle
}

// Sample is everything the mapping stages know about one scene.
type Sample struct {
	ID       uuid.UUID
	Cloud    pointcloud.PointCloud
	Views    []*View
	Mapping  *mapping.Mapping
	Merges   map[int64]int64
	Groups   []ImageGroup
	Unmapped []int64
}

// NewSample returns a sample with a fresh identifier.
func NewSample(cloud pointcloud.PointCloud, views []*View) *Sample {
	return &Sample{ID: uuid.New(), Cloud: cloud, Views: views}
}

// Clone returns a shallow copy of the sample with its own view slice, so that a stage can
// replace views without touching the caller's sample.
func (s *Sample) Clone() *Sample {
	out := *s
	out.Views = append([]*View(nil), s.Views...)
	out.Groups = append([]ImageGroup(nil), s.Groups...)
	out.Unmapped = append([]int64(nil), s.Unmapped...)
	return &out
}
