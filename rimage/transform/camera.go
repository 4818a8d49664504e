package transform

import (
	"image"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"github.com/qianjinfighter/DeepViewAgg/spatialmath"
)

// Status reports the outcome of projecting a point into a camera.
type Status int

const (
	// Visible means the point projects inside the frame.
	Visible Status = iota
	// BehindCamera means the point has no image in this camera.
	BehindCamera
	// OutsideFrame means the point projects outside the pixel grid.
	OutsideFrame
)

func (s Status) String() string {
	switch s {
	case Visible:
		return "visible"
	case BehindCamera:
		return "behind camera"
	case OutsideFrame:
		return "outside frame"
	}
	return "unknown"
}

// Camera is a calibrated camera: intrinsics plus the camera-to-world pose in the point
// cloud's frame. Camera frame axes are x right, y down, z forward.
type Camera struct {
	Intrinsics *Intrinsics
	Pose       spatialmath.Pose
}

// NewCamera returns a validated camera.
func NewCamera(intrinsics *Intrinsics, pose spatialmath.Pose) (*Camera, error) {
	if err := intrinsics.CheckValid(); err != nil {
		return nil, err
	}
	return &Camera{Intrinsics: intrinsics, Pose: pose}, nil
}

// CheckValid returns an error when the camera lacks usable calibration.
func (c *Camera) CheckValid() error {
	if c == nil {
		return NewNoIntrinsicsError("camera is not calibrated")
	}
	return c.Intrinsics.CheckValid()
}

// Rescaled returns a copy of the camera sampled at a different resolution.
func (c *Camera) Rescaled(width, height int) (*Camera, error) {
	if err := c.CheckValid(); err != nil {
		return nil, err
	}
	if c.Intrinsics.Width == width && c.Intrinsics.Height == height {
		return c, nil
	}
	intrinsics, err := c.Intrinsics.Rescale(width, height)
	if err != nil {
		return nil, err
	}
	return &Camera{Intrinsics: intrinsics, Pose: c.Pose}, nil
}

// Bounds returns the pixel grid of the camera.
func (c *Camera) Bounds() image.Rectangle {
	return image.Rect(0, 0, c.Intrinsics.Width, c.Intrinsics.Height)
}

// Project maps a world point to continuous pixel coordinates and its depth. Depth is the
// distance along the optical axis for pinhole cameras and the range for panoramic ones.
func (c *Camera) Project(p r3.Vector) (r2.Point, float64, Status) {
	local := c.Pose.InverseTransform(p)
	u, v, depth, ok := c.Intrinsics.PointToPixel(local.X, local.Y, local.Z)
	if !ok {
		return r2.Point{}, 0, BehindCamera
	}
	if u < 0 || v < 0 || u >= float64(c.Intrinsics.Width) || v >= float64(c.Intrinsics.Height) {
		return r2.Point{X: u, Y: v}, depth, OutsideFrame
	}
	return r2.Point{X: u, Y: v}, depth, Visible
}

// PixelToWorld back-projects continuous pixel coordinates at the given depth into the world.
func (c *Camera) PixelToWorld(px r2.Point, depth float64) r3.Vector {
	x, y, z := c.Intrinsics.PixelToPoint(px.X, px.Y, depth)
	return c.Pose.Transform(r3.Vector{X: x, Y: y, Z: z})
}

// PixelOf returns the integer pixel containing continuous coordinates.
func PixelOf(px r2.Point) image.Point {
	return image.Pt(int(math.Floor(px.X)), int(math.Floor(px.Y)))
}
