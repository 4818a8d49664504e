// Package transform holds the camera models used to project point cloud points into images.
package transform

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// ErrNoIntrinsics is when a camera does not have intrinsics parameters or other parameters.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// NewNoIntrinsicsError is used when the intrinsics are not defined.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrap(ErrNoIntrinsics, msg)
}

// ProjectionType is the lens model of a camera.
type ProjectionType string

const (
	// Pinhole is a perspective projection.
	Pinhole ProjectionType = "pinhole"
	// Equirectangular is a full 360x180 degree panoramic projection.
	Equirectangular ProjectionType = "equirectangular"
)

// Intrinsics holds the parameters necessary to project a 3D scene onto a camera's image plane.
// Fx, Fy, Ppx and Ppy are only used by the pinhole model; an equirectangular camera is fully
// described by its width and height.
type Intrinsics struct {
	Width      int            `json:"width_px"`
	Height     int            `json:"height_px"`
	Fx         float64        `json:"fx,omitempty"`
	Fy         float64        `json:"fy,omitempty"`
	Ppx        float64        `json:"ppx,omitempty"`
	Ppy        float64        `json:"ppy,omitempty"`
	Projection ProjectionType `json:"projection,omitempty"`
}

// Model returns the projection type, defaulting to pinhole.
func (params *Intrinsics) Model() ProjectionType {
	if params.Projection == "" {
		return Pinhole
	}
	return params.Projection
}

// CheckValid checks if the fields for Intrinsics have valid inputs.
func (params *Intrinsics) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("Intrinsics do not exist")
	}
	if params.Width <= 0 || params.Height <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid size (%#v, %#v)", params.Width, params.Height))
	}
	switch params.Model() {
	case Equirectangular:
		return nil
	case Pinhole:
	default:
		return NewNoIntrinsicsError(fmt.Sprintf("Unknown projection %q", params.Projection))
	}
	if params.Fx <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fx = %#v", params.Fx))
	}
	if params.Fy <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fy = %#v", params.Fy))
	}
	if params.Ppx < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid principal X point Ppx = %#v", params.Ppx))
	}
	if params.Ppy < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid principal Y point Ppy = %#v", params.Ppy))
	}
	return nil
}

// Rescale returns the intrinsics of the same camera sampled at a width x height resolution.
func (params *Intrinsics) Rescale(width, height int) (*Intrinsics, error) {
	if err := params.CheckValid(); err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("cannot rescale intrinsics to (%d, %d)", width, height)
	}
	sx := float64(width) / float64(params.Width)
	sy := float64(height) / float64(params.Height)
	return &Intrinsics{
		Width:      width,
		Height:     height,
		Fx:         params.Fx * sx,
		Fy:         params.Fy * sy,
		Ppx:        params.Ppx * sx,
		Ppy:        params.Ppy * sy,
		Projection: params.Projection,
	}, nil
}

// PointToPixel projects a point expressed in the camera frame to continuous pixel coordinates
// and returns its depth. ok is false when the point has no image (behind a pinhole camera or
// at the optical center).
func (params *Intrinsics) PointToPixel(x, y, z float64) (u, v, depth float64, ok bool) {
	switch params.Model() {
	case Equirectangular:
		depth = math.Sqrt(x*x + y*y + z*z)
		if depth == 0 {
			return 0, 0, 0, false
		}
		longitude := math.Atan2(x, z)
		latitude := math.Atan2(-y, math.Hypot(x, z))
		u = (longitude/(2*math.Pi) + 0.5) * float64(params.Width)
		v = (0.5 - latitude/math.Pi) * float64(params.Height)
		// longitude == pi lands exactly on the right edge, which is the left edge
		if u >= float64(params.Width) {
			u -= float64(params.Width)
		}
		// latitude == -pi/2 lands on the bottom edge, which belongs to the last row
		if v >= float64(params.Height) {
			v = math.Nextafter(float64(params.Height), 0)
		}
		return u, v, depth, true
	default:
		if z <= 0 {
			return 0, 0, 0, false
		}
		return (x/z)*params.Fx + params.Ppx, (y/z)*params.Fy + params.Ppy, z, true
	}
}

// PixelToPoint transforms continuous pixel coordinates with depth back to a point in the
// camera frame. It is the inverse of PointToPixel.
func (params *Intrinsics) PixelToPoint(u, v, depth float64) (float64, float64, float64) {
	switch params.Model() {
	case Equirectangular:
		longitude := (u/float64(params.Width) - 0.5) * 2 * math.Pi
		latitude := (0.5 - v/float64(params.Height)) * math.Pi
		horizontal := depth * math.Cos(latitude)
		return horizontal * math.Sin(longitude), -depth * math.Sin(latitude), horizontal * math.Cos(longitude)
	default:
		xOverZ := (u - params.Ppx) / params.Fx
		yOverZ := (v - params.Ppy) / params.Fy
		return xOverZ * depth, yOverZ * depth, depth
	}
}
