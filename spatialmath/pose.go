// Package spatialmath defines rigid poses used to place cameras in the point cloud's frame.
package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// Pose is a rigid transform from a local frame (e.g. a camera) to its parent frame
// (the point cloud's frame). The orientation is kept as a unit quaternion.
type Pose struct {
	point r3.Vector
	q     quat.Number
}

// NewZeroPose returns a pose at the origin with no rotation.
func NewZeroPose() Pose {
	return Pose{q: quat.Number{Real: 1}}
}

// NewPose returns a pose from a translation and a quaternion. The quaternion is normalized;
// a zero quaternion is treated as no rotation.
func NewPose(point r3.Vector, q quat.Number) Pose {
	norm := quat.Abs(q)
	if norm == 0 {
		return Pose{point: point, q: quat.Number{Real: 1}}
	}
	return Pose{point: point, q: quat.Scale(1/norm, q)}
}

// NewPoseFromEulerAngles returns a pose whose orientation is given by roll (x), pitch (y) and
// yaw (z) in radians, applied in that order.
func NewPoseFromEulerAngles(point r3.Vector, roll, pitch, yaw float64) Pose {
	cr, sr := math.Cos(roll/2), math.Sin(roll/2)
	cp, sp := math.Cos(pitch/2), math.Sin(pitch/2)
	cy, sy := math.Cos(yaw/2), math.Sin(yaw/2)
	return NewPose(point, quat.Number{
		Real: cr*cp*cy + sr*sp*sy,
		Imag: sr*cp*cy - cr*sp*sy,
		Jmag: cr*sp*cy + sr*cp*sy,
		Kmag: cr*cp*sy - sr*sp*cy,
	})
}

// NewPoseFromRotationMatrix returns a pose from a translation and a 3x3 rotation matrix.
func NewPoseFromRotationMatrix(point r3.Vector, rot mat.Matrix) (Pose, error) {
	if r, c := rot.Dims(); r != 3 || c != 3 {
		return Pose{}, errors.Errorf("rotation matrix must be 3x3, got %dx%d", r, c)
	}
	if det := mat.Det(rot); math.Abs(det-1) > 1e-3 {
		return Pose{}, errors.Errorf("rotation matrix determinant must be 1, got %f", det)
	}
	m := func(i, j int) float64 { return rot.At(i, j) }
	var q quat.Number
	trace := m(0, 0) + m(1, 1) + m(2, 2)
	switch {
	case trace > 0:
		s := math.Sqrt(trace+1) * 2
		q = quat.Number{Real: s / 4, Imag: (m(2, 1) - m(1, 2)) / s, Jmag: (m(0, 2) - m(2, 0)) / s, Kmag: (m(1, 0) - m(0, 1)) / s}
	case m(0, 0) > m(1, 1) && m(0, 0) > m(2, 2):
		s := math.Sqrt(1+m(0, 0)-m(1, 1)-m(2, 2)) * 2
		q = quat.Number{Real: (m(2, 1) - m(1, 2)) / s, Imag: s / 4, Jmag: (m(0, 1) + m(1, 0)) / s, Kmag: (m(0, 2) + m(2, 0)) / s}
	case m(1, 1) > m(2, 2):
		s := math.Sqrt(1+m(1, 1)-m(0, 0)-m(2, 2)) * 2
		q = quat.Number{Real: (m(0, 2) - m(2, 0)) / s, Imag: (m(0, 1) + m(1, 0)) / s, Jmag: s / 4, Kmag: (m(1, 2) + m(2, 1)) / s}
	default:
		s := math.Sqrt(1+m(2, 2)-m(0, 0)-m(1, 1)) * 2
		q = quat.Number{Real: (m(1, 0) - m(0, 1)) / s, Imag: (m(0, 2) + m(2, 0)) / s, Jmag: (m(1, 2) + m(2, 1)) / s, Kmag: s / 4}
	}
	return NewPose(point, q), nil
}

// Point returns the translation of the pose.
func (p Pose) Point() r3.Vector {
	return p.point
}

// Quaternion returns the unit quaternion of the pose.
func (p Pose) Quaternion() quat.Number {
	if p.q == (quat.Number{}) {
		return quat.Number{Real: 1}
	}
	return p.q
}

// Transform maps a vector expressed in the local frame into the parent frame.
func (p Pose) Transform(v r3.Vector) r3.Vector {
	return rotate(p.Quaternion(), v).Add(p.point)
}

// InverseTransform maps a vector expressed in the parent frame into the local frame.
func (p Pose) InverseTransform(v r3.Vector) r3.Vector {
	return rotate(quat.Conj(p.Quaternion()), v.Sub(p.point))
}

// RotationMatrix returns the 3x3 rotation matrix of the pose.
func (p Pose) RotationMatrix() *mat.Dense {
	q := p.Quaternion()
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return mat.NewDense(3, 3, []float64{
		1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w),
		2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w),
		2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y),
	})
}

// PoseAlmostEqual returns whether two poses map every vector to within epsilon of each other.
func PoseAlmostEqual(a, b Pose, epsilon float64) bool {
	if a.point.Sub(b.point).Norm() > epsilon {
		return false
	}
	qa, qb := a.Quaternion(), b.Quaternion()
	// q and -q are the same rotation
	return quat.Abs(quat.Sub(qa, qb)) <= epsilon || quat.Abs(quat.Add(qa, qb)) <= epsilon
}

func rotate(q quat.Number, v r3.Vector) r3.Vector {
	rotated := quat.Mul(quat.Mul(q, quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), quat.Conj(q))
	return r3.Vector{X: rotated.Imag, Y: rotated.Jmag, Z: rotated.Kmag}
}
