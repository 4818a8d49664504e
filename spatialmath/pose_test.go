package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

func TestZeroPose(t *testing.T) {
	p := NewZeroPose()
	v := r3.Vector{X: 1, Y: 2, Z: 3}
	test.That(t, p.Transform(v), test.ShouldResemble, v)
	test.That(t, p.InverseTransform(v), test.ShouldResemble, v)

	var unset Pose
	test.That(t, unset.Quaternion(), test.ShouldResemble, quat.Number{Real: 1})
	test.That(t, NewPose(r3.Vector{}, quat.Number{}).Quaternion(), test.ShouldResemble, quat.Number{Real: 1})
}

func TestEulerRotation(t *testing.T) {
	// 90 degrees of yaw takes x onto y
	p := NewPoseFromEulerAngles(r3.Vector{X: 10}, 0, 0, math.Pi/2)
	out := p.Transform(r3.Vector{X: 1})
	test.That(t, out.X, test.ShouldAlmostEqual, 10)
	test.That(t, out.Y, test.ShouldAlmostEqual, 1)
	test.That(t, out.Z, test.ShouldAlmostEqual, 0)

	back := p.InverseTransform(out)
	test.That(t, back.X, test.ShouldAlmostEqual, 1)
	test.That(t, back.Y, test.ShouldAlmostEqual, 0)
	test.That(t, back.Z, test.ShouldAlmostEqual, 0)
}

func TestRotationMatrixRoundTrip(t *testing.T) {
	p := NewPoseFromEulerAngles(r3.Vector{X: 1, Y: -2, Z: 0.5}, 0.3, -1.1, 2.4)
	rot := p.RotationMatrix()
	p2, err := NewPoseFromRotationMatrix(p.Point(), rot)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, PoseAlmostEqual(p, p2, 1e-9), test.ShouldBeTrue)

	v := r3.Vector{X: 0.2, Y: 4, Z: -3}
	var rv mat.VecDense
	rv.MulVec(rot, mat.NewVecDense(3, []float64{v.X, v.Y, v.Z}))
	out := p.Transform(v).Sub(p.Point())
	test.That(t, out.X, test.ShouldAlmostEqual, rv.AtVec(0))
	test.That(t, out.Y, test.ShouldAlmostEqual, rv.AtVec(1))
	test.That(t, out.Z, test.ShouldAlmostEqual, rv.AtVec(2))

	_, err = NewPoseFromRotationMatrix(r3.Vector{}, mat.NewDense(2, 2, nil))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewPoseFromRotationMatrix(r3.Vector{}, mat.NewDense(3, 3, []float64{2, 0, 0, 0, 1, 0, 0, 0, 1}))
	test.That(t, err, test.ShouldNotBeNil)
}
