// Package spatialmath defines rigid transforms and the rotation math used to move between the
// object frame and the camera frame.
package spatialmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// ErrNotRigid is returned when a matrix is not a proper rigid transform.
var ErrNotRigid = errors.New("transform is not rigid")

// DefaultRigidTolerance is the orthonormality tolerance used by CheckRigid callers that have no
// better bound.
const DefaultRigidTolerance = 1e-6

// Pose represents a rigid transform: a rotation followed by a translation. Applied to a point p it
// gives R*p + t.
type Pose interface {
	Point() r3.Vector
	Rotation() *RotationMatrix
}

type rigidPose struct {
	rot   *RotationMatrix
	point r3.Vector
}

func (p *rigidPose) Point() r3.Vector {
	return p.point
}

func (p *rigidPose) Rotation() *RotationMatrix {
	return p.rot
}

// NewZeroPose returns the identity pose.
func NewZeroPose() Pose {
	return &rigidPose{rot: NewIdentityRotation()}
}

// NewPose returns a pose with the given translation and rotation. A nil rotation is the identity.
func NewPose(point r3.Vector, rot *RotationMatrix) Pose {
	if rot == nil {
		rot = NewIdentityRotation()
	}
	return &rigidPose{rot: rot, point: point}
}

// NewPoseFromPoint returns a pure translation.
func NewPoseFromPoint(point r3.Vector) Pose {
	return NewPose(point, nil)
}

// Compose returns the pose a∘b, which applies b first and then a.
func Compose(a, b Pose) Pose {
	return &rigidPose{
		rot:   a.Rotation().MulMat(b.Rotation()),
		point: a.Rotation().Mul(b.Point()).Add(a.Point()),
	}
}

// PoseInverse returns the inverse of the pose.
func PoseInverse(p Pose) Pose {
	rt := p.Rotation().Transpose()
	return &rigidPose{rot: rt, point: rt.Mul(p.Point()).Mul(-1)}
}

// PoseBetween returns the pose that takes a to b, i.e. a^-1 ∘ b.
func PoseBetween(a, b Pose) Pose {
	return Compose(PoseInverse(a), b)
}

// TransformPoint applies the pose to a point.
func TransformPoint(p Pose, pt r3.Vector) r3.Vector {
	return p.Rotation().Mul(pt).Add(p.Point())
}

// NewPoseFromMatrix builds a pose from a row major homogeneous 4x4 matrix. The bottom row must be
// (0, 0, 0, 1) and the upper left 3x3 block must be a proper rotation within tol.
func NewPoseFromMatrix(m []float64, tol float64) (Pose, error) {
	if len(m) != 16 {
		return nil, errors.Errorf("expected 16 values for a 4x4 transform, got %d", len(m))
	}
	if math.Abs(m[12])+math.Abs(m[13])+math.Abs(m[14])+math.Abs(m[15]-1) > tol {
		return nil, errors.Wrapf(ErrNotRigid, "bottom row is [%g %g %g %g]", m[12], m[13], m[14], m[15])
	}
	rot, err := NewRotationMatrix([]float64{m[0], m[1], m[2], m[4], m[5], m[6], m[8], m[9], m[10]})
	if err != nil {
		return nil, err
	}
	p := NewPose(r3.Vector{X: m[3], Y: m[7], Z: m[11]}, rot)
	if err := CheckRigid(p, tol); err != nil {
		return nil, err
	}
	return p, nil
}

// PoseToMatrix returns the row major homogeneous 4x4 matrix of the pose.
func PoseToMatrix(p Pose) []float64 {
	r := p.Rotation()
	t := p.Point()
	return []float64{
		r.At(0, 0), r.At(0, 1), r.At(0, 2), t.X,
		r.At(1, 0), r.At(1, 1), r.At(1, 2), t.Y,
		r.At(2, 0), r.At(2, 1), r.At(2, 2), t.Z,
		0, 0, 0, 1,
	}
}

// PoseToMat4 converts the pose into a mathgl matrix.
func PoseToMat4(p Pose) mgl64.Mat4 {
	var out mgl64.Mat4
	rows := PoseToMatrix(p)
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			out.Set(r, c, rows[4*r+c])
		}
	}
	return out
}

// NewPoseFromMat4 converts a mathgl matrix into a pose, see NewPoseFromMatrix.
func NewPoseFromMat4(m mgl64.Mat4, tol float64) (Pose, error) {
	rows := make([]float64, 16)
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			rows[4*r+c] = m.At(r, c)
		}
	}
	return NewPoseFromMatrix(rows, tol)
}

// CheckRigid returns ErrNotRigid when the rotation is not orthonormal within tol, its determinant
// is not +1 within tol, or the translation is not finite.
func CheckRigid(p Pose, tol float64) error {
	if p == nil || p.Rotation() == nil {
		return errors.Wrap(ErrNotRigid, "pose is nil")
	}
	t := p.Point()
	for _, v := range []float64{t.X, t.Y, t.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrapf(ErrNotRigid, "translation %v is not finite", t)
		}
	}
	r := p.Rotation()
	for _, v := range r.mat {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrap(ErrNotRigid, "rotation is not finite")
		}
	}
	if e := r.OrthonormalityError(); e > tol {
		return errors.Wrapf(ErrNotRigid, "rotation is off orthonormal by %g", e)
	}
	if d := r.Det(); math.Abs(d-1) > tol {
		return errors.Wrapf(ErrNotRigid, "rotation determinant is %g", d)
	}
	return nil
}

// PoseAlmostEqual returns whether two poses differ by at most transTol in translation and
// rotTol radians in rotation.
func PoseAlmostEqual(a, b Pose, transTol, rotTol float64) bool {
	if a.Point().Sub(b.Point()).Norm() > transTol {
		return false
	}
	return a.Rotation().Transpose().MulMat(b.Rotation()).Angle() <= rotTol
}
