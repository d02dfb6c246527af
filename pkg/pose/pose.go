// Package pose implements rigid transforms (rotation + translation) for
// placing assembly parts in world coordinates. Rotations are stored as unit
// quaternions to avoid gimbal lock; the optimizer-facing parameterization is
// a 6-vector of translation plus a rotation vector (axis scaled by angle).
package pose

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// VectorLen is the number of free parameters a pose contributes to the
// optimizer: 3 translation components + 3 rotation-vector components.
const VectorLen = 6

// smallAngle is the threshold below which the rotation-vector conversions
// switch to their first-order series to avoid dividing by a tiny sine.
const smallAngle = 1e-9

// Pose is a rigid transform: rotation R followed by translation T.
// The zero value is not valid; use Identity or one of the constructors.
type Pose struct {
	R quat.Number // unit rotation quaternion
	T r3.Vec
}

// Identity returns the identity pose.
func Identity() Pose {
	return Pose{R: quat.Number{Real: 1}}
}

// Translation returns a pure translation pose.
func Translation(t r3.Vec) Pose {
	return Pose{R: quat.Number{Real: 1}, T: t}
}

// FromAxisAngle returns a pure rotation pose of angle radians about axis.
// A zero axis yields the identity rotation.
func FromAxisAngle(axis r3.Vec, angle float64) Pose {
	if r3.Norm(axis) == 0 {
		return Identity()
	}
	return Pose{R: quat.Number(r3.NewRotation(angle, axis))}
}

// FromEuler returns a rotation pose from Euler angles in degrees, applied
// about the world X, then Y, then Z axes. This matches the rotation
// convention of the geometry kernel's user-facing placements.
func FromEuler(xDeg, yDeg, zDeg float64) Pose {
	rx := FromAxisAngle(r3.Vec{X: 1}, xDeg*math.Pi/180)
	ry := FromAxisAngle(r3.Vec{Y: 1}, yDeg*math.Pi/180)
	rz := FromAxisAngle(r3.Vec{Z: 1}, zDeg*math.Pi/180)
	return Compose(rz, Compose(ry, rx))
}

// New returns a pose with the given rotation and translation, renormalizing
// the rotation so the invariant (unit quaternion) holds.
func New(r quat.Number, t r3.Vec) Pose {
	return Pose{R: normalize(r), T: t}
}

// Compose returns a∘b: the pose that applies b in a's frame.
// Composition is associative and Identity is its neutral element.
func Compose(a, b Pose) Pose {
	return Pose{
		R: normalize(quat.Mul(a.R, b.R)),
		T: r3.Add(a.T, rotate(a.R, b.T)),
	}
}

// Inverse returns the pose q such that Compose(p, q) is the identity.
func Inverse(p Pose) Pose {
	inv := quat.Conj(p.R)
	return Pose{
		R: inv,
		T: r3.Scale(-1, rotate(inv, p.T)),
	}
}

// Apply transforms a point from the pose's local frame to the world frame.
func (p Pose) Apply(v r3.Vec) r3.Vec {
	return r3.Add(rotate(p.R, v), p.T)
}

// ApplyDirection rotates a direction vector, ignoring translation.
func (p Pose) ApplyDirection(v r3.Vec) r3.Vec {
	return rotate(p.R, v)
}

// ToVector flattens the pose into a 6-element parameter slice:
// [tx, ty, tz, wx, wy, wz] where w is the rotation vector (axis * angle).
// The quaternion is canonicalized to the positive-real hemisphere first so
// the encoded angle lies in [0, π].
func (p Pose) ToVector() []float64 {
	q := p.R
	if q.Real < 0 {
		q = quat.Scale(-1, q)
	}
	n := math.Sqrt(q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	var w r3.Vec
	if n < smallAngle {
		// Small-angle series: w ≈ 2 * imaginary part.
		w = r3.Vec{X: 2 * q.Imag, Y: 2 * q.Jmag, Z: 2 * q.Kmag}
	} else {
		angle := 2 * math.Atan2(n, q.Real)
		w = r3.Scale(angle/n, r3.Vec{X: q.Imag, Y: q.Jmag, Z: q.Kmag})
	}
	return []float64{p.T.X, p.T.Y, p.T.Z, w.X, w.Y, w.Z}
}

// FromVector reconstructs a pose from a 6-element parameter slice produced
// by ToVector (or perturbed by the optimizer). The rotation is renormalized
// so numerical drift in the parameters cannot produce an invalid pose.
// Panics if v does not have exactly VectorLen elements.
func FromVector(v []float64) Pose {
	if len(v) != VectorLen {
		panic("pose: FromVector requires a 6-element vector")
	}
	t := r3.Vec{X: v[0], Y: v[1], Z: v[2]}
	w := r3.Vec{X: v[3], Y: v[4], Z: v[5]}
	angle := r3.Norm(w)
	if angle < smallAngle {
		// First-order quaternion for tiny rotations, then renormalize.
		return New(quat.Number{Real: 1, Imag: w.X / 2, Jmag: w.Y / 2, Kmag: w.Z / 2}, t)
	}
	return Pose{R: quat.Number(r3.NewRotation(angle, w)), T: t}
}

// ApproxEqual reports whether two poses are equal within tol, comparing
// translations componentwise and rotations by the angle between them.
func (p Pose) ApproxEqual(o Pose, tol float64) bool {
	d := r3.Sub(p.T, o.T)
	if r3.Norm(d) > tol {
		return false
	}
	// Relative rotation angle: 2*acos(|<p.R, o.R>|).
	dot := p.R.Real*o.R.Real + p.R.Imag*o.R.Imag + p.R.Jmag*o.R.Jmag + p.R.Kmag*o.R.Kmag
	if dot < 0 {
		dot = -dot
	}
	if dot > 1 {
		dot = 1
	}
	return 2*math.Acos(dot) <= tol
}

// Matrix returns the pose as a row-major 4x4 homogeneous transform,
// suitable for handing to a geometry kernel.
func (p Pose) Matrix() [16]float64 {
	x, y, z, w := p.R.Imag, p.R.Jmag, p.R.Kmag, p.R.Real
	return [16]float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y), p.T.X,
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x), p.T.Y,
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y), p.T.Z,
		0, 0, 0, 1,
	}
}

// rotate applies a unit quaternion rotation to a vector.
func rotate(q quat.Number, v r3.Vec) r3.Vec {
	return r3.Rotation(q).Rotate(v)
}

// normalize scales q to unit norm. An exactly-zero quaternion (which can
// only arise from a zero-value Pose) maps to the identity rotation.
func normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}
