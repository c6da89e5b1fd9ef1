package mechanics

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Rotation is a unit quaternion. The zero value is the identity.
type Rotation struct {
	q quat.Number
}

func IdentityRotation() Rotation {
	return Rotation{q: quat.Number{Real: 1}}
}

// RotationAbout returns the rotation by angle radians about axis. A zero
// angle or zero axis gives the identity.
func RotationAbout(angle float64, axis r3.Vec) Rotation {
	if angle == 0 || r3.Norm(axis) == 0 {
		return IdentityRotation()
	}
	return Rotation{q: quat.Number(r3.NewRotation(angle, axis))}
}

func (r Rotation) number() quat.Number {
	if r.q == (quat.Number{}) {
		return quat.Number{Real: 1}
	}
	return r.q
}

// Apply re-expresses v from the rotated frame in the reference frame.
func (r Rotation) Apply(v r3.Vec) r3.Vec {
	return r3.Rotation(r.number()).Rotate(v)
}

// Compose returns r·o: apply o first, then r.
func (r Rotation) Compose(o Rotation) Rotation {
	return Rotation{q: quat.Mul(r.number(), o.number())}
}

func (r Rotation) Inverse() Rotation {
	return Rotation{q: quat.Conj(r.number())}
}

// Angle returns the rotation angle in [0, π].
func (r Rotation) Angle() float64 {
	n := r.number()
	return 2 * math.Acos(math.Min(1, math.Abs(n.Real)))
}

// Transform is a rigid transform X_AB: the pose of frame B measured in A.
type Transform struct {
	R Rotation
	P r3.Vec
}

func IdentityTransform() Transform {
	return Transform{R: IdentityRotation()}
}

func Translation(p r3.Vec) Transform {
	return Transform{R: IdentityRotation(), P: p}
}

// Compose returns X_AC = X_AB · X_BC.
func (x Transform) Compose(y Transform) Transform {
	return Transform{
		R: x.R.Compose(y.R),
		P: r3.Add(x.P, x.R.Apply(y.P)),
	}
}

// Apply maps a station given in B to A.
func (x Transform) Apply(station r3.Vec) r3.Vec {
	return r3.Add(x.P, x.R.Apply(station))
}

func (x Transform) Inverse() Transform {
	inv := x.R.Inverse()
	return Transform{R: inv, P: r3.Scale(-1, inv.Apply(x.P))}
}

// SpatialVelocity is a body's angular velocity and the linear velocity of
// its origin, both in ground.
type SpatialVelocity struct {
	Angular r3.Vec
	Linear  r3.Vec
}
