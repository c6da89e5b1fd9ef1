package mechanics

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// BodyID indexes a body in its tree. Ground is always 0.
type BodyID int

const Ground BodyID = 0

// Joint is the mobilizer connecting a body to its parent.
type Joint uint8

const (
	// Weld rigidly attaches the body: no degrees of freedom.
	Weld Joint = iota
	// Slider translates along the x axis of the joint frame F.
	Slider
)

func (j Joint) DOF() int {
	if j == Slider {
		return 1
	}
	return 0
}

func (j Joint) String() string {
	switch j {
	case Weld:
		return "weld"
	case Slider:
		return "slider"
	default:
		return fmt.Sprintf("Joint(%d)", uint8(j))
	}
}

func ParseJoint(name string) (Joint, error) {
	switch name {
	case "weld":
		return Weld, nil
	case "slider":
		return Slider, nil
	default:
		return 0, fmt.Errorf("unknown joint: %s", name)
	}
}

// Inertia is a symmetric inertia tensor about the center of mass.
type Inertia struct {
	XX, YY, ZZ float64
	XY, XZ, YZ float64
}

// NewInertia returns an inertia with equal principal moments.
func NewInertia(moment float64) Inertia {
	return Inertia{XX: moment, YY: moment, ZZ: moment}
}

// MassProperties of a rigid body in its own frame.
type MassProperties struct {
	Mass    float64
	COM     r3.Vec
	Inertia Inertia
}

func (m MassProperties) validate() error {
	if m.Mass < 0 {
		return fmt.Errorf("mass must be non-negative, got %g", m.Mass)
	}
	in := m.Inertia
	if in.XX < 0 || in.YY < 0 || in.ZZ < 0 {
		return fmt.Errorf("principal moments must be non-negative, got (%g, %g, %g)", in.XX, in.YY, in.ZZ)
	}
	return nil
}

// Body is one node of the tree. Bodies are immutable once added.
type Body struct {
	ID       BodyID
	Name     string
	Parent   BodyID
	Joint    Joint
	Mass     MassProperties
	InParent Transform // X_PF
	InBody   Transform // X_BM

	qIndex int
	uIndex int
}

// QIndex returns the body's slot in q, or -1 for a weld.
func (b Body) QIndex() int { return b.qIndex }

// UIndex returns the body's slot in u, or -1 for a weld.
func (b Body) UIndex() int { return b.uIndex }
