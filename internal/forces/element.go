package forces

import (
	"fmt"
	"math"

	"github.com/san-kum/mbsim/internal/mechanics"
	"gonum.org/v1/gonum/spatial/r3"
)

// Law is a force law. The set is closed; use Custom for anything else.
type Law interface {
	kind() string
	validate() error
}

// Spring pulls its attachment points toward the natural length L0.
type Spring struct {
	Stiffness     float64
	NaturalLength float64
}

// Damper resists the rate of change of the distance between its points.
type Damper struct {
	Damping float64
}

// ConstantForce applies F, expressed in ground, at the first attachment.
type ConstantForce struct {
	F r3.Vec
}

// Gravity applies m·G at every body's center of mass. Attachments are
// ignored.
type Gravity struct {
	G r3.Vec
}

func (Spring) kind() string        { return "spring" }
func (Damper) kind() string        { return "damper" }
func (ConstantForce) kind() string { return "constant" }
func (Gravity) kind() string       { return "gravity" }

func (s Spring) validate() error {
	if !finite(s.Stiffness) || s.Stiffness < 0 {
		return fmt.Errorf("spring stiffness must be non-negative, got %g", s.Stiffness)
	}
	if !finite(s.NaturalLength) || s.NaturalLength < 0 {
		return fmt.Errorf("spring natural length must be non-negative, got %g", s.NaturalLength)
	}
	return nil
}

func (d Damper) validate() error {
	if !finite(d.Damping) || d.Damping < 0 {
		return fmt.Errorf("damping must be non-negative, got %g", d.Damping)
	}
	return nil
}

func (c ConstantForce) validate() error {
	if !finite(c.F.X) || !finite(c.F.Y) || !finite(c.F.Z) {
		return fmt.Errorf("constant force must be finite, got %v", c.F)
	}
	return nil
}

func (g Gravity) validate() error {
	if !finite(g.G.X) || !finite(g.G.Y) || !finite(g.G.Z) {
		return fmt.Errorf("gravity must be finite, got %v", g.G)
	}
	return nil
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }

// Attachment is a station fixed on a body, in body coordinates.
type Attachment struct {
	Body    mechanics.BodyID
	Station r3.Vec
}

// Element is one force law applied between up to two attachments.
type Element struct {
	Name string
	A, B Attachment
	Law  Law
}

func (e Element) String() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Law.kind()
}

// TwoPointLinearSpring connects station s1 on b1 to station s2 on b2.
func TwoPointLinearSpring(b1 mechanics.BodyID, s1 r3.Vec, b2 mechanics.BodyID, s2 r3.Vec, k, l0 float64) Element {
	return Element{
		A:   Attachment{Body: b1, Station: s1},
		B:   Attachment{Body: b2, Station: s2},
		Law: Spring{Stiffness: k, NaturalLength: l0},
	}
}

// TwoPointLinearDamper connects station s1 on b1 to station s2 on b2.
func TwoPointLinearDamper(b1 mechanics.BodyID, s1 r3.Vec, b2 mechanics.BodyID, s2 r3.Vec, c float64) Element {
	return Element{
		A:   Attachment{Body: b1, Station: s1},
		B:   Attachment{Body: b2, Station: s2},
		Law: Damper{Damping: c},
	}
}

func StationForce(body mechanics.BodyID, station, f r3.Vec) Element {
	return Element{
		A:   Attachment{Body: body, Station: station},
		Law: ConstantForce{F: f},
	}
}

func UniformGravity(g r3.Vec) Element {
	return Element{Law: Gravity{G: g}}
}
