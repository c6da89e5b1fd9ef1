package forces

import (
	"fmt"

	"github.com/san-kum/mbsim/internal/dynamo"
	"github.com/san-kum/mbsim/internal/mechanics"
	"gonum.org/v1/gonum/spatial/r3"
)

// Custom is an open-ended force contribution. Accumulate adds into q, which
// has one entry per generalized speed, and must not modify st.
type Custom interface {
	Accumulate(tree *mechanics.Tree, st *dynamo.State, q dynamo.Vector) error
}

// Potential is implemented by custom forces that store energy.
type Potential interface {
	PotentialEnergy(tree *mechanics.Tree, st *dynamo.State) float64
}

type Subsystem struct {
	elements []Element
	custom   []Custom
}

func NewSubsystem() *Subsystem {
	return &Subsystem{}
}

// Add registers an element and returns its index.
func (s *Subsystem) Add(e Element) int {
	s.elements = append(s.elements, e)
	return len(s.elements) - 1
}

func (s *Subsystem) AddCustom(c Custom) {
	s.custom = append(s.custom, c)
}

func (s *Subsystem) Elements() []Element {
	out := make([]Element, len(s.elements))
	copy(out, s.elements)
	return out
}

func (s *Subsystem) Len() int { return len(s.elements) + len(s.custom) }

// Validate checks every element's law and attachments against tree.
func (s *Subsystem) Validate(tree *mechanics.Tree) error {
	for i, e := range s.elements {
		if e.Law == nil {
			return fmt.Errorf("force %d: no law", i)
		}
		if err := e.Law.validate(); err != nil {
			return fmt.Errorf("force %d (%v): %w", i, e, err)
		}
		if _, ok := e.Law.(Gravity); ok {
			continue
		}
		if _, err := tree.Body(e.A.Body); err != nil {
			return fmt.Errorf("force %d (%v): %w", i, e, err)
		}
		if _, ok := e.Law.(ConstantForce); ok {
			continue
		}
		if _, err := tree.Body(e.B.Body); err != nil {
			return fmt.Errorf("force %d (%v): %w", i, e, err)
		}
	}
	return nil
}

// Accumulate returns the generalized forces of every element. Requires
// Velocity.
func (s *Subsystem) Accumulate(tree *mechanics.Tree, st *dynamo.State) (dynamo.Vector, error) {
	st.RequireStage(dynamo.StageVelocity, "accumulate forces")
	q := make(dynamo.Vector, st.NU())
	for _, e := range s.elements {
		s.apply(tree, st, e, q)
	}
	for i, c := range s.custom {
		if err := c.Accumulate(tree, st, q); err != nil {
			return nil, fmt.Errorf("custom force %d: %w", i, err)
		}
	}
	return q, nil
}

func (s *Subsystem) apply(tree *mechanics.Tree, st *dynamo.State, e Element, q dynamo.Vector) {
	switch law := e.Law.(type) {
	case Spring:
		dir, length := line(tree, st, e)
		if length == 0 {
			return
		}
		pair(tree, st, e, r3.Scale(law.Stiffness*(length-law.NaturalLength), dir), q)
	case Damper:
		dir, length := line(tree, st, e)
		if length == 0 {
			return
		}
		v1 := tree.StationVelocity(st, e.A.Body, e.A.Station)
		v2 := tree.StationVelocity(st, e.B.Body, e.B.Station)
		rate := r3.Dot(r3.Sub(v2, v1), dir)
		pair(tree, st, e, r3.Scale(law.Damping*rate, dir), q)
	case ConstantForce:
		tree.ApplyStationForce(st, e.A.Body, e.A.Station, law.F, q)
	case Gravity:
		for _, b := range tree.Bodies() {
			if b.Mass.Mass == 0 {
				continue
			}
			tree.ApplyStationForce(st, b.ID, b.Mass.COM, r3.Scale(b.Mass.Mass, law.G), q)
		}
	}
}

// line returns the unit vector from the first attachment to the second and
// the distance between them.
func line(tree *mechanics.Tree, st *dynamo.State, e Element) (r3.Vec, float64) {
	p1 := tree.StationLocation(st, e.A.Body, e.A.Station)
	p2 := tree.StationLocation(st, e.B.Body, e.B.Station)
	d := r3.Sub(p2, p1)
	length := r3.Norm(d)
	if length == 0 {
		return r3.Vec{}, 0
	}
	return r3.Scale(1/length, d), length
}

// pair applies f to the first attachment and -f to the second.
func pair(tree *mechanics.Tree, st *dynamo.State, e Element, f r3.Vec, q dynamo.Vector) {
	tree.ApplyStationForce(st, e.A.Body, e.A.Station, f, q)
	tree.ApplyStationForce(st, e.B.Body, e.B.Station, r3.Scale(-1, f), q)
}

// PotentialEnergy sums spring, constant-force, gravity and custom potential
// energy. Requires Position. Gravity and constant forces are measured from
// the ground origin.
func (s *Subsystem) PotentialEnergy(tree *mechanics.Tree, st *dynamo.State) float64 {
	st.RequireStage(dynamo.StagePosition, "potential energy")
	pe := 0.0
	for _, e := range s.elements {
		switch law := e.Law.(type) {
		case Spring:
			_, length := line(tree, st, e)
			stretch := length - law.NaturalLength
			pe += 0.5 * law.Stiffness * stretch * stretch
		case ConstantForce:
			pe -= r3.Dot(law.F, tree.StationLocation(st, e.A.Body, e.A.Station))
		case Gravity:
			for _, b := range tree.Bodies() {
				if b.Mass.Mass == 0 {
					continue
				}
				pe -= b.Mass.Mass * r3.Dot(law.G, tree.StationLocation(st, b.ID, b.Mass.COM))
			}
		}
	}
	for _, c := range s.custom {
		if p, ok := c.(Potential); ok {
			pe += p.PotentialEnergy(tree, st)
		}
	}
	return pe
}
