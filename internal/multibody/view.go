package multibody

import (
	"github.com/san-kum/mbsim/internal/dynamo"
	"github.com/san-kum/mbsim/internal/mechanics"
	"gonum.org/v1/gonum/spatial/r3"
)

// View is what reporters see of the committed state. It can realize further
// stages but cannot assign t, q or u. Queries panic with a
// *dynamo.StageError when their stage has not been realized.
type View struct {
	sys *System
	st  *dynamo.State
}

func (v *View) Time() float64       { return v.st.Time() }
func (v *View) Stage() dynamo.Stage { return v.st.Stage() }
func (v *View) Q() dynamo.Vector    { return v.st.Q().Clone() }
func (v *View) U() dynamo.Vector    { return v.st.U().Clone() }

func (v *View) Realize(stage dynamo.Stage) error {
	return v.st.Realize(v.sys, stage)
}

func (v *View) Bodies() []mechanics.Body { return v.sys.tree.Bodies() }

func (v *View) BodyByName(name string) (mechanics.BodyID, bool) {
	return v.sys.tree.BodyByName(name)
}

// OriginLocation requires Position.
func (v *View) OriginLocation(body mechanics.BodyID) r3.Vec {
	return v.sys.tree.OriginLocation(v.st, body)
}

// StationLocation requires Position.
func (v *View) StationLocation(body mechanics.BodyID, station r3.Vec) r3.Vec {
	return v.sys.tree.StationLocation(v.st, body, station)
}

// Velocity returns the body origin's linear velocity. Requires Velocity.
func (v *View) Velocity(body mechanics.BodyID) r3.Vec {
	return v.sys.tree.VelocityOf(v.st, body).Linear
}

// Energy returns kinetic and potential energy. Requires Velocity.
func (v *View) Energy() (kinetic, potential float64) {
	v.st.RequireStage(dynamo.StageVelocity, "energy")
	return v.sys.tree.KineticEnergy(v.st), v.sys.forces.PotentialEnergy(v.sys.tree, v.st)
}
