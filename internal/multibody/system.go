// Package multibody ties a body tree and its forces into a realizable system
// and computes the equations of motion.
package multibody

import (
	"errors"
	"fmt"

	"github.com/san-kum/mbsim/internal/dynamo"
	"github.com/san-kum/mbsim/internal/forces"
	"github.com/san-kum/mbsim/internal/mechanics"
	"gonum.org/v1/gonum/mat"
)

const (
	dynamicsKey     = "multibody.forces"
	accelerationKey = "multibody.udot"
)

// System owns a tree and its force subsystem and realizes states for them.
type System struct {
	tree   *mechanics.Tree
	forces *forces.Subsystem
}

func New(tree *mechanics.Tree, f *forces.Subsystem) *System {
	if f == nil {
		f = forces.NewSubsystem()
	}
	return &System{tree: tree, forces: f}
}

func (s *System) Tree() *mechanics.Tree     { return s.tree }
func (s *System) Forces() *forces.Subsystem { return s.forces }
func (s *System) Generation() uint64        { return s.tree.Generation() }

// RealizeTopology freezes the tree and returns its default state.
func (s *System) RealizeTopology() *dynamo.State {
	s.tree.RealizeTopology()
	return s.tree.DefaultState()
}

// RealizeStage computes one stage. It is called by dynamo.State.Realize.
func (s *System) RealizeStage(st *dynamo.State, stage dynamo.Stage) error {
	switch stage {
	case dynamo.StageModel:
		return s.forces.Validate(s.tree)
	case dynamo.StageInstance:
		if st.NQ() != s.tree.NQ() || st.NU() != s.tree.NU() {
			return fmt.Errorf("%w: state has %d/%d, tree has %d/%d",
				dynamo.ErrDimensionMismatch, st.NQ(), st.NU(), s.tree.NQ(), s.tree.NU())
		}
	case dynamo.StagePosition:
		s.tree.RealizePosition(st)
	case dynamo.StageVelocity:
		s.tree.RealizeVelocity(st)
	case dynamo.StageDynamics:
		q, err := s.forces.Accumulate(s.tree, st)
		if err != nil {
			return err
		}
		st.Put(dynamicsKey, dynamo.StageDynamics, q)
	case dynamo.StageAcceleration:
		udot, err := s.solve(st)
		if err != nil {
			return err
		}
		st.Put(accelerationKey, dynamo.StageAcceleration, udot)
	}
	return nil
}

// solve returns u̇ from M·u̇ = Q.
func (s *System) solve(st *dynamo.State) (dynamo.Vector, error) {
	nu := st.NU()
	if nu == 0 {
		return dynamo.Vector{}, nil
	}
	q := dynamo.Lookup[dynamo.Vector](st, dynamicsKey, dynamo.StageDynamics)

	var chol mat.Cholesky
	if ok := chol.Factorize(s.tree.MassMatrix(st)); !ok {
		return nil, dynamo.ErrSingularMass
	}
	udot := mat.NewVecDense(nu, nil)
	if err := chol.SolveVecTo(udot, mat.NewVecDense(nu, q.Clone())); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) {
			return nil, fmt.Errorf("%w: condition number %g", dynamo.ErrSingularMass, float64(cond))
		}
		return nil, err
	}
	return dynamo.Vector(udot.RawVector().Data), nil
}

// GeneralizedForces returns the applied forces. Realizes Dynamics.
func (s *System) GeneralizedForces(st *dynamo.State) (dynamo.Vector, error) {
	if err := st.Realize(s, dynamo.StageDynamics); err != nil {
		return nil, err
	}
	return dynamo.Lookup[dynamo.Vector](st, dynamicsKey, dynamo.StageDynamics), nil
}

// Derivatives evaluates the right-hand side at st. Every mobility is a
// slider, so q̇ = u.
func (s *System) Derivatives(st *dynamo.State) (qdot, udot dynamo.Vector, err error) {
	if err := st.Realize(s, dynamo.StageAcceleration); err != nil {
		return nil, nil, err
	}
	udot = dynamo.Lookup[dynamo.Vector](st, accelerationKey, dynamo.StageAcceleration)
	return st.U().Clone(), udot.Clone(), nil
}

// Energy returns kinetic and potential energy. Realizes Velocity.
func (s *System) Energy(st *dynamo.State) (kinetic, potential float64, err error) {
	if err := st.Realize(s, dynamo.StageVelocity); err != nil {
		return 0, 0, err
	}
	return s.tree.KineticEnergy(st), s.forces.PotentialEnergy(s.tree, st), nil
}

// View returns a read-mostly handle on st for reporters.
func (s *System) View(st *dynamo.State) *View {
	return &View{sys: s, st: st}
}
