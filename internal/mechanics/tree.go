package mechanics

import (
	"errors"
	"fmt"

	"github.com/san-kum/mbsim/internal/dynamo"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	positionKey = "mechanics.position"
	velocityKey = "mechanics.velocity"
)

var (
	ErrUnknownBody   = errors.New("mechanics: unknown body")
	ErrDuplicateBody = errors.New("mechanics: duplicate body name")
	ErrNotMobile     = errors.New("mechanics: body has no mobility")
)

var xAxis = r3.Vec{X: 1}

type positionCache struct {
	poses []Transform
	axes  []r3.Vec
}

type velocityCache struct {
	velocities []SpatialVelocity
}

// Tree is a ground-rooted tree of jointed bodies. Bodies are stored in the
// order they were added, which is always parent-before-child.
type Tree struct {
	bodies     []Body
	byName     map[string]BodyID
	paths      [][]BodyID
	generation uint64
	realized   bool
	nq, nu     int
}

func NewTree() *Tree {
	return &Tree{
		bodies: []Body{{
			ID:       Ground,
			Name:     "ground",
			Parent:   -1,
			Joint:    Weld,
			InParent: IdentityTransform(),
			InBody:   IdentityTransform(),
			qIndex:   -1,
			uIndex:   -1,
		}},
		byName:     map[string]BodyID{"ground": Ground},
		generation: 1,
	}
}

// AddBody attaches a new body to parent. The parent must already exist, so
// the tree cannot contain a cycle. Adding a body changes the topology: states
// created earlier can no longer be realized.
func (t *Tree) AddBody(name string, parent BodyID, inParent Transform, mass MassProperties, inBody Transform, joint Joint) (BodyID, error) {
	if name == "" {
		return 0, fmt.Errorf("body name must not be empty")
	}
	if _, dup := t.byName[name]; dup {
		return 0, fmt.Errorf("%w: %s", ErrDuplicateBody, name)
	}
	if parent < 0 || int(parent) >= len(t.bodies) {
		return 0, fmt.Errorf("%w: parent %d of %s", ErrUnknownBody, parent, name)
	}
	if joint != Weld && joint != Slider {
		return 0, fmt.Errorf("body %s: unsupported joint %v", name, joint)
	}
	if err := mass.validate(); err != nil {
		return 0, fmt.Errorf("body %s: %w", name, err)
	}

	id := BodyID(len(t.bodies))
	t.bodies = append(t.bodies, Body{
		ID:       id,
		Name:     name,
		Parent:   parent,
		Joint:    joint,
		Mass:     mass,
		InParent: inParent,
		InBody:   inBody,
		qIndex:   -1,
		uIndex:   -1,
	})
	t.byName[name] = id
	t.generation++
	t.realized = false
	return id, nil
}

// RealizeTopology assigns q and u slots and returns the topology generation.
func (t *Tree) RealizeTopology() uint64 {
	t.nq, t.nu = 0, 0
	t.paths = make([][]BodyID, len(t.bodies))
	for i := range t.bodies {
		b := &t.bodies[i]
		b.qIndex, b.uIndex = -1, -1
		if b.Joint.DOF() > 0 {
			b.qIndex, b.uIndex = t.nq, t.nu
			t.nq++
			t.nu++
		}
		if i == 0 {
			continue
		}
		parentPath := t.paths[b.Parent]
		path := make([]BodyID, 0, len(parentPath)+1)
		path = append(path, parentPath...)
		if b.Joint.DOF() > 0 {
			path = append(path, b.ID)
		}
		t.paths[i] = path
	}
	t.realized = true
	return t.generation
}

func (t *Tree) Generation() uint64 { return t.generation }

func (t *Tree) requireTopology(op string) {
	if !t.realized {
		panic(&dynamo.StageError{Op: op, Want: dynamo.StageTopology, Have: dynamo.StageEmpty, Wrapped: dynamo.ErrStageNotRealized})
	}
}

func (t *Tree) NQ() int {
	t.requireTopology("nq")
	return t.nq
}

func (t *Tree) NU() int {
	t.requireTopology("nu")
	return t.nu
}

// DefaultState returns a zero state for the realized topology.
func (t *Tree) DefaultState() *dynamo.State {
	t.requireTopology("default state")
	return dynamo.NewState(t.generation, t.nq, t.nu)
}

func (t *Tree) NumBodies() int { return len(t.bodies) }

func (t *Tree) Body(id BodyID) (Body, error) {
	if id < 0 || int(id) >= len(t.bodies) {
		return Body{}, fmt.Errorf("%w: %d", ErrUnknownBody, id)
	}
	return t.bodies[id], nil
}

func (t *Tree) BodyByName(name string) (BodyID, bool) {
	id, ok := t.byName[name]
	return id, ok
}

// Bodies returns a copy of every body including ground.
func (t *Tree) Bodies() []Body {
	out := make([]Body, len(t.bodies))
	copy(out, t.bodies)
	return out
}

// RealizePosition computes every body's pose from q, parents first.
func (t *Tree) RealizePosition(st *dynamo.State) {
	t.requireTopology("realize position")
	n := len(t.bodies)
	pc := positionCache{
		poses: make([]Transform, n),
		axes:  make([]r3.Vec, n),
	}
	pc.poses[Ground] = IdentityTransform()
	q := st.Q()
	for i := 1; i < n; i++ {
		b := &t.bodies[i]
		xGF := pc.poses[b.Parent].Compose(b.InParent)
		xFM := IdentityTransform()
		if b.Joint == Slider {
			xFM = Translation(r3.Scale(q[b.qIndex], xAxis))
			pc.axes[i] = xGF.R.Apply(xAxis)
		}
		pc.poses[i] = xGF.Compose(xFM).Compose(b.InBody.Inverse())
	}
	st.Put(positionKey, dynamo.StagePosition, pc)
}

// RealizeVelocity computes every body's spatial velocity from u.
func (t *Tree) RealizeVelocity(st *dynamo.State) {
	pc := dynamo.Lookup[positionCache](st, positionKey, dynamo.StagePosition)
	n := len(t.bodies)
	vc := velocityCache{velocities: make([]SpatialVelocity, n)}
	u := st.U()
	for i := 1; i < n; i++ {
		b := &t.bodies[i]
		vp := vc.velocities[b.Parent]
		arm := r3.Sub(pc.poses[i].P, pc.poses[b.Parent].P)
		v := r3.Add(vp.Linear, r3.Cross(vp.Angular, arm))
		if b.Joint == Slider {
			v = r3.Add(v, r3.Scale(u[b.uIndex], pc.axes[i]))
		}
		vc.velocities[i] = SpatialVelocity{Angular: vp.Angular, Linear: v}
	}
	st.Put(velocityKey, dynamo.StageVelocity, vc)
}

func (t *Tree) position(st *dynamo.State) positionCache {
	return dynamo.Lookup[positionCache](st, positionKey, dynamo.StagePosition)
}

// PoseOf returns X_GB. Requires Position.
func (t *Tree) PoseOf(st *dynamo.State, id BodyID) Transform {
	return t.position(st).poses[id]
}

// OriginLocation returns the body origin in ground. Requires Position.
func (t *Tree) OriginLocation(st *dynamo.State, id BodyID) r3.Vec {
	return t.PoseOf(st, id).P
}

// StationLocation maps a point fixed on the body to ground. Requires Position.
func (t *Tree) StationLocation(st *dynamo.State, id BodyID, station r3.Vec) r3.Vec {
	return t.PoseOf(st, id).Apply(station)
}

// SliderAxis returns the ground-frame direction of a slider. Requires Position.
func (t *Tree) SliderAxis(st *dynamo.State, id BodyID) r3.Vec {
	return t.position(st).axes[id]
}

// VelocityOf returns the body's spatial velocity. Requires Velocity.
func (t *Tree) VelocityOf(st *dynamo.State, id BodyID) SpatialVelocity {
	return dynamo.Lookup[velocityCache](st, velocityKey, dynamo.StageVelocity).velocities[id]
}

// StationVelocity returns the ground velocity of a point fixed on the body.
// Requires Velocity.
func (t *Tree) StationVelocity(st *dynamo.State, id BodyID, station r3.Vec) r3.Vec {
	v := t.VelocityOf(st, id)
	arm := t.PoseOf(st, id).R.Apply(station)
	return r3.Add(v.Linear, r3.Cross(v.Angular, arm))
}

// MassMatrix returns M with M_ij = Σ m_b d_i·d_j over the bodies whose root
// path contains both mobilities i and j. Requires Position and at least one
// mobility.
func (t *Tree) MassMatrix(st *dynamo.State) *mat.SymDense {
	pc := t.position(st)
	nu := t.nu
	data := make([]float64, nu*nu)
	for i := 1; i < len(t.bodies); i++ {
		m := t.bodies[i].Mass.Mass
		if m == 0 {
			continue
		}
		path := t.paths[i]
		for a, bi := range path {
			di := pc.axes[bi]
			ui := t.bodies[bi].uIndex
			for _, bj := range path[a:] {
				uj := t.bodies[bj].uIndex
				v := m * r3.Dot(di, pc.axes[bj])
				data[ui*nu+uj] += v
				if ui != uj {
					data[uj*nu+ui] += v
				}
			}
		}
	}
	return mat.NewSymDense(nu, data)
}

// ApplyStationForce adds the generalized force produced by a ground-frame
// force f acting at station on body id. Translational mobilities see only
// the force, so the station does not change the projection. Requires
// Position.
func (t *Tree) ApplyStationForce(st *dynamo.State, id BodyID, station r3.Vec, f r3.Vec, genForces dynamo.Vector) {
	pc := t.position(st)
	for _, j := range t.paths[id] {
		genForces[t.bodies[j].uIndex] += r3.Dot(pc.axes[j], f)
	}
}

// KineticEnergy returns Σ ½ m |v_com|². Requires Velocity.
func (t *Tree) KineticEnergy(st *dynamo.State) float64 {
	ke := 0.0
	for i := 1; i < len(t.bodies); i++ {
		b := t.bodies[i]
		if b.Mass.Mass == 0 {
			continue
		}
		v := t.StationVelocity(st, b.ID, b.Mass.COM)
		ke += 0.5 * b.Mass.Mass * r3.Norm2(v)
	}
	return ke
}

func (t *Tree) mobile(id BodyID) (Body, error) {
	b, err := t.Body(id)
	if err != nil {
		return Body{}, err
	}
	if b.uIndex < 0 {
		return Body{}, fmt.Errorf("%w: %s", ErrNotMobile, b.Name)
	}
	return b, nil
}

// SetQ assigns a body's joint coordinate.
func (t *Tree) SetQ(st *dynamo.State, id BodyID, v float64) error {
	t.requireTopology("set q")
	b, err := t.mobile(id)
	if err != nil {
		return err
	}
	st.SetQAt(b.qIndex, v)
	return nil
}

// SetU assigns a body's joint speed.
func (t *Tree) SetU(st *dynamo.State, id BodyID, v float64) error {
	t.requireTopology("set u")
	b, err := t.mobile(id)
	if err != nil {
		return err
	}
	st.SetUAt(b.uIndex, v)
	return nil
}
