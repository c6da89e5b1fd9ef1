package stepper_test

import (
	"errors"
	"math"

	. "github.com/onsi/gomega"
	"github.com/san-kum/mbsim/internal/dynamo"
	"github.com/san-kum/mbsim/internal/forces"
	"github.com/san-kum/mbsim/internal/integrators"
	"github.com/san-kum/mbsim/internal/mechanics"
	"github.com/san-kum/mbsim/internal/multibody"
	"github.com/san-kum/mbsim/internal/stepper"
	"gonum.org/v1/gonum/spatial/r3"
)

type blockParams struct {
	mass, stiffness, damping, speed float64
}

var reference = blockParams{mass: 2, stiffness: 10, damping: 0.1, speed: 10}

type model struct {
	sys   *multibody.System
	block mechanics.BodyID
	state *dynamo.State
}

func slidingBlock(p blockParams, custom ...forces.Custom) model {
	tree := mechanics.NewTree()
	block, err := tree.AddBody("block1", mechanics.Ground, mechanics.Translation(r3.Vec{X: 10}),
		mechanics.MassProperties{Mass: p.mass, Inertia: mechanics.NewInertia(1)}, mechanics.IdentityTransform(), mechanics.Slider)
	Expect(err).NotTo(HaveOccurred())

	f := forces.NewSubsystem()
	f.Add(forces.TwoPointLinearSpring(mechanics.Ground, r3.Vec{}, block, r3.Vec{}, p.stiffness, 10))
	f.Add(forces.TwoPointLinearDamper(mechanics.Ground, r3.Vec{}, block, r3.Vec{}, p.damping))
	for _, c := range custom {
		f.AddCustom(c)
	}
	sys := multibody.New(tree, f)
	st := sys.RealizeTopology()
	Expect(tree.SetU(st, block, p.speed)).To(Succeed())
	return model{sys: sys, block: block, state: st}
}

func newStepper(m model, opts ...integrators.Option) *stepper.Stepper {
	integ, err := integrators.New(m.sys, opts...)
	Expect(err).NotTo(HaveOccurred())
	return stepper.New(m.sys, integ)
}

// sample is one reporter invocation.
type sample struct {
	name string
	t    float64
	x    float64
}

// probe records positions into a shared log and counts Close calls.
type probe struct {
	name     string
	block    mechanics.BodyID
	log      *[]sample
	closed   int
	closeErr error
}

func (p *probe) Name() string { return p.name }

func (p *probe) Report(v *multibody.View) {
	*p.log = append(*p.log, sample{name: p.name, t: v.Time(), x: v.OriginLocation(p.block).X})
}

func (p *probe) Close() error {
	p.closed++
	return p.closeErr
}

func (p *probe) times() []float64 {
	var out []float64
	for _, s := range *p.log {
		if s.name == p.name {
			out = append(out, s.t)
		}
	}
	return out
}

// speedProbe reads the block velocity, which needs Velocity realized.
type speedProbe struct {
	block  mechanics.BodyID
	speeds []float64
}

func (p *speedProbe) Report(v *multibody.View) {
	p.speeds = append(p.speeds, v.Velocity(p.block).X)
}

type stagedSpeedProbe struct {
	*speedProbe
	stage dynamo.Stage
}

func (p *stagedSpeedProbe) RequiredStage() dynamo.Stage { return p.stage }

type panicky struct{ value any }

func (p panicky) Report(*multibody.View) { panic(p.value) }

// impulse pushes the block hard during [from, to).
type impulse struct {
	from, to, force float64
}

func (i impulse) Accumulate(_ *mechanics.Tree, st *dynamo.State, q dynamo.Vector) error {
	if t := st.Time(); t >= i.from && t < i.to {
		q[0] += i.force
	}
	return nil
}

// poison makes the dynamics undefined from a given time on.
type poison struct{ from float64 }

func (p poison) Accumulate(_ *mechanics.Tree, st *dynamo.State, q dynamo.Vector) error {
	if st.Time() >= p.from {
		q[0] = math.NaN()
	}
	return nil
}

var errActuator = errors.New("actuator fault")

type faulty struct{ from float64 }

func (f faulty) Accumulate(_ *mechanics.Tree, st *dynamo.State, _ dynamo.Vector) error {
	if st.Time() >= f.from {
		return errActuator
	}
	return nil
}

// underdamped is the closed-form displacement of a mass released at its
// rest position with speed v0.
func underdamped(p blockParams, t float64) float64 {
	wn := math.Sqrt(p.stiffness / p.mass)
	zeta := p.damping / (2 * math.Sqrt(p.stiffness*p.mass))
	wd := wn * math.Sqrt(1-zeta*zeta)
	return p.speed / wd * math.Exp(-zeta*wn*t) * math.Sin(wd*t)
}
