// Package experiment builds a runnable simulation from a config: the body
// tree, forces, initial state, integrator, stepper and reporters.
package experiment

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/san-kum/mbsim/internal/config"
	"github.com/san-kum/mbsim/internal/dynamo"
	"github.com/san-kum/mbsim/internal/forces"
	"github.com/san-kum/mbsim/internal/integrators"
	"github.com/san-kum/mbsim/internal/mechanics"
	"github.com/san-kum/mbsim/internal/metrics"
	"github.com/san-kum/mbsim/internal/multibody"
	"github.com/san-kum/mbsim/internal/reporters"
	"github.com/san-kum/mbsim/internal/stepper"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"
)

type Experiment struct {
	cfg      *config.Config
	sys      *multibody.System
	state    *dynamo.State
	integ    *integrators.Integrator
	stepper  *stepper.Stepper
	counters *metrics.Counters

	reporters []stepper.Reporter
	recorder  *reporters.Recorder
	energy    *reporters.Energy
}

type options struct {
	registry    *Registry
	output      io.Writer
	dir         string
	recordEvery float64
	stepperOpts []stepper.Option
}

type Option func(*options)

func WithRegistry(r *Registry) Option { return func(o *options) { o.registry = r } }

// WithOutput sets where console reporters write. Defaults to stdout.
func WithOutput(w io.Writer) Option { return func(o *options) { o.output = w } }

// WithDir resolves relative reporter file paths against dir.
func WithDir(dir string) Option { return func(o *options) { o.dir = dir } }

// WithRecording makes sure a recorder samples every interval seconds, adding
// one if the config has none.
func WithRecording(interval float64) Option {
	return func(o *options) { o.recordEvery = interval }
}

func WithStepperOptions(opts ...stepper.Option) Option {
	return func(o *options) { o.stepperOpts = append(o.stepperOpts, opts...) }
}

// Build validates cfg and wires everything up to an initialized stepper.
// Files opened by reporters are closed again if a later step fails.
func Build(cfg *config.Config, opts ...Option) (*Experiment, error) {
	o := options{output: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = NewRegistry()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	env := &Env{Config: cfg, Tree: mechanics.NewTree(), Output: o.output, Dir: o.dir}
	if err := addBodies(env.Tree, cfg.Bodies); err != nil {
		return nil, err
	}

	fs := forces.NewSubsystem()
	for i, fc := range cfg.Forces {
		params, err := fc.Decode()
		if err != nil {
			return nil, err
		}
		factory, err := o.registry.Force(strings.ToLower(fc.Kind))
		if err != nil {
			return nil, err
		}
		el, err := factory(env, fc.Name, params)
		if err != nil {
			return nil, fmt.Errorf("force %d: %w", i, err)
		}
		fs.Add(el)
	}

	e := &Experiment{cfg: cfg, sys: multibody.New(env.Tree, fs), counters: metrics.NewCounters()}
	env.System = e.sys
	e.state = e.sys.RealizeTopology()
	for _, b := range cfg.Bodies {
		if err := e.setInitial(b); err != nil {
			return nil, err
		}
	}

	var err error
	e.integ, err = newIntegrator(e.sys, cfg.Integrator)
	if err != nil {
		return nil, err
	}
	sopts := append([]stepper.Option{stepper.WithCounters(e.counters)}, o.stepperOpts...)
	e.stepper = stepper.New(e.sys, e.integ, sopts...)

	if err := e.addReporters(env, o); err != nil {
		return nil, errors.Join(err, e.stepper.Close())
	}
	if err := e.stepper.Initialize(e.state); err != nil {
		return nil, errors.Join(err, e.stepper.Close())
	}
	logrus.Debugf("built %s: %d bodies, %d forces, %d reporters", cfg.Name, len(cfg.Bodies), fs.Len(), len(e.reporters))
	return e, nil
}

func addBodies(tree *mechanics.Tree, bodies []config.BodyConfig) error {
	for _, b := range bodies {
		parent, ok := tree.BodyByName(b.Parent)
		if !ok {
			return fmt.Errorf("body %q: %w %q", b.Name, config.ErrUnknownBody, b.Parent)
		}
		joint, err := mechanics.ParseJoint(b.Joint)
		if err != nil {
			return fmt.Errorf("body %q: %w", b.Name, err)
		}
		inParent := mechanics.Transform{
			R: mechanics.RotationAbout(b.Angle*math.Pi/180, r3.Vec{Z: 1}),
			P: vec(b.Location),
		}
		mass := mechanics.MassProperties{
			Mass:    b.Mass,
			COM:     vec(b.COM),
			Inertia: mechanics.NewInertia(b.Inertia),
		}
		if _, err := tree.AddBody(b.Name, parent, inParent, mass, mechanics.Translation(vec(b.Offset)), joint); err != nil {
			return fmt.Errorf("body %q: %w", b.Name, err)
		}
	}
	return nil
}

func (e *Experiment) setInitial(b config.BodyConfig) error {
	if b.Q == 0 && b.U == 0 {
		return nil
	}
	tree := e.sys.Tree()
	id, _ := tree.BodyByName(b.Name)
	if err := tree.SetQ(e.state, id, b.Q); err != nil {
		return fmt.Errorf("body %q: %w", b.Name, err)
	}
	if err := tree.SetU(e.state, id, b.U); err != nil {
		return fmt.Errorf("body %q: %w", b.Name, err)
	}
	return nil
}

func newIntegrator(sys *multibody.System, c config.IntegratorConfig) (*integrators.Integrator, error) {
	tab, err := integrators.TableauByName(c.Method)
	if err != nil {
		return nil, err
	}
	opts := []integrators.Option{integrators.WithTableau(tab), integrators.WithAccuracy(c.Accuracy)}
	if c.MinStep > 0 {
		opts = append(opts, integrators.WithMinStep(c.MinStep))
	}
	if c.MaxStep > 0 {
		opts = append(opts, integrators.WithMaxStep(c.MaxStep))
	}
	if c.InitialStep > 0 {
		opts = append(opts, integrators.WithInitialStep(c.InitialStep))
	}
	return integrators.New(sys, opts...)
}

func (e *Experiment) addReporters(env *Env, o options) error {
	for i, rc := range e.cfg.Reporters {
		params, err := rc.Decode()
		if err != nil {
			return err
		}
		factory, err := o.registry.Reporter(strings.ToLower(rc.Kind))
		if err != nil {
			return err
		}
		r, err := factory(env, params)
		if err != nil {
			return fmt.Errorf("reporter %d (%s): %w", i, rc.Kind, err)
		}
		if err := e.add(r, rc.Interval); err != nil {
			return err
		}
	}
	if o.recordEvery > 0 && e.recorder == nil {
		return e.add(reporters.NewRecorder(), o.recordEvery)
	}
	return nil
}

func (e *Experiment) add(r stepper.Reporter, interval float64) error {
	if _, err := e.stepper.AddReporter(r, interval); err != nil {
		// The stepper never saw r, so its teardown will not close it.
		if c, ok := r.(io.Closer); ok {
			err = errors.Join(err, c.Close())
		}
		return err
	}
	e.reporters = append(e.reporters, r)
	switch r := r.(type) {
	case *reporters.Recorder:
		if e.recorder == nil {
			e.recorder = r
		}
	case *reporters.Energy:
		if e.energy == nil {
			e.energy = r
		}
	}
	return nil
}

// Run steps to the configured duration.
func (e *Experiment) Run() (*stepper.Result, error) {
	return e.stepper.StepTo(e.cfg.Duration)
}

// Close releases reporters of an experiment that was never run.
func (e *Experiment) Close() error { return e.stepper.Close() }

func (e *Experiment) Config() *config.Config              { return e.cfg }
func (e *Experiment) System() *multibody.System           { return e.sys }
func (e *Experiment) InitialState() *dynamo.State         { return e.state }
func (e *Experiment) Integrator() *integrators.Integrator { return e.integ }
func (e *Experiment) Stepper() *stepper.Stepper           { return e.stepper }
func (e *Experiment) Counters() *metrics.Counters         { return e.counters }
func (e *Experiment) Reporters() []stepper.Reporter       { return e.reporters }

// Recorder is the first recorder, or nil.
func (e *Experiment) Recorder() *reporters.Recorder { return e.recorder }

// Energy is the first energy reporter, or nil.
func (e *Experiment) Energy() *reporters.Energy { return e.energy }
