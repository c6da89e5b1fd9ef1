// Package stepper drives an integrator to a stop time while firing periodic
// reporters at exact multiples of their intervals.
package stepper

import (
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"

	"github.com/san-kum/mbsim/internal/dynamo"
	"github.com/san-kum/mbsim/internal/integrators"
	"github.com/san-kum/mbsim/internal/metrics"
	"github.com/san-kum/mbsim/internal/multibody"
	"github.com/sirupsen/logrus"
)

type Phase int

const (
	Idle Phase = iota
	Running
	Finished
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Finished:
		return "finished"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

type Result struct {
	State         *dynamo.State
	Phase         Phase
	StepsAccepted int
	StepsRejected int
	EventsFired   int
	Integrator    integrators.Stats
	Metrics       map[string]float64
}

type Stepper struct {
	sys   *multibody.System
	integ *integrators.Integrator

	phase       Phase
	initialized bool
	closed      bool
	state       *dynamo.State
	events      []*event

	observers []Observer
	metrics   []metrics.Metric
	counters  *metrics.Counters
	log       logrus.FieldLogger

	steps    int
	rejected int
	fired    int
}

type Option func(*Stepper)

func WithObserver(o Observer) Option {
	return func(s *Stepper) { s.observers = append(s.observers, o) }
}

func WithMetric(m metrics.Metric) Option {
	return func(s *Stepper) { s.metrics = append(s.metrics, m) }
}

func WithCounters(c *metrics.Counters) Option {
	return func(s *Stepper) { s.counters = c }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Stepper) { s.log = l }
}

func New(sys *multibody.System, integ *integrators.Integrator, opts ...Option) *Stepper {
	s := &Stepper{
		sys:   sys,
		integ: integ,
		log:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.counters == nil {
		s.counters = metrics.NewCounters()
	}
	return s
}

func (s *Stepper) Phase() Phase { return s.phase }

// State returns the committed state. It must not be modified.
func (s *Stepper) State() *dynamo.State { return s.state }

// AddReporter schedules r every interval seconds. Reporters sharing an
// instant fire in the order they were added.
func (s *Stepper) AddReporter(r Reporter, interval float64) (EventID, error) {
	if s.phase != Idle || s.initialized {
		return 0, dynamo.ErrNotIdle
	}
	if !(interval > 0) || math.IsInf(interval, 0) {
		return 0, fmt.Errorf("%w: %g", dynamo.ErrBadInterval, interval)
	}
	stage := dynamo.StagePosition
	if req, ok := r.(StageRequirer); ok {
		stage = req.RequiredStage()
		if stage < dynamo.StageTopology || stage > dynamo.StageAcceleration {
			return 0, fmt.Errorf("%w: reporter requires %v", dynamo.ErrInvalidStage, stage)
		}
	}
	id := EventID(len(s.events))
	name := fmt.Sprintf("reporter%d", id)
	if n, ok := r.(Named); ok {
		name = n.Name()
	}
	s.events = append(s.events, &event{
		id:       id,
		name:     name,
		interval: interval,
		stage:    stage,
		reporter: r,
	})
	return id, nil
}

// Initialize commits a copy of st as the starting state.
func (s *Stepper) Initialize(st *dynamo.State) error {
	if s.phase != Idle {
		return dynamo.ErrNotIdle
	}
	if st.Generation() != s.sys.Generation() {
		return dynamo.ErrTopologyChanged
	}
	s.state = st.Clone()
	s.integ.Reset()
	s.initialized = true
	return nil
}

// StepTo integrates until t reaches stop. The run always ends in Finished or
// Failed, and every reporter is torn down before StepTo returns. Staging
// panics raised inside the run are recovered and reported as a failure.
func (s *Stepper) StepTo(stop float64) (res *Result, err error) {
	if s.phase != Idle || !s.initialized || s.closed {
		return nil, dynamo.ErrNotIdle
	}
	if math.IsNaN(stop) || math.IsInf(stop, 0) || stop < s.state.Time() {
		return nil, fmt.Errorf("stop time %g is not a finite time after %g", stop, s.state.Time())
	}

	s.phase = Running
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		s.phase = Failed
		closeErr := s.teardown()
		var se *dynamo.StageError
		if perr, ok := r.(error); ok && errors.As(perr, &se) {
			s.log.Warnf("run failed at t=%.6g: %v", s.state.Time(), perr)
			res, err = s.result(), errors.Join(perr, closeErr)
			return
		}
		panic(r)
	}()

	s.log.Infof("starting run: t=%g to %g with %d reporters", s.state.Time(), stop, len(s.events))

	// Every reporter sees the initial state.
	t0 := s.state.Time()
	for _, e := range s.events {
		if err := s.fire(e); err != nil {
			return s.fail(err)
		}
		e.schedule(t0)
	}

	for !reached(s.state.Time(), stop) {
		target := stop
		for _, e := range s.events {
			if e.next < target && !sameTime(e.next, target) {
				target = e.next
			}
		}

		before := s.integ.Stats()
		trial, err := s.integ.Step(s.state, target)
		after := s.integ.Stats()
		rejected := after.Rejected - before.Rejected
		evals := after.Evaluations - before.Evaluations
		s.rejected += rejected
		if err != nil {
			s.counters.ObserveFailure(rejected, evals)
			return s.fail(err)
		}

		s.state = trial.State
		s.steps++
		s.counters.ObserveStep(trial.H, rejected, evals)
		t := s.state.Time()
		s.log.Debugf("[t=%.6f] accepted h=%.3g err=%.3g (%d rejected)", t, trial.H, trial.Error, rejected)

		if len(s.observers) > 0 || len(s.metrics) > 0 {
			v := s.sys.View(s.state)
			info := StepInfo{Step: s.steps, Time: t, H: trial.H, Error: trial.Error, Rejected: rejected}
			for _, o := range s.observers {
				o.OnStep(v, info)
			}
			for _, m := range s.metrics {
				m.Observe(v)
			}
		}

		for _, e := range s.events {
			if !e.due(t) {
				continue
			}
			if err := s.fire(e); err != nil {
				return s.fail(err)
			}
			e.schedule(t)
		}
	}

	s.phase = Finished
	closeErr := s.teardown()
	s.log.Infof("run finished at t=%g: %d steps, %d rejected, %d reports", s.state.Time(), s.steps, s.rejected, s.fired)
	return s.result(), closeErr
}

func reached(t, stop float64) bool {
	return t >= stop || sameTime(t, stop)
}

func (s *Stepper) fire(e *event) error {
	v := s.sys.View(s.state)
	if err := v.Realize(e.stage); err != nil {
		return fmt.Errorf("reporter %s at t=%g: %w", e.name, s.state.Time(), err)
	}
	e.reporter.Report(v)
	s.fired++
	s.counters.EventFired(e.name)
	s.log.Debugf("[t=%.6f] fired %s", s.state.Time(), e.name)
	return nil
}

func (s *Stepper) fail(err error) (*Result, error) {
	s.phase = Failed
	s.log.Warnf("run failed at t=%.6g: %v", s.state.Time(), err)
	closeErr := s.teardown()
	return s.result(), errors.Join(err, closeErr)
}

// Close tears down the reporters of a run that was never stepped. It is a
// no-op once StepTo has returned.
func (s *Stepper) Close() error {
	return s.teardown()
}

func (s *Stepper) teardown() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	var seen []io.Closer
	for _, e := range s.events {
		c, ok := e.reporter.(io.Closer)
		if !ok || containsCloser(seen, c) {
			continue
		}
		seen = append(seen, c)
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", e.name, err))
		}
	}
	return errors.Join(errs...)
}

func containsCloser(seen []io.Closer, c io.Closer) bool {
	if !reflect.TypeOf(c).Comparable() {
		return false
	}
	for _, x := range seen {
		if reflect.TypeOf(x) == reflect.TypeOf(c) && x == c {
			return true
		}
	}
	return false
}

func (s *Stepper) result() *Result {
	out := make(map[string]float64)
	for k, v := range s.counters.Snapshot() {
		out[k] = v
	}
	for _, m := range s.metrics {
		out[m.Name()] = m.Value()
	}
	return &Result{
		State:         s.state,
		Phase:         s.phase,
		StepsAccepted: s.steps,
		StepsRejected: s.rejected,
		EventsFired:   s.fired,
		Integrator:    s.integ.Stats(),
		Metrics:       out,
	}
}
