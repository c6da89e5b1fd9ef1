// Package integrators advances a dynamo.State with adaptive embedded
// Runge-Kutta pairs.
package integrators

import (
	"fmt"
	"math"

	"github.com/san-kum/mbsim/internal/dynamo"
	"gonum.org/v1/gonum/floats"
)

const (
	DefaultAccuracy    = 1e-3
	DefaultMinStep     = 1e-10
	DefaultInitialStep = 1e-2
)

// System is the right-hand side. Derivatives may realize st but must not
// assign t, q or u.
type System interface {
	Derivatives(st *dynamo.State) (qdot, udot dynamo.Vector, err error)
}

// Trial is one attempted step.
type Trial struct {
	H     float64
	State *dynamo.State
	Error float64
}

type Stats struct {
	Attempted   int
	Accepted    int
	Rejected    int
	Evaluations int
}

type Integrator struct {
	sys System
	tab Tableau

	accuracy    float64
	minStep     float64
	maxStep     float64
	initialStep float64

	safety   float64
	minScale float64
	maxScale float64

	hNext float64
	stats Stats
}

type Option func(*Integrator)

func WithAccuracy(acc float64) Option {
	return func(in *Integrator) { in.accuracy = acc }
}

func WithMinStep(h float64) Option {
	return func(in *Integrator) { in.minStep = h }
}

// WithMaxStep caps every step. Zero or negative means no cap.
func WithMaxStep(h float64) Option {
	return func(in *Integrator) {
		if h <= 0 {
			h = math.Inf(1)
		}
		in.maxStep = h
	}
}

func WithInitialStep(h float64) Option {
	return func(in *Integrator) { in.initialStep = h }
}

func WithTableau(t Tableau) Option {
	return func(in *Integrator) { in.tab = t }
}

func New(sys System, opts ...Option) (*Integrator, error) {
	in := &Integrator{
		sys:         sys,
		tab:         Merson,
		accuracy:    DefaultAccuracy,
		minStep:     DefaultMinStep,
		maxStep:     math.Inf(1),
		initialStep: DefaultInitialStep,
		safety:      0.9,
		minScale:    0.2,
		maxScale:    5.0,
	}
	for _, opt := range opts {
		opt(in)
	}
	if !(in.accuracy > 0) || math.IsInf(in.accuracy, 0) {
		return nil, fmt.Errorf("accuracy must be positive and finite, got %g", in.accuracy)
	}
	if !(in.minStep > 0) {
		return nil, fmt.Errorf("min step must be positive, got %g", in.minStep)
	}
	if !(in.initialStep >= in.minStep) {
		return nil, fmt.Errorf("initial step %g below min step %g", in.initialStep, in.minStep)
	}
	if in.maxStep < in.minStep {
		return nil, fmt.Errorf("max step %g below min step %g", in.maxStep, in.minStep)
	}
	in.Reset()
	return in, nil
}

func (in *Integrator) Tableau() Tableau  { return in.tab }
func (in *Integrator) Accuracy() float64 { return in.accuracy }
func (in *Integrator) Stats() Stats      { return in.stats }

// PredictedStep is the step size the next Step call will try first.
func (in *Integrator) PredictedStep() float64 { return in.hNext }

// Reset forgets the predicted step and the counters.
func (in *Integrator) Reset() {
	in.hNext = math.Min(in.initialStep, in.maxStep)
	in.stats = Stats{}
}

// ProposeStep makes one attempt of size h from st without any acceptance
// decision. st may be realized as a side effect; t, q and u are untouched.
func (in *Integrator) ProposeStep(st *dynamo.State, h float64) (Trial, error) {
	k1, err := in.eval(st)
	if err != nil {
		return Trial{}, err
	}
	return in.propose(st, k1, h, st.Time()+h)
}

// Step advances st toward tLimit. It retries with smaller steps until the
// error estimate is within accuracy. A step cut short by tLimit lands on
// tLimit exactly. The returned state is new; st is never modified.
func (in *Integrator) Step(st *dynamo.State, tLimit float64) (Trial, error) {
	t0 := st.Time()
	remaining := tLimit - t0
	if !(remaining > 0) {
		return Trial{}, fmt.Errorf("step limit %g is not after current time %g", tLimit, t0)
	}
	ceiling := math.Min(in.maxStep, remaining)

	k1, err := in.eval(st)
	if err != nil {
		return Trial{}, in.fail(st, err)
	}

	natural := in.hNext
	h := natural
	rejected := false
	for {
		truncated := false
		tEnd := t0 + h
		if h >= ceiling {
			h, truncated = ceiling, true
			tEnd = t0 + h
			if ceiling == remaining {
				tEnd = tLimit
			}
		}

		trial, err := in.propose(st, k1, h, tEnd)
		if err != nil {
			return Trial{}, in.fail(st, err)
		}
		in.stats.Attempted++

		if trial.Error <= in.accuracy {
			in.stats.Accepted++
			grow := in.growth(trial.Error)
			if rejected {
				grow = math.Min(grow, 1)
			}
			next := math.Min(h*grow, in.maxStep)
			if truncated {
				next = math.Max(next, natural)
			}
			in.hNext = next
			return trial, nil
		}

		in.stats.Rejected++
		rejected = true
		if h <= in.minStep {
			return Trial{}, in.fail(st, dynamo.ErrStepTooSmall)
		}
		h = math.Max(h*in.shrink(trial.Error), in.minStep)
		natural = h
	}
}

func (in *Integrator) fail(st *dynamo.State, err error) error {
	return &dynamo.SimulationError{
		Step:    in.stats.Accepted,
		Time:    st.Time(),
		State:   st.Y(),
		Wrapped: err,
	}
}

func (in *Integrator) exponent() float64 {
	return 1 / float64(in.tab.ErrorOrder+1)
}

func (in *Integrator) shrink(errEst float64) float64 {
	if math.IsNaN(errEst) || math.IsInf(errEst, 0) {
		return in.minScale
	}
	return math.Max(in.minScale, in.safety*math.Pow(in.accuracy/errEst, in.exponent()))
}

func (in *Integrator) growth(errEst float64) float64 {
	if errEst == 0 {
		return in.maxScale
	}
	return math.Min(in.maxScale, in.safety*math.Pow(in.accuracy/errEst, in.exponent()))
}

func (in *Integrator) eval(st *dynamo.State) (dynamo.Vector, error) {
	qdot, udot, err := in.sys.Derivatives(st)
	in.stats.Evaluations++
	if err != nil {
		return nil, err
	}
	return dynamo.Concat(qdot, udot), nil
}

func (in *Integrator) propose(st *dynamo.State, k1 dynamo.Vector, h, tEnd float64) (Trial, error) {
	tab := in.tab
	t0 := st.Time()
	y0 := st.Y()

	k := make([]dynamo.Vector, tab.Stages())
	k[0] = k1
	work := st.Clone()
	for i := 1; i < len(k); i++ {
		yi := y0.Clone()
		for j, a := range tab.A[i] {
			if a != 0 {
				floats.AddScaled(yi, h*a, k[j])
			}
		}
		ti := t0 + tab.C[i]*h
		if tab.C[i] == 1 {
			ti = tEnd
		}
		work.SetTime(ti)
		work.SetY(yi)
		ki, err := in.eval(work)
		if err != nil {
			return Trial{}, err
		}
		k[i] = ki
	}

	high := y0.Clone()
	low := y0.Clone()
	for i := range k {
		if b := tab.B[i]; b != 0 {
			floats.AddScaled(high, h*b, k[i])
		}
		if b := tab.BHat[i]; b != 0 {
			floats.AddScaled(low, h*b, k[i])
		}
	}

	next := st.Clone()
	next.SetTime(tEnd)
	next.SetY(high)
	return Trial{H: h, State: next, Error: errorNorm(y0, high, low)}, nil
}

// errorNorm is max_i |high_i − low_i| / max(1, |y0_i|, |high_i|). Any NaN
// makes the whole norm NaN.
func errorNorm(y0, high, low dynamo.Vector) float64 {
	worst := 0.0
	for i := range high {
		e := math.Abs(high[i] - low[i])
		if math.IsNaN(e) {
			return math.NaN()
		}
		scale := math.Max(1, math.Max(math.Abs(y0[i]), math.Abs(high[i])))
		worst = math.Max(worst, e/scale)
	}
	return worst
}
