package stepper_test

import (
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/san-kum/mbsim/internal/dynamo"
	"github.com/san-kum/mbsim/internal/integrators"
	"github.com/san-kum/mbsim/internal/multibody"
	"github.com/san-kum/mbsim/internal/stepper"
)

var _ = Describe("Stepper", func() {
	var (
		m    model
		log  []sample
		s    *stepper.Stepper
		cons *probe
	)

	BeforeEach(func() {
		log = nil
		m = slidingBlock(reference)
		cons = &probe{name: "console", block: m.block, log: &log}
	})

	Describe("event timing", func() {
		It("fires a 0.1 s reporter 601 times over 60 s on exact multiples", func() {
			s = newStepper(m)
			_, err := s.AddReporter(cons, 0.1)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Initialize(m.state)).To(Succeed())

			res, err := s.StepTo(60)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Phase).To(Equal(stepper.Finished))
			Expect(res.State.Time()).To(Equal(60.0))

			times := cons.times()
			Expect(times).To(HaveLen(601))
			for k, t := range times {
				Expect(t).To(BeNumerically("~", float64(k)*0.1, 1e-12), "firing %d", k)
			}
			Expect(times[0]).To(Equal(0.0))
			Expect(times[600]).To(Equal(60.0))
			Expect(res.EventsFired).To(Equal(601))
			Expect(res.Metrics).To(HaveKeyWithValue("mbsim_events_fired_total{reporter=console}", 601.0))
		})

		It("fires reporters with different intervals independently", func() {
			csv := &probe{name: "csv", block: m.block, log: &log}
			viz := &probe{name: "viz", block: m.block, log: &log}
			s = newStepper(m)
			for _, r := range []struct {
				p  *probe
				dt float64
			}{{cons, 0.1}, {csv, 0.1}, {viz, 0.2}} {
				_, err := s.AddReporter(r.p, r.dt)
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(s.Initialize(m.state)).To(Succeed())

			_, err := s.StepTo(2)
			Expect(err).NotTo(HaveOccurred())
			Expect(cons.times()).To(HaveLen(21))
			Expect(csv.times()).To(HaveLen(21))
			Expect(viz.times()).To(HaveLen(11))
		})

		It("fires simultaneous events in registration order", func() {
			a := &probe{name: "a", block: m.block, log: &log}
			b := &probe{name: "b", block: m.block, log: &log}
			c := &probe{name: "c", block: m.block, log: &log}
			s = newStepper(m)
			for _, r := range []struct {
				p  *probe
				dt float64
			}{{a, 0.2}, {b, 0.1}, {c, 0.2}} {
				_, err := s.AddReporter(r.p, r.dt)
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(s.Initialize(m.state)).To(Succeed())
			_, err := s.StepTo(0.4)
			Expect(err).NotTo(HaveOccurred())

			var order []string
			for _, e := range log {
				order = append(order, e.name)
			}
			Expect(order).To(Equal([]string{"a", "b", "c", "b", "a", "b", "c", "b", "a", "b", "c"}))

			last := -1.0
			for _, e := range log {
				Expect(e.t).To(BeNumerically(">=", last))
				last = e.t
			}
		})

		It("lands on the stop time even when it is not a multiple of the interval", func() {
			s = newStepper(m)
			_, err := s.AddReporter(cons, 0.3)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Initialize(m.state)).To(Succeed())

			res, err := s.StepTo(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.State.Time()).To(Equal(1.0))
			Expect(cons.times()).To(HaveLen(4))
		})
	})

	Describe("trajectory", func() {
		It("is deterministic", func() {
			run := func() []sample {
				var out []sample
				mm := slidingBlock(reference)
				st := newStepper(mm)
				_, err := st.AddReporter(&probe{name: "p", block: mm.block, log: &out}, 0.1)
				Expect(err).NotTo(HaveOccurred())
				Expect(st.Initialize(mm.state)).To(Succeed())
				_, err = st.StepTo(10)
				Expect(err).NotTo(HaveOccurred())
				return out
			}
			Expect(run()).To(Equal(run()))
		})

		It("matches the closed-form underdamped response", func() {
			s = newStepper(m, integrators.WithAccuracy(1e-10))
			_, err := s.AddReporter(cons, 0.1)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Initialize(m.state)).To(Succeed())

			_, err = s.StepTo(60)
			Expect(err).NotTo(HaveOccurred())
			Expect(log).To(HaveLen(601))
			for _, e := range log {
				want := 10 + underdamped(reference, e.t)
				Expect(math.Abs(e.x-want)).To(BeNumerically("<", 1e-4), "t=%g", e.t)
			}
		})

		It("never commits a step that failed the error test", func() {
			m = slidingBlock(reference, impulse{from: 1, to: 1.01, force: 500})
			integ, err := integrators.New(m.sys, integrators.WithAccuracy(1e-6), integrators.WithInitialStep(0.5))
			Expect(err).NotTo(HaveOccurred())

			var steps []stepper.StepInfo
			s = stepper.New(m.sys, integ, stepper.WithObserver(stepper.ObserverFunc(
				func(_ *multibody.View, info stepper.StepInfo) { steps = append(steps, info) })))
			Expect(s.Initialize(m.state)).To(Succeed())

			res, err := s.StepTo(3)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.StepsRejected).To(BeNumerically(">", 0))
			Expect(steps).To(HaveLen(res.StepsAccepted))

			sum, last := 0.0, 0.0
			for _, info := range steps {
				Expect(info.Error).To(BeNumerically("<=", 1e-6))
				Expect(info.Time).To(BeNumerically(">", last))
				Expect(info.Time - last).To(BeNumerically("~", info.H, 1e-12))
				sum += info.H
				last = info.Time
			}
			Expect(sum).To(BeNumerically("~", 3, 1e-9))
			Expect(res.Integrator.Rejected).To(Equal(res.StepsRejected))
			Expect(res.Metrics).To(HaveKeyWithValue("mbsim_steps_rejected_total", float64(res.StepsRejected)))
		})
	})

	Describe("failure", func() {
		It("fails when the step is driven below its floor, keeping earlier reports", func() {
			m = slidingBlock(reference, poison{from: 0.5})
			cons = &probe{name: "console", block: m.block, log: &log}
			s = newStepper(m)
			_, err := s.AddReporter(cons, 0.1)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Initialize(m.state)).To(Succeed())

			res, err := s.StepTo(60)
			Expect(err).To(MatchError(dynamo.ErrStepTooSmall))
			var simErr *dynamo.SimulationError
			Expect(errors.As(err, &simErr)).To(BeTrue())
			Expect(simErr.Time).To(BeNumerically("<", 0.5))
			Expect(res.Phase).To(Equal(stepper.Failed))
			Expect(s.Phase()).To(Equal(stepper.Failed))
			Expect(res.State.Time()).To(Equal(simErr.Time))
			Expect(cons.times()).To(HaveLen(5))
			Expect(cons.closed).To(Equal(1))
		})

		It("aborts on a force error", func() {
			m = slidingBlock(reference, faulty{from: 0.25})
			cons = &probe{name: "console", block: m.block, log: &log}
			s = newStepper(m)
			_, err := s.AddReporter(cons, 0.1)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Initialize(m.state)).To(Succeed())

			res, err := s.StepTo(1)
			Expect(err).To(MatchError(errActuator))
			Expect(res.Phase).To(Equal(stepper.Failed))
			Expect(cons.closed).To(Equal(1))
		})

		It("reports a singular mass matrix", func() {
			m = slidingBlock(blockParams{mass: 0, stiffness: 10, damping: 0.1, speed: 1})
			s = newStepper(m)
			Expect(s.Initialize(m.state)).To(Succeed())

			res, err := s.StepTo(1)
			Expect(err).To(MatchError(dynamo.ErrSingularMass))
			Expect(res.Phase).To(Equal(stepper.Failed))
		})
	})

	Describe("teardown", func() {
		It("closes every reporter exactly once when finished", func() {
			csv := &probe{name: "csv", block: m.block, log: &log}
			s = newStepper(m)
			_, err := s.AddReporter(cons, 0.1)
			Expect(err).NotTo(HaveOccurred())
			_, err = s.AddReporter(csv, 0.1)
			Expect(err).NotTo(HaveOccurred())
			_, err = s.AddReporter(csv, 0.5)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Initialize(m.state)).To(Succeed())

			_, err = s.StepTo(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Close()).To(Succeed())
			Expect(cons.closed).To(Equal(1))
			Expect(csv.closed).To(Equal(1))
		})

		It("returns close errors without changing the outcome", func() {
			boom := errors.New("disk full")
			cons.closeErr = boom
			s = newStepper(m)
			_, err := s.AddReporter(cons, 0.1)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Initialize(m.state)).To(Succeed())

			res, err := s.StepTo(0.5)
			Expect(err).To(MatchError(boom))
			Expect(res.Phase).To(Equal(stepper.Finished))
		})

		It("closes reporters of a run that never started", func() {
			s = newStepper(m)
			_, err := s.AddReporter(cons, 0.1)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Close()).To(Succeed())
			Expect(s.Close()).To(Succeed())
			Expect(cons.closed).To(Equal(1))
		})
	})

	Describe("staging", func() {
		It("realizes Position by default", func() {
			speeds := &speedProbe{block: m.block}
			s = newStepper(m)
			_, err := s.AddReporter(cons, 0.1)
			Expect(err).NotTo(HaveOccurred())
			_, err = s.AddReporter(speeds, 0.1)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Initialize(m.state)).To(Succeed())

			res, err := s.StepTo(1)
			Expect(err).To(HaveOccurred())
			var se *dynamo.StageError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Want).To(Equal(dynamo.StageVelocity))
			Expect(res.Phase).To(Equal(stepper.Failed))
			Expect(cons.closed).To(Equal(1))
		})

		It("realizes the stage a reporter declares", func() {
			speeds := &stagedSpeedProbe{speedProbe: &speedProbe{block: m.block}, stage: dynamo.StageVelocity}
			s = newStepper(m)
			_, err := s.AddReporter(speeds, 0.1)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Initialize(m.state)).To(Succeed())

			_, err = s.StepTo(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(speeds.speeds).To(HaveLen(11))
			Expect(speeds.speeds[0]).To(Equal(10.0))
		})

		It("re-raises foreign panics after teardown", func() {
			s = newStepper(m)
			_, err := s.AddReporter(cons, 0.1)
			Expect(err).NotTo(HaveOccurred())
			_, err = s.AddReporter(panicky{value: "not a staging error"}, 0.1)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Initialize(m.state)).To(Succeed())

			Expect(func() { _, _ = s.StepTo(1) }).To(PanicWith("not a staging error"))
			Expect(cons.closed).To(Equal(1))
		})
	})

	Describe("lifecycle", func() {
		It("rejects bad intervals", func() {
			s = newStepper(m)
			for _, dt := range []float64{0, -0.1, math.NaN(), math.Inf(1)} {
				_, err := s.AddReporter(cons, dt)
				Expect(err).To(MatchError(dynamo.ErrBadInterval), "interval %g", dt)
			}
		})

		It("only configures and runs once", func() {
			s = newStepper(m)
			_, err := s.StepTo(1)
			Expect(err).To(MatchError(dynamo.ErrNotIdle))

			Expect(s.Initialize(m.state)).To(Succeed())
			_, err = s.AddReporter(cons, 0.1)
			Expect(err).To(MatchError(dynamo.ErrNotIdle))

			_, err = s.StepTo(1)
			Expect(err).NotTo(HaveOccurred())
			_, err = s.StepTo(2)
			Expect(err).To(MatchError(dynamo.ErrNotIdle))
			Expect(s.Initialize(m.state)).To(MatchError(dynamo.ErrNotIdle))
		})

		It("rejects a state from another topology", func() {
			s = newStepper(m)
			stale := dynamo.NewState(m.sys.Generation()+1, 1, 1)
			Expect(s.Initialize(stale)).To(MatchError(dynamo.ErrTopologyChanged))
		})

		It("does not modify the caller's state", func() {
			s = newStepper(m)
			Expect(s.Initialize(m.state)).To(Succeed())
			_, err := s.StepTo(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.state.Time()).To(Equal(0.0))
			Expect(s.State().Time()).To(Equal(1.0))
		})
	})
})
