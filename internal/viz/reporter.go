package viz

import (
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/san-kum/mbsim/internal/dynamo"
	"github.com/san-kum/mbsim/internal/forces"
	"github.com/san-kum/mbsim/internal/mechanics"
	"github.com/san-kum/mbsim/internal/multibody"
	"github.com/san-kum/mbsim/internal/stepper"
	"gonum.org/v1/gonum/spatial/r3"
)

// Sender is satisfied by *tea.Program.
type Sender interface {
	Send(msg tea.Msg)
}

type BodyMark struct {
	Name   string
	Pos    r3.Vec
	Ground bool
}

type LinkKind int

const (
	SpringLink LinkKind = iota
	DamperLink
)

type Link struct {
	Kind LinkKind
	A, B r3.Vec
}

// FrameMsg is one reported instant, in ground coordinates.
type FrameMsg struct {
	Time      float64
	Bodies    []BodyMark
	Links     []Link
	Kinetic   float64
	Potential float64
}

// DoneMsg ends the run on screen.
type DoneMsg struct {
	Result *stepper.Result
	Err    error
}

// LiveReporter turns reports into FrameMsgs for a running program.
type LiveReporter struct {
	sender   Sender
	elements []forces.Element
	speed    float64

	detached atomic.Bool
	started  bool
	wallT0   time.Time
	simT0    float64
	sleep    func(time.Duration)
	now      func() time.Time
}

type LiveOption func(*LiveReporter)

// WithSpeed paces reports to speed simulated seconds per wall second. Zero
// disables pacing.
func WithSpeed(speed float64) LiveOption {
	return func(l *LiveReporter) { l.speed = speed }
}

func NewLiveReporter(s Sender, sys *multibody.System, opts ...LiveOption) *LiveReporter {
	l := &LiveReporter{
		sender:   s,
		elements: sys.Forces().Elements(),
		sleep:    time.Sleep,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *LiveReporter) Name() string                { return "live" }
func (l *LiveReporter) RequiredStage() dynamo.Stage { return dynamo.StageVelocity }

// Detach stops pacing and sending so a run whose viewer has quit can
// finish at full speed. It is safe to call from another goroutine.
func (l *LiveReporter) Detach() { l.detached.Store(true) }

func (l *LiveReporter) Report(v *multibody.View) {
	if l.detached.Load() {
		return
	}
	l.pace(v.Time())

	frame := FrameMsg{Time: v.Time()}
	for _, b := range v.Bodies() {
		frame.Bodies = append(frame.Bodies, BodyMark{
			Name:   b.Name,
			Pos:    v.OriginLocation(b.ID),
			Ground: b.ID == mechanics.Ground,
		})
	}
	for _, e := range l.elements {
		var kind LinkKind
		switch e.Law.(type) {
		case forces.Spring:
			kind = SpringLink
		case forces.Damper:
			kind = DamperLink
		default:
			continue
		}
		frame.Links = append(frame.Links, Link{
			Kind: kind,
			A:    v.StationLocation(e.A.Body, e.A.Station),
			B:    v.StationLocation(e.B.Body, e.B.Station),
		})
	}
	frame.Kinetic, frame.Potential = v.Energy()
	l.sender.Send(frame)
}

func (l *LiveReporter) pace(t float64) {
	if l.speed <= 0 {
		return
	}
	if !l.started {
		l.started, l.wallT0, l.simT0 = true, l.now(), t
		return
	}
	due := l.wallT0.Add(time.Duration((t - l.simT0) / l.speed * float64(time.Second)))
	if wait := due.Sub(l.now()); wait > 0 {
		l.sleep(wait)
	}
}
