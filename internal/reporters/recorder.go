package reporters

import (
	"github.com/san-kum/mbsim/internal/mechanics"
	"github.com/san-kum/mbsim/internal/multibody"
	"gonum.org/v1/gonum/spatial/r3"
)

// Sample is one recorded instant.
type Sample struct {
	Time    float64
	Q       []float64
	U       []float64
	Origins []r3.Vec
}

// Recorder keeps every reported state in memory. With no bodies given it
// records the origin of every body except ground.
type Recorder struct {
	bodies  []mechanics.BodyID
	samples []Sample
}

func NewRecorder(bodies ...mechanics.BodyID) *Recorder {
	return &Recorder{bodies: bodies}
}

func (r *Recorder) Name() string { return "recorder" }

func (r *Recorder) Report(v *multibody.View) {
	if r.bodies == nil {
		for _, b := range v.Bodies() {
			if b.ID != mechanics.Ground {
				r.bodies = append(r.bodies, b.ID)
			}
		}
	}
	s := Sample{
		Time:    v.Time(),
		Q:       v.Q(),
		U:       v.U(),
		Origins: make([]r3.Vec, len(r.bodies)),
	}
	for i, b := range r.bodies {
		s.Origins[i] = v.OriginLocation(b)
	}
	r.samples = append(r.samples, s)
}

func (r *Recorder) Bodies() []mechanics.BodyID { return r.bodies }
func (r *Recorder) Samples() []Sample          { return r.samples }
func (r *Recorder) Len() int                   { return len(r.samples) }

func (r *Recorder) Times() []float64 {
	out := make([]float64, len(r.samples))
	for i, s := range r.samples {
		out[i] = s.Time
	}
	return out
}

// Coordinate returns the history of q[i].
func (r *Recorder) Coordinate(i int) []float64 {
	out := make([]float64, len(r.samples))
	for k, s := range r.samples {
		out[k] = s.Q[i]
	}
	return out
}

// Speed returns the history of u[i].
func (r *Recorder) Speed(i int) []float64 {
	out := make([]float64, len(r.samples))
	for k, s := range r.samples {
		out[k] = s.U[i]
	}
	return out
}

// Origin returns the trajectory of a recorded body, or nil if it was not
// recorded.
func (r *Recorder) Origin(body mechanics.BodyID) []r3.Vec {
	col := -1
	for i, b := range r.bodies {
		if b == body {
			col = i
		}
	}
	if col < 0 {
		return nil
	}
	out := make([]r3.Vec, len(r.samples))
	for k, s := range r.samples {
		out[k] = s.Origins[col]
	}
	return out
}

func (r *Recorder) Reset() { r.samples = nil }
