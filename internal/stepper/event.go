package stepper

import (
	"math"

	"github.com/san-kum/mbsim/internal/dynamo"
)

type EventID int

type event struct {
	id       EventID
	name     string
	interval float64
	k        int64
	next     float64
	stage    dynamo.Stage
	reporter Reporter
}

// schedule sets next to the first multiple of the interval strictly after t.
// next is always k·Δ, never a running sum of Δ.
func (e *event) schedule(t float64) {
	e.k = int64(math.Floor(t/e.interval)) + 1
	if e.k < 1 {
		e.k = 1
	}
	e.next = float64(e.k) * e.interval
	for sameTime(e.next, t) || e.next < t {
		e.k++
		e.next = float64(e.k) * e.interval
	}
}

func (e *event) due(t float64) bool {
	return sameTime(e.next, t)
}

const timeTolerance = 8 * 2.220446049250313e-16

// sameTime reports whether a and b are the same instant up to a few ulps.
func sameTime(a, b float64) bool {
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= timeTolerance*scale
}
