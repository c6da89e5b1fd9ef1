// Package metrics summarizes a run: per-step metrics computed from the
// committed state, and Prometheus counters for the stepper itself.
package metrics

import "github.com/san-kum/mbsim/internal/multibody"

// Metric is observed after every committed step.
type Metric interface {
	Name() string
	Observe(v *multibody.View)
	Value() float64
	Reset()
}
