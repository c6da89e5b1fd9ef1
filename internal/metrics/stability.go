package metrics

import (
	"math"

	"github.com/san-kum/mbsim/internal/multibody"
)

// Stability is the fraction of committed states whose coordinates and
// speeds all stay within threshold.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(v *multibody.View) {
	s.samples++
	for _, vec := range [][]float64{v.Q(), v.U()} {
		for _, val := range vec {
			if math.Abs(val) > s.threshold {
				s.violations++
				return
			}
		}
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}
