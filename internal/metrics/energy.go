package metrics

import (
	"math"

	"github.com/san-kum/mbsim/internal/dynamo"
	"github.com/san-kum/mbsim/internal/multibody"
	"github.com/sirupsen/logrus"
)

// EnergyDrift tracks the largest relative change in total energy since the
// first observation. With dampers it measures dissipation, not error.
type EnergyDrift struct {
	name          string
	initialEnergy float64
	currentEnergy float64
	maxDrift      float64
	samples       int
	err           error
}

func NewEnergyDrift() *EnergyDrift {
	return &EnergyDrift{name: "energy_drift"}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(v *multibody.View) {
	if err := v.Realize(dynamo.StageVelocity); err != nil {
		if e.err == nil {
			e.err = err
		}
		logrus.Warnf("%s: skipped t=%g: %v", e.name, v.Time(), err)
		return
	}
	ke, pe := v.Energy()
	energy := ke + pe

	if e.samples == 0 {
		e.initialEnergy = energy
	}
	e.currentEnergy = energy
	e.samples++

	if e.initialEnergy != 0 {
		drift := math.Abs(energy-e.initialEnergy) / math.Abs(e.initialEnergy)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 { return e.maxDrift }

// Current returns the most recently observed total energy.
func (e *EnergyDrift) Current() float64 { return e.currentEnergy }

// Err is the first error met while observing, if any.
func (e *EnergyDrift) Err() error { return e.err }

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.currentEnergy = 0
	e.maxDrift = 0
	e.samples = 0
	e.err = nil
}
