package reporters

import (
	"math"

	"github.com/san-kum/mbsim/internal/dynamo"
	"github.com/san-kum/mbsim/internal/multibody"
)

type EnergySample struct {
	Time      float64
	Kinetic   float64
	Potential float64
}

func (s EnergySample) Total() float64 { return s.Kinetic + s.Potential }

// EnergySummary compares the first and last samples.
type EnergySummary struct {
	Initial    float64
	Final      float64
	Dissipated float64
	MaxTotal   float64
	MinTotal   float64
}

// Energy samples kinetic and potential energy. It needs Velocity realized.
type Energy struct {
	samples []EnergySample
}

func NewEnergy() *Energy { return &Energy{} }

func (e *Energy) Name() string                { return "energy" }
func (e *Energy) RequiredStage() dynamo.Stage { return dynamo.StageVelocity }
func (e *Energy) Samples() []EnergySample     { return e.samples }

func (e *Energy) Report(v *multibody.View) {
	ke, pe := v.Energy()
	e.samples = append(e.samples, EnergySample{Time: v.Time(), Kinetic: ke, Potential: pe})
}

func (e *Energy) Summary() EnergySummary {
	if len(e.samples) == 0 {
		return EnergySummary{}
	}
	sum := EnergySummary{
		Initial:  e.samples[0].Total(),
		Final:    e.samples[len(e.samples)-1].Total(),
		MaxTotal: math.Inf(-1),
		MinTotal: math.Inf(1),
	}
	for _, s := range e.samples {
		sum.MaxTotal = math.Max(sum.MaxTotal, s.Total())
		sum.MinTotal = math.Min(sum.MinTotal, s.Total())
	}
	sum.Dissipated = sum.Initial - sum.Final
	return sum
}
