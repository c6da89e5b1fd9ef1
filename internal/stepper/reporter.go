package stepper

import (
	"github.com/san-kum/mbsim/internal/dynamo"
	"github.com/san-kum/mbsim/internal/multibody"
)

// Reporter receives the committed state at its scheduled instants. It must
// not retain v past the call. A reporter that also implements io.Closer is
// closed exactly once when the run ends, however it ends.
type Reporter interface {
	Report(v *multibody.View)
}

// StageRequirer lets a reporter ask for more than Position to be realized
// before it is called.
type StageRequirer interface {
	RequiredStage() dynamo.Stage
}

// Named reporters are labeled by name in logs and metrics.
type Named interface {
	Name() string
}

// StepInfo describes one committed step.
type StepInfo struct {
	Step     int
	Time     float64
	H        float64
	Error    float64
	Rejected int
}

// Observer is notified after every committed step, before any reporter
// due at the new time fires.
type Observer interface {
	OnStep(v *multibody.View, info StepInfo)
}

type ObserverFunc func(v *multibody.View, info StepInfo)

func (f ObserverFunc) OnStep(v *multibody.View, info StepInfo) { f(v, info) }
