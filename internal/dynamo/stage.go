package dynamo

import "fmt"

// Stage is a checkpoint in the dependency chain of cached quantities.
type Stage int8

const (
	StageEmpty Stage = iota
	StageTopology
	StageModel
	StageInstance
	StageTime
	StagePosition
	StageVelocity
	StageDynamics
	StageAcceleration
)

var stageNames = [...]string{
	StageEmpty:        "Empty",
	StageTopology:     "Topology",
	StageModel:        "Model",
	StageInstance:     "Instance",
	StageTime:         "Time",
	StagePosition:     "Position",
	StageVelocity:     "Velocity",
	StageDynamics:     "Dynamics",
	StageAcceleration: "Acceleration",
}

func (s Stage) String() string {
	if s.valid() || s == StageEmpty {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", int8(s))
}

// Prev returns the stage immediately below s.
func (s Stage) Prev() Stage {
	if s <= StageEmpty {
		return StageEmpty
	}
	return s - 1
}

// Next returns the stage immediately above s, saturating at StageAcceleration.
func (s Stage) Next() Stage {
	if s >= StageAcceleration {
		return StageAcceleration
	}
	return s + 1
}

func (s Stage) valid() bool {
	return s >= StageTopology && s <= StageAcceleration
}

// ParseStage maps a stage name (case sensitive, as printed by String) back to
// its value.
func ParseStage(name string) (Stage, error) {
	for i, n := range stageNames {
		if n == name && Stage(i) != StageEmpty {
			return Stage(i), nil
		}
	}
	return StageEmpty, fmt.Errorf("%w: %q", ErrInvalidStage, name)
}
