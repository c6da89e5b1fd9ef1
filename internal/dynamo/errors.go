package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrInvalidState indicates a state vector with NaN or Inf entries.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrStepTooSmall indicates the adaptive step was driven below its floor
	// without meeting the error tolerance.
	ErrStepTooSmall = errors.New("dynamo: adaptive timestep below minimum")

	// ErrSingularMass indicates the mass matrix could not be factorized.
	ErrSingularMass = errors.New("dynamo: mass matrix is singular or not positive definite")

	// ErrDimensionMismatch indicates mismatched q/u dimensions.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and system")

	// ErrStageNotRealized indicates a read of a cached quantity whose stage
	// has not been realized.
	ErrStageNotRealized = errors.New("dynamo: stage not realized")

	// ErrInvalidStage indicates a stage outside Topology..Acceleration.
	ErrInvalidStage = errors.New("dynamo: invalid stage")

	// ErrTopologyChanged indicates a state built for a different topology
	// generation than the system realizing it.
	ErrTopologyChanged = errors.New("dynamo: state topology generation does not match system")

	// ErrNotIdle indicates an operation that is only legal before a run starts.
	ErrNotIdle = errors.New("dynamo: stepper is not idle")

	// ErrBadInterval indicates a non-positive or non-finite report interval.
	ErrBadInterval = errors.New("dynamo: report interval must be positive and finite")
)

// SimulationError wraps an integration failure with the time and state at
// which it happened.
type SimulationError struct {
	Step    int
	Time    float64
	State   Vector
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.6g): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}

// StageError describes misuse of the stage cache. It is raised with panic.
type StageError struct {
	Op      string
	Want    Stage
	Have    Stage
	Wrapped error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: want %v, have %v: %v", e.Op, e.Want, e.Have, e.Wrapped)
}

func (e *StageError) Unwrap() error {
	return e.Wrapped
}
