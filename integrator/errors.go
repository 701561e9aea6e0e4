package integrator

import (
	"errors"
	"fmt"
)

var (
	// ErrStepTooSmall is returned when the step size needed to meet the tolerances underflows.
	ErrStepTooSmall = errors.New("required step size is less than spacing between numbers")
	// ErrMaxSteps is returned when the step budget is exhausted before the end of the interval.
	ErrMaxSteps = errors.New("maximum number of steps reached")
	// ErrNonFiniteRHS is returned when the right hand side is not finite at the initial state.
	ErrNonFiniteRHS = errors.New("right hand side is not finite")
	// ErrInterval is returned for an empty, backward or non finite interval.
	ErrInterval = errors.New("invalid integration interval")
	// ErrSamples is returned when sample times are unsorted or outside of the interval.
	ErrSamples = errors.New("sample times must be sorted and within the interval")
	// ErrTolerance is returned for negative or non finite tolerances.
	ErrTolerance = errors.New("invalid tolerance")
	// ErrDimension is returned when the initial state does not match the system.
	ErrDimension = errors.New("state dimension mismatch")
)

// StepError locates a solver failure in time.
type StepError struct {
	T   float64 // time of the last accepted step
	H   float64 // step size being attempted
	Err error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("t=%g h=%g: %s", e.T, e.H, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
