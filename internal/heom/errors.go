package heom

import (
	"errors"
	"fmt"
)

// Domain errors for evolution calls.
var (
	// ErrConsistency indicates a state/model mismatch in dim, N, or parity.
	ErrConsistency = errors.New("heom: state inconsistent with model")

	// ErrDimension indicates a malformed matrix (initial state or H(t) return).
	ErrDimension = errors.New("heom: dimension mismatch")

	// ErrAlreadyExists indicates a checkpoint destination collision.
	ErrAlreadyExists = errors.New("heom: checkpoint destination already exists")

	// ErrMaxIters indicates the adaptive stepper exhausted its budget
	// before reaching the next grid point.
	ErrMaxIters = errors.New("heom: iteration budget exceeded")

	// ErrTimeGrid indicates a time grid that is not strictly increasing.
	ErrTimeGrid = errors.New("heom: time grid not strictly increasing")
)

// ConsistencyError reports which field of a supplied state disagrees with the
// model. Raised before any numerical work begins.
type ConsistencyError struct {
	Field string
	Got   string
	Want  string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("heom: state %s = %s does not match model %s = %s", e.Field, e.Got, e.Field, e.Want)
}

func (e *ConsistencyError) Unwrap() error { return ErrConsistency }

// DimensionError reports a matrix of the wrong shape. Timed is set when the
// matrix came from a time-dependent Hamiltonian callback.
type DimensionError struct {
	Op    string
	Rows  int
	Cols  int
	Want  int
	Time  float64
	Timed bool
}

func (e *DimensionError) Error() string {
	if e.Timed {
		return fmt.Sprintf("heom: %s returned %dx%d at t=%g, want %dx%d", e.Op, e.Rows, e.Cols, e.Time, e.Want, e.Want)
	}
	return fmt.Sprintf("heom: %s is %dx%d, want %dx%d", e.Op, e.Rows, e.Cols, e.Want, e.Want)
}

func (e *DimensionError) Unwrap() error { return ErrDimension }

// BudgetError reports where an adaptive integration ran out of steps.
type BudgetError struct {
	MaxIters int
	Time     float64
	Target   float64
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("heom: exceeded %d iterations at t=%g before reaching t=%g", e.MaxIters, e.Time, e.Target)
}

func (e *BudgetError) Unwrap() error { return ErrMaxIters }
