package integrators

import (
	"fmt"

	"github.com/rvats/qprop/internal/propagator"
)

// SnapshotFunc receives every produced snapshot, the initial one included.
// Returning an error aborts the run at the current step boundary; the loop
// itself performs no I/O, callers inject persistence through this hook.
// The y slice is a reused buffer: consumers must copy what they keep.
type SnapshotFunc func(step int, t float64, y []complex128) error

// FixedStep advances a state by repeated application of a precomputed
// propagator: y_{n+1} = P·y_n, snapshot n at time n·dt.
type FixedStep struct {
	prop *propagator.Propagator
}

func NewFixedStep(p *propagator.Propagator) *FixedStep {
	return &FixedStep{prop: p}
}

// Run performs exactly steps transitions from y0. The initial state is
// emitted as snapshot 0 at t=0; steps == 0 emits only that.
func (f *FixedStep) Run(y0 []complex128, steps int, emit SnapshotFunc) error {
	if steps < 0 {
		return fmt.Errorf("integrators: steps must be non-negative, got %d", steps)
	}

	cur := make([]complex128, len(y0))
	copy(cur, y0)
	if err := emit(0, 0, cur); err != nil {
		return err
	}

	next := make([]complex128, len(y0))
	for n := 1; n <= steps; n++ {
		f.prop.Apply(next, cur)
		cur, next = next, cur
		if err := emit(n, float64(n)*f.prop.Dt, cur); err != nil {
			return err
		}
	}
	return nil
}
