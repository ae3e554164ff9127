package evolve

import (
	"github.com/rs/zerolog"

	"github.com/rvats/qprop/internal/heom"
	"github.com/rvats/qprop/internal/propagator"
)

// Options is the closed configuration surface of an evolution call. Anything
// the underlying adaptive stepper understands beyond the named fields goes
// through Extra untouched.
type Options struct {
	// propagator mode
	Threshold  float64
	NonzeroTol float64

	// ODE mode
	Reltol        float64
	Abstol        float64
	MaxIters      int
	SaveEverystep bool

	// Checkpoint is the persistence destination; empty disables persistence.
	// The destination must not already exist.
	Checkpoint string

	// Recorder overrides the checkpoint store with a caller-supplied sink.
	// When set, Checkpoint is ignored.
	Recorder heom.Recorder

	// Progress receives stepping signals; nil disables reporting.
	Progress heom.Progress

	// Extra passes stepper-specific options through opaquely.
	Extra map[string]any

	Verbose bool
	Logger  zerolog.Logger
}

func DefaultOptions() Options {
	return Options{
		Threshold:  propagator.DefaultThreshold,
		NonzeroTol: propagator.DefaultNonzeroTol,
		Reltol:     1e-6,
		Abstol:     1e-8,
		MaxIters:   100000,
		Logger:     zerolog.Nop(),
	}
}
