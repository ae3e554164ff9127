// Package propagator builds finite-time propagators exp(L·dt) from sparse
// generators via a truncated exponential series.
package propagator

import (
	"fmt"

	"github.com/rvats/qprop/internal/sparse"
)

const (
	DefaultThreshold  = 1e-6
	DefaultNonzeroTol = 1e-14

	// maxTerms caps the series length; 1/k! wins long before this for any
	// generator worth stepping with.
	maxTerms = 1000
)

// Options controls the series truncation and the post-sum pruning.
type Options struct {
	// Threshold stops the series once the newest term's largest entry falls
	// below Threshold relative to the running sum's largest entry.
	Threshold float64
	// NonzeroTol prunes entries below this magnitude after summation,
	// bounding the fill-in carried into every later mat-vec.
	NonzeroTol float64
}

func DefaultOptions() Options {
	return Options{Threshold: DefaultThreshold, NonzeroTol: DefaultNonzeroTol}
}

// Propagator is a precomputed P ≈ exp(L·dt), built once and applied per step.
type Propagator struct {
	P     *sparse.CSR
	Dt    float64
	Terms int
}

// Build accumulates the truncated exponential series of L·dt.
func Build(l *sparse.CSR, dt float64, opts Options) (*Propagator, error) {
	if dt <= 0 {
		return nil, fmt.Errorf("propagator: dt must be positive, got %g", dt)
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.NonzeroTol <= 0 {
		opts.NonzeroTol = DefaultNonzeroTol
	}

	a := l.Clone().Scale(complex(dt, 0))
	sum := sparse.Identity(l.Rows)
	term := sparse.Identity(l.Rows)

	terms := 0
	for k := 1; k <= maxTerms; k++ {
		term = term.Mul(a).Scale(complex(1/float64(k), 0))
		// keep the workspace sparse between products
		term = term.Prune(opts.NonzeroTol)
		sum = sum.Add(term)
		terms = k

		if term.MaxAbs() < opts.Threshold*sum.MaxAbs() {
			break
		}
	}

	return &Propagator{
		P:     sum.Prune(opts.NonzeroTol),
		Dt:    dt,
		Terms: terms,
	}, nil
}

// Apply computes dst = P·x. dst must not alias x.
func (p *Propagator) Apply(dst, x []complex128) {
	p.P.MatVec(dst, x)
}

// NNZ is the stored entry count of the built propagator.
func (p *Propagator) NNZ() int { return p.P.NNZ() }
