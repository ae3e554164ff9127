package metrics

import (
	"math"

	"github.com/rvats/qprop/internal/heom"
)

// TraceDrift tracks how far the tier-0 trace wanders from its initial value.
// A trace-preserving generator should keep this at numerical noise; growth
// signals a propagator truncated too aggressively.
type TraceDrift struct {
	initial  float64
	maxDrift float64
	set      bool
}

func NewTraceDrift() *TraceDrift { return &TraceDrift{} }

func (m *TraceDrift) Name() string { return "trace_drift" }

func (m *TraceDrift) Observe(t float64, s *heom.State) {
	tr := real(s.Trace())
	if !m.set {
		m.initial = tr
		m.set = true
		return
	}
	if m.initial == 0 {
		return
	}
	drift := math.Abs(tr-m.initial) / math.Abs(m.initial)
	if drift > m.maxDrift {
		m.maxDrift = drift
	}
}

func (m *TraceDrift) Value() float64 { return m.maxDrift }

func (m *TraceDrift) Reset() {
	m.initial = 0
	m.maxDrift = 0
	m.set = false
}

// Purity reports Tr(rho²) of the final observed tier-0 state: 1 for a pure
// state, 1/dim for the maximally mixed one.
type Purity struct {
	last float64
}

func NewPurity() *Purity { return &Purity{} }

func (m *Purity) Name() string { return "purity" }

func (m *Purity) Observe(t float64, s *heom.State) {
	dim := s.Dim
	var p complex128
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			p += s.Data[i+j*dim] * s.Data[j+i*dim]
		}
	}
	m.last = real(p)
}

func (m *Purity) Value() float64 { return m.last }

func (m *Purity) Reset() { m.last = 0 }
