package heom

import (
	"strconv"

	"github.com/rvats/qprop/internal/sparse"
)

// Model is a prebuilt hierarchy generator: a sparse superoperator of size
// N·dim² together with its metadata. The engine never mutates L; time-dependent
// runs operate on a per-call copy.
type Model struct {
	L      *sparse.CSR
	Dim    int
	N      int
	SupDim int
	Parity Parity
}

// NewModel wraps a generator matrix with its hierarchy metadata.
func NewModel(l *sparse.CSR, dim, n int, parity Parity) *Model {
	return &Model{L: l, Dim: dim, N: n, SupDim: dim * dim, Parity: parity}
}

// Size is the generator's side length, N·dim².
func (m *Model) Size() int { return m.N * m.SupDim }

// CheckState verifies that a caller-supplied hierarchy state belongs to this
// model. The first mismatched field is reported.
func (m *Model) CheckState(s *State) error {
	if s.Dim != m.Dim {
		return &ConsistencyError{Field: "dim", Got: strconv.Itoa(s.Dim), Want: strconv.Itoa(m.Dim)}
	}
	if s.N != m.N {
		return &ConsistencyError{Field: "N", Got: strconv.Itoa(s.N), Want: strconv.Itoa(m.N)}
	}
	if s.Parity != m.Parity {
		return &ConsistencyError{Field: "parity", Got: s.Parity.String(), Want: m.Parity.String()}
	}
	if len(s.Data) != m.Size() {
		return &ConsistencyError{Field: "length", Got: strconv.Itoa(len(s.Data)), Want: strconv.Itoa(m.Size())}
	}
	return nil
}
