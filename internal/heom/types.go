package heom

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// Parity selects the operator subspace the generator acts on.
type Parity int

const (
	EVEN Parity = iota
	ODD
)

func (p Parity) String() string {
	switch p {
	case EVEN:
		return "even"
	case ODD:
		return "odd"
	default:
		return "unknown"
	}
}

// State is a snapshot of the full hierarchy vector: N tiers of vectorized
// dim×dim operators, tier 0 being the physical reduced state.
type State struct {
	Data   []complex128
	Dim    int
	N      int
	Parity Parity
}

// NewState returns a zero-initialized hierarchy state.
func NewState(dim, n int, parity Parity) *State {
	return &State{
		Data:   make([]complex128, n*dim*dim),
		Dim:    dim,
		N:      n,
		Parity: parity,
	}
}

// FromDensityMatrix embeds a dim×dim density matrix as the tier-0 block of a
// zeroed hierarchy vector (column stacking: vec[i+j*dim] = rho[i,j]).
func FromDensityMatrix(rho *mat.CDense, dim, n int, parity Parity) (*State, error) {
	r, c := rho.Dims()
	if r != dim || c != dim {
		return nil, &DimensionError{Op: "initial density matrix", Rows: r, Cols: c, Want: dim}
	}
	s := NewState(dim, n, parity)
	for j := 0; j < dim; j++ {
		for i := 0; i < dim; i++ {
			s.Data[i+j*dim] = rho.At(i, j)
		}
	}
	return s, nil
}

// SupDim is the length of one tier block.
func (s *State) SupDim() int { return s.Dim * s.Dim }

func (s *State) Clone() *State {
	c := &State{
		Data:   make([]complex128, len(s.Data)),
		Dim:    s.Dim,
		N:      s.N,
		Parity: s.Parity,
	}
	copy(c.Data, s.Data)
	return c
}

func (s *State) IsValid() bool {
	if len(s.Data) != s.N*s.Dim*s.Dim {
		return false
	}
	for _, v := range s.Data {
		if cmplx.IsNaN(v) || cmplx.IsInf(v) {
			return false
		}
	}
	return true
}

func (s *State) Norm() float64 {
	sum := 0.0
	for _, v := range s.Data {
		sum += real(v)*real(v) + imag(v)*imag(v)
	}
	return math.Sqrt(sum)
}

// Tier returns tier k of the hierarchy as a dense dim×dim matrix.
func (s *State) Tier(k int) *mat.CDense {
	dim := s.Dim
	out := mat.NewCDense(dim, dim, nil)
	off := k * dim * dim
	for j := 0; j < dim; j++ {
		for i := 0; i < dim; i++ {
			out.Set(i, j, s.Data[off+i+j*dim])
		}
	}
	return out
}

// Tier0 returns the physical reduced state.
func (s *State) Tier0() *mat.CDense { return s.Tier(0) }

// Trace returns the trace of the tier-0 block.
func (s *State) Trace() complex128 {
	var tr complex128
	for i := 0; i < s.Dim; i++ {
		tr += s.Data[i+i*s.Dim]
	}
	return tr
}

// Trajectory is an ordered sequence of snapshots with strictly increasing
// timestamps; the first entry is the initial condition.
type Trajectory struct {
	Times  []float64
	States []*State
}

func (tr *Trajectory) Len() int { return len(tr.Times) }

func (tr *Trajectory) Append(t float64, s *State) {
	tr.Times = append(tr.Times, t)
	tr.States = append(tr.States, s)
}

// Recorder persists snapshots keyed by a textual timestamp, strictly in
// production order, durably before the next step begins.
type Recorder interface {
	Record(key string, s *State) error
	Close() error
}

// Progress receives stepping signals. Implementations are observational only
// and must never influence computed values.
type Progress interface {
	Start(total int)
	Advance()
	Finish()
}

// NopProgress discards all signals.
type NopProgress struct{}

func (NopProgress) Start(int) {}
func (NopProgress) Advance()  {}
func (NopProgress) Finish()   {}

// Metric observes snapshots during an evolution and reduces them to a value.
type Metric interface {
	Name() string
	Observe(t float64, s *State)
	Value() float64
	Reset()
}
