package liouville

import (
	"gonum.org/v1/gonum/mat"

	"github.com/rvats/qprop/internal/heom"
	"github.com/rvats/qprop/internal/sparse"
)

// Hamiltonian is a pure callback returning the system Hamiltonian at time t.
// It sits on the adaptive stepper's hot path and must be cheap and free of
// side effects.
type Hamiltonian func(params []float64, t float64) *mat.CDense

// Buffer is the per-call mutable generator used for time-dependent runs. It
// holds the static (bath-coupling) part of the generator, which is never
// touched, plus one dense sup_dim×sup_dim commutator block that is rewritten
// in place on every evaluation and applied block-diagonally across all N
// tiers. Each evolution call owns its Buffer exclusively; concurrent calls
// over the same model must each build their own.
type Buffer struct {
	static *sparse.CSR
	comm   []complex128 // row-major sup_dim×sup_dim, rewritten per eval
	dim    int
	n      int
	supDim int
	h      Hamiltonian
	params []float64
}

// NewBuffer builds a time-dependent generator buffer over the static part of
// a model's generator (all bath-coupling terms). The Hamiltonian callback
// supplies the system part at each evaluation time.
func NewBuffer(m *heom.Model, h Hamiltonian, params []float64) *Buffer {
	return &Buffer{
		static: m.L.Clone(),
		comm:   make([]complex128, m.SupDim*m.SupDim),
		dim:    m.Dim,
		n:      m.N,
		supDim: m.SupDim,
		h:      h,
		params: params,
	}
}

// Derivative evaluates dy = (M0 + blockdiag(-i[H(t), ·])) y. The commutator
// block is recomputed and overwritten in place on every call; the static part
// stays as built.
func (b *Buffer) Derivative(t float64, y, dy []complex128) error {
	ht := b.h(b.params, t)
	r, c := ht.Dims()
	if r != b.dim || c != b.dim {
		return &heom.DimensionError{
			Op: "time-dependent Hamiltonian", Rows: r, Cols: c, Want: b.dim,
			Time: t, Timed: true,
		}
	}

	b.refreshCommutator(ht)

	b.static.MatVec(dy, y)
	for tier := 0; tier < b.n; tier++ {
		off := tier * b.supDim
		for row := 0; row < b.supDim; row++ {
			var acc complex128
			krow := b.comm[row*b.supDim : (row+1)*b.supDim]
			for col, kv := range krow {
				if kv != 0 {
					acc += kv * y[off+col]
				}
			}
			dy[off+row] += acc
		}
	}
	return nil
}

// refreshCommutator writes K = -i(I⊗H − Hᵀ⊗I) into the owned block.
// Row (i + j·dim) of K couples to columns (k + j·dim) via -i·H[i,k] and to
// columns (i + l·dim) via +i·H[l,j].
func (b *Buffer) refreshCommutator(ht *mat.CDense) {
	for i := range b.comm {
		b.comm[i] = 0
	}
	dim := b.dim
	for j := 0; j < dim; j++ {
		for i := 0; i < dim; i++ {
			row := (i + j*dim) * b.supDim
			for k := 0; k < dim; k++ {
				b.comm[row+k+j*dim] += complex(0, -1) * ht.At(i, k)
			}
			for l := 0; l < dim; l++ {
				b.comm[row+i+l*dim] += complex(0, 1) * ht.At(l, j)
			}
		}
	}
}
