// Package models builds small reference Liouvillians for the CLI and tests.
// Real generators come from an external hierarchy constructor; these toys
// exercise the same Model contract at hand-checkable sizes.
package models

import (
	"math"

	"gonum.org/v1/gonum/blas/cblas128"
	"gonum.org/v1/gonum/mat"

	"github.com/rvats/qprop/internal/heom"
	"github.com/rvats/qprop/internal/liouville"
	"github.com/rvats/qprop/internal/sparse"
)

func SigmaX() *mat.CDense { return mat.NewCDense(2, 2, []complex128{0, 1, 1, 0}) }
func SigmaZ() *mat.CDense { return mat.NewCDense(2, 2, []complex128{1, 0, 0, -1}) }

// SigmaMinus is the qubit lowering operator |0><1|.
func SigmaMinus() *mat.CDense { return mat.NewCDense(2, 2, []complex128{0, 1, 0, 0}) }

// PureDephasing returns the dim=2, N=1 dephasing generator
// L = (gamma/2)·D[sigma_z] = diag(0, -gamma, -gamma, 0): populations are fixed
// points, coherences decay at rate gamma.
func PureDephasing(gamma float64) *heom.Model {
	l := liouville.Dissipator(SigmaZ()).Scale(complex(gamma/2, 0))
	return heom.NewModel(l, 2, 1, heom.EVEN)
}

// DampedQubit returns a qubit with splitting delta under amplitude damping at
// rate gamma: L = -i[delta/2·sigma_z, ·] + gamma·D[sigma_-].
func DampedQubit(delta, gamma float64) *heom.Model {
	h := SigmaZ()
	raw := h.RawCMatrix()
	cblas128.Scal(complex(delta/2, 0), cblas128.Vector{N: len(raw.Data), Inc: 1, Data: raw.Data})
	l := liouville.Commutator(h).Add(liouville.Dissipator(SigmaMinus()).Scale(complex(gamma, 0)))
	return heom.NewModel(l, 2, 1, heom.EVEN)
}

// DephasingHierarchy replicates the dephasing generator block-diagonally
// across n tiers. The tiers are uncoupled; the point is a hierarchy-shaped
// state space at test scale.
func DephasingHierarchy(gamma float64, n int) *heom.Model {
	base := PureDephasing(gamma)
	sup := base.SupDim

	var entries []sparse.Triplet
	for tier := 0; tier < n; tier++ {
		off := tier * sup
		for i := 0; i < sup; i++ {
			for k := base.L.RowPtr[i]; k < base.L.RowPtr[i+1]; k++ {
				entries = append(entries, sparse.Triplet{
					Row: off + i,
					Col: off + base.L.ColIdx[k],
					V:   base.L.Val[k],
				})
			}
		}
	}
	l := sparse.New(n*sup, n*sup, entries)
	return heom.NewModel(l, base.Dim, n, heom.EVEN)
}

// TimeDependent pairs a bath-only static generator with the Hamiltonian
// callback that supplies the system part at each evaluation.
type TimeDependent struct {
	Model  *heom.Model
	H      liouville.Hamiltonian
	Params []float64
}

// DrivenQubit returns an amplitude-damped qubit under a cosine drive:
// H(t) = (delta/2)·sigma_z + (amp/2)·cos(freq·t)·sigma_x with
// params = [delta, amp, freq]. The static part carries only the damping.
func DrivenQubit(gamma, delta, amp, freq float64) TimeDependent {
	static := liouville.Dissipator(SigmaMinus()).Scale(complex(gamma, 0))
	model := heom.NewModel(static, 2, 1, heom.EVEN)

	h := func(params []float64, t float64) *mat.CDense {
		d, a, w := params[0], params[1], params[2]
		out := mat.NewCDense(2, 2, nil)
		drive := complex(a/2*math.Cos(w*t), 0)
		out.Set(0, 0, complex(d/2, 0))
		out.Set(1, 1, complex(-d/2, 0))
		out.Set(0, 1, drive)
		out.Set(1, 0, drive)
		return out
	}
	return TimeDependent{Model: model, H: h, Params: []float64{delta, amp, freq}}
}

// GroundState returns |0><0| as a density matrix.
func GroundState() *mat.CDense {
	return mat.NewCDense(2, 2, []complex128{1, 0, 0, 0})
}

// PlusState returns |+><+|, maximal coherence.
func PlusState() *mat.CDense {
	return mat.NewCDense(2, 2, []complex128{0.5, 0.5, 0.5, 0.5})
}
