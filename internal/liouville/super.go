package liouville

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/cblas128"
	"gonum.org/v1/gonum/mat"

	"github.com/rvats/qprop/internal/sparse"
)

// Superoperator builders for the column-stacking convention
// vec(rho)[i + j*dim] = rho[i,j], under which vec(A rho B) = (B^T ⊗ A) vec(rho).

// Kron returns the Kronecker product a ⊗ b as a sparse matrix, dropping
// structurally zero entries.
func Kron(a, b *mat.CDense) *sparse.CSR {
	ra, ca := a.Dims()
	rb, cb := b.Dims()
	entries := make([]sparse.Triplet, 0, ra*ca*rb*cb/4)
	for ia := 0; ia < ra; ia++ {
		for ja := 0; ja < ca; ja++ {
			av := a.At(ia, ja)
			if av == 0 {
				continue
			}
			for ib := 0; ib < rb; ib++ {
				for jb := 0; jb < cb; jb++ {
					bv := b.At(ib, jb)
					if bv == 0 {
						continue
					}
					entries = append(entries, sparse.Triplet{
						Row: ia*rb + ib,
						Col: ja*cb + jb,
						V:   av * bv,
					})
				}
			}
		}
	}
	return sparse.New(ra*rb, ca*cb, entries)
}

// Spre returns the left-multiplication superoperator: vec(A rho) = Spre(A) vec(rho).
func Spre(a *mat.CDense) *sparse.CSR {
	n, _ := a.Dims()
	return Kron(eye(n), a)
}

// Spost returns the right-multiplication superoperator: vec(rho A) = Spost(A) vec(rho).
func Spost(a *mat.CDense) *sparse.CSR {
	n, _ := a.Dims()
	return Kron(transpose(a), eye(n))
}

// Commutator returns -i(Spre(H) - Spost(H)), the unitary part of a Liouvillian.
func Commutator(h *mat.CDense) *sparse.CSR {
	pre := Spre(h).Scale(complex(0, -1))
	post := Spost(h).Scale(complex(0, 1))
	return pre.Add(post)
}

// Dissipator returns the Lindblad dissipator superoperator for collapse
// operator C: rho -> C rho C† - (C†C rho + rho C†C)/2.
func Dissipator(c *mat.CDense) *sparse.CSR {
	n, _ := c.Dims()

	cdc := mat.NewCDense(n, n, nil)
	cblas128.Gemm(blas.NoTrans, blas.NoTrans, 1, dagger(c).RawCMatrix(), c.RawCMatrix(), 0, cdc.RawCMatrix())

	jump := Kron(conjugate(c), c)
	anti := Spre(cdc).Scale(-0.5).Add(Spost(cdc).Scale(-0.5))
	return jump.Add(anti)
}

func eye(n int) *mat.CDense {
	m := mat.NewCDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

func transpose(a *mat.CDense) *mat.CDense {
	r, c := a.Dims()
	out := mat.NewCDense(c, r, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(j, i, a.At(i, j))
		}
	}
	return out
}

func conjugate(a *mat.CDense) *mat.CDense {
	r, c := a.Dims()
	out := mat.NewCDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := a.At(i, j)
			out.Set(i, j, complex(real(v), -imag(v)))
		}
	}
	return out
}

func dagger(a *mat.CDense) *mat.CDense {
	return transpose(conjugate(a))
}
