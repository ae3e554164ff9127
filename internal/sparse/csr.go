package sparse

import (
	"math/cmplx"
	"sort"
)

// Triplet is one COO entry used to assemble a CSR matrix.
type Triplet struct {
	Row, Col int
	V        complex128
}

// CSR is a sparse complex matrix in compressed-sparse-row form.
type CSR struct {
	Rows, Cols int
	RowPtr     []int
	ColIdx     []int
	Val        []complex128
}

// New assembles a CSR matrix from triplets. Duplicate (row, col) entries are
// summed; explicit zeros are kept (use Prune to drop them).
func New(rows, cols int, entries []Triplet) *CSR {
	ts := make([]Triplet, len(entries))
	copy(ts, entries)
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].Row != ts[j].Row {
			return ts[i].Row < ts[j].Row
		}
		return ts[i].Col < ts[j].Col
	})

	m := &CSR{
		Rows:   rows,
		Cols:   cols,
		RowPtr: make([]int, rows+1),
		ColIdx: make([]int, 0, len(ts)),
		Val:    make([]complex128, 0, len(ts)),
	}

	for i := 0; i < len(ts); {
		j := i + 1
		v := ts[i].V
		for j < len(ts) && ts[j].Row == ts[i].Row && ts[j].Col == ts[i].Col {
			v += ts[j].V
			j++
		}
		m.ColIdx = append(m.ColIdx, ts[i].Col)
		m.Val = append(m.Val, v)
		m.RowPtr[ts[i].Row+1]++
		i = j
	}
	for r := 0; r < rows; r++ {
		m.RowPtr[r+1] += m.RowPtr[r]
	}
	return m
}

// Identity returns the n×n identity.
func Identity(n int) *CSR {
	m := &CSR{
		Rows:   n,
		Cols:   n,
		RowPtr: make([]int, n+1),
		ColIdx: make([]int, n),
		Val:    make([]complex128, n),
	}
	for i := 0; i < n; i++ {
		m.RowPtr[i+1] = i + 1
		m.ColIdx[i] = i
		m.Val[i] = 1
	}
	return m
}

// NNZ is the number of stored entries.
func (m *CSR) NNZ() int { return len(m.Val) }

func (m *CSR) Clone() *CSR {
	c := &CSR{
		Rows:   m.Rows,
		Cols:   m.Cols,
		RowPtr: make([]int, len(m.RowPtr)),
		ColIdx: make([]int, len(m.ColIdx)),
		Val:    make([]complex128, len(m.Val)),
	}
	copy(c.RowPtr, m.RowPtr)
	copy(c.ColIdx, m.ColIdx)
	copy(c.Val, m.Val)
	return c
}

// At returns the (i, j) entry. Linear scan over the row; meant for tests and
// assembly-time inspection, not hot loops.
func (m *CSR) At(i, j int) complex128 {
	for k := m.RowPtr[i]; k < m.RowPtr[i+1]; k++ {
		if m.ColIdx[k] == j {
			return m.Val[k]
		}
	}
	return 0
}

// MatVec computes dst = M·x. dst must not alias x.
func (m *CSR) MatVec(dst, x []complex128) {
	for i := 0; i < m.Rows; i++ {
		var acc complex128
		for k := m.RowPtr[i]; k < m.RowPtr[i+1]; k++ {
			acc += m.Val[k] * x[m.ColIdx[k]]
		}
		dst[i] = acc
	}
}

// Scale multiplies every entry by alpha in place and returns m.
func (m *CSR) Scale(alpha complex128) *CSR {
	for i := range m.Val {
		m.Val[i] *= alpha
	}
	return m
}

// MaxAbs returns the largest entry magnitude, 0 for an empty matrix.
func (m *CSR) MaxAbs() float64 {
	max := 0.0
	for _, v := range m.Val {
		if a := cmplx.Abs(v); a > max {
			max = a
		}
	}
	return max
}

// Add returns m + b as a new matrix.
func (m *CSR) Add(b *CSR) *CSR {
	out := &CSR{Rows: m.Rows, Cols: m.Cols, RowPtr: make([]int, m.Rows+1)}
	next := make([]int, m.Cols)
	vals := make([]complex128, m.Cols)
	for i := range next {
		next[i] = -1
	}

	for i := 0; i < m.Rows; i++ {
		head, count := -2, 0
		for k := m.RowPtr[i]; k < m.RowPtr[i+1]; k++ {
			j := m.ColIdx[k]
			vals[j] += m.Val[k]
			if next[j] == -1 {
				next[j] = head
				head = j
				count++
			}
		}
		for k := b.RowPtr[i]; k < b.RowPtr[i+1]; k++ {
			j := b.ColIdx[k]
			vals[j] += b.Val[k]
			if next[j] == -1 {
				next[j] = head
				head = j
				count++
			}
		}
		cols := make([]int, 0, count)
		for j := head; j != -2; j = next[j] {
			cols = append(cols, j)
		}
		sort.Ints(cols)
		for _, j := range cols {
			out.ColIdx = append(out.ColIdx, j)
			out.Val = append(out.Val, vals[j])
			vals[j] = 0
			next[j] = -1
		}
		out.RowPtr[i+1] = len(out.Val)
	}
	return out
}

// Mul returns the sparse product m·b as a new matrix (gather/scatter per row).
func (m *CSR) Mul(b *CSR) *CSR {
	out := &CSR{Rows: m.Rows, Cols: b.Cols, RowPtr: make([]int, m.Rows+1)}
	next := make([]int, b.Cols)
	vals := make([]complex128, b.Cols)
	for i := range next {
		next[i] = -1
	}

	for i := 0; i < m.Rows; i++ {
		head, count := -2, 0
		for k := m.RowPtr[i]; k < m.RowPtr[i+1]; k++ {
			a := m.Val[k]
			row := m.ColIdx[k]
			for kb := b.RowPtr[row]; kb < b.RowPtr[row+1]; kb++ {
				j := b.ColIdx[kb]
				vals[j] += a * b.Val[kb]
				if next[j] == -1 {
					next[j] = head
					head = j
					count++
				}
			}
		}
		cols := make([]int, 0, count)
		for j := head; j != -2; j = next[j] {
			cols = append(cols, j)
		}
		sort.Ints(cols)
		for _, j := range cols {
			out.ColIdx = append(out.ColIdx, j)
			out.Val = append(out.Val, vals[j])
			vals[j] = 0
			next[j] = -1
		}
		out.RowPtr[i+1] = len(out.Val)
	}
	return out
}

// Prune drops entries with magnitude below tol and returns a new matrix.
// Bounds the fill-in growth from repeated sparse products.
func (m *CSR) Prune(tol float64) *CSR {
	out := &CSR{Rows: m.Rows, Cols: m.Cols, RowPtr: make([]int, m.Rows+1)}
	for i := 0; i < m.Rows; i++ {
		for k := m.RowPtr[i]; k < m.RowPtr[i+1]; k++ {
			if cmplx.Abs(m.Val[k]) >= tol {
				out.ColIdx = append(out.ColIdx, m.ColIdx[k])
				out.Val = append(out.Val, m.Val[k])
			}
		}
		out.RowPtr[i+1] = len(out.Val)
	}
	return out
}
