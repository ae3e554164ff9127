package models

import (
	"math/cmplx"
	"testing"

	"github.com/rvats/qprop/internal/heom"
)

func TestPureDephasing_Generator(t *testing.T) {
	m := PureDephasing(2.0)
	if m.Dim != 2 || m.N != 1 || m.Parity != heom.EVEN {
		t.Fatalf("metadata: %+v", m)
	}

	want := []complex128{0, -2, -2, 0}
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			var w complex128
			if i == j {
				w = want[i]
			}
			if got := m.L.At(i, j); cmplx.Abs(got-w) > 1e-14 {
				t.Errorf("L[%d,%d] = %v, want %v", i, j, got, w)
			}
		}
	}
}

func TestDampedQubit_TracePreserving(t *testing.T) {
	// every column of a Lindblad generator sums to zero over the diagonal
	// positions of vec(rho)
	m := DampedQubit(1.0, 0.3)
	for col := 0; col < 4; col++ {
		var tr complex128
		for i := 0; i < 2; i++ {
			tr += m.L.At(i+i*2, col)
		}
		if cmplx.Abs(tr) > 1e-14 {
			t.Errorf("column %d diagonal sum = %v, want 0", col, tr)
		}
	}
}

func TestDephasingHierarchy_BlockStructure(t *testing.T) {
	m := DephasingHierarchy(1.0, 3)
	if m.N != 3 || m.L.Rows != 12 {
		t.Fatalf("hierarchy shape: N=%d rows=%d", m.N, m.L.Rows)
	}
	// each tier carries the same diagonal
	for tier := 0; tier < 3; tier++ {
		off := tier * 4
		if m.L.At(off+1, off+1) != -1 || m.L.At(off+2, off+2) != -1 {
			t.Errorf("tier %d diagonal wrong", tier)
		}
	}
	// no inter-tier coupling
	if m.L.At(0, 4) != 0 || m.L.At(5, 1) != 0 {
		t.Error("unexpected inter-tier coupling")
	}
}

func TestDrivenQubit_Callback(t *testing.T) {
	drv := DrivenQubit(0.1, 1.0, 0.5, 2.0)
	h0 := drv.H(drv.Params, 0)
	r, c := h0.Dims()
	if r != 2 || c != 2 {
		t.Fatalf("H(0) is %dx%d", r, c)
	}
	// at t=0 the drive is amp/2 on the off-diagonal
	if cmplx.Abs(h0.At(0, 1)-0.25) > 1e-14 {
		t.Errorf("H(0)[0,1] = %v, want 0.25", h0.At(0, 1))
	}
	// the callback is pure: same t, same matrix
	h1 := drv.H(drv.Params, 0)
	if h1.At(0, 1) != h0.At(0, 1) || h1.At(0, 0) != h0.At(0, 0) {
		t.Error("callback not deterministic")
	}
	// static part carries no unitary term
	if drv.Model.L.At(0, 0) != 0 {
		t.Errorf("static part has diagonal unitary leakage: %v", drv.Model.L.At(0, 0))
	}
}
