package integrators

import (
	"errors"
	"math"
	"testing"

	"github.com/rvats/qprop/internal/propagator"
	"github.com/rvats/qprop/internal/sparse"
)

func decayPropagator(t *testing.T, rate, dt float64) *propagator.Propagator {
	t.Helper()
	l := sparse.New(1, 1, []sparse.Triplet{{Row: 0, Col: 0, V: complex(-rate, 0)}})
	p, err := propagator.Build(l, dt, propagator.Options{Threshold: 1e-12})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return p
}

func TestFixedStep_ZeroSteps(t *testing.T) {
	f := NewFixedStep(decayPropagator(t, 1, 0.1))

	var times []float64
	err := f.Run([]complex128{1}, 0, func(step int, tt float64, y []complex128) error {
		times = append(times, tt)
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(times) != 1 || times[0] != 0 {
		t.Fatalf("times = %v, want [0]", times)
	}
}

func TestFixedStep_Timestamps(t *testing.T) {
	f := NewFixedStep(decayPropagator(t, 1, 0.5))

	var times []float64
	err := f.Run([]complex128{1}, 4, func(step int, tt float64, y []complex128) error {
		times = append(times, tt)
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []float64{0, 0.5, 1, 1.5, 2}
	if len(times) != len(want) {
		t.Fatalf("got %d snapshots, want %d", len(times), len(want))
	}
	for i := range want {
		if math.Abs(times[i]-want[i]) > 1e-12 {
			t.Errorf("times[%d] = %v, want %v", i, times[i], want[i])
		}
	}
}

func TestFixedStep_DecayValues(t *testing.T) {
	f := NewFixedStep(decayPropagator(t, 2, 0.1))

	var last complex128
	err := f.Run([]complex128{1}, 10, func(step int, tt float64, y []complex128) error {
		last = y[0]
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := math.Exp(-2.0) // exp(-rate * steps * dt)
	if math.Abs(real(last)-want) > 1e-8 {
		t.Errorf("final = %v, want %v", last, want)
	}
}

func TestFixedStep_EmitErrorAborts(t *testing.T) {
	f := NewFixedStep(decayPropagator(t, 1, 0.1))

	boom := errors.New("boom")
	count := 0
	err := f.Run([]complex128{1}, 10, func(step int, tt float64, y []complex128) error {
		count++
		if step == 3 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if count != 4 { // steps 0..3
		t.Errorf("emitted %d snapshots before abort, want 4", count)
	}
}

func TestFixedStep_NegativeSteps(t *testing.T) {
	f := NewFixedStep(decayPropagator(t, 1, 0.1))
	err := f.Run([]complex128{1}, -1, func(int, float64, []complex128) error { return nil })
	if err == nil {
		t.Error("Run accepted negative steps")
	}
}
