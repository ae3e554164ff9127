package evolve

import (
	"errors"
	"math"
	"math/cmplx"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/rvats/qprop/internal/checkpoint"
	"github.com/rvats/qprop/internal/heom"
	"github.com/rvats/qprop/internal/models"
)

func TestEvolveFixed_ZeroSteps(t *testing.T) {
	ev := New(models.PureDephasing(1.0), DefaultOptions())
	res, err := ev.EvolveFixed(Matrix(models.GroundState()), 0.1, 0)
	if err != nil {
		t.Fatalf("EvolveFixed: %v", err)
	}
	if len(res.States) != 1 || res.Times[0] != 0 {
		t.Fatalf("got %d snapshots at %v, want exactly the initial one", len(res.States), res.Times)
	}
	if res.States[0].Data[0] != 1 {
		t.Errorf("initial snapshot corrupted: %v", res.States[0].Data)
	}
}

func TestEvolveFixed_DephasingFixedPoint(t *testing.T) {
	// dim=2, N=1, L = diag(0,-1,-1,0); ground state has no coherences, so
	// every snapshot stays [1,0,0,0].
	ev := New(models.PureDephasing(1.0), DefaultOptions())
	res, err := ev.EvolveFixed(Matrix(models.GroundState()), 1.0, 3)
	if err != nil {
		t.Fatalf("EvolveFixed: %v", err)
	}
	if len(res.States) != 4 {
		t.Fatalf("snapshots = %d, want 4", len(res.States))
	}
	for k, s := range res.States {
		want := []complex128{1, 0, 0, 0}
		for i := range want {
			if cmplx.Abs(s.Data[i]-want[i]) > 1e-9 {
				t.Errorf("snapshot %d component %d = %v, want %v", k, i, s.Data[i], want[i])
			}
		}
	}
	for k, tt := range res.Times {
		if math.Abs(tt-float64(k)) > 1e-12 {
			t.Errorf("Times[%d] = %v, want %d", k, tt, k)
		}
	}
}

func TestEvolveFixed_CoherenceDecay(t *testing.T) {
	// |+><+| under dephasing: rho01(t) = 0.5·exp(-gamma t).
	gamma := 0.8
	opts := DefaultOptions()
	opts.Threshold = 1e-10
	ev := New(models.PureDephasing(gamma), opts)
	res, err := ev.EvolveFixed(Matrix(models.PlusState()), 0.25, 8)
	if err != nil {
		t.Fatalf("EvolveFixed: %v", err)
	}
	final := res.States[len(res.States)-1]
	want := 0.5 * math.Exp(-gamma*2.0)
	if math.Abs(real(final.Data[1])-want) > 1e-6 {
		t.Errorf("rho01(2) = %v, want %v", final.Data[1], want)
	}
}

func TestEvolveGrid_LengthAndTimestamps(t *testing.T) {
	ev := New(models.DampedQubit(1.0, 0.2), DefaultOptions())
	tlist := []float64{0, 0.1, 0.4, 0.9, 1.3}
	res, err := ev.EvolveGrid(Matrix(models.PlusState()), tlist)
	if err != nil {
		t.Fatalf("EvolveGrid: %v", err)
	}
	if len(res.States) != len(tlist) {
		t.Fatalf("snapshots = %d, want %d", len(res.States), len(tlist))
	}
	for i := range tlist {
		if res.Times[i] != tlist[i] {
			t.Errorf("Times[%d] = %v, want exactly %v", i, res.Times[i], tlist[i])
		}
	}
	if res.Stats.Steps == 0 {
		t.Error("adaptive stats not populated")
	}
}

func TestPropagatorMatchesODE(t *testing.T) {
	// One propagator application must agree with one adaptive integration
	// over [0, dt] on a small diagonalizable generator.
	model := models.DampedQubit(1.3, 0.4)
	dt := 0.3

	opts := DefaultOptions()
	opts.Threshold = 1e-12
	opts.Reltol = 1e-10
	opts.Abstol = 1e-12

	ev := New(model, opts)
	fixed, err := ev.EvolveFixed(Matrix(models.PlusState()), dt, 1)
	if err != nil {
		t.Fatalf("EvolveFixed: %v", err)
	}
	grid, err := ev.EvolveGrid(Matrix(models.PlusState()), []float64{0, dt})
	if err != nil {
		t.Fatalf("EvolveGrid: %v", err)
	}

	a := fixed.States[1]
	b := grid.States[1]
	for i := range a.Data {
		if cmplx.Abs(a.Data[i]-b.Data[i]) > 1e-7 {
			t.Errorf("component %d: propagator %v vs ODE %v", i, a.Data[i], b.Data[i])
		}
	}
}

func TestTimeDependent_ZeroHamiltonianDegeneracy(t *testing.T) {
	// H(t) ≡ 0 must reproduce the static trajectory of the bath-only model.
	gamma := 0.5
	static := models.PureDephasing(gamma)
	tlist := []float64{0, 0.5, 1.0, 2.0}

	opts := DefaultOptions()
	opts.Reltol = 1e-9
	opts.Abstol = 1e-11

	ref, err := New(static, opts).EvolveGrid(Matrix(models.PlusState()), tlist)
	if err != nil {
		t.Fatalf("static EvolveGrid: %v", err)
	}

	zeroH := func(params []float64, tt float64) *mat.CDense {
		return mat.NewCDense(2, 2, nil)
	}
	td, err := New(static, opts).EvolveGridTD(Matrix(models.PlusState()), zeroH, nil, tlist)
	if err != nil {
		t.Fatalf("EvolveGridTD: %v", err)
	}

	for k := range tlist {
		for i := range ref.States[k].Data {
			d := cmplx.Abs(ref.States[k].Data[i] - td.States[k].Data[i])
			if d > 1e-7 {
				t.Errorf("t=%v component %d differs by %v", tlist[k], i, d)
			}
		}
	}
}

func TestTimeDependent_DriveMovesPopulation(t *testing.T) {
	drv := models.DrivenQubit(0.0, 0.0, 2.0, 0.0) // resonant constant drive, no damping
	ev := New(drv.Model, DefaultOptions())
	res, err := ev.EvolveGridTD(Matrix(models.GroundState()), drv.H, drv.Params, []float64{0, math.Pi / 2})
	if err != nil {
		t.Fatalf("EvolveGridTD: %v", err)
	}
	// amp=2, freq=0 gives H = sigma_x; the excited population under sigma_x
	// is sin²(t), so t=pi/2 is a full flop.
	p1 := real(res.States[1].Data[3])
	if math.Abs(p1-1.0) > 1e-5 {
		t.Errorf("excited population = %v, want 1 (full Rabi flop)", p1)
	}
}

func TestRejection_MismatchedState(t *testing.T) {
	model := models.PureDephasing(1.0)
	bad := heom.NewState(2, 3, heom.EVEN) // N=3, model has N=1
	dest := filepath.Join(t.TempDir(), "ckpt")

	opts := DefaultOptions()
	opts.Checkpoint = dest
	ev := New(model, opts)

	_, err := ev.EvolveFixed(FromState(bad), 0.1, 5)
	if !errors.Is(err, heom.ErrConsistency) {
		t.Fatalf("err = %v, want ErrConsistency", err)
	}
	var ce *heom.ConsistencyError
	if !errors.As(err, &ce) || ce.Field != "N" {
		t.Errorf("error does not name the mismatched field: %v", err)
	}

	// validation precedes persistence setup: no checkpoint dir may exist
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Error("checkpoint destination was created despite rejection")
	}
}

func TestRejection_WrongParity(t *testing.T) {
	model := models.PureDephasing(1.0)
	bad := heom.NewState(2, 1, heom.ODD)
	_, err := New(model, DefaultOptions()).EvolveFixed(FromState(bad), 0.1, 1)
	var ce *heom.ConsistencyError
	if !errors.As(err, &ce) || ce.Field != "parity" {
		t.Fatalf("err = %v, want parity consistency error", err)
	}
}

func TestRejection_BadInitialMatrix(t *testing.T) {
	model := models.PureDephasing(1.0)
	rho := mat.NewCDense(3, 3, nil)
	_, err := New(model, DefaultOptions()).EvolveFixed(Matrix(rho), 0.1, 1)
	if !errors.Is(err, heom.ErrDimension) {
		t.Fatalf("err = %v, want ErrDimension", err)
	}
}

func TestCheckpoint_ExistingDestinationFails(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "ckpt")
	if err := os.MkdirAll(dest, 0o755); err != nil {
		t.Fatal(err)
	}

	opts := DefaultOptions()
	opts.Checkpoint = dest
	ev := New(models.PureDephasing(1.0), opts)

	_, err := ev.EvolveFixed(Matrix(models.GroundState()), 0.1, 2)
	if !errors.Is(err, heom.ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestCheckpoint_FixedStepKeys(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "ckpt")

	opts := DefaultOptions()
	opts.Checkpoint = dest
	ev := New(models.PureDephasing(1.0), opts)

	if _, err := ev.EvolveFixed(Matrix(models.GroundState()), 0.5, 3); err != nil {
		t.Fatalf("EvolveFixed: %v", err)
	}

	st, err := checkpoint.Open(dest)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	keys, err := st.Keys()
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	want := []string{"0", "0.5", "1", "1.5"}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}

	got, err := st.Get("0")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Data[0] != 1 {
		t.Errorf("persisted initial snapshot = %v", got.Data)
	}
}

func TestCheckpoint_GridKeysRealForm(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "ckpt")

	opts := DefaultOptions()
	opts.Checkpoint = dest
	ev := New(models.PureDephasing(1.0), opts)

	if _, err := ev.EvolveGrid(Matrix(models.GroundState()), []float64{0, 1, 2}); err != nil {
		t.Fatalf("EvolveGrid: %v", err)
	}

	st, err := checkpoint.Open(dest)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	keys, err := st.Keys()
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	want := []string{"0.0", "1.0", "2.0"}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}

// recordingSink captures Record calls without touching disk.
type recordingSink struct {
	keys   []string
	failAt int // fail when len(keys) reaches failAt; 0 disables
}

func (r *recordingSink) Record(key string, s *heom.State) error {
	if r.failAt > 0 && len(r.keys)+1 > r.failAt {
		return errors.New("sink full")
	}
	r.keys = append(r.keys, key)
	return nil
}

func (r *recordingSink) Close() error { return nil }

func TestRecorder_ProductionOrderAndAbort(t *testing.T) {
	sink := &recordingSink{failAt: 3}
	opts := DefaultOptions()
	opts.Recorder = sink
	ev := New(models.PureDephasing(1.0), opts)

	_, err := ev.EvolveFixed(Matrix(models.GroundState()), 1.0, 10)
	if err == nil {
		t.Fatal("expected recorder failure to abort the run")
	}
	// exactly the entries for steps 0..2 exist
	want := []string{"0", "1", "2"}
	if len(sink.keys) != len(want) {
		t.Fatalf("recorded keys = %v, want %v", sink.keys, want)
	}
	for i := range want {
		if sink.keys[i] != want[i] {
			t.Errorf("keys[%d] = %q, want %q", i, sink.keys[i], want[i])
		}
	}
}

func TestMetrics_AttachedToRun(t *testing.T) {
	ev := New(models.PureDephasing(1.0), DefaultOptions())
	ev.AddMetric(&trivialMetric{})
	res, err := ev.EvolveFixed(Matrix(models.GroundState()), 0.1, 5)
	if err != nil {
		t.Fatalf("EvolveFixed: %v", err)
	}
	if res.Metrics["snapshots"] != 6 {
		t.Errorf("metric observed %v snapshots, want 6", res.Metrics["snapshots"])
	}
}

type trivialMetric struct{ count int }

func (m *trivialMetric) Name() string                     { return "snapshots" }
func (m *trivialMetric) Observe(t float64, s *heom.State) { m.count++ }
func (m *trivialMetric) Value() float64                   { return float64(m.count) }
func (m *trivialMetric) Reset()                           { m.count = 0 }

func TestSaveEverystep(t *testing.T) {
	opts := DefaultOptions()
	opts.SaveEverystep = true
	ev := New(models.DampedQubit(1.0, 0.3), opts)

	res, err := ev.EvolveGrid(Matrix(models.PlusState()), []float64{0, 1})
	if err != nil {
		t.Fatalf("EvolveGrid: %v", err)
	}
	if len(res.States) <= 2 {
		t.Errorf("save_everystep kept only %d snapshots", len(res.States))
	}
	for i := 1; i < len(res.Times); i++ {
		if res.Times[i] <= res.Times[i-1] {
			t.Errorf("times not strictly increasing at %d: %v", i, res.Times[i-1:i+1])
		}
	}
}

func TestBudgetExceeded_NamesTarget(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxIters = 2
	ev := New(models.DampedQubit(1.0, 0.3), opts)

	_, err := ev.EvolveGrid(Matrix(models.PlusState()), []float64{0, 50})
	if !errors.Is(err, heom.ErrMaxIters) {
		t.Fatalf("err = %v, want ErrMaxIters", err)
	}
}
