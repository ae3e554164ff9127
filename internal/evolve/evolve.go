// Package evolve orchestrates hierarchy-state propagation: it validates the
// initial condition against the model, selects a stepping strategy, and
// assembles the trajectory while feeding the recorder, metrics, and progress
// hooks.
package evolve

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/rvats/qprop/internal/checkpoint"
	"github.com/rvats/qprop/internal/heom"
	"github.com/rvats/qprop/internal/integrators"
	"github.com/rvats/qprop/internal/liouville"
	"github.com/rvats/qprop/internal/propagator"
)

// Initial is the variant-normalizing adapter over the two accepted
// initial-state representations: a raw density matrix embedded into tier 0,
// or a pre-vectorized hierarchy state checked against the model.
type Initial struct {
	rho   *mat.CDense
	state *heom.State
}

// Matrix supplies a dim×dim density matrix as the initial condition.
func Matrix(rho *mat.CDense) Initial { return Initial{rho: rho} }

// FromState supplies a full hierarchy state as the initial condition.
func FromState(s *heom.State) Initial { return Initial{state: s} }

// Result is the outcome of one evolution call.
type Result struct {
	Times   []float64
	States  []*heom.State
	Metrics map[string]float64
	Stats   integrators.Stats
}

// Evolution runs propagation over one model. Calls are single-threaded; for
// concurrent runs over the same model give each its own Evolution.
type Evolution struct {
	model   *heom.Model
	opts    Options
	log     zerolog.Logger
	metrics []heom.Metric
}

func New(model *heom.Model, opts Options) *Evolution {
	return &Evolution{
		model: model,
		opts:  opts,
		log:   opts.Logger,
	}
}

func (e *Evolution) AddMetric(m heom.Metric) { e.metrics = append(e.metrics, m) }

// normalize turns either initial-state representation into a hierarchy state
// owned by this call. All consistency checks happen here, before any
// numerical work or persistence setup.
func (e *Evolution) normalize(init Initial) (*heom.State, error) {
	switch {
	case init.state != nil:
		if err := e.model.CheckState(init.state); err != nil {
			return nil, err
		}
		return init.state.Clone(), nil
	case init.rho != nil:
		return heom.FromDensityMatrix(init.rho, e.model.Dim, e.model.N, e.model.Parity)
	default:
		return nil, fmt.Errorf("evolve: no initial state supplied")
	}
}

func (e *Evolution) progress() heom.Progress {
	if e.opts.Progress != nil {
		return e.opts.Progress
	}
	return heom.NopProgress{}
}

// openRecorder resolves the persistence destination. A nil, nil return means
// persistence is disabled.
func (e *Evolution) openRecorder() (heom.Recorder, error) {
	if e.opts.Recorder != nil {
		return e.opts.Recorder, nil
	}
	if e.opts.Checkpoint == "" {
		return nil, nil
	}
	return checkpoint.Create(e.opts.Checkpoint)
}

// EvolveFixed builds the propagator exp(L·dt) once and applies it steps
// times, returning steps+1 snapshots at 0, dt, 2dt, …
func (e *Evolution) EvolveFixed(init Initial, dt float64, steps int) (*Result, error) {
	if dt <= 0 {
		return nil, fmt.Errorf("evolve: dt must be positive, got %g", dt)
	}
	if steps < 0 {
		return nil, fmt.Errorf("evolve: steps must be non-negative, got %d", steps)
	}

	s0, err := e.normalize(init)
	if err != nil {
		return nil, err
	}

	rec, err := e.openRecorder()
	if err != nil {
		return nil, err
	}
	defer e.closeRecorder(rec)

	start := time.Now()
	prop, err := propagator.Build(e.model.L, dt, propagator.Options{
		Threshold:  e.opts.Threshold,
		NonzeroTol: e.opts.NonzeroTol,
	})
	if err != nil {
		return nil, err
	}
	e.log.Debug().
		Int("terms", prop.Terms).
		Int("nnz", prop.NNZ()).
		Dur("elapsed", time.Since(start)).
		Msg("propagator built")

	res := e.newResult(steps + 1)
	prog := e.progress()
	prog.Start(steps)
	defer prog.Finish()

	fixed := integrators.NewFixedStep(prop)
	err = fixed.Run(s0.Data, steps, func(step int, t float64, y []complex128) error {
		if err := e.emit(res, rec, t, y, checkpoint.TimeKey(t, false)); err != nil {
			return err
		}
		if step > 0 {
			prog.Advance()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.finalize(res)
	return res, nil
}

// EvolveGrid integrates the static generator across tlist adaptively,
// returning one snapshot per grid point.
func (e *Evolution) EvolveGrid(init Initial, tlist []float64) (*Result, error) {
	deriv := func(t float64, y, dy []complex128) error {
		e.model.L.MatVec(dy, y)
		return nil
	}
	return e.gridRun(init, tlist, deriv)
}

// EvolveGridTD integrates with a time-dependent Hamiltonian. The model's
// generator must hold only the static (bath-coupling) part; the system part
// is recomputed from h on every stepper evaluation, inside a buffer owned by
// this call alone.
func (e *Evolution) EvolveGridTD(init Initial, h liouville.Hamiltonian, params []float64, tlist []float64) (*Result, error) {
	buf := liouville.NewBuffer(e.model, h, params)
	return e.gridRun(init, tlist, buf.Derivative)
}

// gridRun is the single internal stepping routine behind both grid entry
// points.
func (e *Evolution) gridRun(init Initial, tlist []float64, deriv integrators.Derivative) (*Result, error) {
	if len(tlist) == 0 {
		return nil, fmt.Errorf("evolve: empty time grid")
	}
	for i := 1; i < len(tlist); i++ {
		if tlist[i] <= tlist[i-1] {
			return nil, heom.ErrTimeGrid
		}
	}

	s0, err := e.normalize(init)
	if err != nil {
		return nil, err
	}

	rec, err := e.openRecorder()
	if err != nil {
		return nil, err
	}
	defer e.closeRecorder(rec)

	stepper := integrators.NewDP45(e.opts.Reltol, e.opts.Abstol, e.opts.MaxIters)
	stepper.ApplyExtra(e.opts.Extra)

	res := e.newResult(len(tlist))
	prog := e.progress()
	prog.Start(len(tlist) - 1)
	defer prog.Finish()

	stats, err := stepper.Integrate(deriv, s0.Data, tlist, func(t float64, y []complex128, grid bool) error {
		if !grid && !e.opts.SaveEverystep {
			return nil
		}
		if err := e.emit(res, rec, t, y, checkpoint.TimeKey(t, true)); err != nil {
			return err
		}
		if grid && t != tlist[0] {
			prog.Advance()
		}
		return nil
	})
	res.Stats = stats
	e.log.Debug().
		Int("steps", stats.Steps).
		Int("rejected", stats.Rejected).
		Int("evals", stats.Evals).
		Msg("adaptive integration finished")
	if err != nil {
		return nil, err
	}

	e.finalize(res)
	return res, nil
}

func (e *Evolution) newResult(capacity int) *Result {
	for _, m := range e.metrics {
		m.Reset()
	}
	return &Result{
		Times:  make([]float64, 0, capacity),
		States: make([]*heom.State, 0, capacity),
	}
}

// emit appends one snapshot to the trajectory and, when persistence is on,
// commits it before the stepping loop may continue.
func (e *Evolution) emit(res *Result, rec heom.Recorder, t float64, y []complex128, key string) error {
	s := heom.NewState(e.model.Dim, e.model.N, e.model.Parity)
	copy(s.Data, y)

	res.Times = append(res.Times, t)
	res.States = append(res.States, s)
	for _, m := range e.metrics {
		m.Observe(t, s)
	}

	if rec != nil {
		if err := rec.Record(key, s); err != nil {
			return err
		}
	}
	return nil
}

func (e *Evolution) finalize(res *Result) {
	if len(e.metrics) > 0 {
		res.Metrics = make(map[string]float64, len(e.metrics))
		for _, m := range e.metrics {
			res.Metrics[m.Name()] = m.Value()
		}
	}
}

func (e *Evolution) closeRecorder(rec heom.Recorder) {
	// caller-supplied recorders are closed by their owner
	if rec == nil || rec == e.opts.Recorder {
		return
	}
	if err := rec.Close(); err != nil {
		e.log.Warn().Err(err).Msg("closing checkpoint store")
	}
}
