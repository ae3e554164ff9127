package integrators

import (
	"math"
	"math/cmplx"

	"github.com/rvats/qprop/internal/heom"
)

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

// Derivative evaluates dy = f(t, y) into the provided buffer.
type Derivative func(t float64, y, dy []complex128) error

// EmitFunc receives states as integration proceeds. grid is true when t is a
// requested grid point; internal accepted steps arrive with grid false.
// The y slice is a reused buffer: consumers must copy what they keep.
type EmitFunc func(t float64, y []complex128, grid bool) error

// Stats counts the work an adaptive integration performed.
type Stats struct {
	Steps    int
	Rejected int
	Evals    int
}

// DP45 is an adaptive Dormand-Prince 5(4) stepper over complex state vectors.
type DP45 struct {
	Reltol   float64
	Abstol   float64
	MaxIters int

	InitialDt float64
	MinDt     float64
	MaxDt     float64

	safety   float64
	minScale float64
	maxScale float64

	k1, k2, k3, k4, k5, k6, k7 []complex128
	scratch                    []complex128
	ynew                       []complex128
}

func NewDP45(reltol, abstol float64, maxIters int) *DP45 {
	return &DP45{
		Reltol:   reltol,
		Abstol:   abstol,
		MaxIters: maxIters,
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
	}
}

// ApplyExtra reads the stepper-specific options it understands and ignores
// the rest, so unknown keys pass through without error.
func (s *DP45) ApplyExtra(extra map[string]any) {
	for key, v := range extra {
		f, ok := toFloat(v)
		if !ok {
			continue
		}
		switch key {
		case "initial_dt":
			s.InitialDt = f
		case "min_dt":
			s.MinDt = f
		case "max_dt":
			s.MaxDt = f
		case "safety":
			s.safety = f
		}
	}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}

func (s *DP45) ensureScratch(n int) {
	if len(s.k1) != n {
		s.k1 = make([]complex128, n)
		s.k2 = make([]complex128, n)
		s.k3 = make([]complex128, n)
		s.k4 = make([]complex128, n)
		s.k5 = make([]complex128, n)
		s.k6 = make([]complex128, n)
		s.k7 = make([]complex128, n)
		s.scratch = make([]complex128, n)
		s.ynew = make([]complex128, n)
	}
}

// Integrate advances y0 across the grid tlist, emitting the state at every
// grid point (t0 included) and at every accepted internal step. The step size
// is clamped so the stepper lands exactly on each grid point; grid points are
// visited strictly in order.
func (s *DP45) Integrate(f Derivative, y0 []complex128, tlist []float64, emit EmitFunc) (Stats, error) {
	var stats Stats
	n := len(y0)
	s.ensureScratch(n)

	for i := 1; i < len(tlist); i++ {
		if tlist[i] <= tlist[i-1] {
			return stats, heom.ErrTimeGrid
		}
	}

	y := make([]complex128, n)
	copy(y, y0)

	t := tlist[0]
	if err := emit(t, y, true); err != nil {
		return stats, err
	}

	dt := s.InitialDt
	if dt <= 0 {
		dt = (tlist[len(tlist)-1] - tlist[0]) / (100 * float64(len(tlist)-1))
	}
	if s.MaxDt > 0 && dt > s.MaxDt {
		dt = s.MaxDt
	}

	for gi := 1; gi < len(tlist); gi++ {
		target := tlist[gi]

		for t < target {
			if stats.Steps+stats.Rejected >= s.MaxIters {
				return stats, &heom.BudgetError{MaxIters: s.MaxIters, Time: t, Target: target}
			}

			h := dt
			last := false
			if t+h >= target {
				h = target - t
				last = true
			}

			errRatio, err := s.attempt(f, t, h, y, &stats)
			if err != nil {
				return stats, err
			}

			if errRatio > 1 {
				stats.Rejected++
				scale := math.Max(s.minScale, s.safety*math.Pow(errRatio, -0.25))
				dt = h * scale
				if s.MinDt > 0 && dt < s.MinDt {
					dt = s.MinDt
				}
				continue
			}

			stats.Steps++
			copy(y, s.ynew)
			t += h

			if errRatio > 0 {
				scale := math.Min(s.maxScale, s.safety*math.Pow(errRatio, -0.2))
				dt = h * scale
			} else {
				dt = h * s.maxScale
			}
			if s.MaxDt > 0 && dt > s.MaxDt {
				dt = s.MaxDt
			}

			if last {
				t = target
				if err := emit(t, y, true); err != nil {
					return stats, err
				}
			} else {
				if err := emit(t, y, false); err != nil {
					return stats, err
				}
			}
		}
	}

	return stats, nil
}

// attempt performs one trial step of size h from (t, y), leaving the
// candidate state in s.ynew and returning the error ratio against tolerance.
func (s *DP45) attempt(f Derivative, t, h float64, y []complex128, stats *Stats) (float64, error) {
	n := len(y)

	eval := func(tt float64, yy, k []complex128) error {
		stats.Evals++
		return f(tt, yy, k)
	}

	if err := eval(t, y, s.k1); err != nil {
		return 0, err
	}

	for i := 0; i < n; i++ {
		s.scratch[i] = y[i] + complex(h*b21, 0)*s.k1[i]
	}
	if err := eval(t+a2*h, s.scratch, s.k2); err != nil {
		return 0, err
	}

	for i := 0; i < n; i++ {
		s.scratch[i] = y[i] + complex(h, 0)*(complex(b31, 0)*s.k1[i]+complex(b32, 0)*s.k2[i])
	}
	if err := eval(t+a3*h, s.scratch, s.k3); err != nil {
		return 0, err
	}

	for i := 0; i < n; i++ {
		s.scratch[i] = y[i] + complex(h, 0)*(complex(b41, 0)*s.k1[i]+complex(b42, 0)*s.k2[i]+complex(b43, 0)*s.k3[i])
	}
	if err := eval(t+a4*h, s.scratch, s.k4); err != nil {
		return 0, err
	}

	for i := 0; i < n; i++ {
		s.scratch[i] = y[i] + complex(h, 0)*(complex(b51, 0)*s.k1[i]+complex(b52, 0)*s.k2[i]+complex(b53, 0)*s.k3[i]+complex(b54, 0)*s.k4[i])
	}
	if err := eval(t+a5*h, s.scratch, s.k5); err != nil {
		return 0, err
	}

	for i := 0; i < n; i++ {
		s.scratch[i] = y[i] + complex(h, 0)*(complex(b61, 0)*s.k1[i]+complex(b62, 0)*s.k2[i]+complex(b63, 0)*s.k3[i]+complex(b64, 0)*s.k4[i]+complex(b65, 0)*s.k5[i])
	}
	if err := eval(t+h, s.scratch, s.k6); err != nil {
		return 0, err
	}

	for i := 0; i < n; i++ {
		s.ynew[i] = y[i] + complex(h, 0)*(complex(c1, 0)*s.k1[i]+complex(c3, 0)*s.k3[i]+complex(c4, 0)*s.k4[i]+complex(c5, 0)*s.k5[i]+complex(c6, 0)*s.k6[i])
	}

	if err := eval(t+h, s.ynew, s.k7); err != nil {
		return 0, err
	}

	errMax := 0.0
	for i := 0; i < n; i++ {
		est := complex(h, 0) * (complex(dc1, 0)*s.k1[i] + complex(dc3, 0)*s.k3[i] + complex(dc4, 0)*s.k4[i] + complex(dc5, 0)*s.k5[i] + complex(dc6, 0)*s.k6[i] + complex(dc7, 0)*s.k7[i])
		scale := s.Abstol + s.Reltol*math.Max(cmplx.Abs(y[i]), cmplx.Abs(s.ynew[i]))
		errMax = math.Max(errMax, cmplx.Abs(est)/scale)
	}
	return errMax, nil
}
