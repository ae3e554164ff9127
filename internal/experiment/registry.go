package experiment

import (
	"fmt"

	"github.com/rvats/qprop/internal/heom"
	"github.com/rvats/qprop/internal/metrics"
	"github.com/rvats/qprop/internal/models"
)

// Registry maps model names to Liouvillian builders so the CLI can construct
// runs from configuration alone.
type Registry struct {
	static map[string]func(map[string]float64) *heom.Model
	driven map[string]func(map[string]float64) models.TimeDependent
}

func NewRegistry() *Registry {
	r := &Registry{
		static: make(map[string]func(map[string]float64) *heom.Model),
		driven: make(map[string]func(map[string]float64) models.TimeDependent),
	}

	r.static["dephasing"] = func(p map[string]float64) *heom.Model {
		return models.PureDephasing(param(p, "gamma", 1.0))
	}
	r.static["damped"] = func(p map[string]float64) *heom.Model {
		return models.DampedQubit(param(p, "delta", 1.0), param(p, "gamma", 0.1))
	}
	r.static["dephasing_hierarchy"] = func(p map[string]float64) *heom.Model {
		return models.DephasingHierarchy(param(p, "gamma", 1.0), int(param(p, "tiers", 3)))
	}

	r.driven["driven"] = func(p map[string]float64) models.TimeDependent {
		return models.DrivenQubit(
			param(p, "gamma", 0.1),
			param(p, "delta", 1.0),
			param(p, "amp", 0.5),
			param(p, "freq", 1.0),
		)
	}

	return r
}

func param(p map[string]float64, name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

func (r *Registry) GetModel(name string, params map[string]float64) (*heom.Model, error) {
	fn, ok := r.static[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s", name)
	}
	return fn(params), nil
}

func (r *Registry) GetDriven(name string, params map[string]float64) (models.TimeDependent, error) {
	fn, ok := r.driven[name]
	if !ok {
		return models.TimeDependent{}, fmt.Errorf("unknown driven model: %s", name)
	}
	return fn(params), nil
}

// IsDriven reports whether name names a time-dependent model.
func (r *Registry) IsDriven(name string) bool {
	_, ok := r.driven[name]
	return ok
}

func (r *Registry) ListModels() []string {
	names := make([]string, 0, len(r.static)+len(r.driven))
	for name := range r.static {
		names = append(names, name)
	}
	for name := range r.driven {
		names = append(names, name)
	}
	return names
}

// DefaultMetrics are attached to every CLI run.
func (r *Registry) DefaultMetrics() []heom.Metric {
	return []heom.Metric{
		metrics.NewTraceDrift(),
		metrics.NewPurity(),
	}
}
