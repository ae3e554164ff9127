package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultDt       = 0.1
	DefaultSteps    = 100
	DefaultDuration = 10.0
	DefaultPoints   = 101
	DefaultReltol   = 1e-6
	DefaultAbstol   = 1e-8
	DefaultMaxIters = 100000
	DefaultGamma    = 1.0
)

type Config struct {
	Model  string `yaml:"model"`
	Solver string `yaml:"solver"` // "propagator" or "ode"

	// propagator mode
	Dt         float64 `yaml:"dt"`
	Steps      int     `yaml:"steps"`
	Threshold  float64 `yaml:"threshold"`
	NonzeroTol float64 `yaml:"nonzero_tol"`

	// ODE mode
	Duration      float64 `yaml:"duration"`
	Points        int     `yaml:"points"`
	Reltol        float64 `yaml:"reltol"`
	Abstol        float64 `yaml:"abstol"`
	MaxIters      int     `yaml:"maxiters"`
	SaveEverystep bool    `yaml:"save_everystep"`

	Verbose    bool   `yaml:"verbose"`
	Checkpoint string `yaml:"checkpoint"`

	ModelParams map[string]float64 `yaml:"model_params"`
	Extra       map[string]any     `yaml:"extra"`
}

func DefaultConfig() *Config {
	return &Config{
		Model:    "dephasing",
		Solver:   "propagator",
		Dt:       DefaultDt,
		Steps:    DefaultSteps,
		Duration: DefaultDuration,
		Points:   DefaultPoints,
		Reltol:   DefaultReltol,
		Abstol:   DefaultAbstol,
		MaxIters: DefaultMaxIters,
		ModelParams: map[string]float64{
			"gamma": DefaultGamma,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// TimeGrid expands Duration/Points into the explicit grid for ODE mode.
func (c *Config) TimeGrid() []float64 {
	n := c.Points
	if n < 2 {
		n = 2
	}
	grid := make([]float64, n)
	step := c.Duration / float64(n-1)
	for i := range grid {
		grid[i] = float64(i) * step
	}
	grid[n-1] = c.Duration
	return grid
}
