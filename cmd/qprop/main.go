package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/guptarohit/asciigraph"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rvats/qprop/internal/checkpoint"
	"github.com/rvats/qprop/internal/config"
	"github.com/rvats/qprop/internal/evolve"
	"github.com/rvats/qprop/internal/experiment"
	"github.com/rvats/qprop/internal/export"
	"github.com/rvats/qprop/internal/models"
	"github.com/rvats/qprop/internal/viz"
)

var (
	solver     string
	dt         float64
	steps      int
	duration   float64
	points     int
	threshold  float64
	nonzeroTol float64
	reltol     float64
	abstol     float64
	maxIters   int
	everystep  bool
	verbose    bool
	ckptPath   string
	configFile string
	csvPath    string
	jsonPath   string
	plot       bool
	gamma      float64
	delta      float64
	amp        float64
	freq       float64
	tiers      int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "qprop",
		Short: "hierarchical open-quantum-system propagation lab",
	}

	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "propagate a model forward in time",
		Args:  cobra.ExactArgs(1),
		RunE:  runEvolution,
	}
	runCmd.Flags().StringVar(&solver, "solver", "propagator", "solver kind (propagator|ode)")
	runCmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "fixed timestep (propagator mode)")
	runCmd.Flags().IntVar(&steps, "steps", config.DefaultSteps, "number of fixed steps")
	runCmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "total time (ode mode)")
	runCmd.Flags().IntVar(&points, "points", config.DefaultPoints, "grid points (ode mode)")
	runCmd.Flags().Float64Var(&threshold, "threshold", 0, "series truncation threshold")
	runCmd.Flags().Float64Var(&nonzeroTol, "nonzero-tol", 0, "propagator pruning tolerance")
	runCmd.Flags().Float64Var(&reltol, "reltol", config.DefaultReltol, "relative tolerance (ode mode)")
	runCmd.Flags().Float64Var(&abstol, "abstol", config.DefaultAbstol, "absolute tolerance (ode mode)")
	runCmd.Flags().IntVar(&maxIters, "maxiters", config.DefaultMaxIters, "adaptive step budget")
	runCmd.Flags().BoolVar(&everystep, "save-everystep", false, "keep internal accepted steps")
	runCmd.Flags().BoolVar(&verbose, "verbose", false, "progress bar and debug logging")
	runCmd.Flags().StringVar(&ckptPath, "checkpoint", "", "checkpoint destination (must not exist)")
	runCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	runCmd.Flags().StringVar(&csvPath, "csv", "", "export trajectory to CSV")
	runCmd.Flags().StringVar(&jsonPath, "json", "", "export trajectory to JSON")
	runCmd.Flags().BoolVar(&plot, "plot", false, "plot populations after the run")
	runCmd.Flags().Float64Var(&gamma, "gamma", config.DefaultGamma, "coupling/damping rate")
	runCmd.Flags().Float64Var(&delta, "delta", 1.0, "qubit splitting")
	runCmd.Flags().Float64Var(&amp, "amp", 0.5, "drive amplitude (driven)")
	runCmd.Flags().Float64Var(&freq, "freq", 1.0, "drive frequency (driven)")
	runCmd.Flags().IntVar(&tiers, "tiers", 3, "hierarchy tiers (dephasing_hierarchy)")

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list available models",
		RunE: func(cmd *cobra.Command, args []string) error {
			names := experiment.NewRegistry().ListModels()
			sort.Strings(names)
			for _, n := range names {
				fmt.Println(n)
			}
			return nil
		},
	}

	checkpointsCmd := &cobra.Command{
		Use:   "checkpoints [path]",
		Short: "list snapshots in a checkpoint store",
		Args:  cobra.ExactArgs(1),
		RunE:  listCheckpoints,
	}

	rootCmd.AddCommand(runCmd, modelsCmd, checkpointsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runEvolution(cmd *cobra.Command, args []string) error {
	model := args[0]

	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		// CLI flags override config values
		if !cmd.Flags().Changed("solver") {
			solver = cfg.Solver
		}
		if !cmd.Flags().Changed("dt") {
			dt = cfg.Dt
		}
		if !cmd.Flags().Changed("steps") {
			steps = cfg.Steps
		}
		if !cmd.Flags().Changed("time") {
			duration = cfg.Duration
		}
		if !cmd.Flags().Changed("points") {
			points = cfg.Points
		}
		if !cmd.Flags().Changed("threshold") {
			threshold = cfg.Threshold
		}
		if !cmd.Flags().Changed("nonzero-tol") {
			nonzeroTol = cfg.NonzeroTol
		}
		if !cmd.Flags().Changed("reltol") {
			reltol = cfg.Reltol
		}
		if !cmd.Flags().Changed("abstol") {
			abstol = cfg.Abstol
		}
		if !cmd.Flags().Changed("maxiters") {
			maxIters = cfg.MaxIters
		}
		if !cmd.Flags().Changed("save-everystep") {
			everystep = cfg.SaveEverystep
		}
		if !cmd.Flags().Changed("verbose") {
			verbose = cfg.Verbose
		}
		if !cmd.Flags().Changed("checkpoint") {
			ckptPath = cfg.Checkpoint
		}
		if v, ok := cfg.ModelParams["gamma"]; ok && !cmd.Flags().Changed("gamma") {
			gamma = v
		}
		if v, ok := cfg.ModelParams["delta"]; ok && !cmd.Flags().Changed("delta") {
			delta = v
		}
	}

	opts := evolve.DefaultOptions()
	opts.Reltol = reltol
	opts.Abstol = abstol
	opts.MaxIters = maxIters
	opts.SaveEverystep = everystep
	opts.Checkpoint = ckptPath
	opts.Extra = cfg.Extra
	if threshold > 0 {
		opts.Threshold = threshold
	}
	if nonzeroTol > 0 {
		opts.NonzeroTol = nonzeroTol
	}
	if verbose {
		opts.Verbose = true
		opts.Progress = viz.NewBarReporter()
		opts.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(zerolog.DebugLevel).With().Timestamp().Logger()
	}

	params := map[string]float64{
		"gamma": gamma,
		"delta": delta,
		"amp":   amp,
		"freq":  freq,
		"tiers": float64(tiers),
	}

	registry := experiment.NewRegistry()
	init := evolve.Matrix(models.PlusState())

	var res *evolve.Result
	var err error

	if registry.IsDriven(model) {
		drv, derr := registry.GetDriven(model, params)
		if derr != nil {
			return derr
		}
		ev := evolve.New(drv.Model, opts)
		for _, m := range registry.DefaultMetrics() {
			ev.AddMetric(m)
		}
		res, err = ev.EvolveGridTD(init, drv.H, drv.Params, timeGrid(duration, points))
	} else {
		m, merr := registry.GetModel(model, params)
		if merr != nil {
			return merr
		}
		ev := evolve.New(m, opts)
		for _, mt := range registry.DefaultMetrics() {
			ev.AddMetric(mt)
		}
		switch solver {
		case "propagator":
			res, err = ev.EvolveFixed(init, dt, steps)
		case "ode":
			res, err = ev.EvolveGrid(init, timeGrid(duration, points))
		default:
			return fmt.Errorf("unknown solver: %s (want propagator or ode)", solver)
		}
	}
	if err != nil {
		return err
	}

	printSummary(model, res)

	if csvPath != "" {
		if err := export.CSV(csvPath, res); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", csvPath)
	}
	if jsonPath != "" {
		if err := export.JSON(jsonPath, model, solver, res); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", jsonPath)
	}
	if plot {
		plotPopulations(res)
	}
	return nil
}

func timeGrid(duration float64, points int) []float64 {
	if points < 2 {
		points = 2
	}
	grid := make([]float64, points)
	for i := range grid {
		grid[i] = duration * float64(i) / float64(points-1)
	}
	return grid
}

func printSummary(model string, res *evolve.Result) {
	last := res.Times[len(res.Times)-1]
	fmt.Printf("%s %s: %d snapshots, t = 0 .. %g\n",
		viz.StatusDone.Render("done"), model, len(res.States), last)

	names := make([]string, 0, len(res.Metrics))
	for name := range res.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s %s\n",
			viz.MetricLabel.Render(name+":"),
			viz.MetricValue.Render(fmt.Sprintf("%.6g", res.Metrics[name])))
	}
	if res.Stats.Evals > 0 {
		fmt.Printf("  %s %d accepted, %d rejected, %d evaluations\n",
			viz.MetricLabel.Render("stepper:"),
			res.Stats.Steps, res.Stats.Rejected, res.Stats.Evals)
	}
}

func plotPopulations(res *evolve.Result) {
	if len(res.States) < 2 {
		return
	}
	dim := res.States[0].Dim
	series := make([][]float64, dim)
	for k := 0; k < dim; k++ {
		series[k] = make([]float64, len(res.States))
		for i, s := range res.States {
			series[k][i] = real(s.Data[k+k*dim])
		}
	}
	graph := asciigraph.PlotMany(series,
		asciigraph.Height(12),
		asciigraph.Caption("tier-0 populations"))
	fmt.Println(graph)
}

func listCheckpoints(cmd *cobra.Command, args []string) error {
	st, err := checkpoint.Open(args[0])
	if err != nil {
		return err
	}
	defer st.Close()

	keys, err := st.Keys()
	if err != nil {
		return err
	}
	fmt.Printf("%d snapshots\n", len(keys))
	for _, k := range keys {
		s, err := st.Get(k)
		if err != nil {
			return err
		}
		tr := s.Trace()
		fmt.Printf("  t=%s  dim=%d N=%d parity=%s trace=%.6g\n",
			pad(k, 10), s.Dim, s.N, s.Parity, real(tr))
	}
	return nil
}

func pad(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return s + strings.Repeat(" ", w-len(s))
}
