// Package heom provides core primitives for propagating hierarchical
// equations of motion (HEOM) states.
//
// The package defines the fundamental types shared by the propagation engine:
//
//   - [State]: the full hierarchy vector (physical state plus auxiliary tiers)
//   - [Model]: a prebuilt sparse generator with its hierarchy metadata
//   - [Trajectory]: an ordered sequence of timestamped snapshots
//   - [Recorder]: append-only snapshot persistence
//   - [Progress], [Metric]: observational hooks on the stepping loop
//
// # Example
//
//	model := models.PureDephasing(1.0)
//	ev := evolve.New(model, evolve.DefaultOptions())
//	res, _ := ev.EvolveFixed(evolve.Matrix(rho0), 0.1, 100)
//
// # Thread Safety
//
// Evolution calls are single-threaded by construction: each step depends on
// the previous one. Concurrent calls over the same Model are safe as long as
// each holds its own time-dependent buffer; the engine arranges that.
package heom
