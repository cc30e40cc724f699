// Package simulation provides an end-to-end test harness for validating the
// training dynamics of settle networks.
//
// The simulation exercises the real network, layers, meshes and SQLite run
// store with no mocks. A Scenario describes a network, its samples and its
// training options; the Runner trains it while capturing per-epoch scores
// and forward-mesh weight snapshots for property-based assertions.
//
// Each test gets an isolated SQLite database via t.TempDir().
//
// Usage:
//
//	func TestConvergence(t *testing.T) {
//	    r := simulation.NewRunner(t)
//	    result := r.Run(simulation.Scenario{
//	        Name:    "convergence",
//	        Network: simulation.Stack(2, 3, 1),
//	        Inputs:  inputs,
//	        Targets: targets,
//	        Train:   network.TrainOptions{Epochs: 50, Reset: true},
//	    })
//	    simulation.AssertMetricImproves(t, result, "rmse", 0.9)
//	}
package simulation
