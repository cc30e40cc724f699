package simulation

import (
	"github.com/nvandessel/settle/internal/monitor"
	"github.com/nvandessel/settle/internal/network"
	"github.com/nvandessel/settle/internal/store"
	"gonum.org/v1/gonum/mat"
)

// Scenario defines a complete training experiment.
type Scenario struct {
	Name    string
	Network network.Config
	Inputs  [][]float64
	Targets [][]float64
	Train   network.TrainOptions

	// Freeze names forward meshes made non-trainable before training.
	Freeze []string

	// Monitor, when non-nil, observes every settle time-step.
	Monitor monitor.Monitor

	// Setup, when non-nil, is called after construction and before training.
	Setup func(n *network.Network)
}

// EpochResult captures the state after one epoch.
type EpochResult struct {
	Index   int
	Scores  map[string]float64
	Weights map[string]*mat.Dense // forward mesh name -> effective weights
}

// SimulationResult captures every epoch and the trained network.
type SimulationResult struct {
	Name    string
	RunID   string
	Network *network.Network
	History network.History
	Initial map[string]*mat.Dense
	Epochs  []EpochResult
	Store   store.Store
	Err     error // Learn's error, e.g. on cancellation
}

// Stack returns a default network configuration with one layer per size.
func Stack(sizes ...int) network.Config {
	cfg := network.DefaultConfig()
	for _, s := range sizes {
		cfg.Layers = append(cfg.Layers, network.LayerSpec{Size: s})
	}
	return cfg
}
