package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/nvandessel/settle/internal/config"
	"github.com/nvandessel/settle/internal/network"
	"github.com/nvandessel/settle/internal/store"
)

// restoredRun is a saved run rebuilt into a network carrying its weights and
// layer states.
type restoredRun struct {
	Run     *store.Run
	Config  *config.Config
	Network *network.Network
}

// restoreRun loads run id from s, or the most recent run when id is empty.
func restoreRun(ctx context.Context, s store.Store, id string) (*restoredRun, error) {
	if id == "" {
		runs, err := s.ListRuns(ctx)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		if len(runs) == 0 {
			return nil, fmt.Errorf("no saved runs (run 'settle train' first)")
		}
		id = runs[0].ID
	}
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	cfg, err := config.Parse([]byte(run.Config))
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", id, err)
	}
	netCfg, err := cfg.NetworkConfig()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", id, err)
	}
	n, err := network.New(netCfg)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", id, err)
	}
	if err := n.SetWeights(run.Weights); err != nil {
		return nil, fmt.Errorf("run %s: %w", id, err)
	}
	// Runs saved by schema v1 carry no states and keep the initial averages.
	if len(run.States) > 0 {
		if err := n.SetLayerStates(networkStates(run.States)); err != nil {
			return nil, fmt.Errorf("run %s: %w", id, err)
		}
	}
	return &restoredRun{Run: run, Config: cfg, Network: n}, nil
}

func storeStates(states []network.LayerState) []store.LayerState {
	out := make([]store.LayerState, len(states))
	for i, st := range states {
		out[i] = store.LayerState(st)
	}
	return out
}

func networkStates(states []store.LayerState) []network.LayerState {
	out := make([]network.LayerState, len(states))
	for i, st := range states {
		out[i] = network.LayerState(st)
	}
	return out
}

// parseVector parses a comma-separated list of numbers.
func parseVector(s string) ([]float64, error) {
	fields := strings.Split(s, ",")
	v := make([]float64, 0, len(fields))
	for _, f := range fields {
		x, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid vector %q: %w", s, err)
		}
		v = append(v, x)
	}
	return v, nil
}
