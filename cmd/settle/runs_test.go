package main

import (
	"context"
	"math"
	"testing"

	"github.com/nvandessel/settle/internal/config"
	"github.com/nvandessel/settle/internal/network"
	"github.com/nvandessel/settle/internal/store"
)

func TestRestoreRun_InfersLikeTrainedNetwork(t *testing.T) {
	ctx := context.Background()
	inputs := [][]float64{{0, 0}, {0, 1}, {1, 0}, {1, 1}}
	targets := [][]float64{{0.55}, {0.6}, {0.6}, {0.65}}

	cfg := config.Default()
	cfg.Network.Layers = []config.LayerConfig{{Size: 2}, {Size: 8}, {Size: 1}}
	cfg.Training.MinusSteps = 5
	cfg.Training.PlusSteps = 5
	cfg.Training.Epochs = 200
	netCfg, err := cfg.NetworkConfig()
	if err != nil {
		t.Fatalf("NetworkConfig() error = %v", err)
	}
	n, err := network.New(netCfg)
	if err != nil {
		t.Fatalf("network.New() error = %v", err)
	}
	hist, err := n.Learn(ctx, inputs, targets, cfg.TrainOptions())
	if err != nil {
		t.Fatalf("Learn() error = %v", err)
	}
	want, err := n.Infer(ctx, inputs, 0, true)
	if err != nil {
		t.Fatalf("Infer() error = %v", err)
	}

	raw, err := cfg.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	s := store.NewMemoryStore()
	id, err := s.SaveRun(ctx, &store.Run{
		Network: n.Name(),
		Layers:  cfg.LayerSizes(),
		Epochs:  hist.Epochs(),
		Config:  string(raw),
		History: hist,
		Weights: n.Weights(),
		States:  storeStates(n.LayerStates()),
	})
	if err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}

	rr, err := restoreRun(ctx, s, id)
	if err != nil {
		t.Fatalf("restoreRun() error = %v", err)
	}
	for i, st := range rr.Network.LayerStates() {
		if st != n.LayerStates()[i] {
			t.Errorf("restored layer state %d = %+v, want %+v", i, st, n.LayerStates()[i])
		}
	}
	got, err := rr.Network.Infer(ctx, inputs, 0, true)
	if err != nil {
		t.Fatalf("Infer() error = %v", err)
	}
	for i := range want {
		if math.Abs(got[i][0]-want[i][0]) > 1e-9 {
			t.Errorf("restored output %d = %v, want %v", i, got[i][0], want[i][0])
		}
	}
}
