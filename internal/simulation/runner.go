package simulation

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nvandessel/settle/internal/mesh"
	"github.com/nvandessel/settle/internal/network"
	"github.com/nvandessel/settle/internal/store"
	"gonum.org/v1/gonum/mat"
)

// Runner orchestrates training experiments against a real run store.
type Runner struct {
	t     *testing.T
	store *store.SQLiteStore
}

// NewRunner creates a simulation runner with an isolated SQLite store.
func NewRunner(t *testing.T) *Runner {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("NewRunner: failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return &Runner{t: t, store: s}
}

// Run trains the scenario's network and returns the collected results.
// The run is persisted to the runner's store.
func (r *Runner) Run(scenario Scenario) SimulationResult {
	return r.RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func (r *Runner) RunContext(ctx context.Context, scenario Scenario) SimulationResult {
	r.t.Helper()

	var opts []network.Option
	if scenario.Monitor != nil {
		opts = append(opts, network.WithMonitor(scenario.Monitor))
	}
	n, err := network.New(scenario.Network, opts...)
	if err != nil {
		r.t.Fatalf("Run(%s): network.New: %v", scenario.Name, err)
	}

	forward := ForwardMeshes(n)
	for _, name := range scenario.Freeze {
		m, ok := forward[name]
		if !ok {
			r.t.Fatalf("Run(%s): freeze: no forward mesh %q", scenario.Name, name)
		}
		m.SetTrainable(false)
	}
	if scenario.Setup != nil {
		scenario.Setup(n)
	}

	result := SimulationResult{
		Name:    scenario.Name,
		Network: n,
		Initial: snapshot(forward),
		Store:   r.store,
	}

	train := scenario.Train
	train.AfterEpoch = func(epoch int, scores map[string]float64) {
		result.Epochs = append(result.Epochs, EpochResult{
			Index:   epoch,
			Scores:  scores,
			Weights: snapshot(forward),
		})
	}
	result.History, result.Err = n.Learn(ctx, scenario.Inputs, scenario.Targets, train)

	sizes := make([]int, 0, len(n.Layers()))
	for _, l := range n.Layers() {
		sizes = append(sizes, l.Len())
	}
	// Persist even when training was cancelled.
	id, err := r.store.SaveRun(context.WithoutCancel(ctx), &store.Run{
		Network:   n.Name(),
		Seed:      n.Config().Seed,
		Layers:    sizes,
		Epochs:    result.History.Epochs(),
		BatchSize: max(train.BatchSize, 1),
		Cancelled: result.Err != nil,
		History:   result.History,
		Weights:   n.Weights(),
		States:    storeStates(n.LayerStates()),
	})
	if err != nil {
		r.t.Fatalf("Run(%s): SaveRun: %v", scenario.Name, err)
	}
	result.RunID = id
	return result
}

func storeStates(states []network.LayerState) []store.LayerState {
	out := make([]store.LayerState, len(states))
	for i, st := range states {
		out[i] = store.LayerState(st)
	}
	return out
}

// ForwardMeshes indexes a network's forward meshes by name.
func ForwardMeshes(n *network.Network) map[string]*mesh.Dense {
	out := make(map[string]*mesh.Dense)
	for _, l := range n.Layers() {
		for _, m := range l.ExcitatoryMeshes() {
			if d, ok := m.(*mesh.Dense); ok {
				out[d.Name()] = d
			}
		}
	}
	return out
}

func snapshot(meshes map[string]*mesh.Dense) map[string]*mat.Dense {
	out := make(map[string]*mat.Dense, len(meshes))
	for name, m := range meshes {
		out[name] = m.Get()
	}
	return out
}
