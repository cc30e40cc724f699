package simulation

import (
	"context"
	"math"
	"testing"

	"github.com/nvandessel/settle/internal/store"
	"gonum.org/v1/gonum/mat"
)

// AssertMetricImproves asserts that the final epoch's metric is below
// ratio times the baseline epoch's.
func AssertMetricImproves(t *testing.T, result SimulationResult, metric string, ratio float64) {
	t.Helper()
	vals := result.History[metric]
	if len(vals) < 2 {
		t.Fatalf("AssertMetricImproves: metric %s has %d epochs, need at least 2", metric, len(vals))
	}
	first, last := vals[0], vals[len(vals)-1]
	if !(last < ratio*first) {
		t.Errorf("AssertMetricImproves: metric %s went %.6f -> %.6f, want below %.6f", metric, first, last, ratio*first)
	}
}

// AssertMetricNonIncreasing asserts that no epoch's metric exceeds the
// previous epoch's by more than tolerance.
func AssertMetricNonIncreasing(t *testing.T, result SimulationResult, metric string, tolerance float64) {
	t.Helper()
	vals := result.History[metric]
	for i := 1; i < len(vals); i++ {
		if vals[i] > vals[i-1]+tolerance {
			t.Errorf("AssertMetricNonIncreasing: metric %s rose at epoch %d: %.6f -> %.6f", metric, i, vals[i-1], vals[i])
		}
	}
}

// AssertMetricsFinite asserts that every recorded score is a finite number.
func AssertMetricsFinite(t *testing.T, result SimulationResult) {
	t.Helper()
	for name, vals := range result.History {
		for i, v := range vals {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Errorf("AssertMetricsFinite: metric %s epoch %d is %v", name, i, v)
			}
		}
	}
}

// AssertWeightsUnchanged asserts that a mesh's weights are bit-identical to
// their initial values after every epoch.
func AssertWeightsUnchanged(t *testing.T, result SimulationResult, meshName string) {
	t.Helper()
	initial := initialWeights(t, result, meshName)
	for _, er := range result.Epochs {
		if !mat.Equal(initial, er.Weights[meshName]) {
			t.Errorf("AssertWeightsUnchanged: epoch %d: mesh %s weights changed", er.Index, meshName)
			return
		}
	}
}

// AssertWeightsChanged asserts that a mesh's final weights differ from their
// initial values.
func AssertWeightsChanged(t *testing.T, result SimulationResult, meshName string) {
	t.Helper()
	initial := initialWeights(t, result, meshName)
	if len(result.Epochs) == 0 {
		t.Fatalf("AssertWeightsChanged: no epochs recorded")
	}
	final := result.Epochs[len(result.Epochs)-1].Weights[meshName]
	if mat.Equal(initial, final) {
		t.Errorf("AssertWeightsChanged: mesh %s weights never changed", meshName)
	}
}

// AssertWeightsBounded asserts that every snapshot of every forward mesh
// stays within [min, max].
func AssertWeightsBounded(t *testing.T, result SimulationResult, min, max float64) {
	t.Helper()
	for _, er := range result.Epochs {
		for name, w := range er.Weights {
			if lo, hi := mat.Min(w), mat.Max(w); lo < min || hi > max {
				t.Errorf("AssertWeightsBounded: epoch %d: mesh %s spans [%.6f, %.6f], want within [%.4f, %.4f]", er.Index, name, lo, hi, min, max)
			}
		}
	}
}

// AssertRunStored asserts that the run was persisted with its history, final
// weights and layer states.
func AssertRunStored(t *testing.T, result SimulationResult) {
	t.Helper()
	run, err := result.Store.GetRun(context.Background(), result.RunID)
	if err != nil {
		t.Fatalf("AssertRunStored: GetRun(%s): %v", result.RunID, err)
	}
	if run.Epochs != result.History.Epochs() {
		t.Errorf("AssertRunStored: epochs = %d, want %d", run.Epochs, result.History.Epochs())
	}
	for name, vals := range result.History {
		got := run.History[name]
		if len(got) != len(vals) {
			t.Errorf("AssertRunStored: metric %s has %d values, want %d", name, len(got), len(vals))
			continue
		}
		for i := range vals {
			if got[i] != vals[i] {
				t.Errorf("AssertRunStored: metric %s epoch %d = %v, want %v", name, i, got[i], vals[i])
			}
		}
	}
	want := result.Network.Weights()
	if len(run.Weights) != len(want) {
		t.Fatalf("AssertRunStored: %d weight matrices, want %d", len(run.Weights), len(want))
	}
	for i := range want {
		if !mat.Equal(run.Weights[i], want[i]) {
			t.Errorf("AssertRunStored: weight matrix %d differs from the trained network", i)
		}
	}
	states := result.Network.LayerStates()
	if len(run.States) != len(states) {
		t.Fatalf("AssertRunStored: %d layer states, want %d", len(run.States), len(states))
	}
	for i, st := range states {
		if run.States[i] != store.LayerState(st) {
			t.Errorf("AssertRunStored: layer state %d = %+v, want %+v", i, run.States[i], st)
		}
	}
}

// MaxDelta returns the largest absolute change of a mesh's weights between
// its initial values and the given epoch.
func MaxDelta(result SimulationResult, meshName string, epoch int) float64 {
	var d mat.Dense
	d.Sub(result.Epochs[epoch].Weights[meshName], result.Initial[meshName])
	return math.Max(mat.Max(&d), -mat.Min(&d))
}

func initialWeights(t *testing.T, result SimulationResult, meshName string) *mat.Dense {
	t.Helper()
	w, ok := result.Initial[meshName]
	if !ok {
		t.Fatalf("no forward mesh %q", meshName)
	}
	return w
}
