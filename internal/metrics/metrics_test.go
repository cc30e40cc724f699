package metrics

import (
	"errors"
	"math"
	"testing"
)

func TestMetrics(t *testing.T) {
	pred := [][]float64{{1, 0}, {0.5, 0.5}}
	target := [][]float64{{0, 0}, {0.5, 1.5}}
	// squared errors: 1, 0, 0, 1 -> SSE 2, MSE 0.5

	tests := []struct {
		name string
		fn   Func
		want float64
	}{
		{"sse", SSE, 2},
		{"mse", MSE, 0.5},
		{"rmse", RMSE, math.Sqrt(0.5)},
		{"mae", MAE, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(pred, target); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestMetrics_PerfectPrediction(t *testing.T) {
	data := [][]float64{{0.1, 0.9}, {0.3, 0.7}}
	for _, name := range Names() {
		fn, _ := Get(name)
		if got := fn(data, data); got != 0 {
			t.Errorf("%s(x, x) = %v, want 0", name, got)
		}
	}
}

func TestMetrics_ShortPredictionPadsWithZero(t *testing.T) {
	pred := [][]float64{{1}}
	target := [][]float64{{1, 1}}
	if got := SSE(pred, target); got != 1 {
		t.Errorf("SSE with short prediction = %v, want 1", got)
	}
}

func TestMetrics_Empty(t *testing.T) {
	if got := RMSE(nil, nil); got != 0 {
		t.Errorf("RMSE(nil, nil) = %v, want 0", got)
	}
}

func TestResolve(t *testing.T) {
	got, err := Resolve(nil)
	if err != nil {
		t.Fatalf("Resolve(nil) error = %v", err)
	}
	if _, ok := got[NameRMSE]; !ok || len(got) != 1 {
		t.Errorf("Resolve(nil) = %v, want only rmse", got)
	}

	got, err = Resolve([]string{"RMSE", "sse"})
	if err != nil {
		t.Fatalf("Resolve error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Resolve returned %d metrics, want 2", len(got))
	}

	if _, err := Resolve([]string{"accuracy"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve(accuracy) error = %v, want %v", err, ErrNotFound)
	}
}
