// Package metrics scores settled predictions against their targets.
package metrics

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Func scores a set of predictions against targets, one row per sample.
// Rows are compared over the target's width; missing prediction entries
// count as zero.
type Func func(pred, target [][]float64) float64

// Metric names.
const (
	NameRMSE = "rmse"
	NameMSE  = "mse"
	NameSSE  = "sse"
	NameMAE  = "mae"
)

// ErrNotFound is returned by Get for unknown metric names.
var ErrNotFound = errors.New("metric not found")

var builtin = map[string]Func{
	NameRMSE: RMSE,
	NameMSE:  MSE,
	NameSSE:  SSE,
	NameMAE:  MAE,
}

// Get resolves a metric by case-insensitive name.
func Get(name string) (Func, error) {
	fn, ok := builtin[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return fn, nil
}

// Names lists the built-in metrics.
func Names() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve maps names onto metric functions keyed by canonical name. An empty
// list selects RMSE.
func Resolve(names []string) (map[string]Func, error) {
	if len(names) == 0 {
		return map[string]Func{NameRMSE: RMSE}, nil
	}
	out := make(map[string]Func, len(names))
	for _, name := range names {
		fn, err := Get(name)
		if err != nil {
			return nil, err
		}
		out[strings.ToLower(strings.TrimSpace(name))] = fn
	}
	return out, nil
}

// SSE is the summed squared error.
func SSE(pred, target [][]float64) float64 {
	var sum float64
	for i, t := range target {
		d := floats.Distance(row(pred, i, len(t)), t, 2)
		sum += d * d
	}
	return sum
}

// MSE is the squared error averaged over every compared entry.
func MSE(pred, target [][]float64) float64 {
	n := count(target)
	if n == 0 {
		return 0
	}
	return SSE(pred, target) / float64(n)
}

// RMSE is the square root of MSE.
func RMSE(pred, target [][]float64) float64 {
	return math.Sqrt(MSE(pred, target))
}

// MAE is the absolute error averaged over every compared entry.
func MAE(pred, target [][]float64) float64 {
	n := count(target)
	if n == 0 {
		return 0
	}
	var sum float64
	for i, t := range target {
		sum += floats.Distance(row(pred, i, len(t)), t, 1)
	}
	return sum / float64(n)
}

func count(target [][]float64) int {
	n := 0
	for _, t := range target {
		n += len(t)
	}
	return n
}

// row returns pred[i] truncated or zero padded to width n.
func row(pred [][]float64, i, n int) []float64 {
	out := make([]float64, n)
	if i < len(pred) {
		copy(out, pred[i])
	}
	return out
}
