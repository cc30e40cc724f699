// Package store defines the Store interface for persisting training runs.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// Backend names accepted by NewStore.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Run is one completed (or cancelled) training run.
type Run struct {
	ID        string               `json:"id"`
	Network   string               `json:"network"`
	Seed      uint64               `json:"seed"`
	Layers    []int                `json:"layers"`    // layer sizes, input first
	Epochs    int                  `json:"epochs"`    // completed epochs
	BatchSize int                  `json:"batch_size"`
	Cancelled bool                 `json:"cancelled,omitempty"`
	Config    string               `json:"config,omitempty"` // YAML snapshot of the run configuration
	History   map[string][]float64 `json:"history"`
	Weights   []*mat.Dense         `json:"-"`
	States    []LayerState         `json:"layer_states,omitempty"` // saved and loaded with the weights
	CreatedAt time.Time            `json:"created_at"`
}

// LayerState is the adaptive state of one layer at the end of a run. The
// running activity average sets the scale of every mesh the layer sends on,
// so weights alone do not reproduce a trained network.
type LayerState struct {
	Layer  string  `json:"layer"`
	ActAvg float64 `json:"act_avg"`
	Gain   float64 `json:"gain"`
}

// Final returns the last value of a metric's history, or 0.
func (r Run) Final(metric string) float64 {
	h := r.History[metric]
	if len(h) == 0 {
		return 0
	}
	return h[len(h)-1]
}

// Store persists training runs.
type Store interface {
	// SaveRun stores a run. An empty ID is replaced by a new UUID and a zero
	// CreatedAt by the current time. It returns the run's ID.
	SaveRun(ctx context.Context, run *Run) (string, error)

	// GetRun returns the run with its weights and layer states, or ErrNotFound.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns every run without weights or layer states, newest first.
	ListRuns(ctx context.Context) ([]Run, error)

	// DeleteRun removes a run, or returns ErrNotFound.
	DeleteRun(ctx context.Context, id string) error

	Close() error
}

// NewStore opens a store for the given backend. path is the SQLite database
// file and is ignored by the memory backend.
func NewStore(backend, path string) (Store, error) {
	switch backend {
	case BackendSQLite, "":
		return NewSQLiteStore(path)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
