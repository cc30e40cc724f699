package store

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// MemoryStore implements Store in memory for tests and one-off runs.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]Run
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]Run)}
}

// SaveRun stores a deep copy of run.
func (s *MemoryStore) SaveRun(ctx context.Context, run *Run) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prepare(run)
	s.runs[run.ID] = copyRun(*run, true)
	return run.ID, nil
}

// GetRun returns a copy of the run with its weights.
func (s *MemoryStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	out := copyRun(run, true)
	return &out, nil
}

// ListRuns returns copies of every run without weights, newest first.
func (s *MemoryStore) ListRuns(ctx context.Context) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]Run, 0, len(s.runs))
	for _, id := range slices.Sorted(maps.Keys(s.runs)) {
		runs = append(runs, copyRun(s.runs[id], false))
	}
	slices.SortStableFunc(runs, func(a, b Run) int {
		return cmp.Compare(b.CreatedAt.UnixNano(), a.CreatedAt.UnixNano())
	})
	return runs, nil
}

// DeleteRun removes a run.
func (s *MemoryStore) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.runs, id)
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func copyRun(r Run, withWeights bool) Run {
	out := r
	out.Layers = slices.Clone(r.Layers)
	out.History = make(map[string][]float64, len(r.History))
	for k, v := range r.History {
		out.History[k] = slices.Clone(v)
	}
	out.Weights = nil
	out.States = nil
	if withWeights {
		for _, w := range r.Weights {
			out.Weights = append(out.Weights, mat.DenseCopyOf(w))
		}
		out.States = slices.Clone(r.States)
	}
	return out
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
