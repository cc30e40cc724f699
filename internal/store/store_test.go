package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { sq.Close() })
	return map[string]Store{
		BackendSQLite: sq,
		BackendMemory: NewMemoryStore(),
	}
}

func sampleRun() *Run {
	return &Run{
		Network:   "xor",
		Seed:      7,
		Layers:    []int{2, 3, 1},
		Epochs:    3,
		BatchSize: 1,
		Config:    "name: xor\n",
		History: map[string][]float64{
			"rmse": {0.3, 0.2, 0.1},
			"mae":  {0.25, 0.15, 0.05},
		},
		Weights: []*mat.Dense{
			mat.NewDense(3, 3, []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9}),
			mat.NewDense(3, 3, []float64{0.5, 0.5, 0.5, 0, 0, 0, 0, 0, 0}),
		},
		States: []LayerState{
			{Layer: "in", ActAvg: 0.5, Gain: 1},
			{Layer: "hidden", ActAvg: 0.364, Gain: 1},
			{Layer: "out", ActAvg: 0.265, Gain: 1.25},
		},
	}
}

func TestStore_SaveGetRun(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			run := sampleRun()

			id, err := s.SaveRun(ctx, run)
			if err != nil {
				t.Fatalf("SaveRun() error = %v", err)
			}
			if id == "" || id != run.ID {
				t.Fatalf("SaveRun() id = %q, run.ID = %q", id, run.ID)
			}
			if run.CreatedAt.IsZero() {
				t.Error("SaveRun() did not set CreatedAt")
			}

			got, err := s.GetRun(ctx, id)
			if err != nil {
				t.Fatalf("GetRun() error = %v", err)
			}
			if got.Network != "xor" || got.Seed != 7 || got.Epochs != 3 || got.BatchSize != 1 {
				t.Errorf("GetRun() = %+v", got)
			}
			if len(got.Layers) != 3 || got.Layers[1] != 3 {
				t.Errorf("GetRun() layers = %v, want [2 3 1]", got.Layers)
			}
			if got.Config != run.Config {
				t.Errorf("GetRun() config = %q, want %q", got.Config, run.Config)
			}
			if got.Final("rmse") != 0.1 || got.Final("mae") != 0.05 {
				t.Errorf("GetRun() history = %v", got.History)
			}
			if len(got.Weights) != 2 {
				t.Fatalf("GetRun() weights = %d, want 2", len(got.Weights))
			}
			for i, w := range got.Weights {
				if !mat.Equal(w, run.Weights[i]) {
					t.Errorf("weights %d = %v, want %v", i, mat.Formatted(w), mat.Formatted(run.Weights[i]))
				}
			}
			if len(got.States) != len(run.States) {
				t.Fatalf("GetRun() layer states = %d, want %d", len(got.States), len(run.States))
			}
			for i, st := range got.States {
				if st != run.States[i] {
					t.Errorf("layer state %d = %+v, want %+v", i, st, run.States[i])
				}
			}
			if !got.CreatedAt.Equal(run.CreatedAt) {
				t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, run.CreatedAt)
			}
		})
	}
}

func TestStore_SaveRunReplacesExisting(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			run := sampleRun()
			run.ID = "fixed"
			if _, err := s.SaveRun(ctx, run); err != nil {
				t.Fatalf("SaveRun() error = %v", err)
			}

			run.Epochs = 5
			run.History = map[string][]float64{"rmse": {0.9}}
			run.Weights = run.Weights[:1]
			run.States = run.States[:1]
			if _, err := s.SaveRun(ctx, run); err != nil {
				t.Fatalf("SaveRun() second error = %v", err)
			}

			got, err := s.GetRun(ctx, "fixed")
			if err != nil {
				t.Fatalf("GetRun() error = %v", err)
			}
			if got.Epochs != 5 || len(got.History) != 1 || len(got.Weights) != 1 || len(got.States) != 1 {
				t.Errorf("GetRun() after replace = epochs %d, %d metrics, %d weights, %d layer states",
					got.Epochs, len(got.History), len(got.Weights), len(got.States))
			}
		})
	}
}

func TestStore_ListRunsNewestFirst(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
			for i, id := range []string{"old", "new", "mid"} {
				run := sampleRun()
				run.ID = id
				run.CreatedAt = base.Add(time.Duration([]int{0, 2, 1}[i]) * time.Hour)
				if _, err := s.SaveRun(ctx, run); err != nil {
					t.Fatalf("SaveRun(%s) error = %v", id, err)
				}
			}

			runs, err := s.ListRuns(ctx)
			if err != nil {
				t.Fatalf("ListRuns() error = %v", err)
			}
			want := []string{"new", "mid", "old"}
			if len(runs) != len(want) {
				t.Fatalf("ListRuns() returned %d runs, want %d", len(runs), len(want))
			}
			for i, r := range runs {
				if r.ID != want[i] {
					t.Errorf("runs[%d] = %s, want %s", i, r.ID, want[i])
				}
				if r.Final("rmse") != 0.1 {
					t.Errorf("runs[%d] history = %v", i, r.History)
				}
				if r.Weights != nil || r.States != nil {
					t.Errorf("runs[%d] carries weights or layer states", i)
				}
			}
		})
	}
}

func TestStore_NotFound(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := s.GetRun(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("GetRun(missing) error = %v, want ErrNotFound", err)
			}
			if err := s.DeleteRun(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("DeleteRun(missing) error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStore_DeleteRun(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id, err := s.SaveRun(ctx, sampleRun())
			if err != nil {
				t.Fatalf("SaveRun() error = %v", err)
			}
			if err := s.DeleteRun(ctx, id); err != nil {
				t.Fatalf("DeleteRun() error = %v", err)
			}
			if _, err := s.GetRun(ctx, id); !errors.Is(err, ErrNotFound) {
				t.Errorf("GetRun() after delete error = %v, want ErrNotFound", err)
			}
			runs, err := s.ListRuns(ctx)
			if err != nil {
				t.Fatalf("ListRuns() error = %v", err)
			}
			if len(runs) != 0 {
				t.Errorf("ListRuns() after delete = %d runs, want 0", len(runs))
			}
		})
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	run := sampleRun()
	id, _ := s.SaveRun(ctx, run)

	run.History["rmse"][0] = 42
	run.Weights[0].Set(0, 0, 42)

	got, err := s.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.History["rmse"][0] == 42 || got.Weights[0].At(0, 0) == 42 {
		t.Error("MemoryStore shares state with the caller's run")
	}
}

func TestNewStore(t *testing.T) {
	tests := []struct {
		backend string
		wantErr bool
	}{
		{BackendSQLite, false},
		{"", false},
		{BackendMemory, false},
		{"postgres", true},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			s, err := NewStore(tt.backend, filepath.Join(t.TempDir(), "nested", "settle.db"))
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewStore(%q) error = %v, wantErr %v", tt.backend, err, tt.wantErr)
			}
			if s != nil {
				s.Close()
			}
		})
	}
}

func TestDefaultPath(t *testing.T) {
	got := DefaultPath("/tmp/project")
	want := filepath.Join("/tmp/project", ".settle", "settle.db")
	if got != want {
		t.Errorf("DefaultPath() = %q, want %q", got, want)
	}
}
