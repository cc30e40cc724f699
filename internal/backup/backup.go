// Package backup archives saved training runs, weights included, and
// restores them into a run store.
package backup

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/nvandessel/settle/internal/store"
	"gonum.org/v1/gonum/mat"
)

// Archive is the payload of a backup file.
type Archive struct {
	Version   int           `json:"version"`
	CreatedAt time.Time     `json:"created_at"`
	Runs      []ArchivedRun `json:"runs"`
}

// ArchivedRun is a run with its weight matrices in gonum's binary encoding.
type ArchivedRun struct {
	store.Run
	Weights [][]byte `json:"weights"`
}

// Dir returns the backup directory next to a run database.
func Dir(storePath string) string {
	return filepath.Join(filepath.Dir(storePath), "backups")
}

// GeneratePath creates a timestamped backup filename in dir.
func GeneratePath(dir string) string {
	return filepath.Join(dir, filePrefix+time.Now().UTC().Format("20060102-150405.000")+fileSuffix)
}

// Backup writes every run in s to path and returns the file's header.
func Backup(ctx context.Context, s store.Store, path string) (*Header, error) {
	runs, err := s.ListRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	archive := &Archive{
		Version:   FormatVersion,
		CreatedAt: time.Now().UTC(),
		Runs:      make([]ArchivedRun, 0, len(runs)),
	}
	for _, r := range runs {
		full, err := s.GetRun(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load run %s: %w", r.ID, err)
		}
		ar, err := encodeRun(full)
		if err != nil {
			return nil, err
		}
		archive.Runs = append(archive.Runs, ar)
	}

	return WriteArchive(path, archive)
}

// RestoreMode controls how restore handles runs that already exist.
type RestoreMode string

const (
	// RestoreMerge skips runs whose ID is already stored (default).
	RestoreMerge RestoreMode = "merge"
	// RestoreReplace overwrites stored runs with the archived copy.
	RestoreReplace RestoreMode = "replace"
)

// RestoreResult counts what a restore did.
type RestoreResult struct {
	Restored int `json:"restored"`
	Skipped  int `json:"skipped"`
}

// Restore imports every run of the backup file at path into s.
func Restore(ctx context.Context, s store.Store, path string, mode RestoreMode) (*RestoreResult, error) {
	archive, err := ReadArchive(path)
	if err != nil {
		return nil, err
	}

	result := &RestoreResult{}
	for _, ar := range archive.Runs {
		if mode != RestoreReplace {
			_, err := s.GetRun(ctx, ar.ID)
			if err == nil {
				result.Skipped++
				continue
			}
			if !errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("failed to check run %s: %w", ar.ID, err)
			}
		}

		run, err := decodeRun(ar)
		if err != nil {
			return nil, err
		}
		if _, err := s.SaveRun(ctx, run); err != nil {
			return nil, fmt.Errorf("failed to restore run %s: %w", ar.ID, err)
		}
		result.Restored++
	}
	return result, nil
}

func encodeRun(r *store.Run) (ArchivedRun, error) {
	ar := ArchivedRun{Run: *r, Weights: make([][]byte, len(r.Weights))}
	ar.Run.Weights = nil
	for i, w := range r.Weights {
		data, err := w.MarshalBinary()
		if err != nil {
			return ArchivedRun{}, fmt.Errorf("run %s: encode weights %d: %w", r.ID, i, err)
		}
		ar.Weights[i] = data
	}
	return ar, nil
}

func decodeRun(ar ArchivedRun) (*store.Run, error) {
	run := ar.Run
	run.Weights = make([]*mat.Dense, len(ar.Weights))
	for i, data := range ar.Weights {
		var w mat.Dense
		if err := w.UnmarshalBinary(data); err != nil {
			return nil, fmt.Errorf("run %s: decode weights %d: %w", ar.ID, i, err)
		}
		run.Weights[i] = &w
	}
	return &run, nil
}
