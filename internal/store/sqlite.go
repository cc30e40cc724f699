package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	_ "modernc.org/sqlite" // SQLite driver
)

// timeLayout has a fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store on a single SQLite database file.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (creating if needed) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := ensureDir(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.dbPath }

// SaveRun stores run, replacing any run with the same ID.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prepare(run)
	layers, err := json.Marshal(run.Layers)
	if err != nil {
		return "", fmt.Errorf("failed to encode layers: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"run_metrics", "run_weights", "run_layers"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE run_id = ?`, run.ID); err != nil {
			return "", fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, run.ID); err != nil {
		return "", fmt.Errorf("failed to clear run: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, network, seed, layers, epochs, batch_size, cancelled, config, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Network, int64(run.Seed), string(layers), run.Epochs, run.BatchSize,
		boolToInt(run.Cancelled), run.Config, run.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	for metric, vals := range run.History {
		data, err := json.Marshal(vals)
		if err != nil {
			return "", fmt.Errorf("failed to encode metric %s: %w", metric, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_metrics (run_id, metric, vals) VALUES (?, ?, ?)`,
			run.ID, metric, string(data)); err != nil {
			return "", fmt.Errorf("failed to insert metric %s: %w", metric, err)
		}
	}

	for i, w := range run.Weights {
		data, err := w.MarshalBinary()
		if err != nil {
			return "", fmt.Errorf("failed to encode weights %d: %w", i, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_weights (run_id, position, data) VALUES (?, ?, ?)`,
			run.ID, i, data); err != nil {
			return "", fmt.Errorf("failed to insert weights %d: %w", i, err)
		}
	}

	for i, st := range run.States {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_layers (run_id, position, layer, act_avg, gain) VALUES (?, ?, ?, ?, ?)`,
			run.ID, i, st.Layer, st.ActAvg, st.Gain); err != nil {
			return "", fmt.Errorf("failed to insert layer state %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return run.ID, nil
}

// GetRun returns the run with its metric history and weights.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, network, seed, layers, epochs, batch_size, cancelled, config, created_at
		FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	if run.History, err = s.loadMetrics(ctx, id); err != nil {
		return nil, err
	}
	if run.Weights, err = s.loadWeights(ctx, id); err != nil {
		return nil, err
	}
	if run.States, err = s.loadStates(ctx, id); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns every run with its history, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, network, seed, layers, epochs, batch_size, cancelled, config, created_at
		FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	// Release the single connection before loading metrics.
	rows.Close()

	for i := range runs {
		if runs[i].History, err = s.loadMetrics(ctx, runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// DeleteRun removes a run and, through cascading foreign keys, its metrics
// and weights.
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) loadMetrics(ctx context.Context, id string) (map[string][]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT metric, vals FROM run_metrics WHERE run_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	defer rows.Close()

	history := make(map[string][]float64)
	for rows.Next() {
		var metric, data string
		if err := rows.Scan(&metric, &data); err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		var vals []float64
		if err := json.Unmarshal([]byte(data), &vals); err != nil {
			return nil, fmt.Errorf("failed to decode metric %s: %w", metric, err)
		}
		history[metric] = vals
	}
	return history, rows.Err()
}

func (s *SQLiteStore) loadWeights(ctx context.Context, id string) ([]*mat.Dense, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM run_weights WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query weights: %w", err)
	}
	defer rows.Close()

	var weights []*mat.Dense
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan weights: %w", err)
		}
		w := new(mat.Dense)
		if err := w.UnmarshalBinary(data); err != nil {
			return nil, fmt.Errorf("failed to decode weights %d: %w", len(weights), err)
		}
		weights = append(weights, w)
	}
	return weights, rows.Err()
}

func (s *SQLiteStore) loadStates(ctx context.Context, id string) ([]LayerState, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT layer, act_avg, gain FROM run_layers WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query layer states: %w", err)
	}
	defer rows.Close()

	var states []LayerState
	for rows.Next() {
		var st LayerState
		if err := rows.Scan(&st.Layer, &st.ActAvg, &st.Gain); err != nil {
			return nil, fmt.Errorf("failed to scan layer state: %w", err)
		}
		states = append(states, st)
	}
	return states, rows.Err()
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		run       Run
		seed      int64
		layers    string
		cancelled int
		config    sql.NullString
		createdAt string
	)
	err := sc.Scan(&run.ID, &run.Network, &seed, &layers, &run.Epochs, &run.BatchSize, &cancelled, &config, &createdAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	run.Seed = uint64(seed)
	run.Cancelled = cancelled != 0
	run.Config = config.String
	if err := json.Unmarshal([]byte(layers), &run.Layers); err != nil {
		return nil, fmt.Errorf("failed to decode layers: %w", err)
	}
	if run.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return &run, nil
}

// prepare fills in the ID and creation time of a new run.
func prepare(run *Run) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
