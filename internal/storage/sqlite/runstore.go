// Package sqlite persists recorded runs and the estimate traces produced
// from them.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/banshee-data/pose.report/internal/estimator"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Run is the metadata row for one recorded run.
type Run struct {
	RunID       string `json:"run_id"`
	Vehicle     string `json:"vehicle"`
	Sensing     string `json:"sensing"` // "position" or "range_bearing"
	Noisy       bool   `json:"noisy"`
	SampleCount int    `json:"sample_count"`
	CreatedAt   int64  `json:"created_at"` // unix nanos
}

// Store wraps the run database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the run database at path and ensures
// the schema exists. The schema here matches migrations/; MigrateUp is
// for upgrading databases created by older builds.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id            TEXT PRIMARY KEY,
			vehicle           TEXT NOT NULL,
			sensing           TEXT NOT NULL DEFAULT 'range_bearing',
			noisy             INTEGER NOT NULL DEFAULT 0,
			sample_count      INTEGER NOT NULL DEFAULT 0,
			created_at        BIGINT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS records (
			run_id            TEXT NOT NULL,
			idx               INTEGER NOT NULL,
			t                 DOUBLE NOT NULL,
			truth             TEXT NOT NULL,
			input             TEXT NOT NULL,
			meas              TEXT NOT NULL,
			PRIMARY KEY (run_id, idx),
			FOREIGN KEY (run_id) REFERENCES runs(run_id)
		);
		CREATE TABLE IF NOT EXISTS estimates (
			run_id            TEXT NOT NULL,
			variant           TEXT NOT NULL,
			idx               INTEGER NOT NULL,
			t                 DOUBLE NOT NULL,
			state             TEXT NOT NULL,
			PRIMARY KEY (run_id, variant, idx),
			FOREIGN KEY (run_id) REFERENCES runs(run_id)
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying handle for migrations.
func (s *Store) DB() *sql.DB { return s.db }

// CreateRun inserts a run row and returns its generated identifier.
func (s *Store) CreateRun(vehicle, sensing string, noisy bool) (string, error) {
	runID := uuid.New().String()
	noisyInt := 0
	if noisy {
		noisyInt = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, vehicle, sensing, noisy, sample_count, created_at) VALUES (?, ?, ?, ?, 0, ?)`,
		runID, vehicle, sensing, noisyInt, time.Now().UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	return runID, nil
}

// InsertRecords appends a run's records in one transaction and updates
// the run's sample count.
func (s *Store) InsertRecords(runID string, recs []estimator.Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("insert records: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO records (run_id, idx, t, truth, input, meas) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("insert records: %w", err)
	}
	defer stmt.Close()

	for i, rec := range recs {
		truth, input, meas, err := marshalVectors(rec)
		if err != nil {
			return fmt.Errorf("insert records: record %d: %w", i, err)
		}
		if _, err := stmt.Exec(runID, i, rec.T, truth, input, meas); err != nil {
			return fmt.Errorf("insert records: record %d: %w", i, err)
		}
	}

	if _, err := tx.Exec(`UPDATE runs SET sample_count = ? WHERE run_id = ?`, len(recs), runID); err != nil {
		return fmt.Errorf("insert records: update count: %w", err)
	}
	return tx.Commit()
}

func marshalVectors(rec estimator.Record) (truth, input, meas string, err error) {
	t, err := json.Marshal(rec.Truth)
	if err != nil {
		return "", "", "", err
	}
	u, err := json.Marshal(rec.Input)
	if err != nil {
		return "", "", "", err
	}
	y, err := json.Marshal(rec.Meas)
	if err != nil {
		return "", "", "", err
	}
	return string(t), string(u), string(y), nil
}

// LoadRecords returns a run's records ordered by index.
func (s *Store) LoadRecords(runID string) ([]estimator.Record, error) {
	rows, err := s.db.Query(
		`SELECT t, truth, input, meas FROM records WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	defer rows.Close()

	var recs []estimator.Record
	for rows.Next() {
		var rec estimator.Record
		var truth, input, meas string
		if err := rows.Scan(&rec.T, &truth, &input, &meas); err != nil {
			return nil, fmt.Errorf("load records: %w", err)
		}
		if err := json.Unmarshal([]byte(truth), &rec.Truth); err != nil {
			return nil, fmt.Errorf("load records: truth: %w", err)
		}
		if err := json.Unmarshal([]byte(input), &rec.Input); err != nil {
			return nil, fmt.Errorf("load records: input: %w", err)
		}
		if err := json.Unmarshal([]byte(meas), &rec.Meas); err != nil {
			return nil, fmt.Errorf("load records: meas: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// GetRun returns one run's metadata.
func (s *Store) GetRun(runID string) (*Run, error) {
	row := s.db.QueryRow(
		`SELECT run_id, vehicle, sensing, noisy, sample_count, created_at FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	return r, err
}

// LatestRun returns the most recent run for a vehicle, sensing mode and
// noise mode. An empty sensing string matches any sensing mode.
func (s *Store) LatestRun(vehicle, sensing string, noisy bool) (*Run, error) {
	noisyInt := 0
	if noisy {
		noisyInt = 1
	}
	query := `SELECT run_id, vehicle, sensing, noisy, sample_count, created_at
		 FROM runs WHERE vehicle = ? AND noisy = ?`
	args := []interface{}{vehicle, noisyInt}
	if sensing != "" {
		query += ` AND sensing = ?`
		args = append(args, sensing)
	}
	query += ` ORDER BY created_at DESC LIMIT 1`
	row := s.db.QueryRow(query, args...)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no %s run recorded (sensing=%q noisy=%v)", vehicle, sensing, noisy)
	}
	return r, err
}

// ListRuns returns all runs, newest first.
func (s *Store) ListRuns() ([]*Run, error) {
	rows, err := s.db.Query(
		`SELECT run_id, vehicle, sensing, noisy, sample_count, created_at FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var noisyInt int
	if err := row.Scan(&r.RunID, &r.Vehicle, &r.Sensing, &noisyInt, &r.SampleCount, &r.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	r.Noisy = noisyInt != 0
	return &r, nil
}

// SaveEstimates replaces the stored estimate trace for one run/variant.
func (s *Store) SaveEstimates(runID, variant string, ests []estimator.Estimate) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("save estimates: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM estimates WHERE run_id = ? AND variant = ?`, runID, variant); err != nil {
		return fmt.Errorf("save estimates: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO estimates (run_id, variant, idx, t, state) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("save estimates: %w", err)
	}
	defer stmt.Close()

	for i, est := range ests {
		state, err := json.Marshal(est.X)
		if err != nil {
			return fmt.Errorf("save estimates: estimate %d: %w", i, err)
		}
		if _, err := stmt.Exec(runID, variant, i, est.T, string(state)); err != nil {
			return fmt.Errorf("save estimates: estimate %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// LoadEstimates returns the estimate trace for one run/variant, ordered.
func (s *Store) LoadEstimates(runID, variant string) ([]estimator.Estimate, error) {
	rows, err := s.db.Query(
		`SELECT t, state FROM estimates WHERE run_id = ? AND variant = ? ORDER BY idx`, runID, variant)
	if err != nil {
		return nil, fmt.Errorf("load estimates: %w", err)
	}
	defer rows.Close()

	var ests []estimator.Estimate
	for rows.Next() {
		var est estimator.Estimate
		var state string
		if err := rows.Scan(&est.T, &state); err != nil {
			return nil, fmt.Errorf("load estimates: %w", err)
		}
		if err := json.Unmarshal([]byte(state), &est.X); err != nil {
			return nil, fmt.Errorf("load estimates: state: %w", err)
		}
		ests = append(ests, est)
	}
	return ests, rows.Err()
}
