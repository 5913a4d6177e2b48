// Package store keeps the run history in sqlite.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"go-metadata-extractor/internal/model"
)

// ErrRunNotFound is returned for an unknown run ID
var ErrRunNotFound = errors.New("run not found")

// Store is a sqlite-backed run history. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	// single writer connection
	db.SetMaxOpenConns(1)

	runTable := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		tool TEXT,
		options TEXT,
		status TEXT,
		summary TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);
	`
	errorTable := `
	CREATE TABLE IF NOT EXISTS run_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		stage TEXT,
		code TEXT,
		message TEXT,
		fatal INTEGER,
		created_at DATETIME
	);
	`
	for _, stmt := range []string{runTable, errorTable,
		`CREATE INDEX IF NOT EXISTS idx_run_errors_run_id ON run_errors(run_id);`} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores a new run in pending state
func (s *Store) SaveRun(runID string, opts model.Options) error {
	optsJSON, err := json.Marshal(opts)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = s.db.Exec(`INSERT INTO runs (id, tool, options, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, string(opts.Tool), string(optsJSON), model.RunPending, now, now)
	return err
}

// UpdateRunStatus updates run status
func (s *Store) UpdateRunStatus(runID, status string) error {
	res, err := s.db.Exec(`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`, status, time.Now().UTC(), runID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SaveRunSummary attaches the final summary to a run
func (s *Store) SaveRunSummary(runID string, summary model.RunSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`UPDATE runs SET summary = ?, updated_at = ? WHERE id = ?`, string(data), time.Now().UTC(), runID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SaveRunError records an error for a run
func (s *Store) SaveRunError(runID string, detail model.ErrorDetail) error {
	ts := detail.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.db.Exec(`INSERT INTO run_errors (run_id, stage, code, message, fatal, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, detail.Stage, detail.Code, detail.Message, detail.Fatal, ts)
	return err
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(limit int) ([]model.RunRecord, error) {
	query := `SELECT id, tool, options, status, summary, created_at, updated_at FROM runs ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun fetches a run with its options and summary
func (s *Store) GetRun(runID string) (model.RunRecord, error) {
	row := s.db.QueryRow(`SELECT id, tool, options, status, summary, created_at, updated_at FROM runs WHERE id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return r, err
}

// GetRunErrors returns the recorded errors of a run in insertion order
func (s *Store) GetRunErrors(runID string) ([]model.ErrorDetail, error) {
	rows, err := s.db.Query(`SELECT id, run_id, stage, code, message, fatal, created_at FROM run_errors WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ErrorDetail
	for rows.Next() {
		var d model.ErrorDetail
		if err := rows.Scan(&d.ID, &d.RunID, &d.Stage, &d.Code, &d.Message, &d.Fatal, &d.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (model.RunRecord, error) {
	var (
		r        model.RunRecord
		tool     string
		optsJSON string
		summary  sql.NullString
	)
	if err := sc.Scan(&r.ID, &tool, &optsJSON, &r.Status, &summary, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return r, err
	}
	r.Tool = model.Tool(tool)
	if err := json.Unmarshal([]byte(optsJSON), &r.Options); err != nil {
		return r, fmt.Errorf("decode options of run %s: %w", r.ID, err)
	}
	if summary.Valid && summary.String != "" {
		var s model.RunSummary
		if err := json.Unmarshal([]byte(summary.String), &s); err != nil {
			return r, fmt.Errorf("decode summary of run %s: %w", r.ID, err)
		}
		r.Summary = &s
	}
	return r, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRunNotFound
	}
	return nil
}
