package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/shonenark/ark-gateway/internal/domain"
	"github.com/shonenark/ark-gateway/internal/storage"
)

// Store is a SQLite implementation of HistoryStore
type Store struct {
	db *sql.DB
}

var _ storage.HistoryStore = (*Store)(nil)

// New opens (creating if needed) the database at dbPath. DSNs starting with
// "file:" and ":memory:" are passed through untouched.
func New(dbPath string) (*Store, error) {
	if !strings.HasPrefix(dbPath, "file:") && dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			directory TEXT NOT NULL,
			dry_run INTEGER NOT NULL DEFAULT 0,
			total INTEGER NOT NULL,
			succeeded INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			duration_ns INTEGER NOT NULL,
			started_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS results (
			run_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			workflow TEXT NOT NULL,
			file TEXT,
			success INTEGER NOT NULL,
			remote_id TEXT,
			error TEXT,
			action TEXT,
			activated INTEGER NOT NULL DEFAULT 0,
			warnings TEXT,
			PRIMARY KEY (run_id, position),
			FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_results_workflow ON results(workflow)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

func (s *Store) RecordRun(ctx context.Context, run *domain.Summary) error {
	if run == nil || run.RunID == "" {
		return fmt.Errorf("run id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO runs (id, directory, dry_run, total, succeeded, failed, duration_ns, started_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = tx.ExecContext(ctx, query,
		run.RunID, run.Directory, run.DryRun, run.Total, run.Succeeded, run.Failed,
		int64(run.Duration), run.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	resultQuery := `INSERT INTO results (run_id, position, workflow, file, success, remote_id, error, action, activated, warnings)
	                VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	for i, r := range run.Results {
		warnings, err := json.Marshal(r.Warnings)
		if err != nil {
			return fmt.Errorf("failed to marshal warnings: %w", err)
		}
		_, err = tx.ExecContext(ctx, resultQuery,
			run.RunID, i, r.WorkflowName, r.File, r.Success, r.RemoteID, r.Error,
			string(r.Action), r.Activated, string(warnings))
		if err != nil {
			return fmt.Errorf("failed to insert result: %w", err)
		}
	}

	return tx.Commit()
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]*domain.Summary, error) {
	if limit <= 0 {
		limit = storage.DefaultListLimit
	}

	query := `SELECT id, directory, dry_run, total, succeeded, failed, duration_ns, started_at
	          FROM runs
	          ORDER BY started_at DESC, rowid DESC
	          LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.Summary
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

func (s *Store) GetRun(ctx context.Context, id string) (*domain.Summary, error) {
	query := `SELECT id, directory, dry_run, total, succeeded, failed, duration_ns, started_at
	          FROM runs WHERE id = ?`

	run, err := scanRun(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	results, err := s.getResults(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Results = results

	return run, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*domain.Summary, error) {
	var run domain.Summary
	var durationNS int64

	err := row.Scan(&run.RunID, &run.Directory, &run.DryRun, &run.Total,
		&run.Succeeded, &run.Failed, &durationNS, &run.StartedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.Duration = time.Duration(durationNS)
	return &run, nil
}

func (s *Store) getResults(ctx context.Context, runID string) ([]domain.DeploymentResult, error) {
	query := `SELECT workflow, file, success, remote_id, error, action, activated, warnings
	          FROM results WHERE run_id = ?
	          ORDER BY position ASC`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	results := []domain.DeploymentResult{}
	for rows.Next() {
		var r domain.DeploymentResult
		var file, remoteID, errText, action, warnings sql.NullString

		if err := rows.Scan(&r.WorkflowName, &file, &r.Success, &remoteID, &errText,
			&action, &r.Activated, &warnings); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}

		r.File = file.String
		r.RemoteID = remoteID.String
		r.Error = errText.String
		r.Action = domain.DeployAction(action.String)
		if warnings.Valid && warnings.String != "" {
			if err := json.Unmarshal([]byte(warnings.String), &r.Warnings); err != nil {
				return nil, fmt.Errorf("failed to unmarshal warnings: %w", err)
			}
		}

		results = append(results, r)
	}

	return results, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
