package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/binjactl/uiengine/internal/domain"
)

// RunRepo handles persistence for WorkflowRun records.
type RunRepo struct{}

const runColumns = `seq, run_id, endpoint, ok, input_json, actions_json, warnings_json, errors_json, state_json, started_at, duration_ms`

// CreateTx inserts a finished run within an existing transaction and returns
// its sequence number.
func (r *RunRepo) CreateTx(ctx context.Context, tx *sql.Tx, run domain.WorkflowRun) (int64, error) {
	const q = `INSERT INTO workflow_runs (run_id, endpoint, ok, input_json, actions_json, warnings_json, errors_json, state_json, started_at, duration_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		run.RunID,
		run.Endpoint,
		run.OK,
		run.InputJSON,
		run.ActionsJSON,
		run.WarningsJSON,
		run.ErrorsJSON,
		run.StateJSON,
		run.StartedAt,
		run.DurationMs,
	)
	if err != nil {
		return 0, fmt.Errorf("create run: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read run seq: %w", err)
	}
	return seq, nil
}

// GetByID retrieves a run by its ID.
func (r *RunRepo) GetByID(ctx context.Context, db *sql.DB, runID string) (*domain.WorkflowRun, error) {
	q := `SELECT ` + runColumns + ` FROM workflow_runs WHERE run_id = ?`
	run, err := scanRun(db.QueryRowContext(ctx, q, runID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRecent returns up to limit runs, newest first. An endpoint filters when
// non-empty.
func (r *RunRepo) ListRecent(ctx context.Context, db *sql.DB, endpoint string, limit int) ([]domain.WorkflowRun, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + runColumns + ` FROM workflow_runs
WHERE (? = '' OR endpoint = ?)
ORDER BY seq DESC
LIMIT ?`
	rows, err := db.QueryContext(ctx, q, endpoint, endpoint, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return collectRuns(rows)
}

// ListSince returns runs with a sequence number greater than sinceSeq, oldest
// first.
func (r *RunRepo) ListSince(ctx context.Context, db *sql.DB, sinceSeq int64) ([]domain.WorkflowRun, error) {
	q := `SELECT ` + runColumns + ` FROM workflow_runs WHERE seq > ? ORDER BY seq ASC`
	rows, err := db.QueryContext(ctx, q, sinceSeq)
	if err != nil {
		return nil, fmt.Errorf("list runs since: %w", err)
	}
	return collectRuns(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*domain.WorkflowRun, error) {
	var run domain.WorkflowRun
	err := row.Scan(&run.Seq, &run.RunID, &run.Endpoint, &run.OK, &run.InputJSON, &run.ActionsJSON,
		&run.WarningsJSON, &run.ErrorsJSON, &run.StateJSON, &run.StartedAt, &run.DurationMs)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func collectRuns(rows *sql.Rows) ([]domain.WorkflowRun, error) {
	defer rows.Close()
	var runs []domain.WorkflowRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}
