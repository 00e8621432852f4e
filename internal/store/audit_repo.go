package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/binjactl/uiengine/internal/domain"
)

// AuditRepo handles persistence for AuditRecord entries.
type AuditRepo struct{}

// RecordTx inserts an audit record within an existing transaction.
func (r *AuditRepo) RecordTx(ctx context.Context, tx *sql.Tx, rec domain.AuditRecord) error {
	const q = `INSERT INTO audit_records (id, run_id, category, actor, action, detail_json, severity, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q,
		rec.ID,
		rec.RunID,
		rec.Category,
		rec.Actor,
		rec.Action,
		rec.DetailJSON,
		rec.Severity,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record audit: %w", err)
	}
	return nil
}

// ListByRun returns all audit records for a run, ordered by creation time.
func (r *AuditRepo) ListByRun(ctx context.Context, db *sql.DB, runID string) ([]domain.AuditRecord, error) {
	const q = `SELECT id, run_id, category, actor, action, detail_json, severity, created_at
FROM audit_records
WHERE run_id = ?
ORDER BY created_at ASC, rowid ASC`

	rows, err := db.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	defer rows.Close()

	var records []domain.AuditRecord
	for rows.Next() {
		var a domain.AuditRecord
		if err := rows.Scan(&a.ID, &a.RunID, &a.Category, &a.Actor, &a.Action,
			&a.DetailJSON, &a.Severity, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		records = append(records, a)
	}
	return records, rows.Err()
}
