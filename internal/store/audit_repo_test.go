package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/binjactl/uiengine/internal/domain"
)

func TestAuditRepo_RecordAndList(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := &AuditRepo{}
	now := time.Now().Unix()

	records := []domain.AuditRecord{
		{ID: "aud-1", RunID: "run-1", Category: "ui", Actor: "workflow", Action: "click_button", DetailJSON: `{"button":"Don't Save"}`, Severity: "info", CreatedAt: now},
		{ID: "aud-2", RunID: "run-1", Category: "ui", Actor: "workflow", Action: "trigger_close", DetailJSON: "{}", Severity: "info", CreatedAt: now + 1},
		{ID: "aud-3", RunID: "run-2", Category: "host", Actor: "workflow", Action: "save_database", DetailJSON: "{}", Severity: "warn", CreatedAt: now + 2},
	}

	err := withTx(t, db, func(tx *sql.Tx) error {
		for _, r := range records {
			if err := repo.RecordTx(ctx, tx, r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RecordTx: %v", err)
	}

	got, err := repo.ListByRun(ctx, db, "run-1")
	if err != nil {
		t.Fatalf("ListByRun: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].ID != "aud-1" || got[1].ID != "aud-2" {
		t.Errorf("records = %q, %q; want aud-1, aud-2", got[0].ID, got[1].ID)
	}
	if got[0].DetailJSON != `{"button":"Don't Save"}` {
		t.Errorf("DetailJSON = %s", got[0].DetailJSON)
	}
}

func TestAuditRepo_DuplicateID(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := &AuditRepo{}

	rec := domain.AuditRecord{
		ID: "aud-dup", RunID: "run-1", Category: "ui",
		Action: "click_button", DetailJSON: "{}", CreatedAt: time.Now().Unix(),
	}
	record := func(tx *sql.Tx) error { return repo.RecordTx(ctx, tx, rec) }

	if err := withTx(t, db, record); err != nil {
		t.Fatalf("first RecordTx: %v", err)
	}
	if err := withTx(t, db, record); err == nil {
		t.Error("expected error on duplicate ID, got nil")
	}
}

func TestAuditRepo_ListByRun_Empty(t *testing.T) {
	db := openTestDB(t)

	got, err := (&AuditRepo{}).ListByRun(context.Background(), db, "nonexistent")
	if err != nil {
		t.Fatalf("ListByRun: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for empty result, got %v", got)
	}
}
