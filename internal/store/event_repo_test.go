package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/binjactl/uiengine/internal/domain"
)

func TestEventRepo_AppendAndList(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := &EventRepo{}
	now := time.Now().Unix()

	events := []domain.WorkflowEvent{
		{RunID: "run-1", SeqNo: 1, State: "ui_open_attempt", EventType: "transition", PayloadJSON: `{"from":"looking_for_existing_tab"}`, CreatedAt: now},
		{RunID: "run-1", SeqNo: 2, State: "waiting_for_options_dialog", EventType: "transition", PayloadJSON: "{}", CreatedAt: now},
		{RunID: "run-1", SeqNo: 3, State: "done", EventType: "transition", PayloadJSON: "{}", CreatedAt: now},
	}

	for _, e := range events {
		e := e
		if err := withTx(t, db, func(tx *sql.Tx) error { return repo.AppendTx(ctx, tx, e) }); err != nil {
			t.Fatalf("AppendTx seq=%d: %v", e.SeqNo, err)
		}
	}

	got, err := repo.ListByRun(ctx, db, "run-1", 0)
	if err != nil {
		t.Fatalf("ListByRun: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}

	// List events since seq 1 (should return seq 2, 3).
	got, err = repo.ListByRun(ctx, db, "run-1", 1)
	if err != nil {
		t.Fatalf("ListByRun sinceSeq=1: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].SeqNo != 2 || got[0].State != "waiting_for_options_dialog" {
		t.Errorf("first event = %+v, want seq 2", got[0])
	}
}

func TestEventRepo_DuplicateSeqNo(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := &EventRepo{}

	event := domain.WorkflowEvent{
		RunID: "run-dup", SeqNo: 1, State: "idle",
		EventType: "transition", PayloadJSON: "{}", CreatedAt: time.Now().Unix(),
	}
	appendEvent := func(tx *sql.Tx) error { return repo.AppendTx(ctx, tx, event) }

	if err := withTx(t, db, appendEvent); err != nil {
		t.Fatalf("first AppendTx: %v", err)
	}
	// Duplicate (run_id, seq_no) should fail.
	if err := withTx(t, db, appendEvent); err == nil {
		t.Error("expected error on duplicate seq_no, got nil")
	}
}

func TestEventRepo_ListByRun_Empty(t *testing.T) {
	db := openTestDB(t)

	got, err := (&EventRepo{}).ListByRun(context.Background(), db, "nonexistent", 0)
	if err != nil {
		t.Fatalf("ListByRun: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil slice for empty result, got %v", got)
	}
}
