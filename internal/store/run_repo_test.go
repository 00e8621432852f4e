package store

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/binjactl/uiengine/internal/domain"
)

func sampleRun(id, endpoint string, ok bool) domain.WorkflowRun {
	return domain.WorkflowRun{
		RunID:        id,
		Endpoint:     endpoint,
		OK:           ok,
		InputJSON:    `{"filepath":"/tmp/a.bin"}`,
		ActionsJSON:  `["low_level_load"]`,
		WarningsJSON: `[]`,
		ErrorsJSON:   `[]`,
		StateJSON:    `{"loaded_filename":"/tmp/a.bin"}`,
		StartedAt:    time.Now().Unix(),
		DurationMs:   12,
	}
}

func TestRunRepo_CreateAndGet(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := &RunRepo{}

	var seq int64
	err := withTx(t, db, func(tx *sql.Tx) error {
		var err error
		seq, err = repo.CreateTx(ctx, tx, sampleRun("run-1", domain.EndpointOpen, true))
		return err
	})
	if err != nil {
		t.Fatalf("CreateTx: %v", err)
	}
	if seq != 1 {
		t.Errorf("seq = %d, want 1", seq)
	}

	got, err := repo.GetByID(ctx, db, "run-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Endpoint != domain.EndpointOpen {
		t.Errorf("Endpoint = %q, want %q", got.Endpoint, domain.EndpointOpen)
	}
	if !got.OK {
		t.Error("OK = false, want true")
	}
	if got.ActionsJSON != `["low_level_load"]` {
		t.Errorf("ActionsJSON = %s", got.ActionsJSON)
	}
	if got.DurationMs != 12 {
		t.Errorf("DurationMs = %d, want 12", got.DurationMs)
	}
}

func TestRunRepo_GetByID_NotFound(t *testing.T) {
	db := openTestDB(t)
	repo := &RunRepo{}

	_, err := repo.GetByID(context.Background(), db, "missing")
	if err != domain.ErrRunNotFound {
		t.Errorf("err = %v, want ErrRunNotFound", err)
	}
}

func TestRunRepo_DuplicateID(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := &RunRepo{}

	create := func(tx *sql.Tx) error {
		_, err := repo.CreateTx(ctx, tx, sampleRun("run-dup", domain.EndpointQuit, true))
		return err
	}
	if err := withTx(t, db, create); err != nil {
		t.Fatalf("first CreateTx: %v", err)
	}
	if err := withTx(t, db, create); err == nil {
		t.Error("expected error on duplicate run_id, got nil")
	}
}

func TestRunRepo_ListRecentAndSince(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := &RunRepo{}

	endpoints := []string{domain.EndpointOpen, domain.EndpointQuit, domain.EndpointOpen, domain.EndpointStatusbar}
	for i, ep := range endpoints {
		err := withTx(t, db, func(tx *sql.Tx) error {
			_, err := repo.CreateTx(ctx, tx, sampleRun(fmt.Sprintf("run-%d", i+1), ep, i%2 == 0))
			return err
		})
		if err != nil {
			t.Fatalf("CreateTx %d: %v", i, err)
		}
	}

	recent, err := repo.ListRecent(ctx, db, "", 3)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recent) != 3 || recent[0].RunID != "run-4" {
		t.Fatalf("ListRecent = %+v, want 3 runs newest first", recent)
	}

	opens, err := repo.ListRecent(ctx, db, domain.EndpointOpen, 0)
	if err != nil {
		t.Fatalf("ListRecent(open): %v", err)
	}
	if len(opens) != 2 || opens[0].RunID != "run-3" || opens[1].RunID != "run-1" {
		t.Errorf("ListRecent(open) = %+v", opens)
	}

	since, err := repo.ListSince(ctx, db, 2)
	if err != nil {
		t.Fatalf("ListSince: %v", err)
	}
	if len(since) != 2 || since[0].Seq != 3 || since[1].Seq != 4 {
		t.Errorf("ListSince(2) = %+v, want seq 3 and 4", since)
	}
}
