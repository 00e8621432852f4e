// Package bridge connects the HTTP layer to the workflow engine, coordinating
// the host guard, run persistence and metrics around every workflow call.
package bridge

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/binjactl/uiengine/internal/domain"
	"github.com/binjactl/uiengine/internal/guard"
	"github.com/binjactl/uiengine/internal/metrics"
	"github.com/binjactl/uiengine/internal/store"
	"github.com/binjactl/uiengine/internal/workflow"
)

// Bridge is the integration layer between request handlers and the engine.
type Bridge struct {
	Engine    *workflow.Engine
	Guard     *guard.Guard
	Metrics   *metrics.Metrics
	RunRepo   *store.RunRepo
	EventRepo *store.EventRepo
	AuditRepo *store.AuditRepo
	DB        *sql.DB
	Logger    zerolog.Logger

	now func() time.Time
}

// NewBridge creates a Bridge with all required dependencies. g, m and db may
// be nil: no guard, no metrics and no run history respectively.
func NewBridge(engine *workflow.Engine, g *guard.Guard, m *metrics.Metrics, db *sql.DB, logger zerolog.Logger) *Bridge {
	return &Bridge{
		Engine:    engine,
		Guard:     g,
		Metrics:   m,
		RunRepo:   &store.RunRepo{},
		EventRepo: &store.EventRepo{},
		AuditRepo: &store.AuditRepo{},
		DB:        db,
		Logger:    logger.With().Str("component", "bridge").Logger(),
		now:       time.Now,
	}
}

// RunResult is a finished workflow call together with its run identity.
type RunResult struct {
	RunID      string
	Endpoint   string
	Input      any
	Result     domain.WorkflowResult
	DurationMs int64
}

// Open runs the open workflow.
func (b *Bridge) Open(ctx context.Context, req workflow.OpenRequest) (RunResult, error) {
	return b.execute(ctx, domain.EndpointOpen, req, func(ctx context.Context) domain.WorkflowResult {
		return b.Engine.OpenFile(ctx, req)
	})
}

// Quit runs the quit workflow.
func (b *Bridge) Quit(ctx context.Context, req workflow.QuitRequest) (RunResult, error) {
	return b.execute(ctx, domain.EndpointQuit, req, func(ctx context.Context) domain.WorkflowResult {
		return b.Engine.Quit(ctx, req)
	})
}

// Statusbar reads the status bar text.
func (b *Bridge) Statusbar(ctx context.Context, req workflow.StatusbarRequest) (RunResult, error) {
	return b.execute(ctx, domain.EndpointStatusbar, req, func(ctx context.Context) domain.WorkflowResult {
		return b.Engine.ReadStatusbar(ctx, req)
	})
}

// ListViews describes the open views. It does not take the host lock.
func (b *Bridge) ListViews(ctx context.Context) RunResult {
	start := b.now()
	res := b.Engine.ListViews(ctx)
	return RunResult{
		RunID:      uuid.NewString(),
		Endpoint:   domain.EndpointViews,
		Input:      map[string]any{},
		Result:     res,
		DurationMs: b.now().Sub(start).Milliseconds(),
	}
}

// Status reports the engine's current view.
func (b *Bridge) Status(ctx context.Context) workflow.StatusSnapshot {
	return b.Engine.Status(ctx)
}

// execute admits the call through the guard, runs it and records the run.
// Persistence failures are logged and never change the workflow result.
func (b *Bridge) execute(ctx context.Context, endpoint string, input any, fn func(context.Context) domain.WorkflowResult) (RunResult, error) {
	start := b.now()
	if b.Guard != nil {
		release, err := b.Guard.Admit(ctx, endpoint)
		if err != nil {
			b.Metrics.ObserveRejected(endpoint, rejectReason(err))
			b.Logger.Warn().Err(err).Str("endpoint", endpoint).Msg("workflow rejected")
			return RunResult{}, err
		}
		defer release()
	}

	res := fn(ctx)
	elapsed := b.now().Sub(start)

	out := RunResult{
		RunID:      uuid.NewString(),
		Endpoint:   endpoint,
		Input:      input,
		Result:     res,
		DurationMs: elapsed.Milliseconds(),
	}

	if err := b.persist(context.WithoutCancel(ctx), out, start); err != nil {
		b.Logger.Error().Err(err).Str("run_id", out.RunID).Msg("persist workflow run")
	}
	b.Metrics.ObserveRun(endpoint, res.OK, elapsed)

	b.Logger.Info().
		Str("run_id", out.RunID).
		Str("endpoint", endpoint).
		Bool("ok", res.OK).
		Dur("duration", elapsed).
		Int("warnings", len(res.Warnings)).
		Msg("workflow finished")
	return out, nil
}

func (b *Bridge) persist(ctx context.Context, out RunResult, start time.Time) error {
	if b.DB == nil {
		return nil
	}
	tx, err := b.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapEngineError(domain.ErrStoreWrite.Code, "begin run tx", err)
	}
	defer tx.Rollback()

	res := out.Result
	run := domain.WorkflowRun{
		RunID:        out.RunID,
		Endpoint:     out.Endpoint,
		OK:           res.OK,
		InputJSON:    mustJSON(out.Input),
		ActionsJSON:  mustJSON(res.Actions),
		WarningsJSON: mustJSON(res.Warnings),
		ErrorsJSON:   mustJSON(res.Errors),
		StateJSON:    mustJSON(res.State),
		StartedAt:    start.Unix(),
		DurationMs:   out.DurationMs,
	}
	if _, err := b.RunRepo.CreateTx(ctx, tx, run); err != nil {
		return err
	}

	createdAt := b.now().Unix()
	for i, tr := range res.Transitions {
		err := b.EventRepo.AppendTx(ctx, tx, domain.WorkflowEvent{
			RunID:       out.RunID,
			SeqNo:       int64(i + 1),
			State:       tr.To,
			EventType:   "transition",
			PayloadJSON: mustJSON(tr),
			CreatedAt:   createdAt,
		})
		if err != nil {
			return err
		}
	}

	for _, m := range res.Mutations {
		err := b.AuditRepo.RecordTx(ctx, tx, domain.AuditRecord{
			ID:         "aud-" + uuid.NewString(),
			RunID:      out.RunID,
			Category:   "ui",
			Actor:      out.Endpoint,
			Action:     m.Action,
			DetailJSON: mustJSON(m.Detail),
			Severity:   "info",
			CreatedAt:  createdAt,
		})
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.WrapEngineError(domain.ErrStoreWrite.Code, "commit run", err)
	}
	return nil
}

// Runs returns recent runs, newest first.
func (b *Bridge) Runs(ctx context.Context, endpoint string, limit int) ([]domain.WorkflowRun, error) {
	if b.DB == nil {
		return nil, nil
	}
	return b.RunRepo.ListRecent(ctx, b.DB, endpoint, limit)
}

// RunsSince returns runs recorded after seq, oldest first.
func (b *Bridge) RunsSince(ctx context.Context, seq int64) ([]domain.WorkflowRun, error) {
	if b.DB == nil {
		return nil, nil
	}
	return b.RunRepo.ListSince(ctx, b.DB, seq)
}

// Run returns one run.
func (b *Bridge) Run(ctx context.Context, runID string) (*domain.WorkflowRun, error) {
	if b.DB == nil {
		return nil, domain.ErrRunNotFound
	}
	return b.RunRepo.GetByID(ctx, b.DB, runID)
}

// RunEvents returns the state-machine events of a run after sinceSeq.
func (b *Bridge) RunEvents(ctx context.Context, runID string, sinceSeq int64) ([]domain.WorkflowEvent, error) {
	if _, err := b.Run(ctx, runID); err != nil {
		return nil, err
	}
	return b.EventRepo.ListByRun(ctx, b.DB, runID, sinceSeq)
}

// RunAudit returns the UI mutations recorded for a run.
func (b *Bridge) RunAudit(ctx context.Context, runID string) ([]domain.AuditRecord, error) {
	if _, err := b.Run(ctx, runID); err != nil {
		return nil, err
	}
	return b.AuditRepo.ListByRun(ctx, b.DB, runID)
}

func rejectReason(err error) string {
	switch domain.CodeOf(err) {
	case domain.ErrRateLimitExceeded.Code:
		return "rate_limited"
	case domain.ErrHostBusy.Code:
		return "host_busy"
	default:
		return "other"
	}
}

// mustJSON marshals v to a JSON string, returning "{}" on error.
func mustJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
