// Package ipc provides the HTTP API of the UI automation engine.
package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/binjactl/uiengine/internal/bridge"
	"github.com/binjactl/uiengine/internal/domain"
	"github.com/binjactl/uiengine/internal/workflow"
)

// SchemaVersion is the version of the UI contract envelope.
const SchemaVersion = 1

// endpointAPIVersions lists endpoints whose contract moved past version 1.
var endpointAPIVersions = map[string]int{
	domain.EndpointOpen:      2,
	domain.EndpointQuit:      2,
	domain.EndpointStatusbar: 2,
}

// APIVersion returns the contract version of an endpoint.
func APIVersion(endpoint string) int {
	if v, ok := endpointAPIVersions[endpoint]; ok {
		return v
	}
	return 1
}

// Handler holds all dependencies for the HTTP handlers.
type Handler struct {
	Bridge *bridge.Bridge
	Logger zerolog.Logger
	// StreamInterval is the SSE polling period; zero means two seconds.
	StreamInterval time.Duration
}

// OpenRequest is the body for POST /ui/open.
type OpenRequest struct {
	Filepath    string `json:"filepath"`
	Platform    string `json:"platform"`
	ViewType    string `json:"view_type"`
	ClickOpen   *bool  `json:"click_open"`
	InspectOnly bool   `json:"inspect_only"`
}

// QuitRequest is the body for POST /ui/quit.
type QuitRequest struct {
	Decision    string `json:"decision"`
	MarkDirty   bool   `json:"mark_dirty"`
	InspectOnly bool   `json:"inspect_only"`
	WaitMs      int    `json:"wait_ms"`
	QuitApp     bool   `json:"quit_app"`
	QuitDelayMs int    `json:"quit_delay_ms"`
}

// StatusbarRequest is the body for POST /ui/statusbar.
type StatusbarRequest struct {
	AllWindows    bool `json:"all_windows"`
	IncludeHidden bool `json:"include_hidden"`
}

// Envelope is the UI contract wrapped around every workflow result.
type Envelope struct {
	OK            bool           `json:"ok"`
	SchemaVersion int            `json:"schema_version"`
	Endpoint      string         `json:"endpoint"`
	APIVersion    int            `json:"api_version"`
	Actions       []string       `json:"actions"`
	Warnings      []string       `json:"warnings"`
	Errors        []string       `json:"errors"`
	State         map[string]any `json:"state"`
	Result        EnvelopeResult `json:"result"`
}

// EnvelopeResult identifies the run that produced an envelope.
type EnvelopeResult struct {
	RunID      string `json:"run_id"`
	Input      any    `json:"input"`
	DurationMs int64  `json:"duration_ms"`
}

// RunRecord is a stored run with its JSON columns inlined.
type RunRecord struct {
	Seq        int64           `json:"seq"`
	RunID      string          `json:"run_id"`
	Endpoint   string          `json:"endpoint"`
	OK         bool            `json:"ok"`
	Input      json.RawMessage `json:"input"`
	Actions    json.RawMessage `json:"actions"`
	Warnings   json.RawMessage `json:"warnings"`
	Errors     json.RawMessage `json:"errors"`
	State      json.RawMessage `json:"state"`
	StartedAt  int64           `json:"started_at"`
	DurationMs int64           `json:"duration_ms"`
}

// APIError is a structured error response.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Health handles GET /api/v1/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Open handles POST /ui/open.
func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	if !decodeBody(w, r, &req) {
		return
	}
	clickOpen := true
	if req.ClickOpen != nil {
		clickOpen = *req.ClickOpen
	}
	out, err := h.Bridge.Open(r.Context(), workflow.OpenRequest{
		Filepath:    req.Filepath,
		Platform:    req.Platform,
		ViewType:    req.ViewType,
		ClickOpen:   clickOpen,
		InspectOnly: req.InspectOnly,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeEnvelope(w, out)
}

// Quit handles POST /ui/quit.
func (h *Handler) Quit(w http.ResponseWriter, r *http.Request) {
	var req QuitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.WaitMs < 0 || req.QuitDelayMs < 0 {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "wait_ms and quit_delay_ms must not be negative"})
		return
	}
	out, err := h.Bridge.Quit(r.Context(), workflow.QuitRequest{
		Decision:    domain.ParseDecision(req.Decision),
		MarkDirty:   req.MarkDirty,
		InspectOnly: req.InspectOnly,
		WaitMs:      req.WaitMs,
		QuitApp:     req.QuitApp,
		QuitDelayMs: req.QuitDelayMs,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeEnvelope(w, out)
}

// Statusbar handles POST /ui/statusbar.
func (h *Handler) Statusbar(w http.ResponseWriter, r *http.Request) {
	var req StatusbarRequest
	if !decodeBody(w, r, &req) {
		return
	}
	out, err := h.Bridge.Statusbar(r.Context(), workflow.StatusbarRequest{
		AllWindows:    req.AllWindows,
		IncludeHidden: req.IncludeHidden,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeEnvelope(w, out)
}

// Views handles GET /ui/views.
func (h *Handler) Views(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, h.Bridge.ListViews(r.Context()))
}

// Status handles GET /status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Bridge.Status(r.Context()))
}

// ListRuns handles GET /api/v1/runs?endpoint=E&limit=N.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil || parsed < 0 {
			writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}
	runs, err := h.Bridge.Runs(r.Context(), r.URL.Query().Get("endpoint"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecords(runs))
}

// GetRun handles GET /api/v1/runs/{runID}.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.Bridge.Run(r.Context(), r.PathValue("runID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecord(*run))
}

// ListRunEvents handles GET /api/v1/runs/{runID}/events?since_seq=N.
func (h *Handler) ListRunEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.Bridge.RunEvents(r.Context(), r.PathValue("runID"), querySeq(r, "since_seq"))
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []domain.WorkflowEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// ListRunAudit handles GET /api/v1/runs/{runID}/audit.
func (h *Handler) ListRunAudit(w http.ResponseWriter, r *http.Request) {
	records, err := h.Bridge.RunAudit(r.Context(), r.PathValue("runID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []domain.AuditRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// StreamRuns handles GET /api/v1/runs/stream?since_seq=N (SSE).
func (h *Handler) StreamRuns(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, APIError{Code: 500, Message: "streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	lastSeq := querySeq(r, "since_seq")

	// Send initial batch of runs.
	runs, err := h.Bridge.RunsSince(ctx, lastSeq)
	if err != nil {
		writeSSEError(w, flusher, err)
		return
	}
	for _, run := range runs {
		writeSSERun(w, flusher, run)
		lastSeq = run.Seq
	}
	fmt.Fprint(w, ": ready\n\n")
	flusher.Flush()

	interval := h.StreamInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			newRuns, err := h.Bridge.RunsSince(ctx, lastSeq)
			if err != nil {
				h.Logger.Debug().Err(err).Msg("run stream poll")
				return
			}
			for _, run := range newRuns {
				writeSSERun(w, flusher, run)
				lastSeq = run.Seq
			}
		}
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "invalid request body"})
		return false
	}
	return true
}

func querySeq(r *http.Request, key string) int64 {
	if s := r.URL.Query().Get(key); s != "" {
		if parsed, err := strconv.ParseInt(s, 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}

func toRecord(run domain.WorkflowRun) RunRecord {
	return RunRecord{
		Seq:        run.Seq,
		RunID:      run.RunID,
		Endpoint:   run.Endpoint,
		OK:         run.OK,
		Input:      rawOr(run.InputJSON, "{}"),
		Actions:    rawOr(run.ActionsJSON, "[]"),
		Warnings:   rawOr(run.WarningsJSON, "[]"),
		Errors:     rawOr(run.ErrorsJSON, "[]"),
		State:      rawOr(run.StateJSON, "{}"),
		StartedAt:  run.StartedAt,
		DurationMs: run.DurationMs,
	}
}

func toRecords(runs []domain.WorkflowRun) []RunRecord {
	out := make([]RunRecord, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRecord(run))
	}
	return out
}

func rawOr(s, fallback string) json.RawMessage {
	if !json.Valid([]byte(s)) {
		s = fallback
	}
	return json.RawMessage(s)
}

func writeEnvelope(w http.ResponseWriter, out bridge.RunResult) {
	res := out.Result
	env := Envelope{
		OK:            res.OK,
		SchemaVersion: SchemaVersion,
		Endpoint:      out.Endpoint,
		APIVersion:    APIVersion(out.Endpoint),
		Actions:       nonNil(res.Actions),
		Warnings:      nonNil(res.Warnings),
		Errors:        nonNil(res.Errors),
		State:         res.State,
		Result: EnvelopeResult{
			RunID:      out.RunID,
			Input:      out.Input,
			DurationMs: out.DurationMs,
		},
	}
	if env.State == nil {
		env.State = map[string]any{}
	}
	w.Header().Set("X-Endpoint-Api-Version", strconv.Itoa(env.APIVersion))
	writeJSON(w, http.StatusOK, env)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var engErr *domain.EngineError
	if errors.As(err, &engErr) {
		status := http.StatusInternalServerError
		switch engErr.Code {
		case domain.ErrRunNotFound.Code:
			status = http.StatusNotFound
		case domain.ErrRateLimitExceeded.Code:
			status = http.StatusTooManyRequests
		case domain.ErrHostBusy.Code:
			status = http.StatusConflict
		case domain.ErrConfigInvalid.Code:
			status = http.StatusBadRequest
		}
		writeJSON(w, status, APIError{Code: engErr.Code, Message: engErr.Message})
		return
	}
	writeJSON(w, http.StatusInternalServerError, APIError{Code: -1, Message: err.Error()})
}

func writeSSERun(w http.ResponseWriter, f http.Flusher, run domain.WorkflowRun) {
	data, _ := json.Marshal(toRecord(run))
	fmt.Fprintf(w, "id: %d\nevent: run\ndata: %s\n\n", run.Seq, data)
	f.Flush()
}

func writeSSEError(w http.ResponseWriter, f http.Flusher, err error) {
	fmt.Fprintf(w, "event: error\ndata: %s\n\n", err.Error())
	f.Flush()
}
