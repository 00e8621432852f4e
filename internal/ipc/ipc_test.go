package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/binjactl/uiengine/internal/bridge"
	"github.com/binjactl/uiengine/internal/dispatch"
	"github.com/binjactl/uiengine/internal/domain"
	"github.com/binjactl/uiengine/internal/guard"
	"github.com/binjactl/uiengine/internal/host/memhost"
	"github.com/binjactl/uiengine/internal/metrics"
	"github.com/binjactl/uiengine/internal/store"
	"github.com/binjactl/uiengine/internal/workflow"
)

type testServer struct {
	Handler *Handler
	Desktop *memhost.Desktop
	Mux     http.Handler
}

func newTestServer(t *testing.T, rateLimit int) *testServer {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := store.NewDB(dbPath)
	if err != nil {
		t.Fatalf("create db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	timing := workflow.DefaultTiming()
	timing.OptionsDialogWait = 200 * time.Millisecond
	timing.FinalPassWait = 200 * time.Millisecond
	timing.PollInterval = 5 * time.Millisecond
	timing.QuitPollInterval = 5 * time.Millisecond
	timing.QuietTicks = 2
	timing.PumpInterval = time.Millisecond

	desk := memhost.NewDesktop("main")
	hst := desk.Host(nil)
	m := metrics.New()
	engine := workflow.NewEngine(hst, dispatch.New(hst.Scheduler, m, zerolog.Nop()), workflow.Options{Timing: timing}, zerolog.Nop())
	g := guard.NewGuard(guard.GuardConfig{
		Serialize:          true,
		LockWait:           50 * time.Millisecond,
		RateLimitPerMinute: rateLimit,
	})

	h := &Handler{
		Bridge:         bridge.NewBridge(engine, g, m, db, zerolog.Nop()),
		Logger:         zerolog.Nop(),
		StreamInterval: 10 * time.Millisecond,
	}
	srv := NewServer(h, m, ":0")
	return &testServer{Handler: h, Desktop: desk, Mux: srv.Handler()}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	s.Mux.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func writeBinary(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte("\x7fELF"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestOpen_Envelope(t *testing.T) {
	s := newTestServer(t, 1000)
	f := writeBinary(t, "app.bin")

	body, _ := json.Marshal(map[string]any{"filepath": f})
	w := s.do(t, http.MethodPost, "/ui/open", string(body))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if v := w.Header().Get("X-Endpoint-Api-Version"); v != "2" {
		t.Errorf("X-Endpoint-Api-Version = %q, want 2", v)
	}

	env := decodeEnvelope(t, w)
	if !env.OK {
		t.Fatalf("expected ok, errors: %v", env.Errors)
	}
	if env.SchemaVersion != 1 || env.APIVersion != 2 || env.Endpoint != domain.EndpointOpen {
		t.Errorf("envelope header = %d/%d/%s", env.SchemaVersion, env.APIVersion, env.Endpoint)
	}
	if env.State["loaded_filename"] != f {
		t.Errorf("loaded_filename = %v, want %s", env.State["loaded_filename"], f)
	}
	if env.Result.RunID == "" {
		t.Error("expected run_id in result")
	}
	input, ok := env.Result.Input.(map[string]any)
	if !ok || input["click_open"] != true {
		t.Errorf("click_open should default to true, input = %v", env.Result.Input)
	}
}

func TestOpen_InvalidBody(t *testing.T) {
	s := newTestServer(t, 1000)
	w := s.do(t, http.MethodPost, "/ui/open", "not json")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestQuit_NormalizesDecision(t *testing.T) {
	s := newTestServer(t, 1000)
	w := s.do(t, http.MethodPost, "/ui/quit", `{"inspect_only":true,"decision":"Dont_Save","wait_ms":0}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	env := decodeEnvelope(t, w)
	if !env.OK {
		t.Fatalf("expected ok, errors: %v", env.Errors)
	}
	input := env.Result.Input.(map[string]any)
	if input["decision"] != string(domain.DecisionDontSave) {
		t.Errorf("decision = %v, want dont-save", input["decision"])
	}
}

func TestQuit_NegativeWait(t *testing.T) {
	s := newTestServer(t, 1000)
	w := s.do(t, http.MethodPost, "/ui/quit", `{"wait_ms":-1}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestStatusbar_RateLimited(t *testing.T) {
	s := newTestServer(t, 1)

	w := s.do(t, http.MethodPost, "/ui/statusbar", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	env := decodeEnvelope(t, w)
	if env.State["status_text"] != "Ready" {
		t.Errorf("status_text = %v, want Ready", env.State["status_text"])
	}

	w = s.do(t, http.MethodPost, "/ui/statusbar", "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	var apiErr APIError
	json.NewDecoder(w.Body).Decode(&apiErr)
	if apiErr.Code != domain.ErrRateLimitExceeded.Code {
		t.Errorf("error code = %d", apiErr.Code)
	}
}

func TestQuit_HostBusy(t *testing.T) {
	s := newTestServer(t, 1000)
	release, err := s.Handler.Bridge.Guard.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	w := s.do(t, http.MethodPost, "/ui/quit", `{"inspect_only":true}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestViewsAndStatus(t *testing.T) {
	s := newTestServer(t, 1000)
	f := writeBinary(t, "lib.so")
	if _, err := s.Desktop.Open(f); err != nil {
		t.Fatalf("Desktop.Open: %v", err)
	}

	w := s.do(t, http.MethodGet, "/ui/views", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if v := w.Header().Get("X-Endpoint-Api-Version"); v != "1" {
		t.Errorf("X-Endpoint-Api-Version = %q, want 1", v)
	}
	env := decodeEnvelope(t, w)
	if env.State["count"] != float64(1) {
		t.Errorf("count = %v, want 1", env.State["count"])
	}

	w = s.do(t, http.MethodGet, "/status", "")
	var st workflow.StatusSnapshot
	json.NewDecoder(w.Body).Decode(&st)
	if st.Loaded {
		t.Errorf("status = %+v, want not loaded", st)
	}
}

func TestRuns_ListGetEvents(t *testing.T) {
	s := newTestServer(t, 1000)
	f := writeBinary(t, "app.bin")
	body, _ := json.Marshal(map[string]any{"filepath": f})
	env := decodeEnvelope(t, s.do(t, http.MethodPost, "/ui/open", string(body)))
	runID := env.Result.RunID

	w := s.do(t, http.MethodGet, "/api/v1/runs?limit=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var runs []RunRecord
	json.NewDecoder(w.Body).Decode(&runs)
	if len(runs) != 1 || runs[0].RunID != runID {
		t.Fatalf("runs = %+v", runs)
	}

	w = s.do(t, http.MethodGet, "/api/v1/runs/"+runID, "")
	var run RunRecord
	json.NewDecoder(w.Body).Decode(&run)
	if !run.OK || !strings.Contains(string(run.Actions), "ui_context_open_filename") {
		t.Errorf("run = %+v", run)
	}

	w = s.do(t, http.MethodGet, "/api/v1/runs/"+runID+"/events", "")
	var events []domain.WorkflowEvent
	json.NewDecoder(w.Body).Decode(&events)
	if len(events) == 0 {
		t.Error("expected workflow events")
	}

	w = s.do(t, http.MethodGet, "/api/v1/runs/"+runID+"/audit", "")
	var audit []domain.AuditRecord
	json.NewDecoder(w.Body).Decode(&audit)
	if len(audit) == 0 {
		t.Error("expected audit records")
	}
}

func TestRuns_NotFoundAndBadLimit(t *testing.T) {
	s := newTestServer(t, 1000)

	if w := s.do(t, http.MethodGet, "/api/v1/runs/missing", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/api/v1/runs/missing/events", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for events, got %d", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/api/v1/runs?limit=x", ""); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}

	w := s.do(t, http.MethodGet, "/api/v1/runs", "")
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("empty run list = %s, want []", w.Body.String())
	}
}

func TestStreamRuns_SSE_FirstBatch(t *testing.T) {
	s := newTestServer(t, 1000)
	s.do(t, http.MethodPost, "/ui/statusbar", "")

	// Use a cancellable context so the SSE handler returns.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/stream", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	s.Handler.StreamRuns(w, req)

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected text/event-stream, got %s", ct)
	}
	if !strings.Contains(w.Body.String(), "event: run") {
		t.Errorf("expected a run event, got %q", w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, 1000)
	s.do(t, http.MethodPost, "/ui/statusbar", "")

	w := s.do(t, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "uiengine_workflow_runs_total") {
		t.Error("expected workflow run counter in /metrics")
	}
	if !strings.Contains(w.Body.String(), `uiengine_dispatch_total{call="statusbar",outcome="headless"} 1`) {
		t.Errorf("expected headless statusbar dispatch in /metrics")
	}
}

func TestCORSHeaders(t *testing.T) {
	s := newTestServer(t, 1000)
	w := s.do(t, http.MethodOptions, "/ui/open", "")

	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS origin *")
	}
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204 for OPTIONS, got %d", w.Code)
	}
}
