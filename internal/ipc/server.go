package ipc

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/binjactl/uiengine/internal/metrics"
)

// Server wraps an HTTP server with engine-specific routing.
type Server struct {
	httpServer *http.Server
}

// NewServer creates a Server that binds to the given address. m may be nil,
// in which case /metrics is not served.
func NewServer(h *Handler, m *metrics.Metrics, listenAddr string) *Server {
	mux := http.NewServeMux()

	// Health endpoint.
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// UI workflow endpoints.
	mux.HandleFunc("POST /ui/open", h.Open)
	mux.HandleFunc("POST /ui/quit", h.Quit)
	mux.HandleFunc("POST /ui/statusbar", h.Statusbar)
	mux.HandleFunc("GET /ui/views", h.Views)
	mux.HandleFunc("GET /status", h.Status)

	// Run history endpoints.
	mux.HandleFunc("GET /api/v1/runs", h.ListRuns)
	mux.HandleFunc("GET /api/v1/runs/stream", h.StreamRuns)
	mux.HandleFunc("GET /api/v1/runs/{runID}", h.GetRun)
	mux.HandleFunc("GET /api/v1/runs/{runID}/events", h.ListRunEvents)
	mux.HandleFunc("GET /api/v1/runs/{runID}/audit", h.ListRunAudit)

	if m != nil {
		mux.Handle("GET /metrics", m.Handler())
	}

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           corsMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{
		httpServer: srv,
	}
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins listening for HTTP connections. Blocks until the server stops.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on l. Blocks until the server stops.
func (s *Server) Serve(l net.Listener) error {
	return s.httpServer.Serve(l)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for local desktop app access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
