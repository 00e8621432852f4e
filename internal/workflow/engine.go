package workflow

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/binjactl/uiengine/internal/dialogs"
	"github.com/binjactl/uiengine/internal/dispatch"
	"github.com/binjactl/uiengine/internal/domain"
	"github.com/binjactl/uiengine/internal/host"
	"github.com/binjactl/uiengine/internal/views"
)

// Timing holds the dispatch bounds and the polling cadence of the workflows.
type Timing struct {
	InspectTimeout   time.Duration
	OpenTimeout      time.Duration
	StatusbarTimeout time.Duration

	// Quit waits for wait_ms plus one of these margins.
	QuitInspectMargin time.Duration
	QuitMargin        time.Duration
	QuitSaveMargin    time.Duration

	OptionsDialogWait time.Duration
	FinalPassWait     time.Duration
	PollInterval      time.Duration
	QuitPollInterval  time.Duration
	QuietTicks        int
	PumpCycles        int
	PumpInterval      time.Duration
}

// DefaultTiming returns the bounds used when nothing is configured.
func DefaultTiming() Timing {
	return Timing{
		InspectTimeout:    15 * time.Second,
		OpenTimeout:       45 * time.Second,
		StatusbarTimeout:  15 * time.Second,
		QuitInspectMargin: 5 * time.Second,
		QuitMargin:        20 * time.Second,
		QuitSaveMargin:    180 * time.Second,
		OptionsDialogWait: 6 * time.Second,
		FinalPassWait:     8 * time.Second,
		PollInterval:      50 * time.Millisecond,
		QuitPollInterval:  30 * time.Millisecond,
		QuietTicks:        5,
		PumpCycles:        10,
		PumpInterval:      20 * time.Millisecond,
	}
}

// Options configures an Engine. Zero fields take defaults.
type Options struct {
	Timing            Timing
	DatabaseExtension string
	ViewTypeScorer    ComboScorer
	PlatformScorer    ComboScorer
	Resolver          *views.Resolver
}

// Engine runs the workflows against one host. Public methods may be called
// from any goroutine; their bodies run on the UI thread through the dispatcher.
type Engine struct {
	host           *host.Host
	dispatcher     *dispatch.Dispatcher
	registry       *views.Registry
	watcher        *dialogs.Watcher
	current        *views.Current
	timing         Timing
	dbExt          string
	viewScorer     ComboScorer
	platformScorer ComboScorer
	logger         zerolog.Logger
}

// NewEngine wires an Engine for h.
func NewEngine(h *host.Host, d *dispatch.Dispatcher, opts Options, logger zerolog.Logger) *Engine {
	if h == nil {
		h = &host.Host{}
	}
	if opts.Timing == (Timing{}) {
		opts.Timing = DefaultTiming()
	}
	if opts.DatabaseExtension == "" {
		opts.DatabaseExtension = DefaultDatabaseExtension
	}
	if opts.ViewTypeScorer == nil {
		opts.ViewTypeScorer = DefaultViewTypeScorer()
	}
	if opts.PlatformScorer == nil {
		opts.PlatformScorer = DefaultPlatformScorer()
	}
	return &Engine{
		host:           h,
		dispatcher:     d,
		registry:       views.NewRegistry(h.Views, opts.Resolver, logger),
		watcher:        dialogs.NewWatcher(h.App, logger),
		current:        &views.Current{},
		timing:         opts.Timing,
		dbExt:          opts.DatabaseExtension,
		viewScorer:     opts.ViewTypeScorer,
		platformScorer: opts.PlatformScorer,
		logger:         logger.With().Str("component", "workflow").Logger(),
	}
}

// Current exposes the engine's current-view holder.
func (e *Engine) Current() *views.Current { return e.current }

// Timing returns the configured bounds.
func (e *Engine) Timing() Timing { return e.timing }

// run dispatches body and folds a dispatch failure into a fresh result.
// body builds and returns its own result, so an abandoned closure never
// writes into the caller's value.
func (e *Engine) run(ctx context.Context, name string, timeout time.Duration, body func() domain.WorkflowResult) domain.WorkflowResult {
	out := dispatch.RunAndWait(ctx, e.dispatcher, name, timeout, body)
	if !out.OK() {
		r := domain.NewWorkflowResult()
		out.Record(&r)
		r.Set("timed_out", out.TimedOut)
		return r.Finalize()
	}
	r := out.Value
	if out.Headless {
		r.Actionf("ran_%s_workflow_headless", name)
	} else {
		r.Actionf("ran_%s_workflow_on_ui_thread", name)
	}
	return r.Finalize()
}

// pump processes pending UI events cycles times, PumpInterval apart.
func (e *Engine) pump(app host.Application, cycles int) {
	if app == nil {
		return
	}
	for i := 0; i < cycles; i++ {
		app.ProcessEvents()
		time.Sleep(e.timing.PumpInterval)
	}
}

// currentView returns the engine's current view, falling back to the host's.
func (e *Engine) currentView() host.View {
	if v := e.current.Get(); v != nil {
		return v
	}
	if e.host.Views == nil {
		return nil
	}
	v, err := e.host.Views.CurrentView()
	if err != nil || v == nil || !v.Valid() {
		return nil
	}
	return v
}

func windowInfos(app host.Application) []domain.WindowInfo {
	out := []domain.WindowInfo{}
	for _, w := range host.VisibleWindows(app) {
		out = append(out, domain.WindowInfo{Class: w.Class(), Title: w.Title()})
	}
	return out
}

func activeTitle(app host.Application) any {
	if app == nil {
		return nil
	}
	if w := app.ActiveWindow(); w != nil {
		return w.Title()
	}
	return nil
}

func isMainWindow(w host.Window) bool {
	return strings.Contains(strings.ToLower(w.Class()), "mainwindow")
}
