package workflow

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/binjactl/uiengine/internal/dialogs"
	"github.com/binjactl/uiengine/internal/domain"
	"github.com/binjactl/uiengine/internal/host"
	"github.com/binjactl/uiengine/internal/text"
	"github.com/binjactl/uiengine/internal/views"
)

const (
	defaultQuitWait  = 2000 * time.Millisecond
	defaultQuitDelay = 300 * time.Millisecond
)

// QuitRequest are the inputs of Quit. Zero WaitMs and QuitDelayMs take defaults.
type QuitRequest struct {
	Decision    domain.Decision `json:"decision"`
	MarkDirty   bool            `json:"mark_dirty"`
	InspectOnly bool            `json:"inspect_only"`
	WaitMs      int             `json:"wait_ms"`
	QuitApp     bool            `json:"quit_app"`
	QuitDelayMs int             `json:"quit_delay_ms"`
	// Timeout overrides the dispatch bound when positive.
	Timeout time.Duration `json:"-"`
}

func (q QuitRequest) wait() time.Duration {
	if q.WaitMs <= 0 {
		return defaultQuitWait
	}
	return time.Duration(q.WaitMs) * time.Millisecond
}

func (q QuitRequest) delay() time.Duration {
	if q.QuitDelayMs <= 0 {
		return defaultQuitDelay
	}
	return time.Duration(q.QuitDelayMs) * time.Millisecond
}

// QuitTimeout is how long the caller waits for a quit run: the dialog wait
// plus a margin that is smallest for inspect-only runs and largest when a
// save may happen.
func (e *Engine) QuitTimeout(req QuitRequest) time.Duration {
	if req.Timeout > 0 {
		return req.Timeout
	}
	switch {
	case req.InspectOnly:
		return req.wait() + e.timing.QuitInspectMargin
	case req.Decision == domain.DecisionSave, req.Decision == domain.DecisionAuto, req.Decision == "":
		return req.wait() + e.timing.QuitSaveMargin
	default:
		return req.wait() + e.timing.QuitMargin
	}
}

// Quit closes the current view and answers the save prompt according to the
// resolved decision, optionally quitting the application afterwards.
func (e *Engine) Quit(ctx context.Context, req QuitRequest) domain.WorkflowResult {
	if e.host.App == nil {
		r := domain.NewWorkflowResult()
		r.Fail(domain.ErrGuiUnavailable)
		return r.Finalize()
	}
	return e.run(ctx, "quit", e.QuitTimeout(req), func() domain.WorkflowResult {
		return e.runQuit(req)
	})
}

func (e *Engine) runQuit(req QuitRequest) domain.WorkflowResult {
	r := domain.NewWorkflowResult()
	fsm := quitMachine.start(&r)
	app := e.host.App
	r.Set("inspect_only", req.InspectOnly)
	r.Set("visible_windows_before", windowInfos(app))
	r.Set("active_window_before", activeTitle(app))
	r.Set("quit_on_last_window_closed_before", app.QuitOnLastWindowClosed())

	view := e.currentView()
	loaded := ""
	if view != nil {
		loaded = view.Filename()
	}
	policy := ResolvePolicy(loaded, req.Decision, e.dbExt)
	r.Set("policy", policy)
	decision := policy.ResolvedDecision

	if req.MarkDirty {
		fsm.to(StateMarkDirty)
		e.markDirty(&r, view)
	}
	if !req.InspectOnly && decision == domain.DecisionSave {
		fsm.to(StatePreSave)
		e.preSave(&r, view, policy.SaveTarget)
	}

	before := e.watcher.Scan()
	dialogs.SortByPriority(before)
	r.Set("dialogs_before_action", dialogs.Descriptors(before))

	if !req.InspectOnly {
		app.SetQuitOnLastWindowClosed(false)
		r.Action("set_quit_on_last_window_closed:false")

		fsm.to(StateRequestClose)
		closeRequested := false
		if len(before) == 0 {
			closeRequested = e.requestClose(&r, req.QuitApp)
		}
		fsm.to(StateWatchDialogs)
		e.watchDialogs(&r, decision, req.wait(), closeRequested)
	}

	after := e.watcher.Scan()
	dialogs.SortByPriority(after)
	stuck := len(after) > 0
	r.Set("dialogs_after_action", dialogs.Descriptors(after))
	r.Set("stuck_confirmation", stuck)
	if stuck {
		fsm.to(StateStuckConfirmation)
		if !req.InspectOnly {
			r.Warnf("%s: %s", domain.Message(domain.ErrStuckConfirmation), after[0].Title)
		}
	} else {
		fsm.to(StateResolved)
	}

	if !req.InspectOnly {
		e.releaseCurrent(&r)
	}
	if req.QuitApp && !req.InspectOnly {
		fsm.to(StateScheduleAppQuit)
		d := req.delay()
		app.SingleShot(d, app.Quit)
		r.Actionf("scheduled_app_quit:%dms", d.Milliseconds())
		r.Mutated("schedule_quit", map[string]string{"delay": d.String()})
	}
	fsm.to(StateDone)

	r.Set("visible_windows_after", windowInfos(app))
	r.Set("active_window_after", activeTitle(app))
	r.Set("quit_on_last_window_closed_after", app.QuitOnLastWindowClosed())
	return r
}

func (e *Engine) markDirty(r *domain.WorkflowResult, v host.View) {
	if v == nil {
		r.Warn("no current view available to mark dirty")
		return
	}
	if err := v.SetModified(true); err != nil {
		r.Warnf("mark dirty failed: %v", err)
		return
	}
	r.Action("marked_view_dirty")
	r.Mutated("mark_dirty", map[string]string{"view": v.Identity()})
}

// preSave writes the analysis database to target so the close prompt has
// nothing left to save.
func (e *Engine) preSave(r *domain.WorkflowResult, v host.View, target string) {
	if v == nil {
		r.Warn("save policy selected but no current view is available to save")
		return
	}
	if target == "" {
		r.Warn("save policy selected but the current view has no filename")
		return
	}
	ok, err := v.CreateDatabase(target)
	r.Actionf("pre_saved_database:%t", ok && err == nil)
	switch {
	case err != nil:
		r.Warnf("pre-save failed: %v", err)
		return
	case !ok:
		r.Warnf("pre-save failed: %s", domain.Message(domain.ErrSaveFailed))
		return
	}
	r.Set("saved_to", target)
	r.Mutated("save_database", map[string]string{"view": v.Identity(), "path": target})
	e.logger.Info().Str("path", target).Msg("pre-saved database")
	if err := v.SetModified(false); err != nil {
		r.Warnf("unable to clear modified flag after pre-save: %v", err)
		return
	}
	r.Action("cleared_modified_after_pre_save")
}

// requestClose triggers the main window's "Close Tab" action, or closes every
// main window when the caller allows quitting the application.
func (e *Engine) requestClose(r *domain.WorkflowResult, quitApp bool) bool {
	app := e.host.App
	reason, ok := triggerCloseTab(app)
	if ok {
		r.Action("close_tab_action_queued")
		r.Mutated("trigger_close", map[string]string{"action": "close tab"})
		return true
	}
	r.Actionf("close_tab_unavailable:%s", reason)
	if !quitApp {
		return false
	}
	n := 0
	for _, w := range host.VisibleWindows(app) {
		if !isMainWindow(w) {
			continue
		}
		w := w
		app.SingleShot(0, func() { _ = w.Close() })
		n++
	}
	if n == 0 {
		r.Warn("no main window to close")
		return false
	}
	app.ProcessEvents()
	r.Actionf("queued_close_main_windows:%d", n)
	r.Mutated("close_windows", map[string]string{"count": strconv.Itoa(n)})
	return true
}

func triggerCloseTab(app host.Application) (string, bool) {
	var main host.Window
	for _, w := range host.VisibleWindows(app) {
		if isMainWindow(w) {
			main = w
			break
		}
	}
	if main == nil {
		return "no_main_window", false
	}
	var action host.Action
	for _, a := range main.Actions() {
		label := text.NormalizeLabel(a.Text())
		if label == "close tab" {
			action = a
			break
		}
		if action == nil && strings.Contains(label, "close") && strings.Contains(label, "tab") {
			action = a
		}
	}
	switch {
	case action == nil:
		return "close_tab_action_not_found", false
	case !action.Enabled():
		return "close_tab_action_disabled", false
	}
	app.SingleShot(0, action.Trigger)
	app.ProcessEvents()
	return "", true
}

// watchDialogs answers confirmation dialogs until wait elapses, or until a
// run of quiet ticks shows nothing is left to confirm.
func (e *Engine) watchDialogs(r *domain.WorkflowResult, decision domain.Decision, wait time.Duration, closeRequested bool) {
	app := e.host.App
	deadline := time.Now().Add(wait)
	clicked, quiet := 0, 0
	for time.Now().Before(deadline) {
		app.ProcessEvents()
		if e.watcher.ClickDecision(r, decision) {
			clicked++
			quiet = 0
			e.pump(app, e.timing.PumpCycles)
			continue
		}
		if len(e.watcher.Scan()) > 0 {
			quiet = 0
		} else {
			quiet++
			if quiet >= e.timing.QuietTicks && (closeRequested || clicked > 0) {
				break
			}
		}
		time.Sleep(e.timing.QuitPollInterval)
	}
	r.Set("clicked_buttons", clicked)
	if clicked == 0 && len(e.watcher.Scan()) == 0 {
		r.Action("no_confirmation_dialog_detected_after_close")
	}
}

// releaseCurrent forgets the current view once the host no longer lists it.
func (e *Engine) releaseCurrent(r *domain.WorkflowResult) {
	if v := e.current.Get(); v != nil && views.FindByID(e.registry.ListViews(), v.Identity()) != nil {
		return
	}
	if e.current.Clear() {
		r.Action("cleared_current_view")
	}
}
