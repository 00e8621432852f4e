package workflow

import (
	"context"
	"strings"
	"time"

	"github.com/binjactl/uiengine/internal/domain"
	"github.com/binjactl/uiengine/internal/host"
	"github.com/binjactl/uiengine/internal/text"
	"github.com/binjactl/uiengine/internal/views"
)

// OpenRequest are the inputs of OpenFile.
type OpenRequest struct {
	Filepath    string `json:"filepath"`
	Platform    string `json:"platform,omitempty"`
	ViewType    string `json:"view_type,omitempty"`
	ClickOpen   bool   `json:"click_open"`
	InspectOnly bool   `json:"inspect_only"`
	// Timeout overrides the dispatch bound when positive.
	Timeout time.Duration `json:"-"`
}

// OpenFile brings req.Filepath into a view: it reuses a matching tab, asks the
// UI to open the file, or loads it directly, and configures any "Open with
// Options" dialog on the way.
func (e *Engine) OpenFile(ctx context.Context, req OpenRequest) domain.WorkflowResult {
	if e.host.App == nil {
		r := domain.NewWorkflowResult()
		r.Fail(domain.ErrGuiUnavailable)
		return r.Finalize()
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.timing.OpenTimeout
		if req.InspectOnly {
			timeout = e.timing.InspectTimeout
		}
	}
	return e.run(ctx, "open", timeout, func() domain.WorkflowResult {
		return e.runOpen(req)
	})
}

type openRun struct {
	e       *Engine
	req     OpenRequest
	target  string
	r       *domain.WorkflowResult
	fsm     *tracker
	dialog  OptionsDialogState
	// handled holds dialogs answered and not hidden since.
	handled   map[host.Window]bool
	rehandles int
	loaded    host.View
}

func (e *Engine) runOpen(req OpenRequest) domain.WorkflowResult {
	r := domain.NewWorkflowResult()
	o := &openRun{
		e:       e,
		req:     req,
		target:  strings.TrimSpace(req.Filepath),
		r:       &r,
		fsm:     openMachine.start(&r),
		handled: map[host.Window]bool{},
	}
	app := e.host.App
	r.Set("visible_windows_before", windowInfos(app))
	r.Set("active_window_before", activeTitle(app))

	uiOpened := false
	if dlg := findOptionsDialog(app); dlg != nil {
		o.fsm.to(StateWaitingForOptionsDialog)
		o.handle(dlg, "detected_open_with_options_dialog_at_entry")
	} else {
		r.Action("no_open_with_options_dialog")
		switch {
		case req.InspectOnly:
			r.Action("inspect_only_no_load")
		case o.target == "":
			r.Warn("no filepath provided; nothing to open")
		default:
			var ok bool
			if uiOpened, ok = o.open(); !ok {
				o.fsm.to(StateDone)
				return r
			}
		}
	}

	if uiOpened || o.dialog.OpenClicked {
		if o.fsm.current() != StateWaitingForOptionsDialog {
			o.fsm.to(StateWaitingForOptionsDialog)
		}
		o.pollAfterOpen()
	}

	o.fsm.to(StateConfirmingLoadedView)
	if req.ClickOpen && !req.InspectOnly {
		o.finalPass()
	}
	o.confirm()
	o.fsm.to(StateDone)

	r.Set("dialog", o.dialog)
	r.Set("visible_windows_after", windowInfos(app))
	r.Set("active_window_after", activeTitle(app))
	return r
}

func (o *openRun) handle(dlg host.Window, detected string) {
	o.handled[dlg] = true
	o.e.handleOptionsDialog(o.r, &o.dialog, dlg, detected, o.req)
}

// forgetHidden drops dialogs that were hidden since they were handled, so a
// dialog the host shows again is treated as new.
func (o *openRun) forgetHidden() {
	for w := range o.handled {
		if !w.Visible() {
			delete(o.handled, w)
		}
	}
}

// viewTypeNotApplied warns that the requested view type had no dialog to go
// through.
func (o *openRun) viewTypeNotApplied(how string) {
	if o.req.ViewType != "" {
		o.r.Warnf("no open dialog visible; view type '%s' was not applied (%s)", o.req.ViewType, how)
	}
}

// open reuses, UI-opens or loads the target. ok is false when the direct
// load failed and the run must stop.
func (o *openRun) open() (uiOpened, ok bool) {
	e, r := o.e, o.r
	o.fsm.to(StateLookingForExistingTab)
	if tab, found := e.registry.FindOpenTab(o.target); found {
		o.fsm.to(StateReusingTab)
		if err := tab.Context.ActivateTab(tab.Tab); err != nil {
			r.Warnf("unable to activate existing tab: %v", err)
		}
		r.Action("reused_existing_tab")
		o.viewTypeNotApplied("existing tab reused")
		o.loaded = tab.View
		return false, true
	}

	o.fsm.to(StateUIOpenAttempt)
	if o.uiOpen() {
		return true, true
	}

	o.fsm.to(StateLowLevelLoadFallback)
	if e.host.Views == nil {
		r.Fail(domain.WrapEngineError(domain.ErrLoadFailure.Code, domain.ErrLoadFailure.Message,
			domain.ErrGuiUnavailable))
		return false, false
	}
	v, err := e.host.Views.Load(o.target)
	if err == nil && (v == nil || !v.Valid()) {
		err = domain.ErrViewNotFound
	}
	if err != nil {
		r.Fail(domain.WrapEngineError(domain.ErrLoadFailure.Code, domain.ErrLoadFailure.Message, err))
		return false, false
	}
	r.Action("low_level_load")
	r.Mutated("load", map[string]string{"path": o.target, "view": v.Identity()})
	o.viewTypeNotApplied("direct load defaults used")
	o.loaded = v
	return false, true
}

// uiOpen asks each UI context, active first, to open the target.
func (o *openRun) uiOpen() bool {
	contexts := o.e.registry.Contexts()
	if len(contexts) == 0 {
		o.r.Warn("ui_context_open_filename: no-uicontext")
		return false
	}
	reason := "returned-false"
	for _, c := range contexts {
		ok, err := c.OpenFilename(o.target)
		if err != nil {
			reason = err.Error()
			continue
		}
		if ok {
			o.e.host.App.ProcessEvents()
			o.r.Action("ui_context_open_filename")
			o.r.Mutated("ui_open", map[string]string{"path": o.target})
			return true
		}
	}
	o.r.Warnf("ui_context_open_filename: %s", reason)
	return false
}

// pollAfterOpen waits for the options dialog or the loaded view, handling
// every dialog that shows up, or shows up again, in the meantime.
func (o *openRun) pollAfterOpen() {
	app := o.e.host.App
	deadline := time.Now().Add(o.e.timing.OptionsDialogWait)
	for time.Now().Before(deadline) {
		app.ProcessEvents()
		o.forgetHidden()
		if dlg := findOptionsDialog(app); dlg != nil && !o.handled[dlg] {
			o.handle(dlg, "detected_open_with_options_dialog_after_open")
			continue
		}
		if o.loadedMatches() {
			return
		}
		time.Sleep(o.e.timing.PollInterval)
	}
}

// finalPass handles any visible options dialog on every tick, including one
// that lingers after its Open click, until the target is loaded.
func (o *openRun) finalPass() {
	app := o.e.host.App
	deadline := time.Now().Add(o.e.timing.FinalPassWait)
poll:
	for time.Now().Before(deadline) {
		app.ProcessEvents()
		o.forgetHidden()
		dlg := findOptionsDialog(app)
		switch {
		case dlg != nil && !o.handled[dlg]:
			o.fsm.to(StateWaitingForOptionsDialog)
			o.handle(dlg, "detected_open_with_options_dialog_in_final_pass")
			o.fsm.to(StateConfirmingLoadedView)
		case dlg != nil:
			o.rehandles++
			detected := ""
			if o.rehandles == 1 {
				detected = "rehandled_open_with_options_dialog_in_final_pass"
			}
			o.e.handleOptionsDialog(o.r, &o.dialog, dlg, detected, o.req)
		case o.target == "" || o.loadedMatches():
			break poll
		}
		time.Sleep(o.e.timing.PollInterval)
	}
	if o.rehandles > 0 {
		o.r.Set("final_pass_rehandles", o.rehandles)
	}
	if findOptionsDialog(app) != nil {
		o.r.Warn("open dialog remained visible after final resolution pass")
	}
}

func (o *openRun) loadedMatches() bool {
	if o.target == "" {
		return false
	}
	res := o.e.registry.Resolver()
	if o.loaded != nil && res.MatchTier(o.loaded, o.target) == domain.MatchExact {
		return true
	}
	for _, v := range o.e.registry.ListViews() {
		if res.MatchTier(v, o.target) == domain.MatchExact {
			o.loaded = v
			return true
		}
	}
	return false
}

// resolveLoaded picks the view the run ended up with: an exact match for the
// target, else the current view, else the registry's preferred view.
func (o *openRun) resolveLoaded() host.View {
	if o.loadedMatches() {
		return o.loaded
	}
	if o.loaded != nil && o.loaded.Valid() {
		return o.loaded
	}
	if v := o.e.currentView(); v != nil {
		return v
	}
	return o.e.registry.SelectPreferred(o.e.registry.ListViews(), o.target)
}

func (o *openRun) confirm() {
	e, r, req := o.e, o.r, o.req
	v := o.resolveLoaded()
	if v == nil {
		r.Set("loaded_filename", nil)
		r.Set("loaded_arch", nil)
		if o.target != "" {
			r.Warn("no loaded filename reported")
			o.suggest()
		}
		return
	}

	if req.Platform != "" && !req.InspectOnly {
		o.applyPlatform(v)
	}
	if !req.InspectOnly {
		e.current.Set(v)
		r.Action("set_current_view")
	}
	if d, ok := views.Describe(v); ok {
		r.Set("view", d)
	}
	r.Set("loaded_filename", v.Filename())
	r.Set("loaded_arch", v.ArchitectureName())

	if o.target != "" && e.registry.Resolver().MatchTier(v, o.target) != domain.MatchExact {
		r.Warnf("loaded filename differs (expected %s, got %s)", o.target, v.Filename())
		o.suggest()
	}
}

func (o *openRun) applyPlatform(v host.View) {
	want := text.NormalizeToken(o.req.Platform)
	if text.NormalizeToken(v.ArchitectureName()) == want {
		return
	}
	if err := v.SetArchitecture(o.req.Platform); err != nil {
		o.r.Warnf("unable to set platform '%s' on loaded view: %v", o.req.Platform, err)
	} else {
		o.r.Action("set_loaded_view_arch")
		o.r.Mutated("set_arch", map[string]string{"view": v.Identity(), "arch": o.req.Platform})
	}
	if got := v.ArchitectureName(); text.NormalizeToken(got) != want {
		o.r.Warnf("loaded arch (%s) differs from requested platform (%s)", got, o.req.Platform)
	}
}

func (o *openRun) suggest() {
	if s := views.Suggest(o.e.registry.ListViews(), o.target, 3); len(s) > 0 {
		o.r.Warnf("did you mean: %s", strings.Join(s, ", "))
	}
}
