package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/binjactl/uiengine/internal/dispatch"
	"github.com/binjactl/uiengine/internal/domain"
	"github.com/binjactl/uiengine/internal/host"
	"github.com/binjactl/uiengine/internal/views"
)

// Status text sources.
const (
	SourceStatusBar       = "status_bar"
	SourceBottomRowLabels = "bottom_row_labels"
	SourceNone            = "none"
)

// StatusbarRequest are the inputs of ReadStatusbar.
type StatusbarRequest struct {
	AllWindows    bool          `json:"all_windows"`
	IncludeHidden bool          `json:"include_hidden"`
	Timeout       time.Duration `json:"-"`
}

// WindowStatus is the status text read from one window.
type WindowStatus struct {
	Title        string   `json:"title"`
	Class        string   `json:"class"`
	Visible      bool     `json:"visible"`
	StatusText   string   `json:"status_text"`
	StatusItems  []string `json:"status_items"`
	StatusSource string   `json:"status_source"`
}

// ReadStatusbar reports the status bar text of the main windows, selecting
// the active window's entry.
func (e *Engine) ReadStatusbar(ctx context.Context, req StatusbarRequest) domain.WorkflowResult {
	if e.host.App == nil {
		r := domain.NewWorkflowResult()
		r.Fail(domain.ErrGuiUnavailable)
		return r.Finalize()
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.timing.StatusbarTimeout
	}
	return e.run(ctx, "statusbar", timeout, func() domain.WorkflowResult {
		return e.runStatusbar(req)
	})
}

func (e *Engine) runStatusbar(req StatusbarRequest) domain.WorkflowResult {
	r := domain.NewWorkflowResult()
	app := e.host.App

	entries := []WindowStatus{}
	for _, w := range app.TopLevelWindows() {
		if w == nil || (!req.IncludeHidden && !w.Visible()) {
			continue
		}
		if !req.AllWindows && !isMainWindow(w) {
			continue
		}
		entries = append(entries, readWindowStatus(w))
	}

	active := ""
	if w := app.ActiveWindow(); w != nil {
		active = w.Title()
	}
	var selected *WindowStatus
	for i := range entries {
		if active != "" && entries[i].Title == active {
			selected = &entries[i]
			break
		}
	}
	if selected == nil && len(entries) > 0 {
		selected = &entries[0]
	}

	r.Set("windows", entries)
	r.Set("active_window_title", active)
	if selected == nil || len(selected.StatusItems) == 0 {
		r.Set("status_source", SourceNone)
		r.Set("status_text", "")
		r.Set("status_items", []string{})
		r.Warn("no status bar text found")
		return r
	}
	r.Set("status_source", selected.StatusSource)
	r.Set("status_text", selected.StatusText)
	r.Set("status_items", selected.StatusItems)
	return r
}

type itemSet struct {
	items []string
	seen  map[string]bool
}

func (s *itemSet) add(raw string) {
	t := strings.Join(strings.Fields(raw), " ")
	if t == "" || s.seen[t] {
		return
	}
	if s.seen == nil {
		s.seen = map[string]bool{}
	}
	s.seen[t] = true
	s.items = append(s.items, t)
}

func readWindowStatus(w host.Window) WindowStatus {
	ws := WindowStatus{Title: w.Title(), Class: w.Class(), Visible: w.Visible(), StatusSource: SourceNone}
	var set itemSet
	if sb := w.StatusBar(); sb != nil {
		set.add(sb.CurrentMessage())
		for _, c := range sb.Children() {
			if c == nil {
				continue
			}
			for _, n := range append([]host.Widget{c}, host.Descendants(c)...) {
				addStatusWidget(&set, n)
			}
		}
		if len(set.items) > 0 {
			ws.StatusSource = SourceStatusBar
		}
	}
	if len(set.items) == 0 {
		for _, t := range bottomRowLabels(w) {
			set.add(t)
		}
		if len(set.items) > 0 {
			ws.StatusSource = SourceBottomRowLabels
		}
	}
	ws.StatusItems = set.items
	if ws.StatusItems == nil {
		ws.StatusItems = []string{}
	}
	ws.StatusText = strings.Join(ws.StatusItems, " | ")
	return ws
}

func addStatusWidget(set *itemSet, n host.Widget) {
	if !n.Visible() {
		return
	}
	switch c := n.(type) {
	case host.Label:
		set.add(c.Text())
	case host.ProgressBar:
		set.add(c.Format())
		if c.Maximum() > 0 {
			set.add(fmt.Sprintf("%d/%d", c.Value(), c.Maximum()))
		}
	}
}

// bottomRowLabels returns the texts of the visible labels on the lowest row
// of w, left to right. Labels within 2px of the lowest one share its row.
func bottomRowLabels(w host.Window) []string {
	type placed struct {
		text string
		x, y int
	}
	var labels []placed
	maxY := 0
	for _, n := range host.Descendants(w) {
		l, ok := n.(host.Label)
		if !ok || !l.Visible() || strings.TrimSpace(l.Text()) == "" {
			continue
		}
		p, ok := n.(host.Positioned)
		if !ok {
			continue
		}
		x, y := p.GlobalPos()
		if len(labels) == 0 || y > maxY {
			maxY = y
		}
		labels = append(labels, placed{text: l.Text(), x: x, y: y})
	}
	var row []placed
	for _, l := range labels {
		if l.y >= maxY-2 {
			row = append(row, l)
		}
	}
	sort.SliceStable(row, func(i, j int) bool { return row[i].x < row[j].x })
	out := make([]string, 0, len(row))
	for _, l := range row {
		out = append(out, l.text)
	}
	return out
}

// ListViews describes every open view and the engine's current view.
func (e *Engine) ListViews(ctx context.Context) domain.WorkflowResult {
	return e.run(ctx, "views", e.timing.InspectTimeout, func() domain.WorkflowResult {
		r := domain.NewWorkflowResult()
		list := views.DescribeAll(e.registry.ListViews())
		r.Set("views", list)
		r.Set("count", len(list))
		if d, ok := views.Describe(e.current.Get()); ok {
			r.Set("current_view", d)
		} else {
			r.Set("current_view", nil)
		}
		return r
	})
}

// StatusSnapshot is the loaded state reported by Status.
type StatusSnapshot struct {
	Loaded   bool   `json:"loaded"`
	Filename string `json:"filename,omitempty"`
}

// Status reports whether the engine holds a current view.
func (e *Engine) Status(ctx context.Context) StatusSnapshot {
	out := dispatch.RunAndWait(ctx, e.dispatcher, "status", e.timing.InspectTimeout, func() StatusSnapshot {
		v := e.current.Get()
		if v == nil {
			return StatusSnapshot{}
		}
		return StatusSnapshot{Loaded: true, Filename: v.Filename()}
	})
	if !out.OK() {
		return StatusSnapshot{}
	}
	return out.Value
}
