package workflow

import (
	"fmt"
	"strings"

	"github.com/binjactl/uiengine/internal/domain"
	"github.com/binjactl/uiengine/internal/host"
	"github.com/binjactl/uiengine/internal/text"
)

// ComboScorer rates how likely a combo box is the control for a requested
// value. items are normalized tokens; match is the index FindBestIndex chose.
// The highest score wins; ties keep the earlier combo.
type ComboScorer interface {
	Score(items []string, match int, wanted string) int
}

// ViewTypeScorer prefers small pickers offering both "raw" and "mapped" and
// penalizes boxes listing analysis settings.
type ViewTypeScorer struct {
	ExactBonus      int
	RawMappedBonus  int
	SmallMax        int
	SmallBonus      int
	LargeMin        int
	LargePenalty    int
	AnalysisPenalty int
}

// DefaultViewTypeScorer returns the tuned weights.
func DefaultViewTypeScorer() ViewTypeScorer {
	return ViewTypeScorer{
		ExactBonus:      100,
		RawMappedBonus:  80,
		SmallMax:        6,
		SmallBonus:      20,
		LargeMin:        21,
		LargePenalty:    60,
		AnalysisPenalty: 100,
	}
}

func (s ViewTypeScorer) Score(items []string, match int, wanted string) int {
	score := 0
	if items[match] == text.NormalizeToken(wanted) {
		score += s.ExactBonus
	}
	if hasRawAndMapped(items) {
		score += s.RawMappedBonus
	}
	if len(items) <= s.SmallMax {
		score += s.SmallBonus
	}
	if len(items) >= s.LargeMin {
		score -= s.LargePenalty
	}
	for _, it := range items {
		if strings.HasPrefix(it, "analysis.") {
			score -= s.AnalysisPenalty
			break
		}
	}
	return score
}

// PlatformScorer prefers long enumerations of instruction-set names and
// rejects anything that looks like the view-type picker.
type PlatformScorer struct {
	ExactBonus       int
	LargeMin         int
	LargeBonus       int
	ArchPrefixes     []string
	ArchBonus        int
	RawMappedPenalty int
}

// DefaultPlatformScorer returns the tuned weights.
func DefaultPlatformScorer() PlatformScorer {
	return PlatformScorer{
		ExactBonus:       100,
		LargeMin:         12,
		LargeBonus:       20,
		ArchPrefixes:     []string{"x86", "arm", "mips"},
		ArchBonus:        20,
		RawMappedPenalty: 200,
	}
}

func (s PlatformScorer) Score(items []string, match int, wanted string) int {
	score := 0
	if items[match] == text.NormalizeToken(wanted) {
		score += s.ExactBonus
	}
	if len(items) >= s.LargeMin {
		score += s.LargeBonus
	}
	if anyPrefix(items, s.ArchPrefixes) {
		score += s.ArchBonus
	}
	if hasRawAndMapped(items) {
		score -= s.RawMappedPenalty
	}
	return score
}

func hasRawAndMapped(items []string) bool {
	raw, mapped := false, false
	for _, it := range items {
		raw = raw || it == "raw"
		mapped = mapped || it == "mapped"
	}
	return raw && mapped
}

func anyPrefix(items, prefixes []string) bool {
	for _, it := range items {
		for _, p := range prefixes {
			if strings.HasPrefix(it, p) {
				return true
			}
		}
	}
	return false
}

func comboItems(c host.ComboBox) []string {
	out := make([]string, c.Count())
	for i := range out {
		out[i] = c.ItemText(i)
	}
	return out
}

func normalizeAll(items []string) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = text.NormalizeToken(it)
	}
	return out
}

// selectCombo returns the best-scoring combo offering wanted, skipping exclude.
func selectCombo(combos []host.ComboBox, wanted string, scorer ComboScorer, exclude host.ComboBox) (host.ComboBox, int) {
	var best host.ComboBox
	bestIdx, bestScore := -1, 0
	for _, c := range combos {
		if exclude != nil && c == exclude {
			continue
		}
		items := comboItems(c)
		idx := text.FindBestIndex(items, wanted)
		if idx < 0 {
			continue
		}
		score := scorer.Score(normalizeAll(items), idx, wanted)
		if best == nil || score > bestScore {
			best, bestIdx, bestScore = c, idx, score
		}
	}
	return best, bestIdx
}

// ComboChange describes one attempt to set a combo box.
type ComboChange struct {
	Requested string `json:"requested"`
	Changed   bool   `json:"changed"`
	Before    string `json:"before,omitempty"`
	After     string `json:"after,omitempty"`
	Index     int    `json:"index"`
	Reason    string `json:"reason,omitempty"`
}

// OptionsDialogState summarizes how the "Open with Options" dialog was handled.
type OptionsDialogState struct {
	Present         bool         `json:"present"`
	Title           string       `json:"title,omitempty"`
	ViewTypeSet     *ComboChange `json:"view_type_set,omitempty"`
	PlatformSet     *ComboChange `json:"platform_set,omitempty"`
	OpenButtonFound bool         `json:"open_button_found"`
	OpenClicked     bool         `json:"open_clicked"`
}

// findOptionsDialog returns the visible "Open with Options" dialog, if any.
func findOptionsDialog(app host.Application) host.Window {
	for _, w := range host.VisibleWindows(app) {
		if strings.Contains(strings.ToLower(w.Title()), "open with options") ||
			strings.Contains(strings.ToLower(w.Class()), "optionsdialog") {
			return w
		}
	}
	return nil
}

// handleOptionsDialog selects the requested view type and platform in dlg
// and, unless the request only inspects, presses Open.
func (e *Engine) handleOptionsDialog(r *domain.WorkflowResult, st *OptionsDialogState, dlg host.Window, detected string, req OpenRequest) {
	app := e.host.App
	st.Present = true
	st.Title = dlg.Title()
	if detected != "" {
		r.Action(detected)
	}

	var combos []host.ComboBox
	var buttons []host.Button
	for _, w := range host.Descendants(dlg) {
		switch c := w.(type) {
		case host.ComboBox:
			combos = append(combos, c)
		case host.Button:
			buttons = append(buttons, c)
		}
	}

	var viewCombo host.ComboBox
	if req.ViewType != "" {
		var idx int
		viewCombo, idx = selectCombo(combos, req.ViewType, e.viewScorer, nil)
		if viewCombo == nil {
			st.ViewTypeSet = &ComboChange{Requested: req.ViewType, Index: -1, Reason: "view-type-control-not-present"}
			r.WarnOnce(fmt.Sprintf("%s: view type '%s'", domain.Message(domain.ErrElementNotFound), req.ViewType))
		} else {
			st.ViewTypeSet = e.setCombo(r, viewCombo, idx, req.ViewType, "view_type")
			if st.ViewTypeSet.Changed {
				r.Action("set_view_type")
			}
		}
	}
	if viewCombo == nil {
		for _, c := range combos {
			if hasRawAndMapped(normalizeAll(comboItems(c))) {
				viewCombo = c
				break
			}
		}
	}

	if req.Platform != "" {
		platformCombo, idx := selectCombo(combos, req.Platform, e.platformScorer, viewCombo)
		if platformCombo == nil {
			st.PlatformSet = &ComboChange{Requested: req.Platform, Index: -1, Reason: "platform-control-not-present-or-value-missing"}
			r.WarnOnce(fmt.Sprintf("%s: platform '%s'", domain.Message(domain.ErrElementNotFound), req.Platform))
		} else {
			st.PlatformSet = e.setCombo(r, platformCombo, idx, req.Platform, "platform")
			if st.PlatformSet.Changed {
				r.Action("set_platform")
			}
		}
	}

	if req.InspectOnly || !req.ClickOpen {
		return
	}

	var open host.Button
	for _, b := range buttons {
		if text.NormalizeLabel(b.Text()) == "open" {
			open = b
			break
		}
	}
	st.OpenButtonFound = open != nil
	switch {
	case open == nil:
		r.WarnOnce(domain.Message(domain.ErrElementNotFound) + ": open button")
		return
	case !open.Enabled():
		r.WarnOnce("open button is disabled")
		return
	}
	if err := open.Click(); err != nil {
		r.Warnf("open button click failed: %v", err)
		return
	}
	e.pump(app, e.timing.PumpCycles)
	st.OpenClicked = true
	r.Action("clicked_open_button")
	r.Mutated("click_button", map[string]string{"dialog": st.Title, "button": open.Text()})

	if !dlg.Visible() {
		return
	}
	if err := dlg.Accept(); err != nil {
		r.Warnf("open dialog accept() fallback failed: %v", err)
		return
	}
	e.pump(app, e.timing.PumpCycles)
	if !dlg.Visible() {
		r.Action("accepted_open_dialog")
		r.Mutated("accept_dialog", map[string]string{"dialog": st.Title})
	}
}

func (e *Engine) setCombo(r *domain.WorkflowResult, c host.ComboBox, idx int, requested, field string) *ComboChange {
	ch := &ComboChange{Requested: requested, Index: idx, Before: c.CurrentText()}
	if err := c.SetCurrentIndex(idx); err != nil {
		ch.Reason = err.Error()
		r.Warnf("unable to set %s to '%s': %v", field, requested, err)
		return ch
	}
	e.host.App.ProcessEvents()
	ch.After = c.CurrentText()
	ch.Changed = ch.Before != ch.After
	if ch.Changed {
		r.Mutated("set_combo", map[string]string{"field": field, "value": ch.After})
	}
	return ch
}
