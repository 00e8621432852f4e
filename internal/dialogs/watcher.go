package dialogs

import (
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/binjactl/uiengine/internal/domain"
	"github.com/binjactl/uiengine/internal/host"
	"github.com/binjactl/uiengine/internal/text"
)

// Dialog is one candidate confirmation dialog together with the live
// controls its descriptor was built from.
type Dialog struct {
	domain.DialogDescriptor
	Window  host.Window
	buttons []host.Button
}

// Button returns the live control behind Buttons[i].
func (d Dialog) Button(i int) host.Button {
	if i < 0 || i >= len(d.buttons) {
		return nil
	}
	return d.buttons[i]
}

var rejectTokens = []string{"don't save", "dont save", "discard", "close without saving", "close without save"}

// Scan inspects the visible windows and returns those that look like a
// save/discard/cancel confirmation, in window order.
func Scan(windows []host.Window) []Dialog {
	var out []Dialog
	for _, w := range windows {
		if w == nil || !w.Visible() {
			continue
		}
		d := Dialog{
			DialogDescriptor: domain.DialogDescriptor{
				Title:   w.Title(),
				Kind:    w.Class(),
				Buttons: []domain.DialogButton{},
			},
			Window: w,
		}
		for _, child := range w.Children() {
			b, ok := child.(host.Button)
			if !ok || !b.Visible() {
				continue
			}
			norm := text.NormalizeLabel(b.Text())
			if norm == "" {
				continue
			}
			d.Buttons = append(d.Buttons, domain.DialogButton{Label: b.Text(), NormalizedLabel: norm, Enabled: b.Enabled()})
			d.buttons = append(d.buttons, b)
		}
		if isConfirmation(d.DialogDescriptor) {
			out = append(out, d)
		}
	}
	return out
}

func isConfirmation(d domain.DialogDescriptor) bool {
	title := text.NormalizeLabel(d.Title)
	kind := strings.ToLower(d.Kind)
	messageBox := strings.Contains(kind, "messagebox")
	if len(d.Buttons) == 0 && !messageBox && !strings.Contains(title, "modified") {
		return false
	}
	for _, b := range d.Buttons {
		if strings.Contains(b.NormalizedLabel, "save") || strings.Contains(b.NormalizedLabel, "cancel") || b.NormalizedLabel == "no" {
			return true
		}
		for _, tok := range rejectTokens {
			if strings.Contains(b.NormalizedLabel, tok) {
				return true
			}
		}
	}
	return messageBox && (strings.Contains(title, "modified") || strings.Contains(title, "save"))
}

// Priority orders dialogs for action: message boxes first, then generic
// dialogs, then windows whose title mentions saving or modification.
func Priority(d domain.DialogDescriptor) int {
	kind := strings.ToLower(d.Kind)
	title := text.NormalizeLabel(d.Title)
	switch {
	case strings.Contains(kind, "messagebox"):
		return 0
	case strings.Contains(kind, "dialog"):
		return 1
	case strings.Contains(title, "modified"), strings.Contains(title, "save"):
		return 2
	}
	return 9
}

// SortByPriority orders ds by Priority, keeping window order among equals.
func SortByPriority(ds []Dialog) {
	sort.SliceStable(ds, func(i, j int) bool {
		return Priority(ds[i].DialogDescriptor) < Priority(ds[j].DialogDescriptor)
	})
}

// Descriptors strips the live controls from ds.
func Descriptors(ds []Dialog) []domain.DialogDescriptor {
	out := make([]domain.DialogDescriptor, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.DialogDescriptor)
	}
	return out
}

// Watcher scans an application's windows. Its methods must run on the UI thread.
type Watcher struct {
	app    host.Application
	logger zerolog.Logger
}

// NewWatcher creates a Watcher over app.
func NewWatcher(app host.Application, logger zerolog.Logger) *Watcher {
	return &Watcher{app: app, logger: logger.With().Str("component", "dialogs").Logger()}
}

// Scan returns the confirmation dialogs currently visible.
func (w *Watcher) Scan() []Dialog {
	if w.app == nil {
		return nil
	}
	return Scan(host.VisibleWindows(w.app))
}

// ClickDecision picks the highest-priority visible dialog and presses the
// button matching decision. Misses are recorded once as warnings on r.
func (w *Watcher) ClickDecision(r *domain.WorkflowResult, decision domain.Decision) bool {
	found := w.Scan()
	if len(found) == 0 {
		return false
	}
	SortByPriority(found)
	d := found[0]

	i, ok := ChooseButton(d.Buttons, decision)
	if !ok {
		r.WarnOnce(domain.Message(domain.ErrDecisionUnresolved) + " '" + string(decision) + "'")
		return false
	}
	label := d.Buttons[i].Label
	if !d.Buttons[i].Enabled {
		r.WarnOnce("matched confirmation button '" + label + "' is disabled")
		return false
	}
	if err := d.Button(i).Click(); err != nil {
		r.WarnOnce("clicking confirmation button '" + label + "' failed: " + err.Error())
		return false
	}
	r.Action("clicked_confirmation_button:" + label)
	r.Mutated("click_button", map[string]string{"dialog": d.Title, "button": label, "decision": string(decision)})
	w.logger.Info().Str("dialog", d.Title).Str("button", label).Msg("answered confirmation dialog")
	return true
}
