// Package memhost is an in-memory host: a widget tree, views and contexts held
// in plain Go values. It backs the headless server mode and the workflow tests.
package memhost

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/binjactl/uiengine/internal/host"
)

// ErrDisabled is returned when a disabled control is activated.
var ErrDisabled = errors.New("control is disabled")

// Base carries the fields every in-memory widget shares.
type Base struct {
	mu       sync.Mutex
	class    string
	title    string
	visible  bool
	children []host.Widget
}

func (b *Base) Class() string { return b.class }

func (b *Base) Title() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.title
}

func (b *Base) Visible() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.visible
}

func (b *Base) Children() []host.Widget {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]host.Widget(nil), b.children...)
}

// SetVisible shows or hides the widget.
func (b *Base) SetVisible(v bool) {
	b.mu.Lock()
	b.visible = v
	b.mu.Unlock()
}

// SetTitle changes the widget title.
func (b *Base) SetTitle(title string) {
	b.mu.Lock()
	b.title = title
	b.mu.Unlock()
}

// Add appends child widgets.
func (b *Base) Add(children ...host.Widget) {
	b.mu.Lock()
	b.children = append(b.children, children...)
	b.mu.Unlock()
}

// Button is an in-memory push button.
type Button struct {
	Base
	text    string
	enabled bool
	clicks  int
	OnClick func()
}

// NewButton returns a visible, enabled button.
func NewButton(label string, onClick func()) *Button {
	return &Button{Base: Base{class: "QPushButton", visible: true}, text: label, enabled: true, OnClick: onClick}
}

func (b *Button) Text() string { return b.text }

func (b *Button) Enabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enabled
}

// SetEnabled enables or disables the button.
func (b *Button) SetEnabled(v bool) {
	b.mu.Lock()
	b.enabled = v
	b.mu.Unlock()
}

func (b *Button) Click() error {
	b.mu.Lock()
	if !b.enabled {
		b.mu.Unlock()
		return ErrDisabled
	}
	b.clicks++
	fn := b.OnClick
	b.mu.Unlock()
	if fn != nil {
		fn()
	}
	return nil
}

// Clicks reports how often the button was clicked.
func (b *Button) Clicks() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clicks
}

// ComboBox is an in-memory drop-down.
type ComboBox struct {
	Base
	items   []string
	current int
}

// NewComboBox returns a visible combo with the first item selected.
func NewComboBox(items ...string) *ComboBox {
	return &ComboBox{Base: Base{class: "QComboBox", visible: true}, items: items}
}

func (c *ComboBox) Count() int { return len(c.items) }

func (c *ComboBox) ItemText(i int) string {
	if i < 0 || i >= len(c.items) {
		return ""
	}
	return c.items[i]
}

func (c *ComboBox) CurrentText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ItemText(c.current)
}

func (c *ComboBox) SetCurrentIndex(i int) error {
	if i < 0 || i >= len(c.items) {
		return errors.New("combo index out of range")
	}
	c.mu.Lock()
	c.current = i
	c.mu.Unlock()
	return nil
}

// Label is an in-memory text label with an optional screen position.
type Label struct {
	Base
	text string
	x, y int
}

// NewLabel returns a visible label at (x, y).
func NewLabel(text string, x, y int) *Label {
	return &Label{Base: Base{class: "QLabel", visible: true}, text: text, x: x, y: y}
}

func (l *Label) Text() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.text
}

// SetText replaces the label text.
func (l *Label) SetText(s string) {
	l.mu.Lock()
	l.text = s
	l.mu.Unlock()
}

func (l *Label) GlobalPos() (int, int) { return l.x, l.y }

// ProgressBar is an in-memory progress indicator.
type ProgressBar struct {
	Base
	format     string
	value, max int
}

// NewProgressBar returns a visible progress bar.
func NewProgressBar(format string, value, max int) *ProgressBar {
	return &ProgressBar{Base: Base{class: "QProgressBar", visible: true}, format: format, value: value, max: max}
}

func (p *ProgressBar) Format() string { return p.format }
func (p *ProgressBar) Value() int     { return p.value }
func (p *ProgressBar) Maximum() int   { return p.max }

// Action is an in-memory window action.
type Action struct {
	mu        sync.Mutex
	text      string
	enabled   bool
	triggered int
	OnTrigger func()
}

// NewAction returns an enabled action.
func NewAction(text string, onTrigger func()) *Action {
	return &Action{text: text, enabled: true, OnTrigger: onTrigger}
}

func (a *Action) Text() string { return a.text }

func (a *Action) Enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

// SetEnabled enables or disables the action.
func (a *Action) SetEnabled(v bool) {
	a.mu.Lock()
	a.enabled = v
	a.mu.Unlock()
}

func (a *Action) Trigger() {
	a.mu.Lock()
	a.triggered++
	fn := a.OnTrigger
	a.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Triggered reports how often the action fired.
func (a *Action) Triggered() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.triggered
}

// StatusBar is an in-memory status bar.
type StatusBar struct {
	mu       sync.Mutex
	message  string
	children []host.Widget
}

func (s *StatusBar) CurrentMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message
}

// ShowMessage sets the transient status message.
func (s *StatusBar) ShowMessage(msg string) {
	s.mu.Lock()
	s.message = msg
	s.mu.Unlock()
}

func (s *StatusBar) Children() []host.Widget {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]host.Widget(nil), s.children...)
}

// Add appends status bar widgets.
func (s *StatusBar) Add(children ...host.Widget) {
	s.mu.Lock()
	s.children = append(s.children, children...)
	s.mu.Unlock()
}

// Window is an in-memory top-level window.
type Window struct {
	Base
	actions  []host.Action
	status   *StatusBar
	closed    bool
	accepted  bool
	dismissed bool
	OnAccept  func()
	OnClose   func() bool
}

// NewWindow returns a visible top-level window of the given class.
func NewWindow(class, title string) *Window {
	return &Window{Base: Base{class: class, title: title, visible: true}}
}

// NewMainWindow returns a visible main window with an empty status bar.
func NewMainWindow(title string) *Window {
	w := NewWindow("MainWindow", title)
	w.status = &StatusBar{}
	return w
}

// NewMessageBox returns a visible message box with one button per label.
// onChoice receives the clicked label; the box hides itself afterwards.
func NewMessageBox(title string, labels []string, onChoice func(label string)) *Window {
	w := NewWindow("QMessageBox", title)
	for _, label := range labels {
		label := label
		w.Add(NewButton(label, func() {
			w.Dismiss()
			if onChoice != nil {
				onChoice(label)
			}
		}))
	}
	return w
}

func (w *Window) Close() error {
	w.mu.Lock()
	fn := w.OnClose
	w.mu.Unlock()
	if fn != nil && !fn() {
		return nil
	}
	w.mu.Lock()
	w.closed = true
	w.visible = false
	w.mu.Unlock()
	return nil
}

func (w *Window) Accept() error {
	w.mu.Lock()
	w.accepted = true
	w.visible = false
	fn := w.OnAccept
	w.mu.Unlock()
	if fn != nil {
		fn()
	}
	return nil
}

// Dismiss hides w for good, the way a dialog goes away once answered.
func (w *Window) Dismiss() {
	w.mu.Lock()
	w.dismissed = true
	w.visible = false
	w.mu.Unlock()
}

// gone reports whether w is hidden after being closed, accepted or dismissed.
func (w *Window) gone() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.visible && (w.closed || w.accepted || w.dismissed)
}

// Accepted reports whether Accept was called.
func (w *Window) Accepted() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.accepted
}

// Closed reports whether Close completed.
func (w *Window) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *Window) Actions() []host.Action {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]host.Action(nil), w.actions...)
}

// AddAction registers an action on the window.
func (w *Window) AddAction(a *Action) {
	w.mu.Lock()
	w.actions = append(w.actions, a)
	w.mu.Unlock()
}

func (w *Window) StatusBar() host.StatusBar {
	if w.status == nil {
		return nil
	}
	return w.status
}

// Status returns the concrete status bar, or nil.
func (w *Window) Status() *StatusBar { return w.status }

type timer struct {
	due time.Time
	seq int
	fn  func()
}

// App is an in-memory Application.
type App struct {
	mu         sync.Mutex
	windows    []host.Window
	active     host.Window
	quitOnLast bool
	timers     []timer
	seq        int
	quits      int
	onQuit     func()
}

// NewApp returns an empty application with quit-on-last-window enabled.
func NewApp() *App {
	return &App{quitOnLast: true}
}

// AddWindow registers a top-level window.
func (a *App) AddWindow(w host.Window) {
	a.mu.Lock()
	a.windows = append(a.windows, w)
	a.mu.Unlock()
}

// SetActive marks w as the active window.
func (a *App) SetActive(w host.Window) {
	a.mu.Lock()
	a.active = w
	a.mu.Unlock()
}

func (a *App) TopLevelWindows() []host.Window {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]host.Window(nil), a.windows...)
}

func (a *App) ActiveWindow() host.Window {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active != nil && a.active.Visible() {
		return a.active
	}
	return nil
}

// ProcessEvents runs every SingleShot callback that is due, in schedule order,
// then drops windows that are gone.
func (a *App) ProcessEvents() {
	now := time.Now()
	a.mu.Lock()
	var due, rest []timer
	for _, t := range a.timers {
		if !t.due.After(now) {
			due = append(due, t)
		} else {
			rest = append(rest, t)
		}
	}
	a.timers = rest
	a.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].seq < due[j].seq })
	for _, t := range due {
		t.fn()
	}
	a.prune()
}

func (a *App) prune() {
	a.mu.Lock()
	defer a.mu.Unlock()
	kept := a.windows[:0]
	for _, w := range a.windows {
		if mw, ok := w.(*Window); ok && mw.gone() {
			if a.active == w {
				a.active = nil
			}
			continue
		}
		kept = append(kept, w)
	}
	for i := len(kept); i < len(a.windows); i++ {
		a.windows[i] = nil
	}
	a.windows = kept
}

func (a *App) QuitOnLastWindowClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.quitOnLast
}

func (a *App) SetQuitOnLastWindowClosed(v bool) {
	a.mu.Lock()
	a.quitOnLast = v
	a.mu.Unlock()
}

func (a *App) SingleShot(delay time.Duration, fn func()) {
	a.mu.Lock()
	a.seq++
	a.timers = append(a.timers, timer{due: time.Now().Add(delay), seq: a.seq, fn: fn})
	a.mu.Unlock()
}

func (a *App) Quit() {
	a.mu.Lock()
	a.quits++
	fn := a.onQuit
	a.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// OnQuit registers fn to run whenever Quit is called.
func (a *App) OnQuit(fn func()) {
	a.mu.Lock()
	a.onQuit = fn
	a.mu.Unlock()
}

// QuitCalls reports how often Quit ran.
func (a *App) QuitCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.quits
}

// Pending reports the number of scheduled callbacks not yet run.
func (a *App) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.timers)
}
