// Package host declares the narrow interfaces through which the engine observes
// and drives the host application: its widget toolkit, its open views and its
// UI-thread scheduler. Implementations are supplied by the embedding process.
//
// Everything reachable from Application, Widget, View and UIContext must only be
// touched on the host's UI thread. Request goroutines reach it through dispatch.
package host

import "time"

// Widget is a node of the host widget tree.
type Widget interface {
	Class() string
	Title() string
	Visible() bool
	Children() []Widget
}

// Button is a push-button-like control.
type Button interface {
	Widget
	Text() string
	Enabled() bool
	Click() error
}

// ComboBox is a drop-down selector.
type ComboBox interface {
	Widget
	Count() int
	ItemText(i int) string
	CurrentText() string
	SetCurrentIndex(i int) error
}

// Label is a static text control.
type Label interface {
	Widget
	Text() string
}

// ProgressBar is a progress indicator, typically inside a status bar.
type ProgressBar interface {
	Widget
	Format() string
	Value() int
	Maximum() int
}

// Positioned is implemented by widgets that know their global screen position.
type Positioned interface {
	GlobalPos() (x, y int)
}

// Action is a triggerable menu/toolbar action owned by a window.
type Action interface {
	Text() string
	Enabled() bool
	Trigger()
}

// StatusBar is the status area of a main window.
type StatusBar interface {
	CurrentMessage() string
	Children() []Widget
}

// Window is a top-level window.
type Window interface {
	Widget
	Close() error
	Accept() error
	Actions() []Action
	// StatusBar returns nil when the window has none.
	StatusBar() StatusBar
}

// Application is the host's toolkit application object.
type Application interface {
	TopLevelWindows() []Window
	ActiveWindow() Window
	// ProcessEvents runs pending UI events, including due SingleShot callbacks.
	ProcessEvents()
	QuitOnLastWindowClosed() bool
	SetQuitOnLastWindowClosed(enabled bool)
	SingleShot(delay time.Duration, fn func())
	Quit()
}

// View is one open, loaded artifact. A handle may become invalid at any time;
// callers check Valid and degrade to "not found".
type View interface {
	Identity() string
	Filename() string
	ArchitectureName() string
	Valid() bool
	Modified() bool
	SetModified(modified bool) error
	SetArchitecture(name string) error
	// CreateDatabase saves the analysis database to path.
	CreateDatabase(path string) (bool, error)
}

// Frame hosts the view shown in a tab.
type Frame interface {
	CurrentView() View
}

// Tab identifies one tab of a UI context.
type Tab struct {
	ID    string
	Label string
}

// UIContext is one main-window context with its tabs.
type UIContext interface {
	CurrentFrame() (Frame, error)
	Tabs() ([]Tab, error)
	FrameForTab(tab Tab) (Frame, error)
	ActivateTab(tab Tab) error
	// OpenFilename asks the UI to open path, possibly showing an options dialog.
	OpenFilename(path string) (bool, error)
}

// ViewAccessor enumerates and loads views.
type ViewAccessor interface {
	ActiveContext() (UIContext, error)
	AllContexts() ([]UIContext, error)
	// CurrentView is the host-level "current view" used as a last-resort fallback.
	CurrentView() (View, error)
	// Load opens path directly, bypassing the UI.
	Load(path string) (View, error)
}

// Scheduler reports whether a UI thread is running.
type Scheduler interface {
	Running() bool
}

// BlockingScheduler posts fn to the UI thread and blocks until it ran or timeout elapsed.
type BlockingScheduler interface {
	Scheduler
	ExecuteAndWait(fn func(), timeout time.Duration) (completed bool, err error)
}

// PostingScheduler posts fn to the UI thread without waiting.
type PostingScheduler interface {
	Scheduler
	Post(fn func()) error
}

// Host bundles the collaborators the engine needs.
// App is nil when the UI toolkit is unavailable. Scheduler is nil when the
// host has no UI thread; closures then run on the calling goroutine.
type Host struct {
	App       Application
	Views     ViewAccessor
	Scheduler Scheduler
}

// Descendants returns every widget below w in depth-first order.
func Descendants(w Widget) []Widget {
	var out []Widget
	var walk func(Widget)
	walk = func(n Widget) {
		for _, c := range n.Children() {
			if c == nil {
				continue
			}
			out = append(out, c)
			walk(c)
		}
	}
	if w != nil {
		walk(w)
	}
	return out
}

// VisibleWindows returns the visible top-level windows of app.
func VisibleWindows(app Application) []Window {
	if app == nil {
		return nil
	}
	var out []Window
	for _, w := range app.TopLevelWindows() {
		if w != nil && w.Visible() {
			out = append(out, w)
		}
	}
	return out
}
