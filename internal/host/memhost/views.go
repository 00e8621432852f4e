package memhost

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/binjactl/uiengine/internal/host"
)

// ErrInvalidView is returned by operations on a closed view.
var ErrInvalidView = errors.New("view is no longer valid")

var viewSeq atomic.Int64

// View is an in-memory loaded artifact.
type View struct {
	mu       sync.Mutex
	id       string
	filename string
	arch     string
	valid    bool
	modified bool
	saves    []string

	// KnownArchitectures limits SetArchitecture when non-empty.
	KnownArchitectures []string
	// SaveFunc overrides CreateDatabase; the default writes an empty file.
	SaveFunc func(path string) (bool, error)
}

// NewView returns a valid view of filename with the given architecture.
func NewView(filename, arch string) *View {
	return &View{
		id:       fmt.Sprintf("view-%d", viewSeq.Add(1)),
		filename: filename,
		arch:     arch,
		valid:    true,
	}
}

func (v *View) Identity() string { return v.id }
func (v *View) Filename() string { return v.filename }

func (v *View) ArchitectureName() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.arch
}

func (v *View) Valid() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.valid
}

// Invalidate marks the handle as closed by the host.
func (v *View) Invalidate() {
	v.mu.Lock()
	v.valid = false
	v.mu.Unlock()
}

func (v *View) Modified() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.modified
}

func (v *View) SetModified(m bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.valid {
		return ErrInvalidView
	}
	v.modified = m
	return nil
}

func (v *View) SetArchitecture(name string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.valid {
		return ErrInvalidView
	}
	if len(v.KnownArchitectures) > 0 {
		known := false
		for _, a := range v.KnownArchitectures {
			if a == name {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("architecture %q is not registered", name)
		}
	}
	v.arch = name
	return nil
}

func (v *View) CreateDatabase(path string) (bool, error) {
	v.mu.Lock()
	if !v.valid {
		v.mu.Unlock()
		return false, ErrInvalidView
	}
	fn := v.SaveFunc
	v.mu.Unlock()

	ok := true
	var err error
	if fn != nil {
		ok, err = fn(path)
	} else {
		err = os.WriteFile(path, []byte{}, 0o644)
		ok = err == nil
	}
	if ok && err == nil {
		v.mu.Lock()
		v.saves = append(v.saves, path)
		v.mu.Unlock()
	}
	return ok, err
}

// Saves lists the database paths successfully written.
func (v *View) Saves() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.saves...)
}

// Frame is a holder for one view.
type Frame struct {
	view host.View
}

// NewFrame wraps v.
func NewFrame(v host.View) *Frame { return &Frame{view: v} }

func (f *Frame) CurrentView() host.View {
	if f == nil {
		return nil
	}
	return f.view
}

type tabEntry struct {
	tab   host.Tab
	frame *Frame
}

// Context is an in-memory UI context holding tabs.
type Context struct {
	mu      sync.Mutex
	tabs    []tabEntry
	current int
	seq     int

	// OnOpen handles OpenFilename. Nil means the context cannot open files.
	OnOpen func(c *Context, path string) (bool, error)
	// Broken makes every enumeration call fail.
	Broken bool
}

// NewContext returns an empty context.
func NewContext() *Context {
	return &Context{current: -1}
}

// AddTab appends a tab showing v and makes it current.
func (c *Context) AddTab(v host.View) host.Tab {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	tab := host.Tab{ID: fmt.Sprintf("tab-%d", c.seq), Label: v.Filename()}
	c.tabs = append(c.tabs, tabEntry{tab: tab, frame: NewFrame(v)})
	c.current = len(c.tabs) - 1
	return tab
}

// CloseCurrentTab removes the current tab and invalidates its view.
func (c *Context) CloseCurrentTab() host.View {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current < 0 || c.current >= len(c.tabs) {
		return nil
	}
	entry := c.tabs[c.current]
	c.tabs = append(c.tabs[:c.current], c.tabs[c.current+1:]...)
	if c.current >= len(c.tabs) {
		c.current = len(c.tabs) - 1
	}
	v := entry.frame.CurrentView()
	if mv, ok := v.(*View); ok {
		mv.Invalidate()
	}
	return v
}

// CurrentTabView returns the view of the current tab, or nil.
func (c *Context) CurrentTabView() host.View {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current < 0 || c.current >= len(c.tabs) {
		return nil
	}
	return c.tabs[c.current].frame.CurrentView()
}

func (c *Context) CurrentFrame() (host.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Broken {
		return nil, errors.New("context unavailable")
	}
	if c.current < 0 || c.current >= len(c.tabs) {
		return nil, nil
	}
	return c.tabs[c.current].frame, nil
}

func (c *Context) Tabs() ([]host.Tab, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Broken {
		return nil, errors.New("context unavailable")
	}
	out := make([]host.Tab, 0, len(c.tabs))
	for _, e := range c.tabs {
		out = append(out, e.tab)
	}
	return out, nil
}

func (c *Context) FrameForTab(tab host.Tab) (host.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.tabs {
		if e.tab.ID == tab.ID {
			return e.frame, nil
		}
	}
	return nil, fmt.Errorf("tab %s not found", tab.ID)
}

func (c *Context) ActivateTab(tab host.Tab) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, e := range c.tabs {
		if e.tab.ID == tab.ID {
			c.current = i
			return nil
		}
	}
	return fmt.Errorf("tab %s not found", tab.ID)
}

func (c *Context) OpenFilename(path string) (bool, error) {
	if c.OnOpen == nil {
		return false, errors.New("open by filename is not supported")
	}
	return c.OnOpen(c, path)
}

// Accessor is an in-memory ViewAccessor.
type Accessor struct {
	mu       sync.Mutex
	contexts []*Context
	active   *Context
	current  host.View
	loads    []string

	// LoadFunc overrides Load; the default requires the file to exist.
	LoadFunc func(path string) (host.View, error)
	// DefaultArch is assigned to views created by the default loader.
	DefaultArch string
}

// NewAccessor returns an accessor with no contexts.
func NewAccessor() *Accessor {
	return &Accessor{}
}

// AddContext registers ctx; the first one added becomes active.
func (a *Accessor) AddContext(ctx *Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.contexts = append(a.contexts, ctx)
	if a.active == nil {
		a.active = ctx
	}
}

// SetActiveContext changes the active context.
func (a *Accessor) SetActiveContext(ctx *Context) {
	a.mu.Lock()
	a.active = ctx
	a.mu.Unlock()
}

// SetCurrentView sets the host-level current view.
func (a *Accessor) SetCurrentView(v host.View) {
	a.mu.Lock()
	a.current = v
	a.mu.Unlock()
}

func (a *Accessor) ActiveContext() (host.UIContext, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active == nil {
		return nil, nil
	}
	return a.active, nil
}

func (a *Accessor) AllContexts() ([]host.UIContext, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]host.UIContext, 0, len(a.contexts))
	for _, c := range a.contexts {
		out = append(out, c)
	}
	return out, nil
}

func (a *Accessor) CurrentView() (host.View, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current, nil
}

func (a *Accessor) Load(path string) (host.View, error) {
	a.mu.Lock()
	fn := a.LoadFunc
	arch := a.DefaultArch
	a.mu.Unlock()

	var (
		v   host.View
		err error
	)
	if fn != nil {
		v, err = fn(path)
	} else {
		if _, statErr := os.Stat(path); statErr != nil {
			return nil, statErr
		}
		abs, absErr := filepath.Abs(path)
		if absErr != nil {
			abs = path
		}
		v = NewView(abs, arch)
	}
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.loads = append(a.loads, path)
	a.mu.Unlock()
	return v, nil
}

// Loads lists the paths passed to successful Load calls.
func (a *Accessor) Loads() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.loads...)
}
