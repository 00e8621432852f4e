package views

import (
	"path/filepath"
	"sync"

	"github.com/binjactl/uiengine/internal/domain"
	"github.com/binjactl/uiengine/internal/host"
)

// Current holds the view the engine considers "current". It is set when an
// open resolves a view and cleared by quit.
type Current struct {
	mu   sync.RWMutex
	view host.View
}

// Set replaces the current view. A nil v clears it.
func (c *Current) Set(v host.View) {
	c.mu.Lock()
	c.view = v
	c.mu.Unlock()
}

// Clear forgets the current view and reports whether one was held, valid
// or not.
func (c *Current) Clear() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	held := c.view != nil
	c.view = nil
	return held
}

// Get returns the current view, or nil once the host has invalidated it.
func (c *Current) Get() host.View {
	c.mu.RLock()
	v := c.view
	c.mu.RUnlock()
	if v == nil || !v.Valid() {
		return nil
	}
	return v
}

// Describe snapshots v. It returns false for nil or invalid handles.
func Describe(v host.View) (domain.ViewDescriptor, bool) {
	if v == nil || !v.Valid() {
		return domain.ViewDescriptor{}, false
	}
	d := domain.ViewDescriptor{
		ViewID:       v.Identity(),
		Filename:     v.Filename(),
		Architecture: v.ArchitectureName(),
		Modified:     v.Modified(),
	}
	if d.Filename != "" {
		d.Basename = filepath.Base(d.Filename)
	}
	return d, true
}

// DescribeAll snapshots every valid view in list.
func DescribeAll(list []host.View) []domain.ViewDescriptor {
	out := make([]domain.ViewDescriptor, 0, len(list))
	for _, v := range list {
		if d, ok := Describe(v); ok {
			out = append(out, d)
		}
	}
	return out
}
