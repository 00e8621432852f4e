package views

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/rs/zerolog"

	"github.com/binjactl/uiengine/internal/domain"
	"github.com/binjactl/uiengine/internal/host"
)

// Registry enumerates the views open in the host. Every method must run on
// the UI thread.
type Registry struct {
	views    host.ViewAccessor
	resolver *Resolver
	logger   zerolog.Logger
}

// NewRegistry creates a Registry over accessor. A nil resolver uses the
// package default.
func NewRegistry(accessor host.ViewAccessor, resolver *Resolver, logger zerolog.Logger) *Registry {
	if resolver == nil {
		resolver = defaultResolver
	}
	return &Registry{
		views:    accessor,
		resolver: resolver,
		logger:   logger.With().Str("component", "views").Logger(),
	}
}

// Resolver returns the resolver used for matching.
func (r *Registry) Resolver() *Resolver { return r.resolver }

type viewSet struct {
	seen map[string]struct{}
	list []host.View
}

func (s *viewSet) add(v host.View) {
	if v == nil || !v.Valid() {
		return
	}
	id := v.Identity()
	if _, dup := s.seen[id]; dup {
		return
	}
	s.seen[id] = struct{}{}
	s.list = append(s.list, v)
}

// ListViews returns the open views, deduplicated by identity, in priority
// order: the active context's current frame, every other context's current
// frame, every tab of every context, then the host-level current view when
// nothing else was found. A failing step contributes nothing.
func (r *Registry) ListViews() []host.View {
	if r.views == nil {
		return nil
	}
	set := &viewSet{seen: map[string]struct{}{}}
	contexts := r.Contexts()

	for _, c := range contexts {
		frame, err := c.CurrentFrame()
		if err != nil || frame == nil {
			continue
		}
		set.add(frame.CurrentView())
	}

	for _, c := range contexts {
		tabs, err := c.Tabs()
		if err != nil {
			continue
		}
		for _, tab := range tabs {
			frame, err := c.FrameForTab(tab)
			if err != nil || frame == nil {
				continue
			}
			set.add(frame.CurrentView())
		}
	}

	if len(set.list) == 0 {
		if v, err := r.views.CurrentView(); err == nil {
			set.add(v)
		}
	}
	return set.list
}

// Contexts returns the active context followed by every other context.
func (r *Registry) Contexts() []host.UIContext {
	var out []host.UIContext
	if r.views == nil {
		return nil
	}
	if active, err := r.views.ActiveContext(); err != nil {
		r.logger.Debug().Err(err).Msg("active context unavailable")
	} else if active != nil {
		out = append(out, active)
	}
	all, err := r.views.AllContexts()
	if err != nil {
		r.logger.Debug().Err(err).Msg("context enumeration failed")
		return out
	}
	for _, c := range all {
		if c != nil && !containsContext(out, c) {
			out = append(out, c)
		}
	}
	return out
}

func containsContext(list []host.UIContext, c host.UIContext) bool {
	for _, x := range list {
		if x == c {
			return true
		}
	}
	return false
}

// SelectPreferred returns the first exact match for requested, else the first
// loose match, else the first view. It returns nil for an empty list.
func (r *Registry) SelectPreferred(list []host.View, requested string) host.View {
	return selectPreferred(r.resolver, list, requested)
}

// SelectPreferred uses the package resolver.
func SelectPreferred(list []host.View, requested string) host.View {
	return selectPreferred(defaultResolver, list, requested)
}

func selectPreferred(res *Resolver, list []host.View, requested string) host.View {
	if requested != "" {
		for _, v := range list {
			if res.MatchTier(v, requested) == domain.MatchExact {
				return v
			}
		}
		for _, v := range list {
			if res.MatchTier(v, requested) == domain.MatchLoose {
				return v
			}
		}
	}
	if len(list) == 0 {
		return nil
	}
	return list[0]
}

// FindByID returns the view whose identity equals id, case-insensitively.
func FindByID(list []host.View, id string) host.View {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	for _, v := range list {
		if v != nil && v.Valid() && strings.EqualFold(v.Identity(), id) {
			return v
		}
	}
	return nil
}

// OpenTab locates a view inside a specific tab.
type OpenTab struct {
	Context host.UIContext
	Tab     host.Tab
	View    host.View
}

// FindOpenTab returns the first tab, across all contexts, whose view matches
// requested exactly.
func (r *Registry) FindOpenTab(requested string) (OpenTab, bool) {
	if r.views == nil || requested == "" {
		return OpenTab{}, false
	}
	for _, c := range r.Contexts() {
		tabs, err := c.Tabs()
		if err != nil {
			continue
		}
		for _, tab := range tabs {
			frame, err := c.FrameForTab(tab)
			if err != nil || frame == nil {
				continue
			}
			v := frame.CurrentView()
			if r.resolver.MatchTier(v, requested) == domain.MatchExact {
				return OpenTab{Context: c, Tab: tab, View: v}, true
			}
		}
	}
	return OpenTab{}, false
}

// Suggest ranks open view filenames by fuzzy similarity to requested's
// basename, closest first. It is used for "did you mean" warnings.
func Suggest(list []host.View, requested string, limit int) []string {
	base := filepath.Base(strings.TrimSpace(requested))
	if base == "" || base == "." {
		return nil
	}
	var paths, names []string
	for _, v := range list {
		if v == nil || !v.Valid() || v.Filename() == "" {
			continue
		}
		paths = append(paths, v.Filename())
		names = append(names, filepath.Base(v.Filename()))
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	ranks := fuzzy.RankFindNormalizedFold(stem, names)
	sort.Sort(ranks)
	out := make([]string, 0, len(ranks))
	for _, rk := range ranks {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, paths[rk.OriginalIndex])
	}
	return out
}
