// Package views enumerates the views open in the host and matches them
// against requested file paths.
package views

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/binjactl/uiengine/internal/domain"
	"github.com/binjactl/uiengine/internal/host"
)

const (
	resolveCacheSize = 512
	resolveCacheTTL  = 30 * time.Second
)

// Resolver turns paths into absolute, symlink-free form. Results are cached
// briefly because the same requested path is resolved once per candidate view.
type Resolver struct {
	cache *expirable.LRU[string, string]
}

// NewResolver creates a Resolver holding up to size entries for ttl.
func NewResolver(size int, ttl time.Duration) *Resolver {
	if size <= 0 {
		size = resolveCacheSize
	}
	return &Resolver{cache: expirable.NewLRU[string, string](size, nil, ttl)}
}

// Resolve returns the absolute, symlink-evaluated form of raw. Paths that do
// not exist resolve to their absolute form. ok is false when even that fails.
func (r *Resolver) Resolve(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	if r != nil {
		if v, hit := r.cache.Get(raw); hit {
			return v, v != ""
		}
	}
	resolved := ""
	if abs, err := filepath.Abs(raw); err == nil {
		resolved = abs
		if real, err := filepath.EvalSymlinks(abs); err == nil {
			resolved = real
		}
	}
	if r != nil {
		r.cache.Add(raw, resolved)
	}
	return resolved, resolved != ""
}

var defaultResolver = NewResolver(resolveCacheSize, resolveCacheTTL)

// Candidates is a set of comparable path spellings.
type Candidates map[string]struct{}

func (c Candidates) add(s string) {
	if s != "" {
		c[s] = struct{}{}
	}
}

// Intersects reports whether c and o share any element.
func (c Candidates) Intersects(o Candidates) bool {
	small, large := c, o
	if len(large) < len(small) {
		small, large = large, small
	}
	for k := range small {
		if _, ok := large[k]; ok {
			return true
		}
	}
	return false
}

// PathCandidates returns raw, its lowercase form and, when resolvable, the
// resolved path and its lowercase form.
func (r *Resolver) PathCandidates(raw string) Candidates {
	out := Candidates{}
	if raw == "" {
		return out
	}
	out.add(raw)
	out.add(strings.ToLower(raw))
	if resolved, ok := r.Resolve(raw); ok {
		out.add(resolved)
		out.add(strings.ToLower(resolved))
	}
	return out
}

// NameCandidates extends PathCandidates with the basename in both cases.
func (r *Resolver) NameCandidates(raw string) Candidates {
	out := r.PathCandidates(raw)
	if raw == "" {
		return out
	}
	base := filepath.Base(raw)
	out.add(base)
	out.add(strings.ToLower(base))
	return out
}

// MatchFilenames scores an observed filename against a requested one.
func (r *Resolver) MatchFilenames(observed, requested string) domain.MatchTier {
	if observed == "" || requested == "" {
		return domain.MatchNone
	}
	if r.PathCandidates(observed).Intersects(r.PathCandidates(requested)) {
		return domain.MatchExact
	}
	if r.NameCandidates(observed).Intersects(r.NameCandidates(requested)) {
		return domain.MatchLoose
	}
	return domain.MatchNone
}

// MatchTier scores v against requested. Invalid handles never match.
func (r *Resolver) MatchTier(v host.View, requested string) domain.MatchTier {
	if v == nil || !v.Valid() {
		return domain.MatchNone
	}
	return r.MatchFilenames(v.Filename(), requested)
}

// PathCandidates uses the package resolver.
func PathCandidates(raw string) Candidates { return defaultResolver.PathCandidates(raw) }

// NameCandidates uses the package resolver.
func NameCandidates(raw string) Candidates { return defaultResolver.NameCandidates(raw) }

// MatchTier uses the package resolver.
func MatchTier(v host.View, requested string) domain.MatchTier {
	return defaultResolver.MatchTier(v, requested)
}
