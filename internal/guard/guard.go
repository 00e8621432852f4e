// Package guard serializes workflow invocations against one host application
// and rate-limits them per endpoint.
package guard

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/binjactl/uiengine/internal/domain"
)

// GuardConfig holds lock and rate limits.
type GuardConfig struct {
	// Serialize makes every workflow hold the host lock while it runs.
	Serialize          bool
	LockWait           time.Duration
	RateLimitPerMinute int
}

// Guard coordinates host mutual exclusion and rate checks.
type Guard struct {
	Config GuardConfig

	hostLock *semaphore.Weighted
	now      func() time.Time

	mu         sync.Mutex
	rateCounts map[string]*rateBucket
}

type rateBucket struct {
	count       int
	windowStart int64
}

// NewGuard creates a Guard with the given limits.
func NewGuard(cfg GuardConfig) *Guard {
	return &Guard{
		Config:     cfg,
		hostLock:   semaphore.NewWeighted(1),
		now:        time.Now,
		rateCounts: make(map[string]*rateBucket),
	}
}

// Admit runs the rate check for endpoint and then acquires the host lock.
// The returned release func must be called exactly once.
func (g *Guard) Admit(ctx context.Context, endpoint string) (func(), error) {
	if err := g.CheckRateLimit(endpoint); err != nil {
		return nil, err
	}
	return g.Acquire(ctx)
}

// Acquire takes the per-host lock, waiting at most Config.LockWait.
// ErrHostBusy is returned when the wait expires. With Serialize off the
// release func is a no-op.
func (g *Guard) Acquire(ctx context.Context) (func(), error) {
	if !g.Config.Serialize {
		return func() {}, nil
	}
	if g.Config.LockWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Config.LockWait)
		defer cancel()
	}
	if err := g.hostLock.Acquire(ctx, 1); err != nil {
		return nil, domain.ErrHostBusy
	}
	var once sync.Once
	return func() { once.Do(func() { g.hostLock.Release(1) }) }, nil
}

// CheckRateLimit enforces a per-endpoint window rate limit.
// The window is 60 seconds. A limit of zero or less disables the check.
func (g *Guard) CheckRateLimit(endpoint string) error {
	if g.Config.RateLimitPerMinute <= 0 {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now().Unix()
	bucket, ok := g.rateCounts[endpoint]
	if !ok {
		g.rateCounts[endpoint] = &rateBucket{count: 1, windowStart: now}
		return nil
	}

	if now-bucket.windowStart > 60 {
		bucket.count = 1
		bucket.windowStart = now
		return nil
	}

	if bucket.count >= g.Config.RateLimitPerMinute {
		return domain.ErrRateLimitExceeded
	}

	bucket.count++
	return nil
}
