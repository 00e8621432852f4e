package dispatch

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"time"
)

var (
	// ErrLoopStopped is returned by Post when the loop is not running.
	ErrLoopStopped = errors.New("ui loop is not running")
	// ErrQueueFull is returned by Post when the queue has no room left.
	ErrQueueFull = errors.New("ui loop queue is full")
)

// Loop is a UI-affine goroutine pinned to one OS thread. It runs posted
// closures in order and calls idle on every tick to pump host events.
type Loop struct {
	queue   chan func()
	tick    time.Duration
	idle    func()
	running atomic.Bool
}

// NewLoop creates a loop with room for queueSize pending closures.
// idle may be nil.
func NewLoop(queueSize int, tick time.Duration, idle func()) *Loop {
	if queueSize <= 0 {
		queueSize = 64
	}
	if tick <= 0 {
		tick = 10 * time.Millisecond
	}
	return &Loop{queue: make(chan func(), queueSize), tick: tick, idle: idle}
}

// Running implements host.Scheduler.
func (l *Loop) Running() bool { return l.running.Load() }

// Post implements host.PostingScheduler.
func (l *Loop) Post(fn func()) error {
	if !l.running.Load() {
		return ErrLoopStopped
	}
	select {
	case l.queue <- fn:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run executes the loop until ctx is done. Closures still queued at that
// point are dropped.
func (l *Loop) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	l.running.Store(true)
	defer l.running.Store(false)

	ticker := time.NewTicker(l.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.queue:
			fn()
		case <-ticker.C:
			if l.idle != nil {
				l.idle()
			}
		}
	}
}
