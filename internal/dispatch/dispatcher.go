// Package dispatch moves closures from request goroutines onto the host UI
// thread and waits for them with a bound.
//
// When the host has no running UI thread the closure runs on the caller.
// Workflow tests rely on that: they drive an in-memory host without a loop.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/binjactl/uiengine/internal/domain"
	"github.com/binjactl/uiengine/internal/host"
)

// Observer receives one call per dispatch. outcome is one of "completed",
// "headless", "timeout", "canceled" or "failed".
type Observer interface {
	ObserveDispatch(name, outcome string, elapsed time.Duration)
}

// Dispatcher runs closures through a host scheduler.
type Dispatcher struct {
	scheduler host.Scheduler
	observer  Observer
	logger    zerolog.Logger
}

// New creates a Dispatcher. scheduler and observer may be nil.
func New(scheduler host.Scheduler, observer Observer, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		scheduler: scheduler,
		observer:  observer,
		logger:    logger.With().Str("component", "dispatch").Logger(),
	}
}

// Headless reports whether closures currently run on the caller.
func (d *Dispatcher) Headless() bool {
	return d == nil || d.scheduler == nil || !d.scheduler.Running()
}

// Outcome is the result of RunAndWait.
type Outcome[T any] struct {
	Value     T
	Completed bool
	TimedOut  bool
	Headless  bool
	Elapsed   time.Duration
	Err       error
}

// OK reports whether the closure completed without panicking.
func (o Outcome[T]) OK() bool { return o.Completed && o.Err == nil }

// Record appends the dispatch failure, if any, to r.
func (o Outcome[T]) Record(r *domain.WorkflowResult) {
	if o.Err != nil {
		r.Fail(o.Err)
	}
}

type cell[T any] struct {
	value T
	err   error
}

// RunAndWait runs fn on the UI thread and waits up to timeout for its value.
//
// The value travels through a one-slot buffered channel, so a closure that
// finishes after the caller gave up still completes without blocking the UI
// thread and its value is dropped. A timed-out closure is never interrupted.
func RunAndWait[T any](ctx context.Context, d *Dispatcher, name string, timeout time.Duration, fn func() T) Outcome[T] {
	start := time.Now()
	var out Outcome[T]

	if d.Headless() {
		c := invoke(fn)
		out = Outcome[T]{Value: c.value, Completed: c.err == nil, Headless: true, Err: c.err}
		out.Elapsed = time.Since(start)
		observe(d, name, out)
		return out
	}

	done := make(chan cell[T], 1)
	job := func() { done <- invoke(fn) }

	switch s := d.scheduler.(type) {
	case host.BlockingScheduler:
		completed, err := s.ExecuteAndWait(job, timeout)
		switch {
		case err != nil:
			out.Err = domain.WrapEngineError(domain.ErrDispatchFailed.Code, domain.ErrDispatchFailed.Message, err)
		case !completed:
			out.TimedOut = true
			out.Err = timeoutError(name, timeout)
		default:
			select {
			case c := <-done:
				out.Value, out.Completed, out.Err = c.value, c.err == nil, c.err
			default:
				out.Err = domain.WrapEngineError(domain.ErrDispatchFailed.Code, domain.ErrDispatchFailed.Message,
					fmt.Errorf("%s reported completion without a result", name))
			}
		}
	case host.PostingScheduler:
		if err := s.Post(job); err != nil {
			out.Err = domain.WrapEngineError(domain.ErrDispatchFailed.Code, domain.ErrDispatchFailed.Message, err)
			break
		}
		out = wait(ctx, done, name, timeout)
	default:
		out.Err = domain.WrapEngineError(domain.ErrDispatchFailed.Code, domain.ErrDispatchFailed.Message,
			fmt.Errorf("scheduler %T accepts no work", d.scheduler))
	}

	out.Elapsed = time.Since(start)
	observe(d, name, out)
	return out
}

func wait[T any](ctx context.Context, done <-chan cell[T], name string, timeout time.Duration) Outcome[T] {
	var out Outcome[T]
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case c := <-done:
		out.Value, out.Completed, out.Err = c.value, c.err == nil, c.err
	case <-timer.C:
		out.TimedOut = true
		out.Err = timeoutError(name, timeout)
	case <-ctx.Done():
		out.Err = domain.WrapEngineError(domain.ErrDispatchCanceled.Code, domain.ErrDispatchCanceled.Message, ctx.Err())
	}
	return out
}

func invoke[T any](fn func() T) (c cell[T]) {
	defer func() {
		if p := recover(); p != nil {
			c.err = domain.WrapEngineError(domain.ErrDispatchFailed.Code, domain.ErrDispatchFailed.Message,
				fmt.Errorf("panic: %v", p))
		}
	}()
	c.value = fn()
	return c
}

func timeoutError(name string, timeout time.Duration) error {
	return domain.NewEngineError(domain.ErrDispatchTimeout.Code,
		fmt.Sprintf("%s: %s did not finish within %s", domain.ErrDispatchTimeout.Message, name, timeout))
}

func observe[T any](d *Dispatcher, name string, out Outcome[T]) {
	if d == nil {
		return
	}
	outcome := "completed"
	switch {
	case out.TimedOut:
		outcome = "timeout"
		d.logger.Warn().Str("call", name).Dur("elapsed", out.Elapsed).Msg("ui thread call timed out")
	case domain.CodeOf(out.Err) == domain.ErrDispatchCanceled.Code:
		outcome = "canceled"
		d.logger.Warn().Str("call", name).Msg("caller stopped waiting for ui thread")
	case out.Err != nil:
		outcome = "failed"
		d.logger.Error().Err(out.Err).Str("call", name).Msg("ui thread call failed")
	case out.Headless:
		outcome = "headless"
	}
	if d.observer != nil {
		d.observer.ObserveDispatch(name, outcome, out.Elapsed)
	}
}
