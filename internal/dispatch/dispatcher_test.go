package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binjactl/uiengine/internal/domain"
)

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *recordingObserver) ObserveDispatch(name, outcome string, _ time.Duration) {
	o.mu.Lock()
	o.outcomes = append(o.outcomes, name+":"+outcome)
	o.mu.Unlock()
}

func (o *recordingObserver) all() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.outcomes...)
}

// blockingScheduler runs jobs synchronously, or reports a timeout when stall is set.
type blockingScheduler struct {
	stall bool
	err   error
}

func (b *blockingScheduler) Running() bool { return true }

func (b *blockingScheduler) ExecuteAndWait(fn func(), timeout time.Duration) (bool, error) {
	if b.err != nil {
		return false, b.err
	}
	if b.stall {
		time.Sleep(timeout)
		return false, nil
	}
	fn()
	return true, nil
}

// blackHole accepts posts and never runs them.
type blackHole struct{}

func (blackHole) Running() bool { return true }
func (blackHole) Post(func()) error { return nil }

func startLoop(t *testing.T) *Loop {
	t.Helper()
	loop := NewLoop(8, time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = loop.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	require.Eventually(t, loop.Running, time.Second, time.Millisecond)
	return loop
}

func TestRunAndWait_HeadlessRunsOnCaller(t *testing.T) {
	obs := &recordingObserver{}
	d := New(nil, obs, zerolog.Nop())
	assert.True(t, d.Headless())

	out := RunAndWait(context.Background(), d, "probe", time.Second, func() int { return 42 })
	assert.True(t, out.OK())
	assert.True(t, out.Headless)
	assert.Equal(t, 42, out.Value)
	assert.Equal(t, []string{"probe:headless"}, obs.all())
}

func TestRunAndWait_StoppedLoopIsHeadless(t *testing.T) {
	d := New(NewLoop(1, time.Millisecond, nil), nil, zerolog.Nop())
	out := RunAndWait(context.Background(), d, "probe", time.Second, func() string { return "ran" })
	assert.True(t, out.Headless)
	assert.Equal(t, "ran", out.Value)
}

func TestRunAndWait_OnLoopThread(t *testing.T) {
	loop := startLoop(t)
	obs := &recordingObserver{}
	d := New(loop, obs, zerolog.Nop())

	out := RunAndWait(context.Background(), d, "probe", time.Second, func() int { return 7 })
	require.True(t, out.OK())
	assert.False(t, out.Headless)
	assert.Equal(t, 7, out.Value)
	assert.Equal(t, []string{"probe:completed"}, obs.all())
}

func TestRunAndWait_TimeoutWithinBudget(t *testing.T) {
	loop := startLoop(t)
	obs := &recordingObserver{}
	d := New(loop, obs, zerolog.Nop())

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	budget := 80 * time.Millisecond
	start := time.Now()
	out := RunAndWait(context.Background(), d, "open", budget, func() bool {
		<-release
		return true
	})
	elapsed := time.Since(start)

	assert.True(t, out.TimedOut)
	assert.False(t, out.Completed)
	assert.Equal(t, domain.ErrDispatchTimeout.Code, domain.CodeOf(out.Err))
	assert.GreaterOrEqual(t, elapsed, budget)
	assert.Less(t, elapsed, budget+500*time.Millisecond)
	assert.Equal(t, []string{"open:timeout"}, obs.all())

	r := domain.NewWorkflowResult()
	out.Record(&r)
	final := r.Finalize()
	assert.False(t, final.OK)
	require.Len(t, final.Errors, 1)
	assert.Contains(t, final.Errors[0], "open did not finish")
}

func TestRunAndWait_LateResultIsDropped(t *testing.T) {
	loop := startLoop(t)
	d := New(loop, nil, zerolog.Nop())

	release := make(chan struct{})
	finished := make(chan struct{})
	out := RunAndWait(context.Background(), d, "slow", 20*time.Millisecond, func() int {
		<-release
		close(finished)
		return 1
	})
	require.True(t, out.TimedOut)

	close(release)
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("abandoned closure did not finish")
	}

	// The loop stays usable after the abandoned closure completed.
	next := RunAndWait(context.Background(), d, "next", time.Second, func() int { return 2 })
	assert.True(t, next.OK())
	assert.Equal(t, 2, next.Value)
}

func TestRunAndWait_ContextCanceled(t *testing.T) {
	d := New(blackHole{}, nil, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	out := RunAndWait(ctx, d, "probe", time.Minute, func() int { return 1 })
	assert.False(t, out.Completed)
	assert.False(t, out.TimedOut)
	assert.Equal(t, domain.ErrDispatchCanceled.Code, domain.CodeOf(out.Err))
}

func TestRunAndWait_PanicBecomesFailure(t *testing.T) {
	d := New(nil, nil, zerolog.Nop())
	out := RunAndWait(context.Background(), d, "boom", time.Second, func() int { panic("widget gone") })
	assert.False(t, out.OK())
	assert.Equal(t, domain.ErrDispatchFailed.Code, domain.CodeOf(out.Err))
	assert.Contains(t, out.Err.Error(), "widget gone")
}

func TestRunAndWait_BlockingScheduler(t *testing.T) {
	d := New(&blockingScheduler{}, nil, zerolog.Nop())
	out := RunAndWait(context.Background(), d, "probe", time.Second, func() string { return "ok" })
	assert.True(t, out.OK())
	assert.Equal(t, "ok", out.Value)

	d = New(&blockingScheduler{stall: true}, nil, zerolog.Nop())
	out = RunAndWait(context.Background(), d, "probe", 10*time.Millisecond, func() string { return "ok" })
	assert.True(t, out.TimedOut)
	assert.Equal(t, domain.ErrDispatchTimeout.Code, domain.CodeOf(out.Err))

	d = New(&blockingScheduler{err: errors.New("posting refused")}, nil, zerolog.Nop())
	out = RunAndWait(context.Background(), d, "probe", time.Second, func() string { return "ok" })
	assert.Equal(t, domain.ErrDispatchFailed.Code, domain.CodeOf(out.Err))
	assert.Contains(t, out.Err.Error(), "posting refused")
}

func TestLoop_PostWhenStopped(t *testing.T) {
	loop := NewLoop(1, time.Millisecond, nil)
	assert.ErrorIs(t, loop.Post(func() {}), ErrLoopStopped)
}

func TestLoop_RunsIdleOnTick(t *testing.T) {
	var mu sync.Mutex
	ticks := 0
	loop := NewLoop(1, time.Millisecond, func() {
		mu.Lock()
		ticks++
		mu.Unlock()
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return ticks >= 3
	}, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.False(t, loop.Running())
}
