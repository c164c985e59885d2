package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hazardwatch/hazardwatch/internal/conf"
	"github.com/hazardwatch/hazardwatch/internal/errors"
	"github.com/hazardwatch/hazardwatch/internal/hazard"
	"github.com/hazardwatch/hazardwatch/internal/sources"
	"github.com/hazardwatch/hazardwatch/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubSource struct{ name string }

func (s stubSource) Name() string                     { return s.name }
func (s stubSource) Category() hazard.Classification { return hazard.Earthquake }
func (s stubSource) Fetch(context.Context, time.Time) ([]hazard.Candidate, error) {
	return nil, nil
}

func registry(t *testing.T, interval time.Duration, names ...string) *sources.Registry {
	t.Helper()
	r := sources.NewRegistry()
	for _, n := range names {
		require.NoError(t, r.Register(stubSource{n}, conf.FeedSettings{Interval: interval}))
	}
	return r
}

type fakeRunner struct {
	release chan struct{} // nil means do not block
	started chan string

	calls   atomic.Int32
	running atomic.Int32
	peak    atomic.Int32

	mu      sync.Mutex
	results map[string]error
	ctxErrs []error
}

func (f *fakeRunner) Run(ctx context.Context, name string, _ hazard.Actor) (bool, error) {
	f.calls.Add(1)
	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.started != nil {
		f.started <- name
	}
	if f.release != nil {
		<-f.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	if err := f.results[name]; err != nil {
		return false, err
	}
	return true, nil
}

func TestTrigger_CoalescesConcurrentCalls(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{}), started: make(chan string, 1)}
	s := New(runner, registry(t, 0, "bmkg-felt"), 1)

	type result struct {
		hadData bool
		err     error
	}
	results := make(chan result, 2)
	trigger := func() {
		hadData, err := s.Trigger(t.Context(), "bmkg-felt", hazard.SystemActor)
		results <- result{hadData, err}
	}

	go trigger()
	testutil.Receive(t, runner.started, testutil.DefaultTestTimeout, "run did not start")
	go trigger()
	// Give the second caller time to join the flight
	time.Sleep(50 * time.Millisecond)
	close(runner.release)

	for range 2 {
		r := testutil.Receive(t, results, testutil.DefaultTestTimeout, "trigger did not return")
		require.NoError(t, r.err)
		assert.True(t, r.hadData)
	}
	assert.EqualValues(t, 1, runner.calls.Load())
	s.Wait()
}

func TestTrigger_UnknownSource(t *testing.T) {
	s := New(&fakeRunner{}, registry(t, 0, "bmkg-felt"), 1)

	_, err := s.Trigger(t.Context(), "nope", hazard.SystemActor)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestTrigger_CallerCancellationDoesNotAbortRun(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{}), started: make(chan string, 1)}
	s := New(runner, registry(t, 0, "bmkg-felt"), 1)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		_, err := s.Trigger(ctx, "bmkg-felt", hazard.SystemActor)
		done <- err
	}()

	testutil.Receive(t, runner.started, testutil.DefaultTestTimeout, "run did not start")
	cancel()
	err := testutil.Receive(t, done, testutil.DefaultTestTimeout, "trigger ignored caller cancellation")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryCancellation))

	close(runner.release)
	s.Wait()

	runner.mu.Lock()
	defer runner.mu.Unlock()
	require.Len(t, runner.ctxErrs, 1)
	assert.NoError(t, runner.ctxErrs[0], "the run sees a live context")
}

func TestWait_CoversRunOfCancelledCaller(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{}), started: make(chan string, 1)}
	s := New(runner, registry(t, 0, "bmkg-felt"), 1)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		_, err := s.Trigger(ctx, "bmkg-felt", hazard.SystemActor)
		done <- err
	}()
	testutil.Receive(t, runner.started, testutil.DefaultTestTimeout, "run did not start")
	cancel()
	testutil.Receive(t, done, testutil.DefaultTestTimeout, "trigger ignored caller cancellation")

	waited := make(chan struct{})
	go func() {
		s.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		t.Fatal("Wait returned while a detached run was in progress")
	case <-time.After(50 * time.Millisecond):
	}

	close(runner.release)
	testutil.WaitForChannel(t, waited, testutil.DefaultTestTimeout, "Wait did not return after the run finished")
}

func TestTrigger_RejectedAfterWait(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner, registry(t, 0, "bmkg-felt"), 1)
	s.Wait()

	_, err := s.Trigger(t.Context(), "bmkg-felt", hazard.SystemActor)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStopped)
	assert.True(t, errors.IsCategory(err, errors.CategoryCancellation))
	assert.Zero(t, runner.calls.Load())
}

func TestRunAll_ContinuesPastFailures(t *testing.T) {
	runner := &fakeRunner{results: map[string]error{"dibi": fmt.Errorf("upstream down")}}
	s := New(runner, registry(t, 0, "bmkg-recent", "dibi", "bmkg-felt"), 1)

	hadData, err := s.RunAll(t.Context(), hazard.SystemActor)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream down")
	assert.True(t, hadData)
	assert.EqualValues(t, 3, runner.calls.Load())
}

func TestRunAll_BoundsParallelism(t *testing.T) {
	names := []string{"a", "b", "c", "d", "e", "f"}
	runner := &fakeRunner{started: make(chan string, len(names))}
	s := New(runner, registry(t, 0, names...), 2)

	_, err := s.RunAll(t.Context(), hazard.SystemActor)
	require.NoError(t, err)
	assert.EqualValues(t, len(names), runner.calls.Load())
	assert.LessOrEqual(t, runner.peak.Load(), int32(2))
}

func TestRunAll_CancelledBeforeStart(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner, registry(t, 0, "a", "b"), 1)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	hadData, err := s.RunAll(ctx, hazard.SystemActor)
	require.Error(t, err)
	assert.False(t, hadData)
	assert.True(t, errors.IsCategory(err, errors.CategoryCancellation))
	assert.Zero(t, runner.calls.Load())
}

func TestStart_RunsUntilCancelled(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner, registry(t, 10*time.Millisecond, "bmkg-felt"), 1)

	ctx, cancel := context.WithCancel(t.Context())
	s.Start(ctx)

	require.Eventually(t, func() bool { return runner.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	s.Wait()

	calls := runner.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, runner.calls.Load(), "no runs after Wait returned")
}

func TestStart_SkipsSourcesWithoutInterval(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner, registry(t, 0, "manual"), 1)

	ctx, cancel := context.WithCancel(t.Context())
	s.Start(ctx)
	cancel()
	s.Wait()
	assert.Zero(t, runner.calls.Load())
}
