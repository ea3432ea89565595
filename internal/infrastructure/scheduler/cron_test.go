package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStartRunsImmediately(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fired := make(chan time.Time, 1)
	s := NewCronScheduler("0 3 * * *", time.UTC, true, nil)
	require.NoError(t, s.Start(ctx, func(ts time.Time) { fired <- ts }))

	select {
	case ts := <-fired:
		require.Equal(t, time.UTC, ts.Location())
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run on start")
	}

	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()), "stop is idempotent")
}

func TestStartRejectsInvalidSpec(t *testing.T) {
	t.Parallel()

	s := NewCronScheduler("not a cron", nil, false, nil)
	require.Error(t, s.Start(context.Background(), func(time.Time) {}))
	require.Error(t, Validate("61 * * * *"))
	require.NoError(t, Validate("0 3 * * *"))
}

func TestFireSkipsOverlap(t *testing.T) {
	t.Parallel()

	s := NewCronScheduler("0 3 * * *", time.UTC, false, nil)
	release := make(chan struct{})
	started := make(chan struct{})
	calls := 0

	go s.fire(func(time.Time) {
		calls++
		close(started)
		<-release
	})
	<-started

	s.fire(func(time.Time) { calls++ })
	close(release)

	require.Eventually(t, func() bool { return s.running.TryLock() }, time.Second, 10*time.Millisecond)
	s.running.Unlock()
	require.Equal(t, 1, calls)
}

func TestStopWaitsForImmediateRun(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool

	s := NewCronScheduler("0 3 * * *", time.UTC, true, nil)
	require.NoError(t, s.Start(ctx, func(time.Time) {
		close(started)
		<-release
		finished.Store(true)
	}))
	<-started

	// Cancellation triggers the background stop; an explicit Stop must still wait.
	cancel()
	stopped := make(chan error, 1)
	go func() { stopped <- s.Stop(context.Background()) }()

	select {
	case <-stopped:
		t.Fatal("stop returned while the job was still running")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-stopped:
		require.NoError(t, err)
		require.True(t, finished.Load())
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return after the job finished")
	}
}

func TestStopDropsPendingTrigger(t *testing.T) {
	t.Parallel()

	s := NewCronScheduler("0 3 * * *", time.UTC, false, nil)
	require.NoError(t, s.Start(context.Background(), func(time.Time) {}))
	require.NoError(t, s.Stop(context.Background()))

	ran := false
	s.fire(func(time.Time) { ran = true })
	require.False(t, ran)
}

func TestStopBoundedByContext(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	s := NewCronScheduler("0 3 * * *", time.UTC, true, nil)
	require.NoError(t, s.Start(context.Background(), func(time.Time) {
		close(started)
		<-release
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, s.Stop(ctx), context.DeadlineExceeded)
}
