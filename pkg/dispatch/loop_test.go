package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T) *Loop {
	t.Helper()
	l, err := New(DefaultConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = l.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		l.Stop()
	})
	return l
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())

	cfg.QueueSize = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestInvokeRunsInOrder(t *testing.T) {
	l := startLoop(t)

	var got []int
	for i := range 5 {
		require.NoError(t, l.Post(func(context.Context) { got = append(got, i) }))
	}
	require.NoError(t, l.Invoke(context.Background(), func(context.Context) { got = append(got, 5) }))

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, got)
}

func TestInvokeSerializesConcurrentCallers(t *testing.T) {
	l := startLoop(t)

	var (
		wg      sync.WaitGroup
		running int
		maxSeen int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Invoke(context.Background(), func(context.Context) {
				running++
				if running > maxSeen {
					maxSeen = running
				}
				time.Sleep(time.Millisecond)
				running--
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
}

func TestInvokeReentrant(t *testing.T) {
	l := startLoop(t)

	var inner bool
	err := l.Invoke(context.Background(), func(ctx context.Context) {
		require.NoError(t, l.Invoke(ctx, func(context.Context) { inner = true }))
	})
	require.NoError(t, err)
	assert.True(t, inner)
}

func TestStop(t *testing.T) {
	l, err := New(DefaultConfig())
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(context.Background()) }()

	require.NoError(t, l.Invoke(context.Background(), func(context.Context) {}))
	l.Stop()
	l.Stop()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("loop did not exit")
	}

	assert.ErrorIs(t, l.Post(func(context.Context) {}), ErrStopped)
	assert.ErrorIs(t, l.Invoke(context.Background(), func(context.Context) {}), ErrStopped)
	assert.ErrorIs(t, l.Run(context.Background()), ErrStopped)
}

func TestStopBeforeRun(t *testing.T) {
	l, err := New(DefaultConfig())
	require.NoError(t, err)

	l.Stop()
	<-l.Done()
	assert.ErrorIs(t, l.Run(context.Background()), ErrStopped)
}

func TestRunTwice(t *testing.T) {
	l := startLoop(t)
	require.NoError(t, l.Invoke(context.Background(), func(context.Context) {}))
	assert.ErrorIs(t, l.Run(context.Background()), ErrAlreadyRunning)
}

func TestInvokeContextCancelled(t *testing.T) {
	l, err := New(DefaultConfig())
	require.NoError(t, err)

	// Not running: the job is queued but never executed.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Invoke(ctx, func(context.Context) {}), context.DeadlineExceeded)
}

func TestPanickingTaskDoesNotKillLoop(t *testing.T) {
	l := startLoop(t)

	require.NoError(t, l.Invoke(context.Background(), func(context.Context) { panic("boom") }))

	var ran bool
	require.NoError(t, l.Invoke(context.Background(), func(context.Context) { ran = true }))
	assert.True(t, ran)
}
