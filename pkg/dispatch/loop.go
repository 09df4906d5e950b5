// Package dispatch provides a serial executor. All model mutations driven
// by a session run on a single Loop so that mutation, notification and the
// session's dispatching bookkeeping never interleave.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Dispatch errors.
var (
	ErrStopped        = errors.New("dispatch loop stopped")
	ErrAlreadyRunning = errors.New("dispatch loop already running")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// Task is a unit of work executed on the loop. ctx identifies the loop;
// passing it to Invoke from inside a task runs the nested task inline.
type Task func(ctx context.Context)

// Config configures a Loop.
type Config struct {
	// QueueSize is the number of tasks that may wait for execution.
	QueueSize int

	// Logger receives task panics and lifecycle events. Nil disables logging.
	Logger *slog.Logger
}

// DefaultConfig returns the default loop configuration.
func DefaultConfig() Config {
	return Config{QueueSize: 256}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.QueueSize < 1 {
		return fmt.Errorf("%w: queue size must be positive", ErrInvalidConfig)
	}
	return nil
}

type loopKey struct{}

type job struct {
	fn   Task
	done chan struct{}
}

// Loop executes tasks one at a time on the goroutine calling Run.
type Loop struct {
	logger *slog.Logger

	tasks chan job
	quit  chan struct{}
	done  chan struct{}

	started  atomic.Bool
	stopOnce sync.Once
	doneOnce sync.Once
}

// New creates a loop. Tasks are accepted immediately and execute once Run
// is called.
func New(cfg Config) (*Loop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Loop{
		logger: cfg.Logger,
		tasks:  make(chan job, cfg.QueueSize),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}, nil
}

// Run executes tasks until ctx is cancelled or Stop is called. Tasks still
// queued at that point are abandoned and their Invoke callers receive
// ErrStopped.
func (l *Loop) Run(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		select {
		case <-l.quit:
			return ErrStopped
		default:
			return ErrAlreadyRunning
		}
	}
	defer l.closeDone()

	taskCtx := context.WithValue(ctx, loopKey{}, l)
	l.debugLog("dispatch loop started")

	for {
		select {
		case <-ctx.Done():
			l.debugLog("dispatch loop cancelled")
			return ctx.Err()
		case <-l.quit:
			l.debugLog("dispatch loop stopped")
			return nil
		case j := <-l.tasks:
			l.execute(taskCtx, j)
		}
	}
}

// Invoke runs fn on the loop and waits for it to finish. Called with a
// context handed out by the loop, fn runs inline on the current goroutine.
// If ctx is cancelled while waiting, fn may still run later.
func (l *Loop) Invoke(ctx context.Context, fn Task) error {
	if l.owns(ctx) {
		fn(ctx)
		return nil
	}

	j := job{fn: fn, done: make(chan struct{})}
	if err := l.enqueue(ctx, j); err != nil {
		return err
	}

	select {
	case <-j.done:
		return nil
	case <-l.done:
		// The loop may have finished the job just before exiting.
		select {
		case <-j.done:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Post queues fn without waiting for it to run.
func (l *Loop) Post(fn Task) error {
	return l.enqueue(context.Background(), job{fn: fn})
}

// Stop ends the loop. It is safe to call more than once and before Run.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.quit) })
	if l.started.CompareAndSwap(false, true) {
		l.closeDone()
	}
}

// Done is closed once the loop has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) enqueue(ctx context.Context, j job) error {
	select {
	case <-l.quit:
		return ErrStopped
	default:
	}

	select {
	case l.tasks <- j:
		return nil
	case <-l.quit:
		return ErrStopped
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) execute(ctx context.Context, j job) {
	defer func() {
		if r := recover(); r != nil && l.logger != nil {
			l.logger.Error("dispatch task panicked", slog.Any("panic", r))
		}
		if j.done != nil {
			close(j.done)
		}
	}()
	j.fn(ctx)
}

func (l *Loop) owns(ctx context.Context) bool {
	owner, _ := ctx.Value(loopKey{}).(*Loop)
	return owner == l
}

func (l *Loop) closeDone() {
	l.doneOnce.Do(func() { close(l.done) })
}

func (l *Loop) debugLog(msg string, args ...any) {
	if l.logger != nil {
		l.logger.Debug(msg, args...)
	}
}
