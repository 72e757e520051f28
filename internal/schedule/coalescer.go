package schedule

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task computes a result. It should return promptly once ctx is canceled.
type Task[T any] func(ctx context.Context) (T, error)

// Coalescer debounces scheduled tasks. Scheduling a new task cancels the
// pending or running one, and only the most recently scheduled task may
// deliver its result to apply.
type Coalescer[T any] struct {
	delay time.Duration
	apply func(T)
	log   *zap.Logger

	mu      sync.Mutex
	gen     uint64
	timer   *time.Timer
	cancel  context.CancelFunc
	pending int
	idle    chan struct{}
	stopped bool

	// serializes apply calls; never held together with mu while waiting
	applyMu sync.Mutex
}

// New creates a coalescer that runs tasks delay after their last schedule
func New[T any](delay time.Duration, apply func(T), log *zap.Logger) *Coalescer[T] {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coalescer[T]{delay: delay, apply: apply, log: log}
}

// Schedule replaces any pending task with task
func (c *Coalescer[T]) Schedule(task Task[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}

	c.gen++
	gen := c.gen
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	// A timer stopped before firing hands its pending slot to the new task.
	if c.timer == nil || !c.timer.Stop() {
		c.pending++
		if c.pending == 1 {
			c.idle = make(chan struct{})
		}
	}
	c.timer = time.AfterFunc(c.delay, func() { c.run(ctx, gen, task) })
}

func (c *Coalescer[T]) run(ctx context.Context, gen uint64, task Task[T]) {
	defer c.finish()
	if ctx.Err() != nil {
		return
	}

	v, err := task(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.log.Warn("scheduled task failed", zap.Uint64("gen", gen), zap.Error(err))
		}
		return
	}

	c.applyMu.Lock()
	defer c.applyMu.Unlock()
	if !c.current(gen) || ctx.Err() != nil {
		c.log.Debug("discarding stale result", zap.Uint64("gen", gen))
		return
	}
	c.apply(v)
}

func (c *Coalescer[T]) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.stopped && gen == c.gen
}

func (c *Coalescer[T]) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending--
	if c.pending == 0 && c.idle != nil {
		close(c.idle)
		c.idle = nil
	}
}

// Pending reports whether a task is scheduled or running
func (c *Coalescer[T]) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending > 0
}

// Settle blocks until no task is scheduled or running
func (c *Coalescer[T]) Settle(ctx context.Context) error {
	c.mu.Lock()
	if c.pending == 0 {
		c.mu.Unlock()
		return nil
	}
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop cancels pending work. Later calls to Schedule are ignored.
func (c *Coalescer[T]) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	if c.cancel != nil {
		c.cancel()
	}
	if c.timer != nil && c.timer.Stop() {
		c.pending--
		if c.pending == 0 && c.idle != nil {
			close(c.idle)
			c.idle = nil
		}
	}
}
