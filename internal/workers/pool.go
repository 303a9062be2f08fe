package workers

import (
	"context"
	"fmt"
	"sync"

	"github.com/knsan189/imageLabeler/internal/logging"
)

// Task is a unit of work run by a Pool.
type Task func(ctx context.Context) error

// Stats is a snapshot of pool state.
type Stats struct {
	Active    int    `json:"active"`
	Queued    int    `json:"queued"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
	Limit     int    `json:"limit"`
}

// Pool runs tasks with a fixed concurrency ceiling. Tasks start in enqueue
// order; a failing or panicking task is reported to the error observer and
// never stops its siblings.
type Pool struct {
	ctx     context.Context
	name    string
	limit   int
	onError func(error)

	mu        sync.Mutex
	queue     []Task
	active    int
	completed uint64
	failed    uint64
	idle      chan struct{}
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithErrorObserver sets the callback that receives task errors and panics.
// Without one, failures are logged as warnings.
func WithErrorObserver(fn func(error)) PoolOption {
	return func(p *Pool) {
		p.onError = fn
	}
}

// WithName sets the name used in log lines.
func WithName(name string) PoolOption {
	return func(p *Pool) {
		p.name = name
	}
}

// NewPool creates a pool running at most concurrency tasks at once. Values
// below 1 are treated as 1. Every task receives ctx.
func NewPool(ctx context.Context, concurrency int, opts ...PoolOption) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	p := &Pool{
		ctx:   ctx,
		name:  "pool",
		limit: concurrency,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.onError == nil {
		name := p.name
		p.onError = func(err error) {
			logging.Warn("%s: task failed: %v", name, err)
		}
	}
	return p
}

// Enqueue appends task and starts it if a slot is free.
func (p *Pool) Enqueue(task Task) {
	if task == nil {
		return
	}
	p.mu.Lock()
	p.queue = append(p.queue, task)
	p.dispatchLocked()
	p.mu.Unlock()
}

// OnIdle returns a channel that is closed once the queue is empty and no task
// is running. If the pool is idle already the channel is closed on return.
// All waiters share the same channel and are released together.
func (p *Pool) OnIdle() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isIdleLocked() {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	if p.idle == nil {
		p.idle = make(chan struct{})
	}
	return p.idle
}

// Wait blocks until the pool is idle or ctx ends.
func (p *Pool) Wait(ctx context.Context) error {
	select {
	case <-p.OnIdle():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Active:    p.active,
		Queued:    len(p.queue),
		Completed: p.completed,
		Failed:    p.failed,
		Limit:     p.limit,
	}
}

// Limit returns the concurrency ceiling.
func (p *Pool) Limit() int {
	return p.limit
}

// dispatchLocked starts queued tasks while slots are free. Caller holds p.mu.
func (p *Pool) dispatchLocked() {
	for p.active < p.limit && len(p.queue) > 0 {
		task := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.active++
		go p.run(task)
	}
}

func (p *Pool) run(task Task) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: task panicked: %v", p.name, r)
		}
		if err != nil {
			p.onError(err)
		}
		p.finish(err)
	}()
	err = task(p.ctx)
}

func (p *Pool) finish(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.active--
	if err != nil {
		p.failed++
	} else {
		p.completed++
	}
	p.dispatchLocked()

	if p.isIdleLocked() && p.idle != nil {
		close(p.idle)
		p.idle = nil
	}
}

func (p *Pool) isIdleLocked() bool {
	return p.active == 0 && len(p.queue) == 0
}
