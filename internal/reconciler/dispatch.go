package reconciler

import (
	"context"

	"github.com/knsan189/imageLabeler/internal/labeler"
	"github.com/knsan189/imageLabeler/internal/workers"
)

// ProcessFunc runs the per-candidate task.
type ProcessFunc func(ctx context.Context, c labeler.Candidate) error

// Dispatcher enqueues candidates on a pool, skipping those already in flight.
// Poll, watch and scan modes share one Dispatcher.
type Dispatcher struct {
	pool     *workers.Pool
	inFlight *InFlight
	process  ProcessFunc
}

// NewDispatcher creates a Dispatcher. A nil inFlight gets a fresh set.
func NewDispatcher(pool *workers.Pool, inFlight *InFlight, process ProcessFunc) *Dispatcher {
	if inFlight == nil {
		inFlight = NewInFlight()
	}
	return &Dispatcher{pool: pool, inFlight: inFlight, process: process}
}

// ProcessorFunc adapts a labeler.Processor to a ProcessFunc.
func ProcessorFunc(p *labeler.Processor) ProcessFunc {
	return func(ctx context.Context, c labeler.Candidate) error {
		_, err := p.Process(ctx, c)
		return err
	}
}

// Submit marks c in flight and enqueues it. It returns false when c is
// already in flight.
func (d *Dispatcher) Submit(c labeler.Candidate) bool {
	key := c.Identity()
	if !d.inFlight.TryAdd(key) {
		return false
	}

	d.pool.Enqueue(func(ctx context.Context) error {
		defer d.inFlight.Remove(key)
		return d.process(ctx, c)
	})
	return true
}

// InFlight returns the dispatcher's in-flight set.
func (d *Dispatcher) InFlight() *InFlight {
	return d.inFlight
}

// Pool returns the dispatcher's pool.
func (d *Dispatcher) Pool() *workers.Pool {
	return d.pool
}

// Wait blocks until the pool drains or ctx ends.
func (d *Dispatcher) Wait(ctx context.Context) error {
	return d.pool.Wait(ctx)
}
