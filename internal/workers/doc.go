/*
Package workers sizes and runs the labeler's bounded task pools.

# Sizing

Size derives a pool size from GOMAXPROCS, which Go sets from the container
CPU quota, and a Workload:

	n := workers.Size(workers.IOBound, 16) // two per CPU, at most 16

The labeler pool is IOBound; LABELER_WORKERS in the configuration replaces
the computed value.

# Pool

Pool runs Task values with a fixed concurrency ceiling:

	pool := workers.NewPool(ctx, workers.Size(workers.IOBound, 8))
	pool.Enqueue(func(ctx context.Context) error { return process(ctx, item) })
	<-pool.OnIdle()

Tasks start in FIFO order. Returned errors and recovered panics are passed to
the WithErrorObserver callback (or logged as warnings) and never stop other
tasks. OnIdle returns a channel closed when the queue is empty and nothing is
running; tasks enqueued by running tasks are waited for as well.

# Thread Safety

All functions and Pool methods are safe for concurrent use.
*/
package workers
