/*
Package reconciler drives poll mode and the dispatch shared by all modes.

A Reconciler runs cycles until its context ends. Each cycle asks the photo
index for a page of photos without a caption, drops those that are already
in flight, are not supported images or already reached a terminal outcome in
the ledger, and hands the rest to a Dispatcher. The cycle then waits for the
worker pool to drain before the next one is scheduled:

	d := reconciler.NewDispatcher(pool, nil, reconciler.ProcessorFunc(proc))
	r := reconciler.New(reconciler.Config{Interval: 30 * time.Second, PageSize: 100}, client, d,
		reconciler.WithLedger(db))
	err := r.Run(ctx)

Cycle starts are spaced Interval apart; a cycle that took longer than
Interval is followed immediately by the next one. A failed query is logged
and the loop waits a full Interval.

When a full page yields no work the next cycle requests the following page,
so items that are permanently skipped cannot hide newer candidates. Any
cycle that dispatches work, or sees a short page, starts again at offset 0.

InFlight keys are candidate identities: the photo UID, or "path:" plus the
local path for watch-mode candidates that are not yet resolved.
*/
package reconciler
