package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/knsan189/imageLabeler/internal/logging"
	"github.com/knsan189/imageLabeler/internal/source"
	"github.com/knsan189/imageLabeler/internal/startup"
)

func newWatchCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Label images as they are written under WATCH_DIR",
		Long: `watch scans WATCH_DIR once, then follows file system events below it and
labels every image whose writes have settled. Files already handled at
their current size and modification time are skipped. POST /api/scan on
the ops server requests another full scan.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), opts)
		},
	}
}

func runWatch(ctx context.Context, opts *options) error {
	start := time.Now()
	a, err := newApp(ctx, opts, startup.ModeWatch)
	if err != nil {
		return err
	}

	root := a.cfg.WatchDir
	watcher := source.NewWatcher(root, a.cfg.WatchDebounce)
	scans := newRescanner(a, root)

	run := func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			if err := watcher.Run(gctx, func(path string) { a.submitPath(gctx, path) }); err != nil {
				return err
			}
			if gctx.Err() == nil {
				return errStopped
			}
			return nil
		})
		g.Go(func() error { return scans.run(gctx) })
		return g.Wait()
	}

	return serve(ctx, a, daemon{run: run, trigger: scans.Trigger}, start)
}

// rescanner runs full scans of root: one at startup and one per coalesced
// Trigger call.
type rescanner struct {
	a       *app
	root    string
	request chan struct{}
}

func newRescanner(a *app, root string) *rescanner {
	return &rescanner{a: a, root: root, request: make(chan struct{}, 1)}
}

// Trigger requests a scan. Requests made while one is pending are merged.
func (r *rescanner) Trigger() {
	select {
	case r.request <- struct{}{}:
	default:
	}
}

func (r *rescanner) run(ctx context.Context) error {
	if err := r.scan(ctx); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.request:
			if err := r.scan(ctx); err != nil && ctx.Err() == nil {
				logging.Error("Rescan of %s failed: %v", r.root, err)
			}
		}
	}
}

func (r *rescanner) scan(ctx context.Context) error {
	start := time.Now()
	paths, err := source.Scan(ctx, r.root)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	submitted := 0
	for _, p := range paths {
		if r.a.submitPath(ctx, p) {
			submitted++
		}
	}
	logging.Info("Scan of %s: %d images, %d submitted in %v", r.root, len(paths), submitted, time.Since(start).Round(time.Millisecond))
	return nil
}
