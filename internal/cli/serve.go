package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/knsan189/imageLabeler/internal/handlers"
	"github.com/knsan189/imageLabeler/internal/logging"
	"github.com/knsan189/imageLabeler/internal/metrics"
	"github.com/knsan189/imageLabeler/internal/middleware"
	"github.com/knsan189/imageLabeler/internal/startup"
)

const (
	shutdownTimeout    = 30 * time.Second
	sampleInterval     = 15 * time.Second
	pruneInterval      = time.Hour
	opsReadTimeout     = 15 * time.Second
	opsIdleTimeout     = 60 * time.Second
	opsWriteTimeout    = 30 * time.Second
	opsHeaderTimeout   = 5 * time.Second
	drainOnStopTimeout = 10 * time.Second
)

var errStopped = errors.New("labeling loop stopped unexpectedly")

// daemon describes a long-running mode.
type daemon struct {
	// run blocks until ctx ends.
	run func(ctx context.Context) error
	// loop and trigger feed the ops endpoints; both may be nil.
	loop    handlers.Loop
	trigger func()
}

// serve runs d next to the ops server, the gauge sampler and the ledger
// pruner until ctx ends or one of them fails, then shuts everything down.
func serve(ctx context.Context, a *app, d daemon, startTime time.Time) error {
	g, gctx := errgroup.WithContext(ctx)

	var srv *http.Server
	if a.cfg.MetricsEnabled {
		router := handlers.New(handlers.Deps{
			Mode:     a.mode,
			Loop:     d.loop,
			Ledger:   a.db,
			Pool:     a.pool,
			Index:    a.index,
			InFlight: a.dispatcher.InFlight(),
			Trigger:  d.trigger,
		}).NewRouter(middleware.Config{LogProbes: a.cfg.LogHealthChecks})
		startup.LogHTTPRoutes(router, a.cfg.LogHealthChecks)

		srv = &http.Server{
			Addr:              a.cfg.MetricsAddr,
			Handler:           router,
			ReadTimeout:       opsReadTimeout,
			ReadHeaderTimeout: opsHeaderTimeout,
			WriteTimeout:      opsWriteTimeout,
			IdleTimeout:       opsIdleTimeout,
		}
	}

	startup.LogServerStarted(startup.ServerConfig{
		Mode:            a.mode,
		Workers:         a.pool.Limit(),
		MetricsAddr:     a.cfg.MetricsAddr,
		MetricsEnabled:  a.cfg.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	g.Go(func() error {
		if err := d.run(gctx); err != nil {
			return err
		}
		if gctx.Err() == nil {
			return errStopped
		}
		return nil
	})
	g.Go(func() error {
		a.pruneLoop(gctx)
		return nil
	})
	g.Go(func() error {
		return metrics.NewSampler(a, sampleInterval).Run(gctx)
	})
	if srv != nil {
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("ops server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		reason := "signal"
		if ctx.Err() == nil {
			reason = "error"
		}
		startup.LogShutdownInitiated(reason)
		if srv != nil {
			shutdownServer(srv)
		}
		return nil
	})

	err := g.Wait()
	if err != nil {
		logging.Error("Stopped after failure: %v", err)
	}

	startup.LogShutdownStep("Waiting for running tasks")
	drainCtx, cancel := context.WithTimeout(context.Background(), drainOnStopTimeout)
	if derr := a.dispatcher.Wait(drainCtx); derr != nil {
		logging.Warn("Tasks still running at shutdown: %v", derr)
	} else {
		startup.LogShutdownStepComplete("Tasks finished")
	}
	cancel()

	startup.LogShutdownStep("Closing ledger and exiftool")
	a.close()
	startup.LogShutdownStepComplete("Ledger and exiftool closed")

	startup.LogShutdownComplete()
	return err
}

func shutdownServer(srv *http.Server) {
	startup.LogShutdownStep("Shutting down ops server")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Ops server shutdown error: %v", err)
		return
	}
	startup.LogShutdownStepComplete("Ops server stopped")
}

// pruneLoop drops retryable ledger entries older than the retention window
// once at startup and then hourly.
func (a *app) pruneLoop(ctx context.Context) {
	if a.cfg.LedgerRetention <= 0 {
		return
	}
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		a.prune(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *app) prune(ctx context.Context) {
	removed, err := a.db.Prune(ctx, time.Now().Add(-a.cfg.LedgerRetention))
	switch {
	case err != nil && ctx.Err() == nil:
		logging.Warn("Ledger prune failed: %v", err)
	case removed > 0:
		logging.Info("Pruned %d ledger rows older than %v", removed, a.cfg.LedgerRetention)
	}
}
