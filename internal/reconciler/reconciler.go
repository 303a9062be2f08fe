package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/knsan189/imageLabeler/internal/database"
	"github.com/knsan189/imageLabeler/internal/labeler"
	"github.com/knsan189/imageLabeler/internal/logging"
	"github.com/knsan189/imageLabeler/internal/mediatypes"
	"github.com/knsan189/imageLabeler/internal/metrics"
	"github.com/knsan189/imageLabeler/internal/photoindex"
)

const (
	// DefaultInterval is the target time between cycle starts.
	DefaultInterval = 30 * time.Second

	// DefaultPageSize is the number of candidates requested per cycle.
	DefaultPageSize = 100
)

// Lister returns photos that still need labeling.
type Lister interface {
	ListUncaptioned(ctx context.Context, count, offset int) (photoindex.Page, error)
}

// Ledger is the part of the outcome ledger the loop consults.
type Ledger interface {
	IsTerminal(ctx context.Context, uid string) (bool, error)
	LoadCheckpoint(ctx context.Context) (database.Checkpoint, error)
	SaveCheckpoint(ctx context.Context, cp database.Checkpoint) error
}

// Config controls cycle pacing and paging.
type Config struct {
	Interval time.Duration
	PageSize int
}

// Status is a snapshot of the loop for the status endpoint.
type Status struct {
	Running      bool      `json:"running"`
	Cycles       int64     `json:"cycles"`
	LastCycle    time.Time `json:"lastCycle,omitempty"`
	LastDuration string    `json:"lastDuration,omitempty"`
	LastError    string    `json:"lastError,omitempty"`
	LastEnqueued int       `json:"lastEnqueued"`
	Offset       int       `json:"offset"`
	InFlight     int       `json:"inFlight"`
}

// Reconciler periodically asks the photo index for unlabeled photos and
// dispatches each new one to the worker pool.
type Reconciler struct {
	cfg        Config
	lister     Lister
	ledger     Ledger
	dispatcher *Dispatcher
	trigger    chan struct{}

	mu           sync.Mutex
	running      bool
	cycles       int64
	offset       int
	lastCycle    time.Time
	lastDuration time.Duration
	lastErr      error
	lastEnqueued int
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLedger skips photos the ledger already marks terminal and persists the
// paging position after each successful cycle.
func WithLedger(l Ledger) Option {
	return func(r *Reconciler) {
		r.ledger = l
	}
}

// New creates a Reconciler. Zero config values take the defaults.
func New(cfg Config, lister Lister, dispatcher *Dispatcher, opts ...Option) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	r := &Reconciler{
		cfg:        cfg,
		lister:     lister,
		dispatcher: dispatcher,
		trigger:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes cycles until ctx ends. Each cycle start is spaced at least
// Interval after the previous one; a failed query waits a full Interval.
func (r *Reconciler) Run(ctx context.Context) error {
	r.setRunning(true)
	defer r.setRunning(false)

	r.resume(ctx)
	logging.Info("Starting reconciliation loop (interval: %v, page size: %d, offset: %d)",
		r.cfg.Interval, r.cfg.PageSize, r.Status().Offset)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info("Reconciliation loop stopped")
			return nil
		case <-timer.C:
		case <-r.trigger:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		start := time.Now()
		err := r.RunOnce(ctx)
		if ctx.Err() != nil {
			logging.Info("Reconciliation loop stopped")
			return nil
		}

		wait := r.cfg.Interval
		if err == nil {
			wait = nextWait(r.cfg.Interval, time.Since(start))
		}
		timer.Reset(wait)
	}
}

// resume restores the paging position saved by a previous process.
func (r *Reconciler) resume(ctx context.Context) {
	if r.ledger == nil {
		return
	}
	cp, err := r.ledger.LoadCheckpoint(ctx)
	if err != nil {
		logging.Warn("Ignoring saved checkpoint: %v", err)
		return
	}
	r.mu.Lock()
	r.offset = cp.Offset
	r.lastCycle = cp.LastCycle
	r.mu.Unlock()
}

// nextWait returns how long to sleep so cycles start interval apart.
func nextWait(interval, elapsed time.Duration) time.Duration {
	if wait := interval - elapsed; wait > 0 {
		return wait
	}
	return 0
}

// Trigger starts the next cycle without waiting for the interval. Calls
// made while a trigger is pending are coalesced.
func (r *Reconciler) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// RunOnce performs a single cycle: query, filter, dispatch, then wait for
// the pool to drain.
func (r *Reconciler) RunOnce(ctx context.Context) error {
	cycleID := logging.NewTaskID()
	ctx = logging.WithAttrs(ctx, slog.String("cycle", cycleID))
	start := time.Now()

	enqueued, err := r.cycle(ctx)
	duration := time.Since(start)

	r.mu.Lock()
	r.cycles++
	r.lastCycle = start
	r.lastDuration = duration
	r.lastErr = err
	r.lastEnqueued = enqueued
	r.mu.Unlock()

	metrics.ReconcileCyclesTotal.WithLabelValues(metrics.Status(err)).Inc()
	metrics.ReconcileLastCycleDuration.Set(duration.Seconds())

	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logging.ErrorContext(ctx, "Reconciliation cycle failed: %v", err)
		}
		return err
	}

	metrics.ReconcileLastCycleTimestamp.Set(float64(start.Unix()))
	if r.ledger != nil {
		r.mu.Lock()
		cp := database.Checkpoint{LastCycle: start, Offset: r.offset}
		r.mu.Unlock()
		if lerr := r.ledger.SaveCheckpoint(ctx, cp); lerr != nil {
			logging.WarnContext(ctx, "Failed to save checkpoint: %v", lerr)
		}
	}
	if enqueued > 0 {
		logging.InfoContext(ctx, "Cycle complete: %d candidates processed in %v", enqueued, duration)
	} else {
		logging.DebugContext(ctx, "Cycle complete: nothing to do")
	}
	return nil
}

func (r *Reconciler) cycle(ctx context.Context) (int, error) {
	r.mu.Lock()
	offset := r.offset
	r.mu.Unlock()

	page, err := r.lister.ListUncaptioned(ctx, r.cfg.PageSize, offset)
	if err != nil {
		return 0, fmt.Errorf("list candidates: %w", err)
	}
	logging.DebugContext(ctx, "Index returned %d rows, %d candidates (offset %d)",
		page.Fetched, len(page.Photos), offset)

	inFlight := r.dispatcher.InFlight()
	enqueued := 0
	for _, p := range page.Photos {
		if inFlight.Contains(p.UID) {
			metrics.ReconcileCandidatesTotal.WithLabelValues("in_flight").Inc()
			continue
		}
		if !mediatypes.IsSupportedImage(p.FileName) {
			metrics.ReconcileCandidatesTotal.WithLabelValues("unsupported").Inc()
			continue
		}
		if r.isTerminal(ctx, p.UID) {
			metrics.ReconcileCandidatesTotal.WithLabelValues("terminal").Inc()
			continue
		}
		if !r.dispatcher.Submit(labeler.FromPhoto(p)) {
			metrics.ReconcileCandidatesTotal.WithLabelValues("in_flight").Inc()
			continue
		}
		metrics.ReconcileCandidatesTotal.WithLabelValues("enqueued").Inc()
		enqueued++
	}

	// A full page with nothing to do would be returned again unchanged,
	// so the next cycle looks further down the list. Fullness is judged on
	// the rows the server sent, not on what survived filtering.
	r.mu.Lock()
	if page.Fetched >= r.cfg.PageSize && enqueued == 0 {
		r.offset += r.cfg.PageSize
	} else {
		r.offset = 0
	}
	r.mu.Unlock()

	if err := r.dispatcher.Wait(ctx); err != nil {
		return enqueued, err
	}
	return enqueued, nil
}

func (r *Reconciler) isTerminal(ctx context.Context, uid string) bool {
	if r.ledger == nil {
		return false
	}
	terminal, err := r.ledger.IsTerminal(ctx, uid)
	if err != nil {
		logging.WarnContext(ctx, "Ledger lookup failed for %s: %v", uid, err)
		return false
	}
	return terminal
}

func (r *Reconciler) setRunning(v bool) {
	r.mu.Lock()
	r.running = v
	r.mu.Unlock()
}

// Status returns a snapshot of the loop state.
func (r *Reconciler) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Status{
		Running:      r.running,
		Cycles:       r.cycles,
		LastCycle:    r.lastCycle,
		LastEnqueued: r.lastEnqueued,
		Offset:       r.offset,
		InFlight:     r.dispatcher.InFlight().Len(),
	}
	if r.cycles > 0 {
		s.LastDuration = r.lastDuration.String()
	}
	if r.lastErr != nil {
		s.LastError = r.lastErr.Error()
	}
	return s
}
