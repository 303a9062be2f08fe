package cli

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/knsan189/imageLabeler/internal/database"
	"github.com/knsan189/imageLabeler/internal/extract"
	"github.com/knsan189/imageLabeler/internal/filesystem"
	"github.com/knsan189/imageLabeler/internal/labeler"
	"github.com/knsan189/imageLabeler/internal/labels"
	"github.com/knsan189/imageLabeler/internal/logging"
	"github.com/knsan189/imageLabeler/internal/metrics"
	"github.com/knsan189/imageLabeler/internal/photoindex"
	"github.com/knsan189/imageLabeler/internal/reconciler"
	"github.com/knsan189/imageLabeler/internal/sdmeta"
	"github.com/knsan189/imageLabeler/internal/source"
	"github.com/knsan189/imageLabeler/internal/startup"
	"github.com/knsan189/imageLabeler/internal/textchunk"
	"github.com/knsan189/imageLabeler/internal/workers"
)

// app holds the components one command run needs. Fields a mode does not
// use stay nil.
type app struct {
	mode string
	cfg  *startup.Config

	db         *database.Database
	exiftool   *extract.Exiftool
	extractor  *extract.Chain
	normalizer *labels.Normalizer
	index      *photoindex.Client
	processor  *labeler.Processor
	pool       *workers.Pool
	dispatcher *reconciler.Dispatcher
	gate       *source.Gate
	tally      *tally
}

// loadConfig reads and validates the configuration for mode and applies
// the persistent flags.
func loadConfig(opts *options, mode string) (*startup.Config, error) {
	cfg, err := startup.LoadConfig(opts.envFile)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	if opts.dryRun {
		cfg.DryRun = true
	}
	if err := cfg.Validate(mode); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// newApp builds everything a labeling mode needs: ledger, extractor chain,
// index client, processor, pool and dispatcher.
func newApp(ctx context.Context, opts *options, mode string) (*app, error) {
	cfg, err := loadConfig(opts, mode)
	if err != nil {
		return nil, err
	}
	startup.LogConfig(cfg, mode)

	volumes := filesystem.NewVolumes(cfg.Volumes)
	filesystem.SetVolumes(volumes)
	filesystem.SetObserver(metrics.NewFilesystemObserver())
	metrics.InitializeMetrics(volumes.Names())
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)

	a := &app{mode: mode, cfg: cfg, tally: newTally()}

	if err := a.openLedger(ctx); err != nil {
		return nil, err
	}
	if err := a.buildExtraction(); err != nil {
		a.close()
		return nil, err
	}

	a.index = photoindex.NewClient(cfg.IndexURL, cfg.IndexToken,
		photoindex.WithTimeout(cfg.RequestTimeout),
		photoindex.WithRateLimit(cfg.RequestRate, cfg.RequestBurst),
		photoindex.WithCandidateQuery(cfg.CandidateQuery),
	)
	pingCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	startup.LogIndexCheck(cfg.IndexURL, a.index.Ping(pingCtx))
	cancel()

	a.processor = labeler.New(labeler.Config{
		OriginalsDir:     cfg.OriginalsDir,
		MarkerLabel:      cfg.MarkerLabel,
		LabelPriority:    cfg.LabelPriority,
		LabelUncertainty: cfg.LabelUncertainty,
		UIDRetryAttempts: cfg.UIDRetryAttempts,
		UIDRetryDelay:    cfg.UIDRetryDelay,
		StableInterval:   cfg.StableInterval,
		StableTimeout:    cfg.StableTimeout,
		UpdateCaption:    cfg.UpdateCaption,
		DryRun:           cfg.DryRun,
	}, a.index, a.extractor, a.normalizer, labeler.WithLedger(a.db))

	a.gate = source.NewGate(a.db)
	a.pool = workers.NewPool(ctx, cfg.Workers,
		workers.WithName("labeler"),
		workers.WithErrorObserver(func(err error) {
			logging.Error("Labeler task failed: %v", err)
		}),
	)
	a.dispatcher = reconciler.NewDispatcher(a.pool, nil, a.process)
	return a, nil
}

// newInspector builds the extraction side only; inspect never touches the
// index or the ledger.
func newInspector(opts *options) (*app, error) {
	cfg, err := loadConfig(opts, startup.ModeInspect)
	if err != nil {
		return nil, err
	}
	a := &app{mode: startup.ModeInspect, cfg: cfg}
	if err := a.buildExtraction(); err != nil {
		return nil, err
	}
	a.processor = labeler.New(labeler.Config{MarkerLabel: cfg.MarkerLabel}, nil, a.extractor, a.normalizer)
	return a, nil
}

func (a *app) openLedger(ctx context.Context) error {
	if err := a.cfg.PrepareDatabaseDir(); err != nil {
		return err
	}
	start := time.Now()
	db, err := database.New(ctx, a.cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize ledger: %w", err)
	}
	startup.LogDatabaseInit(time.Since(start))
	a.db = db
	return nil
}

func (a *app) buildExtraction() error {
	chain := []extract.Extractor{extract.NewNative()}
	if a.cfg.ExiftoolOn {
		a.exiftool = extract.NewExiftool(a.cfg.ExiftoolPath)
		chain = append(chain, a.exiftool)
	}
	a.extractor = extract.NewChain(parses, chain...)
	if a.mode != startup.ModeInspect {
		startup.LogExtractorInit(a.cfg, a.extractor.Extractors())
	}

	opts := []labels.Option{labels.WithLimit(a.cfg.LabelLimit)}
	if a.cfg.StopwordsFile != "" {
		f, err := labels.LoadStopwords(a.cfg.StopwordsFile)
		if err != nil {
			return fmt.Errorf("load stopwords: %w", err)
		}
		opts = append(f.Options(), opts...)
	}
	a.normalizer = labels.New(opts...)
	return nil
}

// parses accepts an extraction result when some dialect recognises it, so
// the chain falls through to exiftool for files whose text chunks carry
// only unrelated keys.
func parses(m textchunk.Map) bool {
	_, ok := sdmeta.Parse(m)
	return ok
}

// label runs the processor on c, counts the outcome and marks terminal
// path candidates as seen for the gate.
func (a *app) label(ctx context.Context, c labeler.Candidate) (labeler.Result, error) {
	res, err := a.processor.Process(ctx, c)
	if res.Outcome != "" {
		a.tally.add(res.Outcome)
	}
	if err == nil && c.Path != "" && res.Outcome.Terminal() && !a.cfg.DryRun {
		a.gate.Mark(ctx, c.Path)
	}
	return res, err
}

// process is the dispatcher's task.
func (a *app) process(ctx context.Context, c labeler.Candidate) error {
	_, err := a.label(ctx, c)
	return err
}

// submitPath hands a local file to the dispatcher unless the gate has
// already seen it at its current size and modification time.
func (a *app) submitPath(ctx context.Context, path string) bool {
	if !a.gate.Fresh(ctx, path) {
		logging.Debug("Skipping unchanged file %s", path)
		return false
	}
	return a.dispatcher.Submit(labeler.Candidate{Path: path})
}

func (a *app) close() {
	if a.exiftool != nil {
		if err := a.exiftool.Close(); err != nil {
			logging.Warn("Failed to stop exiftool: %v", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			logging.Warn("Failed to close ledger: %v", err)
		}
	}
}

// Stats implements metrics.StatsProvider.
func (a *app) Stats(ctx context.Context) metrics.Stats {
	st := metrics.Stats{}
	if a.dispatcher != nil {
		st.InFlight = a.dispatcher.InFlight().Len()
	}
	if a.pool != nil {
		ps := a.pool.Stats()
		st.PoolActive = ps.Active
		st.PoolQueued = ps.Queued
	}
	if a.db != nil {
		st.OpenDBConns = a.db.OpenConnections()
		counts, err := a.db.CountOutcomes(ctx)
		if err != nil && ctx.Err() == nil {
			logging.Warn("Failed to count ledger outcomes: %v", err)
		}
		if err == nil {
			st.Outcomes = counts
		}
	}
	return st
}

// tally counts outcomes for the single-run summaries.
type tally struct {
	mu     sync.Mutex
	counts map[database.Outcome]int
}

func newTally() *tally {
	return &tally{counts: make(map[database.Outcome]int)}
}

func (t *tally) add(o database.Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[o]++
}

// snapshot returns the counts keyed by outcome name.
func (t *tally) snapshot() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int, len(t.counts))
	for o, n := range t.counts {
		out[string(o)] = n
	}
	return out
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
