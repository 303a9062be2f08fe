package labeler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/knsan189/imageLabeler/internal/database"
	"github.com/knsan189/imageLabeler/internal/extract"
	"github.com/knsan189/imageLabeler/internal/filesystem"
	"github.com/knsan189/imageLabeler/internal/labels"
	"github.com/knsan189/imageLabeler/internal/logging"
	"github.com/knsan189/imageLabeler/internal/mediatypes"
	"github.com/knsan189/imageLabeler/internal/metrics"
	"github.com/knsan189/imageLabeler/internal/photoindex"
	"github.com/knsan189/imageLabeler/internal/sdmeta"
)

// ErrUnsupportedFile is returned for candidates that are not supported images.
var ErrUnsupportedFile = errors.New("unsupported file type")

// Candidate identifies one image to process. Poll mode fills UID, FileName
// and Folder from the index; watch and scan modes fill Path and leave UID to
// be resolved by file name.
type Candidate struct {
	UID      string
	FileName string
	Folder   string
	Path     string
}

// FromPhoto builds a candidate from an index search result.
func FromPhoto(p photoindex.Photo) Candidate {
	return Candidate{UID: p.UID, FileName: p.FileName, Folder: p.Folder}
}

// Name returns the candidate's base file name.
func (c Candidate) Name() string {
	if c.Path != "" {
		return filepath.Base(c.Path)
	}
	return path.Base(c.FileName)
}

// Identity is the key used for in-flight tracking and the ledger.
func (c Candidate) Identity() string {
	return database.EntryKey(c.UID, c.Path)
}

func (c Candidate) String() string {
	if c.UID != "" {
		return c.UID + " (" + c.Name() + ")"
	}
	return c.Path
}

// Index is the part of the photo index the processor needs.
type Index interface {
	FindByFileName(ctx context.Context, name string) (photoindex.Photo, error)
	Labels(ctx context.Context, uid string) ([]string, error)
	AddLabel(ctx context.Context, uid string, label photoindex.Label) error
	UpdateCaption(ctx context.Context, uid, caption, description string) error
}

// Ledger records per-candidate outcomes.
type Ledger interface {
	RecordOutcome(ctx context.Context, e database.Entry) error
}

// Config controls a Processor.
type Config struct {
	// OriginalsDir is the local mount of the index's originals folder.
	OriginalsDir string
	// MarkerLabel is written last and marks a photo as processed.
	MarkerLabel      string
	LabelPriority    int
	LabelUncertainty int

	UIDRetryAttempts int
	UIDRetryDelay    time.Duration

	StableInterval time.Duration
	StableTimeout  time.Duration

	// UpdateCaption writes the positive prompt as caption and the negative
	// prompt plus parameter summary as description.
	UpdateCaption bool
	DryRun        bool
}

// Result describes what Process did with a candidate.
type Result struct {
	Outcome  database.Outcome
	UID      string
	Path     string
	Strategy string
	Metadata *sdmeta.Metadata
	Labels   []string
	Written  int
}

// Processor runs the per-candidate task shared by every mode.
type Processor struct {
	cfg        Config
	index      Index
	extractor  extract.Extractor
	normalizer *labels.Normalizer
	ledger     Ledger
	probe      func(string) (int, int, error)
}

// Option configures a Processor.
type Option func(*Processor)

// WithLedger records every outcome in l.
func WithLedger(l Ledger) Option {
	return func(p *Processor) {
		p.ledger = l
	}
}

// WithSizeProbe replaces the image header probe used when the metadata
// carries no size.
func WithSizeProbe(fn func(string) (int, int, error)) Option {
	return func(p *Processor) {
		p.probe = fn
	}
}

// New creates a Processor.
func New(cfg Config, index Index, extractor extract.Extractor, normalizer *labels.Normalizer, opts ...Option) *Processor {
	if cfg.UIDRetryAttempts < 1 {
		cfg.UIDRetryAttempts = 1
	}
	if normalizer == nil {
		normalizer = labels.New()
	}
	p := &Processor{
		cfg:        cfg,
		index:      index,
		extractor:  extractor,
		normalizer: normalizer,
		probe:      extract.ProbeSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs the labeling steps for c. Per-item problems (unresolved UID,
// missing file, no metadata, no labels) are logged as warnings and reported
// through Result.Outcome with a nil error; an error is returned only when the
// index could not be read or ctx ended.
func (p *Processor) Process(ctx context.Context, c Candidate) (res Result, err error) {
	start := time.Now()
	ctx = logging.WithAttrs(ctx,
		slog.String("task", logging.NewTaskID()),
		slog.String("uid", c.UID),
		slog.String("file", c.Name()),
	)

	res = Result{UID: c.UID, Path: c.Path}
	defer func() {
		if res.Outcome == "" {
			res.Outcome = database.OutcomeError
		}
		metrics.LabelerItemsTotal.WithLabelValues(string(res.Outcome)).Inc()
		metrics.LabelerItemDuration.Observe(time.Since(start).Seconds())
		p.record(ctx, res, err)
	}()

	if !mediatypes.IsSupportedImage(c.Name()) {
		res.Outcome = database.OutcomeError
		return res, fmt.Errorf("%w: %s", ErrUnsupportedFile, c.Name())
	}

	if res.UID == "" {
		photo, err := p.resolveUID(ctx, c.Name())
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			logging.WarnContext(ctx, "could not resolve %s in the photo index after %d attempts: %v",
				c.Name(), p.cfg.UIDRetryAttempts, err)
			res.Outcome = database.OutcomeUnresolved
			return res, nil
		}
		res.UID = photo.UID
		ctx = logging.WithAttrs(ctx, slog.String("resolved_uid", photo.UID))
		if c.Path == "" {
			c.FileName, c.Folder = photo.FileName, photo.Folder
		}
	}

	existing, err := p.index.Labels(ctx, res.UID)
	if err != nil {
		return res, fmt.Errorf("read labels of %s: %w", res.UID, err)
	}
	if containsFold(existing, p.cfg.MarkerLabel) {
		logging.DebugContext(ctx, "already marked with %q, skipping", p.cfg.MarkerLabel)
		res.Outcome = database.OutcomeAlreadyMarked
		return res, nil
	}

	match, ok := p.locate(c)
	if !ok {
		logging.WarnContext(ctx, "no local file for %s", c)
		res.Outcome = database.OutcomeNotFound
		return res, nil
	}
	res.Path, res.Strategy = match.Path, match.Strategy
	if match.Strategy != filesystem.StrategyExact {
		logging.DebugContext(ctx, "resolved %s to %s (%s)", c.Name(), match.Path, match.Strategy)
	}

	stability, err := filesystem.WaitStable(ctx, match.Path, p.cfg.StableInterval, p.cfg.StableTimeout)
	if err != nil {
		return res, fmt.Errorf("wait for %s: %w", match.Path, err)
	}
	switch stability {
	case filesystem.Vanished:
		logging.InfoContext(ctx, "%s disappeared before processing", match.Path)
		res.Outcome = database.OutcomeVanished
		return res, nil
	case filesystem.TimedOut:
		logging.DebugContext(ctx, "%s still changing after %v, processing anyway", match.Path, p.cfg.StableTimeout)
	}

	chunks, err := p.extractor.Extract(ctx, match.Path)
	switch {
	case err != nil && !chunks.HasContent():
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		metrics.ExtractionsTotal.WithLabelValues("error").Inc()
		logging.WarnContext(ctx, "extraction failed for %s: %v", match.Path, err)
		res.Outcome = database.OutcomeError
		return res, fmt.Errorf("extract %s: %w", match.Path, err)
	case !chunks.HasContent():
		metrics.ExtractionsTotal.WithLabelValues("empty").Inc()
		logging.WarnContext(ctx, "no metadata in %s", match.Path)
		res.Outcome = database.OutcomeNoMetadata
		return res, nil
	}
	metrics.ExtractionsTotal.WithLabelValues("found").Inc()

	md, ok := sdmeta.Parse(chunks)
	if !ok {
		logging.WarnContext(ctx, "no generation prompt in %s (keywords: %s)", match.Path, strings.Join(chunks.Keys(), ", "))
		res.Outcome = database.OutcomeNoLabels
		return res, nil
	}
	metrics.DialectsTotal.WithLabelValues(md.Dialect).Inc()
	res.Metadata = md

	res.Labels = p.normalizer.Build(md)
	if len(res.Labels) == 0 {
		logging.WarnContext(ctx, "prompt in %s produced no labels", match.Path)
		res.Outcome = database.OutcomeNoLabels
		return res, nil
	}

	res.Outcome = p.write(ctx, res.UID, md, match.Path, res.Labels, existing, &res.Written)
	return res, nil
}

// Inspect runs extraction, parsing and normalization on a local file without
// touching the index.
func (p *Processor) Inspect(ctx context.Context, path string) (*sdmeta.Metadata, []string, error) {
	if !mediatypes.IsSupportedImage(path) {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, filepath.Base(path))
	}
	chunks, err := p.extractor.Extract(ctx, path)
	if !chunks.HasContent() {
		if err != nil {
			return nil, nil, err
		}
		return nil, nil, nil
	}
	md, ok := sdmeta.Parse(chunks)
	if !ok {
		return &sdmeta.Metadata{Raw: chunks}, nil, nil
	}
	return md, p.normalizer.Build(md), nil
}

func (p *Processor) write(ctx context.Context, uid string, md *sdmeta.Metadata, file string, derived, existing []string, written *int) database.Outcome {
	if p.cfg.DryRun {
		logging.InfoContext(ctx, "dry run: would add labels %v and marker %q to %s", derived, p.cfg.MarkerLabel, uid)
		if p.cfg.UpdateCaption {
			logging.InfoContext(ctx, "dry run: would set caption %q", md.Positive)
		}
		return database.OutcomeLabeled
	}

	for _, name := range derived {
		if containsFold(existing, name) {
			continue
		}
		if err := p.addLabel(ctx, uid, name); err != nil {
			logging.WarnContext(ctx, "add label %q: %v", name, err)
			continue
		}
		*written++
	}

	outcome := database.OutcomeLabeled
	if p.cfg.MarkerLabel != "" {
		if err := p.addLabel(ctx, uid, p.cfg.MarkerLabel); err != nil {
			logging.WarnContext(ctx, "add marker label %q: %v", p.cfg.MarkerLabel, err)
			outcome = database.OutcomeError
		}
	}

	if p.cfg.UpdateCaption {
		if md.Size == nil && p.probe != nil {
			if w, h, err := p.probe(file); err == nil {
				md = md.WithSize(w, h)
			}
		}
		if err := p.index.UpdateCaption(ctx, uid, md.Positive, Description(md)); err != nil {
			logging.WarnContext(ctx, "update caption: %v", err)
		}
	}

	logging.InfoContext(ctx, "labeled with %d new labels (%d derived, dialect %s)", *written, len(derived), md.Dialect)
	return outcome
}

func (p *Processor) addLabel(ctx context.Context, uid, name string) error {
	err := p.index.AddLabel(ctx, uid, photoindex.Label{
		Name:        name,
		Priority:    p.cfg.LabelPriority,
		Uncertainty: p.cfg.LabelUncertainty,
	})
	metrics.LabelsWrittenTotal.WithLabelValues(metrics.Status(err)).Inc()
	return err
}

// Description is the negative prompt followed by the generation parameters.
func Description(md *sdmeta.Metadata) string {
	var parts []string
	if md.Negative != "" {
		parts = append(parts, "Negative prompt: "+md.Negative)
	}
	if s := md.Summary(); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, "\n")
}

func (p *Processor) resolveUID(ctx context.Context, name string) (photoindex.Photo, error) {
	var lastErr error
	for attempt := 1; attempt <= p.cfg.UIDRetryAttempts; attempt++ {
		photo, err := p.index.FindByFileName(ctx, name)
		if err == nil {
			return photo, nil
		}
		lastErr = err
		if attempt == p.cfg.UIDRetryAttempts {
			break
		}
		logging.DebugContext(ctx, "uid lookup attempt %d/%d failed: %v", attempt, p.cfg.UIDRetryAttempts, err)
		if err := sleep(ctx, p.cfg.UIDRetryDelay); err != nil {
			return photoindex.Photo{}, err
		}
	}
	return photoindex.Photo{}, lastErr
}

func (p *Processor) locate(c Candidate) (filesystem.Match, bool) {
	if c.Path != "" {
		return filesystem.Resolve(filepath.Dir(c.Path), filepath.Base(c.Path))
	}
	dir := filepath.Join(p.cfg.OriginalsDir, filepath.FromSlash(c.Folder))
	return filesystem.Resolve(dir, path.Base(c.FileName))
}

func (p *Processor) record(ctx context.Context, res Result, procErr error) {
	if p.ledger == nil || p.cfg.DryRun || errors.Is(procErr, ErrUnsupportedFile) || ctx.Err() != nil {
		return
	}
	e := database.Entry{
		UID:     res.UID,
		Path:    res.Path,
		Outcome: res.Outcome,
		Labels:  res.Written,
	}
	if procErr != nil {
		e.Detail = procErr.Error()
	}
	if res.Path != "" {
		if info, err := filesystem.StatWithRetry(res.Path, filesystem.DefaultRetryConfig()); err == nil {
			e.Fingerprint = database.Fingerprint(res.Path, info.Size(), info.ModTime())
		}
	}
	if err := p.ledger.RecordOutcome(ctx, e); err != nil {
		logging.WarnContext(ctx, "record outcome %s: %v", res.Outcome, err)
	}
}

func containsFold(list []string, s string) bool {
	if s == "" {
		return false
	}
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
