package labeler

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/knsan189/imageLabeler/internal/database"
	"github.com/knsan189/imageLabeler/internal/extract"
	"github.com/knsan189/imageLabeler/internal/labels"
	"github.com/knsan189/imageLabeler/internal/photoindex"
	"github.com/knsan189/imageLabeler/internal/testutil"
	"github.com/knsan189/imageLabeler/internal/textchunk"
)

const standardParams = "a cat, (tree:1.1)\nNegative prompt: blurry\n" +
	"Steps: 20, Sampler: Euler a, CFG scale: 7, Seed: 42, Size: 512x512, Model: foo.safetensors"

type fakeIndex struct {
	mu        sync.Mutex
	photos    map[string]photoindex.Photo // by base name
	labels    map[string][]string
	failLabel map[string]bool
	findErrs  int
	finds     int
	added     []string
	captions  map[string][2]string
	labelsErr error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		photos:    map[string]photoindex.Photo{},
		labels:    map[string][]string{},
		failLabel: map[string]bool{},
		captions:  map[string][2]string{},
	}
}

func (f *fakeIndex) FindByFileName(ctx context.Context, name string) (photoindex.Photo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finds++
	if f.findErrs > 0 {
		f.findErrs--
		return photoindex.Photo{}, photoindex.ErrNotFound
	}
	p, ok := f.photos[name]
	if !ok {
		return photoindex.Photo{}, photoindex.ErrNotFound
	}
	return p, nil
}

func (f *fakeIndex) Labels(ctx context.Context, uid string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.labelsErr != nil {
		return nil, f.labelsErr
	}
	return append([]string(nil), f.labels[uid]...), nil
}

func (f *fakeIndex) AddLabel(ctx context.Context, uid string, l photoindex.Label) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLabel[l.Name] {
		return errors.New("index rejected label")
	}
	f.added = append(f.added, l.Name)
	f.labels[uid] = append(f.labels[uid], l.Name)
	return nil
}

func (f *fakeIndex) UpdateCaption(ctx context.Context, uid, caption, description string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captions[uid] = [2]string{caption, description}
	return nil
}

func (f *fakeIndex) mutations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.added) + len(f.captions)
}

type memLedger struct {
	mu      sync.Mutex
	entries []database.Entry
}

func (l *memLedger) RecordOutcome(ctx context.Context, e database.Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	return nil
}

func (l *memLedger) last() database.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return database.Entry{}
	}
	return l.entries[len(l.entries)-1]
}

func testConfig(originals string) Config {
	return Config{
		OriginalsDir:     originals,
		MarkerLabel:      "sd-labeled",
		LabelPriority:    10,
		UIDRetryAttempts: 3,
		UIDRetryDelay:    time.Millisecond,
		StableInterval:   5 * time.Millisecond,
		StableTimeout:    200 * time.Millisecond,
		UpdateCaption:    true,
	}
}

func writePNG(t *testing.T, dir, rel, params string) string {
	t.Helper()
	full := filepath.Join(dir, filepath.FromSlash(rel))
	return testutil.WriteFile(t, filepath.Dir(full), filepath.Base(full), testutil.PNG(8, 8,
		testutil.TextChunk{Keyword: "parameters", Text: params},
	))
}

func TestProcessEndToEnd(t *testing.T) {
	originals := t.TempDir()
	writePNG(t, originals, "2024/cat.png", standardParams)

	idx := newFakeIndex()
	ledger := &memLedger{}
	p := New(testConfig(originals), idx, extract.NewNative(), labels.New(), WithLedger(ledger))

	res, err := p.Process(context.Background(), Candidate{UID: "p1", FileName: "2024/cat.png", Folder: "2024"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Outcome != database.OutcomeLabeled {
		t.Fatalf("outcome = %s", res.Outcome)
	}

	want := []string{"cat", "tree", "foosafetensors", "sd-labeled"}
	if !reflect.DeepEqual(idx.added, want) {
		t.Errorf("added = %v, want %v", idx.added, want)
	}
	if res.Written != 3 {
		t.Errorf("written = %d, want 3", res.Written)
	}

	caption := idx.captions["p1"]
	if caption[0] != "a cat, (tree)" {
		t.Errorf("caption = %q", caption[0])
	}
	if !strings.HasPrefix(caption[1], "Negative prompt: blurry\nSteps: 20") {
		t.Errorf("description = %q", caption[1])
	}

	e := ledger.last()
	if e.UID != "p1" || e.Outcome != database.OutcomeLabeled || e.Labels != 3 || e.Fingerprint == "" {
		t.Errorf("ledger entry = %+v", e)
	}
}

func TestProcessSkipsMarkedBeforeResolving(t *testing.T) {
	idx := newFakeIndex()
	idx.labels["p1"] = []string{"cat", "SD-Labeled"}

	calls := 0
	ext := extract.Func(func(ctx context.Context, path string) (textchunk.Map, error) {
		calls++
		return textchunk.Map{}, nil
	})
	// The originals dir does not exist: resolution would fail if attempted.
	p := New(testConfig(filepath.Join(t.TempDir(), "missing")), idx, ext, nil)

	res, err := p.Process(context.Background(), Candidate{UID: "p1", FileName: "cat.png"})
	if err != nil || res.Outcome != database.OutcomeAlreadyMarked {
		t.Fatalf("Process = %+v, %v", res, err)
	}
	if res.Path != "" || calls != 0 || idx.mutations() != 0 {
		t.Errorf("marked photo was processed: path=%q extract=%d mutations=%d", res.Path, calls, idx.mutations())
	}
}

func TestProcessNotFound(t *testing.T) {
	idx := newFakeIndex()
	ledger := &memLedger{}
	p := New(testConfig(t.TempDir()), idx, extract.NewNative(), nil, WithLedger(ledger))

	res, err := p.Process(context.Background(), Candidate{UID: "p1", FileName: "gone.png"})
	if err != nil || res.Outcome != database.OutcomeNotFound {
		t.Fatalf("Process = %+v, %v", res, err)
	}
	if ledger.last().Outcome != database.OutcomeNotFound {
		t.Errorf("ledger = %+v", ledger.last())
	}
}

func TestProcessResolvesNormalizedName(t *testing.T) {
	originals := t.TempDir()
	// Stored locally in NFD, reported by the index in NFC.
	writePNG(t, originals, "cafe\u0301.png", standardParams)

	idx := newFakeIndex()
	p := New(testConfig(originals), idx, extract.NewNative(), nil)

	res, err := p.Process(context.Background(), Candidate{UID: "p1", FileName: "caf\u00e9.png"})
	if err != nil || res.Outcome != database.OutcomeLabeled {
		t.Fatalf("Process = %+v, %v", res, err)
	}
	if res.Strategy == "" || res.Strategy == "exact" {
		t.Errorf("strategy = %q", res.Strategy)
	}
}

func TestProcessNoMetadataIsNotMutating(t *testing.T) {
	originals := t.TempDir()
	testutil.WriteFile(t, originals, "plain.png", testutil.PNG(4, 4))

	idx := newFakeIndex()
	p := New(testConfig(originals), idx, extract.NewNative(), nil)

	res, err := p.Process(context.Background(), Candidate{UID: "p1", FileName: "plain.png"})
	if err != nil || res.Outcome != database.OutcomeNoMetadata {
		t.Fatalf("Process = %+v, %v", res, err)
	}
	if idx.mutations() != 0 {
		t.Errorf("mutations = %d, want 0", idx.mutations())
	}
}

func TestProcessExtractorFailureIsRetryable(t *testing.T) {
	originals := t.TempDir()
	writePNG(t, originals, "cat.png", standardParams)

	ext := extract.Func(func(ctx context.Context, path string) (textchunk.Map, error) {
		return textchunk.Map{}, errors.New("exiftool: executable not found")
	})
	idx := newFakeIndex()
	ledger := &memLedger{}
	p := New(testConfig(originals), idx, ext, nil, WithLedger(ledger))

	res, err := p.Process(context.Background(), Candidate{UID: "p1", FileName: "cat.png"})
	if err == nil || !strings.Contains(err.Error(), "executable not found") {
		t.Errorf("err = %v, want extractor error", err)
	}
	if res.Outcome != database.OutcomeError || res.Outcome.Terminal() {
		t.Errorf("outcome = %s, want retryable error", res.Outcome)
	}
	if e := ledger.last(); e.Outcome != database.OutcomeError || e.Detail == "" {
		t.Errorf("ledger entry = %+v", e)
	}
	if idx.mutations() != 0 {
		t.Errorf("mutations = %d, want 0", idx.mutations())
	}
}

func TestProcessNoLabels(t *testing.T) {
	originals := t.TempDir()
	writePNG(t, originals, "a.png", "a, of, the\nSteps: 20")

	idx := newFakeIndex()
	p := New(testConfig(originals), idx, extract.NewNative(), nil)

	res, err := p.Process(context.Background(), Candidate{UID: "p1", FileName: "a.png"})
	if err != nil || res.Outcome != database.OutcomeNoLabels {
		t.Errorf("Process = %+v, %v", res.Outcome, err)
	}
	if idx.mutations() != 0 {
		t.Errorf("mutations = %d, want 0", idx.mutations())
	}
}

func TestProcessLabelFailureContinues(t *testing.T) {
	originals := t.TempDir()
	writePNG(t, originals, "cat.png", standardParams)

	idx := newFakeIndex()
	idx.failLabel["tree"] = true
	p := New(testConfig(originals), idx, extract.NewNative(), nil)

	res, err := p.Process(context.Background(), Candidate{UID: "p1", FileName: "cat.png"})
	if err != nil || res.Outcome != database.OutcomeLabeled {
		t.Fatalf("Process = %+v, %v", res, err)
	}
	want := []string{"cat", "foosafetensors", "sd-labeled"}
	if !reflect.DeepEqual(idx.added, want) {
		t.Errorf("added = %v, want %v", idx.added, want)
	}
}

func TestProcessMarkerFailureIsRetryable(t *testing.T) {
	originals := t.TempDir()
	writePNG(t, originals, "cat.png", standardParams)

	idx := newFakeIndex()
	idx.failLabel["sd-labeled"] = true
	p := New(testConfig(originals), idx, extract.NewNative(), nil)

	res, _ := p.Process(context.Background(), Candidate{UID: "p1", FileName: "cat.png"})
	if res.Outcome != database.OutcomeError || res.Outcome.Terminal() {
		t.Errorf("outcome = %s", res.Outcome)
	}
}

func TestProcessSkipsExistingLabels(t *testing.T) {
	originals := t.TempDir()
	writePNG(t, originals, "cat.png", standardParams)

	idx := newFakeIndex()
	idx.labels["p1"] = []string{"Cat"}
	p := New(testConfig(originals), idx, extract.NewNative(), nil)

	if _, err := p.Process(context.Background(), Candidate{UID: "p1", FileName: "cat.png"}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	for _, l := range idx.added {
		if l == "cat" {
			t.Errorf("existing label re-added: %v", idx.added)
		}
	}
}

func TestProcessLocalPathResolvesUID(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "cat.png", standardParams)

	idx := newFakeIndex()
	idx.photos["cat.png"] = photoindex.Photo{UID: "p9", FileName: "x/cat.png", Folder: "x"}
	idx.findErrs = 2
	p := New(testConfig(""), idx, extract.NewNative(), nil)

	res, err := p.Process(context.Background(), Candidate{Path: path})
	if err != nil || res.Outcome != database.OutcomeLabeled || res.UID != "p9" {
		t.Fatalf("Process = %+v, %v", res, err)
	}
	if res.Path != path {
		t.Errorf("path = %q, want the local path %q", res.Path, path)
	}
	if idx.finds != 3 {
		t.Errorf("finds = %d, want 3", idx.finds)
	}
}

func TestProcessUnresolvedUID(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "cat.png", standardParams)

	idx := newFakeIndex()
	ledger := &memLedger{}
	p := New(testConfig(""), idx, extract.NewNative(), nil, WithLedger(ledger))

	res, err := p.Process(context.Background(), Candidate{Path: path})
	if err != nil || res.Outcome != database.OutcomeUnresolved {
		t.Fatalf("Process = %+v, %v", res, err)
	}
	if idx.finds != 3 {
		t.Errorf("finds = %d, want 3 attempts", idx.finds)
	}
	if e := ledger.last(); e.Key != "" || e.Path != path || e.Outcome != database.OutcomeUnresolved {
		t.Errorf("ledger entry = %+v", e)
	}
}

func TestProcessUnsupportedFile(t *testing.T) {
	p := New(testConfig(""), newFakeIndex(), extract.NewNative(), nil)
	_, err := p.Process(context.Background(), Candidate{Path: "/x/clip.mp4"})
	if !errors.Is(err, ErrUnsupportedFile) {
		t.Errorf("err = %v", err)
	}
}

func TestProcessIndexError(t *testing.T) {
	idx := newFakeIndex()
	idx.labelsErr = errors.New("connection refused")
	p := New(testConfig(""), idx, extract.NewNative(), nil)

	res, err := p.Process(context.Background(), Candidate{UID: "p1", FileName: "cat.png"})
	if err == nil || res.Outcome != database.OutcomeError {
		t.Errorf("Process = %+v, %v", res, err)
	}
}

func TestProcessDryRun(t *testing.T) {
	originals := t.TempDir()
	writePNG(t, originals, "cat.png", standardParams)

	idx := newFakeIndex()
	ledger := &memLedger{}
	cfg := testConfig(originals)
	cfg.DryRun = true
	p := New(cfg, idx, extract.NewNative(), nil, WithLedger(ledger))

	res, err := p.Process(context.Background(), Candidate{UID: "p1", FileName: "cat.png"})
	if err != nil || res.Outcome != database.OutcomeLabeled || len(res.Labels) != 3 {
		t.Fatalf("Process = %+v, %v", res, err)
	}
	if idx.mutations() != 0 || len(ledger.entries) != 0 {
		t.Errorf("dry run mutated: index=%d ledger=%d", idx.mutations(), len(ledger.entries))
	}
}

func TestProcessProbesMissingSize(t *testing.T) {
	originals := t.TempDir()
	writePNG(t, originals, "cat.png", "a cat\nNegative prompt: dog\nSteps: 10")

	idx := newFakeIndex()
	p := New(testConfig(originals), idx, extract.NewNative(), nil)

	if _, err := p.Process(context.Background(), Candidate{UID: "p1", FileName: "cat.png"}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if d := idx.captions["p1"][1]; !strings.Contains(d, "Size: 8x8") {
		t.Errorf("description = %q", d)
	}
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "cat.png", standardParams)
	p := New(testConfig(""), nil, extract.NewNative(), nil)

	md, got, err := p.Inspect(context.Background(), path)
	if err != nil || md == nil || md.Dialect != "standard" {
		t.Fatalf("Inspect = %+v, %v", md, err)
	}
	if !reflect.DeepEqual(got, []string{"cat", "tree", "foosafetensors"}) {
		t.Errorf("labels = %v", got)
	}

	if _, _, err := p.Inspect(context.Background(), "/x/a.txt"); !errors.Is(err, ErrUnsupportedFile) {
		t.Errorf("Inspect(txt) err = %v", err)
	}
}

func TestCandidate(t *testing.T) {
	c := FromPhoto(photoindex.Photo{UID: "p1", FileName: "a/b.png", Folder: "a"})
	if c.Name() != "b.png" || c.Identity() != "p1" || c.String() != "p1 (b.png)" {
		t.Errorf("remote candidate = %q %q %q", c.Name(), c.Identity(), c.String())
	}
	l := Candidate{Path: "/w/c.png"}
	if l.Name() != "c.png" || l.Identity() != "path:/w/c.png" {
		t.Errorf("local candidate = %q %q", l.Name(), l.Identity())
	}
}
