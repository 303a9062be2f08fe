package source

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"sync"
	"testing"
	"time"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{
		"a.png", "b.JPG", "notes.txt", "clip.mp4",
		"2024/c.webp", ".cache/d.png", "2024/.e.png",
	} {
		touch(t, filepath.Join(root, rel))
	}

	got, err := Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	want := []string{
		filepath.Join(root, "2024", "c.webp"),
		filepath.Join(root, "a.png"),
		filepath.Join(root, "b.JPG"),
	}
	sort.Strings(want)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Scan = %v, want %v", got, want)
	}
}

func TestScanErrors(t *testing.T) {
	root := t.TempDir()
	if _, err := Scan(context.Background(), filepath.Join(root, "missing")); err == nil {
		t.Error("expected error for missing root")
	}

	file := filepath.Join(root, "a.png")
	touch(t, file)
	if _, err := Scan(context.Background(), file); err == nil {
		t.Error("expected error for file root")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Scan(ctx, root); err == nil {
		t.Error("expected error for cancelled context")
	}
}

type memSeen struct {
	mu   sync.Mutex
	seen map[string]string
}

func (m *memSeen) IsSeen(ctx context.Context, path, fp string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seen[path] == fp, nil
}

func (m *memSeen) MarkSeen(ctx context.Context, path, fp string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[path] = fp
	return nil
}

func TestGate(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "a.png")
	touch(t, path)

	g := NewGate(&memSeen{seen: map[string]string{}})
	if !g.Fresh(ctx, path) {
		t.Fatal("unmarked path should be fresh")
	}
	g.Mark(ctx, path)
	if g.Fresh(ctx, path) {
		t.Error("marked path should not be fresh")
	}

	if err := os.WriteFile(path, []byte("changed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !g.Fresh(ctx, path) {
		t.Error("changed path should be fresh again")
	}

	var nilGate *Gate
	if !nilGate.Fresh(ctx, path) || !NewGate(nil).Fresh(ctx, path) {
		t.Error("gate without store should pass everything")
	}
}

type collector struct {
	mu    sync.Mutex
	paths []string
	ch    chan string
}

func newCollector() *collector {
	return &collector{ch: make(chan string, 16)}
}

func (c *collector) emit(path string) {
	c.mu.Lock()
	c.paths = append(c.paths, path)
	c.mu.Unlock()
	c.ch <- path
}

func (c *collector) next(t *testing.T) string {
	t.Helper()
	select {
	case p := <-c.ch:
		return p
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for watcher event")
		return ""
	}
}

func startWatcher(t *testing.T, root string) (*Watcher, *collector) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	w := NewWatcher(root, 50*time.Millisecond)
	c := newCollector()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Run(ctx, c.emit); err != nil {
			t.Errorf("Run: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	deadline := time.Now().Add(2 * time.Second)
	for w.Watched() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	return w, c
}

func TestWatcherEmitsNewImages(t *testing.T) {
	root := t.TempDir()
	_, c := startWatcher(t, root)

	touch(t, filepath.Join(root, "notes.txt"))
	touch(t, filepath.Join(root, ".hidden.png"))
	path := filepath.Join(root, "cat.png")
	touch(t, path)

	if got := c.next(t); got != path {
		t.Errorf("emitted %q, want %q", got, path)
	}
}

func TestWatcherDebouncesWrites(t *testing.T) {
	root := t.TempDir()
	_, c := startWatcher(t, root)

	path := filepath.Join(root, "big.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if _, err := f.Write([]byte("chunk")); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	_ = f.Close()

	c.next(t)
	time.Sleep(200 * time.Millisecond)

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.paths) != 1 {
		t.Errorf("emitted %d times, want 1: %v", len(c.paths), c.paths)
	}
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	w, c := startWatcher(t, root)
	before := w.Watched()

	sub := filepath.Join(root, "2024", "03")
	path := filepath.Join(sub, "dog.png")
	touch(t, path)

	if got := c.next(t); got != path {
		t.Errorf("emitted %q, want %q", got, path)
	}
	if w.Watched() <= before {
		t.Errorf("watched = %d, want more than %d", w.Watched(), before)
	}
}

func TestEventTypeLabels(t *testing.T) {
	if eventType(0) != "unknown" {
		t.Error("zero op should be unknown")
	}
}
