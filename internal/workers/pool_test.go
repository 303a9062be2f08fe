package workers

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func waitIdle(t *testing.T, p *Pool) {
	t.Helper()
	select {
	case <-p.OnIdle():
	case <-time.After(5 * time.Second):
		t.Fatalf("pool did not become idle: %+v", p.Stats())
	}
}

func TestPoolConcurrencyCeiling(t *testing.T) {
	const limit = 3
	p := NewPool(context.Background(), limit)

	var running, peak, done int32
	for i := 0; i < 25; i++ {
		p.Enqueue(func(ctx context.Context) error {
			n := atomic.AddInt32(&running, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			atomic.AddInt32(&done, 1)
			return nil
		})
	}
	waitIdle(t, p)

	if peak > limit {
		t.Errorf("peak concurrency = %d, want <= %d", peak, limit)
	}
	if done != 25 {
		t.Errorf("done = %d, want 25", done)
	}
	if s := p.Stats(); s.Completed != 25 || s.Active != 0 || s.Queued != 0 {
		t.Errorf("Stats = %+v", s)
	}
}

func TestPoolClampsConcurrency(t *testing.T) {
	for _, c := range []int{0, -4} {
		if got := NewPool(context.Background(), c).Limit(); got != 1 {
			t.Errorf("NewPool(%d).Limit() = %d, want 1", c, got)
		}
	}
}

func TestPoolFIFOStartOrder(t *testing.T) {
	p := NewPool(context.Background(), 1)

	var (
		mu    sync.Mutex
		order []int
	)
	for i := 0; i < 10; i++ {
		i := i
		p.Enqueue(func(ctx context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
	}
	waitIdle(t, p)

	for i, v := range order {
		if v != i {
			t.Fatalf("start order = %v", order)
		}
	}
}

func TestPoolOnIdleImmediateWhenEmpty(t *testing.T) {
	p := NewPool(context.Background(), 2)
	select {
	case <-p.OnIdle():
	default:
		t.Fatal("OnIdle on an empty pool should be closed already")
	}
}

func TestPoolOnIdleWaitsForNestedEnqueues(t *testing.T) {
	p := NewPool(context.Background(), 2)

	var ran int32
	var spawn func(depth int) Task
	spawn = func(depth int) Task {
		return func(ctx context.Context) error {
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&ran, 1)
			if depth < 4 {
				// Enqueued before this task finishes, so the pool never looks idle in between.
				p.Enqueue(spawn(depth + 1))
				p.Enqueue(spawn(depth + 1))
			}
			return nil
		}
	}
	p.Enqueue(spawn(0))
	waitIdle(t, p)

	// 1 + 2 + 4 + 8 + 16
	if got := atomic.LoadInt32(&ran); got != 31 {
		t.Errorf("ran = %d, want 31", got)
	}
}

func TestPoolOnIdleReleasesAllWaiters(t *testing.T) {
	p := NewPool(context.Background(), 1)
	release := make(chan struct{})
	p.Enqueue(func(ctx context.Context) error {
		<-release
		return nil
	})

	var wg sync.WaitGroup
	var released int32
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-p.OnIdle()
			atomic.AddInt32(&released, 1)
		}()
	}

	time.Sleep(10 * time.Millisecond)
	if atomic.LoadInt32(&released) != 0 {
		t.Fatal("waiters released while a task was running")
	}
	close(release)
	wg.Wait()
	if released != 5 {
		t.Errorf("released = %d, want 5", released)
	}
}

func TestPoolErrorsGoToObserver(t *testing.T) {
	var (
		mu   sync.Mutex
		errs []error
	)
	p := NewPool(context.Background(), 2, WithErrorObserver(func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}))

	boom := errors.New("boom")
	var ok int32
	p.Enqueue(func(ctx context.Context) error { return boom })
	p.Enqueue(func(ctx context.Context) error { panic("kaboom") })
	p.Enqueue(func(ctx context.Context) error {
		atomic.AddInt32(&ok, 1)
		return nil
	})
	waitIdle(t, p)

	if ok != 1 {
		t.Error("a failing sibling must not stop other tasks")
	}
	if len(errs) != 2 {
		t.Fatalf("errors observed = %v", errs)
	}
	var sawBoom, sawPanic bool
	for _, err := range errs {
		if errors.Is(err, boom) {
			sawBoom = true
		}
		if strings.Contains(err.Error(), "kaboom") {
			sawPanic = true
		}
	}
	if !sawBoom || !sawPanic {
		t.Errorf("errors = %v", errs)
	}
	if s := p.Stats(); s.Failed != 2 || s.Completed != 1 {
		t.Errorf("Stats = %+v", s)
	}
}

func TestPoolDefaultObserverDoesNotPanic(t *testing.T) {
	p := NewPool(context.Background(), 1, WithName("test"))
	p.Enqueue(func(ctx context.Context) error { return errors.New("logged") })
	p.Enqueue(nil)
	waitIdle(t, p)
}

func TestPoolPassesContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")
	p := NewPool(ctx, 1)

	var got interface{}
	p.Enqueue(func(ctx context.Context) error {
		got = ctx.Value(key{})
		return nil
	})
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if got != "v" {
		t.Errorf("task context value = %v", got)
	}
}

func TestPoolWaitHonoursContext(t *testing.T) {
	p := NewPool(context.Background(), 1)
	block := make(chan struct{})
	defer close(block)
	p.Enqueue(func(ctx context.Context) error {
		<-block
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := p.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait = %v, want deadline exceeded", err)
	}
}
