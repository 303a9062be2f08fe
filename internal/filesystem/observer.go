package filesystem

import (
	"sync/atomic"
	"time"
)

// RetryEvent names a step in the ESTALE retry loop.
type RetryEvent string

const (
	RetryStale     RetryEvent = "stale"     // an attempt returned ESTALE
	RetryBackoff   RetryEvent = "backoff"   // sleeping before another attempt
	RetryRecovered RetryEvent = "recovered" // succeeded after at least one ESTALE
	RetryExhausted RetryEvent = "exhausted" // gave up with ESTALE
)

// RetryEvents lists every RetryEvent, for pre-registering metric series.
var RetryEvents = []RetryEvent{RetryStale, RetryBackoff, RetryRecovered, RetryExhausted}

// Operations lists the operation names reported to an Observer.
var Operations = []string{"stat", "open", "read", "readdir", "stable"}

// Op describes one finished filesystem operation.
type Op struct {
	Name    string
	Volume  string
	Elapsed time.Duration
	Err     error
}

// Observer receives filesystem measurements. The metrics package implements
// it; this package never imports metrics.
type Observer interface {
	ObserveOp(op Op)
	ObserveRetry(event RetryEvent, name, volume string)
}

type observerBox struct{ Observer }

var current atomic.Pointer[observerBox]

// SetObserver installs o for all operations in this package. nil disables it.
func SetObserver(o Observer) {
	current.Store(&observerBox{o})
}

func reportOp(name, volume string, start time.Time, err error) {
	if b := current.Load(); b != nil && b.Observer != nil {
		b.ObserveOp(Op{Name: name, Volume: volume, Elapsed: time.Since(start), Err: err})
	}
}

func reportRetry(event RetryEvent, name, volume string) {
	if b := current.Load(); b != nil && b.Observer != nil {
		b.ObserveRetry(event, name, volume)
	}
}
