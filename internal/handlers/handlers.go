package handlers

import (
	"context"
	"time"

	"github.com/knsan189/imageLabeler/internal/database"
	"github.com/knsan189/imageLabeler/internal/reconciler"
	"github.com/knsan189/imageLabeler/internal/workers"
)

// Loop reports the state of the poll loop.
type Loop interface {
	Status() reconciler.Status
}

// Ledger is the read side of the outcome ledger.
type Ledger interface {
	CountOutcomes(ctx context.Context) (map[string]int, error)
	RecentEntries(ctx context.Context, limit int) ([]database.Entry, error)
}

// PoolStats reports worker pool counters.
type PoolStats interface {
	Stats() workers.Stats
}

// Pinger checks that the photo index answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the components the ops endpoints read from. Any of them may be
// nil; the matching parts of the responses are then omitted.
type Deps struct {
	Mode     string
	Loop     Loop
	Ledger   Ledger
	Pool     PoolStats
	Index    Pinger
	InFlight *reconciler.InFlight
	// Trigger starts a scan or poll cycle right away.
	Trigger func()
}

type Handlers struct {
	deps      Deps
	startTime time.Time
}

func New(deps Deps) *Handlers {
	return &Handlers{
		deps:      deps,
		startTime: time.Now(),
	}
}
