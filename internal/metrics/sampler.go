package metrics

import (
	"context"
	"time"

	"github.com/knsan189/imageLabeler/internal/logging"
)

// sampleTimeout bounds a single StatsProvider call.
const sampleTimeout = 5 * time.Second

// Stats is a point-in-time reading of the labeler's gauges.
type Stats struct {
	InFlight    int
	PoolActive  int
	PoolQueued  int
	OpenDBConns int
	// Outcomes counts ledger entries by their last outcome. nil means the
	// ledger could not be read and the previous values are kept.
	Outcomes map[string]int
}

// StatsProvider reports the current Stats.
type StatsProvider interface {
	Stats(ctx context.Context) Stats
}

// Sampler copies Stats into gauges on a fixed interval.
type Sampler struct {
	provider StatsProvider
	interval time.Duration
}

// NewSampler creates a Sampler reading from provider every interval.
func NewSampler(provider StatsProvider, interval time.Duration) *Sampler {
	return &Sampler{provider: provider, interval: interval}
}

// Run samples once immediately and then every interval until ctx ends.
func (s *Sampler) Run(ctx context.Context) error {
	s.Sample(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sample(ctx)
		}
	}
}

// Sample reads the provider once and updates the gauges.
func (s *Sampler) Sample(ctx context.Context) {
	if s.provider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, sampleTimeout)
	defer cancel()
	st := s.provider.Stats(ctx)

	InFlightItems.Set(float64(st.InFlight))
	PoolTasks.WithLabelValues("active").Set(float64(st.PoolActive))
	PoolTasks.WithLabelValues("queued").Set(float64(st.PoolQueued))
	DBConnectionsOpen.Set(float64(st.OpenDBConns))
	if st.Outcomes != nil {
		// Outcomes absent from the ledger read as zero, not as stale values.
		for _, outcome := range ItemOutcomes {
			LedgerOutcomes.WithLabelValues(outcome).Set(float64(st.Outcomes[outcome]))
		}
	}

	logging.Debug("Sampled gauges: in_flight=%d active=%d queued=%d outcomes=%v",
		st.InFlight, st.PoolActive, st.PoolQueued, st.Outcomes)
}
