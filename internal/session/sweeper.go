package session

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// IdleRemover is implemented by stores that can evict idle contexts on demand.
type IdleRemover interface {
	RemoveIdle(cutoff time.Time) []string
}

// Sweeper evicts contexts of calls that went quiet without an end signal.
//
// It is an opt-in policy. Without it a context lives until its call ends, which
// is the default the dialogue relies on.
type Sweeper struct {
	Store    IdleRemover
	IdleTTL  time.Duration
	Interval time.Duration

	// OnEvict is called once per evicted call id, e.g. to audit or count it.
	OnEvict func(callID string)

	Log *slog.Logger
	Now func() time.Time
}

// SweepOnce evicts every context idle for longer than IdleTTL.
func (s *Sweeper) SweepOnce() []string {
	if s.Store == nil || s.IdleTTL <= 0 {
		return nil
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	removed := s.Store.RemoveIdle(now().UTC().Add(-s.IdleTTL))
	for _, id := range removed {
		if s.OnEvict != nil {
			s.OnEvict(id)
		}
	}
	if len(removed) > 0 && s.Log != nil {
		s.Log.Info("idle call contexts evicted", "count", len(removed), "idle_ttl", s.IdleTTL.String())
	}
	return removed
}

// Run sweeps every Interval until ctx is canceled. It returns nil on cancellation.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.Store == nil {
		return errors.New("session: sweeper store is nil")
	}
	if s.IdleTTL <= 0 {
		<-ctx.Done()
		return nil
	}
	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.SweepOnce()
		}
	}
}
