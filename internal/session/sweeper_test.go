package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"ivr-platform/internal/dialogue"

	"go.uber.org/goleak"
)

func TestSweeper_SweepOnceEvictsIdle(t *testing.T) {
	store := NewMemoryStore()
	now := time.Unix(1700000000, 0).UTC()
	store.clock = func() time.Time { return now }
	_ = store.Put(context.Background(), "CA1", dialogue.CallContext{})

	var evicted []string
	sw := &Sweeper{
		Store:   store,
		IdleTTL: time.Minute,
		Now:     func() time.Time { return now.Add(2 * time.Minute) },
		OnEvict: func(id string) { evicted = append(evicted, id) },
	}
	if got := sw.SweepOnce(); len(got) != 1 {
		t.Fatalf("expected 1 eviction, got %v", got)
	}
	if len(evicted) != 1 || evicted[0] != "CA1" {
		t.Fatalf("expected OnEvict for CA1, got %v", evicted)
	}
}

func TestSweeper_DisabledWithoutTTL(t *testing.T) {
	store := NewMemoryStore()
	_ = store.Put(context.Background(), "CA1", dialogue.CallContext{})
	sw := &Sweeper{Store: store, Now: func() time.Time { return time.Now().Add(24 * time.Hour) }}
	if got := sw.SweepOnce(); got != nil {
		t.Fatalf("expected no eviction without ttl, got %v", got)
	}
	if store.Len() != 1 {
		t.Fatalf("context must be retained")
	}
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := NewMemoryStore()
	_ = store.Put(context.Background(), "CA1", dialogue.CallContext{})

	var mu sync.Mutex
	var evicted []string
	sw := &Sweeper{
		Store:    store,
		IdleTTL:  time.Nanosecond,
		Interval: 5 * time.Millisecond,
		OnEvict: func(id string) {
			mu.Lock()
			evicted = append(evicted, id)
			mu.Unlock()
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- sw.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for store.Len() != 0 {
		select {
		case <-deadline:
			t.Fatalf("sweeper did not evict in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("run: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(evicted) != 1 {
		t.Fatalf("expected one eviction, got %v", evicted)
	}
}

func TestSweeper_RunRequiresStore(t *testing.T) {
	if err := (&Sweeper{}).Run(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}
