package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"ivr-platform/internal/dialogue"
)

// MemoryStore keeps contexts in process memory. Turns on different calls run
// in parallel; turns on the same call are serialized by a per-call mutex.
//
// Contexts live until Remove is called. A call whose end signal never arrives
// stays in memory unless a Sweeper is running.
type MemoryStore struct {
	mu    sync.Mutex
	calls map[string]*memEntry

	clock func() time.Time
}

type memEntry struct {
	// lock serializes Update for one call; it is held outside MemoryStore.mu.
	lock sync.Mutex
	cc   dialogue.CallContext
	// live is false once the entry has been removed while an Update waited on lock.
	live bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{calls: map[string]*memEntry{}, clock: time.Now}
}

func (s *MemoryStore) Get(ctx context.Context, callID string) (dialogue.CallContext, error) {
	if strings.TrimSpace(callID) == "" {
		return dialogue.CallContext{}, ErrInvalidCallID
	}
	s.mu.Lock()
	e, ok := s.calls[callID]
	var cc dialogue.CallContext
	if ok {
		cc = e.cc
	}
	s.mu.Unlock()

	if !ok || cc.CallID == "" {
		return dialogue.NewCallContext(callID), nil
	}
	if err := checkOwner(callID, cc); err != nil {
		return dialogue.CallContext{}, err
	}
	return cc, nil
}

func (s *MemoryStore) Put(ctx context.Context, callID string, cc dialogue.CallContext) error {
	if strings.TrimSpace(callID) == "" {
		return ErrInvalidCallID
	}
	if err := checkOwner(callID, cc); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store(callID, cc)
	return nil
}

func (s *MemoryStore) Remove(ctx context.Context, callID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.calls[callID]; ok {
		e.live = false
		delete(s.calls, callID)
	}
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, callID string, fn UpdateFunc) (dialogue.CallContext, error) {
	if strings.TrimSpace(callID) == "" {
		return dialogue.CallContext{}, ErrInvalidCallID
	}

	for {
		e := s.acquire(callID)
		e.lock.Lock()

		s.mu.Lock()
		if !e.live || s.calls[callID] != e {
			// Removed (and possibly recreated) while we waited; retry on the current entry.
			s.mu.Unlock()
			e.lock.Unlock()
			if err := ctx.Err(); err != nil {
				return dialogue.CallContext{}, err
			}
			continue
		}
		cur := e.cc
		s.mu.Unlock()

		next, err := s.apply(e, callID, cur, fn)
		e.lock.Unlock()
		return next, err
	}
}

// apply runs fn and commits the result. The caller holds e.lock.
func (s *MemoryStore) apply(e *memEntry, callID string, cur dialogue.CallContext, fn UpdateFunc) (dialogue.CallContext, error) {
	if cur.CallID == "" {
		cur = dialogue.NewCallContext(callID)
	}
	if err := checkOwner(callID, cur); err != nil {
		return dialogue.CallContext{}, err
	}

	next, keep, err := fn(cur)
	if err == nil && keep {
		err = checkOwner(callID, next)
	}
	if err != nil {
		s.dropIfEmpty(callID)
		return dialogue.CallContext{}, err
	}
	if !keep {
		_ = s.Remove(context.Background(), callID)
		return next, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !e.live {
		// The call ended while fn ran; do not resurrect its context.
		return next, nil
	}
	return s.store(callID, next), nil
}

func (s *MemoryStore) List(ctx context.Context) ([]dialogue.CallContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]dialogue.CallContext, 0, len(s.calls))
	for _, e := range s.calls {
		if e.cc.CallID == "" {
			continue
		}
		out = append(out, e.cc)
	}
	return out, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// Len returns the number of calls with a stored context.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.calls {
		if e.cc.CallID != "" {
			n++
		}
	}
	return n
}

// acquire returns the entry for callID, creating a placeholder when absent.
// Placeholders have an empty CallID until the first commit.
func (s *MemoryStore) acquire(callID string) *memEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.calls[callID]
	if !ok {
		e = &memEntry{live: true}
		s.calls[callID] = e
	}
	return e
}

// store writes cc under callID. Callers hold s.mu.
func (s *MemoryStore) store(callID string, cc dialogue.CallContext) dialogue.CallContext {
	now := s.clock().UTC()
	cc.CallID = callID
	if cc.CreatedAt.IsZero() {
		cc.CreatedAt = now
	}
	cc.UpdatedAt = now

	e, ok := s.calls[callID]
	if !ok {
		e = &memEntry{live: true}
		s.calls[callID] = e
	}
	e.cc = cc
	return cc
}

// dropIfEmpty removes a placeholder left behind by a failed first Update.
func (s *MemoryStore) dropIfEmpty(callID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.calls[callID]; ok && e.cc.CallID == "" {
		e.live = false
		delete(s.calls, callID)
	}
}

// RemoveIdle removes contexts last written before cutoff and returns their
// call ids. Calls with a turn in progress are skipped.
func (s *MemoryStore) RemoveIdle(cutoff time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []string
	for id, e := range s.calls {
		if e.cc.CallID == "" || !e.cc.UpdatedAt.Before(cutoff) {
			continue
		}
		if !e.lock.TryLock() {
			continue
		}
		e.live = false
		delete(s.calls, id)
		e.lock.Unlock()
		removed = append(removed, id)
	}
	return removed
}
