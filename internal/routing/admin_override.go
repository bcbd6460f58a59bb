package routing

import (
	"context"
	"errors"
	"sync"
	"time"
)

// OverrideEngine applies silent, expiry-based transfer overrides.
//
// Requirements:
//   - Silent routing: the caller must not be able to infer that an override was used,
//     so no special reason is surfaced.
//   - Expiry based: overrides must be time-bounded.
//   - Internal audit logging: every applied override is recorded.
//
// A supervisor pins an override on a live call (e.g., to route a distressed
// caller to a specific desk); it applies if the caller later asks for an agent.
type OverrideEngine struct {
	Store OverrideStore
	Audit AuditLogger
	Now   func() time.Time
}

// OverrideStore resolves currently-active overrides.
type OverrideStore interface {
	// GetActiveOverride returns an active override if one exists for the call.
	// If none exists, it returns (Override{}, false, nil).
	GetActiveOverride(ctx context.Context, callID string, now time.Time) (Override, bool, error)
	SetOverride(ctx context.Context, o Override) error
}

// AuditLogger records internal-only audit events.
type AuditLogger interface {
	LogOverrideApplied(ctx context.Context, e OverrideAuditEvent) error
}

type Override struct {
	CallID string
	// OverrideID correlates audit logs.
	OverrideID string

	// ConnectTo is the forced dial target.
	ConnectTo string

	// ExpiresAt marks when the override stops applying.
	ExpiresAt time.Time

	// SetBy is the operator user id that created the override.
	SetBy string
}

type OverrideAuditEvent struct {
	CallID     string
	OverrideID string
	IPAddress  string

	ConnectTo string
	SetBy     string
	AppliedAt time.Time
	ExpiresAt time.Time
}

func NewOverrideEngine(store OverrideStore, audit AuditLogger) *OverrideEngine {
	return &OverrideEngine{Store: store, Audit: audit, Now: time.Now}
}

// Decide returns (decision, true, nil) if an active override was applied.
// Returns (Decision{}, false, nil) if no override applies.
func (e *OverrideEngine) Decide(ctx context.Context, callID string) (Decision, bool, error) {
	if callID == "" {
		return Decision{}, false, errors.New("routing: call_id required")
	}
	if e.Store == nil {
		return Decision{}, false, nil
	}
	now := time.Now()
	if e.Now != nil {
		now = e.Now()
	}

	o, ok, err := e.Store.GetActiveOverride(ctx, callID, now)
	if err != nil {
		return Decision{}, false, err
	}
	if !ok {
		return Decision{}, false, nil
	}
	if !o.ExpiresAt.After(now) {
		// Treat as not found; store should ideally filter these out.
		return Decision{}, false, nil
	}
	if o.ConnectTo == "" {
		return Decision{}, false, errors.New("routing: override connect_to empty")
	}

	d := Decision{CallID: callID, Action: ActionConnect, ConnectTo: o.ConnectTo}

	if e.Audit != nil {
		_ = e.Audit.LogOverrideApplied(ctx, OverrideAuditEvent{
			CallID:     callID,
			OverrideID: o.OverrideID,
			IPAddress:  ClientIPFromContext(ctx),
			ConnectTo:  o.ConnectTo,
			SetBy:      o.SetBy,
			AppliedAt:  now,
			ExpiresAt:  o.ExpiresAt,
		})
	}

	return d, true, nil
}

// MemoryOverrideStore keeps overrides in process memory.
type MemoryOverrideStore struct {
	mu    sync.Mutex
	byKey map[string]Override
}

func NewMemoryOverrideStore() *MemoryOverrideStore {
	return &MemoryOverrideStore{byKey: map[string]Override{}}
}

func (s *MemoryOverrideStore) GetActiveOverride(ctx context.Context, callID string, now time.Time) (Override, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.byKey[callID]
	if !ok {
		return Override{}, false, nil
	}
	if !o.ExpiresAt.After(now) {
		delete(s.byKey, callID)
		return Override{}, false, nil
	}
	return o, true, nil
}

func (s *MemoryOverrideStore) SetOverride(ctx context.Context, o Override) error {
	if o.CallID == "" || o.ConnectTo == "" {
		return errors.New("routing: override requires call_id and connect_to")
	}
	if o.ExpiresAt.IsZero() {
		return errors.New("routing: override requires expires_at")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byKey[o.CallID] = o
	return nil
}
