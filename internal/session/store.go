package session

import (
	"context"
	"errors"

	"ivr-platform/internal/dialogue"
)

var (
	// ErrInternalState means the store holds a record that cannot belong to the
	// requested call (mismatched call id or an undecodable payload).
	ErrInternalState = errors.New("session: internal state error")
	ErrInvalidCallID = errors.New("session: call_id required")
	// ErrCallEnded means the call was removed while a turn for it was in flight;
	// the turn's result is discarded.
	ErrCallEnded = errors.New("session: call ended during turn")
)

// UpdateFunc receives the current context for a call and returns the context
// to store. Returning keep=false removes the call's context instead.
type UpdateFunc func(cur dialogue.CallContext) (next dialogue.CallContext, keep bool, err error)

// Store owns every CallContext, keyed by call id.
//
// Contract:
//   - Get returns the stored context or a fresh empty one; a missing id is not an error.
//   - Put upserts, last write wins.
//   - Remove is idempotent.
//   - Update runs fn as one read-modify-write transaction for the call id;
//     concurrent updates for the same id are serialized, different ids are not.
type Store interface {
	Get(ctx context.Context, callID string) (dialogue.CallContext, error)
	Put(ctx context.Context, callID string, cc dialogue.CallContext) error
	Remove(ctx context.Context, callID string) error
	Update(ctx context.Context, callID string, fn UpdateFunc) (dialogue.CallContext, error)

	// List returns a snapshot of every live context. Order is unspecified.
	List(ctx context.Context) ([]dialogue.CallContext, error)
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}

func checkOwner(callID string, cc dialogue.CallContext) error {
	if cc.CallID != "" && cc.CallID != callID {
		return ErrInternalState
	}
	return nil
}
