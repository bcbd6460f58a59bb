package ivr

import (
	"context"
	"errors"
	"time"

	"ivr-platform/internal/dialogue"
	"ivr-platform/internal/intent"
	"ivr-platform/internal/session"
)

// EndReason says why a call's context was removed.
type EndReason string

const (
	// EndReasonHangup is the transport's end-of-call signal.
	EndReasonHangup EndReason = "hangup"
	// EndReasonFarewell is a caller farewell on a follow-up turn.
	EndReasonFarewell EndReason = "farewell"
	EndReasonAdmin    EndReason = "admin"
	EndReasonIdle     EndReason = "idle"
)

// TurnRecord describes one completed turn.
type TurnRecord struct {
	CallID         string
	Intent         intent.Intent
	Rule           string
	Signal         dialogue.Signal
	Phase          dialogue.Phase
	TransferTarget string

	// CallStarted is set on the turn that created the call's context and
	// CallEnded on the turn that removed it.
	CallStarted bool
	CallEnded   bool

	Duration time.Duration
}

// Observer receives turn and call lifecycle notifications. Implementations must
// not block and must not fail the turn.
type Observer interface {
	TurnHandled(ctx context.Context, rec TurnRecord)
	TurnFailed(ctx context.Context, callID string, err error)
	CallEnded(ctx context.Context, callID string, reason EndReason)
}

// ErrorKind buckets a turn error for metrics and audit.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCallIdentifier):
		return "invalid_call_id"
	case errors.Is(err, ErrInternalState):
		return "internal_state"
	case errors.Is(err, session.ErrLockTimeout):
		return "lock_timeout"
	case errors.Is(err, session.ErrCallEnded):
		return "call_ended"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "backend"
	}
}
