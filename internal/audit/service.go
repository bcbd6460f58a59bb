package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.
type Repository interface {
	Append(ctx context.Context, e Event) error
	// Recent returns up to limit events, newest first, optionally for one call.
	Recent(ctx context.Context, callID string, limit int) ([]Event, error)
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Callers should treat audit logging as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// Recent returns the newest events, optionally filtered by call.
func (s *Service) Recent(ctx context.Context, callID string, limit int) ([]Event, error) {
	if s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.Recent(ctx, callID, limit)
}

// LogCallEvent records a call lifecycle event raised by the dialogue engine.
func (s *Service) LogCallEvent(ctx context.Context, typ EventType, callID, message string, metadata map[string]string) error {
	if callID == "" {
		return ErrInvalidEvent
	}
	return s.Append(ctx, Event{
		Type:     typ,
		CallID:   callID,
		Message:  message,
		Metadata: encodeMetadata(metadata),
	})
}

// LogAdminAction records an operator action against a call.
func (s *Service) LogAdminAction(ctx context.Context, typ EventType, callID, actorUserID, actorRole, ip, message string) error {
	if actorUserID == "" {
		return ErrInvalidEvent
	}
	return s.Append(ctx, Event{
		Type:        typ,
		CallID:      callID,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		Message:     message,
	})
}

func encodeMetadata(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	b, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(b)
}
