package reporting

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"ivr-platform/internal/audit"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting.
//
// Implementations query the immutable audit trail; reports never write.
type Repository interface {
	Between(ctx context.Context, from, to time.Time) ([]audit.Event, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

// CallsSummary counts call outcomes in [from, to).
func (s *Service) CallsSummary(ctx context.Context, r TimeRange) (CallsSummary, error) {
	if r.From.IsZero() || r.To.IsZero() || !r.To.After(r.From) {
		return CallsSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return CallsSummary{}, errors.New("reporting: repository not configured")
	}

	events, err := s.repo.Between(ctx, r.From, r.To)
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{
		Range:            r,
		EndedBy:          map[string]int{},
		TransfersTo:      map[string]int{},
		TurnErrorsByKind: map[string]int{},
	}
	for _, e := range events {
		switch e.Type {
		case audit.EventTypeCallEnded:
			out.EndedCalls++
			out.EndedBy[metadataValue(e.Metadata, "reason", "unknown")]++
		case audit.EventTypeCallTerminated:
			// A farewell removes the context on the turn itself; no call_ended follows.
			out.EndedCalls++
			out.EndedBy["farewell"]++
		case audit.EventTypeAgentTransfer:
			out.Transfers++
			out.TransfersTo[metadataValue(e.Metadata, "target", "unknown")]++
		case audit.EventTypeTurnError:
			out.TurnErrors++
			out.TurnErrorsByKind[metadataValue(e.Metadata, "kind", "unknown")]++
		case audit.EventTypeAdminEndCall, audit.EventTypeTransferOverride:
			// Applied overrides carry the setter but no role; only the operator action counts.
			if e.ActorRole != "" {
				out.AdminActions++
			}
		}
	}
	if out.EndedCalls > 0 {
		out.TransferRate = float64(out.Transfers) / float64(out.EndedCalls)
	}
	return out, nil
}

func metadataValue(raw, key, def string) string {
	if raw == "" {
		return def
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return def
	}
	if v := m[key]; v != "" {
		return v
	}
	return def
}
