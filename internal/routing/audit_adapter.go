package routing

import (
	"context"
	"encoding/json"

	"ivr-platform/internal/audit"
)

// AuditAdapter bridges routing's override audit hook to the shared audit.Service.
//
// This keeps routing internals from depending on persistence.
type AuditAdapter struct {
	Audit *audit.Service
}

func (a AuditAdapter) LogOverrideApplied(ctx context.Context, e OverrideAuditEvent) error {
	if a.Audit == nil {
		return nil
	}
	meta, _ := json.Marshal(map[string]string{
		"override_id": e.OverrideID,
		"connect_to":  e.ConnectTo,
		"expires_at":  e.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	})
	return a.Audit.Append(ctx, audit.Event{
		Type:        audit.EventTypeTransferOverride,
		CallID:      e.CallID,
		ActorUserID: e.SetBy,
		IPAddress:   e.IPAddress,
		Message:     "transfer override applied",
		Metadata:    string(meta),
	})
}
