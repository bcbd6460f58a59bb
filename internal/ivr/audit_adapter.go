package ivr

import (
	"context"

	"ivr-platform/internal/audit"
	"ivr-platform/pkg/logger"
)

// AuditObserver bridges engine notifications to the shared audit.Service.
//
// Audit is best-effort: failures are logged and never reach the caller's turn.
type AuditObserver struct {
	Audit *audit.Service
}

func (a AuditObserver) TurnHandled(ctx context.Context, rec TurnRecord) {
	switch {
	case rec.TransferTarget != "":
		a.log(ctx, audit.EventTypeAgentTransfer, rec.CallID, "transferred to agent", map[string]string{
			"target": rec.TransferTarget,
			"intent": rec.Intent.String(),
		})
	case rec.CallEnded:
		a.log(ctx, audit.EventTypeCallTerminated, rec.CallID, "caller said goodbye", nil)
	}
}

func (a AuditObserver) TurnFailed(ctx context.Context, callID string, err error) {
	if callID == "" {
		// Nothing to attach the event to.
		return
	}
	a.log(ctx, audit.EventTypeTurnError, callID, err.Error(), map[string]string{"kind": ErrorKind(err)})
}

func (a AuditObserver) CallEnded(ctx context.Context, callID string, reason EndReason) {
	a.log(ctx, audit.EventTypeCallEnded, callID, "call context removed", map[string]string{"reason": string(reason)})
}

func (a AuditObserver) log(ctx context.Context, typ audit.EventType, callID, msg string, meta map[string]string) {
	if a.Audit == nil {
		return
	}
	if err := a.Audit.LogCallEvent(ctx, typ, callID, msg, meta); err != nil {
		logger.From(ctx).Warn("audit append failed", "call_id", callID, "type", string(typ), "err", err.Error())
	}
}
