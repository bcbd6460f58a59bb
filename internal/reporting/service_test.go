package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"ivr-platform/internal/audit"
)

func TestCallsSummary_Aggregates(t *testing.T) {
	repo := audit.NewMemoryRepo()
	svc := audit.NewService(repo)
	ctx := context.Background()

	_ = svc.LogCallEvent(ctx, audit.EventTypeAgentTransfer, "c1", "transferred", map[string]string{"target": "+911234567890"})
	_ = svc.LogCallEvent(ctx, audit.EventTypeCallEnded, "c1", "ended", map[string]string{"reason": "hangup"})
	_ = svc.LogCallEvent(ctx, audit.EventTypeCallTerminated, "c2", "bye", nil)
	_ = svc.LogCallEvent(ctx, audit.EventTypeTurnError, "c3", "boom", map[string]string{"kind": "lock_timeout"})
	_ = svc.LogCallEvent(ctx, audit.EventTypeCallEnded, "c3", "ended", map[string]string{"reason": "admin"})
	_ = svc.LogAdminAction(ctx, audit.EventTypeAdminEndCall, "c3", "op-1", "supervisor", "10.0.0.1", "ended")
	_ = svc.Append(ctx, audit.Event{Type: audit.EventTypeTransferOverride, CallID: "c4", ActorUserID: "op-1", Message: "applied"})

	now := time.Now()
	out, err := NewService(repo).CallsSummary(ctx, TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.EndedCalls != 3 || out.EndedBy["hangup"] != 1 || out.EndedBy["farewell"] != 1 || out.EndedBy["admin"] != 1 {
		t.Fatalf("unexpected endings %+v", out)
	}
	if out.Transfers != 1 || out.TransfersTo["+911234567890"] != 1 {
		t.Fatalf("unexpected transfers %+v", out)
	}
	if out.TurnErrors != 1 || out.TurnErrorsByKind["lock_timeout"] != 1 {
		t.Fatalf("unexpected errors %+v", out)
	}
	if out.AdminActions != 1 {
		t.Fatalf("expected one operator action, got %d", out.AdminActions)
	}
	if out.TransferRate < 0.33 || out.TransferRate > 0.34 {
		t.Fatalf("unexpected transfer rate %f", out.TransferRate)
	}
}

func TestCallsSummary_RangeFilters(t *testing.T) {
	repo := audit.NewMemoryRepo()
	old := time.Unix(1700000000, 0).UTC()
	_ = repo.Append(context.Background(), audit.Event{ID: "e1", Type: audit.EventTypeCallEnded, CallID: "c1", CreatedAt: old})

	out, err := NewService(repo).CallsSummary(context.Background(), TimeRange{From: old.Add(time.Minute), To: old.Add(time.Hour)})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.EndedCalls != 0 {
		t.Fatalf("expected event outside range to be skipped, got %+v", out)
	}
}

func TestCallsSummary_InvalidRange(t *testing.T) {
	now := time.Now()
	svc := NewService(audit.NewMemoryRepo())
	for _, r := range []TimeRange{{}, {From: now, To: now}, {From: now, To: now.Add(-time.Second)}} {
		if _, err := svc.CallsSummary(context.Background(), r); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("%+v: expected ErrInvalidRequest, got %v", r, err)
		}
	}
}
