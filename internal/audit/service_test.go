package audit

import (
	"context"
	"testing"
)

func TestService_AppendRequiresType(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	if err := svc.Append(context.Background(), Event{CallID: "CA1"}); err == nil {
		t.Fatalf("expected error")
	}
	if err := svc.LogCallEvent(context.Background(), EventTypeCallEnded, "", "ended", nil); err == nil {
		t.Fatalf("expected error for missing call id")
	}
	if err := NewService(nil).Append(context.Background(), Event{Type: EventTypeCallEnded}); err == nil {
		t.Fatalf("expected error for missing repo")
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogAdminAction(context.Background(), EventTypeAdminEndCall, "CA1", "u1", "supervisor", "1.2.3.4", "force end"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := svc.LogCallEvent(context.Background(), EventTypeAgentTransfer, "CA1", "transferred", map[string]string{"target": "+911234567890"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evs))
	}
	if evs[0].IPAddress != "1.2.3.4" || evs[0].Type != EventTypeAdminEndCall {
		t.Fatalf("unexpected admin event %+v", evs[0])
	}
	if evs[1].ID == "" || evs[1].CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp assigned")
	}
	if evs[1].Metadata != `{"target":"+911234567890"}` {
		t.Fatalf("unexpected metadata %q", evs[1].Metadata)
	}
}

func TestService_RecentNewestFirstAndFiltered(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	ctx := context.Background()
	_ = svc.LogCallEvent(ctx, EventTypeCallEnded, "CA1", "first", nil)
	_ = svc.LogCallEvent(ctx, EventTypeCallEnded, "CA2", "other", nil)
	_ = svc.LogCallEvent(ctx, EventTypeCallTerminated, "CA1", "second", nil)

	evs, err := svc.Recent(ctx, "CA1", 0)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(evs) != 2 || evs[0].Message != "second" || evs[1].Message != "first" {
		t.Fatalf("unexpected events %+v", evs)
	}

	evs, _ = svc.Recent(ctx, "", 1)
	if len(evs) != 1 || evs[0].Message != "second" {
		t.Fatalf("expected newest event only, got %+v", evs)
	}
}
