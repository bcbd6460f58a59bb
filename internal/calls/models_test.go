package calls

import "testing"

func TestParseStatus(t *testing.T) {
	cases := map[string]Status{
		"completed":    StatusCompleted,
		" In-Progress": StatusInProgress,
		"in_progress":  StatusInProgress,
		"NO-ANSWER":    StatusNoAnswer,
	}
	for in, want := range cases {
		got, ok := ParseStatus(in)
		if !ok || got != want {
			t.Fatalf("%q: got %q ok=%v", in, got, ok)
		}
	}
	if _, ok := ParseStatus("exploded"); ok {
		t.Fatalf("expected unknown status")
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	terminal := []Status{StatusCompleted, StatusFailed, StatusNoAnswer, StatusBusy, StatusCanceled}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Fatalf("%q should be terminal", s)
		}
	}
	for _, s := range []Status{StatusQueued, StatusRinging, StatusInProgress} {
		if s.IsTerminal() {
			t.Fatalf("%q should not be terminal", s)
		}
	}
}

func TestStatusEvent_Ends(t *testing.T) {
	if !(StatusEvent{CallID: "CA1"}).Ends() {
		t.Fatalf("missing status is an explicit end")
	}
	if (StatusEvent{CallID: "CA1", Status: StatusRinging}).Ends() {
		t.Fatalf("ringing must not end the call")
	}
	if !(StatusEvent{CallID: "CA1", Status: StatusBusy}).Ends() {
		t.Fatalf("busy ends the call")
	}
}
