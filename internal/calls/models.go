package calls

import "strings"

// Status is a provider call status as reported by status callbacks
// (Twilio spelling; hyphenated).
type Status string

const (
	StatusQueued     Status = "queued"
	StatusRinging    Status = "ringing"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusNoAnswer   Status = "no-answer"
	StatusBusy       Status = "busy"
	StatusCanceled   Status = "canceled"
)

var known = map[Status]struct{}{
	StatusQueued: {}, StatusRinging: {}, StatusInProgress: {}, StatusCompleted: {},
	StatusFailed: {}, StatusNoAnswer: {}, StatusBusy: {}, StatusCanceled: {},
}

// ParseStatus normalizes s ("In_Progress" -> "in-progress"). ok is false for
// unknown values.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-"))
	_, ok := known[st]
	return st, ok
}

// IsTerminal reports whether the call is over and its dialogue context can go.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusNoAnswer, StatusBusy, StatusCanceled:
		return true
	default:
		return false
	}
}

// StatusEvent is one provider status callback for a call.
type StatusEvent struct {
	CallID string `json:"call_id"`
	Status Status `json:"status"`

	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`

	// DurationSeconds is set by the provider on completed calls.
	DurationSeconds int `json:"duration,omitempty"`
}

// Ends reports whether the event should end the call's dialogue. An event
// without a status is an explicit end-of-call request.
func (e StatusEvent) Ends() bool {
	return e.Status == "" || e.Status.IsTerminal()
}
