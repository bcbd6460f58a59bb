package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - call_id is set for every call lifecycle event.
// - actor and ip capture are best-effort; do not block a caller's turn on audit failures.
//
// Storage (Postgres): table ivr_audit_events, INSERT-only (see PostgresRepo.Migrate).
type Event struct {
	ID string `json:"id" db:"id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	CallID string `json:"call_id,omitempty" db:"call_id"`

	// ActorUserID is the authenticated operator causing the event (admin actions only).
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`

	// IPAddress is the resolved client IP when available.
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeCallEnded        EventType = "call_ended"
	EventTypeCallTerminated   EventType = "call_terminated"
	EventTypeAgentTransfer    EventType = "agent_transfer"
	EventTypeTurnError        EventType = "turn_error"
	EventTypeAdminEndCall     EventType = "admin_end_call"
	EventTypeTransferOverride EventType = "transfer_override"
)
