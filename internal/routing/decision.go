package routing

// Decision is the outcome of picking a transfer target for a call.
//
// It must contain *only* information the transport needs to execute the
// hand-off (e.g., the Twilio <Dial> builder).
type Decision struct {
	CallID string `json:"call_id"`

	Action    Action `json:"action"`
	ConnectTo string `json:"connect_to,omitempty"`

	// Reason is optional and intended for internal logs/metrics.
	Reason string `json:"reason,omitempty"`
}

type Action string

const (
	ActionReject  Action = "reject"
	ActionConnect Action = "connect"
)
