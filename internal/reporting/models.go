package reporting

import "time"

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CallsSummary aggregates call outcomes recorded in the audit trail.
type CallsSummary struct {
	Range TimeRange `json:"range"`

	// EndedCalls counts every call whose context was removed, farewells included.
	EndedCalls int `json:"ended_calls"`
	// EndedBy breaks EndedCalls down by reason (hangup, farewell, admin, idle).
	EndedBy map[string]int `json:"ended_by"`

	Transfers int `json:"transfers"`
	// TransfersTo counts transfers per dial target.
	TransfersTo map[string]int `json:"transfers_to"`

	TurnErrors       int            `json:"turn_errors"`
	TurnErrorsByKind map[string]int `json:"turn_errors_by_kind"`

	AdminActions int `json:"admin_actions"`

	// TransferRate is Transfers / EndedCalls.
	TransferRate float64 `json:"transfer_rate"`
}
