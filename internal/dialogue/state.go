package dialogue

import (
	"time"

	"ivr-platform/internal/intent"
)

// Phase is what the dialogue is waiting for next. It is stored on the call
// context and drives follow-up handling.
type Phase string

const (
	PhaseIdle                 Phase = "idle"
	PhaseAwaitingBookingClass Phase = "awaiting_booking_class"
	PhaseAwaitingBookingDate  Phase = "awaiting_booking_date"
	PhaseAwaitingPNR          Phase = "awaiting_pnr"
	// PhaseAwaitingTrainNumber serves both live status and platform lookups;
	// LastIntent tells them apart.
	PhaseAwaitingTrainNumber Phase = "awaiting_train_number"
	// PhaseServed follows intents that need no further slots (cancel, fare,
	// tatkal, assistance, agent).
	PhaseServed Phase = "served"
)

// BookingClass is the travel class chosen during a booking.
type BookingClass string

const (
	BookingClassAC      BookingClass = "AC"
	BookingClassSleeper BookingClass = "Sleeper"
)

// Signal tells the transport what to do after speaking the utterance.
type Signal string

const (
	SignalContinue  Signal = "continue"
	SignalTerminate Signal = "terminate"
	SignalTransfer  Signal = "transfer"
)

// CallContext is the per-call dialogue record.
//
// Ownership: a session store owns every CallContext. Callers work on copies
// and hand them back to the store; nothing keeps one across turns.
type CallContext struct {
	CallID string `json:"call_id"`

	// LastIntent is empty until the first recognized intent.
	LastIntent intent.Intent `json:"last_intent,omitempty"`
	Phase      Phase         `json:"phase"`

	BookingClass BookingClass `json:"booking_class,omitempty"`
	// BookingDate is the normalized (trimmed, lowercase) utterance; it is not
	// calendar-validated.
	BookingDate string `json:"booking_date,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCallContext returns the empty context used for a call's first turn.
func NewCallContext(callID string) CallContext {
	return CallContext{CallID: callID, Phase: PhaseIdle}
}

// IsEmpty reports whether no intent has been recognized on this call yet.
func (c CallContext) IsEmpty() bool {
	return c.LastIntent == "" && c.BookingClass == "" && c.BookingDate == ""
}

// phaseAfter returns the phase entered when in becomes the call's last intent.
func phaseAfter(c CallContext, in intent.Intent) Phase {
	switch in {
	case intent.BookTicket:
		return bookingPhase(c)
	case intent.CheckPNR:
		return PhaseAwaitingPNR
	case intent.TrainLiveStatus, intent.PlatformLocator:
		return PhaseAwaitingTrainNumber
	case intent.CancelTicket, intent.FareEnquiry, intent.TatkalInfo,
		intent.TalkAgent, intent.SpecialAssistance:
		return PhaseServed
	default:
		return PhaseIdle
	}
}

func bookingPhase(c CallContext) Phase {
	if c.BookingClass == "" {
		return PhaseAwaitingBookingClass
	}
	return PhaseAwaitingBookingDate
}
