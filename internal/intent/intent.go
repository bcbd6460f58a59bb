package intent

// Intent is the symbolic category of what the caller wants, derived from a
// single utterance. Exactly one intent is produced per turn.
type Intent string

const (
	BookTicket        Intent = "book_ticket"
	CheckPNR          Intent = "check_pnr"
	CancelTicket      Intent = "cancel_ticket"
	FareEnquiry       Intent = "fare_enquiry"
	TatkalInfo        Intent = "tatkal_info"
	TalkAgent         Intent = "talk_agent"
	SpecialAssistance Intent = "special_assistance"
	TrainLiveStatus   Intent = "train_live_status"
	PlatformLocator   Intent = "platform_locator"
	Unknown           Intent = "unknown"
)

// All lists every recognizable intent in keypad order, followed by Unknown.
var All = []Intent{
	BookTicket,
	CheckPNR,
	CancelTicket,
	FareEnquiry,
	TatkalInfo,
	TalkAgent,
	SpecialAssistance,
	TrainLiveStatus,
	PlatformLocator,
	Unknown,
}

func (i Intent) String() string { return string(i) }

// IsKnown reports whether i is a recognized top-level intent.
func (i Intent) IsKnown() bool {
	switch i {
	case BookTicket, CheckPNR, CancelTicket, FareEnquiry, TatkalInfo,
		TalkAgent, SpecialAssistance, TrainLiveStatus, PlatformLocator:
		return true
	default:
		return false
	}
}

// Parse maps a stored intent tag back to an Intent. Empty or unrecognized
// tags yield ("", false).
func Parse(s string) (Intent, bool) {
	i := Intent(s)
	if i.IsKnown() {
		return i, true
	}
	return "", false
}
