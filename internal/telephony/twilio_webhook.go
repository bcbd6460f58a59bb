package telephony

import (
	"net/http"
	"strconv"
	"strings"

	"ivr-platform/internal/calls"
	"ivr-platform/internal/ivr"
)

// TwilioVoiceForm captures the subset of voice webhook fields we care about.
// Twilio sends application/x-www-form-urlencoded by default.
// Ref: https://www.twilio.com/docs/voice/twiml/gather#action
//
// Keep it minimal and provider-adapter-only.
// Dialogue decisions are not made here.
type TwilioVoiceForm struct {
	CallSid    string
	AccountSid string
	From       string
	To         string
	CallStatus string

	// SpeechResult is the transcript of a speech Gather.
	SpeechResult string
	Confidence   string
	// Digits are the keys pressed during a dtmf Gather.
	Digits string

	CallDuration string
}

func ParseTwilioVoiceForm(r *http.Request) (TwilioVoiceForm, error) {
	if err := r.ParseForm(); err != nil {
		return TwilioVoiceForm{}, err
	}
	f := TwilioVoiceForm{
		CallSid:      strings.TrimSpace(r.PostFormValue("CallSid")),
		AccountSid:   r.PostFormValue("AccountSid"),
		From:         normalizePhone(r.PostFormValue("From")),
		To:           normalizePhone(r.PostFormValue("To")),
		CallStatus:   r.PostFormValue("CallStatus"),
		SpeechResult: r.PostFormValue("SpeechResult"),
		Confidence:   r.PostFormValue("Confidence"),
		Digits:       r.PostFormValue("Digits"),
		CallDuration: r.PostFormValue("CallDuration"),
	}
	return f, nil
}

func normalizePhone(s string) string {
	s = strings.TrimSpace(s)
	// Twilio sometimes sends "anonymous" or empty; keep as-is.
	return s
}

// Input is the caller's text for this turn: speech first, then keypad digits.
func (f TwilioVoiceForm) Input() string {
	if s := strings.TrimSpace(f.SpeechResult); s != "" {
		return s
	}
	return strings.TrimSpace(f.Digits)
}

func (f TwilioVoiceForm) TurnInput() ivr.TurnInput {
	return ivr.TurnInput{CallID: f.CallSid, RawText: f.Input()}
}

// StatusEvent converts a status callback. An unknown CallStatus is kept
// verbatim and never ends the call.
func (f TwilioVoiceForm) StatusEvent() calls.StatusEvent {
	ev := calls.StatusEvent{CallID: f.CallSid, From: f.From, To: f.To}
	if strings.TrimSpace(f.CallStatus) != "" {
		st, ok := calls.ParseStatus(f.CallStatus)
		if !ok {
			st = calls.Status(strings.TrimSpace(f.CallStatus))
		}
		ev.Status = st
	}
	if n, err := strconv.Atoi(f.CallDuration); err == nil {
		ev.DurationSeconds = n
	}
	return ev
}
