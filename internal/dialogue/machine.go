package dialogue

import (
	"regexp"
	"strings"

	"ivr-platform/internal/intent"
)

var (
	farewellRe    = regexp.MustCompile(`\b(?:thank you|thanks|bye|no)\b`)
	bookingDateRe = regexp.MustCompile(`\d{1,2}\s+\w+`)
	pnrRe         = regexp.MustCompile(`^\d{10}$`)
)

// Result is the outcome of one Advance call.
type Result struct {
	Utterance string
	Context   CallContext
	Signal    Signal
}

// Machine is the per-call dialogue state machine. It holds no call state of
// its own; every decision is a function of the context it is given.
type Machine struct {
	prompts Prompts
}

func NewMachine(p Prompts) *Machine {
	return &Machine{prompts: p.WithDefaults()}
}

func (m *Machine) Prompts() Prompts { return m.prompts }

// Advance decides the response to raw given the classified intent and returns
// the updated context. The input context is not modified.
//
// A known intent starts a fresh task. Unknown input is a follow-up turn and is
// interpreted against cc.Phase; farewell phrasing ends the call from any phase.
func (m *Machine) Advance(cc CallContext, in intent.Intent, raw string) Result {
	if in.IsKnown() {
		return m.fresh(cc, in)
	}
	return m.followUp(cc, intent.Normalize(raw))
}

// IsFarewell reports whether normalized input asks to end the call.
func IsFarewell(normalized string) bool {
	return farewellRe.MatchString(normalized)
}

func (m *Machine) fresh(cc CallContext, in intent.Intent) Result {
	cc.LastIntent = in
	cc.Phase = phaseAfter(cc, in)

	if in == intent.TalkAgent {
		return Result{Utterance: m.prompts.AgentHandoff, Context: cc, Signal: SignalTransfer}
	}
	return Result{
		Utterance: m.prompts.forIntent(in) + " " + m.prompts.AnythingElse,
		Context:   cc,
		Signal:    SignalContinue,
	}
}

func (m *Machine) followUp(cc CallContext, text string) Result {
	if IsFarewell(text) {
		return Result{Utterance: m.prompts.Farewell, Context: cc, Signal: SignalTerminate}
	}

	switch cc.Phase {
	case PhaseAwaitingBookingClass, PhaseAwaitingBookingDate:
		return m.booking(cc, text)
	case PhaseAwaitingPNR:
		return m.pnr(cc, text)
	case PhaseAwaitingTrainNumber:
		return m.trainLookup(cc, text)
	case PhaseIdle, PhaseServed, "":
		return m.notUnderstood(cc)
	default:
		return m.notUnderstood(cc)
	}
}

func (m *Machine) booking(cc CallContext, text string) Result {
	switch {
	case strings.Contains(text, "ac"):
		cc.BookingClass = BookingClassAC
		cc.Phase = bookingPhase(cc)
		return continueWith(m.prompts.ClassSelectedAC, cc)
	case strings.Contains(text, "sleeper"):
		cc.BookingClass = BookingClassSleeper
		cc.Phase = bookingPhase(cc)
		return continueWith(m.prompts.ClassSelectedSleeper, cc)
	case strings.Contains(text, "tomorrow"), strings.Contains(text, "today"), bookingDateRe.MatchString(text):
		cc.BookingDate = text
		return continueWith(render(m.prompts.BookingDateNoted, "{date}", text), cc)
	default:
		return continueWith(m.prompts.BookingClassReprompt, cc)
	}
}

func (m *Machine) pnr(cc CallContext, text string) Result {
	if !pnrRe.MatchString(text) {
		return continueWith(m.prompts.PNRReprompt, cc)
	}
	return continueWith(render(m.prompts.PNRConfirmed, "{pnr}", text), cc)
}

func (m *Machine) trainLookup(cc CallContext, text string) Result {
	if text == "" {
		return m.notUnderstood(cc)
	}
	switch cc.LastIntent {
	case intent.TrainLiveStatus:
		return continueWith(render(m.prompts.LiveStatusReport, "{train}", text), cc)
	case intent.PlatformLocator:
		return continueWith(render(m.prompts.PlatformReport, "{train}", text), cc)
	default:
		return m.notUnderstood(cc)
	}
}

func (m *Machine) notUnderstood(cc CallContext) Result {
	return continueWith(m.prompts.NotUnderstood, cc)
}

func continueWith(utterance string, cc CallContext) Result {
	return Result{Utterance: utterance, Context: cc, Signal: SignalContinue}
}
