package dialogue

import (
	"fmt"
	"os"
	"strings"

	"ivr-platform/internal/intent"

	"gopkg.in/yaml.v3"
)

// Prompts is the fixed utterance catalog. Templates may use {pnr}, {train}
// and {date}; they are substituted verbatim.
type Prompts struct {
	Greeting string `yaml:"greeting"`

	BookTicket        string `yaml:"book_ticket"`
	CheckPNR          string `yaml:"check_pnr"`
	CancelTicket      string `yaml:"cancel_ticket"`
	FareEnquiry       string `yaml:"fare_enquiry"`
	TatkalInfo        string `yaml:"tatkal_info"`
	AgentHandoff      string `yaml:"agent_handoff"`
	SpecialAssistance string `yaml:"special_assistance"`
	TrainLiveStatus   string `yaml:"train_live_status"`
	PlatformLocator   string `yaml:"platform_locator"`

	AnythingElse string `yaml:"anything_else"`
	Farewell     string `yaml:"farewell"`

	ClassSelectedAC      string `yaml:"class_selected_ac"`
	ClassSelectedSleeper string `yaml:"class_selected_sleeper"`
	BookingDateNoted     string `yaml:"booking_date_noted"`
	BookingClassReprompt string `yaml:"booking_class_reprompt"`

	PNRConfirmed string `yaml:"pnr_confirmed"`
	PNRReprompt  string `yaml:"pnr_reprompt"`

	LiveStatusReport string `yaml:"live_status_report"`
	PlatformReport   string `yaml:"platform_report"`

	NotUnderstood string `yaml:"not_understood"`
	Apology       string `yaml:"apology"`
}

// DefaultPrompts returns the built-in English catalog.
func DefaultPrompts() Prompts {
	return Prompts{
		Greeting: "Welcome to Indian Railways helpline. " +
			"You can speak naturally or press a number. " +
			"For booking a ticket press 1. " +
			"To check P N R status press 2. " +
			"To cancel your ticket press 3. " +
			"For fare enquiry press 4. " +
			"For Tatkal information press 5. " +
			"To talk to an agent press 6. " +
			"For special assistance press 7. " +
			"For live train running status press 8. " +
			"For platform locator press 9.",

		BookTicket:        "You want to book a ticket. Which class would you prefer, Sleeper or A C?",
		CheckPNR:          "Please tell me your ten digit P N R number.",
		CancelTicket:      "Your ticket cancellation request has been received. Refunds take five to seven days.",
		FareEnquiry:       "Please tell me your train number.",
		TatkalInfo:        "Tatkal booking opens one day in advance at ten A M for A C and eleven A M for non A C.",
		AgentHandoff:      "Connecting you to a support agent.",
		SpecialAssistance: "Our special assistance team will help you shortly.",
		TrainLiveStatus:   "Please tell me your train number to check live running status.",
		PlatformLocator:   "Please tell me your train number to locate the platform.",

		AnythingElse: "Is there anything else you'd like help with?",
		Farewell:     "Thank you for using Indian Railways helpline. Have a great journey ahead!",

		ClassSelectedAC:      "A C class selected. Please confirm your travel date.",
		ClassSelectedSleeper: "Sleeper class selected. Please confirm your travel date.",
		BookingDateNoted:     "Booking date {date} noted. Your ticket will be processed soon. Would you like anything else?",
		BookingClassReprompt: "Please specify your class, Sleeper or A C.",

		PNRConfirmed: "PNR {pnr} is confirmed. The train is running on time. Need further help?",
		PNRReprompt:  "Please provide a valid ten digit P N R number.",

		LiveStatusReport: "Fetching live running status for train {train}. The train is currently on time.",
		PlatformReport:   "Platform information for train {train}: The train is expected on platform number 5.",

		NotUnderstood: "Sorry, I didn't understand that. Could you please repeat?",
		Apology:       "Sorry, we are facing a technical issue. Please try again.",
	}
}

// LoadPrompts reads a YAML catalog from path. Keys that are absent or empty
// keep their default text.
func LoadPrompts(path string) (Prompts, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Prompts{}, fmt.Errorf("dialogue: read prompts: %w", err)
	}
	var p Prompts
	if err := yaml.Unmarshal(b, &p); err != nil {
		return Prompts{}, fmt.Errorf("dialogue: parse prompts: %w", err)
	}
	return p.WithDefaults(), nil
}

// WithDefaults fills every empty template from DefaultPrompts.
func (p Prompts) WithDefaults() Prompts {
	d := DefaultPrompts()
	fill := func(dst *string, def string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = def
		}
	}
	fill(&p.Greeting, d.Greeting)
	fill(&p.BookTicket, d.BookTicket)
	fill(&p.CheckPNR, d.CheckPNR)
	fill(&p.CancelTicket, d.CancelTicket)
	fill(&p.FareEnquiry, d.FareEnquiry)
	fill(&p.TatkalInfo, d.TatkalInfo)
	fill(&p.AgentHandoff, d.AgentHandoff)
	fill(&p.SpecialAssistance, d.SpecialAssistance)
	fill(&p.TrainLiveStatus, d.TrainLiveStatus)
	fill(&p.PlatformLocator, d.PlatformLocator)
	fill(&p.AnythingElse, d.AnythingElse)
	fill(&p.Farewell, d.Farewell)
	fill(&p.ClassSelectedAC, d.ClassSelectedAC)
	fill(&p.ClassSelectedSleeper, d.ClassSelectedSleeper)
	fill(&p.BookingDateNoted, d.BookingDateNoted)
	fill(&p.BookingClassReprompt, d.BookingClassReprompt)
	fill(&p.PNRConfirmed, d.PNRConfirmed)
	fill(&p.PNRReprompt, d.PNRReprompt)
	fill(&p.LiveStatusReport, d.LiveStatusReport)
	fill(&p.PlatformReport, d.PlatformReport)
	fill(&p.NotUnderstood, d.NotUnderstood)
	fill(&p.Apology, d.Apology)
	return p
}

// forIntent returns the fresh-intent line for i.
func (p Prompts) forIntent(i intent.Intent) string {
	switch i {
	case intent.BookTicket:
		return p.BookTicket
	case intent.CheckPNR:
		return p.CheckPNR
	case intent.CancelTicket:
		return p.CancelTicket
	case intent.FareEnquiry:
		return p.FareEnquiry
	case intent.TatkalInfo:
		return p.TatkalInfo
	case intent.TalkAgent:
		return p.AgentHandoff
	case intent.SpecialAssistance:
		return p.SpecialAssistance
	case intent.TrainLiveStatus:
		return p.TrainLiveStatus
	case intent.PlatformLocator:
		return p.PlatformLocator
	default:
		return p.NotUnderstood
	}
}

func render(tmpl string, pairs ...string) string {
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
