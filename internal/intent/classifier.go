package intent

import (
	"regexp"
	"strings"
)

// Rule is one ordered classification rule. Rules are evaluated in sequence and
// the first match wins; there is no scoring.
type Rule struct {
	Name  string
	Match func(normalized string) (Intent, bool)
}

// Classifier maps caller input to an Intent using ordered rules.
// It is stateless and safe for concurrent use.
type Classifier struct {
	rules []Rule
}

var keypad = map[string]Intent{
	"1": BookTicket,
	"2": CheckPNR,
	"3": CancelTicket,
	"4": FareEnquiry,
	"5": TatkalInfo,
	"6": TalkAgent,
	"7": SpecialAssistance,
	"8": TrainLiveStatus,
	"9": PlatformLocator,
}

// KeypadIntent returns the intent bound to a single keypad digit.
func KeypadIntent(digit string) (Intent, bool) {
	i, ok := keypad[digit]
	return i, ok
}

// KeypadRule matches input that is exactly one digit 1-9.
func KeypadRule() Rule {
	return Rule{Name: "keypad", Match: func(s string) (Intent, bool) {
		if len(s) != 1 {
			return "", false
		}
		return KeypadIntent(s)
	}}
}

// PhraseRule matches when any phrase occurs on word boundaries.
func PhraseRule(name string, i Intent, phrases ...string) Rule {
	return regexpRule(name, i, `\b(?:`+alternation(phrases)+`)\b`)
}

// StemRule matches words that start with any stem, so "cancel" also catches
// "cancelled" and "cancellation".
func StemRule(name string, i Intent, stems ...string) Rule {
	return regexpRule(name, i, `\b(?:`+alternation(stems)+`)\w*`)
}

func alternation(words []string) string {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		quoted = append(quoted, regexp.QuoteMeta(w))
	}
	return strings.Join(quoted, "|")
}

func regexpRule(name string, i Intent, expr string) Rule {
	re := regexp.MustCompile(expr)
	return Rule{Name: name, Match: func(s string) (Intent, bool) {
		if re.MatchString(s) {
			return i, true
		}
		return "", false
	}}
}

// DefaultRules returns the rule list in priority order:
// keypad digit, then live status > platform > cancel > book > pnr > fare >
// tatkal > agent > assistance.
//
// Cancellation sits above booking and generic status phrasing so "cancel status"
// and "ticket cancellation" route to cancel_ticket. Booking and agent words must
// match whole; cancel, platform and assistance words match by stem.
func DefaultRules() []Rule {
	return []Rule{
		KeypadRule(),
		PhraseRule("live_status", TrainLiveStatus, "live status", "running status", "where is train", "where is my train"),
		StemRule("platform", PlatformLocator, "platform"),
		StemRule("cancel", CancelTicket, "cancel", "refund"),
		PhraseRule("book", BookTicket, "book", "reserve", "ticket", "reservation"),
		PhraseRule("pnr", CheckPNR, "pnr", "status"),
		PhraseRule("fare", FareEnquiry, "fare", "cost", "price", "how much"),
		PhraseRule("tatkal", TatkalInfo, "tatkal"),
		PhraseRule("agent", TalkAgent, "agent", "operator", "representative", "customer care"),
		StemRule("assistance", SpecialAssistance, "assistance", "help", "support"),
	}
}

// NewClassifier returns a Classifier over rules, or over DefaultRules when none are given.
func NewClassifier(rules ...Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Classifier{rules: rules}
}

// Normalize lowercases and trims caller input.
func Normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Classify returns the intent of raw. Unmatched input is Unknown; it never fails.
func (c *Classifier) Classify(raw string) Intent {
	i, _ := c.ClassifyRule(raw)
	return i
}

// ClassifyRule is Classify plus the name of the rule that fired ("" when none did).
func (c *Classifier) ClassifyRule(raw string) (Intent, string) {
	s := Normalize(raw)
	if s == "" {
		return Unknown, ""
	}
	for _, r := range c.rules {
		if r.Match == nil {
			continue
		}
		if i, ok := r.Match(s); ok {
			return i, r.Name
		}
	}
	return Unknown, ""
}
