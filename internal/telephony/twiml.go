package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strings"

	"ivr-platform/internal/ivr"
)

// TwiML is a minimal Twilio Markup Language response builder.
// It intentionally avoids any provider SDK dependency.
//
// Only include primitives we need at the adapter boundary.
type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

type twimlGather struct {
	XMLName             xml.Name `xml:"Gather"`
	Input               string   `xml:"input,attr"`
	Action              string   `xml:"action,attr"`
	Method              string   `xml:"method,attr"`
	Timeout             int      `xml:"timeout,attr"`
	NumDigits           int      `xml:"numDigits,attr,omitempty"`
	ActionOnEmptyResult string   `xml:"actionOnEmptyResult,attr,omitempty"`
	Language            string   `xml:"language,attr,omitempty"`
	Say                 *twimlSay
}

type twimlRedirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr"`
	URL     string   `xml:",chardata"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

type twimlDial struct {
	XMLName xml.Name  `xml:"Dial"`
	Number  string    `xml:"Number,omitempty"`
	Sip     *twimlSip `xml:"Sip,omitempty"`
}

type twimlSip struct {
	URI string `xml:",chardata"`
}

// GatherOptions controls how caller input is collected.
type GatherOptions struct {
	// ActionURL receives the caller's input (absolute URL).
	ActionURL string
	// Timeout is the number of silent seconds before Twilio gives up.
	Timeout int
	// Voice and Language are passed to <Say> and <Gather> when set.
	Voice    string
	Language string
}

func (g GatherOptions) say(text string) *twimlSay {
	return &twimlSay{Voice: g.Voice, Language: g.Language, Text: text}
}

func (g GatherOptions) gather(text string) twimlGather {
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = 5
	}
	return twimlGather{
		Input:    "speech dtmf",
		Action:   g.ActionURL,
		Method:   "POST",
		Timeout:  timeout,
		Language: g.Language,
		Say:      g.say(text),
	}
}

// RenderGreeting speaks the welcome menu while listening for one keypress or
// speech, and replays the greeting at redirectURL when nothing is heard.
func RenderGreeting(text string, g GatherOptions, redirectURL string) (string, error) {
	if strings.TrimSpace(g.ActionURL) == "" {
		return "", errors.New("telephony: gather action url required")
	}
	gather := g.gather(text)
	gather.NumDigits = 1

	r := twimlResponse{Verbs: []any{gather}}
	if redirectURL != "" {
		r.Verbs = append(r.Verbs, twimlRedirect{Method: "POST", URL: redirectURL})
	}
	return encode(r)
}

// RenderTurn maps a turn result to TwiML:
//   - keep listening: speak inside a Gather that posts back even on silence
//   - terminate: speak, then hang up
//   - transfer: speak, then dial the agent (SIP URIs via <Sip>)
func RenderTurn(out ivr.TurnOutput, g GatherOptions) (string, error) {
	var r twimlResponse

	switch {
	case out.TransferTarget != "":
		d := twimlDial{}
		// Prefer SIP if it looks like sip:... otherwise treat as a PSTN number.
		if strings.HasPrefix(strings.ToLower(out.TransferTarget), "sip:") {
			d.Sip = &twimlSip{URI: out.TransferTarget}
		} else {
			d.Number = out.TransferTarget
		}
		r.Verbs = append(r.Verbs, g.say(out.Utterance), d)
	case out.Terminate:
		r.Verbs = append(r.Verbs, g.say(out.Utterance), twimlHangup{})
	case out.KeepListening:
		if strings.TrimSpace(g.ActionURL) == "" {
			return "", errors.New("telephony: gather action url required")
		}
		gather := g.gather(out.Utterance)
		gather.ActionOnEmptyResult = "true"
		r.Verbs = append(r.Verbs, gather)
	default:
		return "", errors.New("telephony: turn output has no next step")
	}
	return encode(r)
}

// RenderHangup speaks text and ends the call.
func RenderHangup(text string, g GatherOptions) (string, error) {
	return encode(twimlResponse{Verbs: []any{g.say(text), twimlHangup{}}})
}

func encode(r twimlResponse) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
