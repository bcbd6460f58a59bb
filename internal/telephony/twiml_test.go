package telephony

import (
	"strings"
	"testing"

	"ivr-platform/internal/ivr"
)

var testGather = GatherOptions{ActionURL: "https://ivr.example.com/conversation", Timeout: 5}

func TestRenderGreeting(t *testing.T) {
	xml, err := RenderGreeting("Welcome.", testGather, "https://ivr.example.com/voice")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for _, want := range []string{
		`<Gather input="speech dtmf" action="https://ivr.example.com/conversation" method="POST" timeout="5" numDigits="1">`,
		`<Say>Welcome.</Say>`,
		`<Redirect method="POST">https://ivr.example.com/voice</Redirect>`,
	} {
		if !strings.Contains(xml, want) {
			t.Fatalf("expected %q in xml: %s", want, xml)
		}
	}
	if strings.Index(xml, "<Gather") > strings.Index(xml, "<Redirect") {
		t.Fatalf("redirect must follow gather: %s", xml)
	}
}

func TestRenderGreetingRequiresAction(t *testing.T) {
	if _, err := RenderGreeting("hi", GatherOptions{}, ""); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRenderTurn(t *testing.T) {
	cases := []struct {
		name string
		out  ivr.TurnOutput
		want []string
		not  []string
	}{
		{
			name: "keep listening",
			out:  ivr.TurnOutput{Utterance: "Anything else?", KeepListening: true},
			want: []string{`actionOnEmptyResult="true"`, `<Say>Anything else?</Say>`},
			not:  []string{"<Hangup", "<Dial"},
		},
		{
			name: "terminate",
			out:  ivr.TurnOutput{Utterance: "Goodbye.", Terminate: true},
			want: []string{`<Say>Goodbye.</Say>`, `<Hangup></Hangup>`},
			not:  []string{"<Gather"},
		},
		{
			name: "transfer to number",
			out:  ivr.TurnOutput{Utterance: "Connecting.", TransferTarget: "+911234567890"},
			want: []string{`<Dial>`, `<Number>+911234567890</Number>`},
			not:  []string{"<Gather", "<Sip"},
		},
		{
			name: "transfer to sip",
			out:  ivr.TurnOutput{Utterance: "Connecting.", TransferTarget: "sip:desk@pbx.example.com"},
			want: []string{`<Sip>sip:desk@pbx.example.com</Sip>`},
			not:  []string{"<Number"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			xml, err := RenderTurn(tc.out, testGather)
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			for _, w := range tc.want {
				if !strings.Contains(xml, w) {
					t.Fatalf("expected %q in xml: %s", w, xml)
				}
			}
			for _, n := range tc.not {
				if strings.Contains(xml, n) {
					t.Fatalf("unexpected %q in xml: %s", n, xml)
				}
			}
		})
	}
}

func TestRenderTurnEscapesText(t *testing.T) {
	xml, err := RenderTurn(ivr.TurnOutput{Utterance: "Train <12951> & co", KeepListening: true}, testGather)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !strings.Contains(xml, "Train &lt;12951&gt; &amp; co") {
		t.Fatalf("expected escaped text: %s", xml)
	}
}

func TestRenderTurnRequiresNextStep(t *testing.T) {
	if _, err := RenderTurn(ivr.TurnOutput{Utterance: "x"}, testGather); err == nil {
		t.Fatalf("expected error")
	}
}
