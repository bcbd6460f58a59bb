package telephony

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ivr-platform/internal/dialogue"
	"ivr-platform/internal/ivr"
	"ivr-platform/internal/session"

	"github.com/gin-gonic/gin"
)

func newTestRouter(engine Dialogue) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	TwilioWebhookHandler{Engine: engine, BaseURL: "https://ivr.example.com", GatherTimeout: 5}.Register(r)
	return r
}

func post(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, newFormRequest(path, body))
	return w
}

func TestHandleVoice_Greets(t *testing.T) {
	engine := ivr.NewEngine(session.NewMemoryStore(), ivr.Options{})
	w := post(newTestRouter(engine), PathVoice, "CallSid=CA1")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/xml") {
		t.Fatalf("expected xml content type, got %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Welcome to Indian Railways helpline.") || !strings.Contains(body, `numDigits="1"`) {
		t.Fatalf("unexpected greeting: %s", body)
	}
	if !strings.Contains(body, "https://ivr.example.com/voice</Redirect>") {
		t.Fatalf("expected redirect back to greeting: %s", body)
	}
}

func TestConversationFlow(t *testing.T) {
	store := session.NewMemoryStore()
	r := newTestRouter(ivr.NewEngine(store, ivr.Options{}))

	w := post(r, PathConversation, "CallSid=CA1&Digits=1")
	if !strings.Contains(w.Body.String(), "Which class would you prefer") || !strings.Contains(w.Body.String(), "<Gather") {
		t.Fatalf("unexpected booking prompt: %s", w.Body.String())
	}

	w = post(r, PathConversation, "CallSid=CA1&SpeechResult=Sleeper")
	if !strings.Contains(w.Body.String(), "Sleeper class selected") {
		t.Fatalf("unexpected class confirmation: %s", w.Body.String())
	}

	w = post(r, PathConversation, "CallSid=CA1&SpeechResult=bye")
	body := w.Body.String()
	if !strings.Contains(body, "Have a great journey ahead!") || !strings.Contains(body, "<Hangup>") {
		t.Fatalf("expected farewell and hangup: %s", body)
	}

	w = post(r, PathCallEnd, "CallSid=CA1&CallStatus=completed")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if store.Len() != 0 {
		t.Fatalf("expected no context after call end")
	}
}

func TestConversation_AgentDial(t *testing.T) {
	r := newTestRouter(ivr.NewEngine(session.NewMemoryStore(), ivr.Options{}))
	w := post(r, PathConversation, "CallSid=CA1&Digits=6")
	body := w.Body.String()
	if !strings.Contains(body, "Connecting you to a support agent.") || !strings.Contains(body, "<Number>+911234567890</Number>") {
		t.Fatalf("expected dial to agent: %s", body)
	}
	if strings.Contains(body, "<Gather") {
		t.Fatalf("transfer must not keep listening: %s", body)
	}
}

func TestConversation_MissingCallSidHangsUp(t *testing.T) {
	r := newTestRouter(ivr.NewEngine(session.NewMemoryStore(), ivr.Options{}))
	w := post(r, PathConversation, "Digits=1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, dialogue.DefaultPrompts().Apology) || !strings.Contains(body, "<Hangup>") {
		t.Fatalf("expected apology and hangup: %s", body)
	}
}

type failingEngine struct{ *ivr.Engine }

func (f failingEngine) HandleTurn(ctx context.Context, in ivr.TurnInput) (ivr.TurnOutput, error) {
	return ivr.TurnOutput{}, errors.New("redis: connection refused")
}

func TestConversation_BackendErrorApologizesAndListens(t *testing.T) {
	r := newTestRouter(failingEngine{ivr.NewEngine(session.NewMemoryStore(), ivr.Options{})})
	w := post(r, PathConversation, "CallSid=CA1&Digits=1")
	body := w.Body.String()
	if !strings.Contains(body, dialogue.DefaultPrompts().Apology) || !strings.Contains(body, "<Gather") {
		t.Fatalf("expected apology inside gather: %s", body)
	}
}

func TestCallEnd_IgnoresNonTerminalStatus(t *testing.T) {
	store := session.NewMemoryStore()
	r := newTestRouter(ivr.NewEngine(store, ivr.Options{}))
	post(r, PathConversation, "CallSid=CA1&Digits=2")

	w := post(r, PathCallEnd, "CallSid=CA1&CallStatus=in-progress")
	if w.Code != http.StatusOK || store.Len() != 1 {
		t.Fatalf("in-progress callback must keep the context (code=%d len=%d)", w.Code, store.Len())
	}

	for i := 0; i < 2; i++ {
		w = post(r, PathCallEnd, "CallSid=CA1")
		if w.Code != http.StatusOK || store.Len() != 0 {
			t.Fatalf("end %d: expected removal (code=%d len=%d)", i, w.Code, store.Len())
		}
	}
}

func TestCallEnd_RequiresCallSid(t *testing.T) {
	r := newTestRouter(ivr.NewEngine(session.NewMemoryStore(), ivr.Options{}))
	if w := post(r, PathCallEnd, "CallStatus=completed"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
