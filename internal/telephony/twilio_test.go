package telephony

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestValidateSignature(t *testing.T) {
	params := url.Values{"CallSid": {"CA1"}, "Digits": {"1"}, "From": {"+15551234567"}}
	u := "https://ivr.example.com/conversation"
	sig := ComputeSignature("secret", u, params)

	if !ValidateSignature("secret", u, params, sig) {
		t.Fatalf("expected valid signature")
	}
	if ValidateSignature("other", u, params, sig) {
		t.Fatalf("wrong token must fail")
	}
	tampered := url.Values{"CallSid": {"CA1"}, "Digits": {"6"}, "From": {"+15551234567"}}
	if ValidateSignature("secret", u, tampered, sig) {
		t.Fatalf("tampered params must fail")
	}
	if ValidateSignature("secret", u, params, "") {
		t.Fatalf("missing signature must fail")
	}
}

func TestComputeSignature_SortsParams(t *testing.T) {
	a := url.Values{"b": {"2"}, "a": {"1"}}
	b := url.Values{"a": {"1"}, "b": {"2"}}
	if ComputeSignature("t", "https://x", a) != ComputeSignature("t", "https://x", b) {
		t.Fatalf("signature must not depend on map order")
	}
}

func TestRequireTwilioSignature(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.POST(PathConversation, RequireTwilioSignature("secret", "https://ivr.example.com/"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	body := "CallSid=CA1&Digits=1"
	params, _ := url.ParseQuery(body)
	sig := ComputeSignature("secret", "https://ivr.example.com/conversation", params)

	req := newFormRequest(PathConversation, body)
	req.Header.Set("X-Twilio-Signature", sig)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, PathConversation, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", "bogus")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}
