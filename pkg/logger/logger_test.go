package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestNewWriter_LevelByEnv(t *testing.T) {
	var buf bytes.Buffer
	NewWriter(&buf, "production").Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug must be off in production, got %s", buf.String())
	}
	NewWriter(&buf, "dev").Debug("shown")
	if !strings.Contains(buf.String(), `"msg":"shown"`) {
		t.Fatalf("debug must be on in dev, got %s", buf.String())
	}
}

func TestFrom_FallsBackToDefault(t *testing.T) {
	if From(context.Background()) == nil {
		t.Fatalf("expected default logger")
	}
	var buf bytes.Buffer
	l := NewWriter(&buf, "local")
	if From(With(context.Background(), l)) != l {
		t.Fatalf("expected context logger")
	}
}

func TestMiddleware_RequestIDAndCallSid(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	r := gin.New()
	r.Use(Middleware(NewWriter(&buf, "local")))
	r.POST("/conversation", func(c *gin.Context) {
		_ = c.Request.ParseForm()
		From(c.Request.Context()).Info("inside")
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/conversation", strings.NewReader(url.Values{"CallSid": {"CA1"}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(headerRequestID, "rid-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Header().Get(headerRequestID) != "rid-1" {
		t.Fatalf("expected request id echoed, got %q", w.Header().Get(headerRequestID))
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected handler and summary lines, got %q", buf.String())
	}
	var inside, summary map[string]any
	_ = json.Unmarshal([]byte(lines[0]), &inside)
	_ = json.Unmarshal([]byte(lines[1]), &summary)
	if inside["request_id"] != "rid-1" {
		t.Fatalf("context logger must carry request_id, got %v", inside)
	}
	if summary["call_id"] != "CA1" || summary["path"] != "/conversation" {
		t.Fatalf("unexpected summary %v", summary)
	}
}
