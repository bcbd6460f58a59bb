package telephony

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"ivr-platform/internal/ivr"
	"ivr-platform/internal/routing"
	"ivr-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	PathVoice        = "/voice"
	PathConversation = "/conversation"
	PathCallEnd      = "/call/end"
)

// Dialogue is the turn orchestrator as seen by the transport. *ivr.Engine implements it.
type Dialogue interface {
	Greeting() string
	Apology() string
	HandleTurn(ctx context.Context, in ivr.TurnInput) (ivr.TurnOutput, error)
	EndCall(ctx context.Context, callID string) error
}

// TwilioWebhookHandler converts Twilio webhooks to turns, delegates to the
// dialogue engine, and writes TwiML.
//
// No dialogue logic here.
type TwilioWebhookHandler struct {
	Engine Dialogue

	// BaseURL is the public origin Twilio reaches us on; Gather actions and
	// redirects must be absolute.
	BaseURL string

	GatherTimeout int
	Voice         string
	Language      string
}

func (h TwilioWebhookHandler) Register(r gin.IRoutes) {
	r.POST(PathVoice, h.HandleVoice)
	r.POST(PathConversation, h.HandleConversation)
	r.POST(PathCallEnd, h.HandleCallEnd)
}

func (h TwilioWebhookHandler) url(path string) string {
	return strings.TrimRight(h.BaseURL, "/") + path
}

func (h TwilioWebhookHandler) gather() GatherOptions {
	return GatherOptions{
		ActionURL: h.url(PathConversation),
		Timeout:   h.GatherTimeout,
		Voice:     h.Voice,
		Language:  h.Language,
	}
}

// requestContext carries the request logger and client IP into the engine.
func requestContext(c *gin.Context) context.Context {
	ctx := logger.With(c.Request.Context(), logger.FromGin(c))
	return routing.WithClientIP(ctx, c.ClientIP())
}

// HandleVoice answers a new call with the greeting menu.
func (h TwilioWebhookHandler) HandleVoice(c *gin.Context) {
	log := logger.FromGin(c)
	if h.Engine == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "dialogue engine not configured"})
		return
	}

	form, err := ParseTwilioVoiceForm(c.Request)
	if err != nil {
		log.Warn("twilio webhook parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}
	log.Info("call answered", "call_id", form.CallSid, "from", form.From, "to", form.To)

	twiml, err := RenderGreeting(h.Engine.Greeting(), h.gather(), h.url(PathVoice))
	if err != nil {
		log.Error("twiml render failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "twiml failed"})
		return
	}
	writeTwiML(c, twiml)
}

// HandleConversation runs one dialogue turn. Engine errors never reach the
// caller as a crash: an invalid call id hangs up politely, anything else
// apologizes and keeps listening.
func (h TwilioWebhookHandler) HandleConversation(c *gin.Context) {
	log := logger.FromGin(c)
	if h.Engine == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "dialogue engine not configured"})
		return
	}

	form, err := ParseTwilioVoiceForm(c.Request)
	if err != nil {
		log.Warn("twilio webhook parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}

	out, err := h.Engine.HandleTurn(requestContext(c), form.TurnInput())
	var twiml string
	switch {
	case errors.Is(err, ivr.ErrInvalidCallIdentifier):
		log.Warn("turn without call id", "err", err)
		twiml, err = RenderHangup(h.Engine.Apology(), h.gather())
	case err != nil:
		log.Error("turn failed", "call_id", form.CallSid, "err", err)
		twiml, err = RenderTurn(ivr.TurnOutput{Utterance: h.Engine.Apology(), KeepListening: true}, h.gather())
	default:
		twiml, err = RenderTurn(out, h.gather())
	}
	if err != nil {
		log.Error("twiml render failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "twiml failed"})
		return
	}
	writeTwiML(c, twiml)
}

// HandleCallEnd clears the call's dialogue context. It doubles as a Twilio
// status callback: only terminal statuses (or none at all) end the call.
func (h TwilioWebhookHandler) HandleCallEnd(c *gin.Context) {
	log := logger.FromGin(c)
	if h.Engine == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "dialogue engine not configured"})
		return
	}

	form, err := ParseTwilioVoiceForm(c.Request)
	if err != nil {
		log.Warn("twilio webhook parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}
	if form.CallSid == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "CallSid required"})
		return
	}

	ev := form.StatusEvent()
	if !ev.Ends() {
		log.Debug("call status ignored", "call_id", ev.CallID, "status", string(ev.Status))
		c.Status(http.StatusOK)
		return
	}
	if err := h.Engine.EndCall(requestContext(c), form.CallSid); err != nil {
		log.Error("end call failed", "call_id", form.CallSid, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "end call failed"})
		return
	}
	log.Info("call ended and context cleared", "call_id", form.CallSid, "status", string(ev.Status), "duration", ev.DurationSeconds)
	c.Status(http.StatusOK)
}

func writeTwiML(c *gin.Context, twiml string) {
	c.Header("Content-Type", "application/xml")
	c.String(http.StatusOK, twiml)
}
