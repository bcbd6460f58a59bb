package httpapi

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"ivr-platform/internal/audit"
	"ivr-platform/internal/auth"
	"ivr-platform/internal/dialogue"
	"ivr-platform/internal/ivr"
	"ivr-platform/internal/rbac"
	"ivr-platform/internal/reporting"
	"ivr-platform/internal/routing"
	"ivr-platform/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CallAdmin is the slice of the dialogue engine the admin API drives.
type CallAdmin interface {
	Calls(ctx context.Context) ([]dialogue.CallContext, error)
	Lookup(ctx context.Context, callID string) (dialogue.CallContext, bool, error)
	End(ctx context.Context, callID string, reason ivr.EndReason) error
}

const (
	defaultOverrideTTL = 15 * time.Minute
	maxOverrideTTL     = 24 * time.Hour
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth      *auth.Manager
	Calls     CallAdmin
	Audit     *audit.Service
	Overrides routing.OverrideStore
	Reports   *reporting.Service
	Now       func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues an access token.
//
// NOTE: development-only. It trusts the requested identity and must not be
// mounted in production.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || !rbac.IsKnownRole(req.Role) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id and a known role required"})
		return
	}
	tok, err := h.Auth.IssueAccess(h.now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": tok})
}

// --- Calls ---

// ListCalls returns every live call context, oldest first.
func (h Handlers) ListCalls(c *gin.Context) {
	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "engine not configured"})
		return
	}
	calls, err := h.Calls.Calls(c.Request.Context())
	if err != nil {
		logger.FromGin(c).Error("list calls failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call listing failed"})
		return
	}
	sort.Slice(calls, func(i, j int) bool { return calls[i].CreatedAt.Before(calls[j].CreatedAt) })
	if calls == nil {
		calls = []dialogue.CallContext{}
	}
	c.JSON(http.StatusOK, gin.H{"calls": calls, "count": len(calls)})
}

func (h Handlers) GetCall(c *gin.Context) {
	cc, ok := h.lookupLive(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, cc)
}

// EndCall force-ends a call. Ending an unknown call is not an error.
// RBAC: supervisor or super_admin.
func (h Handlers) EndCall(c *gin.Context) {
	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "engine not configured"})
		return
	}
	ctx := logger.With(c.Request.Context(), logger.FromGin(c))
	callID := c.Param("call_id")

	if err := h.Calls.End(ctx, callID, ivr.EndReasonAdmin); err != nil {
		if errors.Is(err, ivr.ErrInvalidCallIdentifier) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "call_id required"})
			return
		}
		logger.FromGin(c).Error("admin end call failed", "call_id", callID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "end call failed"})
		return
	}
	h.auditAdmin(c, audit.EventTypeAdminEndCall, callID, "call ended by operator")
	c.Status(http.StatusNoContent)
}

type transferOverrideRequest struct {
	ConnectTo  string `json:"connect_to"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// SetTransferOverride pins the agent destination for a live call. It applies
// if the caller asks for an agent before the override expires.
// RBAC: supervisor or super_admin.
func (h Handlers) SetTransferOverride(c *gin.Context) {
	if h.Overrides == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "overrides not configured"})
		return
	}
	var req transferOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.ConnectTo == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "connect_to required"})
		return
	}
	ttl := defaultOverrideTTL
	if req.TTLSeconds < 0 || time.Duration(req.TTLSeconds)*time.Second > maxOverrideTTL {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "ttl_seconds out of range"})
		return
	} else if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}

	cc, ok := h.lookupLive(c)
	if !ok {
		return
	}
	setBy, _ := auth.UserID(c.Request.Context())
	o := routing.Override{
		CallID:     cc.CallID,
		OverrideID: uuid.NewString(),
		ConnectTo:  req.ConnectTo,
		ExpiresAt:  h.now().Add(ttl).UTC(),
		SetBy:      setBy,
	}
	if err := h.Overrides.SetOverride(c.Request.Context(), o); err != nil {
		logger.FromGin(c).Error("set transfer override failed", "call_id", cc.CallID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "override failed"})
		return
	}
	h.auditAdmin(c, audit.EventTypeTransferOverride, cc.CallID, "transfer override set to "+req.ConnectTo)
	c.JSON(http.StatusOK, gin.H{
		"override_id": o.OverrideID,
		"call_id":     o.CallID,
		"connect_to":  o.ConnectTo,
		"expires_at":  o.ExpiresAt,
	})
}

// --- Audit ---

// ListAudit returns recent audit events, optionally for one call.
func (h Handlers) ListAudit(c *gin.Context) {
	if h.Audit == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "audit not configured"})
		return
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	events, err := h.Audit.Recent(c.Request.Context(), c.Query("call_id"), limit)
	if err != nil {
		logger.FromGin(c).Error("audit listing failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "audit listing failed"})
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// --- Reports ---

// CallsReport summarizes call outcomes between from and to (RFC 3339).
// Defaults to the last 24 hours.
func (h Handlers) CallsReport(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	r := reporting.TimeRange{To: h.now().UTC()}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be RFC 3339"})
			return
		}
		r.To = t
	}
	r.From = r.To.Add(-24 * time.Hour)
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be RFC 3339"})
			return
		}
		r.From = t
	}

	out, err := h.Reports.CallsSummary(c.Request.Context(), r)
	if errors.Is(err, reporting.ErrInvalidRequest) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be before to"})
		return
	}
	if err != nil {
		logger.FromGin(c).Error("calls report failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) lookupLive(c *gin.Context) (dialogue.CallContext, bool) {
	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "engine not configured"})
		return dialogue.CallContext{}, false
	}
	callID := c.Param("call_id")
	cc, live, err := h.Calls.Lookup(c.Request.Context(), callID)
	switch {
	case errors.Is(err, ivr.ErrInvalidCallIdentifier):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "call_id required"})
		return dialogue.CallContext{}, false
	case err != nil:
		logger.FromGin(c).Error("call lookup failed", "call_id", callID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call lookup failed"})
		return dialogue.CallContext{}, false
	case !live:
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
		return dialogue.CallContext{}, false
	}
	return cc, true
}

// auditAdmin is best-effort; a failed append never fails the request.
func (h Handlers) auditAdmin(c *gin.Context, typ audit.EventType, callID, msg string) {
	if h.Audit == nil {
		return
	}
	ctx := c.Request.Context()
	userID, _ := auth.UserID(ctx)
	role, _ := auth.Role(ctx)
	if err := h.Audit.LogAdminAction(ctx, typ, callID, userID, role, c.ClientIP(), msg); err != nil {
		logger.FromGin(c).Warn("audit append failed", "call_id", callID, "type", string(typ), "err", err)
	}
}

// Convenience middleware bundles.

// RequireOperator admits any operator role.
func RequireOperator() gin.HandlerFunc {
	return rbac.RequireAnyRole(rbac.RoleOperator, rbac.RoleSupervisor)
}

// RequireSupervisor admits roles allowed to change a live call.
func RequireSupervisor() gin.HandlerFunc {
	return rbac.RequireAnyRole(rbac.RoleSupervisor)
}
