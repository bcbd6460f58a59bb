package main

import (
	"context"
	"net/http"
	"time"

	"ivr-platform/internal/auth"
	"ivr-platform/internal/httpapi"
	"ivr-platform/internal/telephony"
	"ivr-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d deps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := d.store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "session_store": err.Error()})
			return
		}
		if d.db != nil {
			if err := utils.HealthCheck(ctx, d.db, 2*time.Second); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "audit_db": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{})))

	// Provider webhooks (public, signed by Twilio when an auth token is configured).
	{
		h := telephony.TwilioWebhookHandler{
			Engine:        d.engine,
			BaseURL:       d.cfg.App.PublicBaseURL,
			GatherTimeout: d.cfg.Twilio.GatherTimeout,
		}
		twilio := r.Group("/")
		if d.cfg.Twilio.AuthToken != "" {
			twilio.Use(telephony.RequireTwilioSignature(d.cfg.Twilio.AuthToken, d.cfg.App.PublicBaseURL))
		} else {
			d.log.Warn("twilio signature validation disabled: TWILIO_AUTH_TOKEN not set")
		}
		h.Register(twilio)
	}

	if d.auth == nil {
		d.log.Info("admin api disabled: JWT_SECRET not set")
		return
	}

	h := httpapi.Handlers{
		Auth:      d.auth,
		Calls:     d.engine,
		Audit:     d.audit,
		Overrides: d.overrides,
		Reports:   d.reports,
	}

	v1 := r.Group("/v1")

	// AUTH routes (token issuance).
	// NOTE: development-only; production operators get tokens from ivrsim token.
	if !d.cfg.IsProduction() {
		v1.POST("/auth/login", h.Login)
	}

	// ADMIN routes
	admin := v1.Group("/admin")
	admin.Use(auth.RequireAccessToken(d.auth))
	admin.Use(httpapi.RequireOperator())
	{
		admin.GET("/calls", h.ListCalls)
		admin.GET("/calls/:call_id", h.GetCall)
		admin.DELETE("/calls/:call_id", httpapi.RequireSupervisor(), h.EndCall)
		admin.PUT("/calls/:call_id/transfer-override", httpapi.RequireSupervisor(), h.SetTransferOverride)
		admin.GET("/audit", h.ListAudit)
		admin.GET("/reports/calls", h.CallsReport)
	}
}
