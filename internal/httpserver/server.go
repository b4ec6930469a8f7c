package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hudsor01/abuseguard/internal/analytics"
	"github.com/hudsor01/abuseguard/internal/auth"
	"github.com/hudsor01/abuseguard/internal/config"
	"github.com/hudsor01/abuseguard/internal/events"
	"github.com/hudsor01/abuseguard/internal/guard"
	"github.com/hudsor01/abuseguard/internal/handlers"
	"github.com/hudsor01/abuseguard/internal/ratelimit"
)

// Pinger is the readiness dependency; the event store satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps bundles the wired subsystems the router exposes.
type Deps struct {
	Engine     *ratelimit.Engine
	Aggregator *analytics.Aggregator
	Events     handlers.EventDirectory
	Logger     *events.Logger
	Readiness  Pinger
}

// NewRouter wires public endpoints, the guarded intake route and the
// bearer-token admin surface.
// Public: /health, /ready, POST /contact (rate limited).
// Admin:  /api/admin/* behind ADMIN_TOKEN.
func NewRouter(cfg config.Config, deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	// Liveness: confirms the process is running.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness: confirms the audit store dependency is reachable.
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := deps.Readiness.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	// Guarded intake: the contact form submission path, rate limited
	// per anonymous client. Field validation lives with the caller that
	// embeds this subsystem; this route only enforces admission.
	g := guard.New(deps.Engine, deps.Logger)
	r.POST("/contact", g.Middleware("contact-form"), func(c *gin.Context) {
		c.JSON(http.StatusAccepted, gin.H{"success": true})
	})

	// Admin group enforces the operator bearer token.
	admin := r.Group("/api/admin")
	admin.Use(auth.BearerMiddleware(cfg.AdminToken))

	handlers.RegisterAdminRoutes(admin, deps.Engine, deps.Aggregator)
	handlers.RegisterSecurityEventRoutes(admin, deps.Events)

	return r
}
