// Package guard is the glue request handlers consume: it derives the
// anonymous client key from the request, asks the engine for an
// admission decision and records security events for denials. Audit
// logging never touches the request path.
package guard

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hudsor01/abuseguard/internal/events"
	"github.com/hudsor01/abuseguard/internal/fingerprint"
	"github.com/hudsor01/abuseguard/internal/models"
	"github.com/hudsor01/abuseguard/internal/ratelimit"
)

// Guard applies one endpoint category's admission policy.
type Guard struct {
	engine *ratelimit.Engine
	logger *events.Logger
}

func New(engine *ratelimit.Engine, logger *events.Logger) *Guard {
	return &Guard{engine: engine, logger: logger}
}

// ClientIP extracts the originating address: first X-Forwarded-For hop,
// then RemoteAddr without the port, then "unknown". Proxy-stripped
// requests all share the "unknown" bucket by design.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr)); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

// Middleware rate-limits a route group under the given category. The
// denial body is deliberately generic: end users see a retry hint and a
// reason-specific message, never internal state or client keys.
func (g *Guard) Middleware(category string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := ClientIP(c.Request)
		ua := c.Request.UserAgent()
		clientKey := fingerprint.DeriveClientKey(ip, ua)

		dec := g.engine.CheckAdmission(clientKey, category)

		meta := events.RequestMeta{
			IPAddress: ip,
			UserAgent: ua,
			Path:      c.Request.URL.Path,
			Method:    c.Request.Method,
		}

		if dec.FailOpen {
			g.logger.LogAsync(events.SuspiciousActivity(clientKey,
				"rate limiter failed open: record store unavailable",
				events.SeverityCritical, meta))
		}

		if dec.Allowed {
			c.Header("X-RateLimit-Remaining", strconv.Itoa(dec.Remaining))
			c.Next()
			return
		}

		// Only the transition into a block is recorded; repeat denials
		// inside the same block would flood the audit trail.
		if dec.Tripped {
			g.logger.LogAsync(events.RateLimitExceeded(clientKey, category,
				string(dec.Reason), dec.RetryAfter, meta))
		}

		retryAfter := int(dec.RetryAfter.Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfter))

		message := "Too many requests. Please try again later."
		if dec.Reason == ratelimit.ReasonPenaltyBlock {
			message = "Temporarily blocked due to repeated violations."
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"success":    false,
			"error":      &models.APIError{Code: "RATE_LIMITED", Message: message},
			"retryAfter": retryAfter,
		})
	}
}
