package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hudsor01/abuseguard/internal/analytics"
	"github.com/hudsor01/abuseguard/internal/fingerprint"
	"github.com/hudsor01/abuseguard/internal/models"
	"github.com/hudsor01/abuseguard/internal/ratelimit"
)

// RegisterAdminRoutes registers the operator surface for the rate
// limiter. All routes sit behind the bearer-token middleware; the
// routing contract is action-based to match the single-endpoint shape
// the admin UI consumes:
//
//	GET    /rate-limit?action=analytics|metrics|client&clientId=...
//	POST   /rate-limit {"action":"clear","clientId":"..."}
//	DELETE /rate-limit?clientId=...
//	OPTIONS /rate-limit
func RegisterAdminRoutes(r gin.IRoutes, engine *ratelimit.Engine, agg *analytics.Aggregator) {
	r.GET("/rate-limit", func(c *gin.Context) {
		switch c.Query("action") {
		case "analytics":
			c.JSON(http.StatusOK, models.OK(gin.H{
				"analytics": agg.Snapshot(),
				"timestamp": time.Now().UTC(),
			}))

		case "metrics":
			c.JSON(http.StatusOK, models.OK(agg.ExportMetrics()))

		case "client":
			clientID := c.Query("clientId")
			if clientID == "" {
				c.JSON(http.StatusBadRequest, models.Err("MISSING_CLIENT_ID", "clientId is required"))
				return
			}
			info, err := engine.ClientInfo(clientID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, models.Err("INTERNAL", "failed to read client state"))
				return
			}
			// Never echo the full raw key back; responses may be logged.
			c.JSON(http.StatusOK, models.OK(gin.H{
				"clientId":  fingerprint.Redact(clientID),
				"info":      info,
				"timestamp": time.Now().UTC(),
			}))

		default:
			c.JSON(http.StatusBadRequest, models.Err("INVALID_ACTION", "action must be analytics, metrics or client"))
		}
	})

	r.POST("/rate-limit", func(c *gin.Context) {
		var req struct {
			Action   string `json:"action"`
			ClientID string `json:"clientId"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.Err("INVALID_ACTION", "invalid JSON payload"))
			return
		}
		if req.Action != "clear" {
			c.JSON(http.StatusBadRequest, models.Err("INVALID_ACTION", `action must be "clear"`))
			return
		}
		if req.ClientID == "" {
			c.JSON(http.StatusBadRequest, models.Err("MISSING_CLIENT_ID", "clientId is required"))
			return
		}
		clearClient(c, engine, req.ClientID)
	})

	r.DELETE("/rate-limit", func(c *gin.Context) {
		clientID := c.Query("clientId")
		if clientID == "" {
			c.JSON(http.StatusBadRequest, models.Err("MISSING_CLIENT_ID", "clientId is required"))
			return
		}
		clearClient(c, engine, clientID)
	})

	// Static capability document so the admin UI can discover the
	// surface without hardcoding it.
	r.OPTIONS("/rate-limit", func(c *gin.Context) {
		c.JSON(http.StatusOK, models.OK(gin.H{
			"actions": []gin.H{
				{"method": "GET", "action": "analytics", "description": "point-in-time admission analytics"},
				{"method": "GET", "action": "metrics", "description": "full metrics export with per-category breakdowns"},
				{"method": "GET", "action": "client", "params": []string{"clientId"}, "description": "per-client admission state"},
				{"method": "POST", "action": "clear", "params": []string{"clientId"}, "description": "reset a client to a fresh state"},
				{"method": "DELETE", "params": []string{"clientId"}, "description": "equivalent of the clear action"},
			},
		}))
	})
}

func clearClient(c *gin.Context, engine *ratelimit.Engine, clientID string) {
	if err := engine.ClearClient(clientID); err != nil {
		c.JSON(http.StatusInternalServerError, models.Err("INTERNAL", "failed to clear client state"))
		return
	}
	c.JSON(http.StatusOK, models.OK(gin.H{
		"cleared":   true,
		"clientId":  fingerprint.Redact(clientID),
		"timestamp": time.Now().UTC(),
	}))
}
