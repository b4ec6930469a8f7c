package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hudsor01/abuseguard/internal/events"
	"github.com/hudsor01/abuseguard/internal/models"
)

// EventDirectory is the query/acknowledge slice of the event store the
// admin surface needs. *events.Store satisfies it.
type EventDirectory interface {
	QueryRecent(ctx context.Context, f events.Filter) ([]events.SecurityEvent, error)
	Acknowledge(ctx context.Context, id, acknowledgedBy string) (bool, error)
}

// RegisterSecurityEventRoutes registers the audit-trail surface:
//
//	GET  /security-events?limit=&type=&severity=&acknowledged=
//	POST /security-events/:id/acknowledge {"acknowledgedBy":"..."}
func RegisterSecurityEventRoutes(r gin.IRoutes, dir EventDirectory) {
	r.GET("/security-events", func(c *gin.Context) {
		var f events.Filter

		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, models.Err("INVALID_LIMIT", "limit must be a positive integer"))
				return
			}
			f.Limit = n
		}
		f.Type = events.Type(c.Query("type"))
		f.Severity = events.Severity(c.Query("severity"))
		if v := c.Query("acknowledged"); v != "" {
			ack, err := strconv.ParseBool(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, models.Err("INVALID_FILTER", "acknowledged must be true or false"))
				return
			}
			f.Acknowledged = &ack
		}

		evs, err := dir.QueryRecent(c.Request.Context(), f)
		if err != nil {
			c.JSON(http.StatusInternalServerError, models.Err("INTERNAL", "failed to query events"))
			return
		}
		if evs == nil {
			evs = []events.SecurityEvent{}
		}
		c.JSON(http.StatusOK, models.OK(gin.H{
			"events": evs,
			"count":  len(evs),
		}))
	})

	r.POST("/security-events/:id/acknowledge", func(c *gin.Context) {
		var req struct {
			AcknowledgedBy string `json:"acknowledgedBy"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.AcknowledgedBy == "" {
			c.JSON(http.StatusBadRequest, models.Err("MISSING_ACKNOWLEDGED_BY", "acknowledgedBy is required"))
			return
		}

		ok, err := dir.Acknowledge(c.Request.Context(), c.Param("id"), req.AcknowledgedBy)
		if err != nil {
			c.JSON(http.StatusInternalServerError, models.Err("INTERNAL", "failed to acknowledge event"))
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, models.Err("EVENT_NOT_FOUND", "no such event"))
			return
		}
		c.JSON(http.StatusOK, models.OK(gin.H{"acknowledged": true}))
	})
}
