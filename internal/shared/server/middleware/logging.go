package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"resume-workflow/internal/shared/telemetry"
)

// Gin context keys handlers set so the access log can attribute a request
// to a workflow session.
const (
	KeySessionID          = "sessionId"
	KeyWorkflowStatus     = "workflowStatus"
	KeyWorkflowTransition = "workflowTransition"
)

var quietRoutes = map[string]bool{
	"/metrics":       true,
	"/api/v1/health": true,
}

// Logging writes one access line per request. Server errors log at error,
// client errors at warn, health checks and preflights at debug.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"status":      status,
			"duration_ms": float64(time.Since(start).Microseconds()) / 1000,
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}
		for field, key := range map[string]string{
			"session_id":          KeySessionID,
			"workflow_status":     KeyWorkflowStatus,
			"workflow_transition": KeyWorkflowTransition,
		} {
			if v := c.GetString(key); v != "" {
				fields[field] = v
			}
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		switch {
		case status >= http.StatusInternalServerError:
			telemetry.Error("request.complete", fields)
		case status >= http.StatusBadRequest:
			telemetry.Warn("request.complete", fields)
		case c.Request.Method == http.MethodOptions || quietRoutes[c.FullPath()]:
			telemetry.Debug("request.complete", fields)
		default:
			telemetry.Info("request.complete", fields)
		}
	}
}
