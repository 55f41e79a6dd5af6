package respond

import (
	"github.com/gin-gonic/gin"

	"resume-workflow/internal/shared/telemetry"
)

// ErrorBody is the error object every failing endpoint returns. RequestID
// and SessionID let a caller quote the failing call back to an operator.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Error logs the failure and aborts with a standardized error response.
// Client errors log at warn, server errors at error.
func Error(c *gin.Context, status int, code, message string, details any) {
	body := ErrorBody{
		Code:      code,
		Message:   message,
		RequestID: c.GetString("requestId"),
		SessionID: c.GetString("sessionId"),
		Details:   details,
	}

	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"route":      c.FullPath(),
		"method":     c.Request.Method,
		"request_id": body.RequestID,
	}
	if body.SessionID != "" {
		fields["session_id"] = body.SessionID
	}
	if status >= 500 {
		telemetry.Error("http.error", fields)
	} else {
		telemetry.Warn("http.error", fields)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{Error: body})
}
