package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-workflow/internal/shared/telemetry"
)

func captureLogs(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	telemetry.SetupWithWriters(level, &buf)
	t.Cleanup(func() { telemetry.SetupWithWriters("info", os.Stdout) })
	return &buf
}

func lastLogLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &payload))
	return payload
}

func TestLoggingAttributesWorkflowSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogs(t, "info")

	router := gin.New()
	router.Use(RequestID(), Logging())
	router.POST("/cv/continue/:sessionId", func(c *gin.Context) {
		c.Set(KeySessionID, c.Param("sessionId"))
		c.Set(KeyWorkflowStatus, "review_needed")
		c.Set(KeyWorkflowTransition, "reject->review_needed")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodPost, "/cv/continue/sess-1", nil)
	req.Header.Set("X-Request-Id", "req-123")
	router.ServeHTTP(httptest.NewRecorder(), req)

	payload := lastLogLine(t, buf)
	assert.Equal(t, "request.complete", payload["msg"])
	assert.Equal(t, "req-123", payload["request_id"])
	assert.Equal(t, "sess-1", payload["session_id"])
	assert.Equal(t, "reject->review_needed", payload["workflow_transition"])
	assert.Equal(t, "/cv/continue/:sessionId", payload["route"])
	assert.Contains(t, payload, "duration_ms")
}

func TestLoggingLevelFollowsStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogs(t, "info")

	router := gin.New()
	router.Use(Logging())
	router.GET("/boom", func(c *gin.Context) { c.Status(http.StatusBadGateway) })
	router.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	router.GET("/api/v1/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, "ERROR", lastLogLine(t, buf)["level"])

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, "WARN", lastLogLine(t, buf)["level"])

	before := buf.Len()
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, before, buf.Len(), "health checks log below info")
	assert.NotContains(t, lastLogLine(t, buf), "session_id")
}
