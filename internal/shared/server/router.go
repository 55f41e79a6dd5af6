package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"resume-workflow/internal/cv"
	"resume-workflow/internal/services/health"
	"resume-workflow/internal/shared/config"
	"resume-workflow/internal/shared/metrics"
	"resume-workflow/internal/shared/server/middleware"
	"resume-workflow/internal/shared/server/respond"
)

const defaultRateGroup = "DEFAULT"

// RouterDeps carries the handlers the router mounts.
type RouterDeps struct {
	Config    config.Config
	CVHandler *cv.Handler
	Health    *health.Service
	Limiter   *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.RateLimit(middleware.RateLimitConfig{
			DefaultGroup: defaultRateGroup,
			GroupFor:     cv.RateLimitGroup,
			Limiter:      deps.Limiter,
			Rules: map[string]middleware.RateLimitRule{
				defaultRateGroup: {Rate: 5, Burst: 20},
				cv.GroupWorkflow: {Rate: 0.2, Burst: 3},
			},
		}),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		report := deps.Health.Status(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	})
	if deps.CVHandler != nil {
		deps.CVHandler.RegisterRoutes(api)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
