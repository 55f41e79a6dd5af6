package main

// Serves the HTTP API behind an API Gateway HTTP API (payload v2):
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"

	"resume-workflow/internal/bootstrap"
	"resume-workflow/internal/shared/config"
	"resume-workflow/internal/shared/telemetry"
)

type proxyFunc func(context.Context, events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error)

// coldStart builds the router once per container. A failed build is kept so
// every invocation answers 503 until the container is recycled.
type coldStart struct {
	once  sync.Once
	build func() (*gin.Engine, error)
	proxy proxyFunc
	err   error
}

func (c *coldStart) handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	c.once.Do(func() {
		start := time.Now()
		router, err := c.build()
		if err != nil {
			c.err = err
			telemetry.Error("lambda_http.bootstrap_failed", map[string]any{"error": err.Error()})
			return
		}
		c.proxy = ginadapter.NewV2(router).ProxyWithContext
		telemetry.Info("lambda_http.cold_start", map[string]any{"duration_ms": time.Since(start).Milliseconds()})
	})
	if c.err != nil {
		return unavailable(req.RequestContext.RequestID), nil
	}
	return c.proxy(ctx, req)
}

func unavailable(requestID string) events.APIGatewayV2HTTPResponse {
	body, _ := json.Marshal(map[string]any{
		"error": map[string]string{
			"code":      "service_unavailable",
			"message":   "service is starting or misconfigured",
			"requestId": requestID,
		},
	})
	return events.APIGatewayV2HTTPResponse{
		StatusCode: http.StatusServiceUnavailable,
		Body:       string(body),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

func main() {
	cfg := config.Load()
	if _, err := telemetry.Setup(cfg.LogLevel, ""); err != nil {
		telemetry.Warn("lambda_http.log_setup_failed", map[string]any{"error": err.Error()})
	}
	gin.SetMode(gin.ReleaseMode)

	handler := &coldStart{build: func() (*gin.Engine, error) {
		app, err := bootstrap.Build(cfg)
		if err != nil {
			return nil, err
		}
		return app.Router, nil
	}}
	lambda.Start(handler.handle)
}
