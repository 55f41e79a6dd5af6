package cv

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"resume-workflow/internal/shared/server/middleware"
	"resume-workflow/internal/shared/server/respond"
	"resume-workflow/internal/workflow"
)

// Runner starts and continues résumé generation runs.
type Runner interface {
	Start(ctx context.Context, in workflow.StartInput) (workflow.Result, error)
	Continue(ctx context.Context, in workflow.ContinueInput) (workflow.Result, error)
}

// Handler wires HTTP handlers to the workflow and knowledge services.
type Handler struct {
	Runner Runner
	Index  *IndexHandler
}

// NewHandler constructs a Handler.
func NewHandler(runner Runner, index *IndexHandler) *Handler {
	return &Handler{Runner: runner, Index: index}
}

// RegisterRoutes attaches the cv routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	cv := rg.Group("/cv")
	cv.GET("/languages", h.languages)
	cv.POST("/run/from-description/:language", h.runFromDescription)
	cv.POST("/run/from-url/:language", h.runFromURL)
	cv.POST("/continue/:sessionId", h.continueRun)

	if h.Index != nil {
		h.Index.RegisterRoutes(cv.Group("/index"))
	}
}

// GroupWorkflow is the rate limit group of run and continue requests.
const GroupWorkflow = "WORKFLOW"

// RateLimitGroup classifies a matched route for the rate limiter.
func RateLimitGroup(c *gin.Context) string {
	path := c.FullPath()
	if strings.Contains(path, "/cv/run/") || strings.Contains(path, "/cv/continue/") {
		return GroupWorkflow
	}
	return ""
}

func (h *Handler) languages(c *gin.Context) {
	respond.OK(c, languagesResponse{Languages: workflow.SupportedLanguages()})
}

func (h *Handler) runFromDescription(c *gin.Context) {
	language, ok := languageParam(c)
	if !ok {
		return
	}
	var req runFromDescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "jobDescription is required", nil)
		return
	}
	if strings.TrimSpace(req.JobDescription) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "jobDescription must not be blank", nil)
		return
	}

	res, err := h.Runner.Start(c.Request.Context(), workflow.StartInput{
		JobDescription: req.JobDescription,
		Language:       language,
	})
	h.finish(c, "start", res, err)
}

func (h *Handler) runFromURL(c *gin.Context) {
	language, ok := languageParam(c)
	if !ok {
		return
	}
	var req runFromURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "jobUrl must be a valid URL", nil)
		return
	}

	res, err := h.Runner.Start(c.Request.Context(), workflow.StartInput{
		JobURL:   req.JobURL,
		Language: language,
	})
	h.finish(c, "start", res, err)
}

func (h *Handler) continueRun(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("sessionId"))
	if sessionID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "session id is required", nil)
		return
	}
	c.Set(middleware.KeySessionID, sessionID)

	var req continueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "approve is required", nil)
		return
	}

	res, err := h.Runner.Continue(c.Request.Context(), workflow.ContinueInput{
		SessionID: sessionID,
		Approve:   *req.Approve,
		Feedback:  req.Feedback,
	})
	transition := "reject"
	if *req.Approve {
		transition = "approve"
	}
	h.finish(c, transition, res, err)
}

func (h *Handler) finish(c *gin.Context, transition string, res workflow.Result, err error) {
	if err != nil {
		c.Set(middleware.KeyWorkflowTransition, transition+"->failed")
		writeWorkflowError(c, err)
		return
	}
	c.Set(middleware.KeySessionID, res.SessionID)
	c.Set(middleware.KeyWorkflowStatus, res.Status)
	c.Set(middleware.KeyWorkflowTransition, transition+"->"+res.Status)
	respond.OK(c, toWorkflowResponse(res))
}

func languageParam(c *gin.Context) (string, bool) {
	language := strings.ToLower(strings.TrimSpace(c.Param("language")))
	if _, ok := workflow.LanguageName(language); !ok {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unsupported language", gin.H{
			"language":  language,
			"supported": workflow.SupportedLanguages(),
		})
		return "", false
	}
	return language, true
}

// writeWorkflowError maps workflow error kinds to HTTP responses.
func writeWorkflowError(c *gin.Context, err error) {
	kind := workflow.KindOf(err)
	switch {
	case errors.Is(kind, workflow.ErrInputValidation):
		message := "invalid input"
		if errors.Is(err, workflow.ErrRevisionLimit) {
			message = "revision limit reached"
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", message, nil)
	case errors.Is(kind, workflow.ErrSessionNotFound):
		respond.Error(c, http.StatusNotFound, "session_not_found", "session not found", nil)
	case errors.Is(kind, workflow.ErrSessionBusy):
		respond.Error(c, http.StatusConflict, "session_busy", "session is being processed", nil)
	case errors.Is(kind, workflow.ErrFetch):
		respond.Error(c, http.StatusBadGateway, "fetch_error", "failed to fetch job posting", nil)
	case errors.Is(kind, workflow.ErrGeneration):
		respond.Error(c, http.StatusBadGateway, "generation_error", "failed to generate resume", nil)
	case errors.Is(kind, workflow.ErrRender):
		respond.Error(c, http.StatusInternalServerError, "render_error", "failed to render resume", nil)
	case errors.Is(kind, workflow.ErrTimeout):
		respond.Error(c, http.StatusGatewayTimeout, "timeout", "workflow timed out", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "workflow_error", "workflow failed", nil)
	}
}
