package cv

import (
	"resume-workflow/internal/knowledge"
	"resume-workflow/internal/workflow"
	"resume-workflow/resume/model"
)

type runFromDescriptionRequest struct {
	JobDescription string `json:"jobDescription" binding:"required"`
}

type runFromURLRequest struct {
	JobURL string `json:"jobUrl" binding:"required,url"`
}

type continueRequest struct {
	Approve  *bool  `json:"approve" binding:"required"`
	Feedback string `json:"feedback" binding:"max=8000"`
}

type workflowResponse struct {
	Status          string             `json:"status"`
	SessionID       string             `json:"sessionId"`
	RenderedContent string             `json:"renderedContent"`
	Considerations  string             `json:"considerations,omitempty"`
	Revision        int64              `json:"revision"`
	Draft           *model.DraftResume `json:"draft,omitempty"`
}

func toWorkflowResponse(res workflow.Result) workflowResponse {
	return workflowResponse{
		Status:          res.Status,
		SessionID:       res.SessionID,
		RenderedContent: res.RenderedContent,
		Considerations:  res.Considerations,
		Revision:        res.Revision,
		Draft:           res.Draft,
	}
}

type languagesResponse struct {
	Languages []workflow.Language `json:"languages"`
}

type filesResponse struct {
	Files []knowledge.Document `json:"files"`
}

type queuedFile struct {
	Document knowledge.Document `json:"document"`
	Queued   bool               `json:"queued"`
}

type queuedResponse struct {
	Queued  []queuedFile `json:"queued"`
	Skipped []string     `json:"skipped"`
}
