package workflow

import (
	"time"

	"resume-workflow/resume/model"
)

// State names the stage a run is in.
type State string

const (
	StateStart                  State = "start"
	StateExtractJobDescription  State = "extract_job_description"
	StateRetrieveCandidateFacts State = "retrieve_candidate_facts"
	StateDraftResume            State = "draft_resume"
	StateRenderDraft            State = "render_draft"
	StateAwaitReview            State = "await_review"
	StateFinish                 State = "finish"
)

// Result statuses returned to callers.
const (
	StatusReviewNeeded = "review_needed"
	StatusCompleted    = "completed"
)

// CandidateFacts is the retrieval output, one free-text blob per query.
type CandidateFacts struct {
	PersonalInfo   string `json:"personalInfo"`
	Skills         string `json:"skills"`
	Experience     string `json:"experience"`
	Education      string `json:"education"`
	Certifications string `json:"certifications"`
	Projects       string `json:"projects"`
}

// Context is the mutable state threaded through one run.
type Context struct {
	Language        string
	JobURL          string
	JobDescription  string
	CandidateFacts  *CandidateFacts
	Feedback        string
	Draft           *model.DraftResume
	RenderedContent string
	Revision        int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// StepResult is what a stage hands back to the engine loop.
type StepResult interface {
	isStepResult()
}

// Next moves the run to State.
type Next struct {
	State State
}

// Suspend parks the run at the review gate.
type Suspend struct{}

// Done ends the run.
type Done struct{}

func (Next) isStepResult()    {}
func (Suspend) isStepResult() {}
func (Done) isStepResult()    {}
