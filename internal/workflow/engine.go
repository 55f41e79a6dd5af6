package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"resume-workflow/internal/fetch"
	"resume-workflow/internal/llm"
	"resume-workflow/internal/llm/prompts"
	"resume-workflow/internal/shared/metrics"
	"resume-workflow/internal/shared/telemetry"
	"resume-workflow/resume/contract"
	"resume-workflow/resume/model"
	"resume-workflow/resume/render"
)

// DefaultJobTextLimit caps the page text handed to the extraction prompt.
const DefaultJobTextLimit = 15000

// maxSteps bounds one drive of the loop; a healthy run needs at most six.
const maxSteps = 32

// Fetcher returns the content of a job posting page.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (fetch.Page, error)
}

// Retriever answers a semantic query over the candidate's documents.
type Retriever interface {
	Retrieve(ctx context.Context, query string) (string, error)
}

// Renderer typesets a draft.
type Renderer interface {
	Render(draft model.DraftResume, language string) (render.Document, error)
}

// Compiler turns rendered source into a PDF.
type Compiler interface {
	Compile(ctx context.Context, source string) ([]byte, error)
}

// NoteWriter stores side-channel files produced while rendering.
type NoteWriter interface {
	SaveWithKey(ctx context.Context, key, contentType string, r io.Reader) (int64, error)
}

// Engine drives a run from a given state until it suspends, finishes or fails.
type Engine struct {
	Fetcher      Fetcher
	Knowledge    Retriever
	LLM          llm.Client
	Prompts      *prompts.Catalog
	Renderer     Renderer
	Notes        NoteWriter
	JobTextLimit int

	// Compiler is optional. When set, every render pass is compiled and a
	// compile failure fails the run.
	Compiler Compiler
}

// Run executes stages starting at from. It returns Suspend when the run
// reaches the review gate and Done when it finishes.
func (e *Engine) Run(ctx context.Context, sessionID string, from State, wc *Context) (StepResult, error) {
	state := from
	for i := 0; i < maxSteps; i++ {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, newError(ErrTimeout, string(state), err)
			}
			return nil, newError(ErrWorkflow, string(state), err)
		}

		start := time.Now()
		result, err := e.step(ctx, sessionID, state, wc)
		elapsed := time.Since(start)
		metrics.ObserveStageDurationMs(string(state), float64(elapsed.Milliseconds()))
		if err != nil {
			telemetry.Warn("workflow.stage_failed", map[string]any{
				"session_id":  sessionID,
				"stage":       string(state),
				"duration_ms": elapsed.Milliseconds(),
				"error":       err.Error(),
			})
			return nil, err
		}
		wc.UpdatedAt = time.Now().UTC()

		switch r := result.(type) {
		case Next:
			telemetry.Debug("workflow.transition", map[string]any{
				"session_id":  sessionID,
				"from":        string(state),
				"to":          string(r.State),
				"duration_ms": elapsed.Milliseconds(),
			})
			state = r.State
		case Suspend, Done:
			return r, nil
		default:
			return nil, newError(ErrWorkflow, string(state), fmt.Errorf("unexpected step result %T", result))
		}
	}
	return nil, newError(ErrWorkflow, string(state), fmt.Errorf("no terminal or suspend state after %d steps", maxSteps))
}

func (e *Engine) step(ctx context.Context, sessionID string, state State, wc *Context) (StepResult, error) {
	switch state {
	case StateStart:
		return e.start(wc)
	case StateExtractJobDescription:
		return e.extractJobDescription(ctx, wc)
	case StateRetrieveCandidateFacts:
		return e.retrieveCandidateFacts(ctx, wc)
	case StateDraftResume:
		return e.draftResume(ctx, wc)
	case StateRenderDraft:
		return e.renderDraft(ctx, sessionID, wc)
	case StateAwaitReview:
		return Suspend{}, nil
	case StateFinish:
		return e.finish(wc)
	default:
		return nil, newError(ErrWorkflow, string(state), errors.New("unknown state"))
	}
}

func (e *Engine) start(wc *Context) (StepResult, error) {
	const op = "start"
	jobURL := strings.TrimSpace(wc.JobURL)
	jobDescription := strings.TrimSpace(wc.JobDescription)
	if (jobURL == "") == (jobDescription == "") {
		return nil, newError(ErrInputValidation, op, errors.New("exactly one of job url or job description is required"))
	}

	if wc.Language == "" {
		wc.Language = DefaultLanguage
	}
	if _, ok := LanguageName(wc.Language); !ok {
		return nil, newError(ErrInputValidation, op, fmt.Errorf("unsupported language %q", wc.Language))
	}

	if jobURL != "" {
		wc.JobURL = jobURL
		return Next{State: StateExtractJobDescription}, nil
	}
	wc.JobDescription = jobDescription
	return Next{State: StateRetrieveCandidateFacts}, nil
}

type extractPromptData struct {
	PageTitle string
	PageText  string
}

func (e *Engine) extractJobDescription(ctx context.Context, wc *Context) (StepResult, error) {
	const op = "extract job description"
	if e.Fetcher == nil {
		return nil, newError(ErrWorkflow, op, errors.New("no content fetcher configured"))
	}

	page, err := e.Fetcher.Fetch(ctx, wc.JobURL)
	if err != nil {
		return nil, newError(ErrFetch, op, err)
	}

	limit := e.JobTextLimit
	if limit <= 0 {
		limit = DefaultJobTextLimit
	}
	text, truncated := truncateRunes(page.Text, limit)
	if truncated {
		telemetry.Info("workflow.job_text_truncated", map[string]any{
			"url":   wc.JobURL,
			"limit": limit,
		})
	}

	prompt, err := e.Prompts.Render(prompts.ExtractJob, extractPromptData{PageTitle: page.Title, PageText: text})
	if err != nil {
		return nil, newError(ErrWorkflow, op, err)
	}
	description, err := e.LLM.Complete(ctx, prompt)
	if err != nil {
		return nil, newError(ErrGeneration, op, err)
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, newError(ErrGeneration, op, llm.ErrEmptyResponse)
	}
	wc.JobDescription = description
	return Next{State: StateRetrieveCandidateFacts}, nil
}

const (
	personalInfoQuery   = "Find as much personal information as possible: name, phone, email, address, LinkedIn, GitHub and portfolio."
	educationQuery      = "List the educational background such as degrees and relevant coursework. Do not include certifications."
	certificationsQuery = `List professional certifications with, for each one:
- certification name
- issuing organization
- date obtained and expiry date if any
- credential ID if available
- verification URL if available
Only include formal certifications, not courses or trainings.`
	skillsQueryFormat     = "List key skills related to the job description below:\n%s"
	experienceQueryFormat = `List relevant experience related to the job description below. For each experience include:
- job title
- company name
- start and end dates
- location (city, country or remote)
- responsibilities and achievements, quantified when possible
--------------
%s`
	projectsQueryFormat = `List personal projects that show skills related to the job description below. For each project include:
- project name
- short description
- technologies used
- key features or achievements
- URL if available
--------------
%s`
)

func (e *Engine) retrieveCandidateFacts(ctx context.Context, wc *Context) (StepResult, error) {
	const op = "retrieve candidate facts"
	if e.Knowledge == nil {
		return nil, newError(ErrWorkflow, op, errors.New("no knowledge store configured"))
	}

	facts := &CandidateFacts{}
	queries := []struct {
		query string
		dst   *string
	}{
		{personalInfoQuery, &facts.PersonalInfo},
		{fmt.Sprintf(skillsQueryFormat, wc.JobDescription), &facts.Skills},
		{fmt.Sprintf(experienceQueryFormat, wc.JobDescription), &facts.Experience},
		{educationQuery, &facts.Education},
		{certificationsQuery, &facts.Certifications},
		{fmt.Sprintf(projectsQueryFormat, wc.JobDescription), &facts.Projects},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, q := range queries {
		q := q
		g.Go(func() error {
			answer, err := e.Knowledge.Retrieve(gctx, q.query)
			if err != nil {
				return err
			}
			*q.dst = strings.TrimSpace(answer)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, newError(ErrWorkflow, op, err)
	}

	wc.CandidateFacts = facts
	return Next{State: StateDraftResume}, nil
}

type draftPromptData struct {
	Language       string
	JobDescription string
	Facts          CandidateFacts
	Schema         string
}

type revisePromptData struct {
	Base     string
	Feedback string
	Previous string
}

func (e *Engine) draftResume(ctx context.Context, wc *Context) (StepResult, error) {
	const op = "draft resume"
	if wc.CandidateFacts == nil {
		return nil, newError(ErrWorkflow, op, errors.New("candidate facts missing"))
	}

	languageName, _ := LanguageName(wc.Language)
	prompt, err := e.Prompts.Render(prompts.DraftResume, draftPromptData{
		Language:       languageName,
		JobDescription: wc.JobDescription,
		Facts:          *wc.CandidateFacts,
		Schema:         model.Schema(),
	})
	if err != nil {
		return nil, newError(ErrWorkflow, op, err)
	}

	if strings.TrimSpace(wc.Feedback) != "" {
		prompt, err = e.Prompts.Render(prompts.ReviseResume, revisePromptData{
			Base:     prompt,
			Feedback: wc.Feedback,
			Previous: previousVersion(wc),
		})
		if err != nil {
			return nil, newError(ErrWorkflow, op, err)
		}
	}

	var draft model.DraftResume
	if err := llm.Structured(ctx, e.LLM, prompt, model.Schema(), &draft); err != nil {
		return nil, newError(ErrGeneration, op, err)
	}
	contract.Clean(&draft)
	if err := contract.Enforce(&draft, false); err != nil {
		return nil, newError(ErrGeneration, op, err)
	}

	wc.Draft = &draft
	return Next{State: StateRenderDraft}, nil
}

func previousVersion(wc *Context) string {
	if wc.Draft != nil {
		if data, err := json.MarshalIndent(wc.Draft, "", "  "); err == nil {
			return string(data)
		}
	}
	return wc.RenderedContent
}

func (e *Engine) renderDraft(ctx context.Context, sessionID string, wc *Context) (StepResult, error) {
	const op = "render draft"
	if wc.Draft == nil {
		return nil, newError(ErrWorkflow, op, errors.New("draft missing"))
	}

	doc, err := e.Renderer.Render(*wc.Draft, wc.Language)
	if err != nil {
		return nil, newError(ErrRender, op, err)
	}
	if strings.TrimSpace(doc.Source) == "" {
		return nil, newError(ErrRender, op, errors.New("renderer produced empty content"))
	}

	var pdf []byte
	if e.Compiler != nil {
		if pdf, err = e.Compiler.Compile(ctx, doc.Source); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, newError(ErrTimeout, op, err)
			}
			return nil, newError(ErrRender, op, err)
		}
	}

	e.writeNotes(ctx, sessionID, doc, pdf)
	wc.RenderedContent = doc.Source
	return Next{State: StateAwaitReview}, nil
}

type note struct {
	name        string
	contentType string
	body        []byte
}

// writeNotes stores the considerations, source and compiled PDF next to the
// session. Failures are logged only.
func (e *Engine) writeNotes(ctx context.Context, sessionID string, doc render.Document, pdf []byte) {
	if e.Notes == nil || sessionID == "" {
		return
	}
	notes := []note{
		{"considerations.md", "text/markdown; charset=utf-8", []byte(doc.Considerations)},
		{"resume.tex", "application/x-tex", []byte(doc.Source)},
	}
	if len(pdf) > 0 {
		notes = append(notes, note{"resume.pdf", "application/pdf", pdf})
	}
	for _, n := range notes {
		key := NoteKey(sessionID, n.name)
		if _, err := e.Notes.SaveWithKey(ctx, key, n.contentType, bytes.NewReader(n.body)); err != nil {
			telemetry.Warn("workflow.note_write_failed", map[string]any{
				"session_id": sessionID,
				"key":        key,
				"error":      err.Error(),
			})
		}
	}
}

// NoteKey returns the object key of a side-channel file for a session.
func NoteKey(sessionID, name string) string {
	return "sessions/" + sessionID + "/" + name
}

func (e *Engine) finish(wc *Context) (StepResult, error) {
	if wc.Draft == nil || strings.TrimSpace(wc.RenderedContent) == "" {
		return nil, newError(ErrWorkflow, "finish", errors.New("draft or rendered content missing"))
	}
	return Done{}, nil
}

func truncateRunes(s string, limit int) (string, bool) {
	if limit <= 0 {
		return s, false
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i], true
		}
		count++
	}
	return s, false
}
