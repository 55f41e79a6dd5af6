package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"resume-workflow/internal/fetch"
	"resume-workflow/internal/llm/prompts"
	"resume-workflow/internal/sessions"
	"resume-workflow/resume/model"
	"resume-workflow/resume/render"
)

type fakeFetcher struct {
	mu    sync.Mutex
	page  fetch.Page
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) (fetch.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return fetch.Page{}, f.err
	}
	page := f.page
	page.URL = rawURL
	return page, nil
}

type fakeRetriever struct {
	mu      sync.Mutex
	queries []string
	err     error
	block   bool
}

func (r *fakeRetriever) Retrieve(ctx context.Context, query string) (string, error) {
	r.mu.Lock()
	r.queries = append(r.queries, query)
	block := r.block
	r.mu.Unlock()
	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return "", r.err
	}
	switch {
	case strings.HasPrefix(query, "Find as much personal"):
		return "Jane Doe, jane@example.com, +1 555 0100, Lisbon", nil
	case strings.HasPrefix(query, "List key skills"):
		return "Go, Python, Kafka", nil
	default:
		return "", nil
	}
}

func (r *fakeRetriever) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queries)
}

// fakeLLM answers extraction with fixed text and drafts with a numbered
// résumé so every pass renders differently.
type fakeLLM struct {
	mu          sync.Mutex
	completions []string
	drafts      []string
	draftErr    error
	nullDraft   bool
	jobText     string
}

func (l *fakeLLM) Complete(_ context.Context, prompt string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.completions = append(l.completions, prompt)
	if l.jobText != "" {
		return l.jobText, nil
	}
	return "Senior backend engineer, Python, 5 years", nil
}

func (l *fakeLLM) CompleteJSON(_ context.Context, prompt string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.drafts = append(l.drafts, prompt)
	if l.draftErr != nil {
		return "", l.draftErr
	}
	if l.nullDraft {
		return "null", nil
	}
	return fmt.Sprintf(`{
  "name": "Jane Doe",
  "email": "jane@example.com",
  "phone": "+1 555 0100",
  "address": "Lisbon",
  "experience": [{"company": "Acme", "job_title": "Engineer", "start_date": "2019", "bullet_points": ["Pass %d"], "location": "Remote"}],
  "skills": {"technical_skills": ["Go", "Python"], "soft_skills": [], "languages": ["English"]},
  "education": [{"institution": "Uni", "degree": "BSc", "graduation_year": "2018", "location": "Porto"}],
  "considerations": "draft %d"
}`, len(l.drafts), len(l.drafts)), nil
}

func (l *fakeLLM) draftCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.drafts)
}

type failingRenderer struct{}

func (failingRenderer) Render(model.DraftResume, string) (render.Document, error) {
	return render.Document{}, errors.New("typesetting exploded")
}

type fakeCompiler struct {
	mu      sync.Mutex
	sources []string
	err     error
}

func (c *fakeCompiler) Compile(_ context.Context, source string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources = append(c.sources, source)
	if c.err != nil {
		return nil, c.err
	}
	return []byte(fmt.Sprintf("%%PDF-1.5 pass %d", len(c.sources))), nil
}

type memoryNotes struct {
	mu    sync.Mutex
	files map[string]string
}

func (n *memoryNotes) SaveWithKey(_ context.Context, key, _ string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.files == nil {
		n.files = make(map[string]string)
	}
	n.files[key] = string(data)
	return int64(len(data)), nil
}

type harness struct {
	fetcher   *fakeFetcher
	retriever *fakeRetriever
	llm       *fakeLLM
	notes     *memoryNotes
	store     *sessions.MemoryStore
	engine    *Engine
	service   *Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	catalog, err := prompts.Default()
	if err != nil {
		t.Fatalf("prompts: %v", err)
	}
	renderer, err := render.NewLatexRenderer()
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}
	h := &harness{
		fetcher:   &fakeFetcher{page: fetch.Page{Title: "Backend Engineer", Text: "We need Go."}},
		retriever: &fakeRetriever{},
		llm:       &fakeLLM{},
		notes:     &memoryNotes{},
		store:     sessions.NewMemoryStore(0),
	}
	h.engine = &Engine{
		Fetcher:      h.fetcher,
		Knowledge:    h.retriever,
		LLM:          h.llm,
		Prompts:      catalog,
		Renderer:     renderer,
		Notes:        h.notes,
		JobTextLimit: DefaultJobTextLimit,
	}
	h.service = &Service{
		Engine:   h.engine,
		Sessions: h.store,
	}
	return h
}
