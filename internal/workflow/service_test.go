package workflow

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"resume-workflow/internal/sessions"
)

func TestServiceEndToEnd(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.service.Start(ctx, StartInput{JobDescription: "Senior backend engineer, Python, 5 years"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if first.Status != StatusReviewNeeded || first.SessionID == "" || first.RenderedContent == "" {
		t.Fatalf("unexpected start result: %+v", first)
	}
	if h.fetcher.calls != 0 {
		t.Fatalf("description-only start must not fetch")
	}
	if _, err := h.store.Get(ctx, first.SessionID); err != nil {
		t.Fatalf("session should be stored: %v", err)
	}

	previous := first
	for i := 1; i <= 3; i++ {
		next, err := h.service.Continue(ctx, ContinueInput{
			SessionID: first.SessionID,
			Feedback:  "emphasize distributed systems experience",
		})
		if err != nil {
			t.Fatalf("reject %d: %v", i, err)
		}
		if next.Status != StatusReviewNeeded || next.SessionID != first.SessionID {
			t.Fatalf("rejection %d should stay on the same session: %+v", i, next)
		}
		if next.RenderedContent == previous.RenderedContent {
			t.Fatalf("rejection %d should produce new content", i)
		}
		if next.Revision != int64(i) {
			t.Fatalf("rejection %d: expected revision %d, got %d", i, i, next.Revision)
		}
		previous = next
	}
	second := previous

	done, err := h.service.Continue(ctx, ContinueInput{SessionID: first.SessionID, Approve: true})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if done.Status != StatusCompleted || done.RenderedContent != second.RenderedContent {
		t.Fatalf("approval should return the reviewed content: %+v", done)
	}
	if _, err := h.store.Get(ctx, first.SessionID); !errors.Is(err, sessions.ErrNotFound) {
		t.Fatalf("session should be deleted after approval, got %v", err)
	}

	_, err = h.service.Continue(ctx, ContinueInput{SessionID: first.SessionID, Approve: true})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("second approval should report missing session, got %v", err)
	}
}

func TestServiceURLStart(t *testing.T) {
	h := newHarness(t)

	res, err := h.service.Start(context.Background(), StartInput{JobURL: "https://jobs.example.com/42", Language: "pt"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if h.fetcher.calls != 1 {
		t.Fatalf("expected one fetch, got %d", h.fetcher.calls)
	}
	if !strings.Contains(res.RenderedContent, "Experiência") {
		t.Fatalf("expected Portuguese section titles")
	}
}

func TestServiceStartRejectsContradictoryInput(t *testing.T) {
	h := newHarness(t)

	_, err := h.service.Start(context.Background(), StartInput{JobURL: "https://x.test", JobDescription: "desc"})
	if !errors.Is(err, ErrInputValidation) {
		t.Fatalf("expected input validation, got %v", err)
	}
	if h.store.Len() != 0 {
		t.Fatalf("nothing should be persisted")
	}
	if h.fetcher.calls != 0 || h.retriever.count() != 0 || h.llm.draftCalls() != 0 {
		t.Fatalf("collaborators must not be called")
	}
}

func TestServiceUnknownSession(t *testing.T) {
	h := newHarness(t)

	_, err := h.service.Continue(context.Background(), ContinueInput{SessionID: "missing", Approve: true})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
	if h.store.Len() != 0 || h.llm.draftCalls() != 0 {
		t.Fatalf("unknown session must not mutate anything")
	}
}

func TestServiceContinueRequiresID(t *testing.T) {
	h := newHarness(t)
	_, err := h.service.Continue(context.Background(), ContinueInput{SessionID: "  "})
	if !errors.Is(err, ErrInputValidation) {
		t.Fatalf("expected input validation, got %v", err)
	}
}

func TestServiceFailedContinuationKeepsSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.service.Start(ctx, StartInput{JobDescription: "desc"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	before, err := h.store.Get(ctx, res.SessionID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	h.llm.draftErr = errors.New("model overloaded")
	_, err = h.service.Continue(ctx, ContinueInput{SessionID: res.SessionID, Feedback: "shorter"})
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("expected generation error, got %v", err)
	}

	after, err := h.store.Get(ctx, res.SessionID)
	if err != nil {
		t.Fatalf("session should survive a failed continuation: %v", err)
	}
	if !bytes.Equal(before.Payload, after.Payload) || before.Revision != after.Revision {
		t.Fatalf("stored session changed after failure")
	}

	h.llm.draftErr = nil
	if _, err := h.service.Continue(ctx, ContinueInput{SessionID: res.SessionID, Approve: true}); err != nil {
		t.Fatalf("approval after failure: %v", err)
	}
}

func TestServiceRevisionLimit(t *testing.T) {
	h := newHarness(t)
	h.service.MaxRevisions = 1
	ctx := context.Background()

	res, err := h.service.Start(ctx, StartInput{JobDescription: "desc"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := h.service.Continue(ctx, ContinueInput{SessionID: res.SessionID, Feedback: "one"}); err != nil {
		t.Fatalf("first rejection: %v", err)
	}
	_, err = h.service.Continue(ctx, ContinueInput{SessionID: res.SessionID, Feedback: "two"})
	if !errors.Is(err, ErrInputValidation) || !errors.Is(err, ErrRevisionLimit) {
		t.Fatalf("expected revision limit, got %v", err)
	}
	if _, err := h.service.Continue(ctx, ContinueInput{SessionID: res.SessionID, Approve: true}); err != nil {
		t.Fatalf("approval must still be possible: %v", err)
	}
}

func TestServiceBusySession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.service.Start(ctx, StartInput{JobDescription: "desc"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	unlock, err := h.store.Lock(ctx, res.SessionID, time.Minute)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer unlock(ctx)

	_, err = h.service.Continue(ctx, ContinueInput{SessionID: res.SessionID, Approve: true})
	if !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("expected session busy, got %v", err)
	}
	if _, err := h.store.Get(ctx, res.SessionID); err != nil {
		t.Fatalf("busy continuation must not remove the session: %v", err)
	}
}

func newRedisSessions(t *testing.T) sessions.Store {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return sessions.NewRedisStore(client, time.Hour)
}

func TestServiceConcurrentApprovalsFinishOnce(t *testing.T) {
	stores := map[string]func(t *testing.T) sessions.Store{
		"memory": func(*testing.T) sessions.Store { return sessions.NewMemoryStore(time.Hour) },
		"redis":  newRedisSessions,
	}
	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			store := newStore(t)
			h.service.Sessions = store
			ctx := context.Background()

			res, err := h.service.Start(ctx, StartInput{JobDescription: "desc"})
			if err != nil {
				t.Fatalf("start: %v", err)
			}

			const callers = 4
			var wg sync.WaitGroup
			release := make(chan struct{})
			errs := make([]error, callers)
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					<-release
					_, errs[i] = h.service.Continue(ctx, ContinueInput{SessionID: res.SessionID, Approve: true})
				}(i)
			}
			close(release)
			wg.Wait()

			succeeded := 0
			for _, err := range errs {
				switch {
				case err == nil:
					succeeded++
				case errors.Is(err, ErrSessionBusy), errors.Is(err, ErrSessionNotFound):
				default:
					t.Fatalf("unexpected continuation error: %v", err)
				}
			}
			if succeeded != 1 {
				t.Fatalf("exactly one approval should finish the run, got %d", succeeded)
			}
			if _, err := store.Get(ctx, res.SessionID); !errors.Is(err, sessions.ErrNotFound) {
				t.Fatalf("session should be gone after approval, got %v", err)
			}
		})
	}
}

func TestServiceTimeout(t *testing.T) {
	h := newHarness(t)
	h.service.RunTimeout = 20 * time.Millisecond
	h.retriever.block = true

	_, err := h.service.Start(context.Background(), StartInput{JobDescription: "desc"})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if h.store.Len() != 0 {
		t.Fatalf("timed out run must not persist a session")
	}
}

func TestServiceUsesInjectedID(t *testing.T) {
	h := newHarness(t)
	h.service.NewID = func() string { return "fixed-id" }

	res, err := h.service.Start(context.Background(), StartInput{JobDescription: "desc"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if res.SessionID != "fixed-id" {
		t.Fatalf("expected injected id, got %q", res.SessionID)
	}
	if _, ok := h.notes.files[NoteKey("fixed-id", "resume.tex")]; !ok {
		t.Fatalf("notes should be written under the session id")
	}
}
