package workflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"resume-workflow/internal/sessions"
	"resume-workflow/internal/shared/metrics"
	"resume-workflow/internal/shared/telemetry"
	"resume-workflow/resume/model"
)

const (
	// DefaultRunTimeout bounds a single Start or Continue call.
	DefaultRunTimeout = 600 * time.Second
	defaultLockTTL    = 15 * time.Minute
)

// Service exposes the two workflow entry points.
type Service struct {
	Engine       *Engine
	Sessions     sessions.Store
	RunTimeout   time.Duration
	MaxRevisions int
	LockTTL      time.Duration
	NewID        func() string
	Now          func() time.Time
}

// StartInput starts a run from either a job URL or a job description.
type StartInput struct {
	JobURL         string
	JobDescription string
	Language       string
}

// ContinueInput carries the reviewer decision for a suspended run.
type ContinueInput struct {
	SessionID string
	Approve   bool
	Feedback  string
}

// Result is returned by Start and Continue.
type Result struct {
	Status          string
	SessionID       string
	RenderedContent string
	Considerations  string
	Revision        int64
	Draft           *model.DraftResume
}

// Start runs a new generation until the review gate.
func (s *Service) Start(ctx context.Context, in StartInput) (Result, error) {
	const op = "start"
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := s.now()
	wc := &Context{
		Language:       strings.TrimSpace(in.Language),
		JobURL:         in.JobURL,
		JobDescription: in.JobDescription,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	sessionID := s.newID()
	metrics.IncRunStarted()
	telemetry.Info("workflow.started", map[string]any{
		"session_id": sessionID,
		"request_id": telemetry.RequestIDFrom(ctx),
		"language":   wc.Language,
		"from_url":   strings.TrimSpace(in.JobURL) != "",
	})

	step, err := s.Engine.Run(ctx, sessionID, StateStart, wc)
	if err != nil {
		return Result{}, s.fail(ctx, op, sessionID, err)
	}
	if _, ok := step.(Suspend); !ok {
		return Result{}, s.fail(ctx, op, sessionID, newError(ErrWorkflow, op, errors.New("run ended without reaching review")))
	}

	if err := s.persist(ctx, sessionID, wc); err != nil {
		return Result{}, s.fail(ctx, op, sessionID, err)
	}
	return s.suspended(sessionID, wc), nil
}

// Continue applies a review decision to a suspended run. Approval finishes
// the run and deletes the session; rejection redrafts under the same id.
// On failure the stored session is left as it was.
func (s *Service) Continue(ctx context.Context, in ContinueInput) (Result, error) {
	const op = "continue"
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return Result{}, newError(ErrInputValidation, op, errors.New("session id is required"))
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.load(ctx, sessionID); err != nil {
		return Result{}, err
	}

	unlock, err := s.Sessions.Lock(ctx, sessionID, s.lockTTL())
	if errors.Is(err, sessions.ErrLocked) {
		return Result{}, newError(ErrSessionBusy, op, err)
	}
	if err != nil {
		return Result{}, newError(ErrWorkflow, op, err)
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := unlock(releaseCtx); err != nil {
			telemetry.Warn("workflow.unlock_failed", map[string]any{"session_id": sessionID, "error": err.Error()})
		}
	}()

	// Reload under the lock; a concurrent approval may have removed it.
	snap, err := s.load(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	if snap.State != StateAwaitReview {
		return Result{}, newError(ErrWorkflow, op, errors.New("session is not awaiting review"))
	}
	wc := snap.Context()

	from := StateFinish
	if !in.Approve {
		if s.MaxRevisions > 0 && wc.Revision >= int64(s.MaxRevisions) {
			return Result{}, newError(ErrInputValidation, op, ErrRevisionLimit)
		}
		wc.Feedback = in.Feedback
		wc.Revision++
		from = StateDraftResume
	}
	telemetry.Info("workflow.resumed", map[string]any{
		"session_id": sessionID,
		"request_id": telemetry.RequestIDFrom(ctx),
		"approve":    in.Approve,
		"revision":   wc.Revision,
	})

	step, err := s.Engine.Run(ctx, sessionID, from, wc)
	if err != nil {
		return Result{}, s.fail(ctx, op, sessionID, err)
	}

	switch step.(type) {
	case Done:
		if err := s.Sessions.Delete(ctx, sessionID); err != nil {
			return Result{}, s.fail(ctx, op, sessionID, newError(ErrWorkflow, op, err))
		}
		metrics.IncRunCompleted()
		telemetry.Info("workflow.completed", map[string]any{
			"session_id": sessionID,
			"revision":   wc.Revision,
		})
		return Result{
			Status:          StatusCompleted,
			SessionID:       sessionID,
			RenderedContent: wc.RenderedContent,
			Considerations:  considerations(wc),
			Revision:        wc.Revision,
			Draft:           wc.Draft,
		}, nil
	case Suspend:
		if err := s.persist(ctx, sessionID, wc); err != nil {
			return Result{}, s.fail(ctx, op, sessionID, err)
		}
		return s.suspended(sessionID, wc), nil
	default:
		return Result{}, s.fail(ctx, op, sessionID, newError(ErrWorkflow, op, errors.New("run reached neither review nor finish")))
	}
}

func (s *Service) load(ctx context.Context, sessionID string) (Snapshot, error) {
	rec, err := s.Sessions.Get(ctx, sessionID)
	if errors.Is(err, sessions.ErrNotFound) {
		return Snapshot{}, newError(ErrSessionNotFound, "load session", err)
	}
	if err != nil {
		return Snapshot{}, newError(ErrWorkflow, "load session", err)
	}
	snap, err := DecodeSnapshot(rec.Payload)
	if err != nil {
		return Snapshot{}, err
	}
	if snap.SessionID != sessionID {
		return Snapshot{}, newError(ErrWorkflow, "load session", errors.New("snapshot belongs to another session"))
	}
	return snap, nil
}

func (s *Service) persist(ctx context.Context, sessionID string, wc *Context) error {
	const op = "persist session"
	data, err := EncodeSnapshot(NewSnapshot(sessionID, StateAwaitReview, wc, s.now()))
	if err != nil {
		return err
	}
	err = s.Sessions.Set(ctx, sessionID, sessions.Record{Payload: data, Revision: wc.Revision})
	if errors.Is(err, sessions.ErrConflict) {
		return newError(ErrSessionBusy, op, err)
	}
	if err != nil {
		return newError(ErrWorkflow, op, err)
	}
	return nil
}

func (s *Service) suspended(sessionID string, wc *Context) Result {
	metrics.IncRunSuspended()
	telemetry.Info("workflow.suspended", map[string]any{
		"session_id": sessionID,
		"revision":   wc.Revision,
	})
	return Result{
		Status:          StatusReviewNeeded,
		SessionID:       sessionID,
		RenderedContent: wc.RenderedContent,
		Considerations:  considerations(wc),
		Revision:        wc.Revision,
		Draft:           wc.Draft,
	}
}

func (s *Service) fail(ctx context.Context, op, sessionID string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		err = newError(ErrTimeout, op, err)
	}
	metrics.IncRunFailed()
	fields := map[string]any{
		"session_id": sessionID,
		"request_id": telemetry.RequestIDFrom(ctx),
		"op":         op,
		"kind":       KindOf(err).Error(),
		"error":      err.Error(),
	}
	switch KindOf(err) {
	case ErrInputValidation, ErrSessionNotFound, ErrSessionBusy:
		telemetry.Warn("workflow.failed", fields)
	default:
		telemetry.Error("workflow.failed", fields)
	}
	return err
}

func considerations(wc *Context) string {
	if wc.Draft == nil {
		return ""
	}
	return wc.Draft.Considerations
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.RunTimeout
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

func (s *Service) lockTTL() time.Duration {
	if s.LockTTL > 0 {
		return s.LockTTL
	}
	timeout := s.RunTimeout
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	if timeout+time.Minute > defaultLockTTL {
		return timeout + time.Minute
	}
	return defaultLockTTL
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}
