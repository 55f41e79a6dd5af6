package workflow

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"resume-workflow/internal/sessions"
)

func TestErrorMatchesKindAndCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := newError(ErrFetch, "extract job description", cause)

	if !errors.Is(err, ErrFetch) || !errors.Is(err, cause) {
		t.Fatalf("error should match both kind and cause")
	}
	if errors.Is(err, ErrGeneration) {
		t.Fatalf("error should not match other kinds")
	}
	want := "extract job description: fetch error: dial tcp: refused"
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
}

func TestErrorMessageSkipsCauseWithKindText(t *testing.T) {
	err := newError(ErrSessionNotFound, "load session", sessions.ErrNotFound)

	if got, want := err.Error(), "load session: session not found"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if !errors.Is(err, sessions.ErrNotFound) {
		t.Fatalf("cause should still match after trimming the message")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "classified", err: newError(ErrRender, "render", nil), want: ErrRender},
		{name: "wrapped", err: fmt.Errorf("handler: %w", newError(ErrSessionBusy, "continue", nil)), want: ErrSessionBusy},
		{name: "bare sentinel", err: fmt.Errorf("x: %w", ErrSessionNotFound), want: ErrSessionNotFound},
		{name: "deadline", err: context.DeadlineExceeded, want: ErrTimeout},
		{name: "unknown", err: errors.New("boom"), want: ErrWorkflow},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Fatalf("KindOf = %v, want %v", got, tt.want)
			}
		})
	}
}
