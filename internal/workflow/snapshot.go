package workflow

import (
	"encoding/json"
	"fmt"
	"time"

	"resume-workflow/resume/model"
)

const (
	// SnapshotVersion is bumped whenever the snapshot layout changes.
	SnapshotVersion = 1
	// WorkflowID identifies the owning workflow inside a snapshot.
	WorkflowID = "resume-generation"
)

// Snapshot is the stable on-store form of a suspended run.
type Snapshot struct {
	Version         int                `json:"version"`
	WorkflowID      string             `json:"workflowId"`
	SessionID       string             `json:"sessionId"`
	State           State              `json:"state"`
	Revision        int64              `json:"revision"`
	Language        string             `json:"language"`
	JobURL          string             `json:"jobUrl,omitempty"`
	JobDescription  string             `json:"jobDescription"`
	CandidateFacts  *CandidateFacts    `json:"candidateFacts,omitempty"`
	Feedback        string             `json:"feedback,omitempty"`
	Draft           *model.DraftResume `json:"draft,omitempty"`
	RenderedContent string             `json:"renderedContent"`
	CreatedAt       time.Time          `json:"createdAt"`
	SuspendedAt     time.Time          `json:"suspendedAt"`
}

// NewSnapshot captures wc at state for sessionID.
func NewSnapshot(sessionID string, state State, wc *Context, now time.Time) Snapshot {
	return Snapshot{
		Version:         SnapshotVersion,
		WorkflowID:      WorkflowID,
		SessionID:       sessionID,
		State:           state,
		Revision:        wc.Revision,
		Language:        wc.Language,
		JobURL:          wc.JobURL,
		JobDescription:  wc.JobDescription,
		CandidateFacts:  wc.CandidateFacts,
		Feedback:        wc.Feedback,
		Draft:           wc.Draft,
		RenderedContent: wc.RenderedContent,
		CreatedAt:       wc.CreatedAt,
		SuspendedAt:     now,
	}
}

// Context rebuilds the live run state from the snapshot.
func (s Snapshot) Context() *Context {
	return &Context{
		Language:        s.Language,
		JobURL:          s.JobURL,
		JobDescription:  s.JobDescription,
		CandidateFacts:  s.CandidateFacts,
		Feedback:        s.Feedback,
		Draft:           s.Draft,
		RenderedContent: s.RenderedContent,
		Revision:        s.Revision,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.SuspendedAt,
	}
}

// EncodeSnapshot serializes s.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, newError(ErrWorkflow, "encode snapshot", err)
	}
	return data, nil
}

// DecodeSnapshot parses data and rejects snapshots written by another
// workflow or an unknown layout version.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, newError(ErrWorkflow, "decode snapshot", err)
	}
	if s.WorkflowID != WorkflowID {
		return Snapshot{}, newError(ErrWorkflow, "decode snapshot", fmt.Errorf("workflow id %q", s.WorkflowID))
	}
	if s.Version != SnapshotVersion {
		return Snapshot{}, newError(ErrWorkflow, "decode snapshot", fmt.Errorf("unsupported version %d", s.Version))
	}
	return s, nil
}
