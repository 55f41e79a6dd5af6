package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MessageVersion is the newest payload layout this build understands.
// Version 0 is read as 1; payloads from a newer producer are rejected.
const MessageVersion = 1

// ErrInvalidMessage marks payloads that can never be processed.
var ErrInvalidMessage = errors.New("invalid index message")

// Message asks a worker to index a registered knowledge document.
type Message struct {
	DocumentID string `json:"documentId"`
	FileName   string `json:"fileName,omitempty"`
	RequestID  string `json:"requestId"`
	EnqueuedAt string `json:"enqueuedAt"`
	Version    int    `json:"version"`
}

// Validate checks the fields a worker needs.
func (m Message) Validate() error {
	if strings.TrimSpace(m.DocumentID) == "" {
		return fmt.Errorf("%w: missing documentId", ErrInvalidMessage)
	}
	if m.Version > MessageVersion {
		return fmt.Errorf("%w: version %d is newer than %d", ErrInvalidMessage, m.Version, MessageVersion)
	}
	return nil
}

// EncodeMessage validates msg and returns its JSON body.
func EncodeMessage(msg Message) ([]byte, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}

// DecodeMessage parses and validates a queue body.
func DecodeMessage(payload []byte) (Message, error) {
	if len(strings.TrimSpace(string(payload))) == 0 {
		return Message{}, fmt.Errorf("%w: empty body", ErrInvalidMessage)
	}
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if msg.Version == 0 {
		msg.Version = 1
	}
	if err := msg.Validate(); err != nil {
		return msg, err
	}
	return msg, nil
}
