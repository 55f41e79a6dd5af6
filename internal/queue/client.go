package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"resume-workflow/internal/shared/telemetry"
)

// LocalURL selects the in-process queue instead of SQS.
const LocalURL = "local"

// ErrQueueFull is returned when the local queue cannot accept more work.
var ErrQueueFull = errors.New("index queue full")

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("index queue closed")

// Client sends messages to a queue backend.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// HandlerFunc processes one encoded message body.
type HandlerFunc func(ctx context.Context, body string) error

// ChannelClient is an in-process queue for single-node deployments. Messages
// are lost on restart; documents left pending can be re-indexed.
type ChannelClient struct {
	mu     sync.RWMutex
	ch     chan string
	closed bool
	now    func() time.Time
}

// NewChannelClient returns a local queue holding up to capacity messages.
func NewChannelClient(capacity int) *ChannelClient {
	if capacity < 1 {
		capacity = 64
	}
	return &ChannelClient{ch: make(chan string, capacity), now: time.Now}
}

// Send enqueues msg without blocking.
func (c *ChannelClient) Send(ctx context.Context, msg Message) error {
	payload, err := EncodeMessage(stamp(msg, c.now()))
	if err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.ch <- string(payload):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Consume runs workers goroutines feeding handler until ctx is done or the
// queue is closed and drained. It blocks until every worker has returned.
func (c *ChannelClient) Consume(ctx context.Context, workers int, handler HandlerFunc) {
	if workers < 1 {
		workers = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case body, ok := <-c.ch:
					if !ok {
						return
					}
					if err := handler(ctx, body); err != nil {
						telemetry.Error("queue.local.handler_failed", map[string]any{"error": err.Error()})
					}
				}
			}
		}()
	}
	wg.Wait()
}

// Close stops accepting messages. Queued messages are still delivered.
func (c *ChannelClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}

// stamp fills the envelope fields a producer may leave empty.
func stamp(msg Message, now time.Time) Message {
	if msg.Version == 0 {
		msg.Version = MessageVersion
	}
	if msg.EnqueuedAt == "" {
		msg.EnqueuedAt = now.UTC().Format(time.RFC3339)
	}
	return msg
}

var _ Client = (*ChannelClient)(nil)
