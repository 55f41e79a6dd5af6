package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

func TestChannelClientDeliversToConsumers(t *testing.T) {
	q := NewChannelClient(4)
	for _, id := range []string{"doc-1", "doc-2", "doc-3"} {
		if err := q.Send(context.Background(), Message{DocumentID: id}); err != nil {
			t.Fatalf("send %s: %v", id, err)
		}
	}
	q.Close()

	var mu sync.Mutex
	seen := map[string]Message{}
	q.Consume(context.Background(), 2, func(ctx context.Context, body string) error {
		msg, err := DecodeMessage([]byte(body))
		if err != nil {
			return err
		}
		mu.Lock()
		seen[msg.DocumentID] = msg
		mu.Unlock()
		return nil
	})

	if len(seen) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(seen))
	}
	if msg := seen["doc-2"]; msg.Version != MessageVersion || msg.EnqueuedAt == "" {
		t.Fatalf("expected stamped envelope, got %+v", msg)
	}
}

func TestChannelClientRejectsWhenFullOrClosed(t *testing.T) {
	q := NewChannelClient(1)
	if err := q.Send(context.Background(), Message{DocumentID: "a"}); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := q.Send(context.Background(), Message{DocumentID: "b"}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	q.Close()
	if err := q.Send(context.Background(), Message{DocumentID: "c"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestChannelClientConsumeStopsOnCancel(t *testing.T) {
	q := NewChannelClient(1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		q.Consume(ctx, 3, func(context.Context, string) error { return nil })
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("consume did not return after cancel")
	}
}

type recordingSQS struct {
	inputs []*sqs.SendMessageInput
}

func (r *recordingSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	r.inputs = append(r.inputs, params)
	return &sqs.SendMessageOutput{}, nil
}

func TestSQSClientStandardQueue(t *testing.T) {
	rec := &recordingSQS{}
	c := newSQSClient(rec, "https://sqs.us-east-1.amazonaws.com/123/index")
	c.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	if err := c.Send(context.Background(), Message{DocumentID: "doc-9", RequestID: "req"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	in := rec.inputs[0]
	if in.MessageGroupId != nil || in.MessageDeduplicationId != nil {
		t.Fatalf("standard queue must not set FIFO fields")
	}
	msg, err := DecodeMessage([]byte(aws.ToString(in.MessageBody)))
	if err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if msg.EnqueuedAt != "2026-01-02T03:04:05Z" || msg.Version != MessageVersion {
		t.Fatalf("unexpected envelope %+v", msg)
	}
	if aws.ToString(in.MessageAttributes["document_id"].StringValue) != "doc-9" {
		t.Fatalf("missing document_id attribute")
	}
}

func TestSQSClientFIFOQueue(t *testing.T) {
	rec := &recordingSQS{}
	c := newSQSClient(rec, "https://sqs.us-east-1.amazonaws.com/123/index.fifo")

	if err := c.Send(context.Background(), Message{DocumentID: "doc-7"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	in := rec.inputs[0]
	if aws.ToString(in.MessageGroupId) != "doc-7" || aws.ToString(in.MessageDeduplicationId) != "doc-7" {
		t.Fatalf("expected FIFO group and dedup ids, got %v %v", in.MessageGroupId, in.MessageDeduplicationId)
	}
}
