package main

// Long-running SQS consumer for knowledge indexing jobs:
//   INDEX_QUEUE_URL=https://sqs.../cv-index go run ./cmd/worker

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"golang.org/x/sync/errgroup"

	"resume-workflow/internal/bootstrap"
	"resume-workflow/internal/queue"
	"resume-workflow/internal/shared/config"
	"resume-workflow/internal/shared/metrics"
	"resume-workflow/internal/shared/telemetry"
	"resume-workflow/internal/workerproc"
)

const receiveCountAttr = "ApproximateReceiveCount"

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type worker struct {
	client     sqsAPI
	queueURL   string
	indexer    workerproc.Indexer
	visibility time.Duration
}

func main() {
	cfg := config.Load()
	closeLog, err := telemetry.Setup(cfg.LogLevel, cfg.LogFile)
	if err == nil {
		defer closeLog()
	}
	if cfg.IndexQueueURL == "" || cfg.IndexQueueURL == queue.LocalURL {
		log.Fatal("INDEX_QUEUE_URL must name an SQS queue")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	app, err := bootstrap.BuildWithOptions(ctx, cfg, bootstrap.Options{SkipRouter: true, SkipQueue: true})
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	w := &worker{
		client:     sqs.NewFromConfig(awsCfg),
		queueURL:   cfg.IndexQueueURL,
		indexer:    app.Knowledge,
		visibility: cfg.IndexVisibility,
	}
	w.run(ctx, max(1, cfg.WorkerConcurrency), cfg.ShutdownTimeout)
}

// run long-polls until ctx ends, then waits up to grace for in-flight jobs.
// Jobs get their own context so a shutdown signal does not abort them.
func (w *worker) run(ctx context.Context, concurrency int, grace time.Duration) {
	jobs := errgroup.Group{}
	jobs.SetLimit(concurrency)
	jobCtx := context.WithoutCancel(ctx)

	telemetry.Info("worker.started", map[string]any{
		"queue":       w.queueURL,
		"concurrency": concurrency,
		"visibility":  w.visibility.String(),
	})

	for ctx.Err() == nil {
		resp, err := w.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:                    aws.String(w.queueURL),
			MaxNumberOfMessages:         10,
			WaitTimeSeconds:             20,
			VisibilityTimeout:           int32(w.visibility / time.Second),
			MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{receiveCountAttr},
		})
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				break
			}
			telemetry.Warn("worker.receive_failed", map[string]any{"error": err.Error()})
			time.Sleep(time.Second)
			continue
		}
		for _, msg := range resp.Messages {
			metrics.IncIndexJobsReceived()
			jobs.Go(func() error {
				w.handle(jobCtx, msg)
				return nil
			})
		}
	}

	telemetry.Info("worker.draining", map[string]any{"grace": grace.String()})
	done := make(chan struct{})
	go func() {
		_ = jobs.Wait()
		close(done)
	}()
	select {
	case <-done:
		telemetry.Info("worker.stopped", nil)
	case <-time.After(grace):
		telemetry.Warn("worker.shutdown_timeout", map[string]any{"grace": grace.String()})
	}
}

// handle indexes one message. Successful and unrecoverable jobs are deleted;
// retryable failures stay on the queue until the visibility timeout lapses.
func (w *worker) handle(ctx context.Context, msg sqstypes.Message) {
	job, digest, err := workerproc.Parse(aws.ToString(msg.Body))
	fields := logFields(msg, job)
	if err == nil {
		telemetry.Info("worker.index.received", fields)
		err = workerproc.Index(ctx, w.indexer, job)
	} else {
		digest.Fields(fields)
	}

	if err == nil {
		if w.delete(ctx, msg, fields) {
			metrics.IncIndexJobsCompleted()
			telemetry.Info("worker.index.completed", fields)
		}
		return
	}

	metrics.IncIndexJobsFailed()
	fields["error"] = err.Error()
	fields["dropped"] = workerproc.Unrecoverable(err)
	telemetry.Error("worker.index.failed", fields)
	if workerproc.Unrecoverable(err) {
		w.delete(ctx, msg, fields)
	}
}

func (w *worker) delete(ctx context.Context, msg sqstypes.Message, fields map[string]any) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		telemetry.Error("worker.index.delete_failed", mergeFields(fields, "error", "missing receipt handle"))
		return false
	}
	_, err := w.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(w.queueURL),
		ReceiptHandle: aws.String(receipt),
	})
	if err != nil {
		telemetry.Error("worker.index.delete_failed", mergeFields(fields, "error", err.Error()))
		return false
	}
	return true
}

func logFields(msg sqstypes.Message, job queue.Message) map[string]any {
	fields := map[string]any{
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
	if job.DocumentID != "" {
		fields["document_id"] = job.DocumentID
	}
	if job.RequestID != "" {
		fields["request_id"] = job.RequestID
	}
	return fields
}

func mergeFields(fields map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out[key] = value
	return out
}

func receiveCount(msg sqstypes.Message) int {
	n, _ := strconv.Atoi(msg.Attributes[receiveCountAttr])
	return n
}
