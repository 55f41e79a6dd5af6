package main

// SQS-triggered Lambda for knowledge indexing jobs. Enable
// ReportBatchItemFailures on the event source mapping:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"resume-workflow/internal/bootstrap"
	"resume-workflow/internal/shared/config"
	"resume-workflow/internal/shared/metrics"
	"resume-workflow/internal/shared/telemetry"
	"resume-workflow/internal/workerproc"
)

type consumer struct {
	once    sync.Once
	build   func() (workerproc.Indexer, error)
	indexer workerproc.Indexer
	err     error
}

// handle fails the whole invocation when the indexer cannot be built, so SQS
// redelivers the batch instead of treating every record as processed.
func (c *consumer) handle(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	c.once.Do(func() {
		c.indexer, c.err = c.build()
		if c.err != nil {
			telemetry.Error("lambda_worker.bootstrap_failed", map[string]any{"error": c.err.Error()})
		}
	})
	if c.err != nil {
		return events.SQSEventResponse{}, fmt.Errorf("bootstrap: %w", c.err)
	}
	return processRecords(ctx, c.indexer, event.Records), nil
}

// processRecords returns the records SQS should retry. Malformed jobs and
// vanished documents are dropped.
func processRecords(ctx context.Context, indexer workerproc.Indexer, records []events.SQSMessage) events.SQSEventResponse {
	var resp events.SQSEventResponse
	for _, record := range records {
		metrics.IncIndexJobsReceived()
		job, digest, err := workerproc.Parse(record.Body)
		if err == nil {
			err = workerproc.Index(ctx, indexer, job)
		}
		if err == nil {
			metrics.IncIndexJobsCompleted()
			continue
		}

		metrics.IncIndexJobsFailed()
		dropped := workerproc.Unrecoverable(err)
		telemetry.Error("lambda_worker.index_failed", digest.Fields(map[string]any{
			"sqs_message_id": record.MessageId,
			"document_id":    job.DocumentID,
			"receive_count":  record.Attributes["ApproximateReceiveCount"],
			"dropped":        dropped,
			"error":          err.Error(),
		}))
		if !dropped {
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return resp
}

func main() {
	cfg := config.Load()
	if _, err := telemetry.Setup(cfg.LogLevel, ""); err != nil {
		telemetry.Warn("lambda_worker.log_setup_failed", map[string]any{"error": err.Error()})
	}
	c := &consumer{build: func() (workerproc.Indexer, error) {
		app, err := bootstrap.BuildWithOptions(context.Background(), cfg, bootstrap.Options{SkipRouter: true, SkipQueue: true})
		if err != nil {
			return nil, err
		}
		return app.Knowledge, nil
	}}
	lambda.Start(c.handle)
}
