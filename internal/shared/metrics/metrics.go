package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	runsStartedTotal   atomic.Uint64
	runsSuspendedTotal atomic.Uint64
	runsCompletedTotal atomic.Uint64
	runsFailedTotal    atomic.Uint64

	indexJobsReceivedTotal  atomic.Uint64
	indexJobsCompletedTotal atomic.Uint64
	indexJobsFailedTotal    atomic.Uint64

	rateLimitedTotal atomic.Uint64

	stageMu        sync.Mutex
	stageDurations = map[string]*histogram{}
	stageBuckets   = []float64{10, 50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 120000}
)

// IncRunStarted increments the workflow started counter.
func IncRunStarted() {
	runsStartedTotal.Add(1)
}

// IncRunSuspended increments the counter of runs parked at the review gate.
func IncRunSuspended() {
	runsSuspendedTotal.Add(1)
}

// IncRunCompleted increments the approved-run counter.
func IncRunCompleted() {
	runsCompletedTotal.Add(1)
}

// IncRunFailed increments the failed-call counter.
func IncRunFailed() {
	runsFailedTotal.Add(1)
}

// IncIndexJobsReceived increments the queued indexing jobs counter.
func IncIndexJobsReceived() {
	indexJobsReceivedTotal.Add(1)
}

// IncIndexJobsCompleted increments the finished indexing jobs counter.
func IncIndexJobsCompleted() {
	indexJobsCompletedTotal.Add(1)
}

// IncIndexJobsFailed increments the failed indexing jobs counter.
func IncIndexJobsFailed() {
	indexJobsFailedTotal.Add(1)
}

// IncRateLimited counts requests rejected with 429.
func IncRateLimited() {
	rateLimitedTotal.Add(1)
}

// ObserveStageDurationMs records how long one workflow stage took.
func ObserveStageDurationMs(stage string, value float64) {
	if value < 0 {
		value = 0
	}
	stageMu.Lock()
	h, ok := stageDurations[stage]
	if !ok {
		h = newHistogram(stageBuckets)
		stageDurations[stage] = h
	}
	stageMu.Unlock()
	h.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "workflow_runs_started_total", "Total workflow runs started", runsStartedTotal.Load())
	writeCounter(&buf, "workflow_runs_suspended_total", "Total suspensions at the review gate", runsSuspendedTotal.Load())
	writeCounter(&buf, "workflow_runs_completed_total", "Total workflow runs approved", runsCompletedTotal.Load())
	writeCounter(&buf, "workflow_runs_failed_total", "Total failed workflow calls", runsFailedTotal.Load())
	writeCounter(&buf, "index_jobs_received_total", "Total indexing jobs received", indexJobsReceivedTotal.Load())
	writeCounter(&buf, "index_jobs_completed_total", "Total indexing jobs completed", indexJobsCompletedTotal.Load())
	writeCounter(&buf, "index_jobs_failed_total", "Total indexing jobs failed", indexJobsFailedTotal.Load())
	writeCounter(&buf, "http_rate_limited_total", "Total requests rejected by the rate limiter", rateLimitedTotal.Load())

	stageMu.Lock()
	stages := make([]string, 0, len(stageDurations))
	for stage := range stageDurations {
		stages = append(stages, stage)
	}
	stageMu.Unlock()
	sort.Strings(stages)
	if len(stages) > 0 {
		fmt.Fprintf(&buf, "# HELP workflow_stage_duration_ms Workflow stage duration in milliseconds\n")
		fmt.Fprintf(&buf, "# TYPE workflow_stage_duration_ms histogram\n")
	}
	for _, stage := range stages {
		stageMu.Lock()
		h := stageDurations[stage]
		stageMu.Unlock()
		writeHistogram(&buf, "workflow_stage_duration_ms", stage, h.Snapshot())
	}
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, stage string, snap histogramSnapshot) {
	for i, bound := range snap.buckets {
		fmt.Fprintf(buf, "%s_bucket{stage=\"%s\",le=\"%s\"} %d\n", name, stage, formatFloat(bound), snap.counts[i])
	}
	fmt.Fprintf(buf, "%s_bucket{stage=\"%s\",le=\"+Inf\"} %d\n", name, stage, snap.count)
	fmt.Fprintf(buf, "%s_sum{stage=\"%s\"} %s\n", name, stage, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count{stage=\"%s\"} %d\n", name, stage, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
