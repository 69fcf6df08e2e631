package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	chatsProcessedTotal  atomic.Uint64
	chatsFailedTotal     atomic.Uint64
	chatsSkippedTotal    atomic.Uint64
	llmCallsTotal        atomic.Uint64
	llmRetriesTotal      atomic.Uint64
	cacheHitsTotal       atomic.Uint64
	cacheMissesTotal     atomic.Uint64
	cacheErrorsTotal     atomic.Uint64
	batchRunsTotal       atomic.Uint64
	resultsWrittenTotal  atomic.Uint64
	rateBudgetWaitsTotal atomic.Uint64
	httpRequestsTotal    atomic.Uint64
	httpErrorsTotal      atomic.Uint64

	llmLatency = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
)

// IncChatProcessed increments the processed-chat counter.
func IncChatProcessed() { chatsProcessedTotal.Add(1) }

// IncChatFailed increments the failed-chat counter.
func IncChatFailed() { chatsFailedTotal.Add(1) }

// IncChatSkipped increments the checkpoint-skip counter.
func IncChatSkipped() { chatsSkippedTotal.Add(1) }

// IncLLMCall increments the outbound LLM call counter.
func IncLLMCall() { llmCallsTotal.Add(1) }

// IncLLMRetry increments the LLM retry counter.
func IncLLMRetry() { llmRetriesTotal.Add(1) }

// IncCacheHit increments the cache hit counter.
func IncCacheHit() { cacheHitsTotal.Add(1) }

// IncCacheMiss increments the cache miss counter.
func IncCacheMiss() { cacheMissesTotal.Add(1) }

// IncCacheError increments the cache backend error counter.
func IncCacheError() { cacheErrorsTotal.Add(1) }

// IncBatchRun increments the batch-run counter.
func IncBatchRun() { batchRunsTotal.Add(1) }

// AddResultsWritten adds n to the persisted-row counter.
func AddResultsWritten(n int) {
	if n > 0 {
		resultsWrittenTotal.Add(uint64(n))
	}
}

// IncRateBudgetWait counts acquisitions that had to wait for a slot.
func IncRateBudgetWait() { rateBudgetWaitsTotal.Add(1) }

// IncHTTPRequest counts one served request; 5xx statuses also count as
// errors.
func IncHTTPRequest(status int) {
	httpRequestsTotal.Add(1)
	if status >= 500 {
		httpErrorsTotal.Add(1)
	}
}

// ObserveLLMLatencyMs records one LLM call latency in milliseconds.
func ObserveLLMLatencyMs(value float64) {
	if value < 0 {
		value = 0
	}
	llmLatency.Observe(value)
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
	writeCounter(&buf, "chats_processed_total", "Total chats analyzed successfully", chatsProcessedTotal.Load())
	writeCounter(&buf, "chats_failed_total", "Total chats that failed analysis", chatsFailedTotal.Load())
	writeCounter(&buf, "chats_skipped_total", "Total chats skipped via checkpoint", chatsSkippedTotal.Load())
	writeCounter(&buf, "llm_calls_total", "Total outbound LLM calls", llmCallsTotal.Load())
	writeCounter(&buf, "llm_retries_total", "Total LLM call retries", llmRetriesTotal.Load())
	writeCounter(&buf, "llm_cache_hits_total", "Total LLM cache hits", cacheHitsTotal.Load())
	writeCounter(&buf, "llm_cache_misses_total", "Total LLM cache misses", cacheMissesTotal.Load())
	writeCounter(&buf, "llm_cache_errors_total", "Total LLM cache backend errors", cacheErrorsTotal.Load())
	writeCounter(&buf, "batch_runs_total", "Total batch runs started", batchRunsTotal.Load())
	writeCounter(&buf, "analysis_rows_written_total", "Total analysis rows persisted", resultsWrittenTotal.Load())
	writeCounter(&buf, "rate_budget_waits_total", "Total rate budget acquisitions that blocked", rateBudgetWaitsTotal.Load())
	writeCounter(&buf, "http_requests_total", "Total HTTP requests served", httpRequestsTotal.Load())
	writeCounter(&buf, "http_request_errors_total", "Total HTTP requests answered with 5xx", httpErrorsTotal.Load())
	writeHistogram(&buf, "llm_latency_ms", "LLM call latency in milliseconds", llmLatency.Snapshot())
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
			break
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

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
