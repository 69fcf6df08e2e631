package metrics

import (
	"bytes"
	"strings"
	"testing"
)

func TestHistogramCumulativeBuckets(t *testing.T) {
	h := newHistogram([]float64{100, 250, 500})
	h.Observe(50)
	h.Observe(150)
	h.Observe(150)
	h.Observe(9000)

	var buf bytes.Buffer
	writeHistogram(&buf, "latency_ms", "latency help", h.Snapshot())
	out := buf.String()

	for _, want := range []string{
		`latency_ms_bucket{le="100"} 1`,
		`latency_ms_bucket{le="250"} 3`,
		`latency_ms_bucket{le="500"} 3`,
		`latency_ms_bucket{le="+Inf"} 4`,
		"latency_ms_sum 9350",
		"latency_ms_count 4",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("rendered histogram missing %q:\n%s", want, out)
		}
	}
}

func TestWriteCounterFormat(t *testing.T) {
	var buf bytes.Buffer
	writeCounter(&buf, "jobs_total", "jobs help", 7)
	want := "# HELP jobs_total jobs help\n# TYPE jobs_total counter\njobs_total 7\n"
	if buf.String() != want {
		t.Fatalf("counter format mismatch:\ngot  %q\nwant %q", buf.String(), want)
	}
}

func TestRenderExposesAllSeries(t *testing.T) {
	out := Render()
	for _, name := range []string{
		"chats_processed_total",
		"chats_failed_total",
		"chats_skipped_total",
		"llm_calls_total",
		"llm_retries_total",
		"llm_cache_hits_total",
		"llm_cache_misses_total",
		"llm_cache_errors_total",
		"batch_runs_total",
		"analysis_rows_written_total",
		"rate_budget_waits_total",
		"http_requests_total",
		"http_request_errors_total",
		"llm_latency_ms_count",
	} {
		if !strings.Contains(out, name) {
			t.Fatalf("render output missing series %q", name)
		}
	}
}

func TestFormatFloat(t *testing.T) {
	if got := formatFloat(250); got != "250" {
		t.Fatalf("formatFloat(250) = %q, want 250", got)
	}
	if got := formatFloat(0.5); got != "0.5" {
		t.Fatalf("formatFloat(0.5) = %q, want 0.5", got)
	}
}
