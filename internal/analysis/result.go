package analysis

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/opsmetrics"
)

// Result is the complete per-chat outcome: the four validated axis
// analyses plus operational metrics and processing metadata. Results are
// immutable once produced; re-analysis replaces the stored row wholesale.
type Result struct {
	ChatID string `json:"chat_id"`

	AxisResults

	Ops opsmetrics.ChatMetrics `json:"ops"`

	AgentName    string          `json:"agent_name,omitempty"`
	Tags         []string        `json:"tags,omitempty"`
	ProcessingMS int64           `json:"processing_ms"`
	CacheHit     bool            `json:"cache_hit"`
	ModelVersion string          `json:"model_version"`
	CostUSD      decimal.Decimal `json:"cost_usd"`
	AnalyzedAt   time.Time       `json:"analyzed_at"`
	RawResponse  json.RawMessage `json:"raw_response,omitempty"`

	// LLM calls spent on this chat, for batch accounting.
	apiCalls int
}

// Failure records one chat the batch could not analyze.
type Failure struct {
	ChatID string `json:"chat_id"`
	Kind   string `json:"kind"`
	Err    string `json:"error"`
}

// StoredResult is a persisted Result with its window partition.
type StoredResult struct {
	Result
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// WindowInfo summarizes one analyzed window for listing.
type WindowInfo struct {
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	TotalChats  int       `json:"total_chats"`
	TotalAgents int       `json:"total_agents"`
}

// ProgressEvent is delivered after each chat settles. Counts are the
// running totals at that moment.
type ProgressEvent struct {
	ChatID    string
	Processed int
	Failed    int
	Skipped   int
	CacheHit  bool
}

// BatchReport aggregates one pipeline run. Every input chat lands in
// exactly one of Processed, Failed or Skipped.
type BatchReport struct {
	Results  []Result  `json:"results"`
	Failures []Failure `json:"failures,omitempty"`

	Processed int `json:"processed"`
	CacheHits int `json:"cache_hits"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`

	APICalls     int             `json:"api_calls"`
	TotalCostUSD decimal.Decimal `json:"total_cost_usd"`
	AvgLatencyMS float64         `json:"avg_latency_ms"`
}
