// Package gemini implements the llm.Client boundary against the Google
// Gemini generateContent REST API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"

	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/llm"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/metrics"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/telemetry"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.0-flash"

	defaultTimeout = 60 * time.Second
	maxAttempts    = 3
	temperature    = 0.3
)

// ErrRateLimited marks a 429 that survived all retry attempts. The rate
// budget should make this unreachable; seeing it means the ceiling is set
// above the real quota.
var ErrRateLimited = errors.New("gemini: rate limited")

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client calls generateContent with JSON response MIME type. Transient
// failures (5xx, 429, transport errors) are retried with exponential
// backoff; other 4xx fail immediately.
type Client struct {
	http   *resty.Client
	apiKey string
	model  string

	retryInterval time.Duration
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)

	return &Client{
		http:          client,
		apiKey:        cfg.APIKey,
		model:         model,
		retryInterval: time.Second,
	}, nil
}

// Model reports the configured model name, used in cache fingerprints.
func (c *Client) Model() string { return c.model }

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMIMEType string  `json:"responseMimeType"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
}

type generateRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

type apiError struct {
	status int
	msg    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("gemini status %d: %s", e.status, e.msg)
}

func (c *Client) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	var out *llm.Response
	attempt := 0
	operation := func() error {
		attempt++
		if attempt > 1 {
			metrics.IncLLMRetry()
			telemetry.Warn("retrying gemini call", map[string]any{
				"attempt": attempt,
				"model":   c.model,
			})
		}
		resp, err := c.generateOnce(ctx, req)
		if err != nil {
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		out = resp
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryInterval
	bo.MaxElapsedTime = 0
	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, maxAttempts-1), ctx)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) generateOnce(ctx context.Context, req llm.Request) (*llm.Response, error) {
	body := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: req.Prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:      temperature,
			ResponseMIMEType: "application/json",
			MaxOutputTokens:  req.MaxTokens,
		},
	}
	if strings.TrimSpace(req.System) != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: req.System}}}
	}

	metrics.IncLLMCall()
	start := time.Now()
	var parsed generateResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("key", c.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&parsed).
		Post("/models/" + c.model + ":generateContent")
	metrics.ObserveLLMLatencyMs(float64(time.Since(start).Milliseconds()))
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}
	if resp.IsError() {
		return nil, statusError(resp.StatusCode(), resp.Body())
	}
	if parsed.Error != nil {
		return nil, &apiError{status: parsed.Error.Code, msg: parsed.Error.Message}
	}
	if len(parsed.Candidates) == 0 {
		return nil, errors.New("gemini response missing candidates")
	}

	text := strings.TrimSpace(joinParts(parsed.Candidates[0].Content.Parts))
	if text == "" {
		return nil, errors.New("gemini response empty content")
	}

	out := &llm.Response{Text: stripFences(text), Model: c.model}
	if parsed.UsageMetadata != nil {
		out.Usage = llm.Usage{
			InputTokens:  parsed.UsageMetadata.PromptTokenCount,
			OutputTokens: parsed.UsageMetadata.CandidatesTokenCount,
		}
	}
	return out, nil
}

func statusError(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 300 {
		msg = msg[:300]
	}
	if status == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s", ErrRateLimited, msg)
	}
	return &apiError{status: status, msg: msg}
}

func retryable(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var api *apiError
	if errors.As(err, &api) {
		return api.status >= 500 || api.status == http.StatusRequestTimeout
	}
	// Transport errors and per-attempt timeouts.
	return true
}

func joinParts(parts []part) string {
	if len(parts) == 1 {
		return parts[0].Text
	}
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

// stripFences removes markdown code fences some replies wrap around the
// JSON body despite the response MIME type.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = text[len("```json"):]
	} else if strings.HasPrefix(text, "```") {
		text = text[len("```"):]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

var _ llm.Client = (*Client)(nil)
