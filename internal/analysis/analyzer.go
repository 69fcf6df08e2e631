package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/catalog"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/chats"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/llm"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/llm/gemini"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/llmcache"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/ratebudget"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/telemetry"
)

const (
	cacheKeyPrefix  = "llm:cache:"
	DefaultCacheTTL = 24 * time.Hour

	// axisFanout bounds the concurrent axis calls per chat.
	axisFanout = 4
)

// Analyzer runs the four-axis qualitative analysis for one chat: cache
// lookup by fingerprint, concurrent axis calls under the rate budget,
// schema validation with one stricter repair retry, and a single cache
// write per miss.
type Analyzer struct {
	LLM      llm.Client
	Budget   *ratebudget.Budget
	Cache    llmcache.Cache
	Prompts  *gemini.Prompts
	Catalog  catalog.Provider
	Model    string
	CacheTTL time.Duration

	now func() time.Time
}

func NewAnalyzer(client llm.Client, budget *ratebudget.Budget, cache llmcache.Cache, prompts *gemini.Prompts, provider catalog.Provider, model string, cacheTTL time.Duration) *Analyzer {
	if cache == nil {
		cache = llmcache.NewNoop()
	}
	if prompts == nil {
		prompts = gemini.DefaultPrompts()
	}
	if provider == nil {
		provider = catalog.NewStatic()
	}
	if model == "" {
		model = gemini.DefaultModel
	}
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	return &Analyzer{
		LLM:      client,
		Budget:   budget,
		Cache:    cache,
		Prompts:  prompts,
		Catalog:  provider,
		Model:    model,
		CacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// AnalyzeFull produces the axis analyses for one chat. Operational
// metrics and agent metadata are merged in by the pipeline.
func (a *Analyzer) AnalyzeFull(ctx context.Context, chat *chats.Chat) (*Result, error) {
	start := a.now()
	transcript := chats.Transcript(chat)
	if strings.TrimSpace(transcript) == "" {
		return nil, fmt.Errorf("chat %s has no text content", chat.ID)
	}

	key := cacheKeyPrefix + chats.Fingerprint(chat, a.Model)
	if cached, ok := a.cacheLookup(ctx, key); ok {
		return &Result{
			ChatID:       chat.ID,
			AxisResults:  *cached,
			ProcessingMS: a.now().Sub(start).Milliseconds(),
			CacheHit:     true,
			ModelVersion: a.Model,
			AnalyzedAt:   a.now().UTC(),
			RawResponse:  mustMarshal(cached),
		}, nil
	}

	company, err := a.Catalog.Context(ctx)
	if err != nil {
		telemetry.Warn("company context unavailable, prompts degrade to generic", map[string]any{
			"error": err.Error(),
		})
		company = nil
	}

	var axes AxisResults
	slots := []struct {
		axis   gemini.Axis
		decode func(text string) error
	}{
		{gemini.AxisCX, func(text string) error {
			var v CXAnalysis
			if err := json.Unmarshal([]byte(text), &v); err != nil {
				return fmt.Errorf("parse: %w", err)
			}
			if err := v.Validate(); err != nil {
				return err
			}
			axes.CX = v
			return nil
		}},
		{gemini.AxisProduct, func(text string) error {
			var v ProductAnalysis
			if err := json.Unmarshal([]byte(text), &v); err != nil {
				return fmt.Errorf("parse: %w", err)
			}
			if err := v.Validate(); err != nil {
				return err
			}
			axes.Product = v
			return nil
		}},
		{gemini.AxisSales, func(text string) error {
			var v SalesAnalysis
			if err := json.Unmarshal([]byte(text), &v); err != nil {
				return fmt.Errorf("parse: %w", err)
			}
			if err := v.Validate(); err != nil {
				return err
			}
			axes.Sales = v
			return nil
		}},
		{gemini.AxisQA, func(text string) error {
			var v QAAnalysis
			if err := json.Unmarshal([]byte(text), &v); err != nil {
				return fmt.Errorf("parse: %w", err)
			}
			if err := v.Validate(); err != nil {
				return err
			}
			axes.QA = v
			return nil
		}},
	}

	usages := make([]llm.Usage, len(slots))
	calls := make([]int, len(slots))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(axisFanout)
	for i, slot := range slots {
		i, slot := i, slot
		g.Go(func() error {
			usage, n, err := a.analyzeAxis(gctx, slot.axis, company, transcript, slot.decode)
			usages[i] = usage
			calls[i] = n
			if err != nil {
				return fmt.Errorf("chat %s: %w", chat.ID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	payload := mustMarshal(&axes)
	if err := a.Cache.Set(ctx, key, payload, a.CacheTTL); err != nil {
		// Only non-degrading backends surface errors here.
		telemetry.Warn("cache write failed", map[string]any{
			"chatId": chat.ID,
			"error":  err.Error(),
		})
	}

	totalUsage := llm.Usage{}
	totalCalls := 0
	for i := range slots {
		totalUsage = totalUsage.Add(usages[i])
		totalCalls += calls[i]
	}

	return &Result{
		ChatID:       chat.ID,
		AxisResults:  axes,
		ProcessingMS: a.now().Sub(start).Milliseconds(),
		CacheHit:     false,
		ModelVersion: a.Model,
		CostUSD:      gemini.CostUSD(totalUsage, a.Model),
		AnalyzedAt:   a.now().UTC(),
		RawResponse:  payload,
		apiCalls:     totalCalls,
	}, nil
}

// analyzeAxis issues one axis call, validating the reply and retrying
// once with the stricter repair prompt. Every dispatch acquires rate
// budget first.
func (a *Analyzer) analyzeAxis(ctx context.Context, axis gemini.Axis, company *catalog.Context, transcript string, decode func(string) error) (llm.Usage, int, error) {
	var usage llm.Usage
	dispatched := 0

	attempt := func(req llm.Request) (*llm.Response, error) {
		if err := a.Budget.Acquire(ctx); err != nil {
			return nil, err
		}
		dispatched++
		resp, err := a.LLM.Generate(ctx, req)
		if err != nil {
			if errors.Is(err, gemini.ErrRateLimited) {
				return nil, fmt.Errorf("%s axis: %w: %v", axis, ErrRateLimitExceeded, err)
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("%s axis: %w: %v", axis, ErrTransientCall, err)
		}
		usage = usage.Add(resp.Usage)
		return resp, nil
	}

	req, err := a.Prompts.Build(axis, company, transcript)
	if err != nil {
		return usage, dispatched, err
	}
	resp, err := attempt(req)
	if err != nil {
		return usage, dispatched, err
	}

	decodeErr := decode(resp.Text)
	if decodeErr == nil {
		return usage, dispatched, nil
	}

	telemetry.Warn("axis reply failed validation, repairing", map[string]any{
		"axis":  string(axis),
		"error": decodeErr.Error(),
	})
	repairReq, err := a.Prompts.BuildRepair(axis, company, transcript, resp.Text, decodeErr.Error())
	if err != nil {
		return usage, dispatched, err
	}
	resp, err = attempt(repairReq)
	if err != nil {
		return usage, dispatched, err
	}
	if repairErr := decode(resp.Text); repairErr != nil {
		return usage, dispatched, fmt.Errorf("%s axis after repair: %v: %w", axis, repairErr, ErrSchemaValidation)
	}
	return usage, dispatched, nil
}

// cacheLookup returns the cached axis results when present and still
// valid. Undecodable entries are treated as misses.
func (a *Analyzer) cacheLookup(ctx context.Context, key string) (*AxisResults, bool) {
	val, ok, err := a.Cache.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	var axes AxisResults
	if err := json.Unmarshal(val, &axes); err != nil {
		telemetry.Warn("cache entry undecodable, treating as miss", map[string]any{
			"key":   key,
			"error": err.Error(),
		})
		return nil, false
	}
	if err := axes.Validate(); err != nil {
		telemetry.Warn("cache entry failed validation, treating as miss", map[string]any{
			"key":   key,
			"error": err.Error(),
		})
		return nil, false
	}
	return &axes, true
}

func mustMarshal(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		// AxisResults has no unmarshalable fields.
		return json.RawMessage(`{}`)
	}
	return raw
}
