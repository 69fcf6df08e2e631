package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/telemetry"
)

const (
	defaultAPITimeout = 10 * time.Second
	DefaultCacheTTL   = time.Hour
)

// API fetches the company context from the catalog service and caches it
// for a TTL. Fetch failures fall back to the compiled-in static context
// with a warning; prompt building never fails because the catalog is down.
type API struct {
	http     *resty.Client
	apiKey   string
	ttl      time.Duration
	fallback Provider

	mu      sync.Mutex
	cached  *Context
	fetched time.Time
	now     func() time.Time
}

func NewAPI(baseURL, apiKey string, ttl time.Duration) *API {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(defaultAPITimeout)
	return &API{
		http:     client,
		apiKey:   apiKey,
		ttl:      ttl,
		fallback: NewStatic(),
		now:      time.Now,
	}
}

func (a *API) Context(ctx context.Context) (*Context, error) {
	a.mu.Lock()
	if a.cached != nil && a.now().Sub(a.fetched) < a.ttl {
		cached := a.cached
		a.mu.Unlock()
		return cached, nil
	}
	a.mu.Unlock()

	fetched, err := a.fetch(ctx)
	if err != nil {
		telemetry.Warn("catalog fetch failed, using static context", map[string]any{
			"error": err.Error(),
		})
		return a.fallback.Context(ctx)
	}

	a.mu.Lock()
	a.cached = fetched
	a.fetched = a.now()
	a.mu.Unlock()
	return fetched, nil
}

func (a *API) fetch(ctx context.Context) (*Context, error) {
	var out Context
	req := a.http.R().SetContext(ctx).SetResult(&out)
	if a.apiKey != "" {
		req.SetAuthToken(a.apiKey)
	}
	resp, err := req.Get("/context")
	if err != nil {
		return nil, fmt.Errorf("catalog request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("catalog status %d", resp.StatusCode())
	}
	if out.CompanyName == "" && len(out.Categories) == 0 {
		return nil, fmt.Errorf("catalog returned empty context")
	}
	return &out, nil
}

var _ Provider = (*API)(nil)
