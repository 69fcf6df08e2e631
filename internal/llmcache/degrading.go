package llmcache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/metrics"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/telemetry"
)

// CacheStats counts cache outcomes observed through the Degrading wrapper.
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Errors int64 `json:"errors"`
}

// Degrading wraps a backend and converts its failures into misses and
// dropped writes. An unavailable cache makes the pipeline slower, never
// broken. Warnings are throttled to one per outage window so a dead
// backend does not flood the log.
type Degrading struct {
	backend Cache

	hits   int64
	misses int64
	errors int64

	mu        sync.Mutex
	lastWarn  time.Time
	warnEvery time.Duration
	now       func() time.Time
}

func NewDegrading(backend Cache) *Degrading {
	if backend == nil {
		backend = Noop{}
	}
	return &Degrading{
		backend:   backend,
		warnEvery: time.Minute,
		now:       time.Now,
	}
}

func (d *Degrading) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, ok, err := d.backend.Get(ctx, key)
	if err != nil {
		atomic.AddInt64(&d.errors, 1)
		metrics.IncCacheError()
		d.warn("get", err)
		return nil, false, nil
	}
	if !ok {
		atomic.AddInt64(&d.misses, 1)
		metrics.IncCacheMiss()
		return nil, false, nil
	}
	atomic.AddInt64(&d.hits, 1)
	metrics.IncCacheHit()
	return val, true, nil
}

func (d *Degrading) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if err := d.backend.Set(ctx, key, val, ttl); err != nil {
		atomic.AddInt64(&d.errors, 1)
		metrics.IncCacheError()
		d.warn("set", err)
	}
	return nil
}

func (d *Degrading) Stats() CacheStats {
	return CacheStats{
		Hits:   atomic.LoadInt64(&d.hits),
		Misses: atomic.LoadInt64(&d.misses),
		Errors: atomic.LoadInt64(&d.errors),
	}
}

func (d *Degrading) warn(op string, err error) {
	d.mu.Lock()
	now := d.now()
	if !d.lastWarn.IsZero() && now.Sub(d.lastWarn) < d.warnEvery {
		d.mu.Unlock()
		return
	}
	d.lastWarn = now
	d.mu.Unlock()
	telemetry.Warn("cache unavailable, degrading to miss", map[string]any{
		"op":    op,
		"error": err.Error(),
	})
}

var _ Cache = (*Degrading)(nil)

// Build assembles the cache stack for the configured backend. A Redis
// backend that cannot be reached at startup disables caching with a
// warning instead of failing the process.
func Build(ctx context.Context, backend string, opts RedisOptions) Cache {
	switch backend {
	case BackendOff:
		telemetry.Info("llm cache disabled", nil)
		return NewNoop()
	case BackendRedis:
		r, err := NewRedis(ctx, opts)
		if err != nil {
			telemetry.Warn("redis unreachable, llm cache disabled", map[string]any{
				"addr":  opts.Addr,
				"error": err.Error(),
			})
			return NewNoop()
		}
		telemetry.Info("llm cache connected", map[string]any{"backend": BackendRedis, "addr": opts.Addr})
		return NewDegrading(r)
	default:
		telemetry.Info("llm cache connected", map[string]any{"backend": BackendMemory})
		return NewDegrading(NewMemory())
	}
}
