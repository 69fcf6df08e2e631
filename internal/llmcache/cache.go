// Package llmcache caches validated LLM axis results keyed by chat
// fingerprint, so re-running a window does not re-bill already analyzed
// conversations.
package llmcache

import (
	"context"
	"time"
)

// Cache is the backend contract. Get returns (value, found, error); a
// missing key is (nil, false, nil), never an error. Set stores val under
// key for ttl.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// Backend names accepted by Build.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendOff    = "off"
)

// Noop is the disabled cache: every Get misses, every Set is dropped.
type Noop struct{}

func NewNoop() Noop { return Noop{} }

func (Noop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (Noop) Set(context.Context, string, []byte, time.Duration) error { return nil }

var _ Cache = Noop{}
