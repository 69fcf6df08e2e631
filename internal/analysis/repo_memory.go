package analysis

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores results in memory, keyed by window. Safe for
// concurrent use. Used in tests and by the JSON/XLSX one-shot runs that
// never touch Postgres.
type MemoryRepo struct {
	mu      sync.RWMutex
	windows map[time.Time]*memoryWindow

	// FailSaveAfter, when > 0, fails the n-th chunk write. Lets tests
	// exercise partial-save accounting without a database.
	FailSaveAfter int
	saves         int
}

type memoryWindow struct {
	end     time.Time
	results map[string]StoredResult
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{windows: make(map[time.Time]*memoryWindow)}
}

func (r *MemoryRepo) SaveResults(ctx context.Context, results []Result, windowStart, windowEnd time.Time, chunkSize int) (int, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	written := 0
	for start := 0; start < len(results); start += chunkSize {
		end := start + chunkSize
		if end > len(results) {
			end = len(results)
		}
		if err := r.saveChunk(ctx, results[start:end], windowStart, windowEnd); err != nil {
			return written, fmt.Errorf("%w: rows %d-%d: %v", ErrStorageWrite, start, end-1, err)
		}
		written += end - start
	}
	return written, nil
}

func (r *MemoryRepo) saveChunk(ctx context.Context, chunk []Result, windowStart, windowEnd time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.saves++
	if r.FailSaveAfter > 0 && r.saves >= r.FailSaveAfter {
		return fmt.Errorf("injected failure on save %d", r.saves)
	}

	w, ok := r.windows[windowStart]
	if !ok {
		w = &memoryWindow{end: windowEnd, results: make(map[string]StoredResult)}
		r.windows[windowStart] = w
	}
	now := time.Now().UTC()
	for _, res := range chunk {
		w.results[res.ChatID] = StoredResult{
			Result:      res,
			WindowStart: windowStart,
			WindowEnd:   windowEnd,
			UpdatedAt:   now,
		}
	}
	return nil
}

func (r *MemoryRepo) LoadResults(ctx context.Context, windowStart time.Time) ([]StoredResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.windows[windowStart]
	if !ok || len(w.results) == 0 {
		return nil, ErrNotFound
	}
	out := make([]StoredResult, 0, len(w.results))
	for _, s := range w.results {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out, nil
}

func (r *MemoryRepo) ListWindows(ctx context.Context) ([]WindowInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]WindowInfo, 0, len(r.windows))
	for start, w := range r.windows {
		agents := make(map[string]struct{})
		for _, s := range w.results {
			agents[s.AgentName] = struct{}{}
		}
		out = append(out, WindowInfo{
			WindowStart: start,
			WindowEnd:   w.end,
			TotalChats:  len(w.results),
			TotalAgents: len(agents),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WindowStart.After(out[j].WindowStart) })
	if len(out) > 52 {
		out = out[:52]
	}
	return out, nil
}

func (r *MemoryRepo) AnalyzedIDs(ctx context.Context, windowStart time.Time) (map[string]struct{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]struct{})
	if w, ok := r.windows[windowStart]; ok {
		for id := range w.results {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

var _ Repo = (*MemoryRepo)(nil)
