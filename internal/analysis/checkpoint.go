package analysis

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Checkpoint is the set of chat ids already analyzed for one window.
// Bound to its window at construction, append-only within it. The
// pipeline consults it before submitting a chat and appends after each
// success, so an interrupted run resumes without re-billing finished
// chats.
type Checkpoint interface {
	Contains(ctx context.Context, id string) bool
	Add(ctx context.Context, id string) error
	Len() int
}

// MemoryCheckpoint is a mutex-guarded id set. Used in tests and to keep
// accounting consistent when repo-backed checkpointing is disabled.
type MemoryCheckpoint struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

func NewMemoryCheckpoint() *MemoryCheckpoint {
	return &MemoryCheckpoint{ids: make(map[string]struct{})}
}

func (c *MemoryCheckpoint) Contains(_ context.Context, id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.ids[id]
	return ok
}

func (c *MemoryCheckpoint) Add(_ context.Context, id string) error {
	c.mu.Lock()
	c.ids[id] = struct{}{}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCheckpoint) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ids)
}

// RepoCheckpoint is a MemoryCheckpoint seeded from the results table.
// Adds stay in memory: durability comes from the result upsert itself,
// and the next run re-derives the set with AnalyzedIDs.
type RepoCheckpoint struct {
	MemoryCheckpoint
}

func NewRepoCheckpoint(ctx context.Context, repo Repo, windowStart time.Time) (*RepoCheckpoint, error) {
	ids, err := repo.AnalyzedIDs(ctx, windowStart)
	if err != nil {
		return nil, fmt.Errorf("seed checkpoint: %w", err)
	}
	if ids == nil {
		ids = make(map[string]struct{})
	}
	cp := &RepoCheckpoint{}
	cp.ids = ids
	return cp, nil
}

var (
	_ Checkpoint = (*MemoryCheckpoint)(nil)
	_ Checkpoint = (*RepoCheckpoint)(nil)
)
