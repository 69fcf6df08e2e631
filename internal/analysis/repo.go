package analysis

import (
	"context"
	"time"
)

// DefaultChunkSize is how many results go into one persistence write.
const DefaultChunkSize = 500

// Repo persists analysis results partitioned by analysis window.
type Repo interface {
	// SaveResults upserts results in consecutive chunks of at most
	// chunkSize rows, one write per chunk. A chunk failure aborts the
	// remaining chunks; the returned count is rows committed before the
	// failure.
	SaveResults(ctx context.Context, results []Result, windowStart, windowEnd time.Time, chunkSize int) (int, error)
	// LoadResults returns every stored result for the window.
	LoadResults(ctx context.Context, windowStart time.Time) ([]StoredResult, error)
	// ListWindows returns distinct analyzed windows, newest first,
	// capped at 52 (one year of weekly runs).
	ListWindows(ctx context.Context) ([]WindowInfo, error)
	// AnalyzedIDs returns the chat ids already stored for the window.
	AnalyzedIDs(ctx context.Context, windowStart time.Time) (map[string]struct{}, error)
}
