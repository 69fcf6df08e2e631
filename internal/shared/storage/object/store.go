package object

import (
	"context"
	"io"
)

// Store persists opaque blobs by caller-chosen key. The worker uses it to
// archive raw batch output next to the relational rows.
type Store interface {
	Put(ctx context.Context, key string, contentType string, r io.Reader) (sizeBytes int64, err error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
