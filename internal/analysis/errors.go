package analysis

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrTransientCall marks a network/timeout/5xx failure that survived
	// the client's own retries. Re-running the batch is safe; the
	// checkpoint skips finished chats.
	ErrTransientCall = errors.New("transient call failure")
	// ErrSchemaValidation marks model output that stayed malformed after
	// the stricter re-prompt.
	ErrSchemaValidation = errors.New("schema validation failed")
	// ErrRateLimitExceeded marks a 429 that reached us despite the rate
	// budget; the ceiling is configured above the real quota.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrStorageWrite marks a failed result chunk write.
	ErrStorageWrite = errors.New("storage write failure")
	// ErrCacheUnavailable marks a cache backend outage.
	ErrCacheUnavailable = errors.New("cache unavailable")
	// ErrNotFound marks a window with no persisted results.
	ErrNotFound = errors.New("not found")
)

const (
	ErrorCodeTransientCall    = "transient_call_failure"
	ErrorCodeSchemaValidation = "schema_validation"
	ErrorCodeRateLimit        = "rate_limit_exceeded"
	ErrorCodeStorageWrite     = "storage_write_failure"
	ErrorCodeCacheUnavailable = "cache_unavailable"
	ErrorCodeInternal         = "internal"
)

// ClassifyFailure maps any error to a taxonomy code and whether re-running
// the batch can succeed.
func ClassifyFailure(err error) (string, bool) {
	if err == nil {
		return ErrorCodeInternal, false
	}
	switch {
	case errors.Is(err, ErrRateLimitExceeded):
		return ErrorCodeRateLimit, true
	case errors.Is(err, ErrSchemaValidation):
		return ErrorCodeSchemaValidation, false
	case errors.Is(err, ErrStorageWrite):
		return ErrorCodeStorageWrite, true
	case errors.Is(err, ErrCacheUnavailable):
		return ErrorCodeCacheUnavailable, true
	case errors.Is(err, ErrTransientCall),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return ErrorCodeTransientCall, true
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "429"):
		return ErrorCodeRateLimit, true
	case strings.Contains(msg, "schema"), strings.Contains(msg, "parse"):
		return ErrorCodeSchemaValidation, false
	case strings.Contains(msg, "timeout"),
		strings.Contains(msg, "connection"),
		strings.Contains(msg, "status 5"):
		return ErrorCodeTransientCall, true
	case strings.Contains(msg, "storage"),
		strings.Contains(msg, "sql"),
		strings.Contains(msg, "chunk"):
		return ErrorCodeStorageWrite, true
	}
	return ErrorCodeInternal, false
}

// sanitizeError flattens an error message for log fields and DB columns.
func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
