package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantCode      string
		wantRetryable bool
	}{
		{"rate limit sentinel", fmt.Errorf("cx axis: %w", ErrRateLimitExceeded), ErrorCodeRateLimit, true},
		{"schema sentinel", fmt.Errorf("qa axis: bad: %w", ErrSchemaValidation), ErrorCodeSchemaValidation, false},
		{"storage sentinel", fmt.Errorf("%w: rows 0-499", ErrStorageWrite), ErrorCodeStorageWrite, true},
		{"cache sentinel", fmt.Errorf("get: %w", ErrCacheUnavailable), ErrorCodeCacheUnavailable, true},
		{"transient sentinel", fmt.Errorf("call: %w", ErrTransientCall), ErrorCodeTransientCall, true},
		{"deadline", context.DeadlineExceeded, ErrorCodeTransientCall, true},
		{"canceled", context.Canceled, ErrorCodeTransientCall, true},
		{"429 text", errors.New("upstream said 429"), ErrorCodeRateLimit, true},
		{"rate limit text", errors.New("Rate Limit hit"), ErrorCodeRateLimit, true},
		{"parse text", errors.New("parse object key"), ErrorCodeSchemaValidation, false},
		{"timeout text", errors.New("dial tcp: i/o timeout"), ErrorCodeTransientCall, true},
		{"5xx text", errors.New("gemini: status 503"), ErrorCodeTransientCall, true},
		{"sql text", errors.New("sql: database is closed"), ErrorCodeStorageWrite, true},
		{"unknown", errors.New("something odd"), ErrorCodeInternal, false},
		{"nil", nil, ErrorCodeInternal, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			code, retryable := ClassifyFailure(tt.err)
			if code != tt.wantCode || retryable != tt.wantRetryable {
				t.Fatalf("ClassifyFailure(%v) = (%s, %v), want (%s, %v)",
					tt.err, code, retryable, tt.wantCode, tt.wantRetryable)
			}
		})
	}
}

func TestSanitizeError(t *testing.T) {
	err := errors.New("line one\nline two\r\n  padded  ")
	got := sanitizeError(err)
	if strings.ContainsAny(got, "\n\r") {
		t.Fatalf("newlines survived: %q", got)
	}
	if strings.HasPrefix(got, " ") || strings.HasSuffix(got, " ") {
		t.Fatalf("not trimmed: %q", got)
	}

	long := errors.New(strings.Repeat("x", 600))
	if n := len(sanitizeError(long)); n != 500 {
		t.Fatalf("len = %d, want capped at 500", n)
	}

	if sanitizeError(nil) != "" {
		t.Fatal("nil error should sanitize to empty")
	}
}
