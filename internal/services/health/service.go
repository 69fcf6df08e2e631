// Package health answers liveness probes with the state of each wired
// dependency.
package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

const checkTimeout = 2 * time.Second

// Check probes one dependency. A nil error means healthy.
type Check func(ctx context.Context) error

// Service runs registered dependency checks on demand.
type Service struct {
	mu     sync.Mutex
	checks map[string]Check
}

// NewService constructs an empty health service.
func NewService() *Service {
	return &Service{checks: make(map[string]Check)}
}

// Register adds a named dependency check. A nil check marks the
// dependency as not configured, which reports as "disabled".
func (s *Service) Register(name string, check Check) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = check
}

// Response is the health payload served to probes.
type Response struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Status runs every check with a short timeout. Overall status is "ok"
// only when every configured dependency answers.
func (s *Service) Status(ctx context.Context) Response {
	s.mu.Lock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	checks := make(map[string]Check, len(s.checks))
	for name, check := range s.checks {
		checks[name] = check
	}
	s.mu.Unlock()

	resp := Response{Status: "ok"}
	if len(names) == 0 {
		return resp
	}

	resp.Checks = make(map[string]string, len(names))
	for _, name := range names {
		check := checks[name]
		if check == nil {
			resp.Checks[name] = "disabled"
			continue
		}

		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := check(checkCtx)
		cancel()
		if err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			continue
		}
		resp.Checks[name] = "ok"
	}
	return resp
}
