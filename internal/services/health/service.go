package health

import (
	"context"
	"sync"
	"time"
)

// Pinger is a dependency that can report liveness.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// PingContext calls f.
func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// Service encapsulates health-related checks.
type Service struct {
	checks  map[string]Pinger
	timeout time.Duration
}

// Report is the health payload.
type Report struct {
	OK     bool              `json:"ok"`
	Checks map[string]string `json:"checks,omitempty"`
}

// NewService constructs a health service. Nil checks are skipped.
func NewService(timeout time.Duration, checks map[string]Pinger) *Service {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	filtered := make(map[string]Pinger, len(checks))
	for name, p := range checks {
		if p != nil {
			filtered[name] = p
		}
	}
	return &Service{checks: filtered, timeout: timeout}
}

// Status runs every check concurrently and reports the first failure per dependency.
func (s *Service) Status(ctx context.Context) Report {
	report := Report{OK: true}
	if s == nil || len(s.checks) == 0 {
		return report
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var mu sync.Mutex
	var wg sync.WaitGroup
	report.Checks = make(map[string]string, len(s.checks))
	for name, p := range s.checks {
		wg.Add(1)
		go func(name string, p Pinger) {
			defer wg.Done()
			status := "ok"
			if err := p.PingContext(ctx); err != nil {
				status = err.Error()
			}
			mu.Lock()
			report.Checks[name] = status
			if status != "ok" {
				report.OK = false
			}
			mu.Unlock()
		}(name, p)
	}
	wg.Wait()
	return report
}
