package health

import (
	"context"
	"sync"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// Service coordinates health checks.
type Service struct {
	checks map[string]Pinger
}

// New creates a Service over named dependencies. Nil pingers are skipped.
func New(checks map[string]Pinger) *Service {
	c := make(map[string]Pinger, len(checks))
	for name, p := range checks {
		if p != nil {
			c[name] = p
		}
	}
	return &Service{checks: c}
}

// Check pings every dependency concurrently. Some failing is Degraded, all failing is Unhealthy.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.checks))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for name, p := range s.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := CheckOK
			if err := p.Ping(ctx); err != nil {
				res = CheckError
			}
			mu.Lock()
			checks[name] = res
			mu.Unlock()
		}()
	}
	wg.Wait()

	failed := 0
	for _, v := range checks {
		if v == CheckError {
			failed++
		}
	}

	status := Healthy
	switch {
	case failed > 0 && failed == len(checks):
		status = Unhealthy
	case failed > 0:
		status = Degraded
	}

	return Report{Status: status, Checks: checks}
}
