package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates the lock store is down; reindexing is blocked.
	Degraded Status = "degraded"
	// Unhealthy indicates the search cluster is unreachable.
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
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	cluster Pinger
	lock    Pinger
}

// New creates a Service. lock can be nil when reindex locking is off.
func New(cluster, lock Pinger) *Service {
	return &Service{cluster: cluster, lock: lock}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	status := Healthy

	if s.lock != nil {
		if err := s.lock.Ping(ctx); err != nil {
			checks["redis"] = CheckError
			status = Degraded
		} else {
			checks["redis"] = CheckOK
		}
	}

	if err := s.cluster.Ping(ctx); err != nil {
		checks["elasticsearch"] = CheckError
		status = Unhealthy
	} else {
		checks["elasticsearch"] = CheckOK
	}

	return Report{Status: status, Checks: checks}
}
