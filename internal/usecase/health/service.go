// Package health coordinates component health checks. Each component is
// checked independently so one unhealthy dependency never masks another.
package health

import "context"

// Status is the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "healthy"
	// Degraded indicates at least one component is failing.
	Degraded Status = "degraded"
)

// Report aggregates component check results. Component values are either
// "healthy" or "unhealthy: <reason>" so operators see the raw failure.
type Report struct {
	Status     Status
	Components map[string]string
}

// Service runs the component checks.
type Service struct {
	postgres  Pinger
	qdrant    Pinger
	embedding EmbeddingChecker
}

// New creates a health service. embedding can be nil.
func New(postgres, qdrant Pinger, embedding EmbeddingChecker) *Service {
	return &Service{postgres: postgres, qdrant: qdrant, embedding: embedding}
}

// Check probes every component and aggregates the outcome.
func (s *Service) Check(ctx context.Context) Report {
	components := make(map[string]string)

	components["postgres"] = checkResult(s.postgres.Ping(ctx))
	components["qdrant"] = checkResult(s.qdrant.Ping(ctx))

	if s.embedding != nil {
		components["embedding"] = checkResult(s.embedding.HealthCheck(ctx))
	}

	status := Healthy
	for _, v := range components {
		if v != string(Healthy) {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Components: components}
}

func checkResult(err error) string {
	if err != nil {
		return "unhealthy: " + err.Error()
	}
	return string(Healthy)
}
