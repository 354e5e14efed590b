package observability

import (
	"context"
	"fmt"

	"github.com/quotelab/feedgate/provider"
)

// HealthStatus represents the health state of a component or service.
type HealthStatus string

const (
	HealthStatusUp       HealthStatus = "up"
	HealthStatusDown     HealthStatus = "down"
	HealthStatusDegraded HealthStatus = "degraded"
)

// Health describes the health of an individual component.
type Health struct {
	Name    string            `json:"name"`
	Status  HealthStatus      `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// ServiceHealth describes the overall health of a service and its components.
type ServiceHealth struct {
	Service    string       `json:"service"`
	Status     HealthStatus `json:"status"`
	Version    string       `json:"version,omitempty"`
	Components []Health     `json:"components,omitempty"`
}

// HealthChecker is implemented by components that can report their health.
type HealthChecker interface {
	CheckHealth(ctx context.Context) Health
}

// NewServiceHealth creates a ServiceHealth with status up.
func NewServiceHealth(service, version string) *ServiceHealth {
	return &ServiceHealth{
		Service: service,
		Status:  HealthStatusUp,
		Version: version,
	}
}

// AddComponent adds a component health result and degrades overall status if needed.
func (sh *ServiceHealth) AddComponent(ch Health) {
	sh.Components = append(sh.Components, ch)

	switch ch.Status {
	case HealthStatusDown:
		sh.Status = HealthStatusDown
	case HealthStatusDegraded:
		if sh.Status != HealthStatusDown {
			sh.Status = HealthStatusDegraded
		}
	}
}

// ProviderComponent converts a registry health report into a component
// health entry. The component is up while at least one enabled provider
// is eligible for dispatch, degraded when the registry is empty, and
// down when every provider is blocked or failing.
func ProviderComponent(report provider.HealthReport) Health {
	h := Health{
		Name: report.Capability + "-providers",
		Details: map[string]string{
			"overall_uptime": fmt.Sprintf("%.1f%%", report.OverallHealth),
			"providers":      fmt.Sprintf("%d", len(report.Providers)),
		},
	}

	if len(report.Providers) == 0 {
		h.Status = HealthStatusDegraded
		h.Message = "no providers registered"
		return h
	}

	eligible := 0
	for _, p := range report.Providers {
		h.Details[p.ID] = p.Status
		if p.Enabled && p.Eligible {
			eligible++
		}
	}

	switch {
	case eligible == 0:
		h.Status = HealthStatusDown
		h.Message = "no eligible providers"
	case eligible < len(report.Providers):
		h.Status = HealthStatusDegraded
		h.Message = fmt.Sprintf("%d of %d providers eligible", eligible, len(report.Providers))
	default:
		h.Status = HealthStatusUp
	}
	return h
}
