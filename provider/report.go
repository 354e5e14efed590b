package provider

import (
	"sort"
	"time"

	goerrors "github.com/quotelab/feedgate/errors"
	"github.com/quotelab/feedgate/resilience"
)

// ProviderHealth is one provider's entry in a health report.
type ProviderHealth struct {
	ID            string     `json:"id"`
	Status        string     `json:"status"`
	Enabled       bool       `json:"enabled"`
	Eligible      bool       `json:"eligible"`
	Priority      int        `json:"priority"`
	Weight        int        `json:"weight"`
	SuccessRate   float64    `json:"success_rate"`
	UptimePercent float64    `json:"uptime_percent"`
	AvgLatencyMs  int64      `json:"avg_latency_ms"`
	TotalRequests int64      `json:"total_requests"`
	SuccessCount  int64      `json:"success_count"`
	FailureCount  int64      `json:"failure_count"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
}

// HealthReport is the registry-wide health summary served to operators.
type HealthReport struct {
	Capability    string           `json:"capability"`
	OverallHealth float64          `json:"overall_health_percent"`
	Providers     []ProviderHealth `json:"providers"`
	GeneratedAt   time.Time        `json:"generated_at"`
}

// healthSource pairs a provider with a config copy taken under the
// registry lock, so report building can run lock-free afterwards.
type healthSource struct {
	id     string
	cfg    Config
	health *resilience.HealthTracker
}

// HealthReport assembles a point-in-time report over every registered
// provider, enabled or not. The overall figure is the mean uptime
// percentage; an empty registry reports zero.
func (r *Registry[T]) HealthReport() HealthReport {
	report := HealthReport{
		Capability:  r.opts.Capability,
		GeneratedAt: time.Now(),
	}

	sources := r.healthSources()
	if len(sources) == 0 {
		return report
	}

	var sum float64
	for _, src := range sources {
		entry := buildProviderHealth(src)
		sum += entry.UptimePercent
		report.Providers = append(report.Providers, entry)
	}
	report.OverallHealth = sum / float64(len(sources))
	return report
}

// ProviderStats returns the health entry for a single provider.
func (r *Registry[T]) ProviderStats(id string) (ProviderHealth, error) {
	r.mu.RLock()
	entry, ok := r.entries[id]
	var src healthSource
	if ok {
		src = healthSource{id: id, cfg: entry.config, health: entry.health}
	}
	r.mu.RUnlock()

	if !ok {
		return ProviderHealth{}, goerrors.NotFound("provider", id)
	}
	return buildProviderHealth(src), nil
}

func (r *Registry[T]) healthSources() []healthSource {
	r.mu.RLock()
	out := make([]healthSource, 0, len(r.entries))
	for id, entry := range r.entries {
		out = append(out, healthSource{id: id, cfg: entry.config, health: entry.health})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func buildProviderHealth(src healthSource) ProviderHealth {
	stats := src.health.Snapshot()
	p := ProviderHealth{
		ID:            src.id,
		Status:        stats.Status.String(),
		Enabled:       src.cfg.Enabled,
		Eligible:      src.health.Eligible(),
		Priority:      src.cfg.Priority,
		Weight:        src.cfg.Weight,
		SuccessRate:   stats.SuccessRate,
		UptimePercent: stats.UptimePercent,
		AvgLatencyMs:  stats.AverageLatency.Milliseconds(),
		TotalRequests: stats.TotalRequests,
		SuccessCount:  stats.SuccessCount,
		FailureCount:  stats.FailureCount,
	}
	if !stats.LastSuccessAt.IsZero() {
		t := stats.LastSuccessAt
		p.LastSuccessAt = &t
	}
	if !stats.LastFailureAt.IsZero() {
		t := stats.LastFailureAt
		p.LastFailureAt = &t
	}
	return p
}
