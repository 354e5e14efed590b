package resilience

import (
	"sync"
	"time"
)

// Status represents the health classification of a tracked provider.
type Status int

const (
	// StatusHealthy indicates a success rate of at least 95%.
	StatusHealthy Status = iota
	// StatusDegraded indicates a success rate between 80% and 95%.
	StatusDegraded
	// StatusUnhealthy indicates a success rate between 50% and 80%.
	StatusUnhealthy
	// StatusOffline indicates a success rate below 50%.
	StatusOffline
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	case StatusOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Classification boundaries over the rolling success rate.
const (
	healthyMinRate   = 0.95
	degradedMinRate  = 0.80
	unhealthyMinRate = 0.50
)

// DefaultEligibilityThreshold is the minimum success rate required for
// dispatch when no threshold is configured.
const DefaultEligibilityThreshold = 0.80

// HealthConfig configures a health tracker.
type HealthConfig struct {
	// Name identifies the tracked provider for metrics/logging.
	Name string
	// EligibilityThreshold is the minimum success rate for dispatch
	// eligibility. Defaults to DefaultEligibilityThreshold.
	EligibilityThreshold float64
	// OnStatusChange is called when the classification changes.
	OnStatusChange func(name string, from, to Status)
}

// DefaultHealthConfig returns sensible defaults.
func DefaultHealthConfig(name string) HealthConfig {
	return HealthConfig{
		Name:                 name,
		EligibilityThreshold: DefaultEligibilityThreshold,
	}
}

// HealthStats is a point-in-time copy of a tracker's counters.
type HealthStats struct {
	SuccessCount   int64         `json:"success_count"`
	FailureCount   int64         `json:"failure_count"`
	TotalRequests  int64         `json:"total_requests"`
	SuccessRate    float64       `json:"success_rate"`
	UptimePercent  float64       `json:"uptime_percent"`
	AverageLatency time.Duration `json:"average_latency"`
	LastSuccessAt  time.Time     `json:"last_success_at,omitempty"`
	LastFailureAt  time.Time     `json:"last_failure_at,omitempty"`
	Status         Status        `json:"-"`
}

// HealthTracker keeps rolling success statistics for one provider and
// derives a health classification from them.
//
// The success rate defaults to 1.0 before any request is recorded, so a
// freshly registered provider starts healthy and eligible. Counters are
// never reset for the lifetime of the tracker.
type HealthTracker struct {
	config HealthConfig

	mu          sync.RWMutex
	successes   int64
	failures    int64
	avgLatency  time.Duration
	lastSuccess time.Time
	lastFailure time.Time
	status      Status
}

// NewHealthTracker creates a new health tracker.
func NewHealthTracker(config HealthConfig) *HealthTracker {
	if config.EligibilityThreshold <= 0 {
		config.EligibilityThreshold = DefaultEligibilityThreshold
	}

	return &HealthTracker{
		config: config,
		status: StatusHealthy,
	}
}

// RecordSuccess records a successful request and its observed latency.
// The running latency average is a simple (old+new)/2 blend, which
// weights recent samples heavily rather than forming a true mean.
func (h *HealthTracker) RecordSuccess(latency time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.successes++
	h.lastSuccess = time.Now()

	if h.avgLatency == 0 {
		h.avgLatency = latency
	} else {
		h.avgLatency = (h.avgLatency + latency) / 2
	}

	h.reclassify()
}

// RecordFailure records a failed request. Latency is not sampled on
// failure; timeouts would skew the average toward the deadline.
func (h *HealthTracker) RecordFailure() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.failures++
	h.lastFailure = time.Now()

	h.reclassify()
}

// SuccessRate returns the rolling success rate in [0, 1].
func (h *HealthTracker) SuccessRate() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.successRate()
}

// Status returns the current health classification.
func (h *HealthTracker) Status() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// Eligible reports whether the provider may receive dispatches: it must
// not be offline and its success rate must meet the configured threshold.
// Classification is informational; this is the gate.
func (h *HealthTracker) Eligible() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status != StatusOffline && h.successRate() >= h.config.EligibilityThreshold
}

// Snapshot returns a copy of the current counters.
func (h *HealthTracker) Snapshot() HealthStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rate := h.successRate()
	return HealthStats{
		SuccessCount:   h.successes,
		FailureCount:   h.failures,
		TotalRequests:  h.successes + h.failures,
		SuccessRate:    rate,
		UptimePercent:  rate * 100,
		AverageLatency: h.avgLatency,
		LastSuccessAt:  h.lastSuccess,
		LastFailureAt:  h.lastFailure,
		Status:         h.status,
	}
}

// successRate computes the rolling rate. Callers must hold the lock.
func (h *HealthTracker) successRate() float64 {
	total := h.successes + h.failures
	if total == 0 {
		return 1.0
	}
	return float64(h.successes) / float64(total)
}

// reclassify recomputes the status from the success rate. Callers must
// hold the write lock.
func (h *HealthTracker) reclassify() {
	to := classify(h.successRate())
	if to == h.status {
		return
	}

	from := h.status
	h.status = to

	if h.config.OnStatusChange != nil {
		h.config.OnStatusChange(h.config.Name, from, to)
	}
}

// classify maps a success rate to a status.
func classify(rate float64) Status {
	switch {
	case rate >= healthyMinRate:
		return StatusHealthy
	case rate >= degradedMinRate:
		return StatusDegraded
	case rate >= unhealthyMinRate:
		return StatusUnhealthy
	default:
		return StatusOffline
	}
}
