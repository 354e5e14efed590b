package resilience

import (
	"testing"
	"time"
)

func record(h *HealthTracker, successes, failures int) {
	for i := 0; i < successes; i++ {
		h.RecordSuccess(10 * time.Millisecond)
	}
	for i := 0; i < failures; i++ {
		h.RecordFailure()
	}
}

func TestHealthTracker_StartsHealthy(t *testing.T) {
	h := NewHealthTracker(DefaultHealthConfig("alpha"))

	if got := h.SuccessRate(); got != 1.0 {
		t.Errorf("expected default success rate 1.0, got %f", got)
	}
	if got := h.Status(); got != StatusHealthy {
		t.Errorf("expected healthy before any requests, got %s", got)
	}
	if !h.Eligible() {
		t.Error("expected a fresh tracker to be eligible")
	}
}

func TestHealthTracker_Classification(t *testing.T) {
	tests := []struct {
		name      string
		successes int
		failures  int
		want      Status
	}{
		{"all successes", 20, 0, StatusHealthy},
		{"rate at 0.95 boundary", 19, 1, StatusHealthy},
		{"rate just below 0.95", 94, 6, StatusDegraded},
		{"rate at 0.80 boundary", 16, 4, StatusDegraded},
		{"rate just below 0.80", 15, 5, StatusUnhealthy},
		{"rate at 0.50 boundary", 10, 10, StatusUnhealthy},
		{"rate below 0.50", 9, 11, StatusOffline},
		{"all failures", 0, 5, StatusOffline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthTracker(DefaultHealthConfig("alpha"))
			record(h, tt.successes, tt.failures)

			if got := h.Status(); got != tt.want {
				t.Errorf("after %d/%d: expected %s, got %s",
					tt.successes, tt.failures, tt.want, got)
			}
		})
	}
}

func TestHealthTracker_EligibilityGatesOnThreshold(t *testing.T) {
	// 60% success: unhealthy but not offline. The default 0.80
	// threshold blocks dispatch even though the status alone would not.
	h := NewHealthTracker(DefaultHealthConfig("alpha"))
	record(h, 3, 2)

	if got := h.Status(); got != StatusUnhealthy {
		t.Fatalf("expected unhealthy, got %s", got)
	}
	if h.Eligible() {
		t.Error("expected 60% success rate to fail the default threshold")
	}

	// The same rate passes a lowered threshold.
	relaxed := NewHealthTracker(HealthConfig{Name: "alpha", EligibilityThreshold: 0.5})
	record(relaxed, 3, 2)

	if !relaxed.Eligible() {
		t.Error("expected 60% success rate to pass a 0.5 threshold")
	}
}

func TestHealthTracker_OfflineNeverEligible(t *testing.T) {
	h := NewHealthTracker(HealthConfig{Name: "alpha", EligibilityThreshold: 0.1})
	record(h, 1, 4)

	if got := h.Status(); got != StatusOffline {
		t.Fatalf("expected offline, got %s", got)
	}
	if h.Eligible() {
		t.Error("offline providers must not be eligible regardless of threshold")
	}
}

func TestHealthTracker_RecoveryRestoresEligibility(t *testing.T) {
	h := NewHealthTracker(DefaultHealthConfig("alpha"))
	record(h, 0, 3)

	if h.Eligible() {
		t.Fatal("expected ineligibility after consecutive failures")
	}

	// Counters are cumulative, so recovery takes sustained successes.
	record(h, 12, 0)

	if got := h.SuccessRate(); got < 0.80 {
		t.Fatalf("expected rate to recover to 0.80, got %f", got)
	}
	if !h.Eligible() {
		t.Error("expected eligibility after recovery")
	}
}

func TestHealthTracker_LatencyBlend(t *testing.T) {
	h := NewHealthTracker(DefaultHealthConfig("alpha"))

	h.RecordSuccess(100 * time.Millisecond)
	if got := h.Snapshot().AverageLatency; got != 100*time.Millisecond {
		t.Errorf("expected first sample to set the average, got %v", got)
	}

	h.RecordSuccess(200 * time.Millisecond)
	if got := h.Snapshot().AverageLatency; got != 150*time.Millisecond {
		t.Errorf("expected (100+200)/2 = 150ms, got %v", got)
	}

	h.RecordSuccess(50 * time.Millisecond)
	if got := h.Snapshot().AverageLatency; got != 100*time.Millisecond {
		t.Errorf("expected (150+50)/2 = 100ms, got %v", got)
	}
}

func TestHealthTracker_FailureDoesNotSampleLatency(t *testing.T) {
	h := NewHealthTracker(DefaultHealthConfig("alpha"))

	h.RecordSuccess(100 * time.Millisecond)
	h.RecordFailure()

	if got := h.Snapshot().AverageLatency; got != 100*time.Millisecond {
		t.Errorf("expected failure to leave latency average at 100ms, got %v", got)
	}
}

func TestHealthTracker_StatusChangeCallback(t *testing.T) {
	type change struct {
		from, to Status
	}
	var changes []change

	h := NewHealthTracker(HealthConfig{
		Name: "alpha",
		OnStatusChange: func(name string, from, to Status) {
			if name != "alpha" {
				t.Errorf("expected name alpha, got %s", name)
			}
			changes = append(changes, change{from, to})
		},
	})

	// First failure drops the rate from the default 1.0 straight to 0.
	h.RecordFailure()

	if len(changes) != 1 {
		t.Fatalf("expected 1 status change, got %d", len(changes))
	}
	if changes[0].from != StatusHealthy || changes[0].to != StatusOffline {
		t.Errorf("expected healthy->offline, got %s->%s", changes[0].from, changes[0].to)
	}

	// Further failures keep the status at offline without firing again.
	h.RecordFailure()
	if len(changes) != 1 {
		t.Errorf("expected no callback without a transition, got %d", len(changes))
	}
}

func TestHealthTracker_Snapshot(t *testing.T) {
	h := NewHealthTracker(DefaultHealthConfig("alpha"))
	record(h, 8, 2)

	s := h.Snapshot()
	if s.SuccessCount != 8 || s.FailureCount != 2 || s.TotalRequests != 10 {
		t.Errorf("unexpected counters: %+v", s)
	}
	if s.SuccessRate != 0.8 {
		t.Errorf("expected success rate 0.8, got %f", s.SuccessRate)
	}
	if s.UptimePercent != 80 {
		t.Errorf("expected uptime 80, got %f", s.UptimePercent)
	}
	if s.Status != StatusDegraded {
		t.Errorf("expected degraded, got %s", s.Status)
	}
	if s.LastSuccessAt.IsZero() || s.LastFailureAt.IsZero() {
		t.Error("expected last success/failure timestamps to be set")
	}
}

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusHealthy, "healthy"},
		{StatusDegraded, "degraded"},
		{StatusUnhealthy, "unhealthy"},
		{StatusOffline, "offline"},
		{Status(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}
