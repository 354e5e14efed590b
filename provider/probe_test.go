package provider

import (
	"context"
	"testing"
	"time"
)

func TestRegistry_ProbeLoopRefreshesIdleStats(t *testing.T) {
	r := testRegistry(t, func(o *Options) {
		o.ProbeInterval = 15 * time.Millisecond
		o.ProbeTimeout = 100 * time.Millisecond
	})

	backend := newBackend("ok")
	cfg := DefaultConfig()
	cfg.Priority = 1
	if err := r.Register("alpha", backend, cfg); err != nil {
		t.Fatalf("register: %v", err)
	}

	r.Start()
	time.Sleep(60 * time.Millisecond)
	r.Stop()

	stats, err := r.ProviderStats("alpha")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	// One from the registration probe plus at least one loop pass.
	if stats.SuccessCount < 2 {
		t.Errorf("expected the loop to add probe successes, got %+v", stats)
	}
	if stats.FailureCount != 0 {
		t.Errorf("healthy backend should not accrue failures, got %+v", stats)
	}
}

func TestRegistry_ProbeRecordsUnhealthyAsFailure(t *testing.T) {
	r := testRegistry(t, func(o *Options) {
		o.ProbeInterval = 15 * time.Millisecond
		o.ProbeTimeout = 100 * time.Millisecond
	})

	backend := newBackend("flaky")
	cfg := DefaultConfig()
	if err := r.Register("alpha", backend, cfg); err != nil {
		t.Fatalf("register: %v", err)
	}
	backend.setHealthy(false)

	r.Start()
	time.Sleep(60 * time.Millisecond)
	r.Stop()

	stats, err := r.ProviderStats("alpha")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.FailureCount == 0 {
		t.Errorf("expected probe failures for an unhealthy backend, got %+v", stats)
	}
}

func TestRegistry_ProbeTimeoutCountsAsFailure(t *testing.T) {
	r := testRegistry(t, func(o *Options) {
		o.ProbeTimeout = 10 * time.Millisecond
	})

	backend := newBackend("slow")
	backend.healthyDelay = 200 * time.Millisecond
	cfg := DefaultConfig()
	if err := r.Register("alpha", backend, cfg); err != nil {
		t.Fatalf("register: %v", err)
	}

	// The registration probe is synchronous, so the timeout failure is
	// already recorded.
	stats, err := r.ProviderStats("alpha")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.FailureCount != 1 {
		t.Errorf("expected probe timeout recorded as failure, got %+v", stats)
	}
}

func TestRegistry_ProbeSkipsProvidersWithoutHealthCheck(t *testing.T) {
	r := testRegistry(t, func(o *Options) {
		o.ProbeInterval = 10 * time.Millisecond
	})

	backend := newBackend("quiet")
	if err := r.Register("alpha", backend, testConfig(1)); err != nil {
		t.Fatalf("register: %v", err)
	}

	r.Start()
	time.Sleep(40 * time.Millisecond)
	r.Stop()

	stats, err := r.ProviderStats("alpha")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalRequests != 0 {
		t.Errorf("health checks disabled, expected untouched stats, got %+v", stats)
	}
}

func TestRegistry_ProbeEmitsAuditEvents(t *testing.T) {
	sink := &captureSink{}
	r := testRegistry(t, func(o *Options) { o.Audit = sink })

	cfg := DefaultConfig()
	if err := r.Register("alpha", newBackend("ok"), cfg); err != nil {
		t.Fatalf("register: %v", err)
	}

	probes := sink.named(EventProbe)
	if len(probes) != 1 {
		t.Fatalf("expected 1 probe event from registration, got %d", len(probes))
	}
	if probes[0].Payload["healthy"] != true {
		t.Errorf("expected healthy probe payload, got %v", probes[0].Payload)
	}
}

func TestRegistry_StartStopIdempotent(t *testing.T) {
	r := testRegistry(t)

	r.Stop() // never started

	r.Start()
	r.Start() // second start is a no-op
	r.Stop()
	r.Stop() // second stop is a no-op
}

func TestRegistry_CloseStopsLoops(t *testing.T) {
	r := testRegistry(t, func(o *Options) {
		o.ProbeInterval = 10 * time.Millisecond
	})

	backend := newBackend("ok")
	cfg := DefaultConfig()
	if err := r.Register("alpha", backend, cfg); err != nil {
		t.Fatalf("register: %v", err)
	}

	r.Start()
	if err := r.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	stats, _ := r.ProviderStats("alpha")
	before := stats.TotalRequests
	time.Sleep(40 * time.Millisecond)
	stats, _ = r.ProviderStats("alpha")
	if stats.TotalRequests != before {
		t.Error("probe loop should not run after close")
	}

	r.Start() // closed registries must not restart loops
	time.Sleep(30 * time.Millisecond)
	stats, _ = r.ProviderStats("alpha")
	if stats.TotalRequests != before {
		t.Error("start after close must be a no-op")
	}
}
