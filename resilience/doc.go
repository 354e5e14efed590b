// Package resilience provides the fault-tolerance primitives behind
// provider dispatch.
//
// This package includes:
//   - HealthTracker: Rolling success statistics and health classification
//   - SlidingLimiter: Per-key request rate bounding over a trailing window
//   - Bulkhead: Limits concurrent access to isolate failures
//   - Backoff: Linear delays between failover attempts
//
// The registry combines these per provider:
//
//	ht := resilience.NewHealthTracker(resilience.DefaultHealthConfig("alpha"))
//	rl := resilience.NewSlidingLimiter(resilience.SlidingLimiterConfig{})
//
//	d := rl.Check("quotes:alpha", 30, time.Minute)
//	if !d.Allowed {
//	    // skip this provider until d.ResetAt
//	}
//	ht.RecordSuccess(42 * time.Millisecond)
package resilience
