package provider

import (
	"time"

	"github.com/quotelab/feedgate/validation"
)

// RateLimit bounds dispatches to one provider within a sliding window.
type RateLimit struct {
	// Requests is the number of dispatches allowed per window.
	Requests int `json:"requests" mapstructure:"requests"`
	// Window is the trailing interval the budget applies to.
	Window time.Duration `json:"window" mapstructure:"window"`
}

// Config holds the per-provider registration settings.
type Config struct {
	// Priority orders the fallback chain; higher is tried first.
	Priority int `json:"priority" mapstructure:"priority"`

	// Weight breaks priority ties; higher wins.
	Weight int `json:"weight" mapstructure:"weight"`

	// Enabled gates membership in the fallback chain.
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// Environments the provider may serve. Empty means all.
	Environments []string `json:"environments,omitempty" mapstructure:"environments"`

	// Features the provider supports. Dispatches requiring a feature
	// only consider providers that declare it.
	Features []string `json:"features,omitempty" mapstructure:"features"`

	// RateLimit caps dispatches to this provider. Nil means unlimited.
	RateLimit *RateLimit `json:"rate_limit,omitempty" mapstructure:"rate_limit"`

	// Timeout bounds each attempt against this provider. Zero falls
	// back to the registry's attempt timeout.
	Timeout time.Duration `json:"timeout,omitempty" mapstructure:"timeout"`

	// HealthCheck enables periodic probing when the instance
	// implements HealthChecker.
	HealthCheck bool `json:"health_check" mapstructure:"health_check"`
}

// DefaultConfig returns a registration config with the defaults new
// providers start from: enabled, no rate limit, registry timeouts.
func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		HealthCheck: true,
	}
}

// Validate checks the config for sanity. Interface conformance is a
// compile-time property, so this is the only registration-time check.
func (c Config) Validate() error {
	v := validation.New()
	v.Min("priority", c.Priority, 0)
	v.Min("weight", c.Weight, 0)
	v.NonNegativeDuration("timeout", int64(c.Timeout))
	if c.RateLimit != nil {
		v.Min("rate_limit.requests", c.RateLimit.Requests, 1)
		v.Custom(c.RateLimit.Window > 0, "rate_limit.window", "must be positive")
	}
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// supportsEnvironment reports whether the provider serves env.
// An empty environment list means every environment.
func (c Config) supportsEnvironment(env string) bool {
	if env == "" || len(c.Environments) == 0 {
		return true
	}
	for _, e := range c.Environments {
		if e == env {
			return true
		}
	}
	return false
}

// supportsFeature reports whether the provider declares feature.
func (c Config) supportsFeature(feature string) bool {
	if feature == "" {
		return true
	}
	for _, f := range c.Features {
		if f == feature {
			return true
		}
	}
	return false
}

// ConfigPatch is a partial config update. Nil fields keep their
// current values. RateLimit replaces the whole budget when set; a
// budget with zero requests removes the limit.
type ConfigPatch struct {
	Priority     *int           `json:"priority,omitempty"`
	Weight       *int           `json:"weight,omitempty"`
	Enabled      *bool          `json:"enabled,omitempty"`
	Environments []string       `json:"environments,omitempty"`
	Features     []string       `json:"features,omitempty"`
	RateLimit    *RateLimit     `json:"rate_limit,omitempty"`
	Timeout      *time.Duration `json:"timeout,omitempty"`
	HealthCheck  *bool          `json:"health_check,omitempty"`
}

// apply merges the patch into a config and returns the result.
func (p ConfigPatch) apply(c Config) Config {
	if p.Priority != nil {
		c.Priority = *p.Priority
	}
	if p.Weight != nil {
		c.Weight = *p.Weight
	}
	if p.Enabled != nil {
		c.Enabled = *p.Enabled
	}
	if p.Environments != nil {
		c.Environments = p.Environments
	}
	if p.Features != nil {
		c.Features = p.Features
	}
	if p.RateLimit != nil {
		if p.RateLimit.Requests <= 0 {
			c.RateLimit = nil
		} else {
			c.RateLimit = p.RateLimit
		}
	}
	if p.Timeout != nil {
		c.Timeout = *p.Timeout
	}
	if p.HealthCheck != nil {
		c.HealthCheck = *p.HealthCheck
	}
	return c
}
