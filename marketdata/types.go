package marketdata

import (
	"context"
	"time"
)

// Capability is the registry capability name for quote providers.
const Capability = "quotes"

// QuoteRequest asks for current quotes for a set of symbols.
type QuoteRequest struct {
	// Symbols are the instruments to quote, e.g. BTC, ETH, AAPL.
	Symbols []string `json:"symbols"`

	// Currency is the quote currency. Defaults to USD.
	Currency string `json:"currency,omitempty"`
}

// Quote is one instrument's current market snapshot.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Change24h float64   `json:"change_24h"`
	Volume24h float64   `json:"volume_24h"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QuoteSet maps symbol to quote.
type QuoteSet map[string]Quote

// Provider is the capability interface a quote backend must implement.
// Conformance is checked at compile time when registering.
type Provider interface {
	// FetchQuotes returns quotes for every requested symbol.
	FetchQuotes(ctx context.Context, req QuoteRequest) (QuoteSet, error)
}

// FallbackSource produces synthetic quotes when every provider and the
// cache have failed. It is an external collaborator; the service treats
// its output as last-resort data and marks it accordingly.
type FallbackSource interface {
	Generate(ctx context.Context, req QuoteRequest) (QuoteSet, error)
}

// Source says where a result came from.
type Source string

const (
	// SourceLive means a provider served the request.
	SourceLive Source = "live"
	// SourceCache means a fresh cache entry served the request.
	SourceCache Source = "cache"
	// SourceStale means an expired cache entry was used as a last resort.
	SourceStale Source = "stale_cache"
	// SourceFallback means the synthetic fallback source was used.
	SourceFallback Source = "fallback"
)

// FetchOptions tune a single GetQuotes call.
type FetchOptions struct {
	// ForceRefresh skips the cache short-circuit and always dispatches.
	ForceRefresh bool `json:"force_refresh,omitempty"`

	// MaxAge overrides the service's cache freshness window.
	MaxAge time.Duration `json:"max_age,omitempty"`

	// Provider pins the dispatch to a single provider id.
	Provider string `json:"provider,omitempty"`

	// Feature restricts dispatch to providers declaring the feature.
	Feature string `json:"feature,omitempty"`
}

// QuoteResult is what the service hands back: the quotes plus the
// provenance a caller needs to render stale-data indicators.
type QuoteResult struct {
	Quotes     QuoteSet      `json:"quotes"`
	Provider   string        `json:"provider,omitempty"`
	Source     Source        `json:"source"`
	Stale      bool          `json:"stale"`
	FetchedAt  time.Time     `json:"fetched_at"`
	Attempts   int           `json:"attempts,omitempty"`
	Latency    time.Duration `json:"-"`
	LatencyMs  int64         `json:"latency_ms"`
}
