package marketdata

import (
	"fmt"
	"math"
	"sort"
	"strings"

	goerrors "github.com/quotelab/feedgate/errors"
	"github.com/quotelab/feedgate/validation"
)

// maxSymbols bounds one request so a single call cannot fan a huge
// batch into every provider.
const maxSymbols = 100

// maxReasonablePrice rejects obviously corrupt provider payloads.
const maxReasonablePrice = 1e9

// normalizeRequest validates the request and returns a canonical copy:
// symbols upper-cased, de-duplicated, and sorted; currency defaulted
// to USD. The canonical form doubles as the cache key input.
func normalizeRequest(req QuoteRequest) (QuoteRequest, error) {
	v := validation.New()
	v.Custom(len(req.Symbols) > 0, "symbols", "at least one symbol is required")
	v.Max("symbols", len(req.Symbols), maxSymbols)
	if appErr := v.Validate(); appErr != nil {
		return QuoteRequest{}, appErr
	}

	seen := make(map[string]bool, len(req.Symbols))
	symbols := make([]string, 0, len(req.Symbols))
	for _, s := range req.Symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			return QuoteRequest{}, goerrors.InvalidInput("symbols", "blank symbol")
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}

	return QuoteRequest{Symbols: symbols, Currency: currency}, nil
}

// quoteKey derives the canonical cache key for a normalized request.
func quoteKey(req QuoteRequest) string {
	return Capability + ":" + req.Currency + ":" + strings.Join(req.Symbols, ",")
}

// validateQuotes structurally checks a provider response before it is
// trusted or cached. A malformed payload counts as a provider failure,
// so failover moves on to the next backend instead of caching garbage.
func validateQuotes(providerID string, req QuoteRequest, quotes QuoteSet) error {
	if len(quotes) == 0 {
		return goerrors.ValidationFailed(providerID, "empty response")
	}

	for _, symbol := range req.Symbols {
		q, ok := quotes[symbol]
		if !ok {
			return goerrors.ValidationFailed(providerID, fmt.Sprintf("missing symbol %s", symbol))
		}
		if err := validateQuote(providerID, q); err != nil {
			return err
		}
	}
	return nil
}

func validateQuote(providerID string, q Quote) error {
	if q.Symbol == "" {
		return goerrors.ValidationFailed(providerID, "quote without symbol")
	}
	if math.IsNaN(q.Price) || math.IsInf(q.Price, 0) || q.Price <= 0 {
		return goerrors.ValidationFailed(providerID, fmt.Sprintf("invalid price for %s: %v", q.Symbol, q.Price))
	}
	if q.Price > maxReasonablePrice {
		return goerrors.ValidationFailed(providerID, fmt.Sprintf("absurd price for %s: %v", q.Symbol, q.Price))
	}
	if math.IsNaN(q.Volume24h) || math.IsInf(q.Volume24h, 0) || q.Volume24h < 0 {
		return goerrors.ValidationFailed(providerID, fmt.Sprintf("invalid volume for %s: %v", q.Symbol, q.Volume24h))
	}
	if math.IsNaN(q.Change24h) || math.IsInf(q.Change24h, 0) {
		return goerrors.ValidationFailed(providerID, fmt.Sprintf("invalid change for %s", q.Symbol))
	}
	return nil
}
