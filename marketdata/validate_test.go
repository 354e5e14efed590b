package marketdata

import (
	"errors"
	"math"
	"testing"

	goerrors "github.com/quotelab/feedgate/errors"
)

func TestNormalizeRequest(t *testing.T) {
	req, err := normalizeRequest(QuoteRequest{
		Symbols:  []string{"eth", " BTC ", "btc", "sol"},
		Currency: "eur",
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	want := []string{"BTC", "ETH", "SOL"}
	if len(req.Symbols) != len(want) {
		t.Fatalf("expected %v, got %v", want, req.Symbols)
	}
	for i, s := range want {
		if req.Symbols[i] != s {
			t.Errorf("expected %s at %d, got %s", s, i, req.Symbols[i])
		}
	}
	if req.Currency != "EUR" {
		t.Errorf("expected EUR, got %s", req.Currency)
	}
}

func TestNormalizeRequest_DefaultsCurrency(t *testing.T) {
	req, err := normalizeRequest(QuoteRequest{Symbols: []string{"BTC"}})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if req.Currency != "USD" {
		t.Errorf("expected USD default, got %s", req.Currency)
	}
}

func TestNormalizeRequest_Rejections(t *testing.T) {
	if _, err := normalizeRequest(QuoteRequest{}); err == nil {
		t.Error("expected error for no symbols")
	}
	if _, err := normalizeRequest(QuoteRequest{Symbols: []string{"BTC", "  "}}); err == nil {
		t.Error("expected error for blank symbol")
	}

	big := make([]string, maxSymbols+1)
	for i := range big {
		big[i] = "BTC"
	}
	if _, err := normalizeRequest(QuoteRequest{Symbols: big}); err == nil {
		t.Error("expected error for oversized symbol list")
	}
}

func TestQuoteKey(t *testing.T) {
	req, err := normalizeRequest(QuoteRequest{Symbols: []string{"eth", "btc"}})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got := quoteKey(req); got != "quotes:USD:BTC,ETH" {
		t.Errorf("expected quotes:USD:BTC,ETH, got %s", got)
	}

	// The key is canonical: input order must not matter.
	other, _ := normalizeRequest(QuoteRequest{Symbols: []string{"BTC", "ETH"}})
	if quoteKey(req) != quoteKey(other) {
		t.Error("expected identical keys for equivalent requests")
	}
}

func TestValidateQuotes(t *testing.T) {
	req, _ := normalizeRequest(QuoteRequest{Symbols: []string{"BTC", "ETH"}})

	if err := validateQuotes("alpha", req, quotesFor("BTC", "ETH")); err != nil {
		t.Errorf("valid set should pass, got %v", err)
	}

	cases := []struct {
		name   string
		quotes QuoteSet
	}{
		{"empty set", QuoteSet{}},
		{"missing symbol", quotesFor("BTC")},
		{"zero price", corruptQuote("BTC", func(q *Quote) { q.Price = 0 })},
		{"negative price", corruptQuote("BTC", func(q *Quote) { q.Price = -5 })},
		{"nan price", corruptQuote("BTC", func(q *Quote) { q.Price = math.NaN() })},
		{"infinite price", corruptQuote("BTC", func(q *Quote) { q.Price = math.Inf(1) })},
		{"absurd price", corruptQuote("BTC", func(q *Quote) { q.Price = 2e9 })},
		{"negative volume", corruptQuote("BTC", func(q *Quote) { q.Volume24h = -1 })},
		{"nan change", corruptQuote("BTC", func(q *Quote) { q.Change24h = math.NaN() })},
		{"blank symbol field", corruptQuote("BTC", func(q *Quote) { q.Symbol = "" })},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateQuotes("alpha", req, tc.quotes)
			if err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
			var appErr *goerrors.AppError
			if !errors.As(err, &appErr) || appErr.Code != goerrors.ErrCodeValidationFailed {
				t.Errorf("expected VALIDATION_FAILED, got %v", err)
			}
		})
	}
}

// corruptQuote builds a full BTC+ETH set and mutates one quote.
func corruptQuote(symbol string, mutate func(*Quote)) QuoteSet {
	qs := quotesFor("BTC", "ETH")
	q := qs[symbol]
	mutate(&q)
	qs[symbol] = q
	return qs
}
