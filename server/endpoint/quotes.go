package endpoint

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	goerrors "github.com/quotelab/feedgate/errors"
	"github.com/quotelab/feedgate/marketdata"
)

// QuoteService is the slice of the quote service the HTTP surface needs.
type QuoteService interface {
	GetQuotes(ctx context.Context, req marketdata.QuoteRequest, opts marketdata.FetchOptions) (*marketdata.QuoteResult, error)
}

// Quotes returns the handler for the quote dispatch API.
//
//	GET /v1/quotes?symbols=BTC,ETH&currency=usd&refresh=true&max_age=30s&provider=binance
func Quotes(svc QuoteService) gin.HandlerFunc {
	return func(c *gin.Context) {
		symbols := c.Query("symbols")
		if symbols == "" {
			RespondWithError(c, goerrors.InvalidInput("symbols", "at least one symbol is required"))
			return
		}

		req := marketdata.QuoteRequest{
			Symbols:  strings.Split(symbols, ","),
			Currency: c.Query("currency"),
		}
		opts := marketdata.FetchOptions{
			Provider: c.Query("provider"),
			Feature:  c.Query("feature"),
		}

		if refresh := c.Query("refresh"); refresh != "" {
			force, err := strconv.ParseBool(refresh)
			if err != nil {
				RespondWithError(c, goerrors.InvalidInput("refresh", "must be a boolean"))
				return
			}
			opts.ForceRefresh = force
		}

		if maxAge := c.Query("max_age"); maxAge != "" {
			d, err := time.ParseDuration(maxAge)
			if err != nil || d < 0 {
				RespondWithError(c, goerrors.InvalidInput("max_age", "must be a non-negative duration like 30s or 5m"))
				return
			}
			opts.MaxAge = d
		}

		result, err := svc.GetQuotes(c.Request.Context(), req, opts)
		if err != nil {
			RespondWithError(c, err)
			return
		}
		RespondOK(c, result)
	}
}
