package endpoint

import (
	"context"

	"github.com/gin-gonic/gin"
)

// CacheClearer invalidates cached results by key prefix.
type CacheClearer interface {
	ClearCache(ctx context.Context, prefix string) (int, error)
}

// CacheClear returns the handler for DELETE /v1/cache?prefix=. An empty
// prefix clears everything.
func CacheClear(svc CacheClearer) gin.HandlerFunc {
	return func(c *gin.Context) {
		prefix := c.Query("prefix")
		cleared, err := svc.ClearCache(c.Request.Context(), prefix)
		if err != nil {
			RespondWithError(c, err)
			return
		}
		RespondOK(c, gin.H{"cleared": cleared, "prefix": prefix})
	}
}
