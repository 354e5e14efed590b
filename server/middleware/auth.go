package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/quotelab/feedgate/logger"
)

// AuthConfig configures the bearer-token authentication middleware.
type AuthConfig struct {
	// TokenValidator validates a token string and returns the claims.
	TokenValidator func(token string) (map[string]interface{}, error)
	// Logger receives one line per authorized request. Nil falls back to
	// the global logger.
	Logger *logger.Logger
}

// Auth returns a Gin middleware that validates Bearer tokens using the
// configured TokenValidator. Validated claims are stored in the Gin context.
// Applied per route group, so the public quote surface stays open while the
// admin operations require credentials. Every authorized request is logged
// with its subject, giving mutating calls an actor trail.
func Auth(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			unauthorized(c, "Authorization header missing or malformed")
			return
		}

		claims, err := cfg.TokenValidator(token)
		if err != nil {
			unauthorized(c, "Invalid token")
			return
		}

		for key, value := range claims {
			c.Set(key, value)
		}

		fields := map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		}
		if sub, ok := claims["sub"].(string); ok {
			fields["sub"] = sub
		}
		if id := c.GetHeader(HeaderRequestID); id != "" {
			fields["request_id"] = id
		}
		if cfg.Logger != nil {
			cfg.Logger.Info("Admin request authorized", fields)
		} else {
			logger.Info("Admin request authorized", fields)
		}

		c.Next()
	}
}

// bearerToken extracts the token from an Authorization header value.
func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}
