package endpoint

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quotelab/feedgate/component"
	"github.com/quotelab/feedgate/provider"
)

// HealthChecker returns health status for registered components.
type HealthChecker func(ctx context.Context) []component.Health

// ReportSource supplies the per-provider health report for the capability
// served by this process.
type ReportSource func() provider.HealthReport

// Health returns a handler that reports service health: component statuses
// plus the per-provider report. A degraded service answers 503 like an
// unhealthy one, so load balancers stop routing to a process whose
// providers are exhausted.
func Health(serviceName string, checker HealthChecker, providers ReportSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := component.StatusHealthy
		var components []component.Health

		if checker != nil {
			components = checker(c.Request.Context())
			for _, ch := range components {
				if ch.Status == component.StatusUnhealthy {
					status = component.StatusUnhealthy
					break
				}
				if ch.Status == component.StatusDegraded {
					status = component.StatusDegraded
				}
			}
		}

		httpStatus := http.StatusOK
		if status != component.StatusHealthy {
			httpStatus = http.StatusServiceUnavailable
		}

		body := gin.H{
			"status":     status,
			"service":    serviceName,
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"components": components,
		}
		if providers != nil {
			body["providers"] = providers()
		}
		c.JSON(httpStatus, body)
	}
}
