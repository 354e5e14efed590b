package endpoint

import (
	"github.com/gin-gonic/gin"

	goerrors "github.com/quotelab/feedgate/errors"
	"github.com/quotelab/feedgate/provider"
)

// ProviderAdmin is the slice of the provider registry the HTTP surface
// needs. *provider.Registry satisfies it for any capability type.
type ProviderAdmin interface {
	HealthReport() provider.HealthReport
	ProviderStats(id string) (provider.ProviderHealth, error)
	SetEnabled(id string, enabled bool) error
	UpdateConfig(id string, patch provider.ConfigPatch) error
}

// ProviderList returns the handler for GET /v1/providers.
func ProviderList(reg ProviderAdmin) gin.HandlerFunc {
	return func(c *gin.Context) {
		RespondOK(c, reg.HealthReport())
	}
}

// ProviderGet returns the handler for GET /v1/providers/:id.
func ProviderGet(reg ProviderAdmin) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := reg.ProviderStats(c.Param("id"))
		if err != nil {
			RespondWithError(c, err)
			return
		}
		RespondOK(c, stats)
	}
}

// ProviderSetEnabled returns the handler for POST /v1/providers/:id/enable
// and /disable. The registry emits the audit event; the response echoes the
// new state.
func ProviderSetEnabled(reg ProviderAdmin, enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := reg.SetEnabled(id, enabled); err != nil {
			RespondWithError(c, err)
			return
		}
		RespondOK(c, gin.H{"id": id, "enabled": enabled})
	}
}

// ProviderUpdateConfig returns the handler for PATCH /v1/providers/:id/config.
// The body is a partial config document; absent fields keep their current
// values.
func ProviderUpdateConfig(reg ProviderAdmin) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		var patch provider.ConfigPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			RespondWithError(c, goerrors.InvalidInput("body", "malformed config patch: "+err.Error()))
			return
		}

		if err := reg.UpdateConfig(id, patch); err != nil {
			RespondWithError(c, err)
			return
		}

		stats, err := reg.ProviderStats(id)
		if err != nil {
			RespondWithError(c, err)
			return
		}
		RespondOK(c, stats)
	}
}
