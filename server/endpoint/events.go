package endpoint

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/quotelab/feedgate/events"
)

// Events returns the handler for GET /v1/events, the SSE stream of audit
// events. Clients may pass ?events=<glob> to subscribe to a subset, e.g.
// ?events=dispatch.* for attempt and exhaustion events only.
func Events(hub *events.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.Query("client_id")
		if clientID == "" {
			clientID = uuid.NewString()
		}
		events.ServeSSE(hub, c.Writer, c.Request, clientID, c.Query("events"))
	}
}
