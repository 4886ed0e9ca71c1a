package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/shopmindai/chatcore/internal/realtime"
)

// ServeWS upgrades GET /ws to a duplex session. Unlike every other route, this
// one skips authRequired: the protocol authenticates in-band via the first
// "auth" frame (spec.md §4.4), since a browser WebSocket client cannot set
// an Authorization header on the upgrade request.
func (h *Handlers) ServeWS(c *gin.Context) {
	realtime.ServeWS(c.Writer, c.Request, &realtime.Deps{
		Registry: h.Registry,
		Presence: h.Presence,
		Authz:    h.Authz,
		Store:    h.Store,
		Signer:   h.Signer,
		Log:      h.Log,
	})
}
