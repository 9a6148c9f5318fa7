package agents

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes wires the module's single HTTP surface onto the shared
// Echo instance. The teacher scoped its equivalent routes behind
// project/auth middleware; that entire surface (tenancy, session auth,
// API-key auth) is out of scope here, so the trigger endpoint is open —
// see DESIGN.md.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	g := e.Group("/api/v1/runnables")
	g.POST("/:id/trigger", h.Trigger)
}
