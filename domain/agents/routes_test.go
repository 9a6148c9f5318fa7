package agents

import (
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestRegisterRoutes_MountsTrigger(t *testing.T) {
	e := echo.New()
	RegisterRoutes(e, &Handler{})

	var found bool
	for _, r := range e.Routes() {
		if r.Method == "POST" && r.Path == "/api/v1/runnables/:id/trigger" {
			found = true
			break
		}
	}
	assert.True(t, found, "expected POST /api/v1/runnables/:id/trigger to be registered")
}
