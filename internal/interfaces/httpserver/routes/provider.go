// Package routes coordinates route registration for the orchestrator API.
package routes

import (
	"github.com/gin-gonic/gin"

	"charstudio/orchestrator/internal/interfaces/httpserver/handlers"
	v1 "charstudio/orchestrator/internal/interfaces/httpserver/routes/v1"
)

// Provider coordinates all route registrations.
type Provider struct {
	V1 *v1.Routes
}

// NewProvider constructs the route provider.
func NewProvider(handlerProvider *handlers.Provider) *Provider {
	return &Provider{
		V1: v1.NewRoutes(handlerProvider),
	}
}

// Register attaches all available routes to the gin engine.
func (p *Provider) Register(engine *gin.Engine) {
	p.V1.Register(engine)
}
