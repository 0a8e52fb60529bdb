package v1

import (
	"github.com/gin-gonic/gin"

	"charstudio/orchestrator/internal/interfaces/httpserver/handlers"
)

// Routes encapsulates versioned route registration.
type Routes struct {
	handlers *handlers.Provider
}

// NewRoutes builds the v1 route registrar.
func NewRoutes(handlerProvider *handlers.Provider) *Routes {
	return &Routes{
		handlers: handlerProvider,
	}
}

// Register attaches all v1 routes under the /v1 prefix.
func (r *Routes) Register(engine *gin.Engine) {
	group := engine.Group("/v1")
	registerChatRoutes(group, r.handlers.Chat)
	registerCharacterRoutes(group, r.handlers.Character)
	registerTaskRoutes(group, r.handlers.Task)
	registerGalleryRoutes(group, r.handlers.Gallery)

	group.POST("/uploads", r.handlers.Upload.Upload)
	group.GET("/balance", r.handlers.Balance.Get)
}
