package v1

import (
	"github.com/gin-gonic/gin"

	"charstudio/orchestrator/internal/interfaces/httpserver/handlers"
)

func registerChatRoutes(router gin.IRoutes, handler *handlers.ChatHandler) {
	router.POST("/chat", handler.Send)
	router.POST("/chat/edit", handler.SendEdit)
	router.POST("/chat/confirm", handler.Confirm)
	router.POST("/chat/cancel", handler.Cancel)
	router.POST("/chat/clear", handler.Clear)
	router.GET("/chat/session", handler.Session)
}

func registerCharacterRoutes(router gin.IRoutes, handler *handlers.CharacterHandler) {
	router.POST("/characters/:character_id/activate", handler.Activate)
	router.POST("/characters/:character_id/base-images", handler.GenerateBaseImages)
}

func registerTaskRoutes(router gin.IRoutes, handler *handlers.TaskHandler) {
	router.GET("/tasks", handler.List)
	router.GET("/tasks/:task_id", handler.Get)
	router.POST("/tasks/:task_id/cancel", handler.Cancel)
}

func registerGalleryRoutes(router gin.IRoutes, handler *handlers.GalleryHandler) {
	router.GET("/gallery", handler.Get)
	router.POST("/gallery/refresh", handler.Refresh)
	router.POST("/media/:media_id/retry", handler.RetryMedia)
	router.POST("/media/:media_id/animate", handler.Animate)
}
