// Package handlers holds the gin entrypoints of the orchestrator API.
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"charstudio/orchestrator/internal/orchestrator"
)

// userIDHeader identifies the UI session making the request. Each user gets
// an isolated workspace.
const userIDHeader = "X-User-ID"

// defaultUserID is the single-user fallback when no header is sent.
const defaultUserID = "local"

// UserID extracts the caller identity from the request.
func UserID(c *gin.Context) string {
	if id := c.GetHeader(userIDHeader); id != "" {
		return id
	}
	return defaultUserID
}

// Provider wires all HTTP handlers for dependency injection.
type Provider struct {
	Chat      *ChatHandler
	Character *CharacterHandler
	Task      *TaskHandler
	Gallery   *GalleryHandler
	Upload    *UploadHandler
	Balance   *BalanceHandler
}

// NewProvider constructs the handler provider.
func NewProvider(manager *orchestrator.Manager, client orchestrator.StudioClient, maxUploadBytes int64, log zerolog.Logger) *Provider {
	return &Provider{
		Chat:      NewChatHandler(manager, log),
		Character: NewCharacterHandler(manager, log),
		Task:      NewTaskHandler(manager, log),
		Gallery:   NewGalleryHandler(manager, log),
		Upload:    NewUploadHandler(client, maxUploadBytes, log),
		Balance:   NewBalanceHandler(manager, log),
	}
}
