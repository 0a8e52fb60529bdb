package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"charstudio/orchestrator/internal/interfaces/httpserver/requests"
	"charstudio/orchestrator/internal/interfaces/httpserver/responses"
	"charstudio/orchestrator/internal/orchestrator"
)

// CharacterHandler switches the active character context and spawns base
// image batches.
type CharacterHandler struct {
	manager *orchestrator.Manager
	log     zerolog.Logger
}

// NewCharacterHandler constructs the handler.
func NewCharacterHandler(manager *orchestrator.Manager, log zerolog.Logger) *CharacterHandler {
	return &CharacterHandler{
		manager: manager,
		log:     log.With().Str("handler", "character").Logger(),
	}
}

// Activate handles POST /v1/characters/:character_id/activate. The session,
// task registry and gallery all swap together.
func (h *CharacterHandler) Activate(c *gin.Context) {
	characterID := c.Param("character_id")

	ws, err := h.manager.ActivateCharacter(c.Request.Context(), UserID(c), characterID)
	if err != nil {
		responses.HandleError(c, err, "failed to activate character")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "activated",
		"character_id": ws.CharacterID(),
		"session":      responses.MapSession(ws.Session()),
		"gallery":      responses.MapGallery(ws.Gallery()),
	})
}

// GenerateBaseImages handles POST /v1/characters/:character_id/base-images.
func (h *CharacterHandler) GenerateBaseImages(c *gin.Context) {
	var req requests.BaseImagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, responses.ErrorResponse{Kind: "invalid_input", Error: "invalid request body"})
		return
	}

	ws, err := h.manager.Workspace(UserID(c))
	if err != nil {
		responses.HandleError(c, err, "no active character")
		return
	}
	if ws.CharacterID() != c.Param("character_id") {
		c.AbortWithStatusJSON(http.StatusConflict, responses.ErrorResponse{Kind: "wrong_state", Error: "character is not the active one"})
		return
	}

	tasks, err := ws.GenerateBaseImages(c.Request.Context(), req.Count)
	if err != nil {
		responses.HandleError(c, err, "failed to start base image batch")
		return
	}

	c.JSON(http.StatusAccepted, responses.MapTasks(tasks))
}
