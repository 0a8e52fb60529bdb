package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"charstudio/orchestrator/internal/domain/attachment"
	"charstudio/orchestrator/internal/interfaces/httpserver/requests"
	"charstudio/orchestrator/internal/interfaces/httpserver/responses"
	"charstudio/orchestrator/internal/orchestrator"
)

// ChatHandler exposes the conversation surface: send, edit, confirm,
// cancel and clear.
type ChatHandler struct {
	manager *orchestrator.Manager
	log     zerolog.Logger
}

// NewChatHandler constructs the handler.
func NewChatHandler(manager *orchestrator.Manager, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		manager: manager,
		log:     log.With().Str("handler", "chat").Logger(),
	}
}

// Send handles POST /v1/chat.
func (h *ChatHandler) Send(c *gin.Context) {
	var req requests.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, responses.ErrorResponse{Kind: "invalid_input", Error: "invalid request body"})
		return
	}

	ws, err := h.workspace(c)
	if err != nil {
		return
	}

	result, err := ws.Send(c.Request.Context(), orchestrator.SendInput{
		Message:       req.Message,
		ReferencePath: req.ReferenceImagePath,
		ReferenceMode: attachment.Mode(req.ReferenceImageMode),
	})
	if err != nil {
		responses.HandleError(c, err, "failed to process message")
		return
	}

	c.JSON(http.StatusOK, responses.MapSendResult(result))
}

// SendEdit handles POST /v1/chat/edit.
func (h *ChatHandler) SendEdit(c *gin.Context) {
	var req requests.EditChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, responses.ErrorResponse{Kind: "invalid_input", Error: "message and source_image_path are required"})
		return
	}

	ws, err := h.workspace(c)
	if err != nil {
		return
	}

	result, err := ws.SendEdit(c.Request.Context(), orchestrator.EditInput{
		Message:         req.Message,
		SourceImagePath: req.SourceImagePath,
	})
	if err != nil {
		responses.HandleError(c, err, "failed to process edit request")
		return
	}

	c.JSON(http.StatusOK, responses.MapSendResult(result))
}

// Confirm handles POST /v1/chat/confirm.
func (h *ChatHandler) Confirm(c *gin.Context) {
	var req requests.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, responses.ErrorResponse{Kind: "invalid_input", Error: "invalid request body"})
		return
	}

	ws, err := h.workspace(c)
	if err != nil {
		return
	}

	result, err := ws.Confirm(c.Request.Context(), orchestrator.ConfirmInput{
		AspectRatio:  req.AspectRatio,
		EditedPrompt: req.EditedPrompt,
	})
	if err != nil {
		responses.HandleError(c, err, "failed to confirm generation")
		return
	}

	c.JSON(http.StatusOK, responses.MapConfirmResult(result))
}

// Cancel handles POST /v1/chat/cancel.
func (h *ChatHandler) Cancel(c *gin.Context) {
	ws, err := h.workspace(c)
	if err != nil {
		return
	}

	ws.CancelPending(c.Request.Context())
	c.JSON(http.StatusOK, responses.StatusResponse{Status: "cancelled"})
}

// Clear handles POST /v1/chat/clear.
func (h *ChatHandler) Clear(c *gin.Context) {
	ws, err := h.workspace(c)
	if err != nil {
		return
	}

	ws.Clear(c.Request.Context())
	c.JSON(http.StatusOK, responses.StatusResponse{Status: "cleared"})
}

// Session handles GET /v1/chat/session.
func (h *ChatHandler) Session(c *gin.Context) {
	ws, err := h.workspace(c)
	if err != nil {
		return
	}

	c.JSON(http.StatusOK, responses.MapSession(ws.Session()))
}

func (h *ChatHandler) workspace(c *gin.Context) (*orchestrator.Workspace, error) {
	ws, err := h.manager.Workspace(UserID(c))
	if err != nil {
		responses.HandleError(c, err, "no active character")
		return nil, err
	}
	return ws, nil
}
