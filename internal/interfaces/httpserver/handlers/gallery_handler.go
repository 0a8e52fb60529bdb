package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"charstudio/orchestrator/internal/interfaces/httpserver/requests"
	"charstudio/orchestrator/internal/interfaces/httpserver/responses"
	"charstudio/orchestrator/internal/orchestrator"
)

// GalleryHandler exposes the reconciled media view.
type GalleryHandler struct {
	manager *orchestrator.Manager
	log     zerolog.Logger
}

// NewGalleryHandler constructs the handler.
func NewGalleryHandler(manager *orchestrator.Manager, log zerolog.Logger) *GalleryHandler {
	return &GalleryHandler{
		manager: manager,
		log:     log.With().Str("handler", "gallery").Logger(),
	}
}

// Get handles GET /v1/gallery. Serves the cached view; the loops keep it
// converging without a fetch per request.
func (h *GalleryHandler) Get(c *gin.Context) {
	ws, err := h.manager.Workspace(UserID(c))
	if err != nil {
		responses.HandleError(c, err, "no active character")
		return
	}

	c.JSON(http.StatusOK, responses.MapGallery(ws.Gallery()))
}

// Refresh handles POST /v1/gallery/refresh: a forced reconciliation against
// the authoritative media list.
func (h *GalleryHandler) Refresh(c *gin.Context) {
	ws, err := h.manager.Workspace(UserID(c))
	if err != nil {
		responses.HandleError(c, err, "no active character")
		return
	}

	view, err := ws.RefreshGallery(c.Request.Context(), "manual")
	if err != nil {
		responses.HandleError(c, err, "failed to refresh gallery")
		return
	}

	c.JSON(http.StatusOK, responses.MapGallery(view))
}

// RetryMedia handles POST /v1/media/:media_id/retry.
func (h *GalleryHandler) RetryMedia(c *gin.Context) {
	ws, err := h.manager.Workspace(UserID(c))
	if err != nil {
		responses.HandleError(c, err, "no active character")
		return
	}

	rec, err := ws.RetryMedia(c.Request.Context(), c.Param("media_id"))
	if err != nil {
		responses.HandleError(c, err, "failed to retry media")
		return
	}

	c.JSON(http.StatusAccepted, rec)
}

// Animate handles POST /v1/media/:media_id/animate: image-to-video from a
// gallery image.
func (h *GalleryHandler) Animate(c *gin.Context) {
	ws, err := h.manager.Workspace(UserID(c))
	if err != nil {
		responses.HandleError(c, err, "no active character")
		return
	}

	var req requests.AnimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, responses.ErrorResponse{Kind: "invalid_input", Error: err.Error()})
		return
	}

	t, err := ws.Animate(c.Request.Context(), orchestrator.AnimateInput{
		ImageID:  c.Param("media_id"),
		ImageURL: req.ImageURL,
		Prompt:   req.Prompt,
	})
	if err != nil {
		responses.HandleError(c, err, "failed to start animation")
		return
	}

	c.JSON(http.StatusAccepted, t)
}
