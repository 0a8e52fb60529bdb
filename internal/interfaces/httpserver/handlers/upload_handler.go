package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"charstudio/orchestrator/internal/interfaces/httpserver/responses"
	"charstudio/orchestrator/internal/orchestrator"
)

// UploadHandler forwards reference image uploads to the backend after the
// size ceiling and content sniffing gates.
type UploadHandler struct {
	client   orchestrator.StudioClient
	maxBytes int64
	log      zerolog.Logger
}

// NewUploadHandler constructs the handler.
func NewUploadHandler(client orchestrator.StudioClient, maxBytes int64, log zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		client:   client,
		maxBytes: maxBytes,
		log:      log.With().Str("handler", "upload").Logger(),
	}
}

// Upload handles POST /v1/uploads.
func (h *UploadHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, responses.ErrorResponse{Kind: "invalid_input", Error: "file field is required"})
		return
	}
	if file.Size > h.maxBytes {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, responses.ErrorResponse{Kind: "invalid_input", Error: "file exceeds the upload size limit"})
		return
	}

	reader, err := file.Open()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, responses.ErrorResponse{Kind: "invalid_input", Error: "could not read upload"})
		return
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, h.maxBytes+1))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, responses.ErrorResponse{Kind: "invalid_input", Error: "could not read upload"})
		return
	}
	if int64(len(data)) > h.maxBytes {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, responses.ErrorResponse{Kind: "invalid_input", Error: "file exceeds the upload size limit"})
		return
	}

	result, err := h.client.Upload(c.Request.Context(), file.Filename, data)
	if err != nil {
		responses.HandleError(c, err, "failed to store upload")
		return
	}

	c.JSON(http.StatusCreated, result)
}
