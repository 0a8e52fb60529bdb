package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"charstudio/orchestrator/internal/interfaces/httpserver/responses"
	"charstudio/orchestrator/internal/orchestrator"
)

// BalanceHandler exposes the generation credit balance.
type BalanceHandler struct {
	manager *orchestrator.Manager
	log     zerolog.Logger
}

// NewBalanceHandler constructs the handler.
func NewBalanceHandler(manager *orchestrator.Manager, log zerolog.Logger) *BalanceHandler {
	return &BalanceHandler{
		manager: manager,
		log:     log.With().Str("handler", "balance").Logger(),
	}
}

// Get handles GET /v1/balance. ?refresh=true bypasses the cache.
func (h *BalanceHandler) Get(c *gin.Context) {
	ws, err := h.manager.Workspace(UserID(c))
	if err != nil {
		responses.HandleError(c, err, "no active character")
		return
	}

	force := c.Query("refresh") == "true"
	balance, err := ws.Balance(c.Request.Context(), force)
	if err != nil {
		responses.HandleError(c, err, "failed to fetch balance")
		return
	}

	c.JSON(http.StatusOK, responses.BalanceResponse{TokenBalance: balance})
}
