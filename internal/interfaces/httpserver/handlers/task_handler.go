package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"charstudio/orchestrator/internal/interfaces/httpserver/responses"
	"charstudio/orchestrator/internal/orchestrator"
)

// TaskHandler exposes the tracked generation tasks.
type TaskHandler struct {
	manager *orchestrator.Manager
	log     zerolog.Logger
}

// NewTaskHandler constructs the handler.
func NewTaskHandler(manager *orchestrator.Manager, log zerolog.Logger) *TaskHandler {
	return &TaskHandler{
		manager: manager,
		log:     log.With().Str("handler", "task").Logger(),
	}
}

// List handles GET /v1/tasks.
func (h *TaskHandler) List(c *gin.Context) {
	ws, err := h.manager.Workspace(UserID(c))
	if err != nil {
		responses.HandleError(c, err, "no active character")
		return
	}

	c.JSON(http.StatusOK, responses.MapTasks(ws.Tasks()))
}

// Get handles GET /v1/tasks/:task_id. An unknown id answers with a
// synthesized failed snapshot instead of a 404, so stale pollers resolve
// quietly after an eviction or restart.
func (h *TaskHandler) Get(c *gin.Context) {
	ws, err := h.manager.Workspace(UserID(c))
	if err != nil {
		responses.HandleError(c, err, "no active character")
		return
	}

	c.JSON(http.StatusOK, ws.Task(c.Param("task_id")))
}

// Cancel handles POST /v1/tasks/:task_id/cancel.
func (h *TaskHandler) Cancel(c *gin.Context) {
	ws, err := h.manager.Workspace(UserID(c))
	if err != nil {
		responses.HandleError(c, err, "no active character")
		return
	}

	if err := ws.CancelTask(c.Request.Context(), c.Param("task_id")); err != nil {
		responses.HandleError(c, err, "failed to cancel task")
		return
	}

	c.JSON(http.StatusOK, responses.StatusResponse{Status: "cancelled"})
}
