// Package responses maps orchestration results and errors onto the HTTP
// surface.
package responses

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	flowerrors "charstudio/orchestrator/internal/domain/errors"
	"charstudio/orchestrator/internal/domain/gallery"
	"charstudio/orchestrator/internal/domain/session"
	"charstudio/orchestrator/internal/domain/task"
	"charstudio/orchestrator/internal/orchestrator"
)

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Kind    string         `json:"kind"`
	Error   string         `json:"error"`
	TaskID  string         `json:"task_id,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// HandleError classifies the error and writes the matching status code.
// Insufficient balance surfaces as 402 so the UI can route straight to the
// top-up flow.
func HandleError(c *gin.Context, err error, fallback string) {
	var fe *flowerrors.FlowError
	if errors.As(err, &fe) {
		c.AbortWithStatusJSON(fe.Kind.HTTPStatus(), ErrorResponse{
			Kind:    fe.Kind.String(),
			Error:   fe.Message,
			TaskID:  fe.TaskID,
			Details: fe.Details,
		})
		return
	}

	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
		Kind:  flowerrors.KindTransient.String(),
		Error: fallback,
	})
}

// ChatResponse is the reply to send, edit and confirm calls.
type ChatResponse struct {
	Reply       string             `json:"reply"`
	State       session.State      `json:"state"`
	Transition  session.Transition `json:"transition,omitempty"`
	Proposal    any                `json:"proposal,omitempty"`
	Suggestions []string           `json:"suggestions,omitempty"`
	Task        *task.Task         `json:"task,omitempty"`
}

// MapSendResult converts an orchestration send result.
func MapSendResult(r *orchestrator.SendResult) ChatResponse {
	out := ChatResponse{
		Reply:       r.Reply,
		State:       r.State,
		Transition:  r.Transition,
		Suggestions: r.Suggestions,
	}
	if r.Proposal != nil {
		out.Proposal = r.Proposal
	}
	return out
}

// MapConfirmResult converts a confirm result.
func MapConfirmResult(r *orchestrator.ConfirmResult) ChatResponse {
	return ChatResponse{
		Reply: r.Reply,
		State: session.StateExecuting,
		Task:  r.Task,
	}
}

// SessionResponse exposes the conversation state.
type SessionResponse struct {
	SessionID   string         `json:"session_id,omitempty"`
	CharacterID string         `json:"character_id"`
	State       session.State  `json:"state"`
	Transcript  []session.Turn `json:"transcript"`
	Proposal    any            `json:"proposal,omitempty"`
}

// MapSession converts a session copy.
func MapSession(s session.Session) SessionResponse {
	out := SessionResponse{
		SessionID:   s.ID,
		CharacterID: s.CharacterID,
		State:       s.State,
		Transcript:  s.Transcript,
	}
	if s.Proposal != nil {
		out.Proposal = s.Proposal
	}
	if out.Transcript == nil {
		out.Transcript = []session.Turn{}
	}
	return out
}

// TaskListResponse lists tracked tasks.
type TaskListResponse struct {
	Tasks []task.Task `json:"tasks"`
}

// MapTasks wraps a task list, normalizing nil to an empty slice.
func MapTasks(tasks []task.Task) TaskListResponse {
	if tasks == nil {
		tasks = []task.Task{}
	}
	return TaskListResponse{Tasks: tasks}
}

// GalleryResponse is the reconciled media view.
type GalleryResponse struct {
	CharacterID string           `json:"character_id"`
	Images      []gallery.Record `json:"images"`
	Videos      []gallery.Record `json:"videos"`
	RefreshedAt string           `json:"refreshed_at"`
}

// MapGallery converts a gallery view.
func MapGallery(v gallery.View) GalleryResponse {
	out := GalleryResponse{
		CharacterID: v.CharacterID,
		Images:      v.Images,
		Videos:      v.Videos,
	}
	if !v.RefreshedAt.IsZero() {
		out.RefreshedAt = v.RefreshedAt.UTC().Format(time.RFC3339)
	}
	if out.Images == nil {
		out.Images = []gallery.Record{}
	}
	if out.Videos == nil {
		out.Videos = []gallery.Record{}
	}
	return out
}

// BalanceResponse is the caller's credit balance.
type BalanceResponse struct {
	TokenBalance int `json:"token_balance"`
}

// StatusResponse acknowledges state-changing calls that return no body.
type StatusResponse struct {
	Status string `json:"status"`
}
