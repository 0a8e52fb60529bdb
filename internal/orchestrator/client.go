package orchestrator

import (
	"context"

	"charstudio/orchestrator/internal/domain/gallery"
	"charstudio/orchestrator/internal/domain/task"
	"charstudio/orchestrator/internal/infrastructure/studio"
)

// StudioClient is the slice of the generation backend the orchestrator
// drives. Satisfied by *studio.Client.
type StudioClient interface {
	Chat(ctx context.Context, req studio.ChatRequest) (*studio.ChatResponse, error)
	Confirm(ctx context.Context, req studio.ConfirmRequest) (*studio.ChatResponse, error)
	EditChat(ctx context.Context, req studio.EditChatRequest) (*studio.ChatResponse, error)
	EditConfirm(ctx context.Context, req studio.EditConfirmRequest) (*studio.ChatResponse, error)
	Cancel(ctx context.Context, sessionID string) error
	Clear(ctx context.Context, sessionID string) error
	TaskStatus(ctx context.Context, sessionID, taskID string) (task.Snapshot, error)
	ListMedia(ctx context.Context, characterID string) ([]gallery.Record, error)
	DeleteMedia(ctx context.Context, mediaID string) error
	RetryMedia(ctx context.Context, mediaID string) (*gallery.Record, error)
	Animate(ctx context.Context, req studio.AnimateRequest) (*studio.AnimateResult, error)
	GenerateBaseImages(ctx context.Context, characterID string, count int) (*studio.BaseImagesResponse, error)
	Upload(ctx context.Context, filename string, data []byte) (*studio.UploadResult, error)
	Balance(ctx context.Context) (*studio.Balance, error)
}
