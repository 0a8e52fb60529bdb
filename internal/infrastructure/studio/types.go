package studio

import (
	"time"

	"charstudio/orchestrator/internal/domain/attachment"
	"charstudio/orchestrator/internal/domain/gallery"
	"charstudio/orchestrator/internal/domain/proposal"
	"charstudio/orchestrator/internal/domain/session"
	"charstudio/orchestrator/internal/domain/status"
	"charstudio/orchestrator/internal/domain/task"
)

// ChatRequest is the propose/modify call payload.
type ChatRequest struct {
	Message            string          `json:"message"`
	CharacterID        string          `json:"character_id,omitempty"`
	SessionID          string          `json:"session_id,omitempty"`
	ReferenceImagePath string          `json:"reference_image_path,omitempty"`
	ReferenceImageMode attachment.Mode `json:"reference_image_mode,omitempty"`
}

// ConfirmRequest approves a pending generation. The proposal is echoed back
// so confirmation survives a backend restart.
type ConfirmRequest struct {
	SessionID         string             `json:"session_id"`
	AspectRatio       string             `json:"aspect_ratio"`
	Modifications     string             `json:"modifications,omitempty"`
	EditedPrompt      string             `json:"edited_prompt,omitempty"`
	CharacterID       string             `json:"character_id,omitempty"`
	PendingGeneration *PendingGeneration `json:"pending_generation,omitempty"`
}

// EditChatRequest opens an image-edit conversation round.
type EditChatRequest struct {
	Message         string `json:"message"`
	SourceImagePath string `json:"source_image_path"`
	CharacterID     string `json:"character_id,omitempty"`
	SessionID       string `json:"session_id,omitempty"`
}

// EditConfirmRequest approves a pending image edit.
type EditConfirmRequest struct {
	SessionID    string       `json:"session_id"`
	AspectRatio  string       `json:"aspect_ratio"`
	EditedPrompt string       `json:"edited_prompt,omitempty"`
	CharacterID  string       `json:"character_id,omitempty"`
	PendingEdit  *PendingEdit `json:"pending_edit,omitempty"`
}

// PendingGenerationParams is the wire form of generation parameters.
type PendingGenerationParams struct {
	ContentType        string          `json:"content_type,omitempty"`
	Style              string          `json:"style,omitempty"`
	Cloth              string          `json:"cloth,omitempty"`
	SceneDescription   string          `json:"scene_description,omitempty"`
	AspectRatio        string          `json:"aspect_ratio,omitempty"`
	ReferenceImagePath string          `json:"reference_image_path,omitempty"`
	ReferenceImageMode attachment.Mode `json:"reference_image_mode,omitempty"`
}

// PendingGeneration is the wire form of a pending generation proposal.
type PendingGeneration struct {
	Skill           string                  `json:"skill"`
	Params          PendingGenerationParams `json:"params"`
	OptimizedPrompt string                  `json:"optimized_prompt"`
	Reasoning       string                  `json:"reasoning"`
	Suggestions     []string                `json:"suggestions,omitempty"`
}

// PendingEditParams is the wire form of image-edit parameters.
type PendingEditParams struct {
	SourceImagePath         string `json:"source_image_path"`
	EditType                string `json:"edit_type,omitempty"`
	EditInstruction         string `json:"edit_instruction"`
	AdditionalReferencePath string `json:"additional_reference_path,omitempty"`
}

// PendingEdit is the wire form of a pending image-edit proposal.
type PendingEdit struct {
	Skill           string            `json:"skill"`
	Params          PendingEditParams `json:"params"`
	OptimizedPrompt string            `json:"optimized_prompt"`
	Reasoning       string            `json:"reasoning"`
	Suggestions     []string          `json:"suggestions,omitempty"`
}

// GenerationTask is the wire form of a background task status.
type GenerationTask struct {
	TaskID            string `json:"task_id"`
	Status            string `json:"status"`
	Progress          int    `json:"progress"`
	Stage             string `json:"stage"`
	Prompt            string `json:"prompt"`
	ReferenceImageURL string `json:"reference_image_url,omitempty"`
	ResultURL         string `json:"result_url,omitempty"`
	Error             string `json:"error,omitempty"`
	CreatedAt         string `json:"created_at"`
}

// ChatResponse is the backend reply for chat, confirm and edit calls.
type ChatResponse struct {
	Message           string             `json:"message"`
	SessionID         string             `json:"session_id"`
	State             session.State      `json:"state"`
	PendingGeneration *PendingGeneration `json:"pending_generation,omitempty"`
	PendingEdit       *PendingEdit       `json:"pending_edit,omitempty"`
	ActionTaken       string             `json:"action_taken,omitempty"`
	Result            map[string]any     `json:"result,omitempty"`
	ActiveTask        *GenerationTask    `json:"active_task,omitempty"`
}

// Proposal converts whichever pending payload is present into the domain
// proposal, or nil when the reply carries none.
func (r *ChatResponse) Proposal() *proposal.Proposal {
	if r.PendingGeneration != nil {
		pg := r.PendingGeneration
		return &proposal.Proposal{
			Skill: proposal.Skill(pg.Skill),
			Params: proposal.Params{
				ContentType:   pg.Params.ContentType,
				Style:         pg.Params.Style,
				Cloth:         pg.Params.Cloth,
				SceneDesc:     pg.Params.SceneDescription,
				AspectRatio:   pg.Params.AspectRatio,
				ReferencePath: pg.Params.ReferenceImagePath,
				ReferenceMode: pg.Params.ReferenceImageMode,
			},
			OptimizedPrompt: pg.OptimizedPrompt,
			Reasoning:       pg.Reasoning,
			Suggestions:     pg.Suggestions,
		}
	}
	if r.PendingEdit != nil {
		pe := r.PendingEdit
		return &proposal.Proposal{
			Skill: proposal.SkillImageEditor,
			EditParams: &proposal.EditParams{
				SourceImagePath: pe.Params.SourceImagePath,
				EditType:        pe.Params.EditType,
				EditInstruction: pe.Params.EditInstruction,
				ExtraRefPath:    pe.Params.AdditionalReferencePath,
			},
			OptimizedPrompt: pe.OptimizedPrompt,
			Reasoning:       pe.Reasoning,
			Suggestions:     pe.Suggestions,
		}
	}
	return nil
}

// Task converts the active task payload into a domain task of the given
// server kind, or nil when absent.
func (r *ChatResponse) Task(serverKind task.Kind) *task.Task {
	if r.ActiveTask == nil {
		return nil
	}
	return r.ActiveTask.toTask(serverKind)
}

func (g *GenerationTask) toTask(serverKind task.Kind) *task.Task {
	t := &task.Task{
		ID:           g.TaskID,
		Kind:         task.KindForID(g.TaskID, serverKind),
		Status:       status.Status(g.Status),
		Progress:     g.Progress,
		Stage:        g.Stage,
		Prompt:       g.Prompt,
		ReferenceURL: g.ReferenceImageURL,
		ResultURL:    g.ResultURL,
		Error:        g.Error,
		CreatedAt:    parseTimestamp(g.CreatedAt),
	}
	if t.Status == "" {
		t.Status = status.StatusPending
	}
	return t
}

func (g *GenerationTask) toSnapshot() task.Snapshot {
	return task.Snapshot{
		ID:        g.TaskID,
		Status:    status.Status(g.Status),
		Progress:  g.Progress,
		Stage:     g.Stage,
		ResultURL: g.ResultURL,
		Error:     g.Error,
	}
}

func parseTimestamp(raw string) time.Time {
	if raw == "" {
		return time.Now()
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	return time.Now()
}

// FromProposal converts a domain proposal into the wire payload echoed back
// on confirm.
func FromProposal(p *proposal.Proposal) *PendingGeneration {
	if p == nil || p.IsEdit() {
		return nil
	}
	return &PendingGeneration{
		Skill: string(p.Skill),
		Params: PendingGenerationParams{
			ContentType:        p.Params.ContentType,
			Style:              p.Params.Style,
			Cloth:              p.Params.Cloth,
			SceneDescription:   p.Params.SceneDesc,
			AspectRatio:        p.Params.AspectRatio,
			ReferenceImagePath: p.Params.ReferencePath,
			ReferenceImageMode: p.Params.ReferenceMode,
		},
		OptimizedPrompt: p.OptimizedPrompt,
		Reasoning:       p.Reasoning,
		Suggestions:     p.Suggestions,
	}
}

// FromEditProposal converts an edit proposal into the wire payload echoed
// back on edit confirm.
func FromEditProposal(p *proposal.Proposal) *PendingEdit {
	if p == nil || p.EditParams == nil {
		return nil
	}
	return &PendingEdit{
		Skill: string(proposal.SkillImageEditor),
		Params: PendingEditParams{
			SourceImagePath:         p.EditParams.SourceImagePath,
			EditType:                p.EditParams.EditType,
			EditInstruction:         p.EditParams.EditInstruction,
			AdditionalReferencePath: p.EditParams.ExtraRefPath,
		},
		OptimizedPrompt: p.OptimizedPrompt,
		Reasoning:       p.Reasoning,
		Suggestions:     p.Suggestions,
	}
}

// mediaRecord is one row of the character media list.
type mediaRecord struct {
	ID           string `json:"id"`
	CharacterID  string `json:"character_id"`
	Type         string `json:"type"`
	Status       string `json:"status"`
	ImageURL     string `json:"image_url"`
	VideoURL     string `json:"video_url,omitempty"`
	TaskID       string `json:"task_id,omitempty"`
	IsApproved   bool   `json:"is_approved"`
	ErrorMessage string `json:"error_message,omitempty"`
	CreatedAt    string `json:"created_at"`
}

func (m *mediaRecord) toRecord() gallery.Record {
	url := m.ImageURL
	if m.Type == string(gallery.MediaTypeVideo) && m.VideoURL != "" {
		url = m.VideoURL
	}
	st := status.Status(m.Status)
	if st == "" {
		st = status.StatusCompleted
	}
	return gallery.Record{
		ID:           m.ID,
		CharacterID:  m.CharacterID,
		Type:         gallery.MediaType(m.Type),
		Status:       st,
		URL:          url,
		TaskID:       m.TaskID,
		IsApproved:   m.IsApproved,
		ErrorMessage: m.ErrorMessage,
		CreatedAt:    parseTimestamp(m.CreatedAt),
	}
}

// UploadResult is the stored location of an uploaded reference file.
// AnimateRequest spawns an image-to-video job from a gallery image.
type AnimateRequest struct {
	ImageID     string `json:"image_id"`
	ImageURL    string `json:"image_url"`
	CharacterID string `json:"character_id"`
	Prompt      string `json:"prompt"`
}

// AnimateResult reports the spawned video record.
type AnimateResult struct {
	Success  bool   `json:"success"`
	VideoID  string `json:"video_id"`
	VideoURL string `json:"video_url,omitempty"`
	Message  string `json:"message"`
}

type UploadResult struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// Balance is the caller's generation credit balance.
type Balance struct {
	TokenBalance int `json:"token_balance"`
}

// BaseImageTask is one spawned base-set generation job.
type BaseImageTask struct {
	TaskID string `json:"task_id"`
	Prompt string `json:"prompt"`
}

// BaseImagesResponse lists the jobs spawned for a base image batch.
type BaseImagesResponse struct {
	Tasks []BaseImageTask `json:"tasks"`
}

type errorBody struct {
	Detail any    `json:"detail"`
	Error  string `json:"error,omitempty"`
}
