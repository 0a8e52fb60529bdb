// Package requests holds the HTTP request payloads of the orchestrator API.
package requests

// ChatRequest sends one conversation message, optionally with a reference
// image attached for this message only.
type ChatRequest struct {
	Message            string `json:"message"`
	ReferenceImagePath string `json:"reference_image_path,omitempty"`
	ReferenceImageMode string `json:"reference_image_mode,omitempty"`
}

// EditChatRequest opens an image-edit round against a gallery image.
type EditChatRequest struct {
	Message         string `json:"message" binding:"required"`
	SourceImagePath string `json:"source_image_path" binding:"required"`
}

// ConfirmRequest approves the pending proposal.
type ConfirmRequest struct {
	AspectRatio  string `json:"aspect_ratio,omitempty"`
	EditedPrompt string `json:"edited_prompt,omitempty"`
}

// BaseImagesRequest asks for a batch of base images.
type BaseImagesRequest struct {
	Count int `json:"count"`
}

// AnimateRequest turns a gallery image into a video.
type AnimateRequest struct {
	ImageURL string `json:"image_url" binding:"required"`
	Prompt   string `json:"prompt" binding:"required"`
}
