// Package proposal models the editable, not-yet-executed description of a
// generation job returned by the propose step.
package proposal

import (
	"strings"

	"charstudio/orchestrator/internal/domain/attachment"
)

// Skill identifies which generator executes a confirmed proposal.
type Skill string

const (
	SkillImage       Skill = "image_generator"
	SkillVideo       Skill = "video_generator"
	SkillImageEditor Skill = "image_editor"
)

// Aspect ratios accepted by the backend.
const (
	AspectPortrait  = "9:16"
	AspectSquare    = "1:1"
	AspectLandscape = "16:9"
)

// ValidAspectRatio reports whether the ratio is one of the accepted values.
func ValidAspectRatio(ratio string) bool {
	switch ratio {
	case AspectPortrait, AspectSquare, AspectLandscape:
		return true
	}
	return false
}

// Params carries the generation parameters the user can inspect and adjust
// before confirming.
type Params struct {
	ContentType   string          `json:"content_type,omitempty"` // "base" or "content_post"
	Style         string          `json:"style,omitempty"`
	Cloth         string          `json:"cloth,omitempty"`
	SceneDesc     string          `json:"scene_description,omitempty"`
	AspectRatio   string          `json:"aspect_ratio,omitempty"`
	ReferencePath string          `json:"reference_image_path,omitempty"`
	ReferenceMode attachment.Mode `json:"reference_image_mode,omitempty"`
	VideoPrompt   string          `json:"video_prompt,omitempty"`
}

// EditParams carries parameters for an image-edit proposal.
type EditParams struct {
	SourceImagePath string `json:"source_image_path"`
	EditType        string `json:"edit_type,omitempty"` // add|remove|replace|modify|style|background|outfit
	EditInstruction string `json:"edit_instruction"`
	ExtraRefPath    string `json:"additional_reference_path,omitempty"`
}

// Proposal exists only between propose and confirm/cancel. A modify round
// trip replaces the whole object; it is never mutated in place.
type Proposal struct {
	Skill           Skill       `json:"skill"`
	Params          Params      `json:"params"`
	EditParams      *EditParams `json:"edit_params,omitempty"`
	OptimizedPrompt string      `json:"optimized_prompt"`
	Reasoning       string      `json:"reasoning"`
	Suggestions     []string    `json:"suggestions,omitempty"`
}

// EffectivePrompt returns the user's override when present, otherwise the
// server-optimized prompt. The two are never merged.
func (p *Proposal) EffectivePrompt(edited string) string {
	if trimmed := strings.TrimSpace(edited); trimmed != "" {
		return trimmed
	}
	return p.OptimizedPrompt
}

// IsEdit reports whether the proposal targets the image editor.
func (p *Proposal) IsEdit() bool {
	return p.Skill == SkillImageEditor
}
