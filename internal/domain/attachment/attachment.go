// Package attachment normalizes user-supplied reference images into a
// backend-addressable path plus a declared reference mode.
package attachment

import (
	"net/url"
	"strings"

	flowerrors "charstudio/orchestrator/internal/domain/errors"
)

// Mode declares how strongly the reference constrains the output.
type Mode string

const (
	// ModeFaceSwap keeps pose, background and outfit from the reference and
	// replaces identity only.
	ModeFaceSwap Mode = "face_swap"
	// ModePoseBackground keeps composition and setting. Recommended default.
	ModePoseBackground Mode = "pose_background"
	// ModeClothingPose keeps outfit and pose only.
	ModeClothingPose Mode = "clothing_pose"
	// ModeCustom applies no structural constraint; the message alone must
	// describe intent.
	ModeCustom Mode = "custom"
)

// DefaultMode is applied when a reference is attached without an explicit
// mode.
const DefaultMode = ModePoseBackground

// Valid reports whether the mode is one of the recognized values.
func (m Mode) Valid() bool {
	switch m {
	case ModeFaceSwap, ModePoseBackground, ModeClothingPose, ModeCustom:
		return true
	}
	return false
}

// Attachment is an ephemeral reference scoped to a single pending message.
type Attachment struct {
	// SourcePath is the server-relative path sent to the backend.
	SourcePath string `json:"source_path"`
	// DisplayURL is the absolute URL resolved for rendering.
	DisplayURL string `json:"display_url"`
	Mode       Mode   `json:"mode"`
}

// Resolve builds an attachment from a raw reference value. Absolute URLs
// are reduced to their path component so the backend always receives a
// stable relative reference; if parsing fails the raw value is passed
// through unchanged.
func Resolve(raw string, mode Mode) (*Attachment, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, flowerrors.New(flowerrors.KindInvalidInput, "reference path is empty")
	}
	if mode == "" {
		mode = DefaultMode
	}
	if !mode.Valid() {
		return nil, flowerrors.New(flowerrors.KindInvalidInput, "unknown reference mode "+string(mode))
	}

	return &Attachment{
		SourcePath: RelativePath(raw),
		DisplayURL: raw,
		Mode:       mode,
	}, nil
}

// RelativePath extracts the server-relative path from an absolute URL,
// falling back to the raw value when it does not parse as one.
func RelativePath(raw string) string {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Path == "" {
		return raw
	}
	return parsed.Path
}

// ValidateSend rejects the one combination that cannot be dispatched: a
// custom-mode reference with no message, since nothing then describes
// intent. Checked before any network call.
func ValidateSend(message string, att *Attachment) error {
	if att == nil {
		return nil
	}
	if att.Mode == ModeCustom && strings.TrimSpace(message) == "" {
		return flowerrors.ErrEmptyCustomPrompt
	}
	return nil
}
