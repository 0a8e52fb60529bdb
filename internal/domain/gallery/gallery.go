// Package gallery models the persisted media records that generation tasks
// eventually populate.
package gallery

import (
	"time"

	"charstudio/orchestrator/internal/domain/status"
)

// MediaType distinguishes the record families returned by the media list.
type MediaType string

const (
	MediaTypeBase    MediaType = "base"
	MediaTypeContent MediaType = "content"
	MediaTypeScene   MediaType = "scene"
	MediaTypeVideo   MediaType = "video"
)

// Record is one persisted media item for a character. Records created by an
// in-flight job carry the task id that correlates them back to a tracked
// task; kinds without a dedicated status endpoint are resolved from the
// record's own status field.
type Record struct {
	ID           string        `json:"id"`
	CharacterID  string        `json:"character_id"`
	Type         MediaType     `json:"type"`
	Status       status.Status `json:"status"`
	URL          string        `json:"image_url,omitempty"`
	TaskID       string        `json:"task_id,omitempty"`
	IsApproved   bool          `json:"is_approved"`
	ErrorMessage string        `json:"error_message,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// View is the reconciled media state for the active character: the
// authoritative image and video sets as of the last refresh.
type View struct {
	CharacterID string    `json:"character_id"`
	Images      []Record  `json:"images"`
	Videos      []Record  `json:"videos"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// Split partitions records into image and video sets.
func Split(records []Record) (images, videos []Record) {
	for _, r := range records {
		if r.Type == MediaTypeVideo {
			videos = append(videos, r)
			continue
		}
		images = append(images, r)
	}
	return images, videos
}
