// Package task models in-flight generation jobs and the polling strategy
// each job kind requires.
package task

import (
	"time"

	"charstudio/orchestrator/internal/domain/status"
	"charstudio/orchestrator/internal/utils/taskid"
)

// PollStrategy declares how a task kind converges toward ground truth.
type PollStrategy int

const (
	// PollServer queries the dedicated task-status endpoint.
	PollServer PollStrategy = iota
	// PollSideChannel infers progress from the character's media list,
	// matching records back by embedded task id.
	PollSideChannel
	// PollNone marks UI-local tasks that are never polled; they are retired
	// by gallery refreshes or explicit eviction.
	PollNone
)

// Kind is the tagged variant of a generation task. Every kind declares its
// polling strategy explicitly so exemption rules are exhaustive rather than
// inferred from id prefixes.
type Kind string

const (
	KindImage       Kind = "image"
	KindVideo       Kind = "video"
	KindBase        Kind = "base"
	KindPlaceholder Kind = "placeholder"
	KindEdit        Kind = "edit"
	KindAnimate     Kind = "animate"
	KindRetry       Kind = "retry"
)

// PollStrategy returns how tasks of this kind are tracked.
func (k Kind) PollStrategy() PollStrategy {
	switch k {
	case KindImage, KindVideo:
		return PollServer
	case KindBase:
		return PollSideChannel
	default:
		return PollNone
	}
}

// PrunedByGalleryRefresh reports whether the task's effect becomes visible
// in the authoritative media list, at which point the local entry is
// redundant and removed.
func (k Kind) PrunedByGalleryRefresh() bool {
	return k == KindEdit || k == KindAnimate || k == KindRetry
}

// KindForID recovers the kind of a client-synthesized id. Server-issued ids
// default to the given server kind.
func KindForID(id string, serverKind Kind) Kind {
	switch taskid.ClientPrefix(id) {
	case taskid.PrefixPlaceholder:
		return KindPlaceholder
	case taskid.PrefixEdit:
		return KindEdit
	case taskid.PrefixAnimate:
		return KindAnimate
	case taskid.PrefixRetry:
		return KindRetry
	case taskid.PrefixBase:
		return KindBase
	default:
		return serverKind
	}
}

// Task is one in-flight generation job tracked for the active character.
type Task struct {
	ID           string        `json:"task_id"`
	Kind         Kind          `json:"kind"`
	Status       status.Status `json:"status"`
	Progress     int           `json:"progress"` // 0-100 estimate
	Stage        string        `json:"stage"`    // human-readable label
	Prompt       string        `json:"prompt"`
	ReferenceURL string        `json:"reference_image_url,omitempty"`
	ResultURL    string        `json:"result_url,omitempty"`
	Error        string        `json:"error,omitempty"`
	// TimedOut marks failures synthesized by the local sweep rather than
	// reported by the backend.
	TimedOut  bool      `json:"timed_out,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	// Base batches have no dedicated status endpoint; completion is counted
	// across the underlying media records.
	BatchSize      int `json:"batch_size,omitempty"`
	BatchCompleted int `json:"-"`
	BatchFailed    int `json:"-"`
}

// Snapshot is a task state observed from the backend, merged into the
// tracked task by id.
type Snapshot struct {
	ID        string
	Status    status.Status
	Progress  int
	Stage     string
	ResultURL string
	Error     string
}

// New creates a tracked task.
func New(id string, kind Kind, prompt string) *Task {
	return &Task{
		ID:        id,
		Kind:      kind,
		Status:    status.StatusPending,
		Stage:     "preparing",
		Prompt:    prompt,
		CreatedAt: time.Now(),
	}
}

// NewPlaceholder creates the optimistic entry inserted before the dispatch
// call goes out.
func NewPlaceholder(prompt, referenceURL string) *Task {
	t := New(taskid.New(taskid.PrefixPlaceholder), KindPlaceholder, prompt)
	t.ReferenceURL = referenceURL
	return t
}

// IsTerminal reports whether the task reached a final state.
func (t *Task) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// Merge applies a snapshot onto the task. Merges are idempotent per id: once
// the task is terminal no snapshot may change it, so a slow poll response
// arriving after a faster one cannot regress the state. Returns true when
// the merge moved the task into a terminal state.
func (t *Task) Merge(snap Snapshot) bool {
	if snap.ID != t.ID {
		return false
	}
	if t.Status.IsTerminal() {
		return false
	}
	if !t.Status.CanTransitionTo(snap.Status) {
		return false
	}

	t.Status = snap.Status
	if snap.Progress > t.Progress {
		t.Progress = snap.Progress
	}
	if snap.Stage != "" {
		t.Stage = snap.Stage
	}

	switch snap.Status {
	case status.StatusCompleted:
		t.Progress = 100
		t.ResultURL = snap.ResultURL
		t.Error = ""
	case status.StatusFailed:
		t.Error = snap.Error
		if t.Error == "" {
			t.Error = "generation failed"
		}
		t.ResultURL = ""
	}
	return t.Status.IsTerminal()
}

// FailTimeout forcibly fails a task that exceeded the ceiling. No-op on
// terminal tasks.
func (t *Task) FailTimeout(message string) bool {
	if t.Status.IsTerminal() {
		return false
	}
	t.Status = status.StatusFailed
	t.Stage = "timed out"
	t.Error = message
	t.TimedOut = true
	t.ResultURL = ""
	return true
}

// RecordBatchMember counts one underlying media record of a base batch
// reaching a terminal state. Returns true when the whole batch is resolved,
// i.e. completed + failed covers the batch size.
func (t *Task) RecordBatchMember(memberStatus status.Status) bool {
	if t.Kind != KindBase || t.Status.IsTerminal() {
		return false
	}
	switch memberStatus {
	case status.StatusCompleted:
		t.BatchCompleted++
	case status.StatusFailed:
		t.BatchFailed++
	default:
		return false
	}

	size := t.BatchSize
	if size <= 0 {
		size = 1
	}
	done := t.BatchCompleted + t.BatchFailed
	if done < size {
		t.Status = status.StatusGenerating
		t.Progress = done * 100 / size
		t.Stage = "generating"
		return false
	}

	if t.BatchCompleted > 0 {
		t.Status = status.StatusCompleted
		t.Progress = 100
		t.Stage = "completed"
	} else {
		t.Status = status.StatusFailed
		t.Stage = "failed"
		if t.Error == "" {
			t.Error = "all base images failed"
		}
	}
	return true
}
