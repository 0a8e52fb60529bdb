// Package status defines the lifecycle status shared by generation tasks
// and the media records that back them.
package status

import "errors"

// Status represents the lifecycle status of a generation task.
type Status string

const (
	// Non-terminal states
	StatusPending    Status = "pending"    // Accepted, not yet started
	StatusGenerating Status = "generating" // Actively generating

	// Terminal states (no further transitions allowed)
	StatusCompleted Status = "completed" // Result available
	StatusFailed    Status = "failed"    // Error available
)

// ErrInvalidTransition is returned when a status transition is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsActive returns true if the status indicates in-flight work.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusGenerating
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// ValidTransitions defines allowed status transitions. Terminal states have
// no valid transitions, which is what makes registry merges idempotent: a
// late poll response can never move a task out of completed or failed.
var ValidTransitions = map[Status][]Status{
	StatusPending:    {StatusGenerating, StatusCompleted, StatusFailed},
	StatusGenerating: {StatusCompleted, StatusFailed},
	StatusCompleted:  {},
	StatusFailed:     {},
}

// CanTransitionTo checks if a transition from the current status to the
// target status is valid. A no-op transition to the same status is allowed.
func (s Status) CanTransitionTo(target Status) bool {
	if s == target {
		return true
	}
	validTargets, ok := ValidTransitions[s]
	if !ok {
		return false
	}
	for _, t := range validTargets {
		if t == target {
			return true
		}
	}
	return false
}

// TransitionTo attempts to transition to the target status and returns an
// error if the transition is invalid.
func (s Status) TransitionTo(target Status) (Status, error) {
	if !s.CanTransitionTo(target) {
		return s, ErrInvalidTransition
	}
	return target, nil
}
