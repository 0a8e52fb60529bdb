package status_test

import (
	"errors"
	"testing"

	"charstudio/orchestrator/internal/domain/status"
)

func TestStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		name     string
		status   status.Status
		expected bool
	}{
		{"pending is not terminal", status.StatusPending, false},
		{"generating is not terminal", status.StatusGenerating, false},
		{"completed is terminal", status.StatusCompleted, true},
		{"failed is terminal", status.StatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.expected {
				t.Errorf("Status.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestStatus_IsActive(t *testing.T) {
	tests := []struct {
		name     string
		status   status.Status
		expected bool
	}{
		{"pending is active", status.StatusPending, true},
		{"generating is active", status.StatusGenerating, true},
		{"completed is not active", status.StatusCompleted, false},
		{"failed is not active", status.StatusFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.IsActive(); got != tt.expected {
				t.Errorf("Status.IsActive() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name     string
		from     status.Status
		to       status.Status
		expected bool
	}{
		{"pending to generating", status.StatusPending, status.StatusGenerating, true},
		{"pending to completed", status.StatusPending, status.StatusCompleted, true},
		{"pending to failed", status.StatusPending, status.StatusFailed, true},
		{"generating to completed", status.StatusGenerating, status.StatusCompleted, true},
		{"generating to failed", status.StatusGenerating, status.StatusFailed, true},
		{"generating to pending is invalid", status.StatusGenerating, status.StatusPending, false},
		{"completed to generating is invalid", status.StatusCompleted, status.StatusGenerating, false},
		{"completed to failed is invalid", status.StatusCompleted, status.StatusFailed, false},
		{"failed to generating is invalid", status.StatusFailed, status.StatusGenerating, false},
		{"failed to completed is invalid", status.StatusFailed, status.StatusCompleted, false},
		{"same status is a no-op", status.StatusGenerating, status.StatusGenerating, true},
		{"terminal same status is a no-op", status.StatusCompleted, status.StatusCompleted, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.expected {
				t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.expected)
			}
		})
	}
}

func TestStatus_TransitionTo(t *testing.T) {
	got, err := status.StatusPending.TransitionTo(status.StatusGenerating)
	if err != nil {
		t.Fatalf("TransitionTo() unexpected error: %v", err)
	}
	if got != status.StatusGenerating {
		t.Errorf("TransitionTo() = %v, want %v", got, status.StatusGenerating)
	}

	got, err = status.StatusCompleted.TransitionTo(status.StatusFailed)
	if !errors.Is(err, status.ErrInvalidTransition) {
		t.Errorf("TransitionTo() error = %v, want ErrInvalidTransition", err)
	}
	if got != status.StatusCompleted {
		t.Errorf("TransitionTo() on invalid transition = %v, want unchanged %v", got, status.StatusCompleted)
	}
}
