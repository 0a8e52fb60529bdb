// Package errors defines error types and classification for the generation
// orchestration flow.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies how an orchestration error must be handled.
type Kind string

const (
	// KindInsufficientBalance maps the backend's payment-required response.
	// Never retried automatically; triggers a balance refresh.
	KindInsufficientBalance Kind = "insufficient_balance"
	// KindTransient covers network and server errors on propose/confirm.
	// The optimistic placeholder is removed and conversation state is left
	// unchanged.
	KindTransient Kind = "transient"
	// KindTaskFailed is a failure reported by polling or the media side
	// channel.
	KindTaskFailed Kind = "task_failed"
	// KindTimeout is synthesized locally when a task exceeds the ceiling.
	// Displayed like a task failure but distinguishable as client-detected.
	KindTimeout Kind = "timeout"
	// KindInvalidInput is a validation failure caught before any network
	// call.
	KindInvalidInput Kind = "invalid_input"
	// KindWrongState is an operation attempted in a conversation state that
	// does not allow it.
	KindWrongState Kind = "wrong_state"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// IsRetryable returns true if the error kind allows an automatic retry.
func (k Kind) IsRetryable() bool {
	return k == KindTransient
}

// HTTPStatus maps the kind to the status code the UI-facing surface returns.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInsufficientBalance:
		return http.StatusPaymentRequired
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindWrongState:
		return http.StatusConflict
	case KindTransient:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// FlowError represents an error raised by the orchestration flow.
type FlowError struct {
	Kind    Kind           `json:"kind"`
	Message string         `json:"message"`
	TaskID  string         `json:"task_id,omitempty"`
	Cause   error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *FlowError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *FlowError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns true if the error can be retried automatically.
func (e *FlowError) IsRetryable() bool {
	return e.Kind.IsRetryable()
}

// New creates a new flow error.
func New(kind Kind, message string) *FlowError {
	return &FlowError{Kind: kind, Message: message}
}

// Wrap wraps an error with a kind and message.
func Wrap(err error, kind Kind, message string) *FlowError {
	return &FlowError{Kind: kind, Message: message, Cause: err}
}

// WithTask attaches the task id the error belongs to.
func (e *FlowError) WithTask(taskID string) *FlowError {
	e.TaskID = taskID
	return e
}

// WithDetails attaches additional details.
func (e *FlowError) WithDetails(details map[string]any) *FlowError {
	e.Details = details
	return e
}

// Predefined errors for common scenarios.
var (
	ErrInsufficientBalance = &FlowError{
		Kind:    KindInsufficientBalance,
		Message: "insufficient balance",
	}

	ErrNoPendingProposal = &FlowError{
		Kind:    KindWrongState,
		Message: "no pending generation to confirm",
	}

	ErrEmptyCustomPrompt = &FlowError{
		Kind:    KindInvalidInput,
		Message: "custom reference mode requires a message describing the intent",
	}

	ErrNoActiveCharacter = &FlowError{
		Kind:    KindWrongState,
		Message: "no active character selected",
	}
)

// KindOf extracts the kind from an error, defaulting to transient for
// unclassified errors so callers surface them without retry storms.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *FlowError
	if stderrors.As(err, &fe) {
		return fe.Kind
	}
	return KindTransient
}

// IsInsufficientBalance reports whether the error chain contains a
// payment-required failure.
func IsInsufficientBalance(err error) bool {
	return KindOf(err) == KindInsufficientBalance
}
