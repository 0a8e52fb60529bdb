package errors_test

import (
	"fmt"
	"net/http"
	"testing"

	flowerrors "charstudio/orchestrator/internal/domain/errors"
)

func TestKind_HTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		kind     flowerrors.Kind
		expected int
	}{
		{"insufficient balance is 402", flowerrors.KindInsufficientBalance, http.StatusPaymentRequired},
		{"invalid input is 400", flowerrors.KindInvalidInput, http.StatusBadRequest},
		{"wrong state is 409", flowerrors.KindWrongState, http.StatusConflict},
		{"transient is 502", flowerrors.KindTransient, http.StatusBadGateway},
		{"task failed is 500", flowerrors.KindTaskFailed, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.kind.HTTPStatus(); got != tt.expected {
				t.Errorf("Kind.HTTPStatus() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", flowerrors.ErrInsufficientBalance)
	if got := flowerrors.KindOf(wrapped); got != flowerrors.KindInsufficientBalance {
		t.Errorf("KindOf(wrapped) = %v, want insufficient_balance", got)
	}
	if !flowerrors.IsInsufficientBalance(wrapped) {
		t.Error("IsInsufficientBalance(wrapped) = false, want true")
	}

	plain := fmt.Errorf("connection refused")
	if got := flowerrors.KindOf(plain); got != flowerrors.KindTransient {
		t.Errorf("KindOf(plain) = %v, want transient default", got)
	}
}

func TestKind_IsRetryable(t *testing.T) {
	if !flowerrors.KindTransient.IsRetryable() {
		t.Error("transient should be retryable")
	}
	if flowerrors.KindInsufficientBalance.IsRetryable() {
		t.Error("insufficient balance must never be retried")
	}
	if flowerrors.KindTimeout.IsRetryable() {
		t.Error("client-detected timeout must not be retried")
	}
}

func TestFlowError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("dial tcp: timeout")
	err := flowerrors.Wrap(cause, flowerrors.KindTransient, "propose failed")
	if err.Unwrap() != cause {
		t.Error("Unwrap() should return the cause")
	}
	if err.Error() == "" {
		t.Error("Error() should not be empty")
	}
}
