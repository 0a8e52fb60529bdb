package studio

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          time.Minute,
		MaxHalfOpenCalls: 1,
	})

	boom := errors.New("backend down")
	for i := 0; i < 3; i++ {
		if err := cb.Execute("chat", func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("attempt %d: err = %v", i, err)
		}
	}

	if cb.GetState() != StateOpen {
		t.Fatalf("state = %v, want open", cb.GetState())
	}

	called := false
	err := cb.Execute("chat", func() error { called = true; return nil })
	if err == nil {
		t.Error("expected rejection while open")
	}
	if called {
		t.Error("call must not reach the backend while open")
	}
}

func TestCircuitBreakerRecoversThroughHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          time.Millisecond,
		MaxHalfOpenCalls: 5,
	})

	cb.Execute("chat", func() error { return errors.New("boom") })
	if cb.GetState() != StateOpen {
		t.Fatalf("state = %v, want open", cb.GetState())
	}

	time.Sleep(5 * time.Millisecond)

	for i := 0; i < 2; i++ {
		if err := cb.Execute("chat", func() error { return nil }); err != nil {
			t.Fatalf("half-open attempt %d: %v", i, err)
		}
	}

	if cb.GetState() != StateClosed {
		t.Errorf("state = %v, want closed after recovery", cb.GetState())
	}
}

func TestCircuitBreakerDisabledPassesThrough(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Enabled: false})

	for i := 0; i < 50; i++ {
		cb.Execute("chat", func() error { return errors.New("boom") })
	}
	if cb.GetState() != StateClosed {
		t.Errorf("disabled breaker must report closed, got %v", cb.GetState())
	}
}
