package resilience

import (
	"errors"
	"testing"
	"time"
)

func testBreaker(threshold int, reset time.Duration) (*CircuitBreaker, *time.Time) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: threshold,
		ResetTimeout:     reset,
	})
	cb.nowFunc = func() time.Time { return now }
	return cb, &now
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := testBreaker(3, 30*time.Second)

	for i := 0; i < 3; i++ {
		if err := cb.Allow(); err != nil {
			t.Fatalf("call %d rejected unexpectedly: %v", i, err)
		}
		cb.Record(errors.New("boom"))
	}

	if cb.State() != CircuitOpen {
		t.Fatalf("expected open, got %v", cb.State())
	}
	if err := cb.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb, _ := testBreaker(3, 30*time.Second)

	cb.Record(errors.New("one"))
	cb.Record(errors.New("two"))
	cb.Record(nil) // success clears the streak
	cb.Record(errors.New("three"))
	cb.Record(errors.New("four"))

	if cb.State() != CircuitClosed {
		t.Errorf("expected closed, got %v", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenAfterReset(t *testing.T) {
	cb, now := testBreaker(1, 10*time.Second)

	cb.Record(errors.New("boom"))
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open, got %v", cb.State())
	}

	*now = now.Add(11 * time.Second)
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("expected half-open, got %v", cb.State())
	}

	// Successful probe closes the circuit.
	if err := cb.Allow(); err != nil {
		t.Fatalf("probe rejected: %v", err)
	}
	cb.Record(nil)
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed after probe success, got %v", cb.State())
	}
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	cb, now := testBreaker(1, 10*time.Second)

	cb.Record(errors.New("boom"))
	*now = now.Add(11 * time.Second)

	if err := cb.Allow(); err != nil {
		t.Fatalf("probe rejected: %v", err)
	}
	cb.Record(errors.New("still down"))

	if cb.State() != CircuitOpen {
		t.Errorf("expected reopened circuit, got %v", cb.State())
	}
}

func TestCircuitBreaker_ShouldTripFilter(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ShouldTrip:       IsTransient,
	})

	cb.Record(errors.New("permanent-looking error"))
	if cb.State() != CircuitClosed {
		t.Errorf("non-transient error should not trip, state %v", cb.State())
	}

	cb.Record(NewTransientError(errors.New("503"), 503))
	if cb.State() != CircuitOpen {
		t.Errorf("transient error should trip, state %v", cb.State())
	}
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		OnStateChange: func(from, to CircuitState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	cb.Record(errors.New("boom"))
	cb.Reset()

	if len(transitions) != 2 {
		t.Fatalf("expected 2 transitions, got %v", transitions)
	}
	if transitions[0] != "closed->open" || transitions[1] != "open->closed" {
		t.Errorf("unexpected transitions: %v", transitions)
	}
}

func TestServiceBreakers_PerService(t *testing.T) {
	sb := NewServiceBreakers(CircuitBreakerConfig{FailureThreshold: 1})

	sb.Get("anthropic").Record(errors.New("boom"))

	states := sb.States()
	if states["anthropic"] != CircuitOpen {
		t.Errorf("anthropic breaker should be open, got %v", states["anthropic"])
	}
	if sb.Get("perplexity").State() != CircuitClosed {
		t.Errorf("perplexity breaker should be independent and closed")
	}
	if sb.Get("anthropic") != sb.Get("anthropic") {
		t.Error("Get should return the same breaker for the same service")
	}
}
