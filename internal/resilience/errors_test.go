package resilience

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"typed transient", NewTransientError(errors.New("503"), 503), true},
		{"wrapped transient", fmt.Errorf("call failed: %w", NewTransientError(errors.New("timeout"), 504)), true},
		{"permanent", NewPermanentError(errors.New("bad request")), false},
		{"permanent wins over message", NewPermanentError(errors.New("rate limit")), false},
		{"plain error", errors.New("something broke"), false},
		{"connection reset message", errors.New("read: connection reset by peer"), true},
		{"rate limit message", errors.New("anthropic: rate limit exceeded"), true},
		{"overloaded message", errors.New("api_error: Overloaded"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsRateLimited(t *testing.T) {
	if !IsRateLimited(NewTransientError(errors.New("429"), 429)) {
		t.Error("429 should report rate-limited")
	}
	if IsRateLimited(NewTransientError(errors.New("503"), 503)) {
		t.Error("503 should not report rate-limited")
	}
	if IsRateLimited(errors.New("rate limit")) {
		t.Error("untyped error should not report rate-limited")
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("status %d should be transient", code)
		}
	}
	for _, code := range []int{200, 400, 401, 403, 404, 422} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("status %d should not be transient", code)
		}
	}
}

func TestClassifyError(t *testing.T) {
	if got := ClassifyError(NewTransientError(errors.New("x"), 500)); got != "transient" {
		t.Errorf("got %q", got)
	}
	if got := ClassifyError(errors.New("bad profile")); got != "permanent" {
		t.Errorf("got %q", got)
	}
}
