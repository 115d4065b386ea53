package errors

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
		{"nil error", nil, false},
		{"explicit transient", NewTransientError(errors.New("boom"), ""), true},
		{"explicit permanent", NewPermanentError(errors.New("boom"), ""), false},
		{"rate limited", NewRateLimited(errors.New("429"), 10), true},
		{"overloaded", NewOverloaded(errors.New("529"), 529), true},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"status 503", errors.New("api error status 503"), true},
		{"status 404", errors.New("api error status 404"), false},
		{"plain error", errors.New("something else"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsPermanent(t *testing.T) {
	if !IsPermanent(NewPermanentError(errors.New("bad"), "")) {
		t.Error("explicit permanent error should be permanent")
	}
	if IsPermanent(NewTransientError(errors.New("bad"), "")) {
		t.Error("explicit transient error should not be permanent")
	}
	if !IsPermanent(errors.New("model not found")) {
		t.Error("not found errors should be permanent")
	}
}

func TestRateLimitClassification(t *testing.T) {
	err := NewRateLimited(errors.New("too many requests"), 30)
	if !IsRateLimited(err) {
		t.Error("expected rate limited")
	}
	if IsOverloaded(err) {
		t.Error("rate limited should not classify as overloaded")
	}
	if got := RetryAfter(err); got != 30 {
		t.Errorf("RetryAfter = %d, want 30", got)
	}

	wrapped := fmt.Errorf("llm call failed: %w", err)
	if !IsRateLimited(wrapped) {
		t.Error("classification should survive wrapping")
	}
	if got := RetryAfter(wrapped); got != 30 {
		t.Errorf("RetryAfter through wrap = %d, want 30", got)
	}
}

func TestIsOverloaded(t *testing.T) {
	if !IsOverloaded(NewOverloaded(errors.New("overloaded"), 529)) {
		t.Error("529 should classify as overloaded")
	}
	if !IsOverloaded(NewOverloaded(errors.New("unavailable"), 503)) {
		t.Error("503 should classify as overloaded")
	}
	if IsOverloaded(NewRateLimited(errors.New("429"), 0)) {
		t.Error("429 should not classify as overloaded")
	}
}

func TestUnwrap(t *testing.T) {
	inner := errors.New("inner")
	if !errors.Is(NewTransientError(inner, "msg"), inner) {
		t.Error("TransientError should unwrap to inner error")
	}
	if !errors.Is(NewPermanentError(inner, "msg"), inner) {
		t.Error("PermanentError should unwrap to inner error")
	}
}
