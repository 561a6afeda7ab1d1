package common

import (
	"errors"
	"fmt"
	"testing"
)

// TestKindOfUnwrapsChains finds the kind through fmt wrapping.
func TestKindOfUnwrapsChains(t *testing.T) {
	err := Errorf(KindTimeout, "transcription did not complete within %s", "5h")
	wrapped := fmt.Errorf("stage failed: %w", err)

	if !IsKind(wrapped, KindTimeout) {
		t.Fatalf("kind = %v, want timeout", KindOf(wrapped))
	}
	if IsKind(wrapped, KindNotFound) {
		t.Fatal("wrong kind matched")
	}
	if KindOf(errors.New("plain")) != "" {
		t.Fatal("plain error should have no kind")
	}
	if KindOf(nil) != "" {
		t.Fatal("nil error should have no kind")
	}
}

// TestAppErrorUnwrap keeps the cause reachable for errors.Is.
func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewAppError(KindTransientNetwork, "poll transcription status", cause)

	if !errors.Is(err, cause) {
		t.Fatal("cause should be in the chain")
	}
	if err.Error() != "TRANSIENT_NETWORK: poll transcription status: connection refused" {
		t.Fatalf("message = %q", err.Error())
	}
}

// TestWrapError preserves nil and the chain.
func TestWrapError(t *testing.T) {
	if WrapError(nil, "context") != nil {
		t.Fatal("wrapping nil should stay nil")
	}
	inner := Errorf(KindNotFound, "job not found")
	wrapped := WrapError(inner, "lookup")
	if !IsKind(wrapped, KindNotFound) {
		t.Fatalf("kind = %v, want not found", KindOf(wrapped))
	}
}
