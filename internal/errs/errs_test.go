package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesKind(t *testing.T) {
	err := Forbidden("user %s cannot review", "u1")

	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden error to match ErrForbidden")
	}
	if errors.Is(err, ErrNotFound) {
		t.Errorf("forbidden error must not match ErrNotFound")
	}

	wrapped := fmt.Errorf("handler: %w", err)
	if !errors.Is(wrapped, ErrForbidden) {
		t.Errorf("wrapped error lost its kind")
	}
	if got := KindOf(wrapped); got != KindForbidden {
		t.Errorf("KindOf = %q, want %q", got, KindForbidden)
	}
}

func TestDependencyUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Dependency(cause, "failed to load assessment")
	err.Reconcile = true

	if !errors.Is(err, cause) {
		t.Errorf("dependency error should unwrap to its cause")
	}
	if !NeedsReconcile(fmt.Errorf("approve: %w", err)) {
		t.Errorf("reconcile flag not visible through wrapping")
	}
	if got := err.Error(); got != "failed to load assessment: connection reset" {
		t.Errorf("Error() = %q", got)
	}
	if got := Message(err); got != "failed to load assessment" {
		t.Errorf("Message() = %q", got)
	}
}

func TestKindOfPlainError(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != "" {
		t.Errorf("KindOf(plain) = %q, want empty", got)
	}
	if NeedsReconcile(errors.New("boom")) {
		t.Errorf("plain error must not need reconcile")
	}
}
