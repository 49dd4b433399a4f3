package domainerrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	err := New(CodeValidation, "end date must be after start date")
	if err.Error() != "end date must be after start date" {
		t.Fatalf("unexpected message: %s", err.Error())
	}

	bare := New(CodeConflict, "")
	if bare.Error() != string(CodeConflict) {
		t.Fatalf("expected code as fallback message, got %s", bare.Error())
	}
}

func TestWrapPreservesExistingCode(t *testing.T) {
	inner := New(CodeNotFound, "lease not found")
	wrapped := Wrap(inner, CodeInternal, "load lease")

	if !HasCode(wrapped, CodeNotFound) {
		t.Fatalf("expected original code to survive wrapping")
	}
	if !errors.Is(wrapped, inner) {
		t.Fatalf("expected wrapped error to unwrap to inner")
	}
}

func TestWrapPlainError(t *testing.T) {
	inner := fmt.Errorf("connection refused")
	wrapped := Wrap(inner, CodeInternal, "query failed")

	if !HasCode(wrapped, CodeInternal) {
		t.Fatalf("expected internal code")
	}
	if !errors.Is(wrapped, inner) {
		t.Fatalf("expected unwrap chain to reach inner error")
	}
}

func TestIsMatchesByCode(t *testing.T) {
	a := New(CodeInvalidState, "cannot accept an active lease")
	b := New(CodeInvalidState, "different message")

	if !errors.Is(a, b) {
		t.Fatalf("expected errors with the same code to match")
	}
	if errors.Is(a, New(CodeConflict, "x")) {
		t.Fatalf("expected different codes not to match")
	}
}
