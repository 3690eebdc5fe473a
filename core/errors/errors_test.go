package errors

import (
	"fmt"
	"testing"
)

func TestKindOfSurvivesWrapping(t *testing.T) {
	sentinel := New(KindEconomic, "pool: slippage exceeded")
	wrapped := fmt.Errorf("account: batch call 2: %w", sentinel)

	if !Is(wrapped, sentinel) {
		t.Fatalf("expected wrapped error to match sentinel")
	}
	if got := KindOf(wrapped); got != KindEconomic {
		t.Fatalf("KindOf = %s, want economic", got)
	}
	if got := KindOf(fmt.Errorf("plain")); got != KindUnknown {
		t.Fatalf("KindOf(plain) = %s", got)
	}
}

func TestSentinelsCompareByIdentity(t *testing.T) {
	a := New(KindPrecondition, "same message")
	b := New(KindPrecondition, "same message")
	if Is(a, b) {
		t.Fatalf("distinct sentinels must not match")
	}
}
