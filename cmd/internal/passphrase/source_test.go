package passphrase

import (
	"errors"
	"testing"
)

func TestSourcePrefersEnvironment(t *testing.T) {
	t.Setenv("POOLCTL_TEST_PASS", "hunter2")
	src := NewSource("POOLCTL_TEST_PASS", "keystore passphrase")
	src.isTTY = func() bool { t.Fatalf("terminal should not be consulted"); return false }

	got, err := src.Get()
	if err != nil || got != "hunter2" {
		t.Fatalf("unexpected result %q, %v", got, err)
	}
}

func TestSourceRejectsBlankEnvironment(t *testing.T) {
	t.Setenv("POOLCTL_TEST_PASS", "   ")
	if _, err := NewSource("POOLCTL_TEST_PASS", "keystore passphrase").Get(); err == nil {
		t.Fatalf("expected blank value to be rejected")
	}
}

func TestSourcePromptsOnceAndCaches(t *testing.T) {
	src := NewSource("", "token secret")
	src.isTTY = func() bool { return true }
	calls := 0
	src.read = func() ([]byte, error) {
		calls++
		return []byte("s3cret"), nil
	}
	for i := 0; i < 2; i++ {
		got, err := src.Get()
		if err != nil || got != "s3cret" {
			t.Fatalf("unexpected result %q, %v", got, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected a single prompt, got %d", calls)
	}
}

func TestSourceWithoutTerminal(t *testing.T) {
	src := NewSource("", "token secret")
	src.isTTY = func() bool { return false }
	if _, err := src.Get(); err == nil {
		t.Fatalf("expected error without a terminal")
	}

	failing := NewSource("", "token secret")
	failing.isTTY = func() bool { return true }
	failing.read = func() ([]byte, error) { return nil, errors.New("closed") }
	if _, err := failing.Get(); err == nil {
		t.Fatalf("expected read error to surface")
	}
}
