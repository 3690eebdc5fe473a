package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetupWithFileWritesRotatedLog(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	path := filepath.Join(t.TempDir(), "poold.log")
	logger, closer := SetupWithFile("poold", "test", FileOptions{Path: path, MaxSizeMB: 1})
	logger.Warn("repayment discrepancy", "component", "pool")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := string(data)
	for _, want := range []string{`"severity":"WARN"`, `"message":"repayment discrepancy"`, `"service":"poold"`, `"env":"test"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %s in %s", want, line)
		}
	}
}

func TestMaskField(t *testing.T) {
	if got := MaskField("token", "secret").Value.String(); got != RedactedValue {
		t.Fatalf("expected token redacted, got %q", got)
	}
	if got := MaskField("operation", "deposit").Value.String(); got != "deposit" {
		t.Fatalf("expected allowlisted key preserved, got %q", got)
	}
}
