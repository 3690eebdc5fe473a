package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadParsesSettings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `DataDir = "/var/lib/yieldpool"
StateBackend = "Bolt"
GenesisFile = "genesis.json"
GatewayConfig = "/etc/yieldpool/gateway.yaml"
Environment = "Staging"
LockupSeconds = 3600
KernelTimelockSeconds = 7200

[audit]
DSN = "postgres://audit@localhost/yieldpool"
ExportDir = "/var/lib/yieldpool/exports"

[log]
File = "/var/log/yieldpool/poold.log"
Compress = true
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StateBackend != "bolt" {
		t.Fatalf("expected normalized backend, got %q", cfg.StateBackend)
	}
	if cfg.Environment != "staging" {
		t.Fatalf("expected normalized environment, got %q", cfg.Environment)
	}
	if cfg.GenesisFile != filepath.Join(dir, "genesis.json") {
		t.Fatalf("expected genesis path resolved against config dir, got %q", cfg.GenesisFile)
	}
	if cfg.GatewayConfig != "/etc/yieldpool/gateway.yaml" {
		t.Fatalf("absolute path rewritten: %q", cfg.GatewayConfig)
	}
	if cfg.Lockup() != time.Hour || cfg.KernelTimelock() != 2*time.Hour {
		t.Fatalf("unexpected durations %s/%s", cfg.Lockup(), cfg.KernelTimelock())
	}
	if cfg.Audit.DSN != "postgres://audit@localhost/yieldpool" {
		t.Fatalf("unexpected audit dsn %q", cfg.Audit.DSN)
	}
	if cfg.Log.MaxSizeMB != 100 || cfg.Log.MaxBackups != 5 || !cfg.Log.Compress {
		t.Fatalf("unexpected log settings %+v", cfg.Log)
	}
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected default config persisted: %v", err)
	}
	if cfg.Lockup() != 24*time.Hour || cfg.KernelTimelock() != 48*time.Hour {
		t.Fatalf("unexpected default durations")
	}
	if cfg.StateBackend != DefaultStateBackend {
		t.Fatalf("unexpected default backend %q", cfg.StateBackend)
	}
	if cfg.Audit.DSN != filepath.Join(DefaultDataDir, DefaultAuditDSN) {
		t.Fatalf("unexpected default audit dsn %q", cfg.Audit.DSN)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload default: %v", err)
	}
	if again.DataDir != cfg.DataDir {
		t.Fatalf("reloaded config differs")
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]struct {
		contents string
		want     string
	}{
		"unknown key":    {contents: "Bootnodes = []\n", want: "unknown keys"},
		"bad env":        {contents: "Environment = \"mainnet\"\n", want: "environment"},
		"short timelock": {contents: "KernelTimelockSeconds = 60\n", want: "kernel timelock"},
		"long lockup":    {contents: "LockupSeconds = 99999999\n", want: "lockup"},
		"prod genesis":   {contents: "Environment = \"prod\"\n", want: "genesis"},
		"bad backend":    {contents: "StateBackend = \"rocksdb\"\n", want: "state backend"},
	}
	for name, tc := range cases {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(path, []byte(tc.contents), 0o600); err != nil {
			t.Fatalf("%s: write: %v", name, err)
		}
		_, err := Load(path)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected error containing %q, got %v", name, tc.want, err)
		}
	}
}
