package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsSecureByDefault(t *testing.T) {
	t.Setenv(SecretEnv, "from-env")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !cfg.Auth.Enabled {
		t.Fatalf("expected auth.enabled to default to true")
	}
	if cfg.Auth.HMACSecret != "from-env" {
		t.Fatalf("expected secret from environment, got %q", cfg.Auth.HMACSecret)
	}
	if cfg.Auth.AddressClaim != "sub" || cfg.Auth.AuditScope != "audit" {
		t.Fatalf("unexpected claim defaults %+v", cfg.Auth)
	}
	if len(cfg.Limits()) != 4 {
		t.Fatalf("expected default rate limit buckets")
	}
}

func TestLoadRequiresSecretWhenAuthEnabled(t *testing.T) {
	t.Setenv(SecretEnv, "")
	path := writeConfig(t, "auth:\n  enabled: true\n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "hmacSecret") {
		t.Fatalf("expected missing secret error, got %v", err)
	}
}

func TestLoadParsesFile(t *testing.T) {
	content := `listen: 127.0.0.1:9090
requestTimeout: 5s
auth:
  enabled: true
  hmacSecret: s3cret
  issuer: yieldpool
  audience: gateway
rateLimits:
  - id: write
    requestsPerMinute: 30
    burst: 3
cors:
  allowedOrigins: ["https://app.example"]
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ListenAddress != "127.0.0.1:9090" || cfg.RequestTimeout != 5*time.Second {
		t.Fatalf("unexpected listener settings %+v", cfg)
	}
	if cfg.Auth.Issuer != "yieldpool" || cfg.Auth.ClockSkew != 2*time.Minute {
		t.Fatalf("unexpected auth settings %+v", cfg.Auth)
	}
	limits := cfg.Limits()
	if len(limits) != 1 || limits[LimitWrite].Burst != 3 {
		t.Fatalf("expected file rate limits to replace defaults, got %+v", limits)
	}
}

func TestLoadRejectsAuthDisabledWithTLS(t *testing.T) {
	content := "auth:\n  enabled: false\nsecurity:\n  tlsCertFile: /etc/gw/cert.pem\n  tlsKeyFile: /etc/gw/key.pem\n"
	_, err := Load(writeConfig(t, content))
	if !errors.Is(err, ErrAuthDisabledWithTLS) {
		t.Fatalf("expected ErrAuthDisabledWithTLS, got %v", err)
	}
}

func TestLoadRejectsInvalidRateLimits(t *testing.T) {
	cases := []string{
		"auth:\n  enabled: false\nrateLimits:\n  - id: read\n    requestsPerMinute: 0\n    burst: 1\n",
		"auth:\n  enabled: false\nrateLimits:\n  - id: read\n    requestsPerMinute: 5\n    burst: 1\n  - id: read\n    requestsPerMinute: 5\n    burst: 1\n",
		"auth:\n  enabled: false\nrateLimits:\n  - id: \"\"\n    requestsPerMinute: 5\n    burst: 1\n",
	}
	for i, content := range cases {
		if _, err := Load(writeConfig(t, content)); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	if _, err := Load(writeConfig(t, "auth:\n  enabled: false\nservices: []\n")); err == nil {
		t.Fatalf("expected unknown field error")
	}
}

func TestLoadRequiresOTLPEndpointForTracing(t *testing.T) {
	t.Setenv(SecretEnv, "s3cret")
	path := writeConfig(t, "observability:\n  tracing: true\n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "otlpEndpoint") {
		t.Fatalf("expected missing endpoint error, got %v", err)
	}

	path = writeConfig(t, "observability:\n  tracing: true\n  otlpEndpoint: collector:4318\n  otlpHeaders: x-api-key=abc\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Observability.Tracing || cfg.Observability.OTLPEndpoint != "collector:4318" {
		t.Fatalf("unexpected observability %+v", cfg.Observability)
	}
}
