package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SecretEnv supplies the JWT secret when the file leaves auth.hmacSecret
// empty.
const SecretEnv = "YIELDPOOL_JWT_SECRET"

// Rate limit buckets applied by the router.
const (
	LimitRead   = "read"
	LimitWrite  = "write"
	LimitAudit  = "audit"
	LimitStream = "stream"
)

type RateLimitConfig struct {
	ID                string  `yaml:"id"`
	RequestsPerMinute float64 `yaml:"requestsPerMinute"`
	Burst             int     `yaml:"burst"`
}

type ObservabilityConfig struct {
	Metrics     bool `yaml:"metrics"`
	LogRequests bool `yaml:"logRequests"`
	// Tracing and OTLPMetrics push spans and meters to an OTLP/HTTP
	// collector at OTLPEndpoint.
	Tracing      bool   `yaml:"tracing"`
	OTLPMetrics  bool   `yaml:"otlpMetrics"`
	OTLPEndpoint string `yaml:"otlpEndpoint"`
	OTLPInsecure bool   `yaml:"otlpInsecure"`
	OTLPHeaders  string `yaml:"otlpHeaders"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

type SecurityConfig struct {
	TLSCertFile string `yaml:"tlsCertFile"`
	TLSKeyFile  string `yaml:"tlsKeyFile"`
}

type Config struct {
	ListenAddress  string              `yaml:"listen"`
	ReadTimeout    time.Duration       `yaml:"readTimeout"`
	WriteTimeout   time.Duration       `yaml:"writeTimeout"`
	IdleTimeout    time.Duration       `yaml:"idleTimeout"`
	RequestTimeout time.Duration       `yaml:"requestTimeout"`
	RateLimits     []RateLimitConfig   `yaml:"rateLimits"`
	Observability  ObservabilityConfig `yaml:"observability"`
	Auth           AuthConfig          `yaml:"auth"`
	CORS           CORSConfig          `yaml:"cors"`
	Security       SecurityConfig      `yaml:"security"`
}

// AuthConfig configures bearer token checks. The address claim carries the
// caller address every write is executed as.
type AuthConfig struct {
	Enabled        bool          `yaml:"enabled"`
	HMACSecret     string        `yaml:"hmacSecret"`
	Issuer         string        `yaml:"issuer"`
	Audience       string        `yaml:"audience"`
	AddressClaim   string        `yaml:"addressClaim"`
	ScopeClaim     string        `yaml:"scopeClaim"`
	AuditScope     string        `yaml:"auditScope"`
	AllowAnonymous bool          `yaml:"allowAnonymous"`
	ClockSkew      time.Duration `yaml:"clockSkew"`
	enabledSet     bool          `yaml:"-"`
}

func (a *AuthConfig) UnmarshalYAML(node *yaml.Node) error {
	type rawAuthConfig struct {
		Enabled        *bool         `yaml:"enabled"`
		HMACSecret     string        `yaml:"hmacSecret"`
		Issuer         string        `yaml:"issuer"`
		Audience       string        `yaml:"audience"`
		AddressClaim   string        `yaml:"addressClaim"`
		ScopeClaim     string        `yaml:"scopeClaim"`
		AuditScope     string        `yaml:"auditScope"`
		AllowAnonymous bool          `yaml:"allowAnonymous"`
		ClockSkew      time.Duration `yaml:"clockSkew"`
	}
	var raw rawAuthConfig
	if err := node.Decode(&raw); err != nil {
		return err
	}
	a.Enabled = raw.Enabled != nil && *raw.Enabled
	a.enabledSet = raw.Enabled != nil
	a.HMACSecret = raw.HMACSecret
	a.Issuer = raw.Issuer
	a.Audience = raw.Audience
	a.AddressClaim = raw.AddressClaim
	a.ScopeClaim = raw.ScopeClaim
	a.AuditScope = raw.AuditScope
	a.AllowAnonymous = raw.AllowAnonymous
	a.ClockSkew = raw.ClockSkew
	return nil
}

func defaults() Config {
	return Config{
		ListenAddress:  ":8080",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		RequestTimeout: 10 * time.Second,
		RateLimits: []RateLimitConfig{
			{ID: LimitRead, RequestsPerMinute: 600, Burst: 60},
			{ID: LimitWrite, RequestsPerMinute: 120, Burst: 20},
			{ID: LimitAudit, RequestsPerMinute: 60, Burst: 10},
			{ID: LimitStream, RequestsPerMinute: 12, Burst: 2},
		},
		Observability: ObservabilityConfig{Metrics: true, LogRequests: true},
		Auth: AuthConfig{
			Enabled:    true,
			enabledSet: true,
		},
	}
}

// Load reads the gateway configuration. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := defaults()
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := yaml.NewDecoder(file)
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("decode config: %w", err)
		}
	}
	cfg.applyAuthDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (cfg *Config) applyAuthDefaults() {
	if !cfg.Auth.enabledSet {
		cfg.Auth.Enabled = true
		cfg.Auth.enabledSet = true
	}
	if strings.TrimSpace(cfg.Auth.HMACSecret) == "" {
		cfg.Auth.HMACSecret = os.Getenv(SecretEnv)
	}
	if cfg.Auth.AddressClaim == "" {
		cfg.Auth.AddressClaim = "sub"
	}
	if cfg.Auth.ScopeClaim == "" {
		cfg.Auth.ScopeClaim = "scope"
	}
	if cfg.Auth.AuditScope == "" {
		cfg.Auth.AuditScope = "audit"
	}
	if cfg.Auth.ClockSkew <= 0 {
		cfg.Auth.ClockSkew = 2 * time.Minute
	}
}

var ErrAuthDisabledWithTLS = errors.New("auth.enabled cannot be false when TLS is configured")

func (cfg *Config) Validate() error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		return fmt.Errorf("listen address required")
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("requestTimeout must be positive")
	}
	if cfg.Auth.Enabled && strings.TrimSpace(cfg.Auth.HMACSecret) == "" {
		return fmt.Errorf("auth.hmacSecret (or %s) required when auth is enabled", SecretEnv)
	}
	if !cfg.Auth.Enabled && cfg.isSensitiveDeployment() {
		return ErrAuthDisabledWithTLS
	}
	if (cfg.Security.TLSCertFile == "") != (cfg.Security.TLSKeyFile == "") {
		return fmt.Errorf("security.tlsCertFile and security.tlsKeyFile must be set together")
	}
	if (cfg.Observability.Tracing || cfg.Observability.OTLPMetrics) && strings.TrimSpace(cfg.Observability.OTLPEndpoint) == "" {
		return fmt.Errorf("observability.otlpEndpoint required when OTLP export is enabled")
	}
	seen := make(map[string]struct{}, len(cfg.RateLimits))
	for i, limit := range cfg.RateLimits {
		id := strings.TrimSpace(limit.ID)
		if id == "" {
			return fmt.Errorf("rateLimits[%d].id cannot be empty", i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("rateLimits[%d]: duplicate id %q", i, id)
		}
		seen[id] = struct{}{}
		if limit.RequestsPerMinute <= 0 || limit.Burst <= 0 {
			return fmt.Errorf("rateLimits[%d]: requestsPerMinute and burst must be positive", i)
		}
	}
	return nil
}

// Limits returns the rate limits keyed by bucket id.
func (cfg Config) Limits() map[string]RateLimitConfig {
	out := make(map[string]RateLimitConfig, len(cfg.RateLimits))
	for _, limit := range cfg.RateLimits {
		out[strings.TrimSpace(limit.ID)] = limit
	}
	return out
}

func (cfg *Config) isSensitiveDeployment() bool {
	return strings.TrimSpace(cfg.Security.TLSCertFile) != "" ||
		strings.TrimSpace(cfg.Security.TLSKeyFile) != ""
}
