package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultDataDir               = "./yieldpool-data"
	DefaultEnvironment           = "dev"
	DefaultLockupSeconds         = uint64(24 * 60 * 60)
	DefaultKernelTimelockSeconds = uint64(48 * 60 * 60)
	DefaultAuditDSN              = "audit.db"
	DefaultStateBackend          = "leveldb"
)

// Config is the node configuration file.
type Config struct {
	DataDir               string `toml:"DataDir"`
	StateBackend          string `toml:"StateBackend"`
	GenesisFile           string `toml:"GenesisFile"`
	GatewayConfig         string `toml:"GatewayConfig"`
	Environment           string `toml:"Environment"`
	LockupSeconds         uint64 `toml:"LockupSeconds"`
	KernelTimelockSeconds uint64 `toml:"KernelTimelockSeconds"`
	Audit                 Audit  `toml:"audit"`
	Log                   Log    `toml:"log"`
}

// Load loads the configuration from the given path. A missing file is
// created with defaults.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := &Config{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.normalize(filepath.Dir(path))
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Lockup returns the configured deposit lockup.
func (c *Config) Lockup() time.Duration {
	return time.Duration(c.LockupSeconds) * time.Second
}

// KernelTimelock returns the configured kernel upgrade delay.
func (c *Config) KernelTimelock() time.Duration {
	return time.Duration(c.KernelTimelockSeconds) * time.Second
}

// normalize fills defaults and resolves relative paths against the config
// file directory.
func (c *Config) normalize(baseDir string) {
	c.DataDir = strings.TrimSpace(c.DataDir)
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	c.StateBackend = strings.ToLower(strings.TrimSpace(c.StateBackend))
	if c.StateBackend == "" {
		c.StateBackend = DefaultStateBackend
	}
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	if c.Environment == "" {
		c.Environment = DefaultEnvironment
	}
	if c.LockupSeconds == 0 {
		c.LockupSeconds = DefaultLockupSeconds
	}
	if c.KernelTimelockSeconds == 0 {
		c.KernelTimelockSeconds = DefaultKernelTimelockSeconds
	}
	c.Audit.DSN = strings.TrimSpace(c.Audit.DSN)
	if c.Audit.DSN == "" {
		c.Audit.DSN = filepath.Join(c.DataDir, DefaultAuditDSN)
	}
	if c.Log.File != "" {
		if c.Log.MaxSizeMB == 0 {
			c.Log.MaxSizeMB = 100
		}
		if c.Log.MaxBackups == 0 {
			c.Log.MaxBackups = 5
		}
	}
	c.GenesisFile = resolve(baseDir, c.GenesisFile)
	c.GatewayConfig = resolve(baseDir, c.GatewayConfig)
}

func resolve(baseDir, path string) string {
	path = strings.TrimSpace(path)
	if path == "" || filepath.IsAbs(path) || baseDir == "" || baseDir == "." {
		return path
	}
	return filepath.Join(baseDir, path)
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		DataDir:               DefaultDataDir,
		StateBackend:          DefaultStateBackend,
		Environment:           DefaultEnvironment,
		LockupSeconds:         DefaultLockupSeconds,
		KernelTimelockSeconds: DefaultKernelTimelockSeconds,
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	cfg.normalize(filepath.Dir(path))
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
