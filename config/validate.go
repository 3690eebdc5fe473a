package config

import (
	"fmt"
	"strings"
)

var (
	// MaxLockupSeconds caps the deposit lockup at thirty days.
	MaxLockupSeconds = uint64(30 * 24 * 60 * 60)
	// MinKernelTimelockSeconds keeps kernel upgrades observable for at
	// least an hour.
	MinKernelTimelockSeconds = uint64(3600)
)

var environments = map[string]struct{}{
	"dev":     {},
	"test":    {},
	"staging": {},
	"prod":    {},
}

func ValidateConfig(c *Config) error {
	if c == nil {
		return fmt.Errorf("config must not be nil")
	}
	if _, ok := environments[c.Environment]; !ok {
		return fmt.Errorf("environment: unsupported value %q", c.Environment)
	}
	if c.StateBackend != "leveldb" && c.StateBackend != "bolt" {
		return fmt.Errorf("state backend: unsupported value %q", c.StateBackend)
	}
	if c.LockupSeconds > MaxLockupSeconds {
		return fmt.Errorf("lockup: %d exceeds %d seconds", c.LockupSeconds, MaxLockupSeconds)
	}
	if c.KernelTimelockSeconds < MinKernelTimelockSeconds {
		return fmt.Errorf("kernel timelock: %d is below %d seconds", c.KernelTimelockSeconds, MinKernelTimelockSeconds)
	}
	if c.Environment == "prod" && strings.TrimSpace(c.GenesisFile) == "" {
		return fmt.Errorf("genesis: file required in prod")
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return fmt.Errorf("log: rotation limits must not be negative")
	}
	return nil
}
