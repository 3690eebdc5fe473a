package config

// Audit configures the receipt archive. The DSN selects the driver:
// postgres:// and postgresql:// use Postgres, anything else is a sqlite path
// or URI.
type Audit struct {
	DSN       string `toml:"DSN"`
	ExportDir string `toml:"ExportDir"`
}

// Log configures the optional rotating log file. An empty File keeps logs on
// stdout only.
type Log struct {
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
	Compress   bool   `toml:"Compress"`
}
