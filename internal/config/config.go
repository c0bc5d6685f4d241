// Package config loads and saves the companion's TOML configuration.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// EnvConfigPath overrides the configuration file location.
	EnvConfigPath = "MTGO_COMPANION_CONFIG"
	// EnvDBPath overrides the configured database path.
	EnvDBPath = "MTGO_DB_PATH"
)

// Config represents the application configuration.
type Config struct {
	Ingest IngestConfig `toml:"ingest"`
	Watch  WatchConfig  `toml:"watch"`
	Log    LogConfig    `toml:"log"`
}

// IngestConfig contains transcript ingestion settings.
type IngestConfig struct {
	LogDir         string `toml:"log_dir"`          // Folder holding Match_GameLog_*.dat files
	DBPath         string `toml:"db_path"`          // SQLite database file
	Workers        int    `toml:"workers"`          // Parallel parsers
	ActionLogLines int    `toml:"action_log_lines"` // Raw lines kept per game
	ArchetypesFile string `toml:"archetypes_file"`  // Optional archetype rules (TOML)
}

// WatchConfig contains watch mode settings.
type WatchConfig struct {
	Debounce    string `toml:"debounce"`     // Quiet period after the last file event (e.g. "2s")
	MinInterval string `toml:"min_interval"` // Minimum time between two runs (e.g. "30s")
	Settle      string `toml:"settle"`       // Game logs modified more recently are left for a later run
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // json or console
}

// DefaultLogDir returns the folder the MTGO client writes game logs to, or ""
// when there is no known default for this platform.
func DefaultLogDir() string {
	if runtime.GOOS != "windows" {
		return ""
	}
	base := os.Getenv("LOCALAPPDATA")
	if base == "" {
		return ""
	}
	return filepath.Join(base, "Apps", "2.0", "Data")
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Ingest: IngestConfig{
			LogDir:         DefaultLogDir(),
			DBPath:         "mtgo_data.db",
			Workers:        runtime.NumCPU(),
			ActionLogLines: 15,
		},
		Watch: WatchConfig{
			Debounce:    "2s",
			MinInterval: "30s",
			Settle:      "5m",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Path returns the configuration file location.
func Path() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", eris.Wrap(err, "get home directory")
	}
	return filepath.Join(homeDir, ".mtgo-companion", "config.toml"), nil
}

// Load reads the configuration file. Missing files and missing keys fall
// back to defaults. MTGO_DB_PATH, when set, replaces the database path.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, eris.Wrapf(err, "read config file %s", path)
	default:
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, eris.Wrapf(err, "parse config file %s", path)
		}
	}

	if p := os.Getenv(EnvDBPath); p != "" {
		config.Ingest.DBPath = p
	}

	return config, nil
}

// Save writes the configuration to disk, creating its directory.
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "create config directory")
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return eris.Wrap(err, "marshal config")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrap(err, "write config file")
	}
	return nil
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	if c.Ingest.DBPath == "" {
		return eris.New("ingest.db_path cannot be empty")
	}
	if c.Ingest.Workers < 1 {
		return eris.Errorf("ingest.workers must be at least 1: %d", c.Ingest.Workers)
	}
	if c.Ingest.ActionLogLines < 1 {
		return eris.Errorf("ingest.action_log_lines must be at least 1: %d", c.Ingest.ActionLogLines)
	}
	if _, err := c.DebounceDuration(); err != nil {
		return err
	}
	if _, err := c.MinIntervalDuration(); err != nil {
		return err
	}
	if d, err := c.SettleDuration(); err != nil {
		return err
	} else if d < 0 {
		return eris.Errorf("watch.settle cannot be negative: %s", c.Watch.Settle)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return eris.Wrapf(err, "invalid log level %q", c.Log.Level)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return eris.Errorf("invalid log format %q (want json or console)", c.Log.Format)
	}
	return nil
}

// DebounceDuration returns watch.debounce as a duration.
func (c *Config) DebounceDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid watch debounce %q", c.Watch.Debounce)
	}
	return d, nil
}

// MinIntervalDuration returns watch.min_interval as a duration.
func (c *Config) MinIntervalDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.Watch.MinInterval)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid watch min interval %q", c.Watch.MinInterval)
	}
	return d, nil
}

// SettleDuration returns watch.settle as a duration.
func (c *Config) SettleDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.Watch.Settle)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid watch settle %q", c.Watch.Settle)
	}
	return d, nil
}

// InitLogger builds the global zap logger from cfg.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
