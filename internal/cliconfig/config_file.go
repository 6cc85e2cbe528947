package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
// The routing keys are the ones dbrouter.LoadConfigFile reads, so one file
// serves both the CLI and the config watcher.
type FileConfig struct {
	Mode             string            `toml:"mode"`
	Driver           string            `toml:"driver"`
	DefaultDSN       string            `toml:"default_dsn"`
	StatementTimeout string            `toml:"statement_timeout"`
	MaxOpenConns     int               `toml:"max_open_conns"`
	Targets          map[string]string `toml:"targets"`

	LogLevel     string `toml:"log_level"`
	MetricsAddr  string `toml:"metrics_addr"`
	ReapAfter    string `toml:"reap_after"`
	ReapInterval string `toml:"reap_interval"`
	Watch        *bool  `toml:"watch"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.dbrouter/config.toml, or "" without a home directory.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".dbrouter", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("mode", fc.Mode, &cfg.Mode)
	s.setString("driver", fc.Driver, &cfg.Driver)
	s.setString("default-dsn", fc.DefaultDSN, &cfg.DefaultDSN)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setTargets("target", fc.Targets, &cfg.Targets)
	s.setInt("max-open-conns", fc.MaxOpenConns, &cfg.MaxOpenConns)
	s.setBool("watch", fc.Watch, &cfg.Watch)

	if err := s.setDuration("statement-timeout", fc.StatementTimeout, &cfg.StatementTimeout); err != nil {
		return err
	}
	if err := s.setDuration("reap-after", fc.ReapAfter, &cfg.ReapAfter); err != nil {
		return err
	}
	if err := s.setDuration("reap-interval", fc.ReapInterval, &cfg.ReapInterval); err != nil {
		return err
	}
	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
