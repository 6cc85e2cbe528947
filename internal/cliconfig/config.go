package cliconfig

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/dbrouter/pkg/dbrouter"
)

// Config holds CLI configuration for dbrouter.
type Config struct {
	Mode             string
	Driver           string
	DefaultDSN       string
	Targets          map[string]string
	StatementTimeout time.Duration
	MaxOpenConns     int

	LogLevel     string
	MetricsAddr  string
	ReapAfter    time.Duration
	ReapInterval time.Duration
	Watch        bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Mode:             "implicit",
		Driver:           dbrouter.DefaultDriver,
		StatementTimeout: dbrouter.DefaultStatementTimeout,
		LogLevel:         "info",
		ReapAfter:        5 * time.Minute,
		ReapInterval:     time.Minute,
		Watch:            true,
		DefaultDSN:       os.Getenv("DBROUTER_DEFAULT_DSN"),
	}
}

// Validate checks the CLI-only settings. Routing settings are checked by
// RouterConfig.
func (c *Config) Validate() error {
	if _, err := dbrouter.ParseMode(c.Mode); err != nil {
		return err
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}
	if c.ReapAfter < 0 {
		return errors.New("reap-after must not be negative")
	}
	if c.ReapInterval <= 0 {
		return errors.New("reap-interval must be positive")
	}
	return nil
}

// RouterConfig converts the CLI configuration into a validated router Config.
func (c Config) RouterConfig() (dbrouter.Config, error) {
	mode, err := dbrouter.ParseMode(c.Mode)
	if err != nil {
		return dbrouter.Config{}, err
	}
	cfg := dbrouter.Config{
		Mode:             mode,
		Driver:           c.Driver,
		DefaultDSN:       c.DefaultDSN,
		StatementTimeout: c.StatementTimeout,
		MaxOpenConns:     c.MaxOpenConns,
	}
	if len(c.Targets) > 0 {
		cfg.Targets = make(map[string]string, len(c.Targets))
		for k, v := range c.Targets {
			cfg.Targets[k] = v
		}
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return dbrouter.Config{}, err
	}
	return cfg, nil
}

// ParseTargets parses "name=dsn" pairs. A DSN may itself contain '='.
func ParseTargets(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		name, dsn, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" || strings.TrimSpace(dsn) == "" {
			return nil, fmt.Errorf("target %q: want name=dsn", p)
		}
		out[name] = dsn
	}
	return out, nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setTargets replaces the target map if value is not empty and flag not changed.
func (s *configSetter) setTargets(flag string, value map[string]string, dst *map[string]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	m := make(map[string]string, len(value))
	for k, v := range value {
		m[k] = v
	}
	*dst = m
}

// setIntFromString parses a string to int and sets the destination if valid.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
