package cliconfig

import (
	"os"
	"strings"
)

// ApplyEnvConfig applies configuration from environment variables (DBROUTER_*).
// It respects flags that have been explicitly set (changed map).
// DBROUTER_TARGETS holds semicolon-separated name=dsn pairs.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("mode", os.Getenv("DBROUTER_MODE"), &cfg.Mode)
	s.setString("driver", os.Getenv("DBROUTER_DRIVER"), &cfg.Driver)
	s.setString("default-dsn", os.Getenv("DBROUTER_DEFAULT_DSN"), &cfg.DefaultDSN)
	s.setString("log-level", os.Getenv("DBROUTER_LOG_LEVEL"), &cfg.LogLevel)
	s.setString("metrics-addr", os.Getenv("DBROUTER_METRICS_ADDR"), &cfg.MetricsAddr)

	if v := os.Getenv("DBROUTER_TARGETS"); v != "" {
		targets, err := ParseTargets(strings.Split(v, ";"))
		if err != nil {
			return err
		}
		s.setTargets("target", targets, &cfg.Targets)
	}

	if err := s.setDuration("statement-timeout", os.Getenv("DBROUTER_STATEMENT_TIMEOUT"), &cfg.StatementTimeout); err != nil {
		return err
	}
	if err := s.setDuration("reap-after", os.Getenv("DBROUTER_REAP_AFTER"), &cfg.ReapAfter); err != nil {
		return err
	}
	if err := s.setDuration("reap-interval", os.Getenv("DBROUTER_REAP_INTERVAL"), &cfg.ReapInterval); err != nil {
		return err
	}
	if err := s.setIntFromString("max-open-conns", os.Getenv("DBROUTER_MAX_OPEN_CONNS"), &cfg.MaxOpenConns); err != nil {
		return err
	}

	s.setBoolFromString("watch", os.Getenv("DBROUTER_WATCH"), &cfg.Watch)
	return nil
}
