package cliconfig

import (
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		changed map[string]bool
		initial Config
		check   func(t *testing.T, c Config)
		wantErr bool
	}{
		{
			name: "applies all valid env vars",
			envVars: map[string]string{
				"DBROUTER_MODE":              "explicit",
				"DBROUTER_DRIVER":            "sqlite",
				"DBROUTER_DEFAULT_DSN":       "fallback.db",
				"DBROUTER_TARGETS":           "writer=main.db;reader=replica.db",
				"DBROUTER_STATEMENT_TIMEOUT": "10s",
				"DBROUTER_MAX_OPEN_CONNS":    "3",
				"DBROUTER_LOG_LEVEL":         "debug",
				"DBROUTER_METRICS_ADDR":      ":9000",
				"DBROUTER_REAP_AFTER":        "2m",
				"DBROUTER_REAP_INTERVAL":     "30s",
				"DBROUTER_WATCH":             "0",
			},
			changed: map[string]bool{},
			initial: Config{Watch: true},
			check: func(t *testing.T, c Config) {
				if c.Mode != "explicit" || c.DefaultDSN != "fallback.db" || c.LogLevel != "debug" || c.MetricsAddr != ":9000" {
					t.Errorf("strings not applied: %+v", c)
				}
				if c.Targets["writer"] != "main.db" || c.Targets["reader"] != "replica.db" {
					t.Errorf("Targets = %v", c.Targets)
				}
				if c.StatementTimeout != 10*time.Second || c.ReapAfter != 2*time.Minute || c.ReapInterval != 30*time.Second {
					t.Errorf("durations not applied: %+v", c)
				}
				if c.MaxOpenConns != 3 {
					t.Errorf("MaxOpenConns = %d", c.MaxOpenConns)
				}
				if c.Watch {
					t.Error("Watch = true, want false")
				}
			},
		},
		{
			name:    "respects changed flags",
			envVars: map[string]string{"DBROUTER_MODE": "explicit", "DBROUTER_TARGETS": "writer=env.db"},
			changed: map[string]bool{"mode": true, "target": true},
			initial: Config{Mode: "implicit"},
			check: func(t *testing.T, c Config) {
				if c.Mode != "implicit" || c.Targets != nil {
					t.Errorf("flag values overwritten: %+v", c)
				}
			},
		},
		{
			name:    "invalid duration",
			envVars: map[string]string{"DBROUTER_STATEMENT_TIMEOUT": "soon"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "invalid int",
			envVars: map[string]string{"DBROUTER_MAX_OPEN_CONNS": "many"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "invalid targets",
			envVars: map[string]string{"DBROUTER_TARGETS": "writer"},
			changed: map[string]bool{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := tt.initial
			err := ApplyEnvConfig(&cfg, tt.changed)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ApplyEnvConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}
