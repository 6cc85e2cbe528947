package dbrouter

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/bft-labs/dbrouter/internal/domain"
)

// Default configuration values.
const (
	DefaultDriver           = "sqlite"
	DefaultStatementTimeout = 30 * time.Second
)

// Config holds the routing configuration of a Router.
type Config struct {
	// Mode selects implicit (classifier-driven) or explicit routing.
	Mode Mode

	// Driver is the database/sql driver name. Default: "sqlite".
	Driver string

	// DefaultDSN is the connection used when the target registry is
	// unavailable. When Targets is empty it also becomes the sole writer.
	DefaultDSN string

	// Targets maps target names to DSNs. Must contain "writer" unless
	// DefaultDSN stands in for it.
	Targets map[string]string

	// StatementTimeout bounds each statement. Zero disables the bound.
	StatementTimeout time.Duration

	// MaxOpenConns is applied to every opened handle when positive.
	MaxOpenConns int
}

// DefaultConfig returns a Config with sensible defaults and no targets.
func DefaultConfig() Config {
	return Config{
		Mode:             ModeImplicit,
		Driver:           DefaultDriver,
		StatementTimeout: DefaultStatementTimeout,
	}
}

// SetDefaults fills zero-valued fields that have a default.
// StatementTimeout is left alone since zero disables it.
func (c *Config) SetDefaults() {
	if c.Driver == "" {
		c.Driver = DefaultDriver
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	var errs []error

	if c.Mode != ModeImplicit && c.Mode != ModeExplicit {
		errs = append(errs, fmt.Errorf("unknown mode %d", int(c.Mode)))
	}
	if strings.TrimSpace(c.Driver) == "" {
		errs = append(errs, errors.New("driver is required"))
	}
	if c.StatementTimeout < 0 {
		errs = append(errs, errors.New("statement timeout must not be negative"))
	}
	if c.MaxOpenConns < 0 {
		errs = append(errs, errors.New("max open conns must not be negative"))
	}

	targets := c.EffectiveTargets()
	if len(targets) == 0 {
		errs = append(errs, errors.New("no targets configured and no default DSN"))
	} else if _, ok := targets[WriterTarget]; !ok {
		errs = append(errs, fmt.Errorf("targets must include %q", WriterTarget))
	}
	for _, name := range sortedKeys(targets) {
		if strings.TrimSpace(name) == "" || strings.TrimSpace(name) != name {
			errs = append(errs, fmt.Errorf("invalid target name %q", name))
		}
		if strings.TrimSpace(targets[name]) == "" {
			errs = append(errs, fmt.Errorf("target %q has an empty DSN", name))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", domain.ErrInvalidConfig, errors.Join(errs...))
}

// EffectiveTargets returns the target map the router opens. With no
// configured targets the default DSN is the single writer.
func (c Config) EffectiveTargets() map[string]string {
	out := make(map[string]string, len(c.Targets)+1)
	for name, dsn := range c.Targets {
		out[name] = dsn
	}
	if len(out) == 0 && c.DefaultDSN != "" {
		out[WriterTarget] = c.DefaultDSN
	}
	return out
}

// TargetNames returns the sorted effective target names.
func (c Config) TargetNames() []string {
	return sortedKeys(c.EffectiveTargets())
}

// clone returns a copy that shares no map with c.
func (c Config) clone() Config {
	out := c
	if c.Targets != nil {
		out.Targets = make(map[string]string, len(c.Targets))
		for k, v := range c.Targets {
			out.Targets[k] = v
		}
	}
	return out
}

// FileConfig mirrors Config in TOML form.
//
//	mode = "implicit"
//	driver = "sqlite"
//	default_dsn = "file:main.db"
//	statement_timeout = "30s"
//
//	[targets]
//	writer = "file:main.db"
//	reader = "file:replica.db?mode=ro"
type FileConfig struct {
	Mode             string            `toml:"mode"`
	Driver           string            `toml:"driver"`
	DefaultDSN       string            `toml:"default_dsn"`
	StatementTimeout string            `toml:"statement_timeout"`
	MaxOpenConns     int               `toml:"max_open_conns"`
	Targets          map[string]string `toml:"targets"`
}

// LoadFileConfig reads and decodes a TOML configuration file.
// Unknown keys are ignored so the file can be shared with the CLI.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("%w: parse %s: %w", domain.ErrInvalidConfig, path, err)
	}
	return fc, nil
}

// ApplyTo overlays the non-empty file values onto cfg.
func (fc FileConfig) ApplyTo(cfg *Config) error {
	if fc.Mode != "" {
		m, err := ParseMode(fc.Mode)
		if err != nil {
			return err
		}
		cfg.Mode = m
	}
	if fc.Driver != "" {
		cfg.Driver = fc.Driver
	}
	if fc.DefaultDSN != "" {
		cfg.DefaultDSN = fc.DefaultDSN
	}
	if fc.StatementTimeout != "" {
		d, err := time.ParseDuration(fc.StatementTimeout)
		if err != nil {
			return fmt.Errorf("%w: statement_timeout: %w", domain.ErrInvalidConfig, err)
		}
		cfg.StatementTimeout = d
	}
	if fc.MaxOpenConns > 0 {
		cfg.MaxOpenConns = fc.MaxOpenConns
	}
	if len(fc.Targets) > 0 {
		cfg.Targets = make(map[string]string, len(fc.Targets))
		for k, v := range fc.Targets {
			cfg.Targets[k] = v
		}
	}
	return nil
}

// LoadConfigFile builds a validated Config from DefaultConfig and the file at path.
func LoadConfigFile(path string) (Config, error) {
	fc, err := LoadFileConfig(path)
	if err != nil {
		return Config{}, err
	}
	cfg := DefaultConfig()
	if err := fc.ApplyTo(&cfg); err != nil {
		return Config{}, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
