package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/dbrouter/internal/cliconfig"
	"github.com/bft-labs/dbrouter/pkg/dbrouter"
	"github.com/bft-labs/dbrouter/pkg/log"
)

const helpDescription = `
Route the statements of a unit-of-work between a writer and its readers.

Reads go to the reader until the session writes; from then on every
statement goes to the writer. Sessions can be pinned to any named target.
Configure via file, env (DBROUTER_*), or flags.
`

var exampleUsage = strings.TrimSpace(`
  dbrouter route --target writer=main.db --target reader=replica.db "SELECT 1" "UPDATE t SET x = 1" "SELECT 1"
  dbrouter exec --config ./dbrouter.toml --commit "INSERT INTO jobs (name) VALUES ('a')"
  dbrouter serve --config ./dbrouter.toml --metrics-addr :9464
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// cli holds the configuration shared by every subcommand.
type cli struct {
	cfg     cliconfig.Config
	cfgPath string
	targets []string

	// loaded is the file the configuration came from, if any.
	loaded  string
	changed map[string]bool
	flagCfg cliconfig.Config

	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{cfg: cliconfig.DefaultConfig()}

	root := &cobra.Command{
		Use:           "dbrouter",
		Short:         "Route database statements between writer and reader targets",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&c.cfgPath, "config", "", "path to config file (default: $HOME/.dbrouter/config.toml)")
	f.StringVar(&c.cfg.Mode, "mode", c.cfg.Mode, "routing mode: implicit or explicit")
	f.StringVar(&c.cfg.Driver, "driver", c.cfg.Driver, "database/sql driver name")
	f.StringVar(&c.cfg.DefaultDSN, "default-dsn", c.cfg.DefaultDSN, "connection used when the target registry is unavailable")
	f.StringArrayVar(&c.targets, "target", nil, "target as name=dsn (repeatable)")
	f.DurationVar(&c.cfg.StatementTimeout, "statement-timeout", c.cfg.StatementTimeout, "per-statement timeout (0 disables)")
	f.IntVar(&c.cfg.MaxOpenConns, "max-open-conns", c.cfg.MaxOpenConns, "maximum open connections per target (0 is unlimited)")
	f.StringVar(&c.cfg.LogLevel, "log-level", c.cfg.LogLevel, "log level: debug, info, warn, error")
	f.StringVar(&c.cfg.MetricsAddr, "metrics-addr", c.cfg.MetricsAddr, "serve Prometheus metrics on this address (serve only)")
	f.DurationVar(&c.cfg.ReapAfter, "reap-after", c.cfg.ReapAfter, "close handles of a replaced configuration after this long (serve only)")
	f.DurationVar(&c.cfg.ReapInterval, "reap-interval", c.cfg.ReapInterval, "how often replaced handles are checked (serve only)")
	f.BoolVar(&c.cfg.Watch, "watch", c.cfg.Watch, "reload when the config file changes (serve only)")

	root.AddCommand(newRouteCmd(c), newExecCmd(c), newServeCmd(c))
	return root
}

// load applies the config file, then DBROUTER_* variables, keeping values
// of flags given on the command line.
func (c *cli) load(cmd *cobra.Command) error {
	c.changed = map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { c.changed[f.Name] = true })
	c.flagCfg = c.cfg

	cfgFile := c.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}
	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		c.loaded = cfgFile
	} else if c.cfgPath != "" {
		return fmt.Errorf("config file %s not found", c.cfgPath)
	}

	cfg, err := c.resolve()
	if err != nil {
		return err
	}
	c.cfg = cfg

	c.logger = cliconfig.Logger(os.Stderr, c.cfg.LogLevel)
	c.logger.Debug().
		Str("config", c.loaded).
		Str("mode", c.cfg.Mode).
		Strs("targets", sortedNames(c.cfg.Targets)).
		Msg("configuration")
	return nil
}

// resolve rebuilds the configuration from flags, the loaded file and the
// environment. The config watcher calls it again on every file change.
func (c *cli) resolve() (cliconfig.Config, error) {
	cfg := c.flagCfg

	if c.loaded != "" {
		fc, err := cliconfig.LoadFileConfig(c.loaded)
		if err != nil {
			return cfg, fmt.Errorf("%w: load config: %w", dbrouter.ErrInvalidConfig, err)
		}
		if err := cliconfig.ApplyFileConfig(&cfg, fc, c.changed); err != nil {
			return cfg, err
		}
	}
	if err := cliconfig.ApplyEnvConfig(&cfg, c.changed); err != nil {
		return cfg, err
	}
	if c.changed["target"] {
		targets, err := cliconfig.ParseTargets(c.targets)
		if err != nil {
			return cfg, err
		}
		cfg.Targets = targets
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// routerConfigLoader adapts resolve for the config watcher.
func (c *cli) routerConfigLoader(string) (dbrouter.Config, error) {
	cfg, err := c.resolve()
	if err != nil {
		return dbrouter.Config{}, err
	}
	return cfg.RouterConfig()
}

func (c *cli) routerLogger() log.Logger {
	return log.NewZerologAdapterWithLogger(c.logger)
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		l := cliconfig.Logger(os.Stderr, "error")
		l.Error().Err(err).Msg("dbrouter")
		os.Exit(1)
	}
}
