package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bft-labs/dbrouter/pkg/dbrouter"
	"github.com/bft-labs/dbrouter/plugins/configwatcher"
	"github.com/bft-labs/dbrouter/plugins/handlereaper"
	"github.com/bft-labs/dbrouter/plugins/routemetrics"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the router with config reloading, metrics and handle reaping",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.serve(ctx)
		},
	}
}

func (c *cli) serveOptions() []dbrouter.Option {
	opts := []dbrouter.Option{
		dbrouter.WithLogger(c.routerLogger()),
		handlereaper.WithHandleReaper(handlereaper.Config{
			CheckInterval:  c.cfg.ReapInterval,
			Grace:          c.cfg.ReapAfter,
			ReapOnShutdown: true,
		}),
	}
	if c.loaded != "" {
		opts = append(opts, dbrouter.WithConfigPath(c.loaded))
		if c.cfg.Watch {
			wc := configwatcher.DefaultConfig()
			wc.Loader = c.routerConfigLoader
			opts = append(opts, configwatcher.WithConfigWatcher(wc))
		}
	}
	if c.cfg.MetricsAddr != "" {
		mc := routemetrics.DefaultConfig()
		mc.ListenAddr = c.cfg.MetricsAddr
		opts = append(opts, routemetrics.WithRouteMetrics(mc))
	}
	return opts
}

func (c *cli) serve(ctx context.Context) error {
	rc, err := c.cfg.RouterConfig()
	if err != nil {
		return err
	}
	r, err := dbrouter.New(rc, c.serveOptions()...)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	if err := r.Start(ctx); err != nil {
		return err
	}
	c.logger.Info().
		Str("mode", c.cfg.Mode).
		Strs("targets", r.Targets()).
		Str("config", c.loaded).
		Msg("dbrouter serving")

	<-ctx.Done()
	c.logger.Info().Msg("shutting down")
	return r.Stop()
}
