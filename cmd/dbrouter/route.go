package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bft-labs/dbrouter/internal/cliconfig"
	"github.com/bft-labs/dbrouter/pkg/classify"
	"github.com/bft-labs/dbrouter/pkg/registry"
	"github.com/bft-labs/dbrouter/pkg/routing"
	"github.com/bft-labs/dbrouter/pkg/session"
)

func newRouteCmd(c *cli) *cobra.Command {
	var (
		pin   string
		dirty bool
	)
	cmd := &cobra.Command{
		Use:   "route [flags] SQL...",
		Short: "Show where each statement of one session would be routed",
		Long: "Resolves each statement in order within a single session without opening " +
			"any connection. A modifying statement makes the rest of the session dirty.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoute(cmd.OutOrStdout(), c.cfg, pin, dirty, args)
		},
	}
	cmd.Flags().StringVar(&pin, "pin", "", "pin the session to a target")
	cmd.Flags().BoolVar(&dirty, "dirty", false, "start with a dirty session")
	return cmd
}

// runRoute resolves stmts against a registry of DSNs.
func runRoute(w io.Writer, cfg cliconfig.Config, pin string, dirty bool, stmts []string) error {
	rc, err := cfg.RouterConfig()
	if err != nil {
		return err
	}
	reg, err := registry.New(rc.EffectiveTargets())
	if err != nil {
		return err
	}
	holder := registry.NewHolder(reg)
	if rc.DefaultDSN != "" {
		holder.SetFallback(rc.DefaultDSN)
	}

	factory, err := session.NewFactory[string](holder, rc.Mode, session.WithClassifier(classify.Default()))
	if err != nil {
		return err
	}

	root := factory.Begin()
	defer func() { _ = root.End(false) }()
	if dirty {
		if err := root.MarkDirty(); err != nil {
			return err
		}
	}
	s := root
	if pin != "" {
		if s, err = root.Pin(pin); err != nil {
			return err
		}
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TARGET\tREASON\tSTATEMENT")
	for _, q := range stmts {
		b, err := s.Bind(routing.Op(q))
		if err != nil && !b.Degraded {
			fmt.Fprintf(tw, "-\terror: %v\t%s\n", err, q)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", b.Target, b.Reason, q)
		if classify.IsModifying(q) {
			_ = s.MarkDirty()
		}
	}
	return tw.Flush()
}

func sortedNames(m map[string]string) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
