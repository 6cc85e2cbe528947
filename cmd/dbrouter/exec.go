package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bft-labs/dbrouter/pkg/classify"
	"github.com/bft-labs/dbrouter/pkg/dbrouter"
)

func newExecCmd(c *cli) *cobra.Command {
	var (
		pin    string
		commit bool
	)
	cmd := &cobra.Command{
		Use:   "exec [flags] SQL...",
		Short: "Run statements in one session and print the results",
		Long: "Runs each statement in order within a single session. Changes are rolled " +
			"back unless --commit is given.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := c.cfg.RouterConfig()
			if err != nil {
				return err
			}
			r, err := dbrouter.New(rc, dbrouter.WithLogger(c.routerLogger()))
			if err != nil {
				return err
			}
			defer func() { _ = r.Close() }()
			return runExec(cmd.Context(), cmd.OutOrStdout(), r, pin, commit, args)
		},
	}
	cmd.Flags().StringVar(&pin, "pin", "", "pin the session to a target")
	cmd.Flags().BoolVar(&commit, "commit", false, "commit the session instead of rolling back")
	return cmd
}

func runExec(ctx context.Context, w io.Writer, r *dbrouter.Router, pin string, commit bool, stmts []string) error {
	root, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	s := root
	if pin != "" {
		if s, err = root.Pin(pin); err != nil {
			_ = root.End(false)
			return err
		}
	}

	for _, q := range stmts {
		if err := execOne(ctx, w, s, q); err != nil {
			return errors.Join(err, root.End(false))
		}
	}
	if s != root {
		if err := s.End(false); err != nil {
			return errors.Join(err, root.End(false))
		}
	}
	return root.End(commit)
}

func execOne(ctx context.Context, w io.Writer, s *dbrouter.Session, q string) error {
	if classify.IsModifying(q) {
		res, err := s.ExecContext(ctx, q)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		fmt.Fprintf(w, "[%s] %d row(s) affected\n", s.LastTarget(), n)
		return nil
	}

	rows, err := s.QueryContext(ctx, q)
	if err != nil {
		return err
	}
	defer rows.Close()
	fmt.Fprintf(w, "[%s]\n", s.LastTarget())
	return printRows(w, rows)
}

func printRows(w io.Writer, rows *sql.Rows) error {
	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, strings.Join(cols, "\t"))

	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	cells := make([]string, len(cols))
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		for i, v := range vals {
			switch v := v.(type) {
			case nil:
				cells[i] = "NULL"
			case []byte:
				cells[i] = string(v)
			default:
				cells[i] = fmt.Sprint(v)
			}
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	return rows.Err()
}
