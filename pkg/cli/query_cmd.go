package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"sql-sandbox/internal/app"
	"sql-sandbox/internal/domain"
	"sql-sandbox/internal/gatekeeper"
)

func newRunCmd(g *globals) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "run [query]",
		Short: "Run a read-only query on a seeded session",
		Long:  "Runs one SELECT or WITH statement on the session database. The query comes from the arguments, --file, or stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := readQuery(cmd, args, file)
			if err != nil {
				return err
			}
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			rs, err := a.Service.ExecuteQuery(cmd.Context(), g.sessionID(), query)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), g.output, rs)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the query from a file")
	return cmd
}

func newCheckCmd(g *globals) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "check [query]",
		Short: "Classify a query without running it",
		Long:  "Runs the statement gatekeeper only. Exits with status 1 when the query would be rejected.",
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := readQuery(cmd, args, file)
			if err != nil {
				return err
			}
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}

			v, err := app.NewGatekeeper(cfg).Classify(query)
			var rej *domain.RejectionError
			if err != nil && !errors.As(err, &rej) {
				return err
			}

			out := cmd.OutOrStdout()
			if g.output == "json" {
				res := map[string]interface{}{"allowed": rej == nil}
				if rej != nil {
					res["reason"] = rej.Reason
					if fp := gatekeeper.Fingerprint(query); fp != "" {
						res["fingerprint"] = fp
					}
				} else {
					res["sql"] = v.SQL()
					res["ctes"] = v.CTEs()
				}
				if err := PrintJSON(out, res); err != nil {
					return err
				}
			} else if rej != nil {
				_, _ = fmt.Fprintf(out, "Rejected: %s\n", rej.Reason)
			} else {
				_, _ = fmt.Fprintln(out, "OK")
			}

			if rej != nil {
				return errReported
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the query from a file")
	return cmd
}

func newSchemaCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "schema [name]",
		Short: "List the tables and columns of the seeded dataset",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var schema string
			if len(args) == 1 {
				schema = args[0]
			}
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			tables, err := a.Service.DescribeSchema(cmd.Context(), g.sessionID(), schema)
			if err != nil {
				return err
			}
			return printSchema(cmd.OutOrStdout(), g.output, tables)
		},
	}
}
