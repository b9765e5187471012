package cli

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the sandbox and DuckDB versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine := engineVersion(cmd.Context())
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), map[string]string{
					"version": version,
					"commit":  commit,
					"duckdb":  engine,
				})
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "sandbox version %s (commit: %s)\n", version, commit)
			if engine != "" {
				_, _ = fmt.Fprintf(out, "duckdb %s\n", engine)
			}
			return nil
		},
	}
}

// engineVersion reports the linked DuckDB library version, or "" if an
// in-memory database cannot be opened.
func engineVersion(ctx context.Context) string {
	if ctx == nil {
		ctx = context.Background()
	}
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return ""
	}
	defer db.Close() //nolint:errcheck

	var v string
	if err := db.QueryRowContext(ctx, "SELECT version()").Scan(&v); err != nil {
		return ""
	}
	return v
}
