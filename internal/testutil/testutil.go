// Package testutil provides shared helpers for tests across the codebase:
// throwaway DuckDB handles and seeded session registries.
package testutil

import (
	"database/sql"
	"log/slog"
	"testing"

	_ "github.com/duckdb/duckdb-go/v2" // register "duckdb" driver
	"github.com/stretchr/testify/require"

	"sql-sandbox/internal/seed"
	"sql-sandbox/internal/session"
)

// Logger returns a logger that drops everything.
func Logger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// OpenDuckDB opens an in-memory database capped at one connection, runs
// stmts on it and closes it when the test ends.
func OpenDuckDB(t testing.TB, stmts ...string) *sql.DB {
	t.Helper()
	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoErrorf(t, err, "setup statement %q", stmt)
	}
	return db
}

// Registry returns a session registry that seeds sessions from script and is
// closed when the test ends.
func Registry(t testing.TB, script string, opts ...session.Option) *session.Registry {
	t.Helper()
	reg := session.NewRegistry(seed.Parse("test", script), Logger(), opts...)
	t.Cleanup(func() { _ = reg.Close() })
	return reg
}
