// Package seed loads the script that initialises every new session database.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"sql-sandbox/internal/config"
	"sql-sandbox/internal/duckdbsql"
)

//go:embed default.sql
var defaultSQL string

// Script is an ordered list of DDL/DML statements.
type Script struct {
	Source     string   // where the script was read from
	Statements []string // statements in file order, without terminators
}

// Parse splits text into statements. Semicolons inside string literals,
// quoted identifiers and comments do not split.
func Parse(source, text string) *Script {
	stmts := duckdbsql.Split(text)
	out := make([]string, 0, len(stmts))
	for _, s := range stmts {
		out = append(out, s.Text)
	}
	return &Script{Source: source, Statements: out}
}

// Default returns the embedded demo script.
func Default() *Script {
	return Parse("embedded:default.sql", defaultSQL)
}

// Len returns the number of statements.
func (s *Script) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Statements)
}

// Fetcher reads a seed script from one kind of location.
type Fetcher interface {
	Fetch(ctx context.Context, location string) (io.ReadCloser, error)
}

// Load reads the script at cfg.SeedScript, or returns the embedded default
// when it is empty.
func Load(ctx context.Context, cfg *config.Config) (*Script, error) {
	location := strings.TrimSpace(cfg.SeedScript)
	if location == "" {
		return Default(), nil
	}

	f, err := fetcherFor(ctx, cfg, location)
	if err != nil {
		return nil, err
	}
	return LoadFrom(ctx, f, location)
}

// LoadFrom reads and parses the script at location using f.
func LoadFrom(ctx context.Context, f Fetcher, location string) (*Script, error) {
	rc, err := f.Fetch(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("fetch seed script %q: %w", location, err)
	}
	defer rc.Close() //nolint:errcheck

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read seed script %q: %w", location, err)
	}
	return Parse(location, string(data)), nil
}

// fetcherFor picks a Fetcher from the location's scheme.
func fetcherFor(ctx context.Context, cfg *config.Config, location string) (Fetcher, error) {
	switch scheme(location) {
	case "s3":
		return NewS3Fetcher(cfg)
	case "gs":
		return NewGCSFetcher(ctx, cfg)
	case "az", "abfss":
		return NewAzureFetcher(cfg)
	case "https":
		if strings.Contains(location, ".blob.core.windows.net") {
			return NewAzureFetcher(cfg)
		}
		return nil, fmt.Errorf("unsupported seed location %q", location)
	case "", "file":
		return FileFetcher{}, nil
	default:
		return nil, fmt.Errorf("unsupported seed location %q", location)
	}
}

func scheme(location string) string {
	i := strings.Index(location, "://")
	if i <= 0 {
		return ""
	}
	return strings.ToLower(location[:i])
}

// FileFetcher reads seed scripts from the local filesystem.
type FileFetcher struct{}

// Fetch opens the file at location. A file:// prefix is accepted.
func (FileFetcher) Fetch(_ context.Context, location string) (io.ReadCloser, error) {
	path := strings.TrimPrefix(location, "file://")
	f, err := os.Open(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return nil, err
	}
	return f, nil
}
