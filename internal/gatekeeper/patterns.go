package gatekeeper

import (
	"regexp"

	libinjection "github.com/corazawaf/libinjection-go"
)

// forbiddenKeywords are matched as whole words against the upper-cased query,
// in this order. The first match names the rejection.
var forbiddenKeywords = []string{
	"DROP", "DELETE", "UPDATE", "INSERT", "CREATE", "ALTER",
	"TRUNCATE", "REPLACE", "GRANT", "REVOKE", "EXECUTE",
	"ATTACH", "DETACH", "COPY", "EXPORT", "IMPORT",
	"PRAGMA", "VACUUM", "ANALYZE", "INTO",
}

type keywordPattern struct {
	keyword string
	re      *regexp.Regexp
}

var keywordPatterns = func() []keywordPattern {
	out := make([]keywordPattern, len(forbiddenKeywords))
	for i, kw := range forbiddenKeywords {
		out[i] = keywordPattern{keyword: kw, re: regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\b`)}
	}
	return out
}()

type injectionPattern struct {
	re     *regexp.Regexp
	reason string
}

// injectionPatterns run against the raw query text, case-insensitively.
var injectionPatterns = []injectionPattern{
	{regexp.MustCompile(`--`), "SQL line comments (--) are not allowed"},
	{regexp.MustCompile(`/\*`), "Block comments (/*) are not allowed"},
	{regexp.MustCompile(`\*/`), "Block comments (*/) are not allowed"},
	{regexp.MustCompile(`(?i)\bINFORMATION_SCHEMA\b`), "System catalog access is not allowed"},
	{regexp.MustCompile(`(?i)\bpg_catalog\b`), "System catalog access is not allowed"},
	{regexp.MustCompile(`(?i)\bsqlite_\w+`), "System table access is not allowed"},
	{regexp.MustCompile(`(?i)\bduckdb_\w+`), "System table access is not allowed"},
}

// blockedFunctions is the blocklist of DuckDB functions that can read the
// filesystem, leak internal metadata, or escape the query sandbox.
var blockedFunctions = map[string]bool{
	"read_csv":             true,
	"read_csv_auto":        true,
	"read_parquet":         true,
	"read_json":            true,
	"read_json_auto":       true,
	"read_json_objects":    true,
	"read_ndjson":          true,
	"read_ndjson_auto":     true,
	"read_text":            true,
	"read_blob":            true,
	"read_xlsx":            true,
	"parquet_scan":         true,
	"parquet_metadata":     true,
	"parquet_schema":       true,
	"glob":                 true,
	"sqlite_scan":          true,
	"sqlite_attach":        true,
	"postgres_scan":        true,
	"mysql_scan":           true,
	"query":                true,
	"query_table":          true,
	"getenv":               true,
	"duckdb_extensions":    true,
	"duckdb_settings":      true,
	"duckdb_databases":     true,
	"duckdb_secrets":       true,
	"pragma_database_list": true,
	"pragma_table_info":    true,
	"pragma_storage_info":  true,
	"current_setting":      true,
}

// Fingerprint returns the libinjection fingerprint of q, or "" when
// libinjection does not consider q an injection attempt.
func Fingerprint(q string) string {
	isSQLi, fp := libinjection.IsSQLi(q)
	if !isSQLi {
		return ""
	}
	return string(fp)
}
