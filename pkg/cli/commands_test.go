package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes a fresh root command with an isolated environment and
// returns its stdout and stderr.
func runCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	for _, k := range []string{"SEED_SCRIPT", "ENV", "LOG_FORMAT", "SANDBOX_OUTPUT", "RATE_LIMIT_RPS", "STRICT_CTE"} {
		t.Setenv(k, "")
	}
	t.Setenv("LOG_LEVEL", "error")

	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRunCmd(t *testing.T) {
	out, _, err := runCLI(t, "", "run", "SELECT id, name FROM customers WHERE id <= 2 ORDER BY id")
	require.NoError(t, err)
	assert.Equal(t, "id  name\n1   Ana Souza\n2   Bruno Lima\n(2 rows)\n", out)
}

func TestRunCmd_StdinAndJSON(t *testing.T) {
	out, _, err := runCLI(t, "SELECT count(*) AS n FROM orders;", "run", "-o", "json")
	require.NoError(t, err)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, []interface{}{"n"}, parsed["columns"])
	assert.Equal(t, float64(1), parsed["row_count"])
}

func TestRunCmd_CustomSeed(t *testing.T) {
	seed := writeTemp(t, "seed.sql", "CREATE TABLE t (x INTEGER); INSERT INTO t VALUES (42);")
	out, _, err := runCLI(t, "", "--seed", seed, "run", "SELECT x FROM t")
	require.NoError(t, err)
	assert.Contains(t, out, "42")
}

func TestRunCmd_Rejected(t *testing.T) {
	_, _, err := runCLI(t, "", "run", "DROP TABLE customers")
	require.Error(t, err)
	assert.Equal(t, "Forbidden keyword: DROP", err.Error())
	assert.Equal(t, "rejected", errorKind(err))
}

func TestRunCmd_BadOutputFormat(t *testing.T) {
	_, _, err := runCLI(t, "", "-o", "yaml", "run", "SELECT 1")
	assert.ErrorContains(t, err, "unsupported output format")
}

func TestCheckCmd(t *testing.T) {
	out, _, err := runCLI(t, "", "check", "WITH a AS (SELECT 1 AS x) SELECT x FROM a")
	require.NoError(t, err)
	assert.Equal(t, "OK\n", out)

	out, _, err = runCLI(t, "", "check", "SELECT 1; SELECT 2")
	assert.ErrorIs(t, err, errReported)
	assert.Equal(t, "Rejected: Only single statement allowed\n", out)

	out, _, err = runCLI(t, "", "-o", "json", "check", "SELECT * FROM read_csv('/etc/passwd')")
	assert.ErrorIs(t, err, errReported)
	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, false, parsed["allowed"])
	assert.Contains(t, parsed["reason"], "read_csv")
}

func TestValidateCmd(t *testing.T) {
	exercise := writeTemp(t, "vip.yaml", `
id: lisbon-customers
solution_query: SELECT id FROM customers WHERE city = 'Lisbon'
hint_level_1: Filter on city.
`)

	out, _, err := runCLI(t, "", "validate", "-e", exercise, "SELECT id FROM customers WHERE city = 'Lisbon' ORDER BY id DESC")
	require.NoError(t, err)
	assert.Equal(t, "Correct!\n", out)

	out, _, err = runCLI(t, "", "validate", "-e", exercise, "SELECT id FROM customers")
	assert.ErrorIs(t, err, errReported)
	assert.Equal(t, "Incorrect: row count differs: expected 2 rows, got 4.\n", out)

	out, _, err = runCLI(t, "", "validate", "-e", exercise, "--hint", "2")
	require.NoError(t, err)
	assert.Equal(t, "Filter on city.\n", out)

	_, _, err = runCLI(t, "", "validate", "-e", exercise, "--hint", "3")
	assert.Error(t, err)

	_, _, err = runCLI(t, "", "validate", "SELECT 1")
	assert.ErrorContains(t, err, "exercise")
}

const catalogYAML = `
datasets:
  - id: shop
    name: Shop
challenges:
  shop:
    - id: cities
      title: Distinct cities
      difficulty: easy
      solution_query: SELECT DISTINCT city FROM customers WHERE city IS NOT NULL
`

func TestPlaygroundCmd(t *testing.T) {
	catalog := writeTemp(t, "playground.yaml", catalogYAML)

	out, _, err := runCLI(t, "", "playground", "list", "--catalog", catalog)
	require.NoError(t, err)
	assert.Contains(t, out, "shop")

	out, _, err = runCLI(t, "", "-o", "json", "playground", "list", "--catalog", catalog, "-d", "shop")
	require.NoError(t, err)
	assert.Contains(t, out, "cities")
	assert.NotContains(t, out, "SELECT DISTINCT")

	out, _, err = runCLI(t, "", "playground", "validate", "--catalog", catalog, "-d", "shop", "-c", "cities",
		"SELECT city FROM customers WHERE city IS NOT NULL GROUP BY city")
	require.NoError(t, err)
	assert.Equal(t, "Correct!\n", out)

	_, _, err = runCLI(t, "", "playground", "validate", "--catalog", catalog, "-d", "shop", "-c", "nope", "SELECT 1")
	assert.Equal(t, "not_found", errorKind(err))
}

func TestSchemaCmd(t *testing.T) {
	out, _, err := runCLI(t, "", "schema")
	require.NoError(t, err)
	assert.Contains(t, out, "TABLE")
	assert.Contains(t, out, "customers")
	assert.Contains(t, out, "order_items")
}

func TestShellCmd(t *testing.T) {
	input := strings.Join([]string{
		"SELECT id",
		"FROM customers WHERE id = 1;",
		"DELETE FROM customers;",
		".bogus",
		".schema",
		"SELECT count(*) AS n FROM customers;",
		".quit",
		"SELECT 'never';",
	}, "\n")

	out, errOut, err := runCLI(t, input, "shell")
	require.NoError(t, err)
	assert.Contains(t, out, "(1 row)")
	assert.Contains(t, out, "COLUMN")
	assert.Contains(t, out, "4")
	assert.NotContains(t, out, "never")
	assert.Contains(t, errOut, "Forbidden keyword: DELETE")
	assert.Contains(t, errOut, "unknown command .bogus")
}

func TestShellCmd_TrailingStatementWithoutSemicolon(t *testing.T) {
	out, _, err := runCLI(t, "SELECT 41 + 1 AS answer", "shell")
	require.NoError(t, err)
	assert.Contains(t, out, "42")
}

func TestVersionCmd(t *testing.T) {
	out, _, err := runCLI(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "sandbox version dev (commit: none)\n"))
	assert.Contains(t, out, "duckdb v")

	_, _, err = runCLI(t, "", "version", "extra")
	assert.Error(t, err)
}
