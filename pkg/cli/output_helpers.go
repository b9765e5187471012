package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/duckdb/duckdb-go/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"sql-sandbox/internal/domain"
	"sql-sandbox/internal/normalize"
)

// getOutputFormat returns the effective output format from the root command's persistent flags.
func getOutputFormat(cmd *cobra.Command) string {
	v, _ := cmd.Root().PersistentFlags().GetString("output")
	return v
}

func validateOutputFormat(output string) error {
	if output != "" && output != "table" && output != "json" {
		return fmt.Errorf("unsupported output format %q: use 'table' or 'json'", output)
	}
	return nil
}

// PrintJSON writes v as indented JSON.
func PrintJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// PrintTable writes an aligned table with two spaces between columns.
// Nothing is written when there are no columns.
func PrintTable(w io.Writer, columns []string, rows [][]string) {
	if len(columns) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, strings.Join(columns, "\t"))
	for _, row := range rows {
		_, _ = fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	_ = tw.Flush()
}

// printResult renders a result set as a table with a row-count footer, or as
// a JSON object.
func printResult(w io.Writer, format string, rs *domain.ResultSet) error {
	if format == "json" {
		rows := make([][]interface{}, len(rs.Rows))
		for i, row := range rs.Rows {
			out := make([]interface{}, len(row))
			for j, v := range row {
				out[j] = jsonValue(v)
			}
			rows[i] = out
		}
		return PrintJSON(w, map[string]interface{}{
			"columns":      rs.Columns,
			"column_types": rs.ColumnTypes,
			"rows":         rows,
			"row_count":    rs.RowCount(),
		})
	}

	rows := make([][]string, len(rs.Rows))
	for i, row := range rs.Rows {
		out := make([]string, len(row))
		for j, v := range row {
			out[j] = formatValue(v)
		}
		rows[i] = out
	}
	PrintTable(w, rs.Columns, rows)
	noun := "rows"
	if rs.RowCount() == 1 {
		noun = "row"
	}
	_, err := fmt.Fprintf(w, "(%d %s)\n", rs.RowCount(), noun)
	return err
}

func printVerdict(w io.Writer, format string, v domain.Verdict) error {
	if format == "json" {
		return PrintJSON(w, map[string]interface{}{
			"correct": v.Correct,
			"message": v.Message,
		})
	}
	if v.Correct {
		_, err := fmt.Fprintln(w, v.Message)
		return err
	}
	_, err := fmt.Fprintf(w, "Incorrect: %s\n", v.Message)
	return err
}

func printSchema(w io.Writer, format string, tables []domain.TableSchema) error {
	if format == "json" {
		out := make([]map[string]interface{}, len(tables))
		for i, t := range tables {
			cols := make([]map[string]string, len(t.Columns))
			for j, c := range t.Columns {
				cols[j] = map[string]string{"name": c.Name, "type": c.Type}
			}
			out[i] = map[string]interface{}{"name": t.Name, "columns": cols}
		}
		return PrintJSON(w, out)
	}

	var rows [][]string
	for _, t := range tables {
		for _, c := range t.Columns {
			rows = append(rows, []string{t.Name, c.Name, c.Type})
		}
	}
	PrintTable(w, []string{"TABLE", "COLUMN", "TYPE"}, rows)
	return nil
}

// formatValue renders a scanned value for table output.
func formatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return formatTime(x)
	case duckdb.Decimal:
		if x.Value == nil {
			return "NULL"
		}
		return decimal.NewFromBigInt(x.Value, -int32(x.Scale)).StringFixed(int32(x.Scale))
	case []byte:
		return string(x)
	case string:
		return x
	}
	return fmt.Sprint(normalize.Value(v))
}

// jsonValue maps a scanned value onto a JSON-friendly one.
func jsonValue(v interface{}) interface{} {
	if t, ok := v.(time.Time); ok {
		return formatTime(t)
	}
	return normalize.Value(v)
}

func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(normalize.DateLayout)
	}
	return t.Format("2006-01-02 15:04:05")
}
