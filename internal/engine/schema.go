package engine

import (
	"context"
	"fmt"
	"strings"

	"sql-sandbox/internal/domain"
)

// DefaultSchema is the schema seed scripts create tables in unless they say
// otherwise.
const DefaultSchema = "main"

const describeSchemaSQL = `SELECT table_name, column_name, data_type
FROM information_schema.columns
WHERE table_schema = ?
ORDER BY table_name, ordinal_position`

// DescribeSchema lists the tables and columns of schema. It is a trusted,
// parameterised query and does not go through the gatekeeper.
func DescribeSchema(ctx context.Context, q Queryer, schema string) ([]domain.TableSchema, error) {
	schema = strings.TrimSpace(schema)
	if schema == "" {
		schema = DefaultSchema
	}

	rows, err := q.QueryContext(ctx, describeSchemaSQL, schema)
	if err != nil {
		return nil, fmt.Errorf("describe schema %q: %w", schema, err)
	}
	defer rows.Close() //nolint:errcheck

	var tables []domain.TableSchema
	for rows.Next() {
		var table, column, typ string
		if err := rows.Scan(&table, &column, &typ); err != nil {
			return nil, fmt.Errorf("scan schema row: %w", err)
		}
		if n := len(tables); n == 0 || tables[n-1].Name != table {
			tables = append(tables, domain.TableSchema{Name: table})
		}
		last := &tables[len(tables)-1]
		last.Columns = append(last.Columns, domain.ColumnSchema{Name: column, Type: typ})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("describe schema %q: %w", schema, err)
	}
	return tables, nil
}
