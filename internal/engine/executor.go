// Package engine executes gatekept statements against session databases and
// shapes the output into domain result sets.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"sql-sandbox/internal/domain"
	"sql-sandbox/internal/gatekeeper"
)

// MsgTimedOut is the execution failure reported when a query hits the
// configured per-query deadline.
const MsgTimedOut = "Query timed out"

// Queryer is the subset of *sql.DB, *sql.Conn and *sql.Tx the executor needs.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Compile-time checks.
var (
	_ Queryer = (*sql.DB)(nil)
	_ Queryer = (*sql.Conn)(nil)
)

// Executor runs learner SQL. Every statement passes the gatekeeper first.
type Executor struct {
	gate    *gatekeeper.Gatekeeper
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithTimeout bounds every statement run by the executor. Zero means no
// deadline beyond the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = d }
}

// NewExecutor creates an Executor that classifies queries with gate.
func NewExecutor(gate *gatekeeper.Gatekeeper, logger *slog.Logger, opts ...Option) *Executor {
	e := &Executor{gate: gate, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Gatekeeper returns the classifier used by the executor.
func (e *Executor) Gatekeeper() *gatekeeper.Gatekeeper { return e.gate }

// Prepare classifies query without touching any database.
func (e *Executor) Prepare(query string) (gatekeeper.Verified, error) {
	return e.gate.Classify(query)
}

// Execute classifies query and, when it is accepted, runs it on q.
// Rejections are *domain.RejectionError and engine failures are
// *domain.ExecutionError carrying the engine's own message.
func (e *Executor) Execute(ctx context.Context, q Queryer, query string) (*domain.ResultSet, error) {
	v, err := e.Prepare(query)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, q, v)
}

// Run executes a verified statement on q and fetches every row.
func (e *Executor) Run(ctx context.Context, q Queryer, v gatekeeper.Verified) (*domain.ResultSet, error) {
	if v.IsZero() {
		return nil, fmt.Errorf("engine: statement was not verified")
	}

	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	rows, err := q.QueryContext(runCtx, v.SQL())
	if err != nil {
		return nil, e.executionError(ctx, runCtx, err)
	}
	defer rows.Close() //nolint:errcheck

	rs, err := scanRows(rows)
	if err != nil {
		return nil, e.executionError(ctx, runCtx, err)
	}

	e.logger.Debug("statement executed",
		"rows", rs.RowCount(),
		"columns", len(rs.Columns),
		"duration", time.Since(start),
	)
	return rs, nil
}

// executionError maps a driver failure onto the error classes callers act on.
// Cancellation by the caller propagates unchanged; hitting the executor's
// own deadline is an execution failure like any other.
func (e *Executor) executionError(parent, runCtx context.Context, err error) error {
	if perr := parent.Err(); perr != nil {
		return perr
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return domain.ErrExecution(MsgTimedOut)
	}
	return domain.ErrExecution(err.Error())
}

func scanRows(rows *sql.Rows) (*domain.ResultSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if cols == nil {
		cols = []string{}
	}

	types := make([]string, len(cols))
	if cts, err := rows.ColumnTypes(); err == nil {
		for i, ct := range cts {
			if i < len(types) {
				types[i] = ct.DatabaseTypeName()
			}
		}
	}

	resultRows := make([][]interface{}, 0)
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]interface{}, len(vals))
		for i, v := range vals {
			row[i] = driverValue(v, types[i])
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &domain.ResultSet{
		Columns:     cols,
		ColumnTypes: types,
		Rows:        resultRows,
	}, nil
}

// TimeLayout is the text form of TIME values.
const TimeLayout = "15:04:05.999999"

// driverValue maps driver representations that have no faithful Go type onto
// their SQL text form. The driver hands back TIME as a time.Time on
// 0001-01-01 and UUID as 16 raw bytes. Other byte slices become strings so
// results print and compare as text.
func driverValue(v interface{}, dbType string) interface{} {
	switch strings.ToUpper(dbType) {
	case "TIME", "TIMETZ", "TIME WITH TIME ZONE":
		if t, ok := v.(time.Time); ok {
			return t.UTC().Format(TimeLayout)
		}
	case "UUID":
		switch x := v.(type) {
		case []byte:
			if u, err := uuid.FromBytes(x); err == nil {
				return u.String()
			}
		case [16]byte:
			return uuid.UUID(x).String()
		}
	}
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
