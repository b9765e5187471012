package domain

// ResultSet is the output of exactly one statement execution.
type ResultSet struct {
	Columns     []string
	ColumnTypes []string // engine type names, parallel to Columns
	Rows        [][]interface{}
}

// RowCount returns the number of rows in the result.
func (r *ResultSet) RowCount() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// ColumnIndex returns the position of the first column with the given name,
// or -1 when the result has no such column.
func (r *ResultSet) ColumnIndex(name string) int {
	for i, c := range r.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Verdict is the outcome of grading one submission.
type Verdict struct {
	Correct bool
	Message string
}

// Verdict messages shared by the validator and its callers.
const (
	MsgCorrect          = "Correct!"
	MsgExecutionFailed  = "execution failed"
	MsgColumnsMismatch  = "column names do not match the expected result."
	MsgOutputMismatch   = "Your result does not match the expected output."
	MsgNotConfigured    = "validation not configured for this challenge"
	MsgRowCountTemplate = "row count differs: expected %d rows, got %d."
)

// Correct returns a passing verdict.
func Correct() Verdict { return Verdict{Correct: true, Message: MsgCorrect} }

// Incorrect returns a failing verdict with the given message.
func Incorrect(msg string) Verdict { return Verdict{Correct: false, Message: msg} }

// TableSchema describes one table of a sandbox dataset schema.
type TableSchema struct {
	Name    string
	Columns []ColumnSchema
}

// ColumnSchema describes one column of a sandbox table.
type ColumnSchema struct {
	Name string
	Type string
}
