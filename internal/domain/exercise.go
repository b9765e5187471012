package domain

import (
	"sort"
	"strings"
	"time"
)

// Validation types recognised in exercise definitions.
const (
	ValidationResultMatch = "result_match"
	ValidationExactMatch  = "exact_match" // legacy alias of result_match
)

const defaultHint = "Re-read the prompt and build the query in blocks: SELECT, FROM, then filters."

// Exercise is the externally authored definition of one challenge. It is
// decoded from JSON or YAML content files; see Strategy for how the optional
// fields are interpreted.
type Exercise struct {
	ID              string                   `json:"id,omitempty" yaml:"id,omitempty"`
	Title           string                   `json:"title,omitempty" yaml:"title,omitempty"`
	ValidationType  string                   `json:"validation_type,omitempty" yaml:"validation_type,omitempty"`
	ExpectedResult  []map[string]interface{} `json:"expected_result,omitempty" yaml:"expected_result,omitempty"`
	SolutionQuery   string                   `json:"solution_query,omitempty" yaml:"solution_query,omitempty"`
	Validation      ValidationOptions        `json:"validation,omitempty" yaml:"validation,omitempty"`
	SuccessCriteria SuccessCriteria          `json:"success_criteria,omitempty" yaml:"success_criteria,omitempty"`
	StarterQuery    string                   `json:"starter_query" yaml:"starter_query"`
	HintLevel1      string                   `json:"hint_level_1,omitempty" yaml:"hint_level_1,omitempty"`
	HintLevel2      string                   `json:"hint_level_2,omitempty" yaml:"hint_level_2,omitempty"`

	strategy Strategy
}

// ValidationOptions holds comparison flags.
type ValidationOptions struct {
	OrderMatters bool `json:"order_matters,omitempty" yaml:"order_matters,omitempty"`
}

// SuccessCriteria holds the column-name fallback.
type SuccessCriteria struct {
	ExpectedColumns []string `json:"expected_columns,omitempty" yaml:"expected_columns,omitempty"`
}

// Strategy is the resolved way an exercise is graded. It is one of
// PrecomputedRows, LiveSolutionQuery, ColumnNamesOnly or Unconfigured.
type Strategy interface {
	strategyName() string
}

// PrecomputedRows compares against literal rows shipped with the exercise.
type PrecomputedRows struct {
	Reference    *ResultSet
	OrderMatters bool
}

// LiveSolutionQuery computes the reference by running the solution query on
// the learner's own session. ExpectedColumns is the fallback used when the
// solution itself fails to execute.
type LiveSolutionQuery struct {
	Query           string
	ExpectedColumns []string
	OrderMatters    bool
}

// ColumnNamesOnly accepts any result whose column set equals Columns.
type ColumnNamesOnly struct {
	Columns []string
}

// Unconfigured marks an exercise with no usable grading data. It always
// fails closed.
type Unconfigured struct{}

func (PrecomputedRows) strategyName() string   { return "precomputed_rows" }
func (LiveSolutionQuery) strategyName() string { return "live_solution_query" }
func (ColumnNamesOnly) strategyName() string   { return "column_names_only" }
func (Unconfigured) strategyName() string      { return "unconfigured" }

// StrategyName returns a stable identifier for logging.
func StrategyName(s Strategy) string {
	if s == nil {
		return Unconfigured{}.strategyName()
	}
	return s.strategyName()
}

// Prepare hardens the exercise and resolves its strategy once. Content
// loaders call it right after decoding.
func (e *Exercise) Prepare() {
	e.Harden()
	e.strategy = e.Resolve()
}

// Harden clears fields that must never reach a learner pre-filled.
func (e *Exercise) Harden() {
	e.StarterQuery = ""
}

// Strategy returns the strategy computed by Prepare, resolving it on the fly
// for exercises that were built in code.
func (e *Exercise) Strategy() Strategy {
	if e.strategy != nil {
		return e.strategy
	}
	return e.Resolve()
}

// Resolve picks the grading strategy in priority order: literal expected
// rows, then a live solution query, then the column-name list.
func (e *Exercise) Resolve() Strategy {
	switch strings.ToLower(strings.TrimSpace(e.ValidationType)) {
	case "", ValidationResultMatch, ValidationExactMatch:
	default:
		return Unconfigured{}
	}

	if len(e.ExpectedResult) > 0 {
		return PrecomputedRows{
			Reference:    rowsFromObjects(e.ExpectedResult),
			OrderMatters: e.Validation.OrderMatters,
		}
	}
	if q := strings.TrimSpace(e.SolutionQuery); q != "" {
		return LiveSolutionQuery{
			Query:           q,
			ExpectedColumns: e.SuccessCriteria.ExpectedColumns,
			OrderMatters:    e.Validation.OrderMatters,
		}
	}
	if len(e.SuccessCriteria.ExpectedColumns) > 0 {
		return ColumnNamesOnly{Columns: e.SuccessCriteria.ExpectedColumns}
	}
	return Unconfigured{}
}

// Hint returns the hint for level 1 or 2, falling back to the other level and
// finally to a generic prompt.
func (e *Exercise) Hint(level int) string {
	h1 := strings.TrimSpace(e.HintLevel1)
	h2 := strings.TrimSpace(e.HintLevel2)
	first, second := h1, h2
	if level == 2 {
		first, second = h2, h1
	}
	switch {
	case first != "":
		return first
	case second != "":
		return second
	default:
		return defaultHint
	}
}

// rowsFromObjects turns literal row objects into a result set. Column order is
// the sorted union of keys; comparison is by column name so the order only has
// to be deterministic.
func rowsFromObjects(objs []map[string]interface{}) *ResultSet {
	seen := make(map[string]bool)
	var cols []string
	for _, obj := range objs {
		for k := range obj {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)

	rows := make([][]interface{}, len(objs))
	for i, obj := range objs {
		row := make([]interface{}, len(cols))
		for j, c := range cols {
			row[j] = CoerceLiteral(obj[c])
		}
		rows[i] = row
	}
	return &ResultSet{Columns: cols, Rows: rows}
}

// CoerceLiteral maps a decoded JSON/YAML scalar onto the value the engine
// would produce for it. JSON has no timestamp type, so RFC 3339 strings with
// a time component become time.Time in UTC, the zone the driver returns
// TIMESTAMPTZ values in. Everything else is returned unchanged.
func CoerceLiteral(v interface{}) interface{} {
	s, ok := v.(string)
	if !ok || !strings.ContainsAny(s, "Tt") || len(s) < len("2006-01-02T15:04") {
		return v
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return v
}

// PlaygroundChallenge is a runtime-defined challenge over an ad-hoc dataset.
// It is always graded against its solution query with order ignored.
type PlaygroundChallenge struct {
	ID            string `json:"id" yaml:"id"`
	Title         string `json:"title,omitempty" yaml:"title,omitempty"`
	Description   string `json:"description,omitempty" yaml:"description,omitempty"`
	Difficulty    string `json:"difficulty,omitempty" yaml:"difficulty,omitempty"`
	SolutionQuery string `json:"solution_query,omitempty" yaml:"solution_query,omitempty"`
}

// Strategy returns the playground grading strategy.
func (c *PlaygroundChallenge) Strategy() Strategy {
	if q := strings.TrimSpace(c.SolutionQuery); q != "" {
		return LiveSolutionQuery{Query: q}
	}
	return Unconfigured{}
}

// PlaygroundDataset describes a dataset schema learners can explore.
type PlaygroundDataset struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	Schema      string `json:"schema,omitempty" yaml:"schema,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}
