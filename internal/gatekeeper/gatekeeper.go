// Package gatekeeper statically classifies untrusted SQL text before it is
// allowed anywhere near a session database.
//
// Classification runs in layers and the first failure wins:
//
//  1. length bound, in characters
//  2. empty input, or input that is only comments
//  3. whole-word keyword blocklist over the upper-cased text
//  4. injection patterns (comments, system catalogs) and, on tokens,
//     filesystem and metadata table functions
//  5. exactly one statement, split with a lexer so quoted semicolons count
//  6. structural shape: the statement must start with SELECT or WITH
//
// The regex layers are a cheap first filter. The token-based shape check is
// authoritative.
package gatekeeper

import (
	"errors"
	"strings"
	"unicode/utf8"

	"sql-sandbox/internal/domain"
	"sql-sandbox/internal/duckdbsql"
)

// DefaultMaxLength is the query length bound used when none is configured.
const DefaultMaxLength = 10240

// Rejection reasons that do not carry a variable part.
const (
	ReasonTooLong         = "Query exceeds maximum length"
	ReasonEmpty           = "Empty query"
	ReasonInvalid         = "Invalid or empty query"
	ReasonMultiStatement  = "Only single statement allowed"
	ReasonNotSelect       = "Only SELECT or WITH statements are allowed"
	ReasonUnparsable      = "Query could not be parsed"
	ReasonFileAccess      = "Direct file access is not allowed"
	ReasonCTEBodyNotQuery = "WITH clause must be followed by a SELECT statement"
)

// Verified is proof that a query passed classification. Only this package can
// construct a non-zero value, so the executor cannot be handed unchecked text.
type Verified struct {
	sql   string
	shape *duckdbsql.StatementShape
}

// SQL returns the single statement to execute, trimmed and without a
// trailing semicolon.
func (v Verified) SQL() string { return v.sql }

// IsZero reports whether v was not produced by Classify.
func (v Verified) IsZero() bool { return v.shape == nil }

// Recursive reports whether the statement uses WITH RECURSIVE.
func (v Verified) Recursive() bool {
	return v.shape != nil && v.shape.Recursive
}

// CTEs returns the names bound by the statement's WITH clause, if any.
func (v Verified) CTEs() []string {
	if v.shape == nil {
		return nil
	}
	return v.shape.CTEs
}

// Gatekeeper classifies queries. The zero value is not usable; use New.
type Gatekeeper struct {
	maxLength int
	strictCTE bool
}

// Option configures a Gatekeeper.
type Option func(*Gatekeeper)

// WithStrictCTE requires the statement after a WITH list to be a query
// (SELECT, FROM, VALUES, TABLE or a parenthesised query). By default WITH is
// accepted at face value.
func WithStrictCTE(strict bool) Option {
	return func(g *Gatekeeper) { g.strictCTE = strict }
}

// New creates a Gatekeeper. A non-positive maxLength selects DefaultMaxLength.
func New(maxLength int, opts ...Option) *Gatekeeper {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	g := &Gatekeeper{maxLength: maxLength}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// MaxLength returns the configured length bound.
func (g *Gatekeeper) MaxLength() int { return g.maxLength }

// Classify checks query with the default options and the given length bound.
func Classify(query string, maxLength int) (Verified, error) {
	return New(maxLength).Classify(query)
}

// Classify returns a Verified token for a safe single read-only statement, or
// a *domain.RejectionError naming the first rule the query breaks.
func (g *Gatekeeper) Classify(query string) (Verified, error) {
	if utf8.RuneCountInString(query) > g.maxLength {
		return Verified{}, domain.ErrRejected(ReasonTooLong)
	}
	trimmed := strings.TrimSpace(query)
	if trimmed == "" || onlyComments(trimmed) {
		return Verified{}, domain.ErrRejected(ReasonEmpty)
	}

	upper := strings.ToUpper(trimmed)
	for _, kp := range keywordPatterns {
		if kp.re.MatchString(upper) {
			return Verified{}, domain.ErrRejected("Forbidden keyword: %s", kp.keyword)
		}
	}

	for _, p := range injectionPatterns {
		if p.re.MatchString(query) {
			return Verified{}, domain.ErrRejected("%s", p.reason)
		}
	}

	stmts := duckdbsql.Split(trimmed)
	for _, stmt := range stmts {
		if err := checkTokens(stmt.Tokens); err != nil {
			return Verified{}, err
		}
	}
	switch {
	case len(stmts) == 0:
		return Verified{}, domain.ErrRejected(ReasonInvalid)
	case len(stmts) > 1:
		return Verified{}, domain.ErrRejected(ReasonMultiStatement)
	}

	shape, err := duckdbsql.Shape(stmts[0])
	if err != nil {
		var pe *duckdbsql.ParseError
		if errors.As(err, &pe) {
			return Verified{}, domain.ErrRejected(ReasonUnparsable)
		}
		return Verified{}, err
	}
	switch {
	case shape.Leading.Type == duckdbsql.TOKEN_SELECT:
	case shape.HasWith():
		if g.strictCTE && !isQueryBody(shape.Body) {
			return Verified{}, domain.ErrRejected(ReasonCTEBodyNotQuery)
		}
	default:
		return Verified{}, domain.ErrRejected(ReasonNotSelect)
	}

	return Verified{sql: stmts[0].Text, shape: shape}, nil
}

// onlyComments reports whether the lexer finds nothing but comments in q.
// An unterminated block comment yields an ILLEGAL token, not EOF.
func onlyComments(q string) bool {
	toks := duckdbsql.Tokenize(q)
	return len(toks) == 1 && toks[0].Type == duckdbsql.TOKEN_EOF
}

// checkTokens rejects calls to blocked table functions and replacement scans
// of string literals (FROM 'file.csv').
func checkTokens(toks []duckdbsql.Token) error {
	for i, tok := range toks {
		var next duckdbsql.Token
		if i+1 < len(toks) {
			next = toks[i+1]
		}
		switch tok.Type {
		case duckdbsql.TOKEN_IDENT:
			if next.Type == duckdbsql.TOKEN_LPAREN {
				name := strings.ToLower(tok.Literal)
				if blockedFunctions[name] {
					return domain.ErrRejected("Function %s is not allowed", name)
				}
			}
		case duckdbsql.TOKEN_FROM, duckdbsql.TOKEN_JOIN:
			if next.Type == duckdbsql.TOKEN_STRING {
				return domain.ErrRejected(ReasonFileAccess)
			}
		}
	}
	return nil
}

func isQueryBody(tok duckdbsql.Token) bool {
	switch tok.Type {
	case duckdbsql.TOKEN_SELECT, duckdbsql.TOKEN_FROM, duckdbsql.TOKEN_VALUES,
		duckdbsql.TOKEN_TABLE, duckdbsql.TOKEN_LPAREN:
		return true
	}
	return false
}
