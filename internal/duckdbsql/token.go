// Package duckdbsql provides a DuckDB-dialect SQL tokenizer and the
// statement-shape analysis the sandbox gatekeeper relies on.
//
// It does not build a full AST. It splits scripts into statements while
// respecting string literals, quoted identifiers and comments, and it reports
// the leading structure of a statement (its first keyword and, for WITH
// statements, the CTE names and the keyword that follows the CTE list).
package duckdbsql

import "fmt"

// TokenType represents the type of a lexical token.
type TokenType int

// TOKEN_EOF and friends enumerate all token types produced by the lexer.
const (
	TOKEN_EOF     TokenType = iota // end of input
	TOKEN_ILLEGAL                  // unexpected character or unterminated literal

	TOKEN_IDENT  // identifier (bare or double-quoted)
	TOKEN_NUMBER // 123, 45.67, 1e10
	TOKEN_STRING // 'hello'
	TOKEN_PARAM  // $1, $name, ?

	TOKEN_OPERATOR  // any arithmetic, comparison or bitwise operator
	TOKEN_DOT       // .
	TOKEN_COMMA     // ,
	TOKEN_SEMICOLON // ;
	TOKEN_LPAREN    // (
	TOKEN_RPAREN    // )
	TOKEN_LBRACKET  // [
	TOKEN_RBRACKET  // ]
	TOKEN_LBRACE    // {
	TOKEN_RBRACE    // }
	TOKEN_COLON     // :
	TOKEN_DCOLON    // :: (DuckDB cast)
	TOKEN_ARROW     // -> (lambda)

	// TOKEN_ALTER and below are keywords that matter for statement shape.
	TOKEN_ALTER
	TOKEN_AS
	TOKEN_ATTACH
	TOKEN_CALL
	TOKEN_COPY
	TOKEN_CREATE
	TOKEN_DELETE
	TOKEN_DESCRIBE
	TOKEN_DETACH
	TOKEN_DROP
	TOKEN_EXPLAIN
	TOKEN_EXPORT
	TOKEN_FROM
	TOKEN_IMPORT
	TOKEN_INSERT
	TOKEN_INSTALL
	TOKEN_JOIN
	TOKEN_LOAD
	TOKEN_NOT
	TOKEN_PRAGMA
	TOKEN_RECURSIVE
	TOKEN_SELECT
	TOKEN_SET
	TOKEN_SHOW
	TOKEN_SUMMARIZE
	TOKEN_TABLE
	TOKEN_TRUNCATE
	TOKEN_UPDATE
	TOKEN_USE
	TOKEN_USING
	TOKEN_VACUUM
	TOKEN_VALUES
	TOKEN_WITH
)

// String returns a human-readable representation of the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", t)
}

// IsKeyword reports whether the token type is one of the recognised keywords.
func (t TokenType) IsKeyword() bool {
	return t >= TOKEN_ALTER
}

var tokenNames = map[TokenType]string{
	TOKEN_EOF:     "EOF",
	TOKEN_ILLEGAL: "ILLEGAL",
	TOKEN_IDENT:   "IDENT",
	TOKEN_NUMBER:  "NUMBER",
	TOKEN_STRING:  "STRING",
	TOKEN_PARAM:   "PARAM",

	TOKEN_OPERATOR:  "OPERATOR",
	TOKEN_DOT:       ".",
	TOKEN_COMMA:     ",",
	TOKEN_SEMICOLON: ";",
	TOKEN_LPAREN:    "(",
	TOKEN_RPAREN:    ")",
	TOKEN_LBRACKET:  "[",
	TOKEN_RBRACKET:  "]",
	TOKEN_LBRACE:    "{",
	TOKEN_RBRACE:    "}",
	TOKEN_COLON:     ":",
	TOKEN_DCOLON:    "::",
	TOKEN_ARROW:     "->",
}

// keywords maps lowercase keyword strings to their token types.
var keywords = map[string]TokenType{
	"alter":     TOKEN_ALTER,
	"as":        TOKEN_AS,
	"attach":    TOKEN_ATTACH,
	"call":      TOKEN_CALL,
	"copy":      TOKEN_COPY,
	"create":    TOKEN_CREATE,
	"delete":    TOKEN_DELETE,
	"describe":  TOKEN_DESCRIBE,
	"detach":    TOKEN_DETACH,
	"drop":      TOKEN_DROP,
	"explain":   TOKEN_EXPLAIN,
	"export":    TOKEN_EXPORT,
	"from":      TOKEN_FROM,
	"import":    TOKEN_IMPORT,
	"insert":    TOKEN_INSERT,
	"install":   TOKEN_INSTALL,
	"join":      TOKEN_JOIN,
	"load":      TOKEN_LOAD,
	"not":       TOKEN_NOT,
	"pragma":    TOKEN_PRAGMA,
	"recursive": TOKEN_RECURSIVE,
	"select":    TOKEN_SELECT,
	"set":       TOKEN_SET,
	"show":      TOKEN_SHOW,
	"summarize": TOKEN_SUMMARIZE,
	"table":     TOKEN_TABLE,
	"truncate":  TOKEN_TRUNCATE,
	"update":    TOKEN_UPDATE,
	"use":       TOKEN_USE,
	"using":     TOKEN_USING,
	"vacuum":    TOKEN_VACUUM,
	"values":    TOKEN_VALUES,
	"with":      TOKEN_WITH,
}

func init() {
	for word, tt := range keywords {
		tokenNames[tt] = upper(word)
	}
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

// lookupKeyword returns the token type for the given lowercase identifier.
// Returns TOKEN_IDENT if it's not a keyword.
func lookupKeyword(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return TOKEN_IDENT
}

// Token represents a lexical token with its literal value and byte span in
// the input.
type Token struct {
	Type    TokenType
	Literal string
	Pos     int // byte offset of the first character
	End     int // byte offset just past the last character
	Quoted  bool
}
