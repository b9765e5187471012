package duckdbsql

import "strings"

// Statement is one semicolon-delimited statement of a script.
type Statement struct {
	Text   string  // source text, trimmed, without the terminating semicolon
	Tokens []Token // tokens of the statement, without EOF or semicolons
}

// Split breaks input into statements on top-level semicolons. Semicolons inside
// string literals, quoted identifiers and comments do not split. Statements
// consisting only of whitespace or comments are dropped.
func Split(input string) []Statement {
	var (
		stmts []Statement
		cur   []Token
	)
	flush := func() {
		if len(cur) == 0 {
			return
		}
		text := strings.TrimSpace(input[cur[0].Pos:cur[len(cur)-1].End])
		stmts = append(stmts, Statement{Text: text, Tokens: cur})
		cur = nil
	}

	l := NewLexer(input)
	for {
		tok := l.NextToken()
		switch tok.Type {
		case TOKEN_EOF:
			flush()
			return stmts
		case TOKEN_SEMICOLON:
			flush()
		default:
			cur = append(cur, tok)
		}
	}
}
