package duckdbsql

import (
	"fmt"
	"strings"
)

// ParseError reports a statement whose token stream is not well formed.
type ParseError struct {
	Message string
	Pos     int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at position %d: %s", e.Pos, e.Message)
}

// StatementShape is the leading structure of a single statement.
type StatementShape struct {
	// Leading is the first significant token of the statement.
	Leading Token
	// CTEs lists the names bound by a leading WITH clause, in order.
	CTEs []string
	// Recursive is set for WITH RECURSIVE.
	Recursive bool
	// Body is the first token after the CTE list. For statements without a
	// WITH clause it equals Leading.
	Body Token
}

// HasWith reports whether the statement starts with a WITH clause.
func (s *StatementShape) HasWith() bool {
	return s.Leading.Type == TOKEN_WITH
}

// Shape analyses the tokens of one statement. It fails on illegal tokens,
// unbalanced brackets and malformed CTE lists.
func Shape(stmt Statement) (*StatementShape, error) {
	toks := stmt.Tokens
	if len(toks) == 0 {
		return nil, &ParseError{Message: "empty statement"}
	}
	for _, t := range toks {
		if t.Type == TOKEN_ILLEGAL {
			return nil, &ParseError{Message: fmt.Sprintf("unexpected %q", t.Literal), Pos: t.Pos}
		}
	}
	if err := checkBalanced(toks); err != nil {
		return nil, err
	}

	shape := &StatementShape{Leading: toks[0], Body: toks[0]}
	if toks[0].Type != TOKEN_WITH {
		return shape, nil
	}

	w := &cteWalker{toks: toks, i: 1}
	if err := w.walk(shape); err != nil {
		return nil, err
	}
	return shape, nil
}

func checkBalanced(toks []Token) error {
	var stack []Token
	closer := map[TokenType]TokenType{
		TOKEN_RPAREN:   TOKEN_LPAREN,
		TOKEN_RBRACKET: TOKEN_LBRACKET,
		TOKEN_RBRACE:   TOKEN_LBRACE,
	}
	for _, t := range toks {
		switch t.Type {
		case TOKEN_LPAREN, TOKEN_LBRACKET, TOKEN_LBRACE:
			stack = append(stack, t)
		case TOKEN_RPAREN, TOKEN_RBRACKET, TOKEN_RBRACE:
			if len(stack) == 0 || stack[len(stack)-1].Type != closer[t.Type] {
				return &ParseError{Message: fmt.Sprintf("unmatched %q", t.Literal), Pos: t.Pos}
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 {
		open := stack[len(stack)-1]
		return &ParseError{Message: fmt.Sprintf("unclosed %q", open.Literal), Pos: open.Pos}
	}
	return nil
}

// cteWalker consumes
//
//	WITH [RECURSIVE] name [(cols)] [USING KEY (cols)] AS [NOT] [MATERIALIZED] (query) {, ...}
//
// and stops at the first token after the list.
type cteWalker struct {
	toks []Token
	i    int
}

func (w *cteWalker) peek() Token {
	if w.i < len(w.toks) {
		return w.toks[w.i]
	}
	end := 0
	if n := len(w.toks); n > 0 {
		end = w.toks[n-1].End
	}
	return Token{Type: TOKEN_EOF, Pos: end, End: end}
}

func (w *cteWalker) isWord(word string) bool {
	t := w.peek()
	return t.Type == TOKEN_IDENT && !t.Quoted && strings.EqualFold(t.Literal, word)
}

// skipGroup consumes a parenthesised group starting at the current token.
// Brackets are known to be balanced.
func (w *cteWalker) skipGroup() error {
	if w.peek().Type != TOKEN_LPAREN {
		return &ParseError{Message: "expected (", Pos: w.peek().Pos}
	}
	depth := 0
	for ; w.i < len(w.toks); w.i++ {
		switch w.toks[w.i].Type {
		case TOKEN_LPAREN:
			depth++
		case TOKEN_RPAREN:
			depth--
			if depth == 0 {
				w.i++
				return nil
			}
		}
	}
	return &ParseError{Message: "unclosed (", Pos: w.peek().Pos}
}

func (w *cteWalker) walk(shape *StatementShape) error {
	if w.peek().Type == TOKEN_RECURSIVE {
		shape.Recursive = true
		w.i++
	}
	for {
		name := w.peek()
		if name.Type != TOKEN_IDENT && !name.Type.IsKeyword() {
			return &ParseError{Message: "expected CTE name", Pos: name.Pos}
		}
		if name.Type == TOKEN_AS {
			return &ParseError{Message: "expected CTE name", Pos: name.Pos}
		}
		shape.CTEs = append(shape.CTEs, name.Literal)
		w.i++

		if w.peek().Type == TOKEN_LPAREN {
			if err := w.skipGroup(); err != nil {
				return err
			}
		}
		if w.peek().Type == TOKEN_USING {
			w.i++
			if !w.isWord("key") {
				return &ParseError{Message: "expected KEY after USING", Pos: w.peek().Pos}
			}
			w.i++
			if err := w.skipGroup(); err != nil {
				return err
			}
		}
		if w.peek().Type != TOKEN_AS {
			return &ParseError{Message: "expected AS", Pos: w.peek().Pos}
		}
		w.i++
		if w.peek().Type == TOKEN_NOT {
			w.i++
			if !w.isWord("materialized") {
				return &ParseError{Message: "expected MATERIALIZED after NOT", Pos: w.peek().Pos}
			}
			w.i++
		} else if w.isWord("materialized") {
			w.i++
		}
		if err := w.skipGroup(); err != nil {
			return err
		}

		if w.peek().Type != TOKEN_COMMA {
			break
		}
		w.i++
	}

	body := w.peek()
	if body.Type == TOKEN_EOF {
		return &ParseError{Message: "missing statement after WITH clause", Pos: body.Pos}
	}
	shape.Body = body
	return nil
}
