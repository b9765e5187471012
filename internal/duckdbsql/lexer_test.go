package duckdbsql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexer_Punctuation(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantType TokenType
		wantLit  string
	}{
		{"plus", "+", TOKEN_OPERATOR, "+"},
		{"minus", "-", TOKEN_OPERATOR, "-"},
		{"star", "*", TOKEN_OPERATOR, "*"},
		{"eq", "=", TOKEN_OPERATOR, "="},
		{"ne_bang", "!=", TOKEN_OPERATOR, "!="},
		{"ne_diamond", "<>", TOKEN_OPERATOR, "<>"},
		{"le", "<=", TOKEN_OPERATOR, "<="},
		{"concat", "||", TOKEN_OPERATOR, "||"},
		{"dot", ".", TOKEN_DOT, "."},
		{"comma", ",", TOKEN_COMMA, ","},
		{"semicolon", ";", TOKEN_SEMICOLON, ";"},
		{"lparen", "(", TOKEN_LPAREN, "("},
		{"rparen", ")", TOKEN_RPAREN, ")"},
		{"lbracket", "[", TOKEN_LBRACKET, "["},
		{"rbrace", "}", TOKEN_RBRACE, "}"},
		{"colon", ":", TOKEN_COLON, ":"},
		{"dcolon", "::", TOKEN_DCOLON, "::"},
		{"arrow", "->", TOKEN_ARROW, "->"},
		{"qmark", "?", TOKEN_PARAM, "?"},
		{"dollar", "$1", TOKEN_PARAM, "$1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l := NewLexer(tc.input)
			tok := l.NextToken()
			assert.Equal(t, tc.wantType, tok.Type, "token type")
			assert.Equal(t, tc.wantLit, tok.Literal, "token literal")
		})
	}
}

func TestLexer_Numbers(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantLit string
	}{
		{"integer", "42", "42"},
		{"decimal", "3.14", "3.14"},
		{"scientific", "1e10", "1e10"},
		{"scientific_negative", "1e-3", "1e-3"},
		{"underscore", "1_000", "1_000"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tok := NewLexer(tc.input).NextToken()
			assert.Equal(t, TOKEN_NUMBER, tok.Type)
			assert.Equal(t, tc.wantLit, tok.Literal)
		})
	}
}

func TestLexer_Strings(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantLit string
	}{
		{"simple", "'hello'", "hello"},
		{"empty", "''", ""},
		{"escaped_quote", "'it''s'", "it's"},
		{"semicolon_inside", "'a;b'", "a;b"},
		{"comment_marker_inside", "'--x'", "--x"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tok := NewLexer(tc.input).NextToken()
			assert.Equal(t, TOKEN_STRING, tok.Type)
			assert.Equal(t, tc.wantLit, tok.Literal)
		})
	}
}

func TestLexer_QuotedIdentifiers(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantLit string
	}{
		{"simple", `"foo"`, "foo"},
		{"escaped_quote", `"foo""bar"`, `foo"bar`},
		{"reserved_word", `"select"`, "select"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tok := NewLexer(tc.input).NextToken()
			assert.Equal(t, TOKEN_IDENT, tok.Type)
			assert.True(t, tok.Quoted)
			assert.Equal(t, tc.wantLit, tok.Literal)
		})
	}
}

func TestLexer_Keywords(t *testing.T) {
	tests := []struct {
		input    string
		wantType TokenType
	}{
		{"SELECT", TOKEN_SELECT},
		{"select", TOKEN_SELECT},
		{"Select", TOKEN_SELECT},
		{"WITH", TOKEN_WITH},
		{"RECURSIVE", TOKEN_RECURSIVE},
		{"FROM", TOKEN_FROM},
		{"JOIN", TOKEN_JOIN},
		{"VALUES", TOKEN_VALUES},
		{"TABLE", TOKEN_TABLE},
		{"INSERT", TOKEN_INSERT},
		{"PRAGMA", TOKEN_PRAGMA},
		{"SUMMARIZE", TOKEN_SUMMARIZE},
		{"where", TOKEN_IDENT},
		{"materialized", TOKEN_IDENT},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			tok := NewLexer(tc.input).NextToken()
			assert.Equal(t, tc.wantType, tok.Type)
		})
	}
}

func TestLexer_Comments(t *testing.T) {
	t.Run("line_comment", func(t *testing.T) {
		tok := NewLexer("-- this is a comment\nSELECT").NextToken()
		assert.Equal(t, TOKEN_SELECT, tok.Type)
	})

	t.Run("block_comment", func(t *testing.T) {
		tok := NewLexer("/* block comment */SELECT").NextToken()
		assert.Equal(t, TOKEN_SELECT, tok.Type)
	})

	t.Run("unterminated_block_comment", func(t *testing.T) {
		toks := Tokenize("SELECT 1 /* open")
		require.Len(t, toks, 4)
		assert.Equal(t, TOKEN_ILLEGAL, toks[2].Type)
		assert.Equal(t, TOKEN_EOF, toks[3].Type)
	})
}

func TestLexer_Unterminated(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"string", "'abc"},
		{"identifier", `"abc`},
		{"string_ending_in_escape", "'abc''"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tok := NewLexer(tc.input).NextToken()
			assert.Equal(t, TOKEN_ILLEGAL, tok.Type)
		})
	}
}

func TestLexer_IllegalChar(t *testing.T) {
	tok := NewLexer("`").NextToken()
	assert.Equal(t, TOKEN_ILLEGAL, tok.Type)
}

func TestLexer_EOF(t *testing.T) {
	tok := NewLexer("").NextToken()
	assert.Equal(t, TOKEN_EOF, tok.Type)
}

func TestLexer_Positions(t *testing.T) {
	input := `SELECT 'a' FROM t`
	toks := Tokenize(input)
	require.Len(t, toks, 5)
	for _, tok := range toks[:4] {
		assert.Less(t, tok.Pos, tok.End)
	}
	assert.Equal(t, "'a'", input[toks[1].Pos:toks[1].End])
	assert.Equal(t, "t", input[toks[3].Pos:toks[3].End])
}

func TestLexer_CompleteStatement(t *testing.T) {
	l := NewLexer(`SELECT "Name", 42 FROM orders WHERE id > 10`)

	expected := []struct {
		typ TokenType
		lit string
	}{
		{TOKEN_SELECT, "SELECT"},
		{TOKEN_IDENT, "Name"},
		{TOKEN_COMMA, ","},
		{TOKEN_NUMBER, "42"},
		{TOKEN_FROM, "FROM"},
		{TOKEN_IDENT, "orders"},
		{TOKEN_IDENT, "WHERE"},
		{TOKEN_IDENT, "id"},
		{TOKEN_OPERATOR, ">"},
		{TOKEN_NUMBER, "10"},
		{TOKEN_EOF, ""},
	}

	for _, exp := range expected {
		tok := l.NextToken()
		assert.Equal(t, exp.typ, tok.Type, "type for %q", exp.lit)
		assert.Equal(t, exp.lit, tok.Literal, "literal")
	}
}

func TestTokenType_String(t *testing.T) {
	assert.Equal(t, "SELECT", TOKEN_SELECT.String())
	assert.Equal(t, "IDENT", TOKEN_IDENT.String())
	assert.Equal(t, "::", TOKEN_DCOLON.String())
}
