package duckdbsql

import (
	"strings"
	"unicode"
)

// Lexer tokenizes SQL input for DuckDB.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	illegal bool // set once an unterminated comment was skipped
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// Tokenize returns every token of input up to and including the EOF token.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var toks []Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Type == TOKEN_EOF {
			return toks
		}
	}
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // NUL = EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	start := l.pos
	if l.illegal {
		l.illegal = false
		return Token{Type: TOKEN_ILLEGAL, Literal: "/*", Pos: start, End: len(l.input)}
	}
	if l.atEOF() {
		return Token{Type: TOKEN_EOF, Pos: len(l.input), End: len(l.input)}
	}

	var tok Token
	switch l.ch {
	case '-':
		if l.peekChar() == '>' {
			l.readChar()
			tok = Token{Type: TOKEN_ARROW, Literal: "->"}
		} else {
			tok = Token{Type: TOKEN_OPERATOR, Literal: "-"}
		}
	case '+', '*', '/', '%', '&', '^', '~', '@', '#':
		tok = Token{Type: TOKEN_OPERATOR, Literal: string(l.ch)}
	case '=', '<', '>', '!', '|':
		tok = Token{Type: TOKEN_OPERATOR, Literal: l.readOperator()}
		tok.Pos, tok.End = start, l.pos
		return tok
	case '.':
		tok = Token{Type: TOKEN_DOT, Literal: "."}
	case ',':
		tok = Token{Type: TOKEN_COMMA, Literal: ","}
	case ';':
		tok = Token{Type: TOKEN_SEMICOLON, Literal: ";"}
	case '(':
		tok = Token{Type: TOKEN_LPAREN, Literal: "("}
	case ')':
		tok = Token{Type: TOKEN_RPAREN, Literal: ")"}
	case '[':
		tok = Token{Type: TOKEN_LBRACKET, Literal: "["}
	case ']':
		tok = Token{Type: TOKEN_RBRACKET, Literal: "]"}
	case '{':
		tok = Token{Type: TOKEN_LBRACE, Literal: "{"}
	case '}':
		tok = Token{Type: TOKEN_RBRACE, Literal: "}"}
	case ':':
		switch l.peekChar() {
		case ':':
			l.readChar()
			tok = Token{Type: TOKEN_DCOLON, Literal: "::"}
		case '=':
			l.readChar()
			tok = Token{Type: TOKEN_OPERATOR, Literal: ":="}
		default:
			tok = Token{Type: TOKEN_COLON, Literal: ":"}
		}
	case '?':
		tok = Token{Type: TOKEN_PARAM, Literal: "?"}
	case '$':
		l.readChar() // advance past $
		idStart := l.pos
		for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
			l.readChar()
		}
		return Token{Type: TOKEN_PARAM, Literal: "$" + l.input[idStart:l.pos], Pos: start, End: l.pos}
	case '\'':
		lit, ok := l.readQuoted('\'')
		tok = Token{Type: TOKEN_STRING, Literal: lit, Pos: start, End: l.pos}
		if !ok {
			tok.Type = TOKEN_ILLEGAL
		}
		return tok
	case '"':
		lit, ok := l.readQuoted('"')
		tok = Token{Type: TOKEN_IDENT, Literal: lit, Pos: start, End: l.pos, Quoted: true}
		if !ok {
			tok.Type = TOKEN_ILLEGAL
		}
		return tok
	default:
		switch {
		case isLetter(l.ch) || l.ch == '_':
			literal := l.readIdentifier()
			return Token{Type: lookupKeyword(strings.ToLower(literal)), Literal: literal, Pos: start, End: l.pos}
		case isDigit(l.ch):
			literal := l.readNumber()
			return Token{Type: TOKEN_NUMBER, Literal: literal, Pos: start, End: l.pos}
		default:
			tok = Token{Type: TOKEN_ILLEGAL, Literal: string(l.ch)}
		}
	}

	l.readChar()
	tok.Pos, tok.End = start, l.pos
	return tok
}

// skipWhitespaceAndComments skips whitespace and SQL comments. An unterminated
// block comment consumes the rest of the input and marks the lexer so the next
// token is ILLEGAL.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' || l.ch == '\f' || l.ch == '\v' {
			l.readChar()
		}
		// Line comment (-- ...)
		if l.ch == '-' && l.peekChar() == '-' {
			for l.ch != '\n' && !l.atEOF() {
				l.readChar()
			}
			continue
		}
		// Block comment (/* ... */)
		if l.ch == '/' && l.peekChar() == '*' {
			l.readChar() // skip /
			l.readChar() // skip *
			closed := false
			for !l.atEOF() {
				if l.ch == '*' && l.peekChar() == '/' {
					l.readChar() // skip *
					l.readChar() // skip /
					closed = true
					break
				}
				l.readChar()
			}
			if !closed {
				l.illegal = true
				return
			}
			continue
		}
		break
	}
}

// readQuoted reads a literal delimited by quote, handling the doubled-quote
// escape. It reports false when the input ends before the closing quote.
func (l *Lexer) readQuoted(quote byte) (string, bool) {
	l.readChar() // skip opening quote
	var result strings.Builder
	for !l.atEOF() {
		if l.ch == quote {
			if l.peekChar() == quote {
				result.WriteByte(quote)
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // skip closing quote
			return result.String(), true
		}
		result.WriteByte(l.ch)
		l.readChar()
	}
	return result.String(), false
}

// readOperator reads a run of comparison and pipe characters.
func (l *Lexer) readOperator() string {
	start := l.pos
	for strings.IndexByte("=<>!|", l.ch) >= 0 && !l.atEOF() {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readIdentifier reads an unquoted identifier.
func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readNumber reads a numeric literal (integer, decimal, or scientific).
func (l *Lexer) readNumber() string {
	start := l.pos
	for isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar() // skip .
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return l.input[start:l.pos]
}

func isLetter(ch byte) bool {
	return ch >= 0x80 || unicode.IsLetter(rune(ch))
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
