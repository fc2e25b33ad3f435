package irtext

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// Lexer tokenizes IR text.
type Lexer struct {
	source string
	pos    int
	line   int
	column int
	start  int
	tokens []Token
}

// NewLexer creates a new lexer for the given source.
func NewLexer(source string) *Lexer {
	// Estimate ~1 token per 6 characters of source.
	estTokens := len(source) / 6
	if estTokens < 16 {
		estTokens = 16
	}
	return &Lexer{
		source: source,
		line:   1,
		column: 1,
		tokens: make([]Token, 0, estTokens),
	}
}

// Tokenize returns all tokens from the source.
func (l *Lexer) Tokenize() ([]Token, error) {
	for !l.isAtEnd() {
		l.start = l.pos
		if err := l.scanToken(); err != nil {
			return nil, err
		}
	}

	l.tokens = append(l.tokens, Token{
		Kind:   TokenEOF,
		Line:   l.line,
		Column: l.column,
	})

	return l.tokens, nil
}

func (l *Lexer) scanToken() error {
	r := l.advance()

	switch r {
	case '{':
		l.addToken(TokenLeftBrace)
	case '}':
		l.addToken(TokenRightBrace)
	case ':':
		l.addToken(TokenColon)
	case '=':
		l.addToken(TokenEqual)
	case '|':
		l.addToken(TokenPipe)
	case '\n':
		l.addToken(TokenNewline)
		l.line++
		l.column = 1
	case ' ', '\t', '\r':
	case '/':
		if !l.match('/') {
			return l.errorf("unexpected character '/'")
		}
		for l.peek() != '\n' && !l.isAtEnd() {
			l.advance()
		}
	case '"':
		return l.str()
	case '%':
		if !isDigit(l.peek()) {
			return l.errorf("expected value number after '%%'")
		}
		for isDigit(l.peek()) {
			l.advance()
		}
		l.addToken(TokenValue)
	case '-':
		if !isDigit(l.peek()) {
			return l.errorf("expected digit after '-'")
		}
		l.number()
	default:
		switch {
		case isDigit(r):
			l.number()
		case isAlpha(r) || r == '_':
			l.identifier()
		default:
			return l.errorf("unexpected character %q", r)
		}
	}

	return nil
}

func (l *Lexer) str() error {
	for l.peek() != '"' {
		if l.isAtEnd() || l.peek() == '\n' {
			return l.errorf("unterminated string")
		}
		l.advance()
	}
	l.advance()
	l.tokens = append(l.tokens, Token{
		Kind:   TokenString,
		Lexeme: l.source[l.start+1 : l.pos-1],
		Line:   l.line,
		Column: l.column - (l.pos - l.start),
	})
	return nil
}

// number scans decimal and hex integers and shapes such as 4x32.
func (l *Lexer) number() {
	first := l.source[l.pos-1]
	if first == '0' && (l.peek() == 'x' || l.peek() == 'X') {
		l.advance()
		for isHexDigit(l.peek()) {
			l.advance()
		}
		l.addToken(TokenInt)
		return
	}

	for isDigit(l.peek()) {
		l.advance()
	}

	if l.peek() == 'x' && isDigit(l.peekNext()) && l.source[l.start] != '-' {
		l.advance()
		for isDigit(l.peek()) {
			l.advance()
		}
		l.addToken(TokenShape)
		return
	}

	l.addToken(TokenInt)
}

func (l *Lexer) identifier() {
	for isAlphaNumeric(l.peek()) || l.peek() == '_' {
		l.advance()
	}
	l.addToken(TokenIdent)
}

func (l *Lexer) addToken(kind TokenKind) {
	l.tokens = append(l.tokens, Token{
		Kind:   kind,
		Lexeme: l.source[l.start:l.pos],
		Line:   l.line,
		Column: l.column - (l.pos - l.start),
	})
}

func (l *Lexer) errorf(format string, args ...any) error {
	return &Error{
		Message: fmt.Sprintf(format, args...),
		Line:    l.line,
		Column:  l.column - (l.pos - l.start),
		Source:  l.source,
	}
}

func (l *Lexer) advance() rune {
	r, size := utf8.DecodeRuneInString(l.source[l.pos:])
	l.pos += size
	l.column++
	return r
}

func (l *Lexer) peek() rune {
	if l.isAtEnd() {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.source[l.pos:])
	return r
}

func (l *Lexer) peekNext() rune {
	if l.pos+1 >= len(l.source) {
		return 0
	}
	_, size := utf8.DecodeRuneInString(l.source[l.pos:])
	r, _ := utf8.DecodeRuneInString(l.source[l.pos+size:])
	return r
}

func (l *Lexer) match(expected rune) bool {
	if l.isAtEnd() {
		return false
	}
	r, size := utf8.DecodeRuneInString(l.source[l.pos:])
	if r != expected {
		return false
	}
	l.pos += size
	l.column++
	return true
}

func (l *Lexer) isAtEnd() bool {
	return l.pos >= len(l.source)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func isAlpha(r rune) bool {
	return unicode.IsLetter(r)
}

func isAlphaNumeric(r rune) bool {
	return isAlpha(r) || isDigit(r)
}
