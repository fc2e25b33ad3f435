// Package irtext reads and writes the textual form of the radeon IR.
//
// The format is line oriented. A file starts with a shader header, followed
// by optional execution mode lines and function definitions:
//
//	shader "example" fragment
//	info pixel_interlock_ordered
//
//	fn main entry {
//	  %0:2x32 = load_barycentric center smooth
//	  %1:4x32 = load_input %0 location=0 component=0
//	  store_output %1 slot=data0 mask=0xf type=float32
//	}
//
// Value-defining instructions name their result with %N and its shape with
// components x bit size. Other instructions start with their mnemonic.
// Attributes are key=value pairs; flag sets join names with '|'. Comments
// run from // to the end of the line.
package irtext

import "fmt"

// TokenKind represents the type of token.
type TokenKind uint8

const (
	TokenEOF TokenKind = iota
	TokenNewline

	// Literals
	TokenIdent  // load_var, data0
	TokenInt    // 42, 0x3f800000, -1
	TokenString // "name"
	TokenValue  // %3
	TokenShape  // 4x32

	// Punctuation
	TokenLeftBrace  // {
	TokenRightBrace // }
	TokenColon      // :
	TokenEqual      // =
	TokenPipe       // |
)

var tokenNames = [...]string{
	TokenEOF:        "end of file",
	TokenNewline:    "newline",
	TokenIdent:      "identifier",
	TokenInt:        "integer",
	TokenString:     "string",
	TokenValue:      "value",
	TokenShape:      "shape",
	TokenLeftBrace:  "{",
	TokenRightBrace: "}",
	TokenColon:      ":",
	TokenEqual:      "=",
	TokenPipe:       "|",
}

// String returns the string representation of the token kind.
func (k TokenKind) String() string {
	if int(k) < len(tokenNames) {
		return tokenNames[k]
	}
	return fmt.Sprintf("token(%d)", uint8(k))
}

// Token represents a lexical token.
type Token struct {
	Kind   TokenKind
	Lexeme string
	Line   int
	Column int
}

func (t Token) describe() string {
	switch t.Kind {
	case TokenEOF, TokenNewline:
		return t.Kind.String()
	}
	return fmt.Sprintf("%s %q", t.Kind, t.Lexeme)
}
