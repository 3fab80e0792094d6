// Package config loads the aclc daemon configuration, written either in
// a brace-delimited hierarchical syntax or as YAML.
package config

import (
	"fmt"
	"strings"
)

// TokenType is the kind of a configuration token.
type TokenType int

const (
	TokenEOF       TokenType = iota
	TokenWord                // ACL name, keyword, address, path
	TokenQuoted              // "text with spaces"
	TokenOpen                // {
	TokenClose               // }
	TokenEnd                 // ;
	TokenListOpen            // [
	TokenListClose           // ]
	TokenError
)

var tokenNames = [...]string{
	TokenEOF:       "end of input",
	TokenWord:      "word",
	TokenQuoted:    "quoted string",
	TokenOpen:      "'{'",
	TokenClose:     "'}'",
	TokenEnd:       "';'",
	TokenListOpen:  "'['",
	TokenListClose: "']'",
	TokenError:     "error",
}

func (t TokenType) String() string {
	if int(t) < len(tokenNames) {
		return tokenNames[t]
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// Token is one lexeme with the position of its first character.
type Token struct {
	Type   TokenType
	Value  string
	Line   int
	Column int
}

func (t Token) String() string {
	switch t.Type {
	case TokenWord, TokenQuoted:
		return fmt.Sprintf("%s %q", t.Type, t.Value)
	case TokenError:
		return t.Value
	}
	return t.Type.String()
}

var punct = map[byte]TokenType{
	'{': TokenOpen,
	'}': TokenClose,
	';': TokenEnd,
	'[': TokenListOpen,
	']': TokenListClose,
}

// Lexer splits configuration text into tokens. Comments run from '#' to
// the end of the line.
type Lexer struct {
	src       string
	off       int
	line      int
	lineStart int
	peeked    *Token
}

// NewLexer returns a lexer positioned at the start of src.
func NewLexer(src string) *Lexer {
	return &Lexer{src: src, line: 1}
}

// Peek returns the next token without consuming it.
func (l *Lexer) Peek() Token {
	if l.peeked == nil {
		tok := l.scan()
		l.peeked = &tok
	}
	return *l.peeked
}

// Next consumes and returns the next token.
func (l *Lexer) Next() Token {
	tok := l.Peek()
	l.peeked = nil
	return tok
}

func (l *Lexer) scan() Token {
	l.skipSpace()
	tok := Token{Line: l.line, Column: l.off - l.lineStart + 1}
	if l.off >= len(l.src) {
		tok.Type = TokenEOF
		return tok
	}

	c := l.src[l.off]
	if typ, ok := punct[c]; ok {
		l.off++
		tok.Type, tok.Value = typ, string(c)
		return tok
	}
	switch {
	case c == '"':
		return l.quoted(tok)
	case isWordByte(c):
		start := l.off
		for l.off < len(l.src) && isWordByte(l.src[l.off]) {
			l.off++
		}
		tok.Type, tok.Value = TokenWord, l.src[start:l.off]
		return tok
	}
	l.off++
	tok.Type, tok.Value = TokenError, fmt.Sprintf("unexpected character %q", c)
	return tok
}

func (l *Lexer) skipSpace() {
	for l.off < len(l.src) {
		switch c := l.src[l.off]; c {
		case '\n':
			l.off++
			l.line++
			l.lineStart = l.off
		case ' ', '\t', '\r':
			l.off++
		case '#':
			for l.off < len(l.src) && l.src[l.off] != '\n' {
				l.off++
			}
		default:
			return
		}
	}
}

// quoted reads a double-quoted string. \" \\ \t and \n are the only
// escapes; a newline before the closing quote is an error.
func (l *Lexer) quoted(tok Token) Token {
	l.off++
	var b strings.Builder
	for l.off < len(l.src) {
		c := l.src[l.off]
		l.off++
		switch c {
		case '"':
			tok.Type, tok.Value = TokenQuoted, b.String()
			return tok
		case '\n':
			l.line++
			l.lineStart = l.off
			tok.Type, tok.Value = TokenError, "newline in quoted string"
			return tok
		case '\\':
			if l.off >= len(l.src) {
				break
			}
			esc := l.src[l.off]
			l.off++
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case '"', '\\':
				b.WriteByte(esc)
			default:
				tok.Type, tok.Value = TokenError, fmt.Sprintf("unknown escape \\%c", esc)
				return tok
			}
		default:
			b.WriteByte(c)
		}
	}
	tok.Type, tok.Value = TokenError, "unterminated string"
	return tok
}

// isWordByte accepts what unquoted ACL names, host:port listen addresses,
// unix:/paths, sizes and user@host names need. Anything else, including
// IPv6 literals in brackets, must be quoted.
func isWordByte(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.:/@", c) >= 0
}
