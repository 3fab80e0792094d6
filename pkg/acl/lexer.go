package acl

import (
	"fmt"
	"strings"
)

// TokenType represents the type of a lexer token.
type TokenType int

const (
	TokenWord TokenType = iota // whitespace-delimited word
	TokenEOF
)

func (t TokenType) String() string {
	switch t {
	case TokenWord:
		return "word"
	case TokenEOF:
		return "EOF"
	default:
		return "unknown"
	}
}

// Token is a single lexer token. Pos is the zero-based index of the token
// within its line.
type Token struct {
	Type  TokenType
	Value string
	Pos   int
}

func (t Token) String() string {
	if t.Type == TokenWord {
		return fmt.Sprintf("%s(%q)", t.Type, t.Value)
	}
	return t.Type.String()
}

// Lexer is a consumable queue over the words of one configuration line.
// Words keep their original case and punctuation.
type Lexer struct {
	words []string
	pos   int
}

// NewLexer splits line on whitespace. Empty or blank input yields an empty
// queue.
func NewLexer(line string) *Lexer {
	return &Lexer{words: strings.Fields(line)}
}

// Next returns the next token, advancing the position.
func (l *Lexer) Next() Token {
	tok := l.Peek()
	if tok.Type != TokenEOF {
		l.pos++
	}
	return tok
}

// Peek returns the next token without advancing.
func (l *Lexer) Peek() Token {
	if l.pos >= len(l.words) {
		return Token{Type: TokenEOF, Pos: l.pos}
	}
	return Token{Type: TokenWord, Value: l.words[l.pos], Pos: l.pos}
}

// Accept consumes the next token if its value equals word.
func (l *Lexer) Accept(word string) bool {
	if tok := l.Peek(); tok.Type == TokenWord && tok.Value == word {
		l.pos++
		return true
	}
	return false
}

// Done reports whether every token has been consumed.
func (l *Lexer) Done() bool {
	return l.pos >= len(l.words)
}

// Pos returns the index of the next token.
func (l *Lexer) Pos() int {
	return l.pos
}

// Len returns the number of unconsumed tokens.
func (l *Lexer) Len() int {
	return len(l.words) - l.pos
}

// Remaining returns the unconsumed tokens.
func (l *Lexer) Remaining() []string {
	if l.Done() {
		return nil
	}
	return append([]string(nil), l.words[l.pos:]...)
}
