package acl

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a parse or render failure.
type ErrorKind int

const (
	MalformedSequenceID ErrorKind = iota + 1
	UnknownActionKeyword
	UnknownProtocol
	AddressFormatError
	PortKeywordUnrecognized
	NamedPortUnresolvable
	PortRangeInvalid
	UnsupportedExpression
	IcmpTypeUnresolvable
	TtlRangeInvalid
)

var kindNames = map[ErrorKind]string{
	MalformedSequenceID:     "malformed-sequence-id",
	UnknownActionKeyword:    "unknown-action-keyword",
	UnknownProtocol:         "unknown-protocol",
	AddressFormatError:      "address-format-error",
	PortKeywordUnrecognized: "port-keyword-unrecognized",
	NamedPortUnresolvable:   "named-port-unresolvable",
	PortRangeInvalid:        "port-range-invalid",
	UnsupportedExpression:   "unsupported-expression",
	IcmpTypeUnresolvable:    "icmp-type-unresolvable",
	TtlRangeInvalid:         "ttl-range-invalid",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("error-kind(%d)", int(k))
}

// ErrorKinds lists every kind, in declaration order.
func ErrorKinds() []ErrorKind {
	return []ErrorKind{
		MalformedSequenceID, UnknownActionKeyword, UnknownProtocol,
		AddressFormatError, PortKeywordUnrecognized, NamedPortUnresolvable,
		PortRangeInvalid, UnsupportedExpression, IcmpTypeUnresolvable,
		TtlRangeInvalid,
	}
}

// Sentinels for errors.Is. Every *ParseError unwraps to the one matching
// its Kind.
var (
	ErrMalformedSequenceID     = errors.New("malformed sequence id")
	ErrUnknownActionKeyword    = errors.New("unknown action keyword")
	ErrUnknownProtocol         = errors.New("unknown protocol")
	ErrAddressFormat           = errors.New("address format error")
	ErrPortKeywordUnrecognized = errors.New("port keyword unrecognized")
	ErrNamedPortUnresolvable   = errors.New("named port unresolvable")
	ErrPortRangeInvalid        = errors.New("port range invalid")
	ErrUnsupportedExpression   = errors.New("unsupported expression")
	ErrIcmpTypeUnresolvable    = errors.New("icmp type unresolvable")
	ErrTtlRangeInvalid         = errors.New("ttl range invalid")
)

var sentinels = map[ErrorKind]error{
	MalformedSequenceID:     ErrMalformedSequenceID,
	UnknownActionKeyword:    ErrUnknownActionKeyword,
	UnknownProtocol:         ErrUnknownProtocol,
	AddressFormatError:      ErrAddressFormat,
	PortKeywordUnrecognized: ErrPortKeywordUnrecognized,
	NamedPortUnresolvable:   ErrNamedPortUnresolvable,
	PortRangeInvalid:        ErrPortRangeInvalid,
	UnsupportedExpression:   ErrUnsupportedExpression,
	IcmpTypeUnresolvable:    ErrIcmpTypeUnresolvable,
	TtlRangeInvalid:         ErrTtlRangeInvalid,
}

// ParseError describes why a line could not be turned into a Rule, or why
// a Rule has no representation in a dialect.
type ParseError struct {
	Kind   ErrorKind
	Tokens []string // offending token(s)
	Pos    int      // token index where the failure was detected, -1 when rendering
	Line   string   // original line, empty when rendering
	Detail string
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if len(e.Tokens) > 0 {
		fmt.Fprintf(&b, " %q", strings.Join(e.Tokens, " "))
	}
	if e.Pos >= 0 && e.Line != "" {
		fmt.Fprintf(&b, " at token %d", e.Pos)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

// Unwrap returns the sentinel for e.Kind.
func (e *ParseError) Unwrap() error {
	return sentinels[e.Kind]
}

// Errorf builds a ParseError for tokens found at pos.
func Errorf(kind ErrorKind, pos int, tokens []string, format string, args ...any) *ParseError {
	return &ParseError{
		Kind:   kind,
		Tokens: tokens,
		Pos:    pos,
		Detail: fmt.Sprintf(format, args...),
	}
}

// Unsupported reports a rule construct the target dialect cannot express.
func Unsupported(format string, args ...any) *ParseError {
	return &ParseError{
		Kind:   UnsupportedExpression,
		Pos:    -1,
		Detail: fmt.Sprintf(format, args...),
	}
}

// WithLine attaches the original line to err if it is a *ParseError.
func WithLine(err error, line string) error {
	var pe *ParseError
	if errors.As(err, &pe) && pe.Line == "" {
		pe.Line = line
	}
	return err
}

// KindOf returns the ErrorKind carried by err, or 0 if err is not a
// *ParseError.
func KindOf(err error) ErrorKind {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}

// CheckDone fails with UnsupportedExpression if the lexer still holds tokens.
func CheckDone(l *Lexer) error {
	if l.Done() {
		return nil
	}
	return Errorf(UnsupportedExpression, l.Pos(), l.Remaining(), "unconsumed tokens")
}
