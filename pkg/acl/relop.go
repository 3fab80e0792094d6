package acl

import (
	"fmt"
	"strconv"

	"github.com/psaab/aclc/pkg/lookup"
)

// Relational operator keywords shared by port and TTL clauses.
const (
	OpEq    = "eq"
	OpNeq   = "neq"
	OpLt    = "lt"
	OpGt    = "gt"
	OpRange = "range"
)

// IsRelOp reports whether word introduces a relational clause.
func IsRelOp(word string) bool {
	switch word {
	case OpEq, OpNeq, OpLt, OpGt, OpRange:
		return true
	}
	return false
}

// relDomain is the numeric space a relational clause ranges over.
type relDomain struct {
	max       int
	names     *lookup.Table
	keyword   ErrorKind // bad operator
	outOfDom  ErrorKind // bound overflow or reversed range
	unknownNm ErrorKind // operand name without a numeric mapping
}

// relation is a resolved clause: either an exact value (possibly named) or
// an inclusive range, inverted for neq.
type relation struct {
	exact bool
	name  string
	low   int
	high  int
}

func portDomain(proto Protocol) relDomain {
	d := relDomain{
		max:       MaxPort,
		keyword:   PortKeywordUnrecognized,
		outOfDom:  PortRangeInvalid,
		unknownNm: NamedPortUnresolvable,
	}
	switch proto.Kind {
	case ProtoTCP:
		d.names = lookup.TCPServices
	case ProtoUDP:
		d.names = lookup.UDPServices
	}
	return d
}

var ttlDomain = relDomain{
	max:       255,
	keyword:   TtlRangeInvalid,
	outOfDom:  TtlRangeInvalid,
	unknownNm: TtlRangeInvalid,
}

// ParsePortMatch consumes "<op> <port> [<port>]" for a TCP or UDP port.
// lt, gt, neq and range are resolved into a Range; eq keeps the operand
// as written (numeric or named). Every name must be in the protocol's
// service table.
func ParsePortMatch(l *Lexer, proto Protocol) (*Port, error) {
	rel, err := parseRelation(l, portDomain(proto), true)
	if err != nil {
		return nil, err
	}
	switch {
	case rel.exact && rel.name != "":
		return NamedPort(rel.name), nil
	case rel.exact:
		return ExactPort(uint16(rel.low)), nil
	default:
		return PortRangeOf(uint16(rel.low), uint16(rel.high)), nil
	}
}

// ParseTTLMatch consumes "<op> <ttl> [<ttl>]". The leading "ttl" keyword
// must already be consumed.
func ParseTTLMatch(l *Lexer) (*Range8, error) {
	rel, err := parseRelation(l, ttlDomain, false)
	if err != nil {
		return nil, err
	}
	if rel.exact {
		rel.high = rel.low
	}
	return &Range8{Low: uint8(rel.low), High: uint8(rel.high)}, nil
}

func parseRelation(l *Lexer, d relDomain, keepNames bool) (relation, error) {
	opTok := l.Next()
	if opTok.Type == TokenEOF {
		return relation{}, Errorf(d.keyword, opTok.Pos, nil, "missing relational operator")
	}
	op := opTok.Value

	operand := func(keepName bool) (int, string, error) {
		tok := l.Next()
		if tok.Type == TokenEOF {
			return 0, "", Errorf(d.outOfDom, tok.Pos, []string{op}, "missing operand")
		}
		if isDigits(tok.Value) {
			n, err := strconv.ParseUint(tok.Value, 10, 32)
			if err != nil || int(n) > d.max {
				return 0, "", Errorf(d.outOfDom, tok.Pos, []string{tok.Value}, "value exceeds %d", d.max)
			}
			return int(n), "", nil
		}
		if n, ok := d.names.Number(tok.Value); ok {
			if keepName && keepNames {
				return int(n), tok.Value, nil
			}
			return int(n), "", nil
		}
		return 0, "", Errorf(d.unknownNm, tok.Pos, []string{op, tok.Value}, "no numeric value for %q", tok.Value)
	}

	switch op {
	case OpEq:
		n, name, err := operand(true)
		if err != nil {
			return relation{}, err
		}
		return relation{exact: true, name: name, low: n, high: n}, nil
	case OpNeq:
		n, _, err := operand(false)
		if err != nil {
			return relation{}, err
		}
		return invert(n, d.max), nil
	case OpLt:
		n, _, err := operand(false)
		if err != nil {
			return relation{}, err
		}
		if n == 0 {
			return relation{}, Errorf(d.outOfDom, opTok.Pos, []string{op, "0"}, "nothing is below 0")
		}
		return relation{low: 0, high: n - 1}, nil
	case OpGt:
		n, _, err := operand(false)
		if err != nil {
			return relation{}, err
		}
		if n == d.max {
			return relation{}, Errorf(d.outOfDom, opTok.Pos, []string{op, strconv.Itoa(n)}, "nothing is above %d", d.max)
		}
		return relation{low: n + 1, high: d.max}, nil
	case OpRange:
		low, _, err := operand(false)
		if err != nil {
			return relation{}, err
		}
		high, _, err := operand(false)
		if err != nil {
			return relation{}, err
		}
		if low > high {
			return relation{}, Errorf(d.outOfDom, opTok.Pos,
				[]string{op, strconv.Itoa(low), strconv.Itoa(high)}, "low bound exceeds high bound")
		}
		return relation{low: low, high: high}, nil
	default:
		return relation{}, Errorf(d.keyword, opTok.Pos, []string{op}, "expected eq, neq, lt, gt or range")
	}
}

// invert encodes "not equal to n" as a range that excludes n. At the
// domain edges the range is ordered; otherwise it is inverted
// (low == high+2).
func invert(n, max int) relation {
	switch n {
	case 0:
		return relation{low: 1, high: max}
	case max:
		return relation{low: 0, high: max - 1}
	default:
		return relation{low: n + 1, high: n - 1}
	}
}

// NotEqualValue reports whether low..high is one of the three shapes neq
// produces, and the excluded value.
func NotEqualValue(low, high, max int) (int, bool) {
	switch {
	case low == 1 && high == max:
		return 0, true
	case low == 0 && high == max-1:
		return max, true
	case low == high+2:
		return high + 1, true
	}
	return 0, false
}

func formatRange(low, high, max int) string {
	if n, ok := NotEqualValue(low, high, max); ok {
		return fmt.Sprintf("%s %d", OpNeq, n)
	}
	switch {
	case low == 0 && high == max:
		return fmt.Sprintf("%s %d %d", OpRange, low, high)
	case low == 0:
		return fmt.Sprintf("%s %d", OpLt, high+1)
	case high == max:
		return fmt.Sprintf("%s %d", OpGt, low-1)
	default:
		return fmt.Sprintf("%s %d %d", OpRange, low, high)
	}
}

// FormatPort renders a port match clause without its leading keyword.
// PortAny renders as the empty string.
func FormatPort(p *Port) string {
	if p == nil {
		return ""
	}
	switch p.Kind {
	case PortExact:
		return fmt.Sprintf("%s %d", OpEq, p.Low)
	case PortNamed:
		return OpEq + " " + p.Name
	case PortRange:
		return formatRange(int(p.Low), int(p.High), MaxPort)
	default:
		return ""
	}
}

// FormatTTL renders a TTL clause without its leading "ttl" keyword.
func FormatTTL(r *Range8) string {
	if r == nil {
		return ""
	}
	if r.Low == r.High {
		return fmt.Sprintf("%s %d", OpEq, r.Low)
	}
	return formatRange(int(r.Low), int(r.High), 255)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
