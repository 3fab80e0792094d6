// Package vrp parses and renders Huawei VRP ACL rules:
//
//	rule <id> permit|deny [<proto>] [source <addr>] [destination <addr>]
//	    [source-port <op>] [destination-port <op>] [icmp-type <t>]
//
// Keyword clauses are accepted in any order, each at most once. Basic ACLs
// (2000-2999) take no protocol and only a source clause.
package vrp

import (
	"strconv"
	"strings"

	"github.com/psaab/aclc/pkg/acl"
)

const (
	kwRule            = "rule"
	kwUndo            = "undo"
	kwSource          = "source"
	kwDestination     = "destination"
	kwSourcePort      = "source-port"
	kwDestinationPort = "destination-port"
	kwICMPType        = "icmp-type"
	kwAny             = "any"
)

var addrSyntax = acl.AddressSyntax{ZeroWildcardHost: true, Wildcards: true, Terminated: true}

// ACL number ranges.
const (
	BasicFirst    = 2000
	BasicLast     = 2999
	AdvancedFirst = 3000
	AdvancedLast  = 3999
)

// KindOfNumber classifies a numbered ACL.
func KindOfNumber(n int) (acl.SetKind, bool) {
	switch {
	case n >= BasicFirst && n <= BasicLast:
		return acl.Basic, true
	case n >= AdvancedFirst && n <= AdvancedLast:
		return acl.Advanced, true
	}
	return 0, false
}

// Codec handles one VRP ACL.
type Codec struct {
	family acl.Family
	kind   acl.SetKind
}

// New returns a codec for an ACL of the given family and kind.
func New(family acl.Family, kind acl.SetKind) *Codec {
	return &Codec{family: family, kind: kind}
}

func isClause(word string) bool {
	switch word {
	case kwSource, kwDestination, kwSourcePort, kwDestinationPort, kwICMPType:
		return true
	}
	return false
}

// Parse turns one rule line into a Rule.
func (c *Codec) Parse(line string) (*acl.Rule, error) {
	r, err := c.parse(acl.NewLexer(line))
	if err != nil {
		return nil, acl.WithLine(err, line)
	}
	return r, nil
}

func (c *Codec) parse(l *acl.Lexer) (*acl.Rule, error) {
	if tok := l.Next(); tok.Value != kwRule {
		if tok.Type == acl.TokenEOF {
			return nil, acl.Errorf(acl.MalformedSequenceID, tok.Pos, nil, "missing rule keyword")
		}
		return nil, acl.Errorf(acl.MalformedSequenceID, tok.Pos, []string{tok.Value}, "expected rule keyword")
	}
	seq, err := acl.ParseSequenceID(l.Next())
	if err != nil {
		return nil, err
	}
	action, err := acl.ParsePermitDeny(l.Next())
	if err != nil {
		return nil, err
	}
	r := &acl.Rule{SequenceID: seq, Action: action}

	if c.kind == acl.Advanced {
		if tok := l.Peek(); tok.Type == acl.TokenWord && !isClause(tok.Value) {
			if r.Protocol, err = c.parseProtocol(l.Next()); err != nil {
				return nil, err
			}
		}
	}

	seen := make(map[string]bool)
	for !l.Done() {
		tok := l.Peek()
		if !isClause(tok.Value) || (c.kind == acl.Basic && tok.Value != kwSource) {
			break
		}
		if seen[tok.Value] {
			return nil, acl.Errorf(acl.UnsupportedExpression, tok.Pos, []string{tok.Value}, "duplicate %s clause", tok.Value)
		}
		seen[tok.Value] = true
		l.Next()

		switch tok.Value {
		case kwSource:
			r.Source, err = acl.ParseAddress(l, c.family, addrSyntax)
		case kwDestination:
			r.Destination, err = acl.ParseAddress(l, c.family, addrSyntax)
		case kwSourcePort, kwDestinationPort:
			if !r.Protocol.HasPorts() {
				return nil, acl.Errorf(acl.UnsupportedExpression, tok.Pos, []string{tok.Value}, "port match on protocol %s", r.Protocol)
			}
			var p *acl.Port
			if p, err = acl.ParsePortMatch(l, r.Protocol); err == nil {
				if tok.Value == kwSourcePort {
					r.SourcePort = p
				} else {
					r.DestinationPort = p
				}
			}
		case kwICMPType:
			if !r.Protocol.IsICMP() {
				return nil, acl.Errorf(acl.UnsupportedExpression, tok.Pos, []string{tok.Value}, "icmp-type on protocol %s", r.Protocol)
			}
			var t uint8
			if t, err = acl.ParseICMPType(l.Next(), r.Protocol); err == nil {
				r.ICMPType = &t
			}
		}
		if err != nil {
			return nil, err
		}
	}
	if err := acl.CheckDone(l); err != nil {
		return nil, err
	}
	return r, nil
}

func (c *Codec) parseProtocol(tok acl.Token) (acl.Protocol, error) {
	v4 := c.family == acl.IPv4
	switch tok.Value {
	case "ip":
		if v4 {
			return acl.Protocol{Kind: acl.ProtoAny}, nil
		}
	case "ipv6":
		if !v4 {
			return acl.Protocol{Kind: acl.ProtoAny}, nil
		}
	case "tcp":
		return acl.Protocol{Kind: acl.ProtoTCP}, nil
	case "udp":
		return acl.Protocol{Kind: acl.ProtoUDP}, nil
	case "icmp":
		if v4 {
			return acl.Protocol{Kind: acl.ProtoICMP}, nil
		}
	case "icmpv6":
		if !v4 {
			return acl.Protocol{Kind: acl.ProtoICMPv6}, nil
		}
	default:
		p, ok := acl.LookupProtocol(tok.Value)
		if !ok {
			return acl.Protocol{}, acl.Errorf(acl.UnknownProtocol, tok.Pos, []string{tok.Value}, "unknown protocol")
		}
		if acl.ProtocolFamilyOK(p, c.family) {
			return p, nil
		}
	}
	return acl.Protocol{}, acl.Errorf(acl.UnknownProtocol, tok.Pos, []string{tok.Value}, "not valid in an %s acl", c.family)
}

// Render produces the rule line for r, clauses in canonical order.
func (c *Codec) Render(r *acl.Rule) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	if err := r.CheckFamily(c.family); err != nil {
		return "", err
	}
	switch {
	case r.Action.Kind == acl.Forward:
		return "", acl.Unsupported("forward action")
	case r.TTL != nil:
		return "", acl.Unsupported("ttl match")
	case r.Extra != nil:
		return "", acl.Unsupported("extra operation")
	}

	parts := []string{kwRule, strconv.FormatUint(r.SequenceID, 10), r.Action.Kind.String()}
	if c.kind == acl.Basic {
		switch {
		case r.Protocol.Kind != acl.ProtoAny:
			return "", acl.Unsupported("protocol %s in a basic acl", r.Protocol)
		case !r.Destination.IsMatchAll():
			return "", acl.Unsupported("destination match in a basic acl")
		}
	} else {
		parts = append(parts, c.protocolName(r.Protocol))
	}

	if !r.Source.IsMatchAll() {
		s, err := acl.FormatAddress(r.Source, addrSyntax)
		if err != nil {
			return "", err
		}
		parts = append(parts, kwSource, s)
	}
	// An advanced rule with any other match clause always names its
	// destination, the way the device displays it.
	switch {
	case !r.Destination.IsMatchAll():
		s, err := acl.FormatAddress(r.Destination, addrSyntax)
		if err != nil {
			return "", err
		}
		parts = append(parts, kwDestination, s)
	case c.kind == acl.Advanced && hasMatchClause(r):
		parts = append(parts, kwDestination, kwAny)
	}
	if p := acl.FormatPort(r.SourcePort); p != "" {
		parts = append(parts, kwSourcePort, p)
	}
	if p := acl.FormatPort(r.DestinationPort); p != "" {
		parts = append(parts, kwDestinationPort, p)
	}
	if r.ICMPType != nil {
		parts = append(parts, kwICMPType, acl.FormatICMPType(*r.ICMPType, r.Protocol))
	}
	return strings.Join(parts, " "), nil
}

func hasMatchClause(r *acl.Rule) bool {
	return !r.Source.IsMatchAll() || r.ICMPType != nil ||
		acl.FormatPort(r.SourcePort) != "" || acl.FormatPort(r.DestinationPort) != ""
}

func (c *Codec) protocolName(p acl.Protocol) string {
	if p.Kind == acl.ProtoAny {
		if c.family == acl.IPv6 {
			return "ipv6"
		}
		return "ip"
	}
	return acl.ProtocolName(p)
}

// RenderDelete produces the command that removes r from its ACL.
func (c *Codec) RenderDelete(r *acl.Rule) string {
	return kwUndo + " " + kwRule + " " + strconv.FormatUint(r.SequenceID, 10)
}
