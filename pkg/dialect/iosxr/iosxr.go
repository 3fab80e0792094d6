// Package iosxr parses and renders Cisco IOS-XR access-list entries.
//
// Extended entries:
//
//	<seq> permit|deny <proto> <src> [<port-op>] <dst> [<port-op>] [<icmp-type>] [ttl <op>] [log|log-input]
//
// Standard entries (ip standard sets) carry a source only:
//
//	<seq> permit|deny <src> [log|log-input]
package iosxr

import (
	"strconv"
	"strings"

	"github.com/psaab/aclc/pkg/acl"
)

// Keywords that can never start an ICMP type operand.
const (
	kwTTL      = "ttl"
	kwLog      = "log"
	kwLogInput = "log-input"
)

var (
	extendedSyntax = acl.AddressSyntax{HostKeyword: true, Wildcards: true}
	standardSyntax = acl.AddressSyntax{HostKeyword: true, Wildcards: true, BareHost: true}
)

// Codec handles one IOS-XR ACL set.
type Codec struct {
	family acl.Family
	kind   acl.SetKind
}

// New returns a codec for sets of the given family and kind. Standard sets
// exist only for IPv4.
func New(family acl.Family, kind acl.SetKind) *Codec {
	if family == acl.IPv6 {
		kind = acl.Advanced
	}
	return &Codec{family: family, kind: kind}
}

// Parse turns one entry into a Rule.
func (c *Codec) Parse(line string) (*acl.Rule, error) {
	r, err := c.parse(acl.NewLexer(line))
	if err != nil {
		return nil, acl.WithLine(err, line)
	}
	return r, nil
}

func (c *Codec) parse(l *acl.Lexer) (*acl.Rule, error) {
	seq, err := acl.ParseSequenceID(l.Next())
	if err != nil {
		return nil, err
	}
	action, err := acl.ParsePermitDeny(l.Next())
	if err != nil {
		return nil, err
	}
	r := &acl.Rule{SequenceID: seq, Action: action}

	if c.kind == acl.Basic {
		if r.Source, err = acl.ParseAddress(l, c.family, standardSyntax); err != nil {
			return nil, err
		}
		r.Extra = parseLog(l)
		if err := acl.CheckDone(l); err != nil {
			return nil, err
		}
		return r, nil
	}

	if r.Protocol, err = c.parseProtocol(l.Next()); err != nil {
		return nil, err
	}
	if r.Source, err = acl.ParseAddress(l, c.family, extendedSyntax); err != nil {
		return nil, err
	}
	if r.SourcePort, err = parsePort(l, r.Protocol); err != nil {
		return nil, err
	}
	if r.Destination, err = acl.ParseAddress(l, c.family, extendedSyntax); err != nil {
		return nil, err
	}
	if r.DestinationPort, err = parsePort(l, r.Protocol); err != nil {
		return nil, err
	}
	if r.Protocol.IsICMP() {
		if tok := l.Peek(); tok.Type == acl.TokenWord && !isTrailer(tok.Value) {
			t, err := acl.ParseICMPType(l.Next(), r.Protocol)
			if err != nil {
				return nil, err
			}
			r.ICMPType = &t
		}
	}
	if l.Accept(kwTTL) {
		if r.TTL, err = acl.ParseTTLMatch(l); err != nil {
			return nil, err
		}
	}
	r.Extra = parseLog(l)
	if err := acl.CheckDone(l); err != nil {
		return nil, err
	}
	return r, nil
}

func (c *Codec) parseProtocol(tok acl.Token) (acl.Protocol, error) {
	if tok.Type == acl.TokenEOF {
		return acl.Protocol{}, acl.Errorf(acl.UnknownProtocol, tok.Pos, nil, "missing protocol")
	}
	v4 := c.family == acl.IPv4
	switch tok.Value {
	case "ipv4", "ip":
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
	return acl.Protocol{}, acl.Errorf(acl.UnknownProtocol, tok.Pos, []string{tok.Value}, "not valid in an %s access-list", c.family)
}

func parsePort(l *acl.Lexer, proto acl.Protocol) (*acl.Port, error) {
	tok := l.Peek()
	if tok.Type != acl.TokenWord || !acl.IsRelOp(tok.Value) {
		return nil, nil
	}
	if !proto.HasPorts() {
		return nil, acl.Errorf(acl.UnsupportedExpression, tok.Pos, []string{tok.Value}, "port match on protocol %s", proto)
	}
	return acl.ParsePortMatch(l, proto)
}

func parseLog(l *acl.Lexer) *acl.ExtraOperation {
	for _, kw := range []string{kwLog, kwLogInput} {
		if l.Accept(kw) {
			return &acl.ExtraOperation{Kind: acl.ExtraOther, Value: kw}
		}
	}
	return nil
}

func isTrailer(word string) bool {
	return word == kwTTL || word == kwLog || word == kwLogInput
}

// Render produces the entry text for r.
func (c *Codec) Render(r *acl.Rule) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	if err := r.CheckFamily(c.family); err != nil {
		return "", err
	}
	if r.Action.Kind == acl.Forward {
		return "", acl.Unsupported("forward action")
	}
	logKw, err := renderLog(r.Extra)
	if err != nil {
		return "", err
	}

	parts := []string{strconv.FormatUint(r.SequenceID, 10), r.Action.Kind.String()}
	if c.kind == acl.Basic {
		switch {
		case r.Protocol.Kind != acl.ProtoAny:
			return "", acl.Unsupported("protocol %s in a standard access-list", r.Protocol)
		case !r.Destination.IsMatchAll():
			return "", acl.Unsupported("destination match in a standard access-list")
		case r.TTL != nil:
			return "", acl.Unsupported("ttl match in a standard access-list")
		}
		src, err := acl.FormatAddress(r.Source, standardSyntax)
		if err != nil {
			return "", err
		}
		parts = append(parts, src)
		if logKw != "" {
			parts = append(parts, logKw)
		}
		return strings.Join(parts, " "), nil
	}

	parts = append(parts, c.protocolName(r.Protocol))
	for _, side := range []struct {
		addr acl.Address
		port *acl.Port
	}{{r.Source, r.SourcePort}, {r.Destination, r.DestinationPort}} {
		s, err := acl.FormatAddress(side.addr, extendedSyntax)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
		if p := acl.FormatPort(side.port); p != "" {
			parts = append(parts, p)
		}
	}
	if r.ICMPType != nil {
		parts = append(parts, acl.FormatICMPType(*r.ICMPType, r.Protocol))
	}
	if r.TTL != nil {
		parts = append(parts, kwTTL, acl.FormatTTL(r.TTL))
	}
	if logKw != "" {
		parts = append(parts, logKw)
	}
	return strings.Join(parts, " "), nil
}

func (c *Codec) protocolName(p acl.Protocol) string {
	if p.Kind == acl.ProtoAny {
		if c.family == acl.IPv6 {
			return "ipv6"
		}
		return "ipv4"
	}
	return acl.ProtocolName(p)
}

func renderLog(e *acl.ExtraOperation) (string, error) {
	if e == nil {
		return "", nil
	}
	if e.Kind == acl.ExtraOther && (e.Value == kwLog || e.Value == kwLogInput) {
		return e.Value, nil
	}
	if e.Kind == acl.ExtraCount {
		return "", acl.Unsupported("count operation")
	}
	return "", acl.Unsupported("extra operation %q", e.Value)
}

// RenderDelete produces the command that removes r from its set.
func (c *Codec) RenderDelete(r *acl.Rule) string {
	return "no " + strconv.FormatUint(r.SequenceID, 10)
}
