// Package cubro parses and renders Cubro packet-broker filter entries.
// Every entry has the same fixed columns; unused ones hold "any":
//
//	<seq> permit|deny|forward elag <n> <proto> <src> <dst> <icmp-type> [count]
package cubro

import (
	"strconv"
	"strings"

	"github.com/psaab/aclc/pkg/acl"
)

const (
	kwAny   = "any"
	kwElag  = "elag"
	kwCount = "count"
)

var addrSyntax = acl.AddressSyntax{BareHost: true}

// Codec handles Cubro filter entries. Cubro filters are IPv4 only.
type Codec struct{}

// New returns a Cubro codec.
func New() *Codec {
	return &Codec{}
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
	r := &acl.Rule{SequenceID: seq}
	if r.Action, err = parseAction(l); err != nil {
		return nil, err
	}
	if r.Protocol, err = parseProtocol(l.Next()); err != nil {
		return nil, err
	}
	if r.Source, err = parseAddress(l); err != nil {
		return nil, err
	}
	if r.Destination, err = parseAddress(l); err != nil {
		return nil, err
	}

	tok := l.Next()
	switch {
	case tok.Type == acl.TokenEOF:
		return nil, acl.Errorf(acl.IcmpTypeUnresolvable, tok.Pos, nil, "missing icmp type column")
	case tok.Value == kwAny:
	case !r.Protocol.IsICMP():
		return nil, acl.Errorf(acl.UnsupportedExpression, tok.Pos, []string{tok.Value}, "icmp type on protocol %s", r.Protocol)
	default:
		t, err := acl.ParseICMPType(tok, r.Protocol)
		if err != nil {
			return nil, err
		}
		r.ICMPType = &t
	}

	if l.Accept(kwCount) {
		r.Extra = &acl.ExtraOperation{Kind: acl.ExtraCount}
	}
	if err := acl.CheckDone(l); err != nil {
		return nil, err
	}
	return r, nil
}

func parseAction(l *acl.Lexer) (acl.Action, error) {
	tok := l.Peek()
	if tok.Value != "forward" {
		return acl.ParsePermitDeny(l.Next())
	}
	l.Next()
	egress := l.Next()
	if egress.Value != kwElag {
		return acl.Action{}, acl.Errorf(acl.UnknownActionKeyword, egress.Pos, []string{tok.Value, egress.Value}, "expected forward elag <n>")
	}
	v := l.Next()
	n, err := strconv.ParseUint(v.Value, 10, 32)
	if err != nil {
		return acl.Action{}, acl.Errorf(acl.UnknownActionKeyword, v.Pos, []string{kwElag, v.Value}, "egress group is not a number")
	}
	return acl.Action{Kind: acl.Forward, EgressType: acl.EgressElag, EgressValue: uint32(n)}, nil
}

func parseProtocol(tok acl.Token) (acl.Protocol, error) {
	switch tok.Value {
	case kwAny:
		return acl.Protocol{Kind: acl.ProtoAny}, nil
	case "tcp":
		return acl.Protocol{Kind: acl.ProtoTCP}, nil
	case "udp":
		return acl.Protocol{Kind: acl.ProtoUDP}, nil
	case "icmp":
		return acl.Protocol{Kind: acl.ProtoICMP}, nil
	}
	if tok.Type == acl.TokenEOF {
		return acl.Protocol{}, acl.Errorf(acl.UnknownProtocol, tok.Pos, nil, "missing protocol")
	}
	if p, ok := acl.LookupProtocol(tok.Value); ok && acl.ProtocolFamilyOK(p, acl.IPv4) {
		return p, nil
	}
	return acl.Protocol{}, acl.Errorf(acl.UnknownProtocol, tok.Pos, []string{tok.Value}, "unknown protocol")
}

// parseAddress accepts "any" or a single IPv4 host literal.
func parseAddress(l *acl.Lexer) (acl.Address, error) {
	tok := l.Peek()
	a, err := acl.ParseAddress(l, acl.IPv4, addrSyntax)
	if err != nil {
		return acl.Address{}, err
	}
	if a.Kind == acl.AddrCIDR {
		return acl.Address{}, acl.Errorf(acl.AddressFormatError, tok.Pos, []string{tok.Value}, "prefixes are not supported")
	}
	return a, nil
}

// Render produces the entry text for r.
func (c *Codec) Render(r *acl.Rule) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	if err := r.CheckFamily(acl.IPv4); err != nil {
		return "", err
	}
	switch {
	case r.SourcePort != nil || r.DestinationPort != nil:
		return "", acl.Unsupported("port match")
	case r.TTL != nil:
		return "", acl.Unsupported("ttl match")
	case r.Extra != nil && r.Extra.Kind != acl.ExtraCount:
		return "", acl.Unsupported("extra operation %q", r.Extra.Value)
	}

	parts := []string{strconv.FormatUint(r.SequenceID, 10), r.Action.Kind.String()}
	if r.Action.Kind == acl.Forward {
		parts = append(parts, kwElag, strconv.FormatUint(uint64(r.Action.EgressValue), 10))
	}
	if r.Protocol.Kind == acl.ProtoAny {
		parts = append(parts, kwAny)
	} else {
		parts = append(parts, r.Protocol.String())
	}
	for _, a := range []acl.Address{r.Source, r.Destination} {
		if a.Kind != acl.AddrAny && a.Kind != acl.AddrHost && !a.IsMatchAll() {
			return "", acl.Unsupported("address %s", a)
		}
		s, err := acl.FormatAddress(a, addrSyntax)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	if r.ICMPType != nil {
		parts = append(parts, strconv.Itoa(int(*r.ICMPType)))
	} else {
		parts = append(parts, kwAny)
	}
	if r.Extra != nil {
		parts = append(parts, kwCount)
	}
	return strings.Join(parts, " "), nil
}

// RenderDelete produces the command that removes r.
func (c *Codec) RenderDelete(r *acl.Rule) string {
	return "no " + strconv.FormatUint(r.SequenceID, 10)
}
