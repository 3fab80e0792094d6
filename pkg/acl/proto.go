package acl

import (
	"strconv"

	"github.com/psaab/aclc/pkg/lookup"
)

// LookupProtocol resolves a protocol number (0..255) or a name from the
// protocol table. The dialect-specific spellings of "any" and the named
// protocols (tcp, udp, icmp, icmpv6) are handled by the callers.
func LookupProtocol(word string) (Protocol, bool) {
	if isDigits(word) {
		n, err := strconv.ParseUint(word, 10, 8)
		if err != nil {
			return Protocol{}, false
		}
		return ProtocolFromNumber(uint8(n)), true
	}
	if n, ok := lookup.Protocols.Number(word); ok && n <= 255 {
		return ProtocolFromNumber(uint8(n)), true
	}
	return Protocol{}, false
}

// ProtocolName returns the canonical table name of a numeric protocol, or
// its decimal value when the table has none.
func ProtocolName(p Protocol) string {
	if p.Kind != ProtoNumeric {
		return p.String()
	}
	if name, ok := lookup.Protocols.Name(uint16(p.Number)); ok {
		return name
	}
	return strconv.Itoa(int(p.Number))
}

// ICMPTable returns the message type table for an ICMP protocol.
func ICMPTable(p Protocol) *lookup.Table {
	if p.Kind == ProtoICMPv6 {
		return lookup.ICMPv6Types
	}
	return lookup.ICMPTypes
}

// ParseICMPType resolves an ICMP message type given as 0..255 or as a
// symbolic name of the protocol's table.
func ParseICMPType(tok Token, p Protocol) (uint8, error) {
	if tok.Type == TokenEOF {
		return 0, Errorf(IcmpTypeUnresolvable, tok.Pos, nil, "missing icmp type")
	}
	if isDigits(tok.Value) {
		n, err := strconv.ParseUint(tok.Value, 10, 8)
		if err != nil {
			return 0, Errorf(IcmpTypeUnresolvable, tok.Pos, []string{tok.Value}, "icmp type exceeds 255")
		}
		return uint8(n), nil
	}
	if n, ok := ICMPTable(p).Number(tok.Value); ok && n <= 255 {
		return uint8(n), nil
	}
	return 0, Errorf(IcmpTypeUnresolvable, tok.Pos, []string{tok.Value}, "unknown %s message type", p)
}

// FormatICMPType renders t symbolically when the table knows it.
func FormatICMPType(t uint8, p Protocol) string {
	if name, ok := ICMPTable(p).Name(uint16(t)); ok {
		return name
	}
	return strconv.Itoa(int(t))
}

// ParseSequenceID reads a decimal sequence number.
func ParseSequenceID(tok Token) (uint64, error) {
	if tok.Type == TokenEOF {
		return 0, Errorf(MalformedSequenceID, tok.Pos, nil, "missing sequence id")
	}
	if !isDigits(tok.Value) {
		return 0, Errorf(MalformedSequenceID, tok.Pos, []string{tok.Value}, "sequence id is not a number")
	}
	n, err := strconv.ParseUint(tok.Value, 10, 64)
	if err != nil {
		return 0, Errorf(MalformedSequenceID, tok.Pos, []string{tok.Value}, "sequence id out of range")
	}
	return n, nil
}

// ParsePermitDeny reads a permit or deny keyword.
func ParsePermitDeny(tok Token) (Action, error) {
	switch tok.Value {
	case "permit":
		return Action{Kind: Permit}, nil
	case "deny":
		return Action{Kind: Deny}, nil
	}
	if tok.Type == TokenEOF {
		return Action{}, Errorf(UnknownActionKeyword, tok.Pos, nil, "missing action")
	}
	return Action{}, Errorf(UnknownActionKeyword, tok.Pos, []string{tok.Value}, "expected permit or deny")
}
