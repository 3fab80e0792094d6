package acl

import (
	"net/netip"
	"strings"
)

// AddressSyntax describes which address spellings a dialect accepts.
// Independently of these flags, a token containing "/" is always a CIDR
// prefix and a literal without "/" followed by a mask is always an
// address plus wildcard mask.
type AddressSyntax struct {
	HostKeyword      bool // "host A"
	ZeroWildcardHost bool // "A 0" is an exact host
	BareHost         bool // a lone "A" with no mask is an exact host
	Wildcards        bool // "A W" is accepted at all
	Terminated       bool // the address is followed by a keyword or end of line
}

// ParseIP parses a literal address of family f.
func ParseIP(tok Token, f Family) (netip.Addr, error) {
	if tok.Type == TokenEOF {
		return netip.Addr{}, Errorf(AddressFormatError, tok.Pos, nil, "missing address")
	}
	ip, err := netip.ParseAddr(tok.Value)
	if err != nil || ip.Zone() != "" {
		return netip.Addr{}, Errorf(AddressFormatError, tok.Pos, []string{tok.Value}, "not an IP address")
	}
	if err := checkFamily(ip, f, tok); err != nil {
		return netip.Addr{}, err
	}
	return ip, nil
}

// ParsePrefix parses an "A/len" token. A zero-length prefix normalizes to
// AnyAddress.
func ParsePrefix(tok Token, f Family) (Address, error) {
	p, err := netip.ParsePrefix(tok.Value)
	if err != nil {
		return Address{}, Errorf(AddressFormatError, tok.Pos, []string{tok.Value}, "not a CIDR prefix")
	}
	if err := checkFamily(p.Addr(), f, tok); err != nil {
		return Address{}, err
	}
	if p.Bits() == 0 {
		return AnyAddress, nil
	}
	return CIDRAddress(p), nil
}

// ParseWildcard builds an address plus wildcard mask from two IPv4
// literals. An all-ones mask normalizes to AnyAddress.
func ParseWildcard(addrTok, maskTok Token) (Address, error) {
	ip, err := ParseIP(addrTok, IPv4)
	if err != nil {
		return Address{}, err
	}
	mask, err := ParseIP(maskTok, IPv4)
	if err != nil {
		return Address{}, err
	}
	a := WildcardAddress(ip, mask)
	if a.IsMatchAll() {
		return AnyAddress, nil
	}
	return a, nil
}

func checkFamily(ip netip.Addr, f Family, tok Token) error {
	if ip.Is4In6() || (f == IPv4) != ip.Is4() {
		return Errorf(AddressFormatError, tok.Pos, []string{tok.Value}, "address is not %s", f)
	}
	return nil
}

// ParseAddress consumes one address specification of family f.
func ParseAddress(l *Lexer, f Family, syn AddressSyntax) (Address, error) {
	tok := l.Next()
	if tok.Type == TokenEOF {
		return Address{}, Errorf(AddressFormatError, tok.Pos, nil, "missing address")
	}

	switch {
	case tok.Value == "any":
		return AnyAddress, nil
	case tok.Value == "host" && syn.HostKeyword:
		ip, err := ParseIP(l.Next(), f)
		if err != nil {
			return Address{}, err
		}
		return HostAddress(ip), nil
	case strings.Contains(tok.Value, "/"):
		a, err := ParsePrefix(tok, f)
		if err != nil {
			return Address{}, err
		}
		if syn.Terminated && looksLikeAddress(l.Peek()) {
			// A prefix and a wildcard mask on the same side.
			next := l.Peek()
			return Address{}, Errorf(AddressFormatError, next.Pos, []string{tok.Value, next.Value},
				"prefix and wildcard mask are mutually exclusive")
		}
		return a, nil
	}

	ip, err := ParseIP(tok, f)
	if err != nil {
		return Address{}, err
	}

	next := l.Peek()
	if syn.ZeroWildcardHost && next.Type == TokenWord && next.Value == "0" {
		l.Next()
		return HostAddress(ip), nil
	}
	if f == IPv4 && syn.Wildcards && looksLikeAddress(next) {
		if strings.Contains(next.Value, "/") {
			return Address{}, Errorf(AddressFormatError, next.Pos, []string{tok.Value, next.Value},
				"prefix and wildcard mask are mutually exclusive")
		}
		l.Next()
		return ParseWildcard(tok, next)
	}
	if syn.BareHost {
		return HostAddress(ip), nil
	}
	if f == IPv4 && syn.Wildcards {
		return Address{}, Errorf(AddressFormatError, tok.Pos, []string{tok.Value}, "address without wildcard mask or prefix length")
	}
	return Address{}, Errorf(AddressFormatError, tok.Pos, []string{tok.Value}, "address without prefix length")
}

// looksLikeAddress reports whether tok is an IPv4 literal or prefix, which
// is what a wildcard mask or a stray second address looks like.
func looksLikeAddress(tok Token) bool {
	if tok.Type != TokenWord {
		return false
	}
	s, _, _ := strings.Cut(tok.Value, "/")
	ip, err := netip.ParseAddr(s)
	return err == nil && ip.Is4()
}

// FormatAddress renders a in the given syntax. Any match-all value
// collapses to "any".
func FormatAddress(a Address, syn AddressSyntax) (string, error) {
	if a.IsMatchAll() {
		return "any", nil
	}
	switch a.Kind {
	case AddrHost:
		switch {
		case syn.HostKeyword:
			return "host " + a.IP.String(), nil
		case syn.ZeroWildcardHost:
			return a.IP.String() + " 0", nil
		case syn.BareHost:
			return a.IP.String(), nil
		}
		return "", Unsupported("exact host %s", a.IP)
	case AddrCIDR:
		return a.Prefix().String(), nil
	case AddrWildcard:
		if !syn.Wildcards {
			return "", Unsupported("wildcard mask %s", a)
		}
		return a.IP.String() + " " + a.Mask.String(), nil
	default:
		return "", Errorf(AddressFormatError, -1, nil, "unknown address kind %d", a.Kind)
	}
}
