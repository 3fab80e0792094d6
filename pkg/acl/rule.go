// Package acl implements the dialect-independent ACL rule model together
// with the tokenizer, error taxonomy and shared address/port/TTL grammar
// used by every dialect codec.
package acl

import (
	"fmt"
	"net/netip"
)

// Family is the address family of an ACL set.
type Family int

const (
	IPv4 Family = iota
	IPv6
)

func (f Family) String() string {
	if f == IPv6 {
		return "ipv6"
	}
	return "ipv4"
}

// SetKind tells whether an ACL set carries the full five-tuple (Advanced)
// or matches on source address only (Basic).
type SetKind int

const (
	Advanced SetKind = iota
	Basic
)

func (k SetKind) String() string {
	if k == Basic {
		return "basic"
	}
	return "advanced"
}

// ActionKind is the forwarding decision of a rule.
type ActionKind int

const (
	Permit ActionKind = iota
	Deny
	Forward
)

func (k ActionKind) String() string {
	switch k {
	case Permit:
		return "permit"
	case Deny:
		return "deny"
	case Forward:
		return "forward"
	default:
		return fmt.Sprintf("action(%d)", int(k))
	}
}

// EgressType names the redirect target of a Forward action.
type EgressType int

const (
	EgressNone EgressType = iota
	EgressElag            // link-aggregation group
)

func (e EgressType) String() string {
	switch e {
	case EgressNone:
		return ""
	case EgressElag:
		return "elag"
	default:
		return fmt.Sprintf("egress(%d)", int(e))
	}
}

// Action is a permit/deny decision or a redirect to an egress target.
type Action struct {
	Kind        ActionKind
	EgressType  EgressType // Forward only
	EgressValue uint32     // Forward only
}

// ProtocolKind selects the protocol variant.
type ProtocolKind int

const (
	ProtoAny ProtocolKind = iota
	ProtoTCP
	ProtoUDP
	ProtoICMP
	ProtoICMPv6
	ProtoNumeric
)

// Protocol matches the IP protocol field. Number is meaningful only for
// ProtoNumeric and never holds 1, 6, 17 or 58.
type Protocol struct {
	Kind   ProtocolKind
	Number uint8
}

// IANA numbers of the named protocols.
const (
	protoNumICMP   = 1
	protoNumTCP    = 6
	protoNumUDP    = 17
	protoNumICMPv6 = 58
)

// ProtocolFromNumber returns the canonical Protocol for an IANA number,
// folding the named protocols into their own kinds.
func ProtocolFromNumber(n uint8) Protocol {
	switch n {
	case protoNumICMP:
		return Protocol{Kind: ProtoICMP}
	case protoNumTCP:
		return Protocol{Kind: ProtoTCP}
	case protoNumUDP:
		return Protocol{Kind: ProtoUDP}
	case protoNumICMPv6:
		return Protocol{Kind: ProtoICMPv6}
	default:
		return Protocol{Kind: ProtoNumeric, Number: n}
	}
}

// HasPorts reports whether the protocol carries transport ports.
func (p Protocol) HasPorts() bool {
	return p.Kind == ProtoTCP || p.Kind == ProtoUDP
}

// IsICMP reports whether the protocol is ICMP or ICMPv6.
func (p Protocol) IsICMP() bool {
	return p.Kind == ProtoICMP || p.Kind == ProtoICMPv6
}

func (p Protocol) String() string {
	switch p.Kind {
	case ProtoAny:
		return "any"
	case ProtoTCP:
		return "tcp"
	case ProtoUDP:
		return "udp"
	case ProtoICMP:
		return "icmp"
	case ProtoICMPv6:
		return "icmpv6"
	case ProtoNumeric:
		return fmt.Sprintf("%d", p.Number)
	default:
		return fmt.Sprintf("protocol(%d)", int(p.Kind))
	}
}

// AddressKind selects the address representation.
type AddressKind int

const (
	AddrAny AddressKind = iota
	AddrHost
	AddrCIDR
	AddrWildcard
)

// Address is exactly one of: any, an exact host, a CIDR prefix, or an
// address plus wildcard mask (set bits are ignored).
type Address struct {
	Kind AddressKind
	IP   netip.Addr // Host, CIDR, Wildcard
	Bits int        // CIDR prefix length
	Mask netip.Addr // Wildcard mask
}

// AnyAddress matches every address.
var AnyAddress = Address{Kind: AddrAny}

// HostAddress matches exactly ip.
func HostAddress(ip netip.Addr) Address {
	return Address{Kind: AddrHost, IP: ip}
}

// CIDRAddress matches a prefix.
func CIDRAddress(p netip.Prefix) Address {
	return Address{Kind: AddrCIDR, IP: p.Addr(), Bits: p.Bits()}
}

// WildcardAddress matches ip with the bits set in mask ignored.
func WildcardAddress(ip, mask netip.Addr) Address {
	return Address{Kind: AddrWildcard, IP: ip, Mask: mask}
}

// Prefix returns the CIDR prefix of a CIDR address.
func (a Address) Prefix() netip.Prefix {
	return netip.PrefixFrom(a.IP, a.Bits)
}

// IsMatchAll reports whether a matches every address of its family,
// whatever its representation.
func (a Address) IsMatchAll() bool {
	switch a.Kind {
	case AddrAny:
		return true
	case AddrCIDR:
		return a.Bits == 0
	case AddrWildcard:
		return a.Mask == netip.AddrFrom4([4]byte{255, 255, 255, 255})
	default:
		return false
	}
}

func (a Address) String() string {
	switch a.Kind {
	case AddrAny:
		return "any"
	case AddrHost:
		return "host " + a.IP.String()
	case AddrCIDR:
		return a.Prefix().String()
	case AddrWildcard:
		return a.IP.String() + " " + a.Mask.String()
	default:
		return fmt.Sprintf("address(%d)", int(a.Kind))
	}
}

// PortKind selects the port match variant.
type PortKind int

const (
	PortAny PortKind = iota
	PortExact
	PortNamed
	PortRange
)

// Port matches a transport port. A Range with Low == High+2 is the
// encoding of "every port except High+1" produced by neq; the three neq
// shapes are described in NotEqualValue.
type Port struct {
	Kind PortKind
	Low  uint16 // Exact value, or Range low bound
	High uint16 // Range high bound
	Name string // Named service
}

// MaxPort is the largest transport port.
const MaxPort = 65535

// ExactPort matches one numeric port.
func ExactPort(p uint16) *Port { return &Port{Kind: PortExact, Low: p} }

// NamedPort matches a service by name.
func NamedPort(name string) *Port { return &Port{Kind: PortNamed, Name: name} }

// PortRangeOf matches low..high inclusive.
func PortRangeOf(low, high uint16) *Port { return &Port{Kind: PortRange, Low: low, High: high} }

// Range8 is a closed inclusive range over 0..255. Low == High+2 encodes
// "not equal to High+1" exactly like Port ranges.
type Range8 struct {
	Low  uint8
	High uint8
}

// ExtraKind selects the post-match operation.
type ExtraKind int

const (
	ExtraCount ExtraKind = iota + 1
	ExtraOther
)

// ExtraOperation is a vendor post-match action that does not change what
// the rule matches, such as packet counting or logging.
type ExtraOperation struct {
	Kind  ExtraKind
	Value string // ExtraOther keyword
}

// Rule is one canonical ACL entry.
type Rule struct {
	SequenceID      uint64
	Action          Action
	Protocol        Protocol
	Source          Address
	Destination     Address
	SourcePort      *Port
	DestinationPort *Port
	ICMPType        *uint8
	TTL             *Range8
	Extra           *ExtraOperation
}

// Uint8 returns a pointer to v, for optional rule fields.
func Uint8(v uint8) *uint8 { return &v }

// Validate checks the rule invariants every codec relies on.
func (r *Rule) Validate() error {
	if r.Action.Kind == Forward && r.Action.EgressType == EgressNone {
		return Unsupported("forward action without egress target")
	}
	if r.Action.Kind != Forward && r.Action.EgressType != EgressNone {
		return Unsupported("egress target on %s action", r.Action.Kind)
	}
	if err := validateAddress(r.Source); err != nil {
		return err
	}
	if err := validateAddress(r.Destination); err != nil {
		return err
	}
	if r.Source.Kind != AddrAny && r.Destination.Kind != AddrAny &&
		r.Source.IP.Is4() != r.Destination.IP.Is4() {
		return Errorf(AddressFormatError, -1, []string{r.Source.String(), r.Destination.String()},
			"source and destination families differ")
	}
	for _, p := range []*Port{r.SourcePort, r.DestinationPort} {
		if p == nil {
			continue
		}
		if !r.Protocol.HasPorts() {
			return Unsupported("port match on protocol %s", r.Protocol)
		}
		if err := validatePort(p); err != nil {
			return err
		}
		if p.Kind == PortNamed {
			if _, ok := portDomain(r.Protocol).names.Number(p.Name); !ok {
				return Errorf(NamedPortUnresolvable, -1, []string{p.Name},
					"%s service %q has no port number", r.Protocol, p.Name)
			}
		}
	}
	if r.ICMPType != nil && !r.Protocol.IsICMP() {
		return Unsupported("icmp type on protocol %s", r.Protocol)
	}
	if r.TTL != nil && !validBounds(int(r.TTL.Low), int(r.TTL.High)) {
		return Errorf(TtlRangeInvalid, -1, []string{fmt.Sprint(r.TTL.Low), fmt.Sprint(r.TTL.High)},
			"ttl range bounds out of order")
	}
	return nil
}

func validateAddress(a Address) error {
	switch a.Kind {
	case AddrAny:
		return nil
	case AddrHost:
		if !a.IP.IsValid() {
			return Errorf(AddressFormatError, -1, nil, "host address missing")
		}
	case AddrCIDR:
		if !a.IP.IsValid() || a.Bits < 0 || a.Bits > a.IP.BitLen() {
			return Errorf(AddressFormatError, -1, []string{a.String()}, "invalid prefix")
		}
	case AddrWildcard:
		if !a.IP.Is4() || !a.Mask.Is4() {
			return Errorf(AddressFormatError, -1, []string{a.String()}, "wildcard masks are IPv4 only")
		}
	default:
		return Errorf(AddressFormatError, -1, nil, "unknown address kind %d", a.Kind)
	}
	return nil
}

func validatePort(p *Port) error {
	switch p.Kind {
	case PortAny, PortExact:
		return nil
	case PortNamed:
		if p.Name == "" {
			return Errorf(NamedPortUnresolvable, -1, nil, "empty service name")
		}
	case PortRange:
		if !validBounds(int(p.Low), int(p.High)) {
			return Errorf(PortRangeInvalid, -1, []string{fmt.Sprint(p.Low), fmt.Sprint(p.High)},
				"port range bounds out of order")
		}
	default:
		return Errorf(PortKeywordUnrecognized, -1, nil, "unknown port kind %d", p.Kind)
	}
	return nil
}

// validBounds accepts ordered ranges and the inverted not-equal shape.
func validBounds(low, high int) bool {
	return low <= high || low == high+2
}

// Family returns the address family implied by the rule's addresses and
// protocol, defaulting to IPv4.
func (r *Rule) Family() Family {
	for _, a := range []Address{r.Source, r.Destination} {
		if a.Kind != AddrAny && a.IP.Is6() {
			return IPv6
		}
	}
	if r.Protocol.Kind == ProtoICMPv6 {
		return IPv6
	}
	return IPv4
}

// ProtocolFamilyOK reports whether p can appear in a set of family f.
func ProtocolFamilyOK(p Protocol, f Family) bool {
	switch p.Kind {
	case ProtoICMP:
		return f == IPv4
	case ProtoICMPv6:
		return f == IPv6
	}
	return true
}

// CheckFamily fails when r cannot live in a set of family f.
func (r *Rule) CheckFamily(f Family) error {
	for _, a := range []Address{r.Source, r.Destination} {
		if a.Kind != AddrAny && a.IP.Is4() != (f == IPv4) {
			return Errorf(AddressFormatError, -1, []string{a.String()}, "address is not %s", f)
		}
	}
	if !ProtocolFamilyOK(r.Protocol, f) {
		return Unsupported("protocol %s in an %s access-list", r.Protocol, f)
	}
	return nil
}
