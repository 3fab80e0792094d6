package acl

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// JSON forms exchanged by the API, gRPC and CLI layers:
//
//	protocol:  "any" | "tcp" | "udp" | "icmp" | "icmpv6" | "47"
//	address:   "any" | "host 10.0.0.1" | "10.0.0.0/8" | "10.0.0.0 0.0.0.255"
//	port:      {"kind":"exact","value":22} | {"kind":"named","name":"www"} |
//	           {"kind":"range","low":1,"high":1023} | {"kind":"any"}
//	action:    {"type":"permit"} | {"type":"forward","egress_type":"elag","egress_value":3}
//	extra:     {"kind":"count"} | {"kind":"other","value":"log"}

type ruleJSON struct {
	SequenceID      uint64          `json:"sequence_id"`
	Action          Action          `json:"action"`
	Protocol        Protocol        `json:"protocol"`
	Source          Address         `json:"source"`
	Destination     Address         `json:"destination"`
	SourcePort      *Port           `json:"source_port,omitempty"`
	DestinationPort *Port           `json:"destination_port,omitempty"`
	ICMPType        *uint8          `json:"icmp_type,omitempty"`
	TTL             *Range8         `json:"ttl,omitempty"`
	Extra           *ExtraOperation `json:"extra,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (r Rule) MarshalJSON() ([]byte, error) {
	return json.Marshal(ruleJSON(r))
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var v ruleJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = Rule(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (p Protocol) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Protocol) UnmarshalText(text []byte) error {
	s := string(text)
	switch s {
	case "any", "":
		*p = Protocol{Kind: ProtoAny}
	case "tcp":
		*p = Protocol{Kind: ProtoTCP}
	case "udp":
		*p = Protocol{Kind: ProtoUDP}
	case "icmp":
		*p = Protocol{Kind: ProtoICMP}
	case "icmpv6":
		*p = Protocol{Kind: ProtoICMPv6}
	default:
		n, err := strconv.ParseUint(s, 10, 8)
		if err != nil {
			return fmt.Errorf("protocol %q: %w", s, ErrUnknownProtocol)
		}
		*p = ProtocolFromNumber(uint8(n))
	}
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. The family is taken
// from the literal itself.
func (a *Address) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" || s == "any" {
		*a = AnyAddress
		return nil
	}
	f := IPv4
	if strings.Contains(s, ":") {
		f = IPv6
	}
	l := NewLexer(s)
	addr, err := ParseAddress(l, f, AddressSyntax{HostKeyword: true, Wildcards: true, Terminated: true})
	if err != nil {
		return err
	}
	if err := CheckDone(l); err != nil {
		return err
	}
	*a = addr
	return nil
}

type portJSON struct {
	Kind  string `json:"kind"`
	Value uint16 `json:"value,omitempty"`
	Name  string `json:"name,omitempty"`
	Low   uint16 `json:"low,omitempty"`
	High  uint16 `json:"high,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (p Port) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case PortAny:
		return json.Marshal(portJSON{Kind: "any"})
	case PortExact:
		return json.Marshal(portJSON{Kind: "exact", Value: p.Low})
	case PortNamed:
		return json.Marshal(portJSON{Kind: "named", Name: p.Name})
	case PortRange:
		return json.Marshal(portJSON{Kind: "range", Low: p.Low, High: p.High})
	default:
		return nil, fmt.Errorf("port kind %d: %w", p.Kind, ErrPortKeywordUnrecognized)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Port) UnmarshalJSON(data []byte) error {
	var v portJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch v.Kind {
	case "any":
		*p = Port{Kind: PortAny}
	case "exact":
		*p = Port{Kind: PortExact, Low: v.Value}
	case "named":
		*p = Port{Kind: PortNamed, Name: v.Name}
	case "range":
		*p = Port{Kind: PortRange, Low: v.Low, High: v.High}
	default:
		return fmt.Errorf("port kind %q: %w", v.Kind, ErrPortKeywordUnrecognized)
	}
	return nil
}

type actionJSON struct {
	Type        string `json:"type"`
	EgressType  string `json:"egress_type,omitempty"`
	EgressValue uint32 `json:"egress_value,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (a Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(actionJSON{
		Type:        a.Kind.String(),
		EgressType:  a.EgressType.String(),
		EgressValue: a.EgressValue,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Action) UnmarshalJSON(data []byte) error {
	var v actionJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch v.Type {
	case "permit":
		*a = Action{Kind: Permit}
	case "deny":
		*a = Action{Kind: Deny}
	case "forward":
		if v.EgressType != "elag" {
			return fmt.Errorf("egress type %q: %w", v.EgressType, ErrUnknownActionKeyword)
		}
		*a = Action{Kind: Forward, EgressType: EgressElag, EgressValue: v.EgressValue}
	default:
		return fmt.Errorf("action %q: %w", v.Type, ErrUnknownActionKeyword)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (e ExtraOperation) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case ExtraCount:
		return []byte(`{"kind":"count"}`), nil
	case ExtraOther:
		return json.Marshal(map[string]string{"kind": "other", "value": e.Value})
	default:
		return nil, fmt.Errorf("extra operation kind %d: %w", e.Kind, ErrUnsupportedExpression)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *ExtraOperation) UnmarshalJSON(data []byte) error {
	var v struct {
		Kind  string `json:"kind"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch v.Kind {
	case "count":
		*e = ExtraOperation{Kind: ExtraCount}
	case "other":
		*e = ExtraOperation{Kind: ExtraOther, Value: v.Value}
	default:
		return fmt.Errorf("extra operation %q: %w", v.Kind, ErrUnsupportedExpression)
	}
	return nil
}

type range8JSON struct {
	Low  uint8 `json:"low"`
	High uint8 `json:"high"`
}

// MarshalJSON implements json.Marshaler.
func (r Range8) MarshalJSON() ([]byte, error) {
	return json.Marshal(range8JSON(r))
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Range8) UnmarshalJSON(data []byte) error {
	var v range8JSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = Range8(v)
	return nil
}
