package cubro

import (
	"net/netip"
	"reflect"
	"testing"

	"github.com/psaab/aclc/pkg/acl"
)

func TestParseForwardScenario(t *testing.T) {
	c := New()
	line := "10 forward elag 3 any any any any count"
	r, err := c.Parse(line)
	if err != nil {
		t.Fatal(err)
	}
	want := &acl.Rule{
		SequenceID:  10,
		Action:      acl.Action{Kind: acl.Forward, EgressType: acl.EgressElag, EgressValue: 3},
		Protocol:    acl.Protocol{Kind: acl.ProtoAny},
		Source:      acl.AnyAddress,
		Destination: acl.AnyAddress,
		Extra:       &acl.ExtraOperation{Kind: acl.ExtraCount},
	}
	if !reflect.DeepEqual(r, want) {
		t.Errorf("got %+v, want %+v", r, want)
	}
	out, err := c.Render(r)
	if err != nil {
		t.Fatal(err)
	}
	if out != line {
		t.Errorf("got %q, want %q", out, line)
	}
}

func TestParseHostsAndICMP(t *testing.T) {
	r, err := New().Parse("20 deny icmp 10.0.0.1 192.0.2.9 echo")
	if err != nil {
		t.Fatal(err)
	}
	if r.Source != acl.HostAddress(netip.MustParseAddr("10.0.0.1")) ||
		r.Destination != acl.HostAddress(netip.MustParseAddr("192.0.2.9")) {
		t.Errorf("addresses = %v %v", r.Source, r.Destination)
	}
	if r.ICMPType == nil || *r.ICMPType != 8 {
		t.Errorf("icmp type = %v, want 8", r.ICMPType)
	}
	if r.Extra != nil {
		t.Errorf("extra = %+v, want nil", r.Extra)
	}
}

func TestRoundTrip(t *testing.T) {
	c := New()
	for _, line := range []string{
		"10 forward elag 3 any any any any count",
		"20 permit tcp 10.0.0.1 any any",
		"30 deny udp any 192.0.2.1 any count",
		"40 permit icmp any any 8",
		"50 permit 47 10.1.1.1 10.2.2.2 any",
		"60 forward elag 0 icmp any any 0",
		"70 deny any any any any",
	} {
		r, err := c.Parse(line)
		if err != nil {
			t.Errorf("%q: %v", line, err)
			continue
		}
		out, err := c.Render(r)
		if err != nil {
			t.Errorf("%q: render: %v", line, err)
			continue
		}
		if out != line {
			t.Errorf("got %q, want %q", out, line)
		}
		again, err := c.Parse(out)
		if err != nil {
			t.Fatalf("%q: reparse: %v", out, err)
		}
		if !reflect.DeepEqual(again, r) {
			t.Errorf("%q: got %+v after round trip, want %+v", line, again, r)
		}
	}
}

func TestRenderCanonicalForms(t *testing.T) {
	c := New()
	tests := []struct {
		in, want string
	}{
		{"10 permit gre any any any", "10 permit 47 any any any"},
		{"10 permit 6 any any any", "10 permit tcp any any any"},
		{"10 permit icmp any any echo-reply", "10 permit icmp any any 0"},
		{"10 permit any 0.0.0.0/0 any any", "10 permit any any any any"},
	}
	for _, tt := range tests {
		r, err := c.Parse(tt.in)
		if err != nil {
			t.Fatalf("%q: %v", tt.in, err)
		}
		got, err := c.Render(r)
		if err != nil {
			t.Fatalf("%q: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("got %q, want %q", got, tt.want)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		line string
		kind acl.ErrorKind
	}{
		{"", acl.MalformedSequenceID},
		{"-1 permit any any any any", acl.MalformedSequenceID},
		{"10 drop any any any any", acl.UnknownActionKeyword},
		{"10 forward port 3 any any any any", acl.UnknownActionKeyword},
		{"10 forward elag x any any any any", acl.UnknownActionKeyword},
		{"10 forward elag", acl.UnknownActionKeyword},
		{"10 permit", acl.UnknownProtocol},
		{"10 permit icmpv6 any any any", acl.UnknownProtocol},
		{"10 permit bogus any any any", acl.UnknownProtocol},
		{"10 permit any any", acl.AddressFormatError},
		{"10 permit any 10.0.0.0/8 any any", acl.AddressFormatError},
		// Columns are positional: a mask reads as the destination host.
		{"10 permit any 10.0.0.0 0.0.0.255 any any", acl.UnsupportedExpression},
		{"10 permit any 2001:db8::1 any any", acl.AddressFormatError},
		{"10 permit any host 10.0.0.1 any any", acl.AddressFormatError},
		{"10 permit any any any", acl.IcmpTypeUnresolvable},
		{"10 permit icmp any any bogus", acl.IcmpTypeUnresolvable},
		{"10 permit tcp any any 8", acl.UnsupportedExpression},
		{"10 permit any any any any count extra", acl.UnsupportedExpression},
		{"10 permit any any any any log", acl.UnsupportedExpression},
		{"10 permit tcp any any any eq 22", acl.UnsupportedExpression},
	}
	c := New()
	for _, tt := range tests {
		r, err := c.Parse(tt.line)
		if acl.KindOf(err) != tt.kind {
			t.Errorf("%q: got %v, want %v", tt.line, err, tt.kind)
		}
		if r != nil {
			t.Errorf("%q: partial rule returned", tt.line)
		}
	}
}

func TestRenderUnsupported(t *testing.T) {
	tcp := acl.Protocol{Kind: acl.ProtoTCP}
	tests := []struct {
		name string
		rule acl.Rule
	}{
		{"port", acl.Rule{Protocol: tcp, DestinationPort: acl.ExactPort(22)}},
		{"ttl", acl.Rule{TTL: &acl.Range8{Low: 1, High: 1}}},
		{"log", acl.Rule{Extra: &acl.ExtraOperation{Kind: acl.ExtraOther, Value: "log"}}},
		{"prefix", acl.Rule{Source: acl.CIDRAddress(netip.MustParsePrefix("10.0.0.0/8"))}},
		{"wildcard", acl.Rule{Source: acl.WildcardAddress(netip.MustParseAddr("10.0.0.0"), netip.MustParseAddr("0.0.0.255"))}},
		{"icmpv6", acl.Rule{Protocol: acl.Protocol{Kind: acl.ProtoICMPv6}}},
	}
	for _, tt := range tests {
		if out, err := New().Render(&tt.rule); acl.KindOf(err) != acl.UnsupportedExpression {
			t.Errorf("%s: got %q, %v; want %v", tt.name, out, err, acl.UnsupportedExpression)
		}
	}
}

func TestRenderDelete(t *testing.T) {
	if got := New().RenderDelete(&acl.Rule{SequenceID: 10}); got != "no 10" {
		t.Errorf("got %q, want %q", got, "no 10")
	}
}
