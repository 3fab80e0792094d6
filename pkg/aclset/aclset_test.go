package aclset

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/psaab/aclc/pkg/acl"
	"github.com/psaab/aclc/pkg/dialect"
)

const xrOutput = `ipv4 access-list EDGE-IN
 10 remark allow management
 10 permit tcp 10.0.0.0 0.0.0.255 host 192.0.2.1 eq ssh (12 matches)
 30 deny udp any any eq 1900
 20 permit icmp any any echo
 40 permit bogus any any
 30 permit ipv4 any any
!
`

const vrpOutput = `Advanced ACL 3000, 3 rules
Acl's step is 5
 rule 5 permit tcp source 10.1.1.0 0.0.0.255 destination-port eq 22 (3 times matched)
 rule 10 deny ip source 10.2.0.0 0.0.255.255
 rule 15 permit ip source 10.3.0.0/16 0.0.0.255
#
`

func mustSelect(t *testing.T, marker string) dialect.Context {
	t.Helper()
	ctx, err := dialect.Select(marker)
	if err != nil {
		t.Fatal(err)
	}
	return ctx
}

func TestParseSkipsAndRecords(t *testing.T) {
	s, err := Parse(mustSelect(t, "ipv4"), "EDGE-IN", xrOutput)
	if err != nil {
		t.Fatal(err)
	}
	var seqs []uint64
	for _, r := range s.Rules {
		seqs = append(seqs, r.SequenceID)
	}
	if want := []uint64{10, 20, 30}; !reflect.DeepEqual(seqs, want) {
		t.Errorf("rules %v, want %v", seqs, want)
	}
	if len(s.Rejections) != 2 {
		t.Fatalf("got %d rejections, want 2: %+v", len(s.Rejections), s.Rejections)
	}
	if rej := s.Rejections[0]; rej.LineNo != 6 || acl.KindOf(rej.Err) != acl.UnknownProtocol {
		t.Errorf("first rejection %+v", rej)
	}
	// The second 30 is a duplicate of the first.
	if rej := s.Rejections[1]; rej.LineNo != 7 || acl.KindOf(rej.Err) != acl.MalformedSequenceID {
		t.Errorf("second rejection %+v", rej)
	}
	if r := s.Lookup(30); r == nil || r.Action.Kind != acl.Deny {
		t.Errorf("Lookup(30) = %+v, want the deny rule", r)
	}
	if s.Lookup(25) != nil {
		t.Error("Lookup(25) should be nil")
	}
}

func TestParseVRPDisplay(t *testing.T) {
	s, err := Parse(mustSelect(t, "3000"), "3000", vrpOutput)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Rules) != 2 || len(s.Rejections) != 1 {
		t.Fatalf("got %d rules, %d rejections", len(s.Rules), len(s.Rejections))
	}
	if acl.KindOf(s.Rejections[0].Err) != acl.AddressFormatError {
		t.Errorf("rejection %v, want address-format-error", s.Rejections[0].Err)
	}
	lines, err := s.Render()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"rule 5 permit tcp source 10.1.1.0 0.0.0.255 destination any destination-port eq 22",
		"rule 10 deny ip source 10.2.0.0 0.0.255.255 destination any",
	}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("got %q, want %q", lines, want)
	}
}

func TestRuleText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"   ", ""},
		{"!", ""},
		{"# comment", ""},
		{"ipv6 access-list V6", ""},
		{"acl number 3000", ""},
		{"Basic ACL 2000, 1 rule", ""},
		{"10 remark hello", ""},
		{"rule 5 remark hello", ""},
		{"end", ""},
		{" 10 permit ipv4 any any (5 matches)", "10 permit ipv4 any any"},
		{"10 permit ipv4 any any", "10 permit ipv4 any any"},
	}
	for _, tt := range tests {
		if got := ruleText(tt.in); got != tt.want {
			t.Errorf("ruleText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseAll(t *testing.T) {
	inputs := []Input{
		{Name: "EDGE-IN", Marker: "ipv4", Text: xrOutput},
		{Name: "3000", Marker: "3000", Text: vrpOutput},
		{Name: "BROKER", Marker: "cubro", Text: "10 forward elag 3 any any any any count\n"},
	}
	sets, err := ParseAll(context.Background(), inputs, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(sets) != 3 {
		t.Fatalf("got %d sets", len(sets))
	}
	for i, s := range sets {
		if s.Name != inputs[i].Name {
			t.Errorf("set %d: got %q, want %q", i, s.Name, inputs[i].Name)
		}
	}
	if sets[2].Context.Dialect != dialect.Cubro || len(sets[2].Rules) != 1 {
		t.Errorf("cubro set %+v", sets[2])
	}

	_, err = ParseAll(context.Background(), append(inputs, Input{Name: "X", Marker: "junos"}), 0)
	if !errors.Is(err, dialect.ErrUnknownMarker) || !strings.Contains(err.Error(), "acl X") {
		t.Errorf("got %v, want unknown marker for acl X", err)
	}
}

func TestParseAllCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ParseAll(ctx, []Input{{Name: "A", Marker: "ipv4", Text: "10 permit ipv4 any any"}}, 1)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestDiff(t *testing.T) {
	ctx := mustSelect(t, "ipv4")
	from, err := Parse(ctx, "A", "10 permit tcp any any eq 22\n20 deny ipv4 any any\n30 permit udp any any eq 53")
	if err != nil {
		t.Fatal(err)
	}
	to, err := Parse(ctx, "A", "10 permit tcp any any eq 22\n20 deny ipv4 any any log\n40 permit icmp any any")
	if err != nil {
		t.Fatal(err)
	}
	changes, err := Diff(from, to)
	if err != nil {
		t.Fatal(err)
	}
	want := []Change{
		{Op: "delete", Seq: 20, Command: "no 20"},
		{Op: "delete", Seq: 30, Command: "no 30"},
		{Op: "add", Seq: 20, Command: "20 deny ipv4 any any log"},
		{Op: "add", Seq: 40, Command: "40 permit icmp any any"},
	}
	if !reflect.DeepEqual(changes, want) {
		t.Errorf("got %+v, want %+v", changes, want)
	}

	if changes, err := Diff(from, from); err != nil || len(changes) != 0 {
		t.Errorf("self diff = %v, %v", changes, err)
	}
	changes, err = Diff(nil, to)
	if err != nil || len(changes) != 3 {
		t.Errorf("diff from nil = %v, %v", changes, err)
	}
}

func TestParseRejectsBadContext(t *testing.T) {
	if _, err := Parse(dialect.Context{}, "X", "10 permit ipv4 any any"); err == nil {
		t.Error("expected error for empty context")
	}
}
