package lookup

import "testing"

func TestTableLookups(t *testing.T) {
	tests := []struct {
		table *Table
		name  string
		num   uint16
	}{
		{TCPServices, "ssh", 22},
		{TCPServices, "www", 80},
		{TCPServices, "bgp", 179},
		{UDPServices, "snmp", 161},
		{UDPServices, "ntp", 123},
		{ICMPTypes, "echo", 8},
		{ICMPTypes, "echo-reply", 0},
		{ICMPv6Types, "echo", 128},
		{ICMPv6Types, "neighbor-solicitation", 135},
		{Protocols, "gre", 47},
		{Protocols, "ospf", 89},
	}
	for _, tt := range tests {
		got, ok := tt.table.Number(tt.name)
		if !ok || got != tt.num {
			t.Errorf("Number(%q) = %d, %v; want %d", tt.name, got, ok, tt.num)
		}
	}
}

func TestTableCanonicalName(t *testing.T) {
	// www and http share port 80; www is listed first.
	if name, ok := TCPServices.Name(80); !ok || name != "www" {
		t.Errorf("Name(80) = %q, %v; want www", name, ok)
	}
	if name, ok := Protocols.Name(50); !ok || name != "esp" {
		t.Errorf("Name(50) = %q, %v; want esp", name, ok)
	}
	if _, ok := TCPServices.Name(65000); ok {
		t.Error("Name(65000) should not resolve")
	}
}

func TestTableCaseSensitive(t *testing.T) {
	if _, ok := TCPServices.Number("SSH"); ok {
		t.Error("lookups must be case-sensitive")
	}
	if _, ok := ICMPTypes.Number("Echo"); ok {
		t.Error("lookups must be case-sensitive")
	}
}

func TestNilTable(t *testing.T) {
	var tbl *Table
	if _, ok := tbl.Number("ssh"); ok {
		t.Error("nil table resolved a name")
	}
	if tbl.Len() != 0 || tbl.Names() != nil {
		t.Error("nil table should be empty")
	}
}

func TestFamilyTablesDiffer(t *testing.T) {
	v4, _ := ICMPTypes.Number("echo")
	v6, _ := ICMPv6Types.Number("echo")
	if v4 == v6 {
		t.Errorf("echo resolved to %d in both families", v4)
	}
}

func TestNamesOrder(t *testing.T) {
	names := ICMPTypes.Names()
	if len(names) != ICMPTypes.Len() {
		t.Fatalf("Names() returned %d entries, Len() = %d", len(names), ICMPTypes.Len())
	}
	if names[0] != "echo-reply" {
		t.Errorf("first name = %q, want echo-reply", names[0])
	}
}
