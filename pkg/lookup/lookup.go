// Package lookup holds the static symbolic-name tables shared by every ACL
// dialect: well-known TCP/UDP services, ICMP and ICMPv6 message types, and
// IP protocol names.
//
// Tables are built once at init and never modified, so concurrent readers
// need no locking.
package lookup

// Entry maps one symbolic name to its numeric value.
type Entry struct {
	Name   string
	Number uint16
}

// Table is an immutable bidirectional name/number map.
type Table struct {
	byName   map[string]uint16
	byNumber map[uint16]string
	entries  []Entry
}

// NewTable builds a table from entries. When several names share a number
// the first one listed becomes the canonical name for reverse lookups.
func NewTable(entries []Entry) *Table {
	t := &Table{
		byName:   make(map[string]uint16, len(entries)),
		byNumber: make(map[uint16]string, len(entries)),
		entries:  entries,
	}
	for _, e := range entries {
		t.byName[e.Name] = e.Number
		if _, ok := t.byNumber[e.Number]; !ok {
			t.byNumber[e.Number] = e.Name
		}
	}
	return t
}

// Number returns the value for name. Matching is case-sensitive.
func (t *Table) Number(name string) (uint16, bool) {
	if t == nil {
		return 0, false
	}
	n, ok := t.byName[name]
	return n, ok
}

// Name returns the canonical name for n.
func (t *Table) Name(n uint16) (string, bool) {
	if t == nil {
		return "", false
	}
	name, ok := t.byNumber[n]
	return name, ok
}

// Names returns every name in declaration order.
func (t *Table) Names() []string {
	if t == nil {
		return nil
	}
	names := make([]string, len(t.entries))
	for i, e := range t.entries {
		names[i] = e.Name
	}
	return names
}

// Len returns the number of names in the table.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}
