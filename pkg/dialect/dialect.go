// Package dialect maps an ACL set marker to the device dialect, address
// family and set kind it implies, and hands out the matching codec.
package dialect

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/psaab/aclc/pkg/acl"
	"github.com/psaab/aclc/pkg/dialect/cubro"
	"github.com/psaab/aclc/pkg/dialect/iosxr"
	"github.com/psaab/aclc/pkg/dialect/vrp"
)

// Dialect identifies a device CLI grammar.
type Dialect int

const (
	IOSXR Dialect = iota + 1
	VRP
	Cubro
)

func (d Dialect) String() string {
	switch d {
	case IOSXR:
		return "iosxr"
	case VRP:
		return "vrp"
	case Cubro:
		return "cubro"
	default:
		return fmt.Sprintf("dialect(%d)", int(d))
	}
}

// Codec parses and renders single ACL entries of one set.
type Codec interface {
	Parse(line string) (*acl.Rule, error)
	Render(r *acl.Rule) (string, error)
	RenderDelete(r *acl.Rule) string
}

// Context is everything a codec needs to know about the set a line
// belongs to.
type Context struct {
	Dialect Dialect
	Family  acl.Family
	Kind    acl.SetKind
	Marker  string // as given to Select
}

func (c Context) String() string {
	return fmt.Sprintf("%s %s %s", c.Dialect, c.Family, c.Kind)
}

// ErrUnknownMarker is returned by Select for markers no dialect claims.
var ErrUnknownMarker = errors.New("unknown acl set marker")

var markers = map[string]Context{
	"ipv4":             {Dialect: IOSXR, Family: acl.IPv4, Kind: acl.Advanced},
	"ipv4 access-list": {Dialect: IOSXR, Family: acl.IPv4, Kind: acl.Advanced},
	"acl_ipv4":         {Dialect: IOSXR, Family: acl.IPv4, Kind: acl.Advanced},
	"ip extended":      {Dialect: IOSXR, Family: acl.IPv4, Kind: acl.Advanced},
	"ipv6":             {Dialect: IOSXR, Family: acl.IPv6, Kind: acl.Advanced},
	"ipv6 access-list": {Dialect: IOSXR, Family: acl.IPv6, Kind: acl.Advanced},
	"acl_ipv6":         {Dialect: IOSXR, Family: acl.IPv6, Kind: acl.Advanced},
	"ip standard":      {Dialect: IOSXR, Family: acl.IPv4, Kind: acl.Basic},
	"ipv4 basic":       {Dialect: VRP, Family: acl.IPv4, Kind: acl.Basic},
	"ipv4 advance":     {Dialect: VRP, Family: acl.IPv4, Kind: acl.Advanced},
	"ipv6 basic":       {Dialect: VRP, Family: acl.IPv6, Kind: acl.Basic},
	"ipv6 advance":     {Dialect: VRP, Family: acl.IPv6, Kind: acl.Advanced},
	"cubro":            {Dialect: Cubro, Family: acl.IPv4, Kind: acl.Advanced},
	"cubro ipv4":       {Dialect: Cubro, Family: acl.IPv4, Kind: acl.Advanced},
}

// Markers returns the accepted textual markers in sorted order, excluding
// numbered VRP ACLs.
func Markers() []string {
	return slices.Sorted(maps.Keys(markers))
}

// Select resolves a set marker. Matching ignores case and repeated
// whitespace. Besides the fixed markers, a VRP ACL number (2000-3999),
// optionally written as "acl number N" or "acl ipv6 number N", selects VRP.
func Select(marker string) (Context, error) {
	norm := strings.ToLower(strings.Join(strings.Fields(marker), " "))
	if ctx, ok := markers[norm]; ok {
		ctx.Marker = marker
		return ctx, nil
	}

	family := acl.IPv4
	num := norm
	switch {
	case strings.HasPrefix(norm, "acl ipv6 number "):
		family = acl.IPv6
		num = strings.TrimPrefix(norm, "acl ipv6 number ")
	case strings.HasPrefix(norm, "acl number "):
		num = strings.TrimPrefix(norm, "acl number ")
	}
	if n, err := strconv.Atoi(num); err == nil {
		if kind, ok := vrp.KindOfNumber(n); ok {
			return Context{Dialect: VRP, Family: family, Kind: kind, Marker: marker}, nil
		}
	}
	return Context{}, fmt.Errorf("%q: %w", marker, ErrUnknownMarker)
}

// New returns the codec for ctx.
func New(ctx Context) (Codec, error) {
	switch ctx.Dialect {
	case IOSXR:
		return iosxr.New(ctx.Family, ctx.Kind), nil
	case VRP:
		return vrp.New(ctx.Family, ctx.Kind), nil
	case Cubro:
		if ctx.Family != acl.IPv4 {
			return nil, fmt.Errorf("cubro filters are ipv4 only")
		}
		return cubro.New(), nil
	default:
		return nil, fmt.Errorf("%s: %w", ctx.Dialect, ErrUnknownMarker)
	}
}

// ForMarker is Select followed by New.
func ForMarker(marker string) (Codec, Context, error) {
	ctx, err := Select(marker)
	if err != nil {
		return nil, Context{}, err
	}
	c, err := New(ctx)
	if err != nil {
		return nil, Context{}, err
	}
	return c, ctx, nil
}
