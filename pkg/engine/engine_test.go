package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psaab/aclc/pkg/acl"
	"github.com/psaab/aclc/pkg/aclset"
	"github.com/psaab/aclc/pkg/dialect"
	"github.com/psaab/aclc/pkg/logging"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(Options{ACLs: map[string]string{
		"EDGE-IN": "ipv4 access-list",
		"CORE":    "3000",
		"TAP":     "cubro",
	}})
	require.NoError(t, err)
	return e
}

func TestNewRejectsBadMarker(t *testing.T) {
	_, err := New(Options{ACLs: map[string]string{"X": "juniper"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, dialect.ErrUnknownMarker)
	assert.Contains(t, err.Error(), "acl X")
}

func TestContextFor(t *testing.T) {
	e := newEngine(t)

	ctx, err := e.ContextFor("CORE")
	require.NoError(t, err)
	assert.Equal(t, dialect.VRP, ctx.Dialect)
	assert.Equal(t, acl.Advanced, ctx.Kind)

	_, err = e.ContextFor("MISSING")
	assert.ErrorIs(t, err, ErrUnknownACL)
}

func TestSetACLsKeepsOldTableOnError(t *testing.T) {
	e := newEngine(t)
	err := e.SetACLs(map[string]string{"A": "ipv4", "B": "bogus"})
	require.Error(t, err)
	assert.Len(t, e.ACLs(), 3)

	require.NoError(t, e.SetACLs(map[string]string{"A": "ipv6"}))
	assert.Equal(t, map[string]string{"A": "ipv6"}, e.ACLs())
}

func TestParseAndRender(t *testing.T) {
	e := newEngine(t)

	r, err := e.Parse("ipv4", "10 permit tcp any host 192.0.2.1 eq 22")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), r.SequenceID)

	line, err := e.Render("ipv4", r)
	require.NoError(t, err)
	assert.Equal(t, "10 permit tcp any host 192.0.2.1 eq 22", line)

	del, err := e.RenderDelete("ipv4", r)
	require.NoError(t, err)
	assert.Equal(t, "no 10", del)

	stats, _ := e.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, DialectStats{Dialect: "iosxr", Parsed: 1, Rendered: 1, Deleted: 1}, stats[0])
}

func TestParseUnknownMarker(t *testing.T) {
	e := newEngine(t)
	_, err := e.Parse("junos", "10 permit ip any any")
	assert.ErrorIs(t, err, dialect.ErrUnknownMarker)
	assert.Zero(t, e.Rejections().Total())
}

func TestParseFailureRecorded(t *testing.T) {
	e := newEngine(t)
	_, err := e.Parse("ipv4", "10 permit bogus any any")
	require.Error(t, err)
	assert.ErrorIs(t, err, acl.ErrUnknownProtocol)

	recs := e.Rejections().Latest(10)
	require.Len(t, recs, 1)
	assert.Equal(t, "parse", recs[0].Op)
	assert.Equal(t, "unknown-protocol", recs[0].Kind)
	assert.Equal(t, "iosxr", recs[0].Dialect)
	assert.Equal(t, "10 permit bogus any any", recs[0].Line)

	stats, _ := e.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, uint64(1), stats[0].Failures["unknown-protocol"])
}

func TestConvert(t *testing.T) {
	e := newEngine(t)

	out, r, err := e.Convert("3000",
		"ipv4 access-list",
		"rule 5 permit tcp source 10.1.1.0 0.0.0.255 destination-port eq 22")
	require.NoError(t, err)
	assert.Equal(t, "5 permit tcp 10.1.1.0 0.0.0.255 any eq 22", out)
	assert.Equal(t, acl.ProtoTCP, r.Protocol.Kind)

	_, total := e.Stats()
	assert.Equal(t, uint64(1), total)
}

func TestConvertUnsupported(t *testing.T) {
	e := newEngine(t)

	_, r, err := e.Convert("ipv4", "cubro", "10 permit tcp any any eq 22")
	require.Error(t, err)
	assert.ErrorIs(t, err, acl.ErrUnsupportedExpression)
	require.NotNil(t, r, "the parsed rule is returned with the render error")

	recs := e.Rejections().Latest(1)
	require.Len(t, recs, 1)
	assert.Equal(t, "render", recs[0].Op)
	assert.Equal(t, "cubro", recs[0].Dialect)
	assert.Equal(t, "rule 10", recs[0].Line)
}

func TestParseSetRecordsRejections(t *testing.T) {
	e := newEngine(t)
	sub := e.Rejections().Subscribe(4)
	defer sub.Close()

	s, err := e.ParseSet("ipv4", "EDGE-IN", "10 permit ipv4 any any\n20 permit bogus any any\n")
	require.NoError(t, err)
	assert.Len(t, s.Rules, 1)
	require.Len(t, s.Rejections, 1)

	rec := <-sub.C
	assert.Equal(t, "EDGE-IN", rec.ACL)
	assert.Equal(t, "unknown-protocol", rec.Kind)

	filtered := e.Rejections().LatestFiltered(10, logging.RejectionFilter{ACL: "EDGE-IN"})
	assert.Len(t, filtered, 1)
}

func TestParseSets(t *testing.T) {
	e := newEngine(t)
	sets, err := e.ParseSets(context.Background(), []aclset.Input{
		{Name: "A", Marker: "ipv4", Text: "10 permit ipv4 any any"},
		{Name: "B", Marker: "cubro", Text: "10 deny any any any any\n20 permit tcp"},
	})
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.Equal(t, "A", sets[0].Name)
	assert.Len(t, sets[1].Rules, 1)

	stats, _ := e.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, "cubro", stats[0].Dialect)
	assert.Equal(t, "iosxr", stats[1].Dialect)
	assert.Equal(t, uint64(1), e.Rejections().Total())
}

func TestParseSetsBadMarker(t *testing.T) {
	e := newEngine(t)
	_, err := e.ParseSets(context.Background(), []aclset.Input{{Name: "A", Marker: "nope"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, dialect.ErrUnknownMarker))
}

func TestStatsSnapshotIsCopy(t *testing.T) {
	e := newEngine(t)
	_, _ = e.Parse("ipv4", "10 permit bogus any any")
	stats, _ := e.Stats()
	stats[0].Failures["unknown-protocol"] = 99

	again, _ := e.Stats()
	assert.Equal(t, uint64(1), again[0].Failures["unknown-protocol"])
}

func TestDiff(t *testing.T) {
	e := newEngine(t)
	changes, err := e.Diff("ipv4", "EDGE-IN",
		"10 permit tcp any any eq 22\n20 deny ipv4 any any\n",
		"10 permit tcp any any eq 443\n20 deny ipv4 any any\n30 permit udp any any eq 53\n")
	require.NoError(t, err)
	assert.Equal(t, []aclset.Change{
		{Op: "delete", Seq: 10, Command: "no 10"},
		{Op: "add", Seq: 10, Command: "10 permit tcp any any eq 443"},
		{Op: "add", Seq: 30, Command: "30 permit udp any any eq 53"},
	}, changes)
}
