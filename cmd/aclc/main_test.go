package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
access-lists {
    acl EDGE-IN { type "ipv4 access-list"; }
    acl CORE { type 3000; }
}
`

func runApp(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	app := newApp()
	var out, errOut bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &errOut
	app.Reader = strings.NewReader(stdin)
	err := app.Run(append([]string{"aclc"}, args...))
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, name, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestConvert(t *testing.T) {
	out, _, err := runApp(t, "", "convert", "--from", "3000", "--to", "ipv4",
		"rule", "5", "permit", "tcp", "source", "10.1.1.0", "0.0.0.255", "destination-port", "eq", "22")
	require.NoError(t, err)
	assert.Equal(t, "5 permit tcp 10.1.1.0 0.0.0.255 any eq 22\n", out)

	conf := writeFile(t, "aclcd.conf", testConfig)
	out, _, err = runApp(t, "", "--config", conf, "--format", "json",
		"convert", "--from-acl", "EDGE-IN", "--to-acl", "CORE", "10 permit udp any any eq 53")
	require.NoError(t, err)
	assert.JSONEq(t, `{"line":"rule 10 permit udp destination any destination-port eq 53"}`, out)

	_, _, err = runApp(t, "", "convert", "--from", "ipv4", "--to-acl", "CORE", "10 permit ipv4 any any")
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "unknown acl")
	}
}

func TestParseAndRender(t *testing.T) {
	out, _, err := runApp(t, "", "--format", "json", "parse", "--marker", "cubro", "10 forward elag 3 any any any any count")
	require.NoError(t, err)
	assert.Contains(t, out, `"egress_type": "elag"`)

	rendered, _, err := runApp(t, out, "render", "--marker", "cubro", "-")
	require.NoError(t, err)
	assert.Equal(t, "10 forward elag 3 any any any any count\n", rendered)

	del, _, err := runApp(t, out, "render", "--delete", "--marker", "3000")
	require.NoError(t, err)
	assert.Equal(t, "undo rule 10\n", del)

	yml, _, err := runApp(t, "", "--format", "yaml", "parse", "--marker", "ipv4", "10 permit tcp any any eq 22")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(yml, "sequence_id: 10\n"), yml)

	_, _, err = runApp(t, "", "parse", "--marker", "ipv4", "10 permit bogus any any")
	assert.Error(t, err)
	_, _, err = runApp(t, "", "parse", "10 permit ipv4 any any")
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "--acl or --marker required")
	}
	_, _, err = runApp(t, "", "parse", "--marker", "ipv4")
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "missing rule text")
	}
}

func TestParseSet(t *testing.T) {
	input := "ipv4 access-list EDGE-IN\n 20 deny udp any any eq 1900\n 10 permit tcp any any eq 22\n 30 permit bogus any any\n"
	out, errOut, err := runApp(t, input, "parse-set", "--marker", "ipv4")
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "1 line(s) rejected")
	}
	assert.Equal(t, "10 permit tcp any any eq 22\n20 deny udp any any eq 1900\n", out)
	assert.Contains(t, errOut, "line 4: unknown-protocol")
}

func TestDiff(t *testing.T) {
	from := writeFile(t, "from.txt", "10 permit tcp any any eq 22\n20 deny ipv4 any any\n")
	to := writeFile(t, "to.txt", "10 permit tcp any any eq 22\n20 deny ipv4 any any log\n")
	out, _, err := runApp(t, "", "diff", "--marker", "ipv4", from, to)
	require.NoError(t, err)
	assert.Equal(t, "no 20\n20 deny ipv4 any any log\n", out)

	_, _, err = runApp(t, "", "--addr", "127.0.0.1:1", "diff", "--marker", "ipv4", from, to)
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "runs locally")
	}
}

func TestStatusAndMarkers(t *testing.T) {
	conf := writeFile(t, "aclcd.conf", testConfig)
	out, _, err := runApp(t, "", "--config", conf, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "ACLs:        2")

	out, _, err = runApp(t, "", "markers")
	require.NoError(t, err)
	assert.Contains(t, out, "ipv4 basic         vrp ipv4 basic\n")
}

func TestConfigCheck(t *testing.T) {
	conf := writeFile(t, "aclcd.conf", testConfig)
	out, _, err := runApp(t, "", "config", "check", conf)
	require.NoError(t, err)
	assert.Equal(t, "configuration check succeeds (2 access-lists)\n", out)

	bad := writeFile(t, "bad.conf", "access-lists { acl X { type junos; } }")
	_, _, err = runApp(t, "", "config", "check", bad)
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "junos")
	}
}
