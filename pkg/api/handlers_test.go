package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psaab/aclc/pkg/acl"
	"github.com/psaab/aclc/pkg/engine"
)

func newTestServer(t *testing.T, auth *AuthConfig) *Server {
	t.Helper()
	eng, err := engine.New(engine.Options{ACLs: map[string]string{
		"EDGE-IN": "ipv4 access-list",
		"CORE":    "3000",
	}})
	require.NoError(t, err)
	return NewServer(Config{Addr: "127.0.0.1:0", Engine: eng, Auth: auth})
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func do(t *testing.T, s *Server, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "body: %s", w.Body.String())
	return w.Code, env
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t, nil)
	code, env := do(t, s, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
	assert.JSONEq(t, `{"status":"ok"}`, string(env.Data))
}

func TestParseHandler(t *testing.T) {
	s := newTestServer(t, nil)

	code, env := do(t, s, "POST", "/api/v1/parse", ParseRequest{
		Target: Target{ACL: "CORE"},
		Line:   "rule 5 permit tcp source 10.1.1.0 0.0.0.255 destination any destination-port eq 22",
	})
	require.Equal(t, http.StatusOK, code, env.Error)

	var resp ParseResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "vrp ipv4 advanced", resp.Context)
	require.NotNil(t, resp.Rule)
	assert.Equal(t, uint64(5), resp.Rule.SequenceID)
	assert.Equal(t, acl.ExactPort(22), resp.Rule.DestinationPort)
}

func TestParseHandlerErrors(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name string
		req  ParseRequest
		code int
		kind string
	}{
		{"parse failure", ParseRequest{Target: Target{Marker: "ipv4"}, Line: "10 permit bogus any any"},
			http.StatusUnprocessableEntity, "unknown-protocol"},
		{"unknown acl", ParseRequest{Target: Target{ACL: "NOPE"}, Line: "10 permit ipv4 any any"},
			http.StatusNotFound, ""},
		{"unknown marker", ParseRequest{Target: Target{Marker: "junos"}, Line: "x"},
			http.StatusBadRequest, ""},
		{"no target", ParseRequest{Line: "10 permit ipv4 any any"},
			http.StatusBadRequest, ""},
		{"both targets", ParseRequest{Target: Target{ACL: "CORE", Marker: "ipv4"}},
			http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := do(t, s, "POST", "/api/v1/parse", tt.req)
			assert.Equal(t, tt.code, code)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Error)
			if tt.kind != "" {
				var d ErrorDetail
				require.NoError(t, json.Unmarshal(env.Data, &d))
				assert.Equal(t, tt.kind, d.Kind)
				assert.Equal(t, []string{"bogus"}, d.Tokens)
				assert.Equal(t, 2, d.Pos)
			}
		})
	}
}

func TestBadBody(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest("POST", "/api/v1/parse", strings.NewReader("{"))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRenderAndDeleteHandlers(t *testing.T) {
	s := newTestServer(t, nil)
	rule := &acl.Rule{
		SequenceID:      10,
		Protocol:        acl.Protocol{Kind: acl.ProtoUDP},
		Source:          acl.AnyAddress,
		Destination:     acl.AnyAddress,
		DestinationPort: acl.ExactPort(53),
	}

	code, env := do(t, s, "POST", "/api/v1/render", RenderRequest{Target: Target{ACL: "EDGE-IN"}, Rule: rule})
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.JSONEq(t, `{"line":"10 permit udp any any eq 53"}`, string(env.Data))

	code, env = do(t, s, "POST", "/api/v1/delete", RenderRequest{Target: Target{Marker: "3000"}, Rule: rule})
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.JSONEq(t, `{"line":"undo rule 10"}`, string(env.Data))

	code, env = do(t, s, "POST", "/api/v1/render", RenderRequest{Target: Target{Marker: "cubro"}, Rule: rule})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, env.Error, "unsupported-expression")

	code, _ = do(t, s, "POST", "/api/v1/render", RenderRequest{Target: Target{Marker: "cubro"}})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestConvertHandler(t *testing.T) {
	s := newTestServer(t, nil)
	code, env := do(t, s, "POST", "/api/v1/convert", ConvertRequest{
		From: Target{ACL: "EDGE-IN"},
		To:   Target{ACL: "CORE"},
		Line: "20 deny tcp host 10.0.0.1 any range 1000 2000",
	})
	require.Equal(t, http.StatusOK, code, env.Error)

	var resp ConvertResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "rule 20 deny tcp source 10.0.0.1 0 destination any destination-port range 1000 2000", resp.Line)

	code, env = do(t, s, "POST", "/api/v1/convert", ConvertRequest{
		From: Target{ACL: "EDGE-IN"},
		Line: "20 deny tcp any any",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Error, "to:")
}

func TestParseSetHandler(t *testing.T) {
	s := newTestServer(t, nil)
	text := "ipv4 access-list EDGE-IN\n" +
		" 20 deny udp any any eq 1900 (4 matches)\n" +
		" 10 permit tcp any any eq www\n" +
		" 30 permit bogus any any\n"

	code, env := do(t, s, "POST", "/api/v1/parse-set", ParseSetRequest{Target: Target{ACL: "EDGE-IN"}, Text: text})
	require.Equal(t, http.StatusOK, code, env.Error)

	var resp ParseSetResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "EDGE-IN", resp.Name)
	assert.Equal(t, []string{
		"10 permit tcp any any eq www",
		"20 deny udp any any eq 1900",
	}, resp.Rendered)
	require.Len(t, resp.Rejections, 1)
	assert.Equal(t, 4, resp.Rejections[0].LineNo)
	assert.Equal(t, "unknown-protocol", resp.Rejections[0].Kind)

	code, env = do(t, s, "GET", "/api/v1/rejections?acl=EDGE-IN", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), "30 permit bogus any any")
}

func TestDiffHandler(t *testing.T) {
	s := newTestServer(t, nil)
	code, env := do(t, s, "POST", "/api/v1/diff", DiffRequest{
		Target: Target{ACL: "CORE"},
		From:   "rule 5 permit ip\nrule 10 deny ip\n",
		To:     "rule 5 permit ip\n",
	})
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.JSONEq(t, `[{"op":"delete","seq":10,"command":"undo rule 10"}]`, string(env.Data))
}

func TestStatusAndACLs(t *testing.T) {
	s := newTestServer(t, nil)
	s.engine.Parse("ipv4", "10 permit ipv4 any any")

	code, env := do(t, s, "GET", "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, code)
	var st StatusResponse
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, 2, st.ACLCount)
	require.Len(t, st.Dialects, 1)
	assert.Equal(t, uint64(1), st.Dialects[0].Parsed)

	code, env = do(t, s, "GET", "/api/v1/acls", nil)
	require.Equal(t, http.StatusOK, code)
	var acls []ACLEntry
	require.NoError(t, json.Unmarshal(env.Data, &acls))
	assert.Equal(t, []ACLEntry{
		{Name: "CORE", Marker: "3000", Dialect: "vrp", Family: "ipv4", Kind: "advanced"},
		{Name: "EDGE-IN", Marker: "ipv4 access-list", Dialect: "iosxr", Family: "ipv4", Kind: "advanced"},
	}, acls)

	code, env = do(t, s, "GET", "/api/v1/markers", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"ipv4 advance"`)
}

func TestRoutesRequireAuth(t *testing.T) {
	s := newTestServer(t, &AuthConfig{APIKeys: map[string]bool{"k": true}})

	code, env := do(t, s, "GET", "/api/v1/status", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "authentication required", env.Error)

	req := httptest.NewRequest("GET", "/api/v1/status", nil)
	req.Header.Set("X-API-Key", "k")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetrics(t *testing.T) {
	s := newTestServer(t, nil)
	s.engine.Parse("ipv4", "10 permit ipv4 any any")
	s.engine.Parse("ipv4", "10 permit bogus any any")

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	for _, want := range []string{
		`aclc_operations_total{dialect="iosxr",op="parse"} 1`,
		`aclc_failures_total{dialect="iosxr",kind="unknown-protocol"} 1`,
		`aclc_rejections_total 1`,
		`aclc_acls_configured{dialect="vrp"} 1`,
		`aclc_conversions_total 0`,
	} {
		assert.Contains(t, body, want)
	}
}
