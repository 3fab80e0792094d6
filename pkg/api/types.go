// Package api implements the HTTP REST API and Prometheus metrics endpoint.
package api

import (
	"github.com/psaab/aclc/pkg/acl"
	"github.com/psaab/aclc/pkg/engine"
)

// Response is the standard JSON response envelope.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ErrorDetail accompanies a failed parse or render.
type ErrorDetail struct {
	Kind   string   `json:"kind"`
	Tokens []string `json:"tokens,omitempty"`
	Pos    int      `json:"pos"`
	Line   string   `json:"line,omitempty"`
}

// StatusResponse holds daemon status information.
type StatusResponse struct {
	Uptime      string                `json:"uptime"`
	ACLCount    int                   `json:"acl_count"`
	Conversions uint64                `json:"conversions"`
	Rejections  uint64                `json:"rejections"`
	Dialects    []engine.DialectStats `json:"dialects"`
}

// ACLEntry describes one configured ACL.
type ACLEntry struct {
	Name    string `json:"name"`
	Marker  string `json:"marker"`
	Dialect string `json:"dialect"`
	Family  string `json:"family"`
	Kind    string `json:"kind"`
}

// Target names the set a request applies to: either a configured ACL by
// name or a raw set marker.
type Target struct {
	ACL    string `json:"acl,omitempty"`
	Marker string `json:"marker,omitempty"`
}

// ParseRequest asks for one line to be parsed.
type ParseRequest struct {
	Target
	Line string `json:"line"`
}

// ParseResponse carries the parsed rule.
type ParseResponse struct {
	Context string    `json:"context"`
	Rule    *acl.Rule `json:"rule"`
}

// RenderRequest asks for a rule to be rendered, or its delete command.
type RenderRequest struct {
	Target
	Rule *acl.Rule `json:"rule"`
}

// RenderResponse carries one rendered line.
type RenderResponse struct {
	Line string `json:"line"`
}

// ConvertRequest translates a line between two sets.
type ConvertRequest struct {
	From Target `json:"from"`
	To   Target `json:"to"`
	Line string `json:"line"`
}

// ConvertResponse carries the translated line and the intermediate rule.
type ConvertResponse struct {
	Line string    `json:"line"`
	Rule *acl.Rule `json:"rule"`
}

// ParseSetRequest carries raw device output of one set.
type ParseSetRequest struct {
	Target
	Name string `json:"name,omitempty"` // defaults to ACL
	Text string `json:"text"`
}

// RejectedLine is an input line that did not become a rule.
type RejectedLine struct {
	LineNo int    `json:"line_no"`
	Line   string `json:"line"`
	Kind   string `json:"kind"`
	Error  string `json:"error"`
}

// ParseSetResponse is a parsed set with its canonical rendering.
type ParseSetResponse struct {
	Name       string         `json:"name"`
	Context    string         `json:"context"`
	Rules      []*acl.Rule    `json:"rules"`
	Rendered   []string       `json:"rendered"`
	Rejections []RejectedLine `json:"rejections,omitempty"`
}

// DiffRequest compares two versions of a set.
type DiffRequest struct {
	Target
	From string `json:"from"`
	To   string `json:"to"`
}

// ChangeEntry is one device command of a diff.
type ChangeEntry struct {
	Op      string `json:"op"`
	Seq     uint64 `json:"seq"`
	Command string `json:"command"`
}
