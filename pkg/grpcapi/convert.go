package grpcapi

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/psaab/aclc/pkg/acl"
	"github.com/psaab/aclc/pkg/aclset"
)

// Messages are google.protobuf.Struct values whose fields mirror the HTTP
// API's JSON bodies. Rules use the acl package's JSON form.

func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func fromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		return fmt.Errorf("empty message")
	}
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// Target names a configured ACL or a raw set marker.
type Target struct {
	ACL    string `json:"acl,omitempty"`
	Marker string `json:"marker,omitempty"`
}

type parseRequest struct {
	Target
	Line string `json:"line"`
}

type parseResponse struct {
	Context string    `json:"context"`
	Rule    *acl.Rule `json:"rule"`
}

type renderRequest struct {
	Target
	Rule *acl.Rule `json:"rule"`
}

type renderResponse struct {
	Line string `json:"line"`
}

type convertRequest struct {
	From Target `json:"from"`
	To   Target `json:"to"`
	Line string `json:"line"`
}

type convertResponse struct {
	Line string    `json:"line"`
	Rule *acl.Rule `json:"rule"`
}

type parseSetRequest struct {
	Target
	Name string `json:"name,omitempty"`
	Text string `json:"text"`
}

// RejectedLine is an input line of a set that did not become a rule.
type RejectedLine struct {
	LineNo int    `json:"line_no"`
	Line   string `json:"line"`
	Kind   string `json:"kind"`
	Error  string `json:"error"`
}

// SetResult is a parsed set as returned by ParseSet.
type SetResult struct {
	Name       string         `json:"name"`
	Context    string         `json:"context"`
	Rules      []*acl.Rule    `json:"rules"`
	Rendered   []string       `json:"rendered"`
	Rejections []RejectedLine `json:"rejections,omitempty"`
}

// NewSetResult flattens a parsed set, rendering its rules back into the
// set's own dialect.
func NewSetResult(set *aclset.Set) (*SetResult, error) {
	rendered, err := set.Render()
	if err != nil {
		return nil, err
	}
	res := &SetResult{
		Name:     set.Name,
		Context:  set.Context.String(),
		Rules:    set.Rules,
		Rendered: rendered,
	}
	for _, rej := range set.Rejections {
		res.Rejections = append(res.Rejections, RejectedLine{
			LineNo: rej.LineNo,
			Line:   rej.Line,
			Kind:   acl.KindOf(rej.Err).String(),
			Error:  rej.Err.Error(),
		})
	}
	return res, nil
}

// StatusResult summarizes the daemon.
type StatusResult struct {
	Uptime      string            `json:"uptime"`
	ACLs        int               `json:"acls"`
	ACLTable    map[string]string `json:"acl_table,omitempty"` // name -> marker
	Conversions uint64            `json:"conversions"`
	Rejections  uint64            `json:"rejections"`
}

// errorDetail is attached to InvalidArgument statuses for translation
// failures.
type errorDetail struct {
	Kind   string   `json:"kind"`
	Tokens []string `json:"tokens,omitempty"`
	Pos    int      `json:"pos"`
	Line   string   `json:"line,omitempty"`
}
