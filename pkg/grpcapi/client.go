package grpcapi

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/psaab/aclc/pkg/acl"
)

// Client calls a remote Translator service.
type Client struct {
	cc   grpc.ClientConnInterface
	conn *grpc.ClientConn // nil when built from an existing connection
}

// Dial connects to addr (host:port or unix:/path) without transport
// security; aclcd listens on loopback or a local socket.
func Dial(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	return &Client{cc: conn, conn: conn}, nil
}

// NewClient wraps an existing connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Close closes a connection opened by Dial.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// RemoteError is a failed translation reported by the server.
type RemoteError struct {
	Kind    string // error kind, e.g. "unknown-protocol"; empty for other failures
	Tokens  []string
	Message string
}

func (e *RemoteError) Error() string { return e.Message }

func (c *Client) call(ctx context.Context, method string, req, resp any) error {
	in, err := toStruct(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out); err != nil {
		return remoteError(err)
	}
	return fromStruct(out, resp)
}

// remoteError unpacks the translation detail of a status error.
func remoteError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	for _, d := range st.Details() {
		s, ok := d.(*structpb.Struct)
		if !ok {
			continue
		}
		var detail errorDetail
		if fromStruct(s, &detail) == nil && detail.Kind != "" {
			return &RemoteError{Kind: detail.Kind, Tokens: detail.Tokens, Message: st.Message()}
		}
	}
	return err
}

// KindOf returns the translation error kind of err, or "" if err is not
// a translation failure.
func KindOf(err error) string {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

// Parse parses one line of the target set.
func (c *Client) Parse(ctx context.Context, t Target, line string) (*acl.Rule, error) {
	var resp parseResponse
	if err := c.call(ctx, "Parse", parseRequest{Target: t, Line: line}, &resp); err != nil {
		return nil, err
	}
	return resp.Rule, nil
}

// Render renders r for the target set.
func (c *Client) Render(ctx context.Context, t Target, r *acl.Rule) (string, error) {
	var resp renderResponse
	if err := c.call(ctx, "Render", renderRequest{Target: t, Rule: r}, &resp); err != nil {
		return "", err
	}
	return resp.Line, nil
}

// RenderDelete renders the command removing r from the target set.
func (c *Client) RenderDelete(ctx context.Context, t Target, r *acl.Rule) (string, error) {
	var resp renderResponse
	if err := c.call(ctx, "RenderDelete", renderRequest{Target: t, Rule: r}, &resp); err != nil {
		return "", err
	}
	return resp.Line, nil
}

// Convert translates line from one set to another.
func (c *Client) Convert(ctx context.Context, from, to Target, line string) (string, error) {
	var resp convertResponse
	if err := c.call(ctx, "Convert", convertRequest{From: from, To: to, Line: line}, &resp); err != nil {
		return "", err
	}
	return resp.Line, nil
}

// ParseSet parses raw device output of one set.
func (c *Client) ParseSet(ctx context.Context, t Target, name, text string) (*SetResult, error) {
	var resp SetResult
	if err := c.call(ctx, "ParseSet", parseSetRequest{Target: t, Name: name, Text: text}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status returns a daemon summary.
func (c *Client) Status(ctx context.Context) (*StatusResult, error) {
	var resp StatusResult
	if err := c.call(ctx, "Status", struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
