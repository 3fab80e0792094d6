package cli

import (
	"context"

	"github.com/psaab/aclc/pkg/acl"
	"github.com/psaab/aclc/pkg/grpcapi"
)

// Target names a configured ACL or a raw set marker.
type Target = grpcapi.Target

// Backend performs translations for the shell. *grpcapi.Client is the
// remote implementation; Local wraps an in-process engine.
type Backend interface {
	Parse(ctx context.Context, t Target, line string) (*acl.Rule, error)
	Render(ctx context.Context, t Target, r *acl.Rule) (string, error)
	RenderDelete(ctx context.Context, t Target, r *acl.Rule) (string, error)
	Convert(ctx context.Context, from, to Target, line string) (string, error)
	ParseSet(ctx context.Context, t Target, name, text string) (*grpcapi.SetResult, error)
	Status(ctx context.Context) (*grpcapi.StatusResult, error)
}

var _ Backend = (*grpcapi.Client)(nil)
