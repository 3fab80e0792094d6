package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/psaab/aclc/pkg/acl"
	"github.com/psaab/aclc/pkg/engine"
	"github.com/psaab/aclc/pkg/grpcapi"
)

// Local is a Backend running translations in-process.
type Local struct {
	engine *engine.Engine
}

// NewLocal wraps eng.
func NewLocal(eng *engine.Engine) *Local {
	return &Local{engine: eng}
}

var _ Backend = (*Local)(nil)

func (l *Local) marker(t Target) (string, error) {
	switch {
	case t.ACL != "" && t.Marker != "":
		return "", fmt.Errorf("acl and marker are mutually exclusive")
	case t.ACL != "":
		return l.engine.MarkerFor(t.ACL)
	case t.Marker != "":
		return t.Marker, nil
	}
	return "", fmt.Errorf("acl or marker required")
}

func (l *Local) Parse(_ context.Context, t Target, line string) (*acl.Rule, error) {
	m, err := l.marker(t)
	if err != nil {
		return nil, err
	}
	return l.engine.Parse(m, line)
}

func (l *Local) Render(_ context.Context, t Target, r *acl.Rule) (string, error) {
	m, err := l.marker(t)
	if err != nil {
		return "", err
	}
	return l.engine.Render(m, r)
}

func (l *Local) RenderDelete(_ context.Context, t Target, r *acl.Rule) (string, error) {
	m, err := l.marker(t)
	if err != nil {
		return "", err
	}
	return l.engine.RenderDelete(m, r)
}

func (l *Local) Convert(_ context.Context, from, to Target, line string) (string, error) {
	fm, err := l.marker(from)
	if err != nil {
		return "", err
	}
	tm, err := l.marker(to)
	if err != nil {
		return "", err
	}
	out, _, err := l.engine.Convert(fm, tm, line)
	return out, err
}

func (l *Local) ParseSet(_ context.Context, t Target, name, text string) (*grpcapi.SetResult, error) {
	m, err := l.marker(t)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = t.ACL
	}
	set, err := l.engine.ParseSet(m, name, text)
	if err != nil {
		return nil, err
	}
	return grpcapi.NewSetResult(set)
}

func (l *Local) Status(context.Context) (*grpcapi.StatusResult, error) {
	_, conversions := l.engine.Stats()
	table := l.engine.ACLs()
	return &grpcapi.StatusResult{
		Uptime:      l.engine.Uptime().Truncate(time.Second).String(),
		ACLs:        len(table),
		ACLTable:    table,
		Conversions: conversions,
		Rejections:  l.engine.Rejections().Total(),
	}, nil
}
