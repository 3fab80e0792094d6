// Package grpcapi implements the aclc.v1.Translator gRPC service and its
// client. Requests and responses are google.protobuf.Struct messages, so
// no generated code is needed.
package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/psaab/aclc/pkg/acl"
	"github.com/psaab/aclc/pkg/dialect"
	"github.com/psaab/aclc/pkg/engine"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "aclc.v1.Translator"

// TranslatorServer is the server API of the Translator service.
type TranslatorServer interface {
	Parse(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Render(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RenderDelete(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Convert(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ParseSet(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Status(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func unaryHandler(method string, call func(TranslatorServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(TranslatorServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + method,
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(TranslatorServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes the Translator service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TranslatorServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("Parse", TranslatorServer.Parse),
		unaryHandler("Render", TranslatorServer.Render),
		unaryHandler("RenderDelete", TranslatorServer.RenderDelete),
		unaryHandler("Convert", TranslatorServer.Convert),
		unaryHandler("ParseSet", TranslatorServer.ParseSet),
		unaryHandler("Status", TranslatorServer.Status),
	},
	Metadata: "aclc/v1/translator.proto",
}

// Server implements the Translator service on top of an engine.
type Server struct {
	engine *engine.Engine
	addr   string
}

// NewServer creates a new gRPC server. addr is host:port or unix:/path.
func NewServer(addr string, eng *engine.Engine) *Server {
	return &Server{engine: eng, addr: addr}
}

// Register adds the service to srv.
func (s *Server) Register(srv *grpc.Server) {
	srv.RegisterService(&ServiceDesc, s)
}

// Listen opens the server's address. Unix sockets are created owner-only
// and replace a stale socket left by a previous run.
func Listen(addr string) (net.Listener, error) {
	path, ok := strings.CutPrefix(addr, "unix:")
	if !ok {
		return net.Listen("tcp", addr)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}
	old := unix.Umask(0o077)
	defer unix.Umask(old)
	return net.Listen("unix", path)
}

// Run starts the gRPC server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	lis, err := Listen(s.addr)
	if err != nil {
		return fmt.Errorf("gRPC listen: %w", err)
	}

	srv := grpc.NewServer()
	s.Register(srv)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("gRPC server listening", "addr", s.addr)
		if err := srv.Serve(lis); err != nil {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	srv.GracefulStop()
	return nil
}

// statusError maps engine failures to gRPC statuses. Translation failures
// are InvalidArgument with the error kind attached as a detail.
func statusError(err error) error {
	var pe *acl.ParseError
	switch {
	case errors.As(err, &pe):
		st := status.New(codes.InvalidArgument, err.Error())
		detail, derr := toStruct(errorDetail{Kind: pe.Kind.String(), Tokens: pe.Tokens, Pos: pe.Pos, Line: pe.Line})
		if derr == nil {
			if withDetail, derr := st.WithDetails(detail); derr == nil {
				st = withDetail
			}
		}
		return st.Err()
	case errors.Is(err, engine.ErrUnknownACL):
		return status.Error(codes.NotFound, err.Error())
	default:
		return status.Error(codes.InvalidArgument, err.Error())
	}
}

func (s *Server) marker(t Target) (string, error) {
	switch {
	case t.ACL != "" && t.Marker != "":
		return "", status.Error(codes.InvalidArgument, "acl and marker are mutually exclusive")
	case t.ACL != "":
		m, err := s.engine.MarkerFor(t.ACL)
		if err != nil {
			return "", statusError(err)
		}
		return m, nil
	case t.Marker != "":
		return t.Marker, nil
	}
	return "", status.Error(codes.InvalidArgument, "acl or marker required")
}

func decode(in *structpb.Struct, v any) error {
	if err := fromStruct(in, v); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	return nil
}

func encode(v any) (*structpb.Struct, error) {
	out, err := toStruct(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "%v", err)
	}
	return out, nil
}

func (s *Server) Parse(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req parseRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	marker, err := s.marker(req.Target)
	if err != nil {
		return nil, err
	}
	rule, err := s.engine.Parse(marker, req.Line)
	if err != nil {
		return nil, statusError(err)
	}
	ctx, _ := dialect.Select(marker)
	return encode(parseResponse{Context: ctx.String(), Rule: rule})
}

func (s *Server) Render(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.render(in, false)
}

func (s *Server) RenderDelete(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.render(in, true)
}

func (s *Server) render(in *structpb.Struct, del bool) (*structpb.Struct, error) {
	var req renderRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	if req.Rule == nil {
		return nil, status.Error(codes.InvalidArgument, "rule required")
	}
	marker, err := s.marker(req.Target)
	if err != nil {
		return nil, err
	}
	var line string
	if del {
		line, err = s.engine.RenderDelete(marker, req.Rule)
	} else {
		line, err = s.engine.Render(marker, req.Rule)
	}
	if err != nil {
		return nil, statusError(err)
	}
	return encode(renderResponse{Line: line})
}

func (s *Server) Convert(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req convertRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	from, err := s.marker(req.From)
	if err != nil {
		return nil, err
	}
	to, err := s.marker(req.To)
	if err != nil {
		return nil, err
	}
	line, rule, err := s.engine.Convert(from, to, req.Line)
	if err != nil {
		return nil, statusError(err)
	}
	return encode(convertResponse{Line: line, Rule: rule})
}

func (s *Server) ParseSet(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req parseSetRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	marker, err := s.marker(req.Target)
	if err != nil {
		return nil, err
	}
	name := req.Name
	if name == "" {
		name = req.ACL
	}
	set, err := s.engine.ParseSet(marker, name, req.Text)
	if err != nil {
		return nil, statusError(err)
	}
	res, err := NewSetResult(set)
	if err != nil {
		return nil, statusError(err)
	}
	return encode(res)
}

func (s *Server) Status(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	_, conversions := s.engine.Stats()
	table := s.engine.ACLs()
	return encode(StatusResult{
		Uptime:      s.engine.Uptime().Truncate(time.Second).String(),
		ACLs:        len(table),
		ACLTable:    table,
		Conversions: conversions,
		Rejections:  s.engine.Rejections().Total(),
	})
}
