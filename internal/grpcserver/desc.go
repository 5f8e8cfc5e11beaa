package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified staging service name.
const ServiceName = "racecrew.staging.v1.Staging"

// Full method names.
const (
	MethodStageSchedule  = "/" + ServiceName + "/StageSchedule"
	MethodStageDocuments = "/" + ServiceName + "/StageDocuments"
)

// StagingServer is the server API of the staging service. Requests and
// responses are free-form structs; the payload shape is documented on
// Server.
type StagingServer interface {
	StageSchedule(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StageDocuments(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the staging service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StagingServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "StageSchedule", Handler: stageScheduleHandler},
		{MethodName: "StageDocuments", Handler: stageDocumentsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "racecrew/staging/v1/staging.proto",
}

// Register adds srv to s.
func Register(s grpc.ServiceRegistrar, srv StagingServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func stageScheduleHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StagingServer).StageSchedule(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodStageSchedule}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(StagingServer).StageSchedule(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func stageDocumentsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StagingServer).StageDocuments(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodStageDocuments}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(StagingServer).StageDocuments(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ─── Client ───────────────────────────────────────────────────────────────────

// Client calls the staging service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient returns a Client using cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// StageSchedule stages extracted regattas for review.
func (c *Client) StageSchedule(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodStageSchedule, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// StageDocuments stages documents discovered for existing regattas.
func (c *Client) StageDocuments(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodStageDocuments, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
