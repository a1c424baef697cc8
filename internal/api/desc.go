package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "chatmirror.v1.StateService"

const (
	methodGetState     = "/" + ServiceName + "/GetState"
	methodGetStatus    = "/" + ServiceName + "/GetStatus"
	methodPushEvent    = "/" + ServiceName + "/PushEvent"
	methodRunOperation = "/" + ServiceName + "/RunOperation"
	methodWatchState   = "/" + ServiceName + "/WatchState"
)

// StateServer is the server API for the StateService. Messages use the well
// known Struct and Empty types so the JSON shapes of the chat state travel
// unchanged.
type StateServer interface {
	GetState(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	PushEvent(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	RunOperation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WatchState(*emptypb.Empty, grpc.ServerStream) error
}

// RegisterStateServer registers srv on s.
func RegisterStateServer(s grpc.ServiceRegistrar, srv StateServer) {
	s.RegisterService(&StateServiceDesc, srv)
}

// StateServiceDesc describes chatmirror.v1.StateService.
var StateServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StateServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetState", Handler: getStateHandler},
		{MethodName: "GetStatus", Handler: getStatusHandler},
		{MethodName: "PushEvent", Handler: pushEventHandler},
		{MethodName: "RunOperation", Handler: runOperationHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchState", Handler: watchStateHandler, ServerStreams: true},
	},
}

func getStateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StateServer).GetState(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetState}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(StateServer).GetState(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getStatusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StateServer).GetStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetStatus}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(StateServer).GetStatus(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func pushEventHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StateServer).PushEvent(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodPushEvent}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(StateServer).PushEvent(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func runOperationHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StateServer).RunOperation(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodRunOperation}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(StateServer).RunOperation(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func watchStateHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(StateServer).WatchState(in, stream)
}

// StateClient is the client API for the StateService.
type StateClient struct {
	cc grpc.ClientConnInterface
}

// NewStateClient returns a client using cc.
func NewStateClient(cc grpc.ClientConnInterface) *StateClient {
	return &StateClient{cc: cc}
}

func (c *StateClient) GetState(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodGetState, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *StateClient) GetStatus(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodGetStatus, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *StateClient) PushEvent(ctx context.Context, envelope *structpb.Struct, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, methodPushEvent, envelope, &emptypb.Empty{}, opts...)
}

func (c *StateClient) RunOperation(ctx context.Context, op *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodRunOperation, op, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ChangeStream receives state changes from WatchState.
type ChangeStream struct {
	stream grpc.ClientStream
}

// Recv blocks for the next change.
func (s *ChangeStream) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := s.stream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *StateClient) WatchState(ctx context.Context, opts ...grpc.CallOption) (*ChangeStream, error) {
	stream, err := c.cc.NewStream(ctx, &StateServiceDesc.Streams[0], methodWatchState, opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &ChangeStream{stream: stream}, nil
}
