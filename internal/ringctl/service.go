package ringctl

import (
	"context"

	"google.golang.org/grpc"
)

// RingControlServer is the interface the hand-rolled ServiceDesc below
// dispatches to. Server, in server.go, is the only implementation.
type RingControlServer interface {
	GetStatus(context.Context, *StatusRequest) (*StatusResponse, error)
	TriggerElection(context.Context, *ElectionRequest) (*ElectionAck, error)
	WatchStatus(*WatchRequest, RingControl_WatchStatusServer) error
}

// RingControl_WatchStatusServer is the server-side handle for the
// WatchStatus stream, matching the shape protoc-gen-go-grpc emits for a
// server-streaming RPC.
type RingControl_WatchStatusServer interface {
	Send(*StatusUpdate) error
	grpc.ServerStream
}

type ringControlWatchStatusServer struct {
	grpc.ServerStream
}

func (x *ringControlWatchStatusServer) Send(m *StatusUpdate) error {
	return x.ServerStream.SendMsg(m)
}

// RegisterRingControlServer attaches srv to s the same way generated code
// would, via grpc.ServiceRegistrar.
func RegisterRingControlServer(s grpc.ServiceRegistrar, srv RingControlServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func _RingControl_GetStatus_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(StatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RingControlServer).GetStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/ringscoop.ringctl.RingControl/GetStatus"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RingControlServer).GetStatus(ctx, req.(*StatusRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _RingControl_TriggerElection_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ElectionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RingControlServer).TriggerElection(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/ringscoop.ringctl.RingControl/TriggerElection"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RingControlServer).TriggerElection(ctx, req.(*ElectionRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _RingControl_WatchStatus_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(WatchRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(RingControlServer).WatchStatus(m, &ringControlWatchStatusServer{stream})
}

// ServiceDesc is the hand-written equivalent of what protoc-gen-go-grpc
// would generate from a .proto file describing this service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "ringscoop.ringctl.RingControl",
	HandlerType: (*RingControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStatus", Handler: _RingControl_GetStatus_Handler},
		{MethodName: "TriggerElection", Handler: _RingControl_TriggerElection_Handler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchStatus", Handler: _RingControl_WatchStatus_Handler, ServerStreams: true},
	},
	Metadata: "ringctl.proto",
}
