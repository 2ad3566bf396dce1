package ringctl

import (
	"context"

	"google.golang.org/grpc"
)

// RingControlClient is the hand-written client stub mirroring what
// protoc-gen-go-grpc would emit, used by the tests.
type RingControlClient interface {
	GetStatus(ctx context.Context, in *StatusRequest, opts ...grpc.CallOption) (*StatusResponse, error)
	TriggerElection(ctx context.Context, in *ElectionRequest, opts ...grpc.CallOption) (*ElectionAck, error)
	WatchStatus(ctx context.Context, in *WatchRequest, opts ...grpc.CallOption) (RingControl_WatchStatusClient, error)
}

type ringControlClient struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection as a RingControlClient.
func NewClient(cc grpc.ClientConnInterface) RingControlClient {
	return &ringControlClient{cc: cc}
}

func withJSONSubtype(opts []grpc.CallOption) []grpc.CallOption {
	return append(opts, grpc.CallContentSubtype(jsonCodec{}.Name()))
}

func (c *ringControlClient) GetStatus(ctx context.Context, in *StatusRequest, opts ...grpc.CallOption) (*StatusResponse, error) {
	out := new(StatusResponse)
	if err := c.cc.Invoke(ctx, "/ringscoop.ringctl.RingControl/GetStatus", in, out, withJSONSubtype(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ringControlClient) TriggerElection(ctx context.Context, in *ElectionRequest, opts ...grpc.CallOption) (*ElectionAck, error) {
	out := new(ElectionAck)
	if err := c.cc.Invoke(ctx, "/ringscoop.ringctl.RingControl/TriggerElection", in, out, withJSONSubtype(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// RingControl_WatchStatusClient is the client-side handle for the
// WatchStatus stream.
type RingControl_WatchStatusClient interface {
	Recv() (*StatusUpdate, error)
	grpc.ClientStream
}

type ringControlWatchStatusClient struct {
	grpc.ClientStream
}

func (x *ringControlWatchStatusClient) Recv() (*StatusUpdate, error) {
	m := new(StatusUpdate)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *ringControlClient) WatchStatus(ctx context.Context, in *WatchRequest, opts ...grpc.CallOption) (RingControl_WatchStatusClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], "/ringscoop.ringctl.RingControl/WatchStatus", withJSONSubtype(opts)...)
	if err != nil {
		return nil, err
	}
	x := &ringControlWatchStatusClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
