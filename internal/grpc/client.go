package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client is a thin client for the balance service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Simulate invokes the unary simulation RPC.
func (c *Client) Simulate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, SimulateMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// StreamEngagement opens the engagement stream for a single request.
func (c *Client) StreamEngagement(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &BalanceServiceDesc.Streams[0], StreamEngagementMethod, opts...)
	if err != nil {
		return nil, err
	}
	client := &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}
	if err := client.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := client.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return client, nil
}
