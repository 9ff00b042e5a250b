package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// BrokerClient is the hand-written counterpart of a generated BrokerClient
// interface, used by cmd/producer and cmd/consumer.
type BrokerClient interface {
	Work(ctx context.Context, opts ...grpc.CallOption) (WorkClient, error)
	Join(ctx context.Context, opts ...grpc.CallOption) (JoinClient, error)
	GetDeadJobs(ctx context.Context, req *DeadJobsRequest, opts ...grpc.CallOption) (*DeadJobsResponse, error)
}

// WorkClient is the client side of the client-streaming Work RPC.
type WorkClient interface {
	Send(*JobSubmission) error
	CloseAndRecv() (*WorkAck, error)
	grpc.ClientStream
}

// JoinClient is the client side of the bidirectional-streaming Join RPC.
type JoinClient interface {
	Send(*ConsumerMessage) error
	Recv() (*ServerMessage, error)
	grpc.ClientStream
}

type brokerClient struct {
	cc grpc.ClientConnInterface
}

// NewBrokerClient wraps cc. Every call negotiates the JSON content-subtype
// registered in codec.go rather than the default protobuf one.
func NewBrokerClient(cc grpc.ClientConnInterface) BrokerClient {
	return &brokerClient{cc: cc}
}

func withJSONSubtype(opts []grpc.CallOption) []grpc.CallOption {
	return append(append([]grpc.CallOption{}, opts...), grpc.CallContentSubtype(Name))
}

func (c *brokerClient) Work(ctx context.Context, opts ...grpc.CallOption) (WorkClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], "/broker.Broker/Work", withJSONSubtype(opts)...)
	if err != nil {
		return nil, err
	}
	return &workClient{stream}, nil
}

type workClient struct{ grpc.ClientStream }

func (c *workClient) Send(m *JobSubmission) error {
	return c.ClientStream.SendMsg(m)
}

func (c *workClient) CloseAndRecv() (*WorkAck, error) {
	if err := c.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	m := new(WorkAck)
	if err := c.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *brokerClient) Join(ctx context.Context, opts ...grpc.CallOption) (JoinClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[1], "/broker.Broker/Join", withJSONSubtype(opts)...)
	if err != nil {
		return nil, err
	}
	return &joinClient{stream}, nil
}

type joinClient struct{ grpc.ClientStream }

func (c *joinClient) Send(m *ConsumerMessage) error {
	return c.ClientStream.SendMsg(m)
}

func (c *joinClient) Recv() (*ServerMessage, error) {
	m := new(ServerMessage)
	if err := c.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *brokerClient) GetDeadJobs(ctx context.Context, req *DeadJobsRequest, opts ...grpc.CallOption) (*DeadJobsResponse, error) {
	out := new(DeadJobsResponse)
	if err := c.cc.Invoke(ctx, "/broker.Broker/GetDeadJobs", req, out, withJSONSubtype(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}
