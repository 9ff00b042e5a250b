package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// Server is the interface a concrete broker-backed implementation satisfies
// to register against ServiceDesc below. It plays the role a
// protoc-gen-go-grpc ...Server interface would play, hand-written because no
// .proto descriptor backs this service (see codec.go).
type Server interface {
	Work(WorkServer) error
	Join(JoinServer) error
	GetDeadJobs(ctx context.Context, req *DeadJobsRequest) (*DeadJobsResponse, error)
}

// WorkServer is the server side of the client-streaming Work RPC: a
// producer streams JobSubmission messages and the broker replies once, on
// stream close, with a WorkAck.
type WorkServer interface {
	Recv() (*JobSubmission, error)
	SendAndClose(*WorkAck) error
	grpc.ServerStream
}

type workServer struct{ grpc.ServerStream }

func (s *workServer) Recv() (*JobSubmission, error) {
	m := new(JobSubmission)
	if err := s.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *workServer) SendAndClose(ack *WorkAck) error {
	return s.ServerStream.SendMsg(ack)
}

// JoinServer is the server side of the bidirectional-streaming Join RPC: a
// consumer joins one or more job names (carried as "job_names" request
// metadata, spec §6.2) and exchanges DispatchMessage / ResultMessage traffic
// for as long as the stream stays open.
type JoinServer interface {
	Send(*ServerMessage) error
	Recv() (*ConsumerMessage, error)
	grpc.ServerStream
}

type joinServer struct{ grpc.ServerStream }

func (s *joinServer) Send(m *ServerMessage) error {
	return s.ServerStream.SendMsg(m)
}

func (s *joinServer) Recv() (*ConsumerMessage, error) {
	m := new(ConsumerMessage)
	if err := s.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func _Broker_Work_Handler(srv any, stream grpc.ServerStream) error {
	return srv.(Server).Work(&workServer{stream})
}

func _Broker_Join_Handler(srv any, stream grpc.ServerStream) error {
	return srv.(Server).Join(&joinServer{stream})
}

func _Broker_GetDeadJobs_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DeadJobsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).GetDeadJobs(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/broker.Broker/GetDeadJobs"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Server).GetDeadJobs(ctx, req.(*DeadJobsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc is the grpc.ServiceDesc a generated broker.pb.go would
// otherwise provide.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "broker.Broker",
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetDeadJobs", Handler: _Broker_GetDeadJobs_Handler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Work", Handler: _Broker_Work_Handler, ClientStreams: true},
		{StreamName: "Join", Handler: _Broker_Join_Handler, ClientStreams: true, ServerStreams: true},
	},
	Metadata: "broker.proto",
}

// RegisterBrokerServer registers srv against s the way a generated
// RegisterBrokerServer function would.
func RegisterBrokerServer(s grpc.ServiceRegistrar, srv Server) {
	s.RegisterService(&ServiceDesc, srv)
}
