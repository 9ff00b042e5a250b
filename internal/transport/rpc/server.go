package rpc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rezkam/broker/internal/broker"
	"github.com/rezkam/broker/internal/jobs"
)

// jobNamesMetadataKey is the request-metadata key a Join caller attaches its
// job_names value under (spec §6.2).
const jobNamesMetadataKey = "job_names"

var errMissingJobNames = errors.New("rpc: missing job_names metadata")

// BrokerServer adapts internal/broker's Manager to the hand-authored Server
// interface in service.go, the way internal/service.MonoService adapts the
// teacher's domain layer to its generated gRPC server interface: a thin
// layer that converts wire messages, delegates, and maps errors.
type BrokerServer struct {
	manager           *broker.Manager
	logger            *slog.Logger
	workerMailboxSize int
}

// NewBrokerServer constructs a BrokerServer backed by manager. A nil logger
// falls back to slog.Default(). workerMailboxSize bounds each joined
// consumer's outbound dispatch mailbox (spec §5); zero or negative falls
// back to broker.DefaultWorkerMailboxSize.
func NewBrokerServer(manager *broker.Manager, logger *slog.Logger, workerMailboxSize int) *BrokerServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &BrokerServer{manager: manager, logger: logger, workerMailboxSize: workerMailboxSize}
}

// Work admits every job submission on the stream, replying with the count
// accepted once the producer closes its send side.
func (s *BrokerServer) Work(stream WorkServer) error {
	var accepted int32
	for {
		sub, err := stream.Recv()
		if err == io.EOF {
			return stream.SendAndClose(&WorkAck{Accepted: accepted})
		}
		if err != nil {
			return err
		}
		job, err := sub.toDomain()
		if err != nil {
			return status.Errorf(codes.InvalidArgument, "invalid job submission: %v", err)
		}
		if err := s.manager.Work(stream.Context(), job); err != nil {
			return mapError(err)
		}
		accepted++
	}
}

// Join registers a consumer's outbound stream as a Worker for every job name
// in its job_names metadata, dispatching jobs over the stream and routing
// reported results back into the Manager until the stream closes.
func (s *BrokerServer) Join(stream JoinServer) error {
	jobNames, err := jobNamesFromContext(stream.Context())
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}

	workerID := broker.NewWorkerID()
	// The welcome goes out before the pump starts, so the pump stays the
	// stream's only sender from here on.
	if err := stream.Send(&ServerMessage{Welcome: &WelcomeMessage{WorkerID: workerID}}); err != nil {
		return err
	}
	outbound := newStreamSender(stream, s.workerMailboxSize)
	worker := broker.NewWorker(workerID, outbound)

	if err := s.manager.Join(stream.Context(), jobNames, worker); err != nil {
		return mapError(err)
	}
	defer func() {
		outbound.close()
		// Use a background context: the stream's own context is already
		// cancelled by the time this defer runs.
		if err := s.manager.Leave(context.Background(), jobNames, workerID); err != nil {
			s.logger.Warn("leaving job names on disconnect", "worker_id", workerID, "error", err)
		}
	}()

	for {
		msg, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if msg.Result == nil {
			continue
		}
		result := msg.Result
		if err := s.manager.HandleJobResult(stream.Context(), result.JobName, result.JobID, result.toDomainStatus()); err != nil {
			s.logger.Warn("dropping result for unknown job", "job_id", result.JobID, "job_name", result.JobName, "error", err)
		}
	}
}

// GetDeadJobs returns the jobs that exhausted their retries under the
// requested job name.
func (s *BrokerServer) GetDeadJobs(ctx context.Context, req *DeadJobsRequest) (*DeadJobsResponse, error) {
	dead, err := s.manager.GetDeadJobs(ctx, req.JobName)
	if err != nil {
		return nil, mapError(err)
	}
	resp := &DeadJobsResponse{Jobs: make([]DeadJobWire, len(dead))}
	for i, d := range dead {
		resp.Jobs[i] = fromDomainDeadJob(d)
	}
	return resp, nil
}

func jobNamesFromContext(ctx context.Context) ([]string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, errMissingJobNames
	}
	values := md.Get(jobNamesMetadataKey)
	if len(values) == 0 {
		return nil, errMissingJobNames
	}
	return broker.ParseJobNames(values[0])
}

// mapError is the single place gRPC status codes are chosen from domain
// errors, mirroring the teacher's internal/service.mapError.
func mapError(err error) error {
	switch {
	case errors.Is(err, broker.ErrUnknownJobName):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, broker.ErrEmptyJobNames):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// streamSender adapts a JoinServer's Send method to broker.Sender, backed by
// a bounded outbox channel: the worker outbound mailbox spec §5 names as the
// broker's only producer-facing flow-control mechanism. It is shared by
// every Worker copy handed to the Manager, and by every Task goroutine that
// ends up dispatching through this consumer concurrently, so a single pump
// goroutine is the only thing that ever calls the underlying stream's Send
// (a grpc.ServerStream is not safe for concurrent use) -- mirroring how the
// original implementation hands an mpsc::Sender's receiving half straight to
// the transport to drain onto the wire.
type streamSender struct {
	stream    JoinServer
	outbox    chan jobs.Job
	closed    chan struct{}
	closeOnce sync.Once
}

// newStreamSender starts the pump goroutine and returns the sender. mailboxSize
// bounds how many dispatched jobs may sit queued for this worker before a
// Send call blocks, exerting back-pressure on the task(s) dispatching to it.
func newStreamSender(stream JoinServer, mailboxSize int) *streamSender {
	if mailboxSize <= 0 {
		mailboxSize = broker.DefaultWorkerMailboxSize
	}
	s := &streamSender{
		stream: stream,
		outbox: make(chan jobs.Job, mailboxSize),
		closed: make(chan struct{}),
	}
	go s.pump()
	return s
}

// pump drains the outbox onto the wire one job at a time. A send failure
// closes the sender: every job a task tries to enqueue afterward is reported
// as the worker being gone. Jobs already waiting in the outbox at that moment
// were accepted by Send and are not delivered.
func (s *streamSender) pump() {
	for {
		select {
		case job := <-s.outbox:
			msg := &ServerMessage{Dispatch: &DispatchMessage{Job: fromDomainJob(job)}}
			if err := s.stream.Send(msg); err != nil {
				s.close()
				return
			}
		case <-s.closed:
			return
		}
	}
}

func (s *streamSender) Send(job jobs.Job) error {
	// Checked first so a closed sender never accepts a job, even while the
	// outbox still has room.
	select {
	case <-s.closed:
		return broker.ErrWorkerGone
	default:
	}
	select {
	case s.outbox <- job:
		return nil
	case <-s.closed:
		return broker.ErrWorkerGone
	}
}

func (s *streamSender) close() {
	s.closeOnce.Do(func() { close(s.closed) })
}
