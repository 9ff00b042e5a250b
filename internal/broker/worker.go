package broker

import (
	"errors"

	"github.com/rezkam/broker/internal/jobs"
)

// ErrWorkerGone is returned by Worker.Work when the consumer's outbound
// stream has been closed or a send to it failed. It is the single failure
// kind a Worker handle can report (spec §4.1): the caller (a Task) treats it
// as worker death, never as a reason to retry the same handle.
var ErrWorkerGone = errors.New("broker: worker stream closed")

// Sender is the contract a transport provides for delivering a dispatched
// job to one consumer. Transport packages (e.g. internal/transport/rpc) wrap
// their outbound stream in a Sender; the broker core never depends on a
// concrete stream type.
type Sender interface {
	// Send attempts to enqueue job on the underlying outbound stream. It must
	// return ErrWorkerGone (or an error matched by errors.Is to it) when the
	// stream is no longer usable.
	Send(job jobs.Job) error
}

// WorkerID uniquely identifies a Worker within the broker.
type WorkerID = string

// Worker is the broker-side handle to one consumer's outbound delivery
// stream (spec §4.1). It is cheap to copy: every copy shares the same
// underlying Sender, so a failure observed through any copy means the
// underlying consumer is gone.
type Worker struct {
	id   WorkerID
	send Sender
}

// NewWorker wraps send under id.
func NewWorker(id WorkerID, send Sender) Worker {
	return Worker{id: id, send: send}
}

// ID returns the worker's broker-assigned id.
func (w Worker) ID() WorkerID {
	return w.id
}

// Work delivers job to the consumer. It performs no retry: a single failed
// call means the consumer is considered dead and the caller must request a
// different worker.
func (w Worker) Work(job jobs.Job) error {
	if err := w.send.Send(job); err != nil {
		return errJoin(ErrWorkerGone, err)
	}
	return nil
}

// errJoin wraps cause under the sentinel so callers can errors.Is(err,
// ErrWorkerGone) regardless of the transport's own error type.
func errJoin(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return &sentinelError{sentinel: sentinel, cause: cause}
}

type sentinelError struct {
	sentinel error
	cause    error
}

func (e *sentinelError) Error() string {
	return e.sentinel.Error() + ": " + e.cause.Error()
}

func (e *sentinelError) Is(target error) bool {
	return target == e.sentinel
}

func (e *sentinelError) Unwrap() error {
	return e.cause
}
