package broker

import (
	"errors"
	"testing"

	"github.com/rezkam/broker/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	sent []jobs.Job
	err  error
}

func (s *recordingSender) Send(job jobs.Job) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, job)
	return nil
}

func TestWorkerWorkDeliversJob(t *testing.T) {
	sender := &recordingSender{}
	w := NewWorker("worker-1", sender)

	job := jobs.Job{ID: "job-1", Name: "send-email"}
	require.NoError(t, w.Work(job))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, job.ID, sender.sent[0].ID)
	assert.Equal(t, "worker-1", w.ID())
}

func TestWorkerWorkWrapsSendFailureUnderSentinel(t *testing.T) {
	causeErr := errors.New("stream reset")
	sender := &recordingSender{err: causeErr}
	w := NewWorker("worker-1", sender)

	err := w.Work(jobs.Job{ID: "job-1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWorkerGone))
	assert.True(t, errors.Is(err, causeErr))
}

func TestWorkerCopiesShareTheSameSender(t *testing.T) {
	sender := &recordingSender{}
	original := NewWorker("worker-1", sender)
	clone := original

	require.NoError(t, clone.Work(jobs.Job{ID: "job-1"}))
	assert.Len(t, sender.sent, 1, "a copy of Worker must share the underlying Sender")
}
