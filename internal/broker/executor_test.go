package broker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rezkam/broker/internal/jobs"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T, cfg Config) (*Executor, context.Context) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewExecutor(ctx, "send-email", cfg), ctx
}

func TestExecutorDispatchesFireAndForgetJobToAnAlreadyJoinedWorker(t *testing.T) {
	e, ctx := newTestExecutor(t, DefaultConfig())
	sender := &recordingSender{}
	require.NoError(t, e.AddWorker(ctx, NewWorker("w1", sender)))

	job := jobs.Job{ID: "job-1", Name: "send-email", ExecutionTime: jobs.ExecutionImmediate()}
	require.NoError(t, e.WorkOn(ctx, job))

	require.Eventually(t, func() bool { return len(sender.sent) == 1 }, time.Second, 5*time.Millisecond)
}

func TestExecutorQueuesTaskUntilAWorkerJoins(t *testing.T) {
	e, ctx := newTestExecutor(t, DefaultConfig())

	job := jobs.Job{ID: "job-2", Name: "send-email", ExecutionTime: jobs.ExecutionImmediate()}
	require.NoError(t, e.WorkOn(ctx, job))

	// No worker yet: give the task loop a moment to genuinely be starved,
	// then join one and confirm the feeder delivers it.
	time.Sleep(20 * time.Millisecond)
	sender := &recordingSender{}
	require.NoError(t, e.AddWorker(ctx, NewWorker("w1", sender)))

	require.Eventually(t, func() bool { return len(sender.sent) == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestExecutorRoutesJobResultToTheMatchingTask(t *testing.T) {
	e, ctx := newTestExecutor(t, DefaultConfig())
	sender := &recordingSender{}
	require.NoError(t, e.AddWorker(ctx, NewWorker("w1", sender)))

	reservation := 2 * time.Second
	job := jobs.Job{
		ID: "job-3", Name: "send-email",
		ExecutionTime:   jobs.ExecutionImmediate(),
		ReservationTime: &reservation,
	}
	require.NoError(t, e.WorkOn(ctx, job))
	require.Eventually(t, func() bool { return len(sender.sent) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, e.HandleJobResult(ctx, "job-3", jobs.StatusSucceeded))

	// The task should finish promptly; ReportDeadJobs staying empty is our
	// observable proxy for "the task resolved as a success, not a timeout".
	time.Sleep(100 * time.Millisecond)
	dead, err := e.ReportDeadJobs(ctx)
	require.NoError(t, err)
	require.Empty(t, dead)
}

func TestExecutorReportsDeadJobsAfterMaxRetryExhausted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRetry = 1
	e, ctx := newTestExecutor(t, cfg)
	sender := &recordingSender{}
	require.NoError(t, e.AddWorker(ctx, NewWorker("w1", sender)))

	reservation := 20 * time.Millisecond
	job := jobs.Job{
		ID: "job-4", Name: "send-email",
		ExecutionTime:   jobs.ExecutionImmediate(),
		ReservationTime: &reservation,
	}
	require.NoError(t, e.WorkOn(ctx, job))

	require.Eventually(t, func() bool {
		dead, err := e.ReportDeadJobs(ctx)
		return err == nil && len(dead) == 1
	}, 2*time.Second, 10*time.Millisecond)

	dead, err := e.ReportDeadJobs(ctx)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	require.Equal(t, "job-4", dead[0].Job.ID)
	require.Equal(t, jobs.MaxRetryReached, dead[0].Reason)
}

func TestExecutorEvictsWorkerWhoseStreamIsAlreadyDead(t *testing.T) {
	e, ctx := newTestExecutor(t, DefaultConfig())
	deadSender := &recordingSender{err: errors.New("stream reset")}
	aliveSender := &recordingSender{}
	require.NoError(t, e.AddWorker(ctx, NewWorker("dead-worker", deadSender)))
	require.NoError(t, e.AddWorker(ctx, NewWorker("alive-worker", aliveSender)))

	job := jobs.Job{ID: "job-churn", Name: "send-email", ExecutionTime: jobs.ExecutionImmediate()}
	require.NoError(t, e.WorkOn(ctx, job))

	// The task must dispatch past the dead worker onto the alive one, and the
	// executor must forget the dead one so it is never handed out again.
	require.Eventually(t, func() bool { return len(aliveSender.sent) == 1 }, time.Second, 5*time.Millisecond)
	require.Empty(t, deadSender.sent)

	for i := 0; i < 5; i++ {
		job := jobs.Job{ID: fmt.Sprintf("job-churn-%d", i), Name: "send-email", ExecutionTime: jobs.ExecutionImmediate()}
		require.NoError(t, e.WorkOn(ctx, job))
	}
	require.Eventually(t, func() bool { return len(aliveSender.sent) == 6 }, time.Second, 5*time.Millisecond)
	require.Empty(t, deadSender.sent, "an evicted worker must never be handed out again")
}

func TestExecutorRemoveWorkerStopsFutureDispatch(t *testing.T) {
	e, ctx := newTestExecutor(t, DefaultConfig())
	sender := &recordingSender{}
	w := NewWorker("w1", sender)
	require.NoError(t, e.AddWorker(ctx, w))
	require.NoError(t, e.RemoveWorker(ctx, w.ID()))

	job := jobs.Job{ID: "job-5", Name: "send-email", ExecutionTime: jobs.ExecutionImmediate()}
	require.NoError(t, e.WorkOn(ctx, job))

	time.Sleep(50 * time.Millisecond)
	require.Empty(t, sender.sent, "a removed worker must never receive a dispatch")
}
