package broker

import (
	"context"
	"math/rand"
	"time"

	"github.com/rezkam/broker/internal/jobs"
)

// taskHost is the slice of Executor a Task needs: acquiring a worker and
// reporting back the eventual outcome. Expressing it as an interface (rather
// than handing the Task a *Executor) keeps task_test.go free of a full
// Executor actor, the way internal/auth/interceptor.go's background
// goroutine only ever touches its own channels, never a sibling actor's
// internals directly.
type taskHost interface {
	provideWorker(ctx context.Context) (Worker, error)
	removeWorker(id WorkerID)
	taskSucceeded(jobID, jobName string)
	taskDied(job jobs.Job, reason jobs.FailReason)
}

// taskControlMsg is the union of messages a Task's mailbox accepts from its
// Executor while an attempt is in flight.
type taskControlMsg interface{ isTaskControlMsg() }

// resultMsg delivers a consumer-reported outcome for the task's current
// attempt (spec §4.2). The Executor sends it for a failed HandleJobResult
// whose job ID matches a live task; a succeeded one is sent as terminateMsg.
type resultMsg struct{ status jobs.Status }

func (resultMsg) isTaskControlMsg() {}

// terminateMsg cancels the task outright. Per the REDESIGN FLAGS decision in
// SPEC_FULL.md §4 (the drain-during-pre-wait ambiguity): a Terminate that
// arrives while the task is still in its pre-attempt wait is honored
// immediately rather than silently discarded, closing the race where a
// result for an earlier attempt of the same job ID arrives just as the next
// delayed attempt is about to fire.
type terminateMsg struct{}

func (terminateMsg) isTaskControlMsg() {}

// Task drives one job through its admit -> dispatch -> await-result ->
// retry-or-finish lifecycle (spec §4.2). It is not safe for concurrent use;
// all state is owned by the single goroutine spawned in spawnTask.
type Task struct {
	mailbox chan taskControlMsg
}

// spawnTask starts a Task's goroutine and returns the handle used to deliver
// control messages to it. host is the owning Executor (or a test double).
func spawnTask(host taskHost, job jobs.Job, cfg Config, rng *rand.Rand) *Task {
	t := &Task{mailbox: make(chan taskControlMsg, cfg.TaskMailboxSize)}
	go t.run(host, job, cfg, rng)
	return t
}

// Deliver enqueues a control message for the task. While the task's mailbox
// is full it blocks until ctx is done, and then returns ctx's error.
func (t *Task) Deliver(ctx context.Context, msg taskControlMsg) error {
	select {
	case t.mailbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Task) run(host taskHost, job jobs.Job, cfg Config, rng *rand.Rand) {
	ctx := context.Background()
	var tryCount uint8

	for {
		if terminated := t.preAttemptWait(job.ExecutionTime); terminated {
			return
		}

		worker, err := host.provideWorker(ctx)
		if err != nil {
			// The host itself is gone (e.g. shutting down); nothing left to do.
			return
		}

		if err := worker.Work(job.Clone()); err != nil {
			// The worker's stream died before the job was ever delivered: this
			// never counts as an attempt against the job, but the dead worker
			// must still be evicted so ProvideWorker stops handing it out, and
			// the job goes straight to another worker without waiting again.
			host.removeWorker(worker.ID())
			job.ExecutionTime = jobs.ExecutionImmediate()
			continue
		}

		if job.ReservationTime == nil {
			// Fire-and-forget: dispatch is the whole job, no result awaited.
			host.taskSucceeded(job.ID, job.Name)
			return
		}

		outcome, terminated := t.awaitReservation(*job.ReservationTime)
		if terminated {
			return
		}
		if outcome == jobs.StatusSucceeded {
			host.taskSucceeded(job.ID, job.Name)
			return
		}

		tryCount++
		if tryCount >= cfg.MaxRetry {
			host.taskDied(job, jobs.MaxRetryReached)
			return
		}
		job.ExecutionTime = jobs.ExecutionDelayedFor(expandDelay(tryCount, rng))
	}
}

// preAttemptWait sleeps for job.ExecutionTime.WaitDuration, returning true if
// a terminateMsg arrived during the wait (the caller must stop the task).
func (t *Task) preAttemptWait(execTime jobs.ExecutionTime) (terminated bool) {
	wait := execTime.WaitDuration(time.Now())
	if wait <= 0 {
		select {
		case msg := <-t.mailbox:
			if _, ok := msg.(terminateMsg); ok {
				return true
			}
		default:
		}
		return false
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			return false
		case msg := <-t.mailbox:
			if _, ok := msg.(terminateMsg); ok {
				return true
			}
			// Any other message is a result arriving while no attempt is
			// awaiting one (a late report for an earlier attempt); drop it
			// and keep waiting.
		}
	}
}

// awaitReservation blocks until either a resultMsg arrives, the reservation
// window elapses (treated as an implicit failure), or a terminateMsg cancels
// the task outright.
func (t *Task) awaitReservation(reservation time.Duration) (status jobs.Status, terminated bool) {
	timer := time.NewTimer(reservation)
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			return jobs.StatusFailed, false
		case msg := <-t.mailbox:
			switch m := msg.(type) {
			case resultMsg:
				return m.status, false
			case terminateMsg:
				return jobs.StatusFailed, true
			}
		}
	}
}

// expandDelay computes the back-off, in line with spec.md §4.2's resolved
// ambiguity: delay_seconds = 15 + (try_count XOR 4) + r*(try_count+1), with
// XOR the literal bitwise operator used by the original implementation (the
// comment citing an exponential formula there was stale relative to its own
// code).
func expandDelay(tryCount uint8, rng *rand.Rand) time.Duration {
	xored := float64(tryCount ^ 4)
	jitter := rng.Float64() * float64(tryCount+1)
	seconds := 15 + xored + jitter
	return time.Duration(seconds * float64(time.Second))
}
