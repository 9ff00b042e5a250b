package broker

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rezkam/broker/internal/jobs"
)

// executorMsg is the union of messages an Executor's mailbox accepts.
type executorMsg interface{ isExecutorMsg() }

type workOnMsg struct{ job jobs.Job }

func (workOnMsg) isExecutorMsg() {}

type addWorkerMsg struct{ worker Worker }

func (addWorkerMsg) isExecutorMsg() {}

type removeWorkerMsg struct{ id WorkerID }

func (removeWorkerMsg) isExecutorMsg() {}

type provideWorkerMsg struct{ reply chan<- provideWorkerResp }

func (provideWorkerMsg) isExecutorMsg() {}

type provideWorkerResp struct {
	worker Worker
	err    error
}

type jobResultMsg struct {
	jobID  string
	status jobs.Status
}

func (jobResultMsg) isExecutorMsg() {}

type taskSucceededMsg struct{ jobID, jobName string }

func (taskSucceededMsg) isExecutorMsg() {}

type taskDiedMsg struct {
	job    jobs.Job
	reason jobs.FailReason
}

func (taskDiedMsg) isExecutorMsg() {}

type reportDeadJobsMsg struct{ reply chan<- []jobs.DeadJob }

func (reportDeadJobsMsg) isExecutorMsg() {}

// errNoWorkers is delivered to every queued ProvideWorker caller when
// feedStarved is handed an empty worker snapshot. The executor starts a
// feeder only right after adding a worker, so that snapshot is never empty;
// a worker removed after the snapshot was taken can still be handed out.
var errNoWorkers = fmt.Errorf("broker: no worker available")

// Executor owns every worker and in-flight task for a single job name (spec
// §4.3). Like Task, all of its state lives on one goroutine; every exported
// method is a request sent over the mailbox channel, mirroring the
// request/reply-channel convention internal/auth/interceptor.go uses for its
// background goroutine.
type Executor struct {
	name    string
	mailbox chan executorMsg
	cfg     Config
}

// NewExecutor starts the executor's goroutine for jobName and returns its
// handle. The executor runs until ctx is cancelled.
func NewExecutor(ctx context.Context, jobName string, cfg Config) *Executor {
	cfg = cfg.withDefaults()
	e := &Executor{
		name:    jobName,
		mailbox: make(chan executorMsg, cfg.ExecutorMailboxSize),
		cfg:     cfg,
	}
	go e.run(ctx)
	return e
}

// Name returns the job name this executor handles.
func (e *Executor) Name() string { return e.name }

// WorkOn admits job for dispatch, spawning a Task to drive it.
func (e *Executor) WorkOn(ctx context.Context, job jobs.Job) error {
	return e.send(ctx, workOnMsg{job: job})
}

// AddWorker registers worker as available to receive dispatched jobs.
func (e *Executor) AddWorker(ctx context.Context, worker Worker) error {
	return e.send(ctx, addWorkerMsg{worker: worker})
}

// RemoveWorker deregisters the worker with id, typically once its stream is
// known to have closed.
func (e *Executor) RemoveWorker(ctx context.Context, id WorkerID) error {
	return e.send(ctx, removeWorkerMsg{id: id})
}

// HandleJobResult routes a consumer-reported outcome to the live task for
// jobID, if any is still in flight (a late or duplicate report for a job the
// executor has already resolved is silently dropped).
func (e *Executor) HandleJobResult(ctx context.Context, jobID string, status jobs.Status) error {
	return e.send(ctx, jobResultMsg{jobID: jobID, status: status})
}

// ReportDeadJobs returns the jobs that exhausted their retries.
func (e *Executor) ReportDeadJobs(ctx context.Context) ([]jobs.DeadJob, error) {
	reply := make(chan []jobs.DeadJob, e.cfg.ReportMailboxSize)
	if err := e.send(ctx, reportDeadJobsMsg{reply: reply}); err != nil {
		return nil, err
	}
	select {
	case dead := <-reply:
		return dead, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *Executor) send(ctx context.Context, msg executorMsg) error {
	select {
	case e.mailbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// provideWorker is the taskHost-facing counterpart of ProvideWorker: it asks
// the executor's own goroutine for a worker, queueing behind the starvation
// feeder when none is yet available (spec §4.3).
func (e *Executor) provideWorker(ctx context.Context) (Worker, error) {
	reply := make(chan provideWorkerResp, 1)
	if err := e.send(ctx, provideWorkerMsg{reply: reply}); err != nil {
		return Worker{}, err
	}
	select {
	case resp := <-reply:
		return resp.worker, resp.err
	case <-ctx.Done():
		return Worker{}, ctx.Err()
	}
}

// removeWorker is the taskHost-facing counterpart of RemoveWorker: a Task
// calls it directly, fire-and-forget, when a dispatch attempt finds its
// worker's stream already dead (spec §4.2 step 4a).
func (e *Executor) removeWorker(id WorkerID) {
	e.mailbox <- removeWorkerMsg{id: id}
}

func (e *Executor) taskSucceeded(jobID, jobName string) {
	e.mailbox <- taskSucceededMsg{jobID: jobID, jobName: jobName}
}

func (e *Executor) taskDied(job jobs.Job, reason jobs.FailReason) {
	e.mailbox <- taskDiedMsg{job: job, reason: reason}
}

// run is the executor's single goroutine: every field below is touched only
// from here, so none of it needs a lock.
func (e *Executor) run(ctx context.Context) {
	workers := make(map[WorkerID]Worker)
	tasks := make(map[string]*Task)
	var deadJobs []jobs.DeadJob
	var starved []chan<- provideWorkerResp
	rng := rand.New(rand.NewSource(time.Now().UnixNano() ^ int64(len(e.name))))

	randomWorker := func() (Worker, bool) {
		if len(workers) == 0 {
			return Worker{}, false
		}
		i := rng.Intn(len(workers))
		for _, w := range workers {
			if i == 0 {
				return w, true
			}
			i--
		}
		return Worker{}, false
	}

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-e.mailbox:
			switch m := msg.(type) {
			case workOnMsg:
				job := m.job
				tasks[job.ID] = spawnTask(e, job, e.cfg, rand.New(rand.NewSource(rng.Int63())))

			case addWorkerMsg:
				workers[m.worker.ID()] = m.worker
				if len(starved) > 0 {
					pending := starved
					starved = nil
					snapshot := make([]Worker, 0, len(workers))
					for _, w := range workers {
						snapshot = append(snapshot, w)
					}
					feederRng := rand.New(rand.NewSource(rng.Int63()))
					go feedStarved(pending, snapshot, e.cfg.FeederStagger, feederRng)
				}

			case removeWorkerMsg:
				delete(workers, m.id)

			case provideWorkerMsg:
				if w, ok := randomWorker(); ok {
					m.reply <- provideWorkerResp{worker: w}
					continue
				}
				starved = append(starved, m.reply)

			case jobResultMsg:
				task, ok := tasks[m.jobID]
				if !ok {
					continue
				}
				var ctl taskControlMsg = resultMsg{status: m.status}
				if m.status == jobs.StatusSucceeded {
					// The job is settled: forget the task and stop it wherever it
					// is, including a pre-attempt wait before a retry.
					delete(tasks, m.jobID)
					ctl = terminateMsg{}
				}
				go func() {
					deliverCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = task.Deliver(deliverCtx, ctl)
				}()

			case taskSucceededMsg:
				delete(tasks, m.jobID)

			case taskDiedMsg:
				delete(tasks, m.job.ID)
				deadJobs = append(deadJobs, jobs.DeadJob{Job: m.job, Reason: m.reason})

			case reportDeadJobsMsg:
				snapshot := make([]jobs.DeadJob, len(deadJobs))
				copy(snapshot, deadJobs)
				m.reply <- snapshot
			}
		}
	}
}

// feedStarved staggers the delivery of an already-available worker pool to
// requesters that queued up while the executor had none (spec §4.3's
// anti-thundering-herd note). It runs detached from the executor goroutine
// against a worker snapshot, so it never touches executor state directly.
func feedStarved(pending []chan<- provideWorkerResp, snapshot []Worker, stagger time.Duration, rng *rand.Rand) {
	if len(snapshot) == 0 {
		for _, reply := range pending {
			reply <- provideWorkerResp{err: errNoWorkers}
		}
		return
	}
	for i, reply := range pending {
		if i > 0 && stagger > 0 {
			time.Sleep(stagger)
		}
		w := snapshot[rng.Intn(len(snapshot))]
		reply <- provideWorkerResp{worker: w}
	}
}
