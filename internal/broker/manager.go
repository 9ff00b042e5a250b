package broker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rezkam/broker/internal/jobs"
)

// ErrUnknownJobName is returned when an operation names a job that no
// executor has ever been created for.
var ErrUnknownJobName = errors.New("broker: unknown job name")

// ErrEmptyJobNames is returned when a Join request's job-name metadata
// parses to zero names.
var ErrEmptyJobNames = errors.New("broker: job_names metadata must name at least one job")

// Manager is the broker's RPC-facing surface (spec §4.4): it owns a
// monotonically-growing registry of per-job-name Executors and forwards
// every producer and consumer request to the right one.
type Manager struct {
	ctx context.Context
	cfg Config

	mu        sync.Mutex
	executors map[string]*Executor
}

// NewManager constructs a Manager. Executors it creates run until ctx is
// cancelled.
func NewManager(ctx context.Context, cfg Config) *Manager {
	return &Manager{
		ctx:       ctx,
		cfg:       cfg.withDefaults(),
		executors: make(map[string]*Executor),
	}
}

// executorFor returns the Executor for name, creating it (and only ever
// growing the registry, spec §4.4 invariant) if this is the first time name
// has been seen.
func (m *Manager) executorFor(name string) *Executor {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.executors[name]; ok {
		return e
	}
	e := NewExecutor(m.ctx, name, m.cfg)
	m.executors[name] = e
	return e
}

// lookupExecutor returns the existing Executor for name without creating one.
func (m *Manager) lookupExecutor(name string) (*Executor, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.executors[name]
	return e, ok
}

// Work admits job for dispatch under its job name, creating that name's
// Executor on first use.
func (m *Manager) Work(ctx context.Context, job jobs.Job) error {
	return m.executorFor(job.Name).WorkOn(ctx, job)
}

// Join registers worker as available across every job name it advertises,
// creating an Executor for any name not already known.
func (m *Manager) Join(ctx context.Context, jobNames []string, worker Worker) error {
	if len(jobNames) == 0 {
		return ErrEmptyJobNames
	}
	for _, name := range jobNames {
		if err := m.executorFor(name).AddWorker(ctx, worker); err != nil {
			return fmt.Errorf("broker: joining %q: %w", name, err)
		}
	}
	return nil
}

// Leave deregisters worker's id from every job name it had joined, typically
// once its outbound stream has closed.
func (m *Manager) Leave(ctx context.Context, jobNames []string, workerID WorkerID) error {
	for _, name := range jobNames {
		e, ok := m.lookupExecutor(name)
		if !ok {
			continue
		}
		if err := e.RemoveWorker(ctx, workerID); err != nil {
			return fmt.Errorf("broker: leaving %q: %w", name, err)
		}
	}
	return nil
}

// HandleJobResult routes a consumer-reported outcome to jobName's Executor.
// Reporting a result for a job name with no Executor is a no-op error: no
// task could possibly exist under it.
func (m *Manager) HandleJobResult(ctx context.Context, jobName, jobID string, status jobs.Status) error {
	e, ok := m.lookupExecutor(jobName)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJobName, jobName)
	}
	return e.HandleJobResult(ctx, jobID, status)
}

// GetDeadJobs returns the jobs that exhausted their retries under jobName.
// An unknown job name yields an empty result rather than an error: it simply
// has never had any jobs, dead or otherwise.
func (m *Manager) GetDeadJobs(ctx context.Context, jobName string) ([]jobs.DeadJob, error) {
	e, ok := m.lookupExecutor(jobName)
	if !ok {
		return nil, nil
	}
	return e.ReportDeadJobs(ctx)
}

// ParseJobNames parses the semicolon-separated job_names metadata value
// producers and consumers attach to their RPCs (spec §6.2). Each name must
// be a non-empty, printable ASCII token with no embedded whitespace.
func ParseJobNames(raw string) ([]string, error) {
	parts := strings.Split(raw, ";")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		name := strings.TrimSpace(p)
		if name == "" {
			continue
		}
		if !isValidJobName(name) {
			return nil, fmt.Errorf("broker: invalid job name %q in job_names metadata", name)
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, ErrEmptyJobNames
	}
	return names, nil
}

func isValidJobName(name string) bool {
	for _, r := range name {
		if r <= ' ' || r > '~' {
			return false
		}
	}
	return true
}
