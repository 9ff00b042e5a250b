package broker

import "time"

// Defaults mirror the mailbox capacities and timing spec.md §5 hardcodes;
// Config exposes them as tunables the way the teacher's
// internal/application/worker/coordinator.go turns worker constants into a
// WorkerConfig struct with DefaultWorkerConfig().
const (
	DefaultMaxRetry             uint8 = 30
	DefaultExecutorMailboxSize        = 100
	DefaultTaskMailboxSize            = 10
	DefaultWorkerMailboxSize          = 10
	DefaultReportMailboxSize          = 5
	DefaultFeederStagger              = 100 * time.Millisecond
)

// Config tunes one Executor (and, transitively, the Tasks it spawns).
type Config struct {
	// MaxRetry is the fixed upper bound on try_count (spec §3, invariant 5).
	MaxRetry uint8
	// ExecutorMailboxSize bounds the executor's control mailbox.
	ExecutorMailboxSize int
	// TaskMailboxSize bounds each task's control mailbox.
	TaskMailboxSize int
	// ReportMailboxSize bounds the reply channel used by ReportDeadJobs callers.
	ReportMailboxSize int
	// FeederStagger is the anti-thundering-herd delay applied between
	// successive starved-task wake-ups (spec §4.3).
	FeederStagger time.Duration
}

// DefaultConfig returns the defaults named in spec.md §3 and §5.
func DefaultConfig() Config {
	return Config{
		MaxRetry:            DefaultMaxRetry,
		ExecutorMailboxSize: DefaultExecutorMailboxSize,
		TaskMailboxSize:     DefaultTaskMailboxSize,
		ReportMailboxSize:   DefaultReportMailboxSize,
		FeederStagger:       DefaultFeederStagger,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxRetry == 0 {
		c.MaxRetry = DefaultMaxRetry
	}
	if c.ExecutorMailboxSize == 0 {
		c.ExecutorMailboxSize = DefaultExecutorMailboxSize
	}
	if c.TaskMailboxSize == 0 {
		c.TaskMailboxSize = DefaultTaskMailboxSize
	}
	if c.ReportMailboxSize == 0 {
		c.ReportMailboxSize = DefaultReportMailboxSize
	}
	if c.FeederStagger == 0 {
		c.FeederStagger = DefaultFeederStagger
	}
	return c
}
