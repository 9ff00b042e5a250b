package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionTimeWaitDuration(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("immediate is zero", func(t *testing.T) {
		assert.Equal(t, time.Duration(0), ExecutionImmediate().WaitDuration(now))
	})

	t.Run("delayed waits the full duration", func(t *testing.T) {
		assert.Equal(t, 5*time.Second, ExecutionDelayedFor(5*time.Second).WaitDuration(now))
	})

	t.Run("delayed clamps non-positive durations to zero", func(t *testing.T) {
		assert.Equal(t, time.Duration(0), ExecutionDelayedFor(0).WaitDuration(now))
		assert.Equal(t, time.Duration(0), ExecutionDelayedFor(-time.Second).WaitDuration(now))
	})

	t.Run("scheduled in the future waits the remainder", func(t *testing.T) {
		future := now.Add(10 * time.Second)
		assert.Equal(t, 10*time.Second, ExecutionScheduledAt(future).WaitDuration(now))
	})

	t.Run("scheduled in the past clamps to zero", func(t *testing.T) {
		past := now.Add(-10 * time.Second)
		assert.Equal(t, time.Duration(0), ExecutionScheduledAt(past).WaitDuration(now))
	})
}

func TestJobClone(t *testing.T) {
	reservation := 30 * time.Second
	original := Job{
		ID:              "job-1",
		Name:            "send-email",
		Args:            []string{"to", "subject"},
		ExecutionTime:   ExecutionImmediate(),
		ReservationTime: &reservation,
	}

	clone := original.Clone()
	require.Equal(t, original.ID, clone.ID)
	require.Equal(t, original.Args, clone.Args)
	require.NotNil(t, clone.ReservationTime)
	assert.Equal(t, *original.ReservationTime, *clone.ReservationTime)

	clone.Args[0] = "mutated"
	*clone.ReservationTime = time.Minute

	assert.Equal(t, "to", original.Args[0], "mutating the clone's Args must not affect the original")
	assert.Equal(t, 30*time.Second, *original.ReservationTime, "mutating the clone's ReservationTime must not affect the original")
}

func TestFailReasonString(t *testing.T) {
	assert.Equal(t, "max_retry_reached", MaxRetryReached.String())
	assert.Equal(t, "unknown", FailReason(99).String())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "succeeded", StatusSucceeded.String())
	assert.Equal(t, "failed", StatusFailed.String())
	assert.Equal(t, "unknown", Status(99).String())
}
