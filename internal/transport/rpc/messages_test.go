package rpc

import (
	"testing"
	"time"

	"github.com/rezkam/broker/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobSubmissionToDomainRejectsMissingFields(t *testing.T) {
	_, err := JobSubmission{Name: "n"}.toDomain()
	require.Error(t, err)

	_, err = JobSubmission{ID: "id"}.toDomain()
	require.Error(t, err)
}

func TestJobSubmissionRoundTripsDelayedExecutionTime(t *testing.T) {
	job := jobs.Job{
		ID:            "job-1",
		Name:          "send-email",
		Args:          []string{"a", "b"},
		ExecutionTime: jobs.ExecutionDelayedFor(45 * time.Second),
	}
	sub := fromDomainJob(job)
	assert.Equal(t, "delayed", sub.ExecutionTime.Kind)

	back, err := sub.toDomain()
	require.NoError(t, err)
	assert.Equal(t, jobs.Delayed, back.ExecutionTime.Kind)
	assert.Equal(t, 45*time.Second, back.ExecutionTime.For)
	assert.Nil(t, back.ReservationTime)
}

func TestJobSubmissionRoundTripsScheduledExecutionTime(t *testing.T) {
	at := time.Now().Add(time.Hour).Truncate(time.Second)
	job := jobs.Job{ID: "job-2", Name: "n", ExecutionTime: jobs.ExecutionScheduledAt(at)}
	sub := fromDomainJob(job)

	back, err := sub.toDomain()
	require.NoError(t, err)
	assert.Equal(t, jobs.Scheduled, back.ExecutionTime.Kind)
	assert.True(t, at.Equal(back.ExecutionTime.At))
}

func TestJobSubmissionRoundTripsReservationTime(t *testing.T) {
	reservation := 10 * time.Second
	job := jobs.Job{
		ID: "job-3", Name: "n",
		ExecutionTime:   jobs.ExecutionImmediate(),
		ReservationTime: &reservation,
	}
	sub := fromDomainJob(job)
	require.NotNil(t, sub.ReservationSeconds)
	assert.Equal(t, 10.0, *sub.ReservationSeconds)

	back, err := sub.toDomain()
	require.NoError(t, err)
	require.NotNil(t, back.ReservationTime)
	assert.Equal(t, reservation, *back.ReservationTime)
}

func TestExecutionTimeWireRejectsUnknownKind(t *testing.T) {
	_, err := ExecutionTimeWire{Kind: "whenever"}.toDomain()
	require.Error(t, err)
}

func TestResultMessageToDomainStatus(t *testing.T) {
	assert.Equal(t, jobs.StatusSucceeded, ResultMessage{Status: "succeeded"}.toDomainStatus())
	assert.Equal(t, jobs.StatusFailed, ResultMessage{Status: "failed"}.toDomainStatus())
	assert.Equal(t, jobs.StatusFailed, ResultMessage{Status: "garbage"}.toDomainStatus())
}

func TestFromDomainDeadJob(t *testing.T) {
	dead := jobs.DeadJob{
		Job:    jobs.Job{ID: "job-4", Name: "n", ExecutionTime: jobs.ExecutionImmediate()},
		Reason: jobs.MaxRetryReached,
	}
	wire := fromDomainDeadJob(dead)
	assert.Equal(t, "job-4", wire.Job.ID)
	assert.Equal(t, "max_retry_reached", wire.Reason)
}
