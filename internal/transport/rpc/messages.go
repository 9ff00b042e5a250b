package rpc

import (
	"fmt"
	"time"

	"github.com/rezkam/broker/internal/jobs"
	"github.com/rezkam/broker/internal/ptr"
)

// ExecutionTimeWire is the wire form of jobs.ExecutionTime (spec §6.2).
type ExecutionTimeWire struct {
	Kind       string     `json:"kind"` // "immediate" | "scheduled" | "delayed"
	At         *time.Time `json:"at,omitempty"`
	ForSeconds *float64   `json:"for_seconds,omitempty"`
}

func fromDomainExecutionTime(e jobs.ExecutionTime) ExecutionTimeWire {
	switch e.Kind {
	case jobs.Scheduled:
		return ExecutionTimeWire{Kind: "scheduled", At: ptr.To(e.At)}
	case jobs.Delayed:
		return ExecutionTimeWire{Kind: "delayed", ForSeconds: ptr.To(e.For.Seconds())}
	default:
		return ExecutionTimeWire{Kind: "immediate"}
	}
}

func (w ExecutionTimeWire) toDomain() (jobs.ExecutionTime, error) {
	switch w.Kind {
	case "", "immediate":
		return jobs.ExecutionImmediate(), nil
	case "scheduled":
		if w.At == nil {
			return jobs.ExecutionTime{}, fmt.Errorf("rpc: scheduled execution_time missing at")
		}
		return jobs.ExecutionScheduledAt(*w.At), nil
	case "delayed":
		if w.ForSeconds == nil {
			return jobs.ExecutionTime{}, fmt.Errorf("rpc: delayed execution_time missing for_seconds")
		}
		seconds := ptr.Deref(w.ForSeconds, 0)
		return jobs.ExecutionDelayedFor(time.Duration(seconds * float64(time.Second))), nil
	default:
		return jobs.ExecutionTime{}, fmt.Errorf("rpc: unknown execution_time kind %q", w.Kind)
	}
}

// JobSubmission is the wire form of jobs.Job carried by Work (producer ->
// broker) and Dispatch (broker -> consumer).
type JobSubmission struct {
	ID                 string            `json:"id"`
	Name               string            `json:"name"`
	Args               []string          `json:"args,omitempty"`
	ExecutionTime      ExecutionTimeWire `json:"execution_time"`
	ReservationSeconds *float64          `json:"reservation_seconds,omitempty"`
}

func fromDomainJob(job jobs.Job) JobSubmission {
	sub := JobSubmission{
		ID:            job.ID,
		Name:          job.Name,
		Args:          job.Args,
		ExecutionTime: fromDomainExecutionTime(job.ExecutionTime),
	}
	if job.ReservationTime != nil {
		sub.ReservationSeconds = ptr.To(job.ReservationTime.Seconds())
	}
	return sub
}

func (s JobSubmission) toDomain() (jobs.Job, error) {
	if s.ID == "" {
		return jobs.Job{}, fmt.Errorf("rpc: job submission missing id")
	}
	if s.Name == "" {
		return jobs.Job{}, fmt.Errorf("rpc: job submission missing name")
	}
	execTime, err := s.ExecutionTime.toDomain()
	if err != nil {
		return jobs.Job{}, err
	}
	job := jobs.Job{ID: s.ID, Name: s.Name, Args: s.Args, ExecutionTime: execTime}
	if s.ReservationSeconds != nil {
		job.ReservationTime = ptr.To(time.Duration(*s.ReservationSeconds * float64(time.Second)))
	}
	return job, nil
}

// WorkAck acknowledges a completed Work stream with the number of job
// submissions the broker admitted.
type WorkAck struct {
	Accepted int32 `json:"accepted"`
}

// ResultMessage is a consumer's reported outcome for one dispatched job.
type ResultMessage struct {
	JobID   string `json:"job_id"`
	JobName string `json:"job_name"`
	Status  string `json:"status"` // "succeeded" | "failed"
}

func (r ResultMessage) toDomainStatus() jobs.Status {
	if r.Status == "succeeded" {
		return jobs.StatusSucceeded
	}
	return jobs.StatusFailed
}

// ConsumerMessage is the oneof a consumer sends over its Join stream.
type ConsumerMessage struct {
	Result *ResultMessage `json:"result,omitempty"`
}

// WelcomeMessage announces the broker-assigned worker id for a new Join
// stream.
type WelcomeMessage struct {
	WorkerID string `json:"worker_id"`
}

// DispatchMessage carries a job the broker is handing this consumer.
type DispatchMessage struct {
	Job JobSubmission `json:"job"`
}

// ServerMessage is the oneof the broker sends over a Join stream.
type ServerMessage struct {
	Welcome  *WelcomeMessage  `json:"welcome,omitempty"`
	Dispatch *DispatchMessage `json:"dispatch,omitempty"`
}

// DeadJobsRequest asks for the dead-letter jobs under JobName.
type DeadJobsRequest struct {
	JobName string `json:"job_name"`
}

// DeadJobWire is the wire form of jobs.DeadJob.
type DeadJobWire struct {
	Job    JobSubmission `json:"job"`
	Reason string        `json:"reason"`
}

func fromDomainDeadJob(d jobs.DeadJob) DeadJobWire {
	return DeadJobWire{Job: fromDomainJob(d.Job), Reason: d.Reason.String()}
}

// DeadJobsResponse lists the jobs that exhausted their retries.
type DeadJobsResponse struct {
	Jobs []DeadJobWire `json:"jobs"`
}
