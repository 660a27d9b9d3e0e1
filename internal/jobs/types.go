// Package jobs defines the asynchronous work abstraction used to run
// statement extraction off the request path. Uploading a statement enqueues
// a ProcessStatementJob; workers pick it up and drive it through the
// extraction pipeline.
package jobs

import (
	"context"
	"time"
)

// JobType identifies the kind of work a job carries.
type JobType string

const (
	JobTypeProcessStatement JobType = "process_statement"
)

// JobStatus is the queue-level state of a job. It is distinct from the
// statement lifecycle status: a job completes successfully even when the
// extraction pipeline marks the statement failed.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ProcessStatementJob asks a worker to extract transactions from an
// uploaded statement file. It carries identifiers only; workers load the
// statement record, which stays the single source of truth for file
// location and type.
type ProcessStatementJob struct {
	JobID       string     `json:"job_id"`
	StatementID string     `json:"statement_id"`
	UserID      string     `json:"user_id"`
	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Job is the generic view workers receive.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *ProcessStatementJob) GetID() string        { return j.JobID }
func (j *ProcessStatementJob) GetType() JobType     { return JobTypeProcessStatement }
func (j *ProcessStatementJob) GetStatus() JobStatus { return j.Status }

// Publisher enqueues statement-processing jobs. The abstraction allows
// swapping the in-memory queue for Cloud Tasks or Pub/Sub later.
type Publisher interface {
	PublishProcessStatement(ctx context.Context, job *ProcessStatementJob) error
	Close() error
}

// Consumer runs jobs from the queue through a handler.
type Consumer interface {
	// Start begins consuming jobs. The handler is called once per job;
	// a handler error marks the job failed. Extraction errors belong on
	// the statement, not the job, so handlers should only return errors
	// for infrastructure problems.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming and waits for in-flight jobs to finish.
	Stop(ctx context.Context) error
}

// JobHandler processes a single job.
type JobHandler func(ctx context.Context, job Job) error

// JobStore tracks job state for status inspection.
type JobStore interface {
	SaveJob(ctx context.Context, job *ProcessStatementJob) error
	GetJob(ctx context.Context, jobID string) (*ProcessStatementJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*ProcessStatementJob, error)
}

// JobFilter narrows ListJobs results.
type JobFilter struct {
	StatementID string
	Status      JobStatus
	Limit       int
	Offset      int
}
