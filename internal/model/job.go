package model

import "time"

// JobStatus is the lifecycle state of a background resolution job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job is a pollable handle to a background resolution. Mutated only by the
// job manager; callers receive copies.
type Job struct {
	ID           string              `json:"id"`
	RUC          RUC                 `json:"ruc"`
	Status       JobStatus           `json:"status"`
	CreatedAt    time.Time           `json:"created_at"`
	StartedAt    *time.Time          `json:"started_at,omitempty"`
	CompletedAt  *time.Time          `json:"completed_at,omitempty"`
	Result       *ConsolidatedRecord `json:"result,omitempty"`
	Error        string              `json:"error,omitempty"`
	ErrorDetails string              `json:"error_details,omitempty"`
}

// Done reports whether the job reached a terminal state.
func (j *Job) Done() bool {
	return j.Status == JobCompleted || j.Status == JobFailed
}
