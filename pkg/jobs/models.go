// Package jobs queues detection and retrain work so that it runs off the
// request path, with retries and stuck-job recovery.
package jobs

import (
	"fmt"
	"time"
)

// JobState represents the lifecycle state of a job.
type JobState string

const (
	JobStateQueued    JobState = "queued"
	JobStateRunning   JobState = "running"
	JobStateSucceeded JobState = "succeeded"
	JobStateFailed    JobState = "failed"
	JobStateCanceled  JobState = "canceled"
)

// JobKind is the work a job performs.
type JobKind string

const (
	// KindDetect runs every enabled detector against one application.
	KindDetect JobKind = "detect"
	// KindDuplicates runs only the duplicate detectors.
	KindDuplicates JobKind = "duplicates"
	// KindRetrain refits the document similarity model.
	KindRetrain JobKind = "retrain"
)

// Valid reports whether k is a known kind.
func (k JobKind) Valid() bool {
	switch k {
	case KindDetect, KindDuplicates, KindRetrain:
		return true
	}
	return false
}

// Job is the GORM model for a queued unit of work. IdempotencyKey is set
// while the job is queued or running and cleared when it finishes, so a
// second request for the same work is absorbed by the live job.
type Job struct {
	ID             string     `gorm:"primaryKey;column:id;type:varchar(36)"`
	Kind           JobKind    `gorm:"column:kind;index:idx_job_kind_state,priority:1;size:16;not null"`
	ApplicationID  *uint      `gorm:"column:application_id;index"`
	RequestedBy    string     `gorm:"column:requested_by;not null"`
	RequestedAt    time.Time  `gorm:"column:requested_at;not null"`
	State          JobState   `gorm:"column:state;index:idx_job_kind_state,priority:2;index:idx_job_state;not null;default:queued"`
	Message        string     `gorm:"column:message"`
	StartedAt      *time.Time `gorm:"column:started_at"`
	FinishedAt     *time.Time `gorm:"column:finished_at"`
	AttemptCount   int        `gorm:"column:attempt_count;default:0"`
	LastError      string     `gorm:"column:last_error"`
	IdempotencyKey *string    `gorm:"column:idempotency_key;uniqueIndex:idx_job_idemp_key;size:64"`
	Created        int        `gorm:"column:created"`
	Existing       int        `gorm:"column:existing"`
	DurationMs     int64      `gorm:"column:duration_ms"`
}

// TableName returns the GORM table name.
func (Job) TableName() string { return "detection_jobs" }

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	switch j.State {
	case JobStateSucceeded, JobStateFailed, JobStateCanceled:
		return true
	}
	return false
}

// IdempotencyKeyFor returns the key that deduplicates live jobs for the
// same work. Detection of one application in either mode shares a key with
// the application lock, and there is one retrain key.
func IdempotencyKeyFor(kind JobKind, applicationID uint) string {
	switch kind {
	case KindRetrain:
		return "retrain"
	case KindDuplicates:
		return fmt.Sprintf("duplicates:%d", applicationID)
	}
	return fmt.Sprintf("detect:%d", applicationID)
}
