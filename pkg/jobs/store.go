package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrJobNotFound is returned when no job has the requested id.
	ErrJobNotFound = errors.New("job not found")
	// ErrNotCancelable is returned when canceling a job that already started.
	ErrNotCancelable = errors.New("only queued jobs can be canceled")
)

var liveStates = []JobState{JobStateQueued, JobStateRunning}

// JobStore provides database operations for jobs.
type JobStore struct {
	db *gorm.DB
}

// NewJobStore creates a new JobStore.
func NewJobStore(db *gorm.DB) *JobStore {
	return &JobStore{db: db}
}

// AutoMigrate creates or updates the detection_jobs table.
func (s *JobStore) AutoMigrate() error {
	return s.db.AutoMigrate(&Job{})
}

// JobListFilter defines filters for listing jobs.
type JobListFilter struct {
	Kind          string
	ApplicationID uint
	State         string
	RequestedBy   string
}

// Enqueue creates a new queued job. When a queued or running job holds the
// same idempotency key, that job is returned with created false instead.
// Safe for concurrent use.
func (s *JobStore) Enqueue(ctx context.Context, job *Job) (*Job, bool, error) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.State == "" {
		job.State = JobStateQueued
	}
	if job.RequestedAt.IsZero() {
		job.RequestedAt = time.Now().UTC()
	}

	if job.IdempotencyKey == nil {
		if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
			return nil, false, fmt.Errorf("enqueue job: %w", err)
		}
		return job, true, nil
	}

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "idempotency_key"}}, DoNothing: true}).
		Create(job)
	if res.Error != nil {
		return nil, false, fmt.Errorf("enqueue job: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return job, true, nil
	}

	var existing Job
	err := s.db.WithContext(ctx).
		Where("idempotency_key = ? AND state IN ?", *job.IdempotencyKey, liveStates).
		First(&existing).Error
	if err != nil {
		return nil, false, fmt.Errorf("look up live job %s: %w", *job.IdempotencyKey, err)
	}
	return &existing, false, nil
}

// Claim atomically picks the oldest queued job and transitions it to
// running. PostgreSQL and MySQL use FOR UPDATE SKIP LOCKED so that replicas
// never claim the same row. Returns nil if no jobs are available.
func (s *JobStore) Claim(ctx context.Context, maxRetries int) (*Job, error) {
	var job Job

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("state = ? AND attempt_count <= ?", JobStateQueued, maxRetries).
			Order("requested_at ASC").
			Limit(1)
		if tx.Dialector.Name() != "sqlite" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		if err := q.Find(&job).Error; err != nil {
			return err
		}
		if job.ID == "" {
			return nil
		}

		now := time.Now().UTC()
		res := tx.Model(&Job{}).Where("id = ? AND state = ?", job.ID, JobStateQueued).
			Updates(map[string]any{
				"state":         JobStateRunning,
				"started_at":    now,
				"attempt_count": gorm.Expr("attempt_count + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Claimed by someone else between select and update.
			job = Job{}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	if job.ID == "" {
		return nil, nil
	}

	if err := s.db.WithContext(ctx).First(&job, "id = ?", job.ID).Error; err != nil {
		return nil, fmt.Errorf("reload claimed job: %w", err)
	}
	return &job, nil
}

// Result is what a finished job reports.
type Result struct {
	Created  int
	Existing int
	Message  string
	Duration time.Duration
}

// Complete marks a job as succeeded and releases its idempotency key.
func (s *JobStore) Complete(ctx context.Context, jobID string, r Result) error {
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&Job{}).Where("id = ?", jobID).Updates(map[string]any{
		"state":           JobStateSucceeded,
		"finished_at":     now,
		"created":         r.Created,
		"existing":        r.Existing,
		"duration_ms":     r.Duration.Milliseconds(),
		"message":         r.Message,
		"idempotency_key": gorm.Expr("NULL"),
	})
	if res.Error != nil {
		return fmt.Errorf("complete job: %w", res.Error)
	}
	return nil
}

// Fail records a failed attempt. While retry is true and attempts remain the
// job is re-queued; otherwise it becomes failed and releases its key.
func (s *JobStore) Fail(ctx context.Context, jobID string, errMsg string, maxRetries int, retry bool) error {
	var job Job
	if err := s.db.WithContext(ctx).First(&job, "id = ?", jobID).Error; err != nil {
		return fmt.Errorf("load job for fail: %w", err)
	}

	updates := map[string]any{
		"last_error":  errMsg,
		"finished_at": time.Now().UTC(),
	}
	switch {
	case retry && job.AttemptCount < maxRetries:
		updates["state"] = JobStateQueued
		updates["started_at"] = nil
		updates["finished_at"] = nil
	case retry:
		updates["state"] = JobStateFailed
		updates["message"] = "Max retries exceeded: " + errMsg
		updates["idempotency_key"] = gorm.Expr("NULL")
	default:
		updates["state"] = JobStateFailed
		updates["message"] = errMsg
		updates["idempotency_key"] = gorm.Expr("NULL")
	}

	if err := s.db.WithContext(ctx).Model(&Job{}).Where("id = ?", jobID).Updates(updates).Error; err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

// Cancel marks a queued job as canceled. Running jobs cannot be canceled.
func (s *JobStore) Cancel(ctx context.Context, jobID string) error {
	res := s.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND state = ?", jobID, JobStateQueued).
		Updates(map[string]any{
			"state":           JobStateCanceled,
			"finished_at":     time.Now().UTC(),
			"message":         "Canceled by user",
			"idempotency_key": gorm.Expr("NULL"),
		})
	if res.Error != nil {
		return fmt.Errorf("cancel job: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	job, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}
	return fmt.Errorf("job %s is %s: %w", jobID, job.State, ErrNotCancelable)
}

// Get retrieves a job by ID.
func (s *JobStore) Get(ctx context.Context, jobID string) (*Job, error) {
	var job Job
	if err := s.db.WithContext(ctx).First(&job, "id = ?", jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &job, nil
}

// List returns paginated jobs matching the given filter, newest first.
// pageToken is the RFC3339Nano request time of the last job of the previous
// page.
func (s *JobStore) List(ctx context.Context, filter JobListFilter, pageSize int, pageToken string) ([]Job, string, int, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	buildQuery := func(base *gorm.DB) *gorm.DB {
		q := base.Model(&Job{})
		if filter.Kind != "" {
			q = q.Where("kind = ?", filter.Kind)
		}
		if filter.ApplicationID != 0 {
			q = q.Where("application_id = ?", filter.ApplicationID)
		}
		if filter.State != "" {
			q = q.Where("state = ?", filter.State)
		}
		if filter.RequestedBy != "" {
			q = q.Where("requested_by = ?", filter.RequestedBy)
		}
		return q
	}

	db := s.db.WithContext(ctx)
	var totalSize int64
	if err := buildQuery(db).Count(&totalSize).Error; err != nil {
		return nil, "", 0, fmt.Errorf("count jobs: %w", err)
	}

	query := buildQuery(db).Order("requested_at DESC").Limit(pageSize + 1)
	if pageToken != "" {
		t, err := time.Parse(time.RFC3339Nano, pageToken)
		if err != nil {
			return nil, "", 0, fmt.Errorf("invalid page token: %w", err)
		}
		query = query.Where("requested_at < ?", t)
	}

	var records []Job
	if err := query.Find(&records).Error; err != nil {
		return nil, "", 0, fmt.Errorf("list jobs: %w", err)
	}

	var nextToken string
	if len(records) > pageSize {
		nextToken = records[pageSize-1].RequestedAt.Format(time.RFC3339Nano)
		records = records[:pageSize]
	}
	return records, nextToken, int(totalSize), nil
}

// CleanupStuckJobs transitions running jobs that have been stuck
// (started_at older than claimTimeout) back to queued for retry.
func (s *JobStore) CleanupStuckJobs(ctx context.Context, claimTimeout time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-claimTimeout)
	res := s.db.WithContext(ctx).Model(&Job{}).
		Where("state = ? AND started_at < ?", JobStateRunning, cutoff).
		Updates(map[string]any{
			"state":      JobStateQueued,
			"started_at": nil,
			"last_error": "Timed out (stuck job recovery)",
		})
	if res.Error != nil {
		return 0, fmt.Errorf("cleanup stuck jobs: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteOlderThan removes terminal jobs finished before cutoff.
func (s *JobStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("state IN ? AND finished_at < ?",
		[]JobState{JobStateSucceeded, JobStateFailed, JobStateCanceled}, cutoff).
		Delete(&Job{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete old jobs: %w", res.Error)
	}
	return res.RowsAffected, nil
}
