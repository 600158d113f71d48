package repository

import (
	"context"

	"storybible-api/internal/domain/entity"
)

// JobFilter narrows job listings.
type JobFilter struct {
	Status entity.JobStatus
	Method entity.AnalysisMethod
}

// JobRepository is the analysis job persistence interface.
type JobRepository interface {
	// Create persists a new job.
	Create(ctx context.Context, job *entity.AnalysisJob) error

	// GetByID returns a job, or nil when absent.
	GetByID(ctx context.Context, id string) (*entity.AnalysisJob, error)

	// MarkRunning moves a PENDING job to IN_PROGRESS. Returns false
	// when the job already left PENDING, which callers treat as a
	// redelivery and skip.
	MarkRunning(ctx context.Context, id string) (bool, error)

	// SetResult writes the terminal state of a job. The update is
	// guarded so a job already in a terminal status is left untouched.
	SetResult(ctx context.Context, job *entity.AnalysisJob) error

	// ListByStory returns the story's jobs ordered by creation time,
	// newest first.
	ListByStory(ctx context.Context, storyID string, filter *JobFilter, pagination Pagination) (*PagedResult[*entity.AnalysisJob], error)

	// Delete removes a job regardless of status.
	Delete(ctx context.Context, id string) error

	// DeleteByStory removes all jobs of a story.
	DeleteByStory(ctx context.Context, storyID string) error

	// GetStats returns job counts per status for a story.
	GetStats(ctx context.Context, storyID string) (*JobStats, error)
}

// JobStats summarizes a story's jobs.
type JobStats struct {
	TotalJobs      int64 `json:"total_jobs"`
	PendingJobs    int64 `json:"pending_jobs"`
	InProgressJobs int64 `json:"in_progress_jobs"`
	CompletedJobs  int64 `json:"completed_jobs"`
	FailedJobs     int64 `json:"failed_jobs"`
}
