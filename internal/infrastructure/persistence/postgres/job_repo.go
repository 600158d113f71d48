package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"storybible-api/internal/domain/entity"
	"storybible-api/internal/domain/repository"
)

// JobRepository is the PostgreSQL analysis job repository.
type JobRepository struct {
	client *Client
}

func NewJobRepository(client *Client) *JobRepository {
	return &JobRepository{client: client}
}

func (r *JobRepository) Create(ctx context.Context, job *entity.AnalysisJob) error {
	ctx, span := tracer.Start(ctx, "postgres.JobRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(job).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (r *JobRepository) GetByID(ctx context.Context, id string) (*entity.AnalysisJob, error) {
	ctx, span := tracer.Start(ctx, "postgres.JobRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var job entity.AnalysisJob
	if err := db.First(&job, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// MarkRunning moves a PENDING job to IN_PROGRESS. The status guard in
// the WHERE clause makes the transition race-safe: a redelivered
// message finds zero rows and reports false.
func (r *JobRepository) MarkRunning(ctx context.Context, id string) (bool, error) {
	ctx, span := tracer.Start(ctx, "postgres.JobRepository.MarkRunning")
	defer span.End()

	db := getDB(ctx, r.client.db)
	now := time.Now()
	res := db.Model(&entity.AnalysisJob{}).
		Where("id = ? AND status = ?", id, entity.JobStatusPending).
		Updates(map[string]interface{}{
			"status":     entity.JobStatusInProgress,
			"started_at": now,
		})
	if res.Error != nil {
		span.RecordError(res.Error)
		return false, fmt.Errorf("failed to mark job running: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// SetResult writes the job's terminal state. Rows already in a
// terminal status are not overwritten.
func (r *JobRepository) SetResult(ctx context.Context, job *entity.AnalysisJob) error {
	ctx, span := tracer.Start(ctx, "postgres.JobRepository.SetResult")
	defer span.End()

	db := getDB(ctx, r.client.db)
	updates := map[string]interface{}{
		"status":       job.Status,
		"completed_at": job.CompletedAt,
		"duration_ms":  job.DurationMs,
	}
	if job.Result != nil {
		updates["result"] = job.Result
	}
	if job.ErrorMessage != "" {
		updates["error_message"] = job.ErrorMessage
	}
	if job.ModelName != "" {
		updates["model_name"] = job.ModelName
		updates["prompt_version"] = job.PromptVersion
		updates["tokens_prompt"] = job.TokensPrompt
		updates["tokens_completion"] = job.TokensCompletion
	}

	err := db.Model(&entity.AnalysisJob{}).
		Where("id = ? AND status NOT IN ?", job.ID, []entity.JobStatus{entity.JobStatusCompleted, entity.JobStatusFailed}).
		Updates(updates).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to set job result: %w", err)
	}
	return nil
}

func (r *JobRepository) ListByStory(ctx context.Context, storyID string, filter *repository.JobFilter, pagination repository.Pagination) (*repository.PagedResult[*entity.AnalysisJob], error) {
	ctx, span := tracer.Start(ctx, "postgres.JobRepository.ListByStory")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.AnalysisJob{}).Where("story_id = ?", storyID)

	if filter != nil {
		if filter.Status != "" {
			query = query.Where("status = ?", filter.Status)
		}
		if filter.Method != "" {
			query = query.Where("method = ?", filter.Method)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}

	var jobs []*entity.AnalysisJob
	if err := query.Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&jobs).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return repository.NewPagedResult(jobs, total, pagination), nil
}

func (r *JobRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.JobRepository.Delete")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Delete(&entity.AnalysisJob{}, "id = ?", id).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

func (r *JobRepository) DeleteByStory(ctx context.Context, storyID string) error {
	ctx, span := tracer.Start(ctx, "postgres.JobRepository.DeleteByStory")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Delete(&entity.AnalysisJob{}, "story_id = ?", storyID).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete jobs: %w", err)
	}
	return nil
}

func (r *JobRepository) GetStats(ctx context.Context, storyID string) (*repository.JobStats, error) {
	ctx, span := tracer.Start(ctx, "postgres.JobRepository.GetStats")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var stats repository.JobStats

	db.Model(&entity.AnalysisJob{}).Where("story_id = ?", storyID).Count(&stats.TotalJobs)
	db.Model(&entity.AnalysisJob{}).Where("story_id = ? AND status = ?", storyID, entity.JobStatusPending).Count(&stats.PendingJobs)
	db.Model(&entity.AnalysisJob{}).Where("story_id = ? AND status = ?", storyID, entity.JobStatusInProgress).Count(&stats.InProgressJobs)
	db.Model(&entity.AnalysisJob{}).Where("story_id = ? AND status = ?", storyID, entity.JobStatusCompleted).Count(&stats.CompletedJobs)
	db.Model(&entity.AnalysisJob{}).Where("story_id = ? AND status = ?", storyID, entity.JobStatusFailed).Count(&stats.FailedJobs)

	return &stats, nil
}
