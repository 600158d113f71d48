package analysis

import (
	"context"
	"sort"

	"storybible-api/internal/domain/entity"
	"storybible-api/internal/domain/repository"
	apperrors "storybible-api/pkg/errors"
)

// JobData is a job together with the per-chapter extractions that fed
// it, in chapter order.
type JobData struct {
	Job              *entity.AnalysisJob
	ChapterAnalyses  []*entity.ChapterAnalysis
	ChapterNumberFor map[string]int
}

// GetJobData returns a job with its nested chapter analyses. Chapter
// analyses are looked up under the job's prompt version and model, so
// the data shown is exactly what the run consumed.
func (s *Service) GetJobData(ctx context.Context, jobID string) (*JobData, error) {
	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "load job")
	}
	if job == nil {
		return nil, apperrors.ErrJobNotFound
	}

	chapters, err := s.chapterRepo.ListByStoryUpTo(ctx, job.StoryID, job.LastChapterNumber)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "load chapters")
	}

	data := &JobData{Job: job, ChapterNumberFor: make(map[string]int, len(chapters))}
	if len(chapters) == 0 {
		return data, nil
	}

	_, modelName, promptVersion := s.modelFor(job)

	chapterIDs := make([]string, len(chapters))
	numberByID := make(map[string]int, len(chapters))
	for i, ch := range chapters {
		chapterIDs[i] = ch.ID
		numberByID[ch.ID] = ch.Number
	}
	cached, err := s.analysisRepo.GetBatch(ctx, chapterIDs, promptVersion, modelName)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "load chapter analyses")
	}

	for id, row := range cached {
		data.ChapterAnalyses = append(data.ChapterAnalyses, row)
		data.ChapterNumberFor[id] = numberByID[id]
	}
	sort.Slice(data.ChapterAnalyses, func(i, j int) bool {
		return data.ChapterNumberFor[data.ChapterAnalyses[i].ChapterID] < data.ChapterNumberFor[data.ChapterAnalyses[j].ChapterID]
	})
	return data, nil
}

// ListJobs returns a page of the story's jobs, newest first.
func (s *Service) ListJobs(ctx context.Context, storyID string, filter *repository.JobFilter, pagination repository.Pagination) (*repository.PagedResult[*entity.AnalysisJob], error) {
	story, err := s.storyRepo.GetByID(ctx, storyID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "load story")
	}
	if story == nil {
		return nil, apperrors.ErrStoryNotFound
	}
	result, err := s.jobRepo.ListByStory(ctx, storyID, filter, pagination)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "list jobs")
	}
	return result, nil
}

// DeleteJob removes the job row only. An in-flight worker run is not
// signalled; it will fail its guarded terminal write and move on. The
// extraction cache is untouched: cached chapter extractions outlive
// the jobs that produced them.
func (s *Service) DeleteJob(ctx context.Context, jobID string) error {
	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "load job")
	}
	if job == nil {
		return apperrors.ErrJobNotFound
	}
	if err := s.jobRepo.Delete(ctx, job.ID); err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "delete job")
	}
	return nil
}

// JobStats returns per-status job counts for a story.
func (s *Service) JobStats(ctx context.Context, storyID string) (*repository.JobStats, error) {
	story, err := s.storyRepo.GetByID(ctx, storyID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "load story")
	}
	if story == nil {
		return nil, apperrors.ErrStoryNotFound
	}
	stats, err := s.jobRepo.GetStats(ctx, storyID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "job stats")
	}
	return stats, nil
}
