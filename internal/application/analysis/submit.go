package analysis

import (
	"context"
	"strings"

	"storybible-api/internal/domain/entity"
	"storybible-api/internal/infrastructure/messaging"
	apperrors "storybible-api/pkg/errors"
	"storybible-api/pkg/logger"
	"storybible-api/pkg/metrics"
)

// SubmitRequest asks for analysis of a story's chapters 1..N.
type SubmitRequest struct {
	StoryID           string
	LastChapterNumber int
	// Methods to run. Empty falls back to the configured defaults.
	Methods []string
	// Provider and Model override the configured chat model for this
	// submission. Empty means the service defaults.
	Provider string
	Model    string
}

// SubmitResult is the outcome for one requested method.
type SubmitResult struct {
	Method entity.AnalysisMethod
	Job    *entity.AnalysisJob
	Err    error
}

// Submit creates one pending job per requested method and enqueues
// each. Only request shape is validated; a story id that does not
// exist produces jobs that fail inside the worker, not a 404 here.
// Submission is not deduplicated: submitting twice creates two
// independent jobs.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) ([]SubmitResult, error) {
	if strings.TrimSpace(req.StoryID) == "" {
		return nil, apperrors.New(apperrors.CodeValidationFailed, "story_id is required")
	}
	if req.LastChapterNumber < 1 {
		return nil, apperrors.New(apperrors.CodeValidationFailed, "last_chapter_number must be at least 1")
	}
	methods, err := s.resolveMethods(req.Methods)
	if err != nil {
		return nil, err
	}

	jobs := make([]*entity.AnalysisJob, 0, len(methods))
	err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, m := range methods {
			job := entity.NewAnalysisJob(req.StoryID, req.LastChapterNumber, m)
			job.PromptVersion = s.cfg.PromptVersion
			job.Provider = req.Provider
			if job.Provider == "" {
				job.Provider = s.provider
			}
			job.ModelName = req.Model
			if job.ModelName == "" {
				job.ModelName = s.modelName
			}
			if err := s.jobRepo.Create(txCtx, job); err != nil {
				return apperrors.Wrap(err, apperrors.CodeDatabaseError, "create job")
			}
			jobs = append(jobs, job)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	results := make([]SubmitResult, len(jobs))
	for i, job := range jobs {
		results[i] = SubmitResult{Method: job.Method, Job: job}
		_, pubErr := s.publisher.PublishAnalysisJob(ctx, &messaging.AnalysisJobMessage{
			JobID:             job.ID,
			StoryID:           job.StoryID,
			LastChapterNumber: job.LastChapterNumber,
			Method:            string(job.Method),
		})
		if pubErr != nil {
			// The row exists but the queue never saw it. Fail the row
			// so polling clients are not left on PENDING forever.
			logger.Error(ctx, "enqueue analysis job failed", pubErr, "job_id", job.ID)
			if failErr := job.Fail("enqueue failed: " + pubErr.Error()); failErr == nil {
				_ = s.jobRepo.SetResult(ctx, job)
			}
			results[i].Err = apperrors.Wrap(pubErr, apperrors.CodeQueueError, "enqueue analysis job")
			continue
		}
		metrics.AnalysisJobsTotal.WithLabelValues(string(job.Method), "submitted").Inc()
	}
	return results, nil
}

func (s *Service) resolveMethods(requested []string) ([]entity.AnalysisMethod, error) {
	raw := requested
	if len(raw) == 0 {
		raw = s.cfg.DefaultMethods
	}
	if len(raw) == 0 {
		raw = []string{string(entity.MethodIndirect)}
	}

	methods := make([]entity.AnalysisMethod, 0, len(raw))
	seen := make(map[entity.AnalysisMethod]bool, len(raw))
	for _, r := range raw {
		m, err := entity.ParseMethod(strings.TrimSpace(r))
		if err != nil {
			return nil, apperrors.New(apperrors.CodeValidationFailed, err.Error())
		}
		if seen[m] {
			continue
		}
		seen[m] = true
		methods = append(methods, m)
	}
	return methods, nil
}
