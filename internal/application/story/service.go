// Package story implements the story and chapter use cases.
package story

import (
	"context"
	"strings"

	"storybible-api/internal/domain/entity"
	"storybible-api/internal/domain/repository"
	apperrors "storybible-api/pkg/errors"
	"storybible-api/pkg/logger"
)

// CacheInvalidator drops cached reads for a story after a write.
type CacheInvalidator interface {
	InvalidateStory(ctx context.Context, storyID string) error
}

// ChapterInput is one chapter in a create or replace request.
type ChapterInput struct {
	Number  int
	Title   string
	Content string
}

// CreateRequest carries a new story with its chapters.
type CreateRequest struct {
	Title    string
	Author   string
	Synopsis string
	Chapters []ChapterInput
}

// UpdateRequest replaces story fields and, when Chapters is non-nil,
// the full chapter set.
type UpdateRequest struct {
	Title    *string
	Author   *string
	Synopsis *string
	Chapters []ChapterInput
}

// Service is the story application service.
type Service struct {
	storyRepo    repository.StoryRepository
	chapterRepo  repository.ChapterRepository
	jobRepo      repository.JobRepository
	analysisRepo repository.ChapterAnalysisRepository
	tx           repository.Transactor
	invalidator  CacheInvalidator
}

func NewService(
	storyRepo repository.StoryRepository,
	chapterRepo repository.ChapterRepository,
	jobRepo repository.JobRepository,
	analysisRepo repository.ChapterAnalysisRepository,
	tx repository.Transactor,
	invalidator CacheInvalidator,
) *Service {
	return &Service{
		storyRepo:    storyRepo,
		chapterRepo:  chapterRepo,
		jobRepo:      jobRepo,
		analysisRepo: analysisRepo,
		tx:           tx,
		invalidator:  invalidator,
	}
}

// Create persists a story and its chapters in one transaction.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*entity.Story, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, apperrors.New(apperrors.CodeValidationFailed, "story name is required")
	}
	chapters, err := buildChapters(req.Chapters)
	if err != nil {
		return nil, err
	}

	story := entity.NewStory(strings.TrimSpace(req.Title), strings.TrimSpace(req.Author), req.Synopsis)
	story.Chapters = chapters
	if err := s.storyRepo.Create(ctx, story); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "create story")
	}
	return story, nil
}

// Get returns a story with its chapters.
func (s *Service) Get(ctx context.Context, id string) (*entity.Story, error) {
	story, err := s.storyRepo.GetWithChapters(ctx, id)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "load story")
	}
	if story == nil {
		return nil, apperrors.ErrStoryNotFound
	}
	return story, nil
}

// List returns a page of stories without chapter bodies.
func (s *Service) List(ctx context.Context, pagination repository.Pagination) (*repository.PagedResult[*entity.Story], error) {
	result, err := s.storyRepo.List(ctx, pagination)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "list stories")
	}
	return result, nil
}

// Update applies story field changes and, when chapters are given,
// replaces the entire chapter set. Replacement drops the old chapters'
// cached extractions with them: new chapter rows mean new IDs, so
// stale cache entries can never leak into a later analysis.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*entity.Story, error) {
	story, err := s.storyRepo.GetWithChapters(ctx, id)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "load story")
	}
	if story == nil {
		return nil, apperrors.ErrStoryNotFound
	}

	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			return nil, apperrors.New(apperrors.CodeValidationFailed, "story name cannot be empty")
		}
		story.Title = strings.TrimSpace(*req.Title)
	}
	if req.Author != nil {
		story.Author = strings.TrimSpace(*req.Author)
	}
	if req.Synopsis != nil {
		story.Synopsis = *req.Synopsis
	}

	var newChapters []*entity.Chapter
	if req.Chapters != nil {
		newChapters, err = buildChapters(req.Chapters)
		if err != nil {
			return nil, err
		}
		for _, ch := range newChapters {
			ch.StoryID = story.ID
		}
	}

	err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.storyRepo.Update(txCtx, story); err != nil {
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "update story")
		}
		if req.Chapters == nil {
			return nil
		}

		oldIDs := make([]string, len(story.Chapters))
		for i, ch := range story.Chapters {
			oldIDs[i] = ch.ID
		}
		if len(oldIDs) > 0 {
			if err := s.analysisRepo.DeleteByChapters(txCtx, oldIDs); err != nil {
				return apperrors.Wrap(err, apperrors.CodeDatabaseError, "drop cached extractions")
			}
		}
		if err := s.chapterRepo.DeleteByStory(txCtx, story.ID); err != nil {
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "delete chapters")
		}
		if len(newChapters) > 0 {
			if err := s.chapterRepo.CreateBatch(txCtx, newChapters); err != nil {
				return apperrors.Wrap(err, apperrors.CodeDatabaseError, "create chapters")
			}
		}
		story.Chapters = newChapters
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, story.ID)
	return story, nil
}

// Delete removes a story with everything hanging off it: chapters,
// cached extractions, and jobs.
func (s *Service) Delete(ctx context.Context, id string) error {
	story, err := s.storyRepo.GetByID(ctx, id)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "load story")
	}
	if story == nil {
		return apperrors.ErrStoryNotFound
	}

	err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		chapters, err := s.chapterRepo.ListByStory(txCtx, id)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "load chapters")
		}
		if len(chapters) > 0 {
			ids := make([]string, len(chapters))
			for i, ch := range chapters {
				ids[i] = ch.ID
			}
			if err := s.analysisRepo.DeleteByChapters(txCtx, ids); err != nil {
				return apperrors.Wrap(err, apperrors.CodeDatabaseError, "drop cached extractions")
			}
		}
		if err := s.jobRepo.DeleteByStory(txCtx, id); err != nil {
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "delete jobs")
		}
		// Chapters go with the story via the FK cascade.
		if err := s.storyRepo.Delete(txCtx, id); err != nil {
			return apperrors.Wrap(err, apperrors.CodeDatabaseError, "delete story")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, id)
	return nil
}

func (s *Service) invalidate(ctx context.Context, storyID string) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.InvalidateStory(ctx, storyID); err != nil {
		logger.Warn(ctx, "cache invalidation failed", "story_id", storyID, "error", err.Error())
	}
}

// buildChapters validates the chapter set: numbers start at 1 with no
// gaps or duplicates, and every chapter has content.
func buildChapters(inputs []ChapterInput) ([]*entity.Chapter, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	seen := make(map[int]bool, len(inputs))
	chapters := make([]*entity.Chapter, 0, len(inputs))
	for _, in := range inputs {
		if in.Number < 1 {
			return nil, apperrors.New(apperrors.CodeValidationFailed, "chapter numbers start at 1")
		}
		if seen[in.Number] {
			return nil, apperrors.New(apperrors.CodeValidationFailed, "duplicate chapter number")
		}
		if strings.TrimSpace(in.Content) == "" {
			return nil, apperrors.New(apperrors.CodeValidationFailed, "chapter content is required")
		}
		seen[in.Number] = true
		chapters = append(chapters, entity.NewChapter("", in.Number, strings.TrimSpace(in.Title), in.Content))
	}
	for n := 1; n <= len(chapters); n++ {
		if !seen[n] {
			return nil, apperrors.New(apperrors.CodeValidationFailed, "chapter numbers must be contiguous from 1")
		}
	}
	return chapters, nil
}
