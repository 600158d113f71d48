package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"storybible-api/internal/domain/entity"
)

// ChapterRepository is the PostgreSQL chapter repository.
type ChapterRepository struct {
	client *Client
}

func NewChapterRepository(client *Client) *ChapterRepository {
	return &ChapterRepository{client: client}
}

func (r *ChapterRepository) CreateBatch(ctx context.Context, chapters []*entity.Chapter) error {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.CreateBatch")
	defer span.End()

	if len(chapters) == 0 {
		return nil
	}

	db := getDB(ctx, r.client.db)
	if err := db.CreateInBatches(chapters, 100).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create chapters: %w", err)
	}
	return nil
}

func (r *ChapterRepository) GetByID(ctx context.Context, id string) (*entity.Chapter, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var chapter entity.Chapter
	if err := db.First(&chapter, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get chapter: %w", err)
	}
	return &chapter, nil
}

func (r *ChapterRepository) ListByStory(ctx context.Context, storyID string) ([]*entity.Chapter, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.ListByStory")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var chapters []*entity.Chapter
	if err := db.Where("story_id = ?", storyID).
		Order("number ASC").
		Find(&chapters).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list chapters: %w", err)
	}
	return chapters, nil
}

func (r *ChapterRepository) ListByStoryUpTo(ctx context.Context, storyID string, last int) ([]*entity.Chapter, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.ListByStoryUpTo")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var chapters []*entity.Chapter
	if err := db.Where("story_id = ? AND number <= ?", storyID, last).
		Order("number ASC").
		Find(&chapters).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list chapters up to %d: %w", last, err)
	}
	return chapters, nil
}

func (r *ChapterRepository) MaxNumber(ctx context.Context, storyID string) (int, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.MaxNumber")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var max *int
	err := db.Model(&entity.Chapter{}).
		Where("story_id = ?", storyID).
		Select("MAX(number)").
		Scan(&max).Error
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to get max chapter number: %w", err)
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

func (r *ChapterRepository) DeleteByStory(ctx context.Context, storyID string) error {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.DeleteByStory")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Delete(&entity.Chapter{}, "story_id = ?", storyID).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete chapters: %w", err)
	}
	return nil
}
