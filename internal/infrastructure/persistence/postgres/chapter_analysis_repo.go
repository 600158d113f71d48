package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storybible-api/internal/domain/entity"
)

// ChapterAnalysisRepository is the PostgreSQL extraction cache.
type ChapterAnalysisRepository struct {
	client *Client
}

func NewChapterAnalysisRepository(client *Client) *ChapterAnalysisRepository {
	return &ChapterAnalysisRepository{client: client}
}

// Create inserts an extraction. Cached rows are immutable, so a
// conflicting insert from a concurrent run is dropped rather than
// updated.
func (r *ChapterAnalysisRepository) Create(ctx context.Context, analysis *entity.ChapterAnalysis) error {
	ctx, span := tracer.Start(ctx, "postgres.ChapterAnalysisRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "chapter_id"},
			{Name: "prompt_version"},
			{Name: "model_name"},
		},
		DoNothing: true,
	}).Create(analysis).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create chapter analysis: %w", err)
	}
	return nil
}

func (r *ChapterAnalysisRepository) Get(ctx context.Context, chapterID, promptVersion, modelName string) (*entity.ChapterAnalysis, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterAnalysisRepository.Get")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var analysis entity.ChapterAnalysis
	err := db.First(&analysis,
		"chapter_id = ? AND prompt_version = ? AND model_name = ?",
		chapterID, promptVersion, modelName,
	).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get chapter analysis: %w", err)
	}
	return &analysis, nil
}

func (r *ChapterAnalysisRepository) GetBatch(ctx context.Context, chapterIDs []string, promptVersion, modelName string) (map[string]*entity.ChapterAnalysis, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterAnalysisRepository.GetBatch")
	defer span.End()

	result := make(map[string]*entity.ChapterAnalysis, len(chapterIDs))
	if len(chapterIDs) == 0 {
		return result, nil
	}

	db := getDB(ctx, r.client.db)
	var analyses []*entity.ChapterAnalysis
	err := db.Where(
		"chapter_id IN ? AND prompt_version = ? AND model_name = ?",
		chapterIDs, promptVersion, modelName,
	).Find(&analyses).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get chapter analyses: %w", err)
	}

	for _, a := range analyses {
		result[a.ChapterID] = a
	}
	return result, nil
}

func (r *ChapterAnalysisRepository) DeleteByChapters(ctx context.Context, chapterIDs []string) error {
	ctx, span := tracer.Start(ctx, "postgres.ChapterAnalysisRepository.DeleteByChapters")
	defer span.End()

	if len(chapterIDs) == 0 {
		return nil
	}

	db := getDB(ctx, r.client.db)
	if err := db.Delete(&entity.ChapterAnalysis{}, "chapter_id IN ?", chapterIDs).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete chapter analyses: %w", err)
	}
	return nil
}
