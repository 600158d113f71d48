package repository

import (
	"context"

	"storybible-api/internal/domain/entity"
)

// ChapterAnalysisRepository is the chapter extraction cache interface.
type ChapterAnalysisRepository interface {
	// Create persists one extraction. Concurrent writers may race on
	// the same key; the unique index resolves the race and Create
	// treats a duplicate as success.
	Create(ctx context.Context, analysis *entity.ChapterAnalysis) error

	// Get returns the cached extraction for the key, or nil when the
	// chapter has not been extracted under this prompt and model.
	Get(ctx context.Context, chapterID, promptVersion, modelName string) (*entity.ChapterAnalysis, error)

	// GetBatch returns cached extractions for the given chapters,
	// keyed by chapter ID. Missing chapters are simply absent from the
	// map.
	GetBatch(ctx context.Context, chapterIDs []string, promptVersion, modelName string) (map[string]*entity.ChapterAnalysis, error)

	// DeleteByChapters removes cached extractions for the chapters.
	DeleteByChapters(ctx context.Context, chapterIDs []string) error
}
