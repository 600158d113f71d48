package repository

import (
	"context"

	"storybible-api/internal/domain/entity"
)

// ChapterRepository is the chapter persistence interface.
type ChapterRepository interface {
	// CreateBatch persists chapters in one statement.
	CreateBatch(ctx context.Context, chapters []*entity.Chapter) error

	// GetByID returns a chapter, or nil when absent.
	GetByID(ctx context.Context, id string) (*entity.Chapter, error)

	// ListByStory returns the story's chapters ordered by number.
	ListByStory(ctx context.Context, storyID string) ([]*entity.Chapter, error)

	// ListByStoryUpTo returns the story's chapters with number <= last,
	// ordered by number.
	ListByStoryUpTo(ctx context.Context, storyID string, last int) ([]*entity.Chapter, error)

	// MaxNumber returns the highest chapter number in the story, 0 when
	// the story has no chapters.
	MaxNumber(ctx context.Context, storyID string) (int, error)

	// DeleteByStory removes all chapters of a story.
	DeleteByStory(ctx context.Context, storyID string) error
}
