package repository

import (
	"context"

	"storybible-api/internal/domain/entity"
)

// StoryRepository is the story persistence interface.
type StoryRepository interface {
	// Create persists a story together with its chapters.
	Create(ctx context.Context, story *entity.Story) error

	// GetByID returns a story without chapters, or nil when absent.
	GetByID(ctx context.Context, id string) (*entity.Story, error)

	// GetWithChapters returns a story with its chapters ordered by
	// number, or nil when absent.
	GetWithChapters(ctx context.Context, id string) (*entity.Story, error)

	// Update persists story-level fields only.
	Update(ctx context.Context, story *entity.Story) error

	// Delete removes a story. Chapters, cached chapter analyses and
	// analysis jobs of the story go with it.
	Delete(ctx context.Context, id string) error

	// List returns a page of stories ordered by creation time, newest
	// first.
	List(ctx context.Context, pagination Pagination) (*PagedResult[*entity.Story], error)
}
