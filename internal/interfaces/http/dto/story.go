package dto

import (
	"time"

	"storybible-api/internal/application/story"
	"storybible-api/internal/domain/entity"
)

// ChapterRequest is one chapter in a create or replace payload.
type ChapterRequest struct {
	Number  int    `json:"number" binding:"required,min=1"`
	Title   string `json:"title"`
	Content string `json:"content" binding:"required"`
}

// CreateStoryRequest creates a story with its chapters. The story
// title travels as "name" on the wire.
type CreateStoryRequest struct {
	Name     string           `json:"name" binding:"required"`
	Author   string           `json:"author"`
	Synopsis string           `json:"synopsis"`
	Chapters []ChapterRequest `json:"chapters"`
}

// PatchStoryRequest updates story fields. A non-nil Chapters array
// replaces the full chapter set; omitting it leaves chapters alone.
type PatchStoryRequest struct {
	Name     *string          `json:"name"`
	Author   *string          `json:"author"`
	Synopsis *string          `json:"synopsis"`
	Chapters []ChapterRequest `json:"chapters"`
}

// ChapterResponse is a chapter on the wire.
type ChapterResponse struct {
	ID        string    `json:"id"`
	Number    int       `json:"number"`
	Title     string    `json:"title,omitempty"`
	Content   string    `json:"content,omitempty"`
	WordCount int       `json:"word_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StoryResponse is a story on the wire.
type StoryResponse struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Author    string             `json:"author,omitempty"`
	Synopsis  string             `json:"synopsis,omitempty"`
	Chapters  []*ChapterResponse `json:"chapters,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// StoryListResponse is a page of stories.
type StoryListResponse struct {
	Stories []*StoryResponse `json:"stories"`
}

func ToChapterResponse(ch *entity.Chapter) *ChapterResponse {
	if ch == nil {
		return nil
	}
	return &ChapterResponse{
		ID:        ch.ID,
		Number:    ch.Number,
		Title:     ch.Title,
		Content:   ch.Content,
		WordCount: ch.WordCount,
		CreatedAt: ch.CreatedAt,
		UpdatedAt: ch.UpdatedAt,
	}
}

func ToStoryResponse(s *entity.Story) *StoryResponse {
	if s == nil {
		return nil
	}
	resp := &StoryResponse{
		ID:        s.ID,
		Name:      s.Title,
		Author:    s.Author,
		Synopsis:  s.Synopsis,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	for _, ch := range s.Chapters {
		resp.Chapters = append(resp.Chapters, ToChapterResponse(ch))
	}
	return resp
}

func ToStoryListResponse(stories []*entity.Story) *StoryListResponse {
	resp := &StoryListResponse{Stories: make([]*StoryResponse, 0, len(stories))}
	for _, s := range stories {
		resp.Stories = append(resp.Stories, ToStoryResponse(s))
	}
	return resp
}

// ToChapterInputs converts wire chapters to the application shape.
func ToChapterInputs(chapters []ChapterRequest) []story.ChapterInput {
	if chapters == nil {
		return nil
	}
	inputs := make([]story.ChapterInput, len(chapters))
	for i, ch := range chapters {
		inputs[i] = story.ChapterInput{
			Number:  ch.Number,
			Title:   ch.Title,
			Content: ch.Content,
		}
	}
	return inputs
}
