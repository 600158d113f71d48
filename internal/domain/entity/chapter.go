package entity

import (
	"strings"
	"time"
)

// Chapter is one chapter of a story. Number is 1-based and unique
// within a story.
type Chapter struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	StoryID   string    `json:"story_id" gorm:"type:uuid;not null;uniqueIndex:idx_chapters_story_number,priority:1"`
	Number    int       `json:"number" gorm:"not null;uniqueIndex:idx_chapters_story_number,priority:2"`
	Title     string    `json:"title,omitempty" gorm:"type:varchar(255)"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	WordCount int       `json:"word_count" gorm:"default:0"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Chapter) TableName() string {
	return "chapters"
}

// NewChapter creates a chapter for a story.
func NewChapter(storyID string, number int, title, content string) *Chapter {
	now := time.Now()
	return &Chapter{
		StoryID:   storyID,
		Number:    number,
		Title:     title,
		Content:   content,
		WordCount: len(strings.Fields(content)),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetContent replaces the chapter text and recounts words.
func (c *Chapter) SetContent(content string) {
	c.Content = content
	c.WordCount = len(strings.Fields(content))
	c.UpdatedAt = time.Now()
}
