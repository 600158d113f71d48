package entity

import (
	"encoding/json"
	"time"
)

// ChapterAnalysis is the cached extraction result for one chapter. A
// row is immutable once written: chapter content never changes without
// the chapter being recreated under a new ID, so (chapter_id,
// prompt_version, model_name) fully determines the extraction.
type ChapterAnalysis struct {
	ID               string          `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ChapterID        string          `json:"chapter_id" gorm:"type:uuid;not null;uniqueIndex:idx_chapter_analyses_key,priority:1"`
	PromptVersion    string          `json:"prompt_version" gorm:"type:varchar(64);not null;uniqueIndex:idx_chapter_analyses_key,priority:2"`
	ModelName        string          `json:"model_name" gorm:"type:varchar(128);not null;uniqueIndex:idx_chapter_analyses_key,priority:3"`
	Extraction       json.RawMessage `json:"extraction" gorm:"type:jsonb;not null"`
	TokensPrompt     int             `json:"tokens_prompt,omitempty"`
	TokensCompletion int             `json:"tokens_completion,omitempty"`
	CreatedAt        time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

func (ChapterAnalysis) TableName() string {
	return "chapter_analyses"
}

// NewChapterAnalysis creates a cache row for a chapter extraction.
func NewChapterAnalysis(chapterID, promptVersion, modelName string, extraction json.RawMessage) *ChapterAnalysis {
	return &ChapterAnalysis{
		ChapterID:     chapterID,
		PromptVersion: promptVersion,
		ModelName:     modelName,
		Extraction:    extraction,
		CreatedAt:     time.Now(),
	}
}
