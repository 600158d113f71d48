// Package entity defines the domain entities.
package entity

import (
	"time"
)

// Story is a work of fiction whose chapters get analyzed into a story
// bible.
type Story struct {
	ID        string     `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Title     string     `json:"title" gorm:"type:varchar(255);not null"`
	Author    string     `json:"author,omitempty" gorm:"type:varchar(255)"`
	Synopsis  string     `json:"synopsis,omitempty" gorm:"type:text"`
	Chapters  []*Chapter `json:"chapters,omitempty" gorm:"foreignKey:StoryID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Story) TableName() string {
	return "stories"
}

// NewStory creates a story without chapters.
func NewStory(title, author, synopsis string) *Story {
	now := time.Now()
	return &Story{
		Title:     title,
		Author:    author,
		Synopsis:  synopsis,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
