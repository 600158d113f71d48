// Package model defines the structured shapes exchanged with the LLM.
package model

import "time"

// LLMUsageMeta carries token accounting for one model call.
type LLMUsageMeta struct {
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	GeneratedAt      time.Time
}

// Add accumulates usage from another call.
func (m *LLMUsageMeta) Add(other LLMUsageMeta) {
	m.PromptTokens += other.PromptTokens
	m.CompletionTokens += other.CompletionTokens
	if m.Provider == "" {
		m.Provider = other.Provider
	}
	if m.Model == "" {
		m.Model = other.Model
	}
}
