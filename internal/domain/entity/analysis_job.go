package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

// AnalysisMethod selects how the story bible is produced.
type AnalysisMethod string

const (
	// MethodDirect sends the full story text in a single pass.
	MethodDirect AnalysisMethod = "direct"
	// MethodIndirect extracts each chapter separately, then synthesizes
	// the extractions into one document.
	MethodIndirect AnalysisMethod = "indirect"
)

// JobStatus is the lifecycle state of an analysis job. The values are
// part of the API contract and appear verbatim in responses.
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusInProgress JobStatus = "IN_PROGRESS"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// IsTerminal reports whether the status admits no further transitions.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// AnalysisJob tracks one asynchronous story bible analysis run.
type AnalysisJob struct {
	ID                string          `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	StoryID           string          `json:"story_id" gorm:"type:uuid;index;not null"`
	LastChapterNumber int             `json:"last_chapter_number" gorm:"not null"`
	Method            AnalysisMethod  `json:"method" gorm:"type:varchar(20);not null"`
	Status            JobStatus       `json:"status" gorm:"type:varchar(20);not null;default:'PENDING'"`
	Result            json.RawMessage `json:"result,omitempty" gorm:"type:jsonb"`
	ErrorMessage      string          `json:"error_message,omitempty" gorm:"type:text"`
	Provider          string          `json:"provider,omitempty" gorm:"type:varchar(64)"`
	ModelName         string          `json:"model_name,omitempty" gorm:"type:varchar(128)"`
	PromptVersion     string          `json:"prompt_version,omitempty" gorm:"type:varchar(64)"`
	TokensPrompt      int             `json:"tokens_prompt,omitempty"`
	TokensCompletion  int             `json:"tokens_completion,omitempty"`
	DurationMs        int             `json:"duration_ms,omitempty"`
	CreatedAt         time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt         time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
	StartedAt         *time.Time      `json:"started_at,omitempty"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
}

func (AnalysisJob) TableName() string {
	return "analysis_jobs"
}

// NewAnalysisJob creates a pending job.
func NewAnalysisJob(storyID string, lastChapterNumber int, method AnalysisMethod) *AnalysisJob {
	return &AnalysisJob{
		StoryID:           storyID,
		LastChapterNumber: lastChapterNumber,
		Method:            method,
		Status:            JobStatusPending,
		CreatedAt:         time.Now(),
	}
}

// Start marks the job in progress. Status only moves forward: starting
// a job that already left PENDING is rejected.
func (j *AnalysisJob) Start() error {
	if j.Status != JobStatusPending {
		return fmt.Errorf("cannot start job in status %s", j.Status)
	}
	now := time.Now()
	j.Status = JobStatusInProgress
	j.StartedAt = &now
	return nil
}

// Complete stores the result and marks the job completed.
func (j *AnalysisJob) Complete(result json.RawMessage) error {
	if j.Status != JobStatusInProgress {
		return fmt.Errorf("cannot complete job in status %s", j.Status)
	}
	now := time.Now()
	j.Status = JobStatusCompleted
	j.Result = result
	j.CompletedAt = &now
	if j.StartedAt != nil {
		j.DurationMs = int(now.Sub(*j.StartedAt).Milliseconds())
	}
	return nil
}

// Fail records the error and marks the job failed. A pending job may
// fail directly when it cannot even start.
func (j *AnalysisJob) Fail(errMsg string) error {
	if j.Status.IsTerminal() {
		return fmt.Errorf("cannot fail job in status %s", j.Status)
	}
	now := time.Now()
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.CompletedAt = &now
	if j.StartedAt != nil {
		j.DurationMs = int(now.Sub(*j.StartedAt).Milliseconds())
	}
	return nil
}

// SetLLMMetrics records token usage for the run.
func (j *AnalysisJob) SetLLMMetrics(model string, promptTokens, completionTokens int) {
	j.ModelName = model
	j.TokensPrompt = promptTokens
	j.TokensCompletion = completionTokens
}

// ParseMethod validates a method string from the API.
func ParseMethod(s string) (AnalysisMethod, error) {
	switch AnalysisMethod(s) {
	case MethodDirect:
		return MethodDirect, nil
	case MethodIndirect:
		return MethodIndirect, nil
	default:
		return "", fmt.Errorf("unknown analysis method %q", s)
	}
}
