package dto

import (
	"encoding/json"
	"time"

	"storybible-api/internal/application/analysis"
	"storybible-api/internal/domain/entity"
	"storybible-api/internal/domain/repository"
)

// AnalyzeRequest submits a story for analysis.
type AnalyzeRequest struct {
	StoryID           string   `json:"story_id" binding:"required"`
	LastChapterNumber int      `json:"last_chapter_number" binding:"required,min=1"`
	Methods           []string `json:"methods"`
	// Provider and Model override the configured chat model.
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// JobResponse is an analysis job on the wire. Result carries the
// master document verbatim once the job completes.
type JobResponse struct {
	ID                string          `json:"id"`
	StoryID           string          `json:"story_id"`
	LastChapterNumber int             `json:"last_chapter_number"`
	Method            string          `json:"method"`
	Status            string          `json:"status"`
	Result            json.RawMessage `json:"master_document,omitempty"`
	ErrorMessage      string          `json:"error_message,omitempty"`
	Provider          string          `json:"provider,omitempty"`
	ModelName         string          `json:"model_name,omitempty"`
	PromptVersion     string          `json:"prompt_version,omitempty"`
	TokensPrompt      int             `json:"tokens_prompt,omitempty"`
	TokensCompletion  int             `json:"tokens_completion,omitempty"`
	DurationMs        int             `json:"duration_ms,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	StartedAt         *time.Time      `json:"started_at,omitempty"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
}

// SubmissionResult is the per-method outcome of an analyze call.
type SubmissionResult struct {
	Method string       `json:"method"`
	Job    *JobResponse `json:"job,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// AnalyzeResponse is the 202 payload: one result per requested method.
type AnalyzeResponse struct {
	Results []SubmissionResult `json:"results"`
}

// ChapterAnalysisResponse is one cached chapter extraction.
type ChapterAnalysisResponse struct {
	ChapterID     string          `json:"chapter_id"`
	ChapterNumber int             `json:"chapter_number"`
	PromptVersion string          `json:"prompt_version"`
	ModelName     string          `json:"model_name"`
	Extraction    json.RawMessage `json:"extraction"`
	CreatedAt     time.Time       `json:"created_at"`
}

// JobDataResponse nests the job with the chapter extractions that fed
// it, in chapter order.
type JobDataResponse struct {
	Job             *JobResponse               `json:"job"`
	Status          string                     `json:"status"`
	ChapterAnalyses []*ChapterAnalysisResponse `json:"chapter_analyses"`
}

// JobListResponse is a page of jobs.
type JobListResponse struct {
	Jobs []*JobResponse `json:"jobs"`
}

// JobStatsResponse summarizes a story's jobs by status.
type JobStatsResponse struct {
	Total      int64 `json:"total"`
	Pending    int64 `json:"pending"`
	InProgress int64 `json:"in_progress"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
}

func ToJobResponse(j *entity.AnalysisJob) *JobResponse {
	if j == nil {
		return nil
	}
	return &JobResponse{
		ID:                j.ID,
		StoryID:           j.StoryID,
		LastChapterNumber: j.LastChapterNumber,
		Method:            string(j.Method),
		Status:            string(j.Status),
		Result:            j.Result,
		ErrorMessage:      j.ErrorMessage,
		Provider:          j.Provider,
		ModelName:         j.ModelName,
		PromptVersion:     j.PromptVersion,
		TokensPrompt:      j.TokensPrompt,
		TokensCompletion:  j.TokensCompletion,
		DurationMs:        j.DurationMs,
		CreatedAt:         j.CreatedAt,
		StartedAt:         j.StartedAt,
		CompletedAt:       j.CompletedAt,
	}
}

func ToJobStatsResponse(stats *repository.JobStats) *JobStatsResponse {
	if stats == nil {
		return &JobStatsResponse{}
	}
	return &JobStatsResponse{
		Total:      stats.TotalJobs,
		Pending:    stats.PendingJobs,
		InProgress: stats.InProgressJobs,
		Completed:  stats.CompletedJobs,
		Failed:     stats.FailedJobs,
	}
}

func ToJobListResponse(jobs []*entity.AnalysisJob) *JobListResponse {
	resp := &JobListResponse{Jobs: make([]*JobResponse, 0, len(jobs))}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, ToJobResponse(j))
	}
	return resp
}

func ToJobDataResponse(data *analysis.JobData) *JobDataResponse {
	if data == nil || data.Job == nil {
		return nil
	}
	resp := &JobDataResponse{
		Job:             ToJobResponse(data.Job),
		Status:          string(data.Job.Status),
		ChapterAnalyses: make([]*ChapterAnalysisResponse, 0, len(data.ChapterAnalyses)),
	}
	for _, row := range data.ChapterAnalyses {
		resp.ChapterAnalyses = append(resp.ChapterAnalyses, &ChapterAnalysisResponse{
			ChapterID:     row.ChapterID,
			ChapterNumber: data.ChapterNumberFor[row.ChapterID],
			PromptVersion: row.PromptVersion,
			ModelName:     row.ModelName,
			Extraction:    row.Extraction,
			CreatedAt:     row.CreatedAt,
		})
	}
	return resp
}
