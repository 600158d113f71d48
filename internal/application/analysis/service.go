// Package analysis coordinates story bible analysis jobs: submission,
// the worker-side pipeline, and result retrieval.
package analysis

import (
	"context"

	"storybible-api/internal/config"
	"storybible-api/internal/domain/repository"
	"storybible-api/internal/infrastructure/messaging"
	"storybible-api/internal/workflow/chain"
	wfmodel "storybible-api/internal/workflow/model"
)

// JobPublisher pushes analysis job messages onto the queue.
type JobPublisher interface {
	PublishAnalysisJob(ctx context.Context, job *messaging.AnalysisJobMessage) (string, error)
}

// ExtractRunner runs the per-chapter extraction workflow.
type ExtractRunner interface {
	Invoke(ctx context.Context, in *wfmodel.ChapterExtractInput) (*chain.ChapterExtractOutput, error)
}

// SynthesizeRunner merges chapter extractions into the master document.
type SynthesizeRunner interface {
	Invoke(ctx context.Context, in *wfmodel.BibleSynthesizeInput) (*chain.BibleSynthesizeOutput, error)
}

// DirectRunner produces the master document in a single pass.
type DirectRunner interface {
	Invoke(ctx context.Context, in *wfmodel.DirectAnalyzeInput) (*chain.DirectAnalyzeOutput, error)
}

// Service is the analysis application service.
type Service struct {
	storyRepo    repository.StoryRepository
	chapterRepo  repository.ChapterRepository
	jobRepo      repository.JobRepository
	analysisRepo repository.ChapterAnalysisRepository
	tx           repository.Transactor
	publisher    JobPublisher

	extract    ExtractRunner
	synthesize SynthesizeRunner
	direct     DirectRunner

	provider  string
	modelName string
	cfg       config.AnalysisConfig
}

// NewService wires the analysis service. provider and modelName name
// the chat model the pipeline will use; modelName is part of the
// extraction cache key.
func NewService(
	storyRepo repository.StoryRepository,
	chapterRepo repository.ChapterRepository,
	jobRepo repository.JobRepository,
	analysisRepo repository.ChapterAnalysisRepository,
	tx repository.Transactor,
	publisher JobPublisher,
	extract ExtractRunner,
	synthesize SynthesizeRunner,
	direct DirectRunner,
	provider string,
	modelName string,
	cfg config.AnalysisConfig,
) *Service {
	return &Service{
		storyRepo:    storyRepo,
		chapterRepo:  chapterRepo,
		jobRepo:      jobRepo,
		analysisRepo: analysisRepo,
		tx:           tx,
		publisher:    publisher,
		extract:      extract,
		synthesize:   synthesize,
		direct:       direct,
		provider:     provider,
		modelName:    modelName,
		cfg:          cfg,
	}
}
