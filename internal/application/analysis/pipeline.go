package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"storybible-api/internal/domain/entity"
	"storybible-api/internal/infrastructure/messaging"
	wfmodel "storybible-api/internal/workflow/model"
	apperrors "storybible-api/pkg/errors"
	"storybible-api/pkg/logger"
	"storybible-api/pkg/metrics"
)

// Run executes one analysis job end to end. It is the consumer handler
// body: returning an error requeues the message, returning nil acks it.
// A job whose status already left PENDING is treated as a redelivery
// and acked without work.
func (s *Service) Run(ctx context.Context, payload *messaging.AnalysisJobMessage) error {
	job, err := s.jobRepo.GetByID(ctx, payload.JobID)
	if err != nil {
		return err
	}
	if job == nil {
		// Deleted between enqueue and dequeue; nothing to do.
		logger.Warn(ctx, "skipping message for missing job", "job_id", payload.JobID)
		return nil
	}

	started, err := s.jobRepo.MarkRunning(ctx, job.ID)
	if err != nil {
		return err
	}
	if !started {
		logger.Warn(ctx, "skipping redelivered job", "job_id", job.ID, "status", string(job.Status))
		return nil
	}
	// Mirror the database transition so Complete/Fail are legal below.
	if err := job.Start(); err != nil {
		return err
	}

	story, err := s.storyRepo.GetByID(ctx, job.StoryID)
	if err != nil {
		return s.fail(ctx, job, apperrors.Wrap(err, apperrors.CodeDatabaseError, "load story"))
	}
	if story == nil {
		return s.fail(ctx, job, apperrors.New(apperrors.CodeStoryNotFound, "story deleted while job was queued"))
	}

	begin := time.Now()
	var (
		doc   *wfmodel.MasterStoryDocument
		usage wfmodel.LLMUsageMeta
	)
	switch job.Method {
	case entity.MethodIndirect:
		doc, usage, err = s.runIndirect(ctx, job, story)
	case entity.MethodDirect:
		doc, usage, err = s.runDirect(ctx, job, story)
	default:
		err = fmt.Errorf("unknown analysis method %q", job.Method)
	}
	if err != nil {
		return s.fail(ctx, job, err)
	}

	checkDocument(ctx, job, doc)

	result, err := json.Marshal(doc)
	if err != nil {
		return s.fail(ctx, job, apperrors.Wrap(err, apperrors.CodeInternalError, "encode master document"))
	}

	_, modelName, _ := s.modelFor(job)
	job.SetLLMMetrics(modelName, usage.PromptTokens, usage.CompletionTokens)
	if err := job.Complete(result); err != nil {
		return err
	}
	if err := s.jobRepo.SetResult(ctx, job); err != nil {
		return err
	}

	metrics.AnalysisJobsTotal.WithLabelValues(string(job.Method), "completed").Inc()
	metrics.AnalysisJobDuration.WithLabelValues(string(job.Method)).Observe(time.Since(begin).Seconds())
	logger.Info(ctx, "analysis job completed",
		"job_id", job.ID,
		"method", string(job.Method),
		"chapters", job.LastChapterNumber,
		"duration_ms", job.DurationMs,
	)
	return nil
}

// fail records the terminal failure and acks the message. The retry
// budget belongs to infrastructure errors before MarkRunning; once a
// job is running, a pipeline error is final.
func (s *Service) fail(ctx context.Context, job *entity.AnalysisJob, cause error) error {
	var parseErr *wfmodel.ParseError
	if errors.As(cause, &parseErr) {
		if path, dumpErr := s.dumpRawOutput(job.ID, parseErr.Workflow, parseErr.Raw); dumpErr != nil {
			logger.Error(ctx, "dump raw model output failed", dumpErr, "job_id", job.ID)
		} else {
			logger.Warn(ctx, "raw model output dumped", "job_id", job.ID, "path", path)
		}
	}

	if err := job.Fail(cause.Error()); err != nil {
		logger.Error(ctx, "job already terminal", err, "job_id", job.ID)
		return nil
	}
	if err := s.jobRepo.SetResult(ctx, job); err != nil {
		return err
	}
	metrics.AnalysisJobsTotal.WithLabelValues(string(job.Method), "failed").Inc()
	logger.Error(ctx, "analysis job failed", cause, "job_id", job.ID, "method", string(job.Method))
	return nil
}

// runIndirect extracts every chapter, serving repeats from the
// extraction cache, then synthesizes the ordered extractions into one
// document. Extractions run concurrently but the synthesis input is
// always in chapter order.
func (s *Service) runIndirect(ctx context.Context, job *entity.AnalysisJob, story *entity.Story) (*wfmodel.MasterStoryDocument, wfmodel.LLMUsageMeta, error) {
	provider, modelName, promptVersion := s.modelFor(job)
	var total wfmodel.LLMUsageMeta
	total.Provider = provider
	total.Model = modelName

	chapters, err := s.chapterRepo.ListByStoryUpTo(ctx, job.StoryID, job.LastChapterNumber)
	if err != nil {
		return nil, total, apperrors.Wrap(err, apperrors.CodeDatabaseError, "load chapters")
	}
	if len(chapters) == 0 {
		return nil, total, apperrors.New(apperrors.CodeValidationFailed, "no chapters in requested range")
	}

	chapterIDs := make([]string, len(chapters))
	for i, ch := range chapters {
		chapterIDs[i] = ch.ID
	}
	cached, err := s.analysisRepo.GetBatch(ctx, chapterIDs, promptVersion, modelName)
	if err != nil {
		return nil, total, apperrors.Wrap(err, apperrors.CodeDatabaseError, "load extraction cache")
	}

	// All cached rows are decoded before the first goroutine starts, so
	// a corrupt row never bails out with extractions still in flight.
	extractions := make([]wfmodel.ChapterExtraction, len(chapters))
	fromCache := make([]bool, len(chapters))
	for i, ch := range chapters {
		row, ok := cached[ch.ID]
		if !ok {
			continue
		}
		if err := json.Unmarshal(row.Extraction, &extractions[i]); err != nil {
			return nil, total, apperrors.Wrap(err, apperrors.CodeCacheError, "decode cached extraction")
		}
		fromCache[i] = true
		metrics.ChapterExtractionsTotal.WithLabelValues("cache").Inc()
	}

	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.ExtractConcurrency)
	for i, ch := range chapters {
		if fromCache[i] {
			continue
		}

		g.Go(func() error {
			out, err := s.extract.Invoke(gctx, &wfmodel.ChapterExtractInput{
				Provider:       provider,
				Model:          modelName,
				PromptVersion:  promptVersion,
				StoryTitle:     story.Title,
				ChapterNumber:  ch.Number,
				ChapterTitle:   ch.Title,
				ChapterContent: ch.Content,
			})
			if err != nil {
				return err
			}
			metrics.ChapterExtractionsTotal.WithLabelValues("model").Inc()

			extractionJSON, err := json.Marshal(out.Extraction)
			if err != nil {
				return fmt.Errorf("encode extraction: %w", err)
			}
			row := entity.NewChapterAnalysis(ch.ID, promptVersion, modelName, extractionJSON)
			row.TokensPrompt = out.Usage.PromptTokens
			row.TokensCompletion = out.Usage.CompletionTokens
			if err := s.analysisRepo.Create(gctx, row); err != nil {
				// The extraction itself succeeded; losing the cache row
				// only costs a repeat call next run.
				logger.Warn(gctx, "cache extraction failed", "chapter_id", ch.ID, "error", err.Error())
			}

			mu.Lock()
			extractions[i] = out.Extraction
			total.Add(out.Usage)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, total, wrapWorkflowErr(err, apperrors.CodeAnalysisFailed, "chapter extraction")
	}

	synthOut, err := s.synthesize.Invoke(ctx, &wfmodel.BibleSynthesizeInput{
		Provider:      provider,
		Model:         modelName,
		PromptVersion: promptVersion,
		StoryTitle:    story.Title,
		Extractions:   extractions,
	})
	if err != nil {
		return nil, total, wrapWorkflowErr(err, apperrors.CodeSynthesisFailed, "bible synthesis")
	}
	total.Add(synthOut.Usage)
	return &synthOut.Document, total, nil
}

// runDirect concatenates the chapter text and asks for the document in
// one call.
func (s *Service) runDirect(ctx context.Context, job *entity.AnalysisJob, story *entity.Story) (*wfmodel.MasterStoryDocument, wfmodel.LLMUsageMeta, error) {
	provider, modelName, promptVersion := s.modelFor(job)
	var total wfmodel.LLMUsageMeta
	total.Provider = provider
	total.Model = modelName

	chapters, err := s.chapterRepo.ListByStoryUpTo(ctx, job.StoryID, job.LastChapterNumber)
	if err != nil {
		return nil, total, apperrors.Wrap(err, apperrors.CodeDatabaseError, "load chapters")
	}
	if len(chapters) == 0 {
		return nil, total, apperrors.New(apperrors.CodeValidationFailed, "no chapters in requested range")
	}

	var sb strings.Builder
	for _, ch := range chapters {
		fmt.Fprintf(&sb, "=== Chapter %d: %s ===\n\n", ch.Number, ch.Title)
		sb.WriteString(ch.Content)
		sb.WriteString("\n\n")
	}

	out, err := s.direct.Invoke(ctx, &wfmodel.DirectAnalyzeInput{
		Provider:          provider,
		Model:             modelName,
		PromptVersion:     promptVersion,
		StoryTitle:        story.Title,
		LastChapterNumber: chapters[len(chapters)-1].Number,
		ChaptersText:      sb.String(),
	})
	if err != nil {
		return nil, total, wrapWorkflowErr(err, apperrors.CodeAnalysisFailed, "direct analysis")
	}
	total.Add(out.Usage)
	if out.Document.ChaptersAnalyzed == 0 {
		out.Document.ChaptersAnalyzed = len(chapters)
	}
	return &out.Document, total, nil
}

// modelFor resolves the chat model identity for a job. Jobs carry the
// provider, model and prompt version they were submitted with; empty
// fields fall back to the service defaults.
func (s *Service) modelFor(job *entity.AnalysisJob) (provider, modelName, promptVersion string) {
	provider = job.Provider
	if provider == "" {
		provider = s.provider
	}
	modelName = job.ModelName
	if modelName == "" {
		modelName = s.modelName
	}
	promptVersion = job.PromptVersion
	if promptVersion == "" {
		promptVersion = s.cfg.PromptVersion
	}
	return provider, modelName, promptVersion
}

// wrapWorkflowErr keeps ParseError reachable through errors.As while
// attaching the application error code.
func wrapWorkflowErr(err error, code apperrors.ErrorCode, op string) error {
	var parseErr *wfmodel.ParseError
	if errors.As(err, &parseErr) {
		return apperrors.Wrap(err, apperrors.CodeParseFailed, op)
	}
	return apperrors.Wrap(err, code, op)
}
