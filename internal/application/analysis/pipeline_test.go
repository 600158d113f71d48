package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"storybible-api/internal/config"
	"storybible-api/internal/domain/entity"
	"storybible-api/internal/infrastructure/messaging"
	"storybible-api/internal/workflow/chain"
	wfmodel "storybible-api/internal/workflow/model"
)

// enqueue submits one job for the method and returns the queue payload
// the worker would receive.
func enqueue(t *testing.T, env *testEnv, method string, last int) *messaging.AnalysisJobMessage {
	t.Helper()
	results, err := env.svc.Submit(context.Background(), SubmitRequest{
		StoryID:           "story-1",
		LastChapterNumber: last,
		Methods:           []string{method},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(results) != 1 || results[0].Err != nil {
		t.Fatalf("unexpected submit results %+v", results)
	}
	if len(env.publisher.published) == 0 {
		t.Fatal("no message published")
	}
	return env.publisher.published[len(env.publisher.published)-1]
}

func storedJob(t *testing.T, env *testEnv, id string) *entity.AnalysisJob {
	t.Helper()
	job, err := env.jobRepo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load job: %v", err)
	}
	if job == nil {
		t.Fatalf("job %s missing", id)
	}
	return job
}

func TestRunIndirectCompletesJob(t *testing.T) {
	env := newTestEnv()
	env.addStory("story-1", "The Long Night", 3)
	msg := enqueue(t, env, "indirect", 3)

	if err := env.svc.Run(context.Background(), msg); err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := env.extract.callCount(); got != 3 {
		t.Errorf("extract calls = %d, want 3", got)
	}
	if env.synthesize.calls != 1 {
		t.Errorf("synthesize calls = %d, want 1", env.synthesize.calls)
	}

	job := storedJob(t, env, msg.JobID)
	if job.Status != entity.JobStatusCompleted {
		t.Fatalf("status = %s, want COMPLETED (error: %s)", job.Status, job.ErrorMessage)
	}
	if len(job.Result) == 0 {
		t.Error("completed job has no result")
	}
	var doc wfmodel.MasterStoryDocument
	if err := json.Unmarshal(job.Result, &doc); err != nil {
		t.Fatalf("result is not a master document: %v", err)
	}
	if doc.ChaptersAnalyzed != 3 {
		t.Errorf("chapters analyzed = %d, want 3", doc.ChaptersAnalyzed)
	}
	if job.TokensPrompt == 0 || job.TokensCompletion == 0 {
		t.Error("token usage not recorded")
	}

	// Every chapter extraction was cached for the next run.
	if len(env.cache.rows) != 3 {
		t.Errorf("cached %d extractions, want 3", len(env.cache.rows))
	}
}

func TestRunSynthesisInputOrderedByChapter(t *testing.T) {
	env := newTestEnv()
	env.addStory("story-1", "The Long Night", 3)

	// Later chapters finish first; the synthesis input must still come
	// out in chapter order.
	env.extract.fn = func(in *wfmodel.ChapterExtractInput) (*chain.ChapterExtractOutput, error) {
		time.Sleep(time.Duration(4-in.ChapterNumber) * 20 * time.Millisecond)
		return &chain.ChapterExtractOutput{
			Extraction: wfmodel.ChapterExtraction{ChapterNumber: in.ChapterNumber, Summary: "s"},
		}, nil
	}

	msg := enqueue(t, env, "indirect", 3)
	if err := env.svc.Run(context.Background(), msg); err != nil {
		t.Fatalf("run: %v", err)
	}

	in := env.synthesize.input
	if in == nil {
		t.Fatal("synthesize never called")
	}
	if len(in.Extractions) != 3 {
		t.Fatalf("synthesis input has %d extractions, want 3", len(in.Extractions))
	}
	for i, e := range in.Extractions {
		if e.ChapterNumber != i+1 {
			t.Errorf("extraction[%d].ChapterNumber = %d, want %d", i, e.ChapterNumber, i+1)
		}
	}
}

func TestRunIndirectServesCachedExtractions(t *testing.T) {
	env := newTestEnv()
	env.addStory("story-1", "The Long Night", 3)

	// First run fills the cache.
	first := enqueue(t, env, "indirect", 3)
	if err := env.svc.Run(context.Background(), first); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if got := env.extract.callCount(); got != 3 {
		t.Fatalf("first run extract calls = %d, want 3", got)
	}

	// Second run over the same chapters hits the cache for all of them.
	second := enqueue(t, env, "indirect", 3)
	if err := env.svc.Run(context.Background(), second); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if got := env.extract.callCount(); got != 3 {
		t.Errorf("second run made %d extra model calls", got-3)
	}
	if env.synthesize.calls != 2 {
		t.Errorf("synthesize calls = %d, want 2", env.synthesize.calls)
	}
	if job := storedJob(t, env, second.JobID); job.Status != entity.JobStatusCompleted {
		t.Errorf("second job status = %s, want COMPLETED", job.Status)
	}
}

func TestRunIndirectPartialCacheOnlyCallsMisses(t *testing.T) {
	env := newTestEnv()
	env.addStory("story-1", "The Long Night", 3)

	// First run covers chapters 1..2; extending to chapter 3 should
	// only cost one new model call.
	first := enqueue(t, env, "indirect", 2)
	if err := env.svc.Run(context.Background(), first); err != nil {
		t.Fatalf("first run: %v", err)
	}
	second := enqueue(t, env, "indirect", 3)
	if err := env.svc.Run(context.Background(), second); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if got := env.extract.callCount(); got != 3 {
		t.Errorf("total extract calls = %d, want 3 (2 + 1 miss)", got)
	}
}

func TestRunCorruptCachedExtractionFailsBeforeModelCalls(t *testing.T) {
	env := newTestEnv()
	env.addStory("story-1", "The Long Night", 3)

	// A truncated row for chapter 2; chapters 1 and 3 are cache misses.
	row := entity.NewChapterAnalysis("story-1-ch-2", "v1", "gpt-4o-mini", json.RawMessage(`{"chapter_number":`))
	if err := env.cache.Create(context.Background(), row); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	msg := enqueue(t, env, "indirect", 3)
	if err := env.svc.Run(context.Background(), msg); err != nil {
		t.Fatalf("run: %v", err)
	}

	job := storedJob(t, env, msg.JobID)
	if job.Status != entity.JobStatusFailed {
		t.Fatalf("status = %s, want FAILED", job.Status)
	}
	if !strings.Contains(job.ErrorMessage, "decode cached extraction") {
		t.Errorf("error message = %q, missing decode cause", job.ErrorMessage)
	}
	// The corrupt row surfaces before any chapter is sent to the model,
	// so nothing runs on after the job fails.
	if got := env.extract.callCount(); got != 0 {
		t.Errorf("extract calls = %d, want 0", got)
	}
	if env.synthesize.calls != 0 {
		t.Errorf("synthesize calls = %d, want 0", env.synthesize.calls)
	}
	if got := len(env.cache.rows); got != 1 {
		t.Errorf("cache rows = %d, want only the corrupt seed", got)
	}
}

func TestRunExtractionFailureFailsJob(t *testing.T) {
	env := newTestEnv()
	env.addStory("story-1", "The Long Night", 3)
	env.extract.fn = func(in *wfmodel.ChapterExtractInput) (*chain.ChapterExtractOutput, error) {
		if in.ChapterNumber == 2 {
			return nil, errors.New("model timed out")
		}
		return &chain.ChapterExtractOutput{
			Extraction: wfmodel.ChapterExtraction{ChapterNumber: in.ChapterNumber},
		}, nil
	}

	msg := enqueue(t, env, "indirect", 3)
	if err := env.svc.Run(context.Background(), msg); err != nil {
		t.Fatalf("run should ack failed jobs, got %v", err)
	}

	job := storedJob(t, env, msg.JobID)
	if job.Status != entity.JobStatusFailed {
		t.Fatalf("status = %s, want FAILED", job.Status)
	}
	if !strings.Contains(job.ErrorMessage, "model timed out") {
		t.Errorf("error message %q does not name the cause", job.ErrorMessage)
	}
	if env.synthesize.calls != 0 {
		t.Error("synthesis ran despite extraction failure")
	}
}

func TestRunParseErrorDumpsRawOutput(t *testing.T) {
	dir := t.TempDir()
	env := newTestEnvWith(config.AnalysisConfig{
		PromptVersion:      "v1",
		ExtractConcurrency: 4,
		ArtifactDir:        dir,
		DefaultMethods:     []string{"indirect"},
	})
	env.addStory("story-1", "The Long Night", 1)
	raw := "I'm sorry, I cannot produce JSON today."
	env.extract.fn = func(in *wfmodel.ChapterExtractInput) (*chain.ChapterExtractOutput, error) {
		return nil, &wfmodel.ParseError{Workflow: "chapter_extract", Raw: raw, Err: errors.New("invalid character 'I'")}
	}

	msg := enqueue(t, env, "indirect", 1)
	if err := env.svc.Run(context.Background(), msg); err != nil {
		t.Fatalf("run: %v", err)
	}

	if job := storedJob(t, env, msg.JobID); job.Status != entity.JobStatusFailed {
		t.Fatalf("status = %s, want FAILED", job.Status)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read artifact dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("artifact dir has %d files, want 1", len(entries))
	}
	data, err := os.ReadFile(dir + "/" + entries[0].Name())
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(data) != raw {
		t.Errorf("artifact content = %q, want raw model output", string(data))
	}
}

func TestRunDirectCompletesJob(t *testing.T) {
	env := newTestEnv()
	env.addStory("story-1", "The Long Night", 2)

	msg := enqueue(t, env, "direct", 2)
	if err := env.svc.Run(context.Background(), msg); err != nil {
		t.Fatalf("run: %v", err)
	}

	if env.direct.calls != 1 {
		t.Fatalf("direct calls = %d, want 1", env.direct.calls)
	}
	if env.extract.callCount() != 0 || env.synthesize.calls != 0 {
		t.Error("direct run used the indirect chains")
	}
	in := env.direct.input
	if !strings.Contains(in.ChaptersText, "=== Chapter 1") || !strings.Contains(in.ChaptersText, "=== Chapter 2") {
		t.Errorf("chapters text missing chapter markers: %q", in.ChaptersText)
	}
	if in.LastChapterNumber != 2 {
		t.Errorf("last chapter = %d, want 2", in.LastChapterNumber)
	}
	if job := storedJob(t, env, msg.JobID); job.Status != entity.JobStatusCompleted {
		t.Errorf("status = %s, want COMPLETED", job.Status)
	}
}

func TestRunMissingJobAcksSilently(t *testing.T) {
	env := newTestEnv()
	err := env.svc.Run(context.Background(), &messaging.AnalysisJobMessage{
		JobID: "gone", StoryID: "story-1", LastChapterNumber: 1, Method: "indirect",
	})
	if err != nil {
		t.Fatalf("missing job should ack, got %v", err)
	}
	if env.extract.callCount() != 0 {
		t.Error("missing job triggered extraction")
	}
}

func TestRunRedeliveredJobSkipped(t *testing.T) {
	env := newTestEnv()
	env.addStory("story-1", "The Long Night", 1)
	msg := enqueue(t, env, "indirect", 1)

	// First delivery wins the PENDING -> IN_PROGRESS transition.
	if ok, _ := env.jobRepo.MarkRunning(context.Background(), msg.JobID); !ok {
		t.Fatal("MarkRunning should succeed on a pending job")
	}

	if err := env.svc.Run(context.Background(), msg); err != nil {
		t.Fatalf("redelivery should ack, got %v", err)
	}
	if env.extract.callCount() != 0 || env.synthesize.calls != 0 {
		t.Error("redelivered job ran the pipeline")
	}
}

func TestRunMissingStoryFailsJob(t *testing.T) {
	env := newTestEnv()
	// Job submitted for a story that was never created.
	msg := enqueue(t, env, "indirect", 2)

	if err := env.svc.Run(context.Background(), msg); err != nil {
		t.Fatalf("run: %v", err)
	}
	job := storedJob(t, env, msg.JobID)
	if job.Status != entity.JobStatusFailed {
		t.Fatalf("status = %s, want FAILED", job.Status)
	}
	if !strings.Contains(job.ErrorMessage, "story") {
		t.Errorf("error message %q does not mention the story", job.ErrorMessage)
	}
}
