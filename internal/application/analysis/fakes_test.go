package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"storybible-api/internal/domain/entity"
	"storybible-api/internal/domain/repository"
	"storybible-api/internal/infrastructure/messaging"
	"storybible-api/internal/workflow/chain"
	wfmodel "storybible-api/internal/workflow/model"
)

type fakeTx struct{}

func (fakeTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeStoryRepo struct {
	stories map[string]*entity.Story
}

func (f *fakeStoryRepo) Create(ctx context.Context, s *entity.Story) error { return nil }
func (f *fakeStoryRepo) GetByID(ctx context.Context, id string) (*entity.Story, error) {
	return f.stories[id], nil
}
func (f *fakeStoryRepo) GetWithChapters(ctx context.Context, id string) (*entity.Story, error) {
	return f.stories[id], nil
}
func (f *fakeStoryRepo) Update(ctx context.Context, s *entity.Story) error { return nil }
func (f *fakeStoryRepo) Delete(ctx context.Context, id string) error       { return nil }
func (f *fakeStoryRepo) List(ctx context.Context, p repository.Pagination) (*repository.PagedResult[*entity.Story], error) {
	return repository.NewPagedResult([]*entity.Story{}, 0, p), nil
}

type fakeChapterRepo struct {
	chapters map[string][]*entity.Chapter
}

func (f *fakeChapterRepo) CreateBatch(ctx context.Context, chapters []*entity.Chapter) error {
	return nil
}
func (f *fakeChapterRepo) GetByID(ctx context.Context, id string) (*entity.Chapter, error) {
	for _, chs := range f.chapters {
		for _, ch := range chs {
			if ch.ID == id {
				return ch, nil
			}
		}
	}
	return nil, nil
}
func (f *fakeChapterRepo) ListByStory(ctx context.Context, storyID string) ([]*entity.Chapter, error) {
	return f.chapters[storyID], nil
}
func (f *fakeChapterRepo) ListByStoryUpTo(ctx context.Context, storyID string, last int) ([]*entity.Chapter, error) {
	var out []*entity.Chapter
	for _, ch := range f.chapters[storyID] {
		if ch.Number <= last {
			out = append(out, ch)
		}
	}
	return out, nil
}
func (f *fakeChapterRepo) MaxNumber(ctx context.Context, storyID string) (int, error) {
	max := 0
	for _, ch := range f.chapters[storyID] {
		if ch.Number > max {
			max = ch.Number
		}
	}
	return max, nil
}
func (f *fakeChapterRepo) DeleteByStory(ctx context.Context, storyID string) error {
	delete(f.chapters, storyID)
	return nil
}

type fakeJobRepo struct {
	mu      sync.Mutex
	jobs    map[string]*entity.AnalysisJob
	created []*entity.AnalysisJob
	nextID  int
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: make(map[string]*entity.AnalysisJob)}
}

func (f *fakeJobRepo) Create(ctx context.Context, job *entity.AnalysisJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	job.ID = fmt.Sprintf("job-%d", f.nextID)
	stored := *job
	f.jobs[job.ID] = &stored
	f.created = append(f.created, &stored)
	return nil
}

func (f *fakeJobRepo) GetByID(ctx context.Context, id string) (*entity.AnalysisJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.jobs[id]
	if !ok {
		return nil, nil
	}
	copied := *stored
	return &copied, nil
}

func (f *fakeJobRepo) MarkRunning(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.jobs[id]
	if !ok || stored.Status != entity.JobStatusPending {
		return false, nil
	}
	stored.Status = entity.JobStatusInProgress
	return true, nil
}

func (f *fakeJobRepo) SetResult(ctx context.Context, job *entity.AnalysisJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.jobs[job.ID]
	if !ok || stored.Status.IsTerminal() {
		return nil
	}
	copied := *job
	f.jobs[job.ID] = &copied
	return nil
}

func (f *fakeJobRepo) ListByStory(ctx context.Context, storyID string, filter *repository.JobFilter, p repository.Pagination) (*repository.PagedResult[*entity.AnalysisJob], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []*entity.AnalysisJob
	for _, j := range f.jobs {
		if j.StoryID == storyID {
			copied := *j
			items = append(items, &copied)
		}
	}
	return repository.NewPagedResult(items, int64(len(items)), p), nil
}

func (f *fakeJobRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.jobs, id)
	return nil
}

func (f *fakeJobRepo) DeleteByStory(ctx context.Context, storyID string) error { return nil }

func (f *fakeJobRepo) GetStats(ctx context.Context, storyID string) (*repository.JobStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &repository.JobStats{}
	for _, j := range f.jobs {
		if j.StoryID != storyID {
			continue
		}
		stats.TotalJobs++
		switch j.Status {
		case entity.JobStatusPending:
			stats.PendingJobs++
		case entity.JobStatusInProgress:
			stats.InProgressJobs++
		case entity.JobStatusCompleted:
			stats.CompletedJobs++
		case entity.JobStatusFailed:
			stats.FailedJobs++
		}
	}
	return stats, nil
}

type fakeAnalysisRepo struct {
	mu   sync.Mutex
	rows map[string]*entity.ChapterAnalysis
}

func newFakeAnalysisRepo() *fakeAnalysisRepo {
	return &fakeAnalysisRepo{rows: make(map[string]*entity.ChapterAnalysis)}
}

func analysisKey(chapterID, promptVersion, modelName string) string {
	return chapterID + "|" + promptVersion + "|" + modelName
}

func (f *fakeAnalysisRepo) Create(ctx context.Context, row *entity.ChapterAnalysis) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := analysisKey(row.ChapterID, row.PromptVersion, row.ModelName)
	if _, exists := f.rows[key]; exists {
		return nil
	}
	f.rows[key] = row
	return nil
}

func (f *fakeAnalysisRepo) Get(ctx context.Context, chapterID, promptVersion, modelName string) (*entity.ChapterAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[analysisKey(chapterID, promptVersion, modelName)], nil
}

func (f *fakeAnalysisRepo) GetBatch(ctx context.Context, chapterIDs []string, promptVersion, modelName string) (map[string]*entity.ChapterAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]*entity.ChapterAnalysis)
	for _, id := range chapterIDs {
		if row, ok := f.rows[analysisKey(id, promptVersion, modelName)]; ok {
			out[id] = row
		}
	}
	return out, nil
}

func (f *fakeAnalysisRepo) DeleteByChapters(ctx context.Context, chapterIDs []string) error {
	return nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []*messaging.AnalysisJobMessage
	err       error
}

func (f *fakePublisher) PublishAnalysisJob(ctx context.Context, job *messaging.AnalysisJobMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.published = append(f.published, job)
	return fmt.Sprintf("msg-%d", len(f.published)), nil
}

type fakeExtract struct {
	mu    sync.Mutex
	calls int
	fn    func(in *wfmodel.ChapterExtractInput) (*chain.ChapterExtractOutput, error)
}

func (f *fakeExtract) Invoke(ctx context.Context, in *wfmodel.ChapterExtractInput) (*chain.ChapterExtractOutput, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(in)
	}
	return &chain.ChapterExtractOutput{
		Extraction: wfmodel.ChapterExtraction{
			ChapterNumber: in.ChapterNumber,
			ChapterTitle:  in.ChapterTitle,
			Summary:       "summary of chapter " + fmt.Sprint(in.ChapterNumber),
		},
		Usage: wfmodel.LLMUsageMeta{PromptTokens: 10, CompletionTokens: 5},
	}, nil
}

func (f *fakeExtract) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSynthesize struct {
	mu    sync.Mutex
	calls int
	input *wfmodel.BibleSynthesizeInput
	err   error
}

func (f *fakeSynthesize) Invoke(ctx context.Context, in *wfmodel.BibleSynthesizeInput) (*chain.BibleSynthesizeOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &chain.BibleSynthesizeOutput{
		Document: wfmodel.MasterStoryDocument{
			StoryTitle:       in.StoryTitle,
			ChaptersAnalyzed: len(in.Extractions),
			Characters:       []wfmodel.Character{{Name: "Ada"}},
			NarrativeLog:     narrativeLogFrom(in.Extractions),
		},
		Usage: wfmodel.LLMUsageMeta{PromptTokens: 100, CompletionTokens: 50},
	}, nil
}

func narrativeLogFrom(extractions []wfmodel.ChapterExtraction) []wfmodel.NarrativeEntry {
	log := make([]wfmodel.NarrativeEntry, len(extractions))
	for i, e := range extractions {
		log[i] = wfmodel.NarrativeEntry{ChapterNumber: e.ChapterNumber, Summary: e.Summary}
	}
	return log
}

type fakeDirect struct {
	mu    sync.Mutex
	calls int
	input *wfmodel.DirectAnalyzeInput
	err   error
}

func (f *fakeDirect) Invoke(ctx context.Context, in *wfmodel.DirectAnalyzeInput) (*chain.DirectAnalyzeOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &chain.DirectAnalyzeOutput{
		Document: wfmodel.MasterStoryDocument{
			StoryTitle:       in.StoryTitle,
			ChaptersAnalyzed: in.LastChapterNumber,
			Characters:       []wfmodel.Character{{Name: "Ada"}},
			NarrativeLog:     []wfmodel.NarrativeEntry{{ChapterNumber: 1, Summary: "s"}},
		},
		Usage: wfmodel.LLMUsageMeta{PromptTokens: 200, CompletionTokens: 80},
	}, nil
}

func mustJSON(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
