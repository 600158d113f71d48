package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"storybible-api/internal/application/analysis"
	"storybible-api/internal/application/story"
	"storybible-api/internal/config"
	"storybible-api/internal/domain/entity"
	"storybible-api/internal/domain/repository"
	"storybible-api/internal/infrastructure/messaging"
	"storybible-api/internal/interfaces/http/handler"
)

type memStore struct {
	mu       sync.Mutex
	stories  map[string]*entity.Story
	chapters map[string][]*entity.Chapter
	jobs     map[string]*entity.AnalysisJob
	cache    map[string]*entity.ChapterAnalysis
	seq      int
}

func newMemStore() *memStore {
	return &memStore{
		stories:  make(map[string]*entity.Story),
		chapters: make(map[string][]*entity.Chapter),
		jobs:     make(map[string]*entity.AnalysisJob),
		cache:    make(map[string]*entity.ChapterAnalysis),
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// StoryRepository

func (m *memStore) Create(ctx context.Context, s *entity.Story) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = m.nextID("story")
	for _, ch := range s.Chapters {
		ch.ID = m.nextID("chapter")
		ch.StoryID = s.ID
	}
	m.stories[s.ID] = s
	m.chapters[s.ID] = s.Chapters
	return nil
}

func (m *memStore) GetByID(ctx context.Context, id string) (*entity.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stories[id], nil
}

func (m *memStore) GetWithChapters(ctx context.Context, id string) (*entity.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stories[id]
	if s != nil {
		s.Chapters = m.chapters[id]
	}
	return s, nil
}

func (m *memStore) Update(ctx context.Context, s *entity.Story) error { return nil }

func (m *memStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stories, id)
	delete(m.chapters, id)
	return nil
}

func (m *memStore) List(ctx context.Context, p repository.Pagination) (*repository.PagedResult[*entity.Story], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]*entity.Story, 0, len(m.stories))
	for _, s := range m.stories {
		items = append(items, s)
	}
	return repository.NewPagedResult(items, int64(len(items)), p), nil
}

// ChapterRepository

func (m *memStore) CreateBatch(ctx context.Context, chapters []*entity.Chapter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range chapters {
		ch.ID = m.nextID("chapter")
		m.chapters[ch.StoryID] = append(m.chapters[ch.StoryID], ch)
	}
	return nil
}

func (m *memStore) GetChapterByID(ctx context.Context, id string) (*entity.Chapter, error) {
	return nil, nil
}

func (m *memStore) ListByStory(ctx context.Context, storyID string) ([]*entity.Chapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chapters[storyID], nil
}

func (m *memStore) ListByStoryUpTo(ctx context.Context, storyID string, last int) ([]*entity.Chapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Chapter
	for _, ch := range m.chapters[storyID] {
		if ch.Number <= last {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (m *memStore) MaxNumber(ctx context.Context, storyID string) (int, error) { return 0, nil }

func (m *memStore) DeleteByStory(ctx context.Context, storyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chapters, storyID)
	return nil
}

// JobRepository

func (m *memStore) CreateJob(ctx context.Context, job *entity.AnalysisJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job.ID = m.nextID("job")
	stored := *job
	m.jobs[job.ID] = &stored
	return nil
}

func (m *memStore) GetJobByID(ctx context.Context, id string) (*entity.AnalysisJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		copied := *j
		return &copied, nil
	}
	return nil, nil
}

func (m *memStore) MarkRunning(ctx context.Context, id string) (bool, error) { return false, nil }

func (m *memStore) SetResult(ctx context.Context, job *entity.AnalysisJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *job
	m.jobs[job.ID] = &copied
	return nil
}

func (m *memStore) ListJobsByStory(ctx context.Context, storyID string, filter *repository.JobFilter, p repository.Pagination) (*repository.PagedResult[*entity.AnalysisJob], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := []*entity.AnalysisJob{}
	for _, j := range m.jobs {
		if j.StoryID == storyID {
			items = append(items, j)
		}
	}
	return repository.NewPagedResult(items, int64(len(items)), p), nil
}

func (m *memStore) DeleteJob(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
	return nil
}

func (m *memStore) DeleteJobsByStory(ctx context.Context, storyID string) error { return nil }

func (m *memStore) GetStats(ctx context.Context, storyID string) (*repository.JobStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &repository.JobStats{}
	for _, j := range m.jobs {
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

// ChapterAnalysisRepository

func (m *memStore) CreateAnalysis(ctx context.Context, row *entity.ChapterAnalysis) error {
	return nil
}

func (m *memStore) GetAnalysis(ctx context.Context, chapterID, promptVersion, modelName string) (*entity.ChapterAnalysis, error) {
	return nil, nil
}

func (m *memStore) GetBatch(ctx context.Context, chapterIDs []string, promptVersion, modelName string) (map[string]*entity.ChapterAnalysis, error) {
	return map[string]*entity.ChapterAnalysis{}, nil
}

func (m *memStore) DeleteByChapters(ctx context.Context, chapterIDs []string) error { return nil }

type nopPublisher struct{}

func (nopPublisher) PublishAnalysisJob(ctx context.Context, job *messaging.AnalysisJobMessage) (string, error) {
	return "msg-1", nil
}

func newTestRouter(t *testing.T) (*Router, *memStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := newMemStore()
	storyRepo := storyAdapter{store}
	chapterRepo := chapterAdapter{store}
	jobRepo := jobAdapter{store}
	analysisRepo := analysisAdapter{store}

	analyzeSvc := analysis.NewService(
		storyRepo, chapterRepo, jobRepo, analysisRepo, store, nopPublisher{},
		nil, nil, nil,
		"openai", "gpt-4o-mini",
		config.AnalysisConfig{PromptVersion: "v1", ExtractConcurrency: 2, DefaultMethods: []string{"indirect"}},
	)
	storySvc := story.NewService(storyRepo, chapterRepo, jobRepo, analysisRepo, store, nil)

	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.Security.CORS.AllowedOrigins = []string{"http://localhost:3000"}

	r := New(cfg, Handlers{
		Health:  handler.NewHealthHandler(nil, nil),
		Story:   handler.NewStoryHandler(storySvc),
		Analyze: handler.NewAnalyzeHandler(analyzeSvc, nil),
	}, nil)
	return r, store
}

// Adapters split the single in-memory store into the four repository
// interfaces, renaming where method sets collide.

type storyAdapter struct{ *memStore }

type chapterAdapter struct{ *memStore }

func (a chapterAdapter) GetByID(ctx context.Context, id string) (*entity.Chapter, error) {
	return a.memStore.GetChapterByID(ctx, id)
}

type jobAdapter struct{ *memStore }

func (a jobAdapter) Create(ctx context.Context, job *entity.AnalysisJob) error {
	return a.memStore.CreateJob(ctx, job)
}

func (a jobAdapter) GetByID(ctx context.Context, id string) (*entity.AnalysisJob, error) {
	return a.memStore.GetJobByID(ctx, id)
}

func (a jobAdapter) ListByStory(ctx context.Context, storyID string, filter *repository.JobFilter, p repository.Pagination) (*repository.PagedResult[*entity.AnalysisJob], error) {
	return a.memStore.ListJobsByStory(ctx, storyID, filter, p)
}

func (a jobAdapter) Delete(ctx context.Context, id string) error {
	return a.memStore.DeleteJob(ctx, id)
}

func (a jobAdapter) DeleteByStory(ctx context.Context, storyID string) error {
	return a.memStore.DeleteJobsByStory(ctx, storyID)
}

type analysisAdapter struct{ *memStore }

func (a analysisAdapter) Create(ctx context.Context, row *entity.ChapterAnalysis) error {
	return a.memStore.CreateAnalysis(ctx, row)
}

func (a analysisAdapter) Get(ctx context.Context, chapterID, promptVersion, modelName string) (*entity.ChapterAnalysis, error) {
	return a.memStore.GetAnalysis(ctx, chapterID, promptVersion, modelName)
}

func doJSON(t *testing.T, r *Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.Engine().ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	var envelope struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v (body %s)", err, w.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			t.Fatalf("decode data: %v (body %s)", err, w.Body.String())
		}
	}
}

func TestPing(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doJSON(t, r, http.MethodGet, "/api/ping", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.String() != "pong" {
		t.Errorf("body = %q, want pong", w.Body.String())
	}
}

func TestCreateAndGetStory(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/stories", map[string]any{
		"name":   "The Long Night",
		"author": "A. Writer",
		"chapters": []map[string]any{
			{"number": 1, "title": "Dawn", "content": "first light"},
			{"number": 2, "content": "second chapter text"},
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}
	var created struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Chapters []struct {
			Number int `json:"number"`
		} `json:"chapters"`
	}
	decodeData(t, w, &created)
	if created.ID == "" || created.Name != "The Long Night" {
		t.Errorf("unexpected story %+v", created)
	}
	if len(created.Chapters) != 2 {
		t.Errorf("chapters = %d, want 2", len(created.Chapters))
	}

	w = doJSON(t, r, http.MethodGet, "/api/stories/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
}

func TestCreateStoryRejectsMissingName(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doJSON(t, r, http.MethodPost, "/api/stories", map[string]any{"author": "nobody"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var errResp struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil || errResp.Message == "" {
		t.Errorf("error envelope missing message: %s", w.Body.String())
	}
}

func TestGetStoryNotFound(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doJSON(t, r, http.MethodGet, "/api/stories/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if !strings.Contains(w.Body.String(), "message") {
		t.Errorf("error body = %s", w.Body.String())
	}
}

func TestAnalyzeReturns202WithPendingJob(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doJSON(t, r, http.MethodPost, "/api/analyze", map[string]any{
		"story_id":            "story-x",
		"last_chapter_number": 3,
		"methods":             []string{"indirect"},
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Results []struct {
			Method string `json:"method"`
			Job    *struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"job"`
			Error string `json:"error"`
		} `json:"results"`
	}
	decodeData(t, w, &resp)
	if len(resp.Results) != 1 {
		t.Fatalf("results = %d, want 1", len(resp.Results))
	}
	res := resp.Results[0]
	if res.Error != "" || res.Job == nil {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Job.Status != "PENDING" {
		t.Errorf("status = %s, want PENDING", res.Job.Status)
	}
}

func TestAnalyzeRejectsBadBody(t *testing.T) {
	r, _ := newTestRouter(t)
	cases := []map[string]any{
		{"last_chapter_number": 1},
		{"story_id": "s"},
		{"story_id": "s", "last_chapter_number": 0},
	}
	for i, body := range cases {
		if w := doJSON(t, r, http.MethodPost, "/api/analyze", body); w.Code != http.StatusBadRequest {
			t.Errorf("case %d: status = %d, want 400", i, w.Code)
		}
	}
}

func TestJobDataRoundTrip(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/analyze", map[string]any{
		"story_id":            "story-x",
		"last_chapter_number": 1,
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("submit status = %d", w.Code)
	}
	var resp struct {
		Results []struct {
			Job struct {
				ID string `json:"id"`
			} `json:"job"`
		} `json:"results"`
	}
	decodeData(t, w, &resp)
	jobID := resp.Results[0].Job.ID

	w = doJSON(t, r, http.MethodGet, "/api/analyze/data/"+jobID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("data status = %d, body %s", w.Code, w.Body.String())
	}
	var data struct {
		Job struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"job"`
		ChapterAnalyses []json.RawMessage `json:"chapter_analyses"`
	}
	decodeData(t, w, &data)
	if data.Job.ID != jobID || data.Job.Status != "PENDING" {
		t.Errorf("unexpected job data %+v", data.Job)
	}

	if w = doJSON(t, r, http.MethodDelete, "/api/analyze/"+jobID, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	if w = doJSON(t, r, http.MethodGet, "/api/analyze/data/"+jobID, nil); w.Code != http.StatusNotFound {
		t.Errorf("data after delete status = %d, want 404", w.Code)
	}
}

func TestJobDataNotFound(t *testing.T) {
	r, _ := newTestRouter(t)
	if w := doJSON(t, r, http.MethodGet, "/api/analyze/data/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestListJobsForStory(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/stories", map[string]any{"name": "s"})
	var created struct {
		ID string `json:"id"`
	}
	decodeData(t, w, &created)

	doJSON(t, r, http.MethodPost, "/api/analyze", map[string]any{
		"story_id": created.ID, "last_chapter_number": 1,
	})

	w = doJSON(t, r, http.MethodGet, "/api/stories/"+created.ID+"/jobs", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var list struct {
		Jobs []struct {
			StoryID string `json:"story_id"`
		} `json:"jobs"`
	}
	decodeData(t, w, &list)
	if len(list.Jobs) != 1 || list.Jobs[0].StoryID != created.ID {
		t.Errorf("unexpected jobs %+v", list.Jobs)
	}
}

func TestJobStatsForStory(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/stories", map[string]any{"name": "s"})
	var created struct {
		ID string `json:"id"`
	}
	decodeData(t, w, &created)

	doJSON(t, r, http.MethodPost, "/api/analyze", map[string]any{
		"story_id": created.ID, "last_chapter_number": 1, "methods": []string{"direct", "indirect"},
	})

	w = doJSON(t, r, http.MethodGet, "/api/stories/"+created.ID+"/jobs/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var stats struct {
		Total   int64 `json:"total"`
		Pending int64 `json:"pending"`
	}
	decodeData(t, w, &stats)
	if stats.Total != 2 || stats.Pending != 2 {
		t.Errorf("stats = %+v, want 2 total, 2 pending", stats)
	}

	if w = doJSON(t, r, http.MethodGet, "/api/stories/nope/jobs/stats", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown story status = %d, want 404", w.Code)
	}
}

func TestDeleteStory(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/stories", map[string]any{"name": "s"})
	var created struct {
		ID string `json:"id"`
	}
	decodeData(t, w, &created)

	if w = doJSON(t, r, http.MethodDelete, "/api/stories/"+created.ID, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	if w = doJSON(t, r, http.MethodGet, "/api/stories/"+created.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", w.Code)
	}
}
