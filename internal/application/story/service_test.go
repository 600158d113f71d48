package story

import (
	"context"
	"errors"
	"testing"

	"storybible-api/internal/domain/entity"
	"storybible-api/internal/domain/repository"
	apperrors "storybible-api/pkg/errors"
)

type fakeTx struct{}

func (fakeTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeStoryRepo struct {
	stories map[string]*entity.Story
	deleted []string
	updated int
}

func newFakeStoryRepo() *fakeStoryRepo {
	return &fakeStoryRepo{stories: make(map[string]*entity.Story)}
}

func (f *fakeStoryRepo) Create(ctx context.Context, s *entity.Story) error {
	if s.ID == "" {
		s.ID = "story-1"
	}
	for i, ch := range s.Chapters {
		ch.StoryID = s.ID
		ch.ID = s.ID + "-ch-" + string(rune('a'+i))
	}
	f.stories[s.ID] = s
	return nil
}

func (f *fakeStoryRepo) GetByID(ctx context.Context, id string) (*entity.Story, error) {
	return f.stories[id], nil
}

func (f *fakeStoryRepo) GetWithChapters(ctx context.Context, id string) (*entity.Story, error) {
	return f.stories[id], nil
}

func (f *fakeStoryRepo) Update(ctx context.Context, s *entity.Story) error {
	f.updated++
	return nil
}

func (f *fakeStoryRepo) Delete(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	delete(f.stories, id)
	return nil
}

func (f *fakeStoryRepo) List(ctx context.Context, p repository.Pagination) (*repository.PagedResult[*entity.Story], error) {
	var items []*entity.Story
	for _, s := range f.stories {
		items = append(items, s)
	}
	return repository.NewPagedResult(items, int64(len(items)), p), nil
}

type fakeChapterRepo struct {
	deletedStories []string
	createdBatches [][]*entity.Chapter
}

func (f *fakeChapterRepo) CreateBatch(ctx context.Context, chapters []*entity.Chapter) error {
	f.createdBatches = append(f.createdBatches, chapters)
	return nil
}
func (f *fakeChapterRepo) GetByID(ctx context.Context, id string) (*entity.Chapter, error) {
	return nil, nil
}
func (f *fakeChapterRepo) ListByStory(ctx context.Context, storyID string) ([]*entity.Chapter, error) {
	return nil, nil
}
func (f *fakeChapterRepo) ListByStoryUpTo(ctx context.Context, storyID string, last int) ([]*entity.Chapter, error) {
	return nil, nil
}
func (f *fakeChapterRepo) MaxNumber(ctx context.Context, storyID string) (int, error) {
	return 0, nil
}
func (f *fakeChapterRepo) DeleteByStory(ctx context.Context, storyID string) error {
	f.deletedStories = append(f.deletedStories, storyID)
	return nil
}

type fakeJobRepo struct {
	deletedStories []string
}

func (f *fakeJobRepo) Create(ctx context.Context, job *entity.AnalysisJob) error { return nil }
func (f *fakeJobRepo) GetByID(ctx context.Context, id string) (*entity.AnalysisJob, error) {
	return nil, nil
}
func (f *fakeJobRepo) MarkRunning(ctx context.Context, id string) (bool, error) { return false, nil }
func (f *fakeJobRepo) SetResult(ctx context.Context, job *entity.AnalysisJob) error {
	return nil
}
func (f *fakeJobRepo) ListByStory(ctx context.Context, storyID string, filter *repository.JobFilter, p repository.Pagination) (*repository.PagedResult[*entity.AnalysisJob], error) {
	return repository.NewPagedResult([]*entity.AnalysisJob{}, 0, p), nil
}
func (f *fakeJobRepo) Delete(ctx context.Context, id string) error { return nil }
func (f *fakeJobRepo) DeleteByStory(ctx context.Context, storyID string) error {
	f.deletedStories = append(f.deletedStories, storyID)
	return nil
}
func (f *fakeJobRepo) GetStats(ctx context.Context, storyID string) (*repository.JobStats, error) {
	return &repository.JobStats{}, nil
}

type fakeAnalysisRepo struct {
	droppedChapters [][]string
}

func (f *fakeAnalysisRepo) Create(ctx context.Context, row *entity.ChapterAnalysis) error {
	return nil
}
func (f *fakeAnalysisRepo) Get(ctx context.Context, chapterID, promptVersion, modelName string) (*entity.ChapterAnalysis, error) {
	return nil, nil
}
func (f *fakeAnalysisRepo) GetBatch(ctx context.Context, chapterIDs []string, promptVersion, modelName string) (map[string]*entity.ChapterAnalysis, error) {
	return map[string]*entity.ChapterAnalysis{}, nil
}
func (f *fakeAnalysisRepo) DeleteByChapters(ctx context.Context, chapterIDs []string) error {
	f.droppedChapters = append(f.droppedChapters, chapterIDs)
	return nil
}

type fakeInvalidator struct {
	invalidated []string
}

func (f *fakeInvalidator) InvalidateStory(ctx context.Context, storyID string) error {
	f.invalidated = append(f.invalidated, storyID)
	return nil
}

type storyEnv struct {
	svc         *Service
	stories     *fakeStoryRepo
	chapters    *fakeChapterRepo
	jobs        *fakeJobRepo
	cache       *fakeAnalysisRepo
	invalidator *fakeInvalidator
}

func newStoryEnv() *storyEnv {
	env := &storyEnv{
		stories:     newFakeStoryRepo(),
		chapters:    &fakeChapterRepo{},
		jobs:        &fakeJobRepo{},
		cache:       &fakeAnalysisRepo{},
		invalidator: &fakeInvalidator{},
	}
	env.svc = NewService(env.stories, env.chapters, env.jobs, env.cache, fakeTx{}, env.invalidator)
	return env
}

func strptr(s string) *string { return &s }

func TestCreateStoryWithChapters(t *testing.T) {
	env := newStoryEnv()

	story, err := env.svc.Create(context.Background(), CreateRequest{
		Title:  "The Long Night",
		Author: "A. Writer",
		Chapters: []ChapterInput{
			{Number: 1, Title: "Dawn", Content: "first light over the city"},
			{Number: 2, Title: "Dusk", Content: "and then it ended"},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if story.ID == "" {
		t.Error("story has no id")
	}
	if len(story.Chapters) != 2 {
		t.Fatalf("chapters = %d, want 2", len(story.Chapters))
	}
	if story.Chapters[0].WordCount != 5 {
		t.Errorf("word count = %d, want 5", story.Chapters[0].WordCount)
	}
}

func TestCreateStoryValidation(t *testing.T) {
	env := newStoryEnv()
	cases := []struct {
		name string
		req  CreateRequest
	}{
		{"empty title", CreateRequest{Title: "  "}},
		{"chapter zero", CreateRequest{Title: "t", Chapters: []ChapterInput{{Number: 0, Content: "x"}}}},
		{"duplicate number", CreateRequest{Title: "t", Chapters: []ChapterInput{
			{Number: 1, Content: "x"}, {Number: 1, Content: "y"},
		}}},
		{"gap in numbers", CreateRequest{Title: "t", Chapters: []ChapterInput{
			{Number: 1, Content: "x"}, {Number: 3, Content: "y"},
		}}},
		{"empty content", CreateRequest{Title: "t", Chapters: []ChapterInput{{Number: 1, Content: " "}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.svc.Create(context.Background(), tc.req); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestGetMissingStory(t *testing.T) {
	env := newStoryEnv()
	if _, err := env.svc.Get(context.Background(), "gone"); !errors.Is(err, apperrors.ErrStoryNotFound) {
		t.Errorf("err = %v, want ErrStoryNotFound", err)
	}
}

func TestUpdateFieldsOnlyKeepsChapters(t *testing.T) {
	env := newStoryEnv()
	created, err := env.svc.Create(context.Background(), CreateRequest{
		Title:    "The Long Night",
		Chapters: []ChapterInput{{Number: 1, Content: "text"}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := env.svc.Update(context.Background(), created.ID, UpdateRequest{
		Title: strptr("The Longer Night"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "The Longer Night" {
		t.Errorf("title = %q", updated.Title)
	}
	if len(env.chapters.deletedStories) != 0 {
		t.Error("field-only update touched chapters")
	}
	if len(env.cache.droppedChapters) != 0 {
		t.Error("field-only update dropped cached extractions")
	}
}

func TestUpdateReplacesChapterSetAndDropsCache(t *testing.T) {
	env := newStoryEnv()
	created, err := env.svc.Create(context.Background(), CreateRequest{
		Title: "The Long Night",
		Chapters: []ChapterInput{
			{Number: 1, Content: "one"},
			{Number: 2, Content: "two"},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	oldIDs := []string{created.Chapters[0].ID, created.Chapters[1].ID}

	updated, err := env.svc.Update(context.Background(), created.ID, UpdateRequest{
		Chapters: []ChapterInput{{Number: 1, Content: "rewritten"}},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(updated.Chapters) != 1 {
		t.Fatalf("chapters = %d, want 1", len(updated.Chapters))
	}

	if len(env.cache.droppedChapters) != 1 {
		t.Fatalf("cache drops = %d, want 1", len(env.cache.droppedChapters))
	}
	dropped := env.cache.droppedChapters[0]
	if len(dropped) != 2 || dropped[0] != oldIDs[0] || dropped[1] != oldIDs[1] {
		t.Errorf("dropped %v, want old chapter ids %v", dropped, oldIDs)
	}
	if len(env.chapters.deletedStories) != 1 || env.chapters.deletedStories[0] != created.ID {
		t.Errorf("chapter delete calls = %v", env.chapters.deletedStories)
	}
	if len(env.chapters.createdBatches) != 1 || len(env.chapters.createdBatches[0]) != 1 {
		t.Errorf("chapter create batches = %v", env.chapters.createdBatches)
	}
	if len(env.invalidator.invalidated) == 0 {
		t.Error("update did not invalidate the story cache")
	}
}

func TestUpdateMissingStory(t *testing.T) {
	env := newStoryEnv()
	if _, err := env.svc.Update(context.Background(), "gone", UpdateRequest{}); !errors.Is(err, apperrors.ErrStoryNotFound) {
		t.Errorf("err = %v, want ErrStoryNotFound", err)
	}
}

func TestDeleteStoryCascades(t *testing.T) {
	env := newStoryEnv()
	created, err := env.svc.Create(context.Background(), CreateRequest{
		Title:    "The Long Night",
		Chapters: []ChapterInput{{Number: 1, Content: "text"}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := env.svc.Delete(context.Background(), created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(env.jobs.deletedStories) != 1 || env.jobs.deletedStories[0] != created.ID {
		t.Errorf("job cascade calls = %v", env.jobs.deletedStories)
	}
	if len(env.stories.deleted) != 1 {
		t.Errorf("story delete calls = %v", env.stories.deleted)
	}
	if len(env.invalidator.invalidated) == 0 {
		t.Error("delete did not invalidate the story cache")
	}

	if err := env.svc.Delete(context.Background(), created.ID); !errors.Is(err, apperrors.ErrStoryNotFound) {
		t.Errorf("second delete err = %v, want ErrStoryNotFound", err)
	}
}
