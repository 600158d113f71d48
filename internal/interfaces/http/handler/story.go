package handler

import (
	"github.com/gin-gonic/gin"

	"storybible-api/internal/application/story"
	"storybible-api/internal/domain/repository"
	"storybible-api/internal/interfaces/http/dto"
)

// StoryHandler serves the story CRUD surface.
type StoryHandler struct {
	stories *story.Service
}

func NewStoryHandler(stories *story.Service) *StoryHandler {
	return &StoryHandler{stories: stories}
}

// CreateStory handles POST /api/stories.
func (h *StoryHandler) CreateStory(c *gin.Context) {
	var req dto.CreateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	created, err := h.stories.Create(c.Request.Context(), story.CreateRequest{
		Title:    req.Name,
		Author:   req.Author,
		Synopsis: req.Synopsis,
		Chapters: dto.ToChapterInputs(req.Chapters),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Created(c, dto.ToStoryResponse(created))
}

// GetStory handles GET /api/stories/:sid.
func (h *StoryHandler) GetStory(c *gin.Context) {
	s, err := h.stories.Get(c.Request.Context(), dto.BindStoryID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, dto.ToStoryResponse(s))
}

// ListStories handles GET /api/stories.
func (h *StoryHandler) ListStories(c *gin.Context) {
	page := dto.BindPage(c)
	result, err := h.stories.List(c.Request.Context(), repository.NewPagination(page.Page, page.PageSize))
	if err != nil {
		respondError(c, err)
		return
	}
	dto.SuccessWithPage(c, dto.ToStoryListResponse(result.Items),
		dto.NewPageMeta(page.Page, page.PageSize, int(result.Total)))
}

// PatchStory handles PATCH /api/stories/:sid. A chapters array in the
// body replaces the chapter set wholesale.
func (h *StoryHandler) PatchStory(c *gin.Context) {
	var req dto.PatchStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	updated, err := h.stories.Update(c.Request.Context(), dto.BindStoryID(c), story.UpdateRequest{
		Title:    req.Name,
		Author:   req.Author,
		Synopsis: req.Synopsis,
		Chapters: dto.ToChapterInputs(req.Chapters),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, dto.ToStoryResponse(updated))
}

// DeleteStory handles DELETE /api/stories/:sid.
func (h *StoryHandler) DeleteStory(c *gin.Context) {
	if err := h.stories.Delete(c.Request.Context(), dto.BindStoryID(c)); err != nil {
		respondError(c, err)
		return
	}
	dto.NoContent(c)
}
