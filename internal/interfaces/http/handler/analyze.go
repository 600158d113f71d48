package handler

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"storybible-api/internal/application/analysis"
	"storybible-api/internal/domain/entity"
	"storybible-api/internal/domain/repository"
	"storybible-api/internal/infrastructure/persistence/redis"
	"storybible-api/internal/interfaces/http/dto"
	"storybible-api/pkg/logger"
)

// jobResultTTL bounds how long a terminal job payload stays cached.
const jobResultTTL = 10 * time.Minute

// AnalyzeHandler serves job submission and polling.
type AnalyzeHandler struct {
	svc   *analysis.Service
	cache *redis.Cache
}

func NewAnalyzeHandler(svc *analysis.Service, cache *redis.Cache) *AnalyzeHandler {
	return &AnalyzeHandler{svc: svc, cache: cache}
}

// Submit handles POST /api/analyze. Returns 202 with one result per
// requested method; the caller polls for completion.
func (h *AnalyzeHandler) Submit(c *gin.Context) {
	var req dto.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	results, err := h.svc.Submit(c.Request.Context(), analysis.SubmitRequest{
		StoryID:           req.StoryID,
		LastChapterNumber: req.LastChapterNumber,
		Methods:           req.Methods,
		Provider:          req.Provider,
		Model:             req.Model,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	resp := dto.AnalyzeResponse{Results: make([]dto.SubmissionResult, 0, len(results))}
	for _, r := range results {
		item := dto.SubmissionResult{Method: string(r.Method)}
		if r.Err != nil {
			item.Error = r.Err.Error()
		} else {
			item.Job = dto.ToJobResponse(r.Job)
		}
		resp.Results = append(resp.Results, item)
	}
	dto.Accepted(c, resp)
}

// GetJobData handles GET /api/analyze/data/:jid: the job with its
// nested chapter analyses. Terminal jobs are served through Redis
// since their payload can no longer change.
func (h *AnalyzeHandler) GetJobData(c *gin.Context) {
	ctx := c.Request.Context()
	jobID := dto.BindJobID(c)

	if h.cache != nil {
		if cached, err := h.cache.Get(ctx, redis.BuildJobDataKey(jobID)); err == nil && cached != nil {
			var resp dto.JobDataResponse
			if err := json.Unmarshal(cached, &resp); err == nil {
				dto.Success(c, &resp)
				return
			}
		}
	}

	data, err := h.svc.GetJobData(ctx, jobID)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := dto.ToJobDataResponse(data)
	if h.cache != nil && data.Job.Status.IsTerminal() {
		if err := h.cache.Set(ctx, redis.BuildJobDataKey(jobID), resp, jobResultTTL); err != nil {
			logger.Warn(ctx, "cache job result failed", "job_id", jobID, "error", err.Error())
		}
	}
	dto.Success(c, resp)
}

// ListJobs handles GET /api/stories/:sid/jobs.
func (h *AnalyzeHandler) ListJobs(c *gin.Context) {
	page := dto.BindPage(c)

	var filter *repository.JobFilter
	if status := c.Query("status"); status != "" {
		filter = &repository.JobFilter{Status: entity.JobStatus(status)}
	}
	if method := c.Query("method"); method != "" {
		if filter == nil {
			filter = &repository.JobFilter{}
		}
		filter.Method = entity.AnalysisMethod(method)
	}

	result, err := h.svc.ListJobs(c.Request.Context(), dto.BindStoryID(c), filter,
		repository.NewPagination(page.Page, page.PageSize))
	if err != nil {
		respondError(c, err)
		return
	}
	dto.SuccessWithPage(c, dto.ToJobListResponse(result.Items),
		dto.NewPageMeta(page.Page, page.PageSize, int(result.Total)))
}

// JobStats handles GET /api/stories/:sid/jobs/stats.
func (h *AnalyzeHandler) JobStats(c *gin.Context) {
	stats, err := h.svc.JobStats(c.Request.Context(), dto.BindStoryID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, dto.ToJobStatsResponse(stats))
}

// DeleteJob handles DELETE /api/analyze/:jid. Removes the row only;
// an in-flight run is not cancelled.
func (h *AnalyzeHandler) DeleteJob(c *gin.Context) {
	ctx := c.Request.Context()
	jobID := dto.BindJobID(c)
	if err := h.svc.DeleteJob(ctx, jobID); err != nil {
		respondError(c, err)
		return
	}
	if h.cache != nil {
		if err := h.cache.Delete(ctx, redis.BuildJobDataKey(jobID)); err != nil {
			logger.Warn(ctx, "drop cached job data failed", "job_id", jobID, "error", err.Error())
		}
	}
	dto.NoContent(c)
}
