// internal/handlers/insight.go
package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shareview/insights-backend/internal/models"
	"github.com/shareview/insights-backend/internal/services"
	"github.com/shareview/insights-backend/internal/utils"
)

type InsightHandler struct {
	generationService *services.GenerationService
	jobService        *services.JobService
	insightService    *services.InsightService
	staleAfter        time.Duration
}

// JobView adds the derived staleness flag to a job.
type JobView struct {
	models.GenerationJob
	Stale bool `json:"stale"`
}

func NewInsightHandler(generationService *services.GenerationService, jobService *services.JobService, insightService *services.InsightService, staleAfter time.Duration) *InsightHandler {
	return &InsightHandler{
		generationService: generationService,
		jobService:        jobService,
		insightService:    insightService,
		staleAfter:        staleAfter,
	}
}

func (h *InsightHandler) jobView(job models.GenerationJob) JobView {
	return JobView{GenerationJob: job, Stale: job.IsStale(time.Now().UTC(), h.staleAfter)}
}

// POST /insights/generate
func (h *InsightHandler) Generate(c *gin.Context) {
	actorID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	outcome, err := h.generationService.Generate(c.Request.Context(), &req, actorID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, outcome)
}

// GET /insights/jobs
func (h *InsightHandler) ListJobs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	jobs, err := h.jobService.ListRecent(c.Request.Context(), services.JobFilter{
		RetailerID: c.Query("retailer_id"),
		Status:     models.JobStatus(c.Query("status")),
		Limit:      limit,
	})
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	views := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, h.jobView(job))
	}
	utils.SuccessResponse(c, views)
}

// GET /insights/jobs/:id
func (h *InsightHandler) GetJob(c *gin.Context) {
	id, ok := uuidParam(c, "id", "job")
	if !ok {
		return
	}

	job, err := h.jobService.Get(c.Request.Context(), id)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, h.jobView(*job))
}

// GET /insights
func (h *InsightHandler) List(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	insights, total, err := h.insightService.List(c.Request.Context(), services.InsightFilter{
		PaginationParams: params,
		Status:           c.Query("status"),
		RetailerID:       c.Query("retailer_id"),
		PageType:         c.Query("page_type"),
	})
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(insights, total, params))
}

// GET /insights/:id
func (h *InsightHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id", "insight")
	if !ok {
		return
	}

	insight, err := h.insightService.Get(c.Request.Context(), id)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, insight)
}

// PUT /insights/:id
func (h *InsightHandler) Update(c *gin.Context) {
	id, ok := uuidParam(c, "id", "insight")
	if !ok {
		return
	}

	var req services.UpdateInsightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	insight, err := h.insightService.UpdatePayload(c.Request.Context(), id, &req)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, insight)
}

// POST /insights/:id/approve
func (h *InsightHandler) Approve(c *gin.Context) {
	h.review(c, models.InsightStatusApproved)
}

// POST /insights/:id/reject
func (h *InsightHandler) Reject(c *gin.Context) {
	h.review(c, models.InsightStatusRejected)
}

func (h *InsightHandler) review(c *gin.Context, status models.InsightStatus) {
	id, ok := uuidParam(c, "id", "insight")
	if !ok {
		return
	}
	actorID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.ReviewInsightRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	insight, err := h.insightService.SetStatus(c.Request.Context(), id, status, actorID, req.Notes)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, insight)
}

// POST /insights/:id/publish
func (h *InsightHandler) Publish(c *gin.Context) {
	id, ok := uuidParam(c, "id", "insight")
	if !ok {
		return
	}
	actorID, ok := currentUser(c)
	if !ok {
		return
	}

	insight, err := h.insightService.Publish(c.Request.Context(), id, actorID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, insight)
}
