// internal/handlers/report.go
package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/shareview/insights-backend/internal/models"
	"github.com/shareview/insights-backend/internal/services"
	"github.com/shareview/insights-backend/internal/utils"
)

type ReportHandler struct {
	reportService   *services.ReportService
	retailerService *services.RetailerService
}

func NewReportHandler(reportService *services.ReportService, retailerService *services.RetailerService) *ReportHandler {
	return &ReportHandler{
		reportService:   reportService,
		retailerService: retailerService,
	}
}

func isStaff(c *gin.Context) bool {
	role, _ := utils.GetRoleFromContext(c)
	return models.Role(role).IsStaff()
}

// GET /reports
func (h *ReportHandler) List(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	filter := services.ReportFilter{
		PaginationParams: params,
		RetailerID:       c.Query("retailer_id"),
		Status:           c.Query("status"),
	}

	if !isStaff(c) {
		if filter.RetailerID == "" {
			if ids := utils.GetRetailerIDsFromContext(c); len(ids) == 1 {
				filter.RetailerID = ids[0]
			} else {
				utils.BadRequestResponse(c, "retailer_id is required", nil)
				return
			}
		}
		if !requireRetailer(c, filter.RetailerID) {
			return
		}
		filter.VisibleOnly = true
		filter.Status = ""
	}

	reports, total, err := h.reportService.List(c.Request.Context(), filter)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(reports, total, params))
}

// GET /reports/:id
func (h *ReportHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id", "report")
	if !ok {
		return
	}

	detail, err := h.reportService.Detail(c.Request.Context(), id)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	if !isStaff(c) {
		report := detail.Report
		if !requireRetailer(c, report.RetailerID) {
			return
		}
		if !report.IsActive || report.HiddenFromRetailer {
			utils.NotFoundResponse(c, "report")
			return
		}
	}

	utils.SuccessResponse(c, detail)
}

// POST /reports
func (h *ReportHandler) Create(c *gin.Context) {
	h.create(c, h.reportService.Create)
}

// POST /reports/draft
func (h *ReportHandler) CreateDraft(c *gin.Context) {
	h.create(c, h.reportService.CreateDraft)
}

// POST /reports/generate
func (h *ReportHandler) GenerateClientReport(c *gin.Context) {
	h.create(c, h.reportService.GenerateClientReport)
}

type createFunc func(ctx context.Context, req *services.CreateReportRequest, actorID uuid.UUID) (*services.CreateReportResult, error)

func (h *ReportHandler) create(c *gin.Context, fn createFunc) {
	actorID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}
	if !requireRetailer(c, req.RetailerID) {
		return
	}

	result, err := fn(c.Request.Context(), &req, actorID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, result)
}

// POST /reports/request
func (h *ReportHandler) Request(c *gin.Context) {
	clientID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}
	if !requireRetailer(c, req.RetailerID) {
		return
	}

	report, err := h.reportService.RequestReport(c.Request.Context(), &req, clientID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, report)
}

// POST /reports/:id/regenerate
func (h *ReportHandler) Regenerate(c *gin.Context) {
	id, ok := uuidParam(c, "id", "report")
	if !ok {
		return
	}
	actorID, ok := currentUser(c)
	if !ok {
		return
	}

	result, err := h.reportService.Regenerate(c.Request.Context(), id, actorID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, result)
}

// POST /reports/:id/publish
func (h *ReportHandler) Publish(c *gin.Context) {
	id, ok := uuidParam(c, "id", "report")
	if !ok {
		return
	}
	actorID, ok := currentUser(c)
	if !ok {
		return
	}

	report, err := h.reportService.Publish(c.Request.Context(), id, actorID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, report)
}

// POST /reports/:id/reject
func (h *ReportHandler) Reject(c *gin.Context) {
	id, ok := uuidParam(c, "id", "report")
	if !ok {
		return
	}
	actorID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.RejectReportRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	report, err := h.reportService.Reject(c.Request.Context(), id, actorID, req.Reason)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, report)
}

// GET /reports/:id/archive
func (h *ReportHandler) ArchiveURL(c *gin.Context) {
	id, ok := uuidParam(c, "id", "report")
	if !ok {
		return
	}

	url, err := h.reportService.ArchiveURL(c.Request.Context(), id)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"url": url})
}

// GET /retailers/:id/features
func (h *ReportHandler) Features(c *gin.Context) {
	cfg, err := h.retailerService.Config(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"retailer_id":  cfg.RetailerID,
		"features":     cfg.FeaturesEnabled,
		"visible_tabs": cfg.VisibleTabs,
	})
}
