// internal/handlers/access.go
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shareview/insights-backend/internal/models"
	"github.com/shareview/insights-backend/internal/services"
	"github.com/shareview/insights-backend/internal/utils"
)

const accessSessionHeader = "X-Access-Session"

// AccessHandler serves the unauthenticated guest paths. Every request
// re-validates the token in the path.
type AccessHandler struct {
	accessService   *services.AccessService
	retailerService *services.RetailerService
	cookieSecure    bool
}

func NewAccessHandler(accessService *services.AccessService, retailerService *services.RetailerService, cookieSecure bool) *AccessHandler {
	return &AccessHandler{
		accessService:   accessService,
		retailerService: retailerService,
		cookieSecure:    cookieSecure,
	}
}

func sessionMarker(c *gin.Context, token string) string {
	if marker, err := c.Cookie(services.SessionCookieName(token)); err == nil && marker != "" {
		return marker
	}
	return c.GetHeader(accessSessionHeader)
}

// validate checks the path token, optionally against the :id retailer, and
// writes the failure response itself.
func (h *AccessHandler) validate(c *gin.Context, retailerID string) (*services.TokenValidation, bool) {
	token := c.Param("token")
	validation, err := h.accessService.Validate(c.Request.Context(), token, retailerID, sessionMarker(c, token))
	if err != nil {
		utils.HandleServiceError(c, err)
		return nil, false
	}
	if err := validation.Err(); err != nil {
		utils.HandleServiceError(c, err)
		return nil, false
	}
	return validation, true
}

// POST /access/:token/unlock
func (h *AccessHandler) Unlock(c *gin.Context) {
	var req services.UnlockRequest
	if !bindJSON(c, &req) {
		return
	}

	token := c.Param("token")
	marker, err := h.accessService.Unlock(c.Request.Context(), token, req.Password)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	ttl := h.accessService.SessionTTL()
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(services.SessionCookieName(token), marker, int(ttl/time.Second), "/", "", h.cookieSecure, true)

	utils.SuccessResponse(c, gin.H{
		"unlocked":   true,
		"expires_in": int(ttl / time.Second),
	})
}

// GET /access/:token/reports
func (h *AccessHandler) ListReports(c *gin.Context) {
	validation, ok := h.validate(c, "")
	if !ok {
		return
	}

	reports, err := h.accessService.ListReports(c.Request.Context(), validation)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, reports)
}

// GET /access/:token/reports/:reportId
func (h *AccessHandler) GetReport(c *gin.Context) {
	reportID, ok := uuidParam(c, "reportId", "report")
	if !ok {
		return
	}
	validation, ok := h.validate(c, "")
	if !ok {
		return
	}

	detail, err := h.accessService.ReportDetail(c.Request.Context(), validation, reportID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, detail)
}

// periodQuery reads ?period=YYYY-MM, or period_start and period_end.
func periodQuery(c *gin.Context) (utils.Period, bool) {
	var (
		period utils.Period
		err    error
	)
	if month := c.Query("period"); month != "" {
		period, err = utils.ParseMonth(month)
	} else {
		period, err = utils.ParsePeriod(c.Query("period_type"), c.Query("period_start"), c.Query("period_end"))
	}
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return utils.Period{}, false
	}
	return period, true
}

// GET /access/:token/retailers/:id/insights
func (h *AccessHandler) PageInsights(c *gin.Context) {
	validation, ok := h.validate(c, c.Param("id"))
	if !ok {
		return
	}
	period, ok := periodQuery(c)
	if !ok {
		return
	}
	pageType := c.Query("page_type")
	if pageType == "" {
		utils.BadRequestResponse(c, "page_type is required", nil)
		return
	}

	insights, err := h.accessService.PageInsights(c.Request.Context(), validation, pageType, period)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, insights)
}

// GET /access/:token/retailers/:id/keywords
func (h *AccessHandler) Keywords(c *gin.Context) {
	validation, ok := h.validate(c, c.Param("id"))
	if !ok {
		return
	}
	period, ok := periodQuery(c)
	if !ok {
		return
	}
	if err := h.accessService.CheckScope(c.Request.Context(), validation, models.DomainKeywords, period); err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	summary, err := h.retailerService.KeywordsSummary(c.Request.Context(), validation.RetailerID, period)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, summary)
}

// GET /access/:token/retailers/:id/products
func (h *AccessHandler) Products(c *gin.Context) {
	validation, ok := h.validate(c, c.Param("id"))
	if !ok {
		return
	}
	period, ok := periodQuery(c)
	if !ok {
		return
	}
	if err := h.accessService.CheckScope(c.Request.Context(), validation, models.DomainProducts, period); err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	summary, err := h.retailerService.ProductsSummary(c.Request.Context(), validation.RetailerID, period)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, summary)
}
