// internal/services/report_service.go
package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shareview/insights-backend/internal/database"
	"github.com/shareview/insights-backend/internal/models"
	"github.com/shareview/insights-backend/internal/utils"
)

// ReportService owns reports and their domain rows. Creation with
// auto-approval and publication each run in a single transaction.
type ReportService struct {
	db        *gorm.DB
	builder   InsightBuilder
	insights  *InsightService
	retailers *RetailerService
	archive   ReportArchive
	notifier  Notifier
}

type CreateReportRequest struct {
	RetailerID         string   `json:"retailer_id" validate:"required,retailer_id"`
	Month              string   `json:"month,omitempty" validate:"omitempty,datetime=2006-01"`
	PeriodStart        string   `json:"period_start,omitempty" validate:"required_without=Month,omitempty,datetime=2006-01-02"`
	PeriodEnd          string   `json:"period_end,omitempty" validate:"required_without=Month,omitempty,datetime=2006-01-02"`
	PeriodType         string   `json:"period_type,omitempty" validate:"omitempty,oneof=month week quarter custom"`
	Title              string   `json:"title,omitempty" validate:"max=255"`
	Description        string   `json:"description,omitempty" validate:"max=5000"`
	Domains            []string `json:"domains" validate:"required,min=1,dive,report_domain"`
	AutoApprove        bool     `json:"auto_approve"`
	HiddenFromRetailer bool     `json:"hidden_from_retailer"`
	StyleDirective     string   `json:"style_directive,omitempty" validate:"style_directive"`
}

type RejectReportRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=2000"`
}

type ReportFilter struct {
	utils.PaginationParams
	RetailerID string
	Status     string
	// VisibleOnly restricts the listing to what a retailer user may see.
	VisibleOnly bool
}

// CreateReportResult carries the new report plus per-domain build errors.
type CreateReportResult struct {
	Report     *models.Report `json:"report"`
	InsightIDs []uuid.UUID    `json:"insight_ids"`
	Errors     []string       `json:"errors"`
}

type ReportDetail struct {
	Report   *models.Report              `json:"report"`
	Insights map[string][]models.Insight `json:"insights"`
}

// reportPlan is a validated creation request.
type reportPlan struct {
	RetailerID         string
	Period             utils.Period
	Title              string
	Description        string
	Domains            []string
	ReportType         models.ReportType
	Status             models.ReportStatus
	AutoApprove        bool
	HiddenFromRetailer bool
	StyleDirective     string
	Generate           bool
}

func NewReportService(db *gorm.DB, builder InsightBuilder, insights *InsightService, retailers *RetailerService, archive ReportArchive, notifier Notifier) *ReportService {
	return &ReportService{
		db:        db,
		builder:   builder,
		insights:  insights,
		retailers: retailers,
		archive:   archive,
		notifier:  notifier,
	}
}

// Create is the staff path: insights are generated for every domain and the
// report waits for review unless AutoApprove is set.
func (s *ReportService) Create(ctx context.Context, req *CreateReportRequest, creatorID uuid.UUID) (*CreateReportResult, error) {
	plan, err := s.planFromRequest(req)
	if err != nil {
		return nil, err
	}
	plan.ReportType = models.ReportTypeStaffCurated
	plan.Generate = true
	return s.create(ctx, plan, creatorID)
}

// CreateDraft records a staff-curated report without generating insights.
func (s *ReportService) CreateDraft(ctx context.Context, req *CreateReportRequest, creatorID uuid.UUID) (*CreateReportResult, error) {
	plan, err := s.planFromRequest(req)
	if err != nil {
		return nil, err
	}
	plan.ReportType = models.ReportTypeStaffCurated
	plan.Status = models.ReportStatusDraft
	plan.AutoApprove = false
	return s.create(ctx, plan, creatorID)
}

// GenerateClientReport is the client self-serve path. It requires the
// retailer's generate flag and publishes immediately.
func (s *ReportService) GenerateClientReport(ctx context.Context, req *CreateReportRequest, clientID uuid.UUID) (*CreateReportResult, error) {
	plan, err := s.planFromRequest(req)
	if err != nil {
		return nil, err
	}
	if err := s.retailers.RequireFeature(ctx, plan.RetailerID, models.FeatureGenerate); err != nil {
		return nil, err
	}
	plan.ReportType = models.ReportTypeClientGenerated
	plan.AutoApprove = true
	plan.HiddenFromRetailer = false
	plan.Generate = true
	return s.create(ctx, plan, clientID)
}

// RequestReport records a client's request for staff to produce a report.
func (s *ReportService) RequestReport(ctx context.Context, req *CreateReportRequest, clientID uuid.UUID) (*models.Report, error) {
	plan, err := s.planFromRequest(req)
	if err != nil {
		return nil, err
	}
	if err := s.retailers.RequireFeature(ctx, plan.RetailerID, models.FeatureRequest); err != nil {
		return nil, err
	}
	plan.ReportType = models.ReportTypeClientRequested
	plan.Status = models.ReportStatusPendingApproval
	plan.AutoApprove = false
	plan.HiddenFromRetailer = false

	result, err := s.create(ctx, plan, clientID)
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.ReportRequested(ctx, result.Report)
	}
	return result.Report, nil
}

// Regenerate creates a new report with the same parameters, domains, title,
// description, type and flags as an existing one. The original is untouched.
func (s *ReportService) Regenerate(ctx context.Context, reportID uuid.UUID, actorID uuid.UUID) (*CreateReportResult, error) {
	source, err := s.Get(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if len(source.Domains) == 0 {
		return nil, utils.NewConflictError("report %s has no domains configured", source.ID)
	}

	plan := reportPlan{
		RetailerID:         source.RetailerID,
		Period:             utils.Period{Type: source.PeriodType, Start: source.PeriodStart, End: source.PeriodEnd},
		Title:              source.Title,
		Description:        source.Description,
		Domains:            source.DomainNames(),
		ReportType:         source.ReportType,
		AutoApprove:        source.AutoApprove,
		HiddenFromRetailer: source.HiddenFromRetailer,
		Generate:           true,
	}

	result, err := s.create(ctx, plan, actorID)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"source_report_id": source.ID,
		"report_id":        result.Report.ID,
		"actor_id":         actorID,
	}).Info("Report regenerated")
	return result, nil
}

func (s *ReportService) planFromRequest(req *CreateReportRequest) (reportPlan, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return reportPlan{}, utils.ValidationFailed(err)
	}

	var (
		period utils.Period
		err    error
	)
	if req.Month != "" {
		period, err = utils.ParseMonth(req.Month)
	} else {
		period, err = utils.ParsePeriod(req.PeriodType, req.PeriodStart, req.PeriodEnd)
	}
	if err != nil {
		return reportPlan{}, utils.NewValidationError(err.Error(), nil)
	}

	return reportPlan{
		RetailerID:         req.RetailerID,
		Period:             period,
		Title:              req.Title,
		Description:        req.Description,
		Domains:            uniqueDomains(req.Domains),
		AutoApprove:        req.AutoApprove,
		HiddenFromRetailer: req.HiddenFromRetailer,
		StyleDirective:     req.StyleDirective,
	}, nil
}

func uniqueDomains(domains []string) []string {
	seen := make(map[string]bool, len(domains))
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

func (s *ReportService) create(ctx context.Context, plan reportPlan, creatorID uuid.UUID) (*CreateReportResult, error) {
	result := &CreateReportResult{InsightIDs: []uuid.UUID{}, Errors: []string{}}

	// Builders only read snapshots, so they run before the transaction opens.
	built := make(map[string][]models.Insight, len(plan.Domains))
	if plan.Generate {
		for _, domain := range plan.Domains {
			out, err := s.builder.BuildInsights(ctx, BuildInput{
				RetailerID:     plan.RetailerID,
				PeriodType:     plan.Period.Type,
				PeriodStart:    plan.Period.Start,
				PeriodEnd:      plan.Period.End,
				PageType:       domain,
				TabName:        models.DefaultTabName,
				StyleDirective: plan.StyleDirective,
			})
			if err != nil {
				return nil, err
			}
			for _, msg := range out.Errors {
				result.Errors = append(result.Errors, domain+": "+msg)
			}
			for i := range out.Insights {
				out.Insights[i].CreatedBy = &creatorID
			}
			built[domain] = out.Insights
		}
	}

	status := plan.Status
	if status == "" {
		status = models.ReportStatusPendingApproval
	}
	report := &models.Report{
		RetailerID:         plan.RetailerID,
		PeriodStart:        plan.Period.Start,
		PeriodEnd:          plan.Period.End,
		PeriodType:         plan.Period.Type,
		Title:              plan.Title,
		Description:        plan.Description,
		ReportType:         plan.ReportType,
		Status:             status,
		AutoApprove:        plan.AutoApprove,
		HiddenFromRetailer: plan.HiddenFromRetailer,
		CreatedBy:          &creatorID,
	}
	if plan.AutoApprove {
		now := time.Now().UTC()
		report.Status = models.ReportStatusPublished
		report.IsActive = true
		report.PublishedBy = &creatorID
		report.PublishedAt = &now
	}
	if report.Title == "" {
		report.Title = defaultReportTitle(plan)
	}

	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		if err := tx.Create(report).Error; err != nil {
			return utils.NewTransientError("failed to create report", err)
		}

		for i, domain := range plan.Domains {
			ids, err := s.insights.InsertMany(ctx, tx, built[domain])
			if err != nil {
				return err
			}
			result.InsightIDs = append(result.InsightIDs, ids...)

			row := models.ReportDomain{
				ReportID:    report.ID,
				Domain:      domain,
				Position:    i,
				AIInsightID: primaryInsight(built[domain]),
			}
			if err := tx.Create(&row).Error; err != nil {
				return utils.NewTransientError("failed to create report domain", err)
			}
			report.Domains = append(report.Domains, row)
		}

		if plan.AutoApprove {
			if _, err := s.insights.ApproveForReport(tx, scopeOf(report, plan.Domains), creatorID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"report_id":   report.ID,
		"retailer_id": report.RetailerID,
		"report_type": report.ReportType,
		"status":      report.Status,
		"insights":    len(result.InsightIDs),
	}).Info("Report created")

	if plan.AutoApprove {
		s.afterPublish(ctx, report)
	}

	result.Report = report
	return result, nil
}

// primaryInsight picks the insight a domain row links to: the first insight
// panel, else the first insight built.
func primaryInsight(insights []models.Insight) *uuid.UUID {
	if len(insights) == 0 {
		return nil
	}
	for i := range insights {
		if insights[i].InsightType == models.InsightTypePanel {
			return &insights[i].ID
		}
	}
	return &insights[0].ID
}

func defaultReportTitle(plan reportPlan) string {
	return plan.RetailerID + " report " + plan.Period.Label()
}

func scopeOf(report *models.Report, domains []string) ReportScope {
	return ReportScope{
		RetailerID:  report.RetailerID,
		PeriodStart: report.PeriodStart,
		PeriodEnd:   report.PeriodEnd,
		Domains:     domains,
	}
}

// Publish makes a report and every insight in its scope visible. It fails
// with a ConflictError, changing nothing, if any insight in scope is not
// approved.
func (s *ReportService) Publish(ctx context.Context, reportID uuid.UUID, publisherID uuid.UUID) (*models.Report, error) {
	var report models.Report

	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&report, "id = ?", reportID).Error
		if err != nil {
			return utils.StoreError(err, "report")
		}
		if report.IsActive {
			return utils.NewConflictError("report is already published")
		}
		if report.Status == models.ReportStatusRejected {
			return utils.NewConflictError("rejected reports cannot be published")
		}

		var domains []models.ReportDomain
		if err := tx.Where("report_id = ?", report.ID).Order("position ASC").Find(&domains).Error; err != nil {
			return utils.NewTransientError("failed to load report domains", err)
		}
		if len(domains) == 0 {
			return utils.NewConflictError("report has no domains configured")
		}
		report.Domains = domains

		scope := scopeOf(&report, report.DomainNames())
		insights, err := s.insights.FindForReport(tx, scope)
		if err != nil {
			return err
		}
		if blocker := firstUnapproved(report.Domains, insights); blocker != nil {
			return utils.NewConflictError("cannot publish: insights for domain '%s' (type: %s) are not yet approved",
				blocker.PageType, blocker.InsightType)
		}

		if _, err := s.insights.ActivateForReport(tx, scope, publisherID); err != nil {
			return err
		}

		now := time.Now().UTC()
		res := tx.Model(&models.Report{}).
			Where("id = ? AND is_active = ?", report.ID, false).
			Updates(map[string]interface{}{
				"status":       models.ReportStatusPublished,
				"is_active":    true,
				"published_by": publisherID,
				"published_at": now,
			})
		if res.Error != nil {
			return utils.NewTransientError("failed to publish report", res.Error)
		}
		if res.RowsAffected == 0 {
			return utils.NewConflictError("report is already published")
		}

		report.Status = models.ReportStatusPublished
		report.IsActive = true
		report.PublishedBy = &publisherID
		report.PublishedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"report_id":    report.ID,
		"retailer_id":  report.RetailerID,
		"publisher_id": publisherID,
	}).Info("Report published")

	s.afterPublish(ctx, &report)
	return &report, nil
}

// firstUnapproved walks domains in report order and returns the first
// insight that is not approved.
func firstUnapproved(domains []models.ReportDomain, insights []models.Insight) *models.Insight {
	for _, d := range domains {
		for i := range insights {
			if insights[i].PageType == d.Domain && insights[i].Status != models.InsightStatusApproved {
				return &insights[i]
			}
		}
	}
	return nil
}

// afterPublish archives the published bundle and notifies staff. Both are
// best effort; the report is already live.
func (s *ReportService) afterPublish(ctx context.Context, report *models.Report) {
	log := logrus.WithField("report_id", report.ID)

	if s.archive != nil {
		insights, err := s.insights.ActiveForReport(ctx, scopeOf(report, report.DomainNames()))
		if err != nil {
			log.WithError(err).Warn("Failed to load insights for archive")
		} else if key, err := s.archive.Archive(ctx, report, insights); err != nil {
			log.WithError(err).Warn("Failed to archive published report")
		} else {
			if err := s.db.WithContext(ctx).Model(&models.Report{}).Where("id = ?", report.ID).
				Update("archive_key", key).Error; err != nil {
				log.WithError(err).Warn("Failed to record archive key")
			} else {
				report.ArchiveKey = key
			}
		}
	}

	if s.notifier != nil {
		s.notifier.ReportPublished(ctx, report)
	}
}

// Reject closes a report that has not been published.
func (s *ReportService) Reject(ctx context.Context, reportID uuid.UUID, actorID uuid.UUID, reason string) (*models.Report, error) {
	report, err := s.Get(ctx, reportID)
	if err != nil {
		return nil, err
	}

	res := s.db.WithContext(ctx).Model(&models.Report{}).
		Where("id = ? AND is_active = ? AND status <> ?", reportID, false, models.ReportStatusRejected).
		Update("status", models.ReportStatusRejected)
	if res.Error != nil {
		return nil, utils.NewTransientError("failed to reject report", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, utils.NewConflictError("report in status %s cannot be rejected", report.Status)
	}

	logrus.WithFields(logrus.Fields{
		"report_id": reportID,
		"actor_id":  actorID,
		"reason":    reason,
	}).Info("Report rejected")

	report.Status = models.ReportStatusRejected
	return report, nil
}

// Get loads a report with its domains in requested order.
func (s *ReportService) Get(ctx context.Context, reportID uuid.UUID) (*models.Report, error) {
	var report models.Report
	err := s.db.WithContext(ctx).
		Preload("Domains", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&report, "id = ?", reportID).Error
	if err != nil {
		return nil, utils.StoreError(err, "report")
	}
	return &report, nil
}

func (s *ReportService) List(ctx context.Context, filter ReportFilter) ([]models.Report, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Report{})
	if filter.RetailerID != "" {
		query = query.Where("retailer_id = ?", filter.RetailerID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.VisibleOnly {
		query = query.Where("is_active = ? AND hidden_from_retailer = ?", true, false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, utils.NewTransientError("failed to count reports", err)
	}

	reports := []models.Report{}
	err := utils.ApplyPagination(query, filter.PaginationParams).
		Preload("Domains", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("created_at DESC").
		Find(&reports).Error
	if err != nil {
		return nil, 0, utils.NewTransientError("failed to list reports", err)
	}
	return reports, total, nil
}

// Detail returns the report with its visible insights grouped by domain.
func (s *ReportService) Detail(ctx context.Context, reportID uuid.UUID) (*ReportDetail, error) {
	report, err := s.Get(ctx, reportID)
	if err != nil {
		return nil, err
	}
	return s.detailOf(ctx, report)
}

func (s *ReportService) detailOf(ctx context.Context, report *models.Report) (*ReportDetail, error) {
	detail := &ReportDetail{Report: report, Insights: map[string][]models.Insight{}}
	if len(report.Domains) == 0 {
		return detail, nil
	}

	insights, err := s.insights.ActiveForReport(ctx, scopeOf(report, report.DomainNames()))
	if err != nil {
		return nil, err
	}
	for _, insight := range insights {
		detail.Insights[insight.PageType] = append(detail.Insights[insight.PageType], insight)
	}
	return detail, nil
}

// ArchiveURL returns a download link for a published report's archive.
func (s *ReportService) ArchiveURL(ctx context.Context, reportID uuid.UUID) (string, error) {
	report, err := s.Get(ctx, reportID)
	if err != nil {
		return "", err
	}
	if report.ArchiveKey == "" || s.archive == nil {
		return "", utils.NewNotFoundError("report archive")
	}
	url, err := s.archive.URL(report.ArchiveKey, 15*time.Minute)
	if err != nil {
		return "", utils.NewTransientError("failed to sign archive url", err)
	}
	return url, nil
}
