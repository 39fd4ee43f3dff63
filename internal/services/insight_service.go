// internal/services/insight_service.go
package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/shareview/insights-backend/internal/models"
	"github.com/shareview/insights-backend/internal/utils"
)

// InsightService owns ai_insights rows and their editorial transitions.
// Every transition writes status and is_active in one conditional UPDATE.
type InsightService struct {
	db *gorm.DB
}

type InsightFilter struct {
	utils.PaginationParams
	Status     string
	RetailerID string
	PageType   string
}

type InsightListItem struct {
	models.Insight
	ReportID *uuid.UUID `json:"report_id,omitempty" gorm:"column:report_id"`
}

type ReviewInsightRequest struct {
	Notes string `json:"notes,omitempty" validate:"max=2000"`
}

type UpdateInsightRequest struct {
	InsightData json.RawMessage       `json:"insight_data,omitempty"`
	Status      *models.InsightStatus `json:"status,omitempty" validate:"omitempty,oneof=draft pending"`
	ReviewNotes *string               `json:"review_notes,omitempty" validate:"omitempty,max=2000"`
}

// ReportScope selects the insights covered by a report.
type ReportScope struct {
	RetailerID  string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Domains     []string
}

var reviewableStatuses = []models.InsightStatus{models.InsightStatusDraft, models.InsightStatusPending}

func NewInsightService(db *gorm.DB) *InsightService {
	return &InsightService{db: db}
}

// InsertMany bulk-inserts on the caller's transaction and returns the new ids.
func (s *InsightService) InsertMany(ctx context.Context, tx *gorm.DB, insights []models.Insight) ([]uuid.UUID, error) {
	if len(insights) == 0 {
		return []uuid.UUID{}, nil
	}

	for i := range insights {
		if insights[i].IsActive && insights[i].Status != models.InsightStatusApproved {
			return nil, utils.NewValidationError("an active insight must be approved", nil)
		}
		if !models.IsKnownInsightType(insights[i].InsightType) {
			return nil, utils.NewValidationError("unknown insight type "+string(insights[i].InsightType), nil)
		}
	}

	if err := tx.WithContext(ctx).Create(&insights).Error; err != nil {
		return nil, utils.NewTransientError("failed to insert insights", err)
	}

	ids := make([]uuid.UUID, len(insights))
	for i := range insights {
		ids[i] = insights[i].ID
	}
	return ids, nil
}

func (s *InsightService) Get(ctx context.Context, id uuid.UUID) (*models.Insight, error) {
	var insight models.Insight
	if err := s.db.WithContext(ctx).First(&insight, "id = ?", id).Error; err != nil {
		return nil, utils.StoreError(err, "insight")
	}
	return &insight, nil
}

func (s *InsightService) List(ctx context.Context, filter InsightFilter) ([]InsightListItem, int64, error) {
	if filter.Status == "" {
		filter.Status = string(models.InsightStatusPending)
	}

	scope := func(db *gorm.DB) *gorm.DB {
		if filter.Status != "all" {
			db = db.Where("ai_insights.status = ?", filter.Status)
		}
		if filter.RetailerID != "" {
			db = db.Where("ai_insights.retailer_id = ?", filter.RetailerID)
		}
		if filter.PageType != "" {
			db = db.Where("ai_insights.page_type = ?", filter.PageType)
		}
		return db
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Insight{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, utils.NewTransientError("failed to count insights", err)
	}

	items := []InsightListItem{}
	query := s.db.WithContext(ctx).Table("ai_insights").
		Select("ai_insights.*, (SELECT rd.report_id FROM report_domains rd WHERE rd.ai_insight_id = ai_insights.id ORDER BY rd.created_at DESC LIMIT 1) AS report_id").
		Scopes(scope).
		Order("ai_insights.created_at DESC")
	if err := utils.ApplyPagination(query, filter.PaginationParams).Scan(&items).Error; err != nil {
		return nil, 0, utils.NewTransientError("failed to list insights", err)
	}

	return items, total, nil
}

// SetStatus applies one of the editorial transitions by target status.
func (s *InsightService) SetStatus(ctx context.Context, id uuid.UUID, status models.InsightStatus, actorID uuid.UUID, notes string) (*models.Insight, error) {
	switch status {
	case models.InsightStatusApproved:
		return s.Approve(ctx, id, actorID, notes)
	case models.InsightStatusRejected:
		return s.Reject(ctx, id, actorID, notes)
	default:
		return nil, utils.NewValidationError("unsupported status transition to "+string(status), nil)
	}
}

// Approve moves a draft or pending insight to approved and makes it visible.
func (s *InsightService) Approve(ctx context.Context, id uuid.UUID, actorID uuid.UUID, notes string) (*models.Insight, error) {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":      models.InsightStatusApproved,
		"is_active":   true,
		"approved_by": actorID,
		"approved_at": now,
	}
	if notes != "" {
		updates["review_notes"] = notes
	}
	return s.transition(ctx, id, reviewableStatuses, updates, "insight in status %s cannot be approved")
}

// Reject moves a draft or pending insight to rejected and hides it.
func (s *InsightService) Reject(ctx context.Context, id uuid.UUID, actorID uuid.UUID, notes string) (*models.Insight, error) {
	updates := map[string]interface{}{
		"status":    models.InsightStatusRejected,
		"is_active": false,
	}
	if notes != "" {
		updates["review_notes"] = notes
	}
	insight, err := s.transition(ctx, id, reviewableStatuses, updates, "insight in status %s cannot be rejected")
	if err == nil {
		logrus.WithFields(logrus.Fields{"insight_id": id, "actor_id": actorID}).Info("Insight rejected")
	}
	return insight, err
}

// Publish records the publisher of an approved insight.
func (s *InsightService) Publish(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (*models.Insight, error) {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":       models.InsightStatusApproved,
		"is_active":    true,
		"published_by": actorID,
		"published_at": now,
	}
	return s.transition(ctx, id, []models.InsightStatus{models.InsightStatusApproved}, updates, "only approved insights can be published")
}

// UpdatePayload rewrites the payload of an insight still under review. The
// payload is re-validated against the insight's own type.
func (s *InsightService) UpdatePayload(ctx context.Context, id uuid.UUID, req *UpdateInsightRequest) (*models.Insight, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, utils.ValidationFailed(err)
	}
	if len(req.InsightData) == 0 && req.Status == nil && req.ReviewNotes == nil {
		return nil, utils.NewValidationError("nothing to update", nil)
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.IsReviewable() {
		return nil, utils.NewConflictError("insight in status %s cannot be edited", current.Status)
	}

	updates := map[string]interface{}{}
	if len(req.InsightData) > 0 {
		payload, err := models.DecodePayload(current.InsightType, req.InsightData)
		if err != nil {
			return nil, utils.NewValidationError(err.Error(), nil)
		}
		raw, err := models.EncodePayload(payload)
		if err != nil {
			return nil, utils.NewValidationError(err.Error(), nil)
		}
		updates["insight_data"] = raw
	}
	if req.Status != nil {
		updates["status"] = *req.Status
		updates["is_active"] = false
	}
	if req.ReviewNotes != nil {
		updates["review_notes"] = *req.ReviewNotes
	}

	return s.transition(ctx, id, reviewableStatuses, updates, "insight in status %s cannot be edited")
}

func (s *InsightService) transition(ctx context.Context, id uuid.UUID, from []models.InsightStatus, updates map[string]interface{}, conflict string) (*models.Insight, error) {
	var insight models.Insight
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&insight, "id = ?", id).Error; err != nil {
			return utils.StoreError(err, "insight")
		}

		res := tx.Model(&models.Insight{}).Where("id = ? AND status IN ?", id, from).Updates(updates)
		if res.Error != nil {
			return utils.NewTransientError("failed to update insight", res.Error)
		}
		if res.RowsAffected == 0 {
			return utils.NewConflictError(conflict, insight.Status)
		}

		return tx.First(&insight, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return &insight, nil
}

// FindForReport loads every insight in scope on tx.
func (s *InsightService) FindForReport(tx *gorm.DB, scope ReportScope) ([]models.Insight, error) {
	var insights []models.Insight
	err := tx.Where("retailer_id = ? AND period_start = ? AND period_end = ? AND page_type IN ?",
		scope.RetailerID, scope.PeriodStart, scope.PeriodEnd, scope.Domains).
		Order("created_at ASC").
		Find(&insights).Error
	if err != nil {
		return nil, utils.NewTransientError("failed to load report insights", err)
	}
	return insights, nil
}

// ApproveForReport approves and activates every insight in scope, so an
// auto-published report never covers an unapproved row.
func (s *InsightService) ApproveForReport(tx *gorm.DB, scope ReportScope, actorID uuid.UUID) (int64, error) {
	now := time.Now().UTC()
	res := tx.Model(&models.Insight{}).
		Where("retailer_id = ? AND period_start = ? AND period_end = ? AND page_type IN ?",
			scope.RetailerID, scope.PeriodStart, scope.PeriodEnd, scope.Domains).
		Updates(map[string]interface{}{
			"status":      models.InsightStatusApproved,
			"is_active":   true,
			"approved_by": actorID,
			"approved_at": now,
		})
	if res.Error != nil {
		return 0, utils.NewTransientError("failed to approve report insights", res.Error)
	}
	return res.RowsAffected, nil
}

// ActivateForReport makes every approved insight in scope visible.
func (s *InsightService) ActivateForReport(tx *gorm.DB, scope ReportScope, publisherID uuid.UUID) (int64, error) {
	now := time.Now().UTC()
	res := tx.Model(&models.Insight{}).
		Where("retailer_id = ? AND period_start = ? AND period_end = ? AND page_type IN ? AND status = ?",
			scope.RetailerID, scope.PeriodStart, scope.PeriodEnd, scope.Domains, models.InsightStatusApproved).
		Updates(map[string]interface{}{
			"is_active":    true,
			"published_by": publisherID,
			"published_at": now,
		})
	if res.Error != nil {
		return 0, utils.NewTransientError("failed to activate report insights", res.Error)
	}
	return res.RowsAffected, nil
}

// ActiveForReport returns the visible insights in scope, for read paths.
func (s *InsightService) ActiveForReport(ctx context.Context, scope ReportScope) ([]models.Insight, error) {
	var insights []models.Insight
	err := s.db.WithContext(ctx).
		Where("retailer_id = ? AND period_start = ? AND period_end = ? AND page_type IN ? AND is_active = ?",
			scope.RetailerID, scope.PeriodStart, scope.PeriodEnd, scope.Domains, true).
		Order("page_type ASC, created_at ASC").
		Find(&insights).Error
	if err != nil {
		return nil, utils.NewTransientError("failed to load report insights", err)
	}
	return insights, nil
}
