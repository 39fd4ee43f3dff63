// internal/services/notification_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/shareview/insights-backend/internal/models"
	"github.com/shareview/insights-backend/internal/utils"
)

// Notifier raises staff-facing notifications. Failures are logged, never returned
// to the operation that triggered them.
type Notifier interface {
	JobFailed(ctx context.Context, job *models.GenerationJob, message string)
	ReportRequested(ctx context.Context, report *models.Report)
	ReportPublished(ctx context.Context, report *models.Report)
}

type NotificationService struct {
	db *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{db: db}
}

func (s *NotificationService) JobFailed(ctx context.Context, job *models.GenerationJob, message string) {
	s.create(ctx, &models.AdminNotification{
		Type:                models.NotificationJobFailed,
		Title:               "Insight generation failed",
		Message:             fmt.Sprintf("Generation for %s/%s (%s) failed: %s", job.RetailerID, job.PageType, job.PeriodStart.Format(utils.DateLayout), message),
		Priority:            "high",
		RetailerID:          job.RetailerID,
		RelatedResourceType: "generation_job",
		RelatedResourceID:   &job.ID,
	})
}

func (s *NotificationService) ReportRequested(ctx context.Context, report *models.Report) {
	s.create(ctx, &models.AdminNotification{
		Type:                models.NotificationReportRequested,
		Title:               "New report request",
		Message:             fmt.Sprintf("%s requested a report for %s to %s", report.RetailerID, report.PeriodStart.Format(utils.DateLayout), report.PeriodEnd.Format(utils.DateLayout)),
		Priority:            "medium",
		RetailerID:          report.RetailerID,
		RelatedResourceType: "report",
		RelatedResourceID:   &report.ID,
	})
}

func (s *NotificationService) ReportPublished(ctx context.Context, report *models.Report) {
	s.create(ctx, &models.AdminNotification{
		Type:                models.NotificationReportPublished,
		Title:               "Report published",
		Message:             fmt.Sprintf("Report %q for %s is now live", report.Title, report.RetailerID),
		Priority:            "low",
		RetailerID:          report.RetailerID,
		RelatedResourceType: "report",
		RelatedResourceID:   &report.ID,
	})
}

func (s *NotificationService) create(ctx context.Context, n *models.AdminNotification) {
	if n.Status == "" {
		n.Status = "unread"
	}
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		logrus.WithError(err).WithField("type", n.Type).Error("Failed to create notification")
	}
}

func (s *NotificationService) ListUnread(ctx context.Context, limit int) ([]models.AdminNotification, error) {
	if limit <= 0 || limit > 100 {
		limit = utils.DefaultPageLimit
	}
	notifications := []models.AdminNotification{}
	err := s.db.WithContext(ctx).
		Where("status = ?", "unread").
		Order("created_at DESC").
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, utils.NewTransientError("failed to list notifications", err)
	}
	return notifications, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Model(&models.AdminNotification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": "read", "read_at": time.Now().UTC()})
	if res.Error != nil {
		return utils.NewTransientError("failed to update notification", res.Error)
	}
	if res.RowsAffected == 0 {
		return utils.NewNotFoundError("notification")
	}
	return nil
}
