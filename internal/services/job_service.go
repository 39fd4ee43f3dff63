// internal/services/job_service.go
package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shareview/insights-backend/internal/models"
	"github.com/shareview/insights-backend/internal/utils"
)

// JobTracker is the store the generation driver records job progress in.
type JobTracker interface {
	Create(ctx context.Context, params CreateJobParams, actorID *uuid.UUID) (*models.GenerationJob, error)
	MarkRunning(ctx context.Context, id uuid.UUID) error
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	MarkCompletedTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
	Get(ctx context.Context, id uuid.UUID) (*models.GenerationJob, error)
}

type CreateJobParams struct {
	RetailerID  string    `json:"retailer_id" validate:"required,retailer_id"`
	PageType    string    `json:"page_type" validate:"required,max=50"`
	TabName     string    `json:"tab_name" validate:"required,max=50"`
	PeriodType  string    `json:"period_type" validate:"omitempty,oneof=month week quarter custom"`
	PeriodStart time.Time `json:"period_start" validate:"required"`
	PeriodEnd   time.Time `json:"period_end" validate:"required,gtefield=PeriodStart"`
}

type JobFilter struct {
	RetailerID string
	Status     models.JobStatus
	Limit      int
}

// JobService tracks generation jobs through created -> running -> completed|failed.
// Each transition is a conditional UPDATE on the allowed predecessor states.
type JobService struct {
	db *gorm.DB
}

func NewJobService(db *gorm.DB) *JobService {
	return &JobService{db: db}
}

func (s *JobService) Create(ctx context.Context, params CreateJobParams, actorID *uuid.UUID) (*models.GenerationJob, error) {
	if err := utils.ValidateStruct(&params); err != nil {
		return nil, utils.ValidationFailed(err)
	}
	if params.PeriodType == "" {
		params.PeriodType = models.PeriodTypeMonth
	}

	job := &models.GenerationJob{
		RetailerID:  params.RetailerID,
		PageType:    params.PageType,
		TabName:     params.TabName,
		PeriodType:  params.PeriodType,
		PeriodStart: params.PeriodStart,
		PeriodEnd:   params.PeriodEnd,
		Status:      models.JobStatusCreated,
		CreatedBy:   actorID,
	}
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, utils.NewTransientError("failed to create generation job", err)
	}
	return job, nil
}

func (s *JobService) MarkRunning(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, s.db, id, []models.JobStatus{models.JobStatusCreated}, map[string]interface{}{
		"status":     models.JobStatusRunning,
		"started_at": time.Now().UTC(),
	})
}

func (s *JobService) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	return s.MarkCompletedTx(ctx, s.db, id)
}

// MarkCompletedTx completes the job on the caller's handle, so the completion
// commits or rolls back with the caller's other writes.
func (s *JobService) MarkCompletedTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return s.transition(ctx, tx, id, []models.JobStatus{models.JobStatusRunning}, map[string]interface{}{
		"status":       models.JobStatusCompleted,
		"completed_at": time.Now().UTC(),
	})
}

// MarkFailed is allowed from created as well, for failures before the build starts.
func (s *JobService) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	return s.transition(ctx, s.db, id, []models.JobStatus{models.JobStatusCreated, models.JobStatusRunning}, map[string]interface{}{
		"status":        models.JobStatusFailed,
		"completed_at":  time.Now().UTC(),
		"error_message": message,
	})
}

func (s *JobService) transition(ctx context.Context, db *gorm.DB, id uuid.UUID, from []models.JobStatus, updates map[string]interface{}) error {
	res := db.WithContext(ctx).Model(&models.GenerationJob{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return utils.NewTransientError("failed to update generation job", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	job, err := s.get(ctx, db, id)
	if err != nil {
		return err
	}
	return utils.NewConflictError("generation job is %s and cannot move to %s", job.Status, updates["status"])
}

func (s *JobService) Get(ctx context.Context, id uuid.UUID) (*models.GenerationJob, error) {
	return s.get(ctx, s.db, id)
}

func (s *JobService) get(ctx context.Context, db *gorm.DB, id uuid.UUID) (*models.GenerationJob, error) {
	var job models.GenerationJob
	err := db.WithContext(ctx).First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("generation job")
	}
	if err != nil {
		return nil, utils.NewTransientError("failed to load generation job", err)
	}
	return &job, nil
}

// ListRecent returns the most recently created jobs first.
func (s *JobService) ListRecent(ctx context.Context, filter JobFilter) ([]models.GenerationJob, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = utils.DefaultPageLimit
	}

	query := s.db.WithContext(ctx).Model(&models.GenerationJob{})
	if filter.RetailerID != "" {
		query = query.Where("retailer_id = ?", filter.RetailerID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	jobs := []models.GenerationJob{}
	if err := query.Order("created_at DESC").Limit(filter.Limit).Find(&jobs).Error; err != nil {
		return nil, utils.NewTransientError("failed to list generation jobs", err)
	}
	return jobs, nil
}
