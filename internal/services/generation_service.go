// internal/services/generation_service.go
package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/shareview/insights-backend/internal/database"
	"github.com/shareview/insights-backend/internal/models"
	"github.com/shareview/insights-backend/internal/utils"
)

type GenerateRequest struct {
	RetailerID     string `json:"retailer_id" validate:"required,retailer_id"`
	PageType       string `json:"page_type" validate:"required,report_domain"`
	TabName        string `json:"tab_name" validate:"omitempty,max=50"`
	PeriodType     string `json:"period_type" validate:"omitempty,oneof=month week quarter custom"`
	PeriodStart    string `json:"period_start" validate:"required,datetime=2006-01-02"`
	PeriodEnd      string `json:"period_end" validate:"required,datetime=2006-01-02"`
	StyleDirective string `json:"style_directive,omitempty" validate:"style_directive"`
}

type GenerationOutcome struct {
	JobID             uuid.UUID        `json:"job_id"`
	Status            models.JobStatus `json:"status"`
	InsightsGenerated int              `json:"insights_generated"`
	InsightIDs        []uuid.UUID      `json:"insight_ids"`
	Errors            []string         `json:"errors"`
}

// GenerationService drives one synchronous build+persist cycle per request and
// records its progress as a generation job.
type GenerationService struct {
	db         *gorm.DB
	jobs       JobTracker
	builder    InsightBuilder
	insights   *InsightService
	locker     GenerationLocker
	notifier   Notifier
	defaultTab string
}

func NewGenerationService(db *gorm.DB, jobs JobTracker, builder InsightBuilder, insights *InsightService, locker GenerationLocker, notifier Notifier, defaultTab string) *GenerationService {
	if locker == nil {
		locker = NoopLocker{}
	}
	if defaultTab == "" {
		defaultTab = models.DefaultTabName
	}
	return &GenerationService{
		db:         db,
		jobs:       jobs,
		builder:    builder,
		insights:   insights,
		locker:     locker,
		notifier:   notifier,
		defaultTab: defaultTab,
	}
}

func (s *GenerationService) Generate(ctx context.Context, req *GenerateRequest, actorID uuid.UUID) (*GenerationOutcome, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, utils.ValidationFailed(err)
	}
	period, err := utils.ParsePeriod(req.PeriodType, req.PeriodStart, req.PeriodEnd)
	if err != nil {
		return nil, utils.NewValidationError(err.Error(), nil)
	}
	tab := req.TabName
	if tab == "" {
		tab = s.defaultTab
	}

	key := GenerationLockKey(req.RetailerID, req.PageType, tab, period)
	release, err := s.locker.Acquire(ctx, key)
	if errors.Is(err, ErrLockHeld) {
		return nil, utils.NewConflictError("generation for %s/%s %s is already in progress", req.RetailerID, req.PageType, period.Label())
	}
	if err != nil {
		return nil, utils.NewTransientError("failed to acquire generation lock", err)
	}
	defer release()

	job, err := s.jobs.Create(ctx, CreateJobParams{
		RetailerID:  req.RetailerID,
		PageType:    req.PageType,
		TabName:     tab,
		PeriodType:  period.Type,
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
	}, &actorID)
	if err != nil {
		return nil, err
	}

	log := logrus.WithFields(logrus.Fields{
		"job_id":      job.ID,
		"retailer_id": job.RetailerID,
		"page_type":   job.PageType,
		"period":      period.Label(),
	})

	outcome, runErr := s.run(ctx, job, req.StyleDirective, actorID)
	if runErr != nil {
		log.WithError(runErr).Error("Insight generation failed")
		// a fresh context keeps the failure recordable after request cancellation
		if err := s.jobs.MarkFailed(context.Background(), job.ID, runErr.Error()); err != nil {
			log.WithError(err).Error("Failed to record generation failure")
		}
		if s.notifier != nil {
			s.notifier.JobFailed(context.Background(), job, runErr.Error())
		}
		return nil, runErr
	}

	log.WithField("insights", outcome.InsightsGenerated).Info("Insight generation completed")
	return outcome, nil
}

func (s *GenerationService) run(ctx context.Context, job *models.GenerationJob, style string, actorID uuid.UUID) (*GenerationOutcome, error) {
	if err := s.jobs.MarkRunning(ctx, job.ID); err != nil {
		return nil, err
	}

	result, err := s.builder.BuildInsights(ctx, BuildInput{
		RetailerID:     job.RetailerID,
		PeriodType:     job.PeriodType,
		PeriodStart:    job.PeriodStart,
		PeriodEnd:      job.PeriodEnd,
		PageType:       job.PageType,
		TabName:        job.TabName,
		StyleDirective: style,
	})
	if err != nil {
		return nil, err
	}

	for i := range result.Insights {
		result.Insights[i].CreatedBy = &actorID
	}

	// insights and the completed state commit together
	var ids []uuid.UUID
	err = database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		var insertErr error
		ids, insertErr = s.insights.InsertMany(ctx, tx, result.Insights)
		if insertErr != nil {
			return insertErr
		}
		return s.jobs.MarkCompletedTx(ctx, tx, job.ID)
	})
	if err != nil {
		return nil, err
	}

	return &GenerationOutcome{
		JobID:             job.ID,
		Status:            models.JobStatusCompleted,
		InsightsGenerated: len(ids),
		InsightIDs:        ids,
		Errors:            result.Errors,
	}, nil
}
