// internal/services/analytics_source.go
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/shareview/insights-backend/internal/models"
)

// AnalyticsSource reads the snapshot rows the builder derives insights from.
// A missing snapshot is reported as (nil, nil).
type AnalyticsSource interface {
	KeywordsSnapshot(ctx context.Context, retailerID string, start, end time.Time) (*models.KeywordsSnapshot, error)
	CategorySnapshot(ctx context.Context, retailerID string, start, end time.Time) (*models.CategorySnapshot, error)
	ProductSnapshot(ctx context.Context, retailerID string, start, end time.Time) (*models.ProductSnapshot, error)
}

type SnapshotStore struct {
	db *gorm.DB
}

func NewSnapshotStore(db *gorm.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

func (s *SnapshotStore) KeywordsSnapshot(ctx context.Context, retailerID string, start, end time.Time) (*models.KeywordsSnapshot, error) {
	var snap models.KeywordsSnapshot
	if err := s.first(ctx, &snap, retailerID, start, end); err != nil {
		return nil, err
	}
	if snap.ID == 0 {
		return nil, nil
	}
	return &snap, nil
}

func (s *SnapshotStore) CategorySnapshot(ctx context.Context, retailerID string, start, end time.Time) (*models.CategorySnapshot, error) {
	var snap models.CategorySnapshot
	if err := s.first(ctx, &snap, retailerID, start, end); err != nil {
		return nil, err
	}
	if snap.ID == 0 {
		return nil, nil
	}
	return &snap, nil
}

func (s *SnapshotStore) ProductSnapshot(ctx context.Context, retailerID string, start, end time.Time) (*models.ProductSnapshot, error) {
	var snap models.ProductSnapshot
	if err := s.first(ctx, &snap, retailerID, start, end); err != nil {
		return nil, err
	}
	if snap.ID == 0 {
		return nil, nil
	}
	return &snap, nil
}

func (s *SnapshotStore) first(ctx context.Context, dest interface{}, retailerID string, start, end time.Time) error {
	err := s.db.WithContext(ctx).
		Where("retailer_id = ? AND range_type = ? AND range_start = ? AND range_end = ?",
			retailerID, models.PeriodTypeMonth, start, end).
		Order("last_updated DESC").
		First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}
