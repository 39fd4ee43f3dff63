// internal/services/retailer_service.go
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/shareview/insights-backend/internal/models"
	"github.com/shareview/insights-backend/internal/utils"
)

type RetailerService struct {
	db     *gorm.DB
	source AnalyticsSource
}

// KeywordsSummary is the guest-facing projection of a keywords snapshot.
type KeywordsSummary struct {
	RetailerID       string         `json:"retailer_id"`
	Period           utils.Period   `json:"period"`
	TotalKeywords    int            `json:"total_keywords"`
	TotalConversions int            `json:"total_conversions"`
	OverallCTR       float64        `json:"overall_ctr"`
	OverallCVR       float64        `json:"overall_cvr"`
	Tiers            map[string]int `json:"tiers"`
	LastUpdated      time.Time      `json:"last_updated"`
}

// ProductsSummary is the guest-facing projection of a product snapshot.
type ProductsSummary struct {
	RetailerID              string         `json:"retailer_id"`
	Period                  utils.Period   `json:"period"`
	TotalProducts           int            `json:"total_products"`
	Classifications         map[string]int `json:"classifications"`
	WastedClicksPercentage  float64        `json:"wasted_clicks_percentage"`
	Top1PctConversionsShare float64        `json:"top_1_pct_conversions_share"`
	LastUpdated             time.Time      `json:"last_updated"`
}

func NewRetailerService(db *gorm.DB, source AnalyticsSource) *RetailerService {
	return &RetailerService{db: db, source: source}
}

// Config returns the retailer's configuration. An unconfigured retailer gets
// an empty config with every feature disabled.
func (s *RetailerService) Config(ctx context.Context, retailerID string) (*models.RetailerConfig, error) {
	var cfg models.RetailerConfig
	err := s.db.WithContext(ctx).First(&cfg, "retailer_id = ?", retailerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.RetailerConfig{RetailerID: retailerID, FeaturesEnabled: models.JSONB{}}, nil
	}
	if err != nil {
		return nil, utils.NewTransientError("failed to load retailer config", err)
	}
	return &cfg, nil
}

// RequireFeature fails with a ForbiddenError unless flag is enabled for the retailer.
func (s *RetailerService) RequireFeature(ctx context.Context, retailerID, flag string) error {
	cfg, err := s.Config(ctx, retailerID)
	if err != nil {
		return err
	}
	if !cfg.FeatureEnabled(flag) {
		return utils.NewForbiddenError(flag + " is not enabled for this retailer")
	}
	return nil
}

func (s *RetailerService) KeywordsSummary(ctx context.Context, retailerID string, period utils.Period) (*KeywordsSummary, error) {
	snap, err := s.source.KeywordsSnapshot(ctx, retailerID, period.Start, period.End)
	if err != nil {
		return nil, utils.NewTransientError("failed to load keywords snapshot", err)
	}
	if snap == nil {
		return nil, utils.NewNotFoundError("keywords snapshot")
	}

	return &KeywordsSummary{
		RetailerID:       retailerID,
		Period:           period,
		TotalKeywords:    snap.TotalKeywords,
		TotalConversions: snap.TotalConversions,
		OverallCTR:       snap.OverallCTR,
		OverallCVR:       snap.OverallCVR,
		Tiers: map[string]int{
			"star":            snap.TierStarCount,
			"strong":          snap.TierStrongCount,
			"underperforming": snap.TierUnderperformingCount,
			"poor":            snap.TierPoorCount,
		},
		LastUpdated: snap.LastUpdated,
	}, nil
}

func (s *RetailerService) ProductsSummary(ctx context.Context, retailerID string, period utils.Period) (*ProductsSummary, error) {
	snap, err := s.source.ProductSnapshot(ctx, retailerID, period.Start, period.End)
	if err != nil {
		return nil, utils.NewTransientError("failed to load product snapshot", err)
	}
	if snap == nil {
		return nil, utils.NewNotFoundError("product snapshot")
	}

	return &ProductsSummary{
		RetailerID:    retailerID,
		Period:        period,
		TotalProducts: snap.TotalProducts,
		Classifications: map[string]int{
			"star":           snap.StarCount,
			"good":           snap.GoodCount,
			"underperformer": snap.UnderperformerCount,
		},
		WastedClicksPercentage:  snap.WastedClicksPercentage,
		Top1PctConversionsShare: snap.Top1PctConversionsShare,
		LastUpdated:             snap.LastUpdated,
	}, nil
}
