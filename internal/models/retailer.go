// internal/models/retailer.go
package models

import (
	"time"
)

type RetailerConfig struct {
	RetailerID      string     `json:"retailer_id" gorm:"primaryKey;size:100"`
	RetailerName    string     `json:"retailer_name" gorm:"size:255"`
	FeaturesEnabled JSONB      `json:"features_enabled"`
	VisibleTabs     StringList `json:"visible_tabs"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (RetailerConfig) TableName() string {
	return "retailer_config"
}

func (c *RetailerConfig) FeatureEnabled(flag string) bool {
	return c.FeaturesEnabled.Bool(flag)
}

// Snapshot rows are written by the analytics pipeline and only read here.
type SnapshotRange struct {
	RetailerID  string    `json:"retailer_id" gorm:"size:100;not null;index:,composite:range"`
	RangeType   string    `json:"range_type" gorm:"size:20;not null;index:,composite:range"`
	RangeStart  time.Time `json:"range_start" gorm:"type:date;not null;index:,composite:range"`
	RangeEnd    time.Time `json:"range_end" gorm:"type:date;not null;index:,composite:range"`
	LastUpdated time.Time `json:"last_updated"`
}

type KeywordsSnapshot struct {
	ID uint `json:"-" gorm:"primaryKey"`
	SnapshotRange
	TotalKeywords            int     `json:"total_keywords"`
	TotalConversions         int     `json:"total_conversions"`
	OverallCTR               float64 `json:"overall_ctr" gorm:"column:overall_ctr"`
	OverallCVR               float64 `json:"overall_cvr" gorm:"column:overall_cvr"`
	TierStarCount            int     `json:"tier_star_count"`
	TierStrongCount          int     `json:"tier_strong_count"`
	TierUnderperformingCount int     `json:"tier_underperforming_count"`
	TierPoorCount            int     `json:"tier_poor_count"`
}

func (KeywordsSnapshot) TableName() string {
	return "keywords_snapshots"
}

type CategorySnapshot struct {
	ID uint `json:"-" gorm:"primaryKey"`
	SnapshotRange
	TotalCategories    int     `json:"total_categories"`
	OverallCTR         float64 `json:"overall_ctr" gorm:"column:overall_ctr"`
	OverallCVR         float64 `json:"overall_cvr" gorm:"column:overall_cvr"`
	HealthHealthyCount int     `json:"health_healthy_count"`
	HealthStarCount    int     `json:"health_star_count"`
}

func (CategorySnapshot) TableName() string {
	return "category_performance_snapshots"
}

type ProductSnapshot struct {
	ID uint `json:"-" gorm:"primaryKey"`
	SnapshotRange
	TotalProducts           int     `json:"total_products"`
	StarCount               int     `json:"star_count"`
	GoodCount               int     `json:"good_count"`
	UnderperformerCount     int     `json:"underperformer_count"`
	WastedClicksPercentage  float64 `json:"wasted_clicks_percentage"`
	Top1PctConversionsShare float64 `json:"top_1_pct_conversions_share" gorm:"column:top_1_pct_conversions_share"`
}

func (ProductSnapshot) TableName() string {
	return "product_performance_snapshots"
}
