// internal/testutil/db.go
package testutil

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/shareview/insights-backend/internal/database"
	"github.com/shareview/insights-backend/internal/models"
)

// DB opens a private in-memory SQLite database with the full schema migrated.
// A single connection keeps every statement on the same in-memory database.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=off"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("failed to open test db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { sqlDB.Close() })

	if err := database.RunMigrations(db); err != nil {
		tb.Fatalf("failed to migrate test db: %v", err)
	}
	return db
}

// Month returns the UTC bounds of the given calendar month.
func Month(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, -1)
}

// SeedSnapshots writes keywords, category and product snapshots for a month.
func SeedSnapshots(tb testing.TB, db *gorm.DB, retailerID string, start, end time.Time) {
	tb.Helper()

	rng := models.SnapshotRange{
		RetailerID:  retailerID,
		RangeType:   "month",
		RangeStart:  start,
		RangeEnd:    end,
		LastUpdated: time.Now().UTC(),
	}

	rows := []interface{}{
		&models.KeywordsSnapshot{
			SnapshotRange:            rng,
			TotalKeywords:            200,
			TotalConversions:         540,
			OverallCTR:               2.4,
			OverallCVR:               6.1,
			TierStarCount:            12,
			TierStrongCount:          30,
			TierUnderperformingCount: 90,
			TierPoorCount:            20,
		},
		&models.CategorySnapshot{
			SnapshotRange:      rng,
			TotalCategories:    40,
			OverallCTR:         1.9,
			OverallCVR:         4.2,
			HealthHealthyCount: 14,
			HealthStarCount:    6,
		},
		&models.ProductSnapshot{
			SnapshotRange:           rng,
			TotalProducts:           500,
			StarCount:               25,
			GoodCount:               75,
			UnderperformerCount:     140,
			WastedClicksPercentage:  18.5,
			Top1PctConversionsShare: 22.0,
		},
	}

	for _, row := range rows {
		if err := db.Create(row).Error; err != nil {
			tb.Fatalf("failed to seed snapshot: %v", err)
		}
	}
}

// SeedRetailer writes a retailer_config row with the given feature flags.
func SeedRetailer(tb testing.TB, db *gorm.DB, retailerID string, features models.JSONB) {
	tb.Helper()

	cfg := &models.RetailerConfig{
		RetailerID:      retailerID,
		RetailerName:    retailerID,
		FeaturesEnabled: features,
		VisibleTabs:     models.StringList{models.DomainKeywords, models.DomainCategories},
	}
	if err := db.Create(cfg).Error; err != nil {
		tb.Fatalf("failed to seed retailer: %v", err)
	}
}
