// internal/database/connection_test.go
package database

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/shareview/insights-backend/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func TestRunMigrationsCreatesEveryTable(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, RunMigrations(db))

	for _, model := range AllModels() {
		assert.True(t, db.Migrator().HasTable(model), "%T", model)
	}
}

func TestCustomColumnTypesRoundTrip(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, RunMigrations(db))

	cfg := &models.RetailerConfig{
		RetailerID:      "boots",
		RetailerName:    "Boots",
		FeaturesEnabled: models.JSONB{models.FeatureGenerate: true},
		VisibleTabs:     models.StringList{models.DomainKeywords, models.DomainProducts},
	}
	require.NoError(t, db.Create(cfg).Error)

	var loaded models.RetailerConfig
	require.NoError(t, db.First(&loaded, "retailer_id = ?", "boots").Error)
	assert.True(t, loaded.FeatureEnabled(models.FeatureGenerate))
	assert.Equal(t, models.StringList{models.DomainKeywords, models.DomainProducts}, loaded.VisibleTabs)

	audit := &models.AuditLog{Action: "POST /v1/reports", NewValues: models.JSONB{"retailer_id": "boots"}}
	require.NoError(t, db.Create(audit).Error)
}
