// internal/database/connection.go
package database

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/shareview/insights-backend/internal/config"
	"github.com/shareview/insights-backend/internal/models"
)

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel(cfg.LogLevel)),
	}

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.Info("Database connection established successfully")
	return db, nil
}

func logLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logrus.WithError(err).Error("Error getting underlying sql.DB")
		return
	}

	if err := sqlDB.Close(); err != nil {
		logrus.WithError(err).Error("Error closing database connection")
	} else {
		logrus.Info("Database connection closed successfully")
	}
}

// AllModels lists every table owned by this service, in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&models.RetailerConfig{},
		&models.KeywordsSnapshot{},
		&models.CategorySnapshot{},
		&models.ProductSnapshot{},
		&models.GenerationJob{},
		&models.Insight{},
		&models.Report{},
		&models.ReportDomain{},
		&models.AccessToken{},
		&models.AuditLog{},
		&models.AdminNotification{},
	}
}

func RunMigrations(db *gorm.DB) error {
	logrus.Info("Running database migrations...")

	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create indexes
	if db.Dialector.Name() == "postgres" {
		createIndexes(db)
	}

	logrus.Info("Database migrations completed successfully")
	return nil
}

func createIndexes(db *gorm.DB) {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_generation_jobs_created ON generation_jobs(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_generation_jobs_scope ON generation_jobs(retailer_id, page_type, period_start)",
		"CREATE INDEX IF NOT EXISTS idx_ai_insights_status_created ON ai_insights(status, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_reports_retailer_visible ON reports(retailer_id, created_at DESC) WHERE is_active = true AND hidden_from_retailer = false",
		"CREATE INDEX IF NOT EXISTS idx_report_domains_report_domain ON report_domains(report_id, domain)",
		"CREATE INDEX IF NOT EXISTS idx_access_tokens_scope ON retailer_access_tokens(retailer_id, report_id) WHERE is_active = true",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_created ON audit_logs(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_admin_notifications_status ON admin_notifications(status, priority)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			logrus.WithError(err).WithField("index", index).Warn("Failed to create index")
			// Continue with other indexes instead of failing completely
		}
	}
}

// SeedInitialData creates a demo retailer for local development.
func SeedInitialData(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.RetailerConfig{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count retailer config: %w", err)
	}
	if count > 0 {
		return nil
	}

	demo := &models.RetailerConfig{
		RetailerID:   "demo",
		RetailerName: "Demo Retailer",
		FeaturesEnabled: models.JSONB{
			models.FeatureGenerate: true,
			models.FeatureRequest:  true,
		},
		VisibleTabs: models.StringList{models.DomainOverview, models.DomainKeywords, models.DomainCategories, models.DomainProducts},
	}
	if err := db.Create(demo).Error; err != nil {
		return fmt.Errorf("failed to seed retailer config: %w", err)
	}

	logrus.Info("Seeded demo retailer config")
	return nil
}

// WithTransaction runs fn inside a transaction on db, rolling back on error
// or panic.
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
