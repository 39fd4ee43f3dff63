// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Base model with common fields. IDs are assigned in Go so the same schema
// runs on Postgres and SQLite.
type BaseModel struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("unsupported JSONB source")
	}

	return json.Unmarshal(bytes, j)
}

func (JSONB) GormDataType() string {
	return "json"
}

func (JSONB) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "JSONB"
	}
	return "JSON"
}

func (j JSONB) Bool(key string) bool {
	v, ok := j[key].(bool)
	return ok && v
}

// StringList is a text[] column on Postgres and an encoded array literal elsewhere.
type StringList pq.StringArray

func (l StringList) Value() (driver.Value, error) {
	return pq.StringArray(l).Value()
}

func (l *StringList) Scan(value interface{}) error {
	return (*pq.StringArray)(l).Scan(value)
}

func (StringList) GormDataType() string {
	return "text"
}

func (StringList) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}

func (l StringList) Contains(s string) bool {
	for _, v := range l {
		if v == s {
			return true
		}
	}
	return false
}

// Enums
type Role string

const (
	RoleClientViewer Role = "CLIENT_VIEWER"
	RoleClientAdmin  Role = "CLIENT_ADMIN"
	RoleSalesTeam    Role = "SALES_TEAM"
	RoleCSSAdmin     Role = "CSS_ADMIN"
)

func (r Role) IsStaff() bool {
	return r == RoleSalesTeam || r == RoleCSSAdmin
}

func (r Role) IsClient() bool {
	return r == RoleClientViewer || r == RoleClientAdmin
}

type JobStatus string

const (
	JobStatusCreated   JobStatus = "created"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

type InsightStatus string

const (
	InsightStatusDraft    InsightStatus = "draft"
	InsightStatusPending  InsightStatus = "pending"
	InsightStatusApproved InsightStatus = "approved"
	InsightStatusRejected InsightStatus = "rejected"
)

// IsReviewable reports whether the insight is still awaiting an editorial decision.
func (s InsightStatus) IsReviewable() bool {
	return s == InsightStatusDraft || s == InsightStatusPending
}

type InsightType string

const (
	InsightTypeHeadline       InsightType = "headline"
	InsightTypePanel          InsightType = "insight_panel"
	InsightTypeMarketAnalysis InsightType = "market_analysis"
	InsightTypeRecommendation InsightType = "recommendation"
)

type ReportStatus string

const (
	ReportStatusDraft           ReportStatus = "draft"
	ReportStatusPendingApproval ReportStatus = "pending_approval"
	ReportStatusApproved        ReportStatus = "approved"
	ReportStatusPublished       ReportStatus = "published"
	ReportStatusRejected        ReportStatus = "rejected"
)

type ReportType string

const (
	ReportTypeStaffCurated    ReportType = "staff_curated"
	ReportTypeClientRequested ReportType = "client_requested"
	ReportTypeClientGenerated ReportType = "client_generated"
)

// Domains (page types) known to the builder and report lifecycle.
const (
	DomainOverview   = "overview"
	DomainKeywords   = "keywords"
	DomainCategories = "categories"
	DomainProducts   = "products"
	DomainAuctions   = "auctions"
)

var KnownDomains = []string{DomainOverview, DomainKeywords, DomainCategories, DomainProducts, DomainAuctions}

const (
	PeriodTypeMonth = "month"
	DefaultTabName  = "insights"
)

// Retailer feature flags stored in retailer_config.features_enabled.
const (
	FeatureGenerate = "allow_report_generate"
	FeatureRequest  = "allow_report_request"
)
