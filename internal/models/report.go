// internal/models/report.go
package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrActiveRequiresPublished = errors.New("an active report must be published")

type Report struct {
	BaseModel
	RetailerID         string       `json:"retailer_id" gorm:"size:100;not null;index"`
	PeriodStart        time.Time    `json:"period_start" gorm:"type:date;not null"`
	PeriodEnd          time.Time    `json:"period_end" gorm:"type:date;not null"`
	PeriodType         string       `json:"period_type" gorm:"size:20;not null"`
	Title              string       `json:"title,omitempty" gorm:"size:255"`
	Description        string       `json:"description,omitempty" gorm:"type:text"`
	ReportType         ReportType   `json:"report_type" gorm:"type:varchar(30);not null"`
	Status             ReportStatus `json:"status" gorm:"type:varchar(30);not null;default:'draft';index"`
	IsActive           bool         `json:"is_active" gorm:"not null;default:false"`
	AutoApprove        bool         `json:"auto_approve" gorm:"not null;default:false"`
	HiddenFromRetailer bool         `json:"hidden_from_retailer" gorm:"not null;default:false"`
	Archived           bool         `json:"archived" gorm:"not null;default:false"`
	ArchiveKey         string       `json:"archive_key,omitempty" gorm:"size:500"`
	CreatedBy          *uuid.UUID   `json:"created_by,omitempty" gorm:"type:uuid"`
	PublishedBy        *uuid.UUID   `json:"published_by,omitempty" gorm:"type:uuid"`
	PublishedAt        *time.Time   `json:"published_at,omitempty"`

	// Relationships
	Domains []ReportDomain `json:"domains,omitempty" gorm:"foreignKey:ReportID"`
}

func (r *Report) BeforeSave(tx *gorm.DB) error {
	if r.IsActive && r.Status != ReportStatusPublished {
		return ErrActiveRequiresPublished
	}
	return nil
}

// DomainNames returns the report's domains in the order they were requested.
// Domains must be loaded ordered by position.
func (r *Report) DomainNames() []string {
	names := make([]string, 0, len(r.Domains))
	for _, d := range r.Domains {
		names = append(names, d.Domain)
	}
	return names
}

type ReportDomain struct {
	BaseModel
	ReportID    uuid.UUID  `json:"report_id" gorm:"type:uuid;not null;index"`
	Domain      string     `json:"domain" gorm:"size:50;not null"`
	Position    int        `json:"position" gorm:"not null;default:0"`
	AIInsightID *uuid.UUID `json:"ai_insight_id,omitempty" gorm:"column:ai_insight_id;type:uuid"`
}
