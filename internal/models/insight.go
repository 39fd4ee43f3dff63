// internal/models/insight.go
package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrActiveRequiresApproval = errors.New("an active insight must be approved")

type Insight struct {
	BaseModel
	RetailerID      string         `json:"retailer_id" gorm:"size:100;not null;index:idx_ai_insights_scope"`
	PageType        string         `json:"page_type" gorm:"size:50;not null;index:idx_ai_insights_scope"`
	TabName         string         `json:"tab_name" gorm:"size:50;not null"`
	PeriodType      string         `json:"period_type" gorm:"size:20;not null"`
	PeriodStart     time.Time      `json:"period_start" gorm:"type:date;not null;index:idx_ai_insights_scope"`
	PeriodEnd       time.Time      `json:"period_end" gorm:"type:date;not null;index:idx_ai_insights_scope"`
	InsightType     InsightType    `json:"insight_type" gorm:"type:varchar(30);not null"`
	InsightData     datatypes.JSON `json:"insight_data" gorm:"not null"`
	ModelName       string         `json:"model_name,omitempty" gorm:"size:100"`
	ModelVersion    string         `json:"model_version,omitempty" gorm:"size:50"`
	ConfidenceScore *float64       `json:"confidence_score,omitempty"`
	PromptHash      string         `json:"prompt_hash,omitempty" gorm:"size:64"`
	Status          InsightStatus  `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	IsActive        bool           `json:"is_active" gorm:"not null;default:false"`
	CreatedBy       *uuid.UUID     `json:"created_by,omitempty" gorm:"type:uuid"`
	ApprovedBy      *uuid.UUID     `json:"approved_by,omitempty" gorm:"type:uuid"`
	ApprovedAt      *time.Time     `json:"approved_at,omitempty"`
	PublishedBy     *uuid.UUID     `json:"published_by,omitempty" gorm:"type:uuid"`
	PublishedAt     *time.Time     `json:"published_at,omitempty"`
	ReviewNotes     string         `json:"review_notes,omitempty" gorm:"type:text"`
}

func (Insight) TableName() string {
	return "ai_insights"
}

func (i *Insight) BeforeSave(tx *gorm.DB) error {
	if i.IsActive && i.Status != InsightStatusApproved {
		return ErrActiveRequiresApproval
	}
	return nil
}

// SetPayload writes the payload together with its type tag.
func (i *Insight) SetPayload(p InsightPayload) error {
	raw, err := EncodePayload(p)
	if err != nil {
		return err
	}
	i.InsightType = p.Kind()
	i.InsightData = raw
	return nil
}

func (i *Insight) Payload() (InsightPayload, error) {
	return DecodePayload(i.InsightType, i.InsightData)
}
