// internal/models/job.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// GenerationJob records one build+persist attempt. Rows are never deleted.
type GenerationJob struct {
	BaseModel
	RetailerID   string     `json:"retailer_id" gorm:"size:100;not null;index"`
	PageType     string     `json:"page_type" gorm:"size:50;not null"`
	TabName      string     `json:"tab_name" gorm:"size:50;not null"`
	PeriodType   string     `json:"period_type" gorm:"size:20;not null"`
	PeriodStart  time.Time  `json:"period_start" gorm:"type:date;not null"`
	PeriodEnd    time.Time  `json:"period_end" gorm:"type:date;not null"`
	Status       JobStatus  `json:"status" gorm:"type:varchar(20);not null;default:'created';index"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty" gorm:"type:text"`
	CreatedBy    *uuid.UUID `json:"created_by,omitempty" gorm:"type:uuid"`
}

func (GenerationJob) TableName() string {
	return "generation_jobs"
}

// IsStale reports whether a running job has gone longer than timeout without
// reaching a terminal state.
func (j *GenerationJob) IsStale(now time.Time, timeout time.Duration) bool {
	if j.Status != JobStatusRunning || j.StartedAt == nil || timeout <= 0 {
		return false
	}
	return now.Sub(*j.StartedAt) > timeout
}
