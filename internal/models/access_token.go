// internal/models/access_token.go
package models

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// AccessToken is a capability credential for unauthenticated report access.
type AccessToken struct {
	BaseModel
	Token        string     `json:"-" gorm:"size:128;uniqueIndex;not null"`
	RetailerID   string     `json:"retailer_id" gorm:"size:100;not null;index"`
	ReportID     *uuid.UUID `json:"report_id,omitempty" gorm:"type:uuid"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	PasswordHash *string    `json:"-" gorm:"size:255"`
	IsActive     bool       `json:"is_active" gorm:"not null;default:true"`
	CreatedBy    *uuid.UUID `json:"created_by,omitempty" gorm:"type:uuid"`
}

func (AccessToken) TableName() string {
	return "retailer_access_tokens"
}

func (t *AccessToken) SetPassword(password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	hash := string(hashed)
	t.PasswordHash = &hash
	return nil
}

func (t *AccessToken) CheckPassword(password string) bool {
	if t.PasswordHash == nil {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(*t.PasswordHash), []byte(password))
	return err == nil
}

func (t *AccessToken) HasPassword() bool {
	return t.PasswordHash != nil && *t.PasswordHash != ""
}

func (t *AccessToken) IsExpired(now time.Time) bool {
	return t.ExpiresAt != nil && t.ExpiresAt.Before(now)
}

// Masked returns a short prefix suitable for listings.
func (t *AccessToken) Masked() string {
	if len(t.Token) <= 8 {
		return "****"
	}
	return t.Token[:8] + "…"
}
