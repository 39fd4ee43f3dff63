// internal/services/access_service.go
package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/shareview/insights-backend/internal/database"
	"github.com/shareview/insights-backend/internal/models"
	"github.com/shareview/insights-backend/internal/utils"
)

const (
	accessCookiePrefix = "sv_access_"
	tokenNotFound      = "access token not found"
)

// AccessService gates guest reads behind capability tokens and manages the
// tokens for staff. It authorises a scope, never an identity.
type AccessService struct {
	db         *gorm.DB
	reports    *ReportService
	insights   *InsightService
	sessionTTL time.Duration
	now        func() time.Time
}

// TokenValidation is the outcome of checking a token for one request.
type TokenValidation struct {
	Valid      bool       `json:"valid"`
	Status     int        `json:"status"`
	Error      string     `json:"error,omitempty"`
	TokenID    uuid.UUID  `json:"-"`
	RetailerID string     `json:"retailer_id,omitempty"`
	ReportID   *uuid.UUID `json:"report_id,omitempty"`
}

// Err converts a failed validation into the matching service error.
func (v *TokenValidation) Err() error {
	if v.Valid {
		return nil
	}
	switch v.Status {
	case http.StatusUnauthorized:
		return utils.NewUnauthorizedError(v.Error)
	case http.StatusForbidden:
		return utils.NewForbiddenError(v.Error)
	default:
		return &utils.AppError{Kind: utils.KindNotFound, Message: v.Error}
	}
}

type IssueTokenRequest struct {
	RetailerID string     `json:"-"`
	ReportID   *uuid.UUID `json:"report_id,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Password   string     `json:"password,omitempty" validate:"omitempty,min=6,max=128"`
}

type UnlockRequest struct {
	Password string `json:"password" validate:"required"`
}

// IssuedToken is returned once, at creation. Later reads only see TokenInfo.
type IssuedToken struct {
	ID          uuid.UUID  `json:"id"`
	Token       string     `json:"token"`
	RetailerID  string     `json:"retailer_id"`
	ReportID    *uuid.UUID `json:"report_id,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	HasPassword bool       `json:"has_password"`
}

type TokenInfo struct {
	ID          uuid.UUID  `json:"id"`
	RetailerID  string     `json:"retailer_id"`
	ReportID    *uuid.UUID `json:"report_id,omitempty"`
	TokenMasked string     `json:"token_masked"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	HasPassword bool       `json:"has_password"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
}

func NewAccessService(db *gorm.DB, reports *ReportService, insights *InsightService, sessionTTL time.Duration) *AccessService {
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &AccessService{
		db:         db,
		reports:    reports,
		insights:   insights,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

// SessionCookieName names the cookie carrying the password-session marker for
// token. The raw token never appears in the name.
func SessionCookieName(token string) string {
	return accessCookiePrefix + utils.HashString(token)[:16]
}

func invalid(status int, message string) *TokenValidation {
	return &TokenValidation{Valid: false, Status: status, Error: message}
}

// Validate checks token against retailerID (skipped when empty) and, for
// password-protected tokens, the session marker. Absent, inactive and expired
// tokens are indistinguishable. The error is non-nil only on storage failure.
func (s *AccessService) Validate(ctx context.Context, token, retailerID, marker string) (*TokenValidation, error) {
	record, err := s.activeToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if record == nil || record.IsExpired(s.now()) {
		return invalid(http.StatusNotFound, tokenNotFound), nil
	}

	if retailerID != "" && record.RetailerID != retailerID {
		return invalid(http.StatusForbidden, "token does not grant access to this retailer"), nil
	}

	if record.HasPassword() && !s.markerValid(token, record, marker) {
		return invalid(http.StatusUnauthorized, "password required"), nil
	}

	return &TokenValidation{
		Valid:      true,
		Status:     http.StatusOK,
		TokenID:    record.ID,
		RetailerID: record.RetailerID,
		ReportID:   record.ReportID,
	}, nil
}

func (s *AccessService) activeToken(ctx context.Context, token string) (*models.AccessToken, error) {
	if token == "" {
		return nil, nil
	}
	var record models.AccessToken
	err := s.db.WithContext(ctx).Where("token = ? AND is_active = ?", token, true).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, utils.NewTransientError("failed to load access token", err)
	}
	return &record, nil
}

// markerValid accepts a marker signed for this token and for the password
// hash currently set on it. Changing the password invalidates old markers.
func (s *AccessService) markerValid(token string, record *models.AccessToken, marker string) bool {
	if marker == "" {
		return false
	}
	claims, err := utils.ValidateAccessSession(marker)
	if err != nil {
		return false
	}
	return claims.Subject == utils.HashString(token) &&
		claims.PasswordFingerprint == utils.HashString(*record.PasswordHash)
}

// Unlock checks password against a protected token and returns a session marker.
func (s *AccessService) Unlock(ctx context.Context, token, password string) (string, error) {
	record, err := s.activeToken(ctx, token)
	if err != nil {
		return "", err
	}
	if record == nil || record.IsExpired(s.now()) {
		return "", utils.NewNotFoundError("access token")
	}
	if !record.HasPassword() {
		return "", utils.NewValidationError("access token is not password protected", nil)
	}
	if !record.CheckPassword(password) {
		logrus.WithField("token_id", record.ID).Warn("Access token unlock failed")
		return "", utils.NewUnauthorizedError("invalid password")
	}

	marker, err := utils.GenerateAccessSession(utils.HashString(token), utils.HashString(*record.PasswordHash), s.sessionTTL)
	if err != nil {
		return "", utils.NewTransientError("failed to sign access session", err)
	}
	return marker, nil
}

func (s *AccessService) SessionTTL() time.Duration {
	return s.sessionTTL
}

// visibleReports selects what a guest of the validated scope may read.
func (s *AccessService) visibleReports(ctx context.Context, v *TokenValidation) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Report{}).
		Where("retailer_id = ? AND status = ? AND is_active = ? AND hidden_from_retailer = ? AND archived = ?",
			v.RetailerID, models.ReportStatusPublished, true, false, false)
	if v.ReportID != nil {
		query = query.Where("id = ?", *v.ReportID)
	}
	return query
}

// ListReports returns the published reports in the token's scope.
func (s *AccessService) ListReports(ctx context.Context, v *TokenValidation) ([]models.Report, error) {
	if err := v.Err(); err != nil {
		return nil, err
	}
	reports := []models.Report{}
	err := s.visibleReports(ctx, v).
		Preload("Domains", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("created_at DESC").
		Find(&reports).Error
	if err != nil {
		return nil, utils.NewTransientError("failed to list reports", err)
	}
	return reports, nil
}

// ReportDetail returns one report in scope with its visible insights.
func (s *AccessService) ReportDetail(ctx context.Context, v *TokenValidation, reportID uuid.UUID) (*ReportDetail, error) {
	if err := v.Err(); err != nil {
		return nil, err
	}
	var report models.Report
	err := s.visibleReports(ctx, v).
		Preload("Domains", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ?", reportID).
		First(&report).Error
	if err != nil {
		return nil, utils.StoreError(err, "report")
	}
	return s.reports.detailOf(ctx, &report)
}

// CheckScope fails with NotFound unless the token may read domain data for
// period. Retailer-wide tokens reach every domain and period of their
// retailer; a report-scoped token only its report's domains and period.
func (s *AccessService) CheckScope(ctx context.Context, v *TokenValidation, domain string, period utils.Period) error {
	if err := v.Err(); err != nil {
		return err
	}
	if v.ReportID == nil {
		return nil
	}

	var report models.Report
	err := s.visibleReports(ctx, v).
		Preload("Domains").
		First(&report).Error
	if err != nil {
		return utils.StoreError(err, "report")
	}
	inScope := report.PeriodStart.Equal(period.Start) && report.PeriodEnd.Equal(period.End)
	if !inScope || !containsDomain(report.DomainNames(), domain) {
		return utils.NewNotFoundError(domain + " data")
	}
	return nil
}

// PageInsights returns the visible insights for one page and period, subject
// to CheckScope.
func (s *AccessService) PageInsights(ctx context.Context, v *TokenValidation, pageType string, period utils.Period) ([]models.Insight, error) {
	if err := s.CheckScope(ctx, v, pageType, period); err != nil {
		return nil, err
	}

	return s.insights.ActiveForReport(ctx, ReportScope{
		RetailerID:  v.RetailerID,
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
		Domains:     []string{pageType},
	})
}

func containsDomain(domains []string, domain string) bool {
	for _, d := range domains {
		if d == domain {
			return true
		}
	}
	return false
}

// Issue creates a token for the retailer, or for one of its reports, and
// deactivates earlier tokens of the same scope.
func (s *AccessService) Issue(ctx context.Context, req *IssueTokenRequest, actorID uuid.UUID) (*IssuedToken, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, utils.ValidationFailed(err)
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(s.now()) {
		return nil, utils.NewValidationError("expires_at must be in the future", nil)
	}
	if req.ReportID != nil {
		report, err := s.reports.Get(ctx, *req.ReportID)
		if err != nil {
			return nil, err
		}
		if report.RetailerID != req.RetailerID {
			return nil, utils.NewValidationError("report does not belong to this retailer", nil)
		}
	}

	raw, err := utils.GenerateAccessToken()
	if err != nil {
		return nil, utils.NewTransientError("failed to generate access token", err)
	}
	record := &models.AccessToken{
		Token:      raw,
		RetailerID: req.RetailerID,
		ReportID:   req.ReportID,
		ExpiresAt:  req.ExpiresAt,
		IsActive:   true,
		CreatedBy:  &actorID,
	}
	if req.Password != "" {
		if err := record.SetPassword(req.Password); err != nil {
			return nil, utils.NewTransientError("failed to hash password", err)
		}
	}

	err = database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		previous := tx.Model(&models.AccessToken{}).Where("retailer_id = ? AND is_active = ?", req.RetailerID, true)
		if req.ReportID != nil {
			previous = previous.Where("report_id = ?", *req.ReportID)
		} else {
			previous = previous.Where("report_id IS NULL")
		}
		if err := previous.Update("is_active", false).Error; err != nil {
			return utils.NewTransientError("failed to deactivate previous tokens", err)
		}
		if err := tx.Create(record).Error; err != nil {
			return utils.NewTransientError("failed to create access token", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"token_id":    record.ID,
		"retailer_id": record.RetailerID,
		"actor_id":    actorID,
	}).Info("Access token issued")

	return &IssuedToken{
		ID:          record.ID,
		Token:       raw,
		RetailerID:  record.RetailerID,
		ReportID:    record.ReportID,
		ExpiresAt:   record.ExpiresAt,
		HasPassword: record.HasPassword(),
	}, nil
}

// Current returns the newest active retailer-wide token, or nil.
func (s *AccessService) Current(ctx context.Context, retailerID string) (*TokenInfo, error) {
	var record models.AccessToken
	err := s.db.WithContext(ctx).
		Where("retailer_id = ? AND is_active = ? AND report_id IS NULL", retailerID, true).
		Order("created_at DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, utils.NewTransientError("failed to load access token", err)
	}
	return tokenInfo(&record), nil
}

func tokenInfo(t *models.AccessToken) *TokenInfo {
	return &TokenInfo{
		ID:          t.ID,
		RetailerID:  t.RetailerID,
		ReportID:    t.ReportID,
		TokenMasked: t.Masked(),
		ExpiresAt:   t.ExpiresAt,
		HasPassword: t.HasPassword(),
		IsActive:    t.IsActive,
		CreatedAt:   t.CreatedAt,
	}
}

// RevokeAll deactivates every token of the retailer.
func (s *AccessService) RevokeAll(ctx context.Context, retailerID string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.AccessToken{}).
		Where("retailer_id = ? AND is_active = ?", retailerID, true).
		Update("is_active", false)
	if res.Error != nil {
		return 0, utils.NewTransientError("failed to revoke access tokens", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *AccessService) RevokeOne(ctx context.Context, retailerID string, tokenID uuid.UUID) error {
	res := s.db.WithContext(ctx).Model(&models.AccessToken{}).
		Where("id = ? AND retailer_id = ? AND is_active = ?", tokenID, retailerID, true).
		Update("is_active", false)
	if res.Error != nil {
		return utils.NewTransientError("failed to revoke access token", res.Error)
	}
	if res.RowsAffected == 0 {
		return utils.NewNotFoundError("access token")
	}
	return nil
}
