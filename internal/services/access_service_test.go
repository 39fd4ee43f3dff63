// internal/services/access_service_test.go
package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/shareview/insights-backend/internal/models"
	"github.com/shareview/insights-backend/internal/testutil"
	"github.com/shareview/insights-backend/internal/utils"
)

type AccessServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	ctx     context.Context
	reports *ReportService
	access  *AccessService
	staff   uuid.UUID
	june    utils.Period
}

func (suite *AccessServiceTestSuite) SetupTest() {
	suite.db = testutil.DB(suite.T())
	suite.ctx = context.Background()
	start, end := testutil.Month(2025, 6)
	suite.june = utils.Period{Type: models.PeriodTypeMonth, Start: start, End: end}
	testutil.SeedSnapshots(suite.T(), suite.db, "boots", start, end)

	store := NewSnapshotStore(suite.db)
	insights := NewInsightService(suite.db)
	suite.reports = NewReportService(suite.db, NewPlaceholderBuilder(store), insights,
		NewRetailerService(suite.db, store), nil, nil)
	suite.access = NewAccessService(suite.db, suite.reports, insights, time.Hour)
	suite.staff = uuid.New()
}

// publish creates a live report covering domains for June.
func (suite *AccessServiceTestSuite) publish(domains ...string) *models.Report {
	result, err := suite.reports.Create(suite.ctx, &CreateReportRequest{
		RetailerID:  "boots",
		Month:       "2025-06",
		Domains:     domains,
		AutoApprove: true,
	}, suite.staff)
	require.NoError(suite.T(), err)
	return result.Report
}

func (suite *AccessServiceTestSuite) issue(req IssueTokenRequest) *IssuedToken {
	if req.RetailerID == "" {
		req.RetailerID = "boots"
	}
	issued, err := suite.access.Issue(suite.ctx, &req, suite.staff)
	require.NoError(suite.T(), err)
	return issued
}

func (suite *AccessServiceTestSuite) validate(token, retailerID, marker string) *TokenValidation {
	v, err := suite.access.Validate(suite.ctx, token, retailerID, marker)
	require.NoError(suite.T(), err)
	return v
}

func (suite *AccessServiceTestSuite) TestRetailerWideTokenListsPublishedReports() {
	report := suite.publish(models.DomainKeywords)
	_, err := suite.reports.Create(suite.ctx, &CreateReportRequest{
		RetailerID: "boots",
		Month:      "2025-06",
		Domains:    []string{models.DomainCategories},
	}, suite.staff)
	require.NoError(suite.T(), err)

	issued := suite.issue(IssueTokenRequest{})
	assert.NotEmpty(suite.T(), issued.Token)
	assert.False(suite.T(), issued.HasPassword)

	v := suite.validate(issued.Token, "boots", "")
	require.True(suite.T(), v.Valid)
	assert.Equal(suite.T(), http.StatusOK, v.Status)
	assert.Equal(suite.T(), "boots", v.RetailerID)
	assert.Nil(suite.T(), v.ReportID)

	reports, err := suite.access.ListReports(suite.ctx, v)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), reports, 1)
	assert.Equal(suite.T(), report.ID, reports[0].ID)

	detail, err := suite.access.ReportDetail(suite.ctx, v, report.ID)
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), detail.Insights[models.DomainKeywords], 1)
}

func (suite *AccessServiceTestSuite) TestExpiredTokenLooksLikeUnknownToken() {
	expiresAt := time.Now().Add(time.Hour)
	issued := suite.issue(IssueTokenRequest{ExpiresAt: &expiresAt})
	require.True(suite.T(), suite.validate(issued.Token, "boots", "").Valid)

	suite.access.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	expired := suite.validate(issued.Token, "boots", "")
	unknown := suite.validate("no-such-token", "boots", "")

	assert.False(suite.T(), expired.Valid)
	assert.Equal(suite.T(), http.StatusNotFound, expired.Status)
	assert.Equal(suite.T(), unknown.Status, expired.Status)
	assert.Equal(suite.T(), unknown.Error, expired.Error)
	assert.True(suite.T(), utils.IsKind(expired.Err(), utils.KindNotFound))
}

func (suite *AccessServiceTestSuite) TestEmptyTokenIsUnknown() {
	v := suite.validate("", "", "")
	assert.Equal(suite.T(), http.StatusNotFound, v.Status)
}

func (suite *AccessServiceTestSuite) TestRetailerMismatchIsForbidden() {
	issued := suite.issue(IssueTokenRequest{})

	v := suite.validate(issued.Token, "superdrug", "")
	assert.False(suite.T(), v.Valid)
	assert.Equal(suite.T(), http.StatusForbidden, v.Status)
	assert.True(suite.T(), utils.IsKind(v.Err(), utils.KindForbidden))

	_, err := suite.access.ListReports(suite.ctx, v)
	assert.True(suite.T(), utils.IsKind(err, utils.KindForbidden))
}

func (suite *AccessServiceTestSuite) TestPasswordProtectedToken() {
	issued := suite.issue(IssueTokenRequest{Password: "let-me-in"})
	assert.True(suite.T(), issued.HasPassword)

	locked := suite.validate(issued.Token, "boots", "")
	assert.False(suite.T(), locked.Valid)
	assert.Equal(suite.T(), http.StatusUnauthorized, locked.Status)
	assert.Equal(suite.T(), "password required", locked.Error)

	_, err := suite.access.Unlock(suite.ctx, issued.Token, "wrong-password")
	assert.True(suite.T(), utils.IsKind(err, utils.KindUnauthorized))

	marker, err := suite.access.Unlock(suite.ctx, issued.Token, "let-me-in")
	require.NoError(suite.T(), err)
	require.NotEmpty(suite.T(), marker)

	unlocked := suite.validate(issued.Token, "boots", marker)
	assert.True(suite.T(), unlocked.Valid)

	assert.False(suite.T(), suite.validate(issued.Token, "boots", "garbage").Valid)
}

func (suite *AccessServiceTestSuite) TestMarkerDoesNotTransferBetweenTokens() {
	first := suite.issue(IssueTokenRequest{Password: "let-me-in"})
	marker, err := suite.access.Unlock(suite.ctx, first.Token, "let-me-in")
	require.NoError(suite.T(), err)

	report := suite.publish(models.DomainKeywords)
	second := suite.issue(IssueTokenRequest{ReportID: &report.ID, Password: "let-me-in"})

	v := suite.validate(second.Token, "boots", marker)
	assert.False(suite.T(), v.Valid)
	assert.Equal(suite.T(), http.StatusUnauthorized, v.Status)
}

func (suite *AccessServiceTestSuite) TestUnlockEdgeCases() {
	open := suite.issue(IssueTokenRequest{})

	_, err := suite.access.Unlock(suite.ctx, open.Token, "anything")
	assert.True(suite.T(), utils.IsKind(err, utils.KindValidation))

	_, err = suite.access.Unlock(suite.ctx, "no-such-token", "anything")
	assert.True(suite.T(), utils.IsKind(err, utils.KindNotFound))
}

func (suite *AccessServiceTestSuite) TestReportScopedTokenSeesOnlyItsReport() {
	keywords := suite.publish(models.DomainKeywords)
	categories := suite.publish(models.DomainCategories)

	issued := suite.issue(IssueTokenRequest{ReportID: &keywords.ID})
	v := suite.validate(issued.Token, "boots", "")
	require.True(suite.T(), v.Valid)
	require.NotNil(suite.T(), v.ReportID)

	reports, err := suite.access.ListReports(suite.ctx, v)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), reports, 1)
	assert.Equal(suite.T(), keywords.ID, reports[0].ID)

	_, err = suite.access.ReportDetail(suite.ctx, v, categories.ID)
	assert.True(suite.T(), utils.IsKind(err, utils.KindNotFound))

	insights, err := suite.access.PageInsights(suite.ctx, v, models.DomainKeywords, suite.june)
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), insights, 1)

	_, err = suite.access.PageInsights(suite.ctx, v, models.DomainCategories, suite.june)
	assert.True(suite.T(), utils.IsKind(err, utils.KindNotFound))

	july, err := utils.ParseMonth("2025-07")
	require.NoError(suite.T(), err)
	_, err = suite.access.PageInsights(suite.ctx, v, models.DomainKeywords, july)
	assert.True(suite.T(), utils.IsKind(err, utils.KindNotFound))
}

func (suite *AccessServiceTestSuite) TestCheckScopeLimitsSnapshotReads() {
	report := suite.publish(models.DomainKeywords)
	may, err := utils.ParseMonth("2025-05")
	require.NoError(suite.T(), err)

	scoped := suite.validate(suite.issue(IssueTokenRequest{ReportID: &report.ID}).Token, "boots", "")
	require.True(suite.T(), scoped.Valid)

	assert.NoError(suite.T(), suite.access.CheckScope(suite.ctx, scoped, models.DomainKeywords, suite.june))
	assert.True(suite.T(), utils.IsKind(suite.access.CheckScope(suite.ctx, scoped, models.DomainKeywords, may), utils.KindNotFound))
	assert.True(suite.T(), utils.IsKind(suite.access.CheckScope(suite.ctx, scoped, models.DomainProducts, suite.june), utils.KindNotFound))

	wide := suite.validate(suite.issue(IssueTokenRequest{}).Token, "boots", "")
	assert.NoError(suite.T(), suite.access.CheckScope(suite.ctx, wide, models.DomainProducts, may))

	denied := suite.validate("unknown", "boots", "")
	assert.True(suite.T(), utils.IsKind(suite.access.CheckScope(suite.ctx, denied, models.DomainKeywords, suite.june), utils.KindNotFound))
}

func (suite *AccessServiceTestSuite) TestHiddenReportsStayHidden() {
	result, err := suite.reports.Create(suite.ctx, &CreateReportRequest{
		RetailerID:         "boots",
		Month:              "2025-06",
		Domains:            []string{models.DomainKeywords},
		AutoApprove:        true,
		HiddenFromRetailer: true,
	}, suite.staff)
	require.NoError(suite.T(), err)

	v := suite.validate(suite.issue(IssueTokenRequest{}).Token, "boots", "")
	reports, err := suite.access.ListReports(suite.ctx, v)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), reports)

	_, err = suite.access.ReportDetail(suite.ctx, v, result.Report.ID)
	assert.True(suite.T(), utils.IsKind(err, utils.KindNotFound))
}

func (suite *AccessServiceTestSuite) TestIssueReplacesTokensOfSameScope() {
	report := suite.publish(models.DomainKeywords)
	scoped := suite.issue(IssueTokenRequest{ReportID: &report.ID})
	old := suite.issue(IssueTokenRequest{})
	fresh := suite.issue(IssueTokenRequest{})

	assert.Equal(suite.T(), http.StatusNotFound, suite.validate(old.Token, "boots", "").Status)
	assert.True(suite.T(), suite.validate(fresh.Token, "boots", "").Valid)
	assert.True(suite.T(), suite.validate(scoped.Token, "boots", "").Valid)

	current, err := suite.access.Current(suite.ctx, "boots")
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), current)
	assert.Equal(suite.T(), fresh.ID, current.ID)
	assert.Equal(suite.T(), fresh.Token[:8]+"…", current.TokenMasked)
}

func (suite *AccessServiceTestSuite) TestIssueValidation() {
	past := time.Now().Add(-time.Minute)
	_, err := suite.access.Issue(suite.ctx, &IssueTokenRequest{RetailerID: "boots", ExpiresAt: &past}, suite.staff)
	assert.True(suite.T(), utils.IsKind(err, utils.KindValidation))

	_, err = suite.access.Issue(suite.ctx, &IssueTokenRequest{RetailerID: "boots", Password: "abc"}, suite.staff)
	assert.True(suite.T(), utils.IsKind(err, utils.KindValidation))

	report := suite.publish(models.DomainKeywords)
	_, err = suite.access.Issue(suite.ctx, &IssueTokenRequest{RetailerID: "superdrug", ReportID: &report.ID}, suite.staff)
	assert.True(suite.T(), utils.IsKind(err, utils.KindValidation))

	missing := uuid.New()
	_, err = suite.access.Issue(suite.ctx, &IssueTokenRequest{RetailerID: "boots", ReportID: &missing}, suite.staff)
	assert.True(suite.T(), utils.IsKind(err, utils.KindNotFound))
}

func (suite *AccessServiceTestSuite) TestRevoke() {
	report := suite.publish(models.DomainKeywords)
	wide := suite.issue(IssueTokenRequest{})
	scoped := suite.issue(IssueTokenRequest{ReportID: &report.ID})

	require.NoError(suite.T(), suite.access.RevokeOne(suite.ctx, "boots", scoped.ID))
	assert.Equal(suite.T(), http.StatusNotFound, suite.validate(scoped.Token, "boots", "").Status)

	err := suite.access.RevokeOne(suite.ctx, "boots", scoped.ID)
	assert.True(suite.T(), utils.IsKind(err, utils.KindNotFound))

	revoked, err := suite.access.RevokeAll(suite.ctx, "boots")
	require.NoError(suite.T(), err)
	assert.EqualValues(suite.T(), 1, revoked)
	assert.Equal(suite.T(), http.StatusNotFound, suite.validate(wide.Token, "boots", "").Status)

	current, err := suite.access.Current(suite.ctx, "boots")
	require.NoError(suite.T(), err)
	assert.Nil(suite.T(), current)
}

func TestAccessServiceSuite(t *testing.T) {
	suite.Run(t, new(AccessServiceTestSuite))
}

func TestSessionCookieNameHidesToken(t *testing.T) {
	name := SessionCookieName("secret-token")

	assert.Equal(t, "sv_access_"+utils.HashString("secret-token")[:16], name)
	assert.NotContains(t, name, "secret-token")
}
