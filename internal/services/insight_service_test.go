// internal/services/insight_service_test.go
package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/shareview/insights-backend/internal/models"
	"github.com/shareview/insights-backend/internal/testutil"
	"github.com/shareview/insights-backend/internal/utils"
)

type InsightServiceTestSuite struct {
	suite.Suite
	db       *gorm.DB
	insights *InsightService
	ctx      context.Context
	reviewer uuid.UUID
}

func (suite *InsightServiceTestSuite) SetupTest() {
	suite.db = testutil.DB(suite.T())
	suite.insights = NewInsightService(suite.db)
	suite.ctx = context.Background()
	suite.reviewer = uuid.New()
}

func (suite *InsightServiceTestSuite) seed(pageType string, payload models.InsightPayload) *models.Insight {
	start, end := testutil.Month(2025, 6)
	insight, err := newPendingInsight(BuildInput{
		RetailerID:  "boots",
		PeriodType:  models.PeriodTypeMonth,
		PeriodStart: start,
		PeriodEnd:   end,
		PageType:    pageType,
		TabName:     models.DefaultTabName,
	}, payload, StyleStandard)
	require.NoError(suite.T(), err)

	ids, err := suite.insights.InsertMany(suite.ctx, suite.db, []models.Insight{insight})
	require.NoError(suite.T(), err)
	require.Len(suite.T(), ids, 1)

	stored, err := suite.insights.Get(suite.ctx, ids[0])
	require.NoError(suite.T(), err)
	return stored
}

func panelPayload() models.InsightsPanelPayload {
	return models.InsightsPanelPayload{
		BeatRivals:           []string{"Protect bids on star terms."},
		OptimiseSpend:        []string{"Trim poor keywords."},
		ExploreOpportunities: []string{"Expand into adjacent categories."},
	}
}

func (suite *InsightServiceTestSuite) TestInsertManyStoresPendingInactive() {
	insight := suite.seed(models.DomainKeywords, panelPayload())

	assert.Equal(suite.T(), models.InsightStatusPending, insight.Status)
	assert.False(suite.T(), insight.IsActive)
	assert.Equal(suite.T(), models.InsightTypePanel, insight.InsightType)

	payload, err := insight.Payload()
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), panelPayload(), *payload.(*models.InsightsPanelPayload))
}

func (suite *InsightServiceTestSuite) TestInsertManyRejectsActiveUnapproved() {
	insight := models.Insight{
		RetailerID:  "boots",
		PageType:    models.DomainKeywords,
		TabName:     models.DefaultTabName,
		PeriodType:  models.PeriodTypeMonth,
		InsightType: models.InsightTypePanel,
		InsightData: []byte(`{"beat_rivals":["x"],"optimise_spend":[],"explore_opportunities":[]}`),
		Status:      models.InsightStatusPending,
		IsActive:    true,
	}

	_, err := suite.insights.InsertMany(suite.ctx, suite.db, []models.Insight{insight})
	assert.True(suite.T(), utils.IsKind(err, utils.KindValidation))
}

func (suite *InsightServiceTestSuite) TestInsertManyEmpty() {
	ids, err := suite.insights.InsertMany(suite.ctx, suite.db, nil)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), ids)
}

func (suite *InsightServiceTestSuite) TestApproveActivates() {
	insight := suite.seed(models.DomainKeywords, panelPayload())

	approved, err := suite.insights.Approve(suite.ctx, insight.ID, suite.reviewer, "looks good")
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), models.InsightStatusApproved, approved.Status)
	assert.True(suite.T(), approved.IsActive)
	require.NotNil(suite.T(), approved.ApprovedBy)
	assert.Equal(suite.T(), suite.reviewer, *approved.ApprovedBy)
	assert.NotNil(suite.T(), approved.ApprovedAt)
	assert.Equal(suite.T(), "looks good", approved.ReviewNotes)
}

func (suite *InsightServiceTestSuite) TestRejectDeactivates() {
	insight := suite.seed(models.DomainKeywords, panelPayload())

	rejected, err := suite.insights.Reject(suite.ctx, insight.ID, suite.reviewer, "")
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), models.InsightStatusRejected, rejected.Status)
	assert.False(suite.T(), rejected.IsActive)
}

func (suite *InsightServiceTestSuite) TestDecisionsAreFinal() {
	insight := suite.seed(models.DomainKeywords, panelPayload())
	_, err := suite.insights.Reject(suite.ctx, insight.ID, suite.reviewer, "")
	require.NoError(suite.T(), err)

	_, err = suite.insights.Approve(suite.ctx, insight.ID, suite.reviewer, "")
	assert.True(suite.T(), utils.IsKind(err, utils.KindConflict))

	_, err = suite.insights.Reject(suite.ctx, insight.ID, suite.reviewer, "")
	assert.True(suite.T(), utils.IsKind(err, utils.KindConflict))
}

func (suite *InsightServiceTestSuite) TestPublishRequiresApproval() {
	insight := suite.seed(models.DomainKeywords, panelPayload())

	_, err := suite.insights.Publish(suite.ctx, insight.ID, suite.reviewer)
	assert.True(suite.T(), utils.IsKind(err, utils.KindConflict))

	_, err = suite.insights.Approve(suite.ctx, insight.ID, suite.reviewer, "")
	require.NoError(suite.T(), err)

	published, err := suite.insights.Publish(suite.ctx, insight.ID, suite.reviewer)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), published.IsActive)
	require.NotNil(suite.T(), published.PublishedBy)
	assert.Equal(suite.T(), suite.reviewer, *published.PublishedBy)
}

func (suite *InsightServiceTestSuite) TestSetStatusRoutes() {
	insight := suite.seed(models.DomainKeywords, panelPayload())

	_, err := suite.insights.SetStatus(suite.ctx, insight.ID, models.InsightStatusDraft, suite.reviewer, "")
	assert.True(suite.T(), utils.IsKind(err, utils.KindValidation))

	approved, err := suite.insights.SetStatus(suite.ctx, insight.ID, models.InsightStatusApproved, suite.reviewer, "")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.InsightStatusApproved, approved.Status)
}

func (suite *InsightServiceTestSuite) TestUnknownInsight() {
	_, err := suite.insights.Get(suite.ctx, uuid.New())
	assert.True(suite.T(), utils.IsKind(err, utils.KindNotFound))

	_, err = suite.insights.Approve(suite.ctx, uuid.New(), suite.reviewer, "")
	assert.True(suite.T(), utils.IsKind(err, utils.KindNotFound))
}

func (suite *InsightServiceTestSuite) TestUpdatePayloadRevalidatesAgainstType() {
	insight := suite.seed(models.DomainKeywords, panelPayload())

	// a headline body under a panel insight is refused
	_, err := suite.insights.UpdatePayload(suite.ctx, insight.ID, &UpdateInsightRequest{
		InsightData: json.RawMessage(`{"status":"success","message":"GMV up"}`),
	})
	assert.True(suite.T(), utils.IsKind(err, utils.KindValidation))

	updated, err := suite.insights.UpdatePayload(suite.ctx, insight.ID, &UpdateInsightRequest{
		InsightData: json.RawMessage(`{"beat_rivals":["Edited"],"optimise_spend":[],"explore_opportunities":[]}`),
	})
	require.NoError(suite.T(), err)

	payload, err := updated.Payload()
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []string{"Edited"}, payload.(*models.InsightsPanelPayload).BeatRivals)
}

func (suite *InsightServiceTestSuite) TestUpdatePayloadNeedsChanges() {
	insight := suite.seed(models.DomainKeywords, panelPayload())

	_, err := suite.insights.UpdatePayload(suite.ctx, insight.ID, &UpdateInsightRequest{})
	assert.True(suite.T(), utils.IsKind(err, utils.KindValidation))
}

func (suite *InsightServiceTestSuite) TestUpdatePayloadAfterApprovalConflicts() {
	insight := suite.seed(models.DomainKeywords, panelPayload())
	_, err := suite.insights.Approve(suite.ctx, insight.ID, suite.reviewer, "")
	require.NoError(suite.T(), err)

	notes := "too late"
	_, err = suite.insights.UpdatePayload(suite.ctx, insight.ID, &UpdateInsightRequest{ReviewNotes: &notes})
	assert.True(suite.T(), utils.IsKind(err, utils.KindConflict))
}

func (suite *InsightServiceTestSuite) TestListDefaultsToPending() {
	first := suite.seed(models.DomainKeywords, panelPayload())
	second := suite.seed(models.DomainCategories, models.MarketAnalysisPayload{Headline: "Steady"})
	_, err := suite.insights.Approve(suite.ctx, second.ID, suite.reviewer, "")
	require.NoError(suite.T(), err)

	pending, total, err := suite.insights.List(suite.ctx, InsightFilter{})
	require.NoError(suite.T(), err)
	assert.EqualValues(suite.T(), 1, total)
	require.Len(suite.T(), pending, 1)
	assert.Equal(suite.T(), first.ID, pending[0].ID)

	all, total, err := suite.insights.List(suite.ctx, InsightFilter{Status: "all", PageType: models.DomainCategories})
	require.NoError(suite.T(), err)
	assert.EqualValues(suite.T(), 1, total)
	require.Len(suite.T(), all, 1)
	assert.Equal(suite.T(), second.ID, all[0].ID)
}

func (suite *InsightServiceTestSuite) TestActiveForReportOnlyReturnsVisible() {
	visible := suite.seed(models.DomainKeywords, panelPayload())
	suite.seed(models.DomainKeywords, panelPayload())
	_, err := suite.insights.Approve(suite.ctx, visible.ID, suite.reviewer, "")
	require.NoError(suite.T(), err)

	start, end := testutil.Month(2025, 6)
	active, err := suite.insights.ActiveForReport(suite.ctx, ReportScope{
		RetailerID:  "boots",
		PeriodStart: start,
		PeriodEnd:   end,
		Domains:     []string{models.DomainKeywords},
	})
	require.NoError(suite.T(), err)
	require.Len(suite.T(), active, 1)
	assert.Equal(suite.T(), visible.ID, active[0].ID)
}

func TestInsightServiceSuite(t *testing.T) {
	suite.Run(t, new(InsightServiceTestSuite))
}
