// internal/services/insight_builder_test.go
package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/shareview/insights-backend/internal/models"
	"github.com/shareview/insights-backend/internal/testutil"
	"github.com/shareview/insights-backend/internal/utils"
)

type failingSource struct{}

func (failingSource) KeywordsSnapshot(ctx context.Context, retailerID string, start, end time.Time) (*models.KeywordsSnapshot, error) {
	return nil, errors.New("connection refused")
}

func (failingSource) CategorySnapshot(ctx context.Context, retailerID string, start, end time.Time) (*models.CategorySnapshot, error) {
	return nil, errors.New("connection refused")
}

func (failingSource) ProductSnapshot(ctx context.Context, retailerID string, start, end time.Time) (*models.ProductSnapshot, error) {
	return nil, errors.New("connection refused")
}

type InsightBuilderTestSuite struct {
	suite.Suite
	builder *PlaceholderBuilder
	ctx     context.Context
	start   time.Time
	end     time.Time
}

func (suite *InsightBuilderTestSuite) SetupTest() {
	db := testutil.DB(suite.T())
	suite.start, suite.end = testutil.Month(2025, 6)
	testutil.SeedSnapshots(suite.T(), db, "boots", suite.start, suite.end)

	suite.builder = NewPlaceholderBuilder(NewSnapshotStore(db))
	suite.ctx = context.Background()
}

func (suite *InsightBuilderTestSuite) input(pageType string) BuildInput {
	return BuildInput{
		RetailerID:  "boots",
		PeriodType:  models.PeriodTypeMonth,
		PeriodStart: suite.start,
		PeriodEnd:   suite.end,
		PageType:    pageType,
		TabName:     models.DefaultTabName,
	}
}

func (suite *InsightBuilderTestSuite) TestKeywordsPageBuildsPanel() {
	result, err := suite.builder.BuildInsights(suite.ctx, suite.input(models.DomainKeywords))
	require.NoError(suite.T(), err)

	assert.Empty(suite.T(), result.Errors)
	require.Len(suite.T(), result.Insights, 1)

	insight := result.Insights[0]
	assert.Equal(suite.T(), models.InsightTypePanel, insight.InsightType)
	assert.Equal(suite.T(), models.InsightStatusPending, insight.Status)
	assert.False(suite.T(), insight.IsActive)
	assert.Equal(suite.T(), "boots", insight.RetailerID)
	assert.Equal(suite.T(), models.DomainKeywords, insight.PageType)
	assert.Equal(suite.T(), PlaceholderModelName, insight.ModelName)
	require.NotNil(suite.T(), insight.ConfidenceScore)
	assert.InDelta(suite.T(), 0.5, *insight.ConfidenceScore, 1e-9)

	payload, err := insight.Payload()
	require.NoError(suite.T(), err)
	panel := payload.(*models.InsightsPanelPayload)
	assert.Len(suite.T(), panel.BeatRivals, 3)
	assert.Contains(suite.T(), panel.BeatRivals[0], "21.0%")
}

func (suite *InsightBuilderTestSuite) TestOverviewBuildsEveryType() {
	result, err := suite.builder.BuildInsights(suite.ctx, suite.input(models.DomainOverview))
	require.NoError(suite.T(), err)

	assert.Empty(suite.T(), result.Errors)
	require.Len(suite.T(), result.Insights, 4)

	types := []models.InsightType{}
	for _, insight := range result.Insights {
		types = append(types, insight.InsightType)
	}
	assert.Equal(suite.T(), []models.InsightType{
		models.InsightTypeHeadline,
		models.InsightTypePanel,
		models.InsightTypeMarketAnalysis,
		models.InsightTypeRecommendation,
	}, types)

	// no previous month on record, so growth is flat
	payload, err := result.Insights[0].Payload()
	require.NoError(suite.T(), err)
	headline := payload.(*models.HeadlinePayload)
	assert.Equal(suite.T(), "warning", headline.Status)
	assert.Equal(suite.T(), "GMV up 0.0% in June 2025", headline.Message)
}

func (suite *InsightBuilderTestSuite) TestMissingSnapshotIsReportedNotFatal() {
	in := suite.input(models.DomainProducts)
	in.PeriodStart, in.PeriodEnd = testutil.Month(2025, 7)

	result, err := suite.builder.BuildInsights(suite.ctx, in)
	require.NoError(suite.T(), err)

	assert.Empty(suite.T(), result.Insights)
	assert.Equal(suite.T(), []string{"Missing product snapshot for recommendations generation."}, result.Errors)
}

func (suite *InsightBuilderTestSuite) TestUnknownPageType() {
	result, err := suite.builder.BuildInsights(suite.ctx, suite.input(models.DomainAuctions))
	require.NoError(suite.T(), err)

	assert.Empty(suite.T(), result.Insights)
	assert.Equal(suite.T(), []string{"No insight generators configured for page type 'auctions'."}, result.Errors)
}

func (suite *InsightBuilderTestSuite) TestInvalidInput() {
	in := suite.input(models.DomainKeywords)
	in.RetailerID = ""
	in.StyleDirective = "shouty"

	_, err := suite.builder.BuildInsights(suite.ctx, in)
	require.Error(suite.T(), err)
	assert.True(suite.T(), utils.IsKind(err, utils.KindValidation))

	var appErr *utils.AppError
	require.ErrorAs(suite.T(), err, &appErr)
	assert.Len(suite.T(), appErr.Details, 2)
}

func (suite *InsightBuilderTestSuite) TestSourceFailureIsTransient() {
	builder := NewPlaceholderBuilder(failingSource{})

	_, err := builder.BuildInsights(suite.ctx, suite.input(models.DomainKeywords))
	assert.True(suite.T(), utils.IsKind(err, utils.KindTransient))
}

func (suite *InsightBuilderTestSuite) TestConciseStyleKeepsOneBullet() {
	in := suite.input(models.DomainKeywords)
	in.StyleDirective = StyleConcise

	result, err := suite.builder.BuildInsights(suite.ctx, in)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), result.Insights, 1)

	payload, err := result.Insights[0].Payload()
	require.NoError(suite.T(), err)
	panel := payload.(*models.InsightsPanelPayload)
	assert.Len(suite.T(), panel.BeatRivals, 1)
	assert.Len(suite.T(), panel.OptimiseSpend, 1)
	assert.Len(suite.T(), panel.ExploreOpportunities, 1)
}

func (suite *InsightBuilderTestSuite) TestPromptHashIsDeterministic() {
	first, err := suite.builder.BuildInsights(suite.ctx, suite.input(models.DomainCategories))
	require.NoError(suite.T(), err)
	second, err := suite.builder.BuildInsights(suite.ctx, suite.input(models.DomainCategories))
	require.NoError(suite.T(), err)

	require.Len(suite.T(), first.Insights, 1)
	require.Len(suite.T(), second.Insights, 1)
	assert.Equal(suite.T(), first.Insights[0].PromptHash, second.Insights[0].PromptHash)

	in := suite.input(models.DomainCategories)
	in.StyleDirective = StyleDetailed
	detailed, err := suite.builder.BuildInsights(suite.ctx, in)
	require.NoError(suite.T(), err)
	assert.NotEqual(suite.T(), first.Insights[0].PromptHash, detailed.Insights[0].PromptHash)
}

func TestInsightBuilderSuite(t *testing.T) {
	suite.Run(t, new(InsightBuilderTestSuite))
}

func TestBuildHeadlineGrowth(t *testing.T) {
	period, err := utils.ParseMonth("2025-06")
	require.NoError(t, err)

	current := &models.KeywordsSnapshot{TotalConversions: 540, OverallCVR: 6.1, TotalKeywords: 200}
	previous := &models.KeywordsSnapshot{TotalConversions: 400}

	headline := buildHeadline(current, previous, period)
	assert.Equal(t, "success", headline.Status)
	assert.Equal(t, "GMV up 35.0% in June 2025", headline.Message)
	assert.Equal(t, "ROI: 6.1%, 200 total keywords", headline.Subtitle)

	previous.TotalConversions = 600
	decline := buildHeadline(current, previous, period)
	assert.Equal(t, "warning", decline.Status)
	assert.Equal(t, "GMV down 10.0% in June 2025", decline.Message)
}

func TestHeadlineStatus(t *testing.T) {
	assert.Equal(t, "success", headlineStatus(12, 6))
	assert.Equal(t, "warning", headlineStatus(12, 0))
	assert.Equal(t, "warning", headlineStatus(-5, 1))
	assert.Equal(t, "critical", headlineStatus(-5, 0))
}

func TestRecommendationsDetailedStyle(t *testing.T) {
	snap := &models.ProductSnapshot{TotalProducts: 250, StarCount: 10, GoodCount: 40}

	detailed := buildRecommendations(snap, StyleDetailed)
	assert.Len(t, detailed.QuickWins, 3)
	assert.Contains(t, detailed.WatchList[2], "top 3 products")

	exec := buildRecommendations(snap, StyleExecSummary)
	require.NotEmpty(t, exec.QuickWins)
	assert.Contains(t, exec.QuickWins[0], "Executive summary: ")
}
