// internal/services/generation_service_test.go
package services

import (
	"context"
	"errors"
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

type brokenBuilder struct{}

func (brokenBuilder) BuildInsights(ctx context.Context, input BuildInput) (*BuildResult, error) {
	return nil, errors.New("model endpoint timed out")
}

// supersedingBuilder records a failure for the running job while it builds.
type supersedingBuilder struct {
	inner InsightBuilder
	jobs  *JobService
}

func (b supersedingBuilder) BuildInsights(ctx context.Context, input BuildInput) (*BuildResult, error) {
	jobs, err := b.jobs.ListRecent(ctx, JobFilter{})
	if err != nil {
		return nil, err
	}
	if err := b.jobs.MarkFailed(ctx, jobs[0].ID, "superseded by operator"); err != nil {
		return nil, err
	}
	return b.inner.BuildInsights(ctx, input)
}

type heldLocker struct{}

func (heldLocker) Acquire(ctx context.Context, key string) (func(), error) {
	return nil, ErrLockHeld
}

// countingLocker records the keys it was asked for.
type countingLocker struct {
	keys     []string
	released int
}

func (l *countingLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.keys = append(l.keys, key)
	return func() { l.released++ }, nil
}

type GenerationServiceTestSuite struct {
	suite.Suite
	db       *gorm.DB
	ctx      context.Context
	jobs     *JobService
	insights *InsightService
	notifier *recordingNotifier
	actor    uuid.UUID
}

func (suite *GenerationServiceTestSuite) SetupTest() {
	suite.db = testutil.DB(suite.T())
	suite.ctx = context.Background()
	start, end := testutil.Month(2025, 6)
	testutil.SeedSnapshots(suite.T(), suite.db, "boots", start, end)

	suite.jobs = NewJobService(suite.db)
	suite.insights = NewInsightService(suite.db)
	suite.notifier = &recordingNotifier{}
	suite.actor = uuid.New()
}

func (suite *GenerationServiceTestSuite) service(builder InsightBuilder, locker GenerationLocker) *GenerationService {
	return NewGenerationService(suite.db, suite.jobs, builder, suite.insights, locker, suite.notifier, "")
}

func (suite *GenerationServiceTestSuite) placeholder() InsightBuilder {
	return NewPlaceholderBuilder(NewSnapshotStore(suite.db))
}

func juneGeneration(pageType string) *GenerateRequest {
	return &GenerateRequest{
		RetailerID:  "boots",
		PageType:    pageType,
		PeriodStart: "2025-06-01",
		PeriodEnd:   "2025-06-30",
	}
}

func (suite *GenerationServiceTestSuite) jobCount() int64 {
	var count int64
	require.NoError(suite.T(), suite.db.Model(&models.GenerationJob{}).Count(&count).Error)
	return count
}

func (suite *GenerationServiceTestSuite) TestGenerateCompletesJob() {
	locker := &countingLocker{}
	outcome, err := suite.service(suite.placeholder(), locker).Generate(suite.ctx, juneGeneration(models.DomainOverview), suite.actor)
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), models.JobStatusCompleted, outcome.Status)
	assert.Equal(suite.T(), 4, outcome.InsightsGenerated)
	assert.Len(suite.T(), outcome.InsightIDs, 4)
	assert.Empty(suite.T(), outcome.Errors)

	job, err := suite.jobs.Get(suite.ctx, outcome.JobID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.JobStatusCompleted, job.Status)
	assert.Equal(suite.T(), models.DefaultTabName, job.TabName)
	require.NotNil(suite.T(), job.CreatedBy)
	assert.Equal(suite.T(), suite.actor, *job.CreatedBy)

	insight, err := suite.insights.Get(suite.ctx, outcome.InsightIDs[0])
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.InsightStatusPending, insight.Status)
	require.NotNil(suite.T(), insight.CreatedBy)
	assert.Equal(suite.T(), suite.actor, *insight.CreatedBy)

	assert.Equal(suite.T(), []string{"insights-generation:boots:overview:insights:2025-06-01:2025-06-30"}, locker.keys)
	assert.Equal(suite.T(), 1, locker.released)
}

func (suite *GenerationServiceTestSuite) TestPartialBuildStillCompletes() {
	req := juneGeneration(models.DomainProducts)
	req.PeriodStart, req.PeriodEnd = "2025-07-01", "2025-07-31"

	outcome, err := suite.service(suite.placeholder(), nil).Generate(suite.ctx, req, suite.actor)
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), models.JobStatusCompleted, outcome.Status)
	assert.Zero(suite.T(), outcome.InsightsGenerated)
	assert.Equal(suite.T(), []string{"Missing product snapshot for recommendations generation."}, outcome.Errors)
}

func (suite *GenerationServiceTestSuite) TestBuilderFailureFailsJob() {
	_, err := suite.service(brokenBuilder{}, nil).Generate(suite.ctx, juneGeneration(models.DomainKeywords), suite.actor)
	require.Error(suite.T(), err)

	jobs, err := suite.jobs.ListRecent(suite.ctx, JobFilter{})
	require.NoError(suite.T(), err)
	require.Len(suite.T(), jobs, 1)
	assert.Equal(suite.T(), models.JobStatusFailed, jobs[0].Status)
	assert.Equal(suite.T(), "model endpoint timed out", jobs[0].ErrorMessage)
	assert.NotNil(suite.T(), jobs[0].CompletedAt)

	assert.Equal(suite.T(), []string{"model endpoint timed out"}, suite.notifier.failed)

	var insights int64
	require.NoError(suite.T(), suite.db.Model(&models.Insight{}).Count(&insights).Error)
	assert.Zero(suite.T(), insights)
}

func (suite *GenerationServiceTestSuite) TestCompletionFailureKeepsNoInsights() {
	builder := supersedingBuilder{inner: suite.placeholder(), jobs: suite.jobs}
	_, err := suite.service(builder, nil).Generate(suite.ctx, juneGeneration(models.DomainOverview), suite.actor)
	assert.True(suite.T(), utils.IsKind(err, utils.KindConflict))

	jobs, err := suite.jobs.ListRecent(suite.ctx, JobFilter{})
	require.NoError(suite.T(), err)
	require.Len(suite.T(), jobs, 1)
	assert.Equal(suite.T(), models.JobStatusFailed, jobs[0].Status)
	assert.Equal(suite.T(), "superseded by operator", jobs[0].ErrorMessage)

	var insights int64
	require.NoError(suite.T(), suite.db.Model(&models.Insight{}).Count(&insights).Error)
	assert.Zero(suite.T(), insights)
}

func (suite *GenerationServiceTestSuite) TestHeldLockConflictsWithoutJob() {
	_, err := suite.service(suite.placeholder(), heldLocker{}).Generate(suite.ctx, juneGeneration(models.DomainKeywords), suite.actor)

	assert.True(suite.T(), utils.IsKind(err, utils.KindConflict))
	assert.Zero(suite.T(), suite.jobCount())
}

func (suite *GenerationServiceTestSuite) TestInvalidRequestCreatesNoJob() {
	_, err := suite.service(suite.placeholder(), nil).Generate(suite.ctx, juneGeneration("pricing"), suite.actor)
	assert.True(suite.T(), utils.IsKind(err, utils.KindValidation))

	req := juneGeneration(models.DomainKeywords)
	req.PeriodEnd = "2025-05-31"
	_, err = suite.service(suite.placeholder(), nil).Generate(suite.ctx, req, suite.actor)
	assert.True(suite.T(), utils.IsKind(err, utils.KindValidation))

	assert.Zero(suite.T(), suite.jobCount())
}

func TestGenerationServiceSuite(t *testing.T) {
	suite.Run(t, new(GenerationServiceTestSuite))
}

func TestGenerationLockKey(t *testing.T) {
	period, err := utils.ParseMonth("2025-06")
	require.NoError(t, err)

	assert.Equal(t, "insights-generation:boots:keywords:insights:2025-06-01:2025-06-30",
		GenerationLockKey("boots", "keywords", "insights", period))
}

func TestNoopLockerAlwaysAcquires(t *testing.T) {
	release, err := NoopLocker{}.Acquire(context.Background(), "any")
	require.NoError(t, err)
	release()

	again, err := NoopLocker{}.Acquire(context.Background(), "any")
	require.NoError(t, err)
	again()
}
