// internal/services/insight_builder.go
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shareview/insights-backend/internal/models"
	"github.com/shareview/insights-backend/internal/utils"
)

// InsightBuilder produces candidate insights for one retailer, period and page.
// Implementations read upstream analytics only and never persist.
type InsightBuilder interface {
	BuildInsights(ctx context.Context, input BuildInput) (*BuildResult, error)
}

type BuildInput struct {
	RetailerID     string
	PeriodType     string
	PeriodStart    time.Time
	PeriodEnd      time.Time
	PageType       string
	TabName        string
	StyleDirective string
}

// BuildResult holds the built insights plus non-fatal per-item errors.
type BuildResult struct {
	Insights []models.Insight `json:"insights"`
	Errors   []string         `json:"errors"`
}

func (in BuildInput) Validate() error {
	var problems []string
	if strings.TrimSpace(in.RetailerID) == "" {
		problems = append(problems, "retailer_id is required")
	}
	if strings.TrimSpace(in.PageType) == "" {
		problems = append(problems, "page_type is required")
	}
	if strings.TrimSpace(in.TabName) == "" {
		problems = append(problems, "tab_name is required")
	}
	if in.PeriodStart.IsZero() || in.PeriodEnd.IsZero() {
		problems = append(problems, "period_start and period_end are required")
	} else if in.PeriodEnd.Before(in.PeriodStart) {
		problems = append(problems, "period_end is before period_start")
	}
	if in.StyleDirective != "" && !utils.IsStyleDirective(in.StyleDirective) {
		problems = append(problems, fmt.Sprintf("unknown style directive %q", in.StyleDirective))
	}
	if len(problems) > 0 {
		return utils.NewValidationError("invalid build input", problems)
	}
	return nil
}

func (in BuildInput) period() utils.Period {
	periodType := in.PeriodType
	if periodType == "" {
		periodType = models.PeriodTypeMonth
	}
	return utils.Period{Type: periodType, Start: in.PeriodStart, End: in.PeriodEnd}
}

const (
	PlaceholderModelName    = "placeholder"
	PlaceholderModelVersion = "v1"
	placeholderConfidence   = 0.5
)

// PlaceholderBuilder derives deterministic commentary from snapshot rows.
type PlaceholderBuilder struct {
	source AnalyticsSource
}

func NewPlaceholderBuilder(source AnalyticsSource) *PlaceholderBuilder {
	return &PlaceholderBuilder{source: source}
}

// insight types produced per page type
var pageGenerators = map[string][]models.InsightType{
	models.DomainOverview:   {models.InsightTypeHeadline, models.InsightTypePanel, models.InsightTypeMarketAnalysis, models.InsightTypeRecommendation},
	models.DomainKeywords:   {models.InsightTypePanel},
	models.DomainCategories: {models.InsightTypeMarketAnalysis},
	models.DomainProducts:   {models.InsightTypeRecommendation},
}

type snapshotSet struct {
	keywords     *models.KeywordsSnapshot
	prevKeywords *models.KeywordsSnapshot
	categories   *models.CategorySnapshot
	products     *models.ProductSnapshot
}

func (b *PlaceholderBuilder) BuildInsights(ctx context.Context, input BuildInput) (*BuildResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	result := &BuildResult{Insights: []models.Insight{}, Errors: []string{}}
	types, ok := pageGenerators[input.PageType]
	if !ok {
		result.Errors = append(result.Errors, fmt.Sprintf("No insight generators configured for page type '%s'.", input.PageType))
		return result, nil
	}

	snaps, err := b.fetch(ctx, input, types)
	if err != nil {
		return nil, utils.NewTransientError("failed to read analytics snapshots", err)
	}

	style := input.StyleDirective
	if style == "" {
		style = StyleStandard
	}

	for _, t := range types {
		payload, missing := b.generate(t, snaps, input.period(), style)
		if missing != "" {
			result.Errors = append(result.Errors, missing)
			continue
		}
		insight, err := newPendingInsight(input, payload, style)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Failed to build %s: %v", t, err))
			continue
		}
		result.Insights = append(result.Insights, insight)
	}

	return result, nil
}

// fetch reads only the snapshots the requested insight types need, concurrently.
func (b *PlaceholderBuilder) fetch(ctx context.Context, input BuildInput, types []models.InsightType) (*snapshotSet, error) {
	needs := map[models.InsightType]bool{}
	for _, t := range types {
		needs[t] = true
	}

	snaps := &snapshotSet{}
	g, gctx := errgroup.WithContext(ctx)

	if needs[models.InsightTypePanel] || needs[models.InsightTypeHeadline] {
		g.Go(func() error {
			var err error
			snaps.keywords, err = b.source.KeywordsSnapshot(gctx, input.RetailerID, input.PeriodStart, input.PeriodEnd)
			return err
		})
	}
	if needs[models.InsightTypeHeadline] {
		prev := input.period().Previous()
		g.Go(func() error {
			var err error
			snaps.prevKeywords, err = b.source.KeywordsSnapshot(gctx, input.RetailerID, prev.Start, prev.End)
			return err
		})
	}
	if needs[models.InsightTypeMarketAnalysis] {
		g.Go(func() error {
			var err error
			snaps.categories, err = b.source.CategorySnapshot(gctx, input.RetailerID, input.PeriodStart, input.PeriodEnd)
			return err
		})
	}
	if needs[models.InsightTypeRecommendation] {
		g.Go(func() error {
			var err error
			snaps.products, err = b.source.ProductSnapshot(gctx, input.RetailerID, input.PeriodStart, input.PeriodEnd)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snaps, nil
}

// generate returns the payload for t, or a message describing the missing input.
func (b *PlaceholderBuilder) generate(t models.InsightType, snaps *snapshotSet, period utils.Period, style string) (models.InsightPayload, string) {
	switch t {
	case models.InsightTypeHeadline:
		if snaps.keywords == nil {
			return nil, "Missing keywords snapshot for headline generation."
		}
		return buildHeadline(snaps.keywords, snaps.prevKeywords, period), ""
	case models.InsightTypePanel:
		if snaps.keywords == nil {
			return nil, "Missing keywords snapshot for insight panel generation."
		}
		return buildInsightsPanel(snaps.keywords, style), ""
	case models.InsightTypeMarketAnalysis:
		if snaps.categories == nil {
			return nil, "Missing category snapshot for market analysis generation."
		}
		return buildMarketAnalysis(snaps.categories, style), ""
	case models.InsightTypeRecommendation:
		if snaps.products == nil {
			return nil, "Missing product snapshot for recommendations generation."
		}
		return buildRecommendations(snaps.products, style), ""
	default:
		return nil, fmt.Sprintf("No generator for insight type '%s'.", t)
	}
}

func newPendingInsight(input BuildInput, payload models.InsightPayload, style string) (models.Insight, error) {
	confidence := placeholderConfidence
	insight := models.Insight{
		RetailerID:      input.RetailerID,
		PageType:        input.PageType,
		TabName:         input.TabName,
		PeriodType:      input.period().Type,
		PeriodStart:     input.PeriodStart,
		PeriodEnd:       input.PeriodEnd,
		ModelName:       PlaceholderModelName,
		ModelVersion:    PlaceholderModelVersion,
		ConfidenceScore: &confidence,
		PromptHash: utils.HashParts(input.RetailerID, input.PageType, input.TabName,
			input.PeriodStart.Format(utils.DateLayout), input.PeriodEnd.Format(utils.DateLayout),
			string(payload.Kind()), style),
		Status:   models.InsightStatusPending,
		IsActive: false,
	}
	if err := insight.SetPayload(payload); err != nil {
		return models.Insight{}, err
	}
	return insight, nil
}
