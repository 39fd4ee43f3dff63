// internal/services/generators.go
package services

import (
	"fmt"
	"math"

	"github.com/shareview/insights-backend/internal/models"
	"github.com/shareview/insights-backend/internal/utils"
)

const (
	StyleStandard     = "standard"
	StyleConcise      = "concise"
	StyleExecSummary  = "exec-summary"
	StyleDetailed     = "detailed"
	execSummaryPrefix = "Executive summary: "
)

func pct(value float64) string {
	return fmt.Sprintf("%.1f", value)
}

func share(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

func summarise(bullets []string) []string {
	if len(bullets) == 0 {
		return bullets
	}
	out := []string{execSummaryPrefix + bullets[0]}
	if len(bullets) > 1 {
		out = append(out, bullets[1])
	}
	return out
}

func firstOnly(bullets []string) []string {
	if len(bullets) == 0 {
		return bullets
	}
	return bullets[:1]
}

// headlineStatus grades a month from GMV growth and ROI, both in percent.
func headlineStatus(gmvGrowth, roi float64) string {
	if gmvGrowth > 10 && roi > 5 {
		return "success"
	}
	if gmvGrowth > 0 || roi > 0 {
		return "warning"
	}
	return "critical"
}

func percentChange(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return (current - previous) / previous * 100
}

// buildHeadline uses conversions as the GMV proxy and CVR as ROI.
func buildHeadline(current, previous *models.KeywordsSnapshot, period utils.Period) models.HeadlinePayload {
	growth := 0.0
	if previous != nil {
		growth = percentChange(float64(current.TotalConversions), float64(previous.TotalConversions))
	}
	roi := current.OverallCVR

	direction := "up"
	if growth < 0 {
		direction = "down"
	}

	return models.HeadlinePayload{
		Status:   headlineStatus(growth, roi),
		Message:  fmt.Sprintf("GMV %s %s%% in %s", direction, pct(math.Abs(growth)), period.Label()),
		Subtitle: fmt.Sprintf("ROI: %s%%, %d total keywords", pct(roi), current.TotalKeywords),
	}
}

func buildInsightsPanel(snap *models.KeywordsSnapshot, style string) models.InsightsPanelPayload {
	highPerformers := snap.TierStarCount + snap.TierStrongCount
	highShare := share(highPerformers, snap.TotalKeywords)
	underShare := share(snap.TierUnderperformingCount+snap.TierPoorCount, snap.TotalKeywords)

	beatRivals := []string{
		fmt.Sprintf("Star and strong keywords now represent %s%% of the portfolio.", pct(highShare)),
		fmt.Sprintf("Overall conversion rate is holding at %s%%.", pct(snap.OverallCVR)),
	}
	if highShare >= 15 {
		beatRivals = append(beatRivals, "Maintain momentum by protecting bids on the top-performing terms.")
	} else {
		beatRivals = append(beatRivals, "Prioritise budget for top-performing terms to lift win rates.")
	}

	optimiseSpend := []string{
		fmt.Sprintf("Underperforming keywords account for %s%% of coverage.", pct(underShare)),
		fmt.Sprintf("Overall CTR is %s%%, signalling room to refine targeting.", pct(snap.OverallCTR)),
	}
	if underShare >= 50 {
		optimiseSpend = append(optimiseSpend, "Trim low-quality queries and reallocate spend to proven themes.")
	} else {
		optimiseSpend = append(optimiseSpend, "Tighten match types on low-converting queries to protect efficiency.")
	}

	explore := []string{
		fmt.Sprintf("You have %d high-performing keywords to scale confidently.", highPerformers),
		fmt.Sprintf("With %d star terms, expand coverage into adjacent categories.", snap.TierStarCount),
	}
	if snap.TierStarCount >= 10 {
		explore = append(explore, "Test incremental budget on star terms to capture missed demand.")
	} else {
		explore = append(explore, "Surface new star candidates by broadening discovery campaigns.")
	}

	switch style {
	case StyleConcise:
		beatRivals, optimiseSpend, explore = firstOnly(beatRivals), firstOnly(optimiseSpend), firstOnly(explore)
	case StyleExecSummary:
		beatRivals, optimiseSpend, explore = summarise(beatRivals), summarise(optimiseSpend), summarise(explore)
	}

	return models.InsightsPanelPayload{
		BeatRivals:           beatRivals,
		OptimiseSpend:        optimiseSpend,
		ExploreOpportunities: explore,
	}
}

func buildMarketAnalysis(snap *models.CategorySnapshot, style string) models.MarketAnalysisPayload {
	healthy := snap.HealthHealthyCount + snap.HealthStarCount
	healthyShare := share(healthy, snap.TotalCategories)

	headline := fmt.Sprintf("Market resilience is steady with %s%% healthy or star categories.", pct(healthyShare))
	highlights := []string{
		fmt.Sprintf("Healthy and star categories total %d out of %d.", healthy, snap.TotalCategories),
		fmt.Sprintf("Click efficiency remains steady at %s%% CTR.", pct(snap.OverallCTR)),
		fmt.Sprintf("Conversion strength sits at %s%% CVR across categories.", pct(snap.OverallCVR)),
	}

	risk := "Monitor lower-performing categories to prevent drift."
	if healthyShare < 20 {
		risk = "Category health is concentrated; diversify high-performing segments."
	}

	switch style {
	case StyleConcise:
		highlights = highlights[:1]
	case StyleExecSummary:
		headline = execSummaryPrefix + headline
		highlights = highlights[:2]
	}

	return models.MarketAnalysisPayload{
		Headline:   headline,
		Summary:    fmt.Sprintf("CTR is %s%% and CVR is %s%%, reflecting stable demand.", pct(snap.OverallCTR), pct(snap.OverallCVR)),
		Highlights: highlights,
		Risks:      []string{risk},
	}
}

func buildRecommendations(snap *models.ProductSnapshot, style string) models.RecommendationPayload {
	strong := snap.StarCount + snap.GoodCount
	strongShare := share(strong, snap.TotalProducts)

	quickWins := []string{
		fmt.Sprintf("Protect spend on the %d star and good products driving %s%% of range.", strong, pct(strongShare)),
		fmt.Sprintf("Reduce wasted clicks (%s%%) by tightening product exclusions.", pct(snap.WastedClicksPercentage)),
	}
	strategic := []string{
		fmt.Sprintf("Shift budget towards the top 1%% of products capturing %s%% of conversions.", pct(snap.Top1PctConversionsShare)),
		fmt.Sprintf("Refine merchandising for %d underperforming products to lift CVR.", snap.UnderperformerCount),
	}
	watchList := []string{
		"Monitor stock availability on star products to avoid conversion leakage.",
		"Review price competitiveness on high-traffic, low-converting items.",
	}

	switch style {
	case StyleConcise:
		quickWins, strategic, watchList = firstOnly(quickWins), firstOnly(strategic), firstOnly(watchList)
	case StyleExecSummary:
		quickWins, strategic, watchList = summarise(quickWins), summarise(strategic), summarise(watchList)
	case StyleDetailed:
		quickWins = append(quickWins, fmt.Sprintf("%d star products represent the highest-priority scaling opportunity.", snap.StarCount))
		strategic = append(strategic, fmt.Sprintf("Focus on the %d good-performing products to drive incremental growth.", snap.GoodCount))
		topCount := int(math.Ceil(float64(snap.TotalProducts) * 0.01))
		watchList = append(watchList, fmt.Sprintf("Track conversion rates on the top %d products (top 1%%) for optimization signals.", topCount))
	}

	return models.RecommendationPayload{
		QuickWins:      quickWins,
		StrategicMoves: strategic,
		WatchList:      watchList,
	}
}
