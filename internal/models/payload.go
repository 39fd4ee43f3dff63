// internal/models/payload.go
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// InsightPayload is the structured body stored in ai_insights.insight_data.
// The concrete shape is selected by the insight type.
type InsightPayload interface {
	Kind() InsightType
	Validate() error
}

type HeadlinePayload struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Subtitle string `json:"subtitle,omitempty"`
}

type InsightsPanelPayload struct {
	BeatRivals           []string `json:"beat_rivals"`
	OptimiseSpend        []string `json:"optimise_spend"`
	ExploreOpportunities []string `json:"explore_opportunities"`
}

type MarketAnalysisPayload struct {
	Headline   string   `json:"headline"`
	Summary    string   `json:"summary"`
	Highlights []string `json:"highlights"`
	Risks      []string `json:"risks"`
}

type RecommendationPayload struct {
	QuickWins      []string `json:"quick_wins"`
	StrategicMoves []string `json:"strategic_moves"`
	WatchList      []string `json:"watch_list"`
}

func (HeadlinePayload) Kind() InsightType       { return InsightTypeHeadline }
func (InsightsPanelPayload) Kind() InsightType  { return InsightTypePanel }
func (MarketAnalysisPayload) Kind() InsightType { return InsightTypeMarketAnalysis }
func (RecommendationPayload) Kind() InsightType { return InsightTypeRecommendation }

var headlineStatuses = map[string]bool{"success": true, "warning": true, "critical": true, "info": true}

func (p HeadlinePayload) Validate() error {
	if !headlineStatuses[p.Status] {
		return fmt.Errorf("headline status %q is not one of success, warning, critical, info", p.Status)
	}
	if p.Message == "" {
		return fmt.Errorf("headline message is required")
	}
	return nil
}

func (p InsightsPanelPayload) Validate() error {
	if len(p.BeatRivals)+len(p.OptimiseSpend)+len(p.ExploreOpportunities) == 0 {
		return fmt.Errorf("insight panel must contain at least one bullet")
	}
	return nil
}

func (p MarketAnalysisPayload) Validate() error {
	if p.Headline == "" {
		return fmt.Errorf("market analysis headline is required")
	}
	return nil
}

func (p RecommendationPayload) Validate() error {
	if len(p.QuickWins)+len(p.StrategicMoves)+len(p.WatchList) == 0 {
		return fmt.Errorf("recommendation must contain at least one bullet")
	}
	return nil
}

func newPayload(t InsightType) (InsightPayload, error) {
	switch t {
	case InsightTypeHeadline:
		return &HeadlinePayload{}, nil
	case InsightTypePanel:
		return &InsightsPanelPayload{}, nil
	case InsightTypeMarketAnalysis:
		return &MarketAnalysisPayload{}, nil
	case InsightTypeRecommendation:
		return &RecommendationPayload{}, nil
	default:
		return nil, fmt.Errorf("unknown insight type %q", t)
	}
}

// DecodePayload parses raw JSON into the variant registered for t. Unknown
// fields are rejected so a payload of one type cannot be stored under another.
func DecodePayload(t InsightType, raw []byte) (InsightPayload, error) {
	p, err := newPayload(t)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(p); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", t, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func EncodePayload(p InsightPayload) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(p)
}

func IsKnownInsightType(t InsightType) bool {
	_, err := newPayload(t)
	return err == nil
}
