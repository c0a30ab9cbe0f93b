package tasks

import (
	"context"
	"fmt"

	"github.com/evmarket/pipeline/config"
	"github.com/evmarket/pipeline/state"
)

// ConsumerAnalysis studies buyer behavior: purchase drivers, barriers, and
// demographic segments. It reads the market research output and owns the
// consumer_patterns slot.
type ConsumerAnalysis struct {
	cfg    config.ResearchConfig
	search SearchProvider
}

func NewConsumerAnalysis(cfg config.ResearchConfig, search SearchProvider) *ConsumerAnalysis {
	return &ConsumerAnalysis{cfg: cfg, search: search}
}

func (c *ConsumerAnalysis) Name() string { return "consumer_analysis" }

func (c *ConsumerAnalysis) Process(ctx context.Context, snapshot state.State) (state.Update, error) {
	trends, _ := snapshot.Lookup(state.SlotMarketTrends)

	patterns := map[string]any{
		"purchase_drivers": []any{
			"fuel cost savings",
			"environmental concern",
			"driving experience",
		},
		"barriers": []any{
			"upfront price",
			"charging availability",
			"range anxiety",
		},
		"segments": map[string]any{
			"early_adopters": "tech-oriented, urban, high income",
			"mainstream":     "cost-driven, waiting for price parity",
			"fleet":          "TCO-driven, fastest conversion",
		},
	}

	var warnings []string
	if c.search != nil {
		results, err := c.search(ctx, "EV consumer survey purchase intention", c.cfg.MaxResults)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("consumer_analysis: survey search degraded: %v", err))
		} else {
			patterns["survey_sources"] = resultsToAny(results)
		}
	} else {
		patterns["note"] = fallbackNote
	}

	if trendMap, ok := trends.(map[string]any); ok {
		if _, hot := trendMap["price_parity"]; hot {
			patterns["outlook"] = "mainstream adoption accelerates as price parity nears"
		}
	}

	update := state.Update{
		state.SlotConsumerPatterns: patterns,
		state.FieldMessages:        state.TaskMessage(c.Name(), "consumer analysis complete"),
	}
	if len(warnings) > 0 {
		update[state.FieldWarnings] = warnings
	}
	return update, nil
}
