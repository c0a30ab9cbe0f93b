package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/evmarket/pipeline/config"
	"github.com/evmarket/pipeline/state"
)

// MarketResearch surveys the global EV market: size and growth, regional
// shares, and government policy posture. It owns the market_trends,
// government_policies, and market_data slots.
type MarketResearch struct {
	cfg    config.ResearchConfig
	search SearchProvider
}

// NewMarketResearch creates the market research task. search may be nil,
// in which case every query takes the fallback path.
func NewMarketResearch(cfg config.ResearchConfig, search SearchProvider) *MarketResearch {
	return &MarketResearch{cfg: cfg, search: search}
}

func (m *MarketResearch) Name() string { return "market_research" }

func (m *MarketResearch) Process(ctx context.Context, _ state.State) (state.Update, error) {
	var warnings []string

	global, err := m.searchSection(ctx, "electric vehicle market size growth forecast")
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("market_research: global search degraded: %v", err))
		global = fallbackGlobalMarket()
	}

	regional, err := m.regionalSection(ctx)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("market_research: regional search degraded: %v", err))
		regional = fallbackRegionalMarkets()
	}

	policies, err := m.searchSection(ctx, "electric vehicle subsidy policy charging infrastructure regulations")
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("market_research: policy search degraded: %v", err))
		policies = fallbackGovernmentPolicies()
	}

	trends := map[string]any{
		"battery_tech":        "battery advances keep extending range",
		"price_parity":        "purchase price closing on combustion models",
		"consumer_acceptance": "mainstream buyer acceptance rising",
	}

	marketData := map[string]any{
		"global_market":       global,
		"regional_markets":    regional,
		"government_policies": policies,
		"trends":              trends,
		"analysis_date":       time.Now().Format(time.RFC3339),
	}

	update := state.Update{
		state.SlotMarketData:         marketData,
		state.SlotMarketTrends:       trends,
		state.SlotGovernmentPolicies: policies,
		state.FieldMessages:          state.TaskMessage(m.Name(), "market research complete"),
	}
	if len(warnings) > 0 {
		update[state.FieldWarnings] = warnings
	}
	return update, nil
}

func (m *MarketResearch) searchSection(ctx context.Context, query string) (map[string]any, error) {
	if m.search == nil {
		return nil, fmt.Errorf("no search provider")
	}

	results, err := m.searchWithRetry(ctx, query)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"query":         query,
		"results":       resultsToAny(results),
		"analysis_date": time.Now().Format(time.RFC3339),
	}, nil
}

func (m *MarketResearch) regionalSection(ctx context.Context) (map[string]any, error) {
	if m.search == nil {
		return nil, fmt.Errorf("no search provider")
	}

	regions := []string{"China", "Europe", "USA", "Korea"}
	out := make(map[string]any, len(regions))
	for _, region := range regions {
		query := fmt.Sprintf("electric vehicle market share %s", region)
		results, err := m.searchWithRetry(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("region %s: %w", region, err)
		}
		out[region] = map[string]any{
			"query":   query,
			"results": resultsToAny(results),
		}
	}
	return out, nil
}

func (m *MarketResearch) searchWithRetry(ctx context.Context, query string) ([]SearchResult, error) {
	var lastErr error
	attempts := max(m.cfg.MaxRetries, 1)
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results, err := m.search(ctx, query, m.cfg.MaxResults)
		if err == nil {
			return results, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func resultsToAny(results []SearchResult) []any {
	out := make([]any, len(results))
	for i, r := range results {
		out[i] = map[string]any{
			"title":   r.Title,
			"url":     r.URL,
			"content": r.Content,
		}
	}
	return out
}

func fallbackGlobalMarket() map[string]any {
	return map[string]any{
		"market_size_2025": "around 500 billion USD",
		"growth_rate":      "18-22% annually",
		"forecast_2030":    "around 1.5 trillion USD",
		"note":             fallbackNote,
	}
}

func fallbackRegionalMarkets() map[string]any {
	return map[string]any{
		"China":  map[string]any{"market_share": "about 50%", "status": "largest market"},
		"Europe": map[string]any{"market_share": "about 25%", "status": "fast growth"},
		"USA":    map[string]any{"market_share": "about 15%", "status": "policy tailwind"},
		"Korea":  map[string]any{"market_share": "about 2%", "status": "domestic plus export"},
		"note":   fallbackNote,
	}
}

func fallbackGovernmentPolicies() map[string]any {
	return map[string]any{
		"subsidies":      "purchase subsidies maintained in major markets",
		"infrastructure": "charging buildout continues",
		"regulations":    "emission rules tightening",
		"note":           fallbackNote,
	}
}
