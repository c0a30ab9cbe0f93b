package tasks

import (
	"context"
	"fmt"

	"github.com/evmarket/pipeline/config"
	"github.com/evmarket/pipeline/state"
)

// CompanyAnalysis profiles the leading EV makers. When the search provider
// is available it discovers the current top makers dynamically; otherwise
// it falls back to the configured target list. It owns the
// company_analysis and company_tech_data slots.
type CompanyAnalysis struct {
	cfg    config.CompanyConfig
	search SearchProvider
}

func NewCompanyAnalysis(cfg config.CompanyConfig, search SearchProvider) *CompanyAnalysis {
	return &CompanyAnalysis{cfg: cfg, search: search}
}

func (c *CompanyAnalysis) Name() string { return "company_analysis" }

func (c *CompanyAnalysis) Process(ctx context.Context, _ state.State) (state.Update, error) {
	companies, fromFallback, err := c.selectCompanies(ctx)
	if err != nil {
		return nil, err
	}

	profiles := make(map[string]any, len(companies))
	techData := make(map[string]any, len(companies))
	for i, company := range companies {
		profile := fallbackCompanyProfiles[company]
		if profile == nil {
			profile = map[string]any{"position": fmt.Sprintf("rank %d by EV sales", i+1)}
		}
		profiles[company] = profile
		techData[company] = fallbackCompanyTech(company)
	}

	update := state.Update{
		state.SlotCompanyAnalysis: map[string]any{
			"companies":     profiles,
			"company_count": len(companies),
		},
		state.SlotCompanyTechData: techData,
		state.FieldMessages: state.TaskMessage(c.Name(),
			fmt.Sprintf("analyzed %d companies", len(companies))),
	}
	if fromFallback {
		update[state.FieldWarnings] = fmt.Sprintf(
			"company_analysis: using configured target list of %d makers", len(companies))
	}
	return update, nil
}

// selectCompanies returns the makers to analyze, preferring dynamic
// discovery and degrading to the configured target list.
func (c *CompanyAnalysis) selectCompanies(ctx context.Context) (companies []string, fromFallback bool, err error) {
	limit := c.cfg.MaxCompanies
	if limit <= 0 {
		limit = len(c.cfg.TargetCompanies)
	}

	if c.search != nil {
		results, searchErr := c.search(ctx, "top electric vehicle manufacturers by sales", limit)
		if searchErr == nil && len(results) > 0 {
			for _, r := range results {
				companies = append(companies, r.Title)
				if len(companies) == limit {
					break
				}
			}
			return companies, false, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, false, ctxErr
		}
	}

	fallback := c.cfg.TargetCompanies
	if len(fallback) == 0 {
		return nil, false, fmt.Errorf("no search provider and no target company list configured")
	}
	if len(fallback) > limit {
		fallback = fallback[:limit]
	}
	return fallback, true, nil
}

var fallbackCompanyProfiles = map[string]map[string]any{
	"BYD": {
		"ev_sales_2024": 3000000,
		"position":      "global volume leader, vertically integrated batteries",
	},
	"Tesla": {
		"ev_sales_2024": 1800000,
		"position":      "software and charging network lead",
	},
	"Volkswagen": {
		"ev_sales_2024": 770000,
		"position":      "broad European lineup on dedicated platform",
	},
	"Geely": {
		"ev_sales_2024": 880000,
		"position":      "multi-brand strategy across price tiers",
	},
	"Hyundai": {
		"ev_sales_2024": 550000,
		"position":      "fast-charging architecture, design-led lineup",
	},
}

func fallbackCompanyTech(company string) map[string]any {
	tech := map[string]any{
		"battery":  "lithium-ion, LFP share growing",
		"platform": "dedicated EV platform",
	}
	switch company {
	case "BYD":
		tech["battery"] = "blade LFP, in-house cells"
	case "Tesla":
		tech["battery"] = "4680 cells, structural pack"
	case "Hyundai":
		tech["platform"] = "800V fast-charging architecture"
	}
	return tech
}
