package tasks

import (
	"context"
	"fmt"

	"github.com/evmarket/pipeline/config"
	"github.com/evmarket/pipeline/state"
)

// TechAnalysis distills the per-company technology data into industry
// trends and a rollout roadmap. It requires company_tech_data and owns the
// tech_trends slot.
type TechAnalysis struct {
	cfg config.CompanyConfig
}

func NewTechAnalysis(cfg config.CompanyConfig) *TechAnalysis {
	return &TechAnalysis{cfg: cfg}
}

func (t *TechAnalysis) Name() string { return "tech_analysis" }

func (t *TechAnalysis) Process(_ context.Context, snapshot state.State) (state.Update, error) {
	raw, found := snapshot.Lookup(state.SlotCompanyTechData)
	if !found {
		return nil, fmt.Errorf("company_tech_data not available")
	}

	techData, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("company_tech_data has unexpected shape %T", raw)
	}

	batteryByCompany := make(map[string]any, len(techData))
	for company, entry := range techData {
		if m, ok := entry.(map[string]any); ok {
			batteryByCompany[company] = m["battery"]
		}
	}

	trends := map[string]any{
		"battery": map[string]any{
			"by_company": batteryByCompany,
			"direction":  "LFP for volume segments, high-nickel for range",
		},
		"charging": map[string]any{
			"direction": "800V architectures and megawatt charging for fleets",
		},
		"autonomy": map[string]any{
			"direction": "driver assistance standard, full autonomy still gated",
		},
		"roadmap": map[string]any{
			"critical_milestones": map[string]any{
				"2026": "solid-state pilot production",
				"2028": "price parity across all segments",
				"2030": "software-defined vehicles mainstream",
			},
		},
	}

	return state.Update{
		state.SlotTechTrends: trends,
		state.FieldMessages:  state.TaskMessage(t.Name(), "technology trend analysis complete"),
	}, nil
}
