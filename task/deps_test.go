package task_test

import (
	"reflect"
	"testing"

	"github.com/evmarket/pipeline/state"
	"github.com/evmarket/pipeline/task"
)

func TestCheck_NoPrerequisites(t *testing.T) {
	s := state.NewInitial(nil)

	for _, taskID := range []string{"market_research", "company_analysis"} {
		ready, missing := task.Check(s, taskID)
		if !ready || len(missing) != 0 {
			t.Errorf("Check(%s) = %v %v, want ready with nothing missing", taskID, ready, missing)
		}
	}
}

func TestCheck_DeclaredTasks(t *testing.T) {
	tests := []struct {
		name        string
		taskID      string
		update      state.Update
		wantReady   bool
		wantMissing []string
	}{
		{
			name:        "consumer_analysis with nothing set",
			taskID:      "consumer_analysis",
			wantMissing: []string{state.SlotMarketTrends, state.SlotGovernmentPolicies},
		},
		{
			name:   "consumer_analysis partially satisfied",
			taskID: "consumer_analysis",
			update: state.Update{
				state.SlotMarketTrends: map[string]any{"growth": "strong"},
			},
			wantMissing: []string{state.SlotGovernmentPolicies},
		},
		{
			name:   "consumer_analysis satisfied by presence even when empty",
			taskID: "consumer_analysis",
			update: state.Update{
				state.SlotMarketTrends:       map[string]any{},
				state.SlotGovernmentPolicies: map[string]any{},
			},
			wantReady: true,
		},
		{
			name:        "tech_analysis missing company data",
			taskID:      "tech_analysis",
			wantMissing: []string{state.SlotCompanyTechData},
		},
		{
			name:      "stock_analysis after company_analysis",
			taskID:    "stock_analysis",
			update:    state.Update{state.SlotCompanyAnalysis: map[string]any{"BYD": "leader"}},
			wantReady: true,
		},
		{
			name:   "chart_generation reports every missing slot",
			taskID: "chart_generation",
			update: state.Update{
				state.SlotMarketData:       map[string]any{},
				state.SlotConsumerPatterns: map[string]any{},
			},
			wantMissing: []string{
				state.SlotCompanyAnalysis,
				state.SlotTechTrends,
				state.SlotStockAnalysis,
			},
		},
		{
			name:        "report_generation needs the flag not the slot",
			taskID:      "report_generation",
			update:      state.Update{state.SlotCharts: map[string]any{"sales": "chart"}},
			wantMissing: []string{state.FlagChartsGenerated},
		},
		{
			name:      "report_generation with flag set",
			taskID:    "report_generation",
			update:    state.Update{state.FlagChartsGenerated: true},
			wantReady: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := state.NewInitial(nil)
			if tt.update != nil {
				s = s.Apply(tt.update)
			}

			ready, missing := task.Check(s, tt.taskID)
			if ready != tt.wantReady {
				t.Errorf("ready = %v, want %v", ready, tt.wantReady)
			}
			if !reflect.DeepEqual(missing, tt.wantMissing) {
				t.Errorf("missing = %v, want %v", missing, tt.wantMissing)
			}
		})
	}
}

func TestCheck_AgainstSnapshotOnly(t *testing.T) {
	base := state.NewInitial(nil)
	snapshot := base.Clone()

	// A sibling's later merge into another copy must not affect the
	// snapshot the check runs against.
	base.Apply(state.Update{state.SlotMarketTrends: map[string]any{}})

	ready, missing := task.Check(snapshot, "consumer_analysis")
	if ready {
		t.Errorf("snapshot check should not see later writes, missing = %v", missing)
	}
}
