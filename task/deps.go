package task

import (
	"strings"

	"github.com/evmarket/pipeline/state"
)

// Dependencies is the static prerequisite table: task identifier to the
// state fields that must be satisfied before the task may run. Tasks not
// listed have no prerequisites.
//
// Two field kinds exist, distinguished by naming convention. Fields with a
// _generated or _complete suffix are boolean flags and must be truthy.
// Everything else is a data field and must be present, where present means
// the result slot holds a non-nil value; an empty map or list still counts
// as present.
var Dependencies = map[string][]string{
	"consumer_analysis": {state.SlotMarketTrends, state.SlotGovernmentPolicies},
	"tech_analysis":     {state.SlotCompanyTechData},
	"stock_analysis":    {state.SlotCompanyAnalysis},
	"chart_generation": {
		state.SlotMarketData,
		state.SlotConsumerPatterns,
		state.SlotCompanyAnalysis,
		state.SlotTechTrends,
		state.SlotStockAnalysis,
	},
	"report_generation": {state.FlagChartsGenerated},
}

// flagField reports whether a dependency names a boolean flag rather than
// a data slot.
func flagField(field string) bool {
	return strings.HasSuffix(field, "_generated") || strings.HasSuffix(field, "_complete")
}

// Check reports whether taskID's declared prerequisites are satisfied in
// the given snapshot. The missing list names every unsatisfied field in
// declaration order.
//
// Check must be run against the exact snapshot the task will receive, not
// against a state that siblings still in flight may merge into later.
func Check(snapshot state.State, taskID string) (ready bool, missing []string) {
	for _, field := range Dependencies[taskID] {
		value, found := snapshot.Lookup(field)
		if flagField(field) {
			if truthy, ok := value.(bool); !ok || !truthy {
				missing = append(missing, field)
			}
			continue
		}
		if !found {
			missing = append(missing, field)
		}
	}
	return len(missing) == 0, missing
}
