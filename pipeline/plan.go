package pipeline

import (
	"slices"
	"strings"

	"github.com/evmarket/pipeline/state"
	"github.com/evmarket/pipeline/task"
	"github.com/evmarket/pipeline/workflows"
)

// stagePlan describes what one stage does per pass: which chains to fan
// out (possibly none) and the guard that must hold before advancing.
type stagePlan struct {
	// chains run concurrently each pass while the stage holds. Tasks
	// already completed are skipped, so a retrying pass only re-runs
	// what failed.
	chains []workflows.Chain

	// guard reports whether the stage may advance, and if not, why.
	guard func(s state.State) (ok bool, reason string)
}

// collectionTasks are the base collection tasks whose completion gates the
// data_collection stage.
var collectionTasks = []string{"market_research", "company_analysis"}

// chartInputs are the result slots chart generation consumes; the analysis
// stage holds until all of them are populated.
var chartInputs = task.Dependencies["chart_generation"]

// buildPlans wires the stage machine. The workflow shape is fixed: run
// modes and configuration adjust task parameters, never the DAG.
func (o *Orchestrator) buildPlans() map[state.Stage]stagePlan {
	research := workflows.NewChain("research", o.tasks.marketResearch, o.tasks.consumerAnalysis)
	company := workflows.Chain{
		Name: "company",
		Groups: []workflows.Group{
			{o.tasks.companyAnalysis},
			{o.tasks.techAnalysis, o.tasks.stockAnalysis},
		},
	}
	collection := []workflows.Chain{research, company}

	return map[state.Stage]stagePlan{
		state.StageInitialization: {
			guard: func(state.State) (bool, string) { return true, "" },
		},
		state.StageDataCollection: {
			chains: collection,
			guard: func(s state.State) (bool, string) {
				var waiting []string
				for _, taskID := range collectionTasks {
					if !s.CompletedTasks[taskID] {
						waiting = append(waiting, taskID)
					}
				}
				if len(waiting) > 0 {
					return false, "collection tasks pending: " + strings.Join(waiting, ", ")
				}
				return true, ""
			},
		},
		state.StageAnalysis: {
			// Collection chains run again while analysis holds so a
			// failed analysis task gets retried; completed tasks skip.
			chains: collection,
			guard: func(s state.State) (bool, string) {
				var missing []string
				for _, slot := range chartInputs {
					if _, found := s.Lookup(slot); !found {
						missing = append(missing, slot)
					}
				}
				if len(missing) > 0 {
					return false, "chart inputs missing: " + strings.Join(missing, ", ")
				}
				return true, ""
			},
		},
		state.StageSynthesis: {
			chains: []workflows.Chain{
				workflows.NewChain("synthesis", o.tasks.chartGeneration),
			},
			guard: func(s state.State) (bool, string) {
				if !s.ChartsGenerated {
					return false, "charts not generated"
				}
				return true, ""
			},
		},
		state.StageReporting: {
			chains: []workflows.Chain{
				workflows.NewChain("reporting", o.tasks.reportGeneration),
			},
			guard: func(s state.State) (bool, string) {
				if _, found := s.Lookup(state.SlotFinalReport); !found {
					return false, "final report not populated"
				}
				return true, ""
			},
		},
	}
}

// allTaskIDs lists every task the pipeline schedules, in execution order.
func (o *Orchestrator) allTaskIDs() []string {
	return []string{
		o.tasks.marketResearch.Name(),
		o.tasks.consumerAnalysis.Name(),
		o.tasks.companyAnalysis.Name(),
		o.tasks.techAnalysis.Name(),
		o.tasks.stockAnalysis.Name(),
		o.tasks.chartGeneration.Name(),
		o.tasks.reportGeneration.Name(),
	}
}

// upcomingTasks lists what the given stage runs on its next pass: its
// plan's tasks that have not completed, in declaration order. The
// initialization stage schedules the collection kickoff it seeds.
func (o *Orchestrator) upcomingTasks(stage state.Stage, s state.State) []string {
	if stage == state.StageInitialization {
		return slices.Clone(collectionTasks)
	}
	plan, ok := o.plans[stage]
	if !ok {
		return []string{}
	}

	next := make([]string, 0, len(o.allTaskIDs()))
	for _, chain := range plan.chains {
		for _, taskID := range chain.Tasks() {
			if !s.CompletedTasks[taskID] {
				next = append(next, taskID)
			}
		}
	}
	return next
}

// pendingAfter recomputes the schedule from the completed set. The
// schedule is replaced wholesale every pass rather than edited in place.
func pendingAfter(s state.State, all []string) []string {
	pending := make([]string, 0, len(all))
	for _, taskID := range all {
		if !s.CompletedTasks[taskID] {
			pending = append(pending, taskID)
		}
	}
	return pending
}
