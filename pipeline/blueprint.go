package pipeline

import "github.com/evmarket/pipeline/state"

// ChainView describes one chain for display: its name and the task names
// of each sequential group.
type ChainView struct {
	Name   string     `json:"name"`
	Groups [][]string `json:"groups"`
}

// StageView describes one stage of the workflow for display.
type StageView struct {
	Stage  state.Stage `json:"stage"`
	Chains []ChainView `json:"chains,omitempty"`
}

// Blueprint returns the workflow structure in stage order, for the
// operator-facing structure display. It reflects the fixed DAG, not any
// particular run.
func (o *Orchestrator) Blueprint() []StageView {
	views := make([]StageView, 0, len(state.Stages))
	for _, stage := range state.Stages {
		plan, ok := o.plans[stage]
		view := StageView{Stage: stage}
		if ok {
			for _, chain := range plan.chains {
				cv := ChainView{Name: chain.Name}
				for _, group := range chain.Groups {
					names := make([]string, len(group))
					for i, t := range group {
						names[i] = t.Name()
					}
					cv.Groups = append(cv.Groups, names)
				}
				view.Chains = append(view.Chains, cv)
			}
		}
		views = append(views, view)
	}
	return views
}
