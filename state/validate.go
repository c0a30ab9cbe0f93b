package state

import "fmt"

// maxIteration is the hard ceiling on workflow passes. A state that claims
// more than this is considered corrupt.
const maxIteration = 1000

// Validate reports structural problems with the state. It is a pure check
// with no side effects; an empty result means the state is well formed.
func (s State) Validate() []string {
	var problems []string

	if s.WorkflowID == "" {
		problems = append(problems, "workflow_id is empty")
	}
	if s.StartedAt.IsZero() {
		problems = append(problems, "started_at is not set")
	}
	if !s.Stage.Valid() {
		problems = append(problems, fmt.Sprintf("unknown stage %q", s.Stage))
	}
	if s.Iteration < 0 {
		problems = append(problems, fmt.Sprintf("negative iteration %d", s.Iteration))
	}
	if s.Iteration > maxIteration {
		problems = append(problems, fmt.Sprintf("iteration %d exceeds ceiling %d", s.Iteration, maxIteration))
	}
	if s.CompletedTasks == nil {
		problems = append(problems, "completed_tasks map is nil")
	}
	if s.TaskErrors == nil {
		problems = append(problems, "task_errors map is nil")
	}
	if s.Results == nil {
		problems = append(problems, "results map is nil")
	}

	seen := make(map[string]bool, len(s.NextTasks))
	for _, task := range s.NextTasks {
		if seen[task] {
			problems = append(problems, fmt.Sprintf("task %q scheduled twice in next_tasks", task))
		}
		seen[task] = true
		if s.CompletedTasks[task] {
			problems = append(problems, fmt.Sprintf("completed task %q still in next_tasks", task))
		}
	}

	if s.WorkflowComplete && s.Stage != StageCompleted {
		problems = append(problems, fmt.Sprintf("workflow_complete set while stage is %s", s.Stage))
	}
	if !s.CompletedAt.IsZero() && s.CompletedAt.Before(s.StartedAt) {
		problems = append(problems, "completed_at precedes started_at")
	}

	return problems
}
