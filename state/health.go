package state

import "fmt"

// Severity grades a health issue.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// HealthIssue is one finding from a health check.
type HealthIssue struct {
	Severity Severity `json:"severity"`
	Field    string   `json:"field"`
	Detail   string   `json:"detail"`
}

// HealthThresholds tune when a running workflow is flagged as unhealthy.
type HealthThresholds struct {
	// MaxErrors is the error count above which the workflow is critical.
	MaxErrors int
	// MaxTaskErrors is the number of failed tasks above which the
	// workflow is critical.
	MaxTaskErrors int
	// IterationWarning flags workflows that have run this many passes
	// without completing.
	IterationWarning int
}

// DefaultHealthThresholds returns the thresholds used when none are
// configured.
func DefaultHealthThresholds() HealthThresholds {
	return HealthThresholds{
		MaxErrors:        10,
		MaxTaskErrors:    3,
		IterationWarning: 20,
	}
}

// CheckHealth inspects a running workflow for signs of trouble. Structural
// validation problems are always critical; the rest are graded against the
// thresholds. An empty result means healthy.
func (s State) CheckHealth(t HealthThresholds) []HealthIssue {
	var issues []HealthIssue

	for _, problem := range s.Validate() {
		issues = append(issues, HealthIssue{
			Severity: SeverityCritical,
			Field:    "structure",
			Detail:   problem,
		})
	}

	if n := len(s.Errors); n > 0 {
		severity := SeverityWarning
		if n > t.MaxErrors {
			severity = SeverityCritical
		}
		issues = append(issues, HealthIssue{
			Severity: severity,
			Field:    FieldErrors,
			Detail:   fmt.Sprintf("%d errors recorded", n),
		})
	}

	if n := len(s.TaskErrors); n > t.MaxTaskErrors {
		issues = append(issues, HealthIssue{
			Severity: SeverityCritical,
			Field:    FieldTaskErrors,
			Detail:   fmt.Sprintf("%d tasks failed", n),
		})
	}

	if !s.WorkflowComplete && s.Iteration >= t.IterationWarning {
		issues = append(issues, HealthIssue{
			Severity: SeverityWarning,
			Field:    FieldIteration,
			Detail:   fmt.Sprintf("workflow still running after %d passes", s.Iteration),
		})
	}

	if s.Stage == StageCompleted && !s.WorkflowComplete {
		issues = append(issues, HealthIssue{
			Severity: SeverityWarning,
			Field:    FieldStage,
			Detail:   "stage is completed but workflow_complete flag is unset",
		})
	}

	return issues
}
