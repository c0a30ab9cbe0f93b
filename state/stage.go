package state

// Stage identifies where a workflow is in its fixed forward progression.
// Stages only move forward; Rollback is the single explicit way back.
type Stage string

const (
	StageInitialization Stage = "initialization"
	StageDataCollection Stage = "data_collection"
	StageAnalysis       Stage = "analysis"
	StageSynthesis      Stage = "synthesis"
	StageReporting      Stage = "reporting"
	StageCompleted      Stage = "completed"
)

// Stages lists all valid stages in progression order.
var Stages = []Stage{
	StageInitialization,
	StageDataCollection,
	StageAnalysis,
	StageSynthesis,
	StageReporting,
	StageCompleted,
}

// Valid reports whether s is one of the declared stages.
func (s Stage) Valid() bool {
	return s.Index() >= 0
}

// Index returns the position of s in the progression, or -1 for an
// unknown stage.
func (s Stage) Index() int {
	for i, stage := range Stages {
		if s == stage {
			return i
		}
	}
	return -1
}

// Before reports whether s precedes other in the progression. Unknown
// stages are never before anything.
func (s Stage) Before(other Stage) bool {
	si, oi := s.Index(), other.Index()
	return si >= 0 && oi >= 0 && si < oi
}

// Next returns the stage that follows s, or s itself when s is terminal
// or unknown.
func (s Stage) Next() Stage {
	i := s.Index()
	if i < 0 || i >= len(Stages)-1 {
		return s
	}
	return Stages[i+1]
}

// Terminal reports whether s is the completed stage.
func (s Stage) Terminal() bool {
	return s == StageCompleted
}
