// Package pipeline drives the EV market analysis workflow: a staged state
// machine with guarded transitions, parallel chain fan-out, per-pass
// checkpointing, and health monitoring.
//
// One Step call processes exactly one pass: run the current stage's plan,
// fold the branches, checkpoint, evaluate the transition guard, advance or
// hold, and increment the iteration counter. Run loops Step until the
// terminal stage or the iteration ceiling.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/evmarket/pipeline/config"
	"github.com/evmarket/pipeline/observability"
	"github.com/evmarket/pipeline/state"
	"github.com/evmarket/pipeline/tasks"
	"github.com/evmarket/pipeline/workflows"
)

// FatalError terminates a run. The last checkpoint stays durable so the
// run can be inspected or resumed after the cause is fixed.
type FatalError struct {
	Reason string
	State  state.State
	Err    error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("workflow aborted: %s: %v", e.Reason, e.Err)
	}
	return "workflow aborted: " + e.Reason
}

func (e *FatalError) Unwrap() error { return e.Err }

// pipelineTasks holds the wired collaborators.
type pipelineTasks struct {
	marketResearch   *tasks.MarketResearch
	consumerAnalysis *tasks.ConsumerAnalysis
	companyAnalysis  *tasks.CompanyAnalysis
	techAnalysis     *tasks.TechAnalysis
	stockAnalysis    *tasks.StockAnalysis
	chartGeneration  *tasks.ChartGeneration
	reportGeneration *tasks.ReportGeneration
}

// Providers carries the optional external data providers. Nil fields make
// the corresponding tasks use their fallback data paths.
type Providers struct {
	Search tasks.SearchProvider
	Quotes tasks.QuoteProvider
}

// Orchestrator owns the stage machine and the run loop.
type Orchestrator struct {
	cfg      config.Config
	observer observability.Observer
	executor *workflows.Executor
	store    state.CheckpointStore
	tasks    pipelineTasks
	plans    map[state.Stage]stagePlan
	health   state.HealthThresholds
}

// New builds an Orchestrator from configuration. The observer and
// checkpoint store names are resolved against their registries.
func New(cfg config.Config, providers Providers) (*Orchestrator, error) {
	observer, err := observability.GetObserver(cfg.Observer)
	if err != nil {
		return nil, fmt.Errorf("resolve observer: %w", err)
	}

	store, err := state.GetCheckpointStore(cfg.Checkpoint.Store)
	if err != nil {
		return nil, fmt.Errorf("resolve checkpoint store: %w", err)
	}

	maxWorkers := cfg.Parallel.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = cfg.Parallel.WorkerCap
	}

	o := &Orchestrator{
		cfg:      cfg,
		observer: observer,
		executor: workflows.NewExecutor(observer, maxWorkers),
		store:    store,
		tasks: pipelineTasks{
			marketResearch:   tasks.NewMarketResearch(cfg.Tasks.Research, providers.Search),
			consumerAnalysis: tasks.NewConsumerAnalysis(cfg.Tasks.Research, providers.Search),
			companyAnalysis:  tasks.NewCompanyAnalysis(cfg.Tasks.Company, providers.Search),
			techAnalysis:     tasks.NewTechAnalysis(cfg.Tasks.Company),
			stockAnalysis:    tasks.NewStockAnalysis(cfg.Tasks.Stock, providers.Quotes),
			chartGeneration:  tasks.NewChartGeneration(cfg.Tasks.Charts),
			reportGeneration: tasks.NewReportGeneration(cfg.Tasks.Report),
		},
		health: state.HealthThresholds{
			MaxErrors:        cfg.Health.MaxErrors,
			MaxTaskErrors:    cfg.Health.MaxTaskErrors,
			IterationWarning: cfg.Health.IterationWarning,
		},
	}
	o.plans = o.buildPlans()
	return o, nil
}

// NewWorkflow creates the initial state for a fresh run, optionally
// seeding it with an operator message.
func (o *Orchestrator) NewWorkflow(message string) state.State {
	s := state.NewInitial(o.observer)
	if message != "" {
		s = s.Apply(state.Update{
			state.FieldMessages: state.UserMessage(message),
		})
	}
	return s
}

// Step processes exactly one orchestrator pass and returns the resulting
// state. A pass that exceeds the iteration ceiling returns a FatalError;
// the returned state still carries the terminal error entry.
func (o *Orchestrator) Step(ctx context.Context, s state.State) (state.State, error) {
	s = s.Apply(state.Update{state.FieldIteration: s.Iteration + 1})

	if s.Iteration > o.cfg.MaxIterations {
		s = s.Apply(state.Update{
			state.FieldErrors: fmt.Sprintf(
				"iteration ceiling %d exceeded at stage %s", o.cfg.MaxIterations, s.Stage),
		})
		fatal := &FatalError{
			Reason: fmt.Sprintf("iteration ceiling %d exceeded", o.cfg.MaxIterations),
			State:  s,
		}
		o.emit(ctx, EventWorkflowFatal, observability.LevelError, map[string]any{
			"workflow_id": s.WorkflowID,
			"stage":       string(s.Stage),
			"iteration":   s.Iteration,
			"reason":      fatal.Reason,
		})
		// The abort itself must stay resumable.
		_ = state.Checkpoint(ctx, o.store, s)
		return s, fatal
	}

	o.emit(ctx, EventPassStart, observability.LevelInfo, map[string]any{
		"workflow_id": s.WorkflowID,
		"stage":       string(s.Stage),
		"iteration":   s.Iteration,
	})

	plan, ok := o.plans[s.Stage]
	if !ok {
		return s, &FatalError{Reason: fmt.Sprintf("no plan for stage %s", s.Stage), State: s}
	}

	if s.Stage == state.StageInitialization {
		s = o.seedSchedule(s)
	}

	if len(plan.chains) > 0 {
		folded, err := o.executor.RunParallel(ctx, plan.chains, s)
		if err != nil {
			// Branch failures are already folded as error entries;
			// the run continues with partial state.
			var fanOut *workflows.FanOutError
			if !errors.As(err, &fanOut) {
				return s, &FatalError{Reason: "fan-out failed", State: s, Err: err}
			}
		}
		s = folded
	}

	s = s.Apply(state.Update{
		state.FieldPendingTasks: pendingAfter(s, o.allTaskIDs()),
		state.FieldNextTasks:    o.upcomingTasks(s.Stage, s),
	})

	if err := o.checkpoint(ctx, s); err != nil {
		return s, &FatalError{Reason: "checkpoint write failed", State: s, Err: err}
	}

	o.checkHealth(ctx, s)
	s = o.advance(ctx, plan, s)

	o.emit(ctx, EventPassComplete, observability.LevelInfo, map[string]any{
		"workflow_id": s.WorkflowID,
		"stage":       string(s.Stage),
		"iteration":   s.Iteration,
		"completed":   len(s.CompletedTasks),
		"task_errors": len(s.TaskErrors),
	})

	return s, nil
}

// Run loops Step until the workflow reaches its terminal stage. On
// success, checkpoints are deleted unless configured to be preserved. The
// final state is returned even on fatal abort.
func (o *Orchestrator) Run(ctx context.Context, s state.State) (state.State, error) {
	for !s.Stage.Terminal() {
		if err := ctx.Err(); err != nil {
			// Interrupt: leave the last checkpoint durable.
			_ = state.Checkpoint(context.WithoutCancel(ctx), o.store, s)
			return s, err
		}

		next, err := o.Step(ctx, s)
		if err != nil {
			return next, err
		}
		s = next
	}

	if !o.cfg.Checkpoint.Preserve {
		if err := o.store.Delete(ctx, s.WorkflowID); err != nil {
			s = s.Apply(state.Update{
				state.FieldWarnings: fmt.Sprintf("checkpoint cleanup failed: %v", err),
			})
		}
	}

	o.emit(ctx, EventWorkflowDone, observability.LevelInfo, map[string]any{
		"workflow_id": s.WorkflowID,
		"iterations":  s.Iteration,
		"completed":   len(s.CompletedTasks),
		"task_errors": len(s.TaskErrors),
	})

	return s, nil
}

// Resume loads a checkpoint file and continues the run from it.
func (o *Orchestrator) Resume(ctx context.Context, path string) (state.State, error) {
	s, err := state.LoadCheckpointFile(path)
	if err != nil {
		return state.State{}, err
	}
	s = s.WithObserver(o.observer)

	o.emit(ctx, state.EventCheckpointLoad, observability.LevelInfo, map[string]any{
		"workflow_id": s.WorkflowID,
		"stage":       string(s.Stage),
		"iteration":   s.Iteration,
		"path":        path,
	})

	return o.Run(ctx, s)
}

// seedSchedule populates the initial task schedule during the
// initialization stage.
func (o *Orchestrator) seedSchedule(s state.State) state.State {
	all := o.allTaskIDs()
	return s.Apply(state.Update{
		state.FieldPendingTasks: all,
		state.FieldNextTasks:    collectionTasks,
		state.FieldLogLines:     "schedule seeded",
	})
}

// advance evaluates the stage guard and either transitions or holds.
// Reaching the terminal stage stamps completion and persists the summary
// artifact.
func (o *Orchestrator) advance(ctx context.Context, plan stagePlan, s state.State) state.State {
	ok, reason := plan.guard(s)
	if !ok {
		o.emit(ctx, EventStageHold, observability.LevelVerbose, map[string]any{
			"workflow_id": s.WorkflowID,
			"stage":       string(s.Stage),
			"reason":      reason,
		})
		return s
	}

	from := s.Stage
	next := from.Next()
	s = s.Apply(state.Update{
		state.FieldStage:     next,
		state.FieldNextTasks: o.upcomingTasks(next, s),
		state.FieldLogLines:  fmt.Sprintf("stage %s -> %s", from, next),
	})

	if next == state.StageCompleted {
		s = s.Clone()
		s.CompletedAt = time.Now()
		s.WorkflowComplete = true
		if err := o.writeSummaryArtifact(ctx, s); err != nil {
			s = s.Apply(state.Update{
				state.FieldWarnings: fmt.Sprintf("summary artifact not written: %v", err),
			})
		}
		// The terminal state itself must be the durable one.
		_ = state.Checkpoint(ctx, o.store, s)
	}

	o.emit(ctx, EventStageTransition, observability.LevelInfo, map[string]any{
		"workflow_id": s.WorkflowID,
		"from":        string(from),
		"to":          string(next),
		"iteration":   s.Iteration,
	})

	return s
}

func (o *Orchestrator) checkpoint(ctx context.Context, s state.State) error {
	interval := o.cfg.Checkpoint.Interval
	if interval > 1 && s.Iteration%interval != 0 {
		return nil
	}
	return state.Checkpoint(ctx, o.store, s)
}

func (o *Orchestrator) checkHealth(ctx context.Context, s state.State) {
	for _, issue := range s.CheckHealth(o.health) {
		level := observability.LevelWarning
		if issue.Severity == state.SeverityCritical {
			level = observability.LevelError
		}
		o.emit(ctx, EventHealthIssue, level, map[string]any{
			"workflow_id": s.WorkflowID,
			"severity":    string(issue.Severity),
			"field":       issue.Field,
			"detail":      issue.Detail,
		})
	}
}

func (o *Orchestrator) emit(ctx context.Context, eventType observability.EventType, level observability.Level, data map[string]any) {
	o.observer.OnEvent(ctx, observability.Event{
		Type:      eventType,
		Level:     level,
		Timestamp: time.Now(),
		Source:    "pipeline.Orchestrator",
		Data:      data,
	})
}
