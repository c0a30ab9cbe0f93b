package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/evmarket/pipeline/config"
	"github.com/evmarket/pipeline/pipeline"
	"github.com/evmarket/pipeline/state"
	"github.com/evmarket/pipeline/tasks"
)

// testConfig returns a config that runs entirely on fallback data with
// all file output under the test's temp dir.
func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default("ev-market-test")
	cfg.Observer = "noop"
	cfg.Checkpoint.Store = "memory"
	cfg.Checkpoint.Dir = filepath.Join(dir, "checkpoints")
	cfg.Tasks.Charts.OutputDir = filepath.Join(dir, "charts")
	cfg.Tasks.Report.OutputDir = filepath.Join(dir, "reports")
	return cfg
}

func TestOrchestrator_FullRun(t *testing.T) {
	cfg := testConfig(t)
	orch, err := pipeline.New(cfg, pipeline.Providers{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	final, err := orch.Run(context.Background(), orch.NewWorkflow("analyze the EV market"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if final.Stage != state.StageCompleted {
		t.Errorf("Stage = %s, want completed", final.Stage)
	}
	if !final.WorkflowComplete {
		t.Error("workflow_complete flag not set")
	}
	if final.CompletedAt.IsZero() {
		t.Error("completion timestamp not stamped")
	}

	for _, taskID := range []string{
		"market_research", "consumer_analysis", "company_analysis",
		"tech_analysis", "stock_analysis", "chart_generation", "report_generation",
	} {
		if !final.CompletedTasks[taskID] {
			t.Errorf("task %s not completed", taskID)
		}
	}

	for _, slot := range []string{
		state.SlotMarketTrends, state.SlotConsumerPatterns,
		state.SlotCompanyAnalysis, state.SlotTechTrends,
		state.SlotStockAnalysis, state.SlotCharts, state.SlotFinalReport,
	} {
		if _, found := final.Lookup(slot); !found {
			t.Errorf("slot %s not populated", slot)
		}
	}

	if len(final.PendingTasks) != 0 {
		t.Errorf("PendingTasks = %v, want none", final.PendingTasks)
	}

	if _, err := os.Stat(orch.SummaryPath(final.WorkflowID)); err != nil {
		t.Errorf("summary artifact missing: %v", err)
	}

	// Default config cleans up checkpoints on success.
	store, _ := state.GetCheckpointStore("memory")
	if _, err := store.Load(context.Background(), final.WorkflowID); !errors.Is(err, state.ErrCheckpointNotFound) {
		t.Errorf("checkpoint should be cleaned up, Load err = %v", err)
	}
}

func TestOrchestrator_StepIsOnePass(t *testing.T) {
	cfg := testConfig(t)
	orch, err := pipeline.New(cfg, pipeline.Providers{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s := orch.NewWorkflow("")
	s, err = orch.Step(context.Background(), s)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}

	if s.Iteration != 1 {
		t.Errorf("Iteration = %d, want 1", s.Iteration)
	}
	if s.Stage != state.StageDataCollection {
		t.Errorf("Stage = %s, initialization should advance immediately", s.Stage)
	}
	if len(s.PendingTasks) == 0 {
		t.Error("schedule should be seeded")
	}
	wantNext := []string{
		"market_research", "consumer_analysis",
		"company_analysis", "tech_analysis", "stock_analysis",
	}
	if !slices.Equal(s.NextTasks, wantNext) {
		t.Errorf("NextTasks = %v, want the collection schedule %v", s.NextTasks, wantNext)
	}
	if len(s.CompletedTasks) != 0 {
		t.Errorf("no tasks should run during initialization, got %v", s.CompletedTasks)
	}
}

func TestOrchestrator_ScheduleFollowsStages(t *testing.T) {
	cfg := testConfig(t)
	orch, err := pipeline.New(cfg, pipeline.Providers{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	nextByStage := map[state.Stage][]string{}
	s := orch.NewWorkflow("")
	for !s.Stage.Terminal() {
		s, err = orch.Step(context.Background(), s)
		if err != nil {
			t.Fatalf("Step: %v", err)
		}
		nextByStage[s.Stage] = s.NextTasks
	}

	want := map[state.Stage][]string{
		state.StageSynthesis: {"chart_generation"},
		state.StageReporting: {"report_generation"},
		state.StageCompleted: {},
	}
	for stage, tasks := range want {
		if !slices.Equal(nextByStage[stage], tasks) {
			t.Errorf("next_tasks entering %s = %v, want %v", stage, nextByStage[stage], tasks)
		}
	}
}

func TestOrchestrator_IterationCeilingFatal(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxIterations = 3
	// No provider and no fallback list leaves company_analysis failing
	// forever, so data_collection can never advance.
	cfg.Tasks.Company.TargetCompanies = nil
	cfg.Tasks.Company.MaxCompanies = 5

	orch, err := pipeline.New(cfg, pipeline.Providers{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	final, err := orch.Run(context.Background(), orch.NewWorkflow(""))

	var fatal *pipeline.FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("Run err = %v, want FatalError", err)
	}
	if final.Iteration != cfg.MaxIterations+1 {
		t.Errorf("Iteration = %d, want ceiling exceeded by one", final.Iteration)
	}
	if len(final.Errors) == 0 {
		t.Error("fatal abort should leave a terminal error entry")
	}

	// The abort state stays resumable.
	store, _ := state.GetCheckpointStore("memory")
	if _, err := store.Load(context.Background(), final.WorkflowID); err != nil {
		t.Errorf("checkpoint should survive a fatal abort: %v", err)
	}
}

func TestOrchestrator_TaskFailureDoesNotAbort(t *testing.T) {
	cfg := testConfig(t)
	// Stock analysis has no fallback for unknown tickers but still
	// records them, so a degraded provider must not stop the run.
	orch, err := pipeline.New(cfg, pipeline.Providers{
		Quotes: func(_ context.Context, ticker string) (tasks.Quote, error) {
			return tasks.Quote{}, errors.New("feed offline")
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	final, err := orch.Run(context.Background(), orch.NewWorkflow(""))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if final.Stage != state.StageCompleted {
		t.Errorf("Stage = %s, degraded providers should still complete", final.Stage)
	}
	if len(final.Warnings) == 0 {
		t.Error("degraded quotes should leave warnings")
	}
}

func TestOrchestrator_ResumeFromCheckpoint(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()
	state.RegisterCheckpointStore("resume-test", state.NewFileCheckpointStore(dir))
	cfg.Checkpoint.Store = "resume-test"
	cfg.Checkpoint.Preserve = true

	orch, err := pipeline.New(cfg, pipeline.Providers{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Run two passes, then resume from the file the store wrote.
	s := orch.NewWorkflow("")
	for range 2 {
		s, err = orch.Step(context.Background(), s)
		if err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
	if s.Stage == state.StageCompleted {
		t.Fatal("run should not be complete after two passes")
	}

	path := filepath.Join(dir, s.WorkflowID+".json")
	final, err := orch.Resume(context.Background(), path)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}

	if final.Stage != state.StageCompleted {
		t.Errorf("Stage = %s, want completed after resume", final.Stage)
	}
	if final.WorkflowID != s.WorkflowID {
		t.Errorf("resume changed workflow ID: %s -> %s", s.WorkflowID, final.WorkflowID)
	}
}

func TestOrchestrator_InterruptKeepsCheckpoint(t *testing.T) {
	cfg := testConfig(t)
	orch, err := pipeline.New(cfg, pipeline.Providers{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s := orch.NewWorkflow("")
	s, err = orch.Step(context.Background(), s)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	final, err := orch.Run(ctx, s)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run err = %v, want context.Canceled", err)
	}

	store, _ := state.GetCheckpointStore("memory")
	loaded, loadErr := store.Load(context.Background(), final.WorkflowID)
	if loadErr != nil {
		t.Fatalf("checkpoint should be durable after interrupt: %v", loadErr)
	}
	if loaded.Stage != final.Stage {
		t.Errorf("checkpoint stage = %s, want %s", loaded.Stage, final.Stage)
	}
}

func TestOrchestrator_UnknownNamesRejected(t *testing.T) {
	cfg := testConfig(t)
	cfg.Observer = "no-such-observer"
	if _, err := pipeline.New(cfg, pipeline.Providers{}); err == nil {
		t.Error("unknown observer should fail")
	}

	cfg = testConfig(t)
	cfg.Checkpoint.Store = "no-such-store"
	if _, err := pipeline.New(cfg, pipeline.Providers{}); err == nil {
		t.Error("unknown store should fail")
	}
}
