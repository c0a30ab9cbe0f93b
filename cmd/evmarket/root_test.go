package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/evmarket/pipeline/config"
	"github.com/evmarket/pipeline/observability"
	"github.com/evmarket/pipeline/task"
)

func TestBuildConfigLayering(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")
	body := `{"max_iterations": 7, "checkpoint": {"dir": "from-file"}}`
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	opts := &rootOptions{
		configPath:    configPath,
		mode:          config.ModeFull,
		checkpointDir: filepath.Join(dir, "from-flag"),
	}
	cfg, counter, err := buildConfig(opts)
	if err != nil {
		t.Fatalf("buildConfig: %v", err)
	}
	if counter != nil {
		t.Error("full mode should not count events")
	}

	if cfg.MaxIterations != 7 {
		t.Errorf("MaxIterations = %d, file value should win over default", cfg.MaxIterations)
	}
	if cfg.Checkpoint.Dir != opts.checkpointDir {
		t.Errorf("Checkpoint.Dir = %s, flag should win over file", cfg.Checkpoint.Dir)
	}
	if cfg.Observer != "slog" {
		t.Errorf("Observer = %s, want slog", cfg.Observer)
	}
}

func TestBuildConfigRejectsUnknownMode(t *testing.T) {
	if _, _, err := buildConfig(&rootOptions{mode: "turbo"}); err == nil {
		t.Error("unknown mode should fail")
	}
}

func TestBuildConfigMonitorMode(t *testing.T) {
	opts := &rootOptions{
		mode:          config.ModeMonitor,
		checkpointDir: t.TempDir(),
	}
	cfg, counter, err := buildConfig(opts)
	if err != nil {
		t.Fatalf("buildConfig: %v", err)
	}

	if counter == nil {
		t.Fatal("monitor mode should count events")
	}
	if cfg.Observer != "monitor" {
		t.Errorf("Observer = %s, want monitor", cfg.Observer)
	}

	obs, err := observability.GetObserver("monitor")
	if err != nil {
		t.Fatalf("monitor observer not registered: %v", err)
	}

	// Events reaching the registered observer land in the counter.
	obs.OnEvent(context.Background(), observability.Event{
		Type:  task.EventTaskComplete,
		Level: observability.LevelInfo,
	})
	if counter.Count(task.EventTaskComplete) != 1 {
		t.Errorf("Count = %d, want 1", counter.Count(task.EventTaskComplete))
	}

	var out bytes.Buffer
	printEventCounts(&out, counter)
	if !strings.Contains(out.String(), "1 completed") {
		t.Errorf("event counts output missing tally:\n%s", out.String())
	}
}

func TestShowWorkflow(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--show-workflow", "--checkpoint-dir", t.TempDir()})

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("execute: %v", err)
	}

	for _, want := range []string{
		"data_collection", "market_research", "consumer_analysis",
		"tech_analysis | stock_analysis", "report_generation",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("structure output missing %q:\n%s", want, out.String())
		}
	}
}
