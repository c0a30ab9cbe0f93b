package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/evmarket/pipeline/config"
)

func TestDefault(t *testing.T) {
	cfg := config.Default("ev-market")

	if cfg.Name != "ev-market" {
		t.Errorf("Name = %q", cfg.Name)
	}
	if cfg.Observer != "slog" {
		t.Errorf("Observer = %q, want slog", cfg.Observer)
	}
	if cfg.MaxIterations <= 0 {
		t.Errorf("MaxIterations = %d, want positive", cfg.MaxIterations)
	}
	if cfg.Checkpoint.Store == "" {
		t.Error("Checkpoint.Store should default to a registered store")
	}
	if len(cfg.Tasks.Company.TargetCompanies) == 0 {
		t.Error("fallback company list should not be empty")
	}
	if len(cfg.Tasks.Stock.Tickers) == 0 {
		t.Error("default tickers should not be empty")
	}
}

func TestMerge_PartialOverridesOnly(t *testing.T) {
	cfg := config.Default("ev-market")
	defaultRetries := cfg.Tasks.Research.MaxRetries

	cfg.Merge(&config.Config{
		MaxIterations: 7,
		Checkpoint:    config.CheckpointConfig{Store: "sqlite"},
		Tasks: config.TasksConfig{
			Research: config.ResearchConfig{MaxResults: 2},
		},
	})

	if cfg.MaxIterations != 7 {
		t.Errorf("MaxIterations = %d, want 7", cfg.MaxIterations)
	}
	if cfg.Checkpoint.Store != "sqlite" {
		t.Errorf("Checkpoint.Store = %q", cfg.Checkpoint.Store)
	}
	if cfg.Checkpoint.Dir == "" {
		t.Error("unset nested fields should keep defaults")
	}
	if cfg.Tasks.Research.MaxResults != 2 {
		t.Errorf("MaxResults = %d, want 2", cfg.Tasks.Research.MaxResults)
	}
	if cfg.Tasks.Research.MaxRetries != defaultRetries {
		t.Errorf("MaxRetries = %d, want default %d", cfg.Tasks.Research.MaxRetries, defaultRetries)
	}
	if cfg.Observer != "slog" {
		t.Errorf("Observer = %q, empty source should not override", cfg.Observer)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.json")
	content := `{
		"observer": "noop",
		"max_iterations": 12,
		"checkpoint": {"store": "memory", "preserve": true},
		"tasks": {"company": {"max_companies": 4}}
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	loaded, err := config.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	cfg := config.Default("ev-market")
	cfg.Merge(&loaded)

	if cfg.Observer != "noop" {
		t.Errorf("Observer = %q", cfg.Observer)
	}
	if cfg.MaxIterations != 12 {
		t.Errorf("MaxIterations = %d", cfg.MaxIterations)
	}
	if !cfg.Checkpoint.Preserve {
		t.Error("Preserve should be overridden")
	}
	if cfg.Tasks.Company.MaxCompanies != 4 {
		t.Errorf("MaxCompanies = %d", cfg.Tasks.Company.MaxCompanies)
	}

	if _, err := config.LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestApplyMode(t *testing.T) {
	t.Run("quick shrinks parameters", func(t *testing.T) {
		cfg := config.Default("ev-market")
		if err := cfg.ApplyMode(config.ModeQuick); err != nil {
			t.Fatalf("ApplyMode: %v", err)
		}
		if cfg.Tasks.Company.MaxCompanies != 3 {
			t.Errorf("MaxCompanies = %d, want 3", cfg.Tasks.Company.MaxCompanies)
		}
		if cfg.Tasks.Model.Tier != "light" {
			t.Errorf("Tier = %q", cfg.Tasks.Model.Tier)
		}
	})

	t.Run("monitor favors live data", func(t *testing.T) {
		cfg := config.Default("ev-market")
		if err := cfg.ApplyMode(config.ModeMonitor); err != nil {
			t.Fatalf("ApplyMode: %v", err)
		}
		if !cfg.Tasks.Stock.RealTime {
			t.Error("RealTime should be set")
		}
		if !cfg.Checkpoint.Preserve {
			t.Error("monitor mode should preserve checkpoints")
		}
	})

	t.Run("unknown mode rejected", func(t *testing.T) {
		cfg := config.Default("ev-market")
		if err := cfg.ApplyMode("turbo"); err == nil {
			t.Error("unknown mode should fail")
		}
	})
}
