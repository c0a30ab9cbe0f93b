package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/evmarket/pipeline/config"
	"github.com/evmarket/pipeline/observability"
	"github.com/evmarket/pipeline/pipeline"
	"github.com/evmarket/pipeline/state"
)

type rootOptions struct {
	configPath    string
	mode          string
	message       string
	resumePath    string
	checkpointDir string
	store         string
	verbose       bool
	showWorkflow  bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "evmarket",
		Short:         "Run the EV market analysis workflow",
		Long: "evmarket orchestrates the electric vehicle market analysis pipeline:\n" +
			"market research, consumer and company analysis, technology and stock\n" +
			"analysis, chart generation, and report generation. Every pass is\n" +
			"checkpointed, so an interrupted run resumes where it stopped.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalysis(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to a JSON config file merged over the defaults")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", config.ModeQuick, "Run mode: quick, full, or monitor")
	cmd.Flags().StringVar(&opts.message, "message", "", "Operator message seeded into the workflow")
	cmd.Flags().StringVarP(&opts.resumePath, "resume", "r", "", "Resume from a checkpoint JSON file instead of starting fresh")
	cmd.Flags().StringVar(&opts.checkpointDir, "checkpoint-dir", "", "Directory for checkpoints (overrides config)")
	cmd.Flags().StringVar(&opts.store, "store", "", "Checkpoint store: memory, file, or sqlite (overrides config)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose event logging to stderr")
	cmd.Flags().BoolVar(&opts.showWorkflow, "show-workflow", false, "Print the workflow structure and exit")

	return cmd
}

func runAnalysis(cmd *cobra.Command, opts *rootOptions) error {
	cfg, counter, err := buildConfig(opts)
	if err != nil {
		return err
	}

	orch, err := pipeline.New(cfg, pipeline.Providers{})
	if err != nil {
		return err
	}

	if opts.showWorkflow {
		printBlueprint(cmd.OutOrStdout(), orch.Blueprint())
		return nil
	}

	ctx := cmd.Context()
	var final state.State
	if opts.resumePath != "" {
		final, err = orch.Resume(ctx, opts.resumePath)
	} else {
		final, err = orch.Run(ctx, orch.NewWorkflow(opts.message))
	}

	// The folded state is reported even when the run aborted.
	printSummary(cmd.OutOrStdout(), final.Summarize(), orch.SummaryPath(final.WorkflowID))
	if counter != nil {
		printEventCounts(cmd.OutOrStdout(), counter)
	}
	return err
}

// buildConfig layers defaults, the optional config file, flag overrides,
// and finally the run mode preset. Monitor mode additionally wraps the
// logging observer with an event counter; the returned counter is nil in
// the other modes.
func buildConfig(opts *rootOptions) (config.Config, *observability.CounterObserver, error) {
	cfg := config.Default("ev-market-analysis")

	if opts.configPath != "" {
		fileCfg, err := config.LoadFile(opts.configPath)
		if err != nil {
			return config.Config{}, nil, err
		}
		cfg.Merge(&fileCfg)
	}

	if opts.checkpointDir != "" {
		cfg.Checkpoint.Dir = opts.checkpointDir
	}
	if opts.store != "" {
		cfg.Checkpoint.Store = opts.store
	}

	if err := cfg.ApplyMode(opts.mode); err != nil {
		return config.Config{}, nil, err
	}

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slogObs := observability.NewSlogObserver(logger)
	observability.RegisterObserver("slog", slogObs)
	cfg.Observer = "slog"

	var counter *observability.CounterObserver
	if cfg.Mode == config.ModeMonitor {
		counter = observability.NewCounterObserver()
		observability.RegisterObserver("monitor", observability.NewMultiObserver(slogObs, counter))
		cfg.Observer = "monitor"
	}

	state.RegisterCheckpointStore("file", state.NewFileCheckpointStore(cfg.Checkpoint.Dir))
	if cfg.Checkpoint.Store == "sqlite" {
		store, err := state.NewSQLiteCheckpointStore(filepath.Join(cfg.Checkpoint.Dir, "checkpoints.db"))
		if err != nil {
			return config.Config{}, nil, fmt.Errorf("open sqlite checkpoint store: %w", err)
		}
		state.RegisterCheckpointStore("sqlite", store)
	}

	return cfg, counter, nil
}
