// Package config provides configuration for the analysis pipeline.
//
// Configuration only exists during initialization: it is loaded from JSON,
// merged over defaults, resolved against the observer and checkpoint-store
// registries, and then transformed into domain objects. It does not persist
// into runtime components.
//
// All types follow the Default + Merge pattern so a partial JSON file only
// overrides the fields it names:
//
//	cfg := config.Default("ev-market")
//	loaded, err := config.LoadFile("pipeline.json")
//	cfg.Merge(&loaded)
package config

// Config is the top-level pipeline configuration.
type Config struct {
	// Name identifies the pipeline for observability.
	Name string `json:"name"`

	// Observer specifies which observer implementation to use
	// ("noop", "slog", ...), resolved via the observability registry.
	Observer string `json:"observer"`

	// Mode is the run preset: quick, full, or monitor. Presets adjust
	// task parameters, never the workflow shape.
	Mode string `json:"mode"`

	// MaxIterations limits orchestrator passes to prevent infinite loops.
	MaxIterations int `json:"max_iterations"`

	Checkpoint CheckpointConfig `json:"checkpoint"`
	Parallel   ParallelConfig   `json:"parallel"`
	Health     HealthConfig     `json:"health"`
	Tasks      TasksConfig      `json:"tasks"`
}

// Default returns the configuration used when nothing is overridden.
func Default(name string) Config {
	return Config{
		Name:          name,
		Observer:      "slog",
		Mode:          ModeFull,
		MaxIterations: 50,
		Checkpoint:    DefaultCheckpointConfig(),
		Parallel:      DefaultParallelConfig(),
		Health:        DefaultHealthConfig(),
		Tasks:         DefaultTasksConfig(),
	}
}

func (c *Config) Merge(source *Config) {
	if source.Name != "" {
		c.Name = source.Name
	}

	if source.Observer != "" {
		c.Observer = source.Observer
	}

	if source.Mode != "" {
		c.Mode = source.Mode
	}

	if source.MaxIterations > 0 {
		c.MaxIterations = source.MaxIterations
	}

	c.Checkpoint.Merge(&source.Checkpoint)
	c.Parallel.Merge(&source.Parallel)
	c.Health.Merge(&source.Health)
	c.Tasks.Merge(&source.Tasks)
}

// CheckpointConfig controls state persistence during a run.
type CheckpointConfig struct {
	// Store identifies which CheckpointStore to use (resolved via registry).
	Store string `json:"store"`

	// Dir is where the file and sqlite stores keep their data.
	Dir string `json:"dir"`

	// Interval saves a checkpoint every N orchestrator passes (0 = every pass).
	Interval int `json:"interval"`

	// Preserve keeps checkpoints after successful completion.
	Preserve bool `json:"preserve"`
}

func DefaultCheckpointConfig() CheckpointConfig {
	return CheckpointConfig{
		Store:    "file",
		Dir:      "checkpoints",
		Interval: 0,
		Preserve: false,
	}
}

func (c *CheckpointConfig) Merge(source *CheckpointConfig) {
	if source.Store != "" {
		c.Store = source.Store
	}

	if source.Dir != "" {
		c.Dir = source.Dir
	}

	if source.Interval > 0 {
		c.Interval = source.Interval
	}

	if source.Preserve {
		c.Preserve = source.Preserve
	}
}

// ParallelConfig controls fan-out concurrency.
type ParallelConfig struct {
	// MaxWorkers specifies exact concurrent branch count (0 = auto-detect).
	MaxWorkers int `json:"max_workers"`

	// WorkerCap limits auto-detected workers.
	WorkerCap int `json:"worker_cap"`
}

func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{
		MaxWorkers: 0,
		WorkerCap:  8,
	}
}

func (c *ParallelConfig) Merge(source *ParallelConfig) {
	if source.MaxWorkers > 0 {
		c.MaxWorkers = source.MaxWorkers
	}

	if source.WorkerCap > 0 {
		c.WorkerCap = source.WorkerCap
	}
}

// HealthConfig tunes the per-pass health check thresholds.
type HealthConfig struct {
	// MaxErrors is the error count above which the run is critical.
	MaxErrors int `json:"max_errors"`

	// MaxTaskErrors is the failed-task count above which the run is critical.
	MaxTaskErrors int `json:"max_task_errors"`

	// IterationWarning flags runs still going after this many passes.
	IterationWarning int `json:"iteration_warning"`
}

func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		MaxErrors:        10,
		MaxTaskErrors:    3,
		IterationWarning: 20,
	}
}

func (c *HealthConfig) Merge(source *HealthConfig) {
	if source.MaxErrors > 0 {
		c.MaxErrors = source.MaxErrors
	}

	if source.MaxTaskErrors > 0 {
		c.MaxTaskErrors = source.MaxTaskErrors
	}

	if source.IterationWarning > 0 {
		c.IterationWarning = source.IterationWarning
	}
}
