package config

import "fmt"

// Run mode presets. A mode only adjusts task parameters; the workflow
// shape is identical in every mode.
const (
	// ModeQuick trades depth for speed: fewer companies, fewer search
	// results, the light model tier.
	ModeQuick = "quick"

	// ModeFull is the complete analysis.
	ModeFull = "full"

	// ModeMonitor favors live data and checkpoints every pass so an
	// operator can watch progress.
	ModeMonitor = "monitor"
)

// Modes lists the valid run modes.
var Modes = []string{ModeQuick, ModeFull, ModeMonitor}

// ApplyMode overlays a mode preset onto the configuration. Unknown modes
// are rejected rather than silently ignored.
func (c *Config) ApplyMode(mode string) error {
	switch mode {
	case ModeQuick:
		c.Tasks.Model.Tier = "light"
		c.Tasks.Company.MaxCompanies = 3
		c.Tasks.Research.MaxResults = 3
	case ModeFull:
		c.Tasks.Model.Tier = "standard"
		c.Tasks.Company.MaxCompanies = 10
	case ModeMonitor:
		c.Tasks.Stock.RealTime = true
		c.Checkpoint.Interval = 1
		c.Checkpoint.Preserve = true
	default:
		return fmt.Errorf("unknown mode %q, valid modes: %v", mode, Modes)
	}

	c.Mode = mode
	return nil
}
