package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evmarket/pipeline/config"
	"github.com/evmarket/pipeline/state"
)

// ReportGeneration assembles the final analysis report from every
// populated result slot and writes it in the configured formats. It
// requires the charts_generated flag, owns the final_report and
// report_paths slots, and sets the report_generated flag.
type ReportGeneration struct {
	cfg config.ReportConfig
}

func NewReportGeneration(cfg config.ReportConfig) *ReportGeneration {
	return &ReportGeneration{cfg: cfg}
}

func (r *ReportGeneration) Name() string { return "report_generation" }

func (r *ReportGeneration) Process(_ context.Context, snapshot state.State) (state.Update, error) {
	report := r.buildReport(snapshot)

	var (
		paths    []any
		warnings []string
	)
	for _, format := range r.cfg.Formats {
		path, err := r.writeReport(snapshot.WorkflowID, format, report)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("report_generation: %v", err))
			continue
		}
		paths = append(paths, path)
	}

	update := state.Update{
		state.SlotFinalReport:     report,
		state.SlotReportPaths:     paths,
		state.FlagReportGenerated: true,
		state.FieldMessages: state.TaskMessage(r.Name(),
			fmt.Sprintf("report written in %d formats", len(paths))),
	}
	if len(warnings) > 0 {
		update[state.FieldWarnings] = warnings
	}
	return update, nil
}

func (r *ReportGeneration) buildReport(snapshot state.State) map[string]any {
	sections := make(map[string]any)
	for _, slot := range []string{
		state.SlotMarketData,
		state.SlotConsumerPatterns,
		state.SlotCompanyAnalysis,
		state.SlotTechTrends,
		state.SlotStockAnalysis,
		state.SlotDashboard,
	} {
		if value, found := snapshot.Lookup(slot); found {
			sections[slot] = value
		}
	}

	return map[string]any{
		"title":        "EV Market Analysis Report",
		"workflow_id":  snapshot.WorkflowID,
		"generated_at": time.Now().Format(time.RFC3339),
		"sections":     sections,
		"task_errors":  len(snapshot.TaskErrors),
	}
}

func (r *ReportGeneration) writeReport(workflowID, format string, report map[string]any) (string, error) {
	if err := os.MkdirAll(r.cfg.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("report dir: %w", err)
	}

	switch strings.ToLower(format) {
	case "json":
		path := filepath.Join(r.cfg.OutputDir, workflowID+".json")
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode report: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return "", fmt.Errorf("write report: %w", err)
		}
		return path, nil

	case "markdown", "md":
		path := filepath.Join(r.cfg.OutputDir, workflowID+".md")
		if err := os.WriteFile(path, []byte(renderMarkdown(report)), 0o644); err != nil {
			return "", fmt.Errorf("write report: %w", err)
		}
		return path, nil

	default:
		return "", fmt.Errorf("unsupported report format %q", format)
	}
}

func renderMarkdown(report map[string]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", report["title"])
	fmt.Fprintf(&b, "- Workflow: %s\n", report["workflow_id"])
	fmt.Fprintf(&b, "- Generated: %s\n\n", report["generated_at"])

	if sections, ok := report["sections"].(map[string]any); ok {
		for _, slot := range []string{
			state.SlotMarketData,
			state.SlotConsumerPatterns,
			state.SlotCompanyAnalysis,
			state.SlotTechTrends,
			state.SlotStockAnalysis,
			state.SlotDashboard,
		} {
			section, present := sections[slot]
			if !present {
				continue
			}
			fmt.Fprintf(&b, "## %s\n\n", strings.ReplaceAll(slot, "_", " "))
			data, err := json.MarshalIndent(section, "", "  ")
			if err != nil {
				continue
			}
			fmt.Fprintf(&b, "```json\n%s\n```\n\n", data)
		}
	}
	return b.String()
}
