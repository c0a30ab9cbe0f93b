package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/evmarket/pipeline/observability"
	"github.com/evmarket/pipeline/pipeline"
	"github.com/evmarket/pipeline/state"
	"github.com/evmarket/pipeline/task"
)

var (
	headerColor   = color.New(color.FgCyan, color.Bold).SprintFunc()
	okColor       = color.New(color.FgGreen).SprintFunc()
	pendingColor  = color.New(color.FgYellow).SprintFunc()
	failedColor   = color.New(color.FgRed).SprintFunc()
	dimColor      = color.New(color.Faint).SprintFunc()
	stageColor    = color.New(color.FgMagenta).SprintFunc()
	taskNameColor = color.New(color.FgWhite, color.Bold).SprintFunc()
)

func printSummary(w io.Writer, sum state.Summary, summaryPath string) {
	fmt.Fprintf(w, "\n%s %s\n", headerColor("workflow"), sum.WorkflowID)
	fmt.Fprintf(w, "  stage:      %s (iteration %d)\n", stageColor(string(sum.Stage)), sum.Iteration)
	fmt.Fprintf(w, "  elapsed:    %s\n", sum.Elapsed)
	fmt.Fprintf(w, "  completed:  %s\n", okColor(joinOrDash(sum.CompletedTasks)))
	if len(sum.PendingTasks) > 0 {
		fmt.Fprintf(w, "  pending:    %s\n", pendingColor(strings.Join(sum.PendingTasks, ", ")))
	}
	if len(sum.FailedTasks) > 0 {
		fmt.Fprintf(w, "  failed:     %s\n", failedColor(strings.Join(sum.FailedTasks, ", ")))
	}
	fmt.Fprintf(w, "  results:    %s\n", joinOrDash(sum.ResultSlots))

	errLine := fmt.Sprintf("errors: %d, warnings: %d", sum.ErrorCount, sum.WarnCount)
	if sum.ErrorCount > 0 {
		fmt.Fprintf(w, "  %s\n", failedColor(errLine))
	} else if sum.WarnCount > 0 {
		fmt.Fprintf(w, "  %s\n", pendingColor(errLine))
	} else {
		fmt.Fprintf(w, "  %s\n", errLine)
	}

	if sum.Complete {
		fmt.Fprintf(w, "  status:     %s\n", okColor("complete"))
		fmt.Fprintf(w, "  summary:    %s\n", dimColor(summaryPath))
	} else {
		fmt.Fprintf(w, "  status:     %s\n", pendingColor("in progress"))
	}
}

// printEventCounts reports the monitor-mode tallies: task activity and
// warning/error volume over the whole run, counted from the event stream.
func printEventCounts(w io.Writer, counter *observability.CounterObserver) {
	fmt.Fprintf(w, "\n%s\n", headerColor("event counts"))
	fmt.Fprintf(w, "  tasks:      %d started, %s, %s\n",
		counter.Count(task.EventTaskStart),
		okColor(fmt.Sprintf("%d completed", counter.Count(task.EventTaskComplete))),
		failedColor(fmt.Sprintf("%d failed", counter.Count(task.EventTaskFail))))
	fmt.Fprintf(w, "  passes:     %d\n", counter.Count(pipeline.EventPassComplete))
	fmt.Fprintf(w, "  severity:   %s, %s\n",
		pendingColor(fmt.Sprintf("%d warnings", counter.Warnings())),
		failedColor(fmt.Sprintf("%d errors", counter.Errors())))
}

func printBlueprint(w io.Writer, stages []pipeline.StageView) {
	fmt.Fprintln(w, headerColor("workflow structure"))
	for _, sv := range stages {
		fmt.Fprintf(w, "  %s\n", stageColor(string(sv.Stage)))
		for _, chain := range sv.Chains {
			fmt.Fprintf(w, "    chain %s: %s\n", taskNameColor(chain.Name), renderGroups(chain.Groups))
		}
	}
}

// renderGroups joins a chain's sequential groups with arrows; parallel
// siblings within a group are bracketed.
func renderGroups(groups [][]string) string {
	parts := make([]string, len(groups))
	for i, group := range groups {
		if len(group) == 1 {
			parts[i] = group[0]
		} else {
			parts[i] = "[" + strings.Join(group, " | ") + "]"
		}
	}
	return strings.Join(parts, " -> ")
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
