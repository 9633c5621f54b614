package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/hupe1980/orchestra/core"
	"github.com/hupe1980/orchestra/history"
	"github.com/hupe1980/orchestra/orchestrator"
)

func statusColor(s core.Status) *color.Color {
	switch s {
	case core.StatusSucceeded:
		return color.New(color.FgGreen)
	case core.StatusFailed:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgYellow)
	}
}

func stateColor(s core.RunState) *color.Color {
	if s == core.RunCompleted {
		return color.New(color.FgGreen)
	}
	return color.New(color.FgRed)
}

// printResults prints one line per invocation in plan order.
func printResults(w io.Writer, plan core.Plan, results map[string]core.Result) {
	for _, key := range plan.Keys() {
		res, ok := results[key]
		if !ok {
			continue
		}

		symbol := "✓"
		switch res.Status {
		case core.StatusFailed:
			symbol = "✗"
		case core.StatusCancelled:
			symbol = "⊘"
		}

		line := fmt.Sprintf("%-20s %-10s attempts=%d %s", key, res.Status, res.Attempts, res.Duration.Round(time.Millisecond))
		if res.Failure != nil {
			line += fmt.Sprintf(" (%s)", res.Failure.Kind)
		}

		fmt.Fprintf(w, "%s %s\n", statusColor(res.Status).Sprint(symbol), line)
	}
}

func printFailure(w io.Writer, rf *orchestrator.RunFailure) {
	red := color.New(color.FgRed, color.Bold)
	fmt.Fprintf(w, "\n%s run %s aborted: %s\n", red.Sprint("✗"), rf.RunID, rf.Kind)
	for _, f := range rf.Failures {
		fmt.Fprintf(w, "  - %s\n", f.Error())
	}
}

func printRecord(w io.Writer, rec history.Record, detailed bool) {
	kind := ""
	if rec.FailureKind != "" {
		kind = " " + string(rec.FailureKind)
	}

	fmt.Fprintf(w, "%s  %s  %-10s %8s  invocations=%d failed=%d%s\n",
		rec.StartedAt.Local().Format("2006-01-02 15:04:05"),
		rec.RunID,
		stateColor(rec.State).Sprint(rec.State),
		rec.Duration.Round(time.Millisecond),
		len(rec.Invocations),
		rec.Failed(),
		kind,
	)

	if !detailed {
		return
	}

	for _, inv := range rec.Invocations {
		line := fmt.Sprintf("    %-20s %-10s attempts=%d %s", inv.Key, inv.Status, inv.Attempts, inv.Duration.Round(time.Millisecond))
		if inv.FailureKind != "" {
			line += fmt.Sprintf(" %s: %s", inv.FailureKind, inv.Message)
		}
		fmt.Fprintln(w, statusColor(inv.Status).Sprint(line))
	}
	if rec.Error != "" {
		fmt.Fprintf(w, "    error: %s\n", rec.Error)
	}
}
