package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/mxten777/overflowscan/internal/config"
	"github.com/mxten777/overflowscan/internal/database"
	"github.com/mxten777/overflowscan/internal/model"
	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"
)

// Constants for change direction.
const (
	directionWorsened  = "worsened"
	directionImproved  = "improved"
	directionUnchanged = "unchanged"
)

// NewCompareCmd creates the compare command.
// This command compares run results with historical data stored in the database.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [target]",
		Short: "Compare overflow results with earlier runs",
		Long: `Compare shows what changed between two recorded runs of a target.

For every viewport it lists:
- New findings that appeared since the earlier run
- Resolved findings that are no longer present
- The number of unchanged findings

A finding is identified by its viewport, ancestor path and tag, so the
same element is matched across runs even when its width changed.

The target is the name given with --target, or the URL for scans run
without a named target. Every scan is recorded unless --no-history is set.

Examples:
  # Compare the latest two runs of a target
  overflowscan compare talkbridge

  # List the run history of a target
  overflowscan compare --list talkbridge

  # Compare with a specific run by ID
  overflowscan compare --with-run-id 5 talkbridge

  # Compare with the first run since a date
  overflowscan compare --since 2026-01-01 talkbridge

  # Output the comparison as JSON
  overflowscan compare --json http://localhost:5173

  # List every target in the history database
  overflowscan compare --list-targets`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCompareCmd,
	}

	// History listing flags
	cmd.Flags().BoolP("list", "l", false,
		"List run history for the specified target")
	cmd.Flags().BoolP("list-targets", "L", false,
		"List all targets in the history database")

	// Comparison target flags
	cmd.Flags().Int64P("with-run-id", "i", 0,
		"Compare with a specific run by ID (use --list to see available IDs)")
	cmd.Flags().StringP("since", "s", "",
		"Compare with the first run on or after this date (format: YYYY-MM-DD)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")

	return cmd
}

// compareOptions selects the earlier run and the output format.
type compareOptions struct {
	withRunID int64
	since     string
	json      bool
	markdown  bool
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	listTargets, err := cmd.Flags().GetBool("list-targets")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database.
	var target string
	if !listTargets {
		if len(args) == 0 {
			return errors.New("target is required (use --list-targets to see available targets)")
		}
		target = args[0]
	}

	var opts compareOptions
	if opts.json, err = cmd.Flags().GetBool("json"); err != nil {
		return err
	}
	if opts.markdown, err = cmd.Flags().GetBool("markdown"); err != nil {
		return err
	}
	if opts.json && opts.markdown {
		return errors.New("--json and --markdown cannot be used together")
	}
	if opts.withRunID, err = cmd.Flags().GetInt64("with-run-id"); err != nil {
		return err
	}
	if opts.since, err = cmd.Flags().GetString("since"); err != nil {
		return err
	}

	db, err := database.Open(config.XDGDataDir(), database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	if listTargets {
		return listHistoryTargets(ctx, out, db)
	}

	listHistory, err := cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}
	if listHistory {
		return listRunHistory(ctx, out, db, target)
	}

	return runComparison(ctx, out, db, target, opts)
}

// listHistoryTargets lists all targets that have runs in the database.
func listHistoryTargets(ctx context.Context, out io.Writer, db *database.RunDB) error {
	targets, err := db.ListTargets(ctx)
	if err != nil {
		return fmt.Errorf("failed to list targets: %w", err)
	}

	if len(targets) == 0 {
		fmt.Fprintln(out, "No runs found in the database.")
		fmt.Fprintln(out, "\nUse 'overflowscan scan' to record a run.")
		return nil
	}

	fmt.Fprintf(out, "Targets (%d):\n\n", len(targets))
	for _, t := range targets {
		fmt.Fprintf(out, "  • %s\n", t)
	}
	fmt.Fprintln(out, "\nUse 'overflowscan compare --list <target>' to see the run history of a target.")

	return nil
}

// listRunHistory lists all runs of a target.
func listRunHistory(ctx context.Context, out io.Writer, db *database.RunDB, target string) error {
	runs, err := db.GetRunHistoryWithMetadata(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintf(out, "No run history found for %s\n", target)
		fmt.Fprintln(out, "\nUse 'overflowscan scan' to record a run.")
		return nil
	}

	fmt.Fprintf(out, "Run history for %s (%d runs):\n\n", target, len(runs))
	fmt.Fprintf(out, "  %-6s  %-20s  %-8s  %s\n", "ID", "Date", "Findings", "Per viewport")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 60))

	for _, meta := range runs {
		perViewport := formatViewportFindings(meta.ViewportFindings)
		if meta.Aborted {
			perViewport += " (aborted)"
		}
		fmt.Fprintf(out, "  %-6d  %-20s  %-8d  %s\n",
			meta.ID,
			meta.StartedAt.Local().Format("2006-01-02 15:04:05"),
			meta.TotalFindings,
			perViewport,
		)
	}

	fmt.Fprintln(out, "\nUse 'overflowscan compare <target>' to compare the latest two runs.")
	fmt.Fprintln(out, "Use 'overflowscan compare --with-run-id <id> <target>' to compare with a specific run.")

	return nil
}

// formatViewportFindings formats per-viewport counts as "360x800:0 375x812:2".
func formatViewportFindings(counts map[string]int) string {
	if len(counts) == 0 {
		return "N/A"
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	slices.Sort(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + ":" + strconv.Itoa(counts[name])
	}
	return strings.Join(parts, " ")
}

// runComparison selects two runs and prints their comparison.
func runComparison(ctx context.Context, out io.Writer, db *database.RunDB, target string, opts compareOptions) error {
	runs, err := db.GetRunHistory(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	previous, current, err := selectRuns(ctx, db, target, runs, opts)
	if err != nil {
		return err
	}

	comparison := compareRuns(target, previous, current)

	switch {
	case opts.json:
		return outputComparisonJSON(out, comparison)
	case opts.markdown:
		return outputComparisonMarkdown(out, comparison)
	default:
		return outputComparisonText(out, comparison)
	}
}

// selectRuns picks the earlier and the current run. runs is newest first;
// the current run is always the latest one.
func selectRuns(ctx context.Context, db *database.RunDB, target string, runs []*model.RunReport, opts compareOptions) (*model.RunReport, *model.RunReport, error) {
	if len(runs) == 0 {
		return nil, nil, fmt.Errorf("no run history found for %s", target)
	}
	if len(runs) < 2 && opts.withRunID == 0 && opts.since == "" {
		return nil, nil, fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(runs))
	}

	current := runs[0]

	switch {
	case opts.withRunID > 0:
		previous, err := db.GetRunByID(ctx, opts.withRunID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get run with ID %d: %w", opts.withRunID, err)
		}
		if key := database.TargetKey(previous); key != target {
			return nil, nil, fmt.Errorf("run ID %d belongs to %s, not %s", opts.withRunID, key, target)
		}
		if previous.ID == current.ID {
			return nil, nil, fmt.Errorf("run ID %d is the latest run; choose an earlier one", opts.withRunID)
		}
		return previous, current, nil

	case opts.since != "":
		sinceDate, err := time.ParseInLocation("2006-01-02", opts.since, time.Local)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}

		// Oldest run on or after the date.
		var previous *model.RunReport
		for i := len(runs) - 1; i >= 0; i-- {
			if !runs[i].StartedAt.Before(sinceDate) {
				previous = runs[i]
				break
			}
		}
		if previous == nil {
			return nil, nil, fmt.Errorf("no runs found since %s", opts.since)
		}
		if previous == current {
			return nil, nil, fmt.Errorf("only one run found since %s; at least 2 runs are required for comparison", opts.since)
		}
		return previous, current, nil

	default:
		return runs[1], current, nil
	}
}

// ComparisonResult holds the result of comparing two runs.
type ComparisonResult struct {
	// Target is the history key of both runs.
	Target string `json:"target"`

	// PreviousRun and CurrentRun describe the compared runs.
	PreviousRun RunInfo `json:"previous_run"`
	CurrentRun  RunInfo `json:"current_run"`

	// Viewports holds one comparison per viewport seen in either run.
	Viewports []ViewportComparison `json:"viewports"`

	// NewCount, ResolvedCount and UnchangedCount total the viewports.
	NewCount       int `json:"new_count"`
	ResolvedCount  int `json:"resolved_count"`
	UnchangedCount int `json:"unchanged_count"`

	// Direction is "improved", "worsened", or "unchanged".
	Direction string `json:"direction"`
}

// RunInfo contains metadata about a run for comparison display.
type RunInfo struct {
	ID            string    `json:"id"`
	StartedAt     time.Time `json:"started_at"`
	TotalFindings int       `json:"total_findings"`
	Aborted       bool      `json:"aborted"`
}

// ViewportComparison compares the findings of one viewport.
type ViewportComparison struct {
	Viewport string `json:"viewport"`

	// Previous and Current are the finding counts. Missing is set when
	// the viewport was not measured in one of the runs.
	Previous int    `json:"previous"`
	Current  int    `json:"current"`
	Missing  string `json:"missing,omitempty"`

	NewFindings      []model.OverflowFinding `json:"new_findings,omitempty"`
	ResolvedFindings []model.OverflowFinding `json:"resolved_findings,omitempty"`
	UnchangedCount   int                     `json:"unchanged_count"`

	Direction string `json:"direction"`
}

// compareRuns compares two runs viewport by viewport.
func compareRuns(target string, previous, current *model.RunReport) *ComparisonResult {
	result := &ComparisonResult{
		Target:      target,
		PreviousRun: newRunInfo(previous),
		CurrentRun:  newRunInfo(current),
	}

	// Viewports in current order, then any only the previous run had.
	var names []string
	for _, vr := range current.Viewports {
		names = append(names, vr.Viewport.Label())
	}
	for _, vr := range previous.Viewports {
		if !slices.Contains(names, vr.Viewport.Label()) {
			names = append(names, vr.Viewport.Label())
		}
	}

	for _, name := range names {
		vc := ViewportComparison{Viewport: name}

		var prevFindings, curFindings []model.OverflowFinding
		prevVR, inPrev := previous.Viewport(name)
		curVR, inCur := current.Viewport(name)
		if inPrev {
			prevFindings = prevVR.Findings
		} else {
			vc.Missing = "previous"
		}
		if inCur {
			curFindings = curVR.Findings
		} else {
			vc.Missing = "current"
		}

		vc.Previous = len(prevFindings)
		vc.Current = len(curFindings)
		vc.NewFindings, vc.ResolvedFindings, vc.UnchangedCount = diffFindings(name, prevFindings, curFindings)
		vc.Direction = direction(prevFindings, curFindings)

		result.NewCount += len(vc.NewFindings)
		result.ResolvedCount += len(vc.ResolvedFindings)
		result.UnchangedCount += vc.UnchangedCount
		result.Viewports = append(result.Viewports, vc)
	}

	result.Direction = direction(allFindings(previous), allFindings(current))

	return result
}

func newRunInfo(run *model.RunReport) RunInfo {
	return RunInfo{
		ID:            run.ID,
		StartedAt:     run.StartedAt,
		TotalFindings: run.TotalFindings(),
		Aborted:       run.Aborted,
	}
}

// findingKey identifies a finding across runs. Widths are left out so
// that a shrinking overflow still matches.
func findingKey(viewport string, f model.OverflowFinding) string {
	return viewport + "|" + f.AncestorPath + "|" + f.TagName
}

// diffFindings matches findings by key. Repeated keys (list items, say)
// are matched by count.
func diffFindings(viewport string, previous, current []model.OverflowFinding) (added, resolved []model.OverflowFinding, unchanged int) {
	remaining := make(map[string]int, len(previous))
	for _, f := range previous {
		remaining[findingKey(viewport, f)]++
	}

	for _, f := range current {
		key := findingKey(viewport, f)
		if remaining[key] > 0 {
			remaining[key]--
			unchanged++
			continue
		}
		added = append(added, f)
	}

	for _, f := range previous {
		key := findingKey(viewport, f)
		if remaining[key] > 0 {
			remaining[key]--
			resolved = append(resolved, f)
		}
	}

	return added, resolved, unchanged
}

// direction compares finding counts, then the total overflow in pixels.
func direction(previous, current []model.OverflowFinding) string {
	if d := len(current) - len(previous); d != 0 {
		if d < 0 {
			return directionImproved
		}
		return directionWorsened
	}

	prevPx, curPx := overflowPixels(previous), overflowPixels(current)
	switch {
	case curPx < prevPx:
		return directionImproved
	case curPx > prevPx:
		return directionWorsened
	default:
		return directionUnchanged
	}
}

func overflowPixels(findings []model.OverflowFinding) float64 {
	var total float64
	for _, f := range findings {
		total += max(float64(f.OverflowX), f.RightOverflow)
	}
	return total
}

func allFindings(run *model.RunReport) []model.OverflowFinding {
	var all []model.OverflowFinding
	for _, vr := range run.Viewports {
		all = append(all, vr.Findings...)
	}
	return all
}

// findingLabel describes a finding in one line.
func findingLabel(f model.OverflowFinding) string {
	label := f.AncestorPath
	if label == "" {
		label = f.TagName
	}
	return fmt.Sprintf("%s (content +%dpx, past viewport +%.0fpx)", label, f.OverflowX, f.RightOverflow)
}

// outputComparisonJSON outputs the comparison result in JSON format.
func outputComparisonJSON(out io.Writer, result *ComparisonResult) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// outputComparisonMarkdown outputs the comparison result in Markdown format.
func outputComparisonMarkdown(out io.Writer, result *ComparisonResult) error {
	md := markdown.NewMarkdown(out)

	md.H1("Overflow Comparison: " + result.Target)
	md.PlainText("")
	md.PlainText(markdown.Bold("Status:") + " " + formatDirection(result.Direction))
	md.PlainText("")

	rows := [][]string{
		{"Date",
			result.PreviousRun.StartedAt.Local().Format("2006-01-02 15:04"),
			result.CurrentRun.StartedAt.Local().Format("2006-01-02 15:04"),
			"-"},
	}
	for _, vc := range result.Viewports {
		rows = append(rows, []string{vc.Viewport,
			strconv.Itoa(vc.Previous), strconv.Itoa(vc.Current), formatDelta(vc.Current - vc.Previous)})
	}
	rows = append(rows, []string{
		markdown.Bold("Total"),
		markdown.Bold(strconv.Itoa(result.PreviousRun.TotalFindings)),
		markdown.Bold(strconv.Itoa(result.CurrentRun.TotalFindings)),
		markdown.Bold(formatDelta(result.CurrentRun.TotalFindings - result.PreviousRun.TotalFindings)),
	})
	md.Table(markdown.TableSet{
		Header: []string{"Viewport", "Previous", "Current", "Change"},
		Rows:   rows,
	})
	md.PlainText("")

	if result.NewCount > 0 {
		md.H2(fmt.Sprintf("New Findings (%d)", result.NewCount))
		md.PlainText("")
		var items []string
		for _, vc := range result.Viewports {
			for _, f := range vc.NewFindings {
				items = append(items, markdown.Bold("["+vc.Viewport+"]")+" "+markdown.Code(findingLabel(f)))
			}
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	if result.ResolvedCount > 0 {
		md.H2(fmt.Sprintf("Resolved Findings (%d)", result.ResolvedCount))
		md.PlainText("")
		var items []string
		for _, vc := range result.Viewports {
			for _, f := range vc.ResolvedFindings {
				items = append(items, markdown.Strikethrough("["+vc.Viewport+"] "+findingLabel(f)))
			}
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	if result.UnchangedCount > 0 {
		md.HorizontalRule()
		md.PlainText(markdown.Italic(fmt.Sprintf("%d findings unchanged", result.UnchangedCount)))
	}

	return md.Build()
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(out io.Writer, result *ComparisonResult) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Overflow Comparison: %s\n", result.Target)
	sb.WriteString(strings.Repeat("=", 60) + "\n")

	fmt.Fprintf(&sb, "\nStatus: %s\n", formatDirection(result.Direction))

	fmt.Fprintf(&sb, "\nPrevious run: %s\n", result.PreviousRun.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "Current run:  %s\n", result.CurrentRun.StartedAt.Local().Format("2006-01-02 15:04:05"))

	sb.WriteString("\nFindings per viewport:\n")
	fmt.Fprintf(&sb, "  %-12s  %-10s  %-10s  %-10s\n", "Viewport", "Previous", "Current", "Change")
	sb.WriteString("  " + strings.Repeat("-", 47) + "\n")
	for _, vc := range result.Viewports {
		change := formatDelta(vc.Current - vc.Previous)
		if vc.Missing != "" {
			change += " (not in " + vc.Missing + " run)"
		}
		fmt.Fprintf(&sb, "  %-12s  %-10d  %-10d  %s\n", vc.Viewport, vc.Previous, vc.Current, change)
	}
	sb.WriteString("  " + strings.Repeat("-", 47) + "\n")
	fmt.Fprintf(&sb, "  %-12s  %-10d  %-10d  %s\n", "Total",
		result.PreviousRun.TotalFindings, result.CurrentRun.TotalFindings,
		formatDelta(result.CurrentRun.TotalFindings-result.PreviousRun.TotalFindings))

	if result.NewCount > 0 {
		fmt.Fprintf(&sb, "\nNew Findings (%d):\n", result.NewCount)
		for _, vc := range result.Viewports {
			for _, f := range vc.NewFindings {
				fmt.Fprintf(&sb, "  [+] [%s] %s\n", vc.Viewport, findingLabel(f))
			}
		}
	}

	if result.ResolvedCount > 0 {
		fmt.Fprintf(&sb, "\nResolved Findings (%d):\n", result.ResolvedCount)
		for _, vc := range result.Viewports {
			for _, f := range vc.ResolvedFindings {
				fmt.Fprintf(&sb, "  [-] [%s] %s\n", vc.Viewport, findingLabel(f))
			}
		}
	}

	if result.UnchangedCount > 0 {
		fmt.Fprintf(&sb, "\nUnchanged: %d findings\n", result.UnchangedCount)
	}

	_, err := io.WriteString(out, sb.String())
	return err
}

// formatDirection formats the change direction for display.
func formatDirection(direction string) string {
	switch direction {
	case directionImproved:
		return "IMPROVED (less overflow)"
	case directionWorsened:
		return "WORSENED (more overflow)"
	default:
		return "UNCHANGED"
	}
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
