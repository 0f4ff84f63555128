package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"boxrun/internal/domain"
	"boxrun/internal/manifest"
)

// Formatter prints run results, status trees and listings.
type Formatter struct {
	out io.Writer
}

// NewFormatter creates a Formatter writing to out.
func NewFormatter(out io.Writer) *Formatter {
	return &Formatter{out: out}
}

// PrintSummary prints the statistics table of a stored run followed by the
// tree of failed cases.
func (f *Formatter) PrintSummary(res *domain.ResultsOutput) {
	meta := res.Meta

	t := table.NewWriter()
	t.SetOutputMirror(f.out)
	t.SetTitle(fmt.Sprintf("%s (%s)", meta.Project, meta.Duration))
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
	})
	t.AppendRows([]table.Row{
		{"Run", meta.RunID},
		{"Total Cases", meta.TotalCases},
		{"Passed", meta.PassedCases},
		{"Failed", meta.FailedCases},
		{"Errored", meta.ErroredCases},
		{"Skipped", meta.SkippedCases},
		{"Success Flag", meta.SuccessFlag},
		{"Timestamp", meta.Timestamp},
	})
	if meta.FailedCases == 0 && !meta.Interrupted {
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	} else {
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}
	t.Render()

	fmt.Fprintln(f.out)
	switch {
	case meta.Interrupted:
		fmt.Fprintln(f.out, color.YellowString("! Run interrupted after %d case(s)", res.Tree.Counters.Completed))
	case meta.FailedCases == 0:
		fmt.Fprintln(f.out, color.GreenString("✓ All cases passed!"))
	default:
		fmt.Fprintln(f.out, color.RedString("✗ %d case(s) failed", meta.FailedCases))
	}
	if len(res.Details) > 0 {
		fmt.Fprintln(f.out)
		f.printFailureTree(res.Details)
	}
}

// printFailureTree groups failures by feature.
func (f *Formatter) printFailureTree(failures []domain.Failure) {
	var order []string
	byFeature := make(map[string][]domain.Failure)
	for _, failure := range failures {
		name := failure.Feature
		if name == "" {
			name = "(project)"
		}
		if _, ok := byFeature[name]; !ok {
			order = append(order, name)
		}
		byFeature[name] = append(byFeature[name], failure)
	}

	for i, name := range order {
		lastFeature := i == len(order)-1
		fmt.Fprintln(f.out, branch("", lastFeature)+color.CyanString("%s", name))
		items := byFeature[name]
		for j, failure := range items {
			line := failure.CaseNumber
			if failure.Step != "" {
				line += " @ " + failure.Step
			}
			if failure.Message != "" {
				line += ": " + failure.Message
			}
			fmt.Fprintln(f.out, branch(indent(lastFeature), j == len(items)-1)+statusColor(failure.Status).Sprint(line))
		}
	}
}

// PrintTree prints every feature and case of a snapshot with its status.
// Steps are included when showSteps is set.
func (f *Formatter) PrintTree(snap domain.ProjectSnapshot, showSteps bool) {
	fmt.Fprintln(f.out, color.New(color.Bold).Sprint(snap.Name))
	if snap.Setup != nil {
		fmt.Fprintln(f.out, branch("", false)+caseLine(*snap.Setup))
	}
	for i, feature := range snap.Features {
		lastFeature := i == len(snap.Features)-1 && snap.Teardown == nil
		counts := feature.Counts
		fmt.Fprintf(f.out, "%s%s %s\n", branch("", lastFeature), color.CyanString("%s", feature.Name),
			color.HiBlackString("(%d/%d)", counts.Terminal(), counts.Total()))

		prefix := indent(lastFeature)
		var cases []domain.CaseSnapshot
		if feature.Setup != nil {
			cases = append(cases, *feature.Setup)
		}
		cases = append(cases, feature.Cases...)
		if feature.Teardown != nil {
			cases = append(cases, *feature.Teardown)
		}
		for j, cs := range cases {
			lastCase := j == len(cases)-1
			fmt.Fprintln(f.out, branch(prefix, lastCase)+caseLine(cs))
			if !showSteps {
				continue
			}
			stepPrefix := prefix + indent(lastCase)
			for k, step := range cs.Steps {
				fmt.Fprintln(f.out, branch(stepPrefix, k == len(cs.Steps)-1)+stepLine(step))
			}
		}
	}
	if snap.Teardown != nil {
		fmt.Fprintln(f.out, branch("", true)+caseLine(*snap.Teardown))
	}
}

// PrintStatus prints the live counters and the case currently running.
func (f *Formatter) PrintStatus(snap domain.ProjectSnapshot, active bool) {
	state := color.GreenString("finished")
	if active && snap.Running {
		state = color.CyanString("running")
	} else if snap.Running {
		state = color.YellowString("abandoned")
	}
	c := snap.Counters
	total := snap.Counts().Total()
	fmt.Fprintf(f.out, "%s %s  run %s\n", color.New(color.Bold).Sprint(snap.Name), state, snap.RunID)
	fmt.Fprintf(f.out, "completed %d/%d  %s  %s  %s  %s\n", c.Completed, total,
		color.GreenString("passed %d", c.Passed),
		color.RedString("failed %d", c.Failed),
		color.MagentaString("errored %d", c.Errored),
		color.YellowString("skipped %d", c.Skipped))
	if cs, ok := snap.CurrentCase(); ok {
		line := fmt.Sprintf("current: %s / %s", cs.Feature, cs.FullName)
		for _, step := range cs.Steps {
			if step.Status == domain.StatusRunning {
				line += " @ " + step.Label
			}
		}
		fmt.Fprintln(f.out, color.CyanString("%s", line))
	}
}

// PrintManifest lists the features and cases of a manifest. Cases in failed
// (keyed by case number) are marked with [F] from the last run.
func (f *Formatter) PrintManifest(m *manifest.Manifest, showCases bool, failed map[string]struct{}) {
	fmt.Fprintln(f.out, color.GreenString("Found %d case(s) in %d feature(s):", m.CaseCount(), len(m.Features)))
	for i, feature := range m.Features {
		lastFeature := i == len(m.Features)-1
		marker := ""
		if !showCases {
			for _, c := range feature.Cases {
				if _, ok := failed[c.Number]; ok {
					marker = " " + color.RedString("[F]")
					break
				}
			}
		}
		fmt.Fprintf(f.out, "%s%s %s%s\n", branch("", lastFeature), color.CyanString("%s", feature.Name),
			color.HiBlackString("(%d)", len(feature.Cases)), marker)
		if !showCases {
			continue
		}
		if len(feature.Cases) == 0 {
			fmt.Fprintln(f.out, branch(indent(lastFeature), true)+color.RedString("(no cases)"))
			continue
		}
		for j, c := range feature.Cases {
			line := color.YellowString("%s", c.Number)
			if c.Title != "" {
				line += " " + c.Title
			}
			if len(c.Labels) > 0 {
				line += " " + color.HiBlackString("[%s]", strings.Join(c.Labels, ", "))
			}
			if _, ok := failed[c.Number]; ok {
				line += " " + color.RedString("[F]")
			}
			fmt.Fprintln(f.out, branch(indent(lastFeature), j == len(feature.Cases)-1)+line)
		}
	}
}

// PrintHistory prints past runs, newest first.
func (f *Formatter) PrintHistory(runs []domain.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(f.out, color.YellowString("No runs recorded yet."))
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(f.out)
	t.AppendHeader(table.Row{"Run", "Project", "Started", "Duration", "Total", "Passed", "Failed", "Errored", "Skipped", "Result"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Total", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Errored", Align: text.AlignRight},
		{Name: "Skipped", Align: text.AlignRight},
	})
	for _, r := range runs {
		result := color.GreenString("pass")
		switch {
		case r.Interrupted:
			result = color.YellowString("interrupted")
		case r.Failed > 0:
			result = color.RedString("fail")
		}
		t.AppendRow(table.Row{
			shortID(r.RunID), r.Project, r.StartedAt.Local().Format(time.DateTime),
			formatDuration(r.Duration), r.Total, r.Passed, r.Failed, r.Errored, r.Skipped, result,
		})
	}
	t.Render()
}

// PrintRunCases prints the case outcomes of one stored run.
func (f *Formatter) PrintRunCases(run domain.RunRecord, cases []domain.CaseRecord) {
	t := table.NewWriter()
	t.SetOutputMirror(f.out)
	t.SetTitle(fmt.Sprintf("%s run %s (%s)", run.Project, run.RunID, run.StartedAt.Local().Format(time.DateTime)))
	t.AppendHeader(table.Row{"#", "Feature", "Case", "Title", "Status", "Duration", "Error"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Feature", AutoMerge: true},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Error", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})
	for _, c := range cases {
		t.AppendRow(table.Row{
			c.Seq, c.Feature, c.Number, c.Title,
			statusColor(c.Status).Sprint(c.Status.String()),
			formatDuration(c.Duration), c.Error,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "Total", run.Total, formatDuration(run.Duration), ""})
	t.Render()
}

func caseLine(cs domain.CaseSnapshot) string {
	name := cs.FullName
	if cs.Role != "" {
		name = fmt.Sprintf("%s (%s)", cs.Number, cs.Role)
	}
	line := statusColor(cs.Status).Sprintf("%s %s", glyph(cs.Status), name)
	if cs.Status.Terminal() && cs.Status != domain.StatusSkipped {
		line += " " + color.HiBlackString("%s", formatDuration(cs.Duration))
	}
	if cs.Error != "" {
		line += " " + color.RedString("%s", cs.Error)
	}
	return line
}

func stepLine(s domain.StepSnapshot) string {
	line := statusColor(s.Status).Sprintf("%s %s", glyph(s.Status), s.Label)
	if s.Error != "" {
		line += " " + color.RedString("%s", s.Error)
	}
	return line
}

func glyph(s domain.Status) string {
	switch s {
	case domain.StatusPassed:
		return "✓"
	case domain.StatusFailed:
		return "✗"
	case domain.StatusErrored:
		return "!"
	case domain.StatusSkipped:
		return "-"
	case domain.StatusRunning:
		return "▶"
	default:
		return "·"
	}
}

func statusColor(s domain.Status) *color.Color {
	switch s {
	case domain.StatusPassed:
		return color.New(color.FgGreen)
	case domain.StatusFailed:
		return color.New(color.FgRed)
	case domain.StatusErrored:
		return color.New(color.FgMagenta)
	case domain.StatusSkipped:
		return color.New(color.FgYellow)
	case domain.StatusRunning:
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgHiBlack)
	}
}

func branch(prefix string, last bool) string {
	if last {
		return prefix + "└── "
	}
	return prefix + "├── "
}

func indent(last bool) string {
	if last {
		return "    "
	}
	return "│   "
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}
