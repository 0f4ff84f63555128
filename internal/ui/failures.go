package ui

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"boxrun/internal/domain"
	"boxrun/internal/storage"
)

// FailureViewer displays failed cases in an interactive TUI. Cases can be
// marked resolved; the marks are saved back through the storage.
type FailureViewer struct {
	storage storage.Storage
}

// NewFailureViewer creates a new FailureViewer
func NewFailureViewer(st storage.Storage) *FailureViewer {
	return &FailureViewer{storage: st}
}

// View displays the failures of results in an interactive TUI
func (ev *FailureViewer) View(results *domain.ResultsOutput) error {
	if len(results.Details) == 0 {
		color.Green("✓ No failed cases found!")
		return nil
	}

	b := newFailureBrowser(results, ev.storage)
	if err := b.app.SetRoot(b.layout(), true).SetFocus(b.list).Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

const failureKeys = "↑↓ navigate, [yellow]R[white] resolve, [yellow]N[white] next unresolved, → details, ← back, Ctrl+C exit"

// failureBrowser holds the widgets and resolved marks of one View session.
type failureBrowser struct {
	results *domain.ResultsOutput
	storage storage.Storage

	app     *tview.Application
	list    *tview.List
	header  *tview.TextView
	stats   *tview.TextView
	details *tview.TextView
}

func newFailureBrowser(results *domain.ResultsOutput, st storage.Storage) *failureBrowser {
	b := &failureBrowser{
		results: results,
		storage: st,
		app:     tview.NewApplication(),
		list:    tview.NewList().ShowSecondaryText(false).SetHighlightFullLine(true),
		header:  tview.NewTextView().SetTextAlign(tview.AlignCenter).SetDynamicColors(true),
		stats:   tview.NewTextView().SetDynamicColors(true).SetWrap(false),
		details: tview.NewTextView().SetDynamicColors(true).SetWrap(true).SetWordWrap(true),
	}
	b.list.SetSelectedTextColor(tcell.ColorWhite).
		SetSelectedBackgroundColor(tcell.ColorDarkCyan)
	for i := range results.Details {
		b.list.AddItem(b.itemText(i), "", 0, nil)
	}
	b.list.SetChangedFunc(func(i int, _, _ string, _ rune) { b.showDetails(i) })
	b.list.SetInputCapture(b.listKeys)
	b.details.SetInputCapture(b.detailKeys)

	b.refreshHeader()
	b.showDetails(0)
	return b
}

// layout puts the header on top, the case list on the left third and the
// selected failure on the right.
func (b *failureBrowser) layout() tview.Primitive {
	right := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(b.stats, 3, 0, false).
		AddItem(padRight(b.details, 2), 0, 1, false)
	body := tview.NewFlex().
		AddItem(b.list, 0, 1, true).
		AddItem(right, 0, 2, false)
	return tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(b.header, 1, 0, false).
		AddItem(tview.NewBox(), 1, 0, false).
		AddItem(body, 0, 1, true)
}

func padRight(p tview.Primitive, width int) tview.Primitive {
	return tview.NewFlex().
		AddItem(p, 0, 1, false).
		AddItem(tview.NewBox(), width, 0, false)
}

func (b *failureBrowser) listKeys(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyEnter, tcell.KeyRight:
		b.app.SetFocus(b.details)
		return nil
	case tcell.KeyCtrlC:
		b.app.Stop()
		return nil
	case tcell.KeyRune:
		switch event.Rune() {
		case 'r', 'R':
			b.toggle(b.list.GetCurrentItem())
			return nil
		case 'n', 'N':
			if i := b.nextUnresolved(b.list.GetCurrentItem()); i >= 0 {
				b.list.SetCurrentItem(i)
			}
			return nil
		}
	}
	return event
}

func (b *failureBrowser) detailKeys(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyLeft, tcell.KeyEsc:
		b.app.SetFocus(b.list)
		return nil
	case tcell.KeyCtrlC:
		b.app.Stop()
		return nil
	}
	return event
}

// toggle flips the resolved mark of failure i and saves the results. A save
// error is shown in the header.
func (b *failureBrowser) toggle(i int) {
	if i < 0 || i >= len(b.results.Details) {
		return
	}
	b.results.Details[i].Resolved = !b.results.Details[i].Resolved
	b.list.SetItemText(i, b.itemText(i), "")
	b.refreshHeader()
	b.showDetails(i)
	if err := b.storage.Save(b.results); err != nil {
		b.header.SetText(fmt.Sprintf(" [red]failed to save resolved marks: %v[white] ", err))
	}
}

// nextUnresolved returns the first unresolved failure after from, wrapping
// around, or -1 when every failure is resolved.
func (b *failureBrowser) nextUnresolved(from int) int {
	n := len(b.results.Details)
	for step := 1; step <= n; step++ {
		i := (from + step) % n
		if !b.results.Details[i].Resolved {
			return i
		}
	}
	return -1
}

func (b *failureBrowser) unresolved() int {
	count := 0
	for _, f := range b.results.Details {
		if !f.Resolved {
			count++
		}
	}
	return count
}

func (b *failureBrowser) itemText(i int) string {
	return listItemText(b.results.Details[i], i+1, b.results.Details[i].Resolved)
}

func (b *failureBrowser) refreshHeader() {
	b.header.SetText(fmt.Sprintf(" Failed Cases (%d total, %d unresolved) | %s ",
		len(b.results.Details), b.unresolved(), failureKeys))
}

// showDetails renders failure i. The list calls it before its current item
// moves, so the index comes from the caller.
func (b *failureBrowser) showDetails(i int) {
	if i < 0 || i >= len(b.results.Details) {
		return
	}
	f := b.results.Details[i]
	b.stats.SetText(formatFailureStats(f, i+1))
	b.details.SetText(formatFailureDetails(f))
}

func listItemText(failure domain.Failure, number int, resolved bool) string {
	name := failure.CaseNumber
	if name == "" {
		name = fmt.Sprintf("Case %d", number)
	}
	if failure.CaseTitle != "" {
		name += " " + failure.CaseTitle
	}
	name = tview.Escape(name)
	if resolved {
		return fmt.Sprintf("[gray]✓ [yellow]%d.[gray] %s[white]", number, name)
	}
	return fmt.Sprintf("[yellow]%d.[white] %s", number, name)
}

// formatFailureDetails formats a failure for display using tview color tags ([red], [cyan], etc.)
func formatFailureDetails(failure domain.Failure) string {
	var builder strings.Builder
	w := tabwriter.NewWriter(&builder, 0, 0, 2, ' ', 0)

	title := failure.CaseNumber
	if failure.CaseTitle != "" {
		title += ", " + failure.CaseTitle
	}
	fmt.Fprintf(w, "[red]✗ Case: %s[white] (%s)\n\n", tview.Escape(title), failure.Status)

	if failure.Feature != "" {
		fmt.Fprintf(w, "[cyan]Feature: %s[white]\n", tview.Escape(failure.Feature))
	}
	if failure.Step != "" {
		fmt.Fprintf(w, "[yellow]Step: %s[white]\n", tview.Escape(failure.Step))
	}
	fmt.Fprintf(w, "\n")

	if failure.Message != "" {
		fmt.Fprintf(w, "[yellow]Message:[white]\n%s\n\n", tview.Escape(failure.Message))
	}

	if len(failure.StepErrors) > 0 {
		fmt.Fprintf(w, "[yellow]Step Errors:[white]\n")
		for _, e := range failure.StepErrors {
			fmt.Fprintf(w, "  %s\n", tview.Escape(e))
		}
		fmt.Fprintf(w, "\n")
	}

	if len(failure.Output) > 0 {
		fmt.Fprintf(w, "[yellow]Output:[white]\n")
		for _, line := range failure.Output {
			fmt.Fprintf(w, "  %s\n", tview.Escape(line))
		}
	}

	w.Flush()
	return builder.String()
}

// formatFailureStats formats the header line for a failure
func formatFailureStats(failure domain.Failure, number int) string {
	feature := failure.Feature
	if feature == "" {
		feature = "project"
	}

	name := failure.CaseNumber
	if name == "" {
		name = fmt.Sprintf("Case %d", number)
	}

	return fmt.Sprintf("[cyan]feature:[white] [yellow]%s[white]::[yellow]%s[white]\n", tview.Escape(feature), tview.Escape(name))
}
