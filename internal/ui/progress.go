package ui

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"boxrun/internal/domain"
)

// ProgressBar renders run progress from snapshots. It satisfies the
// executor's Observer and Finisher interfaces.
type ProgressBar struct {
	bar *progressbar.ProgressBar
}

// NewProgressBar creates a bar for count cases writing to out.
func NewProgressBar(count int, out io.Writer) *ProgressBar {
	bar := progressbar.NewOptions(count,
		progressbar.OptionSetDescription(describe(domain.Counters{})),
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        color.CyanString("█"),
			SaucerHead:    color.CyanString("█"),
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWriter(out),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(out, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)

	return &ProgressBar{bar: bar}
}

// Observe moves the bar to the snapshot's completed count.
func (p *ProgressBar) Observe(snap domain.ProjectSnapshot) {
	p.Update(snap.Counters)
}

// Finish completes the bar with the final counters.
func (p *ProgressBar) Finish(snap domain.ProjectSnapshot) {
	p.Update(snap.Counters)
	p.bar.Finish()
}

// Update sets the bar position and description.
func (p *ProgressBar) Update(c domain.Counters) {
	p.bar.Set(c.Completed)
	p.bar.Describe(describe(c))
}

func describe(c domain.Counters) string {
	d := color.CyanString("Running cases: ") +
		color.GreenString("[passed: %d", c.Passed) +
		" | " +
		color.RedString("failed: %d", c.Failed)
	if c.Skipped > 0 {
		d += " | " + color.YellowString("skipped: %d", c.Skipped)
	}
	return d + "]"
}
