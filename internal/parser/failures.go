package parser

import (
	"regexp"
	"strings"

	"boxrun/internal/domain"
)

// DefaultOutputLines is how much command output a failure keeps.
const DefaultOutputLines = 40

var failureLine = regexp.MustCompile(`(?i)\b(error|errors|fail|failed|failure|fatal|exception|panic|assert\w*|traceback)\b`)

// FailureParser turns failed and errored cases into failure records
type FailureParser struct {
	outputLines int
}

// NewFailureParser creates a FailureParser keeping the last outputLines
// lines of each case's output.
func NewFailureParser(outputLines int) *FailureParser {
	if outputLines <= 0 {
		outputLines = DefaultOutputLines
	}
	return &FailureParser{outputLines: outputLines}
}

// ParseFailures walks the tree in execution order. Setup and teardown cases
// that did not pass are reported too.
func (p *FailureParser) ParseFailures(snap domain.ProjectSnapshot) []domain.Failure {
	var failures []domain.Failure
	add := func(feature string, cs *domain.CaseSnapshot) {
		if cs != nil && cs.Status.NotOK() {
			failures = append(failures, p.parseCase(feature, *cs))
		}
	}

	add("", snap.Setup)
	for _, f := range snap.Features {
		add(f.Name, f.Setup)
		for i := range f.Cases {
			add(f.Name, &f.Cases[i])
		}
		add(f.Name, f.Teardown)
	}
	add("", snap.Teardown)
	return failures
}

func (p *FailureParser) parseCase(feature string, cs domain.CaseSnapshot) domain.Failure {
	failure := domain.Failure{
		Feature:    feature,
		CaseNumber: cs.Number,
		CaseTitle:  cs.Title,
		Status:     cs.Status,
		Message:    cs.Error,
		StepErrors: cs.StepErrors,
		Output:     tail(cs.Output, p.outputLines),
	}
	if step, ok := failingStep(cs.Steps); ok {
		failure.Step = step.Name
		if failure.Message == "" {
			failure.Message = step.Error
		}
	}
	if failure.Message == "" {
		failure.Message = firstFailureLine(cs.Output)
	}
	return failure
}

// failingStep returns the last step that did not pass.
func failingStep(steps []domain.StepSnapshot) (domain.StepSnapshot, bool) {
	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i].Status.NotOK() {
			return steps[i], true
		}
	}
	return domain.StepSnapshot{}, false
}

// firstFailureLine picks the first output line that looks like an error.
func firstFailureLine(output string) string {
	for _, line := range strings.Split(output, "\n") {
		if failureLine.MatchString(line) {
			return strings.TrimSpace(line)
		}
	}
	return ""
}

func tail(output string, n int) []string {
	output = strings.TrimRight(output, "\n")
	if output == "" {
		return nil
	}
	lines := strings.Split(output, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
