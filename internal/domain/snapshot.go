package domain

import "time"

// Counts tallies node statuses found by scanning a set of cases.
type Counts struct {
	Pending int `json:"pending"`
	Running int `json:"running"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Errored int `json:"errored"`
	Skipped int `json:"skipped"`
}

// Add records one status.
func (c *Counts) Add(s Status) {
	switch s {
	case StatusPending:
		c.Pending++
	case StatusRunning:
		c.Running++
	case StatusPassed:
		c.Passed++
	case StatusFailed:
		c.Failed++
	case StatusErrored:
		c.Errored++
	case StatusSkipped:
		c.Skipped++
	}
}

// Total returns the number of statuses recorded.
func (c Counts) Total() int {
	return c.Pending + c.Running + c.Passed + c.Failed + c.Errored + c.Skipped
}

// Terminal returns the number of finished nodes.
func (c Counts) Terminal() int {
	return c.Passed + c.Failed + c.Errored + c.Skipped
}

// Counters are the run-level aggregates accumulated by the project loop.
// Failed includes Errored: an errored case is a failed case from the
// aggregate point of view.
type Counters struct {
	Completed int `json:"completed"`
	Passed    int `json:"passed"`
	Failed    int `json:"failed"`
	Errored   int `json:"errored"`
	Skipped   int `json:"skipped"`
}

// StepSnapshot is the observed state of one step.
type StepSnapshot struct {
	Index       int           `json:"index"`
	Name        string        `json:"name"`
	Label       string        `json:"label"`
	Description string        `json:"description,omitempty"`
	Status      Status        `json:"status"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
}

// CaseSnapshot is the observed state of one case and its steps.
type CaseSnapshot struct {
	Number     string         `json:"number"`
	Title      string         `json:"title,omitempty"`
	FullName   string         `json:"full_name"`
	Labels     []string       `json:"labels,omitempty"`
	Feature    string         `json:"feature,omitempty"`
	Role       string         `json:"role,omitempty"`
	Status     Status         `json:"status"`
	StartedAt  time.Time      `json:"started_at"`
	Duration   time.Duration  `json:"duration"`
	Error      string         `json:"error,omitempty"`
	Output     string         `json:"output,omitempty"`
	StepErrors []string       `json:"step_errors,omitempty"`
	Steps      []StepSnapshot `json:"steps,omitempty"`
}

// FeatureSnapshot is the observed state of one feature.
type FeatureSnapshot struct {
	Name     string         `json:"name"`
	Counts   Counts         `json:"counts"`
	Setup    *CaseSnapshot  `json:"setup,omitempty"`
	Teardown *CaseSnapshot  `json:"teardown,omitempty"`
	Cases    []CaseSnapshot `json:"cases"`
}

// ProjectSnapshot is a copy of the whole status tree taken while a run may
// be in progress. It holds at most one running case and one running step.
type ProjectSnapshot struct {
	RunID       string            `json:"run_id,omitempty"`
	Name        string            `json:"name"`
	RootPath    string            `json:"root_path"`
	SuccessFlag int               `json:"success_flag"`
	Running     bool              `json:"running"`
	StartedAt   time.Time         `json:"started_at"`
	Duration    time.Duration     `json:"duration"`
	TakenAt     time.Time         `json:"taken_at"`
	Counters    Counters          `json:"counters"`
	Setup       *CaseSnapshot     `json:"setup,omitempty"`
	Teardown    *CaseSnapshot     `json:"teardown,omitempty"`
	Features    []FeatureSnapshot `json:"features"`
}

// Counts scans every registered case in the tree.
func (p ProjectSnapshot) Counts() Counts {
	var c Counts
	for _, f := range p.Features {
		for _, cs := range f.Cases {
			c.Add(cs.Status)
		}
	}
	return c
}

// CurrentCase returns the running case, if any.
func (p ProjectSnapshot) CurrentCase() (CaseSnapshot, bool) {
	for _, f := range p.Features {
		for _, cs := range f.Cases {
			if cs.Status == StatusRunning {
				return cs, true
			}
		}
	}
	return CaseSnapshot{}, false
}
