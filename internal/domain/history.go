package domain

import "time"

// RunRecord is one finished run as kept in the history database.
type RunRecord struct {
	RunID       string        `json:"run_id"`
	Project     string        `json:"project"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	SuccessFlag int           `json:"success_flag"`
	Total       int           `json:"total"`
	Passed      int           `json:"passed"`
	Failed      int           `json:"failed"`
	Errored     int           `json:"errored"`
	Skipped     int           `json:"skipped"`
	Interrupted bool          `json:"interrupted"`
}

// CaseRecord is one case outcome within a stored run.
type CaseRecord struct {
	RunID    string        `json:"run_id"`
	Seq      int           `json:"seq"`
	Feature  string        `json:"feature"`
	Number   string        `json:"number"`
	Title    string        `json:"title,omitempty"`
	Status   Status        `json:"status"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}
