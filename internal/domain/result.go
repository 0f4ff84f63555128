package domain

// Failure describes one failed or errored case for reports and the viewer.
type Failure struct {
	Feature    string   `json:"feature"`
	CaseNumber string   `json:"case_number"`
	CaseTitle  string   `json:"case_title,omitempty"`
	Status     Status   `json:"status"`
	Step       string   `json:"step,omitempty"`
	Message    string   `json:"message"`
	StepErrors []string `json:"step_errors,omitempty"`
	Output     []string `json:"output,omitempty"`
	Resolved   bool     `json:"resolved,omitempty"` // Marked in the failure viewer
}

// ResultsMeta contains metadata about a finished run
type ResultsMeta struct {
	RunID           string  `json:"run_id"`
	Project         string  `json:"project"`
	SuccessFlag     int     `json:"success_flag"`
	TotalCases      int     `json:"total_cases"`
	PassedCases     int     `json:"passed_cases"`
	FailedCases     int     `json:"failed_cases"`
	ErroredCases    int     `json:"errored_cases"`
	SkippedCases    int     `json:"skipped_cases"`
	Duration        string  `json:"duration"`
	DurationSeconds float64 `json:"duration_seconds"`
	Timestamp       string  `json:"timestamp"`
	Interrupted     bool    `json:"interrupted,omitempty"`
}

// ResultsOutput is the complete stored structure of a run
type ResultsOutput struct {
	Meta    ResultsMeta     `json:"meta"`
	Tree    ProjectSnapshot `json:"tree"`
	Details []Failure       `json:"details"`
}
