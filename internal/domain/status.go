package domain

import (
	"fmt"
	"strings"
)

// Status is the execution state of a case or step.
type Status int32

const (
	StatusPending Status = iota
	StatusRunning
	StatusPassed
	StatusFailed
	StatusErrored
	StatusSkipped
)

var statusNames = [...]string{
	StatusPending: "pending",
	StatusRunning: "running",
	StatusPassed:  "passed",
	StatusFailed:  "failed",
	StatusErrored: "errored",
	StatusSkipped: "skipped",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int32(s))
	}
	return statusNames[s]
}

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusPassed || s == StatusFailed || s == StatusErrored || s == StatusSkipped
}

// NotOK reports whether s counts toward the failed total of a run.
func (s Status) NotOK() bool {
	return s == StatusFailed || s == StatusErrored
}

// ParseStatus converts a status name back to its value.
func ParseStatus(name string) (Status, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range statusNames {
		if n == name {
			return Status(i), nil
		}
	}
	return StatusPending, fmt.Errorf("unknown status %q", name)
}

// MarshalText encodes the status by name so stored results stay readable.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
