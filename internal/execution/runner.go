package execution

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"time"
)

// Command is one shell command run on behalf of a case or step.
type Command struct {
	Line    string
	Dir     string
	Env     map[string]string
	Timeout time.Duration
}

// Result is what a finished command left behind.
type Result struct {
	Code     int
	Output   string
	Duration time.Duration
}

// ErrSignaled is returned when a command was killed by a signal rather
// than exiting on its own.
var ErrSignaled = errors.New("command terminated by signal")

// Runner executes shell commands. The exit code becomes the case or step
// return code; a command that cannot start, times out or is killed is a
// fault.
type Runner struct {
	shell []string
}

// NewRunner creates a Runner that uses "sh -c".
func NewRunner() *Runner {
	return &Runner{shell: []string{"sh", "-c"}}
}

// Run executes cmd and waits for it.
func (r *Runner) Run(ctx context.Context, cmd Command) (Result, error) {
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	args := append(append([]string(nil), r.shell[1:]...), cmd.Line)
	c := exec.CommandContext(ctx, r.shell[0], args...)
	c.Dir = cmd.Dir
	c.Env = mergeEnv(os.Environ(), cmd.Env)

	var out bytes.Buffer
	c.Stdout = &out
	c.Stderr = &out

	start := time.Now()
	err := c.Run()
	res := Result{Output: out.String(), Duration: time.Since(start), Code: -1}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, fmt.Errorf("command %q: %w", cmd.Line, ctxErr)
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.Code = 0
		return res, nil
	case errors.As(err, &exitErr):
		if code := exitErr.ExitCode(); code >= 0 {
			res.Code = code
			return res, nil
		}
		return res, fmt.Errorf("command %q: %w: %v", cmd.Line, ErrSignaled, exitErr)
	default:
		return res, fmt.Errorf("command %q: %w", cmd.Line, err)
	}
}

// mergeEnv appends extra to base in a stable order. Later entries win when
// the child process resolves duplicates.
func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := append([]string(nil), base...)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}
