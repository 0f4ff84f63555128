package execution

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestRunnerExitCodes(t *testing.T) {
	requireShell(t)
	r := NewRunner()
	tests := []struct {
		line string
		code int
	}{
		{"true", 0},
		{"exit 3", 3},
		{"false", 1},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			res, err := r.Run(context.Background(), Command{Line: tt.line})
			require.NoError(t, err)
			assert.Equal(t, tt.code, res.Code)
		})
	}
}

func TestRunnerCapturesOutputAndEnv(t *testing.T) {
	requireShell(t)
	res, err := NewRunner().Run(context.Background(), Command{
		Line: `echo "$GREETING from $(pwd)"; echo oops >&2`,
		Dir:  t.TempDir(),
		Env:  map[string]string{"GREETING": "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Code)
	assert.Contains(t, res.Output, "hello from /")
	assert.Contains(t, res.Output, "oops")
}

func TestRunnerTimeoutIsFault(t *testing.T) {
	requireShell(t)
	res, err := NewRunner().Run(context.Background(), Command{Line: "sleep 5", Timeout: 50 * time.Millisecond})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, -1, res.Code)
}

func TestRunnerStartFailureIsFault(t *testing.T) {
	r := &Runner{shell: []string{"/definitely/not/a/shell", "-c"}}
	_, err := r.Run(context.Background(), Command{Line: "true"})
	require.Error(t, err)
}

func TestMergeEnv(t *testing.T) {
	env := mergeEnv([]string{"A=1"}, map[string]string{"C": "3", "B": "2"})
	assert.Equal(t, []string{"A=1", "B=2", "C=3"}, env)
	assert.Equal(t, []string{"A=1"}, mergeEnv([]string{"A=1"}, nil))
}
