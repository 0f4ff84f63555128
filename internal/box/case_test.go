package box

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boxrun/internal/domain"
)

func TestCaseRunOutcomes(t *testing.T) {
	tests := []struct {
		name string
		fn   CaseFunc
		want domain.Status
	}{
		{"returns flag", pass, domain.StatusPassed},
		{"returns other code", fail, domain.StatusFailed},
		{"returns error", fault, domain.StatusErrored},
		{"panics", crash, domain.StatusErrored},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCase(t, tt.fn)
			assert.Equal(t, domain.StatusPending, c.Status())
			assert.Equal(t, tt.want, c.Run())
			assert.Equal(t, tt.want, c.Status())
		})
	}
}

func TestCaseRunIsMonotonic(t *testing.T) {
	calls := 0
	c := newTestCase(t, func() (int, error) {
		calls++
		return 0, nil
	})
	assert.Equal(t, domain.StatusPassed, c.Run())

	status, err := c.execute()
	assert.ErrorIs(t, err, ErrAlreadyRun)
	assert.Equal(t, domain.StatusPassed, status)
	assert.Equal(t, 1, calls)

	c.Reset()
	assert.Equal(t, domain.StatusPending, c.Status())
	assert.Equal(t, domain.StatusPassed, c.Run())
	assert.Equal(t, 2, calls)
}

func TestCaseMetadata(t *testing.T) {
	c := newTestCase(t, pass, WithNumber("TC-9"), WithTitle("checks things"), WithLabels("smoke", "slow"))
	assert.Equal(t, "TC-9", c.Number())
	assert.Equal(t, "checks things", c.Title())
	assert.Equal(t, []string{"smoke", "slow"}, c.Labels())
	assert.Equal(t, "TestCase: TC-9, checks things", c.FullName())

	d := newTestCase(t, pass)
	assert.Equal(t, "pass", d.Number())
	assert.Equal(t, "TestCase: pass", d.FullName())
}

func TestNewCaseValidation(t *testing.T) {
	_, err := NewCase(nil)
	assert.ErrorIs(t, err, ErrNilFunc)

	_, err = NewCaseBox(pass, nil)
	assert.ErrorIs(t, err, ErrNilFeature)
}

func TestCaseDataSpace(t *testing.T) {
	var c *CaseBox
	c = newTestCase(t, func() (int, error) {
		if err := c.WithStep("step1: produce", func() error {
			c.Set("token", "abc")
			return nil
		}); err != nil {
			return 0, err
		}
		v, ok := c.Get("token")
		if !ok || v != "abc" {
			return 1, nil
		}
		return 0, nil
	})
	assert.Equal(t, domain.StatusPassed, c.Run())
}

func TestCaseErrorFromStepFault(t *testing.T) {
	var s *StepBox
	c := newTestCase(t, func() (int, error) {
		return s.RunStep()
	}, WithNumber("C3"))
	var err error
	s, err = c.AddStep("step1: broken", stepFault)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusErrored, c.Run())
	assert.Equal(t, domain.StatusErrored, s.Status())
	var fe *FaultError
	require.ErrorAs(t, c.Err(), &fe)
	assert.Equal(t, "C3", fe.Node)
	assert.ErrorIs(t, c.Err(), errBoom)
}

func TestCaseResetDropsScopedSteps(t *testing.T) {
	var c *CaseBox
	var direct *StepBox
	c = newTestCase(t, func() (int, error) {
		if _, err := direct.RunStep(); err != nil {
			return 0, err
		}
		return 0, c.WithStep("step2: scoped", func() error { return nil })
	})
	var err error
	direct, err = c.AddStep("step1: direct", stepPass)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPassed, c.Run())
	require.Len(t, c.Steps(), 2)

	c.Reset()
	steps := c.Steps()
	require.Len(t, steps, 1)
	assert.Same(t, direct, steps[0])
	assert.Equal(t, domain.StatusPending, direct.Status())

	assert.Equal(t, domain.StatusPassed, c.Run())
	assert.Len(t, c.Steps(), 2)
}

func TestCaseOutput(t *testing.T) {
	c := newTestCase(t, pass)
	c.AppendOutput("one\n")
	c.AppendOutput("")
	c.AppendOutput("two\n")
	assert.Equal(t, "one\ntwo\n", c.Output())
	c.Reset()
	assert.Empty(t, c.Output())
}

func TestCaseHooks(t *testing.T) {
	log := &recLogger{}
	projHook := &recHook{name: "p"}
	caseHook := &recHook{name: "c"}
	p := NewProjectBox("/tmp/suite", WithLogger(log), WithHooks(projHook, panicHook{}))
	f, err := NewFeatureBox("f", p)
	require.NoError(t, err)

	var s *StepBox
	c, err := NewCaseBox(func() (int, error) { return s.RunStep() }, f,
		WithNumber("H1"), WithCaseHooks(caseHook))
	require.NoError(t, err)
	s, err = c.AddStep("step1: hooked", stepFail)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusFailed, c.Run())
	assert.Equal(t, []string{
		"p:before:H1",
		"p:step-before:step1",
		"p:step-after:step1:failed",
		"p:after:H1:failed",
	}, projHook.got())
	assert.Equal(t, []string{
		"c:before:H1",
		"c:step-before:step1",
		"c:step-after:step1:failed",
		"c:after:H1:failed",
	}, caseHook.got())

	var warned bool
	for _, line := range log.all() {
		if line == "WARN hook panicky panicked: hook exploded" {
			warned = true
		}
	}
	assert.True(t, warned, "panicking hook should be logged")
}

func TestCaseLoop(t *testing.T) {
	t.Run("repeats body and steps", func(t *testing.T) {
		p := newTestProject(t)
		f := addFeature(t, p, "f")
		calls := 0
		var c *CaseBox
		c, err := NewCaseBox(func() (int, error) {
			calls++
			if _, err := c.Step("step1").RunStep(); err != nil {
				return 0, err
			}
			return 0, c.WithStep("step2: scoped", func() error { return nil })
		}, f, WithNumber("loop"), WithLoop(3))
		require.NoError(t, err)
		_, err = c.AddStep("step1: registered", stepPass)
		require.NoError(t, err)

		assert.Equal(t, 3, c.Loop())
		assert.Equal(t, domain.StatusPassed, c.Run())
		assert.Equal(t, 3, calls)
		require.Len(t, c.Steps(), 2)
		assert.Equal(t, domain.StatusPassed, c.Step("step1").Status())
		assert.Equal(t, domain.StatusPassed, c.Step("step2").Status())
	})

	t.Run("stops at first failure", func(t *testing.T) {
		calls := 0
		c, err := NewCase(func() (int, error) {
			calls++
			if calls == 2 {
				return 1, nil
			}
			return 0, nil
		}, WithLoop(5))
		require.NoError(t, err)
		assert.Equal(t, domain.StatusFailed, c.Run())
		assert.Equal(t, 2, calls)
	})

	t.Run("below one runs once", func(t *testing.T) {
		calls := 0
		c, err := NewCase(func() (int, error) {
			calls++
			return 0, nil
		}, WithLoop(0))
		require.NoError(t, err)
		assert.Equal(t, 1, c.Loop())
		assert.Equal(t, domain.StatusPassed, c.Run())
		assert.Equal(t, 1, calls)
	})
}

func TestCaseSkipMark(t *testing.T) {
	c, err := NewCase(pass, WithNumber("s"), WithSkip(""))
	require.NoError(t, err)
	assert.True(t, c.Skipped())
	assert.Equal(t, domain.StatusSkipped, c.Run())
	assert.Equal(t, "marked skip", c.state.msg())
}
