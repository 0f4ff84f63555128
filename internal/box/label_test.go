package box

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStepLabel(t *testing.T) {
	tests := []struct {
		label string
		ok    bool
		name  string
		index int
		child int
		desc  string
	}{
		{"step1: open the door", true, "step1", 1, 0, "open the door"},
		{"step3-2: open valve", true, "step3-2", 3, 2, "open valve"},
		{"step4.1 : check", true, "step4-1", 4, 1, "check"},
		{"Step12:shout", true, "Step12", 12, 0, "shout"},
		{"prestep2: warm up", true, "prestep2", 2, 0, "warm up"},
		{"log in", false, "step0", 0, 0, "log in"},
		{"step: missing index", false, "step0", 0, 0, "step: missing index"},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			l, ok := ParseStepLabel(tt.label)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.name, l.Name())
			assert.Equal(t, tt.index, l.Index)
			assert.Equal(t, tt.child, l.Child)
			assert.Equal(t, tt.desc, l.Description)
			assert.Equal(t, tt.label, l.Raw)
		})
	}
}

func TestLabelForNumbersUnparsable(t *testing.T) {
	l := labelFor("click submit", nil)
	assert.Equal(t, "step1", l.Name())
	assert.Equal(t, "step1: click submit", l.String())

	l = labelFor("step9: explicit", nil)
	assert.Equal(t, "step9", l.Name())
}

func TestUnparsableLabelSkipsExplicitIndexes(t *testing.T) {
	c := newTestCase(t, pass, WithNumber("C1"))

	_, err := c.AddStep("step2: open", stepPass)
	require.NoError(t, err)
	closeStep, err := c.AddStep("close the session", stepPass)
	require.NoError(t, err)
	assert.Equal(t, "step3", closeStep.Name())

	_, err = c.AddStep("step5-1: nested", stepPass)
	require.NoError(t, err)
	last, err := c.AddStep("wrap up", stepPass)
	require.NoError(t, err)
	assert.Equal(t, "step6", last.Name())

	var names []string
	for _, s := range c.Steps() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"step2", "step3", "step5-1", "step6"}, names)
}
