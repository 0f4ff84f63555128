package box

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boxrun/internal/domain"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name  string
		code  int
		fault *FaultError
		flag  int
		want  domain.Status
	}{
		{"flag returned", 0, nil, 0, domain.StatusPassed},
		{"other code", 1, nil, 0, domain.StatusFailed},
		{"negative code", -1, nil, 0, domain.StatusFailed},
		{"custom flag", 7, nil, 7, domain.StatusPassed},
		{"zero under custom flag", 0, nil, 7, domain.StatusFailed},
		{"fault wins over flag", 0, &FaultError{Node: "x", Err: errBoom}, 0, domain.StatusErrored},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decide(tt.code, tt.fault, tt.flag))
		})
	}
}

func TestInvoke(t *testing.T) {
	code, f := invoke("c1", func() (int, error) { return 4, nil })
	assert.Equal(t, 4, code)
	assert.Nil(t, f)

	_, f = invoke("c1", fault)
	require.NotNil(t, f)
	assert.False(t, f.Panicked())
	assert.ErrorIs(t, f, errBoom)
	assert.Equal(t, "c1: boom", f.Error())

	_, f = invoke("c1", crash)
	require.NotNil(t, f)
	assert.True(t, f.Panicked())
	assert.Equal(t, "kaboom", f.Panic)
	assert.NotEmpty(t, f.Stack)
	assert.Equal(t, "c1: panic: kaboom", f.Error())
}

func TestAsErrorNil(t *testing.T) {
	var f *FaultError
	assert.NoError(t, asError(f))

	var target *FaultError
	err := asError(&FaultError{Node: "n", Err: errBoom})
	require.True(t, errors.As(err, &target))
	assert.Equal(t, "n", target.Node)
}
