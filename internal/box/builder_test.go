package box

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boxrun/internal/domain"
)

func TestBaseCaseRegisterAndRun(t *testing.T) {
	p := newTestProject(t)
	f := addFeature(t, p, "auth")

	inits := 0
	var trail []string
	login := &BaseCase{
		Number: "AUTH-001",
		Title:  "log in",
		Labels: []string{"smoke"},
		Init: func(b *BaseCase) error {
			inits++
			if _, err := b.AddStepBox("step1: open session", func(...any) (int, error) {
				trail = append(trail, "open")
				return 0, nil
			}); err != nil {
				return err
			}
			_, err := b.AddStepBox("step2: submit", func(args ...any) (int, error) {
				trail = append(trail, "submit:"+args[0].(string))
				return 0, nil
			})
			return err
		},
		Run: func(b *BaseCase) (int, error) {
			if _, err := b.StepBox("step1").RunStep(); err != nil {
				return 0, err
			}
			return b.StepBox("step2").RunStep("alice")
		},
	}

	c, err := login.Register(f)
	require.NoError(t, err)
	assert.Same(t, c, login.CaseBox())
	assert.Same(t, c, f.Case("AUTH-001"))
	assert.Equal(t, "TestCase: AUTH-001, log in", login.FullName())
	assert.Equal(t, c.FullName(), login.FullName())
	assert.Equal(t, []string{"smoke"}, c.Labels())
	assert.Len(t, login.Steps(), 2)

	passed, failed, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, passed)
	assert.Equal(t, 0, failed)
	assert.Equal(t, []string{"open", "submit:alice"}, trail)
	assert.Equal(t, 1, inits)
	assert.Equal(t, domain.StatusPassed, login.StepBox("step2").Status())

	_, err = login.Register(f)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
	assert.Equal(t, 1, inits)
}

func TestBaseCaseMetadataFromInit(t *testing.T) {
	p := newTestProject(t)
	f := addFeature(t, p, "f")
	b := &BaseCase{
		Init: func(b *BaseCase) error {
			b.Number, b.Title = "N-1", "filled in init"
			return nil
		},
		Run: func(*BaseCase) (int, error) { return 0, nil },
	}
	c, err := b.Register(f)
	require.NoError(t, err)
	assert.Equal(t, "N-1", c.Number())
	assert.Equal(t, "filled in init", c.Title())
}

func TestBaseCaseValidation(t *testing.T) {
	p := newTestProject(t)
	f := addFeature(t, p, "f")
	g := addFeature(t, p, "g")
	run := func(*BaseCase) (int, error) { return 0, nil }

	_, err := (&BaseCase{Number: "X", Title: "t", Run: run}).Register(nil)
	assert.ErrorIs(t, err, ErrNilFeature)

	_, err = (&BaseCase{Title: "no number", Run: run}).Register(f)
	assert.ErrorIs(t, err, ErrMissingCaseInfo)

	_, err = (&BaseCase{Number: "X"}).Register(f)
	assert.ErrorIs(t, err, ErrMissingCaseInfo)

	_, err = (&BaseCase{Number: "X", Title: "t"}).Register(f)
	assert.ErrorIs(t, err, ErrNilFunc)

	initErr := errors.New("fixture missing")
	_, err = (&BaseCase{Number: "X", Title: "t", Run: run,
		Init: func(*BaseCase) error { return initErr }}).Register(f)
	assert.ErrorIs(t, err, initErr)

	_, err = (&BaseCase{Number: "X", Title: "t", Run: run}).Register(f)
	require.NoError(t, err)
	_, err = (&BaseCase{Number: "X", Title: "again", Run: run}).Register(g)
	assert.ErrorIs(t, err, ErrDuplicateCaseNumber)
}

func TestBaseCaseDuplicateStep(t *testing.T) {
	b := &BaseCase{Number: "D", Title: "dup"}
	_, err := b.AddStepBox("step1: a", stepPass)
	require.NoError(t, err)
	_, err = b.AddStepBox("step1: b", stepPass)
	assert.ErrorIs(t, err, ErrDuplicateStep)
}
