package saga

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct{ calls []string }

func (r *recorder) step(name string, actionErr, compErr error) Step {
	return Step{
		Name: name,
		Action: func(context.Context) error {
			r.calls = append(r.calls, "do:"+name)
			return actionErr
		},
		Compensate: func(context.Context) error {
			r.calls = append(r.calls, "undo:"+name)
			return compErr
		},
	}
}

func TestExecute_AllStepsSucceed(t *testing.T) {
	rec := &recorder{}

	err := New("test", rec.step("a", nil, nil), rec.step("b", nil, nil)).Execute(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"do:a", "do:b"}, rec.calls)
}

func TestExecute_UnwindsInReverseOrder(t *testing.T) {
	// Arrange
	rec := &recorder{}
	boom := errors.New("out of stock")
	s := New("test").Add(rec.step("a", nil, nil), rec.step("b", nil, nil), rec.step("c", boom, nil), rec.step("d", nil, nil))

	// Act
	err := s.Execute(context.Background())

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "c", execErr.Step)
	assert.Equal(t, []string{"b", "a"}, execErr.Compensated)
	assert.Equal(t, []string{"do:a", "do:b", "do:c", "undo:b", "undo:a"}, rec.calls, "failed step is not compensated and later steps never run")
}

func TestExecute_CompensationFailureDoesNotStopUnwind(t *testing.T) {
	rec := &recorder{}
	releaseErr := errors.New("inventory unreachable")
	s := New("test", rec.step("a", nil, nil), rec.step("b", nil, releaseErr), rec.step("c", errors.New("fail"), nil))

	err := s.Execute(context.Background())

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, []string{"do:a", "do:b", "do:c", "undo:b", "undo:a"}, rec.calls)
	assert.Equal(t, []string{"a"}, execErr.Compensated)
	assert.Equal(t, releaseErr, execErr.CompensationErrs["b"])
}

func TestExecute_CompensationRunsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var compCtxErr error
	s := New("test",
		Step{
			Name:       "reserve",
			Action:     func(context.Context) error { return nil },
			Compensate: func(c context.Context) error { compCtxErr = c.Err(); return nil },
		},
		Step{
			Name:   "persist",
			Action: func(context.Context) error { cancel(); return context.Canceled },
		},
	)

	err := s.Execute(ctx)

	assert.True(t, errors.Is(err, context.Canceled))
	assert.NoError(t, compCtxErr)
}

func TestExecute_PanickingCompensationIsContained(t *testing.T) {
	rec := &recorder{}
	s := New("test",
		rec.step("a", nil, nil),
		Step{Name: "b", Action: func(context.Context) error { return nil }, Compensate: func(context.Context) error { panic("boom") }},
		rec.step("c", errors.New("fail"), nil),
	)

	err := s.Execute(context.Background())

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Contains(t, execErr.CompensationErrs, "b")
	assert.Equal(t, []string{"a"}, execErr.Compensated)
}
