package runner

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runflo/runflo/types"
)

func newTestLifecycle() *Lifecycle {
	return NewLifecycle(log.NewLogger(log.DiscardHandler()), nil, false)
}

// recorder builds hooks and bodies that append their name to a shared
// trace, so tests can assert on execution order.
type recorder struct {
	trace []string
}

func (r *recorder) hook(name string, err error) types.Hook {
	return func(ctx context.Context) error {
		r.trace = append(r.trace, name)
		return err
	}
}

func (r *recorder) body(name string, err error) types.Body {
	return func(ctx context.Context) error {
		r.trace = append(r.trace, name)
		return err
	}
}

func executeOne(t *testing.T, l *Lifecycle, ex *types.Executable) *types.Result {
	t.Helper()
	results := l.Execute(context.Background(), ex)
	require.Len(t, results, 1)
	return results[0]
}

func TestExecuteHappyPathOrder(t *testing.T) {
	rec := &recorder{}
	ex := &types.Executable{
		Spec:          "g.u",
		Group:         "g",
		GroupSetup:    []types.Hook{rec.hook("group-setup", nil)},
		UnitSetup:     []types.Hook{rec.hook("unit-setup", nil)},
		Body:          rec.body("body", nil),
		UnitTeardown:  []types.Hook{rec.hook("unit-teardown", nil)},
		GroupTeardown: []types.Hook{rec.hook("group-teardown", nil)},
	}

	res := executeOne(t, newTestLifecycle(), ex)

	assert.Equal(t, types.StatusOK, res.Status)
	assert.Empty(t, res.ErrMsg)
	assert.False(t, res.Synthetic())
	assert.Equal(t, []string{"group-setup", "unit-setup", "body", "unit-teardown", "group-teardown"}, rec.trace)
}

func TestExecuteGroupSetupFailureSuppressesGroupScope(t *testing.T) {
	rec := &recorder{}
	ex := &types.Executable{
		Spec:          "g.u",
		GroupSetup:    []types.Hook{rec.hook("group-setup", errors.New("refused"))},
		UnitSetup:     []types.Hook{rec.hook("unit-setup", nil)},
		Body:          rec.body("body", nil),
		UnitTeardown:  []types.Hook{rec.hook("unit-teardown", nil)},
		GroupTeardown: []types.Hook{rec.hook("group-teardown", nil)},
	}

	res := executeOne(t, newTestLifecycle(), ex)

	assert.Equal(t, types.StatusFail, res.Status)
	assert.Contains(t, res.ErrMsg, "refused")
	// only the failed setup and the group teardown ran
	assert.Equal(t, []string{"group-setup", "group-teardown"}, rec.trace)
}

func TestExecuteUnitSetupFailureSuppressesBodyAndUnitTeardown(t *testing.T) {
	rec := &recorder{}
	ex := &types.Executable{
		Spec:          "g.u",
		GroupSetup:    []types.Hook{rec.hook("group-setup", nil)},
		UnitSetup:     []types.Hook{rec.hook("unit-setup", errors.New("no fixture"))},
		Body:          rec.body("body", nil),
		UnitTeardown:  []types.Hook{rec.hook("unit-teardown", nil)},
		GroupTeardown: []types.Hook{rec.hook("group-teardown", nil)},
	}

	res := executeOne(t, newTestLifecycle(), ex)

	assert.Equal(t, types.StatusFail, res.Status)
	assert.Equal(t, []string{"group-setup", "unit-setup", "group-teardown"}, rec.trace)
}

func TestExecuteBodyFailureStillRunsTeardowns(t *testing.T) {
	rec := &recorder{}
	ex := &types.Executable{
		Spec:          "g.u",
		UnitSetup:     []types.Hook{rec.hook("unit-setup", nil)},
		Body:          rec.body("body", errors.New("assertion blew up")),
		UnitTeardown:  []types.Hook{rec.hook("unit-teardown", nil)},
		GroupTeardown: []types.Hook{rec.hook("group-teardown", nil)},
	}

	res := executeOne(t, newTestLifecycle(), ex)

	assert.Equal(t, types.StatusFail, res.Status)
	assert.Contains(t, res.ErrMsg, "assertion blew up")
	assert.Equal(t, []string{"unit-setup", "body", "unit-teardown", "group-teardown"}, rec.trace)
}

func TestExecuteTeardownFailureAfterCleanBody(t *testing.T) {
	rec := &recorder{}
	ex := &types.Executable{
		Spec:         "g.u",
		Body:         rec.body("body", nil),
		UnitTeardown: []types.Hook{rec.hook("unit-teardown", errors.New("leaked resource"))},
	}

	res := executeOne(t, newTestLifecycle(), ex)

	assert.Equal(t, types.StatusFail, res.Status)
	assert.Contains(t, res.ErrMsg, "leaked resource")
}

func TestExecuteSkip(t *testing.T) {
	rec := &recorder{}
	ex := &types.Executable{
		Spec:          "g.u",
		Body:          rec.body("body", types.Skip("missing optional dependency")),
		UnitTeardown:  []types.Hook{rec.hook("unit-teardown", nil)},
		GroupTeardown: []types.Hook{rec.hook("group-teardown", nil)},
	}

	res := executeOne(t, newTestLifecycle(), ex)

	assert.Equal(t, types.StatusSkip, res.Status)
	assert.Contains(t, res.ErrMsg, "missing optional dependency")
	// a skipped body does not suppress teardowns
	assert.Equal(t, []string{"body", "unit-teardown", "group-teardown"}, rec.trace)
}

func TestExecuteSkipInUnitSetup(t *testing.T) {
	rec := &recorder{}
	ex := &types.Executable{
		Spec:          "g.u",
		UnitSetup:     []types.Hook{rec.hook("unit-setup", types.Skip("environment not present"))},
		Body:          rec.body("body", nil),
		UnitTeardown:  []types.Hook{rec.hook("unit-teardown", nil)},
		GroupTeardown: []types.Hook{rec.hook("group-teardown", nil)},
	}

	res := executeOne(t, newTestLifecycle(), ex)

	assert.Equal(t, types.StatusSkip, res.Status)
	// a non-OK unit setup suppresses the body and the unit teardown
	assert.Equal(t, []string{"unit-setup", "group-teardown"}, rec.trace)
}

func TestExecutePanicInBody(t *testing.T) {
	ex := &types.Executable{
		Spec: "g.u",
		Body: func(ctx context.Context) error {
			panic("index out of range")
		},
	}

	res := executeOne(t, newTestLifecycle(), ex)

	assert.Equal(t, types.StatusFail, res.Status)
	assert.Contains(t, res.ErrMsg, "panic: index out of range")
	// trace included for debugging
	assert.Contains(t, res.ErrMsg, "goroutine")
}

func TestExecuteExpectedFail(t *testing.T) {
	t.Run("failure counts as OK", func(t *testing.T) {
		ex := &types.Executable{
			Spec:         "g.u",
			ExpectedFail: true,
			Body: func(ctx context.Context) error {
				return errors.New("known defect")
			},
		}
		res := executeOne(t, newTestLifecycle(), ex)
		assert.Equal(t, types.StatusOK, res.Status)
		assert.True(t, res.ExpectedFail)
	})

	t.Run("unexpected success is flagged", func(t *testing.T) {
		ex := &types.Executable{
			Spec:         "g.u",
			ExpectedFail: true,
			Body:         func(ctx context.Context) error { return nil },
		}
		res := executeOne(t, newTestLifecycle(), ex)
		assert.Equal(t, types.StatusOK, res.Status)
		assert.True(t, res.ExpectedFail)
	})

	t.Run("teardown failure still fails the unit", func(t *testing.T) {
		ex := &types.Executable{
			Spec:         "g.u",
			ExpectedFail: true,
			Body: func(ctx context.Context) error {
				return errors.New("known defect")
			},
			UnitTeardown: []types.Hook{func(ctx context.Context) error {
				return errors.New("teardown broke")
			}},
		}
		res := executeOne(t, newTestLifecycle(), ex)
		assert.Equal(t, types.StatusFail, res.Status)
	})
}

func TestExecuteResolveErr(t *testing.T) {
	ex := &types.Executable{
		Spec:       "g.missing",
		ResolveErr: "unknown unit",
	}
	res := executeOne(t, newTestLifecycle(), ex)

	assert.Equal(t, types.StatusFail, res.Status)
	assert.Equal(t, "unknown unit", res.ErrMsg)
	assert.True(t, res.Synthetic())
}

func TestExecuteNilExecutable(t *testing.T) {
	res := executeOne(t, newTestLifecycle(), nil)
	assert.Equal(t, types.StatusFail, res.Status)
	assert.True(t, res.Synthetic())
}

func TestExecuteSubCases(t *testing.T) {
	ex := &types.Executable{
		Spec: "g.table",
		SubCases: []types.SubCase{
			{Name: "first", Body: func(ctx context.Context) error { return nil }},
			{Name: "second", Body: func(ctx context.Context) error { return errors.New("bad case") }},
			{Name: "third", Body: func(ctx context.Context) error { return types.Skip("not here") }},
		},
	}

	results := newTestLifecycle().Execute(context.Background(), ex)
	require.Len(t, results, 3)

	// one child per sub-case, each with its own status
	assert.Equal(t, "[first]", results[0].SubMsg)
	assert.Equal(t, types.StatusOK, results[0].Status)

	assert.Equal(t, "[second]", results[1].SubMsg)
	assert.Equal(t, types.StatusFail, results[1].Status)
	assert.Contains(t, results[1].ErrMsg, "bad case")

	assert.Equal(t, "[third]", results[2].SubMsg)
	assert.Equal(t, types.StatusSkip, results[2].Status)

	// children share the parent's timing window
	assert.Equal(t, results[0].Start, results[1].Start)
	assert.Equal(t, results[0].End, results[2].End)
}

func TestExecuteSubCasesWithFailedHook(t *testing.T) {
	ex := &types.Executable{
		Spec: "g.table",
		SubCases: []types.SubCase{
			{Name: "only", Body: func(ctx context.Context) error { return nil }},
		},
		GroupTeardown: []types.Hook{func(ctx context.Context) error {
			return errors.New("teardown broke")
		}},
	}

	results := newTestLifecycle().Execute(context.Background(), ex)
	require.Len(t, results, 1)
	assert.Equal(t, types.StatusFail, results[0].Status)
	assert.Contains(t, results[0].ErrMsg, "teardown broke")
}

func TestExecuteHooksStopAtFirstFailure(t *testing.T) {
	rec := &recorder{}
	ex := &types.Executable{
		Spec: "g.u",
		UnitSetup: []types.Hook{
			rec.hook("setup-1", nil),
			rec.hook("setup-2", errors.New("broke")),
			rec.hook("setup-3", nil),
		},
		Body: rec.body("body", nil),
	}

	res := executeOne(t, newTestLifecycle(), ex)

	assert.Equal(t, types.StatusFail, res.Status)
	assert.Equal(t, []string{"setup-1", "setup-2"}, rec.trace)
}

func TestExecuteRecordsDeprecations(t *testing.T) {
	ex := &types.Executable{
		Spec: "g.u",
		Body: func(ctx context.Context) error {
			types.Deprecate(ctx, "old call", "unit.go", 42, "g.u")
			return nil
		},
	}

	res := executeOne(t, newTestLifecycle(), ex)

	require.Contains(t, res.Deprecations, "old call")
	assert.Len(t, res.Deprecations["old call"], 1)
}

type countingCoverage struct {
	begins, ends, persists int
}

func (c *countingCoverage) Begin()         { c.begins++ }
func (c *countingCoverage) End()           { c.ends++ }
func (c *countingCoverage) Persist() error { c.persists++; return nil }

func TestExecuteCoverageBracketsBody(t *testing.T) {
	cov := &countingCoverage{}
	l := NewLifecycle(log.NewLogger(log.DiscardHandler()), cov, false)

	ex := &types.Executable{
		Spec: "g.u",
		Body: func(ctx context.Context) error { return errors.New("boom") },
	}
	l.Execute(context.Background(), ex)

	assert.Equal(t, 1, cov.begins)
	assert.Equal(t, 1, cov.ends)

	// a suppressed body never touches the collaborator
	cov2 := &countingCoverage{}
	l2 := NewLifecycle(log.NewLogger(log.DiscardHandler()), cov2, false)
	l2.Execute(context.Background(), &types.Executable{
		Spec:      "g.v",
		UnitSetup: []types.Hook{func(ctx context.Context) error { return errors.New("no") }},
		Body:      func(ctx context.Context) error { return nil },
	})
	assert.Zero(t, cov2.begins)
	assert.Zero(t, cov2.ends)
}

func TestTryCall(t *testing.T) {
	ctx := context.Background()

	st, msg := tryCall(ctx, nil)
	assert.Equal(t, types.StatusOK, st)
	assert.Empty(t, msg)

	st, msg = tryCall(ctx, func(ctx context.Context) error { return nil })
	assert.Equal(t, types.StatusOK, st)
	assert.Empty(t, msg)

	st, msg = tryCall(ctx, func(ctx context.Context) error { return types.Skip("later") })
	assert.Equal(t, types.StatusSkip, st)
	assert.Contains(t, msg, "later")

	st, msg = tryCall(ctx, func(ctx context.Context) error { return fmt.Errorf("wrapped: %w", errors.New("inner")) })
	assert.Equal(t, types.StatusFail, st)
	assert.Contains(t, msg, "wrapped: inner")

	st, msg = tryCall(ctx, func(ctx context.Context) error { panic("kaboom") })
	assert.Equal(t, types.StatusFail, st)
	assert.Contains(t, msg, "panic: kaboom")
}
