package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/runflo/runflo/types"
)

// Lifecycle runs one Executable to completion in the current process. It
// owns the fixture ordering rules, output capture, the coverage
// collaborator calls and the conversion of every possible fault into a
// well-formed Result. Execute never panics and never returns an error: one
// bad unit must not be able to halt the scheduler.
type Lifecycle struct {
	log   log.Logger
	cov   Coverage
	debug bool // pass unit stdout through instead of discarding it
}

// NewLifecycle creates a Lifecycle. A nil coverage collaborator defaults
// to NopCoverage.
func NewLifecycle(logger log.Logger, cov Coverage, debug bool) *Lifecycle {
	if logger == nil {
		logger = log.New()
	}
	if cov == nil {
		cov = NopCoverage{}
	}
	return &Lifecycle{
		log:   logger.New("component", "lifecycle"),
		cov:   cov,
		debug: debug,
	}
}

// Execute runs ex and returns its results: a single Result normally, one
// child Result per sub-case when the unit expands into subtests.
func (l *Lifecycle) Execute(ctx context.Context, ex *types.Executable) (results []*types.Result) {
	if ex == nil {
		return []*types.Result{types.NewSyntheticFailure("", "nil executable")}
	}
	if ex.ResolveErr != "" {
		// resolution already failed; no fixture hooks run
		return []*types.Result{types.NewSyntheticFailure(ex.Spec, ex.ResolveErr)}
	}

	cap := newCapture(l.debug)
	deps := make(types.Deprecations)
	ctx = withCapture(ctx, cap)
	ctx = types.WithDeprecations(ctx, deps)

	result := &types.Result{
		Spec:         ex.Spec,
		Status:       types.StatusOK,
		Start:        time.Now(),
		NProcs:       ex.NProcs,
		Isolation:    types.IsolationInProcess,
		Deprecations: deps,
	}

	// Outermost boundary: any fault not handled by the per-hook logic
	// below becomes a FAIL Result with a full trace. The per-unit capture
	// is context scoped, so there is no global stream state to restore.
	defer func() {
		if rec := recover(); rec != nil {
			fmt.Fprintf(cap.err, "lifecycle panic: %v\n%s", rec, debug.Stack())
			result.Status = types.StatusFail
			l.finish(result, cap)
			results = []*types.Result{result}
		}
	}()

	tracker := types.NewFixtureTracker()
	status := types.StatusOK
	hookStatus := types.StatusOK

	// group-scope setup
	st := l.runHooks(ctx, ex.GroupSetup)
	tracker.GroupSetupFinished(st == types.StatusOK)
	hookStatus = hookStatus.Combine(st)

	// unit-scope setup
	if tracker.ShouldRunUnitSetup() {
		st = l.runHooks(ctx, ex.UnitSetup)
		tracker.UnitSetupFinished(st == types.StatusOK)
		hookStatus = hookStatus.Combine(st)
	} else {
		tracker.SkipUnitSetup()
	}
	status = status.Combine(hookStatus)

	// unit body
	var subStatuses []types.Status
	var subErrs []string
	if tracker.ShouldRunBody() {
		l.cov.Begin()
		if len(ex.SubCases) > 0 {
			bodyStatus := types.StatusOK
			for _, sc := range ex.SubCases {
				scStatus, scErr := tryCall(ctx, sc.Body)
				subStatuses = append(subStatuses, scStatus)
				subErrs = append(subErrs, scErr)
				bodyStatus = bodyStatus.Combine(scStatus)
			}
			status = status.Combine(l.applyExpectedFail(ex, bodyStatus, result))
		} else {
			bodyStatus, bodyErr := tryCall(ctx, ex.Body)
			if bodyErr != "" {
				fmt.Fprint(cap.err, bodyErr)
			}
			status = status.Combine(l.applyExpectedFail(ex, bodyStatus, result))
		}
		l.cov.End()
		tracker.BodyFinished()
	} else {
		tracker.SkipBody()
	}

	// unit-scope teardown runs only when unit setup succeeded; a teardown
	// failure after a clean body takes over the final status
	if tracker.ShouldRunUnitTeardown() {
		st = l.runHooks(ctx, ex.UnitTeardown)
		tracker.UnitTeardownFinished()
		hookStatus = hookStatus.Combine(st)
		status = status.Combine(st)
	} else {
		tracker.SkipUnitTeardown()
	}

	// group-scope teardown is always attempted
	if tracker.ShouldRunGroupTeardown() {
		st = l.runHooks(ctx, ex.GroupTeardown)
		tracker.GroupTeardownFinished()
		hookStatus = hookStatus.Combine(st)
		status = status.Combine(st)
	}

	result.Status = status
	l.finish(result, cap)

	if len(ex.SubCases) > 0 && tracker.Done() && len(subStatuses) > 0 {
		return l.expandSubCases(ex, result, hookStatus, subStatuses, subErrs)
	}
	return []*types.Result{result}
}

// applyExpectedFail maps the body outcome of an expected-to-fail unit: a
// failure counts as OK, and an unexpected success is still OK but flagged.
func (l *Lifecycle) applyExpectedFail(ex *types.Executable, bodyStatus types.Status, result *types.Result) types.Status {
	if !ex.ExpectedFail {
		return bodyStatus
	}
	result.ExpectedFail = true
	if bodyStatus == types.StatusFail {
		return types.StatusOK
	}
	return bodyStatus
}

// finish stamps the end time and resource sample. Synthetic results keep
// their equal timestamps; everything else gets End >= Start.
func (l *Lifecycle) finish(result *types.Result, cap *capture) {
	result.End = time.Now()
	if result.End.Before(result.Start) {
		result.End = result.Start
	}
	result.Usage = sampleUsage()
	result.ErrMsg = cap.err.String()
	if cap.err.Truncated() {
		result.ErrMsg = "[diagnostics truncated]\n" + result.ErrMsg
	}
}

// expandSubCases synthesizes one child Result per sub-case. Children share
// the parent's timing window and captured error prefix; each carries its
// own body outcome combined with the fixture hook outcome.
func (l *Lifecycle) expandSubCases(ex *types.Executable, parent *types.Result, hookStatus types.Status, subStatuses []types.Status, subErrs []string) []*types.Result {
	prefix := parent.ErrMsg
	if prefix != "" {
		prefix += "\n"
	}
	children := make([]*types.Result, 0, len(ex.SubCases))
	for i, sc := range ex.SubCases {
		st := subStatuses[i]
		if ex.ExpectedFail && st == types.StatusFail {
			st = types.StatusOK
		}
		children = append(children, &types.Result{
			Spec:         parent.Spec,
			SubMsg:       fmt.Sprintf("[%s]", sc.Name),
			Status:       hookStatus.Combine(st),
			ErrMsg:       prefix + subErrs[i],
			Start:        parent.Start,
			End:          parent.End,
			NProcs:       parent.NProcs,
			Isolation:    parent.Isolation,
			ExpectedFail: parent.ExpectedFail,
			Usage:        parent.Usage,
			Deprecations: parent.Deprecations,
		})
	}
	return children
}

// runHooks calls hooks in order, stopping at the first one that does not
// return OK.
func (l *Lifecycle) runHooks(ctx context.Context, hooks []types.Hook) types.Status {
	for _, h := range hooks {
		st, errText := tryCall(ctx, types.Body(h))
		if errText != "" {
			fmt.Fprint(Diagnostics(ctx), errText)
		}
		if st != types.StatusOK {
			return st
		}
	}
	return types.StatusOK
}

// tryCall invokes one callable and classifies the outcome: a skip signal
// yields SKIP with its message, a panic or returned error yields FAIL with
// a diagnostic trace, anything else is OK. tryCall never panics.
func tryCall(ctx context.Context, fn types.Body) (status types.Status, errText string) {
	if fn == nil {
		return types.StatusOK, ""
	}
	defer func() {
		if rec := recover(); rec != nil {
			status = types.StatusFail
			errText = fmt.Sprintf("panic: %v\n%s", rec, debug.Stack())
		}
	}()

	err := fn(ctx)
	switch {
	case err == nil:
		return types.StatusOK, ""
	case errors.Is(err, types.ErrSkip):
		return types.StatusSkip, err.Error()
	default:
		return types.StatusFail, err.Error() + "\n"
	}
}
