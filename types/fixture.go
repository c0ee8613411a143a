package types

import "fmt"

// FixtureState tracks progress through the fixture sequence of one
// Executable. Transitions are strictly monotonic; failures are recorded as
// explicit skip transitions rather than ad hoc booleans so the failure-path
// rules stay independently testable.
type FixtureState int

const (
	FixtureNotStarted FixtureState = iota
	FixtureGroupSetupDone
	FixtureUnitSetupDone
	FixtureBodyDone
	FixtureUnitTeardownDone
	FixtureGroupTeardownDone
)

func (s FixtureState) String() string {
	switch s {
	case FixtureNotStarted:
		return "not-started"
	case FixtureGroupSetupDone:
		return "group-setup-done"
	case FixtureUnitSetupDone:
		return "unit-setup-done"
	case FixtureBodyDone:
		return "body-done"
	case FixtureUnitTeardownDone:
		return "unit-teardown-done"
	case FixtureGroupTeardownDone:
		return "group-teardown-done"
	}
	return fmt.Sprintf("FixtureState(%d)", int(s))
}

// FixtureTracker is the per-Executable state machine:
//
//	NotStarted → GroupSetupDone → UnitSetupDone → BodyDone
//	           → UnitTeardownDone → GroupTeardownDone
//
// with skip transitions on failure. The guards encode the ordering rules:
// a failed group setup suppresses the unit body and the unit teardown, a
// failed unit setup suppresses the body but the enclosing group teardown is
// always attempted.
type FixtureTracker struct {
	state        FixtureState
	groupSetupOK bool
	unitSetupOK  bool
}

func NewFixtureTracker() *FixtureTracker {
	return &FixtureTracker{state: FixtureNotStarted}
}

func (t *FixtureTracker) State() FixtureState { return t.state }

func (t *FixtureTracker) advance(to FixtureState) {
	if to != t.state+1 {
		panic(fmt.Sprintf("fixture transition %s -> %s", t.state, to))
	}
	t.state = to
}

// GroupSetupFinished records the outcome of the group-scope setup hooks.
func (t *FixtureTracker) GroupSetupFinished(ok bool) {
	t.advance(FixtureGroupSetupDone)
	t.groupSetupOK = ok
}

// ShouldRunUnitSetup reports whether the unit-scope setup may run.
func (t *FixtureTracker) ShouldRunUnitSetup() bool {
	return t.state == FixtureGroupSetupDone && t.groupSetupOK
}

// UnitSetupFinished records the outcome of the unit-scope setup hooks.
func (t *FixtureTracker) UnitSetupFinished(ok bool) {
	t.advance(FixtureUnitSetupDone)
	t.unitSetupOK = ok
}

// SkipUnitSetup records that unit setup was suppressed by a group setup
// failure.
func (t *FixtureTracker) SkipUnitSetup() {
	t.advance(FixtureUnitSetupDone)
	t.unitSetupOK = false
}

// ShouldRunBody reports whether the unit body may run. Both setups must
// have succeeded.
func (t *FixtureTracker) ShouldRunBody() bool {
	return t.state == FixtureUnitSetupDone && t.groupSetupOK && t.unitSetupOK
}

func (t *FixtureTracker) BodyFinished() { t.advance(FixtureBodyDone) }

// SkipBody records that the body was suppressed by a setup failure.
func (t *FixtureTracker) SkipBody() { t.advance(FixtureBodyDone) }

// ShouldRunUnitTeardown reports whether the unit-scope teardown may run.
// It runs only when the unit-scope setup succeeded, regardless of the body
// outcome.
func (t *FixtureTracker) ShouldRunUnitTeardown() bool {
	return t.state == FixtureBodyDone && t.unitSetupOK
}

func (t *FixtureTracker) UnitTeardownFinished() { t.advance(FixtureUnitTeardownDone) }

// SkipUnitTeardown records that unit teardown was suppressed.
func (t *FixtureTracker) SkipUnitTeardown() { t.advance(FixtureUnitTeardownDone) }

// ShouldRunGroupTeardown reports whether the group-scope teardown may run.
// Group teardown is always attempted, independent of every earlier outcome.
func (t *FixtureTracker) ShouldRunGroupTeardown() bool {
	return t.state == FixtureUnitTeardownDone
}

func (t *FixtureTracker) GroupTeardownFinished() { t.advance(FixtureGroupTeardownDone) }

// Done reports whether the sequence ran to completion.
func (t *FixtureTracker) Done() bool { return t.state == FixtureGroupTeardownDone }
