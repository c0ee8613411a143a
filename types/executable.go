package types

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Hook is a setup or teardown callable scoped to a group or a single unit.
type Hook func(ctx context.Context) error

// Body is the entry point of a single unit.
type Body func(ctx context.Context) error

// SubCase is one named case of a grouped unit. A grouped unit expands into
// one child Result per sub-case.
type SubCase struct {
	Name string
	Body Body
}

// Executable is the resolved, runnable representation of a Spec.
type Executable struct {
	Spec  Spec
	Group string

	// Exactly one of Body and SubCases is set: a plain function unit has a
	// Body, a grouped unit expands into its SubCases.
	Body     Body
	SubCases []SubCase

	// NProcs is the required cooperating-process count; 0 means default
	// single-process execution.
	NProcs int

	// Isolated forces out-of-process execution even when NProcs is 0.
	Isolated bool

	// ExpectedFail marks a unit whose failure is treated as OK.
	ExpectedFail bool

	// Timeout bounds wall-clock time in the subprocess and distributed
	// tiers; 0 falls back to the engine default. In-process execution is
	// never forcibly timed out.
	Timeout time.Duration

	GroupSetup    []Hook
	GroupTeardown []Hook
	UnitSetup     []Hook
	UnitTeardown  []Hook

	// ResolveErr carries a resolution failure discovered before execution.
	// The lifecycle turns it into a synthesized FAIL without running any
	// fixture hooks.
	ResolveErr string
}

// ErrSkip signals that a unit elected to skip itself. Wrap it with Skip so
// the message survives into the result's error text.
var ErrSkip = errors.New("skipped")

// Skip returns an error that downgrades the unit's status to SKIP,
// preserving msg as diagnostic text.
func Skip(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrSkip}, args...)...)
}
