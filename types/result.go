package types

import (
	"fmt"
	"time"
)

// Status represents the outcome of running one test unit.
type Status string

const (
	StatusOK   Status = "OK"
	StatusSkip Status = "SKIP"
	StatusFail Status = "FAIL"
)

// severity orders statuses for combining outcomes from multiple phases
// (body, teardowns) or multiple cooperating processes. FAIL dominates,
// then SKIP, then OK.
func (s Status) severity() int {
	switch s {
	case StatusFail:
		return 2
	case StatusSkip:
		return 1
	default:
		return 0
	}
}

// Combine returns the more severe of the two statuses.
func (s Status) Combine(other Status) Status {
	if other.severity() > s.severity() {
		return other
	}
	return s
}

// Valid reports whether s is one of the three enumerated statuses.
func (s Status) Valid() bool {
	return s == StatusOK || s == StatusSkip || s == StatusFail
}

// IsolationMode identifies the tier a result was produced under.
type IsolationMode string

const (
	IsolationInProcess  IsolationMode = "in-process"
	IsolationSubprocess IsolationMode = "subprocess"
	IsolationMPI        IsolationMode = "mpi"
)

// ResourceUsage is a sample of process resource consumption taken when a
// unit finishes.
type ResourceUsage struct {
	MaxRSSMB float64    `json:"max_rss_mb"`
	Load     [3]float64 `json:"load"`
}

// Result is the record of one unit's execution. It is the only type that
// crosses component boundaries: lifecycle, isolation tiers, the worker pool
// and every pipeline stage all produce or consume Results. Once a producer
// has yielded a Result downstream it must not mutate it.
type Result struct {
	Spec      Spec
	Status    Status
	ErrMsg    string
	Start     time.Time
	End       time.Time
	NProcs    int
	Isolation IsolationMode

	// ExpectedFail is set when a unit marked expected-to-fail either failed
	// (treated as OK) or unexpectedly succeeded.
	ExpectedFail bool

	// SubMsg distinguishes children produced by subtest expansion.
	SubMsg string

	// Children holds per-sub-case results when the unit expanded into
	// subtests. Children share the parent's timing window.
	Children []*Result

	Usage        ResourceUsage
	Deprecations Deprecations
}

// NewSyntheticFailure builds a FAIL result for a unit that never ran,
// e.g. a resolution error or a parent-side spawn fault. Both timestamps are
// equal, which marks the result as "failed before run".
func NewSyntheticFailure(spec Spec, errMsg string) *Result {
	now := time.Now()
	return &Result{
		Spec:   spec,
		Status: StatusFail,
		ErrMsg: errMsg,
		Start:  now,
		End:    now,
	}
}

// Synthetic reports whether this result was synthesized before execution
// began.
func (r *Result) Synthetic() bool {
	return r.Start.Equal(r.End)
}

// Elapsed returns the wall-clock duration of the unit.
func (r *Result) Elapsed() time.Duration {
	return r.End.Sub(r.Start)
}

func (r *Result) String() string {
	if r.SubMsg != "" {
		return fmt.Sprintf("%s: %s %s\n%s", r.Spec, r.SubMsg, r.Status, r.ErrMsg)
	}
	if r.ErrMsg != "" {
		return fmt.Sprintf("%s: %s\n%s", r.Spec, r.Status, r.ErrMsg)
	}
	return fmt.Sprintf("%s: %s", r.Spec, r.Status)
}
