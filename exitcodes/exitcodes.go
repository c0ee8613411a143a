// Package exitcodes defines the exit codes used by runflo.
package exitcodes

import "github.com/runflo/runflo/types"

// Process-level exit codes for the runflo binary itself:
//
// * Success (0): every unit passed
// * TestFailure (1): one or more units failed
// * RuntimeErr (2): runtime errors such as panics, bad configuration or
//   an inability to start any workers
const (
	Success     = 0
	TestFailure = 1
	RuntimeErr  = 2
)

// Child-tier exit codes. A child process running exactly one unit exits
// with one of these three reserved codes; the parent maps anything else to
// FAIL. The nonzero values are deliberately far away from the small codes
// shells and runtimes use for their own failures.
const (
	ChildOK   = 0
	ChildSkip = 42
	ChildFail = 43
)

// ForStatus returns the child exit code for a status.
func ForStatus(s types.Status) int {
	switch s {
	case types.StatusOK:
		return ChildOK
	case types.StatusSkip:
		return ChildSkip
	default:
		return ChildFail
	}
}

// StatusForCode maps a child exit code back to a status. Codes outside the
// reserved set are treated as FAIL.
func StatusForCode(code int) types.Status {
	switch code {
	case ChildOK:
		return types.StatusOK
	case ChildSkip:
		return types.StatusSkip
	default:
		return types.StatusFail
	}
}
