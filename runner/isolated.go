package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/runflo/runflo/exitcodes"
	"github.com/runflo/runflo/types"
)

// runIsolated executes ex in a separate process. The child re-runs this
// binary's child subcommand for exactly one spec, exits with a code from
// the reserved three-value table and writes the structured side-channel
// payload to a result file passed on its command line. Any parent-side
// fault becomes a FAIL Result with a zero-length timing window.
func (r *Runner) runIsolated(ctx context.Context, ex *types.Executable) *types.Result {
	resultFile, err := os.CreateTemp("", "runflo-result-*.json")
	if err != nil {
		return types.NewSyntheticFailure(ex.Spec, fmt.Sprintf("creating side-channel file: %v", err))
	}
	resultPath := resultFile.Name()
	resultFile.Close()
	defer os.Remove(resultPath)

	timeout := r.unitTimeout(ex)
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	argv := append(append([]string{}, r.childCmd...),
		"--spec", ex.Spec.String(),
		"--result-file", resultPath,
	)
	if r.cfg.Overrides != "" {
		argv = append(argv, "--overrides", r.cfg.Overrides)
	}
	if r.cfg.Debug {
		argv = append(argv, "--debug")
	}

	cmd := exec.CommandContext(cctx, argv[0], argv[1:]...)
	stderr := newTailBuffer(0)
	cmd.Stderr = stderr
	if r.cfg.Debug {
		cmd.Stdout = os.Stdout
	} else {
		cmd.Stdout = io.Discard
	}

	r.log.Debug("Running isolated unit", "spec", ex.Spec, "command", cmd.String(), "timeout", timeout)

	start := time.Now()
	runErr := cmd.Run()
	end := time.Now()

	if cctx.Err() == context.DeadlineExceeded {
		return &types.Result{
			Spec:         ex.Spec,
			Status:       types.StatusFail,
			ErrMsg:       fmt.Sprintf("timed out after %v\n%s", timeout, stderr.String()),
			Start:        start,
			End:          end,
			NProcs:       ex.NProcs,
			Isolation:    types.IsolationSubprocess,
			ExpectedFail: ex.ExpectedFail,
		}
	}

	var exitErr *exec.ExitError
	if runErr != nil && !errors.As(runErr, &exitErr) {
		// spawn fault: the child never ran
		return types.NewSyntheticFailure(ex.Spec, fmt.Sprintf("spawning child: %v", runErr))
	}

	status := exitcodes.StatusForCode(cmd.ProcessState.ExitCode())

	errMsg := stderr.String()
	var usage types.ResourceUsage
	if payload, ok := readPayload(resultPath); ok {
		usage = payload.Usage()
		if payload.ErrMsg != "" {
			errMsg = payload.ErrMsg
		}
	}

	return &types.Result{
		Spec:         ex.Spec,
		Status:       status,
		ErrMsg:       errMsg,
		Start:        start,
		End:          end,
		NProcs:       ex.NProcs,
		Isolation:    types.IsolationSubprocess,
		ExpectedFail: ex.ExpectedFail,
		Usage:        usage,
	}
}
