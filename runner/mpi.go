package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/runflo/runflo/exitcodes"
	"github.com/runflo/runflo/types"
)

// runMPI executes ex as a fixed-size group of cooperating processes via
// the external multi-process launcher. Every rank runs the unit and
// reports its serialized result to a TCP collector whose address travels
// on the child command line; the parent consolidates exactly one Result
// regardless of group size. A missing launcher is a configuration error
// converted to a FAIL Result, not a crash.
func (r *Runner) runMPI(ctx context.Context, ex *types.Executable) *types.Result {
	if !r.MPIAvailable() {
		return types.NewSyntheticFailure(ex.Spec,
			"mpirun or mpiexec was not found on PATH; cannot run multi-process unit")
	}

	col, err := newCollector()
	if err != nil {
		return types.NewSyntheticFailure(ex.Spec, fmt.Sprintf("starting result collector: %v", err))
	}
	defer col.Close()

	timeout := r.unitTimeout(ex)
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	argv := []string{r.mpirun, "-n", strconv.Itoa(ex.NProcs)}
	argv = append(argv, r.childCmd...)
	argv = append(argv,
		"--spec", ex.Spec.String(),
		"--collect", col.Addr(),
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

	r.log.Debug("Running distributed unit", "spec", ex.Spec, "nprocs", ex.NProcs,
		"launcher", r.mpirun, "collector", col.Addr(), "timeout", timeout)

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
			Isolation:    types.IsolationMPI,
			ExpectedFail: ex.ExpectedFail,
		}
	}

	var exitErr *exec.ExitError
	if runErr != nil && !errors.As(runErr, &exitErr) {
		return types.NewSyntheticFailure(ex.Spec, fmt.Sprintf("spawning %s: %v", r.mpirun, runErr))
	}

	reports := col.Drain()

	result := &types.Result{
		Spec:         ex.Spec,
		Start:        start,
		End:          end,
		NProcs:       ex.NProcs,
		Isolation:    types.IsolationMPI,
		ExpectedFail: ex.ExpectedFail,
	}

	if len(reports) == 0 {
		// no rank reported; fall back to the launcher's exit code
		result.Status = exitcodes.StatusForCode(cmd.ProcessState.ExitCode())
		result.ErrMsg = stderr.String()
		return result
	}

	// worst rank status wins, memory is summed across the group, and the
	// first failing rank contributes the error text
	result.Status = types.StatusOK
	for _, rep := range reports {
		result.Usage.MaxRSSMB += rep.Payload.Usage().MaxRSSMB
		if rep.Status != types.StatusOK && result.ErrMsg == "" {
			result.ErrMsg = rep.Payload.ErrMsg
		}
		result.Status = result.Status.Combine(rep.Status)
	}
	if result.Status == types.StatusFail && result.ErrMsg == "" {
		result.ErrMsg = stderr.String()
	}
	return result
}

// collector receives one serialized result per cooperating process over a
// loopback TCP listener.
type collector struct {
	ln net.Listener

	mu      sync.Mutex
	reports []rankReport
	wg      sync.WaitGroup
	closed  bool
}

func newCollector() (*collector, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	c := &collector{ln: ln}
	c.wg.Add(1)
	go c.accept()
	return c, nil
}

func (c *collector) Addr() string { return c.ln.Addr().String() }

func (c *collector) accept() {
	defer c.wg.Done()
	for {
		conn, err := c.ln.Accept()
		if err != nil {
			return // listener closed
		}
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			defer conn.Close()
			conn.SetReadDeadline(time.Now().Add(30 * time.Second))
			var rep rankReport
			if err := json.NewDecoder(conn).Decode(&rep); err != nil {
				return // malformed report is "no extra data"
			}
			c.mu.Lock()
			c.reports = append(c.reports, rep)
			c.mu.Unlock()
		}()
	}
}

// Drain stops accepting and returns everything received so far.
func (c *collector) Drain() []rankReport {
	c.Close()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]rankReport, len(c.reports))
	copy(out, c.reports)
	return out
}

func (c *collector) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	c.ln.Close()
	c.wg.Wait()
}
