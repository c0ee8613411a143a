// Package runner contains the execution engine: the single-unit lifecycle,
// the three isolation tiers and the bounded worker pool that streams
// results back in completion order.
package runner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/runflo/runflo/types"
)

// Resolver converts a specification string into a runnable unit. Faults
// are returned as error values; implementations must never panic past this
// boundary.
type Resolver interface {
	Resolve(spec types.Spec) (*types.Executable, error)
}

// Config holds runner construction options.
type Config struct {
	Log      log.Logger
	Resolver Resolver
	Coverage Coverage

	// Debug passes unit stdout through instead of discarding it.
	Debug bool

	// Overrides is the path of the per-spec overrides file, forwarded on
	// the child command line so out-of-process units resolve the same
	// adjusted registry entries as the parent.
	Overrides string

	// DefaultTimeout bounds each unit's wall-clock time in the subprocess
	// and distributed tiers when the unit carries no timeout of its own.
	DefaultTimeout time.Duration

	// ForceIsolated routes every unit through the subprocess tier.
	ForceIsolated bool

	// NoMPI disables the distributed tier; units requiring cooperating
	// processes fall back to subprocess isolation.
	NoMPI bool

	// MPIRun is the multi-process launcher executable. Empty means
	// autodetect mpirun, then mpiexec, on PATH.
	MPIRun string

	// ChildCommand is the argv prefix used to re-invoke this binary in
	// single-unit child mode. Empty defaults to the current executable
	// plus the standard child subcommand.
	ChildCommand []string
}

const defaultUnitTimeout = 10 * time.Minute

// ChildSubcommand is the hidden CLI command name used for out-of-process
// execution of a single unit.
const ChildSubcommand = "run-child"

// Runner resolves specs and executes them under the appropriate isolation
// tier. All three tiers produce the same Result contract.
type Runner struct {
	log       log.Logger
	resolver  Resolver
	lifecycle *Lifecycle
	cfg       Config
	mpirun    string
	childCmd  []string
	tracer    trace.Tracer
}

// New creates a Runner.
func New(cfg Config) (*Runner, error) {
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = defaultUnitTimeout
	}

	mpirun := cfg.MPIRun
	if mpirun == "" && !cfg.NoMPI {
		for _, candidate := range []string{"mpirun", "mpiexec"} {
			if path, err := exec.LookPath(candidate); err == nil {
				mpirun = path
				break
			}
		}
	}

	childCmd := cfg.ChildCommand
	if len(childCmd) == 0 {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locating own executable for child mode: %w", err)
		}
		childCmd = []string{self, ChildSubcommand}
	}

	return &Runner{
		log:       cfg.Log.New("component", "runner"),
		resolver:  cfg.Resolver,
		lifecycle: NewLifecycle(cfg.Log, cfg.Coverage, cfg.Debug),
		cfg:       cfg,
		mpirun:    mpirun,
		childCmd:  childCmd,
		tracer:    otel.Tracer("runflo/runner"),
	}, nil
}

// MPIAvailable reports whether the distributed tier can be used.
func (r *Runner) MPIAvailable() bool {
	return r.mpirun != "" && !r.cfg.NoMPI
}

// RunOne resolves and executes one spec under the tier its Executable
// requires. It always returns at least one Result and never panics.
func (r *Runner) RunOne(ctx context.Context, spec types.Spec) (results []*types.Result) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("Panic while running spec", "spec", spec, "panic", rec)
			results = []*types.Result{types.NewSyntheticFailure(spec, fmt.Sprintf("runner panic: %v", rec))}
		}
	}()

	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("unit %s", spec))
	defer span.End()

	ex, err := r.resolver.Resolve(spec)
	if err != nil {
		r.log.Debug("Resolution failed", "spec", spec, "err", err)
		return []*types.Result{types.NewSyntheticFailure(spec, err.Error())}
	}

	switch {
	case ex.NProcs > 0 && r.MPIAvailable():
		return []*types.Result{r.runMPI(ctx, ex)}
	case ex.NProcs > 0, ex.Isolated, r.cfg.ForceIsolated:
		return []*types.Result{r.runIsolated(ctx, ex)}
	default:
		return r.lifecycle.Execute(ctx, ex)
	}
}

// persistCoverage flushes the instrumentation collaborator's data. Each
// pool worker calls it once when it stops accepting work.
func (r *Runner) persistCoverage() {
	if r.cfg.Coverage == nil {
		return
	}
	if err := r.cfg.Coverage.Persist(); err != nil {
		r.log.Warn("Persisting coverage", "err", err)
	}
}

// unitTimeout returns the wall-clock bound for one unit in an
// out-of-process tier.
func (r *Runner) unitTimeout(ex *types.Executable) time.Duration {
	if ex.Timeout > 0 {
		return ex.Timeout
	}
	return r.cfg.DefaultTimeout
}
