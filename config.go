package runflo

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/runflo/runflo/flags"
)

// Config holds the engine configuration.
type Config struct {
	TestFile           string        // Replay list used as the spec source; empty runs the whole registry
	Overrides          string        // YAML per-spec overrides file
	Concurrency        int           // Worker count; 1 degenerates to sequential execution
	Isolated           bool          // Force the subprocess tier for every unit
	NoMPI              bool          // Disable the distributed tier
	Stop               bool          // Stop admitting new work after the first failure
	Verbose            bool          // One line per result instead of progress dots
	NoCapture          bool          // Pass unit stdout through
	Timeout            time.Duration // Default per-unit timeout in out-of-process tiers
	MaxTime            time.Duration // Quick-list threshold; 0 disables the stage
	QuickFile          string        // Quick-list output path
	FailFile           string        // Fail-list output path; empty disables the stage
	ReportFile         string        // Verbose report path; empty disables the report
	Benchmark          string        // CSV benchmark output path; empty disables the stage
	Durations          int           // Long-test report entry count; 0 disables the stage
	DurationsMin       time.Duration // Long-test report minimum duration
	DeprecationsReport string        // Deprecations report path; empty disables the stage
	DryRun             bool          // List specs without executing them
	RunInterval        time.Duration // Interval between runs; 0 means run once
	RunOnce            bool
	MetricsAddr        string // Health/metrics listen address; empty disables the server
	Log                log.Logger
}

// NewConfig creates a Config from the cli context.
func NewConfig(ctx *cli.Context, logger log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)

	return &Config{
		TestFile:           ctx.String(flags.TestFile.Name),
		Overrides:          ctx.String(flags.Overrides.Name),
		Concurrency:        ctx.Int(flags.Concurrency.Name),
		Isolated:           ctx.Bool(flags.Isolated.Name),
		NoMPI:              ctx.Bool(flags.NoMPI.Name),
		Stop:               ctx.Bool(flags.Stop.Name),
		Verbose:            ctx.Bool(flags.Verbose.Name),
		NoCapture:          ctx.Bool(flags.NoCapture.Name),
		Timeout:            ctx.Duration(flags.Timeout.Name),
		MaxTime:            ctx.Duration(flags.MaxTime.Name),
		QuickFile:          ctx.String(flags.QuickFile.Name),
		FailFile:           ctx.String(flags.FailFile.Name),
		ReportFile:         ctx.String(flags.ReportFile.Name),
		Benchmark:          ctx.String(flags.Benchmark.Name),
		Durations:          ctx.Int(flags.Durations.Name),
		DurationsMin:       ctx.Duration(flags.DurationsMin.Name),
		DeprecationsReport: ctx.String(flags.DeprecationsReport.Name),
		DryRun:             ctx.Bool(flags.DryRun.Name),
		RunInterval:        runInterval,
		RunOnce:            runInterval == 0,
		MetricsAddr:        ctx.String(flags.MetricsAddr.Name),
		Log:                logger,
	}, nil
}
