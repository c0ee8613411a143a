package flags

import (
	"fmt"
	"runtime"
	"time"

	"github.com/urfave/cli/v2"
)

const EnvVarPrefix = "RUNFLO"

func prefixEnvVars(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	TestFile = &cli.StringFlag{
		Name:    "testfile",
		Value:   "",
		EnvVars: prefixEnvVars("TESTFILE"),
		Usage:   "Replay list to use as the test source instead of the full registry (one spec per line)",
	}
	Overrides = &cli.StringFlag{
		Name:    "overrides",
		Value:   "",
		EnvVars: prefixEnvVars("OVERRIDES"),
		Usage:   "YAML file of per-spec overrides (nprocs, isolation, timeout, expected_fail)",
	}
	Concurrency = &cli.IntFlag{
		Name:    "concurrency",
		Aliases: []string{"n"},
		Value:   runtime.NumCPU(),
		EnvVars: prefixEnvVars("CONCURRENCY"),
		Usage:   "Number of concurrent workers; 1 runs tests sequentially",
	}
	Isolated = &cli.BoolFlag{
		Name:    "isolated",
		Value:   false,
		EnvVars: prefixEnvVars("ISOLATED"),
		Usage:   "Run every test in its own subprocess",
	}
	NoMPI = &cli.BoolFlag{
		Name:    "nompi",
		Value:   false,
		EnvVars: prefixEnvVars("NOMPI"),
		Usage:   "Disable the distributed tier; multi-process tests fall back to subprocess isolation",
	}
	Stop = &cli.BoolFlag{
		Name:    "stop",
		Value:   false,
		EnvVars: prefixEnvVars("STOP"),
		Usage:   "Stop admitting new tests after the first failure",
	}
	Verbose = &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Value:   false,
		EnvVars: prefixEnvVars("VERBOSE"),
		Usage:   "Print one line per test instead of progress dots",
	}
	NoCapture = &cli.BoolFlag{
		Name:    "nocapture",
		Aliases: []string{"s"},
		Value:   false,
		EnvVars: prefixEnvVars("NOCAPTURE"),
		Usage:   "Pass test stdout through instead of discarding it",
	}
	Timeout = &cli.DurationFlag{
		Name:    "timeout",
		Value:   10 * time.Minute,
		EnvVars: prefixEnvVars("TIMEOUT"),
		Usage:   "Per-test wall-clock timeout in subprocess and distributed tiers",
	}
	MaxTime = &cli.DurationFlag{
		Name:    "maxtime",
		Value:   0,
		EnvVars: prefixEnvVars("MAXTIME"),
		Usage:   "When set, write tests passing within this duration to the quick list",
	}
	QuickFile = &cli.StringFlag{
		Name:    "quickfile",
		Value:   "quicktests.in",
		EnvVars: prefixEnvVars("QUICKFILE"),
		Usage:   "Quick-list output path (used with --maxtime)",
	}
	FailFile = &cli.StringFlag{
		Name:    "failfile",
		Value:   "failtests.in",
		EnvVars: prefixEnvVars("FAILFILE"),
		Usage:   "Fail-list output path; rerun failures with --testfile",
	}
	ReportFile = &cli.StringFlag{
		Name:    "report",
		Value:   "runflo_report.out",
		EnvVars: prefixEnvVars("REPORT"),
		Usage:   "Verbose run report output path; empty disables the report",
	}
	Benchmark = &cli.StringFlag{
		Name:    "benchmark",
		Value:   "",
		EnvVars: prefixEnvVars("BENCHMARK"),
		Usage:   "Append per-test CSV benchmark data to this file",
	}
	Durations = &cli.IntFlag{
		Name:    "durations",
		Value:   0,
		EnvVars: prefixEnvVars("DURATIONS"),
		Usage:   "Report the N longest-running tests after the run",
	}
	DurationsMin = &cli.DurationFlag{
		Name:    "durations-min",
		Value:   0,
		EnvVars: prefixEnvVars("DURATIONS_MIN"),
		Usage:   "Only report long-running tests at or above this duration",
	}
	DeprecationsReport = &cli.StringFlag{
		Name:    "deprecations-report",
		Value:   "",
		EnvVars: prefixEnvVars("DEPRECATIONS_REPORT"),
		Usage:   "Write a deprecations report to this file after the run",
	}
	DryRun = &cli.BoolFlag{
		Name:    "dryrun",
		Value:   false,
		EnvVars: prefixEnvVars("DRYRUN"),
		Usage:   "List the tests that would run without running them",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: prefixEnvVars("RUN_INTERVAL"),
		Usage:   "Interval between test runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	MetricsAddr = &cli.StringFlag{
		Name:    "metrics-addr",
		Value:   "",
		EnvVars: prefixEnvVars("METRICS_ADDR"),
		Usage:   "Serve /metrics and /healthz on this address; empty disables the server",
	}
)

var Flags = []cli.Flag{
	TestFile,
	Overrides,
	Concurrency,
	Isolated,
	NoMPI,
	Stop,
	Verbose,
	NoCapture,
	Timeout,
	MaxTime,
	QuickFile,
	FailFile,
	ReportFile,
	Benchmark,
	Durations,
	DurationsMin,
	DeprecationsReport,
	DryRun,
	RunInterval,
	MetricsAddr,
}

// CheckRequired validates flag combinations that the cli package cannot
// express on its own.
func CheckRequired(ctx *cli.Context) error {
	if ctx.Int(Concurrency.Name) < 1 {
		return fmt.Errorf("flag %s must be at least 1", Concurrency.Name)
	}
	if ctx.Duration(MaxTime.Name) > 0 && ctx.String(QuickFile.Name) == "" {
		return fmt.Errorf("flag %s requires %s", MaxTime.Name, QuickFile.Name)
	}
	return nil
}
