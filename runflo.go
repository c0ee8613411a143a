package runflo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/runflo/runflo/pipeline"
	"github.com/runflo/runflo/registry"
	"github.com/runflo/runflo/runner"
	"github.com/runflo/runflo/testlist"
	"github.com/runflo/runflo/types"
)

// Engine wires the spec source, the worker pool and the result pipeline
// into a single run of the suite, and repeats it on an interval in
// continuous mode.
type Engine struct {
	ctx       context.Context
	config    *Config
	version   string
	registry  *registry.Registry
	runner    *runner.Runner
	scheduler Scheduler

	lastFailed []types.Spec

	shutdownCallback func(error) // Callback to signal application shutdown
}

func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*Engine, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating engine with config",
		"testFile", config.TestFile,
		"overrides", config.Overrides,
		"concurrency", config.Concurrency,
		"isolated", config.Isolated,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce)

	reg, err := registry.New(registry.Config{
		Log:           config.Log,
		OverridesFile: config.Overrides,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create registry: %w", err)
	}

	run, err := runner.New(runner.Config{
		Log:            config.Log,
		Resolver:       reg,
		Debug:          config.NoCapture,
		Overrides:      config.Overrides,
		DefaultTimeout: config.Timeout,
		ForceIsolated:  config.Isolated,
		NoMPI:          config.NoMPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create runner: %w", err)
	}

	return &Engine{
		ctx:              ctx,
		config:           config,
		version:          version,
		registry:         reg,
		runner:           run,
		scheduler:        NewIntervalScheduler(config.RunInterval, config.RunOnce, config.Log),
		shutdownCallback: shutdownCallback,
	}, nil
}

// Registry exposes the engine's group registry so callers can register
// units before Start.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Start runs the suite, once or periodically per the configured interval.
func (e *Engine) Start(ctx context.Context) error {
	e.ctx = ctx

	if e.config.DryRun {
		return e.dryRun()
	}

	e.scheduler.RegisterCallback(e.runSuite)

	if err := e.scheduler.Start(ctx); err != nil {
		e.config.Log.Error("Runtime error running suite", "error", err)
		return NewRuntimeError(err)
	}

	if e.config.RunOnce {
		if len(e.lastFailed) > 0 {
			e.config.Log.Warn("Run completed with failures", "failed", len(e.lastFailed))
			return NewTestFailureError(e.lastFailed...)
		}
		go func() {
			e.shutdownCallback(nil)
		}()
	}
	return nil
}

// Stop stops the engine.
func (e *Engine) Stop(ctx context.Context) error {
	e.config.Log.Info("Stopping engine")
	return e.scheduler.Stop()
}

// Stopped returns true if the engine is stopped.
func (e *Engine) Stopped() bool {
	return e.scheduler.Stopped()
}

// WaitForShutdown blocks until the scheduler has fully wound down.
func (e *Engine) WaitForShutdown(ctx context.Context) error {
	return e.scheduler.WaitForShutdown(ctx)
}

// dryRun lists the specs that would run without executing anything.
func (e *Engine) dryRun() error {
	specs, err := e.specs()
	if err != nil {
		return NewRuntimeError(err)
	}
	for _, s := range specs {
		fmt.Println(types.FormatListLine(s, 0))
	}
	fmt.Printf("\n%d tests would run.\n", len(specs))
	return nil
}

// specs resolves the spec source for a run: the replay list when one is
// configured, the full registry otherwise.
func (e *Engine) specs() ([]types.Spec, error) {
	if e.config.TestFile != "" {
		specs, err := testlist.Load(e.config.TestFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load test list %q: %w", e.config.TestFile, err)
		}
		return specs, nil
	}
	return e.registry.SortedSpecs(), nil
}

// runSuite performs one complete run: feed every spec through the pool,
// stream the results through the pipeline and count unexpected failures.
func (e *Engine) runSuite() error {
	runID := uuid.New().String()
	log := e.config.Log.New("run_id", runID)

	specs, err := e.specs()
	if err != nil {
		return err
	}
	log.Info("Starting run", "tests", len(specs), "concurrency", e.config.Concurrency)

	stages, closers, err := e.buildStages(runID)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	feed := make(chan types.Spec)
	go func() {
		defer close(feed)
		for _, s := range specs {
			select {
			case feed <- s:
			case <-e.ctx.Done():
				return
			}
		}
	}()

	pool := runner.NewPool(e.runner, e.config.Concurrency, e.config.Stop)
	results := pipeline.Chain(pool.Run(e.ctx, feed), stages...)

	var failed []types.Spec
	for res := range results {
		if res.Status == types.StatusFail {
			failed = append(failed, res.Spec)
		}
	}
	e.lastFailed = failed

	log.Info("Run completed", "failed", len(failed))
	return nil
}

// buildStages assembles the pipeline for one run. Stages that write files
// hand back their closers so runSuite can release them after the stream
// drains.
func (e *Engine) buildStages(runID string) ([]pipeline.Stage, []io.Closer, error) {
	var (
		stages  []pipeline.Stage
		closers []io.Closer
	)
	openOut := func(path string) (io.Writer, error) {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create %q: %w", path, err)
		}
		closers = append(closers, f)
		return f, nil
	}

	stages = append(stages, &pipeline.Metrics{RunID: runID})

	if e.config.FailFile != "" {
		stages = append(stages, &pipeline.FailList{Path: e.config.FailFile, Log: e.config.Log})
	}
	if e.config.MaxTime > 0 {
		stages = append(stages, &pipeline.QuickList{
			Path:      e.config.QuickFile,
			Threshold: e.config.MaxTime,
			Log:       e.config.Log,
		})
	}
	// benchmark rows accumulate across runs, so the file is appended to
	// rather than truncated
	if e.config.Benchmark != "" {
		f, err := os.OpenFile(e.config.Benchmark, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, closers, fmt.Errorf("failed to open %q: %w", e.config.Benchmark, err)
		}
		closers = append(closers, f)
		stages = append(stages, &pipeline.Benchmark{Out: f})
	}

	stages = append(stages,
		&pipeline.Printer{Out: os.Stdout, Verbose: e.config.Verbose},
		&pipeline.Summary{Out: os.Stdout, Concurrency: e.config.Concurrency, Isolated: e.config.Isolated},
	)

	if e.config.ReportFile != "" {
		out, err := openOut(e.config.ReportFile)
		if err != nil {
			return nil, closers, err
		}
		stages = append(stages,
			&pipeline.Printer{Out: out, Verbose: true, StripANSI: true},
			&pipeline.Summary{Out: out, Concurrency: e.config.Concurrency, Isolated: e.config.Isolated},
		)
	}
	if e.config.Durations > 0 {
		stages = append(stages, &pipeline.Durations{
			Out:   os.Stdout,
			Count: e.config.Durations,
			Min:   e.config.DurationsMin,
		})
	}
	if e.config.DeprecationsReport != "" {
		out, err := openOut(e.config.DeprecationsReport)
		if err != nil {
			return nil, closers, err
		}
		stages = append(stages, &pipeline.DeprecationsReport{Out: out})
	}

	return stages, closers, nil
}
