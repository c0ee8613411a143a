package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	"github.com/runflo/runflo"
	"github.com/runflo/runflo/flags"
	"github.com/runflo/runflo/registry"
	"github.com/runflo/runflo/runner"
	"github.com/runflo/runflo/service"
	"github.com/runflo/runflo/types"
	"github.com/runflo/runflo/units"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "runflo"
	app.Usage = "Concurrent test execution engine"
	app.Description = "runflo runs a registered suite across a worker pool with per-unit process isolation"
	app.Flags = flags.Flags
	app.Action = run
	app.Commands = []*cli.Command{childCommand()}
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			if runflo.IsRuntimeError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), 2))
			} else if runflo.IsTestFailureError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), 1))
			} else {
				cli.HandleExitCoder(cli.Exit(err.Error(), 1))
			}
		}
	}

	otelShutdown, err := otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to set up open telemetry", "message", err)
	}
	defer otelShutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func newLogger(verbose bool) log.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, level, false))
}

func run(cliCtx *cli.Context) error {
	logger := newLogger(cliCtx.Bool(flags.Verbose.Name))

	cfg, err := runflo.NewConfig(cliCtx, logger)
	if err != nil {
		return runflo.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}

	ctx, cancel := context.WithCancel(cliCtx.Context)
	defer cancel()

	engine, err := runflo.New(ctx, cfg, Version, func(error) { cancel() })
	if err != nil {
		return runflo.NewRuntimeError(fmt.Errorf("failed to create engine: %w", err))
	}
	units.Register(engine.Registry())

	svc := service.New(cfg.MetricsAddr)
	svc.Start(ctx)
	defer func() {
		_ = svc.Shutdown(context.Background())
	}()

	if err := engine.Start(ctx); err != nil {
		return err
	}

	if !cfg.RunOnce {
		<-ctx.Done()
		_ = engine.Stop(context.Background())
		return engine.WaitForShutdown(context.Background())
	}
	return nil
}

// childCommand is the hidden re-invocation target used by the subprocess
// and distributed tiers to execute exactly one unit in this process.
func childCommand() *cli.Command {
	specFlag := &cli.StringFlag{
		Name:     "spec",
		Usage:    "Spec of the single unit to execute",
		Required: true,
	}
	resultFileFlag := &cli.StringFlag{
		Name:  "result-file",
		Usage: "Path that receives the structured result payload",
	}
	collectFlag := &cli.StringFlag{
		Name:  "collect",
		Usage: "TCP address of the parent's result collector",
	}
	debugFlag := &cli.BoolFlag{
		Name:  "debug",
		Usage: "Pass unit stdout through",
	}

	return &cli.Command{
		Name:   runner.ChildSubcommand,
		Hidden: true,
		Flags:  []cli.Flag{specFlag, resultFileFlag, collectFlag, debugFlag, flags.Overrides},
		Action: func(cliCtx *cli.Context) error {
			logger := newLogger(cliCtx.Bool(debugFlag.Name))

			reg, err := registry.New(registry.Config{
				Log:           logger,
				OverridesFile: cliCtx.String(flags.Overrides.Name),
			})
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			units.Register(reg)

			code := runner.RunChild(cliCtx.Context, runner.ChildConfig{
				Log:         logger,
				Resolver:    reg,
				Debug:       cliCtx.Bool(debugFlag.Name),
				Spec:        types.Spec(cliCtx.String(specFlag.Name)),
				ResultFile:  cliCtx.String(resultFileFlag.Name),
				CollectAddr: cliCtx.String(collectFlag.Name),
			})
			if code != 0 {
				return cli.Exit("", code)
			}
			return nil
		},
	}
}
