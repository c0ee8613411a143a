// Package units registers the built-in selfcheck suite. It exercises every
// execution path the engine supports and doubles as a usage example for
// registering groups and units.
package units

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/runflo/runflo/registry"
	"github.com/runflo/runflo/runner"
	"github.com/runflo/runflo/types"
)

// Register adds the selfcheck groups to the registry.
func Register(reg *registry.Registry) {
	reg.Group("basics",
		registry.GroupSetup(basicsGroupSetup),
		registry.GroupTeardown(basicsGroupTeardown),
	).
		Unit("passes", passes).
		Unit("prints", prints).
		Unit("skips_on_env", skipsOnEnv).
		Unit("known_broken", knownBroken, registry.ExpectedFail()).
		GroupedUnit("arithmetic", arithmeticCases())

	reg.Group("fixtures",
		registry.UnitSetup(perUnitSetup),
		registry.UnitTeardown(perUnitTeardown),
	).
		Unit("sees_setup", seesSetup)

	reg.Group("isolation").
		Unit("own_process", ownProcess, registry.UnitIsolated()).
		Unit("cooperating", cooperating, registry.UnitNProcs(2), registry.UnitTimeout(2*time.Minute))

	reg.Group("hygiene").
		Unit("flags_deprecation", flagsDeprecation)
}

func basicsGroupSetup(ctx context.Context) error {
	fmt.Fprintln(runner.Diagnostics(ctx), "basics: group setup")
	return nil
}

func basicsGroupTeardown(ctx context.Context) error {
	fmt.Fprintln(runner.Diagnostics(ctx), "basics: group teardown")
	return nil
}

func passes(ctx context.Context) error {
	return nil
}

func prints(ctx context.Context) error {
	fmt.Fprintln(runner.Output(ctx), "hello from the suite")
	return nil
}

func skipsOnEnv(ctx context.Context) error {
	if os.Getenv("RUNFLO_SELFCHECK_FULL") == "" {
		return types.Skip("set RUNFLO_SELFCHECK_FULL to run this unit")
	}
	return nil
}

func knownBroken(ctx context.Context) error {
	return fmt.Errorf("this unit documents a known defect")
}

func arithmeticCases() []types.SubCase {
	cases := []struct {
		name    string
		a, b, c int
	}{
		{"small", 1, 2, 3},
		{"zero", 0, 0, 0},
		{"negative", -4, 1, -3},
	}
	subs := make([]types.SubCase, 0, len(cases))
	for _, tc := range cases {
		tc := tc
		subs = append(subs, types.SubCase{
			Name: tc.name,
			Body: func(ctx context.Context) error {
				if got := tc.a + tc.b; got != tc.c {
					return fmt.Errorf("%d + %d = %d, want %d", tc.a, tc.b, got, tc.c)
				}
				return nil
			},
		})
	}
	return subs
}

// perUnitSetup leaves a marker file for the unit body and perUnitTeardown
// removes it, demonstrating the per-unit hook pair.
func perUnitSetup(ctx context.Context) error {
	return os.WriteFile(markerPath(), []byte("ready"), 0o644)
}

func perUnitTeardown(ctx context.Context) error {
	return os.Remove(markerPath())
}

func seesSetup(ctx context.Context) error {
	data, err := os.ReadFile(markerPath())
	if err != nil {
		return fmt.Errorf("per-unit setup did not run: %w", err)
	}
	if string(data) != "ready" {
		return fmt.Errorf("unexpected marker content %q", data)
	}
	return nil
}

func markerPath() string {
	return fmt.Sprintf("%s/runflo-selfcheck-%d", os.TempDir(), os.Getpid())
}

func ownProcess(ctx context.Context) error {
	fmt.Fprintf(runner.Diagnostics(ctx), "running in pid %d\n", os.Getpid())
	return nil
}

// cooperating runs once per launched process when a multi-process launcher
// is installed, and falls back to a single subprocess otherwise.
func cooperating(ctx context.Context) error {
	fmt.Fprintf(runner.Diagnostics(ctx), "pid %d of a cooperating set\n", os.Getpid())
	return nil
}

func flagsDeprecation(ctx context.Context) error {
	if runtime.GOOS == "windows" {
		return types.Skip("selfcheck deprecation paths assume a unix temp dir")
	}
	_, file, line, _ := runtime.Caller(0)
	types.Deprecate(ctx, "the marker-file fixture is being replaced", file, line, "hygiene.flags_deprecation")
	return nil
}
