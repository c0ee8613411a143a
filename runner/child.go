package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/runflo/runflo/exitcodes"
	"github.com/runflo/runflo/types"
)

// ChildConfig configures single-unit child-mode execution.
type ChildConfig struct {
	Log      log.Logger
	Resolver Resolver
	Coverage Coverage
	Debug    bool

	Spec types.Spec

	// ResultFile receives the structured side-channel payload.
	ResultFile string

	// CollectAddr, when set, is the TCP address of the parent's result
	// collector; every cooperating process reports its result there. It is
	// passed on the command line, never through ambient global state.
	CollectAddr string
}

// RunChild executes exactly one spec in the current process, writes the
// side-channel payload, and returns the process exit code from the
// reserved table. It is the body of the hidden child subcommand used by
// the subprocess and distributed tiers.
func RunChild(ctx context.Context, cfg ChildConfig) int {
	if cfg.Log == nil {
		cfg.Log = log.New()
	}

	var result *types.Result
	if cfg.Resolver == nil {
		result = types.NewSyntheticFailure(cfg.Spec, "no resolver available in child process")
	} else {
		lc := NewLifecycle(cfg.Log, cfg.Coverage, cfg.Debug)
		ex, err := cfg.Resolver.Resolve(cfg.Spec)
		if err != nil {
			result = types.NewSyntheticFailure(cfg.Spec, err.Error())
		} else {
			result = consolidate(cfg.Spec, lc.Execute(ctx, ex))
		}
	}

	if cfg.ResultFile != "" {
		if err := writePayload(cfg.ResultFile, payloadFromResult(result)); err != nil {
			cfg.Log.Error("Writing side-channel payload", "file", cfg.ResultFile, "err", err)
		}
	}

	if cfg.CollectAddr != "" {
		if err := reportToCollector(cfg.CollectAddr, result); err != nil {
			cfg.Log.Error("Reporting result to collector", "addr", cfg.CollectAddr, "err", err)
		}
	}

	if cfg.Coverage != nil {
		if err := cfg.Coverage.Persist(); err != nil {
			cfg.Log.Warn("Persisting coverage", "err", err)
		}
	}

	return exitcodes.ForStatus(result.Status)
}

// consolidate folds an execution's results (one, or several after subtest
// expansion) into the single result a child process reports upward.
func consolidate(spec types.Spec, results []*types.Result) *types.Result {
	if len(results) == 0 {
		return types.NewSyntheticFailure(spec, "unit produced no result")
	}
	if len(results) == 1 {
		return results[0]
	}
	out := *results[0]
	out.SubMsg = ""
	for _, r := range results[1:] {
		out.Status = out.Status.Combine(r.Status)
		if r.ErrMsg != "" && r.ErrMsg != out.ErrMsg {
			out.ErrMsg += "\n" + r.SubMsg + " " + r.ErrMsg
		}
	}
	return &out
}

// rankReport is one cooperating process's contribution to a distributed
// run.
type rankReport struct {
	Rank    int          `json:"rank"`
	Status  types.Status `json:"status"`
	Payload Payload      `json:"payload"`
}

// reportToCollector sends this process's result to the parent's collector.
func reportToCollector(addr string, result *types.Result) error {
	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("dialing collector: %w", err)
	}
	defer conn.Close()

	report := rankReport{
		Rank:    launchRank(),
		Status:  result.Status,
		Payload: payloadFromResult(result),
	}
	return json.NewEncoder(conn).Encode(report)
}

// launchRank reads this process's rank from the variables the common
// multi-process launch standards set for their children.
func launchRank() int {
	for _, key := range []string{"OMPI_COMM_WORLD_RANK", "PMI_RANK", "PMIX_RANK", "SLURM_PROCID"} {
		if v := os.Getenv(key); v != "" {
			if rank, err := strconv.Atoi(v); err == nil {
				return rank
			}
		}
	}
	return 0
}
