package pipeline

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"

	"github.com/runflo/runflo/types"
)

// FailList records the spec of every unexpected FAIL result, one line per
// spec annotated with the process count when more than one, written
// incrementally as results arrive so a crashed run still leaves a usable
// list. Any prior content is cleared when the stage starts; every result
// passes through unchanged.
type FailList struct {
	Path string
	Log  log.Logger
}

func (fl *FailList) Name() string { return "fail-list" }

func (fl *FailList) Process(in <-chan *types.Result) <-chan *types.Result {
	f, err := os.Create(fl.Path)
	if err != nil {
		fl.logger().Error("Cannot create fail-list file; stage is pass-through only", "path", fl.Path, "err", err)
		return passthrough(in, nil, nil)
	}

	return passthrough(in, func(res *types.Result) {
		if res.Status != types.StatusFail || res.ExpectedFail {
			return
		}
		line := types.FormatListLine(res.Spec, res.NProcs)
		if _, werr := fmt.Fprintln(f, line); werr != nil {
			fl.logger().Error("Writing fail-list entry", "spec", res.Spec, "err", werr)
		}
	}, func() {
		if cerr := f.Close(); cerr != nil {
			fl.logger().Error("Closing fail-list file", "path", fl.Path, "err", cerr)
		}
	})
}

func (fl *FailList) logger() log.Logger {
	if fl.Log != nil {
		return fl.Log
	}
	return log.Root()
}
