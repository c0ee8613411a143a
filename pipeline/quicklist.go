package pipeline

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/runflo/runflo/types"
)

// QuickList records the spec of every OK result whose elapsed time is at
// or under a threshold. The output file can be fed back in as a replay
// list on a later run to limit it to the quick tests. Any prior content is
// overwritten when the stage starts; every result passes through
// unchanged.
type QuickList struct {
	Path      string
	Threshold time.Duration
	Log       log.Logger
}

func (q *QuickList) Name() string { return "quick-list" }

func (q *QuickList) Process(in <-chan *types.Result) <-chan *types.Result {
	f, err := os.Create(q.Path)
	if err != nil {
		q.logger().Error("Cannot create quick-list file; stage is pass-through only", "path", q.Path, "err", err)
		return passthrough(in, nil, nil)
	}

	return passthrough(in, func(res *types.Result) {
		if res.Status == types.StatusOK && res.Elapsed() <= q.Threshold {
			if _, werr := fmt.Fprintln(f, res.Spec); werr != nil {
				q.logger().Error("Writing quick-list entry", "spec", res.Spec, "err", werr)
			}
		}
	}, func() {
		if cerr := f.Close(); cerr != nil {
			q.logger().Error("Closing quick-list file", "path", q.Path, "err", cerr)
		}
	})
}

func (q *QuickList) logger() log.Logger {
	if q.Log != nil {
		return q.Log
	}
	return log.Root()
}
