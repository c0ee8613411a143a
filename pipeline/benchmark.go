package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/runflo/runflo/types"
)

// Benchmark appends one CSV row per result for postprocessing:
// timestamp, spec, status, elapsed seconds, peak RSS in MB.
type Benchmark struct {
	Out io.Writer
}

func (b *Benchmark) Name() string { return "benchmark" }

func (b *Benchmark) Process(in <-chan *types.Result) <-chan *types.Result {
	w := csv.NewWriter(b.Out)
	stamp := fmt.Sprintf("%d", time.Now().Unix())

	return passthrough(in, func(res *types.Result) {
		_ = w.Write([]string{
			stamp,
			res.Spec.String(),
			string(res.Status),
			fmt.Sprintf("%f", res.Elapsed().Seconds()),
			fmt.Sprintf("%f", res.Usage.MaxRSSMB),
		})
		w.Flush()
	}, nil)
}
