package pipeline

import (
	"github.com/runflo/runflo/metrics"
	"github.com/runflo/runflo/types"
)

// Metrics records each result in the Prometheus registry as it streams
// past.
type Metrics struct {
	RunID string
}

func (m *Metrics) Name() string { return "metrics" }

func (m *Metrics) Process(in <-chan *types.Result) <-chan *types.Result {
	return passthrough(in, func(res *types.Result) {
		metrics.RecordResult(m.RunID, res)
	}, nil)
}
