package metrics

import (
	"regexp"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/runflo/runflo/types"
)

const MetricsNamespace = "runflo"

var (
	nonAlphanumericRegex = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of engine errors",
	}, []string{
		"error",
	})

	unitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "units_total",
		Help:      "Count of executed test units",
	}, []string{
		"run_id",
		"status",
		"isolation",
	})

	unitDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "unit_duration_seconds",
		Help:      "Wall-clock duration of test units",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
	}, []string{
		"run_id",
		"isolation",
	})

	runResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_results",
		Help:      "Per-status unit counts for the current run",
	}, []string{
		"run_id",
		"status",
	})
)

// errToLabel makes an error string usable as a Prometheus label value.
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	clean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	clean = strings.ReplaceAll(clean, " ", "_")
	return strings.ReplaceAll(clean, "__", "_")
}

// RecordError counts an engine-level error.
func RecordError(label string) {
	errorsTotal.WithLabelValues(label).Inc()
}

// RecordErrorDetails counts an engine-level error with its message folded
// into the label.
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	RecordError(label + "." + errToLabel(err))
}

// RecordResult records one unit result.
func RecordResult(runID string, res *types.Result) {
	unitsTotal.WithLabelValues(runID, string(res.Status), string(res.Isolation)).Inc()
	unitDurationSeconds.WithLabelValues(runID, string(res.Isolation)).Observe(res.Elapsed().Seconds())
	runResults.WithLabelValues(runID, string(res.Status)).Inc()
}
