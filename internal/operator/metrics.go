package operator

import "github.com/prometheus/client_golang/prometheus"

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

var (
	submissionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "brickrun_submissions_total",
		Help: "Total number of runs submitted to the remote service.",
	})

	pollsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "brickrun_run_state_polls_total",
		Help: "Total number of run state polls issued.",
	})

	cancellationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "brickrun_cancellations_total",
		Help: "Total number of remote run cancellations requested.",
	})

	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brickrun_runs_total",
			Help: "Total number of runs that reached a terminal state, by outcome.",
		},
		[]string{"outcome"},
	)

	runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "brickrun_run_duration_seconds",
		Help: "Wall-clock duration from submission to terminal state.",
		// Remote runs range from seconds to hours.
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})
)

func init() {
	prometheus.MustRegister(submissionsTotal)
	prometheus.MustRegister(pollsTotal)
	prometheus.MustRegister(cancellationsTotal)
	prometheus.MustRegister(runsTotal)
	prometheus.MustRegister(runDuration)
}
