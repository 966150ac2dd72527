package metrics

import (
	"expvar"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	SignalsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signaldesk_signals_ingested_total", Help: "Signals accepted by the normalizer"},
		[]string{"source"},
	)
	SignalsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signaldesk_signals_rejected_total", Help: "Raw records dropped by the normalizer"},
		[]string{"source"},
	)
	Evaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signaldesk_evaluations_total", Help: "Evaluated signals by outcome"},
		[]string{"outcome"},
	)
	FeedErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signaldesk_feed_errors_total", Help: "Failed feed fetches"},
		[]string{"feed"},
	)
	BarsStored = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signaldesk_bars_stored_total", Help: "Bars written to the bar store"},
		[]string{"symbol", "origin"},
	)
	AnalysisRuns = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "signaldesk_analysis_runs_total", Help: "Completed analysis runs"},
	)

	// expvar 镜像，/debug/vars 下快速查看
	LastRunSignals = expvar.NewInt("last_run_signals")
	LastRunUnix    = expvar.NewInt("last_run_unix")
)

func init() {
	prometheus.MustRegister(SignalsIngested, SignalsRejected, Evaluations, FeedErrors, BarsStored, AnalysisRuns)
}
