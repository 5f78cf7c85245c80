package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askgraph_cache_lookups_total",
			Help: "Total number of query cache lookups by result (hit, miss, error).",
		},
		[]string{"result"},
	)
	cacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "askgraph_cache_entries",
			Help: "Current number of entries in the query cache.",
		},
	)
	synthesisIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askgraph_synthesis_iterations",
			Help:    "Generate/repair iterations spent per synthesized query.",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)
	synthesisExhaustedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "askgraph_synthesis_exhausted_total",
			Help: "Total number of syntheses that ran out of repair attempts.",
		},
	)
	pipelineStageDurationMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "askgraph_pipeline_stage_duration_ms",
			Help:    "Pipeline stage latency in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"stage"},
	)
	executionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askgraph_executions_total",
			Help: "Total number of graph query executions by status (ok, error).",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		cacheLookupsTotal,
		cacheEntries,
		synthesisIterations,
		synthesisExhaustedTotal,
		pipelineStageDurationMs,
		executionsTotal,
	)
}

func ObserveCacheLookup(result string) {
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

func SetCacheEntries(size int) {
	if size < 0 {
		size = 0
	}
	cacheEntries.Set(float64(size))
}

func ObserveSynthesis(iterations int, exhausted bool) {
	synthesisIterations.Observe(float64(iterations))
	if exhausted {
		synthesisExhaustedTotal.Inc()
	}
}

func ObserveStage(stage string, elapsed time.Duration) {
	pipelineStageDurationMs.WithLabelValues(stage).Observe(float64(elapsed.Milliseconds()))
}

func ObserveExecution(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	executionsTotal.WithLabelValues(status).Inc()
}
