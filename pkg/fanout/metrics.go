package fanout

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Chunk outcomes.
const (
	outcomeData  = "data"
	outcomeEmpty = "empty"
	outcomeError = "error"
)

// Prometheus metrics for dispatch operations.
var (
	chunksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eikon_chunks_total",
		Help: "Total dispatched chunks by direction and outcome",
	}, []string{"direction", "outcome"})

	chunkRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eikon_chunk_retries_total",
		Help: "Total transient-failure retries by direction",
	}, []string{"direction"})

	dispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "eikon_dispatch_duration_seconds",
		Help:    "Duration of a whole dispatch by direction",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
	}, []string{"direction"})

	chunksInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "eikon_chunks_in_flight",
		Help: "Chunk calls currently in flight",
	})
)
