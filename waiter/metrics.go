package waiter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	waitDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chainaide_waiter_wait_duration_seconds",
		Help:    "Time spent waiting for receipts and blocks",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"kind", "outcome"})

	pollCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainaide_waiter_polls_total",
		Help: "Number of polls issued while waiting",
	}, []string{"kind"})
)
