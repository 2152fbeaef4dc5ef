package rpc

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rpcCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chainaide_rpc_call_duration_seconds",
		Help:    "Duration of execution client rpc calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	rpcCallErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainaide_rpc_call_errors_total",
		Help: "Number of failed execution client rpc calls",
	}, []string{"method"})
)

func observeCall(method string, start time.Time, err error) {
	rpcCallDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		rpcCallErrors.WithLabelValues(method).Inc()
	}
}
