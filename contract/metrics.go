package contract

import (
	"github.com/ethpandaops/chainaide/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainaide_contract_dispatch_total",
		Help: "Number of contract calls dispatched, by dispatch path",
	}, []string{"path"})

	deploymentCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainaide_contract_deployments_total",
		Help: "Number of contract deployments, by outcome",
	}, []string{"status"})

	abiCacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chainaide_contract_abi_cache_size",
		Help: "Number of parsed ABIs in the cache",
	})
)

func init() {
	metrics.AddPreCollectFn(func() {
		abiCacheSize.Set(float64(abiCache.Len()))
	})
}
