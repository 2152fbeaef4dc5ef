package api

import (
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/chainaide/cache"
	"github.com/ethpandaops/chainaide/contract"
	"github.com/ethpandaops/chainaide/handlers/middleware"
)

// Route names, used for call costs.
const (
	RouteContracts    = "api-contracts"
	RouteContract     = "api-contract"
	RouteContractCall = "api-contract-call"
)

type HandlerConfig struct {
	ChainId          uint64 // chain of the connected client, scopes registry lookups
	CacheSize        int
	CacheTtl         time.Duration
	CacheRedis       string // optional redis address shared between instances
	CacheRedisPrefix string
	CallTimeout      time.Duration
	CallCost         uint
}

// Handler serves the read-only registry api. Contract calls go through a
// binder without signer, so only the read path is reachable.
type Handler struct {
	binder      *contract.Binder
	chainId     uint64
	cache       *cache.TieredCache
	cacheTtl    time.Duration
	callTimeout time.Duration
	callCost    uint
	logger      logrus.FieldLogger
}

func NewHandler(backend contract.Backend, config *HandlerConfig, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	handler := &Handler{
		binder:      contract.NewBinder(backend, nil, nil, contract.Options{}, 0, logger),
		chainId:     config.ChainId,
		cacheTtl:    config.CacheTtl,
		callTimeout: config.CallTimeout,
		callCost:    config.CallCost,
		logger:      logger.WithField("module", "api"),
	}
	if config.CacheSize > 0 && config.CacheTtl > 0 {
		callCache, err := cache.NewTieredCache(config.CacheSize, config.CacheRedis, config.CacheRedisPrefix, logger)
		if err != nil {
			handler.logger.Warnf("could not connect redis cache %v, using local cache only: %v", config.CacheRedis, err)
			callCache, _ = cache.NewTieredCache(config.CacheSize, "", "", logger)
		}
		handler.cache = callCache
	}
	if handler.callTimeout == 0 {
		handler.callTimeout = 10 * time.Second
	}

	return handler
}

// Close releases the call cache.
func (h *Handler) Close() {
	if h.cache != nil {
		h.cache.Close()
	}
}

// RegisterRoutes adds the api endpoints to router.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.HandleFunc("/contracts", h.APIContractsV1).Methods("GET").Name(RouteContracts)
	apiRouter.HandleFunc("/contracts/{address}", h.APIContractV1).Methods("GET").Name(RouteContract)
	apiRouter.HandleFunc("/contracts/{address}/call/{function}", h.APIContractCallV1).Methods("GET", "POST").Name(RouteContractCall)

	if h.callCost > 1 {
		middleware.SetEndpointCost(RouteContractCall, int(h.callCost))
	}
}
