package handlers

import (
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/urfave/negroni"

	"github.com/ethpandaops/chainaide/handlers/api"
	"github.com/ethpandaops/chainaide/handlers/middleware"
	"github.com/ethpandaops/chainaide/metrics"
	"github.com/ethpandaops/chainaide/types"
)

// NewRouter builds the api router with rate limiting and the optional public
// metrics endpoint.
func NewRouter(apiHandler *api.Handler, config *types.Config) (http.Handler, *middleware.RateLimitMiddleware) {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(NotFound)

	rateLimiter := middleware.NewRateLimitMiddleware(config.Api.RateLimit, config.Api.RateLimitBurst, config.Api.ProxyCount)
	router.Use(middleware.CorsMiddleware(config.Api.CorsOrigins), middleware.CallCostMiddleware, rateLimiter.Middleware)

	apiHandler.RegisterRoutes(router)
	router.HandleFunc("/healthz", Health).Methods("GET")

	if config.Metrics.Enabled && config.Metrics.Public {
		router.Handle("/metrics", metrics.GetMetricsHandler())
	}

	n := negroni.New()
	n.Use(negroni.NewRecovery())
	n.UseHandler(router)

	return n, rateLimiter
}

// StartServer serves handler until the listener fails.
func StartServer(handler http.Handler, config *types.Config, logger logrus.FieldLogger) (*http.Server, error) {
	if config.Api.HttpWriteTimeout == 0 {
		config.Api.HttpWriteTimeout = time.Second * 15
	}
	if config.Api.HttpReadTimeout == 0 {
		config.Api.HttpReadTimeout = time.Second * 15
	}
	if config.Api.HttpIdleTimeout == 0 {
		config.Api.HttpIdleTimeout = time.Second * 60
	}

	srv := &http.Server{
		Addr:         config.Api.Host + ":" + config.Api.Port,
		WriteTimeout: config.Api.HttpWriteTimeout,
		ReadTimeout:  config.Api.HttpReadTimeout,
		IdleTimeout:  config.Api.HttpIdleTimeout,
		Handler:      handler,
	}

	listener, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return nil, err
	}

	logger.Infof("api server listening on %v", srv.Addr)
	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Error serving api")
		}
	}()

	return srv, nil
}
