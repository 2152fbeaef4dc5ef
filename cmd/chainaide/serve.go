package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/chainaide/handlers"
	"github.com/ethpandaops/chainaide/handlers/api"
	"github.com/ethpandaops/chainaide/metrics"
	"github.com/ethpandaops/chainaide/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the contract api",
	Long:  "Serve the read-only contract api: registry listing, contract interfaces and eth_call based function calls",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := utils.Config
	logger := logrus.StandardLogger()

	ctx := cmd.Context()
	chainAide, client, cleanup, err := connect(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	chainId, err := chainAide.ChainID(ctx)
	if err != nil {
		return err
	}
	clientVersion, err := client.GetClientVersion(ctx)
	if err != nil {
		logger.Warnf("could not get client version: %v", err)
	}
	logger.WithFields(logrus.Fields{
		"rpc":     client.GetName(),
		"chainId": chainId,
		"client":  clientVersion,
		"version": utils.GetBuildVersion(),
	}).Infof("connected to execution client")

	if cfg.Metrics.Enabled && !cfg.Metrics.Public {
		metricsServer, err := metrics.StartMetricsServer(logger.WithField("module", "metrics"), cfg.Metrics.Host, cfg.Metrics.Port)
		if err != nil {
			return err
		}
		defer metricsServer.Close()
	}

	if !cfg.Api.Enabled {
		logger.Warnf("api is disabled, nothing to serve")
		return nil
	}

	apiHandler := api.NewHandler(client, &api.HandlerConfig{
		ChainId:          chainId.Uint64(),
		CacheSize:        cfg.Api.CacheSize,
		CacheTtl:         cfg.Api.CacheTtl,
		CacheRedis:       cfg.Api.CacheRedis,
		CacheRedisPrefix: cfg.Api.CacheRedisPrefix,
		CallTimeout:      cfg.Api.CallTimeout,
		CallCost:         cfg.Api.CallCost,
	}, logger)
	defer apiHandler.Close()

	router, rateLimiter := handlers.NewRouter(apiHandler, cfg)
	defer rateLimiter.Stop()

	srv, err := handlers.StartServer(router, cfg, logger.WithField("module", "api"))
	if err != nil {
		return err
	}

	utils.WaitForCtrlC(ctx)
	logger.Println("exiting...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
