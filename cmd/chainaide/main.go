package main

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/chainaide/aide"
	"github.com/ethpandaops/chainaide/contract"
	"github.com/ethpandaops/chainaide/db"
	"github.com/ethpandaops/chainaide/rpc"
	"github.com/ethpandaops/chainaide/types"
	"github.com/ethpandaops/chainaide/utils"
)

var rootCmd = &cobra.Command{
	Use:   "chainaide",
	Short: "Contract deployment and interaction helper",
	Long:  "Deploy contracts, call their functions, send transactions and serve a read-only contract api against an EVM execution client",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	SilenceUsage: true,
}

var logWriter *utils.LogWriter

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the config file, if empty string defaults will be used")
	rootCmd.PersistentFlags().String("rpc", "", "Execution client rpc url (overrides config)")
	rootCmd.PersistentFlags().String("private-key", "", "Hex encoded private key of the default account (overrides config)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if logWriter != nil {
		logWriter.Dispose()
	}
	if err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) error {
	configPath, _ := cmd.Flags().GetString("config")
	rpcUrl, _ := cmd.Flags().GetString("rpc")
	privateKey, _ := cmd.Flags().GetString("private-key")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg := &types.Config{}
	err := utils.ReadConfig(cfg, configPath)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	if rpcUrl != "" {
		cfg.Rpc.Url = rpcUrl
	}
	if privateKey != "" {
		cfg.Signer.PrivateKey = privateKey
	}
	if verbose {
		cfg.Logging.OutputLevel = "debug"
	}

	utils.Config = cfg
	logWriter, _ = utils.InitLogger()

	logrus.WithFields(logrus.Fields{
		"config":  configPath,
		"version": utils.GetBuildVersion(),
	}).Debugf("starting")

	return nil
}

// connect dials the configured rpc endpoint and builds the aide. The returned
// cleanup closes the client and the database.
func connect(ctx context.Context) (*aide.Aide, *rpc.ExecutionClient, func(), error) {
	cfg := utils.Config

	client, err := rpc.NewExecutionClient(&cfg.Rpc)
	if err != nil {
		return nil, nil, nil, err
	}
	err = client.Initialize(ctx)
	if err != nil {
		client.Close()
		return nil, nil, nil, err
	}

	db.MustInitDB()

	opts := aide.Options{
		ReceiptTimeout: cfg.Receipt.Timeout,
		PollInterval:   cfg.Receipt.PollInterval,
		Logger:         logrus.StandardLogger(),
	}
	if db.IsEnabled() {
		opts.Registry = db.Registry{}
	}
	if cfg.Signer.PrivateKey != "" {
		key, err := parsePrivateKey(cfg.Signer.PrivateKey)
		if err != nil {
			client.Close()
			db.CloseDB()
			return nil, nil, nil, err
		}
		opts.PrivateKey = key
	}
	opts.ResultMode, err = contract.ParseResultMode(cfg.Signer.ResultMode)
	if err != nil {
		client.Close()
		db.CloseDB()
		return nil, nil, nil, err
	}

	cleanup := func() {
		client.Close()
		db.CloseDB()
	}
	return aide.New(client, opts), client, cleanup, nil
}

func parsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

func parseAddress(value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid address: %v", value)
	}
	return common.HexToAddress(value), nil
}

// parseTxnFlag decodes the json object given with --txn.
func parseTxnFlag(cmd *cobra.Command) (*contract.TxnOverrides, error) {
	raw, _ := cmd.Flags().GetString("txn")
	if raw == "" {
		return nil, nil
	}

	fields := map[string]interface{}{}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("invalid --txn value: %w", err)
	}
	return contract.TxnOverridesFromMap(fields)
}

func printJSON(cmd *cobra.Command, value interface{}) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
