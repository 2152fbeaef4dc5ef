package main

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/chainaide/aide"
	"github.com/ethpandaops/chainaide/contract"
	"github.com/ethpandaops/chainaide/db"
	"github.com/ethpandaops/chainaide/dbtypes"
	"github.com/ethpandaops/chainaide/utils"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a transaction",
	Long:  "Sign and broadcast a transaction from the default account and print its hash",
	Args:  cobra.NoArgs,
	RunE:  runSend,
}

var transferCmd = &cobra.Command{
	Use:   "transfer <to> <value>",
	Short: "Transfer ether",
	Long:  "Transfer value (in wei, decimal or 0x hex) to an account",
	Args:  cobra.ExactArgs(2),
	RunE:  runTransfer,
}

var waitBlockCmd = &cobra.Command{
	Use:   "wait-block <number>",
	Short: "Wait for a block",
	Long:  "Block until the chain head has passed the given block number",
	Args:  cobra.ExactArgs(1),
	RunE:  runWaitBlock,
}

var receiptCmd = &cobra.Command{
	Use:   "receipt <hash>",
	Short: "Wait for a transaction receipt",
	Args:  cobra.ExactArgs(1),
	RunE:  runReceipt,
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Account helpers",
}

var accountCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Generate a new account",
	Long:  "Generate a new random account and print its address and private key. The key is not stored.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		account, err := aide.CreateAccount()
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]interface{}{
			"address":    account.Address.Hex(),
			"privateKey": hexutil.Encode(crypto.FromECDSA(account.PrivateKey)),
		})
	},
}

var accountBalanceCmd = &cobra.Command{
	Use:   "balance [address]",
	Short: "Print the balance of an account",
	Long:  "Print the balance of an account in wei, defaults to the default account",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBalance,
}

var contractsCmd = &cobra.Command{
	Use:   "contracts",
	Short: "List recorded contract deployments",
	Args:  cobra.NoArgs,
	RunE:  runContracts,
}

func init() {
	rootCmd.AddCommand(sendCmd, transferCmd, waitBlockCmd, receiptCmd, accountCmd, contractsCmd)
	accountCmd.AddCommand(accountCreateCmd, accountBalanceCmd)

	sendCmd.Flags().String("to", "", "Recipient address, empty creates a contract")
	sendCmd.Flags().String("data", "", "Hex encoded calldata")
	sendCmd.Flags().String("txn", "", "Transaction fields as json object (value, gas, gasPrice, maxFeePerGas, maxPriorityFeePerGas, nonce)")
	sendCmd.Flags().Bool("wait", false, "Wait for the receipt")

	transferCmd.Flags().String("txn", "", "Transaction overrides as json object (gas, gasPrice, maxFeePerGas, maxPriorityFeePerGas, nonce)")
	transferCmd.Flags().StringP("mode", "m", "", "Result mode (auto, txn, hash, receipt)")

	waitBlockCmd.Flags().Duration("timeout", 0, "Timeout, defaults to the expected block time per outstanding block")
	receiptCmd.Flags().Duration("timeout", 0, "Timeout, defaults to the configured receipt timeout")

	contractsCmd.Flags().String("name", "", "Filter by contract name")
	contractsCmd.Flags().Uint64("chain-id", 0, "Filter by chain id")
	contractsCmd.Flags().Uint32("limit", 50, "Maximum number of deployments")
}

func runSend(cmd *cobra.Command, args []string) error {
	to, _ := cmd.Flags().GetString("to")
	data, _ := cmd.Flags().GetString("data")
	wait, _ := cmd.Flags().GetBool("wait")

	req := &contract.TxRequest{}
	if to != "" {
		address, err := parseAddress(to)
		if err != nil {
			return err
		}
		req.To = &address
	}
	if data != "" {
		calldata, err := hexutil.Decode(data)
		if err != nil {
			return fmt.Errorf("invalid calldata: %w", err)
		}
		req.Data = calldata
	}
	txn, err := parseTxnFlag(cmd)
	if err != nil {
		return err
	}
	txn.Apply(req)

	ctx := cmd.Context()
	chainAide, _, cleanup, err := connect(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	hash, err := chainAide.SendTransaction(ctx, req, nil)
	if err != nil {
		return err
	}

	output := map[string]interface{}{
		"hash": hash.Hex(),
	}
	if wait {
		receipt, err := chainAide.WaitForReceipt(ctx, hash, 0)
		if err != nil {
			return err
		}
		output["receipt"] = formatReceipt(receipt)
	}
	return printJSON(cmd, output)
}

func runTransfer(cmd *cobra.Command, args []string) error {
	mode, _ := cmd.Flags().GetString("mode")

	to, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	value, ok := new(big.Int).SetString(args[1], 0)
	if !ok || value.Sign() < 0 {
		return fmt.Errorf("invalid value: %v", args[1])
	}

	opts := &contract.CallOpts{}
	if mode != "" {
		opts.ResultMode, err = contract.ParseResultMode(mode)
		if err != nil {
			return err
		}
	}
	opts.Txn, err = parseTxnFlag(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	chainAide, _, cleanup, err := connect(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := chainAide.Transfer(ctx, to, value, opts)
	if err != nil {
		return err
	}
	return printJSON(cmd, formatResult(nil, result))
}

func runWaitBlock(cmd *cobra.Command, args []string) error {
	timeout, _ := cmd.Flags().GetDuration("timeout")

	number, ok := new(big.Int).SetString(args[0], 0)
	if !ok || !number.IsUint64() {
		return fmt.Errorf("invalid block number: %v", args[0])
	}

	ctx := cmd.Context()
	chainAide, _, cleanup, err := connect(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	return chainAide.WaitBlock(ctx, number.Uint64(), timeout)
}

func runReceipt(cmd *cobra.Command, args []string) error {
	timeout, _ := cmd.Flags().GetDuration("timeout")

	hashBytes, err := hexutil.Decode(args[0])
	if err != nil || len(hashBytes) != common.HashLength {
		return fmt.Errorf("invalid transaction hash: %v", args[0])
	}

	ctx := cmd.Context()
	chainAide, _, cleanup, err := connect(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	receipt, err := chainAide.WaitForReceipt(ctx, common.BytesToHash(hashBytes), timeout)
	if err != nil {
		return err
	}
	return printJSON(cmd, formatReceipt(receipt))
}

func runBalance(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	chainAide, _, cleanup, err := connect(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	var account common.Address
	if len(args) > 0 {
		account, err = parseAddress(args[0])
		if err != nil {
			return err
		}
	} else {
		defaultAccount, ok := chainAide.DefaultAccount()
		if !ok {
			return aide.ErrNoAccount
		}
		account = defaultAccount
	}

	balance, err := chainAide.Balance(ctx, account)
	if err != nil {
		return err
	}
	return printJSON(cmd, map[string]interface{}{
		"address": account.Hex(),
		"balance": balance.String(),
		"ether":   utils.FormatETH(balance),
	})
}

func runContracts(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	chainId, _ := cmd.Flags().GetUint64("chain-id")
	limit, _ := cmd.Flags().GetUint32("limit")

	db.MustInitDB()
	defer db.CloseDB()

	ctx := cmd.Context()
	deployments, total, err := db.GetContractDeployments(ctx, &dbtypes.ContractDeploymentFilter{
		ChainId: chainId,
		Name:    name,
	}, 0, limit)
	if err != nil {
		return err
	}

	output := make([]interface{}, len(deployments))
	for i, deployment := range deployments {
		output[i] = map[string]interface{}{
			"address": common.BytesToAddress(deployment.Address).Hex(),
			"name":    deployment.Name,
			"chainId": deployment.ChainId,
			"tx":      hexutil.Encode(deployment.TxHash),
			"block":   deployment.BlockNumber,
			"created": time.Unix(deployment.Created, 0).UTC().Format(time.RFC3339),
		}
	}
	return printJSON(cmd, map[string]interface{}{
		"total":     total,
		"contracts": output,
	})
}
