package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/chainaide/aide"
	"github.com/ethpandaops/chainaide/contract"
	"github.com/ethpandaops/chainaide/db"
	"github.com/ethpandaops/chainaide/handlers/api"
	"github.com/ethpandaops/chainaide/utils"
)

var deployCmd = &cobra.Command{
	Use:   "deploy <artifact> [constructor args...]",
	Short: "Deploy a contract",
	Long:  "Deploy a contract from a solc .abi/.bin pair or a json artifact and record it in the deployment registry",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDeploy,
}

var callCmd = &cobra.Command{
	Use:   "call <function> [args...]",
	Short: "Call a contract function",
	Long:  "Call a function of a deployed contract. Read-only functions use eth_call, all others send a transaction. Array arguments are given as json arrays.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCall,
}

var eventsCmd = &cobra.Command{
	Use:   "events <event>",
	Short: "Query contract events",
	Long:  "Fetch and decode historical logs of a contract event",
	Args:  cobra.ExactArgs(1),
	RunE:  runEvents,
}

func init() {
	rootCmd.AddCommand(deployCmd, callCmd, eventsCmd)

	deployCmd.Flags().String("bin", "", "Path to the bytecode file, defaults to the .bin file next to a plain abi file")
	deployCmd.Flags().String("name", "", "Contract name recorded in the registry, defaults to the artifact name")
	deployCmd.Flags().String("txn", "", "Transaction overrides as json object (value, gas, gasPrice, maxFeePerGas, maxPriorityFeePerGas, nonce)")

	for _, cmd := range []*cobra.Command{callCmd, eventsCmd} {
		cmd.Flags().StringP("address", "a", "", "Contract address, defaults to the most recently deployed contract")
		cmd.Flags().String("abi", "", "Path to the contract abi, defaults to the abi stored in the registry")
	}
	callCmd.Flags().String("txn", "", "Transaction overrides as json object (value, gas, gasPrice, maxFeePerGas, maxPriorityFeePerGas, nonce)")
	callCmd.Flags().StringP("mode", "m", "", "Result mode of state-changing calls (auto, txn, hash, receipt)")
	callCmd.Flags().Int64("block", -1, "Block number for read-only calls, latest if negative")

	eventsCmd.Flags().Int64("from", 0, "First block of the range")
	eventsCmd.Flags().Int64("to", -1, "Last block of the range, latest if negative")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	binPath, _ := cmd.Flags().GetString("bin")
	name, _ := cmd.Flags().GetString("name")

	artifact, err := utils.LoadArtifact(args[0], binPath)
	if err != nil {
		return err
	}
	if name == "" {
		name = artifact.Name
	}

	contractAbi, err := contract.ParseABI(artifact.Abi)
	if err != nil {
		return err
	}
	constructorArgs, err := contract.ParseArgs(contractAbi.Constructor.Inputs, args[1:])
	if err != nil {
		return fmt.Errorf("invalid constructor arguments: %w", err)
	}
	txn, err := parseTxnFlag(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	chainAide, _, cleanup, err := connect(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	handle, err := chainAide.Contract().Deploy(aide.WithDeploymentName(ctx, name), contractAbi, artifact.Bytecode, txn, nil, constructorArgs...)
	if err != nil {
		return err
	}

	address, _ := handle.Address()
	return printJSON(cmd, map[string]interface{}{
		"name":    name,
		"address": address.Hex(),
	})
}

// loadHandle binds the contract selected by the --address and --abi flags.
func loadHandle(ctx context.Context, cmd *cobra.Command, chainAide *aide.Aide) (*contract.Handle, error) {
	addressFlag, _ := cmd.Flags().GetString("address")
	abiPath, _ := cmd.Flags().GetString("abi")

	chainId, err := chainAide.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not get chain id: %w", err)
	}

	var address common.Address
	if addressFlag != "" {
		parsed, err := parseAddress(addressFlag)
		if err != nil {
			return nil, err
		}
		address = parsed
	} else {
		current, err := db.GetCurrentContract(ctx, chainId.Uint64())
		if errors.Is(err, db.ErrChainMismatch) {
			return nil, fmt.Errorf("%w, use --address", err)
		}
		if err != nil {
			return nil, fmt.Errorf("could not load current contract: %w", err)
		}
		if current == nil {
			return nil, fmt.Errorf("no contract deployed yet, use --address")
		}
		address = current.Address
	}

	var abiJson string
	if abiPath != "" {
		artifact, err := utils.LoadArtifact(abiPath, "")
		if err != nil {
			return nil, err
		}
		abiJson = artifact.Abi
	} else {
		deployment, err := db.GetContractDeployment(ctx, chainId.Uint64(), address.Bytes())
		if err != nil {
			return nil, fmt.Errorf("could not load contract %v from registry: %w", address.Hex(), err)
		}
		if deployment == nil {
			return nil, fmt.Errorf("contract %v is not in the registry of chain %v, use --abi", address.Hex(), chainId)
		}
		abiJson = deployment.Abi
	}

	contractAbi, err := contract.ParseABI(abiJson)
	if err != nil {
		return nil, err
	}
	return chainAide.Contract().New(contractAbi, nil, &address)
}

func runCall(cmd *cobra.Command, args []string) error {
	mode, _ := cmd.Flags().GetString("mode")
	block, _ := cmd.Flags().GetInt64("block")

	opts := &contract.CallOpts{}
	if mode != "" {
		resultMode, err := contract.ParseResultMode(mode)
		if err != nil {
			return err
		}
		opts.ResultMode = resultMode
	}
	if block >= 0 {
		opts.BlockNumber = big.NewInt(block)
	}
	txn, err := parseTxnFlag(cmd)
	if err != nil {
		return err
	}
	opts.Txn = txn

	ctx := cmd.Context()
	chainAide, _, cleanup, err := connect(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	handle, err := loadHandle(ctx, cmd, chainAide)
	if err != nil {
		return err
	}
	call, found := handle.Call(args[0])
	if !found {
		return fmt.Errorf("contract has no function %v", args[0])
	}

	var callArgs []interface{}
	if call.Name() == contract.FallbackName || call.Name() == contract.ReceiveName {
		if len(args) > 2 {
			return fmt.Errorf("%v accepts a single hex calldata argument", call.Name())
		}
		if len(args) == 2 {
			calldata, err := hexutil.Decode(args[1])
			if err != nil {
				return fmt.Errorf("invalid calldata: %w", err)
			}
			callArgs = append(callArgs, calldata)
		}
	} else {
		callArgs, err = parseOverloadArgs(call, args[1:])
		if err != nil {
			return err
		}
	}

	result, err := call.InvokeWith(ctx, opts, callArgs...)
	if err != nil {
		return err
	}
	return printJSON(cmd, formatResult(handle, result))
}

// parseOverloadArgs parses raw cli arguments against the first overload that
// accepts them.
func parseOverloadArgs(call *contract.BoundCall, raw []string) ([]interface{}, error) {
	var lastErr error
	for _, method := range call.Overloads() {
		args, err := contract.ParseArgs(method.Inputs, raw)
		if err == nil {
			return args, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = contract.ErrNoMatchingOverload
	}
	return nil, fmt.Errorf("invalid arguments for %v: %w", call.Name(), lastErr)
}

func formatResult(handle *contract.Handle, result *contract.Result) map[string]interface{} {
	output := map[string]interface{}{
		"mode": result.Mode,
	}
	if result.Values != nil {
		values := make([]interface{}, len(result.Values))
		for i, value := range result.Values {
			values[i] = api.EncodeValue(value)
		}
		output["values"] = values
	}
	if result.Tx != nil {
		if raw, err := result.Tx.MarshalBinary(); err == nil {
			output["raw"] = hexutil.Encode(raw)
		}
	}
	if result.Hash != (common.Hash{}) {
		output["hash"] = result.Hash.Hex()
	}
	if result.Receipt != nil {
		output["receipt"] = formatReceipt(result.Receipt)
		if handle != nil {
			output["events"] = receiptEvents(handle, result.Receipt)
		}
	}
	return output
}

func formatReceipt(receipt *ethtypes.Receipt) map[string]interface{} {
	output := map[string]interface{}{
		"status":  receipt.Status,
		"gasUsed": receipt.GasUsed,
	}
	if receipt.BlockNumber != nil {
		output["block"] = receipt.BlockNumber.Uint64()
	}
	if receipt.ContractAddress != (common.Address{}) {
		output["contractAddress"] = receipt.ContractAddress.Hex()
	}
	return output
}

func receiptEvents(handle *contract.Handle, receipt *ethtypes.Receipt) []interface{} {
	events := []interface{}{}
	for _, name := range handle.ABI().EventNames() {
		event, _ := handle.Event(name)
		decoded, err := event.ProcessReceipt(receipt)
		if err != nil {
			continue
		}
		for _, entry := range decoded {
			events = append(events, formatEvent(entry))
		}
	}
	return events
}

func formatEvent(event *contract.DecodedEvent) map[string]interface{} {
	args := map[string]interface{}{}
	for key, value := range event.Args {
		args[key] = api.EncodeValue(value)
	}
	return map[string]interface{}{
		"event":    event.Signature,
		"block":    event.BlockNumber,
		"tx":       event.TxHash.Hex(),
		"logIndex": event.LogIndex,
		"args":     args,
	}
}

func runEvents(cmd *cobra.Command, args []string) error {
	from, _ := cmd.Flags().GetInt64("from")
	to, _ := cmd.Flags().GetInt64("to")

	ctx := cmd.Context()
	chainAide, _, cleanup, err := connect(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	handle, err := loadHandle(ctx, cmd, chainAide)
	if err != nil {
		return err
	}
	event, found := handle.Event(args[0])
	if !found {
		return fmt.Errorf("contract has no event %v", args[0])
	}

	var toBlock *big.Int
	if to >= 0 {
		toBlock = big.NewInt(to)
	}
	decoded, err := event.Query(ctx, big.NewInt(from), toBlock)
	if err != nil {
		return err
	}

	output := make([]interface{}, len(decoded))
	for i, entry := range decoded {
		output[i] = formatEvent(entry)
	}
	return printJSON(cmd, output)
}
