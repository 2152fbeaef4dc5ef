package contract

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// DefaultReceiptTimeout bounds the receipt wait of deployments and awaited calls.
const DefaultReceiptTimeout = 20 * time.Second

// ResultMode selects what a state-changing call returns.
type ResultMode string

const (
	// ResultModeAuto waits for the receipt when a ReceiptWaiter is available and
	// falls back to the transaction hash otherwise.
	ResultModeAuto ResultMode = "auto"
	// ResultModeTxn signs the transaction and returns it without broadcasting.
	ResultModeTxn ResultMode = "txn"
	// ResultModeHash broadcasts and returns the transaction hash.
	ResultModeHash ResultMode = "hash"
	// ResultModeReceipt broadcasts and blocks until the receipt is available.
	ResultModeReceipt ResultMode = "receipt"
)

// ParseResultMode validates a result mode name. The empty string maps to auto.
func ParseResultMode(name string) (ResultMode, error) {
	switch ResultMode(name) {
	case "", ResultModeAuto:
		return ResultModeAuto, nil
	case ResultModeTxn, ResultModeHash, ResultModeReceipt:
		return ResultMode(name), nil
	}
	return "", fmt.Errorf("unknown result mode: %v", name)
}

// Result is the outcome of a bound call. Read calls fill Values, state-changing
// calls fill Tx, Hash and Receipt according to Mode.
type Result struct {
	Mode    ResultMode
	Values  []interface{}
	Tx      *types.Transaction
	Hash    common.Hash
	Receipt *types.Receipt
}

// Submitter signs and broadcasts transactions.
type Submitter interface {
	// SignTransaction completes the missing fields of req (nonce, gas, fees) and
	// signs it. A nil key selects the submitter's default account.
	SignTransaction(ctx context.Context, req *TxRequest, key *ecdsa.PrivateKey) (*types.Transaction, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// ReceiptWaiter blocks until a transaction is mined or the timeout expires.
type ReceiptWaiter interface {
	WaitForReceipt(ctx context.Context, hash common.Hash, timeout time.Duration) (*types.Receipt, error)
}

// Executor runs the write path shared by bound calls, fallback invocations,
// deployments and plain transfers.
type Executor struct {
	Submitter      Submitter
	Waiter         ReceiptWaiter
	ReceiptTimeout time.Duration
}

// Submit signs and broadcasts req and returns the transaction hash.
func (e *Executor) Submit(ctx context.Context, req *TxRequest, key *ecdsa.PrivateKey) (*types.Transaction, error) {
	tx, err := e.Submitter.SignTransaction(ctx, req, key)
	if err != nil {
		return nil, err
	}

	if err := e.Submitter.SendTransaction(ctx, tx); err != nil {
		return nil, err
	}

	return tx, nil
}

// Wait waits for the receipt of a submitted transaction.
func (e *Executor) Wait(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	timeout := e.ReceiptTimeout
	if timeout == 0 {
		timeout = DefaultReceiptTimeout
	}
	return e.Waiter.WaitForReceipt(ctx, hash, timeout)
}

// Execute runs req through the write path and shapes the result by mode.
func (e *Executor) Execute(ctx context.Context, req *TxRequest, key *ecdsa.PrivateKey, mode ResultMode) (*Result, error) {
	if mode == "" || mode == ResultModeAuto {
		mode = ResultModeHash
		if e.Waiter != nil {
			mode = ResultModeReceipt
		}
	}

	result := &Result{
		Mode: mode,
	}

	if mode == ResultModeTxn {
		tx, err := e.Submitter.SignTransaction(ctx, req, key)
		if err != nil {
			return nil, err
		}
		result.Tx = tx
		result.Hash = tx.Hash()
		return result, nil
	}

	tx, err := e.Submit(ctx, req, key)
	if err != nil {
		return nil, err
	}
	result.Tx = tx
	result.Hash = tx.Hash()

	if mode == ResultModeHash {
		return result, nil
	}

	if e.Waiter == nil {
		return nil, fmt.Errorf("result mode %v requires a receipt waiter", mode)
	}

	receipt, err := e.Wait(ctx, result.Hash)
	if err != nil {
		return nil, err
	}
	result.Receipt = receipt

	return result, nil
}
