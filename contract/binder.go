package contract

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
)

// Binder binds contract ABIs to handles and deploys new contracts. It keeps
// the handle produced by its last successful New or Deploy as current.
type Binder struct {
	env *env

	currentMutex sync.Mutex
	current      *Handle

	hooksMutex  sync.Mutex
	deployHooks []DeployHook
}

// DeployHook is notified about every successful deployment.
type DeployHook func(ctx context.Context, handle *Handle, tx *types.Transaction, receipt *types.Receipt)

// NewBinder creates a binder. waiter may be nil, in which case state-changing
// calls return transaction hashes and Deploy fails. A zero receiptTimeout
// selects DefaultReceiptTimeout.
func NewBinder(backend Backend, submitter Submitter, waiter ReceiptWaiter, opts Options, receiptTimeout time.Duration, logger logrus.FieldLogger) *Binder {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if receiptTimeout == 0 {
		receiptTimeout = DefaultReceiptTimeout
	}

	return &Binder{
		env: &env{
			backend: backend,
			executor: &Executor{
				Submitter:      submitter,
				Waiter:         waiter,
				ReceiptTimeout: receiptTimeout,
			},
			opts:   opts,
			logger: logger.WithField("module", "contract"),
		},
	}
}

// Executor returns the write path shared by all handles of this binder.
func (b *Binder) Executor() *Executor {
	return b.env.executor
}

// AddDeployHook registers fn to be called after each successful Deploy.
func (b *Binder) AddDeployHook(fn DeployHook) {
	b.hooksMutex.Lock()
	defer b.hooksMutex.Unlock()
	b.deployHooks = append(b.deployHooks, fn)
}

// Options returns the defaults applied to calls of every handle.
func (b *Binder) Options() Options {
	return b.env.options()
}

// SetOptions replaces the defaults of every handle created by this binder,
// including handles created before the change.
func (b *Binder) SetOptions(opts Options) {
	b.env.optsMutex.Lock()
	defer b.env.optsMutex.Unlock()
	b.env.opts = opts
}

// Current returns a copy of the last bound or deployed handle, or nil.
func (b *Binder) Current() *Handle {
	b.currentMutex.Lock()
	defer b.currentMutex.Unlock()

	if b.current == nil {
		return nil
	}
	return b.current.Clone()
}

// New binds contractAbi to an optional bytecode and address and returns an
// independent handle.
func (b *Binder) New(contractAbi *ABI, bytecode []byte, address *common.Address) (*Handle, error) {
	handle, err := newHandle(b.env, contractAbi, bytecode, address)
	if err != nil {
		return nil, err
	}

	b.currentMutex.Lock()
	b.current = handle
	b.currentMutex.Unlock()

	return handle.Clone(), nil
}

// Deploy creates a new contract instance and binds it. Constructor arguments
// are packed after the bytecode. It waits for the receipt within the binder's
// receipt timeout. On any failure the current handle is left untouched.
func (b *Binder) Deploy(ctx context.Context, contractAbi *ABI, bytecode []byte, txn *TxnOverrides, key *ecdsa.PrivateKey, args ...interface{}) (*Handle, error) {
	if contractAbi == nil {
		return nil, &BindingError{Reason: "abi is required"}
	}
	if len(bytecode) == 0 {
		return nil, &DeploymentError{Reason: "bytecode is required"}
	}
	if b.env.executor.Waiter == nil {
		return nil, &DeploymentError{Reason: "no receipt waiter configured"}
	}

	b.currentMutex.Lock()
	if b.current != nil && b.current.address != nil {
		b.env.logger.Warnf("contract %v already exists, it will be replaced", b.current.address.Hex())
	}
	b.currentMutex.Unlock()

	input, err := contractAbi.Pack("", args...)
	if err != nil {
		return nil, &DeploymentError{Reason: fmt.Sprintf("invalid constructor arguments: %v", err)}
	}

	req := &TxRequest{
		Data: append(common.CopyBytes(bytecode), input...),
	}
	txn.Apply(req)
	if req.Value != nil && req.Value.Sign() > 0 && MethodMutability(contractAbi.Constructor) != MutabilityPayable {
		return nil, fmt.Errorf("%w: constructor", ErrNotPayable)
	}

	key = b.env.signerKey(key)
	if key != nil {
		req.From = crypto.PubkeyToAddress(key.PublicKey)
	}

	tx, err := b.env.executor.Submit(ctx, req, key)
	if err != nil {
		deploymentCounter.WithLabelValues("failed").Inc()
		return nil, err
	}

	logger := b.env.logger.WithField("tx", tx.Hash().Hex())
	logger.Infof("submitted contract deployment")

	receipt, err := b.env.executor.Wait(ctx, tx.Hash())
	if err != nil {
		deploymentCounter.WithLabelValues("failed").Inc()
		return nil, err
	}

	if receipt.ContractAddress == (common.Address{}) {
		deploymentCounter.WithLabelValues("failed").Inc()
		return nil, &DeploymentError{Reason: "receipt has no contract address", Receipt: receipt}
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		deploymentCounter.WithLabelValues("failed").Inc()
		return nil, &DeploymentError{Reason: "deployment transaction reverted", Receipt: receipt}
	}

	handle, err := newHandle(b.env, contractAbi, bytecode, &receipt.ContractAddress)
	if err != nil {
		return nil, err
	}

	b.currentMutex.Lock()
	b.current = handle
	b.currentMutex.Unlock()

	deploymentCounter.WithLabelValues("success").Inc()
	logger.WithField("address", receipt.ContractAddress.Hex()).Infof("contract deployed in block %v", receipt.BlockNumber)

	b.hooksMutex.Lock()
	hooks := b.deployHooks
	b.hooksMutex.Unlock()
	for _, hook := range hooks {
		hook(ctx, handle.Clone(), tx, receipt)
	}

	return handle.Clone(), nil
}

// IsDeploymentError reports whether err is a DeploymentError and returns it.
func IsDeploymentError(err error) (*DeploymentError, bool) {
	var deployErr *DeploymentError
	if errors.As(err, &deployErr) {
		return deployErr, true
	}
	return nil, false
}
