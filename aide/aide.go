package aide

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/chainaide/contract"
	"github.com/ethpandaops/chainaide/dbtypes"
	"github.com/ethpandaops/chainaide/waiter"
)

// Client is the execution layer access the aide needs. rpc.ExecutionClient
// implements it.
type Client interface {
	contract.Backend
	waiter.ChainReader

	ChainID(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Registry persists deployments. db.Registry implements it.
type Registry interface {
	RecordDeployment(ctx context.Context, deployment *dbtypes.ContractDeployment) error
}

type Options struct {
	PrivateKey     *ecdsa.PrivateKey   // default account, may be nil
	ResultMode     contract.ResultMode // default result mode, empty selects auto
	ReceiptTimeout time.Duration
	PollInterval   time.Duration
	Registry       Registry // optional
	Logger         logrus.FieldLogger
}

// Aide bundles the signing account, the result mode and the chain helpers
// with a contract binder that uses them.
type Aide struct {
	client   Client
	logger   logrus.FieldLogger
	sender   *Sender
	waiter   *waiter.Waiter
	binder   *contract.Binder
	registry Registry
}

// Account is a freshly generated secp256k1 key pair.
type Account struct {
	Address    common.Address
	PrivateKey *ecdsa.PrivateKey
}

type deploymentNameKey struct{}

// WithDeploymentName attaches the contract name recorded for deployments made
// with ctx.
func WithDeploymentName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, deploymentNameKey{}, name)
}

func New(client Client, opts Options) *Aide {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	a := &Aide{
		client:   client,
		logger:   logger.WithField("module", "aide"),
		registry: opts.Registry,
	}
	a.sender = NewSender(client, opts.PrivateKey, a.logger)
	a.waiter = waiter.New(client, opts.PollInterval, logger)
	a.binder = contract.NewBinder(client, a.sender, a.waiter, contract.Options{
		PrivateKey: opts.PrivateKey,
		ResultMode: opts.ResultMode,
	}, opts.ReceiptTimeout, logger)

	if a.registry != nil {
		a.binder.AddDeployHook(a.recordDeployment)
	}

	return a
}

// Contract returns the binder used to bind and deploy contracts.
func (a *Aide) Contract() *contract.Binder {
	return a.binder
}

func (a *Aide) Client() Client {
	return a.client
}

func (a *Aide) ChainID(ctx context.Context) (*big.Int, error) {
	return a.sender.ChainID(ctx)
}

// DefaultAccount returns the address of the default signing account.
func (a *Aide) DefaultAccount() (common.Address, bool) {
	key := a.sender.DefaultKey()
	if key == nil {
		return common.Address{}, false
	}
	return crypto.PubkeyToAddress(key.PublicKey), true
}

// SetDefaultAccount changes the signer used when no key is passed explicitly.
func (a *Aide) SetDefaultAccount(key *ecdsa.PrivateKey) {
	a.sender.SetDefaultKey(key)

	opts := a.binder.Options()
	opts.PrivateKey = key
	a.binder.SetOptions(opts)
}

func (a *Aide) ResultMode() contract.ResultMode {
	mode := a.binder.Options().ResultMode
	if mode == "" {
		mode = contract.ResultModeAuto
	}
	return mode
}

func (a *Aide) SetResultMode(mode contract.ResultMode) error {
	mode, err := contract.ParseResultMode(string(mode))
	if err != nil {
		return err
	}

	opts := a.binder.Options()
	opts.ResultMode = mode
	a.binder.SetOptions(opts)
	return nil
}

// SendTransaction signs and broadcasts req and returns its hash. The nonce is
// taken from the pending account nonce when req carries none.
func (a *Aide) SendTransaction(ctx context.Context, req *contract.TxRequest, key *ecdsa.PrivateKey) (common.Hash, error) {
	tx, err := a.binder.Executor().Submit(ctx, req, key)
	if err != nil {
		return common.Hash{}, err
	}
	return tx.Hash(), nil
}

// WaitForReceipt blocks until hash is mined. A zero timeout selects the
// configured receipt timeout.
func (a *Aide) WaitForReceipt(ctx context.Context, hash common.Hash, timeout time.Duration) (*types.Receipt, error) {
	if timeout == 0 {
		return a.binder.Executor().Wait(ctx, hash)
	}
	return a.waiter.WaitForReceipt(ctx, hash, timeout)
}

// WaitBlock blocks until the chain head passes block to. A zero timeout
// allows waiter.BlockTime per outstanding block.
func (a *Aide) WaitBlock(ctx context.Context, to uint64, timeout time.Duration) error {
	return a.waiter.WaitBlock(ctx, to, timeout)
}

func (a *Aide) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	return a.client.BalanceAt(ctx, account, nil)
}

// Transfer sends value to a plain account through the same write path and
// result modes as contract calls.
func (a *Aide) Transfer(ctx context.Context, to common.Address, value *big.Int, opts *contract.CallOpts) (*contract.Result, error) {
	if opts == nil {
		opts = &contract.CallOpts{}
	}

	req := &contract.TxRequest{
		To:    &to,
		Value: value,
	}
	if opts.Txn != nil {
		txn := *opts.Txn
		txn.Value = nil
		txn.Apply(req)
	}

	mode := opts.ResultMode
	if mode == "" {
		mode = a.ResultMode()
	}

	result, err := a.binder.Executor().Execute(ctx, req, opts.PrivateKey, mode)
	if err != nil {
		return nil, err
	}

	a.logger.WithFields(logrus.Fields{
		"to":    to.Hex(),
		"value": value,
		"hash":  result.Hash.Hex(),
	}).Infof("transfer submitted")
	return result, nil
}

// CreateAccount generates a new random account. Keys are not persisted.
func CreateAccount() (*Account, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return &Account{
		Address:    crypto.PubkeyToAddress(key.PublicKey),
		PrivateKey: key,
	}, nil
}

func (a *Aide) recordDeployment(ctx context.Context, handle *contract.Handle, tx *types.Transaction, receipt *types.Receipt) {
	address, _ := handle.Address()
	logger := a.logger.WithField("address", address.Hex())

	deployer, err := senderOf(tx)
	if err != nil {
		logger.Warnf("could not recover deployer: %v", err)
	}

	name, _ := ctx.Value(deploymentNameKey{}).(string)
	deployment := &dbtypes.ContractDeployment{
		Address:  address.Bytes(),
		Name:     name,
		ChainId:  tx.ChainId().Uint64(),
		TxHash:   tx.Hash().Bytes(),
		Deployer: deployer.Bytes(),
		Abi:      handle.ABI().JSON(),
		Created:  time.Now().Unix(),
	}
	if receipt.BlockNumber != nil {
		deployment.BlockNumber = receipt.BlockNumber.Uint64()
	}

	err = a.registry.RecordDeployment(ctx, deployment)
	if err != nil {
		logger.Warnf("could not record deployment: %v", err)
		return
	}
	logger.Debugf("recorded deployment")
}
