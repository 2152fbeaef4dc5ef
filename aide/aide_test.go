package aide

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/chainaide/contract"
	"github.com/ethpandaops/chainaide/dbtypes"
)

const gwei = 1000000000

const counterABI = `[
	{"type":"constructor","inputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"count","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"increment","inputs":[],"outputs":[],"stateMutability":"nonpayable"}
]`

var contractAddress = common.HexToAddress("0x00000000000000000000000000000000000c0de1")

type fakeClient struct {
	mutex sync.Mutex

	chainId     *big.Int
	baseFee     *big.Int
	tipCap      *big.Int
	gasPrice    *big.Int
	nonce       uint64
	gasEstimate uint64
	blockNumber uint64

	chainIdCalls  int
	nonceCalls    int
	estimateCalls int
	sent          []*types.Transaction
	estimates     []ethereum.CallMsg
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		chainId:     big.NewInt(1337),
		baseFee:     big.NewInt(10 * gwei),
		tipCap:      big.NewInt(1 * gwei),
		gasPrice:    big.NewInt(5 * gwei),
		nonce:       5,
		gasEstimate: 21000,
		blockNumber: 100,
	}
}

func (c *fakeClient) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x01}, nil
}

func (c *fakeClient) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return common.LeftPadBytes(big.NewInt(3).Bytes(), 32), nil
}

func (c *fakeClient) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (c *fakeClient) SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return event.NewSubscription(func(quit <-chan struct{}) error {
		<-quit
		return nil
	}), nil
}

func (c *fakeClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for _, tx := range c.sent {
		if tx.Hash() != txHash {
			continue
		}
		receipt := &types.Receipt{
			TxHash:      txHash,
			Status:      types.ReceiptStatusSuccessful,
			BlockNumber: new(big.Int).SetUint64(c.blockNumber),
		}
		if tx.To() == nil {
			receipt.ContractAddress = contractAddress
		}
		return receipt, nil
	}
	return nil, ethereum.NotFound
}

func (c *fakeClient) BlockNumber(ctx context.Context) (uint64, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.blockNumber++
	return c.blockNumber, nil
}

func (c *fakeClient) ChainID(ctx context.Context) (*big.Int, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.chainIdCalls++
	return c.chainId, nil
}

func (c *fakeClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return &types.Header{
		Number:  new(big.Int).SetUint64(c.blockNumber),
		BaseFee: c.baseFee,
	}, nil
}

func (c *fakeClient) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return big.NewInt(1000), nil
}

func (c *fakeClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.nonceCalls++
	return c.nonce, nil
}

func (c *fakeClient) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.estimateCalls++
	c.estimates = append(c.estimates, call)
	return c.gasEstimate, nil
}

func (c *fakeClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return c.gasPrice, nil
}

func (c *fakeClient) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return c.tipCap, nil
}

func (c *fakeClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.sent = append(c.sent, tx)
	return nil
}

type fakeRegistry struct {
	deployments []*dbtypes.ContractDeployment
}

func (r *fakeRegistry) RecordDeployment(ctx context.Context, deployment *dbtypes.ContractDeployment) error {
	r.deployments = append(r.deployments, deployment)
	return nil
}

func newTestAide(t *testing.T, client *fakeClient, registry Registry) (*Aide, *ecdsa.PrivateKey, *test.Hook) {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	return New(client, Options{
		PrivateKey:   key,
		PollInterval: 10 * time.Millisecond,
		Registry:     registry,
		Logger:       logger,
	}), key, hook
}

func TestSignDynamicFee(t *testing.T) {
	client := newFakeClient()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sender := NewSender(client, key, logrus.StandardLogger())

	to := common.HexToAddress("0x1234")
	req := &contract.TxRequest{To: &to, Value: big.NewInt(7)}
	tx, err := sender.SignTransaction(context.Background(), req, nil)
	require.NoError(t, err)

	assert.Equal(t, uint8(types.DynamicFeeTxType), tx.Type())
	assert.Equal(t, uint64(5), tx.Nonce())
	assert.Equal(t, uint64(21000), tx.Gas())
	assert.Equal(t, big.NewInt(1*gwei), tx.GasTipCap())
	assert.Equal(t, big.NewInt(21*gwei), tx.GasFeeCap())
	assert.Equal(t, big.NewInt(1337), tx.ChainId())
	assert.Equal(t, big.NewInt(7), tx.Value())

	from, err := senderOf(tx)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), from)
	assert.Equal(t, from, req.From)

	require.Len(t, client.estimates, 1)
	assert.Equal(t, from, client.estimates[0].From)
	assert.Equal(t, &to, client.estimates[0].To)

	// the chain id is fetched once
	_, err = sender.SignTransaction(context.Background(), &contract.TxRequest{To: &to}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, client.chainIdCalls)
}

func TestSignLegacyChain(t *testing.T) {
	client := newFakeClient()
	client.baseFee = nil
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sender := NewSender(client, nil, logrus.StandardLogger())

	to := common.HexToAddress("0x1234")
	tx, err := sender.SignTransaction(context.Background(), &contract.TxRequest{To: &to}, key)
	require.NoError(t, err)
	assert.Equal(t, uint8(types.LegacyTxType), tx.Type())
	assert.Equal(t, big.NewInt(5*gwei), tx.GasPrice())

	_, err = sender.SignTransaction(context.Background(), &contract.TxRequest{To: &to, GasTipCap: big.NewInt(1)}, key)
	assert.ErrorContains(t, err, "no base fee")
}

func TestSignWithOverrides(t *testing.T) {
	client := newFakeClient()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sender := NewSender(client, key, logrus.StandardLogger())

	nonce := uint64(42)
	to := common.HexToAddress("0x1234")
	tx, err := sender.SignTransaction(context.Background(), &contract.TxRequest{
		To:       &to,
		Gas:      50000,
		GasPrice: big.NewInt(3 * gwei),
		Nonce:    &nonce,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, uint8(types.LegacyTxType), tx.Type())
	assert.Equal(t, uint64(42), tx.Nonce())
	assert.Equal(t, uint64(50000), tx.Gas())
	assert.Equal(t, big.NewInt(3*gwei), tx.GasPrice())
	assert.Zero(t, client.nonceCalls)
	assert.Zero(t, client.estimateCalls)

	_, err = sender.SignTransaction(context.Background(), &contract.TxRequest{
		To:        &to,
		GasFeeCap: big.NewInt(1),
		GasTipCap: big.NewInt(2),
	}, nil)
	assert.ErrorContains(t, err, "maxFeePerGas")
}

func TestSignWithoutAccount(t *testing.T) {
	sender := NewSender(newFakeClient(), nil, logrus.StandardLogger())
	_, err := sender.SignTransaction(context.Background(), &contract.TxRequest{}, nil)
	assert.ErrorIs(t, err, ErrNoAccount)
}

func TestSendTransaction(t *testing.T) {
	client := newFakeClient()
	aide, _, _ := newTestAide(t, client, nil)

	to := common.HexToAddress("0x1234")
	hash, err := aide.SendTransaction(context.Background(), &contract.TxRequest{To: &to}, nil)
	require.NoError(t, err)
	require.Len(t, client.sent, 1)
	assert.Equal(t, client.sent[0].Hash(), hash)
	assert.Equal(t, uint64(5), client.sent[0].Nonce())

	receipt, err := aide.WaitForReceipt(context.Background(), hash, 0)
	require.NoError(t, err)
	assert.Equal(t, hash, receipt.TxHash)
}

func TestTransfer(t *testing.T) {
	tests := []struct {
		name       string
		mode       contract.ResultMode
		expectMode contract.ResultMode
		sent       int
	}{
		{name: "Auto", mode: "", expectMode: contract.ResultModeReceipt, sent: 1},
		{name: "Txn", mode: contract.ResultModeTxn, expectMode: contract.ResultModeTxn, sent: 0},
		{name: "Hash", mode: contract.ResultModeHash, expectMode: contract.ResultModeHash, sent: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newFakeClient()
			aide, _, _ := newTestAide(t, client, nil)

			to := common.HexToAddress("0x1234")
			result, err := aide.Transfer(context.Background(), to, big.NewInt(100), &contract.CallOpts{
				ResultMode: tt.mode,
				Txn:        &contract.TxnOverrides{Gas: 30000, Value: big.NewInt(1)},
			})
			require.NoError(t, err)

			assert.Equal(t, tt.expectMode, result.Mode)
			require.NotNil(t, result.Tx)
			assert.Equal(t, big.NewInt(100), result.Tx.Value())
			assert.Equal(t, uint64(30000), result.Tx.Gas())
			assert.Equal(t, &to, result.Tx.To())
			assert.Len(t, client.sent, tt.sent)
			if tt.expectMode == contract.ResultModeReceipt {
				require.NotNil(t, result.Receipt)
				assert.Equal(t, result.Hash, result.Receipt.TxHash)
			}
		})
	}
}

func TestResultModeAndAccount(t *testing.T) {
	aide, key, _ := newTestAide(t, newFakeClient(), nil)
	assert.Equal(t, contract.ResultModeAuto, aide.ResultMode())

	require.NoError(t, aide.SetResultMode(contract.ResultModeHash))
	assert.Equal(t, contract.ResultModeHash, aide.ResultMode())
	assert.Error(t, aide.SetResultMode("block"))
	assert.Equal(t, contract.ResultModeHash, aide.ResultMode())

	address, ok := aide.DefaultAccount()
	require.True(t, ok)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), address)

	account, err := CreateAccount()
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(account.PrivateKey.PublicKey), account.Address)

	aide.SetDefaultAccount(account.PrivateKey)
	address, _ = aide.DefaultAccount()
	assert.Equal(t, account.Address, address)
	assert.Same(t, account.PrivateKey, aide.Contract().Options().PrivateKey)
}

func TestDeployRecordsDeployment(t *testing.T) {
	client := newFakeClient()
	registry := &fakeRegistry{}
	aide, key, _ := newTestAide(t, client, registry)

	ctx := WithDeploymentName(context.Background(), "Counter")
	handle, err := aide.Contract().Deploy(ctx, contract.MustParseABI(counterABI), []byte{0x60, 0x80}, nil, nil)
	require.NoError(t, err)

	address, ok := handle.Address()
	require.True(t, ok)
	assert.Equal(t, contractAddress, address)

	require.Len(t, registry.deployments, 1)
	deployment := registry.deployments[0]
	assert.Equal(t, "Counter", deployment.Name)
	assert.Equal(t, contractAddress.Bytes(), deployment.Address)
	assert.Equal(t, uint64(1337), deployment.ChainId)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey).Bytes(), deployment.Deployer)
	assert.Equal(t, client.sent[0].Hash().Bytes(), deployment.TxHash)
	assert.Equal(t, counterABI, deployment.Abi)

	result, err := handle.Invoke(context.Background(), "count")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(3), result.Values[0])

	result, err = handle.Invoke(context.Background(), "increment")
	require.NoError(t, err)
	assert.Equal(t, contract.ResultModeReceipt, result.Mode)
	assert.Len(t, client.sent, 2)
}

func TestWaitBlock(t *testing.T) {
	client := newFakeClient()
	aide, _, hook := newTestAide(t, client, nil)

	require.NoError(t, aide.WaitBlock(context.Background(), 102, 0))
	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, "waiting block: 103 -> 102", last.Message)
}
