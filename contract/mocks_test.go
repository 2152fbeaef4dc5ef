package contract

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

const storeABI = `[
	{"type":"constructor","stateMutability":"nonpayable","inputs":[{"name":"initial","type":"uint256"}]},
	{"type":"function","name":"getValue","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"setValue","stateMutability":"nonpayable","inputs":[{"name":"value","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"deposit","stateMutability":"payable","inputs":[],"outputs":[]},
	{"type":"function","name":"set","stateMutability":"nonpayable","inputs":[{"name":"value","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"set","stateMutability":"nonpayable","inputs":[{"name":"label","type":"string"}],"outputs":[]},
	{"type":"function","name":"owner","stateMutability":"pure","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"event","name":"ValueChanged","anonymous":false,"inputs":[{"name":"sender","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false}]},
	{"type":"fallback","stateMutability":"nonpayable"}
]`

const mixedABI = `[
	{"type":"function","name":"mixed","stateMutability":"view","inputs":[{"name":"a","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"mixed","stateMutability":"nonpayable","inputs":[{"name":"a","type":"string"}],"outputs":[]}
]`

const pingABI = `[{"type":"function","name":"ping","stateMutability":"nonpayable","inputs":[],"outputs":[]}]`

var (
	storeBytecode = common.FromHex("0x6080604052348015600f57600080fd5b50")
	storeAddress  = common.HexToAddress("0xABC0000000000000000000000000000000000001")
)

type contractCall struct {
	msg   ethereum.CallMsg
	block *big.Int
}

type mockBackend struct {
	mutex   sync.Mutex
	outputs map[string][]byte // keyed by 4 byte selector hex
	calls   []contractCall
	logs    []types.Log
	queries []ethereum.FilterQuery
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		outputs: map[string][]byte{},
	}
}

func (b *mockBackend) setOutput(selector []byte, output []byte) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.outputs[common.Bytes2Hex(selector)] = output
}

func (b *mockBackend) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x60, 0x80}, nil
}

func (b *mockBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.calls = append(b.calls, contractCall{msg: call, block: blockNumber})
	if len(call.Data) < 4 {
		return nil, errors.New("missing selector")
	}
	output, ok := b.outputs[common.Bytes2Hex(call.Data[:4])]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return output, nil
}

func (b *mockBackend) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.queries = append(b.queries, query)
	return b.logs, nil
}

func (b *mockBackend) SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return nil, errors.New("subscriptions not supported")
}

type mockSubmitter struct {
	mutex    sync.Mutex
	nonce    uint64
	signed   []*TxRequest
	sent     []*types.Transaction
	signErr  error
	sendErr  error
	usedKeys []*ecdsa.PrivateKey
}

func (s *mockSubmitter) SignTransaction(ctx context.Context, req *TxRequest, key *ecdsa.PrivateKey) (*types.Transaction, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.signErr != nil {
		return nil, s.signErr
	}

	nonce := s.nonce
	if req.Nonce != nil {
		nonce = *req.Nonce
	}
	s.nonce++
	s.signed = append(s.signed, req)
	s.usedKeys = append(s.usedKeys, key)

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       req.To,
		Value:    value,
		Gas:      100000,
		GasPrice: big.NewInt(1),
		Data:     req.Data,
	}), nil
}

func (s *mockSubmitter) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, tx)
	return nil
}

type mockWaiter struct {
	mutex    sync.Mutex
	receipt  func(hash common.Hash) *types.Receipt
	err      error
	waited   []common.Hash
	timeouts []time.Duration
}

func (w *mockWaiter) WaitForReceipt(ctx context.Context, hash common.Hash, timeout time.Duration) (*types.Receipt, error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	w.waited = append(w.waited, hash)
	w.timeouts = append(w.timeouts, timeout)
	if w.err != nil {
		return nil, w.err
	}
	if w.receipt != nil {
		return w.receipt(hash), nil
	}
	return &types.Receipt{
		TxHash:      hash,
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(1),
	}, nil
}

func deployReceipt(address common.Address) func(common.Hash) *types.Receipt {
	return func(hash common.Hash) *types.Receipt {
		return &types.Receipt{
			TxHash:          hash,
			Status:          types.ReceiptStatusSuccessful,
			ContractAddress: address,
			BlockNumber:     big.NewInt(7),
		}
	}
}

type testEnv struct {
	backend   *mockBackend
	submitter *mockSubmitter
	waiter    *mockWaiter
	binder    *Binder
	hook      *test.Hook
	key       *ecdsa.PrivateKey
}

func newTestEnv(withWaiter bool) *testEnv {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	key, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}

	env := &testEnv{
		backend:   newMockBackend(),
		submitter: &mockSubmitter{},
		waiter:    &mockWaiter{},
		hook:      hook,
		key:       key,
	}

	var waiter ReceiptWaiter
	if withWaiter {
		waiter = env.waiter
	}
	env.binder = NewBinder(env.backend, env.submitter, waiter, Options{PrivateKey: key}, 0, logger)
	return env
}
