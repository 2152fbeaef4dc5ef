package contract

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethpandaops/chainaide/waiter"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeploy(t *testing.T) {
	env := newTestEnv(true)
	env.waiter.receipt = deployReceipt(storeAddress)
	contractAbi := MustParseABI(storeABI)

	output, err := contractAbi.Methods["getValue"].Outputs.Pack(big.NewInt(42))
	require.NoError(t, err)
	env.backend.setOutput(contractAbi.Methods["getValue"].ID, output)

	handle, err := env.binder.Deploy(context.Background(), contractAbi, storeBytecode, nil, nil, big.NewInt(42))
	require.NoError(t, err)

	address, ok := handle.Address()
	require.True(t, ok)
	assert.Equal(t, storeAddress, address)
	assert.Equal(t, storeBytecode, handle.Bytecode())

	// bytecode followed by the packed constructor arguments
	ctorArgs, err := contractAbi.Constructor.Inputs.Pack(big.NewInt(42))
	require.NoError(t, err)
	require.Len(t, env.submitter.signed, 1)
	req := env.submitter.signed[0]
	assert.Nil(t, req.To)
	assert.Equal(t, append(append([]byte{}, storeBytecode...), ctorArgs...), req.Data)

	require.Len(t, env.submitter.sent, 1)
	require.Len(t, env.waiter.waited, 1)
	assert.Equal(t, env.submitter.sent[0].Hash(), env.waiter.waited[0])
	assert.Equal(t, DefaultReceiptTimeout, env.waiter.timeouts[0])

	result, err := handle.Invoke(context.Background(), "getValue")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(42), result.Values[0])

	current := env.binder.Current()
	require.NotNil(t, current)
	assert.NotSame(t, handle, current)
	currentAddr, _ := current.Address()
	assert.Equal(t, storeAddress, currentAddr)
}

func TestDeployTxnOverrides(t *testing.T) {
	env := newTestEnv(true)
	env.waiter.receipt = deployReceipt(storeAddress)

	nonce := uint64(9)
	txn := &TxnOverrides{Gas: 500000, Nonce: &nonce}

	_, err := env.binder.Deploy(context.Background(), MustParseABI(storeABI), storeBytecode, txn, nil, big.NewInt(1))
	require.NoError(t, err)

	req := env.submitter.signed[0]
	assert.Equal(t, uint64(500000), req.Gas)
	require.NotNil(t, req.Nonce)
	assert.Equal(t, uint64(9), *req.Nonce)
	assert.Equal(t, uint64(9), env.submitter.sent[0].Nonce())

	_, err = env.binder.Deploy(context.Background(), MustParseABI(storeABI), storeBytecode, &TxnOverrides{Value: big.NewInt(1)}, nil, big.NewInt(1))
	assert.ErrorIs(t, err, ErrNotPayable)
}

func TestDeployWithoutContractAddress(t *testing.T) {
	env := newTestEnv(true)
	contractAbi := MustParseABI(storeABI)

	previous, err := env.binder.New(contractAbi, storeBytecode, &storeAddress)
	require.NoError(t, err)

	tests := []struct {
		name    string
		receipt func(common.Hash) *types.Receipt
	}{
		{
			name: "NoAddress",
			receipt: func(hash common.Hash) *types.Receipt {
				return &types.Receipt{TxHash: hash, Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(3)}
			},
		},
		{
			name: "Reverted",
			receipt: func(hash common.Hash) *types.Receipt {
				return &types.Receipt{
					TxHash:          hash,
					Status:          types.ReceiptStatusFailed,
					ContractAddress: common.HexToAddress("0x0000000000000000000000000000000000000bad"),
					BlockNumber:     big.NewInt(3),
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.waiter.receipt = tt.receipt

			handle, err := env.binder.Deploy(context.Background(), contractAbi, storeBytecode, nil, nil, big.NewInt(1))
			assert.Nil(t, handle)

			deployErr, ok := IsDeploymentError(err)
			require.True(t, ok)
			require.NotNil(t, deployErr.Receipt)
			assert.Equal(t, big.NewInt(3), deployErr.Receipt.BlockNumber)

			currentAddr, _ := env.binder.Current().Address()
			previousAddr, _ := previous.Address()
			assert.Equal(t, previousAddr, currentAddr)
		})
	}
}

func TestDeployTimeout(t *testing.T) {
	env := newTestEnv(true)
	timeoutErr := &waiter.TimeoutError{Hash: common.HexToHash("0x01"), Timeout: 20 * time.Second}
	env.waiter.err = timeoutErr
	// a receipt would be a DeploymentError, the timeout must win
	env.waiter.receipt = func(hash common.Hash) *types.Receipt {
		return &types.Receipt{TxHash: hash}
	}

	handle, err := env.binder.Deploy(context.Background(), MustParseABI(storeABI), storeBytecode, nil, nil, big.NewInt(1))
	assert.Nil(t, handle)
	assert.Same(t, timeoutErr, err)
	assert.True(t, waiter.IsTimeout(err))

	_, isDeployErr := IsDeploymentError(err)
	assert.False(t, isDeployErr)
	assert.Nil(t, env.binder.Current())
}

func TestDeployErrors(t *testing.T) {
	t.Run("EmptyBytecode", func(t *testing.T) {
		env := newTestEnv(true)
		_, err := env.binder.Deploy(context.Background(), MustParseABI(storeABI), nil, nil, nil)
		_, ok := IsDeploymentError(err)
		assert.True(t, ok)
		assert.Empty(t, env.submitter.signed)
	})

	t.Run("BadConstructorArgs", func(t *testing.T) {
		env := newTestEnv(true)
		_, err := env.binder.Deploy(context.Background(), MustParseABI(storeABI), storeBytecode, nil, nil, "not a number")
		assert.ErrorContains(t, err, "invalid constructor arguments")
		assert.Empty(t, env.submitter.signed)
	})

	t.Run("SendErrorUnchanged", func(t *testing.T) {
		env := newTestEnv(true)
		sendErr := errors.New("nonce too low")
		env.submitter.sendErr = sendErr

		_, err := env.binder.Deploy(context.Background(), MustParseABI(storeABI), storeBytecode, nil, nil, big.NewInt(1))
		assert.Same(t, sendErr, err)
		assert.Empty(t, env.waiter.waited)
	})

	t.Run("NoWaiter", func(t *testing.T) {
		env := newTestEnv(false)
		_, err := env.binder.Deploy(context.Background(), MustParseABI(storeABI), storeBytecode, nil, nil, big.NewInt(1))
		_, ok := IsDeploymentError(err)
		assert.True(t, ok)
	})
}

func TestDeployReplaceWarning(t *testing.T) {
	env := newTestEnv(true)
	contractAbi := MustParseABI(storeABI)

	env.waiter.receipt = deployReceipt(storeAddress)
	_, err := env.binder.Deploy(context.Background(), contractAbi, storeBytecode, nil, nil, big.NewInt(1))
	require.NoError(t, err)

	for _, entry := range env.hook.AllEntries() {
		assert.NotEqual(t, logrus.WarnLevel, entry.Level)
	}

	second := common.HexToAddress("0xABC0000000000000000000000000000000000002")
	env.waiter.receipt = deployReceipt(second)
	handle, err := env.binder.Deploy(context.Background(), contractAbi, storeBytecode, nil, nil, big.NewInt(2))
	require.NoError(t, err)

	warnings := []string{}
	for _, entry := range env.hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warnings = append(warnings, entry.Message)
		}
	}
	assert.Equal(t, []string{"contract " + storeAddress.Hex() + " already exists, it will be replaced"}, warnings)

	address, _ := handle.Address()
	assert.Equal(t, second, address)
}

func TestDeployCustomSigner(t *testing.T) {
	env := newTestEnv(true)
	env.waiter.receipt = deployReceipt(storeAddress)
	other := newTestEnv(true).key

	_, err := env.binder.Deploy(context.Background(), MustParseABI(storeABI), storeBytecode, nil, other, big.NewInt(1))
	require.NoError(t, err)
	require.Len(t, env.submitter.usedKeys, 1)
	assert.Same(t, other, env.submitter.usedKeys[0])
}

func TestDeployHook(t *testing.T) {
	env := newTestEnv(true)
	env.waiter.receipt = deployReceipt(storeAddress)
	contractAbi := MustParseABI(storeABI)

	var hooked []common.Address
	env.binder.AddDeployHook(func(ctx context.Context, handle *Handle, tx *types.Transaction, receipt *types.Receipt) {
		address, _ := handle.Address()
		hooked = append(hooked, address)
		assert.Equal(t, env.submitter.sent[0].Hash(), tx.Hash())
		assert.Equal(t, receipt.ContractAddress, address)
	})

	_, err := env.binder.Deploy(context.Background(), contractAbi, storeBytecode, nil, nil, big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, []common.Address{storeAddress}, hooked)

	// failed deployments are not reported
	env.waiter.receipt = func(hash common.Hash) *types.Receipt {
		receipt := deployReceipt(storeAddress)(hash)
		receipt.Status = types.ReceiptStatusFailed
		return receipt
	}
	_, err = env.binder.Deploy(context.Background(), contractAbi, storeBytecode, nil, nil, big.NewInt(1))
	require.Error(t, err)
	assert.Len(t, hooked, 1)
}
