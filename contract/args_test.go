package contract

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustArguments(t *testing.T, types ...string) abi.Arguments {
	args := make(abi.Arguments, len(types))
	for i, typeName := range types {
		argType, err := abi.NewType(typeName, "", nil)
		require.NoError(t, err)
		args[i] = abi.Argument{Type: argType}
	}
	return args
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		types   []string
		raw     []string
		expect  []interface{}
		wantErr string
	}{
		{
			name:   "scalars",
			types:  []string{"uint256", "bool", "string", "address"},
			raw:    []string{"42", "true", "hello", "0x1111111111111111111111111111111111111111"},
			expect: []interface{}{big.NewInt(42), true, "hello", common.HexToAddress("0x1111111111111111111111111111111111111111")},
		},
		{
			name:   "small integers",
			types:  []string{"uint8", "int32", "uint64"},
			raw:    []string{"255", "-7", "0x10"},
			expect: []interface{}{uint8(255), int32(-7), uint64(16)},
		},
		{
			name:   "bytes",
			types:  []string{"bytes", "bytes4"},
			raw:    []string{"0xdeadbeef", "0x01020304"},
			expect: []interface{}{[]byte{0xde, 0xad, 0xbe, 0xef}, [4]byte{1, 2, 3, 4}},
		},
		{
			name:   "arrays",
			types:  []string{"uint256[]", "address[2]"},
			raw:    []string{`[1, "2"]`, `["0x1111111111111111111111111111111111111111", "0x2222222222222222222222222222222222222222"]`},
			expect: []interface{}{[]*big.Int{big.NewInt(1), big.NewInt(2)}, [2]common.Address{common.HexToAddress("0x1111111111111111111111111111111111111111"), common.HexToAddress("0x2222222222222222222222222222222222222222")}},
		},
		{name: "count mismatch", types: []string{"uint256"}, raw: []string{}, wantErr: "expected 1 arguments"},
		{name: "overflow", types: []string{"uint8"}, raw: []string{"256"}, wantErr: "overflows"},
		{name: "signed overflow", types: []string{"int8"}, raw: []string{"128"}, wantErr: "overflows"},
		{name: "negative unsigned", types: []string{"uint256"}, raw: []string{"-1"}, wantErr: "negative"},
		{name: "bad address", types: []string{"address"}, raw: []string{"0x12"}, wantErr: "invalid address"},
		{name: "bad array", types: []string{"uint256[]"}, raw: []string{"1,2"}, wantErr: "json array"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := ParseArgs(mustArguments(t, tt.types...), tt.raw)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expect, args)

			// parsed values must be accepted by the abi packer
			_, err = mustArguments(t, tt.types...).Pack(args...)
			assert.NoError(t, err)
		})
	}
}

func TestTxnOverridesFromMap(t *testing.T) {
	overrides, err := TxnOverridesFromMap(map[string]interface{}{
		"value":                "0x10",
		"gas":                  "21000",
		"maxFeePerGas":         float64(2000000000),
		"maxPriorityFeePerGas": 1,
		"nonce":                7,
	})
	require.NoError(t, err)

	assert.Equal(t, big.NewInt(16), overrides.Value)
	assert.Equal(t, uint64(21000), overrides.Gas)
	assert.Equal(t, big.NewInt(2000000000), overrides.GasFeeCap)
	assert.Equal(t, big.NewInt(1), overrides.GasTipCap)
	require.NotNil(t, overrides.Nonce)
	assert.Equal(t, uint64(7), *overrides.Nonce)
	assert.Nil(t, overrides.GasPrice)

	req := &TxRequest{}
	overrides.Apply(req)
	assert.Equal(t, big.NewInt(16), req.Value)
	assert.Equal(t, uint64(21000), req.Gas)

	_, err = TxnOverridesFromMap(map[string]interface{}{"unknown": 1})
	assert.Error(t, err)

	_, err = TxnOverridesFromMap(map[string]interface{}{"value": "lots"})
	assert.Error(t, err)

	empty, err := TxnOverridesFromMap(nil)
	require.NoError(t, err)
	assert.Equal(t, &TxnOverrides{}, empty)
}

func TestParseResultMode(t *testing.T) {
	tests := []struct {
		input   string
		expect  ResultMode
		wantErr bool
	}{
		{input: "", expect: ResultModeAuto},
		{input: "auto", expect: ResultModeAuto},
		{input: "txn", expect: ResultModeTxn},
		{input: "hash", expect: ResultModeHash},
		{input: "receipt", expect: ResultModeReceipt},
		{input: "block", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			mode, err := ParseResultMode(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expect, mode)
		})
	}
}
