package contract

import (
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mitchellh/mapstructure"
)

// TxRequest describes a transaction that is being assembled for a deployment
// or a state-changing call. Optional fields left nil / zero are filled in by
// the Submitter before signing.
type TxRequest struct {
	From      common.Address
	To        *common.Address // nil for contract creation
	Data      []byte
	Value     *big.Int
	Gas       uint64
	GasPrice  *big.Int
	GasFeeCap *big.Int
	GasTipCap *big.Int
	Nonce     *uint64
}

// TxnOverrides holds caller supplied transaction fields.
type TxnOverrides struct {
	Value     *big.Int `mapstructure:"value"`
	Gas       uint64   `mapstructure:"gas"`
	GasPrice  *big.Int `mapstructure:"gasPrice"`
	GasFeeCap *big.Int `mapstructure:"maxFeePerGas"`
	GasTipCap *big.Int `mapstructure:"maxPriorityFeePerGas"`
	Nonce     *uint64  `mapstructure:"nonce"`
}

// TxnOverridesFromMap decodes a loosely typed field map, as used by scripts and
// the CLI, into TxnOverrides. Quantities may be numbers, decimal strings or 0x
// prefixed hex strings.
func TxnOverridesFromMap(fields map[string]interface{}) (*TxnOverrides, error) {
	overrides := &TxnOverrides{}
	if len(fields) == 0 {
		return overrides, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       bigIntDecodeHook,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           overrides,
	})
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(fields); err != nil {
		return nil, fmt.Errorf("invalid transaction fields: %w", err)
	}

	return overrides, nil
}

var (
	bigIntType    = reflect.TypeOf(big.Int{})
	bigIntPtrType = reflect.TypeOf(&big.Int{})
)

func bigIntDecodeHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != bigIntType && to != bigIntPtrType {
		return data, nil
	}

	switch value := data.(type) {
	case *big.Int:
		return value, nil
	case big.Int:
		return &value, nil
	case string:
		parsed, ok := new(big.Int).SetString(strings.TrimSpace(value), 0)
		if !ok {
			return nil, fmt.Errorf("invalid quantity: %v", value)
		}
		return parsed, nil
	case int:
		return big.NewInt(int64(value)), nil
	case int64:
		return big.NewInt(value), nil
	case uint64:
		return new(big.Int).SetUint64(value), nil
	case float64:
		parsed, accuracy := big.NewFloat(value).Int(nil)
		if accuracy != big.Exact {
			return nil, fmt.Errorf("quantity is not an integer: %v", value)
		}
		return parsed, nil
	}

	return nil, fmt.Errorf("unsupported quantity type %v", from)
}

// Apply merges the overrides into a request. Zero valued overrides keep the
// request fields untouched.
func (o *TxnOverrides) Apply(req *TxRequest) {
	if o == nil {
		return
	}
	if o.Value != nil {
		req.Value = new(big.Int).Set(o.Value)
	}
	if o.Gas != 0 {
		req.Gas = o.Gas
	}
	if o.GasPrice != nil {
		req.GasPrice = new(big.Int).Set(o.GasPrice)
	}
	if o.GasFeeCap != nil {
		req.GasFeeCap = new(big.Int).Set(o.GasFeeCap)
	}
	if o.GasTipCap != nil {
		req.GasTipCap = new(big.Int).Set(o.GasTipCap)
	}
	if o.Nonce != nil {
		nonce := *o.Nonce
		req.Nonce = &nonce
	}
}
