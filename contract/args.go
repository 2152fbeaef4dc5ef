package contract

import (
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ParseArgs converts command line strings into values of the given ABI
// argument types. Arrays and slices are given as JSON arrays.
func ParseArgs(inputs abi.Arguments, raw []string) ([]interface{}, error) {
	if len(inputs) != len(raw) {
		return nil, fmt.Errorf("expected %v arguments, got %v", len(inputs), len(raw))
	}

	args := make([]interface{}, len(raw))
	for i, input := range inputs {
		value, err := parseArg(input.Type, raw[i])
		if err != nil {
			name := input.Name
			if name == "" {
				name = strconv.Itoa(i)
			}
			return nil, fmt.Errorf("argument %v (%v): %w", name, input.Type.String(), err)
		}
		args[i] = value.Interface()
	}

	return args, nil
}

func parseArg(t abi.Type, raw string) (reflect.Value, error) {
	raw = strings.TrimSpace(raw)

	switch t.T {
	case abi.BoolTy:
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(value), nil

	case abi.StringTy:
		return reflect.ValueOf(raw), nil

	case abi.AddressTy:
		if !common.IsHexAddress(raw) {
			return reflect.Value{}, fmt.Errorf("invalid address: %v", raw)
		}
		return reflect.ValueOf(common.HexToAddress(raw)), nil

	case abi.IntTy, abi.UintTy:
		value, ok := new(big.Int).SetString(raw, 0)
		if !ok {
			return reflect.Value{}, fmt.Errorf("invalid integer: %v", raw)
		}
		if t.T == abi.UintTy && value.Sign() < 0 {
			return reflect.Value{}, fmt.Errorf("negative value for unsigned type: %v", raw)
		}
		if !intFits(t, value) {
			return reflect.Value{}, fmt.Errorf("value %v overflows %v", raw, t.String())
		}
		return intValue(t.GetType(), value), nil

	case abi.BytesTy:
		value, err := hexutil.Decode(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(value), nil

	case abi.FixedBytesTy:
		value, err := hexutil.Decode(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		if len(value) > t.Size {
			return reflect.Value{}, fmt.Errorf("expected at most %v bytes, got %v", t.Size, len(value))
		}
		array := reflect.New(t.GetType()).Elem()
		reflect.Copy(array, reflect.ValueOf(value))
		return array, nil

	case abi.SliceTy, abi.ArrayTy:
		var elements []json.RawMessage
		if err := json.Unmarshal([]byte(raw), &elements); err != nil {
			return reflect.Value{}, fmt.Errorf("expected a json array: %w", err)
		}
		if t.T == abi.ArrayTy && len(elements) != t.Size {
			return reflect.Value{}, fmt.Errorf("expected %v elements, got %v", t.Size, len(elements))
		}

		var list reflect.Value
		if t.T == abi.SliceTy {
			list = reflect.MakeSlice(t.GetType(), len(elements), len(elements))
		} else {
			list = reflect.New(t.GetType()).Elem()
		}
		for i, element := range elements {
			value, err := parseArg(*t.Elem, jsonScalar(element))
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %v: %w", i, err)
			}
			list.Index(i).Set(value)
		}
		return list, nil
	}

	return reflect.Value{}, fmt.Errorf("unsupported argument type %v", t.String())
}

func intFits(t abi.Type, value *big.Int) bool {
	if t.T == abi.UintTy {
		return value.BitLen() <= t.Size
	}
	limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1))
	if value.Sign() < 0 {
		return new(big.Int).Neg(value).Cmp(limit) <= 0
	}
	return value.Cmp(limit) < 0
}

// intValue converts value to the go type geth uses for the integer size.
func intValue(goType reflect.Type, value *big.Int) reflect.Value {
	if goType == reflect.TypeOf(&big.Int{}) {
		return reflect.ValueOf(value)
	}

	result := reflect.New(goType).Elem()
	switch goType.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		result.SetInt(value.Int64())
	default:
		result.SetUint(value.Uint64())
	}
	return result
}

// jsonScalar turns a json element back into the plain string form parseArg
// expects, nested arrays are kept as json.
func jsonScalar(element json.RawMessage) string {
	var str string
	if err := json.Unmarshal(element, &str); err == nil {
		return str
	}
	return string(element)
}
