package api

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"reflect"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"
)

type ApiResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data"`
}

func parseAddressParam(param string) (common.Address, error) {
	if !common.IsHexAddress(param) {
		return common.Address{}, fmt.Errorf("invalid address: %v", param)
	}
	return common.HexToAddress(param), nil
}

func parseUintParam(param string, defaultValue uint64, maxValue uint64) (uint64, error) {
	if param == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseUint(param, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %v", param)
	}
	if maxValue > 0 && value > maxValue {
		value = maxValue
	}
	return value, nil
}

// EncodeValue converts decoded abi values into json friendly values. Integers
// become decimal strings, addresses and byte arrays become hex strings.
func EncodeValue(value interface{}) interface{} {
	switch v := value.(type) {
	case nil:
		return nil
	case *big.Int:
		return v.String()
	case common.Address:
		return v.Hex()
	case common.Hash:
		return v.Hex()
	case []byte:
		return hexutil.Encode(v)
	case bool, string:
		return v
	case uint8, uint16, uint32, uint64, int8, int16, int32, int64:
		return fmt.Sprintf("%v", v)
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			bytes := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(bytes), rv)
			return hexutil.Encode(bytes)
		}
		fallthrough
	case reflect.Slice:
		values := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			values[i] = EncodeValue(rv.Index(i).Interface())
		}
		return values
	case reflect.Struct:
		fields := make(map[string]interface{}, rv.NumField())
		for i := 0; i < rv.NumField(); i++ {
			field := rv.Type().Field(i)
			if !field.IsExported() {
				continue
			}
			fields[field.Name] = EncodeValue(rv.Field(i).Interface())
		}
		return fields
	case reflect.Ptr:
		if rv.IsNil() {
			return nil
		}
		return EncodeValue(rv.Elem().Interface())
	}

	return value
}

func sendBadRequestResponse(w http.ResponseWriter, route, message string) {
	sendErrorWithCodeResponse(w, route, message, http.StatusBadRequest)
}

func sendNotFoundResponse(w http.ResponseWriter, route, message string) {
	sendErrorWithCodeResponse(w, route, message, http.StatusNotFound)
}

func sendServerErrorResponse(w http.ResponseWriter, route, message string) {
	sendErrorWithCodeResponse(w, route, message, http.StatusInternalServerError)
}

func sendErrorWithCodeResponse(w http.ResponseWriter, route, message string, errorcode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(errorcode)
	j := json.NewEncoder(w)
	response := &ApiResponse{}
	response.Status = "ERROR: " + message
	err := j.Encode(response)

	if err != nil {
		logrus.Errorf("error serializing json error for API %v route: %v", route, err)
	}
}

func SendOKResponse(w http.ResponseWriter, route string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	j := json.NewEncoder(w)
	response := &ApiResponse{}
	response.Status = "OK"
	response.Data = data

	err := j.Encode(response)
	if err != nil {
		logrus.Errorf("error serializing json data for API %v route: %v", route, err)
	}
}

// sendRawOKResponse sends pre-encoded json data, as stored in the call cache.
func sendRawOKResponse(w http.ResponseWriter, route string, data []byte) {
	SendOKResponse(w, route, json.RawMessage(data))
}
