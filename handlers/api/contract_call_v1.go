package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"

	"github.com/ethpandaops/chainaide/contract"
)

// APIContractCallRequest is the POST body of a contract call
type APIContractCallRequest struct {
	Args  []string `json:"args"`
	Block *uint64  `json:"block,omitempty"`
}

type APIContractCallData struct {
	Address   string        `json:"address"`
	Function  string        `json:"function"`
	Signature string        `json:"signature"`
	Block     *uint64       `json:"block,omitempty"`
	Values    []interface{} `json:"values"`
}

// APIContractCallV1 runs a read-only function of a registered contract
// @Summary Call contract function
// @Description Calls a view or pure function via eth_call. Arguments are given as strings, arrays as json arrays.
// @Tags contracts
// @Accept json
// @Produce json
// @Param address path string true "Contract address"
// @Param function path string true "Function name"
// @Param args query []string false "Function arguments (GET only)"
// @Param block query int false "Block number, latest if empty (GET only)"
// @Param body body APIContractCallRequest false "Arguments for POST requests"
// @Success 200 {object} ApiResponse{data=APIContractCallData}
// @Failure 400 {object} ApiResponse
// @Failure 404 {object} ApiResponse
// @Router /v1/contracts/{address}/call/{function} [get]
// @Router /v1/contracts/{address}/call/{function} [post]
func (h *Handler) APIContractCallV1(w http.ResponseWriter, r *http.Request) {
	route := "/api/v1/contracts/{address}/call/{function}"

	request := &APIContractCallRequest{}
	switch r.Method {
	case "GET":
		query := r.URL.Query()
		request.Args = query["args"]
		if blockParam := query.Get("block"); blockParam != "" {
			block, err := parseUintParam(blockParam, 0, 0)
			if err != nil {
				sendBadRequestResponse(w, route, err.Error())
				return
			}
			request.Block = &block
		}
	case "POST":
		if err := json.NewDecoder(r.Body).Decode(request); err != nil {
			sendBadRequestResponse(w, route, fmt.Sprintf("invalid request body: %v", err))
			return
		}
	}

	deployment, contractAbi, ok := h.loadDeployment(w, r, route)
	if !ok {
		return
	}
	address := common.BytesToAddress(deployment.Address)
	functionName := mux.Vars(r)["function"]

	argsJson, err := json.Marshal(request.Args)
	if err != nil {
		sendBadRequestResponse(w, route, fmt.Sprintf("invalid arguments: %v", err))
		return
	}
	cacheKey := fmt.Sprintf("call:%v:%v:%v:%v:%s", h.chainId, address.Hex(), functionName, formatBlock(request.Block), argsJson)
	if h.cache != nil {
		if cached, err := h.cache.GetBytes(r.Context(), cacheKey); err == nil {
			sendRawOKResponse(w, route, cached)
			return
		}
	}

	handle, err := h.binder.New(contractAbi, nil, &address)
	if err != nil {
		sendServerErrorResponse(w, route, err.Error())
		return
	}

	call, found := handle.Call(functionName)
	if !found || call.Name() == contract.FallbackName || call.Name() == contract.ReceiveName {
		sendNotFoundResponse(w, route, fmt.Sprintf("function %v not found", functionName))
		return
	}
	if !call.ReadOnly() {
		sendBadRequestResponse(w, route, fmt.Sprintf("function %v is not read-only", functionName))
		return
	}

	method, args, err := matchOverload(call, request.Args)
	if err != nil {
		sendBadRequestResponse(w, route, err.Error())
		return
	}

	opts := &contract.CallOpts{}
	if request.Block != nil {
		opts.BlockNumber = new(big.Int).SetUint64(*request.Block)
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.callTimeout)
	defer cancel()

	result, err := call.InvokeWith(ctx, opts, args...)
	if err != nil {
		var bindErr *contract.BindingError
		if errors.As(err, &bindErr) || errors.Is(err, contract.ErrNoMatchingOverload) {
			sendBadRequestResponse(w, route, err.Error())
			return
		}
		h.logger.WithField("address", address.Hex()).Warnf("contract call %v failed: %v", functionName, err)
		sendErrorWithCodeResponse(w, route, fmt.Sprintf("call failed: %v", err), http.StatusBadGateway)
		return
	}

	data := &APIContractCallData{
		Address:   address.Hex(),
		Function:  functionName,
		Signature: method,
		Block:     request.Block,
		Values:    make([]interface{}, len(result.Values)),
	}
	for i, value := range result.Values {
		data.Values[i] = EncodeValue(value)
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		sendServerErrorResponse(w, route, "could not encode call result")
		return
	}
	if h.cache != nil {
		if err := h.cache.SetBytes(r.Context(), cacheKey, encoded, h.cacheTtl); err != nil {
			h.logger.Debugf("could not cache call result: %v", err)
		}
	}

	sendRawOKResponse(w, route, encoded)
}

// matchOverload parses raw string arguments against the overloads of call and
// returns the signature of the first overload that accepts them.
func matchOverload(call *contract.BoundCall, raw []string) (string, []interface{}, error) {
	var lastErr error
	for _, method := range call.Overloads() {
		args, err := contract.ParseArgs(method.Inputs, raw)
		if err != nil {
			lastErr = err
			continue
		}
		return method.Sig, args, nil
	}
	if lastErr == nil {
		lastErr = contract.ErrNoMatchingOverload
	}
	return "", nil, fmt.Errorf("invalid arguments for %v: %w", call.Name(), lastErr)
}

func formatBlock(block *uint64) string {
	if block == nil {
		return "latest"
	}
	return fmt.Sprintf("%v", *block)
}
