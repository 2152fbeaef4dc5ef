package api

import (
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"

	"github.com/ethpandaops/chainaide/contract"
	"github.com/ethpandaops/chainaide/db"
	"github.com/ethpandaops/chainaide/dbtypes"
)

// APIContractDeployment is a registered contract deployment
type APIContractDeployment struct {
	Address     string `json:"address"`
	Name        string `json:"name"`
	ChainId     uint64 `json:"chain_id"`
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
	Deployer    string `json:"deployer"`
	Created     int64  `json:"created"`
}

type APIContractsData struct {
	Contracts []*APIContractDeployment `json:"contracts"`
	Total     uint64                   `json:"total"`
	Offset    uint64                   `json:"offset"`
}

type APIContractFunction struct {
	Name       string   `json:"name"`
	Mutability string   `json:"mutability"`
	Signatures []string `json:"signatures"`
}

type APIContractData struct {
	*APIContractDeployment
	Functions   []*APIContractFunction `json:"functions"`
	Events      []string               `json:"events"`
	HasFallback bool                   `json:"has_fallback"`
	HasReceive  bool                   `json:"has_receive"`
}

func buildDeployment(deployment *dbtypes.ContractDeployment) *APIContractDeployment {
	return &APIContractDeployment{
		Address:     common.BytesToAddress(deployment.Address).Hex(),
		Name:        deployment.Name,
		ChainId:     deployment.ChainId,
		TxHash:      hexutil.Encode(deployment.TxHash),
		BlockNumber: deployment.BlockNumber,
		Deployer:    common.BytesToAddress(deployment.Deployer).Hex(),
		Created:     deployment.Created,
	}
}

// APIContractsV1 lists registered deployments, newest first
// @Summary List deployed contracts
// @Tags contracts
// @Produce json
// @Param name query string false "Filter by contract name"
// @Param chain_id query int false "Filter by chain id"
// @Param offset query int false "Offset (default 0)"
// @Param limit query int false "Page size (default 50, max 100)"
// @Success 200 {object} ApiResponse{data=APIContractsData}
// @Router /v1/contracts [get]
func (h *Handler) APIContractsV1(w http.ResponseWriter, r *http.Request) {
	route := "/api/v1/contracts"
	query := r.URL.Query()

	offset, err := parseUintParam(query.Get("offset"), 0, 0)
	if err != nil {
		sendBadRequestResponse(w, route, err.Error())
		return
	}
	limit, err := parseUintParam(query.Get("limit"), 50, 100)
	if err != nil {
		sendBadRequestResponse(w, route, err.Error())
		return
	}
	chainId, err := parseUintParam(query.Get("chain_id"), 0, 0)
	if err != nil {
		sendBadRequestResponse(w, route, err.Error())
		return
	}

	filter := &dbtypes.ContractDeploymentFilter{
		ChainId: chainId,
		Name:    query.Get("name"),
	}
	deployments, total, err := db.GetContractDeployments(r.Context(), filter, offset, uint32(limit))
	if err != nil {
		h.sendRegistryError(w, route, err)
		return
	}

	data := &APIContractsData{
		Contracts: make([]*APIContractDeployment, 0, len(deployments)),
		Total:     total,
		Offset:    offset,
	}
	for _, deployment := range deployments {
		data.Contracts = append(data.Contracts, buildDeployment(deployment))
	}

	SendOKResponse(w, route, data)
}

// APIContractV1 returns a registered deployment with its callable interface
// @Summary Get contract
// @Tags contracts
// @Produce json
// @Param address path string true "Contract address"
// @Success 200 {object} ApiResponse{data=APIContractData}
// @Failure 404 {object} ApiResponse
// @Router /v1/contracts/{address} [get]
func (h *Handler) APIContractV1(w http.ResponseWriter, r *http.Request) {
	route := "/api/v1/contracts/{address}"

	deployment, contractAbi, ok := h.loadDeployment(w, r, route)
	if !ok {
		return
	}

	data := &APIContractData{
		APIContractDeployment: buildDeployment(deployment),
		Functions:             []*APIContractFunction{},
		Events:                contractAbi.EventNames(),
		HasFallback:           contractAbi.HasFallback(),
		HasReceive:            contractAbi.HasReceive(),
	}
	for _, name := range contractAbi.FunctionNames() {
		overloads := contractAbi.Overloads(name)
		function := &APIContractFunction{
			Name:       name,
			Mutability: contract.MethodMutability(overloads[0]).String(),
			Signatures: make([]string, len(overloads)),
		}
		for i, method := range overloads {
			function.Signatures[i] = method.Sig
		}
		data.Functions = append(data.Functions, function)
	}

	SendOKResponse(w, route, data)
}

// loadDeployment resolves the {address} route variable to a deployment on the
// connected chain and its parsed abi. It sends the error response itself.
func (h *Handler) loadDeployment(w http.ResponseWriter, r *http.Request, route string) (*dbtypes.ContractDeployment, *contract.ABI, bool) {
	address, err := parseAddressParam(mux.Vars(r)["address"])
	if err != nil {
		sendBadRequestResponse(w, route, err.Error())
		return nil, nil, false
	}

	deployment, err := db.GetContractDeployment(r.Context(), h.chainId, address.Bytes())
	if err != nil {
		h.sendRegistryError(w, route, err)
		return nil, nil, false
	}
	if deployment == nil {
		sendNotFoundResponse(w, route, "contract not found")
		return nil, nil, false
	}

	contractAbi, err := contract.ParseABI(deployment.Abi)
	if err != nil {
		h.logger.WithField("address", address.Hex()).Errorf("invalid abi in registry: %v", err)
		sendServerErrorResponse(w, route, "invalid contract abi")
		return nil, nil, false
	}

	return deployment, contractAbi, true
}

func (h *Handler) sendRegistryError(w http.ResponseWriter, route string, err error) {
	if errors.Is(err, db.ErrNoDatabase) {
		sendErrorWithCodeResponse(w, route, "registry is disabled", http.StatusServiceUnavailable)
		return
	}
	h.logger.Errorf("registry error on %v: %v", route, err)
	sendServerErrorResponse(w, route, "could not load contracts")
}
