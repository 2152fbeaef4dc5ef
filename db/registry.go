package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jmoiron/sqlx"

	"github.com/ethpandaops/chainaide/dbtypes"
)

const currentContractStateKey = "current_contract"

// ErrChainMismatch is returned when the current contract was recorded on
// another chain than the connected one.
var ErrChainMismatch = errors.New("current contract belongs to another chain")

// CurrentContract is the most recent deployment, used by commands that
// operate on a contract without an explicit address.
type CurrentContract struct {
	Name    string         `json:"name"`
	Address common.Address `json:"address"`
	ChainId uint64         `json:"chainId"`
}

// Registry records deployments in the registry database.
type Registry struct{}

func (Registry) RecordDeployment(ctx context.Context, deployment *dbtypes.ContractDeployment) error {
	return RunDBTransaction(func(tx *sqlx.Tx) error {
		err := InsertContractDeployment(ctx, deployment, tx)
		if err != nil {
			return err
		}

		return SetAideState(ctx, tx, currentContractStateKey, &CurrentContract{
			Name:    deployment.Name,
			Address: common.BytesToAddress(deployment.Address),
			ChainId: deployment.ChainId,
		})
	})
}

// GetCurrentContract returns the most recently recorded deployment, or nil.
// It fails with ErrChainMismatch if that deployment is not on chainId.
func GetCurrentContract(ctx context.Context, chainId uint64) (*CurrentContract, error) {
	current := &CurrentContract{}
	_, err := GetAideState(ctx, currentContractStateKey, current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if current.ChainId != chainId {
		return nil, fmt.Errorf("%w: %v is on chain %v, connected to chain %v", ErrChainMismatch, current.Address.Hex(), current.ChainId, chainId)
	}
	return current, nil
}
