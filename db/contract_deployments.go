package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethpandaops/chainaide/dbtypes"
	"github.com/jmoiron/sqlx"
)

// ErrNoDatabase is returned when the registry database is disabled.
var ErrNoDatabase = errors.New("no registry database configured")

func InsertContractDeployment(ctx context.Context, deployment *dbtypes.ContractDeployment, tx *sqlx.Tx) error {
	_, err := tx.ExecContext(ctx, EngineQuery(map[dbtypes.DBEngineType]string{
		dbtypes.DBEnginePgsql: `
			INSERT INTO contract_deployments (
				address, name, chain_id, tx_hash, block_number, deployer, abi, created
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (chain_id, address) DO UPDATE SET
				name = excluded.name,
				tx_hash = excluded.tx_hash,
				block_number = excluded.block_number,
				deployer = excluded.deployer,
				abi = excluded.abi,
				created = excluded.created`,
		dbtypes.DBEngineSqlite: `
			INSERT OR REPLACE INTO contract_deployments (
				address, name, chain_id, tx_hash, block_number, deployer, abi, created
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
	}),
		deployment.Address, deployment.Name, deployment.ChainId, deployment.TxHash,
		deployment.BlockNumber, deployment.Deployer, deployment.Abi, deployment.Created)
	if err != nil {
		return err
	}
	return nil
}

// GetContractDeployment returns the deployment at address on chainId, or nil.
func GetContractDeployment(ctx context.Context, chainId uint64, address []byte) (*dbtypes.ContractDeployment, error) {
	if ReaderDb == nil {
		return nil, ErrNoDatabase
	}

	deployments := []*dbtypes.ContractDeployment{}
	err := ReaderDb.SelectContext(ctx, &deployments, `
		SELECT address, name, chain_id, tx_hash, block_number, deployer, abi, created
		FROM contract_deployments
		WHERE chain_id = $1 AND address = $2
		LIMIT 1`, chainId, address)
	if err != nil {
		return nil, fmt.Errorf("error fetching contract deployment: %w", err)
	}
	if len(deployments) == 0 {
		return nil, nil
	}
	return deployments[0], nil
}

// GetContractDeployments returns a page of deployments, newest first, and the
// total number of deployments matching filter.
func GetContractDeployments(ctx context.Context, filter *dbtypes.ContractDeploymentFilter, offset uint64, limit uint32) ([]*dbtypes.ContractDeployment, uint64, error) {
	if ReaderDb == nil {
		return nil, 0, ErrNoDatabase
	}

	var whereSql strings.Builder
	args := []any{}
	if filter != nil {
		conditions := []string{}
		if filter.ChainId != 0 {
			args = append(args, filter.ChainId)
			conditions = append(conditions, fmt.Sprintf("chain_id = $%v", len(args)))
		}
		if filter.Name != "" {
			args = append(args, filter.Name)
			conditions = append(conditions, fmt.Sprintf("name = $%v", len(args)))
		}
		if len(conditions) > 0 {
			fmt.Fprintf(&whereSql, " WHERE %v", strings.Join(conditions, " AND "))
		}
	}

	var total uint64
	err := ReaderDb.GetContext(ctx, &total, `SELECT COUNT(*) FROM contract_deployments`+whereSql.String(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("error counting contract deployments: %w", err)
	}

	pageArgs := append(args, limit, offset)
	deployments := []*dbtypes.ContractDeployment{}
	err = ReaderDb.SelectContext(ctx, &deployments, fmt.Sprintf(`
		SELECT address, name, chain_id, tx_hash, block_number, deployer, abi, created
		FROM contract_deployments%v
		ORDER BY created DESC, block_number DESC
		LIMIT $%v OFFSET $%v`, whereSql.String(), len(args)+1, len(args)+2), pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("error fetching contract deployments: %w", err)
	}

	return deployments, total, nil
}

func DeleteContractDeployment(ctx context.Context, chainId uint64, address []byte, tx *sqlx.Tx) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM contract_deployments WHERE chain_id = $1 AND address = $2`, chainId, address)
	return err
}
