package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/chainaide/dbtypes"
	"github.com/ethpandaops/chainaide/types"
)

func setupTestDB(t *testing.T) {
	t.Helper()

	err := InitDB(&types.DatabaseConfig{
		Engine: "sqlite",
		Sqlite: types.SqliteDatabaseConfig{
			File: filepath.Join(t.TempDir(), "registry.sqlite"),
		},
	})
	require.NoError(t, err)
	t.Cleanup(CloseDB)

	require.NoError(t, ApplyEmbeddedDbSchema(-2))
}

func testDeployment(address string, name string, created int64) *dbtypes.ContractDeployment {
	return &dbtypes.ContractDeployment{
		Address:     common.HexToAddress(address).Bytes(),
		Name:        name,
		ChainId:     1337,
		TxHash:      common.HexToHash("0x01").Bytes(),
		BlockNumber: uint64(created),
		Deployer:    common.HexToAddress("0xdead").Bytes(),
		Abi:         `[]`,
		Created:     created,
	}
}

func TestDisabledRegistry(t *testing.T) {
	require.NoError(t, InitDB(&types.DatabaseConfig{Engine: "none"}))
	assert.False(t, IsEnabled())

	_, _, err := GetContractDeployments(context.Background(), nil, 0, 10)
	assert.ErrorIs(t, err, ErrNoDatabase)

	err = Registry{}.RecordDeployment(context.Background(), testDeployment("0x01", "Store", 1))
	assert.ErrorIs(t, err, ErrNoDatabase)

	assert.Error(t, InitDB(&types.DatabaseConfig{Engine: "mysql"}))
}

func TestContractDeployments(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	current, err := GetCurrentContract(ctx, 1337)
	require.NoError(t, err)
	assert.Nil(t, current)

	registry := Registry{}
	require.NoError(t, registry.RecordDeployment(ctx, testDeployment("0x01", "Store", 100)))
	require.NoError(t, registry.RecordDeployment(ctx, testDeployment("0x02", "Token", 200)))
	require.NoError(t, registry.RecordDeployment(ctx, testDeployment("0x03", "Store", 300)))

	deployments, total, err := GetContractDeployments(ctx, nil, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), total)
	require.Len(t, deployments, 2)
	assert.Equal(t, common.HexToAddress("0x03").Bytes(), deployments[0].Address)
	assert.Equal(t, common.HexToAddress("0x02").Bytes(), deployments[1].Address)

	deployments, total, err = GetContractDeployments(ctx, &dbtypes.ContractDeploymentFilter{Name: "Store", ChainId: 1337}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), total)
	require.Len(t, deployments, 1)
	assert.Equal(t, common.HexToAddress("0x01").Bytes(), deployments[0].Address)

	deployment, err := GetContractDeployment(ctx, 1337, common.HexToAddress("0x02").Bytes())
	require.NoError(t, err)
	require.NotNil(t, deployment)
	assert.Equal(t, "Token", deployment.Name)
	assert.Equal(t, uint64(200), deployment.BlockNumber)

	deployment, err = GetContractDeployment(ctx, 1337, common.HexToAddress("0x04").Bytes())
	require.NoError(t, err)
	assert.Nil(t, deployment)

	current, err = GetCurrentContract(ctx, 1337)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, common.HexToAddress("0x03"), current.Address)
	assert.Equal(t, "Store", current.Name)
}

func TestRecordDeploymentReplaces(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, Registry{}.RecordDeployment(ctx, testDeployment("0x01", "Store", 100)))
	require.NoError(t, Registry{}.RecordDeployment(ctx, testDeployment("0x01", "StoreV2", 150)))

	deployments, total, err := GetContractDeployments(ctx, nil, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), total)
	require.Len(t, deployments, 1)
	assert.Equal(t, "StoreV2", deployments[0].Name)

	err = RunDBTransaction(func(tx *sqlx.Tx) error {
		return DeleteContractDeployment(ctx, 1337, common.HexToAddress("0x01").Bytes(), tx)
	})
	require.NoError(t, err)

	_, total, err = GetContractDeployments(ctx, nil, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), total)
}

func TestDeploymentsPerChain(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	address := common.HexToAddress("0x01")

	onChainA := testDeployment("0x01", "OnChainA", 100)
	onChainA.ChainId = 1
	onChainB := testDeployment("0x01", "OnChainB", 200)
	onChainB.ChainId = 5
	require.NoError(t, Registry{}.RecordDeployment(ctx, onChainA))
	require.NoError(t, Registry{}.RecordDeployment(ctx, onChainB))

	_, total, err := GetContractDeployments(ctx, nil, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), total)

	deployment, err := GetContractDeployment(ctx, 1, address.Bytes())
	require.NoError(t, err)
	require.NotNil(t, deployment)
	assert.Equal(t, "OnChainA", deployment.Name)
	assert.Equal(t, uint64(1), deployment.ChainId)

	deployment, err = GetContractDeployment(ctx, 5, address.Bytes())
	require.NoError(t, err)
	require.NotNil(t, deployment)
	assert.Equal(t, "OnChainB", deployment.Name)

	deployment, err = GetContractDeployment(ctx, 1337, address.Bytes())
	require.NoError(t, err)
	assert.Nil(t, deployment)

	current, err := GetCurrentContract(ctx, 5)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "OnChainB", current.Name)

	current, err = GetCurrentContract(ctx, 1)
	assert.ErrorIs(t, err, ErrChainMismatch)
	assert.Nil(t, current)
}
