package dbtypes

type AideState struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

// ContractDeployment is a contract deployed through chainaide.
type ContractDeployment struct {
	Address     []byte `db:"address"`
	Name        string `db:"name"`
	ChainId     uint64 `db:"chain_id"`
	TxHash      []byte `db:"tx_hash"`
	BlockNumber uint64 `db:"block_number"`
	Deployer    []byte `db:"deployer"`
	Abi         string `db:"abi"`
	Created     int64  `db:"created"`
}

type ContractDeploymentFilter struct {
	ChainId uint64
	Name    string
}
