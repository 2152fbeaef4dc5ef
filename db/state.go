package db

import (
	"context"
	"encoding/json"

	"github.com/ethpandaops/chainaide/dbtypes"
	"github.com/jmoiron/sqlx"
)

// GetAideState decodes the state entry stored under key into returnValue.
func GetAideState(ctx context.Context, key string, returnValue interface{}) (interface{}, error) {
	if ReaderDb == nil {
		return nil, ErrNoDatabase
	}

	entry := dbtypes.AideState{}
	err := ReaderDb.GetContext(ctx, &entry, `SELECT key, value FROM aide_state WHERE key = $1`, key)
	if err != nil {
		return nil, err
	}
	err = json.Unmarshal([]byte(entry.Value), returnValue)
	if err != nil {
		return nil, err
	}
	return returnValue, nil
}

func SetAideState(ctx context.Context, tx *sqlx.Tx, key string, value interface{}) error {
	valueMarshal, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, EngineQuery(map[dbtypes.DBEngineType]string{
		dbtypes.DBEnginePgsql: `
			INSERT INTO aide_state (key, value)
			VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET
				value = excluded.value`,
		dbtypes.DBEngineSqlite: `
			INSERT OR REPLACE INTO aide_state (key, value)
			VALUES ($1, $2)`,
	}), key, string(valueMarshal))
	if err != nil {
		return err
	}
	return nil
}
