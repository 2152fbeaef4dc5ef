package contract

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

// DecodedEvent is a log entry decoded against an ABI event.
type DecodedEvent struct {
	Name        string
	Signature   string
	Address     common.Address
	TxHash      common.Hash
	BlockNumber uint64
	LogIndex    uint
	Args        map[string]interface{}
}

// BoundEvent decodes the logs of one ABI event name (all its overloads).
type BoundEvent struct {
	name      string
	overloads []abi.Event
	handle    *Handle
}

func (e *BoundEvent) Name() string {
	return e.name
}

// IDs returns the topic hashes of every overload of the event.
func (e *BoundEvent) IDs() []common.Hash {
	ids := make([]common.Hash, 0, len(e.overloads))
	for _, event := range e.overloads {
		if !event.Anonymous {
			ids = append(ids, event.ID)
		}
	}
	return ids
}

// ProcessReceipt decodes all logs of receipt that belong to this event.
func (e *BoundEvent) ProcessReceipt(receipt *types.Receipt) ([]*DecodedEvent, error) {
	if receipt == nil {
		return nil, nil
	}
	return e.DecodeLogs(receipt.Logs)
}

// DecodeLogs filters logs by event signature, and by contract address when the
// handle is bound, and decodes the matching entries. Entries that match the
// signature but fail to decode are skipped with a warning.
func (e *BoundEvent) DecodeLogs(logs []*types.Log) ([]*DecodedEvent, error) {
	decoded := []*DecodedEvent{}
	for _, log := range logs {
		if log == nil || len(log.Topics) == 0 {
			continue
		}
		if e.handle.address != nil && log.Address != *e.handle.address {
			continue
		}

		event := e.match(log.Topics[0])
		if event == nil {
			continue
		}

		args := map[string]interface{}{}
		if err := e.handle.bound.UnpackLogIntoMap(args, event.Name, *log); err != nil {
			e.handle.env.logger.WithFields(logrus.Fields{
				"event": event.Sig,
				"tx":    log.TxHash.Hex(),
				"index": log.Index,
			}).Warnf("could not decode event log: %v", err)
			continue
		}

		decoded = append(decoded, &DecodedEvent{
			Name:        e.name,
			Signature:   event.Sig,
			Address:     log.Address,
			TxHash:      log.TxHash,
			BlockNumber: log.BlockNumber,
			LogIndex:    log.Index,
			Args:        args,
		})
	}

	return decoded, nil
}

// Query fetches and decodes historical logs of this event in the given block
// range. A nil bound means the latest block.
func (e *BoundEvent) Query(ctx context.Context, fromBlock, toBlock *big.Int) ([]*DecodedEvent, error) {
	if e.handle.address == nil {
		return nil, ErrNotDeployed
	}

	logs, err := e.handle.env.backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: fromBlock,
		ToBlock:   toBlock,
		Addresses: []common.Address{*e.handle.address},
		Topics:    [][]common.Hash{e.IDs()},
	})
	if err != nil {
		return nil, err
	}

	logRefs := make([]*types.Log, len(logs))
	for i := range logs {
		logRefs[i] = &logs[i]
	}
	return e.DecodeLogs(logRefs)
}

func (e *BoundEvent) match(topic common.Hash) *abi.Event {
	for i := range e.overloads {
		if !e.overloads[i].Anonymous && e.overloads[i].ID == topic {
			return &e.overloads[i]
		}
	}
	return nil
}
