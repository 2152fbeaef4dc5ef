package aide

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/chainaide/contract"
)

// ErrNoAccount is returned when a transaction needs signing but neither a key
// nor a default account is available.
var ErrNoAccount = errors.New("no signing account, set a default account or pass a private key")

// Sender fills, signs and broadcasts transactions. It implements
// contract.Submitter.
type Sender struct {
	client Client
	logger logrus.FieldLogger

	keyMutex   sync.RWMutex
	defaultKey *ecdsa.PrivateKey

	chainIdMutex sync.Mutex
	chainId      *big.Int
}

func NewSender(client Client, defaultKey *ecdsa.PrivateKey, logger logrus.FieldLogger) *Sender {
	return &Sender{
		client:     client,
		logger:     logger,
		defaultKey: defaultKey,
	}
}

func (s *Sender) DefaultKey() *ecdsa.PrivateKey {
	s.keyMutex.RLock()
	defer s.keyMutex.RUnlock()
	return s.defaultKey
}

func (s *Sender) SetDefaultKey(key *ecdsa.PrivateKey) {
	s.keyMutex.Lock()
	defer s.keyMutex.Unlock()
	s.defaultKey = key
}

// ChainID returns the chain id of the connected network. It is fetched once.
func (s *Sender) ChainID(ctx context.Context) (*big.Int, error) {
	s.chainIdMutex.Lock()
	defer s.chainIdMutex.Unlock()

	if s.chainId == nil {
		chainId, err := s.client.ChainID(ctx)
		if err != nil {
			return nil, err
		}
		s.chainId = chainId
	}
	return new(big.Int).Set(s.chainId), nil
}

// SignTransaction fills nonce, gas and fees of req where unset and signs it
// with key, or with the default account when key is nil.
func (s *Sender) SignTransaction(ctx context.Context, req *contract.TxRequest, key *ecdsa.PrivateKey) (*types.Transaction, error) {
	if key == nil {
		key = s.DefaultKey()
	}
	if key == nil {
		return nil, ErrNoAccount
	}
	req.From = crypto.PubkeyToAddress(key.PublicKey)

	chainId, err := s.ChainID(ctx)
	if err != nil {
		return nil, err
	}

	var nonce uint64
	if req.Nonce != nil {
		nonce = *req.Nonce
	} else {
		nonce, err = s.client.PendingNonceAt(ctx, req.From)
		if err != nil {
			return nil, err
		}
	}

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	gasPrice, gasFeeCap, gasTipCap, err := s.fees(ctx, req)
	if err != nil {
		return nil, err
	}

	gas := req.Gas
	if gas == 0 {
		gas, err = s.client.EstimateGas(ctx, ethereum.CallMsg{
			From:      req.From,
			To:        req.To,
			Value:     value,
			Data:      req.Data,
			GasPrice:  gasPrice,
			GasFeeCap: gasFeeCap,
			GasTipCap: gasTipCap,
		})
		if err != nil {
			return nil, err
		}
	}

	var txData types.TxData
	if gasPrice != nil {
		txData = &types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gas,
			To:       req.To,
			Value:    value,
			Data:     req.Data,
		}
	} else {
		txData = &types.DynamicFeeTx{
			ChainID:   chainId,
			Nonce:     nonce,
			GasTipCap: gasTipCap,
			GasFeeCap: gasFeeCap,
			Gas:       gas,
			To:        req.To,
			Value:     value,
			Data:      req.Data,
		}
	}

	tx, err := types.SignTx(types.NewTx(txData), types.LatestSignerForChainID(chainId), key)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"from":  req.From.Hex(),
		"nonce": nonce,
		"gas":   gas,
	}).Debugf("signed transaction %v", tx.Hash().Hex())

	return tx, nil
}

// fees returns either a legacy gas price or the dynamic fee caps.
func (s *Sender) fees(ctx context.Context, req *contract.TxRequest) (gasPrice, gasFeeCap, gasTipCap *big.Int, err error) {
	if req.GasPrice != nil {
		return req.GasPrice, nil, nil, nil
	}

	gasFeeCap = req.GasFeeCap
	gasTipCap = req.GasTipCap
	if gasFeeCap != nil && gasTipCap != nil {
		if gasFeeCap.Cmp(gasTipCap) < 0 {
			return nil, nil, nil, fmt.Errorf("maxFeePerGas (%v) < maxPriorityFeePerGas (%v)", gasFeeCap, gasTipCap)
		}
		return nil, gasFeeCap, gasTipCap, nil
	}

	header, err := s.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, nil, err
	}

	if header.BaseFee == nil {
		if gasFeeCap != nil || gasTipCap != nil {
			return nil, nil, nil, fmt.Errorf("dynamic fee fields given but the chain has no base fee")
		}
		gasPrice, err = s.client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, nil, nil, err
		}
		return gasPrice, nil, nil, nil
	}

	if gasTipCap == nil {
		gasTipCap, err = s.client.SuggestGasTipCap(ctx)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	if gasFeeCap == nil {
		gasFeeCap = new(big.Int).Add(gasTipCap, new(big.Int).Mul(header.BaseFee, big.NewInt(2)))
	}
	if gasFeeCap.Cmp(gasTipCap) < 0 {
		return nil, nil, nil, fmt.Errorf("maxFeePerGas (%v) < maxPriorityFeePerGas (%v)", gasFeeCap, gasTipCap)
	}

	return nil, gasFeeCap, gasTipCap, nil
}

func (s *Sender) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return s.client.SendTransaction(ctx, tx)
}

// senderOf recovers the signer of a signed transaction.
func senderOf(tx *types.Transaction) (common.Address, error) {
	return types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
}
