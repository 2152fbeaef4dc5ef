package waiter

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultPollInterval is the delay between two receipt or block polls.
	DefaultPollInterval = 1 * time.Second

	// DefaultPollRetryCount is the number of subsequent failed polls after which
	// a wait gives up and returns the last error.
	DefaultPollRetryCount = 3

	// BlockTime is the wait budget per outstanding block when WaitBlock is
	// called without timeout.
	BlockTime = 3 * time.Second

	// progressLogInterval is the number of polls between two progress logs.
	progressLogInterval = 10
)

// ChainReader is the RPC surface the waiter polls.
type ChainReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Waiter polls the chain until a transaction is mined or a block is reached.
type Waiter struct {
	client       ChainReader
	pollInterval time.Duration
	retryCount   int
	logger       logrus.FieldLogger
}

// New creates a polling waiter. A zero pollInterval selects DefaultPollInterval.
func New(client ChainReader, pollInterval time.Duration, logger logrus.FieldLogger) *Waiter {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Waiter{
		client:       client,
		pollInterval: pollInterval,
		retryCount:   DefaultPollRetryCount,
		logger:       logger.WithField("module", "waiter"),
	}
}

// WaitForReceipt polls for the receipt of hash. It returns a TimeoutError when
// timeout expires first, or the context error when ctx is cancelled.
func (w *Waiter) WaitForReceipt(ctx context.Context, hash common.Hash, timeout time.Duration) (*types.Receipt, error) {
	startTime := time.Now()
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	failedPolls := 0
	for {
		pollCounter.WithLabelValues("receipt").Inc()
		receipt, err := w.client.TransactionReceipt(waitCtx, hash)
		switch {
		case err == nil && receipt != nil:
			waitDuration.WithLabelValues("receipt", "success").Observe(time.Since(startTime).Seconds())
			w.logger.WithField("tx", hash.Hex()).Debugf("got receipt after %v", time.Since(startTime))
			return receipt, nil
		case err == nil, errors.Is(err, ethereum.NotFound):
			failedPolls = 0
		case waitCtx.Err() != nil:
			// the deadline hit while the request was in flight
		default:
			failedPolls++
			if failedPolls >= w.retryCount {
				waitDuration.WithLabelValues("receipt", "error").Observe(time.Since(startTime).Seconds())
				return nil, err
			}
			w.logger.WithField("tx", hash.Hex()).Debugf("receipt poll failed (%v/%v): %v", failedPolls, w.retryCount, err)
		}

		select {
		case <-waitCtx.Done():
			waitDuration.WithLabelValues("receipt", "timeout").Observe(time.Since(startTime).Seconds())
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &TimeoutError{Hash: hash, Timeout: timeout}
		case <-ticker.C:
		}
	}
}

// WaitBlock blocks until the chain head is past block to. A zero timeout
// allows BlockTime per outstanding block.
func (w *Waiter) WaitBlock(ctx context.Context, to uint64, timeout time.Duration) error {
	startTime := time.Now()

	current, err := w.client.BlockNumber(ctx)
	if err != nil {
		return err
	}
	if current > to {
		return nil
	}

	if timeout <= 0 {
		timeout = time.Duration(to-current+1) * BlockTime
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	failedPolls := 0
	for poll := 0; ; poll++ {
		select {
		case <-waitCtx.Done():
			waitDuration.WithLabelValues("block", "timeout").Observe(time.Since(startTime).Seconds())
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &TimeoutError{Block: to, Timeout: timeout}
		case <-ticker.C:
		}

		pollCounter.WithLabelValues("block").Inc()
		number, err := w.client.BlockNumber(waitCtx)
		if err != nil {
			if waitCtx.Err() != nil {
				continue
			}
			failedPolls++
			if failedPolls >= w.retryCount {
				waitDuration.WithLabelValues("block", "error").Observe(time.Since(startTime).Seconds())
				return err
			}
			continue
		}
		failedPolls = 0
		current = number

		if poll%progressLogInterval == 0 {
			w.logger.Infof("waiting block: %v -> %v", current, to)
		}

		if current > to {
			w.logger.Infof("waiting block: %v -> %v", current, to)
			waitDuration.WithLabelValues("block", "success").Observe(time.Since(startTime).Seconds())
			return nil
		}
	}
}
