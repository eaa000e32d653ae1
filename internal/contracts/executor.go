package contracts

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/fundchain-core/internal/chain"
	apperrors "github.com/fundchain-core/internal/errors"
	"github.com/fundchain-core/internal/logging"
	"github.com/fundchain-core/internal/retry"
)

const (
	defaultPollInterval   = 2 * time.Second
	defaultConfirmTimeout = 60 * time.Second
)

// Executor runs contract operations under the shared retry policy and waits
// out confirmation depth for submitted transactions.
type Executor struct {
	retryCfg *retry.Config
	logger   *logging.Logger

	// pollInterval and confirmTimeout are fixed in production and shortened
	// in tests.
	pollInterval   time.Duration
	confirmTimeout time.Duration
}

// NewExecutor creates an executor with the default retry policy.
func NewExecutor(logger *logging.Logger) *Executor {
	return &Executor{
		retryCfg:       retry.DefaultConfig(),
		logger:         logger,
		pollInterval:   defaultPollInterval,
		confirmTimeout: defaultConfirmTimeout,
	}
}

// WithTiming overrides the confirmation polling cadence and deadline.
func (e *Executor) WithTiming(pollInterval, confirmTimeout time.Duration) *Executor {
	e.pollInterval = pollInterval
	e.confirmTimeout = confirmTimeout
	return e
}

// Call runs fn under the shared retry policy.
func (e *Executor) Call(ctx context.Context, label string, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, e.retryCfg, label, func(ctx context.Context, attempt int) error {
		return fn(ctx)
	})
}

// WaitForConfirmation polls until the transaction has a receipt and the chain
// head is at least confirmations-1 blocks past its inclusion block. A missing
// receipt keeps the poll alive; a failure-status receipt aborts immediately.
// The wait is bounded by a wall-clock deadline regardless of block cadence.
func (e *Executor) WaitForConfirmation(ctx context.Context, backend chain.Backend, txHash common.Hash, confirmations uint64) (*ethtypes.Receipt, error) {
	if confirmations == 0 {
		confirmations = 1
	}

	logger := e.logger.WithFields(map[string]interface{}{
		"txHash":        txHash.Hex(),
		"confirmations": confirmations,
	})

	// The deadline bounds the polls themselves, not just the gaps between
	// them: a node that stalls mid-call cannot hold the wait open past the
	// configured timeout.
	waitCtx, cancel := context.WithTimeout(ctx, e.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := backend.TransactionReceipt(waitCtx, txHash)
		switch {
		case errors.Is(err, ethereum.NotFound):
			// Not mined yet, keep polling.
		case err != nil && waitCtx.Err() != nil:
			return nil, e.waitAborted(ctx, logger, txHash, confirmations)
		case err != nil:
			logger.WithError(err).Warn("Receipt poll failed, retrying")
		case receipt.Status == ethtypes.ReceiptStatusFailed:
			logger.Warn("Transaction reverted while awaiting confirmation")
			return nil, apperrors.NewTransactionRevertedError(txHash.Hex())
		default:
			head, headErr := backend.BlockNumber(waitCtx)
			switch {
			case headErr != nil && waitCtx.Err() != nil:
				return nil, e.waitAborted(ctx, logger, txHash, confirmations)
			case headErr != nil:
				logger.WithError(headErr).Warn("Head poll failed, retrying")
			case head+1 >= receipt.BlockNumber.Uint64()+confirmations:
				logger.WithField("block", receipt.BlockNumber.Uint64()).Info("Transaction confirmed")
				return receipt, nil
			}
		}

		select {
		case <-ticker.C:
		case <-waitCtx.Done():
			return nil, e.waitAborted(ctx, logger, txHash, confirmations)
		}
	}
}

// waitAborted distinguishes the executor's own deadline from caller
// cancellation.
func (e *Executor) waitAborted(ctx context.Context, logger *logging.Logger, txHash common.Hash, confirmations uint64) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	logger.Warn("Confirmation wait hit deadline")
	return apperrors.NewConfirmationTimeoutError(txHash.Hex(), confirmations)
}
