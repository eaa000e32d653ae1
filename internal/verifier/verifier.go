// Package verifier resolves transaction hashes to their authoritative
// on-chain outcome.
package verifier

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/fundchain-core/internal/chain"
	"github.com/fundchain-core/internal/contracts"
	"github.com/fundchain-core/internal/logging"
	"github.com/fundchain-core/internal/types"
)

// Result is the verified state of one transaction. Receipt and Tx are only
// populated for the states that carry them: a mined transaction has a
// Receipt, a pending one has only Tx, a not-found one has neither.
type Result struct {
	Status  types.TxStatus
	Receipt *ethtypes.Receipt
	Tx      *ethtypes.Transaction
}

// Verifier classifies transactions into success, failed, pending or
// not-found using receipt lookups with a mempool fallback.
type Verifier struct {
	exec   *contracts.Executor
	logger *logging.Logger
}

// New creates a verifier that runs its lookups through the shared executor.
func New(exec *contracts.Executor, logger *logging.Logger) *Verifier {
	return &Verifier{exec: exec, logger: logger}
}

// Verify resolves a transaction hash to its current on-chain state. Absence
// of a receipt is a normal outcome, not an error: the mempool is consulted
// to distinguish pending from unknown.
func (v *Verifier) Verify(ctx context.Context, backend chain.Backend, txHash common.Hash) (*Result, error) {
	var receipt *ethtypes.Receipt

	err := v.exec.Call(ctx, "verify transaction", func(ctx context.Context) error {
		r, err := backend.TransactionReceipt(ctx, txHash)
		if err != nil {
			if errors.Is(err, ethereum.NotFound) {
				// No receipt is a state, not a transient failure.
				receipt = nil
				return nil
			}
			return err
		}
		receipt = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	if receipt != nil {
		status := types.TxSuccess
		if receipt.Status == ethtypes.ReceiptStatusFailed {
			status = types.TxFailed
		}
		v.logger.WithFields(map[string]interface{}{
			"txHash": txHash.Hex(),
			"status": string(status),
			"block":  receipt.BlockNumber.Uint64(),
		}).Debug("Transaction verified")
		return &Result{Status: status, Receipt: receipt}, nil
	}

	// No receipt: the transaction is either waiting in the mempool or was
	// never seen by this chain.
	var (
		tx      *ethtypes.Transaction
		pending bool
		found   = true
	)
	err = v.exec.Call(ctx, "lookup pending transaction", func(ctx context.Context) error {
		t, p, err := backend.TransactionByHash(ctx, txHash)
		if err != nil {
			if errors.Is(err, ethereum.NotFound) {
				found = false
				return nil
			}
			return err
		}
		tx, pending = t, p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !found {
		return &Result{Status: types.TxNotFound}, nil
	}
	if pending {
		return &Result{Status: types.TxPending, Tx: tx}, nil
	}

	// Known but not pending and without a receipt: it is mid-inclusion.
	// Report pending; the caller retries later.
	return &Result{Status: types.TxPending, Tx: tx}, nil
}
