package service

import (
	apperrors "github.com/fundchain-core/internal/errors"
	"github.com/fundchain-core/internal/types"
	"github.com/fundchain-core/internal/verifier"
)

// requireSuccessfulTx maps a verification result to the ingestion error
// taxonomy. Only a success-status receipt may feed the ingestion pipeline.
func requireSuccessfulTx(result *verifier.Result, txHash string) error {
	switch result.Status {
	case types.TxSuccess:
		return nil
	case types.TxFailed:
		return apperrors.NewTransactionFailedError(txHash)
	case types.TxPending:
		return apperrors.NewTransactionPendingError(txHash)
	default:
		return apperrors.NewTransactionNotFoundError(txHash)
	}
}
