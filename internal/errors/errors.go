// Package errors defines the error taxonomy for the fundchain core.
package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/fundchain-core/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryConfiguration represents configuration/registration errors, never retried
	CategoryConfiguration ErrorCategory = "configuration"
	// CategoryConnectivity represents chain connectivity errors
	CategoryConnectivity ErrorCategory = "connectivity"
	// CategoryTransaction represents transaction-level outcomes
	CategoryTransaction ErrorCategory = "transaction"
	// CategoryIngestion represents ingestion-time validation failures
	CategoryIngestion ErrorCategory = "ingestion"
	// CategoryConflict represents idempotency conflicts
	CategoryConflict ErrorCategory = "conflict"
	// CategorySystem represents internal errors
	CategorySystem ErrorCategory = "system"
)

// Error codes surfaced to collaborators.
const (
	CodeChainUnavailable      = "CHAIN_UNAVAILABLE"
	CodeContractNotRegistered = "CONTRACT_NOT_REGISTERED"
	CodeNoSignerConfigured    = "NO_SIGNER_CONFIGURED"
	CodeConfirmationTimeout   = "CONFIRMATION_TIMEOUT"
	CodeTransactionReverted   = "TRANSACTION_REVERTED"
	CodeTransactionFailed     = "BLOCKCHAIN_TX_FAILED"
	CodeTransactionPending    = "TRANSACTION_PENDING"
	CodeTransactionNotFound   = "TRANSACTION_NOT_FOUND"
	CodeEventNotFound         = "EVENT_NOT_FOUND"
	CodeEntityMismatch        = "ENTITY_MISMATCH"
	CodeDuplicateTransaction  = "DUPLICATE_TRANSACTION"
	CodeRecordNotFound        = "RECORD_NOT_FOUND"
	CodeInternalError         = "INTERNAL_ERROR"
)

// CoreError represents an error with category, code and structured details
type CoreError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CoreError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to a ServiceError suitable for API responses
func (e *CoreError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// Connectivity errors

// NewChainUnavailableError indicates no working connection exists for a chain
func NewChainUnavailableError(chainID types.ChainID, reason string) *CoreError {
	return &CoreError{
		Category:   CategoryConnectivity,
		StatusCode: http.StatusServiceUnavailable,
		Code:       CodeChainUnavailable,
		Message:    fmt.Sprintf("chain %d unavailable: %s", chainID, reason),
		Details: map[string]interface{}{
			"chainId": int64(chainID),
			"reason":  reason,
		},
	}
}

// Configuration errors

// NewContractNotRegisteredError indicates a contract has no handle on the chain
func NewContractNotRegisteredError(name string, chainID types.ChainID) *CoreError {
	return &CoreError{
		Category:   CategoryConfiguration,
		StatusCode: http.StatusNotImplemented,
		Code:       CodeContractNotRegistered,
		Message:    fmt.Sprintf("contract %q is not registered on chain %d", name, chainID),
		Details: map[string]interface{}{
			"contract": name,
			"chainId":  int64(chainID),
		},
	}
}

// NewNoSignerConfiguredError indicates a write operation without a signing credential
func NewNoSignerConfiguredError() *CoreError {
	return &CoreError{
		Category:   CategoryConfiguration,
		StatusCode: http.StatusNotImplemented,
		Code:       CodeNoSignerConfigured,
		Message:    "no signing credential configured for write operations",
	}
}

// Transaction-level outcomes

// NewConfirmationTimeoutError indicates the confirmation wait hit its deadline
func NewConfirmationTimeoutError(txHash string, confirmations uint64) *CoreError {
	return &CoreError{
		Category:   CategoryTransaction,
		StatusCode: http.StatusGatewayTimeout,
		Code:       CodeConfirmationTimeout,
		Message:    fmt.Sprintf("transaction %s not confirmed in time", txHash),
		Details: map[string]interface{}{
			"txHash":        txHash,
			"confirmations": confirmations,
		},
	}
}

// NewTransactionRevertedError indicates the receipt shows failure status
func NewTransactionRevertedError(txHash string) *CoreError {
	return &CoreError{
		Category:   CategoryTransaction,
		StatusCode: http.StatusUnprocessableEntity,
		Code:       CodeTransactionReverted,
		Message:    fmt.Sprintf("transaction %s reverted on chain", txHash),
		Details: map[string]interface{}{
			"txHash": txHash,
		},
	}
}

// Ingestion-time validation failures

// NewTransactionFailedError indicates verification found a failed transaction
func NewTransactionFailedError(txHash string) *CoreError {
	return &CoreError{
		Category:   CategoryIngestion,
		StatusCode: http.StatusUnprocessableEntity,
		Code:       CodeTransactionFailed,
		Message:    fmt.Sprintf("transaction %s failed on chain", txHash),
		Details: map[string]interface{}{
			"txHash": txHash,
		},
	}
}

// NewTransactionPendingError indicates the transaction has no receipt yet
func NewTransactionPendingError(txHash string) *CoreError {
	return &CoreError{
		Category:   CategoryIngestion,
		StatusCode: http.StatusConflict,
		Code:       CodeTransactionPending,
		Message:    fmt.Sprintf("transaction %s is not yet confirmed", txHash),
		Details: map[string]interface{}{
			"txHash": txHash,
		},
	}
}

// NewTransactionNotFoundError indicates the chain has never seen the transaction
func NewTransactionNotFoundError(txHash string) *CoreError {
	return &CoreError{
		Category:   CategoryIngestion,
		StatusCode: http.StatusNotFound,
		Code:       CodeTransactionNotFound,
		Message:    fmt.Sprintf("transaction %s not found on chain", txHash),
		Details: map[string]interface{}{
			"txHash": txHash,
		},
	}
}

// NewEventNotFoundError indicates the expected event is absent from the receipt logs
func NewEventNotFoundError(txHash, eventName string) *CoreError {
	return &CoreError{
		Category:   CategoryIngestion,
		StatusCode: http.StatusUnprocessableEntity,
		Code:       CodeEventNotFound,
		Message:    fmt.Sprintf("transaction %s does not contain a %s event - wrong tx hash or wrong transaction type", txHash, eventName),
		Details: map[string]interface{}{
			"txHash": txHash,
			"event":  eventName,
		},
	}
}

// NewEntityMismatchError indicates on-chain identifiers do not match the requested entity
func NewEntityMismatchError(field string, expected, actual interface{}) *CoreError {
	return &CoreError{
		Category:   CategoryIngestion,
		StatusCode: http.StatusUnprocessableEntity,
		Code:       CodeEntityMismatch,
		Message:    fmt.Sprintf("on-chain %s does not match the requested entity", field),
		Details: map[string]interface{}{
			"field":    field,
			"expected": expected,
			"actual":   actual,
		},
	}
}

// Idempotency

// NewDuplicateTransactionError indicates the transaction hash was already ingested
func NewDuplicateTransactionError(txHash string) *CoreError {
	return &CoreError{
		Category:   CategoryConflict,
		StatusCode: http.StatusConflict,
		Code:       CodeDuplicateTransaction,
		Message:    fmt.Sprintf("transaction %s has already been recorded", txHash),
		Details: map[string]interface{}{
			"txHash": txHash,
		},
	}
}

// NewRecordNotFoundError indicates a referenced off-chain record does not exist
func NewRecordNotFoundError(resource, id string) *CoreError {
	return &CoreError{
		Category:   CategoryIngestion,
		StatusCode: http.StatusNotFound,
		Code:       CodeRecordNotFound,
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewInternalError creates an internal error wrapping a cause
func NewInternalError(message string, cause error) *CoreError {
	return &CoreError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       CodeInternalError,
		Message:    message,
		Cause:      cause,
	}
}

// HasCode reports whether err is a CoreError carrying the given code.
func HasCode(err error, code string) bool {
	var coreErr *CoreError
	if errors.As(err, &coreErr) {
		return coreErr.Code == code
	}
	return false
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	var coreErr *CoreError
	if errors.As(err, &coreErr) {
		return coreErr.StatusCode
	}
	return http.StatusInternalServerError
}
