// Package types provides common type definitions shared across the fundchain core.
package types

// ChainID identifies a blockchain network by its numeric chain id.
type ChainID int64

const (
	// ChainEthereum is the Ethereum mainnet
	ChainEthereum ChainID = 1
	// ChainSepolia is the Ethereum Sepolia testnet
	ChainSepolia ChainID = 11155111
	// ChainBase is the Base mainnet
	ChainBase ChainID = 8453
	// ChainBaseSepolia is the Base Sepolia testnet
	ChainBaseSepolia ChainID = 84532
)

// TxStatus represents the verification outcome for a transaction hash
type TxStatus string

const (
	// TxSuccess means a receipt exists with status 1
	TxSuccess TxStatus = "success"
	// TxFailed means a receipt exists with status 0
	TxFailed TxStatus = "failed"
	// TxPending means the node knows the transaction but no receipt exists yet
	TxPending TxStatus = "pending"
	// TxNotFound means the node has never seen the transaction
	TxNotFound TxStatus = "not_found"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// NativeCurrency describes a chain's native asset
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}
