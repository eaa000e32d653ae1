package models

import (
	"time"

	"github.com/fundchain-core/internal/types"
)

// Donation is one verified on-chain donation. TxHash is unique across the
// table; the constraint is the idempotency barrier for concurrent ingestion.
type Donation struct {
	ID           string        `json:"id" db:"id"`
	FundraiserID string        `json:"fundraiserId" db:"fundraiser_id"`
	UserID       string        `json:"userId" db:"user_id"`
	DonorAddress string        `json:"donorAddress" db:"donor_address"`
	Amount       string        `json:"amount" db:"amount"`
	TxHash       string        `json:"txHash" db:"tx_hash"`
	ChainID      types.ChainID `json:"chainId" db:"chain_id"`
	BlockNumber  uint64        `json:"blockNumber" db:"block_number"`
	CreatedAt    time.Time     `json:"createdAt" db:"created_at"`
}
