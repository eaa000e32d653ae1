package models

import (
	"time"

	"github.com/fundchain-core/internal/types"
)

// Fundraiser is one deployed fundraiser contract tracked off-chain.
// Goal and Raised are base-unit amounts stored as decimal strings; they can
// exceed int64 and must never pass through floats.
type Fundraiser struct {
	ID              string        `json:"id" db:"id"`
	OnChainID       int64         `json:"onChainId" db:"on_chain_id"`
	ChainID         types.ChainID `json:"chainId" db:"chain_id"`
	ContractAddress string        `json:"contractAddress" db:"contract_address"`
	OwnerUserID     string        `json:"ownerUserId" db:"owner_user_id"`
	Name            string        `json:"name" db:"name"`
	Goal            string        `json:"goal" db:"goal"`
	Raised          string        `json:"raised" db:"raised"`
	DonationCount   int64         `json:"donationCount" db:"donation_count"`
	Deadline        time.Time     `json:"deadline" db:"deadline"`
	TxHash          string        `json:"txHash" db:"tx_hash"`
	CreatedAt       time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time     `json:"updatedAt" db:"updated_at"`
}

// LiveFundraiserData is the on-chain view of a fundraiser, read directly
// from the contract rather than the database.
type LiveFundraiserData struct {
	ContractAddress string        `json:"contractAddress"`
	ChainID         types.ChainID `json:"chainId"`
	TotalRaised     string        `json:"totalRaised"`
	Goal            string        `json:"goal"`
	Deadline        int64         `json:"deadline"`
	DonationCount   int64         `json:"donationCount"`
	FetchedAt       time.Time     `json:"fetchedAt"`
}
