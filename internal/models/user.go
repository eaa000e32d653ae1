package models

import (
	"time"
)

// User is an off-chain identity keyed by wallet address. Addresses are
// stored lowercased so lookups are case-insensitive.
type User struct {
	ID            string    `json:"id" db:"id"`
	WalletAddress string    `json:"walletAddress" db:"wallet_address"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}
