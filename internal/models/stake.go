package models

import (
	"time"

	"github.com/fundchain-core/internal/types"
)

// Stake is one verified staking position. Amount and Shares are base-unit
// decimal strings. A fully withdrawn position stays in the table with
// IsActive false and DeactivatedAt set.
type Stake struct {
	ID            string        `json:"id" db:"id"`
	UserID        string        `json:"userId" db:"user_id"`
	PoolAddress   string        `json:"poolAddress" db:"pool_address"`
	StakerAddress string        `json:"stakerAddress" db:"staker_address"`
	Amount        string        `json:"amount" db:"amount"`
	Shares        string        `json:"shares" db:"shares"`
	ChainID       types.ChainID `json:"chainId" db:"chain_id"`
	TxHash        string        `json:"txHash" db:"tx_hash"`
	BlockNumber   uint64        `json:"blockNumber" db:"block_number"`
	IsActive      bool          `json:"isActive" db:"is_active"`
	DeactivatedAt *time.Time    `json:"deactivatedAt,omitempty" db:"deactivated_at"`
	CreatedAt     time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time     `json:"updatedAt" db:"updated_at"`
}

// StakingPoolData is the live on-chain view of a staking pool.
type StakingPoolData struct {
	PoolAddress string        `json:"poolAddress"`
	ChainID     types.ChainID `json:"chainId"`
	TotalStaked string        `json:"totalStaked"`
	RewardRate  string        `json:"rewardRate"`
	FetchedAt   time.Time     `json:"fetchedAt"`
}

// UserStakingInfo is the live on-chain view of one staker's position.
type UserStakingInfo struct {
	PoolAddress   string        `json:"poolAddress"`
	ChainID       types.ChainID `json:"chainId"`
	StakerAddress string        `json:"stakerAddress"`
	StakedBalance string        `json:"stakedBalance"`
	Earned        string        `json:"earned"`
	FetchedAt     time.Time     `json:"fetchedAt"`
}
