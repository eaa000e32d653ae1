// Package service implements the ingestion and read workflows over verified
// on-chain transactions.
package service

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fundchain-core/internal/chain"
	"github.com/fundchain-core/internal/contracts"
	"github.com/fundchain-core/internal/models"
	"github.com/fundchain-core/internal/types"
	"github.com/fundchain-core/internal/verifier"
)

// ChainProvider supplies live chain connections. Implemented by chain.Manager.
type ChainProvider interface {
	GetConnection(chainID types.ChainID) (chain.Backend, error)
	ResolveChain(chainID types.ChainID) types.ChainID
	ConfirmationsFor(chainID types.ChainID) uint64
}

// ContractProvider supplies bound contract handles. Implemented by
// contracts.Registry.
type ContractProvider interface {
	Contract(name string, chainID types.ChainID) (*contracts.Handle, error)
	ContractWithSigner(name string, chainID types.ChainID) (*contracts.SignedHandle, error)
	Bind(name string, chainID types.ChainID, address common.Address) (*contracts.Handle, error)
}

// TxVerifier resolves a transaction hash to its on-chain state. Implemented
// by verifier.Verifier.
type TxVerifier interface {
	Verify(ctx context.Context, backend chain.Backend, txHash common.Hash) (*verifier.Result, error)
}

// UserStore persists wallet-keyed identities.
type UserStore interface {
	FindOrCreateByWallet(ctx context.Context, walletAddress string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// FundraiserStore persists fundraiser records.
type FundraiserStore interface {
	Create(ctx context.Context, fundraiser *models.Fundraiser) error
	GetByID(ctx context.Context, id string) (*models.Fundraiser, error)
	GetByTxHash(ctx context.Context, chainID types.ChainID, txHash string) (*models.Fundraiser, error)
	GetByOnChainID(ctx context.Context, chainID types.ChainID, onChainID int64) (*models.Fundraiser, error)
	UpdateRaised(ctx context.Context, id, raised string, donationCount int64) error
}

// DonationStore persists donation records.
type DonationStore interface {
	CreateWithAggregates(ctx context.Context, donation *models.Donation) error
	GetByTxHash(ctx context.Context, chainID types.ChainID, txHash string) (*models.Donation, error)
}

// StakeStore persists staking positions.
type StakeStore interface {
	Create(ctx context.Context, stake *models.Stake) error
	GetByID(ctx context.Context, id string) (*models.Stake, error)
	GetByTxHash(ctx context.Context, chainID types.ChainID, txHash string) (*models.Stake, error)
	ListActiveByStaker(ctx context.Context, chainID types.ChainID, stakerAddress string) ([]*models.Stake, error)
	UpdateAmount(ctx context.Context, id, amount string) error
	Deactivate(ctx context.Context, id string) error
}

// LiveCache caches short-lived on-chain reads. Implemented by
// storage.CacheService; a nil cache disables caching.
type LiveCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	GenerateFundraiserKey(chainID types.ChainID, address string) string
	GeneratePoolKey(chainID types.ChainID, address string) string
	GenerateStakerKey(chainID types.ChainID, pool, staker string) string
}
