package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fundchain-core/internal/config"
	"github.com/fundchain-core/internal/contracts"
	apperrors "github.com/fundchain-core/internal/errors"
	"github.com/fundchain-core/internal/events"
	"github.com/fundchain-core/internal/logging"
	"github.com/fundchain-core/internal/models"
	"github.com/fundchain-core/internal/storage"
	"github.com/fundchain-core/internal/types"
)

// StakeService ingests staking transactions and reconciles stored positions
// against live pool balances.
type StakeService struct {
	chains    ChainProvider
	registry  ContractProvider
	exec      *contracts.Executor
	verifier  TxVerifier
	extractor *events.Extractor
	users     UserStore
	stakes    StakeStore
	cache     LiveCache
	logger    *logging.Logger
}

// NewStakeService creates a stake ingestion service. cache may be nil.
func NewStakeService(
	chains ChainProvider,
	registry ContractProvider,
	exec *contracts.Executor,
	txVerifier TxVerifier,
	extractor *events.Extractor,
	users UserStore,
	stakes StakeStore,
	cache LiveCache,
	logger *logging.Logger,
) *StakeService {
	return &StakeService{
		chains:    chains,
		registry:  registry,
		exec:      exec,
		verifier:  txVerifier,
		extractor: extractor,
		users:     users,
		stakes:    stakes,
		cache:     cache,
		logger:    logger,
	}
}

// RecordStakeFromTransaction verifies a staking transaction and persists the
// position. The returned bool is false when the hash was already ingested.
func (s *StakeService) RecordStakeFromTransaction(ctx context.Context, chainID types.ChainID, txHash string) (*models.Stake, bool, error) {
	chainID = s.chains.ResolveChain(chainID)
	txHash = strings.ToLower(txHash)

	logger := s.logger.WithChain(int64(chainID)).WithField("txHash", txHash)

	if existing, err := s.stakes.GetByTxHash(ctx, chainID, txHash); err == nil {
		logger.Debug("Stake already recorded, returning existing record")
		return existing, false, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, apperrors.NewInternalError("failed to check for existing stake", err)
	}

	backend, err := s.chains.GetConnection(chainID)
	if err != nil {
		return nil, false, err
	}

	result, err := s.verifier.Verify(ctx, backend, common.HexToHash(txHash))
	if err != nil {
		return nil, false, err
	}
	if err := requireSuccessfulTx(result, txHash); err != nil {
		return nil, false, err
	}

	event := s.extractor.ExtractStakeChanged(result.Receipt.Logs)
	if event == nil || event.Unstake {
		return nil, false, apperrors.NewEventNotFoundError(txHash, "Staked")
	}

	// When the pool contract is registered for this chain, the event must
	// come from it.
	if handle, handleErr := s.registry.Contract(config.ContractStakingPool, chainID); handleErr == nil {
		if event.Pool != handle.Address {
			return nil, false, apperrors.NewEntityMismatchError("pool address",
				strings.ToLower(handle.Address.Hex()), strings.ToLower(event.Pool.Hex()))
		}
	}

	user, err := s.users.FindOrCreateByWallet(ctx, event.Staker.Hex())
	if err != nil {
		return nil, false, apperrors.NewInternalError("failed to resolve staker user", err)
	}

	stake := &models.Stake{
		UserID:        user.ID,
		PoolAddress:   strings.ToLower(event.Pool.Hex()),
		StakerAddress: strings.ToLower(event.Staker.Hex()),
		Amount:        event.Amount.String(),
		Shares:        sharesOrZero(event),
		ChainID:       chainID,
		TxHash:        txHash,
		BlockNumber:   event.BlockNumber,
		IsActive:      true,
	}

	if err := s.stakes.Create(ctx, stake); err != nil {
		if storage.IsUniqueViolation(err) {
			existing, getErr := s.stakes.GetByTxHash(ctx, chainID, txHash)
			if errors.Is(getErr, storage.ErrNotFound) {
				return nil, false, apperrors.NewDuplicateTransactionError(txHash)
			}
			if getErr != nil {
				return nil, false, apperrors.NewInternalError("failed to load concurrently recorded stake", getErr)
			}
			logger.Info("Stake recorded concurrently, returning existing record")
			return existing, false, nil
		}
		return nil, false, apperrors.NewInternalError("failed to record stake", err)
	}

	logger.WithFields(map[string]interface{}{
		"staker": stake.StakerAddress,
		"amount": stake.Amount,
		"pool":   stake.PoolAddress,
	}).Info("Stake recorded")

	return stake, true, nil
}

// RecordUnstakeFromTransaction verifies an unstaking transaction and
// reconciles the staker's stored positions against the live pool balance.
func (s *StakeService) RecordUnstakeFromTransaction(ctx context.Context, chainID types.ChainID, txHash string) ([]*models.Stake, error) {
	chainID = s.chains.ResolveChain(chainID)
	txHash = strings.ToLower(txHash)

	backend, err := s.chains.GetConnection(chainID)
	if err != nil {
		return nil, err
	}

	result, err := s.verifier.Verify(ctx, backend, common.HexToHash(txHash))
	if err != nil {
		return nil, err
	}
	if err := requireSuccessfulTx(result, txHash); err != nil {
		return nil, err
	}

	event := s.extractor.ExtractStakeChanged(result.Receipt.Logs)
	if event == nil || !event.Unstake {
		return nil, apperrors.NewEventNotFoundError(txHash, "Unstaked")
	}

	active, err := s.stakes.ListActiveByStaker(ctx, chainID, event.Staker.Hex())
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list active stakes", err)
	}

	var updated []*models.Stake
	for _, stake := range active {
		if stake.PoolAddress != strings.ToLower(event.Pool.Hex()) {
			continue
		}
		synced, syncErr := s.SyncStakeFromChain(ctx, stake.ID)
		if syncErr != nil {
			return nil, syncErr
		}
		updated = append(updated, synced)
	}
	return updated, nil
}

// SyncStakeFromChain re-reads a position's live pool balance and reconciles
// the stored record: a changed balance updates the amount, a zero balance
// deactivates the position while preserving the row.
func (s *StakeService) SyncStakeFromChain(ctx context.Context, stakeID string) (*models.Stake, error) {
	stake, err := s.stakes.GetByID(ctx, stakeID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NewRecordNotFoundError("stake", stakeID)
		}
		return nil, apperrors.NewInternalError("failed to load stake", err)
	}

	handle, err := s.registry.Bind(config.ContractStakingPool, stake.ChainID, common.HexToAddress(stake.PoolAddress))
	if err != nil {
		return nil, err
	}

	balance, err := s.callBig(ctx, handle, contracts.MethodStakedBalance, common.HexToAddress(stake.StakerAddress))
	if err != nil {
		return nil, err
	}

	logger := s.logger.WithChain(int64(stake.ChainID)).WithFields(map[string]interface{}{
		"stakeId": stake.ID,
		"stored":  stake.Amount,
		"live":    balance,
	})

	switch {
	case balance == "0":
		if err := s.stakes.Deactivate(ctx, stake.ID); err != nil {
			return nil, apperrors.NewInternalError("failed to deactivate stake", err)
		}
		logger.Info("Stake fully withdrawn, position deactivated")
	case balance != stake.Amount:
		if err := s.stakes.UpdateAmount(ctx, stake.ID, balance); err != nil {
			return nil, apperrors.NewInternalError("failed to update stake amount", err)
		}
		logger.Info("Stake amount reconciled against live balance")
	default:
		return stake, nil
	}

	refreshed, err := s.stakes.GetByID(ctx, stake.ID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to reload stake", err)
	}
	return refreshed, nil
}

// GetStakingPoolData reads the pool's live totals, with a short-TTL cache.
func (s *StakeService) GetStakingPoolData(ctx context.Context, chainID types.ChainID) (*models.StakingPoolData, error) {
	chainID = s.chains.ResolveChain(chainID)

	handle, err := s.registry.Contract(config.ContractStakingPool, chainID)
	if err != nil {
		return nil, err
	}

	var cacheKey string
	if s.cache != nil {
		cacheKey = s.cache.GeneratePoolKey(chainID, handle.Address.Hex())
		var cached models.StakingPoolData
		if hit, cacheErr := s.cache.Get(ctx, cacheKey, &cached); cacheErr == nil && hit {
			return &cached, nil
		}
	}

	totalStaked, err := s.callBig(ctx, handle, contracts.MethodTotalStaked)
	if err != nil {
		return nil, err
	}
	rewardRate, err := s.callBig(ctx, handle, contracts.MethodRewardRate)
	if err != nil {
		return nil, err
	}

	data := &models.StakingPoolData{
		PoolAddress: strings.ToLower(handle.Address.Hex()),
		ChainID:     chainID,
		TotalStaked: totalStaked,
		RewardRate:  rewardRate,
		FetchedAt:   time.Now().UTC(),
	}

	if s.cache != nil {
		if cacheErr := s.cache.Set(ctx, cacheKey, data); cacheErr != nil {
			s.logger.WithError(cacheErr).Warn("Failed to cache pool data")
		}
	}
	return data, nil
}

// GetUserStakingInfo reads a staker's live position, with a short-TTL cache.
func (s *StakeService) GetUserStakingInfo(ctx context.Context, chainID types.ChainID, stakerAddress string) (*models.UserStakingInfo, error) {
	chainID = s.chains.ResolveChain(chainID)

	handle, err := s.registry.Contract(config.ContractStakingPool, chainID)
	if err != nil {
		return nil, err
	}

	staker := common.HexToAddress(stakerAddress)

	var cacheKey string
	if s.cache != nil {
		cacheKey = s.cache.GenerateStakerKey(chainID, handle.Address.Hex(), staker.Hex())
		var cached models.UserStakingInfo
		if hit, cacheErr := s.cache.Get(ctx, cacheKey, &cached); cacheErr == nil && hit {
			return &cached, nil
		}
	}

	balance, err := s.callBig(ctx, handle, contracts.MethodStakedBalance, staker)
	if err != nil {
		return nil, err
	}
	earned, err := s.callBig(ctx, handle, contracts.MethodEarned, staker)
	if err != nil {
		return nil, err
	}

	info := &models.UserStakingInfo{
		PoolAddress:   strings.ToLower(handle.Address.Hex()),
		ChainID:       chainID,
		StakerAddress: strings.ToLower(staker.Hex()),
		StakedBalance: balance,
		Earned:        earned,
		FetchedAt:     time.Now().UTC(),
	}

	if s.cache != nil {
		if cacheErr := s.cache.Set(ctx, cacheKey, info); cacheErr != nil {
			s.logger.WithError(cacheErr).Warn("Failed to cache staker info")
		}
	}
	return info, nil
}

// callBig runs a single-uint256 contract read under the retry policy and
// returns the decimal string.
func (s *StakeService) callBig(ctx context.Context, handle *contracts.Handle, method string, args ...interface{}) (string, error) {
	var out string
	err := s.exec.Call(ctx, handle.Name+"."+method, func(ctx context.Context) error {
		value, callErr := handle.CallBig(ctx, method, args...)
		if callErr != nil {
			return callErr
		}
		out = value.String()
		return nil
	})
	return out, err
}

func sharesOrZero(event *events.StakeChanged) string {
	if event.Shares == nil {
		return "0"
	}
	return event.Shares.String()
}
