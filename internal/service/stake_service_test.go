package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/fundchain-core/internal/config"
	"github.com/fundchain-core/internal/contracts"
	apperrors "github.com/fundchain-core/internal/errors"
	"github.com/fundchain-core/internal/events"
	"github.com/fundchain-core/internal/models"
	"github.com/fundchain-core/internal/types"
	"github.com/fundchain-core/internal/verifier"
)

// fakeCache is an in-memory LiveCache.
type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{store: map[string][]byte{}}
}

func (c *fakeCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *fakeCache) Set(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.store[key] = raw
	c.mu.Unlock()
	return nil
}

func (c *fakeCache) GenerateFundraiserKey(chainID types.ChainID, address string) string {
	return fmt.Sprintf("fundraiser:%d:%s", chainID, strings.ToLower(address))
}

func (c *fakeCache) GeneratePoolKey(chainID types.ChainID, address string) string {
	return fmt.Sprintf("pool:%d:%s", chainID, strings.ToLower(address))
}

func (c *fakeCache) GenerateStakerKey(chainID types.ChainID, pool, staker string) string {
	return fmt.Sprintf("staker:%d:%s:%s", chainID, strings.ToLower(pool), strings.ToLower(staker))
}

type stakeFixture struct {
	service  *StakeService
	backend  *testBackend
	verifier *fakeVerifier
	users    *fakeUsers
	stakes   *fakeStakes
	cache    *fakeCache
}

func newStakeFixture(t *testing.T, result *verifier.Result) *stakeFixture {
	t.Helper()

	backend := newTestBackend()
	cfg := serviceChainsConfig()
	manager := newServiceManager(t, cfg, backend)
	registry := contracts.NewRegistry(cfg, config.SignerConfig{}, manager, testLogger())
	fv := &fakeVerifier{result: result}
	users := newFakeUsers()
	stakes := newFakeStakes()
	cache := newFakeCache()

	service := NewStakeService(manager, registry, contracts.NewExecutor(testLogger()), fv,
		events.NewExtractor(testLogger()), users, stakes, cache, testLogger())

	return &stakeFixture{service: service, backend: backend, verifier: fv, users: users, stakes: stakes, cache: cache}
}

func (fx *stakeFixture) seedActiveStake() *models.Stake {
	return fx.stakes.add(&models.Stake{
		UserID:        "user-1",
		PoolAddress:   strings.ToLower(testPool.Hex()),
		StakerAddress: strings.ToLower(testStaker.Hex()),
		Amount:        "800",
		Shares:        "790",
		ChainID:       types.ChainBaseSepolia,
		TxHash:        testTxHash,
		IsActive:      true,
	})
}

func TestRecordStakeFromTransaction(t *testing.T) {
	fx := newStakeFixture(t, successResult(stakeLog(contracts.EventStaked, testPool, 800, 790)))

	stake, created, err := fx.service.RecordStakeFromTransaction(context.Background(), 0, testTxHash)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Error("expected a freshly created record")
	}
	if stake.Amount != "800" || stake.Shares != "790" {
		t.Errorf("amount/shares = %s/%s", stake.Amount, stake.Shares)
	}
	if !stake.IsActive {
		t.Error("new stake must be active")
	}
	if stake.PoolAddress != strings.ToLower(testPool.Hex()) {
		t.Errorf("pool = %s", stake.PoolAddress)
	}
	if stake.ChainID != types.ChainBaseSepolia {
		t.Errorf("zero chain id must resolve to the default, got %d", stake.ChainID)
	}
}

func TestRecordStakeDuplicateFastPath(t *testing.T) {
	fx := newStakeFixture(t, successResult(stakeLog(contracts.EventStaked, testPool, 800, 790)))
	existing := fx.seedActiveStake()

	stake, created, err := fx.service.RecordStakeFromTransaction(context.Background(), types.ChainBaseSepolia, testTxHash)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("duplicate must not report as created")
	}
	if stake != existing {
		t.Error("expected the stored record back")
	}
	if fx.verifier.verifyCalls() != 0 {
		t.Error("duplicate fast path must not hit the chain")
	}
}

func TestRecordStakeRejectsUnstakeReceipt(t *testing.T) {
	fx := newStakeFixture(t, successResult(stakeLog(contracts.EventUnstaked, testPool, 800, 790)))

	_, _, err := fx.service.RecordStakeFromTransaction(context.Background(), types.ChainBaseSepolia, testTxHash)
	if !apperrors.HasCode(err, apperrors.CodeEventNotFound) {
		t.Fatalf("expected EVENT_NOT_FOUND for an unstake receipt, got %v", err)
	}
}

func TestRecordStakePoolMismatch(t *testing.T) {
	// The event comes from a pool other than the registered one.
	fx := newStakeFixture(t, successResult(stakeLog(contracts.EventStaked, testFundraiser, 800, 790)))

	_, _, err := fx.service.RecordStakeFromTransaction(context.Background(), types.ChainBaseSepolia, testTxHash)
	if !apperrors.HasCode(err, apperrors.CodeEntityMismatch) {
		t.Fatalf("expected ENTITY_MISMATCH, got %v", err)
	}
	if len(fx.stakes.byID) != 0 {
		t.Error("nothing may be persisted on a mismatch")
	}
}

func TestRecordUnstakeDeactivatesDrainedPosition(t *testing.T) {
	fx := newStakeFixture(t, successResult(stakeLog(contracts.EventUnstaked, testPool, 800, 790)))
	seeded := fx.seedActiveStake()
	fx.backend.setCallResult(config.ContractStakingPool, contracts.MethodStakedBalance, big.NewInt(0))

	updated, err := fx.service.RecordUnstakeFromTransaction(context.Background(), types.ChainBaseSepolia, testTxHash)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updated) != 1 {
		t.Fatalf("expected 1 reconciled position, got %d", len(updated))
	}
	if updated[0].ID != seeded.ID {
		t.Errorf("reconciled the wrong position: %s", updated[0].ID)
	}
	if updated[0].IsActive {
		t.Error("drained position must be deactivated")
	}
	if updated[0].Amount != "0" {
		t.Errorf("drained position amount = %s", updated[0].Amount)
	}
	if updated[0].DeactivatedAt == nil {
		t.Error("expected DeactivatedAt to be set")
	}
}

func TestSyncStakeFromChainUpdatesAmount(t *testing.T) {
	fx := newStakeFixture(t, nil)
	seeded := fx.seedActiveStake()
	fx.backend.setCallResult(config.ContractStakingPool, contracts.MethodStakedBalance, big.NewInt(300))

	synced, err := fx.service.SyncStakeFromChain(context.Background(), seeded.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if synced.Amount != "300" {
		t.Errorf("expected reconciled amount 300, got %s", synced.Amount)
	}
	if !synced.IsActive {
		t.Error("partially withdrawn position must stay active")
	}
}

func TestSyncStakeFromChainNoChange(t *testing.T) {
	fx := newStakeFixture(t, nil)
	seeded := fx.seedActiveStake()
	fx.backend.setCallResult(config.ContractStakingPool, contracts.MethodStakedBalance, big.NewInt(800))

	synced, err := fx.service.SyncStakeFromChain(context.Background(), seeded.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if synced != seeded {
		t.Error("an unchanged balance must return the stored record untouched")
	}
}

func TestSyncStakeFromChainUnknownStake(t *testing.T) {
	fx := newStakeFixture(t, nil)

	_, err := fx.service.SyncStakeFromChain(context.Background(), "missing")
	if !apperrors.HasCode(err, apperrors.CodeRecordNotFound) {
		t.Fatalf("expected RECORD_NOT_FOUND, got %v", err)
	}
}

func TestGetStakingPoolData(t *testing.T) {
	fx := newStakeFixture(t, nil)
	fx.backend.setCallResult(config.ContractStakingPool, contracts.MethodTotalStaked, big.NewInt(5000))
	fx.backend.setCallResult(config.ContractStakingPool, contracts.MethodRewardRate, big.NewInt(7))

	data, err := fx.service.GetStakingPoolData(context.Background(), types.ChainBaseSepolia)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data.TotalStaked != "5000" || data.RewardRate != "7" {
		t.Errorf("totalStaked/rewardRate = %s/%s", data.TotalStaked, data.RewardRate)
	}
	if data.PoolAddress != strings.ToLower(testPool.Hex()) {
		t.Errorf("pool = %s", data.PoolAddress)
	}

	// The second read is served from the cache without touching the chain.
	callsAfterFirst := fx.backend.calls()
	if _, err := fx.service.GetStakingPoolData(context.Background(), types.ChainBaseSepolia); err != nil {
		t.Fatalf("unexpected error on cached read: %v", err)
	}
	if fx.backend.calls() != callsAfterFirst {
		t.Error("cached read must not hit the chain")
	}
}

func TestGetUserStakingInfo(t *testing.T) {
	fx := newStakeFixture(t, nil)
	fx.backend.setCallResult(config.ContractStakingPool, contracts.MethodStakedBalance, big.NewInt(800))
	fx.backend.setCallResult(config.ContractStakingPool, contracts.MethodEarned, big.NewInt(25))

	info, err := fx.service.GetUserStakingInfo(context.Background(), types.ChainBaseSepolia, testStaker.Hex())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.StakedBalance != "800" || info.Earned != "25" {
		t.Errorf("balance/earned = %s/%s", info.StakedBalance, info.Earned)
	}
	if info.StakerAddress != strings.ToLower(testStaker.Hex()) {
		t.Errorf("staker = %s", info.StakerAddress)
	}
}
