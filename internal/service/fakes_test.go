package service

import (
	"context"
	"io"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/fundchain-core/internal/chain"
	"github.com/fundchain-core/internal/config"
	"github.com/fundchain-core/internal/contracts"
	"github.com/fundchain-core/internal/logging"
	"github.com/fundchain-core/internal/models"
	"github.com/fundchain-core/internal/storage"
	"github.com/fundchain-core/internal/types"
	"github.com/fundchain-core/internal/verifier"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	testDonor      = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	testOwner      = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	testFundraiser = common.HexToAddress("0x00000000000000000000000000000000000000f3")
	testPool       = common.HexToAddress("0x00000000000000000000000000000000000000e4")
	testStaker     = common.HexToAddress("0x00000000000000000000000000000000000000a5")
)

const testTxHash = "0x00000000000000000000000000000000000000000000000000000000000000ab"

func testLogger() *logging.Logger {
	logger := logging.NewLogger(logging.LevelError, logging.FormatText)
	logger.SetOutput(io.Discard)
	return logger
}

// testBackend serves contract reads keyed by method selector and hands out a
// configurable receipt for confirmation waits.
type testBackend struct {
	mu          sync.Mutex
	head        uint64
	receipt     *ethtypes.Receipt
	callResults map[string][]byte
	callCount   int
	sentTxs     []*ethtypes.Transaction
}

func newTestBackend() *testBackend {
	return &testBackend{head: 100, callResults: map[string][]byte{}}
}

func (b *testBackend) setCallResult(contractName string, method string, value *big.Int) {
	abiDef, ok := contracts.ABIFor(contractName)
	if !ok {
		panic("unknown contract " + contractName)
	}
	selector := string(abiDef.Methods[method].ID)
	b.mu.Lock()
	b.callResults[selector] = common.LeftPadBytes(value.Bytes(), 32)
	b.mu.Unlock()
}

func (b *testBackend) setReceipt(r *ethtypes.Receipt) {
	b.mu.Lock()
	b.receipt = r
	b.mu.Unlock()
}

func (b *testBackend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.callCount
}

func (b *testBackend) BlockNumber(ctx context.Context) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.head, nil
}

func (b *testBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.receipt == nil {
		return nil, ethereum.NotFound
	}
	return b.receipt, nil
}

func (b *testBackend) TransactionByHash(ctx context.Context, txHash common.Hash) (*ethtypes.Transaction, bool, error) {
	return nil, false, ethereum.NotFound
}

func (b *testBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callCount++
	if len(msg.Data) >= 4 {
		if result, ok := b.callResults[string(msg.Data[:4])]; ok {
			return result, nil
		}
	}
	return nil, ethereum.NotFound
}

func (b *testBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 7, nil
}

func (b *testBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1000000000), nil
}

func (b *testBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return 90000, nil
}

func (b *testBackend) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sentTxs = append(b.sentTxs, tx)
	return nil
}

func (b *testBackend) Close() {}

// fakeVerifier returns a canned result and counts calls.
type fakeVerifier struct {
	mu     sync.Mutex
	result *verifier.Result
	err    error
	calls  int
}

func (v *fakeVerifier) Verify(ctx context.Context, backend chain.Backend, txHash common.Hash) (*verifier.Result, error) {
	v.mu.Lock()
	v.calls++
	v.mu.Unlock()
	if v.err != nil {
		return nil, v.err
	}
	return v.result, nil
}

func (v *fakeVerifier) verifyCalls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

type fakeUsers struct {
	mu      sync.Mutex
	byAddr  map[string]*models.User
	nextSeq int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byAddr: map[string]*models.User{}}
}

func (f *fakeUsers) FindOrCreateByWallet(ctx context.Context, walletAddress string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	addr := strings.ToLower(walletAddress)
	if user, ok := f.byAddr[addr]; ok {
		return user, nil
	}
	f.nextSeq++
	user := &models.User{ID: "user-" + strconv.Itoa(f.nextSeq), WalletAddress: addr}
	f.byAddr[addr] = user
	return user, nil
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.byAddr {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeUsers) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byAddr)
}

type fakeFundraisers struct {
	mu      sync.Mutex
	byID    map[string]*models.Fundraiser
	nextSeq int
}

func newFakeFundraisers() *fakeFundraisers {
	return &fakeFundraisers{byID: map[string]*models.Fundraiser{}}
}

func (f *fakeFundraisers) add(fundraiser *models.Fundraiser) *models.Fundraiser {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fundraiser.ID == "" {
		f.nextSeq++
		fundraiser.ID = "fundraiser-" + strconv.Itoa(f.nextSeq)
	}
	f.byID[fundraiser.ID] = fundraiser
	return fundraiser
}

func (f *fakeFundraisers) Create(ctx context.Context, fundraiser *models.Fundraiser) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if existing.ChainID == fundraiser.ChainID && existing.TxHash == fundraiser.TxHash {
			return &pgconn.PgError{Code: "23505"}
		}
		if existing.ChainID == fundraiser.ChainID && existing.OnChainID == fundraiser.OnChainID {
			return &pgconn.PgError{Code: "23505"}
		}
	}
	f.nextSeq++
	fundraiser.ID = "fundraiser-" + strconv.Itoa(f.nextSeq)
	f.byID[fundraiser.ID] = fundraiser
	return nil
}

func (f *fakeFundraisers) GetByID(ctx context.Context, id string) (*models.Fundraiser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fundraiser, ok := f.byID[id]; ok {
		return fundraiser, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeFundraisers) GetByTxHash(ctx context.Context, chainID types.ChainID, txHash string) (*models.Fundraiser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fundraiser := range f.byID {
		if fundraiser.ChainID == chainID && fundraiser.TxHash == txHash {
			return fundraiser, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeFundraisers) GetByOnChainID(ctx context.Context, chainID types.ChainID, onChainID int64) (*models.Fundraiser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fundraiser := range f.byID {
		if fundraiser.ChainID == chainID && fundraiser.OnChainID == onChainID {
			return fundraiser, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeFundraisers) UpdateRaised(ctx context.Context, id, raised string, donationCount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	fundraiser, ok := f.byID[id]
	if !ok {
		return storage.ErrNotFound
	}
	fundraiser.Raised = raised
	fundraiser.DonationCount = donationCount
	return nil
}

type fakeDonations struct {
	mu        sync.Mutex
	byTxHash  map[string]*models.Donation
	createErr error

	// raceRecord is returned by GetByTxHash only after a failed create,
	// simulating a concurrent request that committed first.
	raceRecord      *models.Donation
	createAttempted bool
}

func newFakeDonations() *fakeDonations {
	return &fakeDonations{byTxHash: map[string]*models.Donation{}}
}

func (f *fakeDonations) CreateWithAggregates(ctx context.Context, donation *models.Donation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createAttempted = true
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.byTxHash[donation.TxHash]; ok {
		return &pgconn.PgError{Code: "23505"}
	}
	donation.ID = "donation-" + strconv.Itoa(len(f.byTxHash)+1)
	f.byTxHash[donation.TxHash] = donation
	return nil
}

func (f *fakeDonations) GetByTxHash(ctx context.Context, chainID types.ChainID, txHash string) (*models.Donation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if donation, ok := f.byTxHash[txHash]; ok {
		return donation, nil
	}
	if f.raceRecord != nil && f.createAttempted {
		return f.raceRecord, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeDonations) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byTxHash)
}

type fakeStakes struct {
	mu      sync.Mutex
	byID    map[string]*models.Stake
	nextSeq int
}

func newFakeStakes() *fakeStakes {
	return &fakeStakes{byID: map[string]*models.Stake{}}
}

func (f *fakeStakes) add(stake *models.Stake) *models.Stake {
	f.mu.Lock()
	defer f.mu.Unlock()
	if stake.ID == "" {
		f.nextSeq++
		stake.ID = "stake-" + strconv.Itoa(f.nextSeq)
	}
	f.byID[stake.ID] = stake
	return stake
}

func (f *fakeStakes) Create(ctx context.Context, stake *models.Stake) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if existing.ChainID == stake.ChainID && existing.TxHash == stake.TxHash {
			return &pgconn.PgError{Code: "23505"}
		}
	}
	f.nextSeq++
	stake.ID = "stake-" + strconv.Itoa(f.nextSeq)
	f.byID[stake.ID] = stake
	return nil
}

func (f *fakeStakes) GetByID(ctx context.Context, id string) (*models.Stake, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if stake, ok := f.byID[id]; ok {
		return stake, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStakes) GetByTxHash(ctx context.Context, chainID types.ChainID, txHash string) (*models.Stake, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, stake := range f.byID {
		if stake.ChainID == chainID && stake.TxHash == txHash {
			return stake, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStakes) ListActiveByStaker(ctx context.Context, chainID types.ChainID, stakerAddress string) ([]*models.Stake, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	addr := strings.ToLower(stakerAddress)
	var active []*models.Stake
	for _, stake := range f.byID {
		if stake.ChainID == chainID && stake.StakerAddress == addr && stake.IsActive {
			active = append(active, stake)
		}
	}
	return active, nil
}

func (f *fakeStakes) UpdateAmount(ctx context.Context, id, amount string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stake, ok := f.byID[id]
	if !ok {
		return storage.ErrNotFound
	}
	stake.Amount = amount
	return nil
}

func (f *fakeStakes) Deactivate(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stake, ok := f.byID[id]
	if !ok {
		return storage.ErrNotFound
	}
	now := time.Now().UTC()
	stake.IsActive = false
	stake.Amount = "0"
	stake.DeactivatedAt = &now
	return nil
}

// serviceChainsConfig registers the factory and pool contracts on Base Sepolia.
func serviceChainsConfig() *config.ChainsConfig {
	return &config.ChainsConfig{
		DefaultChain: types.ChainBaseSepolia,
		Enabled:      []types.ChainID{types.ChainBaseSepolia},
		StallTimeout: 100 * time.Millisecond,
		Chains: map[types.ChainID]config.ChainConfig{
			types.ChainBaseSepolia: {
				RPCURL: "https://operator.example.com",
				Contracts: map[string]string{
					config.ContractFundraiserFactory: "0x1111111111111111111111111111111111111111",
					config.ContractStakingPool:       testPool.Hex(),
				},
			},
		},
	}
}

// newServiceManager connects a chain manager to the given backend without the
// background health loop.
func newServiceManager(t *testing.T, cfg *config.ChainsConfig, backend chain.Backend) *chain.Manager {
	t.Helper()

	manager := chain.NewManager(chain.ManagerConfig{
		Chains:    cfg,
		Endpoints: chain.NewEndpointRegistry(cfg),
		Logger:    testLogger(),
		Dial: func(ctx context.Context, url string) (chain.Backend, error) {
			return backend, nil
		},
		DisableHealthLoop: true,
	})
	manager.Start(context.Background())
	t.Cleanup(manager.Stop)
	return manager
}

// Log builders mirror the event layouts emitted by the contracts.

func addressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(common.LeftPadBytes(addr.Bytes(), 32))
}

func packWords(values ...*big.Int) []byte {
	var data []byte
	for _, v := range values {
		data = append(data, common.LeftPadBytes(v.Bytes(), 32)...)
	}
	return data
}

func donationLog(contract common.Address, onChainID, amount, totalRaised int64) *ethtypes.Log {
	event := contracts.FundraiserABI.Events[contracts.EventDonationReceived]
	return &ethtypes.Log{
		Address: contract,
		Topics: []common.Hash{
			event.ID,
			addressTopic(testDonor),
			common.BigToHash(big.NewInt(onChainID)),
		},
		Data:        packWords(big.NewInt(amount), big.NewInt(totalRaised)),
		BlockNumber: 120,
		TxHash:      common.HexToHash(testTxHash),
	}
}

func stakeLog(eventName string, pool common.Address, amount, shares int64) *ethtypes.Log {
	event := contracts.StakingPoolABI.Events[eventName]
	return &ethtypes.Log{
		Address: pool,
		Topics: []common.Hash{
			event.ID,
			addressTopic(testStaker),
		},
		Data:        packWords(big.NewInt(amount), big.NewInt(shares)),
		BlockNumber: 130,
		TxHash:      common.HexToHash(testTxHash),
	}
}

func fundraiserCreatedLog(onChainID int64, name string, goal, deadline int64) *ethtypes.Log {
	event := contracts.FundraiserFactoryABI.Events[contracts.EventFundraiserCreated]
	data, err := event.Inputs.NonIndexed().Pack(name, big.NewInt(goal), big.NewInt(deadline))
	if err != nil {
		panic(err)
	}
	return &ethtypes.Log{
		Address: common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Topics: []common.Hash{
			event.ID,
			common.BigToHash(big.NewInt(onChainID)),
			addressTopic(testFundraiser),
			addressTopic(testOwner),
		},
		Data:        data,
		BlockNumber: 110,
		TxHash:      common.HexToHash(testTxHash),
	}
}

func successResult(logs ...*ethtypes.Log) *verifier.Result {
	return &verifier.Result{
		Status: types.TxSuccess,
		Receipt: &ethtypes.Receipt{
			Status:      ethtypes.ReceiptStatusSuccessful,
			BlockNumber: big.NewInt(110),
			Logs:        logs,
		},
	}
}
