package events

import (
	"io"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/fundchain-core/internal/contracts"
	"github.com/fundchain-core/internal/logging"
)

var (
	donorAddr      = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	ownerAddr      = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	fundraiserAddr = common.HexToAddress("0x00000000000000000000000000000000000000f3")
	poolAddr       = common.HexToAddress("0x00000000000000000000000000000000000000e4")
	stakerAddr     = common.HexToAddress("0x00000000000000000000000000000000000000a5")
	logTxHash      = common.HexToHash("0x00000000000000000000000000000000000000000000000000000000000000bb")
)

func testExtractor() *Extractor {
	logger := logging.NewLogger(logging.LevelError, logging.FormatText)
	logger.SetOutput(io.Discard)
	return NewExtractor(logger)
}

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

func donationLog(t *testing.T) *ethtypes.Log {
	t.Helper()
	event := contracts.FundraiserABI.Events[contracts.EventDonationReceived]

	return &ethtypes.Log{
		Address: fundraiserAddr,
		Topics: []common.Hash{
			event.ID,
			addressTopic(donorAddr),
			common.BigToHash(big.NewInt(7)),
		},
		Data:        packWords(big.NewInt(5000), big.NewInt(15000)),
		BlockNumber: 120,
		TxHash:      logTxHash,
	}
}

func stakeLog(t *testing.T, name string) *ethtypes.Log {
	t.Helper()
	event := contracts.StakingPoolABI.Events[name]

	return &ethtypes.Log{
		Address: poolAddr,
		Topics: []common.Hash{
			event.ID,
			addressTopic(stakerAddr),
		},
		Data:        packWords(big.NewInt(800), big.NewInt(790)),
		BlockNumber: 130,
		TxHash:      logTxHash,
	}
}

func fundraiserCreatedLog(t *testing.T) *ethtypes.Log {
	t.Helper()
	event := contracts.FundraiserFactoryABI.Events[contracts.EventFundraiserCreated]

	data, err := event.Inputs.NonIndexed().Pack("save the bees", big.NewInt(1000000), big.NewInt(1900000000))
	if err != nil {
		t.Fatalf("failed to pack event data: %v", err)
	}

	return &ethtypes.Log{
		Address: common.HexToAddress("0x00000000000000000000000000000000000000b6"),
		Topics: []common.Hash{
			event.ID,
			common.BigToHash(big.NewInt(7)),
			addressTopic(fundraiserAddr),
			addressTopic(ownerAddr),
		},
		Data:        data,
		BlockNumber: 110,
		TxHash:      logTxHash,
	}
}

func TestExtractDonationReceived(t *testing.T) {
	event := testExtractor().ExtractDonationReceived([]*ethtypes.Log{donationLog(t)})
	if event == nil {
		t.Fatal("expected donation event")
	}

	if event.Donor != donorAddr {
		t.Errorf("donor = %s", event.Donor.Hex())
	}
	if event.OnChainID.Int64() != 7 {
		t.Errorf("fundraiser id = %s", event.OnChainID)
	}
	if event.Amount.Int64() != 5000 {
		t.Errorf("amount = %s", event.Amount)
	}
	if event.TotalRaised.Int64() != 15000 {
		t.Errorf("totalRaised = %s", event.TotalRaised)
	}
	if event.Contract != fundraiserAddr {
		t.Errorf("contract = %s", event.Contract.Hex())
	}
	if event.BlockNumber != 120 {
		t.Errorf("block = %d", event.BlockNumber)
	}
}

func TestExtractFundraiserCreated(t *testing.T) {
	event := testExtractor().ExtractFundraiserCreated([]*ethtypes.Log{fundraiserCreatedLog(t)})
	if event == nil {
		t.Fatal("expected creation event")
	}

	if event.OnChainID.Int64() != 7 {
		t.Errorf("fundraiser id = %s", event.OnChainID)
	}
	if event.FundraiserAddress != fundraiserAddr {
		t.Errorf("fundraiser address = %s", event.FundraiserAddress.Hex())
	}
	if event.Owner != ownerAddr {
		t.Errorf("owner = %s", event.Owner.Hex())
	}
	if event.Name != "save the bees" {
		t.Errorf("name = %q", event.Name)
	}
	if event.Goal.Int64() != 1000000 {
		t.Errorf("goal = %s", event.Goal)
	}
	if event.Deadline.Int64() != 1900000000 {
		t.Errorf("deadline = %s", event.Deadline)
	}
}

func TestExtractStakeChanged(t *testing.T) {
	staked := testExtractor().ExtractStakeChanged([]*ethtypes.Log{stakeLog(t, contracts.EventStaked)})
	if staked == nil {
		t.Fatal("expected staked event")
	}
	if staked.Unstake {
		t.Error("Staked event must not be marked as unstake")
	}
	if staked.Staker != stakerAddr {
		t.Errorf("staker = %s", staked.Staker.Hex())
	}
	if staked.Amount.Int64() != 800 || staked.Shares.Int64() != 790 {
		t.Errorf("amount/shares = %s/%s", staked.Amount, staked.Shares)
	}
	if staked.Pool != poolAddr {
		t.Errorf("pool = %s", staked.Pool.Hex())
	}

	unstaked := testExtractor().ExtractStakeChanged([]*ethtypes.Log{stakeLog(t, contracts.EventUnstaked)})
	if unstaked == nil {
		t.Fatal("expected unstaked event")
	}
	if !unstaked.Unstake {
		t.Error("Unstaked event must be marked as unstake")
	}
}

func TestParseSkipsForeignLogs(t *testing.T) {
	foreign := &ethtypes.Log{
		Address: common.HexToAddress("0x00000000000000000000000000000000000000ff"),
		Topics:  []common.Hash{common.HexToHash("0xdeadbeef")},
		Data:    packWords(big.NewInt(1)),
		TxHash:  logTxHash,
	}

	parsed := testExtractor().Parse([]*ethtypes.Log{foreign}, contracts.FundraiserABI)
	if len(parsed) != 0 {
		t.Errorf("expected foreign log to be skipped, got %d events", len(parsed))
	}
}

func TestParseSkipsMalformedLogs(t *testing.T) {
	log := donationLog(t)
	log.Data = log.Data[:10] // truncated payload

	parsed := testExtractor().Parse([]*ethtypes.Log{log}, contracts.FundraiserABI)
	if len(parsed) != 0 {
		t.Errorf("expected malformed log to be skipped, got %d events", len(parsed))
	}
}

func TestParseSkipsTopiclessLogs(t *testing.T) {
	parsed := testExtractor().Parse([]*ethtypes.Log{{Address: fundraiserAddr}}, contracts.FundraiserABI)
	if len(parsed) != 0 {
		t.Errorf("expected topicless log to be skipped, got %d events", len(parsed))
	}
}

func TestExtractDonationReceivedIgnoresOtherTransactionsLogs(t *testing.T) {
	// A receipt containing only a stake event has no donation to extract.
	event := testExtractor().ExtractDonationReceived([]*ethtypes.Log{stakeLog(t, contracts.EventStaked)})
	if event != nil {
		t.Error("expected nil for a receipt without a DonationReceived event")
	}
}
