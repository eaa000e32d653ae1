package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/fundchain-core/internal/contracts"
)

// FundraiserCreated is the decoded factory creation event.
type FundraiserCreated struct {
	OnChainID         *big.Int
	FundraiserAddress common.Address
	Owner             common.Address
	Name              string
	Goal              *big.Int
	Deadline          *big.Int
	Contract          common.Address
	BlockNumber       uint64
	TxHash            string
}

// DonationReceived is the decoded donation event.
type DonationReceived struct {
	Donor       common.Address
	OnChainID   *big.Int
	Amount      *big.Int
	TotalRaised *big.Int
	Contract    common.Address
	BlockNumber uint64
	TxHash      string
}

// StakeChanged is the decoded Staked or Unstaked event. Unstake reports
// which direction the position moved.
type StakeChanged struct {
	Staker      common.Address
	Amount      *big.Int
	Shares      *big.Int
	Pool        common.Address
	Unstake     bool
	BlockNumber uint64
	TxHash      string
}

// ExtractFundraiserCreated decodes the first FundraiserCreated event from the
// logs, or returns nil when absent.
func (e *Extractor) ExtractFundraiserCreated(logs []*ethtypes.Log) *FundraiserCreated {
	parsed := First(e.Parse(logs, contracts.FundraiserFactoryABI), contracts.EventFundraiserCreated)
	if parsed == nil {
		return nil
	}

	event := &FundraiserCreated{
		Contract:    common.HexToAddress(parsed.Address),
		BlockNumber: parsed.BlockNumber,
		TxHash:      parsed.TxHash,
	}
	event.OnChainID, _ = parsed.Fields["fundraiserId"].(*big.Int)
	event.FundraiserAddress, _ = parsed.Fields["fundraiserAddress"].(common.Address)
	event.Owner, _ = parsed.Fields["owner"].(common.Address)
	event.Name, _ = parsed.Fields["name"].(string)
	event.Goal, _ = parsed.Fields["goal"].(*big.Int)
	event.Deadline, _ = parsed.Fields["deadline"].(*big.Int)

	if event.OnChainID == nil || event.FundraiserAddress == (common.Address{}) {
		return nil
	}
	return event
}

// ExtractDonationReceived decodes the first DonationReceived event from the
// logs, or returns nil when absent.
func (e *Extractor) ExtractDonationReceived(logs []*ethtypes.Log) *DonationReceived {
	parsed := First(e.Parse(logs, contracts.FundraiserABI), contracts.EventDonationReceived)
	if parsed == nil {
		return nil
	}

	event := &DonationReceived{
		Contract:    common.HexToAddress(parsed.Address),
		BlockNumber: parsed.BlockNumber,
		TxHash:      parsed.TxHash,
	}
	event.Donor, _ = parsed.Fields["donor"].(common.Address)
	event.OnChainID, _ = parsed.Fields["fundraiserId"].(*big.Int)
	event.Amount, _ = parsed.Fields["amount"].(*big.Int)
	event.TotalRaised, _ = parsed.Fields["totalRaised"].(*big.Int)

	if event.Amount == nil || event.OnChainID == nil {
		return nil
	}
	return event
}

// ExtractStakeChanged decodes the first Staked or Unstaked event from the
// logs, or returns nil when neither is present.
func (e *Extractor) ExtractStakeChanged(logs []*ethtypes.Log) *StakeChanged {
	all := e.Parse(logs, contracts.StakingPoolABI)

	parsed := First(all, contracts.EventStaked)
	unstake := false
	if parsed == nil {
		parsed = First(all, contracts.EventUnstaked)
		unstake = true
	}
	if parsed == nil {
		return nil
	}

	event := &StakeChanged{
		Pool:        common.HexToAddress(parsed.Address),
		Unstake:     unstake,
		BlockNumber: parsed.BlockNumber,
		TxHash:      parsed.TxHash,
	}
	event.Staker, _ = parsed.Fields["staker"].(common.Address)
	event.Amount, _ = parsed.Fields["amount"].(*big.Int)
	event.Shares, _ = parsed.Fields["shares"].(*big.Int)

	if event.Amount == nil || event.Staker == (common.Address{}) {
		return nil
	}
	return event
}
