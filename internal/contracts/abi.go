// Package contracts binds named contracts to addresses per chain and
// executes calls against them under the shared retry policy.
package contracts

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/fundchain-core/internal/config"
)

// Event and method names used across the ingestion pipeline.
const (
	EventFundraiserCreated = "FundraiserCreated"
	EventDonationReceived  = "DonationReceived"
	EventMilestoneReached  = "MilestoneReached"
	EventStaked            = "Staked"
	EventUnstaked          = "Unstaked"

	MethodCreateFundraiser = "createFundraiser"
	MethodTotalRaised      = "totalRaised"
	MethodGoal             = "goal"
	MethodDeadline         = "deadline"
	MethodDonationCount    = "donationCount"
	MethodTotalStaked      = "totalStaked"
	MethodRewardRate       = "rewardRate"
	MethodStakedBalance    = "stakedBalance"
	MethodEarned           = "earned"
)

const fundraiserFactoryABIJSON = `[
	{"type":"event","name":"FundraiserCreated","anonymous":false,"inputs":[
		{"name":"fundraiserId","type":"uint256","indexed":true},
		{"name":"fundraiserAddress","type":"address","indexed":true},
		{"name":"owner","type":"address","indexed":true},
		{"name":"name","type":"string","indexed":false},
		{"name":"goal","type":"uint256","indexed":false},
		{"name":"deadline","type":"uint256","indexed":false}]},
	{"type":"function","name":"createFundraiser","stateMutability":"nonpayable","inputs":[
		{"name":"name","type":"string"},
		{"name":"goal","type":"uint256"},
		{"name":"deadline","type":"uint256"}],
		"outputs":[{"name":"fundraiserId","type":"uint256"}]}
]`

const fundraiserABIJSON = `[
	{"type":"event","name":"DonationReceived","anonymous":false,"inputs":[
		{"name":"donor","type":"address","indexed":true},
		{"name":"fundraiserId","type":"uint256","indexed":true},
		{"name":"amount","type":"uint256","indexed":false},
		{"name":"totalRaised","type":"uint256","indexed":false}]},
	{"type":"event","name":"MilestoneReached","anonymous":false,"inputs":[
		{"name":"fundraiserId","type":"uint256","indexed":true},
		{"name":"milestone","type":"uint256","indexed":false}]},
	{"type":"function","name":"totalRaised","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"goal","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"deadline","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"donationCount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

const stakingPoolABIJSON = `[
	{"type":"event","name":"Staked","anonymous":false,"inputs":[
		{"name":"staker","type":"address","indexed":true},
		{"name":"amount","type":"uint256","indexed":false},
		{"name":"shares","type":"uint256","indexed":false}]},
	{"type":"event","name":"Unstaked","anonymous":false,"inputs":[
		{"name":"staker","type":"address","indexed":true},
		{"name":"amount","type":"uint256","indexed":false},
		{"name":"shares","type":"uint256","indexed":false}]},
	{"type":"function","name":"totalStaked","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"rewardRate","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"stakedBalance","stateMutability":"view","inputs":[{"name":"staker","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"earned","stateMutability":"view","inputs":[{"name":"staker","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

// Parsed contract interfaces, validated once at process start. A malformed
// definition is a build defect and fails fast.
var (
	FundraiserFactoryABI = mustParseABI(config.ContractFundraiserFactory, fundraiserFactoryABIJSON)
	FundraiserABI        = mustParseABI(config.ContractFundraiser, fundraiserABIJSON)
	StakingPoolABI       = mustParseABI(config.ContractStakingPool, stakingPoolABIJSON)

	abisByName = map[string]abi.ABI{
		config.ContractFundraiserFactory: FundraiserFactoryABI,
		config.ContractFundraiser:        FundraiserABI,
		config.ContractStakingPool:       StakingPoolABI,
	}
)

// ABIFor returns the interface definition for a contract name.
func ABIFor(name string) (abi.ABI, bool) {
	parsed, ok := abisByName[name]
	return parsed, ok
}

func mustParseABI(name, raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("invalid ABI definition for %s: %v", name, err))
	}
	return parsed
}
