// Package chain provides the blockchain connectivity layer: endpoint
// registry, failover-capable connections and per-chain health tracking.
package chain

import (
	"github.com/fundchain-core/internal/types"
)

// Spec is the static network descriptor for a supported chain. The chain id
// and name are always taken from this table, never from the remote node, so
// a misbehaving endpoint reporting a different chain id cannot trigger a
// reconfiguration.
type Spec struct {
	ID            types.ChainID
	Name          string
	Confirmations uint64
	Native        types.NativeCurrency
	// PublicRPCURL is the no-credential fallback endpoint.
	PublicRPCURL string
	// AlchemyHost and InfuraHost are the provider hostnames for this network.
	AlchemyHost string
	InfuraHost  string
}

var specs = map[types.ChainID]Spec{
	types.ChainEthereum: {
		ID:            types.ChainEthereum,
		Name:          "Ethereum",
		Confirmations: 3,
		Native:        types.NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18},
		PublicRPCURL:  "https://ethereum-rpc.publicnode.com",
		AlchemyHost:   "eth-mainnet.g.alchemy.com",
		InfuraHost:    "mainnet.infura.io",
	},
	types.ChainSepolia: {
		ID:            types.ChainSepolia,
		Name:          "Sepolia",
		Confirmations: 1,
		Native:        types.NativeCurrency{Name: "Sepolia Ether", Symbol: "ETH", Decimals: 18},
		PublicRPCURL:  "https://ethereum-sepolia-rpc.publicnode.com",
		AlchemyHost:   "eth-sepolia.g.alchemy.com",
		InfuraHost:    "sepolia.infura.io",
	},
	types.ChainBase: {
		ID:            types.ChainBase,
		Name:          "Base",
		Confirmations: 2,
		Native:        types.NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18},
		PublicRPCURL:  "https://mainnet.base.org",
		AlchemyHost:   "base-mainnet.g.alchemy.com",
		InfuraHost:    "base-mainnet.infura.io",
	},
	types.ChainBaseSepolia: {
		ID:            types.ChainBaseSepolia,
		Name:          "Base Sepolia",
		Confirmations: 1,
		Native:        types.NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18},
		PublicRPCURL:  "https://sepolia.base.org",
		AlchemyHost:   "base-sepolia.g.alchemy.com",
		InfuraHost:    "base-sepolia.infura.io",
	},
}

// SpecFor returns the static descriptor for a chain id.
func SpecFor(chainID types.ChainID) (Spec, bool) {
	spec, ok := specs[chainID]
	return spec, ok
}

// SupportedChains returns the chain ids this build knows about.
func SupportedChains() []types.ChainID {
	ids := make([]types.ChainID, 0, len(specs))
	for id := range specs {
		ids = append(ids, id)
	}
	return ids
}
