package chain

import (
	"fmt"
	"time"

	"github.com/fundchain-core/internal/config"
	"github.com/fundchain-core/internal/types"
)

// Endpoint is one RPC URL through which a chain can be reached.
// Endpoints are read-only after startup; only their connection status is
// tracked elsewhere.
type Endpoint struct {
	URL string
	// Priority orders endpoints within a chain; lower is preferred.
	Priority int
	// Weight distributes load among endpoints of equal priority.
	Weight int
	// StallTimeout bounds how long a request against this endpoint may take
	// before the failover group moves on.
	StallTimeout time.Duration
}

// defaultStallTimeout bounds requests against endpoints whose configuration
// carries no explicit stall timeout.
const defaultStallTimeout = 4 * time.Second

// EndpointRegistry builds prioritized endpoint lists per chain from the
// configured provider credentials.
type EndpointRegistry struct {
	cfg *config.ChainsConfig
}

// NewEndpointRegistry creates an endpoint registry over the chains configuration.
func NewEndpointRegistry(cfg *config.ChainsConfig) *EndpointRegistry {
	return &EndpointRegistry{cfg: cfg}
}

// EndpointsFor returns the ordered endpoint list for a chain. The order is:
// premium provider (Alchemy key), secondary provider (Infura key),
// operator-supplied URL, public fallback. An empty list means the chain is
// unavailable; callers must not treat that as an error.
func (r *EndpointRegistry) EndpointsFor(chainID types.ChainID) []Endpoint {
	spec, ok := SpecFor(chainID)
	if !ok {
		return nil
	}

	stall := r.cfg.StallTimeout
	if stall <= 0 {
		stall = defaultStallTimeout
	}

	var endpoints []Endpoint

	if r.cfg.AlchemyAPIKey != "" && spec.AlchemyHost != "" {
		endpoints = append(endpoints, Endpoint{
			URL:          fmt.Sprintf("https://%s/v2/%s", spec.AlchemyHost, r.cfg.AlchemyAPIKey),
			Priority:     0,
			Weight:       2,
			StallTimeout: stall,
		})
	}

	if r.cfg.InfuraAPIKey != "" && spec.InfuraHost != "" {
		endpoints = append(endpoints, Endpoint{
			URL:          fmt.Sprintf("https://%s/v3/%s", spec.InfuraHost, r.cfg.InfuraAPIKey),
			Priority:     1,
			Weight:       1,
			StallTimeout: stall,
		})
	}

	if chainCfg := r.cfg.ChainConfigFor(chainID); chainCfg.RPCURL != "" {
		endpoints = append(endpoints, Endpoint{
			URL:          chainCfg.RPCURL,
			Priority:     2,
			Weight:       1,
			StallTimeout: stall,
		})
	}

	if spec.PublicRPCURL != "" {
		endpoints = append(endpoints, Endpoint{
			URL:          spec.PublicRPCURL,
			Priority:     3,
			Weight:       1,
			StallTimeout: stall,
		})
	}

	return endpoints
}

// ConfirmationsFor returns the confirmation depth for a chain, preferring the
// configured override over the chain's static default.
func (r *EndpointRegistry) ConfirmationsFor(chainID types.ChainID) uint64 {
	if chainCfg := r.cfg.ChainConfigFor(chainID); chainCfg.Confirmations > 0 {
		return chainCfg.Confirmations
	}
	if spec, ok := SpecFor(chainID); ok {
		return spec.Confirmations
	}
	return 1
}
