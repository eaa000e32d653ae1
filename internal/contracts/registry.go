package contracts

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/fundchain-core/internal/chain"
	"github.com/fundchain-core/internal/config"
	apperrors "github.com/fundchain-core/internal/errors"
	"github.com/fundchain-core/internal/logging"
	"github.com/fundchain-core/internal/types"
)

// Handle is a bound (chain, contract-name) instance. Handles are cached for
// the process lifetime and re-created wholesale on reconnection; they are
// never mutated after creation.
type Handle struct {
	Name    string
	ChainID types.ChainID
	Address common.Address
	ABI     abi.ABI

	backend chain.Backend
}

// Backend returns the chain connection the handle is bound to.
func (h *Handle) Backend() chain.Backend {
	return h.backend
}

// Call executes a read method against the contract and returns the unpacked
// outputs.
func (h *Handle) Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := h.ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s.%s: %w", h.Name, method, err)
	}

	msg := ethereum.CallMsg{To: &h.Address, Data: data}
	out, err := h.backend.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s.%s: %w", h.Name, method, err)
	}

	values, err := h.ABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s.%s: %w", h.Name, method, err)
	}
	return values, nil
}

// CallBig executes a read method expected to return a single uint256.
func (h *Handle) CallBig(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	values, err := h.Call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("call %s.%s: expected 1 output, got %d", h.Name, method, len(values))
	}
	value, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("call %s.%s: output is %T, not *big.Int", h.Name, method, values[0])
	}
	return value, nil
}

// Signer holds the validated write credential.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// Address returns the signing account address.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignedHandle is a Handle whose write methods are authorized.
type SignedHandle struct {
	*Handle
	signer *Signer
}

// Transact builds, signs and submits a state-changing call, returning the
// submitted transaction.
func (h *SignedHandle) Transact(ctx context.Context, method string, args ...interface{}) (*ethtypes.Transaction, error) {
	data, err := h.ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s.%s: %w", h.Name, method, err)
	}

	from := h.signer.address

	nonce, err := h.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("fetch nonce for %s: %w", from.Hex(), err)
	}

	gasPrice, err := h.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}

	gasLimit, err := h.backend.EstimateGas(ctx, ethereum.CallMsg{
		From: from,
		To:   &h.Address,
		Data: data,
	})
	if err != nil {
		return nil, fmt.Errorf("estimate gas for %s.%s: %w", h.Name, method, err)
	}

	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &h.Address,
		Value:    big.NewInt(0),
		Data:     data,
	})

	signed, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(big.NewInt(int64(h.ChainID))), h.signer.key)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	if err := h.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send %s.%s: %w", h.Name, method, err)
	}

	return signed, nil
}

type handleKey struct {
	name    string
	chainID types.ChainID
}

// Registry caches contract handles per (chain, contract-name) and owns the
// optional signing identity. Handles are replaced whole; readers never see a
// partially constructed entry.
type Registry struct {
	chains  *config.ChainsConfig
	manager *chain.Manager
	logger  *logging.Logger

	mu       sync.RWMutex
	handles  map[handleKey]*Handle
	resolved map[types.ChainID]bool

	signer *Signer
}

// NewRegistry creates the contract registry. A malformed signing key is
// logged and dropped; it never crashes the process.
func NewRegistry(chains *config.ChainsConfig, signerCfg config.SignerConfig, manager *chain.Manager, logger *logging.Logger) *Registry {
	r := &Registry{
		chains:   chains,
		manager:  manager,
		logger:   logger,
		handles:  make(map[handleKey]*Handle),
		resolved: make(map[types.ChainID]bool),
	}

	if signerCfg.PrivateKey != "" {
		key, err := ValidateSignerKey(signerCfg.PrivateKey)
		if err != nil {
			logger.WithError(err).Error("Rejecting configured signing key; write operations disabled")
		} else {
			r.signer = &Signer{
				key:     key,
				address: crypto.PubkeyToAddress(key.PublicKey),
			}
			logger.WithField("signer", r.signer.address.Hex()).Info("Signing identity configured")
		}
	}

	// Stale handles reference the replaced connection; drop them so the next
	// lookup rebinds against the fresh one.
	manager.OnReconnect(r.invalidate)

	return r
}

// HasSigner reports whether a write credential is configured.
func (r *Registry) HasSigner() bool {
	return r.signer != nil
}

// SignerAddress returns the signing account address, or the zero address
// when no signer is configured.
func (r *Registry) SignerAddress() common.Address {
	if r.signer == nil {
		return common.Address{}
	}
	return r.signer.address
}

// Contract returns the cached handle for a named contract on a chain.
func (r *Registry) Contract(name string, chainID types.ChainID) (*Handle, error) {
	chainID = r.manager.ResolveChain(chainID)

	r.mu.RLock()
	handle, ok := r.handles[handleKey{name: name, chainID: chainID}]
	resolved := r.resolved[chainID]
	r.mu.RUnlock()

	if ok {
		return handle, nil
	}
	if !resolved {
		if err := r.resolveChain(chainID); err != nil {
			return nil, err
		}
		r.mu.RLock()
		handle, ok = r.handles[handleKey{name: name, chainID: chainID}]
		r.mu.RUnlock()
		if ok {
			return handle, nil
		}
	}

	return nil, apperrors.NewContractNotRegisteredError(name, chainID)
}

// ContractWithSigner returns a handle whose write methods are authorized.
func (r *Registry) ContractWithSigner(name string, chainID types.ChainID) (*SignedHandle, error) {
	if r.signer == nil {
		return nil, apperrors.NewNoSignerConfiguredError()
	}

	handle, err := r.Contract(name, chainID)
	if err != nil {
		return nil, err
	}

	return &SignedHandle{Handle: handle, signer: r.signer}, nil
}

// Bind constructs an uncached handle for an instance contract (for example a
// deployed fundraiser) that shares a known interface but has a per-record
// address.
func (r *Registry) Bind(name string, chainID types.ChainID, address common.Address) (*Handle, error) {
	chainID = r.manager.ResolveChain(chainID)

	contractABI, ok := ABIFor(name)
	if !ok {
		return nil, apperrors.NewContractNotRegisteredError(name, chainID)
	}
	if address == (common.Address{}) {
		return nil, apperrors.NewContractNotRegisteredError(name, chainID)
	}

	backend, err := r.manager.GetConnection(chainID)
	if err != nil {
		return nil, err
	}

	return &Handle{
		Name:    name,
		ChainID: chainID,
		Address: address,
		ABI:     contractABI,
		backend: backend,
	}, nil
}

// resolveChain builds handles for every configured contract of a chain.
// Contracts with a zero address or unknown interface are skipped: a chain
// may legitimately have only a subset deployed.
func (r *Registry) resolveChain(chainID types.ChainID) error {
	backend, err := r.manager.GetConnection(chainID)
	if err != nil {
		return err
	}

	chainCfg := r.chains.ChainConfigFor(chainID)

	built := make(map[handleKey]*Handle)
	for name, addrStr := range chainCfg.Contracts {
		logger := r.logger.WithChain(int64(chainID)).WithField("contract", name)

		if addrStr == "" || !common.IsHexAddress(addrStr) {
			logger.Debug("Skipping contract: no deployed address configured")
			continue
		}
		address := common.HexToAddress(addrStr)
		if address == (common.Address{}) {
			logger.Warn("Skipping contract: zero-address sentinel")
			continue
		}

		contractABI, ok := ABIFor(name)
		if !ok {
			logger.Warn("Skipping contract: unknown interface")
			continue
		}

		built[handleKey{name: name, chainID: chainID}] = &Handle{
			Name:    name,
			ChainID: chainID,
			Address: address,
			ABI:     contractABI,
			backend: backend,
		}
		logger.WithField("address", address.Hex()).Info("Contract handle registered")
	}

	r.mu.Lock()
	for key, handle := range built {
		r.handles[key] = handle
	}
	r.resolved[chainID] = true
	r.mu.Unlock()

	return nil
}

// invalidate drops every handle bound to a chain after reconnection.
func (r *Registry) invalidate(chainID types.ChainID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key := range r.handles {
		if key.chainID == chainID {
			delete(r.handles, key)
		}
	}
	r.resolved[chainID] = false
}

// ValidateSignerKey parses and validates a signing private key: 64 hex
// characters with or without a 0x prefix, within the curve order, and not a
// trivially guessable value.
func ValidateSignerKey(raw string) (*ecdsa.PrivateKey, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if len(trimmed) != 64 {
		return nil, fmt.Errorf("signing key must be 64 hex characters, got %d", len(trimmed))
	}

	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, fmt.Errorf("malformed signing key: %w", err)
	}

	// Keys with almost no entropy are sweepable the moment they are funded.
	if key.D.BitLen() < 32 {
		return nil, fmt.Errorf("signing key rejected: known-weak value")
	}

	return key, nil
}
