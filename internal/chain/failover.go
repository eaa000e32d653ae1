package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/fundchain-core/internal/logging"
	"github.com/fundchain-core/internal/retry"
	"github.com/fundchain-core/internal/types"
)

// physicalConn pairs one endpoint configuration with its live client.
type physicalConn struct {
	endpoint Endpoint
	backend  Backend
}

// FailoverGroup is a Backend over several endpoints for one chain, tried in
// priority order with a quorum of one: the first responsive endpoint's
// answer is accepted. Each endpoint is bounded by its stall timeout, so a
// request never blocks past the sum of the group's stall timeouts.
type FailoverGroup struct {
	chainID types.ChainID
	conns   []*physicalConn
	logger  *logging.Logger

	mu     sync.Mutex
	closed bool
}

// NewFailoverGroup builds a failover group from priority-ordered connections.
func NewFailoverGroup(chainID types.ChainID, conns []*physicalConn, logger *logging.Logger) *FailoverGroup {
	return &FailoverGroup{
		chainID: chainID,
		conns:   conns,
		logger:  logger.WithChain(int64(chainID)),
	}
}

// do runs fn against each endpoint in priority order until one succeeds.
// A non-retryable error (revert, bad argument) is deterministic and is
// returned immediately instead of being replayed against lower-priority
// endpoints.
func (g *FailoverGroup) do(ctx context.Context, label string, fn func(ctx context.Context, b Backend) error) error {
	var lastErr error

	for i, conn := range g.conns {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		attemptCtx, cancel := context.WithTimeout(ctx, conn.endpoint.StallTimeout)
		err := fn(attemptCtx, conn.backend)
		cancel()

		if err == nil {
			return nil
		}

		lastErr = err

		if retry.IsNonRetryable(err) {
			return err
		}

		g.logger.WithFields(map[string]interface{}{
			"operation": label,
			"endpoint":  i,
			"error":     err.Error(),
		}).Warn("Endpoint failed, falling through to next priority")
	}

	return fmt.Errorf("all %d endpoints failed for %s: %w", len(g.conns), label, lastErr)
}

// BlockNumber implements Backend.
func (g *FailoverGroup) BlockNumber(ctx context.Context) (uint64, error) {
	var out uint64
	err := g.do(ctx, "BlockNumber", func(ctx context.Context, b Backend) error {
		v, err := b.BlockNumber(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// TransactionReceipt implements Backend.
func (g *FailoverGroup) TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	var out *ethtypes.Receipt
	err := g.do(ctx, "TransactionReceipt", func(ctx context.Context, b Backend) error {
		v, err := b.TransactionReceipt(ctx, txHash)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// TransactionByHash implements Backend.
func (g *FailoverGroup) TransactionByHash(ctx context.Context, txHash common.Hash) (*ethtypes.Transaction, bool, error) {
	var (
		tx      *ethtypes.Transaction
		pending bool
	)
	err := g.do(ctx, "TransactionByHash", func(ctx context.Context, b Backend) error {
		v, p, err := b.TransactionByHash(ctx, txHash)
		if err != nil {
			return err
		}
		tx, pending = v, p
		return nil
	})
	return tx, pending, err
}

// CallContract implements Backend.
func (g *FailoverGroup) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	var out []byte
	err := g.do(ctx, "CallContract", func(ctx context.Context, b Backend) error {
		v, err := b.CallContract(ctx, msg, blockNumber)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// PendingNonceAt implements Backend.
func (g *FailoverGroup) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	var out uint64
	err := g.do(ctx, "PendingNonceAt", func(ctx context.Context, b Backend) error {
		v, err := b.PendingNonceAt(ctx, account)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// SuggestGasPrice implements Backend.
func (g *FailoverGroup) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	var out *big.Int
	err := g.do(ctx, "SuggestGasPrice", func(ctx context.Context, b Backend) error {
		v, err := b.SuggestGasPrice(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// EstimateGas implements Backend.
func (g *FailoverGroup) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	var out uint64
	err := g.do(ctx, "EstimateGas", func(ctx context.Context, b Backend) error {
		v, err := b.EstimateGas(ctx, msg)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// SendTransaction implements Backend.
func (g *FailoverGroup) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	return g.do(ctx, "SendTransaction", func(ctx context.Context, b Backend) error {
		return b.SendTransaction(ctx, tx)
	})
}

// Close closes every physical connection in the group.
func (g *FailoverGroup) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return
	}
	g.closed = true

	for _, conn := range g.conns {
		conn.backend.Close()
	}
}
