package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Backend is the subset of an Ethereum RPC client the core uses. It is
// implemented by *ethclient.Client for a single endpoint and by
// *FailoverGroup for a multi-endpoint chain.
type Backend interface {
	BlockNumber(ctx context.Context) (uint64, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	TransactionByHash(ctx context.Context, txHash common.Hash) (*ethtypes.Transaction, bool, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	Close()
}

// DialFunc produces a Backend for one endpoint URL. Production code uses
// DialEndpoint; tests inject fakes.
type DialFunc func(ctx context.Context, url string) (Backend, error)

// DialEndpoint dials a single RPC endpoint.
func DialEndpoint(ctx context.Context, url string) (Backend, error) {
	return ethclient.DialContext(ctx, url)
}
