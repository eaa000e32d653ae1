package chain

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fundchain-core/internal/config"
	apperrors "github.com/fundchain-core/internal/errors"
	"github.com/fundchain-core/internal/types"
)

// flakyDialer hands out backends that fail BlockNumber a configurable number
// of times before recovering.
type flakyDialer struct {
	mu        sync.Mutex
	dials     int
	failCount int
}

func (d *flakyDialer) dial(ctx context.Context, url string) (Backend, error) {
	d.mu.Lock()
	d.dials++
	d.mu.Unlock()

	return &fakeBackend{
		blockNumber: func(ctx context.Context) (uint64, error) {
			d.mu.Lock()
			defer d.mu.Unlock()
			if d.failCount > 0 {
				d.failCount--
				return 0, errors.New("connection reset")
			}
			return 100, nil
		},
	}, nil
}

func (d *flakyDialer) setFailCount(n int) {
	d.mu.Lock()
	d.failCount = n
	d.mu.Unlock()
}

func (d *flakyDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func testChainsConfig() *config.ChainsConfig {
	return &config.ChainsConfig{
		DefaultChain: types.ChainBaseSepolia,
		Enabled:      []types.ChainID{types.ChainBaseSepolia},
		StallTimeout: 100 * time.Millisecond,
		Chains: map[types.ChainID]config.ChainConfig{
			types.ChainBaseSepolia: {RPCURL: "https://operator.example.com"},
		},
	}
}

func newTestManager(t *testing.T, dialer *flakyDialer) *Manager {
	t.Helper()

	cfg := testChainsConfig()
	manager := NewManager(ManagerConfig{
		Chains:            cfg,
		Endpoints:         NewEndpointRegistry(cfg),
		Logger:            testLogger(),
		Dial:              dialer.dial,
		DisableHealthLoop: true,
	})
	manager.Start(context.Background())
	t.Cleanup(manager.Stop)
	return manager
}

func TestManagerStartConnectsEnabledChains(t *testing.T) {
	dialer := &flakyDialer{}
	manager := newTestManager(t, dialer)

	backend, err := manager.GetConnection(types.ChainBaseSepolia)
	if err != nil {
		t.Fatalf("expected connection, got %v", err)
	}
	if backend == nil {
		t.Fatal("expected a live handle")
	}
	if !manager.IsConnected(types.ChainBaseSepolia) {
		t.Error("expected chain to be connected")
	}
	// Operator URL plus public fallback.
	if dialer.dialCount() != 2 {
		t.Errorf("expected 2 dials, got %d", dialer.dialCount())
	}
}

func TestManagerGetConnectionUnknownChain(t *testing.T) {
	manager := newTestManager(t, &flakyDialer{})

	_, err := manager.GetConnection(types.ChainEthereum)
	if err == nil {
		t.Fatal("expected error for chain without a connection")
	}
	if !apperrors.HasCode(err, apperrors.CodeChainUnavailable) {
		t.Errorf("expected CHAIN_UNAVAILABLE, got %v", err)
	}
}

func TestManagerHealthSnapshot(t *testing.T) {
	manager := newTestManager(t, &flakyDialer{})

	snapshot := manager.HealthSnapshot()
	if !snapshot.OverallHealthy {
		t.Error("expected overall healthy")
	}
	if len(snapshot.Chains) != 1 {
		t.Fatalf("expected 1 chain status, got %d", len(snapshot.Chains))
	}
	status := snapshot.Chains[0]
	if status.ChainID != types.ChainBaseSepolia || !status.Connected {
		t.Errorf("unexpected status: %+v", status)
	}
	if status.BlockHeight != 100 {
		t.Errorf("expected probed block height 100, got %d", status.BlockHeight)
	}
}

func TestManagerCheckAllReconnectsFailedChain(t *testing.T) {
	dialer := &flakyDialer{}
	manager := newTestManager(t, dialer)

	var (
		mu          sync.Mutex
		reconnected []types.ChainID
	)
	manager.OnReconnect(func(chainID types.ChainID) {
		mu.Lock()
		reconnected = append(reconnected, chainID)
		mu.Unlock()
	})

	dialsBefore := dialer.dialCount()

	// Both endpoints of the failover handle fail once each, so the group
	// call fails and triggers reconnection with fresh healthy backends.
	dialer.setFailCount(2)
	manager.CheckAll(context.Background())

	if dialer.dialCount() <= dialsBefore {
		t.Error("expected reconnection to dial fresh backends")
	}
	if !manager.IsConnected(types.ChainBaseSepolia) {
		t.Error("expected chain to be reconnected")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(reconnected) != 1 || reconnected[0] != types.ChainBaseSepolia {
		t.Errorf("expected one reconnect notification, got %v", reconnected)
	}
}

func TestManagerCheckAllBoundsStalledSingleEndpoint(t *testing.T) {
	var (
		mu    sync.Mutex
		stall bool
		dials int
	)

	// Only the first dial succeeds, so the chain runs on a raw single-endpoint
	// handle with no failover group in front of it.
	dial := func(ctx context.Context, url string) (Backend, error) {
		mu.Lock()
		defer mu.Unlock()
		dials++
		if dials > 1 {
			return nil, errors.New("endpoint unreachable")
		}
		return &fakeBackend{
			blockNumber: func(ctx context.Context) (uint64, error) {
				mu.Lock()
				stalled := stall
				mu.Unlock()
				if stalled {
					<-ctx.Done()
					return 0, ctx.Err()
				}
				return 100, nil
			},
		}, nil
	}

	cfg := testChainsConfig()
	manager := NewManager(ManagerConfig{
		Chains:            cfg,
		Endpoints:         NewEndpointRegistry(cfg),
		Logger:            testLogger(),
		Dial:              dial,
		DisableHealthLoop: true,
	})
	manager.Start(context.Background())
	t.Cleanup(manager.Stop)

	if !manager.IsConnected(types.ChainBaseSepolia) {
		t.Fatal("expected the surviving endpoint to connect")
	}

	mu.Lock()
	stall = true
	mu.Unlock()

	done := make(chan struct{})
	go func() {
		manager.CheckAll(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("health tick did not complete against a stalled endpoint")
	}
	if manager.IsConnected(types.ChainBaseSepolia) {
		t.Error("expected the stalled chain to be marked disconnected")
	}
}

func TestManagerResolveChain(t *testing.T) {
	manager := newTestManager(t, &flakyDialer{})

	if got := manager.ResolveChain(0); got != types.ChainBaseSepolia {
		t.Errorf("zero chain id should resolve to the default, got %d", got)
	}
	if got := manager.ResolveChain(types.ChainEthereum); got != types.ChainEthereum {
		t.Errorf("explicit chain id must pass through, got %d", got)
	}
}
