package chain

import (
	"context"
	"sync"
	"time"

	"github.com/fundchain-core/internal/config"
	apperrors "github.com/fundchain-core/internal/errors"
	"github.com/fundchain-core/internal/logging"
	"github.com/fundchain-core/internal/retry"
	"github.com/fundchain-core/internal/types"
)

// Status is the mutable per-chain connection record. It is updated only by
// the health-check loop and by explicit probes; callers read it through
// IsConnected and HealthSnapshot.
type Status struct {
	ChainID     types.ChainID `json:"chainId"`
	Name        string        `json:"name"`
	Connected   bool          `json:"connected"`
	BlockHeight uint64        `json:"blockHeight"`
	LatencyMS   int64         `json:"latencyMs"`
	LastError   string        `json:"lastError,omitempty"`
	CheckedAt   time.Time     `json:"checkedAt"`
}

// Snapshot is the health view over all chains. OverallHealthy is a liveness
// signal for the whole layer: true iff at least one chain is connected.
type Snapshot struct {
	OverallHealthy bool     `json:"overallHealthy"`
	Chains         []Status `json:"chains"`
}

// ManagerConfig configures the connection manager.
type ManagerConfig struct {
	Chains    *config.ChainsConfig
	Endpoints *EndpointRegistry
	Logger    *logging.Logger

	// Dial overrides the endpoint dialer; nil means DialEndpoint.
	Dial DialFunc
	// DisableHealthLoop skips the periodic health timer (test/ephemeral runs).
	DisableHealthLoop bool
}

// Manager owns one logical connection per chain and keeps it healthy through
// periodic probes and reconnection. Connection handles are replaced whole on
// reconnection; readers always see either the old or the new handle.
type Manager struct {
	cfg       *config.ChainsConfig
	endpoints *EndpointRegistry
	dial      DialFunc
	logger    *logging.Logger

	healthInterval    time.Duration
	disableHealthLoop bool

	mu     sync.RWMutex
	conns  map[types.ChainID]Backend
	status map[types.ChainID]Status
	hooks  []func(types.ChainID)

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewManager creates a connection manager. Start must be called before use.
func NewManager(cfg ManagerConfig) *Manager {
	dial := cfg.Dial
	if dial == nil {
		dial = DialEndpoint
	}

	interval := cfg.Chains.HealthCheckInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	return &Manager{
		cfg:               cfg.Chains,
		endpoints:         cfg.Endpoints,
		dial:              dial,
		logger:            cfg.Logger,
		healthInterval:    interval,
		disableHealthLoop: cfg.DisableHealthLoop,
		conns:             make(map[types.ChainID]Backend),
		status:            make(map[types.ChainID]Status),
		stopCh:            make(chan struct{}),
		doneCh:            make(chan struct{}),
	}
}

// Start connects every enabled chain and launches the health-check loop.
// A chain failing to connect is recorded as disconnected, not fatal: the
// health loop keeps retrying.
func (m *Manager) Start(ctx context.Context) {
	for _, chainID := range m.cfg.Enabled {
		m.connect(ctx, chainID)
	}

	if m.disableHealthLoop {
		close(m.doneCh)
		return
	}

	go m.healthLoop()
}

// connect builds the connection handle for one chain and swaps it in.
func (m *Manager) connect(ctx context.Context, chainID types.ChainID) {
	logger := m.logger.WithChain(int64(chainID))

	spec, ok := SpecFor(chainID)
	if !ok {
		m.setStatus(Status{ChainID: chainID, Connected: false, LastError: "unsupported chain", CheckedAt: time.Now()})
		logger.Warn("Skipping unsupported chain")
		return
	}

	endpoints := m.endpoints.EndpointsFor(chainID)
	if len(endpoints) == 0 {
		m.setStatus(Status{ChainID: chainID, Name: spec.Name, Connected: false, LastError: "no endpoints configured", CheckedAt: time.Now()})
		logger.Warn("Skipping chain: no endpoints configured")
		return
	}

	var (
		conns       []*physicalConn
		blockHeight uint64
		latency     time.Duration
		probed      bool
	)

	for i, endpoint := range endpoints {
		backend, err := m.dial(ctx, endpoint.URL)
		if err != nil {
			logger.WithFields(map[string]interface{}{
				"endpoint": i,
				"error":    err.Error(),
			}).Warn("Failed to dial endpoint, skipping")
			continue
		}

		// Bounded-retry block-height probe. Endpoints that fail the probe
		// are still registered; the health loop keeps retrying them.
		start := time.Now()
		height, probeErr := probeBlockHeight(ctx, backend, endpoint.StallTimeout)
		if probeErr != nil {
			logger.WithFields(map[string]interface{}{
				"endpoint": i,
				"error":    probeErr.Error(),
			}).Warn("Endpoint failed block-height probe, registering as degraded")
		} else if !probed {
			blockHeight = height
			latency = time.Since(start)
			probed = true
		}

		conns = append(conns, &physicalConn{endpoint: endpoint, backend: backend})
	}

	if len(conns) == 0 {
		m.setStatus(Status{ChainID: chainID, Name: spec.Name, Connected: false, LastError: "all endpoints failed to dial", CheckedAt: time.Now()})
		return
	}

	var handle Backend
	if len(conns) == 1 {
		handle = conns[0].backend
	} else {
		handle = NewFailoverGroup(chainID, conns, m.logger)
	}

	m.mu.Lock()
	if old, ok := m.conns[chainID]; ok {
		old.Close()
	}
	m.conns[chainID] = handle
	m.mu.Unlock()

	status := Status{
		ChainID:     chainID,
		Name:        spec.Name,
		Connected:   probed,
		BlockHeight: blockHeight,
		LatencyMS:   latency.Milliseconds(),
		CheckedAt:   time.Now(),
	}
	if !probed {
		status.LastError = "no endpoint passed startup probe"
	}
	m.setStatus(status)

	logger.WithFields(map[string]interface{}{
		"network":   spec.Name,
		"endpoints": len(conns),
		"healthy":   probed,
	}).Info("Chain connection established")
}

// probeBlockHeight tests a physical connection with a bounded retry policy.
func probeBlockHeight(ctx context.Context, backend Backend, stallTimeout time.Duration) (uint64, error) {
	var height uint64
	err := retry.Do(ctx, retry.ProbeConfig(), "block-height probe", func(ctx context.Context, attempt int) error {
		probeCtx, cancel := context.WithTimeout(ctx, stallTimeout)
		defer cancel()

		h, err := backend.BlockNumber(probeCtx)
		if err != nil {
			return err
		}
		height = h
		return nil
	})
	return height, err
}

// healthLoop re-probes every chain on a fixed cadence.
func (m *Manager) healthLoop() {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.CheckAll(context.Background())
		case <-m.stopCh:
			return
		}
	}
}

// CheckAll probes every connected chain once, updating status and triggering
// a one-shot reconnection for chains that fail. A reconnection that also
// fails is left for the next tick; there is no separate backoff loop.
func (m *Manager) CheckAll(ctx context.Context) {
	m.mu.RLock()
	chainIDs := make([]types.ChainID, 0, len(m.conns))
	for chainID := range m.conns {
		chainIDs = append(chainIDs, chainID)
	}
	m.mu.RUnlock()

	for _, chainID := range chainIDs {
		m.checkChain(ctx, chainID)
	}

	// Chains that never produced a handle (no endpoints at startup) get a
	// reconnection attempt too, picking up credential changes.
	for _, chainID := range m.cfg.Enabled {
		m.mu.RLock()
		_, hasConn := m.conns[chainID]
		m.mu.RUnlock()
		if !hasConn {
			m.connect(ctx, chainID)
		}
	}
}

// checkChain probes one chain's handle and reconnects on failure.
func (m *Manager) checkChain(ctx context.Context, chainID types.ChainID) {
	m.mu.RLock()
	handle, ok := m.conns[chainID]
	m.mu.RUnlock()
	if !ok {
		return
	}

	spec, _ := SpecFor(chainID)

	// Bound the probe by the chain's total stall budget. A single-endpoint
	// handle has no failover group enforcing per-call timeouts, so without
	// this a stalled node would block the whole tick.
	probeCtx, cancel := context.WithTimeout(ctx, m.probeBudget(chainID))
	start := time.Now()
	height, err := handle.BlockNumber(probeCtx)
	latency := time.Since(start)
	cancel()

	if err != nil {
		m.logger.WithChain(int64(chainID)).WithError(err).Warn("Health check failed, reconnecting chain")
		m.setStatus(Status{
			ChainID:   chainID,
			Name:      spec.Name,
			Connected: false,
			LastError: err.Error(),
			CheckedAt: time.Now(),
		})
		// Rebuild endpoints and connections from scratch so credential
		// changes are picked up.
		m.connect(ctx, chainID)
		m.notifyReconnect(chainID)
		return
	}

	m.setStatus(Status{
		ChainID:     chainID,
		Name:        spec.Name,
		Connected:   true,
		BlockHeight: height,
		LatencyMS:   latency.Milliseconds(),
		CheckedAt:   time.Now(),
	})
}

// probeBudget sums the configured stall timeouts of a chain's endpoints.
func (m *Manager) probeBudget(chainID types.ChainID) time.Duration {
	var budget time.Duration
	for _, endpoint := range m.endpoints.EndpointsFor(chainID) {
		budget += endpoint.StallTimeout
	}
	if budget <= 0 {
		budget = defaultStallTimeout
	}
	return budget
}

// GetConnection returns the live handle for a chain. The handle may be
// degraded; callers retry through their own policy.
func (m *Manager) GetConnection(chainID types.ChainID) (Backend, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	handle, ok := m.conns[chainID]
	if !ok {
		status := m.status[chainID]
		reason := status.LastError
		if reason == "" {
			reason = "no connection established"
		}
		return nil, apperrors.NewChainUnavailableError(chainID, reason)
	}
	return handle, nil
}

// IsConnected reads the cached connection status; it never triggers a
// network call.
func (m *Manager) IsConnected(chainID types.ChainID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status[chainID].Connected
}

// HealthSnapshot returns the health state of every enabled chain.
func (m *Manager) HealthSnapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := Snapshot{Chains: make([]Status, 0, len(m.cfg.Enabled))}
	for _, chainID := range m.cfg.Enabled {
		status, ok := m.status[chainID]
		if !ok {
			spec, _ := SpecFor(chainID)
			status = Status{ChainID: chainID, Name: spec.Name, Connected: false}
		}
		if status.Connected {
			snapshot.OverallHealthy = true
		}
		snapshot.Chains = append(snapshot.Chains, status)
	}
	return snapshot
}

// DefaultChain returns the configured default chain id.
func (m *Manager) DefaultChain() types.ChainID {
	return m.cfg.DefaultChain
}

// ResolveChain maps the zero chain id to the configured default.
func (m *Manager) ResolveChain(chainID types.ChainID) types.ChainID {
	if chainID == 0 {
		return m.cfg.DefaultChain
	}
	return chainID
}

// ConfirmationsFor returns the confirmation depth for a chain.
func (m *Manager) ConfirmationsFor(chainID types.ChainID) uint64 {
	return m.endpoints.ConfirmationsFor(chainID)
}

// OnReconnect registers a hook invoked after a chain's handle is replaced.
// The contract registry uses this to drop stale contract handles.
func (m *Manager) OnReconnect(hook func(types.ChainID)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hook)
}

func (m *Manager) notifyReconnect(chainID types.ChainID) {
	m.mu.RLock()
	hooks := make([]func(types.ChainID), len(m.hooks))
	copy(hooks, m.hooks)
	m.mu.RUnlock()

	for _, hook := range hooks {
		hook(chainID)
	}
}

// setStatus replaces a chain's status record whole.
func (m *Manager) setStatus(status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[status.ChainID] = status
}

// Stop halts the health loop and closes every connection.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	<-m.doneCh

	m.mu.Lock()
	defer m.mu.Unlock()
	for chainID, handle := range m.conns {
		handle.Close()
		delete(m.conns, chainID)
	}
}
