// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fundchain-core/internal/chain"
	"github.com/fundchain-core/internal/models"
	"github.com/fundchain-core/internal/service"
	"github.com/fundchain-core/internal/types"
	"github.com/gorilla/mux"
)

// Service interfaces for dependency injection and testing

// FundraiserServiceInterface defines the interface for fundraiser operations
type FundraiserServiceInterface interface {
	CreateFundraiserOnChain(ctx context.Context, input service.CreateFundraiserInput) (*models.Fundraiser, error)
	RecordFundraiserFromTransaction(ctx context.Context, chainID types.ChainID, txHash string) (*models.Fundraiser, bool, error)
	GetLiveFundraiserData(ctx context.Context, chainID types.ChainID, contractAddress string) (*models.LiveFundraiserData, error)
	SyncFundraiserFromChain(ctx context.Context, fundraiserID string) (*models.Fundraiser, error)
}

// DonationServiceInterface defines the interface for donation operations
type DonationServiceInterface interface {
	RecordDonationFromTransaction(ctx context.Context, input service.RecordDonationInput) (*models.Donation, bool, error)
}

// StakeServiceInterface defines the interface for staking operations
type StakeServiceInterface interface {
	RecordStakeFromTransaction(ctx context.Context, chainID types.ChainID, txHash string) (*models.Stake, bool, error)
	RecordUnstakeFromTransaction(ctx context.Context, chainID types.ChainID, txHash string) ([]*models.Stake, error)
	SyncStakeFromChain(ctx context.Context, stakeID string) (*models.Stake, error)
	GetStakingPoolData(ctx context.Context, chainID types.ChainID) (*models.StakingPoolData, error)
	GetUserStakingInfo(ctx context.Context, chainID types.ChainID, stakerAddress string) (*models.UserStakingInfo, error)
}

// HealthProvider exposes the chain connectivity health view
type HealthProvider interface {
	HealthSnapshot() chain.Snapshot
}

// Server represents the HTTP API server.
type Server struct {
	router            *mux.Router
	httpServer        *http.Server
	fundraiserService FundraiserServiceInterface
	donationService   DonationServiceInterface
	stakeService      StakeServiceInterface
	health            HealthProvider
	config            *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RateLimitRPS    int
	RateLimitBurst  int
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	fundraiserService FundraiserServiceInterface,
	donationService DonationServiceInterface,
	stakeService StakeServiceInterface,
	health HealthProvider,
) *Server {
	s := &Server{
		router:            mux.NewRouter(),
		fundraiserService: fundraiserService,
		donationService:   donationService,
		stakeService:      stakeService,
		health:            health,
		config:            config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RateLimitRPS, s.config.RateLimitBurst)

	// Set up middleware (order matters!)
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Fundraiser endpoints
	api.HandleFunc("/fundraisers", s.handleCreateFundraiser).Methods("POST")
	api.HandleFunc("/fundraisers/verify", s.handleVerifyFundraiser).Methods("POST")
	api.HandleFunc("/fundraisers/{id}/sync", s.handleSyncFundraiser).Methods("POST")
	api.HandleFunc("/fundraisers/{address}/live", s.handleGetLiveFundraiser).Methods("GET")

	// Donation endpoints
	api.HandleFunc("/donations/verify", s.handleVerifyDonation).Methods("POST")

	// Staking endpoints
	api.HandleFunc("/stakes/verify", s.handleVerifyStake).Methods("POST")
	api.HandleFunc("/stakes/unstake", s.handleVerifyUnstake).Methods("POST")
	api.HandleFunc("/stakes/{id}/sync", s.handleSyncStake).Methods("POST")
	api.HandleFunc("/staking/pool", s.handleGetStakingPool).Methods("GET")
	api.HandleFunc("/staking/users/{address}", s.handleGetUserStaking).Methods("GET")
}

// Router returns the underlying router, used by tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
