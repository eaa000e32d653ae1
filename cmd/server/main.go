// Package main provides the API server entry point for the fundchain core.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fundchain-core/internal/api"
	"github.com/fundchain-core/internal/chain"
	"github.com/fundchain-core/internal/config"
	"github.com/fundchain-core/internal/contracts"
	"github.com/fundchain-core/internal/events"
	"github.com/fundchain-core/internal/logging"
	"github.com/fundchain-core/internal/service"
	"github.com/fundchain-core/internal/storage"
	"github.com/fundchain-core/internal/verifier"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
		"env":    cfg.App.Env,
	}).Info("Structured logging initialized")

	// Initialize database connections
	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	logger.Info("Database connections established")

	// Initialize chain connectivity
	endpoints := chain.NewEndpointRegistry(&cfg.Chains)
	manager := chain.NewManager(chain.ManagerConfig{
		Chains:    &cfg.Chains,
		Endpoints: endpoints,
		Logger:    logger,
		// Ephemeral runs must not leave health timers behind.
		DisableHealthLoop: cfg.App.Env == "test",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager.Start(ctx)
	defer manager.Stop()

	registry := contracts.NewRegistry(&cfg.Chains, cfg.Signer, manager, logger)
	exec := contracts.NewExecutor(logger)
	txVerifier := verifier.New(exec, logger)
	extractor := events.NewExtractor(logger)

	// Initialize repositories and cache
	userRepo := storage.NewUserRepository(postgres)
	fundraiserRepo := storage.NewFundraiserRepository(postgres)
	donationRepo := storage.NewDonationRepository(postgres)
	stakeRepo := storage.NewStakeRepository(postgres)
	cacheService := storage.NewCacheService(redis, cfg.Cache.TTL)

	// Initialize services
	fundraiserService := service.NewFundraiserService(
		manager, registry, exec, txVerifier, extractor,
		userRepo, fundraiserRepo, cacheService, logger,
	)
	donationService := service.NewDonationService(
		manager, txVerifier, extractor,
		userRepo, fundraiserRepo, donationRepo, logger,
	)
	stakeService := service.NewStakeService(
		manager, registry, exec, txVerifier, extractor,
		userRepo, stakeRepo, cacheService, logger,
	)

	// Initialize HTTP server
	server := api.NewServer(
		&api.ServerConfig{
			Host:            cfg.Server.Host,
			Port:            cfg.Server.Port,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    90 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RateLimitRPS:    cfg.RateLimit.RequestsPerSecond,
			RateLimitBurst:  cfg.RateLimit.Burst,
		},
		fundraiserService,
		donationService,
		stakeService,
		manager,
	)

	go func() {
		logger.WithFields(map[string]interface{}{
			"host": cfg.Server.Host,
			"port": cfg.Server.Port,
		}).Info("HTTP server listening")
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.WithField("signal", sig.String()).Info("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("HTTP server shutdown failed")
	}

	logger.Info("Shutdown complete")
}
