// Package config provides configuration management for the fundchain core.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fundchain-core/internal/types"
	"github.com/joho/godotenv"
)

// Contract names known to the registry. Addresses are configured per chain.
const (
	ContractFundraiserFactory = "FundraiserFactory"
	ContractFundraiser        = "Fundraiser"
	ContractStakingPool       = "StakingPool"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Chains    ChainsConfig
	Signer    SignerConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

// AppConfig holds process-level configuration
type AppConfig struct {
	// Env is one of "production", "development", "test".
	// Health-check timers are disabled when Env == "test".
	Env string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres PostgresConfig
	Redis    RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// ChainsConfig holds blockchain connectivity configuration
type ChainsConfig struct {
	// DefaultChain is the chain used when a caller does not specify one.
	DefaultChain types.ChainID
	// Enabled lists the chain ids the connection manager maintains.
	Enabled []types.ChainID
	// AlchemyAPIKey is the premium provider credential (highest priority endpoint).
	AlchemyAPIKey string
	// InfuraAPIKey is the secondary provider credential.
	InfuraAPIKey string
	// HealthCheckInterval is the cadence of the connection health loop.
	HealthCheckInterval time.Duration
	// StallTimeout bounds how long a single endpoint may take to answer
	// before the failover group moves on to the next one.
	StallTimeout time.Duration
	// Chains holds per-chain overrides and contract addresses.
	Chains map[types.ChainID]ChainConfig
}

// ChainConfig holds configuration for a specific chain
type ChainConfig struct {
	// RPCURL is an operator-supplied endpoint, tried after provider endpoints.
	RPCURL string
	// Confirmations overrides the chain's default confirmation depth when > 0.
	Confirmations uint64
	// Contracts maps contract name to its deployed address on this chain.
	// The zero address means "not deployed here".
	Contracts map[string]string
}

// SignerConfig holds the optional write-path signing credential
type SignerConfig struct {
	// PrivateKey is a 64-hex-character key, with or without 0x prefix.
	// Empty means write operations are unavailable.
	PrivateKey string
}

// CacheConfig holds cache configuration for live on-chain reads
type CacheConfig struct {
	TTL time.Duration
}

// RateLimitConfig holds API rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		App: AppConfig{
			Env: getEnv("APP_ENV", "development"),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "fundchain"),
				User:           getEnv("POSTGRES_USER", "fundchain"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
		},
		Signer: SignerConfig{
			PrivateKey: getEnv("SIGNER_PRIVATE_KEY", ""),
		},
		Cache: CacheConfig{
			TTL: getEnvAsDuration("CACHE_TTL", 20*time.Second),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsInt("RATE_LIMIT_RPS", 20),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 10),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	config.Chains = loadChainConfigs()

	return config, nil
}

// loadChainConfigs loads chain-specific configurations
func loadChainConfigs() ChainsConfig {
	enabled := parseChainIDs(getEnv("ENABLED_CHAINS", "84532,8453"))

	chains := make(map[types.ChainID]ChainConfig, len(enabled))
	for _, chainID := range enabled {
		suffix := strconv.FormatInt(int64(chainID), 10)
		chains[chainID] = ChainConfig{
			RPCURL:        getEnv("CHAIN_"+suffix+"_RPC_URL", ""),
			Confirmations: uint64(getEnvAsInt("CHAIN_"+suffix+"_CONFIRMATIONS", 0)), // #nosec G115 - confirmation depths are small
			Contracts: map[string]string{
				ContractFundraiserFactory: getEnv("FUNDRAISER_FACTORY_ADDRESS_"+suffix, ""),
				ContractStakingPool:       getEnv("STAKING_POOL_ADDRESS_"+suffix, ""),
			},
		}
	}

	return ChainsConfig{
		DefaultChain:        types.ChainID(getEnvAsInt("DEFAULT_CHAIN_ID", 84532)),
		Enabled:             enabled,
		AlchemyAPIKey:       getEnv("ALCHEMY_API_KEY", ""),
		InfuraAPIKey:        getEnv("INFURA_API_KEY", ""),
		HealthCheckInterval: getEnvAsDuration("HEALTH_CHECK_INTERVAL", 30*time.Second),
		StallTimeout:        getEnvAsDuration("RPC_STALL_TIMEOUT", 4*time.Second),
		Chains:              chains,
	}
}

// ChainConfigFor returns the per-chain configuration, or a zero value for
// chains without explicit configuration.
func (c *ChainsConfig) ChainConfigFor(chainID types.ChainID) ChainConfig {
	return c.Chains[chainID]
}

// IsEnabled reports whether the chain is part of the enabled set.
func (c *ChainsConfig) IsEnabled(chainID types.ChainID) bool {
	for _, id := range c.Enabled {
		if id == chainID {
			return true
		}
	}
	return false
}

// parseChainIDs parses a comma-separated chain id list, skipping malformed entries
func parseChainIDs(raw string) []types.ChainID {
	parts := strings.Split(raw, ",")
	ids := make([]types.ChainID, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, types.ChainID(id))
	}
	return ids
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
