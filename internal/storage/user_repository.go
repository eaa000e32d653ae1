package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/fundchain-core/internal/models"
	"github.com/fundchain-core/internal/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Ethereum address regex pattern (0x followed by 40 hexadecimal characters)
var ethereumAddressRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// ValidateAddress validates an Ethereum address format
func ValidateAddress(address string) error {
	if !ethereumAddressRegex.MatchString(address) {
		return &types.ServiceError{
			Code:    "INVALID_ADDRESS_FORMAT",
			Message: fmt.Sprintf("invalid address format: %s (must be 0x followed by 40 hexadecimal characters)", address),
			Details: map[string]interface{}{
				"address": address,
				"format":  "0x[a-fA-F0-9]{40}",
			},
		}
	}
	return nil
}

// UserRepository handles user data persistence
type UserRepository struct {
	db *PostgresDB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *PostgresDB) *UserRepository {
	return &UserRepository{db: db}
}

// FindOrCreateByWallet returns the user owning a wallet address, creating the
// record on first sight. The insert races safely: on conflict the existing
// row wins and is re-read.
func (r *UserRepository) FindOrCreateByWallet(ctx context.Context, walletAddress string) (*models.User, error) {
	if err := ValidateAddress(walletAddress); err != nil {
		return nil, err
	}
	walletAddress = strings.ToLower(walletAddress)

	now := time.Now().UTC()
	insert := `
		INSERT INTO users (id, wallet_address, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (wallet_address) DO NOTHING
	`
	if _, err := r.db.Pool().Exec(ctx, insert, uuid.NewString(), walletAddress, now); err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	return r.GetByWallet(ctx, walletAddress)
}

// GetByWallet retrieves a user by wallet address
func (r *UserRepository) GetByWallet(ctx context.Context, walletAddress string) (*models.User, error) {
	walletAddress = strings.ToLower(walletAddress)

	query := `
		SELECT id, wallet_address, created_at, updated_at
		FROM users
		WHERE wallet_address = $1
	`

	var user models.User
	err := r.db.Pool().QueryRow(ctx, query, walletAddress).Scan(
		&user.ID,
		&user.WalletAddress,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// GetByID retrieves a user by id
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, wallet_address, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	var user models.User
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.WalletAddress,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}
