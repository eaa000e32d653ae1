package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fundchain-core/internal/models"
	"github.com/fundchain-core/internal/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const stakeColumns = `
	id, user_id, pool_address, staker_address, amount::text, shares::text,
	chain_id, tx_hash, block_number, is_active, deactivated_at,
	created_at, updated_at
`

// StakeRepository handles staking position persistence
type StakeRepository struct {
	db *PostgresDB
}

// NewStakeRepository creates a new stake repository
func NewStakeRepository(db *PostgresDB) *StakeRepository {
	return &StakeRepository{db: db}
}

// Create inserts a stake record. The unique (chain_id, tx_hash) constraint
// makes concurrent ingestion of the same staking transaction converge on a
// single row.
func (r *StakeRepository) Create(ctx context.Context, stake *models.Stake) error {
	if stake.ID == "" {
		stake.ID = uuid.NewString()
	}
	stake.PoolAddress = strings.ToLower(stake.PoolAddress)
	stake.StakerAddress = strings.ToLower(stake.StakerAddress)
	stake.TxHash = strings.ToLower(stake.TxHash)

	now := time.Now().UTC()
	stake.CreatedAt = now
	stake.UpdatedAt = now

	query := `
		INSERT INTO stakes (
			id, user_id, pool_address, staker_address, amount, shares,
			chain_id, tx_hash, block_number, is_active, deactivated_at,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		stake.ID,
		stake.UserID,
		stake.PoolAddress,
		stake.StakerAddress,
		stake.Amount,
		stake.Shares,
		stake.ChainID,
		stake.TxHash,
		stake.BlockNumber,
		stake.IsActive,
		stake.DeactivatedAt,
		stake.CreatedAt,
		stake.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("failed to create stake: %w", err)
	}
	return nil
}

// GetByID retrieves a stake by id
func (r *StakeRepository) GetByID(ctx context.Context, id string) (*models.Stake, error) {
	query := `SELECT ` + stakeColumns + ` FROM stakes WHERE id = $1`
	return r.scanOne(r.db.Pool().QueryRow(ctx, query, id))
}

// GetByTxHash retrieves a stake by its staking transaction hash
func (r *StakeRepository) GetByTxHash(ctx context.Context, chainID types.ChainID, txHash string) (*models.Stake, error) {
	query := `SELECT ` + stakeColumns + ` FROM stakes WHERE chain_id = $1 AND tx_hash = $2`
	return r.scanOne(r.db.Pool().QueryRow(ctx, query, chainID, strings.ToLower(txHash)))
}

// ListActiveByStaker retrieves active positions for a staker address
func (r *StakeRepository) ListActiveByStaker(ctx context.Context, chainID types.ChainID, stakerAddress string) ([]*models.Stake, error) {
	query := `
		SELECT ` + stakeColumns + `
		FROM stakes
		WHERE chain_id = $1 AND staker_address = $2 AND is_active = true
		ORDER BY created_at DESC
	`
	rows, err := r.db.Pool().Query(ctx, query, chainID, strings.ToLower(stakerAddress))
	if err != nil {
		return nil, fmt.Errorf("failed to list stakes: %w", err)
	}
	defer rows.Close()

	var stakes []*models.Stake
	for rows.Next() {
		stake, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		stakes = append(stakes, stake)
	}
	return stakes, rows.Err()
}

// UpdateAmount overwrites the stored amount after reconciling against the
// live pool balance.
func (r *StakeRepository) UpdateAmount(ctx context.Context, id, amount string) error {
	query := `
		UPDATE stakes
		SET amount = $2, updated_at = $3
		WHERE id = $1
	`
	tag, err := r.db.Pool().Exec(ctx, query, id, amount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update stake amount: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Deactivate marks a fully withdrawn position inactive, preserving the row.
func (r *StakeRepository) Deactivate(ctx context.Context, id string) error {
	now := time.Now().UTC()
	query := `
		UPDATE stakes
		SET is_active = false, amount = '0', deactivated_at = $2, updated_at = $2
		WHERE id = $1
	`
	tag, err := r.db.Pool().Exec(ctx, query, id, now)
	if err != nil {
		return fmt.Errorf("failed to deactivate stake: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *StakeRepository) scanOne(row pgx.Row) (*models.Stake, error) {
	stake, err := r.scanRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return stake, nil
}

func (r *StakeRepository) scanRow(row pgx.Row) (*models.Stake, error) {
	var s models.Stake
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.PoolAddress,
		&s.StakerAddress,
		&s.Amount,
		&s.Shares,
		&s.ChainID,
		&s.TxHash,
		&s.BlockNumber,
		&s.IsActive,
		&s.DeactivatedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan stake: %w", err)
	}
	return &s, nil
}
